// Package dataset implements the Dataset Service: a catalog of files
// backed by the Object Store for bytes and a pgx pool for searchable
// metadata.
package dataset

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fluxwell/runtime/internal/domain"
	"github.com/fluxwell/runtime/internal/services"
)

// Service resolves a dataset id to a catalog-backed Dataset.
type Service struct {
	store services.ObjectStore
	pool  *pgxpool.Pool
}

func NewService(store services.ObjectStore, pool *pgxpool.Pool) *Service {
	return &Service{store: store, pool: pool}
}

func (s *Service) Resolve(ctx context.Context, datasetID, orgID string) (services.Dataset, bool, error) {
	return &dataset{id: datasetID, orgID: orgID, store: s.store, pool: s.pool}, true, nil
}

type dataset struct {
	id, orgID string
	store     services.ObjectStore
	pool      *pgxpool.Pool
}

func (d *dataset) ListFiles(ctx context.Context) ([]services.DatasetFile, error) {
	rows, err := d.pool.Query(ctx, `SELECT object_id, filename, mime_type, size FROM dataset_files WHERE dataset_id = $1`, d.id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []services.DatasetFile
	for rows.Next() {
		var f services.DatasetFile
		if err := rows.Scan(&f.ID, &f.Filename, &f.MimeType, &f.Size); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (d *dataset) GetFile(ctx context.Context, id string) ([]byte, services.DatasetFile, error) {
	var f services.DatasetFile
	err := d.pool.QueryRow(ctx, `SELECT object_id, filename, mime_type, size FROM dataset_files WHERE dataset_id = $1 AND object_id = $2`, d.id, id).
		Scan(&f.ID, &f.Filename, &f.MimeType, &f.Size)
	if err != nil {
		return nil, services.DatasetFile{}, err
	}
	data, _, err := d.store.ReadObject(ctx, domain.ObjectRef{ID: f.ID, MimeType: f.MimeType, Filename: f.Filename})
	if err != nil {
		return nil, services.DatasetFile{}, err
	}
	return data, f, nil
}

func (d *dataset) UploadFile(ctx context.Context, data []byte, filename, mimeType string) (services.DatasetFile, error) {
	ref, err := d.store.WriteObject(ctx, data, mimeType, d.orgID, "", filename)
	if err != nil {
		return services.DatasetFile{}, err
	}
	_, err = d.pool.Exec(ctx, `INSERT INTO dataset_files (dataset_id, object_id, filename, mime_type, size) VALUES ($1, $2, $3, $4, $5)`,
		d.id, ref.ID, filename, mimeType, len(data))
	if err != nil {
		return services.DatasetFile{}, err
	}
	return services.DatasetFile{ID: ref.ID, Filename: filename, MimeType: mimeType, Size: int64(len(data))}, nil
}

func (d *dataset) DeleteFile(ctx context.Context, id string) error {
	_, err := d.pool.Exec(ctx, `DELETE FROM dataset_files WHERE dataset_id = $1 AND object_id = $2`, d.id, id)
	if err != nil {
		return err
	}
	return d.store.DeleteObject(ctx, domain.ObjectRef{ID: id})
}

// Search performs a case-insensitive filename substring match. AISearch is
// a distinct operation in the contract (semantic search over file
// content/embeddings) that this reference implementation does not attempt
// to approximate with SQL; it falls back to the same substring match so
// callers get a deterministic, if unsophisticated, result.
func (d *dataset) Search(ctx context.Context, query string) ([]services.DatasetFile, error) {
	all, err := d.ListFiles(ctx)
	if err != nil {
		return nil, err
	}
	var out []services.DatasetFile
	lower := strings.ToLower(query)
	for _, f := range all {
		if strings.Contains(strings.ToLower(f.Filename), lower) {
			out = append(out, f)
		}
	}
	return out, nil
}

func (d *dataset) AISearch(ctx context.Context, query string) ([]services.DatasetFile, error) {
	return d.Search(ctx, query)
}
