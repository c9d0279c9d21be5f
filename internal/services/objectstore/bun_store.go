package objectstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/fluxwell/runtime/internal/domain"
	"github.com/fluxwell/runtime/internal/services"
)

// objectRow is the bun model backing the object_store table; bytes are
// stored inline for simplicity (a production deployment would point
// mimeType-specific large payloads at blob storage and keep only metadata
// here, but the core only requires the ObjectStore contract to hold).
type objectRow struct {
	bun.BaseModel `bun:"table:object_store,alias:o"`

	ID          string    `bun:"id,pk"`
	OrgID       string    `bun:"org_id,notnull"`
	ExecutionID string    `bun:"execution_id"`
	MimeType    string    `bun:"mime_type,notnull"`
	Filename    string    `bun:"filename"`
	Data        []byte    `bun:"data,notnull"`
	CreatedAt   time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

// BunStore is the Postgres-backed ObjectStore, grounded on the teacher's
// bun.DB-based storage layer.
type BunStore struct {
	db *bun.DB
}

func NewBunStore(db *bun.DB) *BunStore { return &BunStore{db: db} }

func (s *BunStore) InitSchema(ctx context.Context) error {
	_, err := s.db.NewCreateTable().Model((*objectRow)(nil)).IfNotExists().Exec(ctx)
	return err
}

func (s *BunStore) WriteObject(ctx context.Context, data []byte, mimeType, orgID, executionID, filename string) (domain.ObjectRef, error) {
	row := &objectRow{
		ID: newObjectID(), OrgID: orgID, ExecutionID: executionID,
		MimeType: mimeType, Filename: filename, Data: data,
	}
	if _, err := s.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return domain.ObjectRef{}, fmt.Errorf("write object: %w", err)
	}
	return domain.ObjectRef{ID: row.ID, MimeType: mimeType, Filename: filename}, nil
}

func (s *BunStore) ReadObject(ctx context.Context, ref domain.ObjectRef) ([]byte, *services.ObjectMetadata, error) {
	row := new(objectRow)
	err := s.db.NewSelect().Model(row).Where("id = ?", ref.ID).Scan(ctx)
	if err != nil {
		return nil, nil, domain.NewDomainError(domain.ErrMissingDependency, fmt.Sprintf("object %q not found", ref.ID), err)
	}
	meta := &services.ObjectMetadata{ID: row.ID, MimeType: row.MimeType, Filename: row.Filename, Size: int64(len(row.Data))}
	return row.Data, meta, nil
}

func (s *BunStore) DeleteObject(ctx context.Context, ref domain.ObjectRef) error {
	_, err := s.db.NewDelete().Model((*objectRow)(nil)).Where("id = ?", ref.ID).Exec(ctx)
	return err
}

func (s *BunStore) Presign(ctx context.Context, ref domain.ObjectRef, ttl time.Duration) (string, error) {
	return fmt.Sprintf("/objects/%s?expires=%d", ref.ID, time.Now().Add(ttl).Unix()), nil
}

func (s *BunStore) WriteAndPresign(ctx context.Context, data []byte, mimeType, orgID string, ttl time.Duration) (string, error) {
	ref, err := s.WriteObject(ctx, data, mimeType, orgID, "", "")
	if err != nil {
		return "", err
	}
	return s.Presign(ctx, ref, ttl)
}

func (s *BunStore) List(ctx context.Context, orgID string) ([]services.ObjectMetadata, error) {
	var rows []objectRow
	if err := s.db.NewSelect().Model(&rows).Where("org_id = ?", orgID).Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]services.ObjectMetadata, 0, len(rows))
	for _, r := range rows {
		out = append(out, services.ObjectMetadata{ID: r.ID, MimeType: r.MimeType, Filename: r.Filename, Size: int64(len(r.Data))})
	}
	return out, nil
}

func newObjectID() string {
	return fmt.Sprintf("obj_%s", uuid.New().String())
}
