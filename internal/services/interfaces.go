// Package services declares the contracts the runtime core depends on for
// everything outside its own process: blob storage, secrets, credits,
// execution persistence, monitoring, queues, databases, and datasets. The
// core only ever calls through these interfaces — concrete
// implementations live in this package's subpackages.
package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/fluxwell/runtime/internal/domain"
)

// ObjectMetadata describes a stored blob without its bytes.
type ObjectMetadata struct {
	ID       string
	MimeType string
	Filename string
	Size     int64
}

// ObjectStore persists binary payloads referenced from workflow state by
// an opaque ObjectRef id. Implementations must be safe for concurrent use.
type ObjectStore interface {
	WriteObject(ctx context.Context, data []byte, mimeType, orgID, executionID, filename string) (domain.ObjectRef, error)
	ReadObject(ctx context.Context, ref domain.ObjectRef) ([]byte, *ObjectMetadata, error)
	DeleteObject(ctx context.Context, ref domain.ObjectRef) error
	Presign(ctx context.Context, ref domain.ObjectRef, ttl time.Duration) (string, error)
	WriteAndPresign(ctx context.Context, data []byte, mimeType, orgID string, ttl time.Duration) (string, error)
	List(ctx context.Context, orgID string) ([]ObjectMetadata, error)
}

// IntegrationInfo is a resolved third-party integration credential.
type IntegrationInfo struct {
	Token          string
	RefreshToken   string
	TokenExpiresAt time.Time
	Metadata       map[string]any
}

// CredentialService resolves secrets and integration credentials scoped to
// an organization. Every lookup takes orgID explicitly, matching
// QueueService/DatabaseService/DatasetService's Resolve(ctx, handle, orgID)
// pattern — a credential lookup is never allowed to search across
// organizations.
type CredentialService interface {
	Initialize(ctx context.Context, orgID string) error
	GetSecret(ctx context.Context, orgID, name string) (string, bool, error)
	GetIntegration(ctx context.Context, orgID, id string) (IntegrationInfo, error)
}

// CreditCheck is the pre-flight credit-check request.
type CreditCheck struct {
	OrgID              string
	Included           int
	Estimated          int
	SubscriptionStatus string
	OverageLimit       int
}

// CreditService gates and accounts for workflow execution cost.
type CreditService interface {
	HasEnoughCredits(ctx context.Context, check CreditCheck) (bool, error)
	RecordUsage(ctx context.Context, orgID string, usage int) error
}

// ExecutionListOptions bounds ExecutionStore.List queries.
type ExecutionListOptions struct {
	Limit  int
	Offset int
}

// ExecutionStore persists WorkflowExecution records.
type ExecutionStore interface {
	Save(ctx context.Context, exec domain.WorkflowExecution) (domain.WorkflowExecution, error)
	Get(ctx context.Context, id uuid.UUID, orgID string) (domain.WorkflowExecution, bool, error)
	List(ctx context.Context, orgID string, opts ExecutionListOptions) ([]domain.WorkflowExecution, error)
}

// MonitoringService delivers live WorkflowExecution snapshots to an
// observing session. SendUpdate is a no-op when sessionID is empty.
type MonitoringService interface {
	SendUpdate(ctx context.Context, sessionID string, exec domain.WorkflowExecution)
}

// SendMode controls queue delivery semantics (e.g. "standard" vs "fifo").
type SendMode string

// Queue is a resolved, sendable message queue.
type Queue interface {
	Send(ctx context.Context, payload []byte, mode SendMode) error
	SendBatch(ctx context.Context, payloads [][]byte, mode SendMode) error
}

// QueueService resolves a queue id or handle to a Queue, scoped to an org.
type QueueService interface {
	Resolve(ctx context.Context, queueIDOrHandle, orgID string) (Queue, bool, error)
}

// Rows is the minimal result-set shape returned by a database query.
type Rows struct {
	Columns []string
	Values  [][]any
}

// ExecResult is the outcome of a non-query database statement.
type ExecResult struct {
	RowsAffected  int64
	LastInsertID  int64
}

// Connection is a resolved database connection.
type Connection interface {
	Query(ctx context.Context, sql string, params ...any) (Rows, error)
	Execute(ctx context.Context, sql string, params ...any) (ExecResult, error)
}

// DatabaseService resolves a database id or handle to a Connection.
type DatabaseService interface {
	Resolve(ctx context.Context, dbIDOrHandle, orgID string) (Connection, bool, error)
}

// DatasetFile is one file's metadata within a dataset.
type DatasetFile struct {
	ID       string
	Filename string
	MimeType string
	Size     int64
}

// Dataset is a resolved, queryable file collection.
type Dataset interface {
	ListFiles(ctx context.Context) ([]DatasetFile, error)
	GetFile(ctx context.Context, id string) ([]byte, DatasetFile, error)
	UploadFile(ctx context.Context, data []byte, filename, mimeType string) (DatasetFile, error)
	DeleteFile(ctx context.Context, id string) error
	Search(ctx context.Context, query string) ([]DatasetFile, error)
	AISearch(ctx context.Context, query string) ([]DatasetFile, error)
}

// DatasetService resolves a dataset id to a Dataset, scoped to an org.
type DatasetService interface {
	Resolve(ctx context.Context, datasetID, orgID string) (Dataset, bool, error)
}
