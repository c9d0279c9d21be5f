package execstore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/fluxwell/runtime/internal/domain"
	"github.com/fluxwell/runtime/internal/runtime/step"
	"github.com/fluxwell/runtime/internal/services"
)

// executionRow is the bun model backing the workflow_executions table.
// Nodes are stored as a JSON column since their shape (tagged variant,
// variable-width) does not map cleanly onto relational columns and the
// core never queries into it — only whole-record round trips matter.
type executionRow struct {
	bun.BaseModel `bun:"table:workflow_executions,alias:e"`

	ID             uuid.UUID `bun:"id,pk"`
	WorkflowID     uuid.UUID `bun:"workflow_id,notnull"`
	OrgID          string    `bun:"org_id,notnull"`
	DeploymentID   string    `bun:"deployment_id"`
	Status         string    `bun:"status,notnull"`
	Error          string    `bun:"error"`
	NodesJSON      []byte    `bun:"nodes_json,notnull"`
	Usage          int       `bun:"usage,notnull"`
	StartedAt      time.Time `bun:"started_at,notnull"`
	EndedAt        time.Time `bun:"ended_at"`
}

// BunStore is the Postgres-backed ExecutionStore.
type BunStore struct {
	db *bun.DB
}

func NewBunStore(db *bun.DB) *BunStore { return &BunStore{db: db} }

func (s *BunStore) InitSchema(ctx context.Context) error {
	_, err := s.db.NewCreateTable().Model((*executionRow)(nil)).IfNotExists().Exec(ctx)
	return err
}

func toRow(exec domain.WorkflowExecution) (*executionRow, error) {
	nodesJSON, err := json.Marshal(exec.Nodes)
	if err != nil {
		return nil, err
	}
	return &executionRow{
		ID: exec.ID, WorkflowID: exec.WorkflowID, OrgID: exec.OrganizationID,
		DeploymentID: exec.DeploymentID, Status: string(exec.Status), Error: exec.Error,
		NodesJSON: nodesJSON, Usage: exec.Usage, StartedAt: exec.StartedAt, EndedAt: exec.EndedAt,
	}, nil
}

func fromRow(row *executionRow) (domain.WorkflowExecution, error) {
	var nodes []domain.NodeExecution
	if err := json.Unmarshal(row.NodesJSON, &nodes); err != nil {
		return domain.WorkflowExecution{}, err
	}
	return domain.WorkflowExecution{
		ID: row.ID, WorkflowID: row.WorkflowID, OrganizationID: row.OrgID,
		DeploymentID: row.DeploymentID, Status: domain.WorkflowStatus(row.Status), Error: row.Error,
		Nodes: nodes, Usage: row.Usage, StartedAt: row.StartedAt, EndedAt: row.EndedAt,
	}, nil
}

func (s *BunStore) Save(ctx context.Context, exec domain.WorkflowExecution) (domain.WorkflowExecution, error) {
	row, err := toRow(exec)
	if err != nil {
		return domain.WorkflowExecution{}, err
	}
	_, err = s.db.NewInsert().Model(row).
		On("CONFLICT (id) DO UPDATE").
		Set("status = EXCLUDED.status").
		Set("error = EXCLUDED.error").
		Set("nodes_json = EXCLUDED.nodes_json").
		Set("usage = EXCLUDED.usage").
		Set("ended_at = EXCLUDED.ended_at").
		Exec(ctx)
	if err != nil {
		return domain.WorkflowExecution{}, err
	}
	return exec, nil
}

func (s *BunStore) Get(ctx context.Context, id uuid.UUID, orgID string) (domain.WorkflowExecution, bool, error) {
	row := new(executionRow)
	err := s.db.NewSelect().Model(row).Where("id = ? AND org_id = ?", id, orgID).Scan(ctx)
	if err != nil {
		return domain.WorkflowExecution{}, false, nil
	}
	exec, err := fromRow(row)
	if err != nil {
		return domain.WorkflowExecution{}, false, err
	}
	return exec, true, nil
}

func (s *BunStore) List(ctx context.Context, orgID string, opts services.ExecutionListOptions) ([]domain.WorkflowExecution, error) {
	var rows []executionRow
	q := s.db.NewSelect().Model(&rows).Where("org_id = ?", orgID).Order("started_at ASC")
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]domain.WorkflowExecution, 0, len(rows))
	for i := range rows {
		exec, err := fromRow(&rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, exec)
	}
	return out, nil
}

// stepRow is the bun model backing durable-step checkpoints, grounded on
// the teacher's ExecutionCheckpoint idea but keyed per (execution, step
// name) rather than per wave so a multi-step node's internal steps get
// their own rows.
type stepRow struct {
	bun.BaseModel `bun:"table:execution_steps,alias:s"`

	ExecutionID string    `bun:"execution_id,pk"`
	Name        string    `bun:"name,pk"`
	ValueJSON   []byte    `bun:"value_json"`
	Err         string    `bun:"err"`
	CreatedAt   time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

// BunStepStore is the Postgres-backed step.StepStore.
type BunStepStore struct {
	db *bun.DB
}

func NewBunStepStore(db *bun.DB) *BunStepStore { return &BunStepStore{db: db} }

func (s *BunStepStore) InitSchema(ctx context.Context) error {
	_, err := s.db.NewCreateTable().Model((*stepRow)(nil)).IfNotExists().Exec(ctx)
	return err
}

func (s *BunStepStore) Get(ctx context.Context, executionID, name string) (step.StepRecord, bool, error) {
	row := new(stepRow)
	err := s.db.NewSelect().Model(row).Where("execution_id = ? AND name = ?", executionID, name).Scan(ctx)
	if err != nil {
		return step.StepRecord{}, false, nil
	}
	var value any
	if len(row.ValueJSON) > 0 {
		if err := json.Unmarshal(row.ValueJSON, &value); err != nil {
			return step.StepRecord{}, false, err
		}
	}
	return step.StepRecord{ExecutionID: executionID, Name: name, Value: value, Err: row.Err}, true, nil
}

func (s *BunStepStore) Put(ctx context.Context, rec step.StepRecord) error {
	valueJSON, err := json.Marshal(rec.Value)
	if err != nil {
		return err
	}
	row := &stepRow{ExecutionID: rec.ExecutionID, Name: rec.Name, ValueJSON: valueJSON, Err: rec.Err}
	_, err = s.db.NewInsert().Model(row).
		On("CONFLICT (execution_id, name) DO UPDATE").
		Set("value_json = EXCLUDED.value_json").
		Set("err = EXCLUDED.err").
		Exec(ctx)
	return err
}
