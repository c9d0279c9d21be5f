package domain

import (
	"time"

	"github.com/google/uuid"
)

// WorkflowExecutionContext is the immutable per-run context: everything
// the runtime core and node executor need that does not change once a run
// starts. It is built once by the Runtime Core after planning and never
// mutated afterward.
type WorkflowExecutionContext struct {
	Workflow       Workflow
	Levels         [][]uuid.UUID
	NodeOrder      []uuid.UUID // flat, level-major order
	OrganizationID string
	ExecutionID    uuid.UUID
	DeploymentID   string // empty if none
	MonitoringSessionID string // empty if none
	TriggerPayload any
}

// ExecutionState is the mutable per-run state, owned exclusively by the
// Runtime Core's single applier goroutine. It is never read or written
// concurrently, so it carries no locks (see invariant preservation notes
// in applyNodeResult).
type ExecutionState struct {
	nodeOutputs map[uuid.UUID]map[string]any
	executed    []uuid.UUID
	executedSet map[uuid.UUID]bool
	skipped     []uuid.UUID
	skippedSet  map[uuid.UUID]bool
	skipReasons map[uuid.UUID]SkipReason
	blockedBy   map[uuid.UUID][]uuid.UUID
	nodeErrors  map[uuid.UUID]string
	nodeUsage   map[uuid.UUID]int
}

func NewExecutionState() *ExecutionState {
	return &ExecutionState{
		nodeOutputs: make(map[uuid.UUID]map[string]any),
		executedSet: make(map[uuid.UUID]bool),
		skippedSet:  make(map[uuid.UUID]bool),
		skipReasons: make(map[uuid.UUID]SkipReason),
		blockedBy:   make(map[uuid.UUID][]uuid.UUID),
		nodeErrors:  make(map[uuid.UUID]string),
		nodeUsage:   make(map[uuid.UUID]int),
	}
}

func (s *ExecutionState) IsExecuted(id uuid.UUID) bool { return s.executedSet[id] }
func (s *ExecutionState) IsSkipped(id uuid.UUID) bool  { return s.skippedSet[id] }
func (s *ExecutionState) IsErrored(id uuid.UUID) (string, bool) {
	msg, ok := s.nodeErrors[id]
	return msg, ok
}

func (s *ExecutionState) Output(id uuid.UUID, param string) (any, bool) {
	out, ok := s.nodeOutputs[id]
	if !ok {
		return nil, false
	}
	v, ok := out[param]
	return v, ok
}

func (s *ExecutionState) Outputs(id uuid.UUID) (map[string]any, bool) {
	out, ok := s.nodeOutputs[id]
	return out, ok
}

func (s *ExecutionState) ExecutedNodes() []uuid.UUID { return append([]uuid.UUID(nil), s.executed...) }
func (s *ExecutionState) SkippedNodes() []uuid.UUID  { return append([]uuid.UUID(nil), s.skipped...) }

func (s *ExecutionState) SkipReason(id uuid.UUID) (SkipReason, []uuid.UUID) {
	return s.skipReasons[id], s.blockedBy[id]
}

func (s *ExecutionState) TotalUsage() int {
	total := 0
	for _, u := range s.nodeUsage {
		total += u
	}
	return total
}

func (s *ExecutionState) NodeUsage(id uuid.UUID) int { return s.nodeUsage[id] }

// ApplyNodeResult is the single mutation sink for ExecutionState (C4's
// applyNodeResult). It is the only function permitted to write to the
// state's sets, which is what keeps invariants 1-5 trivially true: a node
// id is added to exactly one of the three sets, exactly once, by whichever
// branch below fires for its result.
func (s *ExecutionState) ApplyNodeResult(r NodeExecutionResult) {
	switch r.Status {
	case ResultCompleted:
		s.nodeOutputs[r.NodeID] = r.Outputs
		s.executed = append(s.executed, r.NodeID)
		s.executedSet[r.NodeID] = true
		if r.Usage > 0 {
			s.nodeUsage[r.NodeID] = r.Usage
		}
	case ResultSkipped:
		s.skipped = append(s.skipped, r.NodeID)
		s.skippedSet[r.NodeID] = true
		s.skipReasons[r.NodeID] = r.SkipReason
		s.blockedBy[r.NodeID] = r.BlockedBy
	case ResultError:
		s.nodeErrors[r.NodeID] = r.Message
		if r.Usage > 0 {
			s.nodeUsage[r.NodeID] = r.Usage
		}
	case ResultPending:
		// Reserved: long-running nodes that yield back to the runtime are
		// not resolved into one of the three terminal sets yet.
	}
}

// NodeExecution is the persisted/reported projection of one node's outcome.
type NodeExecution struct {
	NodeID     uuid.UUID           `json:"nodeId"`
	Status     NodeExecutionStatus `json:"status"`
	Outputs    map[string]any      `json:"outputs,omitempty"`
	Error      string              `json:"error,omitempty"`
	Usage      int                 `json:"usage,omitempty"`
	SkipReason SkipReason          `json:"skipReason,omitempty"`
	BlockedBy  []uuid.UUID         `json:"blockedBy,omitempty"`
}

// WorkflowExecution is the external compatibility record: what run()
// returns, what the Execution Store persists, and the shape every
// monitoring update carries.
type WorkflowExecution struct {
	ID             uuid.UUID       `json:"id"`
	WorkflowID     uuid.UUID       `json:"workflowId"`
	OrganizationID string          `json:"organizationId"`
	DeploymentID   string          `json:"deploymentId,omitempty"`
	Status         WorkflowStatus  `json:"status"`
	Error          string          `json:"error,omitempty"`
	Nodes          []NodeExecution `json:"nodes"`
	Usage          int             `json:"usage"`
	StartedAt      time.Time       `json:"startedAt"`
	EndedAt        time.Time       `json:"endedAt,omitempty"`
}
