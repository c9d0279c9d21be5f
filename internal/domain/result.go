package domain

import "github.com/google/uuid"

// NodeResultStatus discriminates the NodeExecutionResult tagged variant.
type NodeResultStatus string

const (
	ResultCompleted NodeResultStatus = "completed"
	ResultSkipped   NodeResultStatus = "skipped"
	ResultError     NodeResultStatus = "error"
	ResultPending   NodeResultStatus = "pending"
)

// NodeExecutionResult is what the Node Executor returns for exactly one
// node: a tagged variant, never a bare error. Only the fields relevant to
// Status are meaningful; callers must switch on Status before reading them.
type NodeExecutionResult struct {
	NodeID uuid.UUID
	Status NodeResultStatus

	// completed
	Outputs map[string]any // wire-form value per declared output, as converted by the parameter mapper
	Usage   int

	// skipped
	SkipReason SkipReason
	BlockedBy  []uuid.UUID

	// error
	Message string

	// pending
	EventType string
	Timeout   int // seconds
}

func Completed(nodeID uuid.UUID, outputs map[string]any, usage int) NodeExecutionResult {
	return NodeExecutionResult{NodeID: nodeID, Status: ResultCompleted, Outputs: outputs, Usage: usage}
}

func Skipped(nodeID uuid.UUID, reason SkipReason, blockedBy []uuid.UUID) NodeExecutionResult {
	return NodeExecutionResult{NodeID: nodeID, Status: ResultSkipped, SkipReason: reason, BlockedBy: blockedBy}
}

func Errored(nodeID uuid.UUID, message string, usage int) NodeExecutionResult {
	return NodeExecutionResult{NodeID: nodeID, Status: ResultError, Message: message, Usage: usage}
}

func Pending(nodeID uuid.UUID, eventType string, timeoutSeconds int) NodeExecutionResult {
	return NodeExecutionResult{NodeID: nodeID, Status: ResultPending, EventType: eventType, Timeout: timeoutSeconds}
}
