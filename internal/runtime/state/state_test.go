package state

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/fluxwell/runtime/internal/domain"
)

func TestGetExecutionStatus_ExecutingWhileNodesRemainUnresolved(t *testing.T) {
	a, b := domain.Node{ID: uuid.New()}, domain.Node{ID: uuid.New()}
	w := domain.Workflow{Nodes: []domain.Node{a, b}}
	ctx := domain.WorkflowExecutionContext{Workflow: w}
	s := domain.NewExecutionState()
	s.ApplyNodeResult(domain.Completed(a.ID, map[string]any{}, 0))

	assert.Equal(t, domain.WorkflowExecuting, GetExecutionStatus(ctx, s))
}

func TestGetExecutionStatus_CompletedWhenEveryNodeResolved(t *testing.T) {
	a, b := domain.Node{ID: uuid.New()}, domain.Node{ID: uuid.New()}
	w := domain.Workflow{Nodes: []domain.Node{a, b}}
	ctx := domain.WorkflowExecutionContext{Workflow: w}
	s := domain.NewExecutionState()
	s.ApplyNodeResult(domain.Completed(a.ID, map[string]any{}, 0))
	s.ApplyNodeResult(domain.Skipped(b.ID, domain.SkipConditionalBranch, nil))

	assert.Equal(t, domain.WorkflowCompleted, GetExecutionStatus(ctx, s))
}

func TestGetExecutionStatus_ErrorWhenAnyNodeErrors(t *testing.T) {
	a, b := domain.Node{ID: uuid.New()}, domain.Node{ID: uuid.New()}
	w := domain.Workflow{Nodes: []domain.Node{a, b}}
	ctx := domain.WorkflowExecutionContext{Workflow: w}
	s := domain.NewExecutionState()
	s.ApplyNodeResult(domain.Errored(a.ID, "boom", 0))
	s.ApplyNodeResult(domain.Skipped(b.ID, domain.SkipUpstreamFailure, []uuid.UUID{a.ID}))

	assert.Equal(t, domain.WorkflowError, GetExecutionStatus(ctx, s))
}

func TestInferSkipReason_FailureDominatesOverConditional(t *testing.T) {
	failed := domain.Node{ID: uuid.New(), Name: "failed"}
	conditional := domain.Node{ID: uuid.New(), Name: "conditional"}
	target := domain.Node{ID: uuid.New(), Name: "target"}
	w := domain.Workflow{
		Nodes: []domain.Node{failed, conditional, target},
		Edges: []domain.Edge{
			{Source: failed.ID, SourceOutput: "out", Target: target.ID, TargetInput: "a"},
			{Source: conditional.ID, SourceOutput: "out", Target: target.ID, TargetInput: "b"},
		},
	}
	s := domain.NewExecutionState()
	s.ApplyNodeResult(domain.Errored(failed.ID, "boom", 0))
	s.ApplyNodeResult(domain.Completed(conditional.ID, map[string]any{}, 0)) // no "out" produced: conditional branch not taken

	reason, blockedBy := InferSkipReason(w, s, target.ID)
	assert.Equal(t, domain.SkipUpstreamFailure, reason)
	assert.Contains(t, blockedBy, failed.ID)
}

func TestInferSkipReason_PureConditionalBranch(t *testing.T) {
	router := domain.Node{ID: uuid.New(), Name: "router"}
	target := domain.Node{ID: uuid.New(), Name: "target"}
	w := domain.Workflow{
		Nodes: []domain.Node{router, target},
		Edges: []domain.Edge{
			{Source: router.ID, SourceOutput: "onTrue", Target: target.ID, TargetInput: "in"},
		},
	}
	s := domain.NewExecutionState()
	// router completed but never produced "onTrue" (it took the other branch)
	s.ApplyNodeResult(domain.Completed(router.ID, map[string]any{"onFalse": 1}, 0))

	reason, blockedBy := InferSkipReason(w, s, target.ID)
	assert.Equal(t, domain.SkipConditionalBranch, reason)
	assert.Empty(t, blockedBy)
}
