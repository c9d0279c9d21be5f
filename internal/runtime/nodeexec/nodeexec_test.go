package nodeexec

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxwell/runtime/internal/domain"
	"github.com/fluxwell/runtime/internal/node"
	"github.com/fluxwell/runtime/internal/runtime/mapper"
	"github.com/fluxwell/runtime/internal/runtime/step"
	"github.com/fluxwell/runtime/internal/services/objectstore"
)

type echoNode struct{}

func (echoNode) Execute(ec node.ExecutionContext) (node.ExecutionOutcome, error) {
	return node.ExecutionOutcome{Outputs: map[string]any{"out": ec.Inputs["in"]}, Usage: 1}, nil
}

type panicNode struct{}

func (panicNode) Execute(ec node.ExecutionContext) (node.ExecutionOutcome, error) {
	panic("boom")
}

func newExecutor(t *testing.T) *Executor {
	t.Helper()
	registry := node.NewRegistry()
	registry.Register(node.Metadata{Type: "echo"}, func() any { return echoNode{} })
	registry.Register(node.Metadata{Type: "panicker"}, func() any { return panicNode{} })
	return &Executor{
		Mapper:   mapper.New(objectstore.NewMemory()),
		Registry: registry,
	}
}

func TestExecute_SkipsWhenRequiredInputMissing(t *testing.T) {
	ex := newExecutor(t)
	upstream := domain.Node{ID: uuid.New(), Outputs: []domain.Parameter{{Name: "out", Type: domain.ParamString}}}
	target := domain.Node{
		ID:      uuid.New(),
		Type:    "echo",
		Inputs:  []domain.Parameter{{Name: "in", Type: domain.ParamString, Required: true}},
		Outputs: []domain.Parameter{{Name: "out", Type: domain.ParamString}},
	}
	w := domain.Workflow{
		Nodes: []domain.Node{upstream, target},
		Edges: []domain.Edge{{Source: upstream.ID, SourceOutput: "out", Target: target.ID, TargetInput: "in"}},
	}
	wfCtx := domain.WorkflowExecutionContext{Workflow: w, ExecutionID: uuid.New()}
	s := domain.NewExecutionState()
	// upstream skipped (conditional branch not taken): target's required input is unsatisfiable
	s.ApplyNodeResult(domain.Skipped(upstream.ID, domain.SkipConditionalBranch, nil))

	result := ex.Execute(context.Background(), wfCtx, target, s, step.NewEphemeral())
	assert.Equal(t, domain.ResultSkipped, result.Status)
	assert.Equal(t, domain.SkipConditionalBranch, result.SkipReason)
}

func TestExecute_CompletesWhenInputSatisfiedByEdge(t *testing.T) {
	ex := newExecutor(t)
	upstream := domain.Node{ID: uuid.New(), Outputs: []domain.Parameter{{Name: "out", Type: domain.ParamString}}}
	target := domain.Node{
		ID:      uuid.New(),
		Type:    "echo",
		Inputs:  []domain.Parameter{{Name: "in", Type: domain.ParamString, Required: true}},
		Outputs: []domain.Parameter{{Name: "out", Type: domain.ParamString}},
	}
	w := domain.Workflow{
		Nodes: []domain.Node{upstream, target},
		Edges: []domain.Edge{{Source: upstream.ID, SourceOutput: "out", Target: target.ID, TargetInput: "in"}},
	}
	wfCtx := domain.WorkflowExecutionContext{Workflow: w, ExecutionID: uuid.New()}
	s := domain.NewExecutionState()
	s.ApplyNodeResult(domain.Completed(upstream.ID, map[string]any{"out": "hi"}, 0))

	result := ex.Execute(context.Background(), wfCtx, target, s, step.NewEphemeral())
	require.Equal(t, domain.ResultCompleted, result.Status)
	assert.Equal(t, "hi", result.Outputs["out"])
	assert.Equal(t, 1, result.Usage)
}

func TestExecute_UnregisteredNodeTypeErrors(t *testing.T) {
	ex := newExecutor(t)
	n := domain.Node{ID: uuid.New(), Type: "does-not-exist"}
	w := domain.Workflow{Nodes: []domain.Node{n}}
	wfCtx := domain.WorkflowExecutionContext{Workflow: w, ExecutionID: uuid.New()}
	result := ex.Execute(context.Background(), wfCtx, n, domain.NewExecutionState(), step.NewEphemeral())
	assert.Equal(t, domain.ResultError, result.Status)
}

func TestExecute_PanicRecoversIntoErrorResult(t *testing.T) {
	ex := newExecutor(t)
	n := domain.Node{ID: uuid.New(), Type: "panicker"}
	w := domain.Workflow{Nodes: []domain.Node{n}}
	wfCtx := domain.WorkflowExecutionContext{Workflow: w, ExecutionID: uuid.New()}
	result := ex.Execute(context.Background(), wfCtx, n, domain.NewExecutionState(), step.NewEphemeral())
	require.Equal(t, domain.ResultError, result.Status)
	assert.Contains(t, result.Message, "panicked")
}
