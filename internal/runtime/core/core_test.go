package core

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxwell/runtime/internal/domain"
	"github.com/fluxwell/runtime/internal/node"
	"github.com/fluxwell/runtime/internal/runtime/mapper"
	"github.com/fluxwell/runtime/internal/runtime/nodeexec"
	"github.com/fluxwell/runtime/internal/runtime/step"
	"github.com/fluxwell/runtime/internal/services/execstore"
	"github.com/fluxwell/runtime/internal/services/objectstore"
)

// constNode always produces its configured "value" output.
type constNode struct{}

func (constNode) Execute(ec node.ExecutionContext) (node.ExecutionOutcome, error) {
	return node.ExecutionOutcome{Outputs: map[string]any{"value": ec.Config["value"]}}, nil
}

// divideNode divides "a" by "b", erroring on division by zero.
type divideNode struct{}

func (divideNode) Execute(ec node.ExecutionContext) (node.ExecutionOutcome, error) {
	a, _ := ec.Inputs["a"].(float64)
	b, _ := ec.Inputs["b"].(float64)
	if b == 0 {
		return node.ExecutionOutcome{}, fmt.Errorf("division by zero")
	}
	return node.ExecutionOutcome{Outputs: map[string]any{"result": a / b}}, nil
}

// routerNode forwards "value" to "onTrue" or "onFalse" based on config.
type routerNode struct{}

func (routerNode) Execute(ec node.ExecutionContext) (node.ExecutionOutcome, error) {
	take, _ := ec.Config["take"].(bool)
	if take {
		return node.ExecutionOutcome{Outputs: map[string]any{"onTrue": ec.Inputs["value"]}}, nil
	}
	return node.ExecutionOutcome{Outputs: map[string]any{"onFalse": ec.Inputs["value"]}}, nil
}

// multiStepNode runs two named durable steps and sums their results.
type multiStepNode struct{}

func (multiStepNode) ExecuteSteps(sc node.StepContext) (node.ExecutionOutcome, error) {
	v1, err := sc.DoStep("first", func(ctx context.Context) (any, error) { return 1, nil })
	if err != nil {
		return node.ExecutionOutcome{}, err
	}
	v2, err := sc.DoStep("second", func(ctx context.Context) (any, error) { return 2, nil })
	if err != nil {
		return node.ExecutionOutcome{}, err
	}
	return node.ExecutionOutcome{Outputs: map[string]any{"sum": float64(v1.(int) + v2.(int))}}, nil
}

func newTestCore(t *testing.T) *Core {
	t.Helper()
	registry := node.NewRegistry()
	registry.Register(node.Metadata{Type: "const"}, func() any { return constNode{} })
	registry.Register(node.Metadata{Type: "divide"}, func() any { return divideNode{} })
	registry.Register(node.Metadata{Type: "router"}, func() any { return routerNode{} })
	registry.Register(node.Metadata{Type: "multistep"}, func() any { return multiStepNode{} })

	executor := &nodeexec.Executor{
		Mapper:   mapper.New(objectstore.NewMemory()),
		Registry: registry,
	}
	return &Core{
		Executor:   executor,
		Executions: execstore.NewMemory(),
	}
}

func numberNode(name string, value float64) domain.Node {
	return domain.Node{
		ID:      uuid.New(),
		Name:    name,
		Type:    "const",
		Config:  map[string]any{"value": value},
		Outputs: []domain.Parameter{{Name: "value", Type: domain.ParamNumber}},
	}
}

// Scenario: linear chain — a feeds b's first input, b's second input falls
// back to its default, and both nodes complete.
func TestRun_LinearChain(t *testing.T) {
	c := newTestCore(t)
	a := numberNode("a", 2)
	div := domain.Node{
		ID:      uuid.New(),
		Name:    "b",
		Type:    "divide",
		Inputs:  []domain.Parameter{{Name: "a", Type: domain.ParamNumber, Required: true}, {Name: "b", Type: domain.ParamNumber, Required: true, HasDefault: true, Default: float64(2)}},
		Outputs: []domain.Parameter{{Name: "result", Type: domain.ParamNumber}},
	}
	w := domain.Workflow{
		ID:    uuid.New(),
		Nodes: []domain.Node{a, div},
		Edges: []domain.Edge{{Source: a.ID, SourceOutput: "value", Target: div.ID, TargetInput: "a"}},
	}

	exec, err := c.Run(context.Background(), RunParams{Workflow: w, OrganizationID: "org1"})
	require.NoError(t, err)
	assert.Equal(t, domain.WorkflowCompleted, exec.Status)
	require.Len(t, exec.Nodes, 2)
	for _, ne := range exec.Nodes {
		assert.Equal(t, domain.NodeCompleted, ne.Status)
	}
}

// Scenario: diamond / parallel — b and c run side by side in the first
// level (with the unconnected a) and both feed d.
func TestRun_DiamondParallel(t *testing.T) {
	c := newTestCore(t)
	a := numberNode("a", 10)
	b := domain.Node{ID: uuid.New(), Name: "b", Type: "const", Config: map[string]any{"value": float64(5)}, Outputs: []domain.Parameter{{Name: "value", Type: domain.ParamNumber}}}
	cNode := domain.Node{ID: uuid.New(), Name: "c", Type: "const", Config: map[string]any{"value": float64(2)}, Outputs: []domain.Parameter{{Name: "value", Type: domain.ParamNumber}}}
	d := domain.Node{
		ID:      uuid.New(),
		Name:    "d",
		Type:    "divide",
		Inputs:  []domain.Parameter{{Name: "a", Type: domain.ParamNumber, Required: true}, {Name: "b", Type: domain.ParamNumber, Required: true}},
		Outputs: []domain.Parameter{{Name: "result", Type: domain.ParamNumber}},
	}
	w := domain.Workflow{
		ID:    uuid.New(),
		Nodes: []domain.Node{a, b, cNode, d},
		Edges: []domain.Edge{
			{Source: b.ID, SourceOutput: "value", Target: d.ID, TargetInput: "a"},
			{Source: cNode.ID, SourceOutput: "value", Target: d.ID, TargetInput: "b"},
		},
	}

	exec, err := c.Run(context.Background(), RunParams{Workflow: w, OrganizationID: "org1"})
	require.NoError(t, err)
	assert.Equal(t, domain.WorkflowCompleted, exec.Status)
}

// Scenario: divide-by-zero failure — the dividing node errors.
func TestRun_DivideByZeroFailure(t *testing.T) {
	c := newTestCore(t)
	a := numberNode("a", 10)
	zero := domain.Node{ID: uuid.New(), Name: "zero", Type: "const", Config: map[string]any{"value": float64(0)}, Outputs: []domain.Parameter{{Name: "value", Type: domain.ParamNumber}}}
	div := domain.Node{
		ID:      uuid.New(),
		Name:    "div",
		Type:    "divide",
		Inputs:  []domain.Parameter{{Name: "a", Type: domain.ParamNumber, Required: true}, {Name: "b", Type: domain.ParamNumber, Required: true}},
		Outputs: []domain.Parameter{{Name: "result", Type: domain.ParamNumber}},
	}
	w := domain.Workflow{
		ID:    uuid.New(),
		Nodes: []domain.Node{a, zero, div},
		Edges: []domain.Edge{
			{Source: a.ID, SourceOutput: "value", Target: div.ID, TargetInput: "a"},
			{Source: zero.ID, SourceOutput: "value", Target: div.ID, TargetInput: "b"},
		},
	}

	exec, err := c.Run(context.Background(), RunParams{Workflow: w, OrganizationID: "org1"})
	require.NoError(t, err)
	assert.Equal(t, domain.WorkflowError, exec.Status)

	var divResult *domain.NodeExecution
	for i := range exec.Nodes {
		if exec.Nodes[i].NodeID == div.ID {
			divResult = &exec.Nodes[i]
		}
	}
	require.NotNil(t, divResult)
	assert.Equal(t, domain.NodeError, divResult.Status)
}

// Scenario: conditional branch skip — router takes onFalse, the onTrue
// consumer is skipped with conditional_branch, never upstream_failure.
func TestRun_ConditionalBranchSkip(t *testing.T) {
	c := newTestCore(t)
	src := numberNode("src", 42)
	router := domain.Node{
		ID:      uuid.New(),
		Name:    "router",
		Type:    "router",
		Config:  map[string]any{"take": false},
		Inputs:  []domain.Parameter{{Name: "value", Type: domain.ParamAny, Required: true}},
		Outputs: []domain.Parameter{{Name: "onTrue", Type: domain.ParamAny}, {Name: "onFalse", Type: domain.ParamAny}},
	}
	consumer := domain.Node{
		ID:      uuid.New(),
		Name:    "consumer",
		Type:    "const",
		Config:  map[string]any{"value": float64(1)},
		Inputs:  []domain.Parameter{{Name: "x", Type: domain.ParamAny, Required: true}},
		Outputs: []domain.Parameter{{Name: "value", Type: domain.ParamNumber}},
	}
	w := domain.Workflow{
		ID:    uuid.New(),
		Nodes: []domain.Node{src, router, consumer},
		Edges: []domain.Edge{
			{Source: src.ID, SourceOutput: "value", Target: router.ID, TargetInput: "value"},
			{Source: router.ID, SourceOutput: "onTrue", Target: consumer.ID, TargetInput: "x"},
		},
	}

	exec, err := c.Run(context.Background(), RunParams{Workflow: w, OrganizationID: "org1"})
	require.NoError(t, err)
	assert.Equal(t, domain.WorkflowCompleted, exec.Status)

	var consumerResult *domain.NodeExecution
	for i := range exec.Nodes {
		if exec.Nodes[i].NodeID == consumer.ID {
			consumerResult = &exec.Nodes[i]
		}
	}
	require.NotNil(t, consumerResult)
	assert.Equal(t, domain.NodeSkipped, consumerResult.Status)
	assert.Equal(t, domain.SkipConditionalBranch, consumerResult.SkipReason)
}

// Scenario: upstream failure cascade — a fails, b (which depends on a)
// is skipped with upstream_failure, not conditional_branch.
func TestRun_UpstreamFailureCascade(t *testing.T) {
	c := newTestCore(t)
	a := numberNode("a", 10)
	zero := domain.Node{ID: uuid.New(), Name: "zero", Type: "const", Config: map[string]any{"value": float64(0)}, Outputs: []domain.Parameter{{Name: "value", Type: domain.ParamNumber}}}
	failing := domain.Node{
		ID:      uuid.New(),
		Name:    "failing",
		Type:    "divide",
		Inputs:  []domain.Parameter{{Name: "a", Type: domain.ParamNumber, Required: true}, {Name: "b", Type: domain.ParamNumber, Required: true}},
		Outputs: []domain.Parameter{{Name: "result", Type: domain.ParamNumber}},
	}
	downstream := domain.Node{
		ID:      uuid.New(),
		Name:    "downstream",
		Type:    "const",
		Config:  map[string]any{"value": float64(1)},
		Inputs:  []domain.Parameter{{Name: "x", Type: domain.ParamNumber, Required: true}},
		Outputs: []domain.Parameter{{Name: "value", Type: domain.ParamNumber}},
	}
	w := domain.Workflow{
		ID:    uuid.New(),
		Nodes: []domain.Node{a, zero, failing, downstream},
		Edges: []domain.Edge{
			{Source: a.ID, SourceOutput: "value", Target: failing.ID, TargetInput: "a"},
			{Source: zero.ID, SourceOutput: "value", Target: failing.ID, TargetInput: "b"},
			{Source: failing.ID, SourceOutput: "result", Target: downstream.ID, TargetInput: "x"},
		},
	}

	exec, err := c.Run(context.Background(), RunParams{Workflow: w, OrganizationID: "org1"})
	require.NoError(t, err)
	assert.Equal(t, domain.WorkflowError, exec.Status)

	var downstreamResult *domain.NodeExecution
	for i := range exec.Nodes {
		if exec.Nodes[i].NodeID == downstream.ID {
			downstreamResult = &exec.Nodes[i]
		}
	}
	require.NotNil(t, downstreamResult)
	assert.Equal(t, domain.NodeSkipped, downstreamResult.Status)
	assert.Equal(t, domain.SkipUpstreamFailure, downstreamResult.SkipReason)
	assert.Contains(t, downstreamResult.BlockedBy, failing.ID)
}

// Scenario: multi-step durable node replay — running the same node twice
// under the durable seam with the same execution id must not re-invoke
// already-completed internal steps.
func TestRun_MultiStepDurableReplay(t *testing.T) {
	c := newTestCore(t)
	n := domain.Node{
		ID:      uuid.New(),
		Name:    "multi",
		Type:    "multistep",
		Outputs: []domain.Parameter{{Name: "sum", Type: domain.ParamNumber}},
	}
	w := domain.Workflow{ID: uuid.New(), Nodes: []domain.Node{n}}

	store := newCapturingStepStore()
	seam := step.NewDurable(store, "exec-fixed")

	exec1, err := c.Run(context.Background(), RunParams{Workflow: w, OrganizationID: "org1", Seam: seam})
	require.NoError(t, err)
	assert.Equal(t, domain.WorkflowCompleted, exec1.Status)
	assert.Equal(t, float64(3), exec1.Nodes[0].Outputs["sum"])

	callsBefore := store.putCalls
	exec2, err := c.Run(context.Background(), RunParams{Workflow: w, OrganizationID: "org1", Seam: step.NewDurable(store, "exec-fixed")})
	require.NoError(t, err)
	assert.Equal(t, domain.WorkflowCompleted, exec2.Status)
	assert.Equal(t, float64(3), exec2.Nodes[0].Outputs["sum"])
	// replay reused the node-level step record instead of recomputing and
	// re-persisting it
	assert.Equal(t, callsBefore, store.putCalls)
}

type capturingStepStore struct {
	records  map[string]step.StepRecord
	putCalls int
}

func newCapturingStepStore() *capturingStepStore {
	return &capturingStepStore{records: make(map[string]step.StepRecord)}
}

func (s *capturingStepStore) Get(ctx context.Context, executionID, name string) (step.StepRecord, bool, error) {
	rec, ok := s.records[executionID+"/"+name]
	return rec, ok, nil
}

func (s *capturingStepStore) Put(ctx context.Context, rec step.StepRecord) error {
	s.putCalls++
	s.records[rec.ExecutionID+"/"+rec.Name] = rec
	return nil
}
