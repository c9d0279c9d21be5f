// Package node defines the ExecutableNode contract the runtime core
// invokes, and a registry mapping a node's declared Type string to a
// factory producing one. The several hundred production node
// implementations this contract is meant to support are out of scope here;
// internal/node/builtin carries a handful of representative examples.
package node

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/fluxwell/runtime/internal/domain"
	"github.com/fluxwell/runtime/internal/runtime/step"
	"github.com/fluxwell/runtime/internal/services"
)

// ExecutionContext is what a node implementation receives: its already
// mapper-converted inputs, read-only access to the injected services, and
// a logger scoped to this node's execution.
type ExecutionContext struct {
	Context        context.Context
	NodeID         string
	NodeName       string
	Inputs         map[string]any
	Config         map[string]any
	OrgID          string
	ExecutionID    string
	Logger         zerolog.Logger

	ObjectStore  services.ObjectStore
	Credentials  services.CredentialService
	Queues       services.QueueService
	Databases    services.DatabaseService
	Datasets     services.DatasetService
}

// ExecutionOutcome is what a node implementation returns; the node
// executor translates it into a domain.NodeExecutionResult.
type ExecutionOutcome struct {
	Outputs map[string]any
	Usage   int
}

// ExecutableNode is the capability every simple node implements.
type ExecutableNode interface {
	Execute(ec ExecutionContext) (ExecutionOutcome, error)
}

// StepContext is what a multi-step node's implementation receives in
// addition to ExecutionContext: a seam-backed way to run named internal
// steps and to sleep durably.
type StepContext struct {
	ExecutionContext
	seam   step.Seam
	nodeID string
}

// DoStep runs fn once under a deterministic sub-step name; on a durable
// seam, replay returns the prior result without re-invoking fn.
func (sc StepContext) DoStep(name string, fn func(ctx context.Context) (any, error)) (any, error) {
	return sc.seam.ExecuteStep(sc.Context, step.SubStepName(sc.nodeID, name), fn)
}

// Sleep durably waits for d. Implemented as a step whose value is a
// timestamp, so replay does not re-sleep.
func (sc StepContext) Sleep(name string, d time.Duration) error {
	_, err := sc.seam.ExecuteStep(sc.Context, step.SubStepName(sc.nodeID, name), func(ctx context.Context) (any, error) {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-timer.C:
			return time.Now(), nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
	return err
}

// NewStepContext wires a seam into an ExecutionContext, producing the
// StepContext a MultiStepNode implementation receives.
func NewStepContext(ec ExecutionContext, seam step.Seam) StepContext {
	return StepContext{ExecutionContext: ec, seam: seam, nodeID: ec.NodeID}
}

// MultiStepNode is the second capability: nodes whose implementation needs
// more than one durable step internally.
type MultiStepNode interface {
	ExecuteSteps(sc StepContext) (ExecutionOutcome, error)
}

// Metadata describes a node type for discovery/documentation purposes; the
// runtime core itself never reads it.
type Metadata struct {
	Type        string
	DisplayName string
	Inputs      []domain.Parameter
	Outputs     []domain.Parameter
}

// Factory produces a fresh ExecutableNode (and, optionally, MultiStepNode)
// instance for one node type.
type Factory func() any

// Registry maps a node's declared Type to its Factory.
type Registry struct {
	factories map[string]Factory
	metadata  map[string]Metadata
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory), metadata: make(map[string]Metadata)}
}

func (r *Registry) Register(meta Metadata, factory Factory) {
	r.factories[meta.Type] = factory
	r.metadata[meta.Type] = meta
}

func (r *Registry) New(nodeType string) (any, bool) {
	f, ok := r.factories[nodeType]
	if !ok {
		return nil, false
	}
	return f(), true
}

func (r *Registry) Metadata(nodeType string) (Metadata, bool) {
	m, ok := r.metadata[nodeType]
	return m, ok
}
