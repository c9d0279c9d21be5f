// Package nodeexec implements the node executor: gathering inputs for
// exactly one node, invoking its implementation, and producing exactly one
// NodeExecutionResult. It never mutates shared state and never panics out
// to its caller.
package nodeexec

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fluxwell/runtime/internal/domain"
	"github.com/fluxwell/runtime/internal/node"
	"github.com/fluxwell/runtime/internal/runtime/mapper"
	"github.com/fluxwell/runtime/internal/runtime/state"
	"github.com/fluxwell/runtime/internal/runtime/step"
	"github.com/fluxwell/runtime/internal/services"
	"github.com/fluxwell/runtime/internal/services/monitoring"
)

// Executor executes one node at a time against a shared, read-only set of
// collaborators.
type Executor struct {
	Mapper      *mapper.Mapper
	Registry    *node.Registry
	Credentials services.CredentialService
	Queues      services.QueueService
	Databases   services.DatabaseService
	Datasets    services.DatasetService
	Logger      zerolog.Logger
}

// nodeStepOutcome is the full externally-visible effect of one node
// execution — input gathering (parameter-mapper reads), the implementation
// call, and output conversion (parameter-mapper writes, e.g. minting a
// fresh blob-family ObjectRef) — captured as a single value so a durable
// replay's cache hit skips every one of those effects, not just the
// implementation call. JSON-tagged because a Postgres-backed StepStore
// round-trips Value through json.Marshal/Unmarshal.
type nodeStepOutcome struct {
	Skipped    bool              `json:"skipped,omitempty"`
	SkipReason domain.SkipReason `json:"skipReason,omitempty"`
	BlockedBy  []uuid.UUID       `json:"blockedBy,omitempty"`
	Outputs    map[string]any    `json:"outputs,omitempty"`
	Usage      int               `json:"usage,omitempty"`
}

// Execute gathers n's inputs from the (read-only) ExecutionState, invokes
// its implementation, and converts its outputs back to wire form — all
// inside the seam, so a durable replay's cache hit reproduces the same
// NodeExecutionResult without re-running any of it.
func (ex *Executor) Execute(
	ctx context.Context,
	wfCtx domain.WorkflowExecutionContext,
	n domain.Node,
	s *domain.ExecutionState,
	seam step.Seam,
) domain.NodeExecutionResult {
	ctx, span := monitoring.StartNodeSpan(ctx, n.ID.String(), n.Type)
	defer span.End()

	stepName := step.NodeStepName(n.ID.String())
	result, err := seam.ExecuteStep(ctx, stepName, func(stepCtx context.Context) (any, error) {
		return ex.runNode(stepCtx, wfCtx, n, s, seam)
	})
	if err != nil {
		if de, ok := domain.AsDomainError(err); ok && de.Kind == domain.ErrMissingDependency {
			return domain.Errored(n.ID, de.Error(), 0)
		}
		return domain.Errored(n.ID, err.Error(), 0)
	}

	outcome, err := decodeStepOutcome(result)
	if err != nil {
		return domain.Errored(n.ID, err.Error(), 0)
	}
	if outcome.Skipped {
		return domain.Skipped(n.ID, outcome.SkipReason, outcome.BlockedBy)
	}
	return domain.Completed(n.ID, outcome.Outputs, outcome.Usage)
}

// runNode performs the work that nodeStepOutcome captures: gather inputs,
// skip-check, dispatch to the registered implementation, convert outputs.
// It runs entirely inside the seam's wrapped closure.
func (ex *Executor) runNode(
	ctx context.Context,
	wfCtx domain.WorkflowExecutionContext,
	n domain.Node,
	s *domain.ExecutionState,
	seam step.Seam,
) (nodeStepOutcome, error) {
	inputs, missingRequired, err := ex.gatherInputs(ctx, wfCtx, n, s)
	if err != nil {
		return nodeStepOutcome{}, err
	}
	if missingRequired {
		reason, blockedBy := state.InferSkipReason(wfCtx.Workflow, s, n.ID)
		return nodeStepOutcome{Skipped: true, SkipReason: reason, BlockedBy: blockedBy}, nil
	}

	impl, ok := ex.Registry.New(n.Type)
	if !ok {
		return nodeStepOutcome{}, fmt.Errorf("no registered implementation for node type %q", n.Type)
	}

	ec := node.ExecutionContext{
		Context:     ctx,
		NodeID:      n.ID.String(),
		NodeName:    n.Name,
		Inputs:      inputs,
		Config:      n.Config,
		OrgID:       wfCtx.OrganizationID,
		ExecutionID: wfCtx.ExecutionID.String(),
		Logger:      ex.Logger.With().Str("node_id", n.ID.String()).Str("node_type", n.Type).Logger(),
		ObjectStore: ex.Mapper.ObjectStore,
		Credentials: ex.Credentials,
		Queues:      ex.Queues,
		Databases:   ex.Databases,
		Datasets:    ex.Datasets,
	}

	outcome, err := runImplementation(impl, ec, seam)
	if err != nil {
		return nodeStepOutcome{}, err
	}

	wireOutputs, err := ex.convertOutputs(ctx, n, outcome.Outputs, wfCtx)
	if err != nil {
		return nodeStepOutcome{}, err
	}

	return nodeStepOutcome{Outputs: wireOutputs, Usage: outcome.Usage}, nil
}

// decodeStepOutcome normalizes a seam result back into a nodeStepOutcome:
// the in-memory seams (Ephemeral, MemoryStepStore-backed Durable) hand the
// struct back unchanged, while a Postgres-backed StepStore round-trips it
// through JSON, yielding a map[string]any that needs re-decoding.
func decodeStepOutcome(v any) (nodeStepOutcome, error) {
	if out, ok := v.(nodeStepOutcome); ok {
		return out, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nodeStepOutcome{}, err
	}
	var out nodeStepOutcome
	if err := json.Unmarshal(raw, &out); err != nil {
		return nodeStepOutcome{}, err
	}
	return out, nil
}

func runImplementation(impl any, ec node.ExecutionContext, seam step.Seam) (outcome node.ExecutionOutcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("node implementation panicked: %v", r)
		}
	}()

	switch typed := impl.(type) {
	case node.MultiStepNode:
		return typed.ExecuteSteps(node.NewStepContext(ec, seam))
	case node.ExecutableNode:
		return typed.Execute(ec)
	default:
		return node.ExecutionOutcome{}, fmt.Errorf("registered node implementation satisfies neither ExecutableNode nor MultiStepNode")
	}
}

// gatherInputs implements the §4.5 input-gathering policy for every
// declared input of n. missingRequired is true when the node must be
// skipped rather than executed.
func (ex *Executor) gatherInputs(
	ctx context.Context,
	wfCtx domain.WorkflowExecutionContext,
	n domain.Node,
	s *domain.ExecutionState,
) (map[string]any, bool, error) {
	inputs := make(map[string]any, len(n.Inputs))

	for _, p := range n.Inputs {
		if domain.IsRuntimeServiceParam(p.Type) {
			v, err := ex.resolveServiceParam(ctx, p, n, wfCtx)
			if err != nil {
				return nil, false, err
			}
			inputs[p.Name] = v
			continue
		}

		edges := wfCtx.Workflow.EdgesInto(n.ID, p.Name)
		var contributed []any
		for _, e := range edges {
			if !s.IsExecuted(e.Source) {
				continue // upstream not executed: contributes nothing (conditional fork or not-yet-run)
			}
			raw, ok := s.Output(e.Source, e.SourceOutput)
			if !ok {
				continue // upstream ran but deliberately did not populate this output
			}
			converted, err := ex.Mapper.APIToNode(ctx, p.Type, raw)
			if err != nil {
				return nil, false, err
			}
			contributed = append(contributed, converted)
		}

		switch {
		case len(contributed) == 0 && p.HasDefault:
			inputs[p.Name] = p.Default
		case len(contributed) == 0 && p.Required:
			return nil, true, nil
		case len(contributed) == 1:
			inputs[p.Name] = contributed[0]
		case len(contributed) > 1:
			inputs[p.Name] = contributed
		default:
			// Not required, no default, no contribution: absent from inputs.
		}
	}

	return inputs, false, nil
}

func (ex *Executor) resolveServiceParam(ctx context.Context, p domain.Parameter, n domain.Node, wfCtx domain.WorkflowExecutionContext) (any, error) {
	handle, _ := n.Config[p.Name].(string)
	switch p.Type {
	case domain.ParamSecret:
		if ex.Credentials == nil {
			return nil, domain.NewDomainError(domain.ErrMissingDependency, "secret parameter requires a credential service but none was injected", nil)
		}
		v, ok, err := ex.Credentials.GetSecret(ctx, wfCtx.OrganizationID, handle)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, domain.NewDomainError(domain.ErrMissingDependency, fmt.Sprintf("secret %q not found", handle), nil)
		}
		return v, nil
	case domain.ParamIntegration:
		if ex.Credentials == nil {
			return nil, domain.NewDomainError(domain.ErrMissingDependency, "integration parameter requires a credential service but none was injected", nil)
		}
		return ex.Credentials.GetIntegration(ctx, wfCtx.OrganizationID, handle)
	case domain.ParamQueue:
		if ex.Queues == nil {
			return nil, domain.NewDomainError(domain.ErrMissingDependency, "queue parameter requires a queue service but none was injected", nil)
		}
		q, ok, err := ex.Queues.Resolve(ctx, handle, wfCtx.OrganizationID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, domain.NewDomainError(domain.ErrMissingDependency, fmt.Sprintf("queue %q not found", handle), nil)
		}
		return q, nil
	case domain.ParamDatabase:
		if ex.Databases == nil {
			return nil, domain.NewDomainError(domain.ErrMissingDependency, "database parameter requires a database service but none was injected", nil)
		}
		c, ok, err := ex.Databases.Resolve(ctx, handle, wfCtx.OrganizationID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, domain.NewDomainError(domain.ErrMissingDependency, fmt.Sprintf("database %q not found", handle), nil)
		}
		return c, nil
	case domain.ParamDataset:
		if ex.Datasets == nil {
			return nil, domain.NewDomainError(domain.ErrMissingDependency, "dataset parameter requires a dataset service but none was injected", nil)
		}
		d, ok, err := ex.Datasets.Resolve(ctx, handle, wfCtx.OrganizationID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, domain.NewDomainError(domain.ErrMissingDependency, fmt.Sprintf("dataset %q not found", handle), nil)
		}
		return d, nil
	case domain.ParamEmail:
		return handle, nil
	default:
		return nil, fmt.Errorf("unhandled runtime service parameter type %q", p.Type)
	}
}

func (ex *Executor) convertOutputs(ctx context.Context, n domain.Node, outputs map[string]any, wfCtx domain.WorkflowExecutionContext) (map[string]any, error) {
	wire := make(map[string]any, len(outputs))
	for name, value := range outputs {
		p, ok := n.OutputByName(name)
		if !ok {
			continue // implementation produced an undeclared output: ignored
		}
		converted, err := ex.Mapper.NodeToAPI(ctx, p.Type, value, wfCtx.OrganizationID, wfCtx.ExecutionID.String())
		if err != nil {
			return nil, err
		}
		wire[name] = converted
	}
	return wire, nil
}
