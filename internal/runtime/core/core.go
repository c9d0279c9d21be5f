// Package core implements the runtime core: the outer loop that validates,
// plans, runs a pre-flight credit check, drives the level-by-level
// execution loop through the durable-step seam, and persists/reports the
// final WorkflowExecution record.
package core

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fluxwell/runtime/internal/domain"
	"github.com/fluxwell/runtime/internal/runtime/nodeexec"
	"github.com/fluxwell/runtime/internal/runtime/plan"
	"github.com/fluxwell/runtime/internal/runtime/state"
	"github.com/fluxwell/runtime/internal/runtime/step"
	"github.com/fluxwell/runtime/internal/runtime/validate"
	"github.com/fluxwell/runtime/internal/services"
	"github.com/fluxwell/runtime/internal/services/monitoring"
)

// Core wires together every collaborator the Runtime Core needs. A single
// Core instance is reused across runs; per-run state lives entirely in the
// arguments/return value of Run.
type Core struct {
	Executor    *nodeexec.Executor
	Credits     services.CreditService
	Executions  services.ExecutionStore
	Monitoring  services.MonitoringService
	Metrics     *monitoring.Metrics
	Logger      zerolog.Logger

	// MaxParallelism bounds concurrent node execution within one level; 0
	// means unbounded (one goroutine per node in the level).
	MaxParallelism int
}

// RunParams is everything one invocation of the core needs beyond the
// workflow itself.
type RunParams struct {
	Workflow            domain.Workflow
	OrganizationID      string
	DeploymentID        string
	MonitoringSessionID string
	Seam                step.Seam
	TriggerPayload      any
}

// Run executes params.Workflow end to end and returns the final
// WorkflowExecution record. It never returns a Go error for in-workflow
// failures — those are represented inside the returned record's Status and
// per-node entries; a non-nil error here means the final record could not
// be saved to the Execution Store. A nil seam is not an error: Run falls
// back to the ephemeral seam.
func (c *Core) Run(ctx context.Context, params RunParams) (domain.WorkflowExecution, error) {
	executionID := uuid.New()
	startedAt := time.Now()

	base := domain.WorkflowExecution{
		ID:             executionID,
		WorkflowID:     params.Workflow.ID,
		OrganizationID: params.OrganizationID,
		DeploymentID:   params.DeploymentID,
		StartedAt:      startedAt,
	}

	// 1. Validate.
	if verrs := validate.Validate(params.Workflow); len(verrs) > 0 {
		return c.finalize(ctx, params.Workflow, base, domain.WorkflowError, joinValidationErrors(verrs), nil)
	}

	// 2. Plan.
	levels := plan.Build(params.Workflow)
	wfCtx := domain.WorkflowExecutionContext{
		Workflow:            params.Workflow,
		Levels:              levels,
		NodeOrder:           plan.FlatOrder(levels),
		OrganizationID:      params.OrganizationID,
		ExecutionID:         executionID,
		DeploymentID:        params.DeploymentID,
		MonitoringSessionID: params.MonitoringSessionID,
		TriggerPayload:      params.TriggerPayload,
	}

	// 3. Pre-flight credit check.
	if c.Credits != nil {
		estimated := 0
		for _, n := range params.Workflow.Nodes {
			estimated += n.EstimatedUsage
		}
		ok, err := c.Credits.HasEnoughCredits(ctx, services.CreditCheck{OrgID: params.OrganizationID, Estimated: estimated})
		if err != nil {
			return c.finalize(ctx, params.Workflow, base, domain.WorkflowError, err.Error(), nil)
		}
		if !ok {
			de := domain.NewDomainError(domain.ErrCreditExceeded, "organization does not have enough credits for the estimated workflow usage", nil)
			return c.finalize(ctx, params.Workflow, base, domain.WorkflowError, de.Error(), nil)
		}
	}

	// 4. Initialize empty state.
	execState := domain.NewExecutionState()

	seam := params.Seam
	if seam == nil {
		seam = step.NewEphemeral()
	}

	// 5. Level-by-level loop.
	ctx, execSpan := monitoring.StartExecutionSpan(ctx, executionID.String(), params.Workflow.ID.String())
	defer execSpan.End()

	for levelIdx, level := range levels {
		levelStart := time.Now()
		levelCtx, levelSpan := monitoring.StartLevelSpan(ctx, levelIdx, len(level))

		results := c.executeLevel(levelCtx, wfCtx, level, execState, seam)
		for _, r := range results {
			execState.ApplyNodeResult(r)
			if c.Metrics != nil {
				c.Metrics.ObserveNodeResult(r.Status)
			}
		}
		levelSpan.End()
		if c.Metrics != nil {
			c.Metrics.ObserveLevelDuration(time.Since(levelStart))
		}
		c.sendMonitoringUpdate(ctx, wfCtx, execState, base)
	}

	// 6. Terminal status.
	status := state.GetExecutionStatus(wfCtx, execState)

	// 7. Record total usage.
	if c.Credits != nil {
		_ = c.Credits.RecordUsage(ctx, params.OrganizationID, execState.TotalUsage())
	}

	return c.finalize(ctx, params.Workflow, base, status, "", execState)
}

// executeLevel fans out every node in level as an independent task,
// bounded by MaxParallelism, and waits for all to produce a result. The
// results are returned in the level's fixed declared order so the caller's
// applier runs single-threaded and deterministic.
func (c *Core) executeLevel(
	ctx context.Context,
	wfCtx domain.WorkflowExecutionContext,
	level []uuid.UUID,
	execState *domain.ExecutionState,
	seam step.Seam,
) []domain.NodeExecutionResult {
	results := make([]domain.NodeExecutionResult, len(level))

	var sem chan struct{}
	if c.MaxParallelism > 0 {
		sem = make(chan struct{}, c.MaxParallelism)
	}

	var wg sync.WaitGroup
	for i, nodeID := range level {
		n, _ := wfCtx.Workflow.NodeByID(nodeID)
		wg.Add(1)
		go func(i int, n domain.Node) {
			defer wg.Done()
			if sem != nil {
				sem <- struct{}{}
				defer func() { <-sem }()
			}
			results[i] = c.Executor.Execute(ctx, wfCtx, n, execState, seam)
		}(i, n)
	}
	wg.Wait()

	return results
}

func (c *Core) sendMonitoringUpdate(ctx context.Context, wfCtx domain.WorkflowExecutionContext, execState *domain.ExecutionState, base domain.WorkflowExecution) {
	if c.Monitoring == nil || wfCtx.MonitoringSessionID == "" {
		return
	}
	snapshot := base
	snapshot.Status = state.GetExecutionStatus(wfCtx, execState)
	snapshot.Nodes = projectNodeExecutions(wfCtx.Workflow, execState)
	snapshot.Usage = execState.TotalUsage()
	c.Monitoring.SendUpdate(ctx, wfCtx.MonitoringSessionID, snapshot)
}

func (c *Core) finalize(
	ctx context.Context,
	w domain.Workflow,
	base domain.WorkflowExecution,
	status domain.WorkflowStatus,
	topLevelError string,
	execState *domain.ExecutionState,
) (domain.WorkflowExecution, error) {
	exec := base
	exec.Status = status
	exec.Error = topLevelError
	exec.EndedAt = time.Now()

	if execState != nil {
		exec.Nodes = projectNodeExecutions(w, execState)
		exec.Usage = execState.TotalUsage()
	}

	if c.Executions != nil {
		saved, err := c.Executions.Save(ctx, exec)
		if err != nil {
			c.Logger.Error().Err(err).Str("execution_id", exec.ID.String()).Msg("failed to persist execution record")
			return exec, err
		}
		return saved, nil
	}
	return exec, nil
}

func projectNodeExecutions(w domain.Workflow, s *domain.ExecutionState) []domain.NodeExecution {
	entries := make([]domain.NodeExecution, 0, len(w.Nodes))
	for _, n := range w.Nodes {
		switch {
		case s.IsExecuted(n.ID):
			outputs, _ := s.Outputs(n.ID)
			entries = append(entries, domain.NodeExecution{
				NodeID: n.ID, Status: domain.NodeCompleted, Outputs: outputs, Usage: s.NodeUsage(n.ID),
			})
		case s.IsSkipped(n.ID):
			reason, blockedBy := s.SkipReason(n.ID)
			entries = append(entries, domain.NodeExecution{
				NodeID: n.ID, Status: domain.NodeSkipped, SkipReason: reason, BlockedBy: blockedBy,
			})
		default:
			if msg, errored := s.IsErrored(n.ID); errored {
				entries = append(entries, domain.NodeExecution{
					NodeID: n.ID, Status: domain.NodeError, Error: msg, Usage: s.NodeUsage(n.ID),
				})
			} else {
				entries = append(entries, domain.NodeExecution{NodeID: n.ID, Status: domain.NodePending})
			}
		}
	}
	return entries
}

func joinValidationErrors(errs []validate.ValidationError) string {
	msg := ""
	for i, e := range errs {
		if i > 0 {
			msg += "; "
		}
		msg += e.Error()
	}
	return msg
}
