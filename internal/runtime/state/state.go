// Package state implements the execution state queries: derived workflow
// status and per-node skip classification. The mutable state itself
// (domain.ExecutionState) lives in the domain package since it is part of
// the core's shared vocabulary; this package only adds the read-side logic
// that the spec keeps derived rather than stored.
package state

import (
	"github.com/google/uuid"

	"github.com/fluxwell/runtime/internal/domain"
)

// GetExecutionStatus is the single source of truth for a run's terminal
// (or in-flight) status — never stored, always computed on demand.
func GetExecutionStatus(ctx domain.WorkflowExecutionContext, s *domain.ExecutionState) domain.WorkflowStatus {
	for _, n := range ctx.Workflow.Nodes {
		if !s.IsExecuted(n.ID) && !s.IsSkipped(n.ID) {
			if _, errored := s.IsErrored(n.ID); !errored {
				return domain.WorkflowExecuting
			}
		}
	}

	hasNodeError := false
	for _, n := range ctx.Workflow.Nodes {
		if _, errored := s.IsErrored(n.ID); errored {
			hasNodeError = true
			break
		}
	}
	if hasNodeError {
		return domain.WorkflowError
	}

	for _, id := range s.SkippedNodes() {
		reason, _ := s.SkipReason(id)
		if reason == domain.SkipUpstreamFailure {
			return domain.WorkflowError
		}
	}

	return domain.WorkflowCompleted
}

// InferSkipReason walks nodeID's inbound edges and classifies why it was
// skipped: upstream_failure dominates over conditional_branch.
func InferSkipReason(w domain.Workflow, s *domain.ExecutionState, nodeID uuid.UUID) (domain.SkipReason, []uuid.UUID) {
	inbound := w.InboundEdges(nodeID)

	var failureBlockers []uuid.UUID
	var conditionalBlocker bool

	for _, e := range inbound {
		if _, errored := s.IsErrored(e.Source); errored {
			failureBlockers = append(failureBlockers, e.Source)
			continue
		}
		if s.IsSkipped(e.Source) {
			reason, blockedBy := s.SkipReason(e.Source)
			if reason == domain.SkipUpstreamFailure {
				failureBlockers = append(failureBlockers, blockedBy...)
				if len(blockedBy) == 0 {
					failureBlockers = append(failureBlockers, e.Source)
				}
			} else {
				conditionalBlocker = true
			}
			continue
		}
		if s.IsExecuted(e.Source) {
			if _, ok := s.Output(e.Source, e.SourceOutput); !ok {
				conditionalBlocker = true
			}
			continue
		}
		// Upstream not yet resolved at all: ill-formed for a terminal skip
		// classification, but don't contribute a blocker either way.
	}

	if len(failureBlockers) > 0 {
		return domain.SkipUpstreamFailure, dedupe(failureBlockers)
	}
	if conditionalBlocker {
		return domain.SkipConditionalBranch, nil
	}
	// Conservative default for an ill-formed case that should not occur for
	// a well-formed skip.
	return domain.SkipUpstreamFailure, nil
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
