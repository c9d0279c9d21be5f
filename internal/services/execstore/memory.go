// Package execstore provides ExecutionStore and durable-step-store
// implementations: in-memory (ephemeral host runtime, tests) and
// Postgres-backed via bun (durable host runtime).
package execstore

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/fluxwell/runtime/internal/domain"
	"github.com/fluxwell/runtime/internal/runtime/step"
	"github.com/fluxwell/runtime/internal/services"
)

// Memory is a process-local ExecutionStore.
type Memory struct {
	mu    sync.RWMutex
	execs map[uuid.UUID]domain.WorkflowExecution
}

func NewMemory() *Memory {
	return &Memory{execs: make(map[uuid.UUID]domain.WorkflowExecution)}
}

func (m *Memory) Save(ctx context.Context, exec domain.WorkflowExecution) (domain.WorkflowExecution, error) {
	m.mu.Lock()
	m.execs[exec.ID] = exec
	m.mu.Unlock()
	return exec, nil
}

func (m *Memory) Get(ctx context.Context, id uuid.UUID, orgID string) (domain.WorkflowExecution, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	exec, ok := m.execs[id]
	if !ok || exec.OrganizationID != orgID {
		return domain.WorkflowExecution{}, false, nil
	}
	return exec, true, nil
}

func (m *Memory) List(ctx context.Context, orgID string, opts services.ExecutionListOptions) ([]domain.WorkflowExecution, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.WorkflowExecution
	for _, exec := range m.execs {
		if exec.OrganizationID == orgID {
			out = append(out, exec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	if opts.Offset > 0 && opts.Offset < len(out) {
		out = out[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(out) {
		out = out[:opts.Limit]
	}
	return out, nil
}

// MemoryStepStore is a process-local step.StepStore, kept as a distinct
// type from Memory since ExecutionStore.Get and step.StepStore.Get have
// incompatible signatures.
type MemoryStepStore struct {
	mu    sync.RWMutex
	steps map[string]step.StepRecord
}

func NewMemoryStepStore() *MemoryStepStore {
	return &MemoryStepStore{steps: make(map[string]step.StepRecord)}
}

func stepKey(executionID, name string) string { return executionID + "\x00" + name }

func (s *MemoryStepStore) Get(ctx context.Context, executionID, name string) (step.StepRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.steps[stepKey(executionID, name)]
	return rec, ok, nil
}

func (s *MemoryStepStore) Put(ctx context.Context, rec step.StepRecord) error {
	s.mu.Lock()
	s.steps[stepKey(rec.ExecutionID, rec.Name)] = rec
	s.mu.Unlock()
	return nil
}
