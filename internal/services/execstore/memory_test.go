package execstore

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxwell/runtime/internal/domain"
	"github.com/fluxwell/runtime/internal/runtime/step"
	"github.com/fluxwell/runtime/internal/services"
)

func TestMemory_SaveThenGetRoundTrips(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	exec := domain.WorkflowExecution{ID: uuid.New(), OrganizationID: "org1", Status: domain.WorkflowCompleted}

	saved, err := m.Save(ctx, exec)
	require.NoError(t, err)
	assert.Equal(t, exec.ID, saved.ID)

	got, ok, err := m.Get(ctx, exec.ID, "org1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.WorkflowCompleted, got.Status)
}

func TestMemory_GetWrongOrganizationIsNotFound(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	exec := domain.WorkflowExecution{ID: uuid.New(), OrganizationID: "org1"}
	_, err := m.Save(ctx, exec)
	require.NoError(t, err)

	_, ok, err := m.Get(ctx, exec.ID, "org2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemory_ListOrdersByStartedAtAndRespectsPaging(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	base := time.Now()
	for i := 0; i < 3; i++ {
		_, err := m.Save(ctx, domain.WorkflowExecution{
			ID: uuid.New(), OrganizationID: "org1",
			StartedAt: base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	out, err := m.List(ctx, "org1", services.ExecutionListOptions{Offset: 1, Limit: 1})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, base.Add(time.Minute).Unix(), out[0].StartedAt.Unix())
}

func TestMemoryStepStore_PutThenGetRoundTrips(t *testing.T) {
	s := NewMemoryStepStore()
	ctx := context.Background()
	rec := step.StepRecord{ExecutionID: "exec1", Name: "node:a", Value: "result"}

	require.NoError(t, s.Put(ctx, rec))
	got, ok, err := s.Get(ctx, "exec1", "node:a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "result", got.Value)
}

func TestMemoryStepStore_DifferentExecutionsAreIsolated(t *testing.T) {
	s := NewMemoryStepStore()
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, step.StepRecord{ExecutionID: "exec1", Name: "node:a", Value: 1}))

	_, ok, err := s.Get(ctx, "exec2", "node:a")
	require.NoError(t, err)
	assert.False(t, ok)
}
