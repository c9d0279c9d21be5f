package step

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxwell/runtime/internal/domain"
)

type memoryStepStore struct {
	records map[string]StepRecord
}

func newMemoryStepStore() *memoryStepStore {
	return &memoryStepStore{records: make(map[string]StepRecord)}
}

func (s *memoryStepStore) Get(ctx context.Context, executionID, name string) (StepRecord, bool, error) {
	rec, ok := s.records[executionID+"/"+name]
	return rec, ok, nil
}

func (s *memoryStepStore) Put(ctx context.Context, rec StepRecord) error {
	s.records[rec.ExecutionID+"/"+rec.Name] = rec
	return nil
}

func TestEphemeral_CallsFnDirectlyEveryTime(t *testing.T) {
	e := NewEphemeral()
	calls := 0
	fn := func(ctx context.Context) (any, error) {
		calls++
		return calls, nil
	}
	v1, err := e.ExecuteStep(context.Background(), "step-a", fn)
	require.NoError(t, err)
	v2, err := e.ExecuteStep(context.Background(), "step-a", fn)
	require.NoError(t, err)
	assert.Equal(t, 1, v1)
	assert.Equal(t, 2, v2) // no memoization: ephemeral always re-invokes
}

func TestDurable_ReplayReturnsPriorResultWithoutReinvoking(t *testing.T) {
	store := newMemoryStepStore()
	d := NewDurable(store, "exec-1")
	calls := 0
	fn := func(ctx context.Context) (any, error) {
		calls++
		return "result", nil
	}

	v1, err := d.ExecuteStep(context.Background(), "node:a", fn)
	require.NoError(t, err)
	v2, err := d.ExecuteStep(context.Background(), "node:a", fn)
	require.NoError(t, err)

	assert.Equal(t, "result", v1)
	assert.Equal(t, "result", v2)
	assert.Equal(t, 1, calls)
}

func TestDurable_DifferentExecutionsDoNotShareSteps(t *testing.T) {
	store := newMemoryStepStore()
	calls := 0
	fn := func(ctx context.Context) (any, error) {
		calls++
		return calls, nil
	}

	d1 := NewDurable(store, "exec-1")
	d2 := NewDurable(store, "exec-2")
	v1, _ := d1.ExecuteStep(context.Background(), "node:a", fn)
	v2, _ := d2.ExecuteStep(context.Background(), "node:a", fn)

	assert.Equal(t, 1, v1)
	assert.Equal(t, 2, v2)
}

func TestDurable_RetriesUpToMaxAttemptsOnFailure(t *testing.T) {
	store := newMemoryStepStore()
	d := NewDurable(store, "exec-1")
	d.Retry = RetryPolicy{MaxAttempts: 3}

	attempts := 0
	fn := func(ctx context.Context) (any, error) {
		attempts++
		return nil, errors.New("transient")
	}

	_, err := d.ExecuteStep(context.Background(), "node:a", fn)
	require.Error(t, err)
	assert.Equal(t, 3, attempts)
}

func TestDurable_SucceedsAfterTransientFailure(t *testing.T) {
	store := newMemoryStepStore()
	d := NewDurable(store, "exec-1")
	d.Retry = RetryPolicy{MaxAttempts: 3}

	attempts := 0
	fn := func(ctx context.Context) (any, error) {
		attempts++
		if attempts < 2 {
			return nil, errors.New("transient")
		}
		return "ok", nil
	}

	v, err := d.ExecuteStep(context.Background(), "node:a", fn)
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, 2, attempts)
}

func TestDurable_TimeoutProducesStepTimeoutError(t *testing.T) {
	store := newMemoryStepStore()
	d := NewDurable(store, "exec-1")
	d.Timeout = 10 * time.Millisecond

	fn := func(ctx context.Context) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	_, err := d.ExecuteStep(context.Background(), "node:a", fn)
	require.Error(t, err)
	de, ok := domain.AsDomainError(err)
	require.True(t, ok)
	assert.Equal(t, domain.ErrStepTimeout, de.Kind)
}

func TestNodeStepName_AndSubStepName(t *testing.T) {
	assert.Equal(t, "node:abc", NodeStepName("abc"))
	assert.Equal(t, "node:abc:step:fetch", SubStepName("abc", "fetch"))
}
