// Package step implements the durable-step seam: the abstraction that lets
// the same runtime core run as an ephemeral in-process call or as a
// persisted, replayable step. The core invokes Seam.ExecuteStep for every
// node execution and every internal step of a multi-step node; step names
// are deterministic so replay is correct.
package step

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	"github.com/fluxwell/runtime/internal/domain"
)

// StepFunc is the work a step performs. Its return value is what gets
// persisted (Durable) or simply returned (Ephemeral).
type StepFunc func(ctx context.Context) (any, error)

// Seam is the durable-step contract: run fn once under name and remember
// its result.
type Seam interface {
	ExecuteStep(ctx context.Context, name string, fn StepFunc) (any, error)
}

// RetryPolicy governs retries at the seam boundary only — never inside the
// node executor, matching the core's "no automatic retry policy at the
// node level" non-goal.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       bool
}

// NoRetries is the default policy: run once, never retry, matching the
// source engine's default.
var NoRetries = RetryPolicy{MaxAttempts: 1}

func (p RetryPolicy) delayFor(attempt int) time.Duration {
	if p.InitialDelay <= 0 {
		return 0
	}
	d := float64(p.InitialDelay) * math.Pow(p.Multiplier, float64(attempt-1))
	if p.MaxDelay > 0 && d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	if p.Jitter {
		d = d * (0.5 + rand.Float64()*0.5)
	}
	return time.Duration(d)
}

// Ephemeral calls fn() directly: no persistence, no retry, errors
// propagate as-is.
type Ephemeral struct{}

func NewEphemeral() *Ephemeral { return &Ephemeral{} }

func (e *Ephemeral) ExecuteStep(ctx context.Context, name string, fn StepFunc) (any, error) {
	return fn(ctx)
}

// StepRecord is one persisted step result, keyed by (executionID, name).
type StepRecord struct {
	ExecutionID string
	Name        string
	Value       any
	Err         string
}

// StepStore is the minimal persistence contract the Durable seam needs:
// get-or-create semantics on a step name, keyed per execution so replaying
// an execution from scratch reuses already-completed steps without
// re-invoking fn.
type StepStore interface {
	Get(ctx context.Context, executionID, name string) (StepRecord, bool, error)
	Put(ctx context.Context, rec StepRecord) error
}

// Durable registers fn under name with a StepStore-backed engine: on
// replay the same name yields the same value without re-executing, and a
// configured timeout + retry policy apply.
type Durable struct {
	Store       StepStore
	ExecutionID string
	Timeout     time.Duration
	Retry       RetryPolicy
}

const defaultStepTimeout = 10 * time.Minute

func NewDurable(store StepStore, executionID string) *Durable {
	return &Durable{Store: store, ExecutionID: executionID, Timeout: defaultStepTimeout, Retry: NoRetries}
}

func (d *Durable) ExecuteStep(ctx context.Context, name string, fn StepFunc) (any, error) {
	if rec, ok, err := d.Store.Get(ctx, d.ExecutionID, name); err != nil {
		return nil, err
	} else if ok {
		if rec.Err != "" {
			return nil, domain.NewDomainError(domain.ErrNode, rec.Err, nil)
		}
		return rec.Value, nil
	}

	timeout := d.Timeout
	if timeout <= 0 {
		timeout = defaultStepTimeout
	}
	policy := d.Retry
	if policy.MaxAttempts <= 0 {
		policy = NoRetries
	}

	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if attempt > 1 {
			time.Sleep(policy.delayFor(attempt))
		}

		stepCtx, cancel := context.WithTimeout(ctx, timeout)
		value, err := fn(stepCtx)
		timedOut := errors.Is(stepCtx.Err(), context.DeadlineExceeded)
		cancel()

		if timedOut {
			err = domain.NewDomainError(domain.ErrStepTimeout, "step exceeded its configured timeout", err)
		}

		if err == nil {
			_ = d.Store.Put(ctx, StepRecord{ExecutionID: d.ExecutionID, Name: name, Value: value})
			return value, nil
		}
		lastErr = err
	}

	_ = d.Store.Put(ctx, StepRecord{ExecutionID: d.ExecutionID, Name: name, Err: lastErr.Error()})
	return nil, lastErr
}

// NodeStepName returns the deterministic step name for a node execution.
func NodeStepName(nodeID string) string { return "node:" + nodeID }

// SubStepName returns the deterministic step name for a named internal
// step of a multi-step node.
func SubStepName(nodeID, stepName string) string { return "node:" + nodeID + ":step:" + stepName }
