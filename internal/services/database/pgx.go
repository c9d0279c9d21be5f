// Package database implements the Database Service: arbitrary
// node-declared SQL connections via pgx, each call guarded by a circuit
// breaker so a persistently failing external database fails fast instead
// of burning every node's step timeout on every attempt.
package database

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sony/gobreaker"

	"github.com/fluxwell/runtime/internal/services"
)

// PoolResolver resolves a handle (e.g. a connection-string alias) to an
// already-established *pgxpool.Pool; a host process owns pool lifecycle.
type PoolResolver func(ctx context.Context, handle, orgID string) (*pgxpool.Pool, bool, error)

// Service is the pgx-backed DatabaseService.
type Service struct {
	resolve PoolResolver

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

func NewService(resolve PoolResolver) *Service {
	return &Service{resolve: resolve, breakers: make(map[string]*gobreaker.CircuitBreaker)}
}

func (s *Service) Resolve(ctx context.Context, dbIDOrHandle, orgID string) (services.Connection, bool, error) {
	pool, ok, err := s.resolve(ctx, dbIDOrHandle, orgID)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &connection{pool: pool, breaker: s.breakerFor(dbIDOrHandle)}, true, nil
}

func (s *Service) breakerFor(handle string) *gobreaker.CircuitBreaker {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.breakers[handle]; ok {
		return b
	}
	b := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "database:" + handle,
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	})
	s.breakers[handle] = b
	return b
}

type connection struct {
	pool    *pgxpool.Pool
	breaker *gobreaker.CircuitBreaker
}

func (c *connection) Query(ctx context.Context, sql string, params ...any) (services.Rows, error) {
	result, err := c.breaker.Execute(func() (any, error) {
		rows, err := c.pool.Query(ctx, sql, params...)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		fieldDescs := rows.FieldDescriptions()
		columns := make([]string, len(fieldDescs))
		for i, fd := range fieldDescs {
			columns[i] = string(fd.Name)
		}

		var values [][]any
		for rows.Next() {
			vals, err := rows.Values()
			if err != nil {
				return nil, err
			}
			values = append(values, vals)
		}
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return services.Rows{Columns: columns, Values: values}, nil
	})
	if err != nil {
		return services.Rows{}, fmt.Errorf("query: %w", err)
	}
	return result.(services.Rows), nil
}

func (c *connection) Execute(ctx context.Context, sql string, params ...any) (services.ExecResult, error) {
	result, err := c.breaker.Execute(func() (any, error) {
		tag, err := c.pool.Exec(ctx, sql, params...)
		if err != nil {
			return nil, err
		}
		return services.ExecResult{RowsAffected: tag.RowsAffected()}, nil
	})
	if err != nil {
		return services.ExecResult{}, fmt.Errorf("execute: %w", err)
	}
	return result.(services.ExecResult), nil
}
