// Package credit implements the Credit Service as a concurrent
// per-organization ledger backed by xsync.MapOf, so the pre-flight check and
// post-run usage recording from many simultaneous workflow runs never
// contend on a single mutex.
package credit

import (
	"context"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/fluxwell/runtime/internal/services"
)

// Ledger is a process-local, concurrency-safe CreditService.
type Ledger struct {
	balances *xsync.MapOf[string, int]
}

func NewLedger() *Ledger {
	return &Ledger{balances: xsync.NewMapOf[string, int]()}
}

// Grant sets an organization's available credit balance.
func (l *Ledger) Grant(orgID string, amount int) {
	l.balances.Store(orgID, amount)
}

func (l *Ledger) HasEnoughCredits(ctx context.Context, check services.CreditCheck) (bool, error) {
	balance, _ := l.balances.Load(check.OrgID)
	available := balance + check.Included + check.OverageLimit
	return check.Estimated <= available, nil
}

func (l *Ledger) RecordUsage(ctx context.Context, orgID string, usage int) error {
	l.balances.Compute(orgID, func(oldValue int, loaded bool) (int, bool) {
		return oldValue - usage, false
	})
	return nil
}

func (l *Ledger) Balance(orgID string) int {
	v, _ := l.balances.Load(orgID)
	return v
}
