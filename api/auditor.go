/*
auditor.go - Periodic balance audit sweep

PURPOSE:
  Periodically replays every account's journal against its cached balance
  and freezes any account that drifted. This is the background safety net
  behind the per-request audit endpoint: drift caused by a bug or a
  half-applied write gets caught within one sweep interval instead of
  lingering until an operator looks.

DESIGN:
  - Runs a background goroutine with a configurable sweep interval
  - Sweeps immediately on start, then on every tick
  - A drifted account is frozen by AuditBalance itself; the auditor only
    logs and counts

USAGE:
  auditor := NewBalanceAuditor(ledger)
  auditor.Start()
  // ... later
  auditor.Stop()

SEE ALSO:
  - economy/ledger.go: AuditBalance and the freeze semantics
  - handlers.go: AuditBalance endpoint (manual audit)
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/gamilit/economy-engine/economy"
)

// auditLister is the slice of the store the auditor needs.
type auditLister interface {
	Accounts(ctx context.Context) ([]economy.AccountID, error)
}

// BalanceAuditor sweeps all accounts through AuditBalance on a timer.
type BalanceAuditor struct {
	Ledger        *economy.Ledger
	Accounts      auditLister
	SweepInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewBalanceAuditor creates an auditor with a one-hour default interval.
func NewBalanceAuditor(ledger *economy.Ledger, accounts auditLister) *BalanceAuditor {
	return &BalanceAuditor{
		Ledger:        ledger,
		Accounts:      accounts,
		SweepInterval: 1 * time.Hour,
		Enabled:       true,
		stop:          make(chan bool),
	}
}

// Start begins the sweep loop.
func (a *BalanceAuditor) Start() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.Enabled {
		log.Println("[Auditor] Disabled, not starting")
		return
	}

	a.ticker = time.NewTicker(a.SweepInterval)
	a.wg.Add(1)

	go a.run()

	log.Printf("[Auditor] Started with sweep interval: %v", a.SweepInterval)
}

// Stop stops the sweep loop.
func (a *BalanceAuditor) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.ticker != nil {
		a.ticker.Stop()
		close(a.stop)
		a.wg.Wait()
		log.Println("[Auditor] Stopped")
	}
}

func (a *BalanceAuditor) run() {
	defer a.wg.Done()

	// Sweep immediately on start
	a.sweep()

	for {
		select {
		case <-a.ticker.C:
			a.sweep()
		case <-a.stop:
			return
		}
	}
}

func (a *BalanceAuditor) sweep() {
	ctx := context.Background()

	accounts, err := a.Accounts.Accounts(ctx)
	if err != nil {
		log.Printf("[Auditor] Error listing accounts: %v", err)
		return
	}

	checked := 0
	drifted := 0

	for _, account := range accounts {
		report, err := a.Ledger.AuditBalance(ctx, account)
		if err != nil {
			log.Printf("[Auditor] Error auditing account %s: %v", account, err)
			continue
		}
		checked++

		if !report.Valid {
			drifted++
			auditFailures.Inc()
			log.Printf("[Auditor] CRITICAL: account %s drifted by %d coins (calculated %d, actual %d); account frozen",
				account, report.Difference, report.Calculated, report.Actual)
		}
	}

	if drifted > 0 {
		log.Printf("[Auditor] Sweep completed: %d checked, %d drifted", checked, drifted)
	}
}

// RunNow triggers an immediate sweep (for testing/admin).
func (a *BalanceAuditor) RunNow() {
	a.sweep()
}
