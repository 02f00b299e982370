/*
ledger.go - The coin ledger service

PURPOSE:
  The Ledger is the sole owner of account balances and the journal. Every
  coin earned or spent anywhere in the platform goes through Credit or
  Debit here. Nothing else may write a balance.

CRITICAL INVARIANTS:
  1. Balance.Current == InitialGrant + sum(journal amounts), always
  2. Every entry chains: BalanceAfter == BalanceBefore + Amount
  3. Credit/Debit are atomic read-modify-writes under WithTx
  4. Frozen accounts reject all mutation until reconciled

DAILY COUNTER:
  EarnedToday accumulates credits and resets lazily: the first credit more
  than 24 hours after LastDailyReset zeroes the counter before adding.

MULTIPLIERS:
  A credit may carry a multiplier (event bonuses, difficulty scaling). The
  credited amount is floor(amount * multiplier), computed with decimals to
  avoid float drift.

CONSISTENCY:
  AuditBalance replays the journal and compares against the cached balance.
  Any drift freezes the account: this is a fatal condition for that
  account's write path, surfaced to operators, never absorbed. Reconcile
  re-audits and unfreezes only once journal and balance agree again.

SEE ALSO:
  - store.go: Persistence interfaces
  - errors.go: Error taxonomy
  - powerup/service.go: Pairs Debit with inventory mutation
  - submission/workflow.go: Pairs Credit with XP awards
*/
package economy

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// LEDGER SERVICE
// =============================================================================

// Ledger owns all balance mutation. Construct with NewLedger and inject it
// where coins are earned or spent; do not reach for a package-level
// instance, there is none.
type Ledger struct {
	store TxStore
	now   func() time.Time
}

// NewLedger creates a ledger over the given transactional store.
func NewLedger(store TxStore) *Ledger {
	return &Ledger{store: store, now: time.Now}
}

// NewLedgerWithClock creates a ledger with an injected clock. Tests use
// this to exercise the daily-counter reset without sleeping.
func NewLedgerWithClock(store TxStore, now func() time.Time) *Ledger {
	return &Ledger{store: store, now: now}
}

// MutationOptions carries the optional fields of a credit or debit.
type MutationOptions struct {
	Description   string
	ReferenceID   string
	ReferenceType string

	// IdempotencyKey makes the mutation replay-safe: same key = same
	// transaction. A retry carrying a key the journal already holds returns
	// the recorded entry without touching the balance again. Callers that
	// pair a ledger mutation with a write to another store (the reward
	// claim) use this so a retry after a partial failure cannot apply the
	// coin movement twice.
	IdempotencyKey string

	Multiplier *decimal.Decimal // credits only; floor(amount * multiplier)
	Metadata   map[string]string
}

// MutationResult is returned by Credit and Debit.
type MutationResult struct {
	Balance     Balance
	Transaction Transaction
	Replayed    bool // true when an idempotency key matched a recorded entry
}

// =============================================================================
// READS
// =============================================================================

// GetBalance returns the balance record. Unlike the grading flow, the raw
// ledger does NOT lazily provision: a missing account is ErrAccountNotFound.
func (l *Ledger) GetBalance(ctx context.Context, account AccountID) (*Balance, error) {
	bal, err := l.store.GetBalance(ctx, account)
	if err != nil {
		return nil, err
	}
	if bal == nil {
		return nil, fmt.Errorf("account %s: %w", account, ErrAccountNotFound)
	}
	return bal, nil
}

// ListTransactions returns journal entries newest first.
func (l *Ledger) ListTransactions(ctx context.Context, account AccountID, filter TransactionFilter, page Page) ([]Transaction, error) {
	return l.store.LoadTransactions(ctx, account, filter, page)
}

// TopEarners returns accounts ordered by lifetime earned coins.
func (l *Ledger) TopEarners(ctx context.Context, limit int) ([]Balance, error) {
	if limit <= 0 {
		limit = 10
	}
	return l.store.TopBalances(ctx, limit)
}

// DailySummary aggregates earned/spent over one calendar day (UTC).
func (l *Ledger) DailySummary(ctx context.Context, account AccountID, day time.Time) (*DailySummary, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	txs, err := l.store.LoadTransactions(ctx, account,
		TransactionFilter{From: &start, To: &end}, Page{})
	if err != nil {
		return nil, err
	}

	summary := &DailySummary{AccountID: account, Day: start, Entries: len(txs)}
	for _, tx := range txs {
		if tx.Amount > 0 {
			summary.Earned += tx.Amount
		} else {
			summary.Spent += -tx.Amount
		}
	}
	summary.Net = summary.Earned - summary.Spent
	return summary, nil
}

// =============================================================================
// PROVISIONING
// =============================================================================

// EnsureAccount returns the balance record, creating it at InitialGrant if
// absent. The grading integration calls this before the first credit so a
// learner's first submission never fails on a missing account.
func (l *Ledger) EnsureAccount(ctx context.Context, account AccountID) (*Balance, error) {
	var out *Balance
	err := l.store.WithTx(ctx, func(s Store) error {
		bal, err := s.GetBalance(ctx, account)
		if err != nil {
			return err
		}
		if bal != nil {
			out = bal
			return nil
		}

		now := l.now().UTC()
		fresh := Balance{
			AccountID:      account,
			Current:        InitialGrant,
			LastDailyReset: now,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := s.SaveBalance(ctx, fresh); err != nil {
			return err
		}
		out = &fresh
		return nil
	})
	return out, err
}

// =============================================================================
// MUTATIONS
// =============================================================================

// Credit adds coins to an account. The balance update and the journal entry
// commit atomically; partial application cannot happen. A credit carrying an
// idempotency key already present in the journal is a replay: the recorded
// transaction is returned and nothing is applied.
func (l *Ledger) Credit(ctx context.Context, account AccountID, amount Coins, kind TransactionKind, opts MutationOptions) (*MutationResult, error) {
	if amount <= 0 {
		return nil, &InvalidAmountError{Amount: amount}
	}

	var result *MutationResult
	err := l.store.WithTx(ctx, func(s Store) error {
		if replay, err := l.checkReplay(ctx, s, account, opts.IdempotencyKey); err != nil || replay != nil {
			result = replay
			return err
		}

		bal, err := l.loadMutable(ctx, s, account)
		if err != nil {
			return err
		}

		now := l.now().UTC()

		final := amount
		multiplier := decimal.NewFromInt(1)
		if opts.Multiplier != nil {
			multiplier = *opts.Multiplier
			final = Coins(decimal.NewFromInt(int64(amount)).Mul(multiplier).Floor().IntPart())
			if final < 0 {
				return &InvalidAmountError{Amount: final}
			}
		}

		// Lazy daily reset: first credit after a 24h gap zeroes the counter.
		if now.Sub(bal.LastDailyReset) >= 24*time.Hour {
			bal.EarnedToday = 0
			bal.LastDailyReset = now
		}

		before := bal.Current
		bal.Current = before + final
		bal.EarnedTotal += final
		bal.EarnedToday += final
		bal.UpdatedAt = now

		tx := Transaction{
			ID:             TransactionID(uuid.NewString()),
			AccountID:      account,
			Amount:         final,
			BalanceBefore:  before,
			BalanceAfter:   bal.Current,
			Kind:           kind,
			Description:    opts.Description,
			ReferenceID:    opts.ReferenceID,
			ReferenceType:  opts.ReferenceType,
			IdempotencyKey: opts.IdempotencyKey,
			Multiplier:     multiplier,
			Metadata:       opts.Metadata,
			CreatedAt:      now,
		}

		if err := s.AppendTransaction(ctx, tx); err != nil {
			return err
		}
		if err := s.SaveBalance(ctx, *bal); err != nil {
			return err
		}

		result = &MutationResult{Balance: *bal, Transaction: tx}
		return nil
	})
	return result, err
}

// Debit removes coins from an account. Fails with InsufficientBalanceError
// when the amount exceeds the current balance; the balance never goes
// negative. Idempotency keys replay the same way as in Credit.
func (l *Ledger) Debit(ctx context.Context, account AccountID, amount Coins, kind TransactionKind, opts MutationOptions) (*MutationResult, error) {
	if amount <= 0 {
		return nil, &InvalidAmountError{Amount: amount}
	}

	var result *MutationResult
	err := l.store.WithTx(ctx, func(s Store) error {
		if replay, err := l.checkReplay(ctx, s, account, opts.IdempotencyKey); err != nil || replay != nil {
			result = replay
			return err
		}

		bal, err := l.loadMutable(ctx, s, account)
		if err != nil {
			return err
		}

		if amount > bal.Current {
			return &InsufficientBalanceError{
				AccountID: account,
				Required:  amount,
				Available: bal.Current,
			}
		}

		now := l.now().UTC()
		before := bal.Current
		bal.Current = before - amount
		bal.SpentTotal += amount
		bal.UpdatedAt = now

		tx := Transaction{
			ID:             TransactionID(uuid.NewString()),
			AccountID:      account,
			Amount:         -amount,
			BalanceBefore:  before,
			BalanceAfter:   bal.Current,
			Kind:           kind,
			Description:    opts.Description,
			ReferenceID:    opts.ReferenceID,
			ReferenceType:  opts.ReferenceType,
			IdempotencyKey: opts.IdempotencyKey,
			Multiplier:     decimal.NewFromInt(1),
			Metadata:       opts.Metadata,
			CreatedAt:      now,
		}

		if err := s.AppendTransaction(ctx, tx); err != nil {
			return err
		}
		if err := s.SaveBalance(ctx, *bal); err != nil {
			return err
		}

		result = &MutationResult{Balance: *bal, Transaction: tx}
		return nil
	})
	return result, err
}

// checkReplay returns the recorded mutation when the key is already in the
// journal, or (nil, nil) when the mutation should proceed. Runs before the
// frozen gate: replaying a committed mutation is a read, so a retry still
// completes even if the account froze in between.
func (l *Ledger) checkReplay(ctx context.Context, s Store, account AccountID, key string) (*MutationResult, error) {
	if key == "" {
		return nil, nil
	}
	prior, err := s.GetTransactionByKey(ctx, account, key)
	if err != nil {
		return nil, err
	}
	if prior == nil {
		return nil, nil
	}
	bal, err := s.GetBalance(ctx, account)
	if err != nil {
		return nil, err
	}
	if bal == nil {
		return nil, fmt.Errorf("account %s: %w", account, ErrAccountNotFound)
	}
	return &MutationResult{Balance: *bal, Transaction: *prior, Replayed: true}, nil
}

// loadMutable fetches a balance for mutation, enforcing existence and the
// frozen gate.
func (l *Ledger) loadMutable(ctx context.Context, s Store, account AccountID) (*Balance, error) {
	bal, err := s.GetBalance(ctx, account)
	if err != nil {
		return nil, err
	}
	if bal == nil {
		return nil, fmt.Errorf("account %s: %w", account, ErrAccountNotFound)
	}
	if bal.Frozen {
		return nil, &AccountFrozenError{AccountID: account}
	}
	return bal, nil
}

// =============================================================================
// AUDIT & RECONCILIATION
// =============================================================================

// AuditBalance replays the journal and compares against the cached balance.
// Drift freezes the account: further credits/debits fail until Reconcile
// succeeds. The report is returned either way.
func (l *Ledger) AuditBalance(ctx context.Context, account AccountID) (*AuditReport, error) {
	var report *AuditReport
	err := l.store.WithTx(ctx, func(s Store) error {
		bal, err := s.GetBalance(ctx, account)
		if err != nil {
			return err
		}
		if bal == nil {
			return fmt.Errorf("account %s: %w", account, ErrAccountNotFound)
		}

		sum, entries, err := s.SumTransactions(ctx, account)
		if err != nil {
			return err
		}

		calculated := InitialGrant + sum
		report = &AuditReport{
			AccountID:  account,
			Calculated: calculated,
			Actual:     bal.Current,
			Difference: bal.Current - calculated,
			Entries:    entries,
			Valid:      bal.Current == calculated,
		}

		if !report.Valid && !bal.Frozen {
			bal.Frozen = true
			bal.UpdatedAt = l.now().UTC()
			return s.SaveBalance(ctx, *bal)
		}
		return nil
	})
	return report, err
}

// Freeze halts the account's write path. Called by collaborators (e.g. the
// power-up purchase flow) when they detect a half-applied paired mutation.
func (l *Ledger) Freeze(ctx context.Context, account AccountID) error {
	return l.store.WithTx(ctx, func(s Store) error {
		bal, err := s.GetBalance(ctx, account)
		if err != nil {
			return err
		}
		if bal == nil {
			return fmt.Errorf("account %s: %w", account, ErrAccountNotFound)
		}
		if bal.Frozen {
			return nil
		}
		bal.Frozen = true
		bal.UpdatedAt = l.now().UTC()
		return s.SaveBalance(ctx, *bal)
	})
}

// Reconcile re-audits a frozen account and unfreezes it only when the
// journal and cached balance agree again (after operator correction via
// admin adjustments).
func (l *Ledger) Reconcile(ctx context.Context, account AccountID) (*AuditReport, error) {
	var report *AuditReport
	err := l.store.WithTx(ctx, func(s Store) error {
		bal, err := s.GetBalance(ctx, account)
		if err != nil {
			return err
		}
		if bal == nil {
			return fmt.Errorf("account %s: %w", account, ErrAccountNotFound)
		}

		sum, entries, err := s.SumTransactions(ctx, account)
		if err != nil {
			return err
		}

		calculated := InitialGrant + sum
		report = &AuditReport{
			AccountID:  account,
			Calculated: calculated,
			Actual:     bal.Current,
			Difference: bal.Current - calculated,
			Entries:    entries,
			Valid:      bal.Current == calculated,
		}

		if report.Valid && bal.Frozen {
			bal.Frozen = false
			bal.UpdatedAt = l.now().UTC()
			return s.SaveBalance(ctx, *bal)
		}
		return nil
	})
	return report, err
}
