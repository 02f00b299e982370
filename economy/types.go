/*
Package economy provides the virtual-currency ledger engine.

PURPOSE:
  This package contains the types and algorithms for managing learner coin
  balances. Every coin a learner earns by completing exercises or spends on
  power-ups flows through here. Balance mutations happen in exactly one
  place (the Ledger) and every mutation leaves an immutable journal entry.

KEY CONCEPTS IN THIS FILE (types.go):
  - Coins: Whole-unit currency amount (the platform has no fractional coins)
  - Balance: The per-account cached balance record with lifetime counters
  - Transaction: An immutable journal entry recording one balance change
  - TransactionKind: Why the balance changed (earned exercise, spent power-up...)

DESIGN PRINCIPLES:
  1. Immutability: Journal entries are never modified or deleted
  2. Auditability: balance = initial grant + sum of journal amounts, always
  3. Chaining: Every entry records the balance before and after itself
  4. Type Safety: AccountID/TransactionID are distinct types

USAGE:
  ledger := economy.NewLedger(store)
  res, err := ledger.Credit(ctx, "learner-1", 50, economy.KindEarnedExercise,
      economy.MutationOptions{ReferenceID: "sub-42", ReferenceType: "submission"})

SEE ALSO:
  - ledger.go: The Ledger service with credit/debit/audit operations
  - store.go: Persistence interfaces
  - errors.go: Error taxonomy
*/
package economy

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// COINS - Whole-unit virtual currency
// =============================================================================

// Coins is a signed amount of virtual currency. Balances are always
// non-negative; journal entry amounts carry sign (positive credit,
// negative debit).
type Coins int64

// InitialGrant is the balance every new account starts with. It is a global
// constant, not journaled: AuditBalance adds it when replaying the journal.
const InitialGrant Coins = 100

// =============================================================================
// IDENTIFIERS
// =============================================================================

type AccountID string
type TransactionID string

// =============================================================================
// TRANSACTION - Immutable journal entry
// =============================================================================

type TransactionKind string

const (
	KindEarnedExercise    TransactionKind = "earned_exercise"    // Reward claim after a correct submission
	KindEarnedAchievement TransactionKind = "earned_achievement" // Achievement unlock bonus
	KindEarnedStreak      TransactionKind = "earned_streak"      // Daily streak bonus
	KindSpentPowerUp      TransactionKind = "spent_powerup"      // Power-up purchase debit
	KindSpentHint         TransactionKind = "spent_hint"         // Direct hint purchase during an attempt
	KindSpentRetry        TransactionKind = "spent_retry"        // Paid retry of a graded exercise
	KindAdminAdjustment   TransactionKind = "admin_adjustment"   // Manual operator correction
	KindRefund            TransactionKind = "refund"             // Reversal of a previous debit
	KindBonus             TransactionKind = "bonus"              // Ad-hoc promotional grant
	KindWelcomeBonus      TransactionKind = "welcome_bonus"      // Registration grant beyond InitialGrant
)

// Transaction records a single balance change. Append-only: once written it
// is never updated or deleted. Corrections are new entries (KindRefund or
// KindAdminAdjustment), never edits.
type Transaction struct {
	ID             TransactionID
	AccountID      AccountID
	Amount         Coins // signed: positive for credits, negative for debits
	BalanceBefore  Coins
	BalanceAfter   Coins // invariant: BalanceAfter = BalanceBefore + Amount
	Kind           TransactionKind
	Description    string
	ReferenceID    string // e.g. the submission or power-up entry that caused this
	ReferenceType  string // "submission", "powerup", "admin", ...
	IdempotencyKey string // at most one entry per account carries a given key
	Multiplier     decimal.Decimal
	Metadata       map[string]string
	CreatedAt      time.Time
}

// =============================================================================
// BALANCE - Cached per-account state
// =============================================================================

// Balance is the one mutable record per account. It is a cache over the
// journal: Current must always equal InitialGrant plus the journal sum,
// which AuditBalance verifies. Only the Ledger writes this record.
type Balance struct {
	AccountID      AccountID
	Current        Coins
	EarnedTotal    Coins
	SpentTotal     Coins
	EarnedToday    Coins
	LastDailyReset time.Time
	Frozen         bool // set on detected inconsistency; blocks further mutation
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// =============================================================================
// QUERY TYPES
// =============================================================================

// TransactionFilter narrows ListTransactions. Zero values mean "no filter".
type TransactionFilter struct {
	Kind        TransactionKind
	ReferenceID string
	From        *time.Time
	To          *time.Time
}

// Page bounds a transaction listing. Limit <= 0 means no limit.
type Page struct {
	Limit  int
	Offset int
}

// AuditReport is the result of reconciling the cached balance against the
// journal.
type AuditReport struct {
	AccountID  AccountID
	Calculated Coins // InitialGrant + sum of journal amounts
	Actual     Coins // cached Balance.Current
	Difference Coins // Actual - Calculated
	Entries    int   // journal entries replayed
	Valid      bool  // Difference == 0
}

// DailySummary aggregates one calendar day of activity for an account.
type DailySummary struct {
	AccountID AccountID
	Day       time.Time
	Earned    Coins
	Spent     Coins
	Net       Coins
	Entries   int
}
