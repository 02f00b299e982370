/*
errors.go - Centralized error types for the economy engine

PURPOSE:
  All ledger error types in one place for consistency and discoverability.
  Domain packages (powerup, submission) wrap these with their own context.

ERROR CATEGORIES:
  1. Validation errors  - bad amounts; recoverable, caller fixes input
  2. Not-found errors   - missing account; recoverable by provisioning
  3. State-conflict     - insufficient balance; recoverable after top-up
  4. Consistency errors - journal/balance drift; FATAL for the account's
                          write path until an operator reconciles

USAGE:
  if errors.Is(err, economy.ErrInsufficientBalance) {
      var ibe *economy.InsufficientBalanceError
      errors.As(err, &ibe)
      // ibe.Required, ibe.Available
  }

SEE ALSO:
  - ledger.go: Produces these errors
  - powerup/errors.go: Inventory-side taxonomy
*/
package economy

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrAccountNotFound is returned when no balance record exists for an
	// account. The raw ledger never auto-creates; use EnsureAccount.
	ErrAccountNotFound = errors.New("account not found")

	// ErrInvalidAmount is returned when a credit/debit amount is not positive.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInsufficientBalance is returned when a debit exceeds the current balance.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrAccountFrozen is returned when mutating an account whose write path
	// was halted after a detected inconsistency.
	ErrAccountFrozen = errors.New("account frozen pending reconciliation")

	// ErrConsistency indicates drift between the cached balance and the
	// journal, or a half-applied paired mutation. Never silently absorbed.
	ErrConsistency = errors.New("ledger consistency violation")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidAmountError reports a non-positive mutation amount.
type InvalidAmountError struct {
	Amount Coins
}

func (e *InvalidAmountError) Error() string {
	return fmt.Sprintf("amount must be positive, got %d", e.Amount)
}

func (e *InvalidAmountError) Unwrap() error { return ErrInvalidAmount }

// InsufficientBalanceError reports a debit that exceeds the available balance.
// The message format is part of the user-visible API contract.
type InsufficientBalanceError struct {
	AccountID AccountID
	Required  Coins
	Available Coins
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("Insufficient ML Coins. Required: %d, Available: %d",
		e.Required, e.Available)
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }

// AccountFrozenError reports a mutation attempt on a frozen account.
type AccountFrozenError struct {
	AccountID AccountID
}

func (e *AccountFrozenError) Error() string {
	return fmt.Sprintf("account %s is frozen pending reconciliation", e.AccountID)
}

func (e *AccountFrozenError) Unwrap() error { return ErrAccountFrozen }

// ConsistencyError reports journal/balance drift or a half-applied paired
// write. The affected account is frozen when this is raised.
type ConsistencyError struct {
	AccountID AccountID
	Op        string // operation that detected the drift, e.g. "audit", "purchase"
	Expected  Coins
	Actual    Coins
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("consistency violation on account %s during %s: expected %d, actual %d",
		e.AccountID, e.Op, e.Expected, e.Actual)
}

func (e *ConsistencyError) Unwrap() error { return ErrConsistency }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid or conflicting
// client input and the caller can take corrective action.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInsufficientBalance)
}

// IsNotFound returns true if the error indicates a missing account.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrAccountNotFound)
}

// IsFatal returns true for consistency violations that halt the account's
// write path. These require operator attention, not retries.
func IsFatal(err error) bool {
	return errors.Is(err, ErrConsistency) || errors.Is(err, ErrAccountFrozen)
}
