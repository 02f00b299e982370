/*
store.go - Persistence interfaces for balances and the transaction journal

PURPOSE:
  Defines the interface between the Ledger and the database. The journal is
  append-only; the balance record is the only mutable row and only the
  Ledger writes it. Different implementations can use SQLite or in-memory
  storage.

APPEND-ONLY CONTRACT:
  - AppendTransaction(): the ONLY journal write; no Update, no Delete
  - SaveBalance(): upserts the single cached balance row per account

ATOMICITY:
  Every credit/debit is a read-modify-write over BOTH the balance row and
  the journal. TxStore.WithTx wraps the pair so that partial application
  (balance updated, entry missing, or vice versa) is structurally
  impossible. Mutations for one account are serialized by the store; see
  the SQLite implementation's transaction discipline.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: Production SQLite
  - economy/store/memory.go: In-memory for tests and dev

SEE ALSO:
  - ledger.go: The only consumer of these interfaces
*/
package economy

import "context"

// =============================================================================
// STORE - Balance + journal persistence
// =============================================================================

// Store handles persistence of balances and journal entries.
// The journal is APPEND-ONLY: no update or delete methods exist.
type Store interface {
	// GetBalance returns the balance record, or (nil, nil) if none exists.
	GetBalance(ctx context.Context, account AccountID) (*Balance, error)

	// SaveBalance upserts the balance record. Only the Ledger calls this.
	SaveBalance(ctx context.Context, balance Balance) error

	// AppendTransaction persists one journal entry. The only journal write.
	AppendTransaction(ctx context.Context, tx Transaction) error

	// LoadTransactions returns entries for an account, newest first,
	// narrowed by filter and bounded by page.
	LoadTransactions(ctx context.Context, account AccountID, filter TransactionFilter, page Page) ([]Transaction, error)

	// SumTransactions returns the signed sum and count of all journal
	// entries for an account. Used by AuditBalance.
	SumTransactions(ctx context.Context, account AccountID) (Coins, int, error)

	// GetTransactionByKey returns the journal entry carrying the given
	// idempotency key, or (nil, nil) if none does. The Ledger consults this
	// before applying a keyed mutation so a replay returns the recorded
	// entry instead of appending a duplicate.
	GetTransactionByKey(ctx context.Context, account AccountID, key string) (*Transaction, error)

	// Accounts returns every account id with a balance record.
	Accounts(ctx context.Context) ([]AccountID, error)

	// TopBalances returns balance records ordered by lifetime earned,
	// highest first.
	TopBalances(ctx context.Context, limit int) ([]Balance, error)
}

// =============================================================================
// TRANSACTIONAL STORE - Atomic read-modify-write
// =============================================================================

// TxStore wraps Store with transaction support. Every Ledger mutation runs
// inside WithTx so the balance update and journal append commit together
// or not at all. Implementations must serialize concurrent WithTx calls
// touching the same account (lost-update hazard otherwise).
type TxStore interface {
	Store

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back, otherwise committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}
