/*
Package sqlite provides the SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements all persistence interfaces behind one Store. In production the
  same patterns apply to PostgreSQL - only minor SQL dialect differences.

INTERFACES IMPLEMENTED:
  economy.Store / economy.TxStore: Balance rows plus the coin journal
  powerup.InventoryStore:          Inventories plus their purchase/use journal
  submission.Store:                Submission rows
  submission.ExerciseStore:        The exercise catalog
  stats.Store:                     The per-learner XP aggregate

APPEND-ONLY ENFORCEMENT:
  The coin journal and the inventory journal accept INSERTs only:
  - No UPDATE statements on coin_transactions or inventory_entries
  - Corrections are new entries (refund, admin_adjustment), never edits

KEY TABLES:
  balances:          One mutable cached balance row per account
  coin_transactions: Immutable journal of every balance change
  inventories:       One power-up inventory row per learner (slots as JSON)
  inventory_entries: Immutable purchase/use journal
  submissions:       One row per (learner, exercise) attempt
  exercises:         The exercise catalog with answer keys
  learner_stats:     XP aggregate
  learners:          Learner profile records

CONCURRENCY:
  Uses sync.RWMutex for thread-safety on top of SQLite's single-writer
  model. WithTx holds the write lock for the whole read-modify-write, which
  is what serializes concurrent mutations of the same account.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/economy.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  ledger := economy.NewLedger(store)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - economy/store.go: Interface definitions and the atomicity contract
  - economy/store/memory.go: In-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/gamilit/economy-engine/economy"
	"github.com/gamilit/economy-engine/powerup"
	"github.com/gamilit/economy-engine/stats"
	"github.com/gamilit/economy-engine/submission"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Balances (one mutable cached row per account)
	CREATE TABLE IF NOT EXISTS balances (
		account_id TEXT PRIMARY KEY,
		current INTEGER NOT NULL,
		earned_total INTEGER NOT NULL DEFAULT 0,
		spent_total INTEGER NOT NULL DEFAULT 0,
		earned_today INTEGER NOT NULL DEFAULT 0,
		last_daily_reset TEXT NOT NULL,
		frozen BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_balances_earned_total
		ON balances(earned_total DESC);

	-- Coin transactions (append-only journal)
	CREATE TABLE IF NOT EXISTS coin_transactions (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL,
		amount INTEGER NOT NULL,
		balance_before INTEGER NOT NULL,
		balance_after INTEGER NOT NULL,
		kind TEXT NOT NULL,
		description TEXT,
		reference_id TEXT,
		reference_type TEXT,
		idempotency_key TEXT,
		multiplier TEXT NOT NULL DEFAULT '1',
		metadata_json TEXT,
		created_at TEXT NOT NULL
	);

	-- Composite index for account listings (hot path)
	CREATE INDEX IF NOT EXISTS idx_coin_tx_account_created
		ON coin_transactions(account_id, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_coin_tx_kind
		ON coin_transactions(kind);
	CREATE INDEX IF NOT EXISTS idx_coin_tx_reference
		ON coin_transactions(reference_id) WHERE reference_id IS NOT NULL;
	CREATE UNIQUE INDEX IF NOT EXISTS idx_coin_tx_idempotency
		ON coin_transactions(account_id, idempotency_key)
		WHERE idempotency_key IS NOT NULL;

	-- Power-up inventories (slots serialized; the Type enum is closed so the
	-- JSON shape is stable)
	CREATE TABLE IF NOT EXISTS inventories (
		account_id TEXT PRIMARY KEY,
		slots_json TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Inventory journal (append-only)
	CREATE TABLE IF NOT EXISTS inventory_entries (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		powerup_type TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		cost INTEGER NOT NULL DEFAULT 0,
		exercise_ref TEXT,
		note TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_inventory_entries_account
		ON inventory_entries(account_id, created_at DESC);

	-- Submissions
	CREATE TABLE IF NOT EXISTS submissions (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL,
		exercise_id TEXT NOT NULL,
		answer_json TEXT,
		score INTEGER NOT NULL DEFAULT 0,
		max_score INTEGER NOT NULL DEFAULT 0,
		is_correct BOOLEAN NOT NULL DEFAULT FALSE,
		status TEXT NOT NULL,
		reward_state TEXT NOT NULL,
		hints_used INTEGER NOT NULL DEFAULT 0,
		powerups_used_json TEXT,
		coins_spent_powerups INTEGER NOT NULL DEFAULT 0,
		attempt INTEGER NOT NULL DEFAULT 1,
		feedback TEXT,
		oracle_audit_id TEXT,
		xp_awarded INTEGER NOT NULL DEFAULT 0,
		coins_awarded INTEGER NOT NULL DEFAULT 0,
		submitted_at TEXT NOT NULL,
		graded_at TEXT,
		reviewed_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_submissions_account
		ON submissions(account_id, submitted_at DESC);
	CREATE INDEX IF NOT EXISTS idx_submissions_account_exercise
		ON submissions(account_id, exercise_id, submitted_at DESC);
	CREATE INDEX IF NOT EXISTS idx_submissions_status
		ON submissions(status);

	-- Exercise catalog
	CREATE TABLE IF NOT EXISTS exercises (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		exercise_type TEXT NOT NULL,
		max_score INTEGER NOT NULL,
		answer_key_json TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_exercises_type
		ON exercises(exercise_type);

	-- XP aggregate
	CREATE TABLE IF NOT EXISTS learner_stats (
		account_id TEXT PRIMARY KEY,
		total_xp INTEGER NOT NULL DEFAULT 0,
		exercises_completed INTEGER NOT NULL DEFAULT 0,
		updated_at TEXT NOT NULL
	);

	-- Learner profiles
	CREATE TABLE IF NOT EXISTS learners (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT,
		grade_level TEXT,
		created_at TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// dbtx abstracts *sql.DB and *sql.Tx so the row-level helpers can serve
// both plain calls and WithTx calls.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// BALANCE + COIN JOURNAL (economy.Store interface)
// =============================================================================

// GetBalance returns the cached balance row, or (nil, nil) if absent.
func (s *Store) GetBalance(ctx context.Context, account economy.AccountID) (*economy.Balance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getBalance(ctx, s.db, account)
}

func getBalance(ctx context.Context, db dbtx, account economy.AccountID) (*economy.Balance, error) {
	var (
		b                               economy.Balance
		lastReset, createdAt, updatedAt string
	)

	err := db.QueryRowContext(ctx,
		`SELECT account_id, current, earned_total, spent_total, earned_today,
		        last_daily_reset, frozen, created_at, updated_at
		 FROM balances WHERE account_id = ?`,
		account,
	).Scan(&b.AccountID, &b.Current, &b.EarnedTotal, &b.SpentTotal, &b.EarnedToday,
		&lastReset, &b.Frozen, &createdAt, &updatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load balance: %w", err)
	}

	b.LastDailyReset, _ = time.Parse(time.RFC3339, lastReset)
	b.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	b.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &b, nil
}

// SaveBalance upserts the balance row.
func (s *Store) SaveBalance(ctx context.Context, balance economy.Balance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveBalance(ctx, s.db, balance)
}

func saveBalance(ctx context.Context, db dbtx, b economy.Balance) error {
	query := `
		INSERT INTO balances (account_id, current, earned_total, spent_total, earned_today,
			last_daily_reset, frozen, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(account_id) DO UPDATE SET
			current = excluded.current,
			earned_total = excluded.earned_total,
			spent_total = excluded.spent_total,
			earned_today = excluded.earned_today,
			last_daily_reset = excluded.last_daily_reset,
			frozen = excluded.frozen,
			updated_at = excluded.updated_at
	`

	_, err := db.ExecContext(ctx, query,
		b.AccountID, b.Current, b.EarnedTotal, b.SpentTotal, b.EarnedToday,
		b.LastDailyReset.UTC().Format(time.RFC3339),
		b.Frozen,
		b.CreatedAt.UTC().Format(time.RFC3339),
		b.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save balance: %w", err)
	}
	return nil
}

// AppendTransaction adds one journal entry. The only journal write.
func (s *Store) AppendTransaction(ctx context.Context, tx economy.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendTransaction(ctx, s.db, tx)
}

func appendTransaction(ctx context.Context, db dbtx, tx economy.Transaction) error {
	metadataJSON, _ := json.Marshal(tx.Metadata)

	multiplier := "1"
	if !tx.Multiplier.IsZero() {
		multiplier = tx.Multiplier.String()
	}

	query := `
		INSERT INTO coin_transactions
		(id, account_id, amount, balance_before, balance_after, kind,
		 description, reference_id, reference_type, idempotency_key,
		 multiplier, metadata_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := db.ExecContext(ctx, query,
		tx.ID,
		tx.AccountID,
		tx.Amount,
		tx.BalanceBefore,
		tx.BalanceAfter,
		tx.Kind,
		tx.Description,
		nullString(tx.ReferenceID),
		nullString(tx.ReferenceType),
		nullString(tx.IdempotencyKey),
		multiplier,
		string(metadataJSON),
		tx.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to append transaction: %w", err)
	}
	return nil
}

// LoadTransactions returns journal entries for an account, newest first.
func (s *Store) LoadTransactions(ctx context.Context, account economy.AccountID, filter economy.TransactionFilter, page economy.Page) ([]economy.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return loadTransactions(ctx, s.db, account, filter, page)
}

func loadTransactions(ctx context.Context, db dbtx, account economy.AccountID, filter economy.TransactionFilter, page economy.Page) ([]economy.Transaction, error) {
	var sb strings.Builder
	sb.WriteString(`
		SELECT id, account_id, amount, balance_before, balance_after, kind,
		       description, reference_id, reference_type, idempotency_key,
		       multiplier, metadata_json, created_at
		FROM coin_transactions
		WHERE account_id = ?`)
	args := []any{account}

	if filter.Kind != "" {
		sb.WriteString(" AND kind = ?")
		args = append(args, filter.Kind)
	}
	if filter.ReferenceID != "" {
		sb.WriteString(" AND reference_id = ?")
		args = append(args, filter.ReferenceID)
	}
	if filter.From != nil {
		sb.WriteString(" AND created_at >= ?")
		args = append(args, filter.From.UTC().Format(time.RFC3339))
	}
	if filter.To != nil {
		sb.WriteString(" AND created_at <= ?")
		args = append(args, filter.To.UTC().Format(time.RFC3339))
	}

	// Timestamps have second resolution; rowid breaks same-second ties in
	// true insertion order.
	sb.WriteString(" ORDER BY created_at DESC, rowid DESC")
	if page.Limit > 0 {
		sb.WriteString(" LIMIT ? OFFSET ?")
		args = append(args, page.Limit, page.Offset)
	} else if page.Offset > 0 {
		// SQLite requires a LIMIT clause to use OFFSET.
		sb.WriteString(" LIMIT -1 OFFSET ?")
		args = append(args, page.Offset)
	}

	rows, err := db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var txs []economy.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

func scanTransaction(rows *sql.Rows) (economy.Transaction, error) {
	var (
		tx                          economy.Transaction
		description, referenceID    sql.NullString
		referenceType, metadataJSON sql.NullString
		idempotencyKey              sql.NullString
		multiplier, createdAt       string
	)

	err := rows.Scan(
		&tx.ID, &tx.AccountID, &tx.Amount, &tx.BalanceBefore, &tx.BalanceAfter,
		&tx.Kind, &description, &referenceID, &referenceType, &idempotencyKey,
		&multiplier, &metadataJSON, &createdAt,
	)
	if err != nil {
		return tx, fmt.Errorf("failed to scan transaction: %w", err)
	}

	tx.Description = description.String
	tx.ReferenceID = referenceID.String
	tx.ReferenceType = referenceType.String
	tx.IdempotencyKey = idempotencyKey.String
	tx.Multiplier, _ = decimal.NewFromString(multiplier)
	tx.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)

	if metadataJSON.Valid && metadataJSON.String != "" && metadataJSON.String != "null" {
		json.Unmarshal([]byte(metadataJSON.String), &tx.Metadata)
	}

	return tx, nil
}

// GetTransactionByKey returns the journal entry carrying the idempotency
// key, or (nil, nil) if none does.
func (s *Store) GetTransactionByKey(ctx context.Context, account economy.AccountID, key string) (*economy.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getTransactionByKey(ctx, s.db, account, key)
}

func getTransactionByKey(ctx context.Context, db dbtx, account economy.AccountID, key string) (*economy.Transaction, error) {
	if key == "" {
		return nil, nil
	}

	rows, err := db.QueryContext(ctx, `
		SELECT id, account_id, amount, balance_before, balance_after, kind,
		       description, reference_id, reference_type, idempotency_key,
		       multiplier, metadata_json, created_at
		FROM coin_transactions
		WHERE account_id = ? AND idempotency_key = ?`,
		account, key)
	if err != nil {
		return nil, fmt.Errorf("failed to query transaction by key: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	tx, err := scanTransaction(rows)
	if err != nil {
		return nil, err
	}
	return &tx, rows.Err()
}

// SumTransactions returns the signed journal sum and entry count.
func (s *Store) SumTransactions(ctx context.Context, account economy.AccountID) (economy.Coins, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sumTransactions(ctx, s.db, account)
}

func sumTransactions(ctx context.Context, db dbtx, account economy.AccountID) (economy.Coins, int, error) {
	var (
		sum   sql.NullInt64
		count int
	)
	err := db.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(amount), 0), COUNT(*) FROM coin_transactions WHERE account_id = ?",
		account,
	).Scan(&sum, &count)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to sum transactions: %w", err)
	}
	return economy.Coins(sum.Int64), count, nil
}

// Accounts returns every account id with a balance row.
func (s *Store) Accounts(ctx context.Context) ([]economy.AccountID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listAccounts(ctx, s.db)
}

func listAccounts(ctx context.Context, db dbtx) ([]economy.AccountID, error) {
	rows, err := db.QueryContext(ctx, "SELECT account_id FROM balances ORDER BY account_id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []economy.AccountID
	for rows.Next() {
		var id economy.AccountID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		accounts = append(accounts, id)
	}
	return accounts, rows.Err()
}

// TopBalances returns balance rows ordered by lifetime earned, highest first.
func (s *Store) TopBalances(ctx context.Context, limit int) ([]economy.Balance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return topBalances(ctx, s.db, limit)
}

func topBalances(ctx context.Context, db dbtx, limit int) ([]economy.Balance, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT account_id, current, earned_total, spent_total, earned_today,
		        last_daily_reset, frozen, created_at, updated_at
		 FROM balances
		 ORDER BY earned_total DESC, account_id ASC
		 LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var balances []economy.Balance
	for rows.Next() {
		var b economy.Balance
		var lastReset, createdAt, updatedAt string
		if err := rows.Scan(&b.AccountID, &b.Current, &b.EarnedTotal, &b.SpentTotal,
			&b.EarnedToday, &lastReset, &b.Frozen, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		b.LastDailyReset, _ = time.Parse(time.RFC3339, lastReset)
		b.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		b.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		balances = append(balances, b)
	}
	return balances, rows.Err()
}

// =============================================================================
// TRANSACTIONAL STORE (economy.TxStore interface)
// =============================================================================

// WithTx executes fn within a database transaction. The store mutex is held
// for the duration, which serializes concurrent mutations of the same
// account (read-modify-write discipline).
func (s *Store) WithTx(ctx context.Context, fn func(store economy.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// txStore routes economy.Store calls through an open sql.Tx. The parent's
// mutex is already held by WithTx.
type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) GetBalance(ctx context.Context, account economy.AccountID) (*economy.Balance, error) {
	return getBalance(ctx, ts.tx, account)
}

func (ts *txStore) SaveBalance(ctx context.Context, balance economy.Balance) error {
	return saveBalance(ctx, ts.tx, balance)
}

func (ts *txStore) AppendTransaction(ctx context.Context, tx economy.Transaction) error {
	return appendTransaction(ctx, ts.tx, tx)
}

func (ts *txStore) LoadTransactions(ctx context.Context, account economy.AccountID, filter economy.TransactionFilter, page economy.Page) ([]economy.Transaction, error) {
	return loadTransactions(ctx, ts.tx, account, filter, page)
}

func (ts *txStore) GetTransactionByKey(ctx context.Context, account economy.AccountID, key string) (*economy.Transaction, error) {
	return getTransactionByKey(ctx, ts.tx, account, key)
}

func (ts *txStore) SumTransactions(ctx context.Context, account economy.AccountID) (economy.Coins, int, error) {
	return sumTransactions(ctx, ts.tx, account)
}

func (ts *txStore) Accounts(ctx context.Context) ([]economy.AccountID, error) {
	return listAccounts(ctx, ts.tx)
}

func (ts *txStore) TopBalances(ctx context.Context, limit int) ([]economy.Balance, error) {
	return topBalances(ctx, ts.tx, limit)
}

var (
	_ economy.TxStore = (*Store)(nil)
	_ economy.Store   = (*txStore)(nil)
)

// =============================================================================
// INVENTORY STORE (powerup.InventoryStore interface)
// =============================================================================

// GetInventory returns the inventory row, or (nil, nil) if absent.
func (s *Store) GetInventory(ctx context.Context, account economy.AccountID) (*powerup.Inventory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		inv                  powerup.Inventory
		slotsJSON            string
		createdAt, updatedAt string
	)

	err := s.db.QueryRowContext(ctx,
		"SELECT account_id, slots_json, created_at, updated_at FROM inventories WHERE account_id = ?",
		account,
	).Scan(&inv.AccountID, &slotsJSON, &createdAt, &updatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load inventory: %w", err)
	}

	if err := json.Unmarshal([]byte(slotsJSON), &inv.Slots); err != nil {
		return nil, fmt.Errorf("failed to decode inventory slots: %w", err)
	}
	inv.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	inv.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &inv, nil
}

// Apply upserts the inventory row and appends the journal entry in one
// database transaction. Either both land or neither.
func (s *Store) Apply(ctx context.Context, inv powerup.Inventory, entry powerup.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	slotsJSON, err := json.Marshal(inv.Slots)
	if err != nil {
		return fmt.Errorf("failed to encode inventory slots: %w", err)
	}

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	_, err = sqlTx.ExecContext(ctx, `
		INSERT INTO inventories (account_id, slots_json, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(account_id) DO UPDATE SET
			slots_json = excluded.slots_json,
			updated_at = excluded.updated_at
	`,
		inv.AccountID, string(slotsJSON),
		inv.CreatedAt.UTC().Format(time.RFC3339),
		inv.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save inventory: %w", err)
	}

	_, err = sqlTx.ExecContext(ctx, `
		INSERT INTO inventory_entries
		(id, account_id, kind, powerup_type, quantity, cost, exercise_ref, note, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		entry.ID, entry.AccountID, entry.Kind, entry.Type, entry.Quantity,
		entry.Cost, nullString(entry.ExerciseRef), nullString(entry.Note),
		entry.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to append inventory entry: %w", err)
	}

	return sqlTx.Commit()
}

// LoadEntries returns inventory journal entries, newest first.
func (s *Store) LoadEntries(ctx context.Context, account economy.AccountID, limit int) ([]powerup.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, account_id, kind, powerup_type, quantity, cost, exercise_ref, note, created_at
		FROM inventory_entries
		WHERE account_id = ?
		ORDER BY created_at DESC, rowid DESC
	`
	args := []any{account}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []powerup.Entry
	for rows.Next() {
		var (
			e                 powerup.Entry
			exerciseRef, note sql.NullString
			createdAt         string
		)
		if err := rows.Scan(&e.ID, &e.AccountID, &e.Kind, &e.Type, &e.Quantity,
			&e.Cost, &exerciseRef, &note, &createdAt); err != nil {
			return nil, err
		}
		e.ExerciseRef = exerciseRef.String
		e.Note = note.String
		e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

var _ powerup.InventoryStore = (*Store)(nil)

// =============================================================================
// SUBMISSION STORE (submission.Store interface)
// =============================================================================

const submissionColumns = `
	id, account_id, exercise_id, answer_json, score, max_score, is_correct,
	status, reward_state, hints_used, powerups_used_json, coins_spent_powerups,
	attempt, feedback, oracle_audit_id, xp_awarded, coins_awarded,
	submitted_at, graded_at, reviewed_at`

// GetSubmission returns the row, or (nil, nil) if absent.
func (s *Store) GetSubmission(ctx context.Context, id submission.SubmissionID) (*submission.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	subs, err := s.querySubmissions(ctx,
		"SELECT"+submissionColumns+" FROM submissions WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(subs) == 0 {
		return nil, nil
	}
	return &subs[0], nil
}

// GetByAccountExercise returns the latest submission for the pair, or
// (nil, nil) if the learner never attempted the exercise.
func (s *Store) GetByAccountExercise(ctx context.Context, account economy.AccountID, exercise submission.ExerciseID) (*submission.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	subs, err := s.querySubmissions(ctx,
		"SELECT"+submissionColumns+` FROM submissions
		 WHERE account_id = ? AND exercise_id = ?
		 ORDER BY submitted_at DESC, id DESC LIMIT 1`,
		account, exercise)
	if err != nil {
		return nil, err
	}
	if len(subs) == 0 {
		return nil, nil
	}
	return &subs[0], nil
}

// SaveSubmission upserts the row.
func (s *Store) SaveSubmission(ctx context.Context, sub submission.Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	answerJSON, _ := json.Marshal(sub.Answer)
	powerupsJSON, _ := json.Marshal(sub.PowerUpsUsed)

	query := `
		INSERT INTO submissions
		(id, account_id, exercise_id, answer_json, score, max_score, is_correct,
		 status, reward_state, hints_used, powerups_used_json, coins_spent_powerups,
		 attempt, feedback, oracle_audit_id, xp_awarded, coins_awarded,
		 submitted_at, graded_at, reviewed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			answer_json = excluded.answer_json,
			score = excluded.score,
			max_score = excluded.max_score,
			is_correct = excluded.is_correct,
			status = excluded.status,
			reward_state = excluded.reward_state,
			hints_used = excluded.hints_used,
			powerups_used_json = excluded.powerups_used_json,
			coins_spent_powerups = excluded.coins_spent_powerups,
			attempt = excluded.attempt,
			feedback = excluded.feedback,
			oracle_audit_id = excluded.oracle_audit_id,
			xp_awarded = excluded.xp_awarded,
			coins_awarded = excluded.coins_awarded,
			submitted_at = excluded.submitted_at,
			graded_at = excluded.graded_at,
			reviewed_at = excluded.reviewed_at
	`

	_, err := s.db.ExecContext(ctx, query,
		sub.ID, sub.AccountID, sub.ExerciseID, string(answerJSON),
		sub.Score, sub.MaxScore, sub.IsCorrect,
		sub.Status, sub.RewardState, sub.HintsUsed, string(powerupsJSON),
		sub.CoinsSpentOnPowerUps, sub.Attempt,
		nullString(sub.Feedback), nullString(sub.OracleAuditID),
		sub.XPAwarded, sub.CoinsAwarded,
		sub.SubmittedAt.UTC().Format(time.RFC3339),
		nullTime(sub.GradedAt), nullTime(sub.ReviewedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save submission: %w", err)
	}
	return nil
}

// ListByAccount returns a learner's submissions, newest first.
func (s *Store) ListByAccount(ctx context.Context, account economy.AccountID, limit int) ([]submission.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT" + submissionColumns + ` FROM submissions
		WHERE account_id = ?
		ORDER BY submitted_at DESC, id DESC`
	args := []any{account}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	return s.querySubmissions(ctx, query, args...)
}

func (s *Store) querySubmissions(ctx context.Context, query string, args ...any) ([]submission.Submission, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query submissions: %w", err)
	}
	defer rows.Close()

	var subs []submission.Submission
	for rows.Next() {
		var (
			sub                      submission.Submission
			answerJSON, powerupsJSON sql.NullString
			feedback, auditID        sql.NullString
			submittedAt              string
			gradedAt, reviewedAt     sql.NullString
		)

		if err := rows.Scan(
			&sub.ID, &sub.AccountID, &sub.ExerciseID, &answerJSON,
			&sub.Score, &sub.MaxScore, &sub.IsCorrect,
			&sub.Status, &sub.RewardState, &sub.HintsUsed, &powerupsJSON,
			&sub.CoinsSpentOnPowerUps, &sub.Attempt, &feedback, &auditID,
			&sub.XPAwarded, &sub.CoinsAwarded,
			&submittedAt, &gradedAt, &reviewedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan submission: %w", err)
		}

		if answerJSON.Valid && answerJSON.String != "" && answerJSON.String != "null" {
			json.Unmarshal([]byte(answerJSON.String), &sub.Answer)
		}
		if powerupsJSON.Valid && powerupsJSON.String != "" && powerupsJSON.String != "null" {
			json.Unmarshal([]byte(powerupsJSON.String), &sub.PowerUpsUsed)
		}
		sub.Feedback = feedback.String
		sub.OracleAuditID = auditID.String
		sub.SubmittedAt, _ = time.Parse(time.RFC3339, submittedAt)
		sub.GradedAt = parseNullTime(gradedAt)
		sub.ReviewedAt = parseNullTime(reviewedAt)

		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

var _ submission.Store = (*Store)(nil)

// =============================================================================
// EXERCISE STORE (submission.ExerciseStore interface)
// =============================================================================

// GetExercise returns the catalog record, or (nil, nil) if absent.
func (s *Store) GetExercise(ctx context.Context, id submission.ExerciseID) (*submission.Exercise, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		ex            submission.Exercise
		answerKeyJSON sql.NullString
		createdAt     string
	)

	err := s.db.QueryRowContext(ctx,
		"SELECT id, title, exercise_type, max_score, answer_key_json, created_at FROM exercises WHERE id = ?",
		id,
	).Scan(&ex.ID, &ex.Title, &ex.Type, &ex.MaxScore, &answerKeyJSON, &createdAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load exercise: %w", err)
	}

	if answerKeyJSON.Valid && answerKeyJSON.String != "" && answerKeyJSON.String != "null" {
		json.Unmarshal([]byte(answerKeyJSON.String), &ex.AnswerKey)
	}
	ex.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &ex, nil
}

// SaveExercise upserts a catalog record.
func (s *Store) SaveExercise(ctx context.Context, ex submission.Exercise) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	answerKeyJSON, _ := json.Marshal(ex.AnswerKey)

	query := `
		INSERT INTO exercises (id, title, exercise_type, max_score, answer_key_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			exercise_type = excluded.exercise_type,
			max_score = excluded.max_score,
			answer_key_json = excluded.answer_key_json
	`

	_, err := s.db.ExecContext(ctx, query,
		ex.ID, ex.Title, ex.Type, ex.MaxScore, string(answerKeyJSON),
		ex.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save exercise: %w", err)
	}
	return nil
}

// ListExercises returns the whole catalog, ordered by title.
func (s *Store) ListExercises(ctx context.Context) ([]submission.Exercise, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, title, exercise_type, max_score, answer_key_json, created_at FROM exercises ORDER BY title")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exercises []submission.Exercise
	for rows.Next() {
		var (
			ex            submission.Exercise
			answerKeyJSON sql.NullString
			createdAt     string
		)
		if err := rows.Scan(&ex.ID, &ex.Title, &ex.Type, &ex.MaxScore, &answerKeyJSON, &createdAt); err != nil {
			return nil, err
		}
		if answerKeyJSON.Valid && answerKeyJSON.String != "" && answerKeyJSON.String != "null" {
			json.Unmarshal([]byte(answerKeyJSON.String), &ex.AnswerKey)
		}
		ex.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		exercises = append(exercises, ex)
	}
	return exercises, rows.Err()
}

var _ submission.ExerciseStore = (*Store)(nil)

// =============================================================================
// STATS STORE (stats.Store interface)
// =============================================================================

// GetStats returns the XP aggregate, or (nil, nil) if the learner has none.
func (s *Store) GetStats(ctx context.Context, account economy.AccountID) (*stats.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		st        stats.Stats
		updatedAt string
	)

	err := s.db.QueryRowContext(ctx,
		"SELECT account_id, total_xp, exercises_completed, updated_at FROM learner_stats WHERE account_id = ?",
		account,
	).Scan(&st.AccountID, &st.TotalXP, &st.ExercisesCompleted, &updatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load stats: %w", err)
	}

	st.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &st, nil
}

// AddXP atomically increments the learner's XP, creating the row if needed,
// and bumps the completed-exercise counter.
func (s *Store) AddXP(ctx context.Context, account economy.AccountID, amount int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO learner_stats (account_id, total_xp, exercises_completed, updated_at)
		VALUES (?, ?, 1, ?)
		ON CONFLICT(account_id) DO UPDATE SET
			total_xp = learner_stats.total_xp + excluded.total_xp,
			exercises_completed = learner_stats.exercises_completed + 1,
			updated_at = excluded.updated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		account, amount, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to add xp: %w", err)
	}
	return nil
}

var _ stats.Store = (*Store)(nil)

// =============================================================================
// LEARNER PROFILES
// =============================================================================

// Learner is a learner profile record.
type Learner struct {
	ID         string
	Name       string
	Email      string
	GradeLevel string
	CreatedAt  time.Time
}

// SaveLearner upserts a learner profile.
func (s *Store) SaveLearner(ctx context.Context, l Learner) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO learners (id, name, email, grade_level, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			grade_level = excluded.grade_level
	`

	_, err := s.db.ExecContext(ctx, query,
		l.ID, l.Name, nullString(l.Email), nullString(l.GradeLevel),
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// GetLearner retrieves a learner by ID, or (nil, nil) if absent.
func (s *Store) GetLearner(ctx context.Context, id string) (*Learner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		l                 Learner
		email, gradeLevel sql.NullString
		createdAt         string
	)

	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, email, grade_level, created_at FROM learners WHERE id = ?",
		id,
	).Scan(&l.ID, &l.Name, &email, &gradeLevel, &createdAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	l.Email = email.String
	l.GradeLevel = gradeLevel.String
	l.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &l, nil
}

// ListLearners returns all learner profiles ordered by name.
func (s *Store) ListLearners(ctx context.Context) ([]Learner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, email, grade_level, created_at FROM learners ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var learners []Learner
	for rows.Next() {
		var (
			l                 Learner
			email, gradeLevel sql.NullString
			createdAt         string
		)
		if err := rows.Scan(&l.ID, &l.Name, &email, &gradeLevel, &createdAt); err != nil {
			return nil, err
		}
		l.Email = email.String
		l.GradeLevel = gradeLevel.String
		l.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		learners = append(learners, l)
	}
	return learners, rows.Err()
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{
		"coin_transactions", "balances", "inventory_entries", "inventories",
		"submissions", "exercises", "learner_stats", "learners",
	}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s.String)
	if err != nil {
		return nil
	}
	return &t
}
