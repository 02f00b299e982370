// Package store provides an in-memory economy.Store implementation.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/gamilit/economy-engine/economy"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu       sync.RWMutex
	balances map[economy.AccountID]economy.Balance
	journal  map[economy.AccountID][]economy.Transaction
}

func NewMemory() *Memory {
	return &Memory{
		balances: make(map[economy.AccountID]economy.Balance),
		journal:  make(map[economy.AccountID][]economy.Transaction),
	}
}

func (m *Memory) GetBalance(_ context.Context, account economy.AccountID) (*economy.Balance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getBalanceLocked(account), nil
}

func (m *Memory) getBalanceLocked(account economy.AccountID) *economy.Balance {
	bal, ok := m.balances[account]
	if !ok {
		return nil
	}
	copied := bal
	return &copied
}

func (m *Memory) SaveBalance(_ context.Context, balance economy.Balance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[balance.AccountID] = balance
	return nil
}

// AppendTransaction adds a journal entry. Append-only.
func (m *Memory) AppendTransaction(_ context.Context, tx economy.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.journal[tx.AccountID] = append(m.journal[tx.AccountID], tx)
	return nil
}

func (m *Memory) LoadTransactions(_ context.Context, account economy.AccountID, filter economy.TransactionFilter, page economy.Page) ([]economy.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return loadLocked(m.journal, account, filter, page), nil
}

func loadLocked(journal map[economy.AccountID][]economy.Transaction, account economy.AccountID, filter economy.TransactionFilter, page economy.Page) []economy.Transaction {
	// Walk in reverse insertion order so the stable sort below keeps
	// same-timestamp entries newest first. Timestamps have second
	// resolution; insertion order is the real tie-breaker.
	txs := journal[account]
	var result []economy.Transaction
	for i := len(txs) - 1; i >= 0; i-- {
		tx := txs[i]
		if filter.Kind != "" && tx.Kind != filter.Kind {
			continue
		}
		if filter.ReferenceID != "" && tx.ReferenceID != filter.ReferenceID {
			continue
		}
		if filter.From != nil && tx.CreatedAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && !tx.CreatedAt.Before(*filter.To) {
			continue
		}
		result = append(result, tx)
	}

	// Newest first
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	if page.Offset > 0 {
		if page.Offset >= len(result) {
			return nil
		}
		result = result[page.Offset:]
	}
	if page.Limit > 0 && len(result) > page.Limit {
		result = result[:page.Limit]
	}
	return result
}

func (m *Memory) GetTransactionByKey(_ context.Context, account economy.AccountID, key string) (*economy.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return transactionByKeyLocked(m.journal, account, key), nil
}

func transactionByKeyLocked(journal map[economy.AccountID][]economy.Transaction, account economy.AccountID, key string) *economy.Transaction {
	if key == "" {
		return nil
	}
	for _, tx := range journal[account] {
		if tx.IdempotencyKey == key {
			copied := tx
			return &copied
		}
	}
	return nil
}

func (m *Memory) SumTransactions(_ context.Context, account economy.AccountID) (economy.Coins, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var sum economy.Coins
	txs := m.journal[account]
	for _, tx := range txs {
		sum += tx.Amount
	}
	return sum, len(txs), nil
}

func (m *Memory) Accounts(_ context.Context) ([]economy.AccountID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	accounts := make([]economy.AccountID, 0, len(m.balances))
	for id := range m.balances {
		accounts = append(accounts, id)
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i] < accounts[j] })
	return accounts, nil
}

func (m *Memory) TopBalances(_ context.Context, limit int) ([]economy.Balance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	balances := make([]economy.Balance, 0, len(m.balances))
	for _, bal := range m.balances {
		balances = append(balances, bal)
	}
	sort.Slice(balances, func(i, j int) bool {
		return balances[i].EarnedTotal > balances[j].EarnedTotal
	})
	if limit > 0 && len(balances) > limit {
		balances = balances[:limit]
	}
	return balances, nil
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn within a transaction. For the memory store this is
// simulated with a snapshot + rollback on error. The store mutex is held
// for the duration, which also serializes concurrent mutations per account.
func (tm *TxMemory) WithTx(ctx context.Context, fn func(economy.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snapshot := tm.snapshot()
	view := &txMemoryView{parent: tm}

	if err := fn(view); err != nil {
		tm.restore(snapshot)
		return err
	}
	return nil
}

func (tm *TxMemory) snapshot() memorySnapshot {
	balCopy := make(map[economy.AccountID]economy.Balance, len(tm.balances))
	for k, v := range tm.balances {
		balCopy[k] = v
	}
	journalCopy := make(map[economy.AccountID][]economy.Transaction, len(tm.journal))
	for k, v := range tm.journal {
		journalCopy[k] = append([]economy.Transaction{}, v...)
	}
	return memorySnapshot{balances: balCopy, journal: journalCopy}
}

func (tm *TxMemory) restore(s memorySnapshot) {
	tm.balances = s.balances
	tm.journal = s.journal
}

type memorySnapshot struct {
	balances map[economy.AccountID]economy.Balance
	journal  map[economy.AccountID][]economy.Transaction
}

// txMemoryView operates on the parent's maps directly while the parent's
// lock is held by WithTx.
type txMemoryView struct {
	parent *TxMemory
}

func (tv *txMemoryView) GetBalance(_ context.Context, account economy.AccountID) (*economy.Balance, error) {
	return tv.parent.getBalanceLocked(account), nil
}

func (tv *txMemoryView) SaveBalance(_ context.Context, balance economy.Balance) error {
	tv.parent.balances[balance.AccountID] = balance
	return nil
}

func (tv *txMemoryView) AppendTransaction(_ context.Context, tx economy.Transaction) error {
	tv.parent.journal[tx.AccountID] = append(tv.parent.journal[tx.AccountID], tx)
	return nil
}

func (tv *txMemoryView) LoadTransactions(_ context.Context, account economy.AccountID, filter economy.TransactionFilter, page economy.Page) ([]economy.Transaction, error) {
	return loadLocked(tv.parent.journal, account, filter, page), nil
}

func (tv *txMemoryView) GetTransactionByKey(_ context.Context, account economy.AccountID, key string) (*economy.Transaction, error) {
	return transactionByKeyLocked(tv.parent.journal, account, key), nil
}

func (tv *txMemoryView) SumTransactions(_ context.Context, account economy.AccountID) (economy.Coins, int, error) {
	var sum economy.Coins
	txs := tv.parent.journal[account]
	for _, tx := range txs {
		sum += tx.Amount
	}
	return sum, len(txs), nil
}

func (tv *txMemoryView) Accounts(_ context.Context) ([]economy.AccountID, error) {
	accounts := make([]economy.AccountID, 0, len(tv.parent.balances))
	for id := range tv.parent.balances {
		accounts = append(accounts, id)
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i] < accounts[j] })
	return accounts, nil
}

func (tv *txMemoryView) TopBalances(_ context.Context, limit int) ([]economy.Balance, error) {
	balances := make([]economy.Balance, 0, len(tv.parent.balances))
	for _, bal := range tv.parent.balances {
		balances = append(balances, bal)
	}
	sort.Slice(balances, func(i, j int) bool {
		return balances[i].EarnedTotal > balances[j].EarnedTotal
	})
	if limit > 0 && len(balances) > limit {
		balances = balances[:limit]
	}
	return balances, nil
}

// Compile-time interface checks
var (
	_ economy.Store   = (*Memory)(nil)
	_ economy.TxStore = (*TxMemory)(nil)
	_ economy.Store   = (*txMemoryView)(nil)
)
