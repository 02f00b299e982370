/*
service.go - Power-up purchase and use orchestration

PURPOSE:
  Coordinates the two stores involved in power-up handling. Purchase is a
  paired mutation: ledger debit first, then inventory grant, both recorded
  with audit entries. Use is inventory-only: the coins were spent at
  purchase time.

FAILURE MODE THAT MATTERS:
  If the ledger debit commits and the inventory grant then fails, the
  learner has paid for nothing. That is a fatal consistency violation: the
  account is frozen, the error is logged for operators, and it propagates
  as PurchaseInconsistencyError. It is never silently absorbed.

ORDERING:
  Debit before grant. The debit carries the insufficient-balance check, so
  a learner who cannot afford the purchase fails before any inventory
  change, leaving both stores untouched.

SEE ALSO:
  - types.go: Inventory model and errors
  - economy/ledger.go: Debit and Freeze
*/
package powerup

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/gamilit/economy-engine/economy"
)

// =============================================================================
// SERVICE
// =============================================================================

// Service orchestrates inventory mutation and the paired ledger debit.
// Dependencies are injected; there is no package-level instance.
type Service struct {
	inventories InventoryStore
	ledger      *economy.Ledger
	now         func() time.Time
}

// NewService creates a power-up service.
func NewService(inventories InventoryStore, ledger *economy.Ledger) *Service {
	return &Service{inventories: inventories, ledger: ledger, now: time.Now}
}

// NewServiceWithClock creates a service with an injected clock for tests.
func NewServiceWithClock(inventories InventoryStore, ledger *economy.Ledger, now func() time.Time) *Service {
	return &Service{inventories: inventories, ledger: ledger, now: now}
}

// =============================================================================
// PURCHASE
// =============================================================================

// Purchase buys quantity units of a power-up type. The ledger is debited
// for unitCost * quantity, then the inventory is credited and a PURCHASE
// journal entry appended. Returns the updated inventory.
func (s *Service) Purchase(ctx context.Context, account economy.AccountID, typ Type, quantity int) (*Inventory, error) {
	if !typ.IsValid() {
		return nil, &UnknownTypeError{Type: typ}
	}
	if quantity < 1 {
		return nil, &InvalidQuantityError{Quantity: quantity}
	}

	inv, err := s.inventories.GetInventory(ctx, account)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		fresh := NewInventory(account, s.now().UTC())
		inv = &fresh
	}

	totalCost := typ.UnitCost() * economy.Coins(quantity)

	// Debit first: the insufficient-balance check lives in the ledger, and
	// a failed debit leaves both stores untouched.
	debit, err := s.ledger.Debit(ctx, account, totalCost, economy.KindSpentPowerUp, economy.MutationOptions{
		Description:   fmt.Sprintf("Purchase %dx %s", quantity, typ),
		ReferenceType: "powerup",
		Metadata: map[string]string{
			"powerup_type": string(typ),
			"quantity":     fmt.Sprintf("%d", quantity),
		},
	})
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	slot := inv.Slot(typ)
	slot.Available += quantity
	slot.PurchasedTotal += quantity
	slot.UnitCost = typ.UnitCost()
	inv.Slots[typ] = slot
	inv.UpdatedAt = now

	entry := Entry{
		ID:        uuid.NewString(),
		AccountID: account,
		Kind:      EntryPurchase,
		Type:      typ,
		Quantity:  quantity,
		Cost:      totalCost,
		Note:      fmt.Sprintf("ledger tx %s", debit.Transaction.ID),
		CreatedAt: now,
	}

	if err := s.inventories.Apply(ctx, *inv, entry); err != nil {
		// Coins are spent but nothing was granted. Freeze the account so no
		// further mutation compounds the damage, and surface loudly.
		if ferr := s.ledger.Freeze(ctx, account); ferr != nil {
			log.Printf("CRITICAL: failed to freeze account %s after purchase inconsistency: %v", account, ferr)
		}
		incErr := &PurchaseInconsistencyError{
			AccountID: account,
			Type:      typ,
			Cost:      totalCost,
			Cause:     err,
		}
		log.Printf("CRITICAL: %v", incErr)
		return nil, incErr
	}

	return inv, nil
}

// =============================================================================
// USE
// =============================================================================

// Use consumes one unit of a power-up during an exercise attempt. No
// ledger interaction: stock was paid for at purchase time.
func (s *Service) Use(ctx context.Context, account economy.AccountID, typ Type, exerciseRef, note string) (*Inventory, error) {
	if !typ.IsValid() {
		return nil, &UnknownTypeError{Type: typ}
	}

	inv, err := s.inventories.GetInventory(ctx, account)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, &InsufficientStockError{Type: typ, Available: 0}
	}

	slot := inv.Slot(typ)
	if slot.Available < 1 {
		return nil, &InsufficientStockError{Type: typ, Available: slot.Available}
	}

	now := s.now().UTC()
	slot.Available--
	slot.UsedTotal++
	inv.Slots[typ] = slot
	inv.UpdatedAt = now

	entry := Entry{
		ID:          uuid.NewString(),
		AccountID:   account,
		Kind:        EntryUse,
		Type:        typ,
		Quantity:    -1,
		ExerciseRef: exerciseRef,
		Note:        note,
		CreatedAt:   now,
	}

	if err := s.inventories.Apply(ctx, *inv, entry); err != nil {
		return nil, err
	}
	return inv, nil
}

// =============================================================================
// READS
// =============================================================================

// Inventory returns the learner's inventory, provisioning an empty one in
// memory (not persisted) when none exists yet.
func (s *Service) Inventory(ctx context.Context, account economy.AccountID) (*Inventory, error) {
	inv, err := s.inventories.GetInventory(ctx, account)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		fresh := NewInventory(account, s.now().UTC())
		return &fresh, nil
	}
	return inv, nil
}

// Stats derives the usage view from the inventory counters. It never scans
// the journal, so it cannot drift from the counters.
func (s *Service) Stats(ctx context.Context, account economy.AccountID) (*Stats, error) {
	inv, err := s.Inventory(ctx, account)
	if err != nil {
		return nil, err
	}

	stats := &Stats{ByType: make(map[Type]Slot, len(inv.Slots))}
	mostUsed := 0
	for _, t := range Types() {
		slot := inv.Slot(t)
		stats.ByType[t] = slot
		stats.TotalPurchased += slot.PurchasedTotal
		stats.TotalUsed += slot.UsedTotal
		stats.TotalCoinsSpent += slot.UnitCost * economy.Coins(slot.PurchasedTotal)
		if slot.UsedTotal > mostUsed {
			mostUsed = slot.UsedTotal
			stats.MostUsedType = t
		}
	}
	if stats.TotalPurchased > 0 {
		stats.UsageRate = float64(stats.TotalUsed) / float64(stats.TotalPurchased)
	}
	return stats, nil
}

// History returns the purchase/use journal, newest first.
func (s *Service) History(ctx context.Context, account economy.AccountID, limit int) ([]Entry, error) {
	return s.inventories.LoadEntries(ctx, account, limit)
}
