/*
Package powerup manages consumable power-up inventories (comodines).

PURPOSE:
  Learners buy power-ups with coins and consume them during exercise
  attempts. This package owns the per-learner inventory record and its
  append-only purchase/use journal, and orchestrates the paired ledger
  debit on purchase. Using a power-up touches only the inventory; the
  coins were already spent at purchase time.

KEY CONCEPTS IN THIS FILE (types.go):
  - Type: Closed enum of the three power-up kinds, each with a unit cost
  - Slot: Per-type counters (available, purchased, used) plus unit cost
  - Inventory: One record per learner, a typed map of Type -> Slot
  - Entry: Immutable journal record of a purchase or use

INVARIANTS:
  1. Every count >= 0 at all times
  2. Available == PurchasedTotal - UsedTotal, maintained incrementally
     (never recomputed by scanning the journal)
  3. Inventory mutates only through Service.Purchase and Service.Use

SEE ALSO:
  - service.go: Purchase/Use/Stats operations
  - economy/ledger.go: The paired debit on purchase
*/
package powerup

import (
	"context"
	"fmt"
	"time"

	"github.com/gamilit/economy-engine/economy"
)

// =============================================================================
// POWER-UP TYPES - Closed enum with unit costs
// =============================================================================

// Type identifies one of the three power-up kinds.
type Type string

const (
	// Pistas reveals a hint for the current exercise.
	Pistas Type = "pistas"

	// VisionLectora highlights the passage region relevant to a question.
	VisionLectora Type = "vision_lectora"

	// SegundaOportunidad allows one retry of a failed attempt.
	SegundaOportunidad Type = "segunda_oportunidad"
)

// Types returns the closed set of power-up types.
func Types() []Type {
	return []Type{Pistas, VisionLectora, SegundaOportunidad}
}

// IsValid reports whether the tag names a known power-up type.
func (t Type) IsValid() bool {
	switch t {
	case Pistas, VisionLectora, SegundaOportunidad:
		return true
	}
	return false
}

// UnitCost returns the fixed coin price per unit. Zero for unknown types;
// callers must check IsValid first.
func (t Type) UnitCost() economy.Coins {
	switch t {
	case Pistas:
		return 15
	case VisionLectora:
		return 25
	case SegundaOportunidad:
		return 40
	}
	return 0
}

// =============================================================================
// INVENTORY - One record per learner
// =============================================================================

// Slot holds the counters for one power-up type within an inventory.
type Slot struct {
	Available      int
	PurchasedTotal int
	UsedTotal      int
	UnitCost       economy.Coins
}

// Inventory is the single mutable inventory record for a learner. The
// Slots map is keyed by the closed Type enum rather than widening the
// record with per-type column triples.
type Inventory struct {
	AccountID economy.AccountID
	Slots     map[Type]Slot
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewInventory returns an empty inventory with every slot provisioned at
// its unit cost.
func NewInventory(account economy.AccountID, now time.Time) Inventory {
	slots := make(map[Type]Slot, len(Types()))
	for _, t := range Types() {
		slots[t] = Slot{UnitCost: t.UnitCost()}
	}
	return Inventory{
		AccountID: account,
		Slots:     slots,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Slot returns the counters for a type, zero-valued if never provisioned.
func (inv *Inventory) Slot(t Type) Slot {
	if s, ok := inv.Slots[t]; ok {
		return s
	}
	return Slot{UnitCost: t.UnitCost()}
}

// =============================================================================
// JOURNAL - Append-only purchase/use records
// =============================================================================

// EntryKind distinguishes journal records.
type EntryKind string

const (
	EntryPurchase EntryKind = "PURCHASE"
	EntryUse      EntryKind = "USE"
)

// Entry is an immutable audit record of one purchase or use. Quantity is
// positive for purchases and -1 for a single use.
type Entry struct {
	ID          string
	AccountID   economy.AccountID
	Kind        EntryKind
	Type        Type
	Quantity    int
	Cost        economy.Coins // total coins paid; zero for USE
	ExerciseRef string        // exercise the power-up was used on, if any
	Note        string
	CreatedAt   time.Time
}

// =============================================================================
// STORE INTERFACE
// =============================================================================

// InventoryStore persists inventories and their journal.
type InventoryStore interface {
	// GetInventory returns the record, or (nil, nil) if none exists.
	GetInventory(ctx context.Context, account economy.AccountID) (*Inventory, error)

	// Apply persists the inventory record and appends the journal entry
	// atomically. Either both land or neither.
	Apply(ctx context.Context, inv Inventory, entry Entry) error

	// LoadEntries returns journal entries, newest first. limit <= 0 means
	// no limit.
	LoadEntries(ctx context.Context, account economy.AccountID, limit int) ([]Entry, error)
}

// =============================================================================
// STATS - Derived read-only view
// =============================================================================

// Stats is computed from the inventory counters only, never by scanning
// the journal, so it is consistent with them by construction.
type Stats struct {
	TotalPurchased  int
	TotalUsed       int
	TotalCoinsSpent economy.Coins
	ByType          map[Type]Slot
	UsageRate       float64 // used / purchased, 0 when nothing purchased
	MostUsedType    Type    // empty when nothing used
}

// =============================================================================
// ERROR TYPES
// =============================================================================

// InvalidQuantityError reports a purchase quantity below one.
type InvalidQuantityError struct {
	Quantity int
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("Quantity must be at least 1, got %d", e.Quantity)
}

// UnknownTypeError reports an unrecognized power-up tag.
type UnknownTypeError struct {
	Type Type
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("unknown power-up type %q, valid types: %s, %s, %s",
		e.Type, Pistas, VisionLectora, SegundaOportunidad)
}

// InsufficientStockError reports a use attempt with no stock left.
// The message format is part of the user-visible API contract.
type InsufficientStockError struct {
	Type      Type
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("Insufficient %s stock. Available: %d", e.Type, e.Available)
}

// PurchaseInconsistencyError reports the fatal case where the ledger debit
// committed but the inventory grant failed: coins spent, nothing granted.
// The account is frozen when this is raised.
type PurchaseInconsistencyError struct {
	AccountID economy.AccountID
	Type      Type
	Cost      economy.Coins
	Cause     error
}

func (e *PurchaseInconsistencyError) Error() string {
	return fmt.Sprintf("purchase inconsistency on account %s: debited %d coins for %s but inventory grant failed: %v",
		e.AccountID, e.Cost, e.Type, e.Cause)
}

func (e *PurchaseInconsistencyError) Unwrap() error { return economy.ErrConsistency }
