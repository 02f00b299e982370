package powerup_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gamilit/economy-engine/economy"
	"github.com/gamilit/economy-engine/powerup"
	"github.com/gamilit/economy-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestService(t *testing.T) (*powerup.Service, *economy.Ledger) {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ledger := economy.NewLedger(store)
	return powerup.NewService(store, ledger), ledger
}

func ensureAccount(t *testing.T, ledger *economy.Ledger, account economy.AccountID) {
	t.Helper()
	_, err := ledger.EnsureAccount(context.Background(), account)
	require.NoError(t, err)
}

// =============================================================================
// PURCHASE
// =============================================================================

func TestPurchase_DebitsAndGrants(t *testing.T) {
	// GIVEN: A learner with the 100-coin initial grant
	// WHEN: Buying 2 hint power-ups at 15 coins each
	// THEN: 30 coins leave the ledger and the inventory holds 2

	svc, ledger := newTestService(t)
	ctx := context.Background()
	ensureAccount(t, ledger, "learner-1")

	inv, err := svc.Purchase(ctx, "learner-1", powerup.Pistas, 2)
	require.NoError(t, err)

	slot := inv.Slot(powerup.Pistas)
	assert.Equal(t, 2, slot.Available)
	assert.Equal(t, 2, slot.PurchasedTotal)
	assert.Equal(t, 0, slot.UsedTotal)
	assert.Equal(t, economy.Coins(15), slot.UnitCost)

	bal, err := ledger.GetBalance(ctx, "learner-1")
	require.NoError(t, err)
	assert.Equal(t, economy.Coins(70), bal.Current)
	assert.Equal(t, economy.Coins(30), bal.SpentTotal)

	// The paired debit is journaled with the power-up reference
	txs, err := ledger.ListTransactions(ctx, "learner-1",
		economy.TransactionFilter{Kind: economy.KindSpentPowerUp}, economy.Page{})
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, economy.Coins(-30), txs[0].Amount)
	assert.Equal(t, "powerup", txs[0].ReferenceType)
	assert.Equal(t, "pistas", txs[0].Metadata["powerup_type"])
}

func TestPurchase_InsufficientFundsLeavesBothStoresUntouched(t *testing.T) {
	// GIVEN: A learner holding 100 coins
	// WHEN: Buying 3 retries at 40 coins each (120 total)
	// THEN: The purchase fails and neither ledger nor inventory changed

	svc, ledger := newTestService(t)
	ctx := context.Background()
	ensureAccount(t, ledger, "learner-1")

	_, err := svc.Purchase(ctx, "learner-1", powerup.SegundaOportunidad, 3)
	require.Error(t, err)

	var ibe *economy.InsufficientBalanceError
	require.ErrorAs(t, err, &ibe)
	assert.Equal(t, economy.Coins(120), ibe.Required)
	assert.Equal(t, economy.Coins(100), ibe.Available)
	assert.Equal(t, "Insufficient ML Coins. Required: 120, Available: 100", err.Error())

	bal, err := ledger.GetBalance(ctx, "learner-1")
	require.NoError(t, err)
	assert.Equal(t, economy.Coins(100), bal.Current)

	inv, err := svc.Inventory(ctx, "learner-1")
	require.NoError(t, err)
	assert.Equal(t, 0, inv.Slot(powerup.SegundaOportunidad).Available)

	history, err := svc.History(ctx, "learner-1", 0)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestPurchase_SingleUnitOverBalance(t *testing.T) {
	// GIVEN: A learner drained down to 10 coins
	// WHEN: Buying one 15-coin hint
	// THEN: Required 15 vs available 10

	svc, ledger := newTestService(t)
	ctx := context.Background()
	ensureAccount(t, ledger, "learner-1")
	_, err := ledger.Debit(ctx, "learner-1", 90, economy.KindAdminAdjustment,
		economy.MutationOptions{Description: "drain for test"})
	require.NoError(t, err)

	_, err = svc.Purchase(ctx, "learner-1", powerup.Pistas, 1)
	var ibe *economy.InsufficientBalanceError
	require.ErrorAs(t, err, &ibe)
	assert.Equal(t, economy.Coins(15), ibe.Required)
	assert.Equal(t, economy.Coins(10), ibe.Available)
}

func TestPurchase_RejectsBadInput(t *testing.T) {
	svc, ledger := newTestService(t)
	ctx := context.Background()
	ensureAccount(t, ledger, "learner-1")

	_, err := svc.Purchase(ctx, "learner-1", "escudo_magico", 1)
	var ute *powerup.UnknownTypeError
	require.ErrorAs(t, err, &ute)
	assert.Contains(t, err.Error(), "pistas")

	_, err = svc.Purchase(ctx, "learner-1", powerup.Pistas, 0)
	var iqe *powerup.InvalidQuantityError
	require.ErrorAs(t, err, &iqe)
	assert.Equal(t, "Quantity must be at least 1, got 0", err.Error())
}

// =============================================================================
// USE
// =============================================================================

func TestUse_ConsumesStockWithoutTouchingLedger(t *testing.T) {
	svc, ledger := newTestService(t)
	ctx := context.Background()
	ensureAccount(t, ledger, "learner-1")

	_, err := svc.Purchase(ctx, "learner-1", powerup.VisionLectora, 1)
	require.NoError(t, err)

	balBefore, err := ledger.GetBalance(ctx, "learner-1")
	require.NoError(t, err)

	inv, err := svc.Use(ctx, "learner-1", powerup.VisionLectora, "ex-1", "highlight paragraph 2")
	require.NoError(t, err)

	slot := inv.Slot(powerup.VisionLectora)
	assert.Equal(t, 0, slot.Available)
	assert.Equal(t, 1, slot.PurchasedTotal)
	assert.Equal(t, 1, slot.UsedTotal)

	balAfter, err := ledger.GetBalance(ctx, "learner-1")
	require.NoError(t, err)
	assert.Equal(t, balBefore.Current, balAfter.Current, "use must not move coins")

	history, err := svc.History(ctx, "learner-1", 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, powerup.EntryUse, history[0].Kind)
	assert.Equal(t, -1, history[0].Quantity)
	assert.Equal(t, "ex-1", history[0].ExerciseRef)
}

func TestUse_NoStock(t *testing.T) {
	svc, ledger := newTestService(t)
	ctx := context.Background()
	ensureAccount(t, ledger, "learner-1")

	// No inventory at all
	_, err := svc.Use(ctx, "learner-1", powerup.Pistas, "", "")
	var ise *powerup.InsufficientStockError
	require.ErrorAs(t, err, &ise)
	assert.Equal(t, 0, ise.Available)
	assert.Equal(t, "Insufficient pistas stock. Available: 0", err.Error())

	// Inventory exists but the slot is drained
	_, err = svc.Purchase(ctx, "learner-1", powerup.Pistas, 1)
	require.NoError(t, err)
	_, err = svc.Use(ctx, "learner-1", powerup.Pistas, "", "")
	require.NoError(t, err)

	_, err = svc.Use(ctx, "learner-1", powerup.Pistas, "", "")
	require.ErrorAs(t, err, &ise)
	assert.Equal(t, powerup.Pistas, ise.Type)
}

// =============================================================================
// READS
// =============================================================================

func TestInventory_ProvisionsEmptyViewWithoutPersisting(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	inv, err := svc.Inventory(ctx, "fresh")
	require.NoError(t, err)
	require.NotNil(t, inv)
	for _, typ := range powerup.Types() {
		slot := inv.Slot(typ)
		assert.Equal(t, 0, slot.Available)
		assert.Equal(t, typ.UnitCost(), slot.UnitCost)
	}

	history, err := svc.History(ctx, "fresh", 0)
	require.NoError(t, err)
	assert.Empty(t, history, "the empty view is not persisted")
}

func TestStats_DerivedFromCounters(t *testing.T) {
	svc, ledger := newTestService(t)
	ctx := context.Background()
	ensureAccount(t, ledger, "learner-1")

	// 2x pistas (30) + 1x vision (25) = 55 spent, within the 100 grant
	_, err := svc.Purchase(ctx, "learner-1", powerup.Pistas, 2)
	require.NoError(t, err)
	_, err = svc.Purchase(ctx, "learner-1", powerup.VisionLectora, 1)
	require.NoError(t, err)
	_, err = svc.Use(ctx, "learner-1", powerup.Pistas, "ex-1", "")
	require.NoError(t, err)

	stats, err := svc.Stats(ctx, "learner-1")
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalPurchased)
	assert.Equal(t, 1, stats.TotalUsed)
	assert.Equal(t, economy.Coins(55), stats.TotalCoinsSpent)
	assert.Equal(t, powerup.Pistas, stats.MostUsedType)
	assert.InDelta(t, 1.0/3.0, stats.UsageRate, 1e-9)
}

// =============================================================================
// TYPE ENUM
// =============================================================================

func TestTypeEnum(t *testing.T) {
	assert.Equal(t, economy.Coins(15), powerup.Pistas.UnitCost())
	assert.Equal(t, economy.Coins(25), powerup.VisionLectora.UnitCost())
	assert.Equal(t, economy.Coins(40), powerup.SegundaOportunidad.UnitCost())
	assert.True(t, powerup.Pistas.IsValid())
	assert.False(t, powerup.Type("escudo_magico").IsValid())
	assert.Len(t, powerup.Types(), 3)
}

func TestPurchaseInconsistencyError_UnwrapsToConsistency(t *testing.T) {
	err := &powerup.PurchaseInconsistencyError{
		AccountID: "learner-1",
		Type:      powerup.Pistas,
		Cost:      15,
		Cause:     errors.New("disk full"),
	}
	assert.True(t, errors.Is(err, economy.ErrConsistency))
	assert.True(t, economy.IsFatal(err))
}
