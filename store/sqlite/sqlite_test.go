package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gamilit/economy-engine/answers"
	"github.com/gamilit/economy-engine/economy"
	"github.com/gamilit/economy-engine/powerup"
	"github.com/gamilit/economy-engine/store/sqlite"
	"github.com/gamilit/economy-engine/submission"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testBalance(account economy.AccountID, current economy.Coins) economy.Balance {
	now := time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)
	return economy.Balance{
		AccountID:      account,
		Current:        current,
		LastDailyReset: now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// =============================================================================
// BALANCES + COIN JOURNAL
// =============================================================================

func TestBalance_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	missing, err := store.GetBalance(ctx, "learner-1")
	require.NoError(t, err)
	assert.Nil(t, missing, "absent balance returns nil, not error")

	bal := testBalance("learner-1", 100)
	bal.EarnedTotal = 50
	bal.SpentTotal = 30
	bal.EarnedToday = 20
	bal.Frozen = true
	require.NoError(t, store.SaveBalance(ctx, bal))

	loaded, err := store.GetBalance(ctx, "learner-1")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, bal.Current, loaded.Current)
	assert.Equal(t, bal.EarnedTotal, loaded.EarnedTotal)
	assert.Equal(t, bal.SpentTotal, loaded.SpentTotal)
	assert.Equal(t, bal.EarnedToday, loaded.EarnedToday)
	assert.True(t, loaded.Frozen)
	assert.True(t, loaded.LastDailyReset.Equal(bal.LastDailyReset))

	// Upsert overwrites the mutable fields
	bal.Current = 175
	bal.Frozen = false
	require.NoError(t, store.SaveBalance(ctx, bal))

	loaded, err = store.GetBalance(ctx, "learner-1")
	require.NoError(t, err)
	assert.Equal(t, economy.Coins(175), loaded.Current)
	assert.False(t, loaded.Frozen)
}

func TestTransactions_AppendAndLoad(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)
	mult := decimal.RequireFromString("1.5")

	txs := []economy.Transaction{
		{
			ID: "tx-1", AccountID: "learner-1", Amount: 50,
			BalanceBefore: 100, BalanceAfter: 150,
			Kind: economy.KindEarnedExercise, Description: "exercise reward",
			ReferenceID: "sub-1", ReferenceType: "submission",
			Multiplier: mult,
			Metadata:   map[string]string{"exercise_id": "ex-1"},
			CreatedAt:  base,
		},
		{
			ID: "tx-2", AccountID: "learner-1", Amount: -15,
			BalanceBefore: 150, BalanceAfter: 135,
			Kind: economy.KindSpentPowerUp,
			Multiplier: decimal.NewFromInt(1),
			CreatedAt:  base.Add(time.Minute),
		},
		{
			ID: "tx-3", AccountID: "learner-2", Amount: 10,
			BalanceBefore: 100, BalanceAfter: 110,
			Kind: economy.KindBonus,
			Multiplier: decimal.NewFromInt(1),
			CreatedAt:  base.Add(2 * time.Minute),
		},
	}
	for _, tx := range txs {
		require.NoError(t, store.AppendTransaction(ctx, tx))
	}

	// Newest first, scoped to the account
	got, err := store.LoadTransactions(ctx, "learner-1", economy.TransactionFilter{}, economy.Page{})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, economy.TransactionID("tx-2"), got[0].ID)
	assert.Equal(t, economy.TransactionID("tx-1"), got[1].ID)

	// Round-trip of the rich fields
	assert.Equal(t, "exercise reward", got[1].Description)
	assert.Equal(t, "sub-1", got[1].ReferenceID)
	assert.Equal(t, "submission", got[1].ReferenceType)
	assert.True(t, got[1].Multiplier.Equal(mult))
	assert.Equal(t, map[string]string{"exercise_id": "ex-1"}, got[1].Metadata)

	// Kind filter
	spent, err := store.LoadTransactions(ctx, "learner-1",
		economy.TransactionFilter{Kind: economy.KindSpentPowerUp}, economy.Page{})
	require.NoError(t, err)
	require.Len(t, spent, 1)
	assert.Equal(t, economy.TransactionID("tx-2"), spent[0].ID)

	// Reference filter
	byRef, err := store.LoadTransactions(ctx, "learner-1",
		economy.TransactionFilter{ReferenceID: "sub-1"}, economy.Page{})
	require.NoError(t, err)
	require.Len(t, byRef, 1)

	// Paging
	page, err := store.LoadTransactions(ctx, "learner-1",
		economy.TransactionFilter{}, economy.Page{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, economy.TransactionID("tx-1"), page[0].ID)

	// Signed sum and count
	sum, count, err := store.SumTransactions(ctx, "learner-1")
	require.NoError(t, err)
	assert.Equal(t, economy.Coins(35), sum)
	assert.Equal(t, 2, count)

	sum, count, err = store.SumTransactions(ctx, "nobody")
	require.NoError(t, err)
	assert.Equal(t, economy.Coins(0), sum)
	assert.Equal(t, 0, count)
}

func TestTransactions_SameSecondKeepsInsertionOrder(t *testing.T) {
	// Timestamps are stored at second resolution, so same-second entries
	// must fall back to insertion order, not the random entry id.

	store := newTestStore(t)
	ctx := context.Background()

	at := time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)
	ids := []economy.TransactionID{
		"zz-first", "aa-second", "mm-third",
	}
	balance := economy.Coins(100)
	for _, id := range ids {
		require.NoError(t, store.AppendTransaction(ctx, economy.Transaction{
			ID: id, AccountID: "learner-1", Amount: 10,
			BalanceBefore: balance, BalanceAfter: balance + 10,
			Kind:       economy.KindBonus,
			Multiplier: decimal.NewFromInt(1),
			CreatedAt:  at,
		}))
		balance += 10
	}

	got, err := store.LoadTransactions(ctx, "learner-1", economy.TransactionFilter{}, economy.Page{})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, economy.TransactionID("mm-third"), got[0].ID)
	assert.Equal(t, economy.TransactionID("aa-second"), got[1].ID)
	assert.Equal(t, economy.TransactionID("zz-first"), got[2].ID)
}

func TestGetTransactionByKey(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	tx := economy.Transaction{
		ID: "tx-1", AccountID: "learner-1", Amount: 20,
		BalanceBefore: 100, BalanceAfter: 120,
		Kind:           economy.KindEarnedExercise,
		IdempotencyKey: "claim:sub-1",
		Multiplier:     decimal.NewFromInt(1),
		CreatedAt:      time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.AppendTransaction(ctx, tx))

	got, err := store.GetTransactionByKey(ctx, "learner-1", "claim:sub-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, economy.TransactionID("tx-1"), got.ID)
	assert.Equal(t, "claim:sub-1", got.IdempotencyKey)

	// Unknown key and wrong account both miss
	got, err = store.GetTransactionByKey(ctx, "learner-1", "claim:ghost")
	require.NoError(t, err)
	assert.Nil(t, got)
	got, err = store.GetTransactionByKey(ctx, "learner-2", "claim:sub-1")
	require.NoError(t, err)
	assert.Nil(t, got)

	// The key is unique per account; a duplicate append is rejected
	dup := tx
	dup.ID = "tx-2"
	assert.Error(t, store.AppendTransaction(ctx, dup))
}

func TestAccountsAndTopBalances(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, acc := range []struct {
		id     economy.AccountID
		earned economy.Coins
	}{{"ana", 50}, {"bruno", 200}, {"carla", 0}} {
		bal := testBalance(acc.id, 100+acc.earned)
		bal.EarnedTotal = acc.earned
		require.NoError(t, store.SaveBalance(ctx, bal))
	}

	accounts, err := store.Accounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []economy.AccountID{"ana", "bruno", "carla"}, accounts)

	top, err := store.TopBalances(ctx, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, economy.AccountID("bruno"), top[0].AccountID)
	assert.Equal(t, economy.AccountID("ana"), top[1].AccountID)
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	// GIVEN: A saved balance
	// WHEN: A transaction writes then fails
	// THEN: None of its writes survive

	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveBalance(ctx, testBalance("learner-1", 100)))

	boom := errors.New("boom")
	err := store.WithTx(ctx, func(s economy.Store) error {
		bal, err := s.GetBalance(ctx, "learner-1")
		require.NoError(t, err)

		bal.Current = 999
		if err := s.SaveBalance(ctx, *bal); err != nil {
			return err
		}
		if err := s.AppendTransaction(ctx, economy.Transaction{
			ID: "tx-doomed", AccountID: "learner-1", Amount: 899,
			BalanceBefore: 100, BalanceAfter: 999,
			Kind:       economy.KindBonus,
			Multiplier: decimal.NewFromInt(1),
			CreatedAt:  time.Now().UTC(),
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	bal, err := store.GetBalance(ctx, "learner-1")
	require.NoError(t, err)
	assert.Equal(t, economy.Coins(100), bal.Current, "rolled-back write must not persist")

	_, count, err := store.SumTransactions(ctx, "learner-1")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestWithTx_CommitsOnSuccess(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveBalance(ctx, testBalance("learner-1", 100)))

	err := store.WithTx(ctx, func(s economy.Store) error {
		bal, err := s.GetBalance(ctx, "learner-1")
		if err != nil {
			return err
		}
		bal.Current += 50
		return s.SaveBalance(ctx, *bal)
	})
	require.NoError(t, err)

	bal, err := store.GetBalance(ctx, "learner-1")
	require.NoError(t, err)
	assert.Equal(t, economy.Coins(150), bal.Current)
}

// =============================================================================
// INVENTORIES
// =============================================================================

func TestInventory_ApplyAndLoad(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	missing, err := store.GetInventory(ctx, "learner-1")
	require.NoError(t, err)
	assert.Nil(t, missing)

	now := time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)
	inv := powerup.NewInventory("learner-1", now)
	slot := inv.Slot(powerup.Pistas)
	slot.Available = 2
	slot.PurchasedTotal = 2
	inv.Slots[powerup.Pistas] = slot

	entry := powerup.Entry{
		ID: "entry-1", AccountID: "learner-1",
		Kind: powerup.EntryPurchase, Type: powerup.Pistas,
		Quantity: 2, Cost: 30, CreatedAt: now,
	}
	require.NoError(t, store.Apply(ctx, inv, entry))

	loaded, err := store.GetInventory(ctx, "learner-1")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, 2, loaded.Slot(powerup.Pistas).Available)
	assert.Equal(t, 2, loaded.Slot(powerup.Pistas).PurchasedTotal)
	assert.Equal(t, economy.Coins(15), loaded.Slot(powerup.Pistas).UnitCost)
	assert.Equal(t, 0, loaded.Slot(powerup.VisionLectora).Available)

	// Second apply upserts and appends
	slot = inv.Slot(powerup.Pistas)
	slot.Available--
	slot.UsedTotal++
	inv.Slots[powerup.Pistas] = slot

	use := powerup.Entry{
		ID: "entry-2", AccountID: "learner-1",
		Kind: powerup.EntryUse, Type: powerup.Pistas,
		Quantity: -1, ExerciseRef: "ex-1", Note: "hint on question 2",
		CreatedAt: now.Add(time.Minute),
	}
	require.NoError(t, store.Apply(ctx, inv, use))

	entries, err := store.LoadEntries(ctx, "learner-1", 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, powerup.EntryUse, entries[0].Kind)
	assert.Equal(t, "ex-1", entries[0].ExerciseRef)
	assert.Equal(t, "hint on question 2", entries[0].Note)
	assert.Equal(t, powerup.EntryPurchase, entries[1].Kind)
	assert.Equal(t, economy.Coins(30), entries[1].Cost)

	limited, err := store.LoadEntries(ctx, "learner-1", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestInventory_ApplyRejectsDuplicateEntryAtomically(t *testing.T) {
	// GIVEN: A journal entry id that already exists
	// WHEN: Apply runs with a changed inventory and the duplicate entry
	// THEN: The whole apply fails and the inventory change does not land

	store := newTestStore(t)
	ctx := context.Background()

	now := time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)
	inv := powerup.NewInventory("learner-1", now)
	entry := powerup.Entry{
		ID: "entry-1", AccountID: "learner-1",
		Kind: powerup.EntryPurchase, Type: powerup.Pistas,
		Quantity: 1, Cost: 15, CreatedAt: now,
	}
	require.NoError(t, store.Apply(ctx, inv, entry))

	slot := inv.Slot(powerup.Pistas)
	slot.Available = 99
	inv.Slots[powerup.Pistas] = slot

	err := store.Apply(ctx, inv, entry) // same entry id
	require.Error(t, err)

	loaded, err := store.GetInventory(ctx, "learner-1")
	require.NoError(t, err)
	assert.Equal(t, 0, loaded.Slot(powerup.Pistas).Available,
		"inventory upsert must roll back with the failed journal append")
}

// =============================================================================
// SUBMISSIONS + EXERCISES
// =============================================================================

func TestSubmission_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	missing, err := store.GetSubmission(ctx, "sub-1")
	require.NoError(t, err)
	assert.Nil(t, missing)

	submitted := time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)
	graded := submitted.Add(time.Second)

	sub := submission.Submission{
		ID: "sub-1", AccountID: "learner-1", ExerciseID: "ex-1",
		Answer:      answers.Payload{"answers": map[string]any{"s1": true}},
		Score:       75, MaxScore: 100, IsCorrect: true,
		Status:      submission.StatusGraded,
		RewardState: submission.RewardPending,
		HintsUsed:   2,
		PowerUpsUsed:         []string{"pistas", "pistas"},
		CoinsSpentOnPowerUps: 30,
		Attempt:              1,
		Feedback:             "3 de 4 correctas",
		OracleAuditID:        "audit-1",
		SubmittedAt:          submitted,
		GradedAt:             &graded,
	}
	require.NoError(t, store.SaveSubmission(ctx, sub))

	loaded, err := store.GetSubmission(ctx, "sub-1")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, sub.Score, loaded.Score)
	assert.Equal(t, sub.Status, loaded.Status)
	assert.Equal(t, sub.RewardState, loaded.RewardState)
	assert.Equal(t, sub.HintsUsed, loaded.HintsUsed)
	assert.Equal(t, sub.PowerUpsUsed, loaded.PowerUpsUsed)
	assert.Equal(t, sub.CoinsSpentOnPowerUps, loaded.CoinsSpentOnPowerUps)
	assert.Equal(t, sub.Feedback, loaded.Feedback)
	assert.Equal(t, sub.OracleAuditID, loaded.OracleAuditID)
	require.NotNil(t, loaded.GradedAt)
	assert.True(t, loaded.GradedAt.Equal(graded))
	assert.Nil(t, loaded.ReviewedAt)

	// Upsert: claim flips the reward state
	sub.RewardState = submission.RewardClaimed
	sub.XPAwarded = 75
	sub.CoinsAwarded = 7
	require.NoError(t, store.SaveSubmission(ctx, sub))

	loaded, err = store.GetSubmission(ctx, "sub-1")
	require.NoError(t, err)
	assert.Equal(t, submission.RewardClaimed, loaded.RewardState)
	assert.Equal(t, int64(75), loaded.XPAwarded)
	assert.Equal(t, economy.Coins(7), loaded.CoinsAwarded)
}

func TestGetByAccountExercise_ReturnsLatest(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)
	for i, id := range []submission.SubmissionID{"sub-old", "sub-new"} {
		require.NoError(t, store.SaveSubmission(ctx, submission.Submission{
			ID: id, AccountID: "learner-1", ExerciseID: "ex-1",
			Status: submission.StatusGraded, RewardState: submission.RewardClaimed,
			Attempt:     i + 1,
			SubmittedAt: base.Add(time.Duration(i) * time.Hour),
		}))
	}

	latest, err := store.GetByAccountExercise(ctx, "learner-1", "ex-1")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, submission.SubmissionID("sub-new"), latest.ID)

	none, err := store.GetByAccountExercise(ctx, "learner-1", "ex-other")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestListByAccount(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		require.NoError(t, store.SaveSubmission(ctx, submission.Submission{
			ID:        submission.SubmissionID([]string{"s1", "s2", "s3"}[i]),
			AccountID: "learner-1", ExerciseID: submission.ExerciseID([]string{"e1", "e2", "e3"}[i]),
			Status: submission.StatusSubmitted, RewardState: submission.RewardNone,
			SubmittedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	all, err := store.ListByAccount(ctx, "learner-1", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, submission.SubmissionID("s3"), all[0].ID)

	limited, err := store.ListByAccount(ctx, "learner-1", 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestExercise_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	ex := submission.Exercise{
		ID: "ex-1", Title: "Verdadero o falso", Type: answers.TypeVerdaderoFalso,
		MaxScore: 100,
		AnswerKey: answers.Payload{
			"answers": map[string]any{"s1": true, "s2": false},
		},
		CreatedAt: time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.SaveExercise(ctx, ex))

	loaded, err := store.GetExercise(ctx, "ex-1")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, ex.Title, loaded.Title)
	assert.Equal(t, ex.Type, loaded.Type)
	assert.Equal(t, ex.MaxScore, loaded.MaxScore)

	key, ok := loaded.AnswerKey["answers"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, key["s1"])
	assert.Equal(t, false, key["s2"])

	// No answer key stays nil
	require.NoError(t, store.SaveExercise(ctx, submission.Exercise{
		ID: "ex-essay", Title: "Ensayo", Type: answers.TypeEnsayoArgumentativo,
		MaxScore: 100, CreatedAt: ex.CreatedAt,
	}))
	essay, err := store.GetExercise(ctx, "ex-essay")
	require.NoError(t, err)
	assert.Nil(t, essay.AnswerKey)

	list, err := store.ListExercises(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

// =============================================================================
// STATS + LEARNERS
// =============================================================================

func TestAddXP_CreatesAndIncrements(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	missing, err := store.GetStats(ctx, "learner-1")
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, store.AddXP(ctx, "learner-1", 150))

	st, err := store.GetStats(ctx, "learner-1")
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.Equal(t, int64(150), st.TotalXP)
	assert.Equal(t, 1, st.ExercisesCompleted)

	require.NoError(t, store.AddXP(ctx, "learner-1", 75))

	st, err = store.GetStats(ctx, "learner-1")
	require.NoError(t, err)
	assert.Equal(t, int64(225), st.TotalXP)
	assert.Equal(t, 2, st.ExercisesCompleted)
}

func TestLearners_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveLearner(ctx, sqlite.Learner{
		ID: "ana", Name: "Ana Torres", Email: "ana@example.edu", GradeLevel: "2-secundaria",
	}))
	require.NoError(t, store.SaveLearner(ctx, sqlite.Learner{
		ID: "bruno", Name: "Bruno Díaz",
	}))

	ana, err := store.GetLearner(ctx, "ana")
	require.NoError(t, err)
	require.NotNil(t, ana)
	assert.Equal(t, "Ana Torres", ana.Name)
	assert.Equal(t, "ana@example.edu", ana.Email)

	bruno, err := store.GetLearner(ctx, "bruno")
	require.NoError(t, err)
	assert.Empty(t, bruno.Email)

	nobody, err := store.GetLearner(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, nobody)

	all, err := store.ListLearners(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Ana Torres", all[0].Name)
}

func TestReset_ClearsEverything(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveBalance(ctx, testBalance("learner-1", 100)))
	require.NoError(t, store.SaveLearner(ctx, sqlite.Learner{ID: "ana", Name: "Ana"}))
	require.NoError(t, store.AddXP(ctx, "learner-1", 10))

	require.NoError(t, store.Reset(ctx))

	bal, err := store.GetBalance(ctx, "learner-1")
	require.NoError(t, err)
	assert.Nil(t, bal)

	learners, err := store.ListLearners(ctx)
	require.NoError(t, err)
	assert.Empty(t, learners)
}
