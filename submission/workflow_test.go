package submission_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gamilit/economy-engine/answers"
	"github.com/gamilit/economy-engine/economy"
	"github.com/gamilit/economy-engine/grading"
	"github.com/gamilit/economy-engine/powerup"
	"github.com/gamilit/economy-engine/store/sqlite"
	"github.com/gamilit/economy-engine/submission"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type testEnv struct {
	store    *sqlite.Store
	ledger   *economy.Ledger
	workflow *submission.Workflow
}

// newTestEnv wires the workflow exactly the way the server does: SQLite
// behind every interface and the local oracle for grading.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ledger := economy.NewLedger(store)
	oracle := grading.NewLocalOracle(store)
	workflow := submission.NewWorkflow(store, store, ledger, store, oracle)

	return &testEnv{store: store, ledger: ledger, workflow: workflow}
}

// seedTrueFalse saves a four-statement true/false exercise.
func (env *testEnv) seedTrueFalse(t *testing.T, id submission.ExerciseID) {
	t.Helper()
	require.NoError(t, env.store.SaveExercise(context.Background(), submission.Exercise{
		ID:       id,
		Title:    "Verdadero o falso",
		Type:     answers.TypeVerdaderoFalso,
		MaxScore: 100,
		AnswerKey: answers.Payload{
			"answers": map[string]any{"s1": true, "s2": false, "s3": true, "s4": false},
		},
		CreatedAt: time.Now().UTC(),
	}))
}

func vfAnswers(s1, s2, s3, s4 bool) answers.Payload {
	return answers.Payload{
		"answers": map[string]any{"s1": s1, "s2": s2, "s3": s3, "s4": s4},
	}
}

// =============================================================================
// SUBMIT - HAPPY PATH
// =============================================================================

func TestSubmit_PerfectScoreEndsClaimedWithRewards(t *testing.T) {
	// GIVEN: A true/false exercise and a fresh learner
	// WHEN: Submitting a fully correct answer
	// THEN: The submission is graded and claimed, coins are credited, XP added

	env := newTestEnv(t)
	ctx := context.Background()
	env.seedTrueFalse(t, "ex-1")

	sub, err := env.workflow.Submit(ctx, "learner-1", "ex-1", vfAnswers(true, false, true, false))
	require.NoError(t, err)

	assert.Equal(t, submission.StatusGraded, sub.Status)
	assert.Equal(t, submission.RewardClaimed, sub.RewardState)
	assert.Equal(t, int64(100), sub.Score)
	assert.True(t, sub.IsCorrect)
	assert.NotEmpty(t, sub.OracleAuditID)
	require.NotNil(t, sub.GradedAt)

	// Perfect and hint-free: 100 + 50 bonus XP, 10 + 10 bonus coins
	assert.Equal(t, int64(150), sub.XPAwarded)
	assert.Equal(t, economy.Coins(20), sub.CoinsAwarded)

	// Account was lazily provisioned, then credited
	bal, err := env.ledger.GetBalance(ctx, "learner-1")
	require.NoError(t, err)
	assert.Equal(t, economy.Coins(120), bal.Current)

	txs, err := env.ledger.ListTransactions(ctx, "learner-1",
		economy.TransactionFilter{Kind: economy.KindEarnedExercise}, economy.Page{})
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, string(sub.ID), txs[0].ReferenceID)
	assert.Equal(t, "submission", txs[0].ReferenceType)

	st, err := env.store.GetStats(ctx, "learner-1")
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.Equal(t, int64(150), st.TotalXP)
	assert.Equal(t, 1, st.ExercisesCompleted)
}

func TestSubmit_PartialScoreAboveThreshold(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedTrueFalse(t, "ex-1")

	// 3 of 4 correct: score 75, above the pass threshold
	sub, err := env.workflow.Submit(ctx, "learner-1", "ex-1", vfAnswers(true, false, true, true))
	require.NoError(t, err)

	assert.Equal(t, int64(75), sub.Score)
	assert.True(t, sub.IsCorrect)
	assert.Equal(t, int64(75), sub.XPAwarded)
	assert.Equal(t, economy.Coins(7), sub.CoinsAwarded)

	bal, err := env.ledger.GetBalance(ctx, "learner-1")
	require.NoError(t, err)
	assert.Equal(t, economy.Coins(107), bal.Current)
}

// =============================================================================
// SUBMIT - REJECTIONS
// =============================================================================

func TestSubmit_InvalidPayloadPersistsNothing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedTrueFalse(t, "ex-1")

	_, err := env.workflow.Submit(ctx, "learner-1", "ex-1",
		answers.Payload{"answers": map[string]any{"s1": "si"}})

	var ve *answers.ValidationError
	require.ErrorAs(t, err, &ve)

	prior, err := env.store.GetByAccountExercise(ctx, "learner-1", "ex-1")
	require.NoError(t, err)
	assert.Nil(t, prior, "rejected payload must not be persisted")
}

func TestSubmit_UnknownExercise(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.workflow.Submit(context.Background(), "learner-1", "ghost", vfAnswers(true, true, true, true))
	assert.ErrorIs(t, err, submission.ErrExerciseNotFound)
}

func TestSubmit_GradedRejectsResubmission(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedTrueFalse(t, "ex-1")

	first, err := env.workflow.Submit(ctx, "learner-1", "ex-1", vfAnswers(true, false, true, false))
	require.NoError(t, err)

	_, err = env.workflow.Submit(ctx, "learner-1", "ex-1", vfAnswers(true, false, true, false))
	assert.ErrorIs(t, err, submission.ErrAlreadyGraded)

	// The graded row is untouched
	again, err := env.workflow.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Score, again.Score)
	assert.Equal(t, first.XPAwarded, again.XPAwarded)
}

// =============================================================================
// CLAIM SEMANTICS
// =============================================================================

func TestClaimRewards_AtMostOnce(t *testing.T) {
	// GIVEN: A submission that already claimed its rewards
	// WHEN: Claiming again
	// THEN: ErrRewardAlreadyClaimed, and the ledger shows exactly one credit

	env := newTestEnv(t)
	ctx := context.Background()
	env.seedTrueFalse(t, "ex-1")

	sub, err := env.workflow.Submit(ctx, "learner-1", "ex-1", vfAnswers(true, false, true, false))
	require.NoError(t, err)

	_, err = env.workflow.ClaimRewards(ctx, sub.ID)
	assert.ErrorIs(t, err, submission.ErrRewardAlreadyClaimed)

	txs, err := env.ledger.ListTransactions(ctx, "learner-1",
		economy.TransactionFilter{Kind: economy.KindEarnedExercise}, economy.Page{})
	require.NoError(t, err)
	assert.Len(t, txs, 1, "repeat claim must never double-credit")
}

// flakySubmissionStore delegates to the real store but fails the next
// SaveSubmission on demand, simulating a storage outage between the
// ledger credit and the reward-state flip.
type flakySubmissionStore struct {
	submission.Store
	failNextSave bool
}

func (f *flakySubmissionStore) SaveSubmission(ctx context.Context, sub submission.Submission) error {
	if f.failNextSave {
		f.failNextSave = false
		return errors.New("simulated storage outage")
	}
	return f.Store.SaveSubmission(ctx, sub)
}

func TestClaimRewards_RetryAfterPartialFailureDoesNotDoubleCredit(t *testing.T) {
	// GIVEN: A claim that credited the ledger but failed to flip the
	//        reward state to claimed
	// WHEN: The learner retries the claim
	// THEN: The retry completes without a second credit or a second XP award

	env := newTestEnv(t)
	ctx := context.Background()

	flaky := &flakySubmissionStore{Store: env.store}
	oracle := grading.NewLocalOracle(env.store)
	workflow := submission.NewWorkflow(flaky, env.store, env.ledger, env.store, oracle)

	_, err := env.ledger.EnsureAccount(ctx, "learner-1")
	require.NoError(t, err)

	gradedAt := time.Now().UTC()
	require.NoError(t, env.store.SaveSubmission(ctx, submission.Submission{
		ID: "sub-1", AccountID: "learner-1", ExerciseID: "ex-1",
		Score: 100, MaxScore: 100, IsCorrect: true,
		Status: submission.StatusGraded, RewardState: submission.RewardPending,
		SubmittedAt: gradedAt, GradedAt: &gradedAt,
	}))

	// First attempt: the credit lands, the state flip does not.
	flaky.failNextSave = true
	_, err = workflow.ClaimRewards(ctx, "sub-1")
	require.Error(t, err)

	bal, err := env.ledger.GetBalance(ctx, "learner-1")
	require.NoError(t, err)
	assert.Equal(t, economy.Coins(120), bal.Current, "credit committed on the first attempt")

	sub, err := env.store.GetSubmission(ctx, "sub-1")
	require.NoError(t, err)
	assert.Equal(t, submission.RewardPending, sub.RewardState, "state flip failed")

	// Retry after the outage heals.
	outcome, err := workflow.ClaimRewards(ctx, "sub-1")
	require.NoError(t, err)
	assert.Equal(t, economy.Coins(120), outcome.Balance, "retry must not credit again")

	txs, err := env.ledger.ListTransactions(ctx, "learner-1",
		economy.TransactionFilter{Kind: economy.KindEarnedExercise}, economy.Page{})
	require.NoError(t, err)
	assert.Len(t, txs, 1, "exactly one credit across both attempts")

	st, err := env.store.GetStats(ctx, "learner-1")
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.Equal(t, int64(150), st.TotalXP, "XP awarded once, not per attempt")

	sub, err = env.store.GetSubmission(ctx, "sub-1")
	require.NoError(t, err)
	assert.Equal(t, submission.RewardClaimed, sub.RewardState)
	assert.Equal(t, economy.Coins(20), sub.CoinsAwarded)
}

func TestClaimRewards_IncorrectClaimsZeroWithoutLedger(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedTrueFalse(t, "ex-1")

	// 1 of 4 correct: score 25, below the pass threshold
	sub, err := env.workflow.Submit(ctx, "learner-1", "ex-1", vfAnswers(true, true, false, true))
	require.NoError(t, err)

	assert.Equal(t, int64(25), sub.Score)
	assert.False(t, sub.IsCorrect)
	assert.Equal(t, submission.RewardClaimed, sub.RewardState)
	assert.Equal(t, int64(0), sub.XPAwarded)
	assert.Equal(t, economy.Coins(0), sub.CoinsAwarded)

	// Only the provisioning grant: no journal entries at all
	_, entries, err := env.store.SumTransactions(ctx, "learner-1")
	require.NoError(t, err)
	assert.Equal(t, 0, entries)

	st, err := env.store.GetStats(ctx, "learner-1")
	require.NoError(t, err)
	assert.Nil(t, st, "zero XP must not create a stats row")
}

func TestClaimRewards_RequiresGradedStatus(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.store.SaveSubmission(ctx, submission.Submission{
		ID: "sub-draft", AccountID: "learner-1", ExerciseID: "ex-1",
		Status: submission.StatusDraft, RewardState: submission.RewardNone,
		SubmittedAt: time.Now().UTC(),
	}))

	_, err := env.workflow.ClaimRewards(ctx, "sub-draft")
	assert.ErrorIs(t, err, submission.ErrNotGraded)

	_, err = env.workflow.ClaimRewards(ctx, "ghost")
	assert.ErrorIs(t, err, submission.ErrSubmissionNotFound)
}

// =============================================================================
// SECONDARY TRANSITIONS
// =============================================================================

func TestRevertToDraft(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.store.SaveSubmission(ctx, submission.Submission{
		ID: "sub-1", AccountID: "learner-1", ExerciseID: "ex-1",
		Status: submission.StatusSubmitted, RewardState: submission.RewardNone,
		SubmittedAt: time.Now().UTC(),
	}))

	sub, err := env.workflow.RevertToDraft(ctx, "sub-1")
	require.NoError(t, err)
	assert.Equal(t, submission.StatusDraft, sub.Status)

	// Draft is the end of the backward road
	_, err = env.workflow.RevertToDraft(ctx, "sub-1")
	var ite *submission.InvalidTransitionError
	require.ErrorAs(t, err, &ite)
	assert.Equal(t, submission.StatusDraft, ite.From)
}

func TestRevertToDraft_GradedRefuses(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedTrueFalse(t, "ex-1")

	sub, err := env.workflow.Submit(ctx, "learner-1", "ex-1", vfAnswers(true, false, true, false))
	require.NoError(t, err)

	_, err = env.workflow.RevertToDraft(ctx, sub.ID)
	var ite *submission.InvalidTransitionError
	require.ErrorAs(t, err, &ite)
}

func TestReview_GradedToReviewed(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedTrueFalse(t, "ex-1")

	sub, err := env.workflow.Submit(ctx, "learner-1", "ex-1", vfAnswers(true, false, true, false))
	require.NoError(t, err)

	reviewed, err := env.workflow.Review(ctx, sub.ID, "Excelente trabajo")
	require.NoError(t, err)
	assert.Equal(t, submission.StatusReviewed, reviewed.Status)
	assert.Equal(t, "Excelente trabajo", reviewed.Feedback)
	require.NotNil(t, reviewed.ReviewedAt)

	// Reviewed is terminal
	_, err = env.workflow.Review(ctx, sub.ID, "otra vez")
	var ite *submission.InvalidTransitionError
	require.ErrorAs(t, err, &ite)
}

// =============================================================================
// POWER-UP ATTRIBUTION
// =============================================================================

func TestRegisterPowerUpUse_TracksUsageOnOpenSubmission(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.store.SaveSubmission(ctx, submission.Submission{
		ID: "sub-1", AccountID: "learner-1", ExerciseID: "ex-1",
		Status: submission.StatusSubmitted, RewardState: submission.RewardNone,
		SubmittedAt: time.Now().UTC(),
	}))

	require.NoError(t, env.workflow.RegisterPowerUpUse(ctx, "learner-1", "ex-1", powerup.Pistas))
	require.NoError(t, env.workflow.RegisterPowerUpUse(ctx, "learner-1", "ex-1", powerup.VisionLectora))

	sub, err := env.workflow.Get(ctx, "sub-1")
	require.NoError(t, err)
	assert.Equal(t, 1, sub.HintsUsed, "only pistas count as hints")
	assert.Equal(t, []string{"pistas", "vision_lectora"}, sub.PowerUpsUsed)
	assert.Equal(t, economy.Coins(40), sub.CoinsSpentOnPowerUps)
}

func TestRegisterPowerUpUse_NoOpWithoutOpenSubmission(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// No submission at all
	require.NoError(t, env.workflow.RegisterPowerUpUse(ctx, "learner-1", "ex-1", powerup.Pistas))

	// Graded submission is closed to attribution
	env.seedTrueFalse(t, "ex-2")
	sub, err := env.workflow.Submit(ctx, "learner-1", "ex-2", vfAnswers(true, false, true, false))
	require.NoError(t, err)

	require.NoError(t, env.workflow.RegisterPowerUpUse(ctx, "learner-1", "ex-2", powerup.Pistas))

	again, err := env.workflow.Get(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, again.HintsUsed)
}

// =============================================================================
// STATE MACHINE TABLE
// =============================================================================

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		from    submission.Status
		to      submission.Status
		allowed bool
	}{
		{submission.StatusDraft, submission.StatusSubmitted, true},
		{submission.StatusSubmitted, submission.StatusGraded, true},
		{submission.StatusSubmitted, submission.StatusDraft, true},
		{submission.StatusGraded, submission.StatusReviewed, true},
		{submission.StatusDraft, submission.StatusGraded, false},
		{submission.StatusGraded, submission.StatusDraft, false},
		{submission.StatusGraded, submission.StatusSubmitted, false},
		{submission.StatusReviewed, submission.StatusGraded, false},
		{submission.StatusReviewed, submission.StatusDraft, false},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.allowed {
			t.Errorf("CanTransitionTo(%s -> %s) = %v, want %v", tt.from, tt.to, got, tt.allowed)
		}
	}
}
