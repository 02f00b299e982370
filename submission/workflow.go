/*
workflow.go - Submission orchestration: validate, grade, claim

PURPOSE:
  The Workflow drives a submission through its lifecycle and is the only
  code that calls the ledger's Credit for exercise rewards. The primary
  path is Submit: validate the payload, persist the submitted row, grade
  through the oracle, and claim exactly once.

FAILURE SEMANTICS:
  - Validation failure: nothing persisted, caller may resubmit.
  - Oracle failure/timeout: submission stays submitted, Grade is retryable.
  - Claim failure after a successful grade: the reward stays pending; only
    ClaimRewards needs retrying, never Grade.

AT-MOST-ONCE CLAIM:
  The claim is gated on RewardState == pending and flips it to claimed
  after the credit lands. A second ClaimRewards call fails with
  ErrRewardAlreadyClaimed and never touches the ledger again. The credit
  itself carries an idempotency key derived from the submission id: if the
  state flip fails AFTER the credit committed (the reward stays pending),
  the retried claim replays the recorded transaction instead of crediting
  twice. The journal, not the submission row, is the source of truth for
  whether coins moved.

SEE ALSO:
  - types.go: State machine and collaborator interfaces
  - reward/calculator.go: Claim amounts
*/
package submission

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gamilit/economy-engine/answers"
	"github.com/gamilit/economy-engine/economy"
	"github.com/gamilit/economy-engine/powerup"
	"github.com/gamilit/economy-engine/reward"
)

// =============================================================================
// WORKFLOW
// =============================================================================

// Workflow coordinates the submission state machine with the ledger, the
// stats aggregate, and the grading oracle. All dependencies are injected.
type Workflow struct {
	submissions Store
	exercises   ExerciseStore
	ledger      *economy.Ledger
	stats       StatsSink
	oracle      Oracle
	now         func() time.Time
}

// NewWorkflow creates a workflow over the given collaborators.
func NewWorkflow(submissions Store, exercises ExerciseStore, ledger *economy.Ledger, stats StatsSink, oracle Oracle) *Workflow {
	return &Workflow{
		submissions: submissions,
		exercises:   exercises,
		ledger:      ledger,
		stats:       stats,
		oracle:      oracle,
		now:         time.Now,
	}
}

// NewWorkflowWithClock creates a workflow with an injected clock for tests.
func NewWorkflowWithClock(submissions Store, exercises ExerciseStore, ledger *economy.Ledger, stats StatsSink, oracle Oracle, now func() time.Time) *Workflow {
	w := NewWorkflow(submissions, exercises, ledger, stats, oracle)
	w.now = now
	return w
}

// =============================================================================
// SUBMIT - The primary entry point
// =============================================================================

// Submit validates the payload, persists the submission as submitted,
// grades it, and claims rewards when correct. An existing ungraded
// submission for the same (account, exercise) pair is updated in place; a
// graded one rejects with ErrAlreadyGraded before anything is written.
func (w *Workflow) Submit(ctx context.Context, account economy.AccountID, exerciseID ExerciseID, payload answers.Payload) (*Submission, error) {
	ex, err := w.exercises.GetExercise(ctx, exerciseID)
	if err != nil {
		return nil, err
	}
	if ex == nil {
		return nil, fmt.Errorf("exercise %s: %w", exerciseID, ErrExerciseNotFound)
	}

	// Pure pre-persistence gate: a payload that fails here never touches
	// storage or the state machine.
	if err := answers.Validate(ex.Type, payload); err != nil {
		return nil, err
	}

	prior, err := w.submissions.GetByAccountExercise(ctx, account, exerciseID)
	if err != nil {
		return nil, err
	}
	if prior != nil && prior.Status == StatusGraded {
		return nil, fmt.Errorf("exercise %s: %w", exerciseID, ErrAlreadyGraded)
	}

	// The grading integration lazily provisions the ledger account so a
	// learner's first submission never fails on a missing balance.
	if _, err := w.ledger.EnsureAccount(ctx, account); err != nil {
		return nil, err
	}

	now := w.now().UTC()
	var sub Submission
	if prior != nil {
		sub = *prior
		if !sub.Status.CanTransitionTo(StatusSubmitted) && sub.Status != StatusSubmitted {
			return nil, &InvalidTransitionError{From: sub.Status, To: StatusSubmitted}
		}
		sub.Answer = payload
		sub.Status = StatusSubmitted
		sub.SubmittedAt = now
	} else {
		sub = Submission{
			ID:          SubmissionID(uuid.NewString()),
			AccountID:   account,
			ExerciseID:  exerciseID,
			Answer:      payload,
			MaxScore:    ex.MaxScore,
			Status:      StatusSubmitted,
			RewardState: RewardNone,
			Attempt:     1,
			SubmittedAt: now,
		}
	}

	if err := w.submissions.SaveSubmission(ctx, sub); err != nil {
		return nil, err
	}

	graded, err := w.Grade(ctx, sub.ID)
	if err != nil {
		return nil, err
	}

	if graded.RewardState == RewardPending {
		if _, err := w.ClaimRewards(ctx, graded.ID); err != nil {
			// The grade stuck; only the claim needs retrying.
			return nil, fmt.Errorf("submission %s graded but reward claim failed: %w", graded.ID, err)
		}
	}

	return w.Get(ctx, sub.ID)
}

// =============================================================================
// GRADE
// =============================================================================

// Grade runs the oracle and performs the submitted -> graded transition.
// One-shot: an already-graded submission rejects with ErrAlreadyGraded and
// is never mutated. An oracle failure leaves the submission submitted.
func (w *Workflow) Grade(ctx context.Context, id SubmissionID) (*Submission, error) {
	sub, err := w.mustGet(ctx, id)
	if err != nil {
		return nil, err
	}

	switch sub.Status {
	case StatusSubmitted:
		// proceed
	case StatusGraded, StatusReviewed:
		return nil, fmt.Errorf("submission %s: %w", id, ErrAlreadyGraded)
	default:
		return nil, &InvalidTransitionError{From: sub.Status, To: StatusGraded}
	}

	result, err := w.oracle.ValidateAndGrade(ctx, GradeRequest{
		ExerciseID: sub.ExerciseID,
		AccountID:  sub.AccountID,
		Answer:     sub.Answer,
		Attempt:    sub.Attempt,
	})
	if err != nil {
		// No partial grade: status stays submitted and Grade is retryable.
		return nil, fmt.Errorf("grading submission %s: %w", id, err)
	}

	now := w.now().UTC()
	sub.Score = result.Score
	if result.MaxScore > 0 {
		sub.MaxScore = result.MaxScore
	}
	sub.IsCorrect = result.IsCorrect
	sub.Feedback = result.Feedback
	sub.OracleAuditID = result.AuditID
	sub.Status = StatusGraded
	sub.RewardState = RewardPending
	sub.GradedAt = &now

	if err := w.submissions.SaveSubmission(ctx, *sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// =============================================================================
// CLAIM
// =============================================================================

// ClaimRewards performs the single reward mutation for a graded
// submission: one ledger credit for coins and one XP award. Incorrect
// submissions claim zero without touching the ledger. Gated by
// RewardState, and the credit is keyed on the submission id, so neither a
// repeat call nor a retry after a partial failure can double-credit.
func (w *Workflow) ClaimRewards(ctx context.Context, id SubmissionID) (*ClaimOutcome, error) {
	sub, err := w.mustGet(ctx, id)
	if err != nil {
		return nil, err
	}

	if sub.Status != StatusGraded {
		return nil, fmt.Errorf("submission %s in status %s: %w", id, sub.Status, ErrNotGraded)
	}
	if sub.RewardState == RewardClaimed {
		return nil, fmt.Errorf("submission %s: %w", id, ErrRewardAlreadyClaimed)
	}

	outcome := &ClaimOutcome{SubmissionID: sub.ID}

	if !sub.IsCorrect {
		// Zero rewards, no ledger interaction. Still flips to claimed so
		// the claim cannot be replayed later with edited fields.
		sub.RewardState = RewardClaimed
		if err := w.submissions.SaveSubmission(ctx, *sub); err != nil {
			return nil, err
		}
		return outcome, nil
	}

	amounts := reward.Claim(sub.Score, sub.MaxScore, sub.HintsUsed, int64(sub.CoinsSpentOnPowerUps))
	outcome.XP = amounts.XP
	outcome.Coins = economy.Coins(amounts.Coins)

	replayed := false
	if outcome.Coins > 0 {
		res, err := w.ledger.Credit(ctx, sub.AccountID, outcome.Coins, economy.KindEarnedExercise, economy.MutationOptions{
			Description:    fmt.Sprintf("Reward for exercise %s", sub.ExerciseID),
			ReferenceID:    string(sub.ID),
			ReferenceType:  "submission",
			IdempotencyKey: "claim:" + string(sub.ID),
		})
		if err != nil {
			// Reward stays pending: the claim alone is retryable.
			return nil, err
		}
		outcome.Balance = res.Balance.Current
		replayed = res.Replayed
	} else {
		bal, err := w.ledger.GetBalance(ctx, sub.AccountID)
		if err != nil {
			return nil, err
		}
		outcome.Balance = bal.Current
	}

	// A replayed credit means an earlier claim attempt already ran the award
	// sequence and failed only at the state flip; re-running AddXP here
	// would double the XP.
	if outcome.XP > 0 && !replayed {
		if err := w.stats.AddXP(ctx, sub.AccountID, outcome.XP); err != nil {
			return nil, err
		}
	}

	sub.RewardState = RewardClaimed
	sub.XPAwarded = outcome.XP
	sub.CoinsAwarded = outcome.Coins
	if err := w.submissions.SaveSubmission(ctx, *sub); err != nil {
		return nil, err
	}

	return outcome, nil
}

// =============================================================================
// SECONDARY TRANSITIONS
// =============================================================================

// Review records manual feedback and performs graded -> reviewed.
func (w *Workflow) Review(ctx context.Context, id SubmissionID, feedback string) (*Submission, error) {
	sub, err := w.mustGet(ctx, id)
	if err != nil {
		return nil, err
	}
	if !sub.Status.CanTransitionTo(StatusReviewed) {
		return nil, &InvalidTransitionError{From: sub.Status, To: StatusReviewed}
	}

	now := w.now().UTC()
	sub.Status = StatusReviewed
	sub.Feedback = feedback
	sub.ReviewedAt = &now
	if err := w.submissions.SaveSubmission(ctx, *sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// RevertToDraft performs the one allowed backward transition,
// submitted -> draft, so a learner can withdraw an ungraded answer.
func (w *Workflow) RevertToDraft(ctx context.Context, id SubmissionID) (*Submission, error) {
	sub, err := w.mustGet(ctx, id)
	if err != nil {
		return nil, err
	}
	if !sub.Status.CanTransitionTo(StatusDraft) {
		return nil, &InvalidTransitionError{From: sub.Status, To: StatusDraft}
	}

	sub.Status = StatusDraft
	if err := w.submissions.SaveSubmission(ctx, *sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// RegisterPowerUpUse attributes a power-up consumption to the learner's
// open submission for the exercise, so the claim calculation sees the hint
// count and the coins spent during this attempt. No-op when there is no
// open submission.
func (w *Workflow) RegisterPowerUpUse(ctx context.Context, account economy.AccountID, exerciseID ExerciseID, typ powerup.Type) error {
	sub, err := w.submissions.GetByAccountExercise(ctx, account, exerciseID)
	if err != nil {
		return err
	}
	if sub == nil || sub.Status == StatusGraded || sub.Status == StatusReviewed {
		return nil
	}

	sub.PowerUpsUsed = append(sub.PowerUpsUsed, string(typ))
	sub.CoinsSpentOnPowerUps += typ.UnitCost()
	if typ == powerup.Pistas {
		sub.HintsUsed++
	}
	return w.submissions.SaveSubmission(ctx, *sub)
}

// =============================================================================
// READS
// =============================================================================

// Get returns a submission by id.
func (w *Workflow) Get(ctx context.Context, id SubmissionID) (*Submission, error) {
	return w.mustGet(ctx, id)
}

// ListByAccount returns a learner's submissions, newest first.
func (w *Workflow) ListByAccount(ctx context.Context, account economy.AccountID, limit int) ([]Submission, error) {
	return w.submissions.ListByAccount(ctx, account, limit)
}

func (w *Workflow) mustGet(ctx context.Context, id SubmissionID) (*Submission, error) {
	sub, err := w.submissions.GetSubmission(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, fmt.Errorf("submission %s: %w", id, ErrSubmissionNotFound)
	}
	return sub, nil
}
