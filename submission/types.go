/*
Package submission owns the exercise-submission lifecycle.

PURPOSE:
  A submission is one learner's answer attempt at one exercise, tracked
  through a strict status state machine. This package orchestrates answer
  validation, grading through an external oracle, and the single reward
  claim into the coin ledger and XP aggregate.

STATE MACHINE:
  draft -> submitted -> graded -> reviewed
  with submitted -> draft as the only allowed revert. Everything else is
  InvalidTransitionError. Graded and reviewed submissions reject answer
  edits, and a graded submission rejects re-submission entirely.

REWARD STATE (separate from status):
  none -> pending -> claimed
  The pending flag is set on the graded transition; the claim mutates the
  ledger exactly once and flips it to claimed. A claim failure leaves the
  flag pending so claiming alone can be retried without re-grading. This
  makes at-most-once crediting structural instead of relying on caller
  discipline.

KEY CONCEPTS IN THIS FILE (types.go):
  - Status / RewardState: The two lifecycle dimensions
  - Submission: The row per (learner, exercise) attempt
  - Exercise: Minimal catalog record (type tag, max score, answer key)
  - Oracle / StatsSink / Store interfaces: Injected collaborators

SEE ALSO:
  - workflow.go: Submit/Grade/ClaimRewards orchestration
  - answers/: The pre-persistence payload gate
  - reward/: The claim amount calculation
*/
package submission

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gamilit/economy-engine/answers"
	"github.com/gamilit/economy-engine/economy"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type SubmissionID string
type ExerciseID string

// =============================================================================
// STATUS STATE MACHINE
// =============================================================================

type Status string

const (
	StatusDraft     Status = "draft"
	StatusSubmitted Status = "submitted"
	StatusGraded    Status = "graded"
	StatusReviewed  Status = "reviewed"
)

// validTransitions is the complete transition table. Reviewed is terminal.
var validTransitions = map[Status][]Status{
	StatusDraft:     {StatusSubmitted},
	StatusSubmitted: {StatusGraded, StatusDraft},
	StatusGraded:    {StatusReviewed},
	StatusReviewed:  {},
}

// CanTransitionTo reports whether from -> to is a legal transition.
func (s Status) CanTransitionTo(to Status) bool {
	for _, next := range validTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// RewardState tracks the claim lifecycle independently of Status.
type RewardState string

const (
	RewardNone    RewardState = "none"    // not graded yet
	RewardPending RewardState = "pending" // graded, claim not yet executed
	RewardClaimed RewardState = "claimed" // ledger/XP mutation happened (or zeroed for incorrect)
)

// =============================================================================
// SUBMISSION
// =============================================================================

// Submission is one attempt row. Answer edits are only legal in draft and
// submitted; score fields are written once by Grade.
type Submission struct {
	ID                   SubmissionID
	AccountID            economy.AccountID
	ExerciseID           ExerciseID
	Answer               answers.Payload
	Score                int64
	MaxScore             int64
	IsCorrect            bool
	Status               Status
	RewardState          RewardState
	HintsUsed            int
	PowerUpsUsed         []string
	CoinsSpentOnPowerUps economy.Coins
	Attempt              int
	Feedback             string
	OracleAuditID        string
	XPAwarded            int64
	CoinsAwarded         economy.Coins
	SubmittedAt          time.Time
	GradedAt             *time.Time
	ReviewedAt           *time.Time
}

// Exercise is the minimal catalog record the workflow needs: the type tag
// selects the answer schema, the answer key feeds the local oracle.
type Exercise struct {
	ID        ExerciseID
	Title     string
	Type      answers.ExerciseType
	MaxScore  int64
	AnswerKey answers.Payload
	CreatedAt time.Time
}

// ClaimOutcome reports what a reward claim credited.
type ClaimOutcome struct {
	SubmissionID SubmissionID
	XP           int64
	Coins        economy.Coins
	Balance      economy.Coins // ledger balance after the credit
}

// =============================================================================
// COLLABORATOR INTERFACES
// =============================================================================

// Store persists submissions.
type Store interface {
	// GetSubmission returns the row, or (nil, nil) if absent.
	GetSubmission(ctx context.Context, id SubmissionID) (*Submission, error)

	// GetByAccountExercise returns the latest submission for the pair, or
	// (nil, nil) if the learner never attempted the exercise.
	GetByAccountExercise(ctx context.Context, account economy.AccountID, exercise ExerciseID) (*Submission, error)

	// SaveSubmission upserts the row.
	SaveSubmission(ctx context.Context, sub Submission) error

	// ListByAccount returns submissions newest first. limit <= 0: no limit.
	ListByAccount(ctx context.Context, account economy.AccountID, limit int) ([]Submission, error)
}

// ExerciseStore persists the exercise catalog.
type ExerciseStore interface {
	GetExercise(ctx context.Context, id ExerciseID) (*Exercise, error)
	SaveExercise(ctx context.Context, ex Exercise) error
	ListExercises(ctx context.Context) ([]Exercise, error)
}

// GradeRequest is the oracle input contract.
type GradeRequest struct {
	ExerciseID ExerciseID
	AccountID  economy.AccountID
	Answer     answers.Payload
	Attempt    int
}

// GradeResult is the oracle output contract.
type GradeResult struct {
	Score     int64
	MaxScore  int64
	IsCorrect bool
	Feedback  string
	Details   map[string]any
	AuditID   string
}

// Oracle grades a submitted answer. Treated as opaque and possibly remote;
// a returned error means no grade was produced and the submission stays
// submitted for a safe retry.
type Oracle interface {
	ValidateAndGrade(ctx context.Context, req GradeRequest) (*GradeResult, error)
}

// StatsSink receives XP awards. XP lives outside the coin ledger; the
// claim flow calls this once per successful claim, symmetrically with the
// coin credit.
type StatsSink interface {
	AddXP(ctx context.Context, account economy.AccountID, amount int64) error
}

// =============================================================================
// ERROR TYPES
// =============================================================================

var (
	// ErrSubmissionNotFound is returned for an unknown submission id.
	ErrSubmissionNotFound = errors.New("submission not found")

	// ErrExerciseNotFound is returned for an unknown exercise id.
	ErrExerciseNotFound = errors.New("exercise not found")

	// ErrAlreadyGraded rejects re-submission or re-grading of a graded
	// submission. Never mutates score or status.
	ErrAlreadyGraded = errors.New("submission already graded")

	// ErrNotGraded rejects a claim on a submission that is not graded.
	ErrNotGraded = errors.New("submission must be graded before claiming rewards")

	// ErrRewardAlreadyClaimed rejects a second claim for the same submission.
	ErrRewardAlreadyClaimed = errors.New("rewards already claimed")
)

// InvalidTransitionError reports an illegal status transition.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition from %s to %s", e.From, e.To)
}
