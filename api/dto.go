/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Validation is done in handlers and domain services, not in DTOs. DTOs are
  pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/gamilit/economy-engine/answers"
	"github.com/gamilit/economy-engine/economy"
	"github.com/gamilit/economy-engine/powerup"
	"github.com/gamilit/economy-engine/stats"
	"github.com/gamilit/economy-engine/store/sqlite"
	"github.com/gamilit/economy-engine/submission"
)

// =============================================================================
// LEARNERS
// =============================================================================

// LearnerDTO represents a learner profile in API responses.
type LearnerDTO struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email,omitempty"`
	GradeLevel string `json:"grade_level,omitempty"`
	CreatedAt  string `json:"created_at,omitempty"`
}

// CreateLearnerRequest is the request to register a learner.
type CreateLearnerRequest struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	GradeLevel string `json:"grade_level"`
}

// =============================================================================
// BALANCES AND TRANSACTIONS
// =============================================================================

// BalanceDTO represents a coin balance in API responses.
type BalanceDTO struct {
	AccountID   string `json:"account_id"`
	Current     int64  `json:"current"`
	EarnedTotal int64  `json:"earned_total"`
	SpentTotal  int64  `json:"spent_total"`
	EarnedToday int64  `json:"earned_today"`
	Frozen      bool   `json:"frozen"`
	UpdatedAt   string `json:"updated_at,omitempty"`
}

// TransactionDTO represents one coin journal entry.
type TransactionDTO struct {
	ID            string `json:"id"`
	AccountID     string `json:"account_id"`
	Amount        int64  `json:"amount"`
	BalanceBefore int64  `json:"balance_before"`
	BalanceAfter  int64  `json:"balance_after"`
	Kind          string `json:"kind"`
	Description   string `json:"description,omitempty"`
	ReferenceID   string `json:"reference_id,omitempty"`
	ReferenceType string `json:"reference_type,omitempty"`
	CreatedAt     string `json:"created_at"`
}

// MutationRequest is the request body for admin credits and debits.
type MutationRequest struct {
	AccountID   string `json:"account_id"`
	Amount      int64  `json:"amount"`
	Kind        string `json:"kind,omitempty"`
	Description string `json:"description,omitempty"`
	ReferenceID string `json:"reference_id,omitempty"`
}

// AuditReportDTO is the result of reconciling a balance against the journal.
type AuditReportDTO struct {
	AccountID  string `json:"account_id"`
	Calculated int64  `json:"calculated"`
	Actual     int64  `json:"actual"`
	Difference int64  `json:"difference"`
	Entries    int    `json:"entries"`
	Valid      bool   `json:"valid"`
}

// DailySummaryDTO aggregates one day of coin activity.
type DailySummaryDTO struct {
	AccountID string `json:"account_id"`
	Day       string `json:"day"`
	Earned    int64  `json:"earned"`
	Spent     int64  `json:"spent"`
	Net       int64  `json:"net"`
	Entries   int    `json:"entries"`
}

// =============================================================================
// POWER-UPS
// =============================================================================

// SlotDTO represents counters for one power-up type.
type SlotDTO struct {
	Type           string `json:"type"`
	Available      int    `json:"available"`
	PurchasedTotal int    `json:"purchased_total"`
	UsedTotal      int    `json:"used_total"`
	UnitCost       int64  `json:"unit_cost"`
}

// InventoryDTO represents a learner's power-up inventory.
type InventoryDTO struct {
	AccountID string    `json:"account_id"`
	Slots     []SlotDTO `json:"slots"`
	UpdatedAt string    `json:"updated_at,omitempty"`
}

// PurchaseRequest is the request to buy power-ups.
type PurchaseRequest struct {
	Type     string `json:"type"`
	Quantity int    `json:"quantity"`
}

// UseRequest is the request to consume one power-up.
type UseRequest struct {
	Type       string `json:"type"`
	ExerciseID string `json:"exercise_id,omitempty"`
	Note       string `json:"note,omitempty"`
}

// PowerUpEntryDTO represents one purchase/use journal record.
type PowerUpEntryDTO struct {
	ID          string `json:"id"`
	Kind        string `json:"kind"`
	Type        string `json:"type"`
	Quantity    int    `json:"quantity"`
	Cost        int64  `json:"cost,omitempty"`
	ExerciseRef string `json:"exercise_ref,omitempty"`
	Note        string `json:"note,omitempty"`
	CreatedAt   string `json:"created_at"`
}

// PowerUpStatsDTO is the derived usage view.
type PowerUpStatsDTO struct {
	TotalPurchased  int       `json:"total_purchased"`
	TotalUsed       int       `json:"total_used"`
	TotalCoinsSpent int64     `json:"total_coins_spent"`
	UsageRate       float64   `json:"usage_rate"`
	MostUsedType    string    `json:"most_used_type,omitempty"`
	ByType          []SlotDTO `json:"by_type"`
}

// =============================================================================
// EXERCISES AND SUBMISSIONS
// =============================================================================

// ExerciseDTO represents a catalog record. The answer key is never exposed.
type ExerciseDTO struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Type      string `json:"type"`
	MaxScore  int64  `json:"max_score"`
	CreatedAt string `json:"created_at,omitempty"`
}

// CreateExerciseRequest is the request to add a catalog record.
type CreateExerciseRequest struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	Type      string          `json:"type"`
	MaxScore  int64           `json:"max_score"`
	AnswerKey answers.Payload `json:"answer_key"`
}

// SubmitRequest is the request to submit an answer for an exercise.
type SubmitRequest struct {
	AccountID string          `json:"account_id"`
	Answer    answers.Payload `json:"answer"`
}

// ReviewRequest is the request to record manual feedback.
type ReviewRequest struct {
	Feedback string `json:"feedback"`
}

// SubmissionDTO represents a submission row.
type SubmissionDTO struct {
	ID           string   `json:"id"`
	AccountID    string   `json:"account_id"`
	ExerciseID   string   `json:"exercise_id"`
	Score        int64    `json:"score"`
	MaxScore     int64    `json:"max_score"`
	IsCorrect    bool     `json:"is_correct"`
	Status       string   `json:"status"`
	RewardState  string   `json:"reward_state"`
	HintsUsed    int      `json:"hints_used"`
	PowerUpsUsed []string `json:"powerups_used,omitempty"`
	Attempt      int      `json:"attempt"`
	Feedback     string   `json:"feedback,omitempty"`
	XPAwarded    int64    `json:"xp_awarded"`
	CoinsAwarded int64    `json:"coins_awarded"`
	SubmittedAt  string   `json:"submitted_at"`
	GradedAt     string   `json:"graded_at,omitempty"`
	ReviewedAt   string   `json:"reviewed_at,omitempty"`
}

// ClaimOutcomeDTO reports what a reward claim credited.
type ClaimOutcomeDTO struct {
	SubmissionID string `json:"submission_id"`
	XP           int64  `json:"xp"`
	Coins        int64  `json:"coins"`
	Balance      int64  `json:"balance"`
}

// =============================================================================
// STATS AND LEADERBOARD
// =============================================================================

// StatsDTO represents the learner XP aggregate.
type StatsDTO struct {
	AccountID          string `json:"account_id"`
	TotalXP            int64  `json:"total_xp"`
	Level              int    `json:"level"`
	ExercisesCompleted int    `json:"exercises_completed"`
}

// LeaderboardEntryDTO is one row of the top-earners listing.
type LeaderboardEntryDTO struct {
	Rank        int    `json:"rank"`
	AccountID   string `json:"account_id"`
	EarnedTotal int64  `json:"earned_total"`
	Current     int64  `json:"current"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toLearnerDTO(l sqlite.Learner) LearnerDTO {
	return LearnerDTO{
		ID:         l.ID,
		Name:       l.Name,
		Email:      l.Email,
		GradeLevel: l.GradeLevel,
		CreatedAt:  l.CreatedAt.Format(time.RFC3339),
	}
}

func toBalanceDTO(b *economy.Balance) BalanceDTO {
	return BalanceDTO{
		AccountID:   string(b.AccountID),
		Current:     int64(b.Current),
		EarnedTotal: int64(b.EarnedTotal),
		SpentTotal:  int64(b.SpentTotal),
		EarnedToday: int64(b.EarnedToday),
		Frozen:      b.Frozen,
		UpdatedAt:   b.UpdatedAt.Format(time.RFC3339),
	}
}

func toTransactionDTO(tx economy.Transaction) TransactionDTO {
	return TransactionDTO{
		ID:            string(tx.ID),
		AccountID:     string(tx.AccountID),
		Amount:        int64(tx.Amount),
		BalanceBefore: int64(tx.BalanceBefore),
		BalanceAfter:  int64(tx.BalanceAfter),
		Kind:          string(tx.Kind),
		Description:   tx.Description,
		ReferenceID:   tx.ReferenceID,
		ReferenceType: tx.ReferenceType,
		CreatedAt:     tx.CreatedAt.Format(time.RFC3339),
	}
}

func toTransactionDTOs(txs []economy.Transaction) []TransactionDTO {
	dtos := make([]TransactionDTO, len(txs))
	for i, tx := range txs {
		dtos[i] = toTransactionDTO(tx)
	}
	return dtos
}

func toAuditReportDTO(rep *economy.AuditReport) AuditReportDTO {
	return AuditReportDTO{
		AccountID:  string(rep.AccountID),
		Calculated: int64(rep.Calculated),
		Actual:     int64(rep.Actual),
		Difference: int64(rep.Difference),
		Entries:    rep.Entries,
		Valid:      rep.Valid,
	}
}

func toInventoryDTO(inv *powerup.Inventory) InventoryDTO {
	dto := InventoryDTO{
		AccountID: string(inv.AccountID),
		UpdatedAt: inv.UpdatedAt.Format(time.RFC3339),
	}
	for _, t := range powerup.Types() {
		dto.Slots = append(dto.Slots, toSlotDTO(t, inv.Slot(t)))
	}
	return dto
}

func toSlotDTO(t powerup.Type, s powerup.Slot) SlotDTO {
	return SlotDTO{
		Type:           string(t),
		Available:      s.Available,
		PurchasedTotal: s.PurchasedTotal,
		UsedTotal:      s.UsedTotal,
		UnitCost:       int64(s.UnitCost),
	}
}

func toSubmissionDTO(sub *submission.Submission) SubmissionDTO {
	dto := SubmissionDTO{
		ID:           string(sub.ID),
		AccountID:    string(sub.AccountID),
		ExerciseID:   string(sub.ExerciseID),
		Score:        sub.Score,
		MaxScore:     sub.MaxScore,
		IsCorrect:    sub.IsCorrect,
		Status:       string(sub.Status),
		RewardState:  string(sub.RewardState),
		HintsUsed:    sub.HintsUsed,
		PowerUpsUsed: sub.PowerUpsUsed,
		Attempt:      sub.Attempt,
		Feedback:     sub.Feedback,
		XPAwarded:    sub.XPAwarded,
		CoinsAwarded: int64(sub.CoinsAwarded),
		SubmittedAt:  sub.SubmittedAt.Format(time.RFC3339),
	}
	if sub.GradedAt != nil {
		dto.GradedAt = sub.GradedAt.Format(time.RFC3339)
	}
	if sub.ReviewedAt != nil {
		dto.ReviewedAt = sub.ReviewedAt.Format(time.RFC3339)
	}
	return dto
}

func toExerciseDTO(ex submission.Exercise) ExerciseDTO {
	return ExerciseDTO{
		ID:        string(ex.ID),
		Title:     ex.Title,
		Type:      string(ex.Type),
		MaxScore:  ex.MaxScore,
		CreatedAt: ex.CreatedAt.Format(time.RFC3339),
	}
}

func toStatsDTO(st *stats.Stats) StatsDTO {
	return StatsDTO{
		AccountID:          string(st.AccountID),
		TotalXP:            st.TotalXP,
		Level:              st.Level(),
		ExercisesCompleted: st.ExercisesCompleted,
	}
}
