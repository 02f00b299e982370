/*
handlers.go - HTTP API handlers for the economy engine

PURPOSE:
  Exposes the coin ledger, power-up inventories, and the submission
  workflow via REST API. Handles HTTP request/response, JSON
  serialization, and delegates to domain logic.

ENDPOINTS:
  Learners:
    GET    /api/learners                      List all learners
    POST   /api/learners                      Register learner
    GET    /api/learners/{id}                 Get learner profile
    GET    /api/learners/{id}/balance         Get coin balance
    GET    /api/learners/{id}/transactions    Coin journal
    GET    /api/learners/{id}/summary         Daily activity summary
    GET    /api/learners/{id}/stats           XP aggregate
    GET    /api/learners/{id}/submissions     Submission history

  Power-ups:
    GET    /api/learners/{id}/inventory        Inventory
    GET    /api/learners/{id}/powerups/stats   Usage stats
    GET    /api/learners/{id}/powerups/history Purchase/use journal
    POST   /api/learners/{id}/powerups/purchase
    POST   /api/learners/{id}/powerups/use

  Exercises and submissions:
    GET    /api/exercises                     List catalog
    POST   /api/exercises                     Add catalog record
    GET    /api/exercises/{id}                Get catalog record
    POST   /api/exercises/{id}/submit         Submit an answer
    GET    /api/submissions/{id}              Get submission
    POST   /api/submissions/{id}/claim        Retry a pending reward claim
    POST   /api/submissions/{id}/review       Record manual feedback
    POST   /api/submissions/{id}/revert       Withdraw to draft

  Admin:
    POST   /api/admin/credit                  Manual credit
    POST   /api/admin/debit                   Manual debit
    POST   /api/admin/audit/{id}              Audit one balance
    POST   /api/admin/reconcile/{id}          Reconcile a frozen account
    POST   /api/admin/freeze/{id}             Freeze an account
    POST   /api/admin/seed                    Load demo data
    POST   /api/admin/reset                   Clear the database (dev only)

  Other:
    GET    /api/leaderboard                   Top earners

ERROR HANDLING:
  Errors are returned as JSON with the status from statusForError:
  - 400: Validation errors, invalid input
  - 404: Missing learner, exercise, or submission
  - 409: State conflicts (insufficient balance/stock, already graded...)
  - 423: Frozen account awaiting reconciliation
  - 500: Internal and consistency errors

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/gamilit/economy-engine/answers"
	"github.com/gamilit/economy-engine/economy"
	"github.com/gamilit/economy-engine/powerup"
	"github.com/gamilit/economy-engine/stats"
	"github.com/gamilit/economy-engine/store/sqlite"
	"github.com/gamilit/economy-engine/submission"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store    *sqlite.Store
	Ledger   *economy.Ledger
	PowerUps *powerup.Service
	Workflow *submission.Workflow
	Stats    stats.Store
}

// NewHandler creates a handler over the wired services.
func NewHandler(store *sqlite.Store, ledger *economy.Ledger, powerups *powerup.Service, workflow *submission.Workflow, statsStore stats.Store) *Handler {
	return &Handler{
		Store:    store,
		Ledger:   ledger,
		PowerUps: powerups,
		Workflow: workflow,
		Stats:    statsStore,
	}
}

// =============================================================================
// LEARNER HANDLERS
// =============================================================================

// ListLearners returns all learner profiles.
func (h *Handler) ListLearners(w http.ResponseWriter, r *http.Request) {
	learners, err := h.Store.ListLearners(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list learners", err)
		return
	}

	dtos := make([]LearnerDTO, len(learners))
	for i, l := range learners {
		dtos[i] = toLearnerDTO(l)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetLearner returns a single learner profile.
func (h *Handler) GetLearner(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	l, err := h.Store.GetLearner(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get learner", err)
		return
	}
	if l == nil {
		writeError(w, http.StatusNotFound, "Learner not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toLearnerDTO(*l))
}

// CreateLearner registers a learner and provisions the coin account with
// the initial grant.
func (h *Handler) CreateLearner(w http.ResponseWriter, r *http.Request) {
	var req CreateLearnerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "id and name are required", nil)
		return
	}

	l := sqlite.Learner{
		ID:         req.ID,
		Name:       req.Name,
		Email:      req.Email,
		GradeLevel: req.GradeLevel,
	}
	if err := h.Store.SaveLearner(r.Context(), l); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create learner", err)
		return
	}

	if _, err := h.Ledger.EnsureAccount(r.Context(), economy.AccountID(req.ID)); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to provision coin account", err)
		return
	}

	writeJSON(w, http.StatusCreated, toLearnerDTO(l))
}

// =============================================================================
// BALANCE HANDLERS
// =============================================================================

// GetBalance returns a learner's coin balance.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	account := economy.AccountID(chi.URLParam(r, "id"))

	bal, err := h.Ledger.GetBalance(r.Context(), account)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceDTO(bal))
}

// GetTransactions returns the coin journal for a learner, newest first.
// Query params: kind, reference_id, from, to (RFC3339 or YYYY-MM-DD),
// limit, offset.
func (h *Handler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	account := economy.AccountID(chi.URLParam(r, "id"))

	from, err := queryTime(r, "from")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid from timestamp (use RFC3339 or YYYY-MM-DD)", err)
		return
	}
	to, err := queryTime(r, "to")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid to timestamp (use RFC3339 or YYYY-MM-DD)", err)
		return
	}

	filter := economy.TransactionFilter{
		Kind:        economy.TransactionKind(r.URL.Query().Get("kind")),
		ReferenceID: r.URL.Query().Get("reference_id"),
		From:        from,
		To:          to,
	}
	page := economy.Page{
		Limit:  queryInt(r, "limit", 50),
		Offset: queryInt(r, "offset", 0),
	}

	txs, err := h.Ledger.ListTransactions(r.Context(), account, filter, page)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTOs(txs))
}

// GetDailySummary aggregates one day of coin activity. Query param: day
// (YYYY-MM-DD, defaults to today UTC).
func (h *Handler) GetDailySummary(w http.ResponseWriter, r *http.Request) {
	account := economy.AccountID(chi.URLParam(r, "id"))

	day := time.Now().UTC()
	if raw := r.URL.Query().Get("day"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid day format (use YYYY-MM-DD)", err)
			return
		}
		day = parsed
	}

	summary, err := h.Ledger.DailySummary(r.Context(), account, day)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, DailySummaryDTO{
		AccountID: string(summary.AccountID),
		Day:       summary.Day.Format("2006-01-02"),
		Earned:    int64(summary.Earned),
		Spent:     int64(summary.Spent),
		Net:       int64(summary.Net),
		Entries:   summary.Entries,
	})
}

// GetLeaderboard returns accounts ordered by lifetime earned coins.
func (h *Handler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	balances, err := h.Ledger.TopEarners(r.Context(), queryInt(r, "limit", 10))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load leaderboard", err)
		return
	}

	entries := make([]LeaderboardEntryDTO, len(balances))
	for i, b := range balances {
		entries[i] = LeaderboardEntryDTO{
			Rank:        i + 1,
			AccountID:   string(b.AccountID),
			EarnedTotal: int64(b.EarnedTotal),
			Current:     int64(b.Current),
		}
	}
	writeJSON(w, http.StatusOK, entries)
}

// GetStats returns the learner XP aggregate. A learner with no XP yet gets
// a zeroed record rather than 404.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	account := economy.AccountID(chi.URLParam(r, "id"))

	st, err := h.Stats.GetStats(r.Context(), account)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load stats", err)
		return
	}
	if st == nil {
		st = &stats.Stats{AccountID: account}
	}
	writeJSON(w, http.StatusOK, toStatsDTO(st))
}

// =============================================================================
// POWER-UP HANDLERS
// =============================================================================

// GetInventory returns the learner's power-up inventory.
func (h *Handler) GetInventory(w http.ResponseWriter, r *http.Request) {
	account := economy.AccountID(chi.URLParam(r, "id"))

	inv, err := h.PowerUps.Inventory(r.Context(), account)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load inventory", err)
		return
	}
	writeJSON(w, http.StatusOK, toInventoryDTO(inv))
}

// PurchasePowerUp buys power-up units with coins.
func (h *Handler) PurchasePowerUp(w http.ResponseWriter, r *http.Request) {
	account := economy.AccountID(chi.URLParam(r, "id"))

	var req PurchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	inv, err := h.PowerUps.Purchase(r.Context(), account, powerup.Type(req.Type), req.Quantity)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	powerUpPurchases.Inc()
	writeJSON(w, http.StatusOK, toInventoryDTO(inv))
}

// UsePowerUp consumes one power-up unit and attributes it to the learner's
// open submission, if any.
func (h *Handler) UsePowerUp(w http.ResponseWriter, r *http.Request) {
	account := economy.AccountID(chi.URLParam(r, "id"))

	var req UseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	typ := powerup.Type(req.Type)
	inv, err := h.PowerUps.Use(r.Context(), account, typ, req.ExerciseID, req.Note)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if req.ExerciseID != "" {
		if err := h.Workflow.RegisterPowerUpUse(r.Context(), account, submission.ExerciseID(req.ExerciseID), typ); err != nil {
			writeError(w, http.StatusInternalServerError, "Power-up consumed but attribution failed", err)
			return
		}
	}

	writeJSON(w, http.StatusOK, toInventoryDTO(inv))
}

// GetPowerUpStats returns the derived usage view.
func (h *Handler) GetPowerUpStats(w http.ResponseWriter, r *http.Request) {
	account := economy.AccountID(chi.URLParam(r, "id"))

	st, err := h.PowerUps.Stats(r.Context(), account)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load power-up stats", err)
		return
	}

	dto := PowerUpStatsDTO{
		TotalPurchased:  st.TotalPurchased,
		TotalUsed:       st.TotalUsed,
		TotalCoinsSpent: int64(st.TotalCoinsSpent),
		UsageRate:       st.UsageRate,
		MostUsedType:    string(st.MostUsedType),
	}
	for _, t := range powerup.Types() {
		dto.ByType = append(dto.ByType, toSlotDTO(t, st.ByType[t]))
	}
	writeJSON(w, http.StatusOK, dto)
}

// GetPowerUpHistory returns the purchase/use journal, newest first.
func (h *Handler) GetPowerUpHistory(w http.ResponseWriter, r *http.Request) {
	account := economy.AccountID(chi.URLParam(r, "id"))

	entries, err := h.PowerUps.History(r.Context(), account, queryInt(r, "limit", 50))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load power-up history", err)
		return
	}

	dtos := make([]PowerUpEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = PowerUpEntryDTO{
			ID:          e.ID,
			Kind:        string(e.Kind),
			Type:        string(e.Type),
			Quantity:    e.Quantity,
			Cost:        int64(e.Cost),
			ExerciseRef: e.ExerciseRef,
			Note:        e.Note,
			CreatedAt:   e.CreatedAt.Format(time.RFC3339),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// EXERCISE HANDLERS
// =============================================================================

// ListExercises returns the catalog without answer keys.
func (h *Handler) ListExercises(w http.ResponseWriter, r *http.Request) {
	exercises, err := h.Store.ListExercises(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list exercises", err)
		return
	}

	dtos := make([]ExerciseDTO, len(exercises))
	for i, ex := range exercises {
		dtos[i] = toExerciseDTO(ex)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetExercise returns a catalog record without its answer key.
func (h *Handler) GetExercise(w http.ResponseWriter, r *http.Request) {
	id := submission.ExerciseID(chi.URLParam(r, "id"))

	ex, err := h.Store.GetExercise(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get exercise", err)
		return
	}
	if ex == nil {
		writeError(w, http.StatusNotFound, "Exercise not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toExerciseDTO(*ex))
}

// CreateExercise adds a catalog record.
func (h *Handler) CreateExercise(w http.ResponseWriter, r *http.Request) {
	var req CreateExerciseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	typ := answers.ExerciseType(req.Type)
	if !typ.IsValid() {
		writeDomainError(w, &answers.UnknownTypeError{Type: typ})
		return
	}
	if req.MaxScore < 1 {
		writeError(w, http.StatusBadRequest, "max_score must be at least 1", nil)
		return
	}

	ex := submission.Exercise{
		ID:        submission.ExerciseID(req.ID),
		Title:     req.Title,
		Type:      typ,
		MaxScore:  req.MaxScore,
		AnswerKey: req.AnswerKey,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.Store.SaveExercise(r.Context(), ex); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save exercise", err)
		return
	}
	writeJSON(w, http.StatusCreated, toExerciseDTO(ex))
}

// =============================================================================
// SUBMISSION HANDLERS
// =============================================================================

// SubmitAnswer runs the full submit-grade-claim pipeline.
func (h *Handler) SubmitAnswer(w http.ResponseWriter, r *http.Request) {
	exerciseID := submission.ExerciseID(chi.URLParam(r, "id"))

	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.AccountID == "" {
		writeError(w, http.StatusBadRequest, "account_id is required", nil)
		return
	}

	sub, err := h.Workflow.Submit(r.Context(), economy.AccountID(req.AccountID), exerciseID, req.Answer)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	gradingsProcessed.Inc()
	writeJSON(w, http.StatusCreated, toSubmissionDTO(sub))
}

// GetSubmission returns one submission row.
func (h *Handler) GetSubmission(w http.ResponseWriter, r *http.Request) {
	id := submission.SubmissionID(chi.URLParam(r, "id"))

	sub, err := h.Workflow.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSubmissionDTO(sub))
}

// ListSubmissions returns a learner's submissions, newest first.
func (h *Handler) ListSubmissions(w http.ResponseWriter, r *http.Request) {
	account := economy.AccountID(chi.URLParam(r, "id"))

	subs, err := h.Workflow.ListByAccount(r.Context(), account, queryInt(r, "limit", 50))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list submissions", err)
		return
	}

	dtos := make([]SubmissionDTO, len(subs))
	for i := range subs {
		dtos[i] = toSubmissionDTO(&subs[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ClaimRewards retries the reward claim for a graded submission whose
// earlier claim failed.
func (h *Handler) ClaimRewards(w http.ResponseWriter, r *http.Request) {
	id := submission.SubmissionID(chi.URLParam(r, "id"))

	outcome, err := h.Workflow.ClaimRewards(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ClaimOutcomeDTO{
		SubmissionID: string(outcome.SubmissionID),
		XP:           outcome.XP,
		Coins:        int64(outcome.Coins),
		Balance:      int64(outcome.Balance),
	})
}

// ReviewSubmission records manual feedback (graded -> reviewed).
func (h *Handler) ReviewSubmission(w http.ResponseWriter, r *http.Request) {
	id := submission.SubmissionID(chi.URLParam(r, "id"))

	var req ReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	sub, err := h.Workflow.Review(r.Context(), id, req.Feedback)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSubmissionDTO(sub))
}

// RevertSubmission withdraws an ungraded submission to draft.
func (h *Handler) RevertSubmission(w http.ResponseWriter, r *http.Request) {
	id := submission.SubmissionID(chi.URLParam(r, "id"))

	sub, err := h.Workflow.RevertToDraft(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSubmissionDTO(sub))
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// AdminCredit applies a manual credit (operator correction or bonus).
func (h *Handler) AdminCredit(w http.ResponseWriter, r *http.Request) {
	h.adminMutation(w, r, true)
}

// AdminDebit applies a manual debit.
func (h *Handler) AdminDebit(w http.ResponseWriter, r *http.Request) {
	h.adminMutation(w, r, false)
}

func (h *Handler) adminMutation(w http.ResponseWriter, r *http.Request, credit bool) {
	var req MutationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	kind := economy.TransactionKind(req.Kind)
	if kind == "" {
		kind = economy.KindAdminAdjustment
	}
	opts := economy.MutationOptions{
		Description:   req.Description,
		ReferenceID:   req.ReferenceID,
		ReferenceType: "admin",
	}

	var (
		res *economy.MutationResult
		err error
	)
	if credit {
		res, err = h.Ledger.Credit(r.Context(), economy.AccountID(req.AccountID), economy.Coins(req.Amount), kind, opts)
	} else {
		res, err = h.Ledger.Debit(r.Context(), economy.AccountID(req.AccountID), economy.Coins(req.Amount), kind, opts)
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if credit {
		coinCredits.Inc()
	} else {
		coinDebits.Inc()
	}
	writeJSON(w, http.StatusOK, toTransactionDTO(res.Transaction))
}

// AuditBalance reconciles one account's balance against its journal.
func (h *Handler) AuditBalance(w http.ResponseWriter, r *http.Request) {
	account := economy.AccountID(chi.URLParam(r, "id"))

	report, err := h.Ledger.AuditBalance(r.Context(), account)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if !report.Valid {
		auditFailures.Inc()
	}
	writeJSON(w, http.StatusOK, toAuditReportDTO(report))
}

// ReconcileAccount re-audits a frozen account and unfreezes it when valid.
func (h *Handler) ReconcileAccount(w http.ResponseWriter, r *http.Request) {
	account := economy.AccountID(chi.URLParam(r, "id"))

	report, err := h.Ledger.Reconcile(r.Context(), account)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAuditReportDTO(report))
}

// FreezeAccount halts an account's write path.
func (h *Handler) FreezeAccount(w http.ResponseWriter, r *http.Request) {
	account := economy.AccountID(chi.URLParam(r, "id"))

	if err := h.Ledger.Freeze(r.Context(), account); err != nil {
		writeDomainError(w, err)
		return
	}

	bal, err := h.Ledger.GetBalance(r.Context(), account)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceDTO(bal))
}

// ResetDatabase clears all data (dev only).
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// =============================================================================
// HEALTH
// =============================================================================

// Healthz reports liveness.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps domain errors to HTTP statuses using the error
// taxonomy: validation 400, not-found 404, state conflicts 409, frozen
// accounts 423, consistency violations and the rest 500. Consistency
// errors carry debited amounts and wrapped causes; that detail goes to the
// operator log only, never to the client.
func writeDomainError(w http.ResponseWriter, err error) {
	status := statusForError(err)
	message := err.Error()
	if errors.Is(err, economy.ErrConsistency) {
		log.Printf("[api] CONSISTENCY ERROR: %v", err)
		message = "An internal inconsistency was detected; the account is frozen pending operator review"
	}
	resp := ErrorResponse{Error: message, Code: codeForStatus(status)}
	writeJSON(w, status, resp)
}

func statusForError(err error) int {
	var (
		validationErr  *answers.ValidationError
		unknownAnswers *answers.UnknownTypeError
		unknownPowerUp *powerup.UnknownTypeError
		badQuantity    *powerup.InvalidQuantityError
		badTransition  *submission.InvalidTransitionError
		noStock        *powerup.InsufficientStockError
	)

	switch {
	case errors.As(err, &validationErr),
		errors.As(err, &unknownAnswers),
		errors.As(err, &unknownPowerUp),
		errors.As(err, &badQuantity),
		errors.Is(err, economy.ErrInvalidAmount):
		return http.StatusBadRequest

	case errors.Is(err, economy.ErrAccountNotFound),
		errors.Is(err, submission.ErrSubmissionNotFound),
		errors.Is(err, submission.ErrExerciseNotFound):
		return http.StatusNotFound

	case errors.Is(err, economy.ErrInsufficientBalance),
		errors.As(err, &noStock),
		errors.As(err, &badTransition),
		errors.Is(err, submission.ErrAlreadyGraded),
		errors.Is(err, submission.ErrNotGraded),
		errors.Is(err, submission.ErrRewardAlreadyClaimed):
		return http.StatusConflict

	case errors.Is(err, economy.ErrAccountFrozen):
		return http.StatusLocked

	default:
		return http.StatusInternalServerError
	}
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "validation_error"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusLocked:
		return "account_frozen"
	default:
		return "internal_error"
	}
}

// queryTime parses an optional time query param, accepting RFC3339 or a
// bare date.
func queryTime(r *http.Request, name string) (*time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		t, err = time.Parse("2006-01-02", raw)
	}
	if err != nil {
		return nil, err
	}
	t = t.UTC()
	return &t, nil
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
