/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. Metrics:    Latency histogram per route
  5. CORS:       Cross-origin requests for the learner frontend

ROUTE GROUPS:
  /api/learners/*       Learner profiles, balances, power-ups
  /api/exercises/*      Catalog and submissions
  /api/submissions/*    Submission lifecycle
  /api/admin/*          Ledger administration
  /api/leaderboard      Top earners
  /metrics              Prometheus scrape endpoint
  /healthz              Liveness

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(metricsMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Learner routes
		r.Route("/learners", func(r chi.Router) {
			r.Get("/", h.ListLearners)
			r.Post("/", h.CreateLearner)
			r.Get("/{id}", h.GetLearner)
			r.Get("/{id}/balance", h.GetBalance)
			r.Get("/{id}/transactions", h.GetTransactions)
			r.Get("/{id}/summary", h.GetDailySummary)
			r.Get("/{id}/stats", h.GetStats)
			r.Get("/{id}/submissions", h.ListSubmissions)
			r.Get("/{id}/inventory", h.GetInventory)

			r.Route("/{id}/powerups", func(r chi.Router) {
				r.Post("/purchase", h.PurchasePowerUp)
				r.Post("/use", h.UsePowerUp)
				r.Get("/stats", h.GetPowerUpStats)
				r.Get("/history", h.GetPowerUpHistory)
			})
		})

		// Exercise routes
		r.Route("/exercises", func(r chi.Router) {
			r.Get("/", h.ListExercises)
			r.Post("/", h.CreateExercise)
			r.Get("/{id}", h.GetExercise)
			r.Post("/{id}/submit", h.SubmitAnswer)
		})

		// Submission routes
		r.Route("/submissions", func(r chi.Router) {
			r.Get("/{id}", h.GetSubmission)
			r.Post("/{id}/claim", h.ClaimRewards)
			r.Post("/{id}/review", h.ReviewSubmission)
			r.Post("/{id}/revert", h.RevertSubmission)
		})

		// Leaderboard
		r.Get("/leaderboard", h.GetLeaderboard)

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Post("/credit", h.AdminCredit)
			r.Post("/debit", h.AdminDebit)
			r.Post("/audit/{id}", h.AuditBalance)
			r.Post("/reconcile/{id}", h.ReconcileAccount)
			r.Post("/freeze/{id}", h.FreezeAccount)
			r.Post("/seed", h.SeedDemoData)
			r.Post("/reset", h.ResetDatabase)
		})
	})

	// Operational endpoints
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", h.Healthz)

	return r
}
