/*
metrics.go - Prometheus instrumentation

PURPOSE:
  Exposes operational counters for the economy engine at /metrics. The
  domain counters track ledger mutations, power-up purchases, gradings,
  and audit failures; the HTTP histogram tracks request latency per route.

SEE ALSO:
  - server.go: Mounts promhttp and the duration middleware
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	coinCredits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "economy_coin_credits_total",
		Help: "Number of admin coin credits applied.",
	})

	coinDebits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "economy_coin_debits_total",
		Help: "Number of admin coin debits applied.",
	})

	powerUpPurchases = promauto.NewCounter(prometheus.CounterOpts{
		Name: "economy_powerup_purchases_total",
		Help: "Number of successful power-up purchases.",
	})

	gradingsProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "economy_gradings_total",
		Help: "Number of submissions graded through the submit pipeline.",
	})

	auditFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "economy_audit_failures_total",
		Help: "Number of balance audits that detected drift.",
	})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "economy_http_request_duration_seconds",
		Help:    "HTTP request latency by route pattern and method.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method"})
)

// metricsMiddleware records request latency against the chi route pattern
// so path parameters do not explode label cardinality.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		httpDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}
