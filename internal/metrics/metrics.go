// Package metrics provides Prometheus instrumentation for the login gate.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestsTotal counts HTTP requests by method, route, and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "login_gate",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, route pattern, and status class.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by method and route.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "login_gate",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// RiskEvaluationsTotal counts risk-provider evaluations by event type and result.
	// result is the verdict, or "error".
	RiskEvaluationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "login_gate",
			Name:      "risk_evaluations_total",
			Help:      "Risk evaluations by event type and verdict.",
		},
		[]string{"event_type", "result"},
	)

	// RiskEvaluationDuration observes risk-provider call latency.
	RiskEvaluationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "login_gate",
			Name:      "risk_evaluation_duration_seconds",
			Help:      "Risk provider call duration in seconds.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2, 5, 10},
		},
		[]string{"event_type"},
	)

	// DecisionsTotal counts gate outcomes.
	DecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "login_gate",
			Name:      "decisions_total",
			Help:      "Gate outcomes by event type and outcome.",
		},
		[]string{"event_type", "outcome"},
	)

	// FallbacksTotal counts failures routed through the fallback policy.
	FallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "login_gate",
			Name:      "fallbacks_total",
			Help:      "Evaluation failures by configured fallback policy.",
		},
		[]string{"policy"},
	)

	// AccountBlocksTotal counts identity-provider block calls by result.
	AccountBlocksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "login_gate",
			Name:      "account_blocks_total",
			Help:      "Account block requests by result.",
		},
		[]string{"result"},
	)

	// AuditPublishTotal counts decision-record deliveries by sink and result.
	AuditPublishTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "login_gate",
			Name:      "audit_publish_total",
			Help:      "Decision record deliveries by sink and result.",
		},
		[]string{"sink", "result"},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		RiskEvaluationsTotal,
		RiskEvaluationDuration,
		DecisionsTotal,
		FallbacksTotal,
		AccountBlocksTotal,
		AuditPublishTotal,
	)
}

// Result maps an error onto the "ok"/"error" label value.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Middleware records request count and latency per chi route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		path := routePattern(r)
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		HTTPRequestsTotal.WithLabelValues(r.Method, path, statusBucket(ww.Status())).Inc()
	})
}

// Handler returns the Prometheus exposition handler for /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// routePattern uses the matched route, not the raw path, to bound label cardinality.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

// statusBucket groups HTTP status codes into buckets (2xx, 3xx, 4xx, 5xx).
func statusBucket(code int) string {
	if code == 0 {
		code = http.StatusOK
	}
	if code < 100 || code > 599 {
		return "other"
	}
	return strconv.Itoa(code/100) + "xx"
}
