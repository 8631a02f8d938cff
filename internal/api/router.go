package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"lumina/login-gate/internal/logging"
	"lumina/login-gate/internal/metrics"
)

// NewRouter creates the gate's router. jwtSecret guards /api/v1 when set.
// logger is installed per request; nil means slog.Default().
func NewRouter(h *Handler, jwtSecret string, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	// ── Global middleware ─────────────────────────────────────────────────────
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ok(w, map[string]string{"status": "ok", "service": "login-gate"})
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	// ── API v1 ────────────────────────────────────────────────────────────────
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(RequireJWT(jwtSecret))

		r.Post("/post-login", h.PostLogin)
		r.Get("/decisions/{id}", h.GetDecision)
		r.Get("/accounts/{accountId}/decisions", h.ListAccountDecisions)
	})

	return r
}

// requestLogger installs a request-scoped logger and emits one slog record
// per request.
func requestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			ctx := logging.ForRequest(r.Context(), base, middleware.GetReqID(r.Context()))
			next.ServeHTTP(ww, r.WithContext(ctx))

			logging.L(ctx).Info("http",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
			)
		})
	}
}
