// Package httptransport assembles the HTTP surface: health and metrics
// endpoints plus the authenticated /v1 API.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"marketroles/internal/platform/metrics"
	"marketroles/pkg/platform/httputil"
	"marketroles/pkg/platform/middleware/auth"
	"marketroles/pkg/platform/middleware/request"
	"marketroles/pkg/platform/middleware/requesttime"
)

// API is a group of endpoints mounted under /v1.
type API interface {
	Register(r chi.Router)
}

// Check reports whether a dependency is ready to serve.
type Check func(ctx context.Context) error

type Dependencies struct {
	Logger  *slog.Logger
	Metrics *metrics.Metrics
	Tokens  auth.TokenValidator
	APIs    []API
	// Readiness checks by name, served on /readyz.
	Readiness map[string]Check
}

func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(request.Recovery(deps.Logger))
	r.Use(request.Logger(deps.Logger))
	r.Use(request.Latency(deps.Metrics))
	r.Use(requesttime.Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", readiness(deps.Readiness, deps.Logger))
	r.Handle("/metrics", metrics.Handler())

	r.Route("/v1", func(v1 chi.Router) {
		v1.Use(auth.RequireActor(deps.Tokens, deps.Logger))
		for _, api := range deps.APIs {
			api.Register(v1)
		}
	})
	return r
}

func readiness(checks map[string]Check, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		result := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				logger.WarnContext(ctx, "readiness check failed", "check", name, "error", err)
				result[name] = "unavailable"
				status = http.StatusServiceUnavailable
				continue
			}
			result[name] = "ok"
		}
		httputil.WriteJSON(w, status, result)
	}
}
