package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/kontrategy/kontrategy-api/internal/api/response"
)

const healthTimeout = 2 * time.Second

// Pinger checks a dependency. cache.Cache and store.Store satisfy it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Root answers GET / so load balancers see the service as alive.
func Root(w http.ResponseWriter, _ *http.Request) {
	response.JSON(w, map[string]string{"status": "Kontrategy backend alive"})
}

// NewHealthHandler returns an http.HandlerFunc for GET /healthz that reports
// DEGRADED when the shared store does not answer.
func NewHealthHandler(p Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		if err := p.Ping(ctx); err != nil {
			slog.Warn("health check failed", "error", err)
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED", "Redis unreachable", nil)
			return
		}
		response.JSON(w, map[string]string{"status": "ok", "redis": "ok"})
	}
}
