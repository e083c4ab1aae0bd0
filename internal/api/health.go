package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/fweigel/mordspiel/internal/genclient"
	"github.com/fweigel/mordspiel/internal/store"
	"github.com/go-chi/chi/v5"
)

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	repo store.Repository
	gen  genclient.Client
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(repo store.Repository, gen genclient.Client) *HealthHandler {
	return &HealthHandler{repo: repo, gen: gen}
}

// Health reports the status of the API and its dependencies. The
// generation service being down degrades the status but chat replay and
// reaping still work, so the check names each dependency separately.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := map[string]string{"api": "ok"}
	status := "healthy"
	statusCode := http.StatusOK

	if err := h.repo.Ping(ctx); err != nil {
		slog.Error("Health check failed", "dependency", "database", "error", err)
		checks["database"] = "unreachable"
		status = "degraded"
		statusCode = http.StatusServiceUnavailable
	} else {
		checks["database"] = "ok"
	}

	if err := h.gen.Health(ctx); err != nil {
		slog.Warn("Health check failed", "dependency", "ai_service", "error", err)
		checks["ai_service"] = "unreachable"
		if status == "healthy" {
			status = "degraded"
		}
	} else {
		checks["ai_service"] = "ok"
	}

	JSON(w, statusCode, map[string]interface{}{
		"status": status,
		"checks": checks,
	})
}

// RegisterHealth registers the health check route.
func (h *HealthHandler) RegisterHealth(r chi.Router) {
	r.Get("/health", h.Health)
}
