package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashureev/deepcode-chat/internal/engine"
	"github.com/ashureev/deepcode-chat/internal/store"
	"github.com/go-chi/chi/v5"
)

const defaultHealthCheckTimeout = 5 * time.Second

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	repo    store.Repository
	engine  engine.Engine
	timeout time.Duration
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(repo store.Repository, eng engine.Engine) *HealthHandler {
	return &HealthHandler{repo: repo, engine: eng, timeout: defaultHealthCheckTimeout}
}

// Health returns the health status of the API and its dependencies.
// An unreachable engine degrades the status but keeps 200, since chat turns
// still complete with the fallback plan; an unreachable database is a 503.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	checks := map[string]string{"api": "ok"}
	status := map[string]interface{}{
		"status": "healthy",
		"checks": checks,
	}
	statusCode := http.StatusOK

	if err := h.repo.Ping(ctx); err != nil {
		slog.Error("Health check failed", "component", "database", "error", err)
		status["status"] = "unhealthy"
		checks["database"] = "unreachable"
		statusCode = http.StatusServiceUnavailable
	} else {
		checks["database"] = "ok"
	}

	if h.engine != nil {
		if err := h.engine.Health(ctx); err != nil {
			slog.Warn("Health check failed", "component", "engine", "error", err)
			if statusCode == http.StatusOK {
				status["status"] = "degraded"
			}
			checks["engine"] = "unavailable"
		} else {
			checks["engine"] = "ok"
		}
	}

	JSON(w, statusCode, status)
}

// RegisterHealth registers the health check route.
func (h *HealthHandler) RegisterHealth(r chi.Router) {
	r.Get("/health", h.Health)
}
