package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/jwebster45206/scam-sim/pkg/storage"
)

type HealthResponse struct {
	Status     string         `json:"status"`
	Timestamp  time.Time      `json:"timestamp"`
	Service    string         `json:"service"`
	Components map[string]any `json:"components"`
}

type HealthHandler struct {
	storage  storage.Storage
	provider string
	logger   *slog.Logger
}

// NewHealthHandler reports storage reachability. provider names the configured
// text generator and is informational only.
func NewHealthHandler(storage storage.Storage, provider string, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		storage:  storage,
		provider: provider,
		logger:   logger,
	}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed. Only GET is supported.")
		return
	}

	h.logger.Debug("Health check requested",
		"method", r.Method,
		"path", r.URL.Path,
		"remote_addr", r.RemoteAddr)

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	components := map[string]any{
		"llm_provider": h.provider,
	}
	overallStatus := "healthy"

	if err := h.storage.Ping(ctx); err != nil {
		h.logger.Warn("Storage health check failed", "error", err)
		components["storage"] = "unhealthy"
		overallStatus = "degraded"
	} else {
		components["storage"] = "healthy"
	}

	statusCode := http.StatusOK
	if overallStatus != "healthy" {
		statusCode = http.StatusServiceUnavailable
	}

	writeJSON(w, h.logger, statusCode, HealthResponse{
		Status:     overallStatus,
		Timestamp:  time.Now(),
		Service:    "scam-sim",
		Components: components,
	})
}
