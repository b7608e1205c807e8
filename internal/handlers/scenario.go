package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/jwebster45206/scam-sim/pkg/scenario"
)

// ScenarioListResponse is the menu payload.
type ScenarioListResponse struct {
	Scenarios       []scenario.Config `json:"scenarios"`
	QuickReplies    []string          `json:"quick_replies"`
	QuickReplyLimit int               `json:"quick_reply_limit"`
}

// ScenarioResponse wraps a single config. Known is false for the placeholder.
type ScenarioResponse struct {
	scenario.Config
	Known bool `json:"known"`
}

type ScenarioHandler struct {
	log *slog.Logger
}

func NewScenarioHandler(log *slog.Logger) *ScenarioHandler {
	return &ScenarioHandler{log: log}
}

// ServeHTTP handles the read-only catalog.
// GET /v1/scenarios       - list every scenario in menu order
// GET /v1/scenarios/{id}  - one scenario; unknown ids get the placeholder
func (h *ScenarioHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, h.log, http.StatusMethodNotAllowed, "Method not allowed. Only GET is supported.")
		return
	}

	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/scenarios"), "/")
	if id == "" {
		writeJSON(w, h.log, http.StatusOK, ScenarioListResponse{
			Scenarios:       scenario.List(),
			QuickReplies:    scenario.QuickReplies,
			QuickReplyLimit: scenario.QuickReplyLimit,
		})
		return
	}

	if strings.Contains(id, "/") {
		writeError(w, h.log, http.StatusNotFound, "Not found")
		return
	}

	sid := scenario.ParseID(id)
	known := scenario.Known(sid)
	if !known {
		h.log.Debug("Unknown scenario requested", "scenario", id)
	}
	writeJSON(w, h.log, http.StatusOK, ScenarioResponse{Config: scenario.Get(sid), Known: known})
}
