package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jwebster45206/scam-sim/internal/logger"
	"github.com/jwebster45206/scam-sim/internal/sessions"
	"github.com/jwebster45206/scam-sim/pkg/chat"
	"github.com/jwebster45206/scam-sim/pkg/market"
	"github.com/jwebster45206/scam-sim/pkg/scenario"
	"github.com/jwebster45206/scam-sim/pkg/session"
)

// SessionManager is the subset of sessions.Manager the API drives.
type SessionManager interface {
	Create(ctx context.Context) (*session.State, error)
	Get(ctx context.Context, id string) (*session.State, error)
	Delete(ctx context.Context, id string) error
	Start(ctx context.Context, id string, scenarioID scenario.ID) (*session.State, error)
	Reset(ctx context.Context, id string) (*session.State, error)
	Retry(ctx context.Context, id string) (*session.State, error)
	Submit(ctx context.Context, id, text string) (*session.State, error)
	Act(ctx context.Context, id, action string) (*session.State, error)
	Market(ctx context.Context, id string, action market.Action) (*session.State, error)
}

// SessionResponse is a session snapshot plus the quick replies the UI may offer.
type SessionResponse struct {
	*session.State
	QuickReplies []string `json:"quick_replies,omitempty"`
}

func newSessionResponse(st *session.State) SessionResponse {
	resp := SessionResponse{State: st}
	if st.QuickRepliesAvailable() {
		resp.QuickReplies = scenario.QuickReplies
	}
	return resp
}

type SessionHandler struct {
	manager SessionManager
	logger  *slog.Logger
}

func NewSessionHandler(manager SessionManager, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{
		manager: manager,
		logger:  logger,
	}
}

// ServeHTTP routes session requests.
// POST   /v1/sessions                       - create, optionally starting a scenario
// GET    /v1/sessions/{id}                  - snapshot
// DELETE /v1/sessions/{id}                  - drop the session
// POST   /v1/sessions/{id}/start            - {"scenario": id}
// POST   /v1/sessions/{id}/messages         - {"message": text}
// POST   /v1/sessions/{id}/actions          - {"action": name}
// POST   /v1/sessions/{id}/market/{action}  - pay, drain, check-scale
// POST   /v1/sessions/{id}/retry
// POST   /v1/sessions/{id}/reset
func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/sessions"), "/")
	var parts []string
	if path != "" {
		parts = strings.Split(path, "/")
	}

	switch len(parts) {
	case 0:
		if !h.allow(w, r, http.MethodPost) {
			return
		}
		h.handleCreate(w, r)

	case 1:
		id := parts[0]
		switch r.Method {
		case http.MethodGet:
			h.respond(w, r, id, "get", func(ctx context.Context) (*session.State, error) {
				return h.manager.Get(ctx, id)
			})
		case http.MethodDelete:
			h.handleDelete(w, r, id)
		default:
			writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed. Supported methods: GET, DELETE")
		}

	case 2, 3:
		if !h.allow(w, r, http.MethodPost) {
			return
		}
		h.handleOperation(w, r, parts)

	default:
		writeError(w, h.logger, http.StatusNotFound, "Not found")
	}
}

func (h *SessionHandler) allow(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	h.logger.Warn("Method not allowed for sessions endpoint", "method", r.Method, "path", r.URL.Path)
	writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed. Only "+method+" is supported.")
	return false
}

func (h *SessionHandler) handleOperation(w http.ResponseWriter, r *http.Request, parts []string) {
	id, op := parts[0], parts[1]

	if op == "market" {
		if len(parts) != 3 {
			writeError(w, h.logger, http.StatusNotFound, "Not found")
			return
		}
		action, ok := market.ParseAction(parts[2])
		if !ok {
			writeError(w, h.logger, http.StatusBadRequest, "Unknown market action. Expected pay, drain or check-scale.")
			return
		}
		h.respond(w, r, id, "market", func(ctx context.Context) (*session.State, error) {
			return h.manager.Market(ctx, id, action)
		})
		return
	}
	if len(parts) != 2 {
		writeError(w, h.logger, http.StatusNotFound, "Not found")
		return
	}

	switch op {
	case "start":
		var req chat.StartRequest
		if !h.decode(w, r, &req, false) {
			return
		}
		if strings.TrimSpace(req.Scenario) == "" {
			writeError(w, h.logger, http.StatusBadRequest, "Scenario is required.")
			return
		}
		h.respond(w, r, id, op, func(ctx context.Context) (*session.State, error) {
			return h.manager.Start(ctx, id, scenario.ParseID(req.Scenario))
		})

	case "messages":
		var req chat.ChatRequest
		if !h.decode(w, r, &req, false) {
			return
		}
		if err := req.Validate(); err != nil {
			writeError(w, h.logger, http.StatusBadRequest, err.Error())
			return
		}
		h.respond(w, r, id, op, func(ctx context.Context) (*session.State, error) {
			return h.manager.Submit(ctx, id, req.Message)
		})

	case "actions":
		var req chat.ActionRequest
		if !h.decode(w, r, &req, false) {
			return
		}
		if err := req.Validate(); err != nil {
			writeError(w, h.logger, http.StatusBadRequest, err.Error())
			return
		}
		h.respond(w, r, id, op, func(ctx context.Context) (*session.State, error) {
			return h.manager.Act(ctx, id, req.Action)
		})

	case "retry":
		h.respond(w, r, id, op, func(ctx context.Context) (*session.State, error) {
			return h.manager.Retry(ctx, id)
		})

	case "reset":
		h.respond(w, r, id, op, func(ctx context.Context) (*session.State, error) {
			return h.manager.Reset(ctx, id)
		})

	default:
		writeError(w, h.logger, http.StatusNotFound, "Not found")
	}
}

func (h *SessionHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req chat.StartRequest
	if !h.decode(w, r, &req, true) {
		return
	}

	st, err := h.manager.Create(r.Context())
	if err != nil {
		h.fail(w, "create", "", err)
		return
	}

	if strings.TrimSpace(req.Scenario) != "" {
		id := st.ID
		st, err = h.manager.Start(r.Context(), id, scenario.ParseID(req.Scenario))
		if err != nil {
			h.fail(w, "create", id, err)
			return
		}
	}

	writeJSON(w, h.logger, http.StatusCreated, newSessionResponse(st))
}

func (h *SessionHandler) handleDelete(w http.ResponseWriter, r *http.Request, id string) {
	if _, err := h.manager.Get(r.Context(), id); err != nil {
		h.fail(w, "delete", id, err)
		return
	}
	if err := h.manager.Delete(r.Context(), id); err != nil {
		h.fail(w, "delete", id, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) respond(w http.ResponseWriter, r *http.Request, id, op string, fn func(context.Context) (*session.State, error)) {
	st, err := fn(r.Context())
	if err != nil {
		h.fail(w, op, id, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, newSessionResponse(st))
}

// decode reads a JSON body into v. An empty body is accepted only when
// optional is set.
func (h *SessionHandler) decode(w http.ResponseWriter, r *http.Request, v any, optional bool) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || (optional && errors.Is(err, io.EOF)) {
		return true
	}
	h.logger.Warn("Invalid request body", "path", r.URL.Path, "error", err)
	writeError(w, h.logger, http.StatusBadRequest, "Invalid request body.")
	return false
}

func (h *SessionHandler) fail(w http.ResponseWriter, op, id string, err error) {
	status := statusFor(err)
	log := logger.WithError(logger.WithSession(h.logger, id), err)
	if status >= http.StatusInternalServerError {
		log.Error("Session operation failed", "op", op)
	} else {
		log.Debug("Session operation refused", "op", op)
	}
	writeError(w, h.logger, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, sessions.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrEmptyMessage), errors.Is(err, session.ErrUnknownAction):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrInvalidTransition),
		errors.Is(err, session.ErrNotPlaying),
		errors.Is(err, session.ErrWrongScenario),
		errors.Is(err, sessions.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
