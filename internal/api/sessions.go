package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/wayfarer0/wayfarer/internal/session"
)

const (
	defaultSessionPageSize = 50
	maxSessionPageSize     = 200
	defaultMessageLimit    = 100
)

// sessionReader is the store surface the session endpoints consume.
type sessionReader interface {
	Session(ctx context.Context, id string) (*session.Session, error)
	ListSessions(ctx context.Context, limit, offset int32) ([]session.Session, error)
	RecentMessages(ctx context.Context, sessionID string, limit int32) ([]session.Message, error)
}

type sessionHandler struct {
	store  sessionReader
	logger *slog.Logger
}

// list handles GET /api/v1/sessions, most recently updated first.
func (h *sessionHandler) list(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", defaultSessionPageSize)
	if limit <= 0 || limit > maxSessionPageSize {
		writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be between 1 and 200", h.logger)
		return
	}
	offset := queryInt(r, "offset", 0)
	if offset < 0 {
		writeError(w, http.StatusBadRequest, "invalid_offset", "offset must not be negative", h.logger)
		return
	}

	sessions, err := h.store.ListSessions(r.Context(), int32(limit), int32(offset))
	if err != nil {
		h.logger.Error("listing sessions", "error", err)
		writeError(w, http.StatusInternalServerError, "list_failed", "failed to list sessions", h.logger)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions}, h.logger)
}

// get handles GET /api/v1/sessions/{id}.
func (h *sessionHandler) get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	s, err := h.store.Session(r.Context(), id)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "session_not_found", "session not found", h.logger)
			return
		}
		h.logger.Error("loading session", "session_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "get_failed", "failed to load session", h.logger)
		return
	}
	writeJSON(w, http.StatusOK, s, h.logger)
}

// messages handles GET /api/v1/sessions/{id}/messages. An unknown session
// yields an empty list, matching the store contract.
func (h *sessionHandler) messages(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	limit := queryInt(r, "limit", defaultMessageLimit)
	if limit <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be positive", h.logger)
		return
	}

	msgs, err := h.store.RecentMessages(r.Context(), id, int32(limit))
	if err != nil {
		h.logger.Error("loading messages", "session_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "messages_failed", "failed to load messages", h.logger)
		return
	}
	if msgs == nil {
		msgs = []session.Message{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": msgs}, h.logger)
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return -1
	}
	return n
}
