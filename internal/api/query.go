package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/wayfarer0/wayfarer/internal/orchestrator"
	"github.com/wayfarer0/wayfarer/internal/sse"
	"github.com/wayfarer0/wayfarer/internal/status"
)

const maxQueryBodyBytes = 1 << 20 // 1MB

// answerer is the pipeline capability the handlers consume;
// orchestrator.Engine is the production implementation.
type answerer interface {
	Answer(ctx context.Context, req orchestrator.Request, observer status.Observer) orchestrator.Result
}

type queryHandler struct {
	engine answerer
	logger *slog.Logger
}

func (h *queryHandler) decode(w http.ResponseWriter, r *http.Request) (orchestrator.Request, bool) {
	var req orchestrator.Request
	r.Body = http.MaxBytesReader(w, r.Body, maxQueryBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "body_too_large", "request body too large", h.logger)
			return req, false
		}
		writeError(w, http.StatusBadRequest, "invalid_body", "invalid request body", h.logger)
		return req, false
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "empty_query", "query must not be empty", h.logger)
		return req, false
	}
	return req, true
}

// answer handles POST /api/v1/query. The pipeline's recovery boundary
// guarantees a well-formed result, so the HTTP status is always 200 and
// failure surfaces through the result's success flag.
func (h *queryHandler) answer(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	result := h.engine.Answer(r.Context(), req, nil)
	writeJSON(w, http.StatusOK, result, h.logger)
}

// stream handles POST /api/v1/query/stream. Status events are framed as
// they occur, followed by exactly one terminal event.
func (h *queryHandler) stream(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	writer, err := sse.NewWriter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "streaming_unsupported", "response writer does not support streaming", h.logger)
		return
	}

	// A closed client connection cancels r.Context(), which aborts the
	// in-flight run at its next suspension point.
	result := h.engine.Answer(r.Context(), req, func(ev status.Event) {
		if err := writer.Status(ev); err != nil {
			h.logger.Debug("dropping status event", "error", err)
		}
	})

	if writer.Closed() {
		return
	}
	if err := writer.Final(result); err != nil {
		h.logger.Debug("writing final event", "error", err)
	}
}
