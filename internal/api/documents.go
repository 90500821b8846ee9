package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/wayfarer0/wayfarer/internal/knowledge"
)

const maxDocumentBodyBytes = 4 << 20 // 4MB

// ingester is the knowledge-base write surface the documents endpoint
// consumes.
type ingester interface {
	Add(ctx context.Context, doc knowledge.Document) error
}

type documentHandler struct {
	knowledge ingester
	logger    *slog.Logger
}

type documentRequest struct {
	ID       string            `json:"id"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// add handles POST /api/v1/documents: embed and upsert one knowledge-base
// document.
func (h *documentHandler) add(w http.ResponseWriter, r *http.Request) {
	var req documentRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxDocumentBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "invalid request body", h.logger)
		return
	}
	if strings.TrimSpace(req.ID) == "" || strings.TrimSpace(req.Content) == "" {
		writeError(w, http.StatusBadRequest, "invalid_document", "id and content are required", h.logger)
		return
	}

	doc := knowledge.Document{ID: req.ID, Content: req.Content, Metadata: req.Metadata}
	if err := h.knowledge.Add(r.Context(), doc); err != nil {
		h.logger.Error("adding document", "id", req.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "ingest_failed", "failed to add document", h.logger)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": req.ID, "status": "created"}, h.logger)
}
