// Package knowledge provides semantic retrieval over the travel knowledge
// base backed by PostgreSQL + pgvector.
package knowledge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pgvector/pgvector-go"
)

// DefaultTopK is the row count callers use when they have no preference.
const DefaultTopK = 5

// ErrRetrieval indicates the embedding capability or the vector store was
// unreachable. Retrieval is never retried here; the caller decides whether
// to proceed without context.
var ErrRetrieval = errors.New("context retrieval failed")

// Embedder is the embedding capability the retriever consumes.
// Interfaces are defined by the consumer; internal/genai provides the
// production implementation.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Querier defines the database operations the retriever needs.
type Querier interface {
	// NearestDocuments returns up to limit rows ascending by vector
	// distance to embedding. Ties follow the store's natural order.
	NearestDocuments(ctx context.Context, embedding pgvector.Vector, limit int32) ([]ContextRow, error)

	// UpsertDocument inserts or replaces one document row.
	UpsertDocument(ctx context.Context, arg UpsertDocumentParams) error
}

// UpsertDocumentParams carries one document write.
type UpsertDocumentParams struct {
	ID        string
	Content   string
	Embedding pgvector.Vector
	Metadata  map[string]string
}

// Retriever embeds queries and fetches the nearest stored fragments.
type Retriever struct {
	queries  Querier
	embedder Embedder
	logger   *slog.Logger
}

// NewRetriever creates a Retriever. logger may be nil.
func NewRetriever(querier Querier, embedder Embedder, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{queries: querier, embedder: embedder, logger: logger}
}

// Retrieve embeds query and returns the topK nearest rows, closest first.
// topK must be positive.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int) ([]ContextRow, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: topK must be positive, got %d", ErrRetrieval, topK)
	}

	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: embedding query: %w", ErrRetrieval, err)
	}

	rows, err := r.queries.NearestDocuments(ctx, pgvector.NewVector(vec), int32(topK))
	if err != nil {
		return nil, fmt.Errorf("%w: vector search: %w", ErrRetrieval, err)
	}

	r.logger.Debug("retrieved context", "query_length", len(query), "rows", len(rows))
	return rows, nil
}

// RenderContext assembles rows into the text block injected into the model
// input: one paragraph per row, labelled in retrieval order.
func RenderContext(rows []ContextRow) string {
	if len(rows) == 0 {
		return ""
	}
	var b strings.Builder
	for i, row := range rows {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "Context %d:\n%s", i+1, row.Content)
	}
	return b.String()
}

// Add embeds and upserts one document into the knowledge base.
func (r *Retriever) Add(ctx context.Context, doc Document) error {
	if strings.TrimSpace(doc.ID) == "" {
		return fmt.Errorf("document id must not be empty")
	}
	if strings.TrimSpace(doc.Content) == "" {
		return fmt.Errorf("document %q has empty content", doc.ID)
	}

	vec, err := r.embedder.Embed(ctx, doc.Content)
	if err != nil {
		return fmt.Errorf("embedding document %q: %w", doc.ID, err)
	}

	if err := r.queries.UpsertDocument(ctx, UpsertDocumentParams{
		ID:        doc.ID,
		Content:   doc.Content,
		Embedding: pgvector.NewVector(vec),
		Metadata:  doc.Metadata,
	}); err != nil {
		return fmt.Errorf("upserting document %q: %w", doc.ID, err)
	}

	r.logger.Debug("added document", "id", doc.ID, "content_length", len(doc.Content))
	return nil
}
