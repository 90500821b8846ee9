package knowledge

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// PGQuerier implements Querier against a pgx connection pool. The pool must
// have pgvector types registered (see database.Open).
type PGQuerier struct {
	pool *pgxpool.Pool
}

// NewPGQuerier creates the production querier.
func NewPGQuerier(pool *pgxpool.Pool) *PGQuerier {
	return &PGQuerier{pool: pool}
}

const nearestDocumentsSQL = `
SELECT id, content, embedding <=> $1 AS distance
FROM documents
ORDER BY embedding <=> $1
LIMIT $2`

// NearestDocuments performs the vector similarity query, ascending by
// distance.
func (q *PGQuerier) NearestDocuments(ctx context.Context, embedding pgvector.Vector, limit int32) ([]ContextRow, error) {
	rows, err := q.pool.Query(ctx, nearestDocumentsSQL, embedding, limit)
	if err != nil {
		return nil, fmt.Errorf("querying nearest documents: %w", err)
	}
	defer rows.Close()

	var results []ContextRow
	for rows.Next() {
		var row ContextRow
		if err := rows.Scan(&row.ID, &row.Content, &row.Distance); err != nil {
			return nil, fmt.Errorf("scanning document row: %w", err)
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating document rows: %w", err)
	}
	return results, nil
}

const upsertDocumentSQL = `
INSERT INTO documents (id, content, embedding, metadata)
VALUES ($1, $2, $3, $4)
ON CONFLICT (id) DO UPDATE
SET content = EXCLUDED.content,
    embedding = EXCLUDED.embedding,
    metadata = EXCLUDED.metadata`

// UpsertDocument inserts or replaces one document row.
func (q *PGQuerier) UpsertDocument(ctx context.Context, arg UpsertDocumentParams) error {
	metadata, err := json.Marshal(arg.Metadata)
	if err != nil {
		return fmt.Errorf("marshaling metadata: %w", err)
	}
	if _, err := q.pool.Exec(ctx, upsertDocumentSQL, arg.ID, arg.Content, arg.Embedding, metadata); err != nil {
		return fmt.Errorf("upserting document: %w", err)
	}
	return nil
}
