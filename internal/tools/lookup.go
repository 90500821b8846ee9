package tools

import (
	"context"
	"fmt"

	"github.com/wayfarer0/wayfarer/internal/knowledge"
)

// databaseLookup runs a semantic search against the knowledge base.
func (d *Dispatcher) databaseLookup(ctx context.Context, inv Invocation, query string) (map[string]any, error) {
	if d.retriever == nil {
		return nil, fmt.Errorf("knowledge retriever not configured")
	}

	q := argString(inv.Args, "query", query)

	topK := knowledge.DefaultTopK
	if v, ok := inv.Args["top_k"]; ok {
		// JSON numbers arrive as float64.
		if f, ok := v.(float64); ok && f > 0 {
			topK = int(f)
		}
	}

	rows, err := d.retriever.Retrieve(ctx, q, topK)
	if err != nil {
		return nil, err
	}

	matches := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		matches = append(matches, map[string]any{
			"id":       row.ID,
			"content":  row.Content,
			"distance": row.Distance,
		})
	}
	return map[string]any{
		"query":   q,
		"matches": matches,
		"count":   len(matches),
	}, nil
}
