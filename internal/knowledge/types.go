package knowledge

import "time"

// Document is one knowledge-base entry (ingest side).
type Document struct {
	ID        string
	Content   string
	Metadata  map[string]string
	CreatedAt time.Time
}

// ContextRow is one retrieved fragment. Distance is the vector distance to
// the query embedding; lower is closer. Rows are ephemeral and never
// persisted by the pipeline.
type ContextRow struct {
	ID       string  `json:"id"`
	Content  string  `json:"content"`
	Distance float64 `json:"distance"`
}
