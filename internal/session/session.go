// Package session persists conversation sessions and their append-only
// message history in PostgreSQL.
package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// TitleMaxLength caps derived session titles, in runes, before the ellipsis
// marker is applied.
const TitleMaxLength = 48

// sessionIDPrefix namespaces generated ids away from anything a caller
// could supply, so provenance is never ambiguous.
const sessionIDPrefix = "sess_"

// Session is one durable conversation thread.
type Session struct {
	ID        string    `json:"sessionId"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Message is one turn within a session. Messages are append-only: seq is a
// per-session monotonic sequence assigned by the store, so insertion order,
// chronological order and conversational order coincide.
type Message struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"sessionId"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Seq       int32     `json:"seq"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewSessionID generates a fresh session id from the current time plus a
// random suffix.
func NewSessionID() string {
	return fmt.Sprintf("%s%d_%s", sessionIDPrefix, time.Now().UnixNano(), uuid.NewString()[:8])
}

// TitleFromQuery derives a session title from the first user query:
// newlines collapse to single spaces and the result is truncated to
// TitleMaxLength runes with an ellipsis marker.
func TitleFromQuery(query string) string {
	title := strings.Join(strings.Fields(query), " ")
	runes := []rune(title)
	if len(runes) > TitleMaxLength {
		return string(runes[:TitleMaxLength]) + "..."
	}
	return title
}

// ValidRole reports whether role is one of the accepted message roles.
func ValidRole(role string) bool {
	switch role {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}
