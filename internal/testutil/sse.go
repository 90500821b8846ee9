package testutil

import (
	"encoding/json"
	"strings"
	"testing"
)

// StreamEvent is one parsed frame from the query stream. Type is the JSON
// envelope discriminant ("status", "final", "error"); Raw is the full
// envelope for further decoding.
type StreamEvent struct {
	Type string
	Raw  json.RawMessage
}

// ParseStream parses a "data: <json>\n\n" event stream into its envelopes.
// Fails the test on any malformed frame.
func ParseStream(t *testing.T, body string) []StreamEvent {
	t.Helper()

	var events []StreamEvent
	for _, frame := range strings.Split(body, "\n\n") {
		if frame == "" {
			continue
		}
		payload, ok := strings.CutPrefix(frame, "data: ")
		if !ok {
			t.Fatalf("frame missing data prefix: %q", frame)
		}
		if strings.Contains(payload, "\n") {
			t.Fatalf("frame payload spans multiple lines: %q", payload)
		}

		var envelope struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal([]byte(payload), &envelope); err != nil {
			t.Fatalf("frame is not valid JSON: %q: %v", payload, err)
		}
		if envelope.Type == "" {
			t.Fatalf("frame has no type discriminant: %q", payload)
		}
		events = append(events, StreamEvent{Type: envelope.Type, Raw: json.RawMessage(payload)})
	}
	return events
}

// FindEvents returns all events of the given type in stream order.
func FindEvents(events []StreamEvent, eventType string) []StreamEvent {
	var found []StreamEvent
	for _, e := range events {
		if e.Type == eventType {
			found = append(found, e)
		}
	}
	return found
}
