package sse

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/wayfarer0/wayfarer/internal/status"
)

// plainWriter does not implement http.Flusher.
type plainWriter struct{}

func (plainWriter) Header() http.Header       { return http.Header{} }
func (plainWriter) Write([]byte) (int, error) { return 0, nil }
func (plainWriter) WriteHeader(int)           {}

func TestNewWriterRequiresFlusher(t *testing.T) {
	if _, err := NewWriter(plainWriter{}); err == nil {
		t.Fatal("expected error for non-flushing writer")
	}
}

func TestNewWriterSetsHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	if _, err := NewWriter(rec); err != nil {
		t.Fatalf("NewWriter: %v", err)
	}

	want := map[string]string{
		"Content-Type":      "text/event-stream",
		"Cache-Control":     "no-cache",
		"Connection":        "keep-alive",
		"X-Accel-Buffering": "no",
	}
	for k, v := range want {
		if got := rec.Header().Get(k); got != v {
			t.Errorf("header %s = %q, want %q", k, got, v)
		}
	}
}

func TestErrorFraming(t *testing.T) {
	rec := httptest.NewRecorder()
	w, err := NewWriter(rec)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := w.Error("boom"); err != nil {
		t.Fatalf("Error: %v", err)
	}

	want := "data: {\"type\":\"error\",\"error\":\"boom\"}\n\n"
	if got := rec.Body.String(); got != want {
		t.Errorf("frame = %q, want %q", got, want)
	}
}

func TestStatusFraming(t *testing.T) {
	rec := httptest.NewRecorder()
	w, err := NewWriter(rec)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}

	ev := status.Event{
		Step:        1,
		Description: "Analyzing query",
		State:       status.StateExecuting,
		Timestamp:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	if err := w.Status(ev); err != nil {
		t.Fatalf("Status: %v", err)
	}

	raw := rec.Body.String()
	if !strings.HasPrefix(raw, "data: ") || !strings.HasSuffix(raw, "\n\n") {
		t.Fatalf("bad framing: %q", raw)
	}
	payload := strings.TrimSuffix(strings.TrimPrefix(raw, "data: "), "\n\n")
	if strings.Contains(payload, "\n") {
		t.Fatalf("payload spans multiple lines: %q", payload)
	}

	var envelope struct {
		Type   string       `json:"type"`
		Status status.Event `json:"status"`
	}
	if err := json.Unmarshal([]byte(payload), &envelope); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if envelope.Type != "status" {
		t.Errorf("type = %q", envelope.Type)
	}
	if envelope.Status.Step != 1 || envelope.Status.State != status.StateExecuting {
		t.Errorf("status = %+v", envelope.Status)
	}
}

func TestFinalClosesStream(t *testing.T) {
	rec := httptest.NewRecorder()
	w, err := NewWriter(rec)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}

	if err := w.Final(map[string]any{"success": true}); err != nil {
		t.Fatalf("Final: %v", err)
	}
	if !w.Closed() {
		t.Error("Closed() = false after Final")
	}

	if err := w.Status(status.Event{}); !errors.Is(err, ErrStreamClosed) {
		t.Errorf("Status after Final = %v, want ErrStreamClosed", err)
	}
	if err := w.Final(nil); !errors.Is(err, ErrStreamClosed) {
		t.Errorf("second Final = %v, want ErrStreamClosed", err)
	}
	if err := w.Error("late"); !errors.Is(err, ErrStreamClosed) {
		t.Errorf("Error after Final = %v, want ErrStreamClosed", err)
	}

	// Exactly one frame was written.
	frames := strings.Count(rec.Body.String(), "\n\n")
	if frames != 1 {
		t.Errorf("got %d frames, want 1", frames)
	}
}

func TestErrorClosesStream(t *testing.T) {
	rec := httptest.NewRecorder()
	w, err := NewWriter(rec)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := w.Error("model unreachable"); err != nil {
		t.Fatalf("Error: %v", err)
	}
	if err := w.Final(nil); !errors.Is(err, ErrStreamClosed) {
		t.Errorf("Final after Error = %v, want ErrStreamClosed", err)
	}
}
