// Package sse frames pipeline progress as Server-Sent Events.
//
// Every event is one line of the form "data: <json>\n\n". The JSON envelope
// carries the discriminant: {type:"status"} for each tracker transition,
// then exactly one terminal {type:"final"} or {type:"error"}. Clients depend
// on this framing byte for byte.
package sse

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/wayfarer0/wayfarer/internal/status"
)

// ErrStreamWrite indicates the transport rejected a frame, usually because
// the client disconnected.
var ErrStreamWrite = errors.New("stream write failed")

// ErrStreamClosed indicates a write was attempted after the terminal event.
var ErrStreamClosed = errors.New("stream already closed")

// Event envelope discriminants.
const (
	eventStatus = "status"
	eventFinal  = "final"
	eventError  = "error"
)

type statusEnvelope struct {
	Type   string       `json:"type"`
	Status status.Event `json:"status"`
}

type finalEnvelope struct {
	Type   string `json:"type"`
	Result any    `json:"result"`
}

type errorEnvelope struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// Writer streams events for one pipeline run. It is not safe for concurrent
// use; the status tracker pushes synchronously from the run's goroutine.
type Writer struct {
	w       http.ResponseWriter
	flusher http.Flusher
	closed  bool
}

// NewWriter prepares w for event streaming and sets the response headers.
// Fails if w cannot flush, since buffered delivery defeats live progress.
func NewWriter(w http.ResponseWriter) (*Writer, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support flushing")
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no") // disable nginx buffering

	return &Writer{w: w, flusher: flusher}, nil
}

// Status streams one tracker transition.
func (w *Writer) Status(ev status.Event) error {
	return w.write(statusEnvelope{Type: eventStatus, Status: ev})
}

// Final streams the terminal result and closes the stream. Exactly one of
// Final or Error must be called per run.
func (w *Writer) Final(result any) error {
	if err := w.write(finalEnvelope{Type: eventFinal, Result: result}); err != nil {
		return err
	}
	w.closed = true
	return nil
}

// Error streams a terminal error in place of Final and closes the stream.
func (w *Writer) Error(msg string) error {
	if err := w.write(errorEnvelope{Type: eventError, Error: msg}); err != nil {
		return err
	}
	w.closed = true
	return nil
}

// Closed reports whether a terminal event has been sent.
func (w *Writer) Closed() bool {
	return w.closed
}

func (w *Writer) write(envelope any) error {
	if w.closed {
		return ErrStreamClosed
	}

	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("%w: encoding event: %w", ErrStreamWrite, err)
	}

	// json.Marshal never emits raw newlines, so the frame is a single data
	// line terminated by a blank line.
	if _, err := fmt.Fprintf(w.w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("%w: %w", ErrStreamWrite, err)
	}
	w.flusher.Flush()
	return nil
}
