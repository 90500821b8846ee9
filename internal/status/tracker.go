// Package status records the ordered trail of execution steps for one
// pipeline run.
//
// A Tracker belongs to exactly one run. It is not safe for concurrent use
// and must never be shared across runs; the orchestrator creates a fresh
// Tracker per Answer call. Every transition is appended to the run log and,
// when an observer is registered, pushed to it synchronously; that
// callback is the only fan-out path to the streaming transport.
package status

import "time"

// State is the lifecycle state of a pipeline step.
type State string

// Step states. A step moves pending → executing → completed | failed;
// completed and failed are terminal for the run.
const (
	StatePending   State = "pending"
	StateExecuting State = "executing"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// FailureStep is the reserved step number for the terminal failure event
// recorded by the orchestrator's recovery boundary.
const FailureStep = -1

// Event is one point-in-time observation of pipeline progress.
type Event struct {
	Step        int            `json:"step"`
	Description string         `json:"description"`
	State       State          `json:"status"`
	Timestamp   time.Time      `json:"timestamp"`
	Data        map[string]any `json:"data,omitempty"`
}

// Observer receives every recorded transition synchronously.
type Observer func(Event)

// Tracker is the per-run step log.
type Tracker struct {
	events   []Event
	observer Observer
	now      func() time.Time
}

// NewTracker creates a tracker. observer may be nil for batch runs.
func NewTracker(observer Observer) *Tracker {
	return &Tracker{
		observer: observer,
		now:      time.Now,
	}
}

// record appends the event and notifies the observer.
func (t *Tracker) record(step int, desc string, state State, data map[string]any) {
	ev := Event{
		Step:        step,
		Description: desc,
		State:       state,
		Timestamp:   t.now(),
		Data:        data,
	}
	t.events = append(t.events, ev)
	if t.observer != nil {
		t.observer(ev)
	}
}

// Executing marks a step as running. A step may re-enter executing with an
// updated description.
func (t *Tracker) Executing(step int, desc string, data map[string]any) {
	t.record(step, desc, StateExecuting, data)
}

// Completed marks a step as finished successfully.
func (t *Tracker) Completed(step int, desc string, data map[string]any) {
	t.record(step, desc, StateCompleted, data)
}

// Failed marks a step as failed.
func (t *Tracker) Failed(step int, desc string, data map[string]any) {
	t.record(step, desc, StateFailed, data)
}

// Steps returns a copy of the full event log in record order.
func (t *Tracker) Steps() []Event {
	out := make([]Event, len(t.events))
	copy(out, t.events)
	return out
}

// Latest returns the most recent event and true, or the zero Event and
// false when nothing has been recorded.
func (t *Tracker) Latest() (Event, bool) {
	if len(t.events) == 0 {
		return Event{}, false
	}
	return t.events[len(t.events)-1], true
}

// HasFailures reports whether any step failed.
func (t *Tracker) HasFailures() bool {
	for _, ev := range t.events {
		if ev.State == StateFailed {
			return true
		}
	}
	return false
}

// Summary aggregates the run: event counts per state and the wall-clock
// span between the first and last events.
type Summary struct {
	Total    int           `json:"total"`
	ByState  map[State]int `json:"by_state"`
	Duration time.Duration `json:"duration"`
}

// Summary computes the run summary from the current log.
func (t *Tracker) Summary() Summary {
	s := Summary{ByState: make(map[State]int)}
	s.Total = len(t.events)
	for _, ev := range t.events {
		s.ByState[ev.State]++
	}
	if len(t.events) > 1 {
		s.Duration = t.events[len(t.events)-1].Timestamp.Sub(t.events[0].Timestamp)
	}
	return s
}
