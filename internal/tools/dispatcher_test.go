package tools

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/wayfarer0/wayfarer/internal/knowledge"
	"github.com/wayfarer0/wayfarer/internal/status"
)

// openGuard allows everything so tests can hit httptest servers on loopback.
type openGuard struct{}

func (openGuard) ValidateURL(string) error { return nil }
func (openGuard) Client() *http.Client     { return &http.Client{} }
func (openGuard) MaxResponseSize() int64   { return 1 << 20 }

// closedGuard rejects every URL.
type closedGuard struct{}

func (closedGuard) ValidateURL(string) error { return errors.New("blocked") }
func (closedGuard) Client() *http.Client     { return &http.Client{} }
func (closedGuard) MaxResponseSize() int64   { return 1 << 20 }

type mockRetriever struct {
	rows      []knowledge.ContextRow
	err       error
	lastQuery string
	lastTopK  int
}

func (m *mockRetriever) Retrieve(_ context.Context, query string, topK int) ([]knowledge.ContextRow, error) {
	m.lastQuery = query
	m.lastTopK = topK
	if m.err != nil {
		return nil, m.err
	}
	return m.rows, nil
}

func newTestDispatcher(t *testing.T, cfg Config, retriever contextRetriever) *Dispatcher {
	t.Helper()
	d, err := NewDispatcher(cfg, openGuard{}, retriever, nil)
	if err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}
	return d
}

func TestExecuteWebSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("q"); got != "best parks in Tokyo" {
			t.Errorf("q = %q", got)
		}
		if got := r.URL.Query().Get("format"); got != "json" {
			t.Errorf("format = %q", got)
		}
		fmt.Fprint(w, `{"results":[
			{"title":"Ueno Park","url":"https://example.com/ueno","content":"Cherry blossoms."},
			{"title":"Yoyogi Park","url":"https://example.com/yoyogi","content":"Big lawns."},
			{"title":"Shinjuku Gyoen","url":"https://example.com/gyoen","content":"Gardens."}
		]}`)
	}))
	defer srv.Close()

	d := newTestDispatcher(t, Config{SearchBaseURL: srv.URL, SearchMaxResults: 2}, nil)
	tracker := status.NewTracker(nil)

	out, err := d.Execute(context.Background(), Invocation{Type: TypeWebSearch}, "best parks in Tokyo", 3, tracker)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	results, ok := out.Result["results"].([]map[string]any)
	if !ok {
		t.Fatalf("results has type %T", out.Result["results"])
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2 (capped)", len(results))
	}
	if results[0]["title"] != "Ueno Park" || results[0]["snippet"] != "Cherry blossoms." {
		t.Errorf("unexpected first result: %v", results[0])
	}

	steps := tracker.Steps()
	if len(steps) != 2 {
		t.Fatalf("got %d status events, want executing+completed", len(steps))
	}
	if steps[0].State != status.StateExecuting || steps[1].State != status.StateCompleted {
		t.Errorf("states = %s, %s", steps[0].State, steps[1].State)
	}
	if steps[0].Step != 3 || steps[1].Step != 3 {
		t.Errorf("steps = %d, %d, want 3", steps[0].Step, steps[1].Step)
	}
}

func TestExecuteWebSearchServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	d := newTestDispatcher(t, Config{SearchBaseURL: srv.URL}, nil)
	tracker := status.NewTracker(nil)

	_, err := d.Execute(context.Background(), Invocation{Type: TypeWebSearch}, "anything", 3, tracker)
	if !errors.Is(err, ErrToolExecution) {
		t.Fatalf("err = %v, want ErrToolExecution", err)
	}
	if !tracker.HasFailures() {
		t.Error("expected a failed status event")
	}
}

func TestExecuteBlockedURL(t *testing.T) {
	d, err := NewDispatcher(Config{SearchBaseURL: "http://example.com"}, closedGuard{}, nil, nil)
	if err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}
	tracker := status.NewTracker(nil)

	_, err = d.Execute(context.Background(), Invocation{Type: TypeWebSearch}, "anything", 3, tracker)
	if !errors.Is(err, ErrToolExecution) {
		t.Fatalf("err = %v, want ErrToolExecution", err)
	}
}

func TestExecuteCustomAPI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		fmt.Fprint(w, `{"availability":"open","price":120}`)
	}))
	defer srv.Close()

	d := newTestDispatcher(t, Config{CustomAPIEndpoint: srv.URL}, nil)
	tracker := status.NewTracker(nil)

	out, err := d.Execute(context.Background(), Invocation{Type: TypeCustomAPI, Args: map[string]any{"hotel": "x"}}, "book a room", 3, tracker)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	resp, ok := out.Result["response"].(map[string]any)
	if !ok {
		t.Fatalf("response has type %T", out.Result["response"])
	}
	if resp["availability"] != "open" {
		t.Errorf("availability = %v", resp["availability"])
	}
}

func TestExecuteDatabaseLookup(t *testing.T) {
	retriever := &mockRetriever{rows: []knowledge.ContextRow{
		{ID: "doc-1", Content: "Tokyo has many parks.", Distance: 0.12},
	}}
	d := newTestDispatcher(t, Config{}, retriever)
	tracker := status.NewTracker(nil)

	out, err := d.Execute(context.Background(), Invocation{Type: TypeDatabaseLookup}, "parks in Tokyo", 3, tracker)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if retriever.lastQuery != "parks in Tokyo" {
		t.Errorf("query = %q", retriever.lastQuery)
	}
	if retriever.lastTopK != knowledge.DefaultTopK {
		t.Errorf("topK = %d, want %d", retriever.lastTopK, knowledge.DefaultTopK)
	}
	if out.Result["count"] != 1 {
		t.Errorf("count = %v", out.Result["count"])
	}
}

func TestExecuteDatabaseLookupTopKArg(t *testing.T) {
	retriever := &mockRetriever{}
	d := newTestDispatcher(t, Config{}, retriever)
	tracker := status.NewTracker(nil)

	_, err := d.Execute(context.Background(), Invocation{
		Type: TypeDatabaseLookup,
		Args: map[string]any{"query": "onsen towns", "top_k": float64(3)},
	}, "ignored", 3, tracker)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if retriever.lastQuery != "onsen towns" {
		t.Errorf("query = %q", retriever.lastQuery)
	}
	if retriever.lastTopK != 3 {
		t.Errorf("topK = %d", retriever.lastTopK)
	}
}

func TestExecuteDatabaseLookupFailure(t *testing.T) {
	retriever := &mockRetriever{err: errors.New("store down")}
	d := newTestDispatcher(t, Config{}, retriever)
	tracker := status.NewTracker(nil)

	_, err := d.Execute(context.Background(), Invocation{Type: TypeDatabaseLookup}, "anything", 3, tracker)
	if !errors.Is(err, ErrToolExecution) {
		t.Fatalf("err = %v, want ErrToolExecution", err)
	}
	if !tracker.HasFailures() {
		t.Error("expected a failed status event")
	}
}

func TestExecuteWeather(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/geocode", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("name"); got != "Sapporo" {
			t.Errorf("name = %q", got)
		}
		fmt.Fprint(w, `{"results":[{"name":"Sapporo","country":"Japan","latitude":43.06,"longitude":141.35}]}`)
	})
	mux.HandleFunc("/forecast", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"current_weather":{"temperature":-3.5,"windspeed":14.2,"weathercode":71}}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	d := newTestDispatcher(t, Config{
		GeocodeURL:  srv.URL + "/geocode",
		ForecastURL: srv.URL + "/forecast",
	}, nil)
	tracker := status.NewTracker(nil)

	out, err := d.Execute(context.Background(), Invocation{
		Type: TypeWeather,
		Args: map[string]any{"location": "Sapporo"},
	}, "weather in Sapporo", 3, tracker)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out.Result["found"] != true {
		t.Fatalf("found = %v", out.Result["found"])
	}
	if out.Result["location"] != "Sapporo" || out.Result["country"] != "Japan" {
		t.Errorf("place = %v / %v", out.Result["location"], out.Result["country"])
	}
	if out.Result["temperature_c"] != -3.5 {
		t.Errorf("temperature_c = %v", out.Result["temperature_c"])
	}
}

func TestExecuteWeatherLocationNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"results":[]}`)
	}))
	defer srv.Close()

	d := newTestDispatcher(t, Config{GeocodeURL: srv.URL, ForecastURL: srv.URL}, nil)
	tracker := status.NewTracker(nil)

	out, err := d.Execute(context.Background(), Invocation{
		Type: TypeWeather,
		Args: map[string]any{"location": "Atlantis"},
	}, "weather in Atlantis", 3, tracker)
	if err != nil {
		t.Fatalf("Execute: %v, miss must not error", err)
	}
	if out.Result["found"] != false {
		t.Errorf("found = %v, want false", out.Result["found"])
	}
	if out.Result["location"] != "Atlantis" {
		t.Errorf("location = %v", out.Result["location"])
	}

	latest, _ := tracker.Latest()
	if latest.State != status.StateCompleted {
		t.Errorf("latest state = %s, want completed", latest.State)
	}
}

func TestExecuteWeatherForecastUnreachable(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/geocode", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"results":[{"name":"Lisbon","country":"Portugal","latitude":38.72,"longitude":-9.14}]}`)
	})
	mux.HandleFunc("/forecast", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	d := newTestDispatcher(t, Config{
		GeocodeURL:  srv.URL + "/geocode",
		ForecastURL: srv.URL + "/forecast",
	}, nil)
	tracker := status.NewTracker(nil)

	out, err := d.Execute(context.Background(), Invocation{
		Type: TypeWeather,
		Args: map[string]any{"location": "Lisbon"},
	}, "weather in Lisbon", 3, tracker)
	if err != nil {
		t.Fatalf("Execute: %v, transport failure must degrade", err)
	}
	if out.Result["approximate"] != true {
		t.Errorf("approximate = %v, want placeholder payload", out.Result["approximate"])
	}
	if out.Result["location"] != "Lisbon" {
		t.Errorf("location = %v", out.Result["location"])
	}
	if tracker.HasFailures() {
		t.Error("placeholder path must not record a failure")
	}
}

func TestExecuteUnknownTypeEchoes(t *testing.T) {
	d := newTestDispatcher(t, Config{}, nil)
	tracker := status.NewTracker(nil)

	inv := Invocation{Type: "code_interpreter", Args: map[string]any{"code": "1+1"}}
	out, err := d.Execute(context.Background(), inv, "anything", 3, tracker)
	if err != nil {
		t.Fatalf("Execute: %v, unknown types must never error", err)
	}
	if out.Type != inv.Type || out.Result != nil {
		t.Errorf("invocation was modified: %+v", out)
	}
	if len(tracker.Steps()) != 0 {
		t.Errorf("unknown type recorded %d status events, want 0", len(tracker.Steps()))
	}
}

func TestSpecs(t *testing.T) {
	d := newTestDispatcher(t, Config{}, nil)
	specs := d.Specs()
	if len(specs) != 4 {
		t.Fatalf("got %d specs, want 4", len(specs))
	}
	want := map[string]bool{
		TypeWebSearch: false, TypeCustomAPI: false, TypeDatabaseLookup: false, TypeWeather: false,
	}
	for _, s := range specs {
		if _, ok := want[s.Name]; !ok {
			t.Errorf("unexpected spec %q", s.Name)
		}
		want[s.Name] = true
		if s.Description == "" {
			t.Errorf("spec %q has empty description", s.Name)
		}
	}
	for name, seen := range want {
		if !seen {
			t.Errorf("missing spec %q", name)
		}
	}
}
