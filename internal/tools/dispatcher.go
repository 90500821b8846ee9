// Package tools executes model-proposed tool invocations. The dispatcher
// maps an invocation's declared type to a concrete action, records progress
// on the run's status tracker, and merges the normalized result payload back
// onto the invocation for the second model call.
package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/wayfarer0/wayfarer/internal/genai"
	"github.com/wayfarer0/wayfarer/internal/knowledge"
	"github.com/wayfarer0/wayfarer/internal/status"
)

// Tool type strings as the model declares them.
const (
	TypeWebSearch      = "web_search_call"
	TypeCustomAPI      = "custom_api_call"
	TypeDatabaseLookup = "database_lookup"
	TypeWeather        = "get_weather"
)

// ErrToolExecution indicates a dispatched tool's action failed. The failure
// aborts the current attempt; there is no fallback to cached results.
var ErrToolExecution = errors.New("tool execution failed")

// Invocation is one model-proposed tool call. Result is populated by the
// dispatcher on completion.
type Invocation struct {
	Type   string         `json:"type"`
	Args   map[string]any `json:"args,omitempty"`
	Result map[string]any `json:"result,omitempty"`
}

// httpGuard validates outbound URLs and supplies the hardened client.
// internal/security provides the production implementation.
type httpGuard interface {
	ValidateURL(url string) error
	Client() *http.Client
	MaxResponseSize() int64
}

// contextRetriever is the semantic-lookup capability behind database_lookup.
type contextRetriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]knowledge.ContextRow, error)
}

// Config carries the endpoints the network-backed tools talk to.
type Config struct {
	SearchBaseURL     string
	SearchMaxResults  int
	CustomAPIEndpoint string
	GeocodeURL        string
	ForecastURL       string
}

// Dispatcher routes invocations to their actions.
type Dispatcher struct {
	cfg       Config
	guard     httpGuard
	retriever contextRetriever
	logger    *slog.Logger
}

// NewDispatcher creates a Dispatcher. logger may be nil.
func NewDispatcher(cfg Config, guard httpGuard, retriever contextRetriever, logger *slog.Logger) (*Dispatcher, error) {
	if guard == nil {
		return nil, fmt.Errorf("http guard is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SearchMaxResults <= 0 {
		cfg.SearchMaxResults = 5
	}
	return &Dispatcher{cfg: cfg, guard: guard, retriever: retriever, logger: logger}, nil
}

// Specs returns the tool list declared to the model on the first call.
func (d *Dispatcher) Specs() []genai.ToolSpec {
	return []genai.ToolSpec{
		{Name: TypeWebSearch, Description: "Search the web for current information about destinations, events, and travel conditions."},
		{Name: TypeCustomAPI, Description: "Query the partner booking API for availability and pricing."},
		{Name: TypeDatabaseLookup, Description: "Look up curated travel guides in the internal knowledge base."},
		{Name: TypeWeather, Description: "Get current weather conditions for a free-text location."},
	}
}

// Execute runs one invocation. Recognized types emit an executing status,
// perform their action, and emit completed with the result merged onto the
// invocation, or failed plus a wrapped ErrToolExecution. Unknown types are
// echoed back unchanged so built-in model tools never break the run.
func (d *Dispatcher) Execute(ctx context.Context, inv Invocation, query string, step int, tracker *status.Tracker) (Invocation, error) {
	var (
		result map[string]any
		err    error
	)

	switch inv.Type {
	case TypeWebSearch:
		tracker.Executing(step, "Searching the web", map[string]any{"tool": inv.Type})
		result, err = d.webSearch(ctx, inv, query)
	case TypeCustomAPI:
		tracker.Executing(step, "Calling partner API", map[string]any{"tool": inv.Type})
		result, err = d.customAPI(ctx, inv, query)
	case TypeDatabaseLookup:
		tracker.Executing(step, "Looking up knowledge base", map[string]any{"tool": inv.Type})
		result, err = d.databaseLookup(ctx, inv, query)
	case TypeWeather:
		tracker.Executing(step, "Fetching weather conditions", map[string]any{"tool": inv.Type})
		result, err = d.weather(ctx, inv, query)
	default:
		d.logger.Debug("unrecognized tool type, echoing invocation", "type", inv.Type)
		return inv, nil
	}

	if err != nil {
		d.logger.Error("tool execution failed", "tool", inv.Type, "error", err)
		tracker.Failed(step, fmt.Sprintf("Tool %s failed", inv.Type), map[string]any{
			"tool":  inv.Type,
			"error": err.Error(),
		})
		return inv, fmt.Errorf("%w: %s: %w", ErrToolExecution, inv.Type, err)
	}

	inv.Result = result
	tracker.Completed(step, fmt.Sprintf("Tool %s completed", inv.Type), map[string]any{"tool": inv.Type})
	d.logger.Debug("tool completed", "tool", inv.Type)
	return inv, nil
}

// argString reads a string argument, falling back to the run's query text.
func argString(args map[string]any, key, fallback string) string {
	if v, ok := args[key]; ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return fallback
}
