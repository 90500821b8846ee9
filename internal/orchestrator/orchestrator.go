// Package orchestrator drives the end-to-end answer pipeline: load
// conversation memory, retrieve semantic context, call the model, dispatch
// at most one tool round-trip, persist the answer, and report progress
// through the run's status tracker.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/wayfarer0/wayfarer/internal/config"
	"github.com/wayfarer0/wayfarer/internal/genai"
	"github.com/wayfarer0/wayfarer/internal/knowledge"
	"github.com/wayfarer0/wayfarer/internal/session"
	"github.com/wayfarer0/wayfarer/internal/status"
	"github.com/wayfarer0/wayfarer/internal/tools"
)

// Pipeline step numbers. Step 3 is reserved for the tool round-trip and
// only appears when the model proposes an action.
const (
	stepAnalyze  = 1
	stepModel    = 2
	stepTool     = 3
	stepFinalize = 4
)

// apologyText is the response body every failed run returns. The caller
// always receives a well-formed result, never a raw error.
const apologyText = "I'm sorry, I ran into a problem while answering that. Please try again."

// ModelClient is the completion capability the engine consumes.
type ModelClient interface {
	Complete(ctx context.Context, messages []genai.Message, specs []genai.ToolSpec) (*genai.Completion, error)
}

// Memory is the conversation store the engine consumes. A nil Memory
// disables persistence: no session is created and no sessionId is reported.
type Memory interface {
	CreateSession(ctx context.Context, id, title string) (*session.Session, error)
	AppendMessage(ctx context.Context, sessionID, role, content string) (*session.Message, error)
	RecentMessages(ctx context.Context, sessionID string, limit int32) ([]session.Message, error)
}

// ContextRetriever supplies knowledge-base context for the query.
type ContextRetriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]knowledge.ContextRow, error)
}

// ToolDispatcher executes model-proposed invocations.
type ToolDispatcher interface {
	Execute(ctx context.Context, inv tools.Invocation, query string, step int, tracker *status.Tracker) (tools.Invocation, error)
	Specs() []genai.ToolSpec
}

// Request is one answer run's input.
type Request struct {
	Query     string `json:"query"`
	SessionID string `json:"sessionId,omitempty"`
}

// Result is the outcome of one answer run. Failed runs carry
// Success=false and the apology text; Answer never returns an error.
type Result struct {
	Success         bool           `json:"success"`
	Response        string         `json:"response"`
	Steps           []status.Event `json:"steps"`
	ToolsUsed       []string       `json:"toolsUsed"`
	ExecutionTimeMs int64          `json:"executionTimeMs"`
	SessionID       string         `json:"sessionId,omitempty"`
}

// Config tunes one engine instance.
type Config struct {
	HistoryWindow  int32
	RetrievalTopK  int
	ResponseFormat string
	RunTimeout     time.Duration
}

// Engine owns the answer pipeline. Safe for concurrent use: each run gets
// its own tracker and shares no mutable state with other runs.
type Engine struct {
	cfg        Config
	model      ModelClient
	memory     Memory
	retriever  ContextRetriever
	dispatcher ToolDispatcher
	logger     *slog.Logger
	now        func() time.Time
}

// NewEngine creates an Engine. memory may be nil for one-shot runs without
// persistence; logger may be nil.
func NewEngine(cfg Config, model ModelClient, memory Memory, retriever ContextRetriever, dispatcher ToolDispatcher, logger *slog.Logger) (*Engine, error) {
	if model == nil {
		return nil, fmt.Errorf("model client is required")
	}
	if retriever == nil {
		return nil, fmt.Errorf("retriever is required")
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("tool dispatcher is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = config.DefaultHistoryWindow
	}
	if cfg.RetrievalTopK <= 0 {
		cfg.RetrievalTopK = config.DefaultRetrievalTopK
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = config.DefaultRunTimeout
	}
	return &Engine{
		cfg:        cfg,
		model:      model,
		memory:     memory,
		retriever:  retriever,
		dispatcher: dispatcher,
		logger:     logger,
		now:        time.Now,
	}, nil
}

// Answer runs the full pipeline for one query. observer may be nil for
// batch callers; when set it receives every status transition as it is
// recorded. Any failure inside the pipeline is caught here, logged as a
// step -1 failed status, and converted into a Success=false result. This
// is the single recovery boundary.
func (e *Engine) Answer(ctx context.Context, req Request, observer status.Observer) Result {
	start := e.now()
	tracker := status.NewTracker(observer)

	ctx, cancel := context.WithTimeout(ctx, e.cfg.RunTimeout)
	defer cancel()

	result := Result{ToolsUsed: []string{}}
	err := e.run(ctx, req, tracker, &result)

	result.Steps = tracker.Steps()
	result.ExecutionTimeMs = e.now().Sub(start).Milliseconds()
	if err == nil {
		result.Success = true
		return result
	}

	e.logger.Error("answer pipeline failed", "session_id", result.SessionID, "error", err)
	tracker.Failed(status.FailureStep, "Query answering failed", map[string]any{"error": err.Error()})
	result.Steps = tracker.Steps()
	result.Success = false
	result.Response = apologyText
	return result
}

// run executes the pipeline steps, filling result as it goes so the
// recovery boundary can report partial state (sessionId, toolsUsed).
func (e *Engine) run(ctx context.Context, req Request, tracker *status.Tracker, result *Result) error {
	query := req.Query
	if query == "" {
		return fmt.Errorf("query must not be empty")
	}

	// Step 1: analyze. Engage memory and gather context.
	tracker.Executing(stepAnalyze, "Analyzing query", nil)

	var history []session.Message
	if e.memory != nil {
		sessionID := req.SessionID
		if sessionID == "" {
			sessionID = session.NewSessionID()
			if _, err := e.memory.CreateSession(ctx, sessionID, session.TitleFromQuery(query)); err != nil {
				return fmt.Errorf("creating session: %w", err)
			}
		}
		result.SessionID = sessionID

		if _, err := e.memory.AppendMessage(ctx, sessionID, session.RoleUser, query); err != nil {
			return fmt.Errorf("recording user message: %w", err)
		}

		recent, err := e.memory.RecentMessages(ctx, sessionID, e.cfg.HistoryWindow)
		if err != nil {
			return fmt.Errorf("loading history: %w", err)
		}
		// The user message just written is replayed as the live query below.
		if n := len(recent); n > 0 && recent[n-1].Role == session.RoleUser && recent[n-1].Content == query {
			recent = recent[:n-1]
		}
		history = recent
	}

	rows, err := e.retriever.Retrieve(ctx, query, e.cfg.RetrievalTopK)
	if err != nil {
		return fmt.Errorf("retrieving context: %w", err)
	}
	tracker.Completed(stepAnalyze, "Analysis complete", map[string]any{
		"context_rows": len(rows),
		"history_size": len(history),
	})

	// Step 2: first model call with the declared tool list.
	messages := e.assemble(query, history, rows)
	tracker.Executing(stepModel, "Calling model", nil)
	completion, err := e.model.Complete(ctx, messages, e.dispatcher.Specs())
	if err != nil {
		return fmt.Errorf("model call: %w", err)
	}
	tracker.Completed(stepModel, "Model responded", nil)

	finalText := completion.Text

	// Step 3: at most one tool round-trip. A second proposed action is
	// deliberately not serviced.
	if completion.Action != nil {
		result.ToolsUsed = append(result.ToolsUsed, completion.Action.Type)

		executed, err := e.dispatcher.Execute(ctx, tools.Invocation{
			Type: completion.Action.Type,
			Args: completion.Action.Args,
		}, query, stepTool, tracker)
		if err != nil {
			return err
		}

		toolPayload, err := json.Marshal(executed)
		if err != nil {
			return fmt.Errorf("encoding tool result: %w", err)
		}
		messages = append(messages, genai.Message{Role: genai.RoleTool, Content: string(toolPayload)})

		tracker.Executing(stepModel, "Calling model with tool results", nil)
		second, err := e.model.Complete(ctx, messages, nil)
		if err != nil {
			return fmt.Errorf("second model call: %w", err)
		}
		tracker.Completed(stepModel, "Model responded", nil)
		finalText = second.Text
	}

	// Step 4: finalize.
	if e.memory != nil {
		if _, err := e.memory.AppendMessage(ctx, result.SessionID, session.RoleAssistant, finalText); err != nil {
			return fmt.Errorf("recording assistant message: %w", err)
		}
	}
	result.Response = finalText
	tracker.Completed(stepFinalize, "Answer complete", nil)
	return nil
}

// assemble builds the model input: the system instruction, prior turns,
// the live query, and the retrieved context block as an auxiliary turn.
func (e *Engine) assemble(query string, history []session.Message, rows []knowledge.ContextRow) []genai.Message {
	messages := make([]genai.Message, 0, len(history)+3)
	messages = append(messages, genai.Message{Role: genai.RoleSystem, Content: e.systemPrompt()})

	for _, m := range history {
		messages = append(messages, genai.Message{Role: m.Role, Content: m.Content})
	}

	messages = append(messages, genai.Message{Role: genai.RoleUser, Content: query})

	if block := knowledge.RenderContext(rows); block != "" {
		messages = append(messages, genai.Message{
			Role:    genai.RoleUser,
			Content: "Relevant background from the knowledge base:\n\n" + block,
		})
	}
	return messages
}

func (e *Engine) systemPrompt() string {
	base := "You are a knowledgeable travel assistant. Answer the user's travel questions " +
		"using the provided background context when it is relevant, and use the available " +
		"tools when current information is required."
	if e.cfg.ResponseFormat == config.FormatJSON {
		return base + ` Respond with a single JSON object of the form {"answer": "..."}.`
	}
	return base + " Respond in well-structured Markdown."
}
