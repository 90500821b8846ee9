// Package genai adapts the Genkit SDK to the narrow model and embedding
// capabilities the pipeline consumes.
//
// The orchestrator and retriever define their own small interfaces
// (ModelClient, Embedder) and depend on those; this package supplies the
// production implementations. Tool execution is NOT delegated to Genkit:
// Complete asks the model to return proposed tool calls unexecuted so the
// dispatcher stays in charge of side effects.
package genai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// ErrModelCall indicates the completion capability was unreachable or
// returned malformed output.
var ErrModelCall = errors.New("model call failed")

// Message roles understood by Complete.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one turn of model input.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ToolSpec declares a tool offered to the model.
type ToolSpec struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Action is a model-proposed tool invocation.
type Action struct {
	Type string         `json:"type"`
	Args map[string]any `json:"args,omitempty"`
}

// Completion is the result of one model call.
type Completion struct {
	Text   string
	Action *Action // first proposed tool call, nil when the model answered directly
}

// Client is the Genkit-backed completion capability.
type Client struct {
	g         *genkit.Genkit
	modelName string
	logger    *slog.Logger
}

// NewClient creates a completion client. Tool specs passed to Complete must
// have been registered once via RegisterToolSpecs.
func NewClient(g *genkit.Genkit, modelName string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{g: g, modelName: modelName, logger: logger}
}

// RegisterToolSpecs declares tools with Genkit so they can be offered to
// the model. The handlers are never run: Complete requests tool calls back
// instead of letting Genkit execute them.
func (c *Client) RegisterToolSpecs(specs []ToolSpec) {
	for _, spec := range specs {
		genkit.DefineTool(c.g, spec.Name, spec.Description,
			func(_ *ai.ToolContext, input map[string]any) (map[string]any, error) {
				return input, nil
			})
	}
}

// Complete invokes the model with the assembled messages and declared
// tools. The first proposed tool call, if any, is surfaced unexecuted.
func (c *Client) Complete(ctx context.Context, messages []Message, specs []ToolSpec) (*Completion, error) {
	aiMessages := make([]*ai.Message, 0, len(messages))
	for _, m := range messages {
		aiMessages = append(aiMessages, &ai.Message{
			Role:    toAIRole(m.Role),
			Content: []*ai.Part{ai.NewTextPart(m.Content)},
		})
	}

	opts := []ai.GenerateOption{
		ai.WithMessages(aiMessages...),
		ai.WithModelName(c.modelName),
	}
	if len(specs) > 0 {
		refs := make([]ai.ToolRef, 0, len(specs))
		for _, spec := range specs {
			if tool := genkit.LookupTool(c.g, spec.Name); tool != nil {
				refs = append(refs, tool)
			}
		}
		opts = append(opts,
			ai.WithTools(refs...),
			ai.WithReturnToolRequests(true),
		)
	}

	resp, err := genkit.Generate(ctx, c.g, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrModelCall, err)
	}
	if resp == nil {
		return nil, fmt.Errorf("%w: nil response", ErrModelCall)
	}

	completion := &Completion{Text: resp.Text()}
	if reqs := resp.ToolRequests(); len(reqs) > 0 {
		completion.Action = &Action{
			Type: reqs[0].Name,
			Args: argsAsMap(reqs[0].Input),
		}
		c.logger.Debug("model proposed tool call", "tool", reqs[0].Name)
	}

	return completion, nil
}

// toAIRole maps pipeline roles onto Genkit roles. Unknown roles degrade to
// user so a malformed row never drops a turn.
func toAIRole(role string) ai.Role {
	switch role {
	case RoleSystem:
		return ai.RoleSystem
	case RoleAssistant:
		return ai.RoleModel
	case RoleTool:
		return ai.RoleTool
	default:
		return ai.RoleUser
	}
}

// argsAsMap normalizes a tool request input to a string-keyed map.
func argsAsMap(input any) map[string]any {
	if input == nil {
		return nil
	}
	if m, ok := input.(map[string]any); ok {
		return m
	}
	return map[string]any{"input": input}
}

// GenkitEmbedder bridges an ai.Embedder to the retriever's single-text
// contract.
type GenkitEmbedder struct {
	embedder ai.Embedder
}

// NewEmbedder wraps a Genkit embedder.
func NewEmbedder(embedder ai.Embedder) *GenkitEmbedder {
	return &GenkitEmbedder{embedder: embedder}
}

// Embed produces the embedding vector for one text.
func (e *GenkitEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.embedder.Embed(ctx, &ai.EmbedRequest{
		Input: []*ai.Document{ai.DocumentFromText(text, nil)},
	})
	if err != nil {
		return nil, fmt.Errorf("embed failed: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return nil, fmt.Errorf("empty embedding returned")
	}
	return resp.Embeddings[0].Embedding, nil
}
