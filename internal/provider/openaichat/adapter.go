// ABOUTME: OpenAI chat-completions adapter - request building from the canonical log
// ABOUTME: Tool results nest in the assistant turn canonically but become role:tool messages here

package openaichat

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/magicloops/budchat/internal/events"
	"github.com/magicloops/budchat/internal/provider"
)

// DefaultBaseURL is the OpenAI API root.
const DefaultBaseURL = "https://api.openai.com/v1"

// Config holds connection settings for the chat-completions endpoint.
type Config struct {
	BaseURL string
	APIKey  string
}

// Adapter implements provider.Adapter for the OpenAI chat-completions
// streaming protocol.
type Adapter struct {
	cfg    Config
	logger *slog.Logger
}

// New creates a chat-completions adapter. Pass nil logger for default.
func New(cfg Config, logger *slog.Logger) *Adapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{cfg: cfg, logger: logger.With("component", "openai-chat")}
}

// Name implements provider.Adapter.
func (a *Adapter) Name() string { return "openai-chat" }

// Capabilities implements provider.Adapter. Chat completions stream text
// and tool-call deltas but no reasoning or built-in tool events.
func (a *Adapter) Capabilities() provider.Capability {
	return provider.CapTextDeltas | provider.CapToolCallDeltas
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Tools       []chatTool    `json:"tools,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
	Stream      bool          `json:"stream"`
}

type chatMessage struct {
	Role       string         `json:"role"`
	Content    string         `json:"content"`
	ToolCalls  []chatToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

type chatToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function functionCall `json:"function"`
}

type functionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type chatTool struct {
	Type     string       `json:"type"`
	Function functionSpec `json:"function"`
}

type functionSpec struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// MarshalRequest implements provider.Adapter. Canonical assistant turns
// that carry tool_result segments expand into the assistant message plus
// one role:tool message per result, which is this protocol's native shape.
func (a *Adapter) MarshalRequest(log []*events.Event, opts provider.Options) ([]byte, error) {
	req := chatRequest{
		Model:       opts.Model,
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
		Stream:      true,
	}

	if opts.SystemPrompt != "" {
		req.Messages = append(req.Messages, chatMessage{Role: "system", Content: opts.SystemPrompt})
	}

	for _, e := range log {
		switch e.Role {
		case events.RoleSystem:
			req.Messages = append(req.Messages, chatMessage{Role: "system", Content: e.CombinedText()})
		case events.RoleUser:
			req.Messages = append(req.Messages, chatMessage{Role: "user", Content: e.CombinedText()})
		case events.RoleAssistant:
			msg := chatMessage{Role: "assistant", Content: e.CombinedText()}
			var results []events.ToolResult
			for _, seg := range e.Segments {
				switch s := seg.(type) {
				case events.ToolCall:
					msg.ToolCalls = append(msg.ToolCalls, chatToolCall{
						ID:   s.ID,
						Type: "function",
						Function: functionCall{
							Name: s.Name,
							// Argument JSON reproduced verbatim.
							Arguments: string(s.Args),
						},
					})
				case events.ToolResult:
					results = append(results, s)
				}
			}
			req.Messages = append(req.Messages, msg)
			for _, r := range results {
				content := string(r.Output)
				if r.Error != "" {
					content = r.Error
				}
				req.Messages = append(req.Messages, chatMessage{
					Role:       "tool",
					ToolCallID: r.ID,
					Content:    content,
				})
			}
		case events.RoleTool:
			// Tool results never appear as standalone canonical turns.
			return nil, fmt.Errorf("standalone tool turn %s in canonical log", e.ID)
		}
	}

	for _, t := range opts.Tools {
		req.Tools = append(req.Tools, chatTool{
			Type: "function",
			Function: functionSpec{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.InputSchema,
			},
		})
	}

	return json.Marshal(req)
}
