// ABOUTME: Anthropic messages-protocol adapter - content block construction
// ABOUTME: Canonical nested tool results become role:user tool_result blocks here

package anthropic

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/magicloops/budchat/internal/events"
	"github.com/magicloops/budchat/internal/provider"
)

const (
	// DefaultBaseURL is the Anthropic API root.
	DefaultBaseURL = "https://api.anthropic.com/v1"
	// apiVersion is the pinned anthropic-version header value.
	apiVersion = "2023-06-01"
	// defaultMaxTokens applies when the caller does not set one; the
	// messages API requires max_tokens.
	defaultMaxTokens = 8192
)

// Config holds connection settings for the messages endpoint.
type Config struct {
	BaseURL string
	APIKey  string
}

// Adapter implements provider.Adapter for the Anthropic messages
// streaming protocol.
type Adapter struct {
	cfg    Config
	logger *slog.Logger
}

// New creates a messages adapter. Pass nil logger for default.
func New(cfg Config, logger *slog.Logger) *Adapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{cfg: cfg, logger: logger.With("component", "anthropic")}
}

// Name implements provider.Adapter.
func (a *Adapter) Name() string { return "anthropic" }

// Capabilities implements provider.Adapter. Thinking blocks map to
// reasoning deltas; there are no built-in tool events in this mode.
func (a *Adapter) Capabilities() provider.Capability {
	return provider.CapTextDeltas | provider.CapToolCallDeltas | provider.CapReasoningDeltas
}

type messagesRequest struct {
	Model     string    `json:"model"`
	System    string    `json:"system,omitempty"`
	Messages  []message `json:"messages"`
	Tools     []toolDef `json:"tools,omitempty"`
	MaxTokens int       `json:"max_tokens"`
	Temp      *float64  `json:"temperature,omitempty"`
	Stream    bool      `json:"stream"`
}

type message struct {
	Role    string `json:"role"`
	Content []any  `json:"content"`
}

type textBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type toolUseBlock struct {
	Type  string          `json:"type"`
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

type toolResultBlock struct {
	Type      string `json:"type"`
	ToolUseID string `json:"tool_use_id"`
	Content   string `json:"content"`
	IsError   bool   `json:"is_error,omitempty"`
}

type thinkingBlock struct {
	Type     string `json:"type"`
	Thinking string `json:"thinking"`
}

type toolDef struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// MarshalRequest implements provider.Adapter. Canonical assistant turns
// split into an assistant message (text/thinking/tool_use blocks) followed
// by a user message carrying the tool_result blocks, which is this
// protocol's native alternation.
func (a *Adapter) MarshalRequest(log []*events.Event, opts provider.Options) ([]byte, error) {
	maxTokens := opts.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}
	req := messagesRequest{
		Model:     opts.Model,
		System:    opts.SystemPrompt,
		MaxTokens: maxTokens,
		Temp:      opts.Temperature,
		Stream:    true,
	}

	for _, e := range log {
		switch e.Role {
		case events.RoleSystem:
			// The messages API takes a single system string; a canonical
			// system turn folds into it.
			if req.System != "" {
				req.System += "\n\n"
			}
			req.System += e.CombinedText()
		case events.RoleUser:
			req.Messages = append(req.Messages, message{
				Role:    "user",
				Content: []any{textBlock{Type: "text", Text: e.CombinedText()}},
			})
		case events.RoleAssistant:
			var blocks []any
			var results []toolResultBlock
			for _, seg := range e.Segments {
				switch s := seg.(type) {
				case events.Text:
					blocks = append(blocks, textBlock{Type: "text", Text: s.Text})
				case events.Reasoning:
					if s.CombinedText != "" {
						blocks = append(blocks, thinkingBlock{Type: "thinking", Thinking: s.CombinedText})
					}
				case events.ToolCall:
					blocks = append(blocks, toolUseBlock{
						Type: "tool_use",
						ID:   s.ID,
						Name: s.Name,
						// Argument JSON reproduced verbatim.
						Input: s.Args,
					})
				case events.ToolResult:
					content := string(s.Output)
					isError := false
					if s.Error != "" {
						content = s.Error
						isError = true
					}
					results = append(results, toolResultBlock{
						Type:      "tool_result",
						ToolUseID: s.ID,
						Content:   content,
						IsError:   isError,
					})
				}
			}
			if len(blocks) > 0 {
				req.Messages = append(req.Messages, message{Role: "assistant", Content: blocks})
			}
			if len(results) > 0 {
				content := make([]any, len(results))
				for i, r := range results {
					content[i] = r
				}
				req.Messages = append(req.Messages, message{Role: "user", Content: content})
			}
		case events.RoleTool:
			return nil, fmt.Errorf("standalone tool turn %s in canonical log", e.ID)
		}
	}

	for _, t := range opts.Tools {
		schema := t.InputSchema
		if len(schema) == 0 {
			schema = json.RawMessage(`{"type":"object"}`)
		}
		req.Tools = append(req.Tools, toolDef{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: schema,
		})
	}

	return json.Marshal(req)
}
