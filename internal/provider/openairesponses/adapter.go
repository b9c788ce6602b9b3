// ABOUTME: OpenAI responses-protocol adapter - input item construction
// ABOUTME: Reasoning, function calls, and built-in tools round-trip as input items

package openairesponses

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/magicloops/budchat/internal/events"
	"github.com/magicloops/budchat/internal/provider"
)

// DefaultBaseURL is the OpenAI API root.
const DefaultBaseURL = "https://api.openai.com/v1"

// Config holds connection settings for the responses endpoint.
type Config struct {
	BaseURL string
	APIKey  string
}

// Adapter implements provider.Adapter for the OpenAI responses streaming
// protocol, used by reasoning-capable models.
type Adapter struct {
	cfg    Config
	logger *slog.Logger
}

// New creates a responses adapter. Pass nil logger for default.
func New(cfg Config, logger *slog.Logger) *Adapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{cfg: cfg, logger: logger.With("component", "openai-responses")}
}

// Name implements provider.Adapter.
func (a *Adapter) Name() string { return "openai-responses" }

// Capabilities implements provider.Adapter.
func (a *Adapter) Capabilities() provider.Capability {
	return provider.CapTextDeltas | provider.CapToolCallDeltas |
		provider.CapReasoningDeltas | provider.CapBuiltInTools
}

type responsesRequest struct {
	Model           string     `json:"model"`
	Input           []any      `json:"input"`
	Tools           []any      `json:"tools,omitempty"`
	MaxOutputTokens int        `json:"max_output_tokens,omitempty"`
	Temperature     *float64   `json:"temperature,omitempty"`
	Reasoning       *reasoning `json:"reasoning,omitempty"`
	Stream          bool       `json:"stream"`
}

type reasoning struct {
	Effort  string `json:"effort,omitempty"`
	Summary string `json:"summary,omitempty"`
}

type messageItem struct {
	Type    string        `json:"type"`
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type functionCallItem struct {
	Type      string `json:"type"`
	CallID    string `json:"call_id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type functionCallOutputItem struct {
	Type   string `json:"type"`
	CallID string `json:"call_id"`
	Output string `json:"output"`
}

type reasoningItem struct {
	Type    string        `json:"type"`
	ID      string        `json:"id,omitempty"`
	Summary []contentPart `json:"summary"`
}

type functionTool struct {
	Type        string          `json:"type"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// MarshalRequest implements provider.Adapter. Each canonical segment maps
// to its own input item, preserving the original output order so the
// model sees its prior reasoning and calls where it produced them.
func (a *Adapter) MarshalRequest(log []*events.Event, opts provider.Options) ([]byte, error) {
	req := responsesRequest{
		Model:           opts.Model,
		MaxOutputTokens: opts.MaxTokens,
		Temperature:     opts.Temperature,
		Stream:          true,
	}
	if opts.ReasoningEffort != "" {
		req.Reasoning = &reasoning{Effort: opts.ReasoningEffort, Summary: "detailed"}
	}

	if opts.SystemPrompt != "" {
		req.Input = append(req.Input, messageItem{
			Type: "message", Role: "system",
			Content: []contentPart{{Type: "input_text", Text: opts.SystemPrompt}},
		})
	}

	for _, e := range log {
		switch e.Role {
		case events.RoleSystem:
			req.Input = append(req.Input, messageItem{
				Type: "message", Role: "system",
				Content: []contentPart{{Type: "input_text", Text: e.CombinedText()}},
			})
		case events.RoleUser:
			req.Input = append(req.Input, messageItem{
				Type: "message", Role: "user",
				Content: []contentPart{{Type: "input_text", Text: e.CombinedText()}},
			})
		case events.RoleAssistant:
			for _, seg := range e.Segments {
				switch s := seg.(type) {
				case events.Text:
					req.Input = append(req.Input, messageItem{
						Type: "message", Role: "assistant",
						Content: []contentPart{{Type: "output_text", Text: s.Text}},
					})
				case events.ToolCall:
					req.Input = append(req.Input, functionCallItem{
						Type:   "function_call",
						CallID: s.ID,
						Name:   s.Name,
						// Argument JSON reproduced verbatim.
						Arguments: string(s.Args),
					})
				case events.ToolResult:
					output := string(s.Output)
					if s.Error != "" {
						output = s.Error
					}
					req.Input = append(req.Input, functionCallOutputItem{
						Type:   "function_call_output",
						CallID: s.ID,
						Output: output,
					})
				case events.Reasoning:
					item := reasoningItem{Type: "reasoning", ID: s.ID}
					for _, p := range s.Parts {
						item.Summary = append(item.Summary, contentPart{Type: "summary_text", Text: p.Text})
					}
					if item.Summary == nil {
						item.Summary = []contentPart{}
					}
					req.Input = append(req.Input, item)
				case events.WebSearchCall, events.CodeInterpreterCall:
					// Vendor-managed; the vendor reconstructs built-in
					// call state server-side, nothing to send back.
				}
			}
		case events.RoleTool:
			return nil, fmt.Errorf("standalone tool turn %s in canonical log", e.ID)
		}
	}

	for _, t := range opts.Tools {
		req.Tools = append(req.Tools, functionTool{
			Type:        "function",
			Name:        t.Name,
			Description: t.Description,
			Parameters:  t.InputSchema,
		})
	}
	if opts.WebSearch {
		req.Tools = append(req.Tools, map[string]string{"type": "web_search"})
	}
	if opts.CodeInterpreter {
		req.Tools = append(req.Tools, map[string]any{
			"type":      "code_interpreter",
			"container": map[string]string{"type": "auto"},
		})
	}

	return json.Marshal(req)
}
