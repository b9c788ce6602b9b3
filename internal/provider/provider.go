// ABOUTME: Adapter interface, request options, and capability flags
// ABOUTME: Model-based adapter selection lives here as well

package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/magicloops/budchat/internal/events"
)

// Capability describes which delta kinds an adapter's vendor stream can
// produce.
type Capability uint

const (
	CapTextDeltas Capability = 1 << iota
	CapToolCallDeltas
	CapReasoningDeltas
	CapBuiltInTools
)

// Has reports whether all bits in want are set.
func (c Capability) Has(want Capability) bool { return c&want == want }

// ToolSpec describes a tool offered to the model.
type ToolSpec struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema,omitempty"`
}

// Options carries the resolved conversation-level configuration for one
// model invocation. Resolution (bud/override hierarchy) happens upstream;
// adapters only see final scalar values.
type Options struct {
	Model           string
	SystemPrompt    string
	Temperature     *float64
	MaxTokens       int
	ReasoningEffort string
	Tools           []ToolSpec
	WebSearch       bool
	CodeInterpreter bool
}

// Adapter is the bidirectional translator for one vendor mode.
type Adapter interface {
	// Name identifies the adapter ("openai-chat", "openai-responses",
	// "anthropic").
	Name() string

	// Capabilities reports which delta kinds this adapter emits.
	Capabilities() Capability

	// MarshalRequest builds the vendor request body from the canonical
	// log. Tool-call argument JSON is reproduced byte-for-byte from the
	// canonical Args.
	MarshalRequest(log []*events.Event, opts Options) ([]byte, error)

	// Stream sends the request and exposes the vendor's incremental
	// events as RawDelta values. The channel closes when the vendor
	// stream ends; a StreamError delta precedes the close on failure.
	// Cancelling ctx stops the underlying HTTP stream promptly.
	Stream(ctx context.Context, log []*events.Event, opts Options) (<-chan RawDelta, error)
}

// ErrNoAdapter is returned when no adapter claims the requested model.
var ErrNoAdapter = errors.New("no adapter for model")

// Registry selects an adapter by model id. Reasoning-capable OpenAI
// models use the responses protocol; everything else OpenAI-shaped uses
// chat completions; claude models use the messages protocol.
type Registry struct {
	Chat      Adapter
	Responses Adapter
	Anthropic Adapter
}

// ForModel picks the adapter for a model id.
func (r *Registry) ForModel(model string) (Adapter, error) {
	m := strings.ToLower(strings.TrimSpace(model))
	switch {
	case m == "":
		return nil, fmt.Errorf("%w: empty model", ErrNoAdapter)
	case strings.HasPrefix(m, "claude"):
		if r.Anthropic == nil {
			return nil, fmt.Errorf("%w: %s", ErrNoAdapter, model)
		}
		return r.Anthropic, nil
	case isReasoningModel(m):
		if r.Responses == nil {
			return nil, fmt.Errorf("%w: %s", ErrNoAdapter, model)
		}
		return r.Responses, nil
	default:
		if r.Chat == nil {
			return nil, fmt.Errorf("%w: %s", ErrNoAdapter, model)
		}
		return r.Chat, nil
	}
}

// isReasoningModel reports whether the model streams reasoning summaries
// and therefore requires the responses protocol.
func isReasoningModel(m string) bool {
	for _, prefix := range []string{"o1", "o3", "o4", "gpt-5"} {
		if strings.HasPrefix(m, prefix) {
			return true
		}
	}
	return false
}
