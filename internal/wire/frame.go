// ABOUTME: Frame type constants, the Frame struct, and SSE encode/decode
// ABOUTME: Unknown frame types decode with ok=false; malformed JSON is an error

package wire

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/magicloops/budchat/internal/events"
)

// Frame types. The set is closed on the emitting side; decoders treat
// anything else as skippable.
const (
	TypeToken = "token"

	TypeToolStart     = "tool_start"
	TypeToolArgsDelta = "tool_arguments_delta"
	TypeToolFinalized = "tool_finalized"
	TypeToolResult    = "tool_result"
	TypeToolComplete  = "tool_complete"

	TypeReasoningStart        = "reasoning_start"
	TypeReasoningSummaryStart = "reasoning_summary_start"
	TypeReasoningSummaryDelta = "reasoning_summary_delta"
	TypeReasoningSummaryDone  = "reasoning_summary_done"
	TypeReasoningComplete     = "reasoning_complete"

	TypeBuiltInToolStart  = "builtin_tool_start"
	TypeBuiltInToolStatus = "builtin_tool_status"
	TypeBuiltInCodeDelta  = "builtin_code_delta"
	TypeBuiltInToolDone   = "builtin_tool_done"

	TypeConversationCreated = "conversationCreated"
	TypeMessageFinal        = "message_final"
	TypeComplete            = "complete"
	TypeError               = "error"
)

// Frame is one streamed update. EventID is the placeholder id of the
// assistant event being built; clients key overlay state by it.
type Frame struct {
	Type    string `json:"type"`
	EventID string `json:"event_id,omitempty"`

	// token
	Text string `json:"text,omitempty"`

	// tool frames
	ToolID    string          `json:"tool_id,omitempty"`
	ToolName  string          `json:"tool_name,omitempty"`
	ArgsDelta string          `json:"args_delta,omitempty"`
	Args      json.RawMessage `json:"args,omitempty"`
	Output    json.RawMessage `json:"output,omitempty"`

	// reasoning frames
	ItemID       string `json:"item_id,omitempty"`
	SummaryIndex int    `json:"summary_index,omitempty"`
	Sequence     int    `json:"sequence_number,omitempty"`
	CombinedText string `json:"combined_text,omitempty"`

	// built-in tool frames
	Kind   string `json:"kind,omitempty"`
	Status string `json:"status,omitempty"`
	Code   string `json:"code,omitempty"`

	// conversationCreated
	ConversationID string `json:"conversation_id,omitempty"`

	// message_final: FinalID replaces EventID in durable state, and
	// Event is the complete finalized event to commit.
	FinalID string        `json:"final_id,omitempty"`
	Event   *events.Event `json:"event,omitempty"`

	// error
	Message string `json:"error,omitempty"`
}

// EncodeSSE renders the frame as one SSE data block.
func (f Frame) EncodeSSE() ([]byte, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("encoding frame: %w", err)
	}
	return []byte("data: " + string(data) + "\n\n"), nil
}

// Decode parses one frame payload (the data portion of an SSE block).
// ok=false with nil error means the frame type is unknown and should be
// skipped; an error means the payload was not valid JSON.
func Decode(data []byte) (Frame, bool, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Frame{}, false, fmt.Errorf("decoding frame: %w", err)
	}
	if !knownType(f.Type) {
		return f, false, nil
	}
	return f, true, nil
}

func knownType(t string) bool {
	switch t {
	case TypeToken,
		TypeToolStart, TypeToolArgsDelta, TypeToolFinalized, TypeToolResult, TypeToolComplete,
		TypeReasoningStart, TypeReasoningSummaryStart, TypeReasoningSummaryDelta,
		TypeReasoningSummaryDone, TypeReasoningComplete,
		TypeBuiltInToolStart, TypeBuiltInToolStatus, TypeBuiltInCodeDelta, TypeBuiltInToolDone,
		TypeConversationCreated, TypeMessageFinal, TypeComplete, TypeError:
		return true
	}
	return false
}

// DecodeSSELine strips the "data: " prefix from one SSE line and decodes
// the payload. Lines without the prefix (comments, event names, blanks)
// return ok=false with no error.
func DecodeSSELine(line string) (Frame, bool, error) {
	payload, found := strings.CutPrefix(strings.TrimRight(line, "\r\n"), "data: ")
	if !found || payload == "" {
		return Frame{}, false, nil
	}
	return Decode([]byte(payload))
}
