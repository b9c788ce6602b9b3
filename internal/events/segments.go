// ABOUTME: Segment tagged union with JSON encoding for the durable log
// ABOUTME: Variants: text, tool_call, tool_result, reasoning, built-in tool calls

package events

import (
	"encoding/json"
	"fmt"
	"time"
)

// SegmentType tags a segment variant on the wire and in the store.
type SegmentType string

const (
	SegmentText            SegmentType = "text"
	SegmentToolCall        SegmentType = "tool_call"
	SegmentToolResult      SegmentType = "tool_result"
	SegmentReasoning       SegmentType = "reasoning"
	SegmentWebSearch       SegmentType = "web_search_call"
	SegmentCodeInterpreter SegmentType = "code_interpreter_call"
)

// Segment is one typed unit of content within an Event. The union is
// closed: the only implementations are the variants in this package, and
// UnmarshalSegment rejects anything else.
type Segment interface {
	Type() SegmentType
}

// Text is a run of assistant or user text.
type Text struct {
	Text string `json:"text"`
}

func (Text) Type() SegmentType { return SegmentText }

// ToolCall is a model-requested tool invocation. Args holds the argument
// JSON exactly as the vendor produced it; adapters must reconstruct it
// byte-for-byte when rebuilding vendor requests.
type ToolCall struct {
	ID   string          `json:"id"`
	Name string          `json:"name"`
	Args json.RawMessage `json:"args"`
}

func (ToolCall) Type() SegmentType { return SegmentToolCall }

// ToolResult pairs to a ToolCall by ID. Error is set when the execution
// failed; the output is still fed back to the model either way.
type ToolResult struct {
	ID     string          `json:"id"`
	Output json.RawMessage `json:"output,omitempty"`
	Error  string          `json:"error,omitempty"`
}

func (ToolResult) Type() SegmentType { return SegmentToolResult }

// ReasoningPart is one summary part of a reasoning segment, keyed by
// SummaryIndex. IsComplete only ever transitions false to true.
type ReasoningPart struct {
	SummaryIndex   int       `json:"summary_index"`
	Text           string    `json:"text"`
	SequenceNumber int       `json:"sequence_number"`
	IsComplete     bool      `json:"is_complete"`
	CreatedAt      time.Time `json:"created_at"`
}

// Reasoning is a model reasoning block. Parts are unique by SummaryIndex.
// Streaming and StreamingPartIndex are present only while the turn is the
// active streaming target; a finalized event never carries them.
type Reasoning struct {
	ID                 string          `json:"id"`
	OutputIndex        int             `json:"output_index"`
	SequenceNumber     int             `json:"sequence_number"`
	Parts              []ReasoningPart `json:"parts"`
	CombinedText       string          `json:"combined_text,omitempty"`
	EffortLevel        string          `json:"effort_level,omitempty"`
	Streaming          bool            `json:"streaming,omitempty"`
	StreamingPartIndex *int            `json:"streaming_part_index,omitempty"`
}

func (Reasoning) Type() SegmentType { return SegmentReasoning }

// WebSearchCall is a vendor-managed built-in tool invocation.
type WebSearchCall struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func (WebSearchCall) Type() SegmentType { return SegmentWebSearch }

// CodeInterpreterCall is a vendor-managed built-in tool invocation with an
// optional streamed code body.
type CodeInterpreterCall struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Code   string `json:"code,omitempty"`
}

func (CodeInterpreterCall) Type() SegmentType { return SegmentCodeInterpreter }

// segmentEnvelope wraps a segment with its type tag for JSON encoding.
type segmentEnvelope struct {
	Type SegmentType     `json:"type"`
	Data json.RawMessage `json:"-"`
}

// MarshalJSON encodes the event with type-tagged segments.
func (e *Event) MarshalJSON() ([]byte, error) {
	type alias struct {
		ID       string            `json:"id"`
		Role     Role              `json:"role"`
		Segments []json.RawMessage `json:"segments"`
		TS       time.Time         `json:"ts"`
	}
	out := alias{ID: e.ID, Role: e.Role, TS: e.TS, Segments: make([]json.RawMessage, 0, len(e.Segments))}
	for _, seg := range e.Segments {
		raw, err := MarshalSegment(seg)
		if err != nil {
			return nil, err
		}
		out.Segments = append(out.Segments, raw)
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes an event with type-tagged segments.
func (e *Event) UnmarshalJSON(data []byte) error {
	type alias struct {
		ID       string            `json:"id"`
		Role     Role              `json:"role"`
		Segments []json.RawMessage `json:"segments"`
		TS       time.Time         `json:"ts"`
	}
	var in alias
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	e.ID = in.ID
	e.Role = in.Role
	e.TS = in.TS
	e.Segments = e.Segments[:0]
	for _, raw := range in.Segments {
		seg, err := UnmarshalSegment(raw)
		if err != nil {
			return err
		}
		e.Segments = append(e.Segments, seg)
	}
	return nil
}

// MarshalSegment encodes a single segment with its type tag.
func MarshalSegment(seg Segment) (json.RawMessage, error) {
	body, err := json.Marshal(seg)
	if err != nil {
		return nil, fmt.Errorf("marshaling %s segment: %w", seg.Type(), err)
	}
	// Splice the type tag into the object. Body is always an object here.
	tagged := make([]byte, 0, len(body)+24)
	tagged = append(tagged, `{"type":"`...)
	tagged = append(tagged, string(seg.Type())...)
	tagged = append(tagged, `",`...)
	tagged = append(tagged, body[1:]...)
	return tagged, nil
}

// UnmarshalSegment decodes a single type-tagged segment. Unknown types are
// an error: the durable log is a closed set, unlike the browser framing.
func UnmarshalSegment(raw json.RawMessage) (Segment, error) {
	var tag struct {
		Type SegmentType `json:"type"`
	}
	if err := json.Unmarshal(raw, &tag); err != nil {
		return nil, fmt.Errorf("reading segment type: %w", err)
	}
	switch tag.Type {
	case SegmentText:
		var s Text
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		return s, nil
	case SegmentToolCall:
		var s ToolCall
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		return s, nil
	case SegmentToolResult:
		var s ToolResult
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		return s, nil
	case SegmentReasoning:
		var s Reasoning
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		return s, nil
	case SegmentWebSearch:
		var s WebSearchCall
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		return s, nil
	case SegmentCodeInterpreter:
		var s CodeInterpreterCall
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown segment type %q", tag.Type)
	}
}
