// ABOUTME: Event and Role types plus the invariant-checking operations
// ABOUTME: IsResolved and CombinedText are consumed by every other component

package events

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role identifies who emitted a turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Event is one conversation turn: a role plus an ordered list of segments.
// Segments are append-only once the event is finalized; only the stream
// builder mutates an event, and only while it owns the in-flight turn.
type Event struct {
	ID       string    `json:"id"`
	Role     Role      `json:"role"`
	Segments []Segment `json:"segments"`
	TS       time.Time `json:"ts"`
}

// New creates an empty placeholder event for the given role.
func New(role Role) *Event {
	return &Event{
		ID:   uuid.New().String(),
		Role: role,
		TS:   time.Now().UTC(),
	}
}

// NewText creates a finalized single-text-segment event. Used for user and
// system turns, which never stream.
func NewText(role Role, text string) *Event {
	e := New(role)
	e.Segments = append(e.Segments, Text{Text: text})
	return e
}

// IsResolved reports whether every tool_call segment has a matching
// tool_result. The orchestrator never starts a model call while any event
// in the log is unresolved.
func (e *Event) IsResolved() bool {
	results := make(map[string]bool)
	for _, seg := range e.Segments {
		if r, ok := seg.(ToolResult); ok {
			results[r.ID] = true
		}
	}
	for _, seg := range e.Segments {
		if c, ok := seg.(ToolCall); ok {
			if !results[c.ID] {
				return false
			}
		}
	}
	return true
}

// PendingToolCalls returns the tool_call segments that have no matching
// tool_result yet, in segment order.
func (e *Event) PendingToolCalls() []ToolCall {
	results := make(map[string]bool)
	for _, seg := range e.Segments {
		if r, ok := seg.(ToolResult); ok {
			results[r.ID] = true
		}
	}
	var pending []ToolCall
	for _, seg := range e.Segments {
		if c, ok := seg.(ToolCall); ok && !results[c.ID] {
			pending = append(pending, c)
		}
	}
	return pending
}

// CombinedText concatenates all text segments in order.
func (e *Event) CombinedText() string {
	var b strings.Builder
	for _, seg := range e.Segments {
		if t, ok := seg.(Text); ok {
			b.WriteString(t.Text)
		}
	}
	return b.String()
}

// Clone returns a deep copy of the event. Segment variants are value types,
// so copying the slice copies the content; reasoning parts get their own
// backing array.
func (e *Event) Clone() *Event {
	out := &Event{
		ID:   e.ID,
		Role: e.Role,
		TS:   e.TS,
	}
	out.Segments = make([]Segment, len(e.Segments))
	for i, seg := range e.Segments {
		if r, ok := seg.(Reasoning); ok {
			parts := make([]ReasoningPart, len(r.Parts))
			copy(parts, r.Parts)
			r.Parts = parts
			out.Segments[i] = r
			continue
		}
		out.Segments[i] = seg
	}
	return out
}
