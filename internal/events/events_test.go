// ABOUTME: Tests for the canonical Event/Segment model
// ABOUTME: Covers IsResolved, CombinedText, and segment JSON round-trips

package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsResolved_NoToolCalls(t *testing.T) {
	e := NewText(RoleAssistant, "hello")
	assert.True(t, e.IsResolved())
}

func TestIsResolved_PendingToolCall(t *testing.T) {
	e := New(RoleAssistant)
	e.Segments = append(e.Segments,
		ToolCall{ID: "t1", Name: "calc", Args: json.RawMessage(`{}`)},
	)
	assert.False(t, e.IsResolved())

	e.Segments = append(e.Segments, ToolResult{ID: "t1", Output: json.RawMessage(`{"result":4}`)})
	assert.True(t, e.IsResolved())
}

func TestIsResolved_MismatchedResultID(t *testing.T) {
	e := New(RoleAssistant)
	e.Segments = append(e.Segments,
		ToolCall{ID: "t1", Name: "calc", Args: json.RawMessage(`{}`)},
		ToolResult{ID: "t2", Output: json.RawMessage(`{}`)},
	)
	assert.False(t, e.IsResolved())
}

func TestPendingToolCalls_Order(t *testing.T) {
	e := New(RoleAssistant)
	e.Segments = append(e.Segments,
		ToolCall{ID: "a", Name: "first", Args: json.RawMessage(`{}`)},
		ToolCall{ID: "b", Name: "second", Args: json.RawMessage(`{}`)},
		ToolResult{ID: "a", Output: json.RawMessage(`{}`)},
	)

	pending := e.PendingToolCalls()
	require.Len(t, pending, 1)
	assert.Equal(t, "b", pending[0].ID)
}

func TestCombinedText_ConcatenatesInOrder(t *testing.T) {
	e := New(RoleAssistant)
	e.Segments = append(e.Segments,
		Text{Text: "Hello, "},
		ToolCall{ID: "t1", Name: "noop", Args: json.RawMessage(`{}`)},
		Text{Text: "world"},
	)
	assert.Equal(t, "Hello, world", e.CombinedText())
}

func TestEventJSON_RoundTrip(t *testing.T) {
	idx := 1
	e := &Event{
		ID:   "evt-1",
		Role: RoleAssistant,
		TS:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Segments: []Segment{
			Text{Text: "thinking done"},
			ToolCall{ID: "t1", Name: "search", Args: json.RawMessage(`{"q":"go"}`)},
			ToolResult{ID: "t1", Output: json.RawMessage(`{"hits":3}`)},
			Reasoning{
				ID:             "rs-1",
				OutputIndex:    0,
				SequenceNumber: 7,
				Parts: []ReasoningPart{
					{SummaryIndex: 0, Text: "part zero", SequenceNumber: 3, IsComplete: true},
					{SummaryIndex: 1, Text: "part one", SequenceNumber: 5, IsComplete: true},
				},
				CombinedText:       "part zero\n\npart one",
				EffortLevel:        "low",
				StreamingPartIndex: &idx,
			},
			WebSearchCall{ID: "ws-1", Status: "completed"},
			CodeInterpreterCall{ID: "ci-1", Status: "completed", Code: "print(4)"},
		},
	}

	data, err := json.Marshal(e)
	require.NoError(t, err)

	var back Event
	require.NoError(t, json.Unmarshal(data, &back))

	require.Len(t, back.Segments, 6)
	assert.Equal(t, e.ID, back.ID)
	assert.Equal(t, e.Role, back.Role)

	tc, ok := back.Segments[1].(ToolCall)
	require.True(t, ok)
	assert.JSONEq(t, `{"q":"go"}`, string(tc.Args))

	rs, ok := back.Segments[3].(Reasoning)
	require.True(t, ok)
	assert.Equal(t, "part zero\n\npart one", rs.CombinedText)
	require.Len(t, rs.Parts, 2)
	assert.Equal(t, 1, rs.Parts[1].SummaryIndex)
}

func TestUnmarshalSegment_UnknownType(t *testing.T) {
	_, err := UnmarshalSegment(json.RawMessage(`{"type":"hologram","x":1}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hologram")
}

func TestClone_IndependentReasoningParts(t *testing.T) {
	e := New(RoleAssistant)
	e.Segments = append(e.Segments, Reasoning{
		ID:    "rs-1",
		Parts: []ReasoningPart{{SummaryIndex: 0, Text: "original"}},
	})

	clone := e.Clone()
	rs := clone.Segments[0].(Reasoning)
	rs.Parts[0].Text = "mutated"

	orig := e.Segments[0].(Reasoning)
	assert.Equal(t, "original", orig.Parts[0].Text)
}
