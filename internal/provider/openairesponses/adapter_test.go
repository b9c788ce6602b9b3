// ABOUTME: Tests for the responses-protocol adapter
// ABOUTME: Input item construction, reasoning round-trip, and named-event stream parsing

package openairesponses

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magicloops/budchat/internal/events"
	"github.com/magicloops/budchat/internal/provider"
)

func TestMarshalRequest_InputItemsPreserveOrder(t *testing.T) {
	a := New(Config{APIKey: "sk-test"}, nil)

	assistant := events.New(events.RoleAssistant)
	assistant.Segments = []events.Segment{
		events.Reasoning{ID: "rs_1", Parts: []events.ReasoningPart{
			{SummaryIndex: 0, Text: "think first"},
		}},
		events.ToolCall{ID: "call_1", Name: "calc", Args: json.RawMessage(`{"expr":"2+2"}`)},
		events.ToolResult{ID: "call_1", Output: json.RawMessage(`{"result":4}`)},
		events.Text{Text: "four"},
	}

	body, err := a.MarshalRequest(
		[]*events.Event{events.NewText(events.RoleUser, "2+2?"), assistant},
		provider.Options{Model: "o4-mini", SystemPrompt: "be brief"},
	)
	require.NoError(t, err)

	var req struct {
		Model string `json:"model"`
		Input []struct {
			Type      string `json:"type"`
			Role      string `json:"role"`
			CallID    string `json:"call_id"`
			Name      string `json:"name"`
			Arguments string `json:"arguments"`
			Output    string `json:"output"`
			Content   []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
		} `json:"input"`
	}
	require.NoError(t, json.Unmarshal(body, &req))
	require.Len(t, req.Input, 6)

	assert.Equal(t, "message", req.Input[0].Type)
	assert.Equal(t, "system", req.Input[0].Role)
	assert.Equal(t, "input_text", req.Input[0].Content[0].Type)

	assert.Equal(t, "user", req.Input[1].Role)

	assert.Equal(t, "reasoning", req.Input[2].Type)
	assert.Equal(t, "function_call", req.Input[3].Type)
	assert.Equal(t, "call_1", req.Input[3].CallID)
	assert.Equal(t, "calc", req.Input[3].Name)
	assert.Equal(t, `{"expr":"2+2"}`, req.Input[3].Arguments)

	assert.Equal(t, "function_call_output", req.Input[4].Type)
	assert.Equal(t, `{"result":4}`, req.Input[4].Output)

	assert.Equal(t, "message", req.Input[5].Type)
	assert.Equal(t, "assistant", req.Input[5].Role)
	assert.Equal(t, "output_text", req.Input[5].Content[0].Type)
	assert.Equal(t, "four", req.Input[5].Content[0].Text)
}

func TestMarshalRequest_EmptyReasoningSummaryIsArray(t *testing.T) {
	a := New(Config{APIKey: "sk-test"}, nil)

	assistant := events.New(events.RoleAssistant)
	assistant.Segments = []events.Segment{
		events.Reasoning{ID: "rs_1"},
		events.Text{Text: "done"},
	}

	body, err := a.MarshalRequest(
		[]*events.Event{events.NewText(events.RoleUser, "hi"), assistant},
		provider.Options{Model: "o4-mini"},
	)
	require.NoError(t, err)

	// A reasoning item with no summary parts must carry "summary":[]
	// rather than null, which the vendor rejects.
	assert.Contains(t, string(body), `"summary":[]`)
}

func TestMarshalRequest_ReasoningEffortRequestsSummaries(t *testing.T) {
	a := New(Config{APIKey: "sk-test"}, nil)

	body, err := a.MarshalRequest(
		[]*events.Event{events.NewText(events.RoleUser, "hi")},
		provider.Options{Model: "o4-mini", ReasoningEffort: "high"},
	)
	require.NoError(t, err)

	var req struct {
		Reasoning *struct {
			Effort  string `json:"effort"`
			Summary string `json:"summary"`
		} `json:"reasoning"`
	}
	require.NoError(t, json.Unmarshal(body, &req))
	require.NotNil(t, req.Reasoning)
	assert.Equal(t, "high", req.Reasoning.Effort)
	assert.Equal(t, "detailed", req.Reasoning.Summary)
}

func TestMarshalRequest_BuiltInTools(t *testing.T) {
	a := New(Config{APIKey: "sk-test"}, nil)

	body, err := a.MarshalRequest(
		[]*events.Event{events.NewText(events.RoleUser, "hi")},
		provider.Options{
			Model:           "o4-mini",
			Tools:           []provider.ToolSpec{{Name: "calc", InputSchema: json.RawMessage(`{"type":"object"}`)}},
			WebSearch:       true,
			CodeInterpreter: true,
		},
	)
	require.NoError(t, err)

	var req struct {
		Tools []map[string]any `json:"tools"`
	}
	require.NoError(t, json.Unmarshal(body, &req))
	require.Len(t, req.Tools, 3)
	assert.Equal(t, "function", req.Tools[0]["type"])
	assert.Equal(t, "web_search", req.Tools[1]["type"])
	assert.Equal(t, "code_interpreter", req.Tools[2]["type"])
}

type namedEvent struct {
	name string
	data string
}

func namedSSEServer(t *testing.T, evs []namedEvent) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "text/event-stream")
		for _, ev := range evs {
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.name, ev.data)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func collect(t *testing.T, ch <-chan provider.RawDelta) []provider.RawDelta {
	t.Helper()
	var out []provider.RawDelta
	for d := range ch {
		out = append(out, d)
	}
	return out
}

func TestStream_TextAndCompletion(t *testing.T) {
	srv := namedSSEServer(t, []namedEvent{
		{"response.output_text.delta", `{"delta":"Hel","sequence_number":3}`},
		{"response.output_text.delta", `{"delta":"lo","sequence_number":4}`},
		{"response.completed", `{"sequence_number":5}`},
	})
	a := New(Config{BaseURL: srv.URL, APIKey: "sk-test"}, nil)

	ch, err := a.Stream(t.Context(),
		[]*events.Event{events.NewText(events.RoleUser, "hi")},
		provider.Options{Model: "o4-mini"})
	require.NoError(t, err)

	deltas := collect(t, ch)
	require.Len(t, deltas, 3)
	assert.Equal(t, provider.TextDelta{Text: "Hel", Sequence: 3}, deltas[0])
	assert.Equal(t, provider.TextDelta{Text: "lo", Sequence: 4}, deltas[1])
	assert.IsType(t, provider.StreamDone{}, deltas[2])
}

func TestStream_FunctionCallMapsItemIDToCallID(t *testing.T) {
	srv := namedSSEServer(t, []namedEvent{
		{"response.output_item.added", `{"item":{"id":"fc_item","type":"function_call","call_id":"call_1","name":"calc"},"sequence_number":1}`},
		{"response.function_call_arguments.delta", `{"item_id":"fc_item","delta":"{\"expr\":","sequence_number":2}`},
		{"response.function_call_arguments.delta", `{"item_id":"fc_item","delta":"\"2+2\"}","sequence_number":3}`},
		{"response.function_call_arguments.done", `{"item_id":"fc_item","arguments":"{\"expr\":\"2+2\"}","sequence_number":4}`},
		{"response.completed", `{"sequence_number":5}`},
	})
	a := New(Config{BaseURL: srv.URL, APIKey: "sk-test"}, nil)

	ch, err := a.Stream(t.Context(),
		[]*events.Event{events.NewText(events.RoleUser, "2+2")},
		provider.Options{Model: "o4-mini"})
	require.NoError(t, err)

	deltas := collect(t, ch)
	require.Len(t, deltas, 5)

	start := deltas[0].(provider.ToolCallStart)
	assert.Equal(t, "call_1", start.ID, "canonical id is the vendor call_id, not the item id")
	assert.Equal(t, "calc", start.Name)

	// Every arguments delta resolves through the item_id mapping.
	assert.Equal(t, "call_1", deltas[1].(provider.ToolCallArgsDelta).ID)
	assert.Equal(t, "call_1", deltas[2].(provider.ToolCallArgsDelta).ID)

	done := deltas[3].(provider.ToolCallDone)
	assert.Equal(t, "call_1", done.ID)
	assert.Equal(t, `{"expr":"2+2"}`, done.Args)
}

func TestStream_ReasoningSummaries(t *testing.T) {
	srv := namedSSEServer(t, []namedEvent{
		{"response.output_item.added", `{"item":{"id":"rs_1","type":"reasoning"},"output_index":0,"sequence_number":1}`},
		{"response.reasoning_summary_text.delta", `{"item_id":"rs_1","summary_index":0,"delta":"thinking","sequence_number":2}`},
		{"response.reasoning_summary_text.done", `{"item_id":"rs_1","summary_index":0,"text":"thinking done","sequence_number":3}`},
		{"response.output_item.done", `{"item":{"id":"rs_1","type":"reasoning"},"sequence_number":4}`},
		{"response.completed", `{"sequence_number":5}`},
	})
	a := New(Config{BaseURL: srv.URL, APIKey: "sk-test"}, nil)

	ch, err := a.Stream(t.Context(),
		[]*events.Event{events.NewText(events.RoleUser, "hi")},
		provider.Options{Model: "o4-mini", ReasoningEffort: "medium"})
	require.NoError(t, err)

	deltas := collect(t, ch)
	require.Len(t, deltas, 5)

	start := deltas[0].(provider.ReasoningStart)
	assert.Equal(t, "rs_1", start.ID)
	assert.Equal(t, "medium", start.Effort)

	delta := deltas[1].(provider.ReasoningSummaryDelta)
	assert.Equal(t, 0, delta.SummaryIndex)
	assert.Equal(t, "thinking", delta.Text)

	done := deltas[2].(provider.ReasoningSummaryDone)
	assert.Equal(t, "thinking done", done.Text)

	assert.Equal(t, provider.ReasoningDone{ID: "rs_1", Sequence: 4}, deltas[3])
	assert.IsType(t, provider.StreamDone{}, deltas[4])
}

func TestStream_BuiltInToolLifecycle(t *testing.T) {
	srv := namedSSEServer(t, []namedEvent{
		{"response.output_item.added", `{"item":{"id":"ws_1","type":"web_search_call"},"sequence_number":1}`},
		{"response.web_search_call.searching", `{"item_id":"ws_1","sequence_number":2}`},
		{"response.output_item.done", `{"item":{"id":"ws_1","type":"web_search_call"},"sequence_number":3}`},
		{"response.code_interpreter_call_code.delta", `{"item_id":"ci_1","delta":"print(4)","sequence_number":4}`},
		{"response.completed", `{"sequence_number":5}`},
	})
	a := New(Config{BaseURL: srv.URL, APIKey: "sk-test"}, nil)

	ch, err := a.Stream(t.Context(),
		[]*events.Event{events.NewText(events.RoleUser, "search")},
		provider.Options{Model: "o4-mini", WebSearch: true})
	require.NoError(t, err)

	deltas := collect(t, ch)
	require.Len(t, deltas, 5)

	assert.Equal(t, provider.BuiltInToolStatus{
		ID: "ws_1", Kind: provider.BuiltInWebSearch, Status: "in_progress", Sequence: 1,
	}, deltas[0])
	assert.Equal(t, "searching", deltas[1].(provider.BuiltInToolStatus).Status)
	assert.Equal(t, "completed", deltas[2].(provider.BuiltInToolStatus).Status)
	assert.Equal(t, provider.CodeDelta{ID: "ci_1", Code: "print(4)", Sequence: 4}, deltas[3])
}

func TestStream_UnknownEventNamesIgnored(t *testing.T) {
	srv := namedSSEServer(t, []namedEvent{
		{"response.in_progress", `{"sequence_number":1}`},
		{"response.output_text.annotation.added", `{"sequence_number":2}`},
		{"response.output_text.delta", `{"delta":"ok","sequence_number":3}`},
		{"response.completed", `{"sequence_number":4}`},
	})
	a := New(Config{BaseURL: srv.URL, APIKey: "sk-test"}, nil)

	ch, err := a.Stream(t.Context(),
		[]*events.Event{events.NewText(events.RoleUser, "hi")},
		provider.Options{Model: "o4-mini"})
	require.NoError(t, err)

	deltas := collect(t, ch)
	require.Len(t, deltas, 2)
	assert.Equal(t, provider.TextDelta{Text: "ok", Sequence: 3}, deltas[0])
}

func TestStream_VendorFailureSurfacesAsStreamError(t *testing.T) {
	srv := namedSSEServer(t, []namedEvent{
		{"response.output_text.delta", `{"delta":"partial","sequence_number":1}`},
		{"response.failed", `{"error":{"message":"rate limited"},"sequence_number":2}`},
	})
	a := New(Config{BaseURL: srv.URL, APIKey: "sk-test"}, nil)

	ch, err := a.Stream(t.Context(),
		[]*events.Event{events.NewText(events.RoleUser, "hi")},
		provider.Options{Model: "o4-mini"})
	require.NoError(t, err)

	deltas := collect(t, ch)
	require.Len(t, deltas, 2)
	se, ok := deltas[1].(provider.StreamError)
	require.True(t, ok)
	assert.Contains(t, se.Err.Error(), "rate limited")
}
