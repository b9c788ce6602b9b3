// ABOUTME: Tests for the chat-completions adapter
// ABOUTME: Request shape, verbatim argument JSON, and stream parsing against a canned server

package openaichat

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magicloops/budchat/internal/builder"
	"github.com/magicloops/budchat/internal/events"
	"github.com/magicloops/budchat/internal/provider"
)

func TestMarshalRequest_SystemPromptLeads(t *testing.T) {
	a := New(Config{APIKey: "sk-test"}, nil)

	body, err := a.MarshalRequest(
		[]*events.Event{events.NewText(events.RoleUser, "hello")},
		provider.Options{Model: "gpt-4o-mini", SystemPrompt: "be brief"},
	)
	require.NoError(t, err)

	var req struct {
		Model    string `json:"model"`
		Stream   bool   `json:"stream"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(body, &req))
	assert.Equal(t, "gpt-4o-mini", req.Model)
	assert.True(t, req.Stream)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, "system", req.Messages[0].Role)
	assert.Equal(t, "be brief", req.Messages[0].Content)
	assert.Equal(t, "user", req.Messages[1].Role)
}

func TestMarshalRequest_ToolCallArgsVerbatim(t *testing.T) {
	a := New(Config{APIKey: "sk-test"}, nil)

	// Peculiar but valid JSON with meaningful whitespace and key order.
	args := `{"b" :1,  "a":2}`
	assistant := events.New(events.RoleAssistant)
	assistant.Segments = []events.Segment{
		events.ToolCall{ID: "t1", Name: "calc", Args: json.RawMessage(args)},
		events.ToolResult{ID: "t1", Output: json.RawMessage(`{"ok":true}`)},
	}

	body, err := a.MarshalRequest(
		[]*events.Event{events.NewText(events.RoleUser, "go"), assistant},
		provider.Options{Model: "gpt-4o-mini"},
	)
	require.NoError(t, err)

	var req struct {
		Messages []struct {
			Role      string `json:"role"`
			Content   string `json:"content"`
			ToolCalls []struct {
				ID       string `json:"id"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
			ToolCallID string `json:"tool_call_id"`
		} `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(body, &req))
	require.Len(t, req.Messages, 3)

	require.Len(t, req.Messages[1].ToolCalls, 1)
	assert.Equal(t, args, req.Messages[1].ToolCalls[0].Function.Arguments,
		"argument JSON must survive byte-for-byte")

	assert.Equal(t, "tool", req.Messages[2].Role)
	assert.Equal(t, "t1", req.Messages[2].ToolCallID)
	assert.Equal(t, `{"ok":true}`, req.Messages[2].Content)
}

func TestMarshalRequest_StandaloneToolTurnRejected(t *testing.T) {
	a := New(Config{APIKey: "sk-test"}, nil)
	_, err := a.MarshalRequest(
		[]*events.Event{events.NewText(events.RoleTool, "orphan")},
		provider.Options{Model: "gpt-4o-mini"},
	)
	assert.Error(t, err)
}

func sseServer(t *testing.T, lines []string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "text/event-stream")
		for _, line := range lines {
			w.Write([]byte("data: " + line + "\n\n"))
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

func TestStream_TextDeltas(t *testing.T) {
	srv := sseServer(t, []string{
		`{"choices":[{"delta":{"content":"Hel"}}]}`,
		`{"choices":[{"delta":{"content":"lo"}}]}`,
		`[DONE]`,
	})
	a := New(Config{BaseURL: srv.URL, APIKey: "sk-test"}, nil)

	ch, err := a.Stream(t.Context(),
		[]*events.Event{events.NewText(events.RoleUser, "hi")},
		provider.Options{Model: "gpt-4o-mini"})
	require.NoError(t, err)

	deltas := collect(t, ch)
	require.Len(t, deltas, 3)
	assert.Equal(t, provider.TextDelta{Text: "Hel"}, deltas[0])
	assert.Equal(t, provider.TextDelta{Text: "lo"}, deltas[1])
	assert.IsType(t, provider.StreamDone{}, deltas[2])
}

func TestStream_ToolCallByIndex(t *testing.T) {
	srv := sseServer(t, []string{
		`{"choices":[{"delta":{"tool_calls":[{"index":0,"id":"call_1","function":{"name":"calc"}}]}}]}`,
		`{"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"{\"expr\":"}}]}}]}`,
		`{"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"\"2+2\"}"}}]}}]}`,
		`[DONE]`,
	})
	a := New(Config{BaseURL: srv.URL, APIKey: "sk-test"}, nil)

	ch, err := a.Stream(t.Context(),
		[]*events.Event{events.NewText(events.RoleUser, "2+2")},
		provider.Options{Model: "gpt-4o-mini"})
	require.NoError(t, err)

	deltas := collect(t, ch)
	require.Len(t, deltas, 4)

	start, ok := deltas[0].(provider.ToolCallStart)
	require.True(t, ok)
	assert.Equal(t, "call_1", start.ID)
	assert.Equal(t, "calc", start.Name)

	first := deltas[1].(provider.ToolCallArgsDelta)
	second := deltas[2].(provider.ToolCallArgsDelta)
	assert.Equal(t, `{"expr":"2+2"}`, first.Delta+second.Delta)
}

func TestRoundTrip_StreamRebuildsMarshaledTurn(t *testing.T) {
	// One canonical assistant turn, serialized out through MarshalRequest
	// and rebuilt from the equivalent vendor stream. The rebuilt event
	// must match the original up to ids and timestamps.
	original := events.New(events.RoleAssistant)
	original.Segments = []events.Segment{
		events.Text{Text: "The answer is 4."},
		events.ToolCall{ID: "call_1", Name: "calc", Args: json.RawMessage(`{"expr":"2+2"}`)},
	}

	a := New(Config{APIKey: "sk-test"}, nil)
	body, err := a.MarshalRequest(
		[]*events.Event{events.NewText(events.RoleUser, "2+2?"), original},
		provider.Options{Model: "gpt-4o-mini"},
	)
	require.NoError(t, err)

	var req struct {
		Messages []struct {
			Role      string `json:"role"`
			Content   string `json:"content"`
			ToolCalls []struct {
				Function struct {
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(body, &req))
	require.Len(t, req.Messages, 2)
	assert.Equal(t, "The answer is 4.", req.Messages[1].Content)
	require.Len(t, req.Messages[1].ToolCalls, 1)
	assert.Equal(t, `{"expr":"2+2"}`, req.Messages[1].ToolCalls[0].Function.Arguments)

	// The stream a vendor would emit for that same turn.
	srv := sseServer(t, []string{
		`{"choices":[{"delta":{"content":"The answer"}}]}`,
		`{"choices":[{"delta":{"content":" is 4."}}]}`,
		`{"choices":[{"delta":{"tool_calls":[{"index":0,"id":"call_1","function":{"name":"calc"}}]}}]}`,
		`{"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"{\"expr\":"}}]}}]}`,
		`{"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"\"2+2\"}"}}]}}]}`,
		`[DONE]`,
	})
	streaming := New(Config{BaseURL: srv.URL, APIKey: "sk-test"}, nil)

	ch, err := streaming.Stream(t.Context(),
		[]*events.Event{events.NewText(events.RoleUser, "2+2?")},
		provider.Options{Model: "gpt-4o-mini"})
	require.NoError(t, err)

	b := builder.New(nil)
	for d := range ch {
		b.Apply(d)
	}
	rebuilt := b.Finalize()
	require.NoError(t, b.Err())

	normalize := func(e *events.Event) *events.Event {
		c := e.Clone()
		c.ID = ""
		c.TS = time.Time{}
		return c
	}
	assert.Equal(t, normalize(original).Segments, normalize(rebuilt).Segments)
}

func TestStream_HTTPErrorSurfacesBeforeChannel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"invalid api key"}}`, http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)
	a := New(Config{BaseURL: srv.URL, APIKey: "sk-test"}, nil)

	_, err := a.Stream(t.Context(),
		[]*events.Event{events.NewText(events.RoleUser, "hi")},
		provider.Options{Model: "gpt-4o-mini"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}
