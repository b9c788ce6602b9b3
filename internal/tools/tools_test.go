// ABOUTME: Tests for tool routing and output truncation
// ABOUTME: Uses static servers as in-process doubles

package tools

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magicloops/budchat/internal/provider"
)

func calcServer() *StaticServer {
	return NewStaticServer("calc").Add(
		provider.ToolSpec{
			Name:        "calculator",
			Description: "Evaluate arithmetic",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"expr":{"type":"string"}},"required":["expr"]}`),
		},
		func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
			return json.RawMessage(`{"result":4}`), nil
		},
	)
}

func TestRegistry_RoutesToOwningServer(t *testing.T) {
	reg := NewRegistry(nil)
	require.NoError(t, reg.Register(t.Context(), calcServer()))

	res := reg.CallTool(t.Context(), "calculator", json.RawMessage(`{"expr":"2+2"}`))
	assert.Empty(t, res.Error)
	assert.JSONEq(t, `{"result":4}`, string(res.Output))
}

func TestRegistry_UnknownToolIsToolError(t *testing.T) {
	reg := NewRegistry(nil)
	res := reg.CallTool(t.Context(), "nope", nil)
	assert.Contains(t, res.Error, "unknown tool")
	assert.Nil(t, res.Output)
}

func TestRegistry_NameCollisionKeepsFirst(t *testing.T) {
	reg := NewRegistry(nil)
	first := NewStaticServer("first").Add(
		provider.ToolSpec{Name: "shared"},
		func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
			return json.RawMessage(`"first"`), nil
		},
	)
	second := NewStaticServer("second").Add(
		provider.ToolSpec{Name: "shared"},
		func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
			return json.RawMessage(`"second"`), nil
		},
	)
	require.NoError(t, reg.Register(t.Context(), first))
	require.NoError(t, reg.Register(t.Context(), second))

	res := reg.CallTool(t.Context(), "shared", nil)
	assert.Equal(t, `"first"`, string(res.Output))
}

func TestRegistry_ListToolsUnion(t *testing.T) {
	reg := NewRegistry(nil)
	require.NoError(t, reg.Register(t.Context(), calcServer()))
	require.NoError(t, reg.Register(t.Context(), NewStaticServer("other").Add(
		provider.ToolSpec{Name: "weather"},
		func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
			return json.RawMessage(`{}`), nil
		},
	)))

	specs, err := reg.ListTools(t.Context())
	require.NoError(t, err)
	require.Len(t, specs, 2)
	assert.Equal(t, "calculator", specs[0].Name)
	assert.Equal(t, "weather", specs[1].Name)
}

func TestStaticServer_HandlerErrorBecomesResultError(t *testing.T) {
	s := NewStaticServer("flaky").Add(
		provider.ToolSpec{Name: "boom"},
		func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
			return nil, errors.New("backend unavailable")
		},
	)
	res, err := s.CallTool(t.Context(), "boom", nil)
	require.NoError(t, err)
	assert.Equal(t, "backend unavailable", res.Error)
}

func TestTruncateOutput_UnderCapUnchanged(t *testing.T) {
	out, truncated := TruncateOutput("small output")
	assert.False(t, truncated)
	assert.Equal(t, "small output", out)
}

func TestTruncateOutput_OverCapCutWithNotice(t *testing.T) {
	big := strings.Repeat("x", MaxToolOutputBytes+1000)
	out, truncated := TruncateOutput(big)
	assert.True(t, truncated)
	assert.Less(t, len(out), len(big))
	assert.Contains(t, out, "output truncated")
	assert.Contains(t, out, "tokens")
	assert.True(t, strings.HasPrefix(out, "xxxx"))
}

func TestTruncateOutput_CutsAtRuneBoundary(t *testing.T) {
	// Multi-byte runes must not be split mid-sequence.
	big := strings.Repeat("é", MaxToolOutputBytes) // 2 bytes each
	out, truncated := TruncateOutput(big)
	assert.True(t, truncated)
	assert.True(t, utf8.ValidString(out))
}
