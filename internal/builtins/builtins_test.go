// ABOUTME: Tests for the builtin tool packs
// ABOUTME: Exercises handlers through the tools.Server surface, errors as Result.Error

package builtins

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBaseServer_CurrentTime(t *testing.T) {
	s := BaseServer()

	res, err := s.CallTool(t.Context(), "current_time", json.RawMessage(`{"timezone":"UTC"}`))
	require.NoError(t, err)
	require.Empty(t, res.Error)

	var out struct {
		Time     string `json:"time"`
		Timezone string `json:"timezone"`
		Weekday  string `json:"weekday"`
	}
	require.NoError(t, json.Unmarshal(res.Output, &out))
	assert.Equal(t, "UTC", out.Timezone)
	assert.NotEmpty(t, out.Time)
	assert.NotEmpty(t, out.Weekday)
}

func TestBaseServer_CurrentTimeBadTimezone(t *testing.T) {
	s := BaseServer()

	res, err := s.CallTool(t.Context(), "current_time", json.RawMessage(`{"timezone":"Mars/Olympus"}`))
	require.NoError(t, err, "tool failures are payload, not transport")
	assert.Contains(t, res.Error, "unknown timezone")
}

func TestBaseServer_RandomNumberRange(t *testing.T) {
	s := BaseServer()

	for range 20 {
		res, err := s.CallTool(t.Context(), "random_number", json.RawMessage(`{"min":3,"max":5}`))
		require.NoError(t, err)
		require.Empty(t, res.Error)

		var out struct {
			Value int64 `json:"value"`
		}
		require.NoError(t, json.Unmarshal(res.Output, &out))
		assert.GreaterOrEqual(t, out.Value, int64(3))
		assert.LessOrEqual(t, out.Value, int64(5))
	}
}

func TestBaseServer_RandomNumberInvertedRange(t *testing.T) {
	s := BaseServer()

	res, err := s.CallTool(t.Context(), "random_number", json.RawMessage(`{"min":9,"max":1}`))
	require.NoError(t, err)
	assert.Contains(t, res.Error, "less than min")
}

func TestNotesServer_RoundTrip(t *testing.T) {
	s := NotesServer()

	res, err := s.CallTool(t.Context(), "note_set", json.RawMessage(`{"key":"plan","value":"ship it"}`))
	require.NoError(t, err)
	require.Empty(t, res.Error)

	res, err = s.CallTool(t.Context(), "note_get", json.RawMessage(`{"key":"plan"}`))
	require.NoError(t, err)
	require.Empty(t, res.Error)
	var got struct {
		Value string `json:"value"`
	}
	require.NoError(t, json.Unmarshal(res.Output, &got))
	assert.Equal(t, "ship it", got.Value)

	res, err = s.CallTool(t.Context(), "note_list", json.RawMessage(`{}`))
	require.NoError(t, err)
	var list struct {
		Keys []string `json:"keys"`
	}
	require.NoError(t, json.Unmarshal(res.Output, &list))
	assert.Equal(t, []string{"plan"}, list.Keys)

	res, err = s.CallTool(t.Context(), "note_delete", json.RawMessage(`{"key":"plan"}`))
	require.NoError(t, err)
	require.Empty(t, res.Error)

	res, err = s.CallTool(t.Context(), "note_get", json.RawMessage(`{"key":"plan"}`))
	require.NoError(t, err)
	assert.Contains(t, res.Error, "no note")
}

func TestNotesServer_DeleteMissingKey(t *testing.T) {
	s := NotesServer()

	res, err := s.CallTool(t.Context(), "note_delete", json.RawMessage(`{"key":"ghost"}`))
	require.NoError(t, err)
	assert.Contains(t, res.Error, "no note")
}
