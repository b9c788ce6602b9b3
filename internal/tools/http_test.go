// ABOUTME: Tests for the HTTP tool server client
// ABOUTME: Uses httptest servers implementing the /tools and /call contract

package tools

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func toolServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /tools", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"tools":[{"name":"echo","description":"Echo input","input_schema":{"type":"object"}}]}`))
	})
	mux.HandleFunc("POST /call", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Name      string          `json:"name"`
			Arguments json.RawMessage `json:"arguments"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if req.Name != "echo" {
			json.NewEncoder(w).Encode(map[string]string{"error": "unknown tool"})
			return
		}
		json.NewEncoder(w).Encode(map[string]json.RawMessage{"output": req.Arguments})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPServer_ListTools(t *testing.T) {
	srv := toolServer(t)
	s := NewHTTPServer("remote", srv.URL)

	specs, err := s.ListTools(t.Context())
	require.NoError(t, err)
	require.Len(t, specs, 1)
	assert.Equal(t, "echo", specs[0].Name)
	assert.JSONEq(t, `{"type":"object"}`, string(specs[0].InputSchema))
}

func TestHTTPServer_CallTool(t *testing.T) {
	srv := toolServer(t)
	s := NewHTTPServer("remote", srv.URL)

	res, err := s.CallTool(t.Context(), "echo", json.RawMessage(`{"say":"hi"}`))
	require.NoError(t, err)
	assert.Empty(t, res.Error)
	assert.JSONEq(t, `{"say":"hi"}`, string(res.Output))
}

func TestHTTPServer_ToolLevelError(t *testing.T) {
	srv := toolServer(t)
	s := NewHTTPServer("remote", srv.URL)

	res, err := s.CallTool(t.Context(), "missing", nil)
	require.NoError(t, err)
	assert.Equal(t, "unknown tool", res.Error)
}

func TestHTTPServer_TransportErrorIsError(t *testing.T) {
	s := NewHTTPServer("gone", "http://127.0.0.1:1")
	_, err := s.ListTools(t.Context())
	assert.Error(t, err)
}

func TestHTTPServer_RegistryIntegration(t *testing.T) {
	srv := toolServer(t)
	reg := NewRegistry(nil)
	require.NoError(t, reg.Register(t.Context(), NewHTTPServer("remote", srv.URL)))

	res := reg.CallTool(t.Context(), "echo", json.RawMessage(`{"n":1}`))
	assert.Empty(t, res.Error)
	assert.JSONEq(t, `{"n":1}`, string(res.Output))
}
