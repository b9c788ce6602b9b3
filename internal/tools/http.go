// ABOUTME: HTTP-backed tool server client
// ABOUTME: Speaks a small JSON contract - GET /tools to list, POST /call to invoke

package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/magicloops/budchat/internal/provider"
)

// HTTPServer talks to an external tool server over HTTP. The server
// exposes GET /tools returning {"tools":[{name,description,input_schema}]}
// and POST /call taking {"name":...,"arguments":...} and returning
// {"output":...} or {"error":"..."}.
type HTTPServer struct {
	name    string
	baseURL string
	client  *http.Client
}

// NewHTTPServer creates a client for one tool server.
func NewHTTPServer(name, baseURL string) *HTTPServer {
	return &HTTPServer{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

func (s *HTTPServer) Name() string { return s.name }

func (s *HTTPServer) ListTools(ctx context.Context) ([]provider.ToolSpec, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/tools", nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("listing tools from %s: %w", s.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("listing tools from %s: status %d", s.name, resp.StatusCode)
	}

	var body struct {
		Tools []struct {
			Name        string          `json:"name"`
			Description string          `json:"description"`
			InputSchema json.RawMessage `json:"input_schema"`
		} `json:"tools"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding tool list: %w", err)
	}

	specs := make([]provider.ToolSpec, 0, len(body.Tools))
	for _, t := range body.Tools {
		specs = append(specs, provider.ToolSpec{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.InputSchema,
		})
	}
	return specs, nil
}

func (s *HTTPServer) CallTool(ctx context.Context, name string, args json.RawMessage) (Result, error) {
	payload, err := json.Marshal(map[string]json.RawMessage{
		"name":      json.RawMessage(fmt.Sprintf("%q", name)),
		"arguments": args,
	})
	if err != nil {
		return Result{}, fmt.Errorf("encoding call: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/call", bytes.NewReader(payload))
	if err != nil {
		return Result{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("calling %s on %s: %w", name, s.name, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("reading call response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("calling %s on %s: status %d", name, s.name, resp.StatusCode)
	}

	var body struct {
		Output json.RawMessage `json:"output"`
		Error  string          `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return Result{}, fmt.Errorf("decoding call response: %w", err)
	}
	return Result{Output: body.Output, Error: body.Error}, nil
}
