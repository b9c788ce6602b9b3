// ABOUTME: POST /api/chat handler - runs the tool loop and streams wire frames as SSE
// ABOUTME: conversationCreated precedes everything when the request opened a new conversation

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/magicloops/budchat/internal/events"
	"github.com/magicloops/budchat/internal/orchestrator"
	"github.com/magicloops/budchat/internal/provider"
	"github.com/magicloops/budchat/internal/wire"
)

// ChatRequest is the JSON body for POST /api/chat.
type ChatRequest struct {
	ConversationID  string `json:"conversation_id,omitempty"`
	Model           string `json:"model,omitempty"`
	Content         string `json:"content"`
	ReasoningEffort string `json:"reasoning_effort,omitempty"`
	WebSearch       bool   `json:"web_search,omitempty"`
	CodeInterpreter bool   `json:"code_interpreter,omitempty"`
}

func parseChatRequest(body io.Reader) (*ChatRequest, error) {
	var req ChatRequest
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		return nil, fmt.Errorf("invalid JSON body: %w", err)
	}
	if req.Content == "" {
		return nil, fmt.Errorf("content is required")
	}
	return &req, nil
}

func (g *Gateway) handleChat(w http.ResponseWriter, r *http.Request) {
	req, err := parseChatRequest(r.Body)
	if err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	model := req.Model
	if model == "" {
		model = g.defaults.Model
	}
	adapter, err := g.providers.ForModel(model)
	if err != nil {
		if errors.Is(err, provider.ErrNoAdapter) {
			g.sendJSONError(w, http.StatusBadRequest, "unsupported model: "+model)
			return
		}
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	// Fail fast before any persistence happens.
	flusher, ok := w.(http.Flusher)
	if !ok {
		g.logger.Error("streaming not supported")
		g.sendJSONError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	turn, err := g.conversation.Begin(r.Context(), req.ConversationID, model, req.Content)
	if err != nil {
		g.logger.Error("beginning turn failed", "error", err)
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	sse := &sseWriter{w: w, flusher: flusher, logger: g.logger}
	if turn.Created {
		sse.emit(wire.Frame{Type: wire.TypeConversationCreated, ConversationID: turn.ConversationID})
	}

	specs, err := g.tools.ListTools(r.Context())
	if err != nil {
		g.logger.Error("listing tools failed", "error", err)
		sse.emit(wire.Frame{Type: wire.TypeError, Message: "tool discovery failed"})
		return
	}

	opts := provider.Options{
		Model:           model,
		SystemPrompt:    g.defaults.SystemPrompt,
		Temperature:     g.defaults.Temperature,
		MaxTokens:       g.defaults.MaxTokens,
		ReasoningEffort: req.ReasoningEffort,
		Tools:           specs,
		WebSearch:       req.WebSearch,
		CodeInterpreter: req.CodeInterpreter,
	}
	if opts.ReasoningEffort == "" {
		opts.ReasoningEffort = g.defaults.ReasoningEffort
	}

	o := orchestrator.New(orchestrator.Config{
		Adapter:       adapter,
		Tools:         g.tools,
		Logger:        g.logger,
		MaxIterations: g.defaults.MaxIterations,
		Commit: func(ctx context.Context, ev *events.Event) (string, error) {
			return g.conversation.CommitAssistant(ctx, turn.ConversationID, ev, "")
		},
	})

	if _, err := o.Run(r.Context(), turn.Log, opts, sse.emit); err != nil {
		// The error frame already went out; nothing more to write.
		g.logger.Warn("turn ended with error", "conversation_id", turn.ConversationID, "error", err)
	}
}

// sseWriter serializes frame writes to one response stream.
type sseWriter struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
	logger  *slog.Logger
}

func (s *sseWriter) emit(f wire.Frame) {
	data, err := f.EncodeSSE()
	if err != nil {
		s.logger.Error("encoding frame failed", "type", f.Type, "error", err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.w.Write(data); err != nil {
		s.logger.Error("writing frame failed", "error", err)
		return
	}
	s.flusher.Flush()
}
