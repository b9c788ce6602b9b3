// ABOUTME: Gateway wiring - routes, dependencies, and server configuration
// ABOUTME: Handlers receive everything through the Gateway struct, no package state

package gateway

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/magicloops/budchat/internal/conversation"
	"github.com/magicloops/budchat/internal/provider"
	"github.com/magicloops/budchat/internal/tools"
)

// Defaults are the per-request fallbacks applied when the chat request
// leaves a field empty.
type Defaults struct {
	Model           string
	SystemPrompt    string
	ReasoningEffort string
	Temperature     *float64
	MaxTokens       int
	MaxIterations   int
}

// Gateway holds the engine's wired dependencies and serves HTTP.
type Gateway struct {
	logger       *slog.Logger
	conversation *conversation.Service
	providers    *provider.Registry
	tools        *tools.Registry
	defaults     Defaults
}

// New creates a Gateway. Pass nil logger for default.
func New(svc *conversation.Service, providers *provider.Registry, registry *tools.Registry, defaults Defaults, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		logger:       logger.With("component", "gateway"),
		conversation: svc,
		providers:    providers,
		tools:        registry,
		defaults:     defaults,
	}
}

// Handler returns the route table.
func (g *Gateway) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/chat", g.handleChat)
	mux.HandleFunc("GET /api/conversations", g.handleListConversations)
	mux.HandleFunc("GET /api/conversations/{id}/events", g.handleConversationEvents)
	mux.HandleFunc("GET /health", g.handleHealth)
	return mux
}

func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	g.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (g *Gateway) handleListConversations(w http.ResponseWriter, r *http.Request) {
	convs, err := g.conversation.List(r.Context(), 100)
	if err != nil {
		g.logger.Error("listing conversations failed", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	type item struct {
		ID        string `json:"id"`
		Title     string `json:"title"`
		Model     string `json:"model"`
		UpdatedAt string `json:"updated_at"`
	}
	out := make([]item, 0, len(convs))
	for _, c := range convs {
		out = append(out, item{
			ID: c.ID, Title: c.Title, Model: c.Model,
			UpdatedAt: c.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		})
	}
	g.writeJSON(w, http.StatusOK, map[string]any{"conversations": out})
}

func (g *Gateway) handleConversationEvents(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	log, err := g.conversation.History(r.Context(), id)
	if err != nil {
		g.logger.Error("loading history failed", "conversation_id", id, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	g.writeJSON(w, http.StatusOK, map[string]any{"events": log})
}

func (g *Gateway) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		g.logger.Error("encoding response failed", "error", err)
	}
}

func (g *Gateway) sendJSONError(w http.ResponseWriter, status int, msg string) {
	g.writeJSON(w, status, map[string]string{"error": msg})
}
