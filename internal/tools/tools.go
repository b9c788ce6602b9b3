// ABOUTME: Server interface, aggregating Registry, and a static in-memory server
// ABOUTME: Tool errors are data (Result.Error), never Go errors, so the loop continues

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/magicloops/budchat/internal/provider"
)

// Result is the outcome of one tool invocation. Exactly one of Output
// and Error is meaningful: tool failures are payload, not transport.
type Result struct {
	Output json.RawMessage
	Error  string
}

// Server exposes a set of tools. Implementations include MCP-backed
// servers and in-process static servers.
type Server interface {
	// Name identifies the server for routing and logging.
	Name() string

	// ListTools returns the tools this server currently offers.
	ListTools(ctx context.Context) ([]provider.ToolSpec, error)

	// CallTool invokes a tool by name. A tool-level failure comes back
	// as Result.Error with a nil Go error; the returned error is
	// reserved for transport failures (server gone, context canceled).
	CallTool(ctx context.Context, name string, args json.RawMessage) (Result, error)
}

// Registry aggregates servers and routes calls to whichever server owns
// the requested tool. Safe for concurrent use.
type Registry struct {
	logger *slog.Logger

	mu      sync.RWMutex
	servers []Server
	// owner maps tool name to the server that listed it. Rebuilt on
	// registration; first registration wins on name collision.
	owner map[string]Server
}

// NewRegistry creates an empty registry. Pass nil logger for default.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		logger: logger.With("component", "tools"),
		owner:  make(map[string]Server),
	}
}

// Register adds a server and indexes its tools. Listing failures are
// logged and the server is kept; its tools become routable once a later
// Register or Refresh succeeds.
func (r *Registry) Register(ctx context.Context, s Server) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.servers = append(r.servers, s)
	specs, err := s.ListTools(ctx)
	if err != nil {
		r.logger.Warn("listing tools failed at registration", "server", s.Name(), "error", err)
		return err
	}
	for _, spec := range specs {
		if existing, ok := r.owner[spec.Name]; ok {
			r.logger.Warn("tool name collision, keeping first",
				"tool", spec.Name, "kept", existing.Name(), "ignored", s.Name())
			continue
		}
		r.owner[spec.Name] = s
	}
	r.logger.Info("server registered", "server", s.Name(), "tools", len(specs))
	return nil
}

// ListTools returns the union of all registered servers' tools, in
// registration order.
func (r *Registry) ListTools(ctx context.Context) ([]provider.ToolSpec, error) {
	r.mu.RLock()
	servers := make([]Server, len(r.servers))
	copy(servers, r.servers)
	r.mu.RUnlock()

	var all []provider.ToolSpec
	for _, s := range servers {
		specs, err := s.ListTools(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing tools from %s: %w", s.Name(), err)
		}
		all = append(all, specs...)
	}
	return all, nil
}

// CallTool routes a call to the owning server. An unknown tool name is
// a tool-level error: the model asked for something that does not
// exist, and should be told so rather than crash the turn.
func (r *Registry) CallTool(ctx context.Context, name string, args json.RawMessage) Result {
	r.mu.RLock()
	s, ok := r.owner[name]
	r.mu.RUnlock()
	if !ok {
		return Result{Error: fmt.Sprintf("unknown tool: %s", name)}
	}

	res, err := s.CallTool(ctx, name, args)
	if err != nil {
		r.logger.Warn("tool call transport failure", "server", s.Name(), "tool", name, "error", err)
		return Result{Error: err.Error()}
	}
	return res
}

// StaticServer serves a fixed set of tools from in-process handlers.
// Used for builtin tools and as a test double.
type StaticServer struct {
	name     string
	specs    []provider.ToolSpec
	handlers map[string]Handler
}

// Handler executes one tool call.
type Handler func(ctx context.Context, args json.RawMessage) (json.RawMessage, error)

// NewStaticServer creates a server with no tools; add them with Add.
func NewStaticServer(name string) *StaticServer {
	return &StaticServer{name: name, handlers: make(map[string]Handler)}
}

// Add registers one tool. InputSchema should be a JSON Schema object.
func (s *StaticServer) Add(spec provider.ToolSpec, h Handler) *StaticServer {
	s.specs = append(s.specs, spec)
	s.handlers[spec.Name] = h
	return s
}

func (s *StaticServer) Name() string { return s.name }

func (s *StaticServer) ListTools(ctx context.Context) ([]provider.ToolSpec, error) {
	specs := make([]provider.ToolSpec, len(s.specs))
	copy(specs, s.specs)
	return specs, nil
}

func (s *StaticServer) CallTool(ctx context.Context, name string, args json.RawMessage) (Result, error) {
	h, ok := s.handlers[name]
	if !ok {
		return Result{Error: fmt.Sprintf("unknown tool: %s", name)}, nil
	}
	out, err := h(ctx, args)
	if err != nil {
		return Result{Error: err.Error()}, nil
	}
	return Result{Output: out}, nil
}
