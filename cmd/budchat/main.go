// ABOUTME: Entry point for the budchat streaming server
// ABOUTME: Wires config, store, providers, tools, and the HTTP gateway

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/magicloops/budchat/internal/builtins"
	"github.com/magicloops/budchat/internal/config"
	"github.com/magicloops/budchat/internal/conversation"
	"github.com/magicloops/budchat/internal/gateway"
	"github.com/magicloops/budchat/internal/provider"
	"github.com/magicloops/budchat/internal/provider/anthropic"
	"github.com/magicloops/budchat/internal/provider/openaichat"
	"github.com/magicloops/budchat/internal/provider/openairesponses"
	"github.com/magicloops/budchat/internal/store"
	"github.com/magicloops/budchat/internal/tools"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
 _               _      _           _
| |__  _   _  __| | ___| |__   __ _| |_
| '_ \| | | |/ _' |/ __| '_ \ / _' | __|
| |_) | |_| | (_| | (__| | | | (_| | |_
|_.__/ \__,_|\__,_|\___|_| |_|\__,_|\__|
`

// getConfigPath returns the path to the budchat config file.
// Priority: BUDCHAT_CONFIG env var > XDG_CONFIG_HOME/budchat/budchat.yaml
// > ~/.config/budchat/budchat.yaml
func getConfigPath() string {
	if envPath := os.Getenv("BUDCHAT_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "budchat.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "budchat", "budchat.yaml")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: budchat <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve   Start the streaming server")
		fmt.Println("  health  Check server health")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "health":
		err = runHealth(ctx)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)
	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)
	slog.SetDefault(logger)

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config:  %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:    %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("DB:      %s\n", cfg.Database.Path)
	fmt.Println()

	db, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer db.Close()

	providers := buildProviders(cfg, logger)

	registry := tools.NewRegistry(logger)
	registry.Register(ctx, builtins.BaseServer())
	registry.Register(ctx, builtins.NotesServer())
	for _, srv := range cfg.Tools.Servers {
		// Registration failures are logged inside the registry; a dead
		// tool server should not stop the whole engine from serving.
		if err := registry.Register(ctx, tools.NewHTTPServer(srv.Name, srv.URL)); err != nil {
			logger.Warn("tool server registration failed", "server", srv.Name, "error", err)
		}
	}

	broadcaster := conversation.NewEventBroadcaster(logger)
	defer broadcaster.Close()
	svc := conversation.New(db, broadcaster, logger)

	gw := gateway.New(svc, providers, registry, gateway.Defaults{
		Model:           cfg.Chat.DefaultModel,
		SystemPrompt:    cfg.Chat.SystemPrompt,
		ReasoningEffort: cfg.Chat.ReasoningEffort,
		Temperature:     cfg.Chat.Temperature,
		MaxTokens:       cfg.Chat.MaxTokens,
		MaxIterations:   cfg.Chat.MaxIterations,
	}, logger)

	server := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           gw.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", cfg.Server.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func buildProviders(cfg *config.Config, logger *slog.Logger) *provider.Registry {
	reg := &provider.Registry{}
	if cfg.Providers.OpenAI.APIKey != "" {
		reg.Chat = openaichat.New(openaichat.Config{
			BaseURL: cfg.Providers.OpenAI.BaseURL,
			APIKey:  cfg.Providers.OpenAI.APIKey,
		}, logger)
		reg.Responses = openairesponses.New(openairesponses.Config{
			BaseURL: cfg.Providers.OpenAI.BaseURL,
			APIKey:  cfg.Providers.OpenAI.APIKey,
		}, logger)
	}
	if cfg.Providers.Anthropic.APIKey != "" {
		reg.Anthropic = anthropic.New(anthropic.Config{
			BaseURL: cfg.Providers.Anthropic.BaseURL,
			APIKey:  cfg.Providers.Anthropic.APIKey,
		}, logger)
	}
	return reg
}

func runHealth(ctx context.Context) error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	url := fmt.Sprintf("http://%s/health", cfg.Server.HTTPAddr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	fmt.Println("healthy")
	return nil
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = &colorHandler{level: level, out: os.Stdout}
	}

	return slog.New(handler)
}

// colorHandler provides colorized log output with thread-safe writes.
// Attr values containing whitespace are quoted; group names prefix
// their attr keys dotted.
type colorHandler struct {
	mu     sync.Mutex
	out    io.Writer
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	var buf strings.Builder

	buf.WriteString(color.HiBlackString(r.Time.Format("15:04:05")))
	buf.WriteByte(' ')
	buf.WriteString(levelTag(r.Level))
	buf.WriteByte(' ')
	buf.WriteString(r.Message)

	for _, a := range h.attrs {
		h.writeAttr(&buf, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		h.writeAttr(&buf, a)
		return true
	})
	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.out, buf.String())
	return err
}

func (h *colorHandler) writeAttr(buf *strings.Builder, a slog.Attr) {
	key := a.Key
	if len(h.groups) > 0 {
		key = strings.Join(h.groups, ".") + "." + key
	}
	val := a.Value.String()
	if strings.ContainsAny(val, " \t") {
		val = strconv.Quote(val)
	}
	buf.WriteString(color.HiBlackString(" " + key + "="))
	if key == "error" {
		buf.WriteString(color.RedString(val))
		return
	}
	buf.WriteString(val)
}

func levelTag(l slog.Level) string {
	switch {
	case l >= slog.LevelError:
		return color.New(color.FgRed, color.Bold).Sprint("ERR")
	case l >= slog.LevelWarn:
		return color.YellowString("WRN")
	case l >= slog.LevelInfo:
		return color.CyanString("INF")
	default:
		return color.MagentaString("DBG")
	}
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &colorHandler{out: h.out, level: h.level, attrs: merged, groups: h.groups}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	groups := append(append([]string(nil), h.groups...), name)
	return &colorHandler{out: h.out, level: h.level, attrs: h.attrs, groups: groups}
}
