// ABOUTME: Orchestrator state machine - stream, execute tools, re-invoke, commit
// ABOUTME: Tool failures are payload and the loop continues; vendor failures terminate

package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/magicloops/budchat/internal/builder"
	"github.com/magicloops/budchat/internal/events"
	"github.com/magicloops/budchat/internal/provider"
	"github.com/magicloops/budchat/internal/tools"
	"github.com/magicloops/budchat/internal/wire"
)

// MaxIterations is the default ceiling on model invocations per user
// turn. The check happens before every invocation: iteration 10 never
// starts.
const MaxIterations = 10

// ErrToolLoopLimit reports that the turn hit the iteration ceiling with
// tool calls still pending. Distinct from vendor errors so callers can
// tell a runaway loop from a broken provider.
var ErrToolLoopLimit = errors.New("tool loop iteration limit reached")

// ToolCaller executes one tool call. Failures come back inside Result,
// never as a reason to abort the loop.
type ToolCaller interface {
	CallTool(ctx context.Context, name string, args json.RawMessage) tools.Result
}

// Emit delivers one wire frame to the client stream. Called from the
// orchestrator's goroutine only.
type Emit func(wire.Frame)

// Config wires an Orchestrator.
type Config struct {
	Adapter provider.Adapter
	Tools   ToolCaller
	Logger  *slog.Logger

	// MaxIterations overrides the default ceiling when positive.
	MaxIterations int

	// Commit persists one resolved assistant event and returns its
	// durable id. Nil means no persistence; the placeholder id stands.
	Commit func(ctx context.Context, e *events.Event) (string, error)
}

// Orchestrator drives one conversation turn at a time. Not safe for
// concurrent Run calls on the same instance.
type Orchestrator struct {
	adapter provider.Adapter
	tools   ToolCaller
	logger  *slog.Logger
	limit   int
	commit  func(ctx context.Context, e *events.Event) (string, error)
}

// New creates an Orchestrator from cfg.
func New(cfg Config) *Orchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	limit := cfg.MaxIterations
	if limit <= 0 {
		limit = MaxIterations
	}
	return &Orchestrator{
		adapter: cfg.Adapter,
		tools:   cfg.Tools,
		logger:  logger.With("component", "orchestrator"),
		limit:   limit,
		commit:  cfg.Commit,
	}
}

// Run executes the loop for one user turn. log is the conversation so
// far, ending with the new user event. Returns the assistant events
// produced this turn; on error the slice holds whatever resolved before
// the failure.
func (o *Orchestrator) Run(ctx context.Context, log []*events.Event, opts provider.Options, emit Emit) ([]*events.Event, error) {
	var produced []*events.Event

	for iteration := 0; ; iteration++ {
		if iteration >= o.limit {
			o.logger.Warn("iteration ceiling reached", "limit", o.limit)
			emit(wire.Frame{Type: wire.TypeError, Message: ErrToolLoopLimit.Error()})
			return produced, ErrToolLoopLimit
		}

		o.logger.Debug("invoking model", "iteration", iteration, "adapter", o.adapter.Name())
		full := make([]*events.Event, 0, len(log)+len(produced))
		full = append(full, log...)
		full = append(full, produced...)

		deltas, err := o.adapter.Stream(ctx, full, opts)
		if err != nil {
			emit(wire.Frame{Type: wire.TypeError, Message: err.Error()})
			return produced, fmt.Errorf("starting stream: %w", err)
		}

		b := builder.New(o.logger)
		for d := range deltas {
			b.Apply(d)
			if f, ok := wire.FromDelta(b.EventID(), d); ok {
				emit(f)
			}
		}

		ev := b.Finalize()
		if err := b.Err(); err != nil {
			// Partial output is kept but the turn is over; no retry.
			produced = append(produced, ev)
			emit(wire.Frame{Type: wire.TypeError, EventID: ev.ID, Message: err.Error()})
			return produced, fmt.Errorf("vendor stream: %w", err)
		}
		produced = append(produced, ev)

		pending := ev.PendingToolCalls()
		if len(pending) == 0 {
			o.finalizeEvent(ctx, ev, emit)
			emit(wire.Frame{Type: wire.TypeComplete})
			return produced, nil
		}

		o.executeTools(ctx, ev, pending, emit)
		o.finalizeEvent(ctx, ev, emit)
	}
}

// executeTools runs the event's pending calls concurrently and appends
// a ToolResult per call into the same event, in call order.
func (o *Orchestrator) executeTools(ctx context.Context, ev *events.Event, pending []events.ToolCall, emit Emit) {
	results := make([]tools.Result, len(pending))

	g, gctx := errgroup.WithContext(ctx)
	for i, call := range pending {
		g.Go(func() error {
			results[i] = o.tools.CallTool(gctx, call.Name, call.Args)
			return nil
		})
	}
	// Workers never return errors; failures live in results.
	_ = g.Wait()

	for i, call := range pending {
		res := results[i]
		tr := events.ToolResult{ID: call.ID, Error: res.Error}
		if res.Error == "" {
			tr.Output = boundOutput(res.Output)
		}
		ev.Segments = append(ev.Segments, tr)

		emit(wire.Frame{
			Type:    wire.TypeToolResult,
			EventID: ev.ID,
			ToolID:  call.ID,
			Output:  tr.Output,
			Message: tr.Error,
		})
		emit(wire.Frame{Type: wire.TypeToolComplete, EventID: ev.ID, ToolID: call.ID})
		o.logger.Info("tool call completed", "tool", call.Name, "id", call.ID, "failed", res.Error != "")
	}
}

// boundOutput truncates oversized tool output before it re-enters the
// model context. Truncation replaces the payload with a JSON string so
// the cut never produces invalid JSON.
func boundOutput(output json.RawMessage) json.RawMessage {
	bounded, truncated := tools.TruncateOutput(string(output))
	if !truncated {
		return output
	}
	quoted, err := json.Marshal(bounded)
	if err != nil {
		return json.RawMessage(`"[output truncated]"`)
	}
	return quoted
}

// finalizeEvent commits a resolved event and emits its message_final
// frame carrying the placeholder-to-durable id mapping.
func (o *Orchestrator) finalizeEvent(ctx context.Context, ev *events.Event, emit Emit) {
	placeholder := ev.ID
	if o.commit != nil {
		finalID, err := o.commit(ctx, ev)
		if err != nil {
			// The stream already happened; surface the failure but keep
			// the turn's output flowing to the client.
			o.logger.Error("committing event failed", "event", placeholder, "error", err)
			emit(wire.Frame{Type: wire.TypeError, EventID: placeholder, Message: err.Error()})
		} else if finalID != "" {
			ev.ID = finalID
		}
	}
	emit(wire.Frame{
		Type:    wire.TypeMessageFinal,
		EventID: placeholder,
		FinalID: ev.ID,
		Event:   ev,
	})
}
