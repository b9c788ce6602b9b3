// ABOUTME: Frame-by-frame reconciliation into ephemeral overlay and committed log
// ABOUTME: Malformed lines drop with a log line; unknown frame types are skipped silently

package reconciler

import (
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/magicloops/budchat/internal/events"
	"github.com/magicloops/budchat/internal/wire"
)

// Reconciler consumes the frame stream for one conversation and
// maintains two layers: the overlay of in-flight assistant events and
// the committed log. Not safe for concurrent use; one goroutine reads
// one subscription.
type Reconciler struct {
	logger *slog.Logger

	conversationID string
	complete       bool
	lastError      string

	overlay map[string]*liveEvent
	order   []string // overlay insertion order, for stable rendering

	committed   []*events.Event
	committedAt map[string]int // durable id -> index in committed

	aliases *aliasTable
}

// liveEvent is one in-flight assistant event plus the accumulation
// state frames do not carry whole.
type liveEvent struct {
	ev       *events.Event
	textPos  int
	toolPos  map[string]int
	toolArgs map[string]*strings.Builder
	rsPos    map[string]int
	rsParts  map[string]map[int]*strings.Builder
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithClock overrides the alias table's time source for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) { r.aliases = newAliasTable(now) }
}

// New creates a reconciler for one conversation subscription. Pass nil
// logger for default.
func New(logger *slog.Logger, opts ...Option) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Reconciler{
		logger:      logger.With("component", "reconciler"),
		overlay:     make(map[string]*liveEvent),
		committedAt: make(map[string]int),
		aliases:     newAliasTable(nil),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// HandleLine feeds one raw SSE line. Lines that fail to parse are
// dropped and logged; they never corrupt reconciler state.
func (r *Reconciler) HandleLine(line string) {
	f, ok, err := wire.DecodeSSELine(line)
	if err != nil {
		r.logger.Warn("dropping malformed frame", "error", err)
		return
	}
	if !ok {
		return
	}
	r.Handle(f)
}

// Handle applies one decoded frame.
func (r *Reconciler) Handle(f wire.Frame) {
	switch f.Type {
	case wire.TypeConversationCreated:
		r.conversationID = f.ConversationID
	case wire.TypeComplete:
		r.complete = true
	case wire.TypeError:
		r.lastError = f.Message
	case wire.TypeMessageFinal:
		r.commit(f)
	default:
		r.applyToEvent(f)
	}
}

// commit performs the single durable transition for one event: the
// overlay entry disappears, the finalized event joins the log, and the
// placeholder id resolves to the durable id for the grace period.
func (r *Reconciler) commit(f wire.Frame) {
	if f.Event == nil {
		r.logger.Warn("message_final without event payload", "event_id", f.EventID)
		return
	}
	r.dropOverlay(f.EventID)

	durable := f.FinalID
	if durable == "" {
		durable = f.Event.ID
	}
	committed := f.Event.Clone()
	committed.ID = durable

	if idx, ok := r.committedAt[durable]; ok {
		// Re-delivery replaces in place rather than duplicating.
		r.committed[idx] = committed
	} else {
		r.committedAt[durable] = len(r.committed)
		r.committed = append(r.committed, committed)
	}
	r.aliases.Add(f.EventID, durable)
}

func (r *Reconciler) dropOverlay(id string) {
	if _, ok := r.overlay[id]; !ok {
		return
	}
	delete(r.overlay, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// applyToEvent routes a content frame to its overlay entry, or through
// the alias table to a committed event when the overlay entry is gone.
// Unresolvable ids drop silently: the mapping expired and the frame is
// stale.
func (r *Reconciler) applyToEvent(f wire.Frame) {
	if f.EventID == "" {
		return
	}
	if le, ok := r.overlay[f.EventID]; ok {
		r.applyLive(le, f)
		return
	}
	if durable, ok := r.aliases.Resolve(f.EventID); ok {
		if idx, ok := r.committedAt[durable]; ok {
			r.applyCommitted(r.committed[idx], f)
		}
		return
	}
	// New placeholder id: first frame of a new assistant event.
	if isOpeningFrame(f.Type) {
		le := &liveEvent{
			ev:       &events.Event{ID: f.EventID, Role: events.RoleAssistant, TS: time.Now().UTC()},
			textPos:  -1,
			toolPos:  make(map[string]int),
			toolArgs: make(map[string]*strings.Builder),
			rsPos:    make(map[string]int),
			rsParts:  make(map[string]map[int]*strings.Builder),
		}
		r.overlay[f.EventID] = le
		r.order = append(r.order, f.EventID)
		r.applyLive(le, f)
		return
	}
	r.logger.Debug("dropping frame for unknown event", "type", f.Type, "event_id", f.EventID)
}

// isOpeningFrame reports whether a frame type may legitimately be the
// first sighting of an event id. Completion-flavored frames for an
// unknown id are stale, not new.
func isOpeningFrame(t string) bool {
	switch t {
	case wire.TypeToken, wire.TypeToolStart, wire.TypeToolArgsDelta,
		wire.TypeReasoningStart, wire.TypeReasoningSummaryDelta,
		wire.TypeBuiltInToolStart, wire.TypeBuiltInToolStatus, wire.TypeBuiltInCodeDelta:
		return true
	}
	return false
}

func (r *Reconciler) applyLive(le *liveEvent, f wire.Frame) {
	switch f.Type {
	case wire.TypeToken:
		if le.textPos < 0 {
			le.textPos = len(le.ev.Segments)
			le.ev.Segments = append(le.ev.Segments, events.Text{})
		}
		seg := le.ev.Segments[le.textPos].(events.Text)
		seg.Text += f.Text
		le.ev.Segments[le.textPos] = seg

	case wire.TypeToolStart:
		if _, ok := le.toolPos[f.ToolID]; ok {
			return
		}
		le.toolPos[f.ToolID] = len(le.ev.Segments)
		le.toolArgs[f.ToolID] = &strings.Builder{}
		le.ev.Segments = append(le.ev.Segments, events.ToolCall{ID: f.ToolID, Name: f.ToolName})

	case wire.TypeToolArgsDelta:
		pos, ok := le.toolPos[f.ToolID]
		if !ok {
			return
		}
		buf := le.toolArgs[f.ToolID]
		buf.WriteString(f.ArgsDelta)
		tc := le.ev.Segments[pos].(events.ToolCall)
		tc.Args = json.RawMessage(buf.String())
		le.ev.Segments[pos] = tc

	case wire.TypeToolFinalized:
		pos, ok := le.toolPos[f.ToolID]
		if !ok {
			return
		}
		tc := le.ev.Segments[pos].(events.ToolCall)
		if len(f.Args) > 0 {
			tc.Args = f.Args
		}
		le.ev.Segments[pos] = tc

	case wire.TypeToolResult:
		le.ev.Segments = append(le.ev.Segments, events.ToolResult{
			ID: f.ToolID, Output: f.Output, Error: f.Message,
		})

	case wire.TypeToolComplete:
		// Rendering hint only; the result segment already landed.

	case wire.TypeReasoningStart:
		if _, ok := le.rsPos[f.ItemID]; ok {
			return
		}
		le.rsPos[f.ItemID] = len(le.ev.Segments)
		le.rsParts[f.ItemID] = make(map[int]*strings.Builder)
		le.ev.Segments = append(le.ev.Segments, events.Reasoning{
			ID: f.ItemID, SequenceNumber: f.Sequence, Streaming: true,
		})

	case wire.TypeReasoningSummaryDelta:
		pos, ok := le.rsPos[f.ItemID]
		if !ok {
			le.rsPos[f.ItemID] = len(le.ev.Segments)
			le.rsParts[f.ItemID] = make(map[int]*strings.Builder)
			le.ev.Segments = append(le.ev.Segments, events.Reasoning{ID: f.ItemID, Streaming: true})
			pos = le.rsPos[f.ItemID]
		}
		parts := le.rsParts[f.ItemID]
		buf, ok := parts[f.SummaryIndex]
		if !ok {
			buf = &strings.Builder{}
			parts[f.SummaryIndex] = buf
		}
		buf.WriteString(f.Text)
		rs := le.ev.Segments[pos].(events.Reasoning)
		rs.Parts = rebuildParts(parts, rs.Parts)
		le.ev.Segments[pos] = rs

	case wire.TypeReasoningSummaryDone:
		// Part boundaries matter at finalize; the overlay keeps streaming.

	case wire.TypeReasoningComplete:
		pos, ok := le.rsPos[f.ItemID]
		if !ok {
			return
		}
		rs := le.ev.Segments[pos].(events.Reasoning)
		rs.Streaming = false
		rs.StreamingPartIndex = nil
		if f.CombinedText != "" {
			rs.CombinedText = f.CombinedText
		} else {
			texts := make([]string, 0, len(rs.Parts))
			for _, p := range rs.Parts {
				texts = append(texts, p.Text)
			}
			rs.CombinedText = strings.Join(texts, "\n\n")
		}
		le.ev.Segments[pos] = rs

	case wire.TypeBuiltInToolStart, wire.TypeBuiltInToolStatus, wire.TypeBuiltInToolDone:
		pos, ok := le.toolPos[f.ToolID]
		if !ok {
			pos = len(le.ev.Segments)
			le.toolPos[f.ToolID] = pos
			if f.Kind == "code_interpreter" {
				le.ev.Segments = append(le.ev.Segments, events.CodeInterpreterCall{ID: f.ToolID})
			} else {
				le.ev.Segments = append(le.ev.Segments, events.WebSearchCall{ID: f.ToolID})
			}
		}
		switch seg := le.ev.Segments[pos].(type) {
		case events.WebSearchCall:
			seg.Status = f.Status
			le.ev.Segments[pos] = seg
		case events.CodeInterpreterCall:
			seg.Status = f.Status
			le.ev.Segments[pos] = seg
		}

	case wire.TypeBuiltInCodeDelta:
		pos, ok := le.toolPos[f.ToolID]
		if !ok {
			return
		}
		if seg, ok := le.ev.Segments[pos].(events.CodeInterpreterCall); ok {
			seg.Code += f.Code
			le.ev.Segments[pos] = seg
		}
	}
}

// applyCommitted handles the narrow set of frames that may legitimately
// arrive after commit, racing through the alias table.
func (r *Reconciler) applyCommitted(ev *events.Event, f wire.Frame) {
	switch f.Type {
	case wire.TypeToolResult:
		for _, seg := range ev.Segments {
			if tr, ok := seg.(events.ToolResult); ok && tr.ID == f.ToolID {
				return // already present in the committed event
			}
		}
		ev.Segments = append(ev.Segments, events.ToolResult{
			ID: f.ToolID, Output: f.Output, Error: f.Message,
		})
	default:
		r.logger.Debug("ignoring late frame for committed event", "type", f.Type, "event_id", ev.ID)
	}
}

func rebuildParts(bufs map[int]*strings.Builder, prev []events.ReasoningPart) []events.ReasoningPart {
	indices := make([]int, 0, len(bufs))
	for idx := range bufs {
		indices = append(indices, idx)
	}
	// Small n; insertion sort keeps this allocation-free.
	for i := 1; i < len(indices); i++ {
		for j := i; j > 0 && indices[j] < indices[j-1]; j-- {
			indices[j], indices[j-1] = indices[j-1], indices[j]
		}
	}
	out := prev[:0]
	for _, idx := range indices {
		out = append(out, events.ReasoningPart{SummaryIndex: idx, Text: bufs[idx].String()})
	}
	return out
}

// ConversationID returns the id announced by conversationCreated, empty
// until then.
func (r *Reconciler) ConversationID() string { return r.conversationID }

// Complete reports whether the turn's complete frame arrived.
func (r *Reconciler) Complete() bool { return r.complete }

// LastError returns the most recent error frame's message.
func (r *Reconciler) LastError() string { return r.lastError }

// Overlay returns snapshots of the in-flight events in arrival order.
func (r *Reconciler) Overlay() []*events.Event {
	out := make([]*events.Event, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.overlay[id].ev.Clone())
	}
	return out
}

// Events returns the committed log in commit order.
func (r *Reconciler) Events() []*events.Event {
	out := make([]*events.Event, len(r.committed))
	copy(out, r.committed)
	return out
}
