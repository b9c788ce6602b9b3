// ABOUTME: Stream reconciliation state machine for one assistant turn
// ABOUTME: Text, tool calls, reasoning parts, and built-in calls tracked concurrently

package builder

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/magicloops/budchat/internal/events"
	"github.com/magicloops/budchat/internal/provider"
)

// Builder reconciles one vendor stream into one assistant Event. Not safe
// for concurrent use: one request pipeline owns one Builder.
type Builder struct {
	logger *slog.Logger
	event  *events.Event

	// Position of the open text segment in event.Segments, -1 when absent.
	textPos int

	// Tool calls by key (vendor call id, or slot index when the vendor
	// streams arguments by index only).
	tools map[string]*toolState

	// Reasoning segments by vendor item id.
	reasoning map[string]*reasoningState

	// Built-in tool calls by vendor item id.
	builtins map[string]int // position in event.Segments

	streamErr error
	finalized bool
}

type toolState struct {
	pos  int // position in event.Segments
	id   string
	name string
	args strings.Builder
	done bool
}

type reasoningState struct {
	pos      int // position in event.Segments
	parts    map[int]*partState
	combined string // vendor-supplied combined text, wins over joined parts
	done     bool
}

type partState struct {
	text     strings.Builder
	sequence int
	complete bool
	created  time.Time
}

// New creates a Builder owning a fresh placeholder assistant Event.
// Pass nil logger for default.
func New(logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		logger:    logger.With("component", "builder"),
		event:     events.New(events.RoleAssistant),
		textPos:   -1,
		tools:     make(map[string]*toolState),
		reasoning: make(map[string]*reasoningState),
		builtins:  make(map[string]int),
	}
}

// EventID returns the placeholder id assigned when the turn began. The
// frontend addresses overlay state by this id.
func (b *Builder) EventID() string { return b.event.ID }

// Err returns the stream error recorded by a StreamError delta, if any.
func (b *Builder) Err() error { return b.streamErr }

// Apply feeds one raw delta into the state machine. Deltas arriving after
// Finalize are dropped: the Event is frozen.
func (b *Builder) Apply(d provider.RawDelta) {
	if b.finalized {
		b.logger.Warn("delta after finalize dropped")
		return
	}

	switch d := d.(type) {
	case provider.TextDelta:
		b.appendText(d.Text)
	case provider.ToolCallStart:
		b.startTool(d)
	case provider.ToolCallArgsDelta:
		t := b.toolFor(d.ID, d.Index)
		if !t.done {
			t.args.WriteString(d.Delta)
			b.syncTool(t)
		}
	case provider.ToolCallDone:
		t := b.toolFor(d.ID, d.Index)
		if d.Args != "" {
			t.args.Reset()
			t.args.WriteString(d.Args)
		}
		t.done = true
		b.syncTool(t)
	case provider.ReasoningStart:
		b.reasoningFor(d.ID, func(seg *events.Reasoning) {
			seg.OutputIndex = d.OutputIndex
			seg.SequenceNumber = d.Sequence
			seg.EffortLevel = d.Effort
		})
	case provider.ReasoningSummaryDelta:
		b.applySummaryDelta(d)
	case provider.ReasoningSummaryDone:
		b.applySummaryDone(d)
	case provider.ReasoningDone:
		r := b.reasoningState(d.ID)
		if d.CombinedText != "" {
			r.combined = d.CombinedText
		}
		r.done = true
		b.syncReasoning(d.ID, r)
	case provider.BuiltInToolStatus:
		b.applyBuiltInStatus(d)
	case provider.CodeDelta:
		b.applyCodeDelta(d)
	case provider.StreamDone:
		// End of vendor stream; the caller decides when to Finalize.
	case provider.StreamError:
		b.streamErr = d.Err
	}
}

// Finalize freezes and returns the Event. Open sub-units close, reasoning
// parts sort by summary_index, streaming-only fields clear. Idempotent:
// repeated calls return the identical Event.
func (b *Builder) Finalize() *events.Event {
	if b.finalized {
		return b.event
	}
	b.finalized = true

	for _, t := range b.tools {
		if !t.done {
			t.done = true
			b.syncTool(t)
		}
	}
	for id, r := range b.reasoning {
		for _, p := range r.parts {
			p.complete = true
		}
		r.done = true
		b.syncReasoning(id, r)
	}
	return b.event
}

// Event returns a snapshot of the in-flight Event for overlay rendering.
// Before Finalize the snapshot is a copy; callers never share mutable
// state with the Builder.
func (b *Builder) Event() *events.Event {
	if b.finalized {
		return b.event
	}
	return b.event.Clone()
}

func (b *Builder) appendText(text string) {
	if text == "" {
		return
	}
	if b.textPos < 0 {
		b.textPos = len(b.event.Segments)
		b.event.Segments = append(b.event.Segments, events.Text{})
	}
	seg := b.event.Segments[b.textPos].(events.Text)
	// Fragments append verbatim in arrival order; no buffering.
	seg.Text += text
	b.event.Segments[b.textPos] = seg
}

// toolKey picks the reconciliation key for a tool call. Vendors that
// stream arguments without ids are keyed by slot index instead.
func toolKey(id string, index int) string {
	if id != "" {
		return id
	}
	return fmt.Sprintf("slot:%d", index)
}

func (b *Builder) startTool(d provider.ToolCallStart) {
	key := toolKey(d.ID, d.Index)
	if _, ok := b.tools[key]; ok {
		return
	}
	t := &toolState{
		pos:  len(b.event.Segments),
		id:   d.ID,
		name: d.Name,
	}
	if t.id == "" {
		t.id = key
	}
	b.tools[key] = t
	// Index-keyed deltas must find id-keyed calls and vice versa.
	if d.ID != "" {
		b.tools[fmt.Sprintf("slot:%d", d.Index)] = t
	}
	b.event.Segments = append(b.event.Segments, events.ToolCall{ID: t.id, Name: t.name})
}

// toolFor finds the call a delta belongs to, lazily creating it when the
// vendor never announced the start.
func (b *Builder) toolFor(id string, index int) *toolState {
	if t, ok := b.tools[toolKey(id, index)]; ok {
		return t
	}
	if t, ok := b.tools[fmt.Sprintf("slot:%d", index)]; ok {
		return t
	}
	b.logger.Debug("tool delta for unseen call, creating", "id", id, "index", index)
	b.startTool(provider.ToolCallStart{Index: index, ID: id})
	return b.tools[toolKey(id, index)]
}

func (b *Builder) syncTool(t *toolState) {
	args := t.args.String()
	var raw json.RawMessage
	if args != "" {
		raw = json.RawMessage(args)
	} else if t.done {
		raw = json.RawMessage(`{}`)
	}
	b.event.Segments[t.pos] = events.ToolCall{ID: t.id, Name: t.name, Args: raw}
}

func (b *Builder) reasoningState(id string) *reasoningState {
	if r, ok := b.reasoning[id]; ok {
		return r
	}
	r := &reasoningState{
		pos:   len(b.event.Segments),
		parts: make(map[int]*partState),
	}
	b.reasoning[id] = r
	b.event.Segments = append(b.event.Segments, events.Reasoning{ID: id, Streaming: true})
	return r
}

func (b *Builder) reasoningFor(id string, mutate func(*events.Reasoning)) {
	r := b.reasoningState(id)
	seg := b.event.Segments[r.pos].(events.Reasoning)
	mutate(&seg)
	b.event.Segments[r.pos] = seg
}

func (b *Builder) applySummaryDelta(d provider.ReasoningSummaryDelta) {
	r := b.reasoningState(d.ID)
	p, ok := r.parts[d.SummaryIndex]
	if !ok {
		// Unseen summary_index: create the part rather than raise.
		p = &partState{created: time.Now().UTC()}
		r.parts[d.SummaryIndex] = p
	}
	p.text.WriteString(d.Text)
	if d.Sequence != 0 {
		p.sequence = d.Sequence
	}
	b.syncReasoning(d.ID, r)
}

func (b *Builder) applySummaryDone(d provider.ReasoningSummaryDone) {
	r := b.reasoningState(d.ID)
	p, ok := r.parts[d.SummaryIndex]
	if !ok {
		p = &partState{created: time.Now().UTC()}
		r.parts[d.SummaryIndex] = p
	}
	if d.Text != "" {
		p.text.Reset()
		p.text.WriteString(d.Text)
	}
	if d.Sequence != 0 {
		p.sequence = d.Sequence
	}
	p.complete = true
	b.syncReasoning(d.ID, r)
}

// syncReasoning rebuilds the reasoning segment from its part states.
// Parts are always materialized sorted by summary_index, so two observers
// of the same delta sequence produce identical segments.
func (b *Builder) syncReasoning(id string, r *reasoningState) {
	seg := b.event.Segments[r.pos].(events.Reasoning)

	indices := make([]int, 0, len(r.parts))
	for idx := range r.parts {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	seg.Parts = seg.Parts[:0]
	var joined []string
	var openIdx *int
	for _, idx := range indices {
		p := r.parts[idx]
		seg.Parts = append(seg.Parts, events.ReasoningPart{
			SummaryIndex:   idx,
			Text:           p.text.String(),
			SequenceNumber: p.sequence,
			IsComplete:     p.complete,
			CreatedAt:      p.created,
		})
		joined = append(joined, p.text.String())
		if !p.complete && openIdx == nil {
			i := idx
			openIdx = &i
		}
	}

	if r.done {
		if r.combined != "" {
			seg.CombinedText = r.combined
		} else {
			seg.CombinedText = strings.Join(joined, "\n\n")
		}
		seg.Streaming = false
		seg.StreamingPartIndex = nil
	} else {
		seg.Streaming = true
		seg.StreamingPartIndex = openIdx
	}
	b.event.Segments[r.pos] = seg
}

func (b *Builder) applyBuiltInStatus(d provider.BuiltInToolStatus) {
	pos, ok := b.builtins[d.ID]
	if !ok {
		pos = len(b.event.Segments)
		b.builtins[d.ID] = pos
		switch d.Kind {
		case provider.BuiltInCodeInterpreter:
			b.event.Segments = append(b.event.Segments, events.CodeInterpreterCall{ID: d.ID})
		default:
			b.event.Segments = append(b.event.Segments, events.WebSearchCall{ID: d.ID})
		}
	}
	switch seg := b.event.Segments[pos].(type) {
	case events.WebSearchCall:
		seg.Status = d.Status
		b.event.Segments[pos] = seg
	case events.CodeInterpreterCall:
		seg.Status = d.Status
		b.event.Segments[pos] = seg
	}
}

func (b *Builder) applyCodeDelta(d provider.CodeDelta) {
	pos, ok := b.builtins[d.ID]
	if !ok {
		// Code delta before any status event: create the call.
		b.applyBuiltInStatus(provider.BuiltInToolStatus{
			ID: d.ID, Kind: provider.BuiltInCodeInterpreter, Status: "in_progress",
		})
		pos = b.builtins[d.ID]
	}
	if seg, ok := b.event.Segments[pos].(events.CodeInterpreterCall); ok {
		seg.Code += d.Code
		b.event.Segments[pos] = seg
	}
}
