// ABOUTME: OpenAI responses stream consumption into RawDelta values
// ABOUTME: Named SSE events with vendor sequence numbers carried verbatim

package openairesponses

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/magicloops/budchat/internal/events"
	"github.com/magicloops/budchat/internal/provider"
)

// streamEvent covers the superset of fields used by the event types we
// interpret; unknown event names pass through unmapped.
type streamEvent struct {
	SequenceNumber int    `json:"sequence_number"`
	OutputIndex    int    `json:"output_index"`
	ItemID         string `json:"item_id"`
	SummaryIndex   int    `json:"summary_index"`
	Delta          string `json:"delta"`
	Text           string `json:"text"`
	Arguments      string `json:"arguments"`
	Item           *struct {
		ID      string `json:"id"`
		Type    string `json:"type"`
		Status  string `json:"status"`
		CallID  string `json:"call_id"`
		Name    string `json:"name"`
		Summary []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"summary"`
	} `json:"item"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Stream implements provider.Adapter.
func (a *Adapter) Stream(ctx context.Context, log []*events.Event, opts provider.Options) (<-chan provider.RawDelta, error) {
	body, err := a.MarshalRequest(log, opts)
	if err != nil {
		return nil, err
	}

	rc, err := provider.PostStream(ctx, a.cfg.BaseURL+"/responses", map[string]string{
		"Authorization": "Bearer " + a.cfg.APIKey,
	}, body)
	if err != nil {
		return nil, err
	}

	out := make(chan provider.RawDelta, 32)
	go func() {
		defer close(out)
		defer rc.Close()

		emit := func(d provider.RawDelta) bool {
			select {
			case out <- d:
				return true
			case <-ctx.Done():
				return false
			}
		}

		// Function-call argument deltas arrive keyed by item_id; the
		// canonical tool call id is the vendor call_id. Track the mapping
		// so the builder sees one consistent id per call.
		callIDs := make(map[string]string)
		// Tool-call slots in arrival order, for index-keyed reconciliation.
		callIndex := make(map[string]int)

		err := provider.ReadSSE(rc, func(ev provider.SSEEvent) error {
			var se streamEvent
			if err := json.Unmarshal([]byte(ev.Data), &se); err != nil {
				return fmt.Errorf("decoding %s event: %w", ev.Name, err)
			}

			callID := func(itemID string) string {
				if id, ok := callIDs[itemID]; ok {
					return id
				}
				return itemID
			}

			switch ev.Name {
			case "response.output_text.delta":
				if se.Delta != "" && !emit(provider.TextDelta{Text: se.Delta, Sequence: se.SequenceNumber}) {
					return context.Canceled
				}

			case "response.output_item.added":
				if se.Item == nil {
					return nil
				}
				switch se.Item.Type {
				case "function_call":
					callIDs[se.Item.ID] = se.Item.CallID
					idx := len(callIndex)
					callIndex[se.Item.ID] = idx
					if !emit(provider.ToolCallStart{
						Index:    idx,
						ID:       se.Item.CallID,
						Name:     se.Item.Name,
						Sequence: se.SequenceNumber,
					}) {
						return context.Canceled
					}
				case "reasoning":
					if !emit(provider.ReasoningStart{
						ID:          se.Item.ID,
						OutputIndex: se.OutputIndex,
						Effort:      opts.ReasoningEffort,
						Sequence:    se.SequenceNumber,
					}) {
						return context.Canceled
					}
				case "web_search_call":
					if !emit(provider.BuiltInToolStatus{
						ID: se.Item.ID, Kind: provider.BuiltInWebSearch,
						Status: "in_progress", Sequence: se.SequenceNumber,
					}) {
						return context.Canceled
					}
				case "code_interpreter_call":
					if !emit(provider.BuiltInToolStatus{
						ID: se.Item.ID, Kind: provider.BuiltInCodeInterpreter,
						Status: "in_progress", Sequence: se.SequenceNumber,
					}) {
						return context.Canceled
					}
				}

			case "response.function_call_arguments.delta":
				if !emit(provider.ToolCallArgsDelta{
					Index:    callIndex[se.ItemID],
					ID:       callID(se.ItemID),
					Delta:    se.Delta,
					Sequence: se.SequenceNumber,
				}) {
					return context.Canceled
				}

			case "response.function_call_arguments.done":
				if !emit(provider.ToolCallDone{
					Index:    callIndex[se.ItemID],
					ID:       callID(se.ItemID),
					Args:     se.Arguments,
					Sequence: se.SequenceNumber,
				}) {
					return context.Canceled
				}

			case "response.reasoning_summary_text.delta":
				if !emit(provider.ReasoningSummaryDelta{
					ID:           se.ItemID,
					SummaryIndex: se.SummaryIndex,
					Text:         se.Delta,
					Sequence:     se.SequenceNumber,
				}) {
					return context.Canceled
				}

			case "response.reasoning_summary_text.done":
				if !emit(provider.ReasoningSummaryDone{
					ID:           se.ItemID,
					SummaryIndex: se.SummaryIndex,
					Text:         se.Text,
					Sequence:     se.SequenceNumber,
				}) {
					return context.Canceled
				}

			case "response.output_item.done":
				if se.Item == nil {
					return nil
				}
				switch se.Item.Type {
				case "reasoning":
					if !emit(provider.ReasoningDone{ID: se.Item.ID, Sequence: se.SequenceNumber}) {
						return context.Canceled
					}
				case "web_search_call":
					if !emit(provider.BuiltInToolStatus{
						ID: se.Item.ID, Kind: provider.BuiltInWebSearch,
						Status: "completed", Sequence: se.SequenceNumber,
					}) {
						return context.Canceled
					}
				case "code_interpreter_call":
					if !emit(provider.BuiltInToolStatus{
						ID: se.Item.ID, Kind: provider.BuiltInCodeInterpreter,
						Status: "completed", Sequence: se.SequenceNumber,
					}) {
						return context.Canceled
					}
				}

			case "response.web_search_call.searching":
				if !emit(provider.BuiltInToolStatus{
					ID: se.ItemID, Kind: provider.BuiltInWebSearch,
					Status: "searching", Sequence: se.SequenceNumber,
				}) {
					return context.Canceled
				}

			case "response.code_interpreter_call.interpreting":
				if !emit(provider.BuiltInToolStatus{
					ID: se.ItemID, Kind: provider.BuiltInCodeInterpreter,
					Status: "interpreting", Sequence: se.SequenceNumber,
				}) {
					return context.Canceled
				}

			case "response.code_interpreter_call_code.delta":
				if !emit(provider.CodeDelta{ID: se.ItemID, Code: se.Delta, Sequence: se.SequenceNumber}) {
					return context.Canceled
				}

			case "response.completed":
				if !emit(provider.StreamDone{}) {
					return context.Canceled
				}

			case "response.failed", "error":
				msg := "vendor stream failed"
				if se.Error != nil && se.Error.Message != "" {
					msg = se.Error.Message
				}
				if !emit(provider.StreamError{Err: fmt.Errorf("%s", msg)}) {
					return context.Canceled
				}

			default:
				// Unknown event names are ignorable: the vendor adds
				// lifecycle events we have no use for.
				if strings.HasPrefix(ev.Name, "response.") {
					return nil
				}
			}
			return nil
		})
		if err != nil && ctx.Err() == nil {
			a.logger.Error("stream read failed", "error", err)
			emit(provider.StreamError{Err: err})
		}
	}()

	return out, nil
}
