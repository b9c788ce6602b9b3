// ABOUTME: Anthropic messages stream consumption into RawDelta values
// ABOUTME: Content blocks keyed by index; thinking maps to a single reasoning part

package anthropic

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/magicloops/budchat/internal/events"
	"github.com/magicloops/budchat/internal/provider"
)

type streamEvent struct {
	Type         string `json:"type"`
	Index        int    `json:"index"`
	ContentBlock *struct {
		Type string `json:"type"`
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"content_block"`
	Delta *struct {
		Type        string `json:"type"`
		Text        string `json:"text"`
		PartialJSON string `json:"partial_json"`
		Thinking    string `json:"thinking"`
	} `json:"delta"`
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

	rc, err := provider.PostStream(ctx, a.cfg.BaseURL+"/messages", map[string]string{
		"x-api-key":         a.cfg.APIKey,
		"anthropic-version": apiVersion,
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

		// Block index -> canonical id/kind, assigned at content_block_start.
		type blockState struct {
			kind string
			id   string
		}
		blocks := make(map[int]blockState)
		toolSlot := 0

		err := provider.ReadSSE(rc, func(ev provider.SSEEvent) error {
			var se streamEvent
			if err := json.Unmarshal([]byte(ev.Data), &se); err != nil {
				return fmt.Errorf("decoding %s event: %w", ev.Name, err)
			}

			switch se.Type {
			case "content_block_start":
				if se.ContentBlock == nil {
					return nil
				}
				switch se.ContentBlock.Type {
				case "tool_use":
					blocks[se.Index] = blockState{kind: "tool_use", id: se.ContentBlock.ID}
					idx := toolSlot
					toolSlot++
					if !emit(provider.ToolCallStart{Index: idx, ID: se.ContentBlock.ID, Name: se.ContentBlock.Name}) {
						return context.Canceled
					}
				case "thinking":
					id := fmt.Sprintf("thinking_%d", se.Index)
					blocks[se.Index] = blockState{kind: "thinking", id: id}
					if !emit(provider.ReasoningStart{ID: id, OutputIndex: se.Index}) {
						return context.Canceled
					}
				case "text":
					blocks[se.Index] = blockState{kind: "text"}
				}

			case "content_block_delta":
				if se.Delta == nil {
					return nil
				}
				switch se.Delta.Type {
				case "text_delta":
					if se.Delta.Text != "" && !emit(provider.TextDelta{Text: se.Delta.Text}) {
						return context.Canceled
					}
				case "input_json_delta":
					b := blocks[se.Index]
					if !emit(provider.ToolCallArgsDelta{ID: b.id, Delta: se.Delta.PartialJSON}) {
						return context.Canceled
					}
				case "thinking_delta":
					b := blocks[se.Index]
					// Thinking streams as one part; summary_index 0.
					if !emit(provider.ReasoningSummaryDelta{ID: b.id, SummaryIndex: 0, Text: se.Delta.Thinking}) {
						return context.Canceled
					}
				}

			case "content_block_stop":
				b := blocks[se.Index]
				switch b.kind {
				case "tool_use":
					if !emit(provider.ToolCallDone{ID: b.id}) {
						return context.Canceled
					}
				case "thinking":
					if !emit(provider.ReasoningSummaryDone{ID: b.id, SummaryIndex: 0}) {
						return context.Canceled
					}
					if !emit(provider.ReasoningDone{ID: b.id}) {
						return context.Canceled
					}
				}

			case "message_stop":
				if !emit(provider.StreamDone{}) {
					return context.Canceled
				}

			case "error":
				msg := "vendor stream failed"
				if se.Error != nil && se.Error.Message != "" {
					msg = se.Error.Message
				}
				if !emit(provider.StreamError{Err: fmt.Errorf("%s", msg)}) {
					return context.Canceled
				}

			default:
				// message_start, message_delta, ping - nothing to surface.
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
