// ABOUTME: OpenAI chat-completions stream consumption into RawDelta values
// ABOUTME: data-only SSE frames; tool calls keyed by index, closed on [DONE]

package openaichat

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/magicloops/budchat/internal/events"
	"github.com/magicloops/budchat/internal/provider"
)

type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content   string `json:"content"`
			ToolCalls []struct {
				Index    int    `json:"index"`
				ID       string `json:"id"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
}

// Stream implements provider.Adapter.
func (a *Adapter) Stream(ctx context.Context, log []*events.Event, opts provider.Options) (<-chan provider.RawDelta, error) {
	body, err := a.MarshalRequest(log, opts)
	if err != nil {
		return nil, err
	}

	rc, err := provider.PostStream(ctx, a.cfg.BaseURL+"/chat/completions", map[string]string{
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

		started := make(map[int]bool)
		err := provider.ReadSSE(rc, func(ev provider.SSEEvent) error {
			if ev.Data == "[DONE]" {
				emit(provider.StreamDone{})
				return nil
			}
			var chunk streamChunk
			if err := json.Unmarshal([]byte(ev.Data), &chunk); err != nil {
				return fmt.Errorf("decoding chunk: %w", err)
			}
			if len(chunk.Choices) == 0 {
				return nil
			}
			delta := chunk.Choices[0].Delta
			if delta.Content != "" {
				if !emit(provider.TextDelta{Text: delta.Content}) {
					return context.Canceled
				}
			}
			for _, tc := range delta.ToolCalls {
				// A chunk with an id or name opens the call; argument
				// fragments ride on the same index afterwards.
				if (tc.ID != "" || tc.Function.Name != "") && !started[tc.Index] {
					started[tc.Index] = true
					if !emit(provider.ToolCallStart{Index: tc.Index, ID: tc.ID, Name: tc.Function.Name}) {
						return context.Canceled
					}
				}
				if tc.Function.Arguments != "" {
					if !emit(provider.ToolCallArgsDelta{Index: tc.Index, ID: tc.ID, Delta: tc.Function.Arguments}) {
						return context.Canceled
					}
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
