// ABOUTME: Notes pack provides key-value scratch storage the model can write to mid-conversation.
// ABOUTME: In-memory only; notes live as long as the process.

package builtins

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/magicloops/budchat/internal/provider"
	"github.com/magicloops/budchat/internal/tools"
)

// NotesServer creates the notes tool server with note_set, note_get,
// note_list, and note_delete.
func NotesServer() *tools.StaticServer {
	n := &notesHandlers{notes: make(map[string]string)}
	return tools.NewStaticServer("builtin:notes").
		Add(provider.ToolSpec{
			Name:        "note_set",
			Description: "Store a note under a key, replacing any previous value",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"key":{"type":"string"},"value":{"type":"string"}},"required":["key","value"]}`),
		}, n.Set).
		Add(provider.ToolSpec{
			Name:        "note_get",
			Description: "Retrieve a note by key",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"key":{"type":"string"}},"required":["key"]}`),
		}, n.Get).
		Add(provider.ToolSpec{
			Name:        "note_list",
			Description: "List all note keys",
			InputSchema: json.RawMessage(`{"type":"object","properties":{}}`),
		}, n.List).
		Add(provider.ToolSpec{
			Name:        "note_delete",
			Description: "Delete a note by key",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"key":{"type":"string"}},"required":["key"]}`),
		}, n.Delete)
}

type notesHandlers struct {
	mu    sync.Mutex
	notes map[string]string
}

type noteKey struct {
	Key string `json:"key"`
}

func (n *notesHandlers) Set(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
	var in struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	if in.Key == "" {
		return nil, fmt.Errorf("key is required")
	}

	n.mu.Lock()
	n.notes[in.Key] = in.Value
	n.mu.Unlock()

	return json.Marshal(map[string]string{"status": "stored", "key": in.Key})
}

func (n *notesHandlers) Get(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
	var in noteKey
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}

	n.mu.Lock()
	value, ok := n.notes[in.Key]
	n.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("no note with key %q", in.Key)
	}

	return json.Marshal(map[string]string{"key": in.Key, "value": value})
}

func (n *notesHandlers) List(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
	n.mu.Lock()
	keys := make([]string, 0, len(n.notes))
	for k := range n.notes {
		keys = append(keys, k)
	}
	n.mu.Unlock()
	sort.Strings(keys)

	return json.Marshal(map[string]any{"keys": keys})
}

func (n *notesHandlers) Delete(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
	var in noteKey
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}

	n.mu.Lock()
	_, ok := n.notes[in.Key]
	delete(n.notes, in.Key)
	n.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("no note with key %q", in.Key)
	}

	return json.Marshal(map[string]string{"status": "deleted", "key": in.Key})
}
