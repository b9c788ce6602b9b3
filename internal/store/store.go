// ABOUTME: Store interface and record types
// ABOUTME: Implementations persist finalized events; in-flight state never touches the store

package store

import (
	"context"
	"errors"
	"time"

	"github.com/magicloops/budchat/internal/events"
)

// ErrNotFound is returned when a conversation does not exist.
var ErrNotFound = errors.New("not found")

// Conversation is one persisted conversation.
type Conversation struct {
	ID        string
	Title     string
	Model     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// StoredEvent is one persisted event with its store-assigned order key.
type StoredEvent struct {
	OrderKey int64
	Event    *events.Event
}

// Store persists conversations and their finalized events.
type Store interface {
	// CreateConversation persists a new conversation record.
	CreateConversation(ctx context.Context, c *Conversation) error

	// GetConversation loads one conversation, ErrNotFound when absent.
	GetConversation(ctx context.Context, id string) (*Conversation, error)

	// ListConversations returns conversations ordered by last update,
	// newest first, up to limit (0 means no limit).
	ListConversations(ctx context.Context, limit int) ([]*Conversation, error)

	// SaveEvents appends finalized events to a conversation in one
	// transaction, assigning monotonically increasing order keys.
	SaveEvents(ctx context.Context, conversationID string, evs []*events.Event) error

	// GetEvents returns a conversation's events in order-key order, up
	// to limit (0 means no limit).
	GetEvents(ctx context.Context, conversationID string, limit int) ([]StoredEvent, error)

	// Close releases the underlying database.
	Close() error
}
