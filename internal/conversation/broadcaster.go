// ABOUTME: In-memory fan-out broadcaster for committed conversation events
// ABOUTME: Non-blocking publish; slow subscribers drop events rather than stall commits

package conversation

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/magicloops/budchat/internal/events"
)

// subscriberBufferSize is the channel buffer for each subscriber.
const subscriberBufferSize = 64

// EventBroadcaster provides in-memory pub/sub for committed events.
// Subscribers register for a conversation id and receive events as they
// are committed, enabling cross-client awareness without polling.
type EventBroadcaster struct {
	mu          sync.RWMutex
	subscribers map[string]map[string]chan *events.Event // conversationID -> subID -> ch
	logger      *slog.Logger
}

// NewEventBroadcaster creates a broadcaster. Pass nil logger for default.
func NewEventBroadcaster(logger *slog.Logger) *EventBroadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventBroadcaster{
		subscribers: make(map[string]map[string]chan *events.Event),
		logger:      logger.With("component", "broadcaster"),
	}
}

// Subscribe registers a subscriber for one conversation's events.
// Returns the receive channel and a subscription id for Unsubscribe.
// The subscription is cleaned up automatically when ctx is cancelled.
func (b *EventBroadcaster) Subscribe(ctx context.Context, conversationID string) (<-chan *events.Event, string) {
	subID := uuid.New().String()
	ch := make(chan *events.Event, subscriberBufferSize)

	b.mu.Lock()
	if _, ok := b.subscribers[conversationID]; !ok {
		b.subscribers[conversationID] = make(map[string]chan *events.Event)
	}
	b.subscribers[conversationID][subID] = ch
	b.mu.Unlock()

	b.logger.Debug("subscriber added", "conversation_id", conversationID, "sub_id", subID)

	go func() {
		<-ctx.Done()
		b.Unsubscribe(conversationID, subID)
	}()

	return ch, subID
}

// Publish sends an event to all subscribers of the conversation. If
// excludeSubID is non-empty that subscriber is skipped (the originating
// client already has the event). Non-blocking: full channels drop.
func (b *EventBroadcaster) Publish(conversationID string, event *events.Event, excludeSubID string) {
	b.mu.RLock()
	subs, ok := b.subscribers[conversationID]
	if !ok || len(subs) == 0 {
		b.mu.RUnlock()
		return
	}

	// Copy channels under read lock to avoid holding it during sends
	targets := make([]chan *events.Event, 0, len(subs))
	for id, ch := range subs {
		if excludeSubID != "" && id == excludeSubID {
			continue
		}
		targets = append(targets, ch)
	}
	b.mu.RUnlock()

	for _, ch := range targets {
		select {
		case ch <- event:
		default:
			b.logger.Debug("dropped event for slow subscriber",
				"conversation_id", conversationID, "event_id", event.ID)
		}
	}
}

// Unsubscribe removes a subscription and closes its channel.
func (b *EventBroadcaster) Unsubscribe(conversationID, subID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.subscribers[conversationID]
	if !ok {
		return
	}
	ch, exists := subs[subID]
	if !exists {
		return
	}

	delete(subs, subID)
	close(ch)

	if len(subs) == 0 {
		delete(b.subscribers, conversationID)
	}

	b.logger.Debug("subscriber removed", "conversation_id", conversationID, "sub_id", subID)
}

// Close shuts down the broadcaster and closes all subscriber channels.
func (b *EventBroadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for convID, subs := range b.subscribers {
		for subID, ch := range subs {
			close(ch)
			delete(subs, subID)
		}
		delete(b.subscribers, convID)
	}
}
