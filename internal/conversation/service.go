// ABOUTME: Service is the persistence-first layer every turn flows through
// ABOUTME: Record first, then act - user input is saved before the model runs

package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/magicloops/budchat/internal/events"
	"github.com/magicloops/budchat/internal/store"
)

// titleMaxLen bounds the conversation title derived from the first
// user message.
const titleMaxLen = 80

// Service routes every message through the durable store. The store is
// the source of truth: a turn that was never recorded never happened.
type Service struct {
	store       store.Store
	broadcaster *EventBroadcaster
	logger      *slog.Logger
}

// New creates a conversation service. broadcaster may be nil when
// cross-client fan-out is not needed (tests, one-shot tools).
func New(s store.Store, broadcaster *EventBroadcaster, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:       s,
		broadcaster: broadcaster,
		logger:      logger.With("component", "conversation"),
	}
}

// Turn is the durable context for one user turn: the conversation it
// belongs to, whether this turn created it, and the full prior log
// including the just-recorded user event.
type Turn struct {
	ConversationID string
	Created        bool
	UserEvent      *events.Event
	Log            []*events.Event
}

// Begin resolves or creates the conversation and records the user
// message before anything else happens. The returned Turn.Log ends with
// the user event and is ready to hand to the model.
func (s *Service) Begin(ctx context.Context, conversationID, model, content string) (*Turn, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("message content is required")
	}

	created := false
	if conversationID == "" {
		conversationID = uuid.New().String()
		conv := &store.Conversation{
			ID:    conversationID,
			Title: deriveTitle(content),
			Model: model,
		}
		if err := s.store.CreateConversation(ctx, conv); err != nil {
			return nil, fmt.Errorf("creating conversation: %w", err)
		}
		created = true
	} else if _, err := s.store.GetConversation(ctx, conversationID); err != nil {
		return nil, fmt.Errorf("resolving conversation: %w", err)
	}

	history, err := s.History(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	// Record the user message before the model is invoked, so a record
	// exists even if the provider call fails.
	userEvent := events.NewText(events.RoleUser, content)
	if err := s.store.SaveEvents(ctx, conversationID, []*events.Event{userEvent}); err != nil {
		return nil, fmt.Errorf("recording user message: %w", err)
	}
	s.logger.Debug("user message recorded",
		"conversation_id", conversationID, "event_id", userEvent.ID)

	return &Turn{
		ConversationID: conversationID,
		Created:        created,
		UserEvent:      userEvent,
		Log:            append(history, userEvent),
	}, nil
}

// History loads a conversation's events in order.
func (s *Service) History(ctx context.Context, conversationID string) ([]*events.Event, error) {
	stored, err := s.store.GetEvents(ctx, conversationID, 0)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}
	log := make([]*events.Event, len(stored))
	for i, se := range stored {
		log[i] = se.Event
	}
	return log, nil
}

// CommitAssistant persists one resolved assistant event under a fresh
// durable id and fans it out. Returns the durable id. excludeSubID
// names the originating client's subscription, which already streamed
// the event live.
func (s *Service) CommitAssistant(ctx context.Context, conversationID string, ev *events.Event, excludeSubID string) (string, error) {
	durable := ev.Clone()
	durable.ID = uuid.New().String()

	if err := s.store.SaveEvents(ctx, conversationID, []*events.Event{durable}); err != nil {
		return "", fmt.Errorf("committing assistant event: %w", err)
	}
	s.logger.Debug("assistant event committed",
		"conversation_id", conversationID,
		"placeholder_id", ev.ID,
		"event_id", durable.ID)

	if s.broadcaster != nil {
		s.broadcaster.Publish(conversationID, durable, excludeSubID)
	}
	return durable.ID, nil
}

// List returns recent conversations, newest first.
func (s *Service) List(ctx context.Context, limit int) ([]*store.Conversation, error) {
	return s.store.ListConversations(ctx, limit)
}

func deriveTitle(content string) string {
	title := strings.TrimSpace(content)
	if i := strings.IndexByte(title, '\n'); i >= 0 {
		title = title[:i]
	}
	if len(title) > titleMaxLen {
		title = title[:titleMaxLen]
	}
	return title
}
