// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: WAL mode, foreign keys on, schema created automatically

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/magicloops/budchat/internal/events"
)

// SQLiteStore implements Store on a single SQLite file.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (creating if needed) the database at path. Parent
// directories are created. Use ":memory:" for an in-memory database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// WAL for better concurrent read performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{db: db, logger: logger}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL DEFAULT '',
			model TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS events (
			order_key INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL,
			conversation_id TEXT NOT NULL REFERENCES conversations(id),
			role TEXT NOT NULL,
			segments TEXT NOT NULL,
			created_at DATETIME NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_events_conversation
			ON events(conversation_id, order_key);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	return nil
}

// CreateConversation persists a new conversation record.
func (s *SQLiteStore) CreateConversation(ctx context.Context, c *Conversation) error {
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations (id, title, model, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.Title, c.Model, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting conversation: %w", err)
	}
	s.logger.Debug("conversation created", "id", c.ID)
	return nil
}

// GetConversation loads one conversation by id.
func (s *SQLiteStore) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	var c Conversation
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, model, created_at, updated_at
		FROM conversations WHERE id = ?`, id).
		Scan(&c.ID, &c.Title, &c.Model, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying conversation: %w", err)
	}
	return &c, nil
}

// ListConversations returns conversations newest-updated first.
func (s *SQLiteStore) ListConversations(ctx context.Context, limit int) ([]*Conversation, error) {
	query := `
		SELECT id, title, model, created_at, updated_at
		FROM conversations ORDER BY updated_at DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying conversations: %w", err)
	}
	defer rows.Close()

	var out []*Conversation
	for rows.Next() {
		var c Conversation
		if err := rows.Scan(&c.ID, &c.Title, &c.Model, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning conversation: %w", err)
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

// SaveEvents appends finalized events in one transaction. Order keys are
// assigned by the autoincrement column; insertion order is preserved.
func (s *SQLiteStore) SaveEvents(ctx context.Context, conversationID string, evs []*events.Event) error {
	if len(evs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, ev := range evs {
		segments, err := encodeSegments(ev.Segments)
		if err != nil {
			return fmt.Errorf("encoding segments for %s: %w", ev.ID, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO events (id, conversation_id, role, segments, created_at)
			VALUES (?, ?, ?, ?, ?)`,
			ev.ID, conversationID, string(ev.Role), string(segments), ev.TS.UTC()); err != nil {
			return fmt.Errorf("inserting event %s: %w", ev.ID, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE conversations SET updated_at = ? WHERE id = ?`,
		time.Now().UTC(), conversationID); err != nil {
		return fmt.Errorf("touching conversation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing events: %w", err)
	}
	s.logger.Debug("events saved", "conversation", conversationID, "count", len(evs))
	return nil
}

// GetEvents returns a conversation's events in order-key order.
func (s *SQLiteStore) GetEvents(ctx context.Context, conversationID string, limit int) ([]StoredEvent, error) {
	query := `
		SELECT order_key, id, role, segments, created_at
		FROM events WHERE conversation_id = ? ORDER BY order_key`
	args := []any{conversationID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	var out []StoredEvent
	for rows.Next() {
		var (
			orderKey int64
			id       string
			role     string
			segments string
			created  time.Time
		)
		if err := rows.Scan(&orderKey, &id, &role, &segments, &created); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}

		ev := &events.Event{ID: id, Role: events.Role(role), TS: created}
		ev.Segments, err = decodeSegments([]byte(segments))
		if err != nil {
			return nil, fmt.Errorf("decoding segments for %s: %w", id, err)
		}
		out = append(out, StoredEvent{OrderKey: orderKey, Event: ev})
	}
	return out, rows.Err()
}

// encodeSegments and decodeSegments carry the segment type tag that a
// bare json.Marshal of the interface slice would lose.
func encodeSegments(segs []events.Segment) ([]byte, error) {
	raw := make([]json.RawMessage, 0, len(segs))
	for _, seg := range segs {
		data, err := events.MarshalSegment(seg)
		if err != nil {
			return nil, err
		}
		raw = append(raw, data)
	}
	return json.Marshal(raw)
}

func decodeSegments(data []byte) ([]events.Segment, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	segs := make([]events.Segment, 0, len(raw))
	for _, r := range raw {
		seg, err := events.UnmarshalSegment(r)
		if err != nil {
			return nil, err
		}
		segs = append(segs, seg)
	}
	return segs, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
