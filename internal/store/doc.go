// ABOUTME: Durable persistence for conversations and their event logs
// ABOUTME: SQLite-backed; order keys are store-assigned and monotonic per conversation

// Package store persists conversations and finalized events. Events are
// append-only: the engine commits a finalized event exactly once, and
// ordering within a conversation comes from store-assigned order keys,
// never from client timestamps.
package store
