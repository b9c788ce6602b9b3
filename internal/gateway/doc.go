// ABOUTME: HTTP surface of the streaming engine - chat over SSE plus conversation reads
// ABOUTME: Thin layer; all semantics live in conversation, orchestrator, and provider

// Package gateway exposes the engine over HTTP. POST /api/chat streams
// wire frames as server-sent events; the remaining endpoints are plain
// JSON reads over the durable store.
package gateway
