// ABOUTME: Wire framing between the streaming engine and connected clients
// ABOUTME: SSE data frames with a type tag; unknown types are ignored by decoders

// Package wire defines the frames streamed to clients over SSE and the
// encode/decode helpers for them. Decoders tolerate frame types they do
// not know: newer servers may emit frames older clients skip.
package wire
