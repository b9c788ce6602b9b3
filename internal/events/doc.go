// ABOUTME: Package events defines the canonical, provider-agnostic conversation model
// ABOUTME: An Event is one turn; Segments are its typed content units

// Package events holds the vendor-neutral representation of a conversation.
//
// An Event is a single turn emitted by one role. Its content is an ordered
// list of Segments: plain text, tool calls and their results, reasoning
// blocks, and vendor built-in tool invocations. Every other layer of the
// system (provider adapters, the stream builder, the orchestrator, the
// store, the frontend reconciler) speaks in terms of these types.
//
// Two design rules shape the model:
//
//  1. Tool results never form a standalone turn. A tool_result segment is
//     carried inside the assistant Event whose tool_call requested it, so
//     the durable log reads as alternating user/assistant turns regardless
//     of which vendor produced them.
//
//  2. Segments are a closed union. Adding a new segment kind means adding a
//     new type here and updating every exhaustive switch, not falling
//     through a default branch.
package events
