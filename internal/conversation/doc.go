// ABOUTME: Conversation layer - persistence-first message flow and event fan-out
// ABOUTME: The durable log is the source of truth, not a side effect of streaming

// Package conversation owns the flow of events through a conversation:
// user input is recorded before the model is invoked, finalized
// assistant events are committed once and then fanned out to other
// subscribers of the same conversation.
package conversation
