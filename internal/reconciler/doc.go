// ABOUTME: Client-side reconciliation of the frame stream into overlay plus durable log
// ABOUTME: One reconciler per conversation subscription; no shared globals

// Package reconciler rebuilds conversation state from the wire frame
// stream the way a connected client does. In-flight assistant events
// live in an ephemeral overlay keyed by placeholder id; message_final
// moves the event into the durable log in a single commit and records
// the placeholder-to-durable id mapping in a bounded, time-evicting
// alias table so frames that race the commit still find their event.
package reconciler
