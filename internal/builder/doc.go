// ABOUTME: Package builder assembles raw vendor deltas into finalized Segments
// ABOUTME: One Builder owns one in-flight assistant Event until Finalize

// Package builder implements the per-turn reconciliation state machine.
//
// A Builder consumes the RawDelta sequence of exactly one vendor stream
// and owns the placeholder assistant Event for that turn. Sub-units (the
// text run, each tool call, each reasoning part, each built-in call) track
// state independently because vendor streams interleave them freely.
//
// A malformed or out-of-order delta (say, a fragment for an unseen
// summary_index) lazily creates the missing sub-unit instead of failing:
// partial output beats strict protocol conformance, since vendor streams
// are not contractually ordered across event types.
//
// Finalize freezes the Event, strips streaming-only fields, and is
// idempotent; after it returns, ownership of the Event transfers to the
// durable log and the Builder never touches it again.
package builder
