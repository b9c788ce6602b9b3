// ABOUTME: Bounded tool-call loop driving model turns to resolution
// ABOUTME: Iteration ceiling is checked before every model call, never after

// Package orchestrator runs the conversation loop for one user turn:
// stream a model response, execute any tool calls it requests, feed the
// results back, and repeat until the model answers without tools or the
// iteration ceiling is hit. The ceiling is a hard stop surfaced as
// ErrToolLoopLimit, distinct from vendor errors.
package orchestrator
