// ABOUTME: Tool execution layer - servers expose tools, the registry routes calls
// ABOUTME: Oversized outputs are truncated with a token-count notice before re-entering the model

// Package tools routes tool calls from the orchestrator to the servers
// that implement them. A Server is anything that can list and invoke
// tools (an MCP connection, a builtin pack, a test double); the Registry
// aggregates servers and resolves names to the server that owns them.
package tools
