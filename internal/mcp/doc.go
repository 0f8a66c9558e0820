// Package mcp exposes the retrieval engine's public surface as MCP
// tools, dispatching directly into internal/orchestrator with no RPC layer
// in between.
//
// This implementation uses the MCP SDK (github.com/modelcontextprotocol/go-sdk/mcp)
// and registers tools for memory storage/retrieval and consolidation, code
// search/indexing/quality, dependency-graph queries, conversation sessions,
// cross-project consent, search feedback, and git history. All memory and
// code content returned to clients is scrubbed for secrets first.
package mcp
