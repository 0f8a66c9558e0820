// Package orchestrator implements the retrieval orchestrator: the single
// component every operation passes through. It owns no storage format of
// its own — it wires together the vector store, the cached embedder, the
// usage tracker, the session manager, the consent registry, the feedback
// store, the hybrid search/fusion layer, the dependency graph, the code
// indexer, the quality analyzer, and the git history walker, and exposes
// one method per operation the MCP server surfaces.
package orchestrator
