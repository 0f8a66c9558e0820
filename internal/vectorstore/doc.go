// Package vectorstore implements the engine's vector storage layer:
// typed ANN search over embedded memories and code units with payload
// filtering, plus collection lifecycle management.
//
// Two backends implement the Store interface:
//
//   - ChromemStore: embedded chromem-go, zero external processes, the
//     default for local use and tests.
//   - QdrantStore: external Qdrant over gRPC, for production deployments.
//
// A third, LangchainStore, adapts langchaingo's Qdrant binding for
// deployments that already run a TEI or OpenAI embeddings endpoint.
//
// Collections are namespaced per project: {project}_memories and
// {project}_codeunits, with org_memories holding global-scope memories.
// Similarity scores are clamped to [0,1] at this boundary; downstream
// re-ranking composes on top without re-clamping.
package vectorstore
