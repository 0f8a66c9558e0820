// Package embeddings provides embedding generation via multiple providers.
//
// Supports FastEmbed (local ONNX) and TEI (external service) providers.
// Factory pattern enables provider selection at runtime with automatic
// dimension detection for common models.
//
// The Cache wraps any Provider with an LRU plus SQLite-persistent layer
// keyed by sha256(text)+model_id, so identical repeat texts never hit the
// model twice across restarts.
package embeddings
