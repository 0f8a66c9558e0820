package vectorstore

import (
	"context"
	"errors"
)

// Sentinel errors for vector store operations.
var (
	// ErrCollectionNotFound is returned when a collection does not exist.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrCollectionExists is returned when attempting to create an existing collection.
	ErrCollectionExists = errors.New("collection already exists")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmptyDocuments indicates empty or nil documents.
	ErrEmptyDocuments = errors.New("empty or nil documents")

	// ErrConnectionFailed indicates the backend is unreachable.
	ErrConnectionFailed = errors.New("failed to connect to vector store backend")

	// ErrEmbeddingFailed indicates embedding generation failure.
	ErrEmbeddingFailed = errors.New("failed to generate embeddings")

	// ErrInvalidCollectionName indicates collection name validation failure.
	ErrInvalidCollectionName = errors.New("invalid collection name")

	// ErrInvalidFilter indicates a filter carrying an unknown enumerator;
	// raised before any backend I/O.
	ErrInvalidFilter = errors.New("invalid search filter")
)

// Embedder generates vector embeddings from text. Implementations must be
// safe for concurrent use; the engine routes every call through the
// embedding cache so repeat texts skip the model.
type Embedder interface {
	// EmbedDocuments generates embeddings for multiple texts, one per
	// input, order preserved.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery generates an embedding for a single query. Some models
	// optimize differently for queries vs documents.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Store is the engine's vector storage contract.
//
// Implementations embed document content via their Embedder, upsert points
// keyed by the caller's document ID (idempotent for a given ID), and serve
// cosine-similarity search with payload filtering. Scores returned from
// any search are clamped to [0,1].
//
// Collection naming convention:
//   - org_memories: global-scope memories
//   - {project}_memories: project-scope memories
//   - {project}_codeunits: extracted code units
type Store interface {
	// AddDocuments upserts documents into the collection named by the
	// batch (every document must target the same collection). Returns the
	// stored IDs in input order.
	AddDocuments(ctx context.Context, docs []Document) ([]string, error)

	// SearchInCollection runs ANN search in a collection. A nil filter
	// matches everything; a non-nil filter is validated before any I/O
	// and applied as equality, range, and ANY-match conditions on the
	// document payload.
	SearchInCollection(ctx context.Context, collectionName string, query string, k int, filter *Filter) ([]SearchResult, error)

	// DeleteDocumentsFromCollection deletes documents by ID. Unknown IDs
	// are ignored.
	DeleteDocumentsFromCollection(ctx context.Context, collectionName string, ids []string) error

	// CreateCollection creates a collection with the given vector
	// dimension. Returns ErrCollectionExists if it is already present.
	CreateCollection(ctx context.Context, collectionName string, vectorSize int) error

	// DeleteCollection deletes a collection and all its documents.
	DeleteCollection(ctx context.Context, collectionName string) error

	// CollectionExists reports whether a collection exists.
	CollectionExists(ctx context.Context, collectionName string) (bool, error)

	// ListCollections returns all collection names.
	ListCollections(ctx context.Context) ([]string, error)

	// GetCollectionInfo returns point count and vector size for a
	// collection, or ErrCollectionNotFound.
	GetCollectionInfo(ctx context.Context, collectionName string) (*CollectionInfo, error)

	// HealthCheck reports whether the backend is reachable and serving.
	HealthCheck(ctx context.Context) error

	// Close releases the backend connection and flushes any state.
	Close() error
}

// CollectionInfo contains metadata about a vector collection.
type CollectionInfo struct {
	// Name is the collection name.
	Name string `json:"name"`

	// PointCount is the number of vectors in the collection.
	PointCount int `json:"point_count"`

	// VectorSize is the dimensionality of vectors in this collection.
	VectorSize int `json:"vector_size"`
}
