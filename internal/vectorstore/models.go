package vectorstore

import (
	"context"
	"fmt"
	"regexp"
)

// Payload keys every stored document carries alongside free-form metadata.
// The filter layer matches against these; keep them in sync with the
// orchestrator's payload construction.
const (
	PayloadContent        = "content"
	PayloadID             = "id"
	PayloadCategory       = "category"
	PayloadContextLevel   = "context_level"
	PayloadScope          = "scope"
	PayloadProjectName    = "project_name"
	PayloadLifecycleState = "lifecycle_state"
	PayloadImportance     = "importance"
	PayloadCreatedAt      = "created_at"
	PayloadTags           = "tags"
	PayloadLanguage       = "language"
	PayloadUnitType       = "unit_type"
)

// Document represents a document to be stored in the vector store.
type Document struct {
	// ID is the unique identifier for the document. Upserts with the
	// same ID replace the prior point.
	ID string

	// Content is the text content of the document; it is what gets
	// embedded when no Vector is supplied.
	Content string

	// Vector, when non-nil, is stored as-is and the embedder is not
	// called for this document. Callers use it to update a document's
	// content/payload while keeping its existing vector (update with
	// regenerate_embedding=false). Must match the collection's
	// dimension.
	Vector []float32

	// Metadata carries the payload fields used for filtering. See the
	// Payload* constants for the keys the filter layer understands.
	Metadata map[string]interface{}

	// Collection is the target collection name for this document. If
	// empty, the store's default collection is used.
	Collection string
}

// SearchResult represents a search result from the vector store.
type SearchResult struct {
	// ID is the document identifier.
	ID string

	// Content is the document text content.
	Content string

	// Score is the cosine similarity, clamped to [0,1] at the store
	// boundary.
	Score float32

	// Metadata contains the document payload.
	Metadata map[string]interface{}
}

// resolveVectors returns one vector per document, in input order: the
// document's own Vector when supplied, otherwise an embedding of its
// content. Docs carrying vectors never reach the embedder.
func resolveVectors(ctx context.Context, embedder Embedder, docs []Document) ([][]float32, error) {
	vectors := make([][]float32, len(docs))
	var missingIdx []int
	var missingTexts []string
	for i, doc := range docs {
		if doc.Vector != nil {
			vectors[i] = doc.Vector
			continue
		}
		missingIdx = append(missingIdx, i)
		missingTexts = append(missingTexts, doc.Content)
	}
	if len(missingTexts) > 0 {
		embedded, err := embedder.EmbedDocuments(ctx, missingTexts)
		if err != nil {
			return nil, err
		}
		for j, i := range missingIdx {
			vectors[i] = embedded[j]
		}
	}
	return vectors, nil
}

// clampScore pins a backend similarity score into [0,1]. Every search
// path clamps exactly once, here; composite re-ranking downstream never
// re-clamps.
func clampScore(s float32) float32 {
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

// collectionNamePattern validates collection names: lowercase letters,
// digits, underscores, 1-64 characters. Rejects uppercase, path
// separators, and spaces.
var collectionNamePattern = regexp.MustCompile(`^[a-z0-9_]{1,64}$`)

// ValidateCollectionName rejects names that could not have come from the
// engine's own {project}_{type} naming scheme.
func ValidateCollectionName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: collection name cannot be empty", ErrInvalidCollectionName)
	}
	if !collectionNamePattern.MatchString(name) {
		return fmt.Errorf("%w: collection name must match ^[a-z0-9_]{1,64}$, got %q", ErrInvalidCollectionName, name)
	}
	return nil
}
