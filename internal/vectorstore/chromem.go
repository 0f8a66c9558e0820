package vectorstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// timeNow is a variable so tests can pin the clock.
var timeNow = time.Now

var chromemTracer = otel.Tracer("ctxengine.vectorstore.chromem")

// ChromemConfig holds configuration for the chromem-go embedded backend.
type ChromemConfig struct {
	// Path is the directory for persistent storage.
	// Default: "~/.config/ctxengine/vectorstore"
	Path string

	// Compress enables gzip compression for stored data.
	Compress bool

	// DefaultCollection is used when a document batch names no
	// collection. Default: "org_memories"
	DefaultCollection string

	// VectorSize is the expected embedding dimension. Must match the
	// embedder's output dimension. Default: 384 (bge-small-en-v1.5)
	VectorSize int
}

// ApplyDefaults sets default values for unset fields.
func (c *ChromemConfig) ApplyDefaults() {
	if c.Path == "" {
		c.Path = "~/.config/ctxengine/vectorstore"
	}
	if c.DefaultCollection == "" {
		c.DefaultCollection = "org_memories"
	}
	if c.VectorSize == 0 {
		c.VectorSize = 384
	}
}

// Validate validates the configuration.
func (c *ChromemConfig) Validate() error {
	if c.VectorSize <= 0 {
		return fmt.Errorf("%w: vector size must be positive", ErrInvalidConfig)
	}
	return nil
}

// ChromemStore implements Store on chromem-go, an embeddable pure-Go
// vector database persisting to gob files. No external process, no CGO.
// Search is exact (full scan), which is fine at the corpus sizes a
// single-operator deployment holds.
//
// chromem's where-filters only support string equality, so range, tag,
// and date constraints are evaluated in Go against an over-fetched
// candidate set.
type ChromemStore struct {
	db       *chromem.DB
	embedder Embedder
	config   ChromemConfig
	logger   *zap.Logger
}

// NewChromemStore creates a ChromemStore, creating the storage directory
// if needed.
func NewChromemStore(config ChromemConfig, embedder Embedder, logger *zap.Logger) (*ChromemStore, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	path, err := expandHomePath(config.Path)
	if err != nil {
		return nil, fmt.Errorf("expanding path: %w", err)
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("creating directory %s: %w", path, err)
	}

	db, err := chromem.NewPersistentDB(path, config.Compress)
	if err != nil {
		return nil, fmt.Errorf("opening chromem DB at %s: %w", path, err)
	}

	logger.Info("chromem store ready",
		zap.String("path", path),
		zap.Int("vector_size", config.VectorSize),
		zap.String("default_collection", config.DefaultCollection))

	return &ChromemStore{db: db, embedder: embedder, config: config, logger: logger}, nil
}

func expandHomePath(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

// embeddingFunc adapts the Embedder to chromem's callback shape.
func (s *ChromemStore) embeddingFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return s.embedder.EmbedQuery(ctx, text)
	}
}

func (s *ChromemStore) getOrCreateCollection(name string) (*chromem.Collection, error) {
	if err := ValidateCollectionName(name); err != nil {
		return nil, err
	}
	collection, err := s.db.GetOrCreateCollection(name, nil, s.embeddingFunc())
	if err != nil {
		return nil, fmt.Errorf("getting/creating collection %s: %w", name, err)
	}
	return collection, nil
}

// AddDocuments upserts the batch into its target collection, embedding
// every content through the Embedder in one call.
func (s *ChromemStore) AddDocuments(ctx context.Context, docs []Document) ([]string, error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.AddDocuments")
	defer span.End()
	span.SetAttributes(attribute.Int("document_count", len(docs)))

	if len(docs) == 0 {
		return nil, ErrEmptyDocuments
	}

	collectionName := s.config.DefaultCollection
	if docs[0].Collection != "" {
		collectionName = docs[0].Collection
	}
	for i, doc := range docs {
		if doc.Collection != "" && doc.Collection != collectionName {
			return nil, fmt.Errorf("document at index %d targets collection %q but batch targets %q", i, doc.Collection, collectionName)
		}
	}
	span.SetAttributes(attribute.String("collection", collectionName))

	collection, err := s.getOrCreateCollection(collectionName)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	ids := make([]string, len(docs))
	for i, doc := range docs {
		ids[i] = doc.ID
		if ids[i] == "" {
			ids[i] = fmt.Sprintf("doc_%d_%d", timeNow().UnixNano(), i)
			s.logger.Warn("auto-generated document ID; callers should provide explicit IDs",
				zap.String("generated_id", ids[i]))
		}
	}

	embeddings, err := resolveVectors(ctx, s.embedder, docs)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}

	chromemDocs := make([]chromem.Document, len(docs))
	for i, doc := range docs {
		chromemDocs[i] = chromem.Document{
			ID:        ids[i],
			Content:   doc.Content,
			Metadata:  stringifyMetadata(doc.Metadata),
			Embedding: embeddings[i],
		}
	}

	if err := collection.AddDocuments(ctx, chromemDocs, 1); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("adding documents to %s: %w", collectionName, err)
	}
	documentsAddedTotal.WithLabelValues("chromem").Add(float64(len(docs)))

	span.SetStatus(codes.Ok, "success")
	s.logger.Debug("added documents",
		zap.String("collection", collectionName), zap.Int("count", len(docs)))
	return ids, nil
}

// SearchInCollection runs similarity search with the typed filter.
// Equality constraints become chromem where-filters; everything else is
// post-filtered in Go over an over-fetched candidate set.
func (s *ChromemStore) SearchInCollection(ctx context.Context, collectionName string, query string, k int, filter *Filter) ([]SearchResult, error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.SearchInCollection")
	defer span.End()
	span.SetAttributes(attribute.String("collection", collectionName), attribute.Int("k", k))

	if err := ValidateCollectionName(collectionName); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}
	if query == "" {
		return nil, fmt.Errorf("query cannot be empty")
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	collection := s.db.GetCollection(collectionName, s.embeddingFunc())
	if collection == nil {
		span.SetStatus(codes.Error, "collection not found")
		return nil, ErrCollectionNotFound
	}

	docCount := collection.Count()
	if docCount == 0 {
		return []SearchResult{}, nil
	}

	// chromem's native where-filters only do string equality and bound
	// nResults awkwardly against the filtered set, so every constraint is
	// evaluated here instead: over-fetch ranked candidates, then keep the
	// first k that match.
	fetch := k
	if filter != nil {
		fetch = k * 4
	}
	if fetch > docCount {
		fetch = docCount
	}

	start := timeNow()
	results, err := collection.Query(ctx, query, fetch, nil, nil)
	observeSearch("chromem", timeNow().Sub(start).Seconds(), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("querying collection %s: %w", collectionName, err)
	}

	out := make([]SearchResult, 0, len(results))
	for _, r := range results {
		sr := SearchResult{
			ID:       r.ID,
			Content:  r.Content,
			Score:    clampScore(r.Similarity),
			Metadata: broadenMetadata(r.Metadata),
		}
		if !filter.matchesAll(sr) {
			continue
		}
		out = append(out, sr)
		if len(out) == k {
			break
		}
	}

	span.SetAttributes(attribute.Int("results_count", len(out)))
	span.SetStatus(codes.Ok, "success")
	return out, nil
}

// DeleteDocumentsFromCollection deletes documents by ID; unknown IDs are
// logged and skipped.
func (s *ChromemStore) DeleteDocumentsFromCollection(ctx context.Context, collectionName string, ids []string) error {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.DeleteDocumentsFromCollection")
	defer span.End()
	span.SetAttributes(attribute.String("collection", collectionName), attribute.Int("id_count", len(ids)))

	if len(ids) == 0 {
		return nil
	}
	if err := ValidateCollectionName(collectionName); err != nil {
		return err
	}

	collection := s.db.GetCollection(collectionName, s.embeddingFunc())
	if collection == nil {
		span.SetStatus(codes.Error, "collection not found")
		return ErrCollectionNotFound
	}

	var failures []string
	for _, id := range ids {
		if err := collection.Delete(ctx, nil, nil, id); err != nil {
			s.logger.Error("failed to delete document",
				zap.String("collection", collectionName), zap.String("id", id), zap.Error(err))
			failures = append(failures, id)
		}
	}
	if len(failures) > 0 {
		span.SetStatus(codes.Error, "partial deletion failure")
		return fmt.Errorf("failed to delete %d of %d documents: %v", len(failures), len(ids), failures)
	}

	span.SetStatus(codes.Ok, "success")
	return nil
}

// CreateCollection creates a collection. The vector size must match the
// store's configured dimension; 0 means "use configured default".
func (s *ChromemStore) CreateCollection(ctx context.Context, collectionName string, vectorSize int) error {
	_, span := chromemTracer.Start(ctx, "ChromemStore.CreateCollection")
	defer span.End()
	span.SetAttributes(attribute.String("collection", collectionName))

	if err := ValidateCollectionName(collectionName); err != nil {
		return err
	}
	if vectorSize == 0 {
		vectorSize = s.config.VectorSize
	}
	if vectorSize != s.config.VectorSize {
		return fmt.Errorf("vector size %d does not match configured size %d", vectorSize, s.config.VectorSize)
	}

	// Must pass the embedding func, not nil: chromem-go installs its
	// OpenAI default embedder when nil is given for persisted collections.
	if existing := s.db.GetCollection(collectionName, s.embeddingFunc()); existing != nil {
		return ErrCollectionExists
	}
	if _, err := s.db.CreateCollection(collectionName, nil, s.embeddingFunc()); err != nil {
		if strings.Contains(err.Error(), "already exists") {
			return ErrCollectionExists
		}
		span.RecordError(err)
		return fmt.Errorf("creating collection %s: %w", collectionName, err)
	}

	span.SetStatus(codes.Ok, "success")
	s.logger.Info("created collection", zap.String("collection", collectionName))
	return nil
}

// DeleteCollection deletes a collection and all its documents.
func (s *ChromemStore) DeleteCollection(ctx context.Context, collectionName string) error {
	_, span := chromemTracer.Start(ctx, "ChromemStore.DeleteCollection")
	defer span.End()
	span.SetAttributes(attribute.String("collection", collectionName))

	if err := ValidateCollectionName(collectionName); err != nil {
		return err
	}
	if err := s.db.DeleteCollection(collectionName); err != nil {
		span.RecordError(err)
		return fmt.Errorf("deleting collection %s: %w", collectionName, err)
	}

	span.SetStatus(codes.Ok, "success")
	s.logger.Info("deleted collection", zap.String("collection", collectionName))
	return nil
}

// CollectionExists reports whether the collection exists.
func (s *ChromemStore) CollectionExists(ctx context.Context, collectionName string) (bool, error) {
	_, span := chromemTracer.Start(ctx, "ChromemStore.CollectionExists")
	defer span.End()

	if err := ValidateCollectionName(collectionName); err != nil {
		return false, err
	}
	return s.db.GetCollection(collectionName, s.embeddingFunc()) != nil, nil
}

// ListCollections returns all collection names.
func (s *ChromemStore) ListCollections(ctx context.Context) ([]string, error) {
	_, span := chromemTracer.Start(ctx, "ChromemStore.ListCollections")
	defer span.End()

	collections := s.db.ListCollections()
	names := make([]string, 0, len(collections))
	for name := range collections {
		names = append(names, name)
	}
	span.SetAttributes(attribute.Int("collection_count", len(names)))
	return names, nil
}

// GetCollectionInfo returns point count and vector size for a collection.
func (s *ChromemStore) GetCollectionInfo(ctx context.Context, collectionName string) (*CollectionInfo, error) {
	_, span := chromemTracer.Start(ctx, "ChromemStore.GetCollectionInfo")
	defer span.End()

	if err := ValidateCollectionName(collectionName); err != nil {
		return nil, err
	}
	collection := s.db.GetCollection(collectionName, s.embeddingFunc())
	if collection == nil {
		span.SetStatus(codes.Error, "collection not found")
		return nil, ErrCollectionNotFound
	}
	return &CollectionInfo{
		Name:       collectionName,
		PointCount: collection.Count(),
		VectorSize: s.config.VectorSize,
	}, nil
}

// HealthCheck always succeeds for the embedded backend; the DB lives in
// this process.
func (s *ChromemStore) HealthCheck(ctx context.Context) error {
	return nil
}

// Close is a no-op; chromem persists on every write.
func (s *ChromemStore) Close() error {
	s.logger.Info("chromem store closed")
	return nil
}

// stringifyMetadata flattens payload values into chromem's string-only
// metadata. Tag slices become comma-joined strings; the filter layer
// knows to split them back.
func stringifyMetadata(metadata map[string]interface{}) map[string]string {
	if metadata == nil {
		return nil
	}
	result := make(map[string]string, len(metadata))
	for k, v := range metadata {
		switch val := v.(type) {
		case string:
			result[k] = val
		case []string:
			result[k] = strings.Join(val, ",")
		case int:
			result[k] = fmt.Sprintf("%d", val)
		case int64:
			result[k] = fmt.Sprintf("%d", val)
		case float64:
			result[k] = fmt.Sprintf("%g", val)
		case bool:
			result[k] = fmt.Sprintf("%t", val)
		default:
			result[k] = fmt.Sprintf("%v", val)
		}
	}
	return result
}

// broadenMetadata lifts chromem's string metadata back into the
// interface{} payload shape shared with the Qdrant backend.
func broadenMetadata(metadata map[string]string) map[string]interface{} {
	if metadata == nil {
		return nil
	}
	result := make(map[string]interface{}, len(metadata))
	for k, v := range metadata {
		result[k] = v
	}
	return result
}

var _ Store = (*ChromemStore)(nil)
