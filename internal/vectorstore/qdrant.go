package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"google.golang.org/grpc"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var qdrantTracer = otel.Tracer("ctxengine.vectorstore.qdrant")

// QdrantConfig holds configuration for the Qdrant gRPC backend.
type QdrantConfig struct {
	// Host is the Qdrant server hostname or IP address.
	Host string

	// Port is the Qdrant gRPC port (6334 by convention; NOT the 6333
	// HTTP REST port).
	Port int

	// CollectionName is the default collection when a document batch
	// names none.
	CollectionName string

	// VectorSize is the embedding dimension; must match the Embedder.
	VectorSize uint64

	// Distance is the similarity metric. Cosine is the engine's
	// required distance; other values exist for experiments only.
	Distance qdrant.Distance

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool

	// MaxRetries bounds retry attempts for transient transport failures.
	MaxRetries int

	// RetryBackoff is the initial backoff, doubling per attempt.
	RetryBackoff time.Duration

	// MaxMessageSize is the gRPC message cap; large enough that a batch
	// of code units with full content never trips it.
	MaxMessageSize int

	// CircuitBreakerThreshold is the consecutive-failure count that
	// opens the circuit.
	CircuitBreakerThreshold int
}

// Validate validates the configuration.
func (c QdrantConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("%w: host required", ErrInvalidConfig)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: invalid port: %d", ErrInvalidConfig, c.Port)
	}
	if c.CollectionName == "" {
		return fmt.Errorf("%w: collection name required", ErrInvalidConfig)
	}
	if c.VectorSize == 0 {
		return fmt.Errorf("%w: vector size required", ErrInvalidConfig)
	}
	return nil
}

// ApplyDefaults sets default values for unset fields.
func (c *QdrantConfig) ApplyDefaults() {
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryBackoff == 0 {
		c.RetryBackoff = time.Second
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = 50 * 1024 * 1024
	}
	if c.CircuitBreakerThreshold == 0 {
		c.CircuitBreakerThreshold = 5
	}
	if c.Distance == 0 {
		c.Distance = qdrant.Distance_Cosine
	}
}

// IsTransientError reports whether a gRPC error is worth retrying:
// timeouts and temporary unavailability yes; invalid arguments, not
// found, and auth failures no.
func IsTransientError(err error) bool {
	if err == nil {
		return false
	}
	st, ok := status.FromError(err)
	if !ok {
		return false
	}
	switch st.Code() {
	case grpccodes.Unavailable, grpccodes.DeadlineExceeded, grpccodes.Aborted, grpccodes.ResourceExhausted:
		return true
	default:
		return false
	}
}

// QdrantStore implements Store against Qdrant's native gRPC client.
// gRPC bypasses Qdrant's HTTP layer and its 256kB payload cap, which
// matters when a single batch carries whole source files as code units.
type QdrantStore struct {
	client   *qdrant.Client
	embedder Embedder
	config   QdrantConfig

	// collections caches collection existence to avoid a round trip per
	// upsert.
	collections sync.Map

	circuitBreaker struct {
		failures int
		lastFail time.Time
		mu       sync.Mutex
	}
}

// NewQdrantStore connects, health-checks, and returns a ready store.
func NewQdrantStore(config QdrantConfig, embedder Embedder) (*QdrantStore, error) {
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	if err := ValidateCollectionName(config.CollectionName); err != nil {
		return nil, fmt.Errorf("validating collection name: %w", err)
	}
	if !config.UseTLS {
		fmt.Fprintf(os.Stderr, "WARNING: Qdrant gRPC using plaintext (TLS disabled). Insecure for production.\n")
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   config.Host,
		Port:   config.Port,
		UseTLS: config.UseTLS,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(config.MaxMessageSize),
				grpc.MaxCallSendMsgSize(config.MaxMessageSize),
			),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	store := &QdrantStore{client: client, embedder: embedder, config: config}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := store.HealthCheck(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("health check failed: %w (is Qdrant running at %s:%d? start it or set CTXENGINE_VECTORSTORE_PROVIDER=chromem)", err, config.Host, config.Port)
	}
	return store, nil
}

// Close closes the gRPC connection.
func (s *QdrantStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// HealthCheck pings the server.
func (s *QdrantStore) HealthCheck(ctx context.Context) error {
	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.HealthCheck")
	defer span.End()

	if _, err := s.client.HealthCheck(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("qdrant health check: %w", err)
	}
	span.SetStatus(codes.Ok, "healthy")
	return nil
}

// retryOperation retries transient failures with exponential backoff,
// respecting the circuit breaker.
func (s *QdrantStore) retryOperation(ctx context.Context, operationName string, operation func() error) error {
	backoff := s.config.RetryBackoff
	for attempt := 0; attempt <= s.config.MaxRetries; attempt++ {
		err := operation()
		if err == nil {
			s.resetCircuitBreaker()
			return nil
		}
		if s.isCircuitOpen() {
			return fmt.Errorf("%s: circuit breaker open", operationName)
		}
		if !IsTransientError(err) {
			return fmt.Errorf("%s failed (permanent): %w", operationName, err)
		}
		s.recordFailure()
		if attempt == s.config.MaxRetries {
			return fmt.Errorf("%s failed after %d retries: %w", operationName, s.config.MaxRetries, err)
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s canceled: %w", operationName, ctx.Err())
		case <-time.After(backoff):
			backoff *= 2
		}
	}
	return nil
}

func (s *QdrantStore) recordFailure() {
	s.circuitBreaker.mu.Lock()
	defer s.circuitBreaker.mu.Unlock()
	s.circuitBreaker.failures++
	s.circuitBreaker.lastFail = time.Now()
}

func (s *QdrantStore) resetCircuitBreaker() {
	s.circuitBreaker.mu.Lock()
	defer s.circuitBreaker.mu.Unlock()
	s.circuitBreaker.failures = 0
}

func (s *QdrantStore) isCircuitOpen() bool {
	s.circuitBreaker.mu.Lock()
	defer s.circuitBreaker.mu.Unlock()
	if s.circuitBreaker.failures >= s.config.CircuitBreakerThreshold {
		// Half-open after 30 seconds.
		if time.Since(s.circuitBreaker.lastFail) > 30*time.Second {
			s.circuitBreaker.failures = 0
			return false
		}
		return true
	}
	return false
}

// AddDocuments embeds and upserts the batch. Point IDs are UUIDs; the
// caller's document ID rides in the payload so deletes and dedup work by
// the engine's own IDs.
func (s *QdrantStore) AddDocuments(ctx context.Context, docs []Document) ([]string, error) {
	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.AddDocuments")
	defer span.End()
	span.SetAttributes(attribute.Int("document_count", len(docs)))

	if len(docs) == 0 {
		return nil, ErrEmptyDocuments
	}

	collectionName := s.config.CollectionName
	if docs[0].Collection != "" {
		collectionName = docs[0].Collection
	}
	span.SetAttributes(attribute.String("collection", collectionName))

	embeddings, err := resolveVectors(ctx, s.embedder, docs)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}

	points := make([]*qdrant.PointStruct, len(docs))
	ids := make([]string, len(docs))
	for i, doc := range docs {
		pointID := doc.ID
		if pointID == "" {
			pointID = uuid.New().String()
		}
		ids[i] = pointID

		payload := map[string]*qdrant.Value{
			PayloadContent: {Kind: &qdrant.Value_StringValue{StringValue: doc.Content}},
			PayloadID:      {Kind: &qdrant.Value_StringValue{StringValue: pointID}},
		}
		for k, v := range doc.Metadata {
			switch val := v.(type) {
			case string:
				payload[k] = &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: val}}
			case []string:
				values := make([]*qdrant.Value, len(val))
				for j, item := range val {
					values[j] = &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: item}}
				}
				payload[k] = &qdrant.Value{Kind: &qdrant.Value_ListValue{ListValue: &qdrant.ListValue{Values: values}}}
			case int:
				payload[k] = &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(val)}}
			case int64:
				payload[k] = &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: val}}
			case float64:
				payload[k] = &qdrant.Value{Kind: &qdrant.Value_DoubleValue{DoubleValue: val}}
			case bool:
				payload[k] = &qdrant.Value{Kind: &qdrant.Value_BoolValue{BoolValue: val}}
			}
		}

		// Qdrant point IDs must be UUIDs or integers; a deterministic
		// engine ID that happens to be a UUID is reused so upserts
		// stay idempotent, anything else is re-keyed with the original
		// preserved in the payload.
		var qdrantPointID *qdrant.PointId
		if _, err := uuid.Parse(pointID); err == nil {
			qdrantPointID = qdrant.NewIDUUID(pointID)
		} else {
			qdrantPointID = qdrant.NewIDUUID(uuid.NewSHA1(uuid.NameSpaceOID, []byte(pointID)).String())
		}

		points[i] = &qdrant.PointStruct{
			Id:      qdrantPointID,
			Vectors: qdrant.NewVectors(embeddings[i]...),
			Payload: payload,
		}
	}

	if collectionName != s.config.CollectionName {
		exists, err := s.CollectionExists(ctx, collectionName)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("checking collection %s: %w", collectionName, err)
		}
		if !exists {
			if err := s.CreateCollection(ctx, collectionName, int(s.config.VectorSize)); err != nil {
				span.RecordError(err)
				return nil, fmt.Errorf("creating collection %s: %w", collectionName, err)
			}
		}
	}

	err = s.retryOperation(ctx, "upsert", func() error {
		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: collectionName,
			Points:         points,
		})
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("upserting points to collection %s: %w", collectionName, err)
	}

	documentsAddedTotal.WithLabelValues("qdrant").Add(float64(len(ids)))
	span.SetAttributes(attribute.Int("points_added", len(ids)))
	span.SetStatus(codes.Ok, "success")
	return ids, nil
}

// SearchInCollection runs filtered ANN search. The typed filter compiles
// to native Qdrant conditions: equality matches, an importance range, a
// created_at range, tag ANY-match, and ID exclusions.
func (s *QdrantStore) SearchInCollection(ctx context.Context, collectionName string, query string, k int, filter *Filter) ([]SearchResult, error) {
	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.SearchInCollection")
	defer span.End()
	span.SetAttributes(attribute.String("collection", collectionName), attribute.Int("k", k))

	if err := ValidateCollectionName(collectionName); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}
	const maxK = 10000
	if k > maxK {
		k = maxK
	}
	if query == "" {
		return nil, fmt.Errorf("query cannot be empty")
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	queryVector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}

	qdrantFilter := buildQdrantFilter(filter)

	start := time.Now()
	var results []*qdrant.ScoredPoint
	err = s.retryOperation(ctx, "search", func() error {
		res, err := s.client.Query(ctx, &qdrant.QueryPoints{
			CollectionName: collectionName,
			Query:          qdrant.NewQuery(queryVector...),
			Limit:          qdrant.PtrOf(uint64(k)),
			WithPayload:    qdrant.NewWithPayload(true),
			Filter:         qdrantFilter,
		})
		if err != nil {
			return err
		}
		results = res
		return nil
	})
	observeSearch("qdrant", time.Since(start).Seconds(), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("searching collection %s: %w", collectionName, err)
	}

	searchResults := make([]SearchResult, len(results))
	for i, point := range results {
		searchResults[i] = scoredPointToResult(point)
	}

	span.SetAttributes(attribute.Int("results_count", len(searchResults)))
	span.SetStatus(codes.Ok, "success")
	return searchResults, nil
}

// buildQdrantFilter compiles the typed filter to Qdrant conditions.
func buildQdrantFilter(f *Filter) *qdrant.Filter {
	if f == nil {
		return nil
	}
	var must, should, mustNot []*qdrant.Condition

	for key, value := range f.equalities() {
		must = append(must, keywordCondition(key, value))
	}
	if f.MinImportance != nil || f.MaxImportance != nil {
		r := &qdrant.Range{}
		if f.MinImportance != nil {
			r.Gte = qdrant.PtrOf(*f.MinImportance)
		}
		if f.MaxImportance != nil {
			r.Lte = qdrant.PtrOf(*f.MaxImportance)
		}
		must = append(must, rangeCondition(PayloadImportance, r))
	}
	if f.DateFrom != nil || f.DateTo != nil {
		r := &qdrant.Range{}
		if f.DateFrom != nil {
			r.Gte = qdrant.PtrOf(float64(f.DateFrom.Unix()))
		}
		if f.DateTo != nil {
			r.Lte = qdrant.PtrOf(float64(f.DateTo.Unix()))
		}
		must = append(must, rangeCondition(PayloadCreatedAt, r))
	}
	for _, tag := range f.Tags {
		should = append(should, keywordCondition(PayloadTags, tag))
	}
	if len(f.ExcludeIDs) > 0 {
		mustNot = append(mustNot, keywordsCondition(PayloadID, f.ExcludeIDs))
	}

	if len(must) == 0 && len(should) == 0 && len(mustNot) == 0 {
		return nil
	}
	return &qdrant.Filter{Must: must, Should: should, MustNot: mustNot}
}

func keywordCondition(key, value string) *qdrant.Condition {
	return &qdrant.Condition{
		ConditionOneOf: &qdrant.Condition_Field{
			Field: &qdrant.FieldCondition{
				Key:   key,
				Match: &qdrant.Match{MatchValue: &qdrant.Match_Keyword{Keyword: value}},
			},
		},
	}
}

func keywordsCondition(key string, values []string) *qdrant.Condition {
	return &qdrant.Condition{
		ConditionOneOf: &qdrant.Condition_Field{
			Field: &qdrant.FieldCondition{
				Key: key,
				Match: &qdrant.Match{MatchValue: &qdrant.Match_Keywords{
					Keywords: &qdrant.RepeatedStrings{Strings: values},
				}},
			},
		},
	}
}

func rangeCondition(key string, r *qdrant.Range) *qdrant.Condition {
	return &qdrant.Condition{
		ConditionOneOf: &qdrant.Condition_Field{
			Field: &qdrant.FieldCondition{Key: key, Range: r},
		},
	}
}

func scoredPointToResult(point *qdrant.ScoredPoint) SearchResult {
	result := SearchResult{Score: clampScore(point.Score)}
	if point.Payload == nil {
		return result
	}
	result.Metadata = make(map[string]interface{}, len(point.Payload))
	for k, v := range point.Payload {
		switch val := v.Kind.(type) {
		case *qdrant.Value_StringValue:
			result.Metadata[k] = val.StringValue
			if k == PayloadContent {
				result.Content = val.StringValue
			} else if k == PayloadID {
				result.ID = val.StringValue
			}
		case *qdrant.Value_IntegerValue:
			result.Metadata[k] = val.IntegerValue
		case *qdrant.Value_DoubleValue:
			result.Metadata[k] = val.DoubleValue
		case *qdrant.Value_BoolValue:
			result.Metadata[k] = val.BoolValue
		case *qdrant.Value_ListValue:
			items := make([]interface{}, 0, len(val.ListValue.Values))
			for _, item := range val.ListValue.Values {
				if s, ok := item.Kind.(*qdrant.Value_StringValue); ok {
					items = append(items, s.StringValue)
				}
			}
			result.Metadata[k] = items
		}
	}
	return result
}

// DeleteDocumentsFromCollection deletes points whose payload ID matches.
func (s *QdrantStore) DeleteDocumentsFromCollection(ctx context.Context, collectionName string, ids []string) error {
	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.DeleteDocumentsFromCollection")
	defer span.End()
	span.SetAttributes(attribute.Int("id_count", len(ids)), attribute.String("collection", collectionName))

	if len(ids) == 0 {
		return nil
	}

	err := s.retryOperation(ctx, "delete", func() error {
		_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
			CollectionName: collectionName,
			Points: &qdrant.PointsSelector{
				PointsSelectorOneOf: &qdrant.PointsSelector_Filter{
					Filter: &qdrant.Filter{
						Must: []*qdrant.Condition{keywordsCondition(PayloadID, ids)},
					},
				},
			},
		})
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("deleting from collection %s: %w", collectionName, err)
	}

	span.SetStatus(codes.Ok, "success")
	return nil
}

// CreateCollection creates a collection with the configured distance.
func (s *QdrantStore) CreateCollection(ctx context.Context, collectionName string, vectorSize int) error {
	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.CreateCollection")
	defer span.End()
	span.SetAttributes(attribute.String("collection", collectionName), attribute.Int("vector_size", vectorSize))

	if err := ValidateCollectionName(collectionName); err != nil {
		return err
	}

	err := s.retryOperation(ctx, "create_collection", func() error {
		return s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: collectionName,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(vectorSize),
				Distance: s.config.Distance,
			}),
		})
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("creating collection %s: %w", collectionName, err)
	}

	s.collections.Store(collectionName, true)
	span.SetStatus(codes.Ok, "success")
	return nil
}

// DeleteCollection deletes a collection and all its points.
func (s *QdrantStore) DeleteCollection(ctx context.Context, collectionName string) error {
	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.DeleteCollection")
	defer span.End()
	span.SetAttributes(attribute.String("collection", collectionName))

	if err := ValidateCollectionName(collectionName); err != nil {
		return err
	}

	err := s.retryOperation(ctx, "delete_collection", func() error {
		return s.client.DeleteCollection(ctx, collectionName)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("deleting collection %s: %w", collectionName, err)
	}

	s.collections.Delete(collectionName)
	span.SetStatus(codes.Ok, "success")
	return nil
}

// CollectionExists reports whether a collection exists, consulting a
// local cache first.
func (s *QdrantStore) CollectionExists(ctx context.Context, collectionName string) (bool, error) {
	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.CollectionExists")
	defer span.End()
	span.SetAttributes(attribute.String("collection", collectionName))

	if err := ValidateCollectionName(collectionName); err != nil {
		return false, err
	}
	if _, ok := s.collections.Load(collectionName); ok {
		return true, nil
	}

	var exists bool
	err := s.retryOperation(ctx, "collection_exists", func() error {
		info, err := s.client.GetCollectionInfo(ctx, collectionName)
		if err != nil {
			if st, ok := status.FromError(err); ok && st.Code() == grpccodes.NotFound {
				exists = false
				return nil
			}
			return err
		}
		exists = info != nil
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("checking collection %s: %w", collectionName, err)
	}

	if exists {
		s.collections.Store(collectionName, true)
	}
	span.SetStatus(codes.Ok, "success")
	return exists, nil
}

// ListCollections returns all collection names.
func (s *QdrantStore) ListCollections(ctx context.Context) ([]string, error) {
	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.ListCollections")
	defer span.End()

	var collections []string
	err := s.retryOperation(ctx, "list_collections", func() error {
		result, err := s.client.ListCollections(ctx)
		if err != nil {
			return err
		}
		collections = result
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("listing collections: %w", err)
	}

	span.SetAttributes(attribute.Int("collection_count", len(collections)))
	span.SetStatus(codes.Ok, "success")
	return collections, nil
}

// GetCollectionInfo returns point count and vector size.
func (s *QdrantStore) GetCollectionInfo(ctx context.Context, collectionName string) (*CollectionInfo, error) {
	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.GetCollectionInfo")
	defer span.End()
	span.SetAttributes(attribute.String("collection", collectionName))

	if err := ValidateCollectionName(collectionName); err != nil {
		return nil, err
	}

	var info *CollectionInfo
	err := s.retryOperation(ctx, "get_collection_info", func() error {
		collInfo, err := s.client.GetCollectionInfo(ctx, collectionName)
		if err != nil {
			if st, ok := status.FromError(err); ok && st.Code() == grpccodes.NotFound {
				return ErrCollectionNotFound
			}
			return err
		}
		pointCount := 0
		if collInfo.PointsCount != nil {
			pointCount = int(*collInfo.PointsCount)
		}
		info = &CollectionInfo{
			Name:       collectionName,
			PointCount: pointCount,
			VectorSize: int(s.config.VectorSize),
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, ErrCollectionNotFound) {
			return nil, ErrCollectionNotFound
		}
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("getting collection info for %s: %w", collectionName, err)
	}

	span.SetStatus(codes.Ok, "success")
	return info, nil
}

var _ Store = (*QdrantStore)(nil)
