package vectorstore

import (
	"context"
	"fmt"
	"sync"

	pkgembeddings "github.com/fyrsmithlabs/ctxengine/pkg/embeddings"
	pkgvectorstore "github.com/fyrsmithlabs/ctxengine/pkg/vectorstore"
)

// LangchainConfig configures a LangchainStore: a remote Qdrant-backed Store
// built on tmc/langchaingo instead of the qdrant-go-client wiring QdrantStore
// uses directly. It exists for deployments that already run a TEI or OpenAI
// embeddings endpoint and would rather reuse langchaingo's vector store
// abstraction than this package's bespoke Qdrant client.
type LangchainConfig struct {
	// QdrantURL is the Qdrant server URL, e.g. http://localhost:6333.
	QdrantURL string

	// DefaultCollection is used by AddDocuments when no collection is
	// named explicitly.
	DefaultCollection string

	// VectorSize is recorded in GetCollectionInfo; langchaingo's Qdrant
	// binding does not expose collection creation with an explicit size,
	// so CreateCollection here only registers the name for later lookup.
	VectorSize int

	// Embeddings configures the langchaingo embedder (TEI or OpenAI)
	// every per-collection Service shares.
	Embeddings pkgembeddings.Config
}

// LangchainStore implements Store on top of pkg/vectorstore.Service,
// lazily creating one Service (and therefore one langchaingo Qdrant
// client) per collection name, since pkg/vectorstore.Service is scoped to
// a single Qdrant collection at construction time.
//
// langchaingo's Qdrant binding only supports equality filters natively;
// the typed Filter's range/tag/date constraints are post-filtered here,
// like the chromem backend.
type LangchainStore struct {
	cfg         LangchainConfig
	embedderSvc *pkgembeddings.Service

	mu       sync.Mutex
	services map[string]*pkgvectorstore.Service
	sizes    map[string]int
}

// NewLangchainStore constructs a LangchainStore and its shared embedding
// service. The embedding service dials out on first use; construction
// itself performs no network calls.
func NewLangchainStore(cfg LangchainConfig) (*LangchainStore, error) {
	if cfg.QdrantURL == "" {
		return nil, fmt.Errorf("langchain store: QdrantURL is required")
	}
	if cfg.DefaultCollection == "" {
		cfg.DefaultCollection = "org_memories"
	}
	embedderSvc, err := pkgembeddings.NewService(cfg.Embeddings)
	if err != nil {
		return nil, fmt.Errorf("creating langchaingo embedder: %w", err)
	}
	return &LangchainStore{
		cfg:         cfg,
		embedderSvc: embedderSvc,
		services:    make(map[string]*pkgvectorstore.Service),
		sizes:       make(map[string]int),
	}, nil
}

// serviceFor returns (creating if needed) the Service bound to collection.
func (s *LangchainStore) serviceFor(collection string) (*pkgvectorstore.Service, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if svc, ok := s.services[collection]; ok {
		return svc, nil
	}
	svc, err := pkgvectorstore.NewService(pkgvectorstore.Config{
		URL:            s.cfg.QdrantURL,
		CollectionName: collection,
		Embedder:       s.embedderSvc.Embedder(),
	})
	if err != nil {
		return nil, fmt.Errorf("opening collection %s: %w", collection, err)
	}
	s.services[collection] = svc
	if _, ok := s.sizes[collection]; !ok {
		s.sizes[collection] = s.cfg.VectorSize
	}
	return svc, nil
}

func toPkgDocs(docs []Document) []pkgvectorstore.Document {
	out := make([]pkgvectorstore.Document, len(docs))
	for i, d := range docs {
		out[i] = pkgvectorstore.Document{ID: d.ID, Content: d.Content, Metadata: d.Metadata}
	}
	return out
}

func fromPkgResults(results []pkgvectorstore.SearchResult) []SearchResult {
	out := make([]SearchResult, len(results))
	for i, r := range results {
		out[i] = SearchResult{ID: r.ID, Content: r.Content, Score: clampScore(r.Score), Metadata: r.Metadata}
	}
	return out
}

// AddDocuments adds documents to a collection, using the first document's
// Collection field (or DefaultCollection if unset). All documents in a
// batch must target the same collection, matching ChromemStore's contract.
func (s *LangchainStore) AddDocuments(ctx context.Context, docs []Document) ([]string, error) {
	if len(docs) == 0 {
		return nil, ErrEmptyDocuments
	}
	collection := s.cfg.DefaultCollection
	if docs[0].Collection != "" {
		collection = docs[0].Collection
	}
	for i, d := range docs {
		if d.Collection != "" && d.Collection != collection {
			return nil, fmt.Errorf("document at index %d has collection %q but batch targets %q", i, d.Collection, collection)
		}
		// langchaingo embeds inside its own AddDocuments; a
		// caller-supplied vector cannot be injected through it.
		if d.Vector != nil {
			return nil, fmt.Errorf("document %q carries a caller-supplied vector; the langchaingo backend cannot store one — use the chromem or qdrant provider", d.ID)
		}
	}
	svc, err := s.serviceFor(collection)
	if err != nil {
		return nil, err
	}
	if err := svc.AddDocuments(ctx, toPkgDocs(docs)); err != nil {
		return nil, err
	}
	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}
	return ids, nil
}

// SearchInCollection searches a named collection. Equality constraints
// are pushed down as langchaingo metadata filters; range, tag, date, and
// exclusion constraints are post-filtered over an over-fetched set.
func (s *LangchainStore) SearchInCollection(ctx context.Context, collectionName, query string, k int, filter *Filter) ([]SearchResult, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	svc, err := s.serviceFor(collectionName)
	if err != nil {
		return nil, err
	}

	fetch := k
	if filter.needsPostFilter() {
		fetch = k * 4
	}

	var raw []pkgvectorstore.SearchResult
	if eq := filter.equalities(); eq != nil {
		filters := make(map[string]interface{}, len(eq))
		for key, value := range eq {
			filters[key] = value
		}
		raw, err = svc.SearchWithFilters(ctx, query, fetch, filters)
	} else {
		raw, err = svc.Search(ctx, query, fetch)
	}
	if err != nil {
		return nil, err
	}

	results := fromPkgResults(raw)
	if !filter.needsPostFilter() {
		return results, nil
	}
	out := make([]SearchResult, 0, k)
	for _, r := range results {
		if !filter.matches(r) {
			continue
		}
		out = append(out, r)
		if len(out) == k {
			break
		}
	}
	return out, nil
}

// DeleteDocumentsFromCollection deletes documents from a named collection.
func (s *LangchainStore) DeleteDocumentsFromCollection(ctx context.Context, collectionName string, ids []string) error {
	svc, err := s.serviceFor(collectionName)
	if err != nil {
		return err
	}
	return svc.DeleteDocuments(ctx, ids)
}

// CreateCollection registers collectionName with vectorSize and opens its
// underlying langchaingo Qdrant client, creating the Qdrant-side
// collection if it does not already exist.
func (s *LangchainStore) CreateCollection(ctx context.Context, collectionName string, vectorSize int) error {
	s.mu.Lock()
	s.sizes[collectionName] = vectorSize
	s.mu.Unlock()
	svc, err := s.serviceFor(collectionName)
	if err != nil {
		return err
	}
	return svc.CreateCollection(ctx, collectionName, vectorSize)
}

// DeleteCollection deletes a collection and forgets its cached Service.
func (s *LangchainStore) DeleteCollection(ctx context.Context, collectionName string) error {
	svc, err := s.serviceFor(collectionName)
	if err != nil {
		return err
	}
	if err := svc.DeleteCollection(ctx, collectionName); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.services, collectionName)
	delete(s.sizes, collectionName)
	s.mu.Unlock()
	return nil
}

// CollectionExists checks Qdrant directly rather than the local cache, so
// it reflects collections created by other processes too.
func (s *LangchainStore) CollectionExists(ctx context.Context, collectionName string) (bool, error) {
	svc, err := s.serviceFor(collectionName)
	if err != nil {
		return false, err
	}
	return svc.CollectionExists(ctx, collectionName)
}

// ListCollections lists every collection this Store has opened a Service
// for. langchaingo's Qdrant binding has no list-all-collections call.
func (s *LangchainStore) ListCollections(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.services))
	for name := range s.services {
		out = append(out, name)
	}
	return out, nil
}

// GetCollectionInfo returns the collection's registered vector size and
// live point count.
func (s *LangchainStore) GetCollectionInfo(ctx context.Context, collectionName string) (*CollectionInfo, error) {
	svc, err := s.serviceFor(collectionName)
	if err != nil {
		return nil, err
	}
	info, err := svc.GetCollectionInfo(ctx, collectionName)
	if err != nil {
		return nil, err
	}
	return &CollectionInfo{Name: collectionName, PointCount: info.PointCount, VectorSize: info.VectorSize}, nil
}

// HealthCheck verifies the default collection's Qdrant endpoint answers.
func (s *LangchainStore) HealthCheck(ctx context.Context) error {
	svc, err := s.serviceFor(s.cfg.DefaultCollection)
	if err != nil {
		return err
	}
	if _, err := svc.CollectionExists(ctx, s.cfg.DefaultCollection); err != nil {
		return fmt.Errorf("qdrant unreachable at %s: %w", s.cfg.QdrantURL, err)
	}
	return nil
}

// Close is a no-op: neither pkg/embeddings.Service nor
// pkg/vectorstore.Service hold closable resources (both talk HTTP/gRPC
// per-call rather than keeping a persistent connection handle).
func (s *LangchainStore) Close() error {
	return nil
}

var _ Store = (*LangchainStore)(nil)
