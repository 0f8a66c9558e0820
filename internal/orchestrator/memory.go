package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/fyrsmithlabs/ctxengine/internal/memory"
	"github.com/fyrsmithlabs/ctxengine/internal/reranker"
	"github.com/fyrsmithlabs/ctxengine/internal/search"
	"github.com/fyrsmithlabs/ctxengine/internal/vectorstore"
	"go.uber.org/zap"
)

// StoreMemoryInput is store_memory's request shape.
type StoreMemoryInput struct {
	Content      string
	Category     memory.Category // empty triggers auto-classification
	ContextLevel memory.ContextLevel
	Scope        memory.Scope
	ProjectName  string
	Importance   float64
	Tags         []string
	Metadata     map[string]string
}

// StoreMemory implements store_memory: validates, auto-classifies an
// unset category and context level from the content, persists the unit
// to both the record store (for ID-addressed operations) and the vector
// store (for semantic search), and returns the stored unit.
func (o *Orchestrator) StoreMemory(ctx context.Context, in StoreMemoryInput) (*memory.MemoryUnit, error) {
	category := in.Category
	if category == "" {
		category, _ = o.classifier.Classify(in.Metadata["title"], in.Content, in.Tags)
	}
	level := in.ContextLevel
	if level == "" {
		level = memory.ClassifyContextLevel(in.Content)
	}

	m, err := memory.NewMemoryUnit(in.Content, category, level, in.Scope, in.ProjectName, o.embedder.ModelID())
	if err != nil {
		return nil, err
	}
	if in.Importance != 0 {
		m.Importance = in.Importance
	}
	m.Tags = in.Tags
	m.Metadata = in.Metadata
	m.Provenance = memory.Provenance{Source: "explicit", Confidence: 0.8}
	if err := m.Validate(); err != nil {
		return nil, err
	}

	collection := memoryCollection(in.ProjectName, in.Scope)
	if err := o.persist(ctx, collection, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (o *Orchestrator) persist(ctx context.Context, collection string, m *memory.MemoryUnit) error {
	if err := o.ensureCollection(ctx, collection); err != nil {
		return err
	}
	if _, err := o.store.AddDocuments(ctx, []vectorstore.Document{
		{ID: m.ID, Content: m.Content, Metadata: metadataOf(m), Collection: collection},
	}); err != nil {
		return fmt.Errorf("embedding memory %s: %w", m.ID, err)
	}
	return o.records.put(ctx, collection, m)
}

func (o *Orchestrator) ensureCollection(ctx context.Context, collection string) error {
	exists, err := o.store.CollectionExists(ctx, collection)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return o.store.CreateCollection(ctx, collection, o.embedder.Dimension())
}

func metadataOf(m *memory.MemoryUnit) map[string]interface{} {
	return map[string]interface{}{
		vectorstore.PayloadCategory:       string(m.Category),
		vectorstore.PayloadContextLevel:   string(m.ContextLevel),
		vectorstore.PayloadScope:          string(m.Scope),
		vectorstore.PayloadProjectName:    m.ProjectName,
		vectorstore.PayloadLifecycleState: string(m.LifecycleState),
		vectorstore.PayloadImportance:     m.Importance,
		vectorstore.PayloadCreatedAt:      m.CreatedAt.Unix(),
		vectorstore.PayloadTags:           m.Tags,
	}
}

// RetrievalResult is one ranked hit from RetrieveMemories.
type RetrievalResult struct {
	Memory *memory.MemoryUnit
	Score  float64
}

// RetrieveInput is retrieve_memories' request shape.
type RetrieveInput struct {
	Query        string
	ProjectName  string
	ContextLevel memory.ContextLevel // empty means any level
	SessionID    string              // optional; expands query and dedupes against shown IDs
	K            int
	Mode         search.Mode

	// Advanced filters, pushed down to the vector store.
	Category      memory.Category
	MinImportance *float64
	MaxImportance *float64
	Tags          []string
	DateFrom      *time.Time
	DateTo        *time.Time
}

// storeFilter compiles the request's advanced filters into the vector
// store's typed filter; nil when nothing is constrained.
func (in *RetrieveInput) storeFilter() *vectorstore.Filter {
	if in.Category == "" && in.MinImportance == nil && in.MaxImportance == nil &&
		len(in.Tags) == 0 && in.DateFrom == nil && in.DateTo == nil {
		return nil
	}
	return &vectorstore.Filter{
		Category:      string(in.Category),
		MinImportance: in.MinImportance,
		MaxImportance: in.MaxImportance,
		Tags:          in.Tags,
		DateFrom:      in.DateFrom,
		DateTo:        in.DateTo,
	}
}

// RetrieveMemories implements retrieve_memories: dense search over the
// project's memory collection (plus the global org_memories collection),
// lexical BM25 re-scoring over that candidate pool, fusion, and
// the usage/recency composite re-rank, touching usage stats for every
// returned id.
func (o *Orchestrator) RetrieveMemories(ctx context.Context, in RetrieveInput) ([]RetrievalResult, error) {
	k := in.K
	if k <= 0 {
		k = 10
	}
	// Resolve relative temporal phrases ("yesterday", "last week") into
	// absolute dates before expansion and embedding, so the lexical stage
	// can match stored dates.
	query := memory.ResolveTemporalReferences(in.Query, time.Now())
	if in.SessionID != "" && o.sessions != nil {
		query = o.sessions.ExpandQuery(in.SessionID, query)
		_ = o.sessions.TrackQuery(in.SessionID, in.Query)
	}

	candidateK := k * 4
	pool, err := o.candidatePool(ctx, query, in.ProjectName, candidateK, in.storeFilter())
	if err != nil {
		return nil, err
	}
	if len(pool) == 0 {
		return nil, nil
	}

	fused := search.Fuse(pool, query, o.fusionWithMode(in.Mode))
	fused = o.rerank(ctx, query, fused)

	results := make([]RetrievalResult, 0, len(fused))
	for _, f := range fused {
		m, _, err := o.records.get(ctx, f.Doc.ID)
		if err != nil {
			continue
		}
		if in.ContextLevel != "" && m.ContextLevel != in.ContextLevel {
			continue
		}
		if in.SessionID != "" && o.sessions != nil {
			if _, shown := o.sessions.Shown(in.SessionID)[m.ID]; shown {
				continue
			}
		}
		stats, _ := o.usageStats(ctx, m.ID)
		composite := usageComposite(o.usage, float32(f.Score), m.CreatedAt, stats)
		m.Touch()
		results = append(results, RetrievalResult{Memory: m, Score: composite})
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > k {
		results = results[:k]
	}

	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.Memory.ID
	}
	if o.usage != nil {
		scores := make([]float32, len(results))
		for i, r := range results {
			scores[i] = float32(r.Score)
		}
		o.usage.RecordBatch(ids, scores)
	}
	if in.SessionID != "" && o.sessions != nil {
		_ = o.sessions.MarkShown(in.SessionID, ids)
		_ = o.buffers.BufferTurn(in.ProjectName, in.SessionID, memory.TurnEntry{
			Query:     in.Query,
			ResultIDs: ids,
		})
	}
	return results, nil
}

// rerank runs the optional post-fusion re-ranking stage. A nil reranker
// (the default) leaves the fused order untouched.
func (o *Orchestrator) rerank(ctx context.Context, query string, fused []search.Fused) []search.Fused {
	if o.reranker == nil || len(fused) == 0 {
		return fused
	}
	docs := make([]reranker.Document, len(fused))
	byID := make(map[string]search.Fused, len(fused))
	for i, f := range fused {
		docs[i] = reranker.Document{ID: f.Doc.ID, Content: f.Doc.Content, Score: float32(f.Score)}
		byID[f.Doc.ID] = f
	}
	ranked, err := o.reranker.Rerank(ctx, query, docs, len(docs))
	if err != nil {
		o.logger.Warn("reranker failed, keeping fused order", zap.Error(err))
		return fused
	}
	out := make([]search.Fused, 0, len(ranked))
	for _, r := range ranked {
		f := byID[r.ID]
		out = append(out, f)
	}
	return out
}

func (o *Orchestrator) fusionWithMode(mode search.Mode) search.FusionConfig {
	cfg := o.fusion
	switch mode {
	case search.ModeSemantic:
		cfg.Method = search.MethodWeighted
		cfg.Alpha = search.AlphaOf(1.0)
	case search.ModeKeyword:
		cfg.Method = search.MethodWeighted
		cfg.Alpha = search.AlphaOf(0.0)
	}
	return cfg
}

// candidatePool runs the dense search against the project collection and
// the global collection, returning a merged, deduplicated candidate pool
// for lexical re-scoring.
func (o *Orchestrator) candidatePool(ctx context.Context, query, projectName string, k int, filter *vectorstore.Filter) ([]search.Doc, error) {
	seen := make(map[string]struct{})
	var pool []search.Doc

	names := []string{memoryCollection("", memory.ScopeGlobal)}
	if projectName != "" {
		names = append(names, memoryCollection(projectName, memory.ScopeProject))
	}
	for _, collection := range names {
		exists, err := o.store.CollectionExists(ctx, collection)
		if err != nil || !exists {
			continue
		}
		hits, err := o.store.SearchInCollection(ctx, collection, query, k, filter)
		if err != nil {
			return nil, fmt.Errorf("searching %s: %w", collection, err)
		}
		for _, h := range hits {
			if _, dup := seen[h.ID]; dup {
				continue
			}
			seen[h.ID] = struct{}{}
			pool = append(pool, search.Doc{ID: h.ID, Content: h.Content, Dense: h.Score})
		}
	}
	return pool, nil
}

func (o *Orchestrator) usageStats(ctx context.Context, id string) (struct {
	LastUsed time.Time
	UseCount int64
}, error) {
	type result = struct {
		LastUsed time.Time
		UseCount int64
	}
	if o.usage == nil {
		return result{}, nil
	}
	stats, err := o.usage.GetUsageStats(ctx, id)
	if err != nil || stats == nil {
		return result{}, nil
	}
	return result{LastUsed: stats.LastUsed, UseCount: stats.UseCount}, nil
}

// GetMemoryByID implements get_memory_by_id.
func (o *Orchestrator) GetMemoryByID(ctx context.Context, id string) (*memory.MemoryUnit, error) {
	m, _, err := o.records.get(ctx, id)
	return m, err
}

// DeleteMemory implements delete_memory: removes the unit from both the
// vector store's collection and the record store.
func (o *Orchestrator) DeleteMemory(ctx context.Context, id string) error {
	collection, err := o.records.collectionOf(ctx, id)
	if err != nil {
		return err
	}
	if err := o.store.DeleteDocumentsFromCollection(ctx, collection, []string{id}); err != nil {
		return fmt.Errorf("deleting memory %s from vector store: %w", id, err)
	}
	return o.records.delete(ctx, id)
}

// UpdateMemoryInput is update_memory's request shape; zero-value fields
// are left unchanged except Tags/Metadata, which replace wholesale when
// non-nil (PATCH-style partial update).
type UpdateMemoryInput struct {
	ID         string
	Content    *string
	Importance *float64
	Tags       []string
	Metadata   map[string]string

	// RegenerateEmbedding controls whether a content change re-embeds
	// the memory. Nil means true. With false, the stored vector keeps
	// reflecting the previous content.
	RegenerateEmbedding *bool
}

// UpdateMemory implements update_memory. A content change re-embeds by
// default; with RegenerateEmbedding=false the previous content's vector
// is carried over unchanged, and either way the stored payload
// (importance, tags, lifecycle) is kept in sync for filtering.
func (o *Orchestrator) UpdateMemory(ctx context.Context, in UpdateMemoryInput) (*memory.MemoryUnit, error) {
	m, collection, err := o.records.get(ctx, in.ID)
	if err != nil {
		return nil, err
	}
	oldContent := m.Content

	contentChanged := in.Content != nil && *in.Content != m.Content
	if in.Content != nil {
		m.Content = *in.Content
	}
	if in.Importance != nil {
		m.Importance = *in.Importance
	}
	if in.Tags != nil {
		m.Tags = in.Tags
	}
	if in.Metadata != nil {
		m.Metadata = in.Metadata
	}
	m.UpdatedAt = time.Now()
	if err := m.Validate(); err != nil {
		return nil, err
	}

	regenerate := in.RegenerateEmbedding == nil || *in.RegenerateEmbedding

	doc := vectorstore.Document{ID: m.ID, Content: m.Content, Metadata: metadataOf(m), Collection: collection}
	if !regenerate || !contentChanged {
		// Keep the existing vector: re-derive it from the previous
		// content through the cache (a hit for anything this engine
		// embedded) and hand it to the store so the embedder is never
		// consulted for the new content.
		vector, err := o.embedder.EmbedQuery(ctx, oldContent)
		if err != nil {
			return nil, fmt.Errorf("recovering vector for memory %s: %w", m.ID, err)
		}
		doc.Vector = vector
	}
	if _, err := o.store.AddDocuments(ctx, []vectorstore.Document{doc}); err != nil {
		return nil, fmt.Errorf("updating memory %s in vector store: %w", m.ID, err)
	}

	if err := o.records.put(ctx, collection, m); err != nil {
		return nil, err
	}
	return m, nil
}

// ListMemories implements list_memories/export_memories' shared query
// path; export_memories is this plus a serialization format the MCP
// layer applies (JSON/Markdown), not an orchestrator concern.
func (o *Orchestrator) ListMemories(ctx context.Context, projectName string, level memory.ContextLevel, includeArchived bool, limit int) ([]*memory.MemoryUnit, error) {
	return o.records.list(ctx, listFilter{
		ProjectName:     projectName,
		ContextLevel:    string(level),
		IncludeArchived: includeArchived,
		Limit:           limit,
	})
}

// ImportMemories implements import_memories: re-validates and re-persists
// a batch of units, generating fresh IDs for any that collide with an
// existing record so an import never silently overwrites.
func (o *Orchestrator) ImportMemories(ctx context.Context, units []*memory.MemoryUnit) (int, error) {
	imported := 0
	for _, m := range units {
		if _, _, err := o.records.get(ctx, m.ID); err == nil {
			fresh, err := memory.NewMemoryUnit(m.Content, m.Category, m.ContextLevel, m.Scope, m.ProjectName, m.EmbeddingModel)
			if err != nil {
				o.logger.Warn("skipping unimportable memory", zap.Error(err))
				continue
			}
			fresh.Tags, fresh.Metadata, fresh.Importance, fresh.Provenance = m.Tags, m.Metadata, m.Importance, m.Provenance
			m = fresh
		}
		if err := m.Validate(); err != nil {
			o.logger.Warn("skipping invalid memory on import", zap.String("id", m.ID), zap.Error(err))
			continue
		}
		collection := memoryCollection(m.ProjectName, m.Scope)
		if err := o.persist(ctx, collection, m); err != nil {
			return imported, err
		}
		imported++
	}
	return imported, nil
}

// MigrateMemoryScope implements migrate_memory_scope: moves a memory
// between its project collection and the global one, re-embedding into
// the destination collection and deleting from the source.
func (o *Orchestrator) MigrateMemoryScope(ctx context.Context, id string, newScope memory.Scope, newProjectName string) (*memory.MemoryUnit, error) {
	m, oldCollection, err := o.records.get(ctx, id)
	if err != nil {
		return nil, err
	}
	m.Scope = newScope
	m.ProjectName = newProjectName
	if err := m.Validate(); err != nil {
		return nil, err
	}

	newCollection := memoryCollection(newProjectName, newScope)
	if newCollection != oldCollection {
		if err := o.persist(ctx, newCollection, m); err != nil {
			return nil, err
		}
		if err := o.store.DeleteDocumentsFromCollection(ctx, oldCollection, []string{id}); err != nil {
			o.logger.Warn("orphaned memory left in source collection", zap.String("id", id), zap.Error(err))
		}
		return m, nil
	}
	return m, o.records.put(ctx, newCollection, m)
}

// BulkReclassify implements bulk_reclassify: re-runs the category
// classifier over every active memory in a project and persists any
// category change.
func (o *Orchestrator) BulkReclassify(ctx context.Context, projectName string) (int, error) {
	units, err := o.records.list(ctx, listFilter{ProjectName: projectName, Limit: 10000})
	if err != nil {
		return 0, err
	}
	changed := 0
	for _, m := range units {
		newCategory, _ := o.classifier.Classify(m.Metadata["title"], m.Content, m.Tags)
		if newCategory == m.Category {
			continue
		}
		m.Category = newCategory
		m.UpdatedAt = time.Now()
		collection := memoryCollection(m.ProjectName, m.Scope)
		if err := o.records.put(ctx, collection, m); err != nil {
			return changed, err
		}
		changed++
	}
	return changed, nil
}
