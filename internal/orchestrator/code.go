package orchestrator

import (
	"context"
	"fmt"

	"github.com/fyrsmithlabs/ctxengine/internal/codeunits"
	"github.com/fyrsmithlabs/ctxengine/internal/indexer"
	"github.com/fyrsmithlabs/ctxengine/internal/search"
	"github.com/fyrsmithlabs/ctxengine/internal/vectorstore"
)

// CodeSearchInput is search_code's request shape.
type CodeSearchInput struct {
	Query       string
	ProjectName string
	Language    string // empty means any
	UnitType    string // empty means any
	K           int
}

// CodeSearchResult is one ranked hit from SearchCode/FindSimilarCode.
type CodeSearchResult struct {
	ID       string
	Content  string
	Score    float64
	Metadata map[string]interface{}
}

// SearchCode implements search_code: dense+BM25 fused search against a
// single project's code-unit collection, optionally narrowed by language
// or unit type via vector-store metadata filters.
func (o *Orchestrator) SearchCode(ctx context.Context, in CodeSearchInput) ([]CodeSearchResult, error) {
	k := in.K
	if k <= 0 {
		k = 10
	}
	collection := codeCollection(in.ProjectName)
	exists, err := o.store.CollectionExists(ctx, collection)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}

	var filterArg *vectorstore.Filter
	if in.Language != "" || in.UnitType != "" {
		filterArg = &vectorstore.Filter{Language: in.Language, UnitType: in.UnitType}
	}

	hits, err := o.store.SearchInCollection(ctx, collection, in.Query, k*4, filterArg)
	if err != nil {
		return nil, fmt.Errorf("searching %s: %w", collection, err)
	}
	if len(hits) == 0 {
		return nil, nil
	}

	pool := make([]search.Doc, len(hits))
	byID := make(map[string]map[string]interface{}, len(hits))
	for i, h := range hits {
		pool[i] = search.Doc{ID: h.ID, Content: h.Content, Dense: h.Score}
		byID[h.ID] = h.Metadata
	}

	fused := search.Fuse(pool, in.Query, o.fusion)
	if len(fused) > k {
		fused = fused[:k]
	}
	out := make([]CodeSearchResult, len(fused))
	for i, f := range fused {
		out[i] = CodeSearchResult{ID: f.Doc.ID, Content: f.Doc.Content, Score: f.Score, Metadata: byID[f.Doc.ID]}
	}
	return out, nil
}

// FindSimilarCode implements find_similar_code: dense-only nearest
// neighbours to an existing unit's own content, excluding itself.
func (o *Orchestrator) FindSimilarCode(ctx context.Context, projectName, unitID string, k int) ([]CodeSearchResult, error) {
	if k <= 0 {
		k = 5
	}
	collection := codeCollection(projectName)
	// The unit's content isn't addressable by ID through the Store
	// interface (no get-by-id), so the caller is expected to have the
	// unit's content already (e.g. from a prior SearchCode hit); here we
	// re-run a content-based search seeded by the stored unit, located
	// by scanning the project's manifest once.
	content, err := o.unitContent(ctx, projectName, unitID)
	if err != nil {
		return nil, err
	}
	hits, err := o.store.SearchInCollection(ctx, collection, content, k+1, nil)
	if err != nil {
		return nil, fmt.Errorf("searching %s: %w", collection, err)
	}
	out := make([]CodeSearchResult, 0, len(hits))
	for _, h := range hits {
		if h.ID == unitID {
			continue
		}
		out = append(out, CodeSearchResult{ID: h.ID, Content: h.Content, Score: float64(h.Score), Metadata: h.Metadata})
		if len(out) == k {
			break
		}
	}
	return out, nil
}

// unitContent recovers a unit's source text from the project's manifest,
// the indexer's own record of what it embedded (the vector store exposes
// no get-by-id, so this is the only addressable copy kept after indexing
// besides the vector itself).
func (o *Orchestrator) unitContent(ctx context.Context, projectName, unitID string) (string, error) {
	if o.indexer == nil {
		return "", fmt.Errorf("code indexing is not configured")
	}
	recs, err := o.indexer.Manifest().ListRecords(ctx, projectName)
	if err != nil {
		return "", err
	}
	for _, rec := range recs {
		for _, u := range rec.Units {
			if u.ID == unitID {
				return u.Content, nil
			}
		}
	}
	return "", fmt.Errorf("unit %s not found in project %s manifest", unitID, projectName)
}

// SearchAllProjects implements search_all_projects: fans the query
// out across every project currently permitted by the consent registry
// plus the current project, merging and re-fusing the combined pool.
func (o *Orchestrator) SearchAllProjects(ctx context.Context, query, currentProject string, searchAll bool, k int) (map[string][]CodeSearchResult, error) {
	if k <= 0 {
		k = 10
	}
	projects := map[string]struct{}{}
	if currentProject != "" {
		projects[currentProject] = struct{}{}
	}
	if o.consent != nil {
		searchable, err := o.consent.GetSearchableProjects(ctx, currentProject, searchAll)
		if err != nil {
			return nil, err
		}
		for p := range searchable {
			projects[p] = struct{}{}
		}
	}

	out := make(map[string][]CodeSearchResult, len(projects))
	for p := range projects {
		hits, err := o.SearchCode(ctx, CodeSearchInput{Query: query, ProjectName: p, K: k})
		if err != nil {
			return nil, fmt.Errorf("searching project %s: %w", p, err)
		}
		if len(hits) > 0 {
			out[p] = hits
		}
	}
	return out, nil
}

// IndexCodebase implements index_codebase: an initial or forced full pass
// over a project's source tree.
func (o *Orchestrator) IndexCodebase(ctx context.Context, projectName, projectPath string, force bool) (*indexer.Stats, error) {
	if o.indexer == nil {
		return nil, fmt.Errorf("code indexing is not configured")
	}
	return o.indexer.IndexProject(ctx, projectName, projectPath, indexer.Options{Force: force})
}

// ReindexProject implements reindex_project: an incremental pass that
// only re-parses/re-embeds files whose content hash changed, optionally
// clearing the project's collection first.
func (o *Orchestrator) ReindexProject(ctx context.Context, projectName, projectPath string, fullClear bool) (*indexer.Stats, error) {
	if o.indexer == nil {
		return nil, fmt.Errorf("code indexing is not configured")
	}
	return o.indexer.IndexProject(ctx, projectName, projectPath, indexer.Options{FullClear: fullClear})
}

// IndexedFile is one row of get_indexed_files.
type IndexedFile struct {
	FilePath    string
	Language    string
	ModifiedAt  string
	UnitCount   int
}

// GetIndexedFiles implements get_indexed_files by reading the indexer's
// manifest, the system of record for what has been indexed (the vector
// store itself has no list-all capability, by design).
func (o *Orchestrator) GetIndexedFiles(ctx context.Context, projectName string) ([]IndexedFile, error) {
	if o.indexer == nil {
		return nil, fmt.Errorf("code indexing is not configured")
	}
	recs, err := o.indexer.Manifest().ListRecords(ctx, projectName)
	if err != nil {
		return nil, err
	}
	out := make([]IndexedFile, len(recs))
	for i, rec := range recs {
		out[i] = IndexedFile{
			FilePath:   rec.FilePath,
			Language:   rec.Language,
			ModifiedAt: rec.ModifiedAt.Format("2006-01-02T15:04:05Z07:00"),
			UnitCount:  len(rec.Units),
		}
	}
	return out, nil
}

// IndexedUnit is one row of list_indexed_units.
type IndexedUnit struct {
	ID        string
	FilePath  string
	Type      string
	Name      string
	StartLine int
	EndLine   int
}

// ListIndexedUnits implements list_indexed_units, optionally narrowed to
// a single file within the project.
func (o *Orchestrator) ListIndexedUnits(ctx context.Context, projectName, filePath string) ([]IndexedUnit, error) {
	if o.indexer == nil {
		return nil, fmt.Errorf("code indexing is not configured")
	}
	recs, err := o.indexer.Manifest().ListRecords(ctx, projectName)
	if err != nil {
		return nil, err
	}
	var out []IndexedUnit
	for _, rec := range recs {
		if filePath != "" && rec.FilePath != filePath {
			continue
		}
		for _, u := range rec.Units {
			out = append(out, IndexedUnit{
				ID: u.ID, FilePath: rec.FilePath, Type: u.Type, Name: u.Name,
				StartLine: u.StartLine, EndLine: u.EndLine,
			})
		}
	}
	return out, nil
}

// StatusReport is get_status' response shape: a coarse health/count
// summary across every subsystem the orchestrator wires together.
type StatusReport struct {
	Collections       []string
	MemoryCount       int
	TrackedUsageItems int
	ActiveSessions    int
	OptedInProjects   int
}

// GetStatus implements get_status.
func (o *Orchestrator) GetStatus(ctx context.Context) (*StatusReport, error) {
	collections, err := o.store.ListCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing collections: %w", err)
	}
	report := &StatusReport{Collections: collections}

	if units, err := o.records.list(ctx, listFilter{Limit: 1 << 30}); err == nil {
		report.MemoryCount = len(units)
	}
	if o.usage != nil {
		report.TrackedUsageItems = o.usage.PendingCount()
	}
	if o.sessions != nil {
		report.ActiveSessions = o.sessions.ActiveCount()
	}
	if o.consent != nil {
		if opted, err := o.consent.ListOptedIn(ctx); err == nil {
			report.OptedInProjects = len(opted)
		}
	}
	return report, nil
}

// codeunitsNeighborLookup is the concrete quality.NeighborLookup backing
// the Orchestrator wires into its Analyzer: it searches a project's code
// collection for near-duplicates of a candidate unit's content.
type codeunitsNeighborLookup struct {
	o *Orchestrator
}

// NearestCodeNeighbors implements quality.NeighborLookup.
func (n *codeunitsNeighborLookup) NearestCodeNeighbors(ctx context.Context, projectName, excludeID, content string, k int) ([]float32, error) {
	collection := codeCollection(projectName)
	exists, err := n.o.store.CollectionExists(ctx, collection)
	if err != nil || !exists {
		return nil, err
	}
	hits, err := n.o.store.SearchInCollection(ctx, collection, content, k+1, nil)
	if err != nil {
		return nil, err
	}
	out := make([]float32, 0, len(hits))
	for _, h := range hits {
		if h.ID == excludeID {
			continue
		}
		out = append(out, h.Score)
		if len(out) == k {
			break
		}
	}
	return out, nil
}

// AnalyzeCodeQuality implements analyze_code_quality: computes 
// metrics for a freshly-parsed unit against its project's stored corpus.
func (o *Orchestrator) AnalyzeCodeQuality(ctx context.Context, projectName, unitID string, unit codeunits.Unit) (interface{}, error) {
	if o.quality == nil {
		return nil, fmt.Errorf("quality analysis is not configured")
	}
	m := o.quality.Analyze(ctx, projectName, unitID, unit)
	return m, nil
}
