package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/ctxengine/internal/memory"
	"go.uber.org/zap"
)

// memoryConsolidator implements memory.Consolidator against the
// Orchestrator's own record store and vector store: it finds clusters of
// similar ACTIVE memories by running each memory's own content back
// through the project's memory collection, unions overlapping matches via
// a simple union-find, and merges each cluster into one synthesized
// memory, archiving the sources with attribution.
//
// No LLM call is involved: consolidation is deterministic concatenation
// plus provenance bookkeeping, so its output is reproducible from the
// sources alone.
type memoryConsolidator struct {
	o *Orchestrator
}

func (o *Orchestrator) consolidator() *memoryConsolidator {
	return &memoryConsolidator{o: o}
}

// Consolidator exposes the orchestrator's consolidation implementation
// for the periodic consolidation scheduler.
func (o *Orchestrator) Consolidator() memory.Consolidator {
	return o.consolidator()
}

// FindSimilarClusters implements memory.Consolidator.
func (c *memoryConsolidator) FindSimilarClusters(ctx context.Context, projectName string, threshold float64) ([]memory.SimilarityCluster, error) {
	units, err := c.o.records.list(ctx, listFilter{ProjectName: projectName, Limit: 10000})
	if err != nil {
		return nil, err
	}
	if len(units) < 2 {
		return nil, nil
	}

	byID := make(map[string]*memory.MemoryUnit, len(units))
	parent := make(map[string]string, len(units))
	var find func(string) string
	find = func(id string) string {
		if parent[id] != id {
			parent[id] = find(parent[id])
		}
		return parent[id]
	}
	union := func(a, b string) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[ra] = rb
		}
	}
	for _, m := range units {
		byID[m.ID] = m
		parent[m.ID] = m.ID
	}

	collection := memoryCollection(projectName, memory.ScopeProject)
	if projectName == "" {
		collection = memoryCollection(projectName, memory.ScopeGlobal)
	}
	for _, m := range units {
		hits, err := c.o.store.SearchInCollection(ctx, collection, m.Content, 6, nil)
		if err != nil {
			return nil, fmt.Errorf("searching neighbours of %s: %w", m.ID, err)
		}
		for _, h := range hits {
			if h.ID == m.ID {
				continue
			}
			if _, ok := byID[h.ID]; !ok {
				continue // neighbour belongs to a different project/scope
			}
			if float64(h.Score) >= threshold {
				union(m.ID, h.ID)
			}
		}
	}

	groups := make(map[string][]*memory.MemoryUnit)
	for id := range byID {
		root := find(id)
		groups[root] = append(groups[root], byID[id])
	}

	var clusters []memory.SimilarityCluster
	for _, members := range groups {
		if len(members) < 2 {
			continue
		}
		clusters = append(clusters, memory.SimilarityCluster{
			Members:           members,
			AverageSimilarity: threshold,
			MinSimilarity:     threshold,
		})
	}
	return clusters, nil
}

// MergeCluster implements memory.Consolidator: concatenates every
// member's content under a synthesized memory, archives the sources, and
// persists/embeds the synthesized result.
func (c *memoryConsolidator) MergeCluster(ctx context.Context, cluster *memory.SimilarityCluster) (*memory.MemoryUnit, error) {
	if len(cluster.Members) == 0 {
		return nil, fmt.Errorf("cannot merge an empty cluster")
	}
	first := cluster.Members[0]

	var content string
	var sourceIDs []string
	var maxImportance float64
	tagSet := map[string]struct{}{}
	for i, m := range cluster.Members {
		if i > 0 {
			content += "\n---\n"
		}
		content += m.Content
		sourceIDs = append(sourceIDs, m.ID)
		if m.Importance > maxImportance {
			maxImportance = m.Importance
		}
		for _, t := range m.Tags {
			tagSet[t] = struct{}{}
		}
	}
	tags := make([]string, 0, len(tagSet))
	for t := range tagSet {
		tags = append(tags, t)
	}

	merged, err := memory.NewMemoryUnit(content, first.Category, first.ContextLevel, first.Scope, first.ProjectName, first.EmbeddingModel)
	if err != nil {
		return nil, err
	}
	merged.Importance = maxImportance
	merged.Tags = tags
	merged.Provenance = memory.Provenance{Source: "consolidation", Confidence: cluster.AverageSimilarity}
	if err := merged.Validate(); err != nil {
		return nil, err
	}

	collection := memoryCollection(merged.ProjectName, merged.Scope)
	if err := c.o.persist(ctx, collection, merged); err != nil {
		return nil, err
	}

	mergedID := merged.ID
	for _, src := range cluster.Members {
		src.LifecycleState = memory.StateArchived
		src.ConsolidationID = &mergedID
		src.UpdatedAt = time.Now()
		srcCollection := memoryCollection(src.ProjectName, src.Scope)
		if err := c.o.records.put(ctx, srcCollection, src); err != nil {
			c.o.logger.Warn("failed archiving consolidated source", zap.Error(err))
		}
	}
	return merged, nil
}

// Consolidate implements memory.Consolidator: the full find-then-merge
// pass for one project.
func (c *memoryConsolidator) Consolidate(ctx context.Context, projectName string, opts memory.ConsolidationOptions) (*memory.ConsolidationResult, error) {
	start := time.Now()
	threshold := opts.Threshold
	if threshold <= 0 {
		threshold = 0.85
	}
	clusters, err := c.FindSimilarClusters(ctx, projectName, threshold)
	if err != nil {
		return nil, err
	}
	if opts.MaxClusters > 0 && len(clusters) > opts.MaxClusters {
		clusters = clusters[:opts.MaxClusters]
	}

	result := &memory.ConsolidationResult{}
	for _, cluster := range clusters {
		result.TotalProcessed += len(cluster.Members)
		if opts.DryRun {
			result.SkippedCount += len(cluster.Members)
			continue
		}
		merged, err := c.MergeCluster(ctx, &cluster)
		if err != nil {
			result.SkippedCount += len(cluster.Members)
			continue
		}
		result.CreatedMemories = append(result.CreatedMemories, merged.ID)
		for _, m := range cluster.Members {
			result.ArchivedMemories = append(result.ArchivedMemories, m.ID)
		}
	}
	result.Duration = time.Since(start)
	return result, nil
}

// FindDuplicateMemories implements find_duplicate_memories.
func (o *Orchestrator) FindDuplicateMemories(ctx context.Context, projectName string, threshold float64) ([]memory.SimilarityCluster, error) {
	return o.consolidator().FindSimilarClusters(ctx, projectName, threshold)
}

// MergeMemories implements merge_memories: merges an explicit, caller-
// chosen set of memory IDs (as opposed to consolidate_memories' automatic
// clustering) into one synthesized memory.
func (o *Orchestrator) MergeMemories(ctx context.Context, ids []string) (*memory.MemoryUnit, error) {
	members := make([]*memory.MemoryUnit, 0, len(ids))
	for _, id := range ids {
		m, _, err := o.records.get(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("loading memory %s: %w", id, err)
		}
		members = append(members, m)
	}
	cluster := memory.SimilarityCluster{Members: members, AverageSimilarity: 1.0, MinSimilarity: 1.0}
	return o.consolidator().MergeCluster(ctx, &cluster)
}

// ConsolidateMemories implements consolidate_memories (the on-demand
// trigger for the same pass the scheduler runs periodically).
func (o *Orchestrator) ConsolidateMemories(ctx context.Context, projectName string, opts memory.ConsolidationOptions) (*memory.ConsolidationResult, error) {
	return o.consolidator().Consolidate(ctx, projectName, opts)
}

// BulkUpdateContextLevel implements bulk_update_context_level: re-levels
// every ACTIVE memory in a project matching an optional category filter.
func (o *Orchestrator) BulkUpdateContextLevel(ctx context.Context, projectName string, category memory.Category, newLevel memory.ContextLevel) (int, error) {
	units, err := o.records.list(ctx, listFilter{ProjectName: projectName, Category: string(category), Limit: 10000})
	if err != nil {
		return 0, err
	}
	updated := 0
	for _, m := range units {
		if m.ContextLevel == newLevel {
			continue
		}
		m.ContextLevel = newLevel
		m.UpdatedAt = time.Now()
		if err := m.Validate(); err != nil {
			o.logger.Warn("skipping invalid bulk update", zap.Error(err))
			continue
		}
		collection := memoryCollection(m.ProjectName, m.Scope)
		if err := o.records.put(ctx, collection, m); err != nil {
			return updated, err
		}
		updated++
	}
	return updated, nil
}
