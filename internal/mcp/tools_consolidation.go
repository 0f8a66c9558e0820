package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/fyrsmithlabs/ctxengine/internal/memory"
)

type clusterView struct {
	MemberIDs         []string `json:"member_ids"`
	AverageSimilarity float64  `json:"average_similarity"`
	MinSimilarity     float64  `json:"min_similarity"`
}

func clusterViewOf(c memory.SimilarityCluster) clusterView {
	ids := make([]string, len(c.Members))
	for i, m := range c.Members {
		ids[i] = m.ID
	}
	return clusterView{MemberIDs: ids, AverageSimilarity: c.AverageSimilarity, MinSimilarity: c.MinSimilarity}
}

type findDuplicatesInput struct {
	ProjectName string  `json:"project_name,omitempty"`
	Threshold   float64 `json:"threshold,omitempty" jsonschema:"Similarity threshold, default 0.85"`
}

type findDuplicatesOutput struct {
	Clusters []clusterView `json:"clusters"`
}

type mergeMemoriesInput struct {
	IDs []string `json:"ids" jsonschema:"required,Memory ids to merge into one"`
}

type consolidateInput struct {
	ProjectName string  `json:"project_name,omitempty"`
	Threshold   float64 `json:"threshold,omitempty" jsonschema:"Similarity threshold, default 0.85"`
	MaxClusters int     `json:"max_clusters,omitempty"`
	DryRun      bool    `json:"dry_run,omitempty"`
}

type consolidateOutput struct {
	CreatedMemories  []string `json:"created_memories"`
	ArchivedMemories []string `json:"archived_memories"`
	SkippedCount     int      `json:"skipped_count"`
	TotalProcessed   int      `json:"total_processed"`
	DurationMs       int64    `json:"duration_ms"`
}

type bulkUpdateLevelInput struct {
	ProjectName  string `json:"project_name,omitempty"`
	Category     string `json:"category,omitempty" jsonschema:"Only re-level memories of this category when set"`
	NewLevel     string `json:"new_level" jsonschema:"required,USER_PREFERENCE, PROJECT_CONTEXT, or SESSION_STATE"`
}

func (s *Server) registerConsolidationTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "find_duplicate_memories",
		Description: "Find clusters of near-duplicate active memories in a project",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args findDuplicatesInput) (*mcp.CallToolResult, findDuplicatesOutput, error) {
		threshold := args.Threshold
		if threshold <= 0 {
			threshold = 0.85
		}
		clusters, err := s.orch.FindDuplicateMemories(ctx, args.ProjectName, threshold)
		if err != nil {
			return nil, findDuplicatesOutput{}, fmt.Errorf("find_duplicate_memories: %w", err)
		}
		out := findDuplicatesOutput{Clusters: make([]clusterView, len(clusters))}
		for i, c := range clusters {
			out.Clusters[i] = clusterViewOf(c)
		}
		return &mcp.CallToolResult{Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("%d duplicate clusters", len(clusters))},
		}}, out, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "merge_memories",
		Description: "Merge an explicit set of memories into one synthesized memory, archiving the sources",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args mergeMemoriesInput) (*mcp.CallToolResult, storeMemoryOutput, error) {
		m, err := s.orch.MergeMemories(ctx, args.IDs)
		if err != nil {
			return nil, storeMemoryOutput{}, fmt.Errorf("merge_memories: %w", err)
		}
		return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: "merged into " + m.ID}}}, storeMemoryOutput{Memory: s.viewOf(m)}, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "consolidate_memories",
		Description: "Run an on-demand clustering-and-merge consolidation pass over a project",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args consolidateInput) (*mcp.CallToolResult, consolidateOutput, error) {
		result, err := s.orch.ConsolidateMemories(ctx, args.ProjectName, memory.ConsolidationOptions{
			Threshold:   args.Threshold,
			MaxClusters: args.MaxClusters,
			DryRun:      args.DryRun,
		})
		if err != nil {
			return nil, consolidateOutput{}, fmt.Errorf("consolidate_memories: %w", err)
		}
		out := consolidateOutput{
			CreatedMemories:  result.CreatedMemories,
			ArchivedMemories: result.ArchivedMemories,
			SkippedCount:     result.SkippedCount,
			TotalProcessed:   result.TotalProcessed,
			DurationMs:       result.Duration.Milliseconds(),
		}
		return &mcp.CallToolResult{Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("consolidated %d of %d memories", len(result.ArchivedMemories), result.TotalProcessed)},
		}}, out, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "bulk_update_context_level",
		Description: "Re-level every active memory in a project matching an optional category filter",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args bulkUpdateLevelInput) (*mcp.CallToolResult, countOutput, error) {
		n, err := s.orch.BulkUpdateContextLevel(ctx, args.ProjectName, memory.Category(args.Category), memory.ContextLevel(args.NewLevel))
		if err != nil {
			return nil, countOutput{}, fmt.Errorf("bulk_update_context_level: %w", err)
		}
		return &mcp.CallToolResult{Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("re-leveled %d memories", n)},
		}}, countOutput{Count: n}, nil
	})
}
