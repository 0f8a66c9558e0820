package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/fyrsmithlabs/ctxengine/internal/codeunits"
	"github.com/fyrsmithlabs/ctxengine/internal/indexer"
	"github.com/fyrsmithlabs/ctxengine/internal/orchestrator"
	"github.com/fyrsmithlabs/ctxengine/internal/quality"
)

type codeResultView struct {
	ID       string                 `json:"id"`
	Content  string                 `json:"content"`
	Score    float64                `json:"score"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

func (s *Server) codeResultViewOf(r orchestrator.CodeSearchResult) codeResultView {
	return codeResultView{ID: r.ID, Content: s.scrub(r.Content), Score: r.Score, Metadata: r.Metadata}
}

type searchCodeInput struct {
	Query       string `json:"query" jsonschema:"required"`
	ProjectName string `json:"project_name" jsonschema:"required"`
	Language    string `json:"language,omitempty"`
	UnitType    string `json:"unit_type,omitempty" jsonschema:"function, class, method, module, or constant"`
	K           int    `json:"k,omitempty"`
}

type searchCodeOutput struct {
	Results []codeResultView `json:"results"`
}

type findSimilarCodeInput struct {
	ProjectName string `json:"project_name" jsonschema:"required"`
	UnitID      string `json:"unit_id" jsonschema:"required"`
	K           int    `json:"k,omitempty"`
}

type searchAllProjectsInput struct {
	Query          string `json:"query" jsonschema:"required"`
	CurrentProject string `json:"current_project,omitempty"`
	SearchAll      bool   `json:"search_all,omitempty" jsonschema:"Search every opted-in project, not just the current one"`
	K              int    `json:"k,omitempty"`
}

type searchAllProjectsOutput struct {
	ResultsByProject map[string][]codeResultView `json:"results_by_project"`
}

type indexCodebaseInput struct {
	ProjectName string `json:"project_name" jsonschema:"required"`
	ProjectPath string `json:"project_path" jsonschema:"required"`
	Force       bool   `json:"force,omitempty"`
}

type indexStatsOutput struct {
	FilesScanned int      `json:"files_scanned"`
	FilesChanged int      `json:"files_changed"`
	FilesSkipped int      `json:"files_skipped"`
	FilesRemoved int      `json:"files_removed"`
	UnitsAdded   int      `json:"units_added"`
	UnitsRemoved int      `json:"units_removed"`
	Errors       []string `json:"errors,omitempty"`
}

type reindexProjectInput struct {
	ProjectName string `json:"project_name" jsonschema:"required"`
	ProjectPath string `json:"project_path" jsonschema:"required"`
	FullClear   bool   `json:"full_clear,omitempty"`
}

type indexedFileView struct {
	FilePath   string `json:"file_path"`
	Language   string `json:"language"`
	ModifiedAt string `json:"modified_at"`
	UnitCount  int    `json:"unit_count"`
}

type getIndexedFilesOutput struct {
	Files []indexedFileView `json:"files"`
}

type indexedUnitView struct {
	ID        string `json:"id"`
	FilePath  string `json:"file_path"`
	Type      string `json:"type"`
	Name      string `json:"name"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
}

type listIndexedUnitsInput struct {
	ProjectName string `json:"project_name" jsonschema:"required"`
	FilePath    string `json:"file_path,omitempty"`
}

type listIndexedUnitsOutput struct {
	Units []indexedUnitView `json:"units"`
}

type analyzeQualityInput struct {
	ProjectName string `json:"project_name" jsonschema:"required"`
	UnitID      string `json:"unit_id" jsonschema:"required"`
	UnitType    string `json:"unit_type" jsonschema:"required,function, class, method, module, or constant"`
	Name        string `json:"name,omitempty"`
	Signature   string `json:"signature,omitempty"`
	StartLine   int    `json:"start_line,omitempty"`
	EndLine     int    `json:"end_line,omitempty"`
	Content     string `json:"content" jsonschema:"required"`
}

type qualityMetricsView struct {
	CyclomaticComplexity int      `json:"cyclomatic_complexity"`
	LineCount            int      `json:"line_count"`
	NestingDepth         int      `json:"nesting_depth"`
	ParameterCount       int      `json:"parameter_count"`
	HasDocumentation     bool     `json:"has_documentation"`
	DuplicationScore     float64  `json:"duplication_score"`
	MaintainabilityIndex float64  `json:"maintainability_index"`
	QualityFlags         []string `json:"quality_flags,omitempty"`
}

func (s *Server) registerCodeTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search_code",
		Description: "Search a project's indexed code units via hybrid dense+lexical search",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args searchCodeInput) (*mcp.CallToolResult, searchCodeOutput, error) {
		hits, err := s.orch.SearchCode(ctx, orchestrator.CodeSearchInput{
			Query: args.Query, ProjectName: args.ProjectName, Language: args.Language, UnitType: args.UnitType, K: args.K,
		})
		if err != nil {
			return nil, searchCodeOutput{}, fmt.Errorf("search_code: %w", err)
		}
		out := searchCodeOutput{Results: make([]codeResultView, len(hits))}
		for i, h := range hits {
			out.Results[i] = s.codeResultViewOf(h)
		}
		return &mcp.CallToolResult{Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("%d code matches", len(hits))},
		}}, out, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "find_similar_code",
		Description: "Find code units similar to an already-indexed unit",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args findSimilarCodeInput) (*mcp.CallToolResult, searchCodeOutput, error) {
		hits, err := s.orch.FindSimilarCode(ctx, args.ProjectName, args.UnitID, args.K)
		if err != nil {
			return nil, searchCodeOutput{}, fmt.Errorf("find_similar_code: %w", err)
		}
		out := searchCodeOutput{Results: make([]codeResultView, len(hits))}
		for i, h := range hits {
			out.Results[i] = s.codeResultViewOf(h)
		}
		return &mcp.CallToolResult{Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("%d similar units", len(hits))},
		}}, out, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search_all_projects",
		Description: "Search code across every opted-in project plus the current one",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args searchAllProjectsInput) (*mcp.CallToolResult, searchAllProjectsOutput, error) {
		byProject, err := s.orch.SearchAllProjects(ctx, args.Query, args.CurrentProject, args.SearchAll, args.K)
		if err != nil {
			return nil, searchAllProjectsOutput{}, fmt.Errorf("search_all_projects: %w", err)
		}
		out := searchAllProjectsOutput{ResultsByProject: make(map[string][]codeResultView, len(byProject))}
		for project, hits := range byProject {
			views := make([]codeResultView, len(hits))
			for i, h := range hits {
				views[i] = s.codeResultViewOf(h)
			}
			out.ResultsByProject[project] = views
		}
		return &mcp.CallToolResult{Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("searched %d projects", len(byProject))},
		}}, out, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "index_codebase",
		Description: "Index (or force re-index) a project's source tree",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args indexCodebaseInput) (*mcp.CallToolResult, indexStatsOutput, error) {
		stats, err := s.orch.IndexCodebase(ctx, args.ProjectName, args.ProjectPath, args.Force)
		if err != nil {
			return nil, indexStatsOutput{}, fmt.Errorf("index_codebase: %w", err)
		}
		_ = s.orch.RefreshDependencyGraph(ctx, args.ProjectName)
		return &mcp.CallToolResult{Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("indexed %d files", stats.FilesScanned)},
		}}, indexStatsOutputOf(stats), nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "reindex_project",
		Description: "Incrementally re-index a project, re-parsing only files whose content changed",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args reindexProjectInput) (*mcp.CallToolResult, indexStatsOutput, error) {
		stats, err := s.orch.ReindexProject(ctx, args.ProjectName, args.ProjectPath, args.FullClear)
		if err != nil {
			return nil, indexStatsOutput{}, fmt.Errorf("reindex_project: %w", err)
		}
		_ = s.orch.RefreshDependencyGraph(ctx, args.ProjectName)
		return &mcp.CallToolResult{Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("changed %d files", stats.FilesChanged)},
		}}, indexStatsOutputOf(stats), nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_indexed_files",
		Description: "List every file currently indexed for a project",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args projectOnlyInput) (*mcp.CallToolResult, getIndexedFilesOutput, error) {
		files, err := s.orch.GetIndexedFiles(ctx, args.ProjectName)
		if err != nil {
			return nil, getIndexedFilesOutput{}, fmt.Errorf("get_indexed_files: %w", err)
		}
		out := getIndexedFilesOutput{Files: make([]indexedFileView, len(files))}
		for i, f := range files {
			out.Files[i] = indexedFileView{FilePath: f.FilePath, Language: f.Language, ModifiedAt: f.ModifiedAt, UnitCount: f.UnitCount}
		}
		return &mcp.CallToolResult{Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("%d indexed files", len(files))},
		}}, out, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "list_indexed_units",
		Description: "List indexed code units for a project, optionally narrowed to one file",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args listIndexedUnitsInput) (*mcp.CallToolResult, listIndexedUnitsOutput, error) {
		units, err := s.orch.ListIndexedUnits(ctx, args.ProjectName, args.FilePath)
		if err != nil {
			return nil, listIndexedUnitsOutput{}, fmt.Errorf("list_indexed_units: %w", err)
		}
		out := listIndexedUnitsOutput{Units: make([]indexedUnitView, len(units))}
		for i, u := range units {
			out.Units[i] = indexedUnitView{ID: u.ID, FilePath: u.FilePath, Type: u.Type, Name: u.Name, StartLine: u.StartLine, EndLine: u.EndLine}
		}
		return &mcp.CallToolResult{Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("%d units", len(units))},
		}}, out, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "analyze_code_quality",
		Description: "Compute complexity, duplication, and maintainability metrics for a code unit",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args analyzeQualityInput) (*mcp.CallToolResult, qualityMetricsView, error) {
		unit := codeunits.Unit{
			Type:      codeunits.UnitType(args.UnitType),
			Name:      args.Name,
			Signature: args.Signature,
			StartLine: args.StartLine,
			EndLine:   args.EndLine,
			Content:   args.Content,
		}
		raw, err := s.orch.AnalyzeCodeQuality(ctx, args.ProjectName, args.UnitID, unit)
		if err != nil {
			return nil, qualityMetricsView{}, fmt.Errorf("analyze_code_quality: %w", err)
		}
		view := qualityMetricsFromAny(raw)
		return &mcp.CallToolResult{Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("maintainability index %.1f", view.MaintainabilityIndex)},
		}}, view, nil
	})
}

func indexStatsOutputOf(stats *indexer.Stats) indexStatsOutput {
	if stats == nil {
		return indexStatsOutput{}
	}
	return indexStatsOutput{
		FilesScanned: stats.FilesScanned,
		FilesChanged: stats.FilesChanged,
		FilesSkipped: stats.FilesSkipped,
		FilesRemoved: stats.FilesRemoved,
		UnitsAdded:   stats.UnitsAdded,
		UnitsRemoved: stats.UnitsRemoved,
		Errors:       stats.Errors,
	}
}

func qualityMetricsFromAny(raw interface{}) qualityMetricsView {
	m, ok := raw.(quality.Metrics)
	if !ok {
		return qualityMetricsView{}
	}
	return qualityMetricsView{
		CyclomaticComplexity: m.CyclomaticComplexity,
		LineCount:            m.LineCount,
		NestingDepth:         m.NestingDepth,
		ParameterCount:       m.ParameterCount,
		HasDocumentation:     m.HasDocumentation,
		DuplicationScore:     m.DuplicationScore,
		MaintainabilityIndex: m.MaintainabilityIndex,
		QualityFlags:         m.QualityFlags,
	}
}
