package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/fyrsmithlabs/ctxengine/internal/depgraph"
)

type fileDependencyInput struct {
	ProjectName string `json:"project_name" jsonschema:"required"`
	FilePath    string `json:"file_path" jsonschema:"required"`
	Transitive  bool   `json:"transitive,omitempty" jsonschema:"Walk the full transitive closure instead of direct edges"`
	MaxDepth    int    `json:"max_depth,omitempty" jsonschema:"BFS depth bound when transitive, 0 = unbounded"`
}

type fileListOutput struct {
	Files []string `json:"files"`
}

type findDependencyPathInput struct {
	ProjectName string `json:"project_name" jsonschema:"required"`
	Source      string `json:"source" jsonschema:"required"`
	Target      string `json:"target" jsonschema:"required"`
	MaxDepth    int    `json:"max_depth,omitempty" jsonschema:"0 = unbounded"`
}

type dependencyPathOutput struct {
	Path  []string `json:"path,omitempty"`
	Found bool     `json:"found"`
}

type dependencyStatsOutput struct {
	FileCount            int        `json:"file_count"`
	EdgeCount            int        `json:"edge_count"`
	CircularDependencyCount int    `json:"circular_dependency_count"`
	Cycles               [][]string `json:"cycles,omitempty"`
}

type dependencyGraphInput struct {
	ProjectName string `json:"project_name" jsonschema:"required"`
	Format      string `json:"format,omitempty" jsonschema:"dot, json, or mermaid (default json)"`
	FilePattern string `json:"file_pattern,omitempty" jsonschema:"Glob filter against file path"`
	Language    string `json:"language,omitempty"`
	MaxDepth    int    `json:"max_depth,omitempty" jsonschema:"BFS depth from entry points, 0 = unbounded"`
}

type dependencyGraphOutput struct {
	Format string `json:"format"`
	Graph  string `json:"graph"`
}

// registerGraphTools registers the dependency-graph tool surface:
// get_file_dependencies, get_file_dependents, find_dependency_path,
// get_dependency_stats, and get_dependency_graph.
func (s *Server) registerGraphTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_file_dependencies",
		Description: "List the files a project file imports, directly or transitively",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args fileDependencyInput) (*mcp.CallToolResult, fileListOutput, error) {
		files, err := s.orch.GetFileDependencies(ctx, args.ProjectName, args.FilePath, args.Transitive, args.MaxDepth)
		if err != nil {
			return nil, fileListOutput{}, fmt.Errorf("get_file_dependencies: %w", err)
		}
		return &mcp.CallToolResult{Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("%d dependencies", len(files))},
		}}, fileListOutput{Files: files}, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_file_dependents",
		Description: "List the files that import a project file, directly or transitively",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args fileDependencyInput) (*mcp.CallToolResult, fileListOutput, error) {
		files, err := s.orch.GetFileDependents(ctx, args.ProjectName, args.FilePath, args.Transitive, args.MaxDepth)
		if err != nil {
			return nil, fileListOutput{}, fmt.Errorf("get_file_dependents: %w", err)
		}
		return &mcp.CallToolResult{Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("%d dependents", len(files))},
		}}, fileListOutput{Files: files}, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "find_dependency_path",
		Description: "Find the shortest import path between two project files",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args findDependencyPathInput) (*mcp.CallToolResult, dependencyPathOutput, error) {
		path, err := s.orch.FindDependencyPath(ctx, args.ProjectName, args.Source, args.Target, args.MaxDepth)
		if err != nil {
			return nil, dependencyPathOutput{}, fmt.Errorf("find_dependency_path: %w", err)
		}
		out := dependencyPathOutput{Path: path, Found: path != nil}
		text := "no path found"
		if out.Found {
			text = fmt.Sprintf("path of length %d", len(path))
		}
		return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: text}}}, out, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_dependency_stats",
		Description: "Summarize a project's dependency graph: file/edge counts and any import cycles",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args projectOnlyInput) (*mcp.CallToolResult, dependencyStatsOutput, error) {
		report, err := s.orch.GetDependencyStats(ctx, args.ProjectName)
		if err != nil {
			return nil, dependencyStatsOutput{}, fmt.Errorf("get_dependency_stats: %w", err)
		}
		out := dependencyStatsOutput{
			FileCount:               report.FileCount,
			EdgeCount:               report.EdgeCount,
			CircularDependencyCount: len(report.Cycles),
			Cycles:                  report.Cycles,
		}
		return &mcp.CallToolResult{Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("%d files, %d edges, %d cycles", out.FileCount, out.EdgeCount, out.CircularDependencyCount)},
		}}, out, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_dependency_graph",
		Description: "Export a project's dependency graph as DOT, JSON node-link, or Mermaid",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args dependencyGraphInput) (*mcp.CallToolResult, dependencyGraphOutput, error) {
		format := depgraph.ExportFormat(args.Format)
		if format == "" {
			format = depgraph.FormatJSON
		}
		rendered, err := s.orch.GetDependencyGraph(ctx, args.ProjectName, format, depgraph.ExportOptions{
			FilePattern: args.FilePattern,
			Language:    args.Language,
			MaxDepth:    args.MaxDepth,
		})
		if err != nil {
			return nil, dependencyGraphOutput{}, fmt.Errorf("get_dependency_graph: %w", err)
		}
		out := dependencyGraphOutput{Format: string(format), Graph: rendered}
		return &mcp.CallToolResult{Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("rendered %s graph", format)},
		}}, out, nil
	})
}
