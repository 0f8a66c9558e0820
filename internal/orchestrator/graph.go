package orchestrator

import (
	"context"
	"fmt"

	"github.com/fyrsmithlabs/ctxengine/internal/depgraph"
)

// dependencyGraph returns the cached graph for a project, building and
// caching it from the indexer's manifest when absent or force is set. The
// manifest (not the vector store, which has no scroll/list-all) is the
// source of truth for a project's import edges.
func (o *Orchestrator) dependencyGraph(ctx context.Context, projectName string, force bool) (*depgraph.Graph, error) {
	if !force {
		if g, ok := o.graphs[projectName]; ok {
			return g, nil
		}
	}
	if o.indexer == nil {
		return nil, fmt.Errorf("code indexing is not configured")
	}
	recs, err := o.indexer.Manifest().ListRecords(ctx, projectName)
	if err != nil {
		return nil, err
	}

	projectFiles := make(map[string]struct{}, len(recs))
	for _, rec := range recs {
		projectFiles[rec.FilePath] = struct{}{}
	}

	files := make([]depgraph.FileImport, len(recs))
	for i, rec := range recs {
		imports := make([]depgraph.RawImport, len(rec.Imports))
		for j, imp := range rec.Imports {
			imports[j] = depgraph.RawImport{
				Module:   imp.Module,
				Items:    imp.Items,
				Type:     imp.Type,
				Line:     imp.Line,
				Relative: imp.Relative,
			}
		}
		files[i] = depgraph.FileImport{Path: rec.FilePath, Imports: imports}
	}

	g := depgraph.Build(files, projectFiles)
	o.graphs[projectName] = g
	return g, nil
}

// GetFileDependencies implements get_file_dependencies.
func (o *Orchestrator) GetFileDependencies(ctx context.Context, projectName, filePath string, transitive bool, maxDepth int) ([]string, error) {
	g, err := o.dependencyGraph(ctx, projectName, false)
	if err != nil {
		return nil, err
	}
	if transitive {
		return g.GetAllDependencies(filePath, maxDepth), nil
	}
	return g.GetDependencies(filePath), nil
}

// GetFileDependents implements get_file_dependents.
func (o *Orchestrator) GetFileDependents(ctx context.Context, projectName, filePath string, transitive bool, maxDepth int) ([]string, error) {
	g, err := o.dependencyGraph(ctx, projectName, false)
	if err != nil {
		return nil, err
	}
	if transitive {
		return g.GetAllDependents(filePath, maxDepth), nil
	}
	return g.GetDependents(filePath), nil
}

// FindDependencyPath implements find_dependency_path.
func (o *Orchestrator) FindDependencyPath(ctx context.Context, projectName, source, target string, maxDepth int) ([]string, error) {
	g, err := o.dependencyGraph(ctx, projectName, false)
	if err != nil {
		return nil, err
	}
	return g.FindPath(source, target, maxDepth), nil
}

// CircularDependencyReport is get_dependency_stats' cycle summary.
type CircularDependencyReport struct {
	FileCount  int
	EdgeCount  int
	Cycles     [][]string
}

// GetDependencyStats implements get_dependency_stats: file/edge counts
// plus every detected import cycle.
func (o *Orchestrator) GetDependencyStats(ctx context.Context, projectName string) (*CircularDependencyReport, error) {
	g, err := o.dependencyGraph(ctx, projectName, false)
	if err != nil {
		return nil, err
	}
	files := g.Files()
	cycles := g.DetectCircularDependencies()
	edgeCount := 0
	for _, f := range files {
		edgeCount += len(g.GetDependencies(f))
	}
	return &CircularDependencyReport{FileCount: len(files), EdgeCount: edgeCount, Cycles: cycles}, nil
}

// GetDependencyGraph implements get_dependency_graph: renders the
// project's import graph (or a filtered sub-graph) in DOT, JSON, or
// Mermaid form.
func (o *Orchestrator) GetDependencyGraph(ctx context.Context, projectName string, format depgraph.ExportFormat, opts depgraph.ExportOptions) (string, error) {
	g, err := o.dependencyGraph(ctx, projectName, false)
	if err != nil {
		return "", err
	}

	meta := map[string]depgraph.NodeMeta{}
	if o.indexer != nil {
		recs, err := o.indexer.Manifest().ListRecords(ctx, projectName)
		if err == nil {
			for _, rec := range recs {
				meta[rec.FilePath] = depgraph.NodeMeta{
					Size:         len(rec.Units),
					Language:     rec.Language,
					LastModified: rec.ModifiedAt.Format("2006-01-02T15:04:05Z07:00"),
				}
			}
		}
	}

	return depgraph.NewExporter(g, meta).Export(format, opts)
}

// RefreshDependencyGraph forces a rebuild of a project's cached graph,
// used after a reindex changes its import edges.
func (o *Orchestrator) RefreshDependencyGraph(ctx context.Context, projectName string) error {
	_, err := o.dependencyGraph(ctx, projectName, true)
	return err
}
