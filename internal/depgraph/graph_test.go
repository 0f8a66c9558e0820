package depgraph

import (
	"strings"
	"testing"
)

func buildCycle(t *testing.T) *Graph {
	t.Helper()
	files := []FileImport{
		{Path: "a.py", Imports: []RawImport{{Module: ".b", Relative: true}}},
		{Path: "b.py", Imports: []RawImport{{Module: ".c", Relative: true}}},
		{Path: "c.py", Imports: []RawImport{{Module: ".a", Relative: true}}},
	}
	projectFiles := map[string]struct{}{"a.py": {}, "b.py": {}, "c.py": {}}
	return Build(files, projectFiles)
}

func TestGraph_DependencyDependentSymmetry(t *testing.T) {
	g := buildCycle(t)
	for _, a := range g.Files() {
		for _, b := range g.Files() {
			deps := g.GetDependencies(a)
			dependents := g.GetDependents(b)
			inDeps := contains(deps, b)
			inDependents := contains(dependents, a)
			if inDeps != inDependents {
				t.Fatalf("symmetry violated for (%s,%s): inDeps=%v inDependents=%v", a, b, inDeps, inDependents)
			}
		}
	}
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

func TestGraph_FindPath_SelfIsSingleton(t *testing.T) {
	g := buildCycle(t)
	path := g.FindPath("a.py", "a.py", 10)
	if len(path) != 1 || path[0] != "a.py" {
		t.Fatalf("expected [a.py], got %v", path)
	}
}

func TestGraph_FindPath_ConsecutivePairsAreEdges(t *testing.T) {
	g := buildCycle(t)
	path := g.FindPath("a.py", "c.py", 10)
	if path == nil {
		t.Fatalf("expected a path a.py -> c.py")
	}
	for i := 0; i < len(path)-1; i++ {
		deps := g.GetDependencies(path[i])
		if !contains(deps, path[i+1]) {
			t.Fatalf("path %v has non-edge between %s and %s", path, path[i], path[i+1])
		}
	}
}

func TestGraph_DetectCircularDependencies_ReportsOnce(t *testing.T) {
	g := buildCycle(t)
	cycles := g.DetectCircularDependencies()
	if len(cycles) != 1 {
		t.Fatalf("expected exactly 1 cycle, got %d: %v", len(cycles), cycles)
	}
	if len(cycles[0]) != 3 {
		t.Fatalf("expected 3-file cycle, got %v", cycles[0])
	}
}

func TestExporter_DOTMarksCircularEdgesRed(t *testing.T) {
	g := buildCycle(t)
	meta := map[string]NodeMeta{"a.py": {Language: "python"}, "b.py": {Language: "python"}, "c.py": {Language: "python"}}
	ex := NewExporter(g, meta)
	dot, err := ex.Export(FormatDOT, ExportOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(dot, "color=red") {
		t.Fatalf("expected DOT export to mark circular edges red:\n%s", dot)
	}
}

func TestExporter_JSONMarksCircularLink(t *testing.T) {
	g := buildCycle(t)
	ex := NewExporter(g, nil)
	out, err := ex.Export(FormatJSON, ExportOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `"circular":true`) {
		t.Fatalf("expected at least one circular:true link:\n%s", out)
	}
	if !strings.Contains(out, `"circular_groups"`) {
		t.Fatalf("expected circular_groups field:\n%s", out)
	}
}

func TestExporter_MermaidDashesCircularEdges(t *testing.T) {
	g := buildCycle(t)
	ex := NewExporter(g, nil)
	out, err := ex.Export(FormatMermaid, ExportOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "-.->") {
		t.Fatalf("expected mermaid dashed circular arrow:\n%s", out)
	}
}
