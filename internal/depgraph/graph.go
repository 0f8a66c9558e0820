// Package depgraph implements the dependency graph: import edges
// between project files, rebuilt on demand from CodeUnit payloads, with
// forward/reverse traversal, shortest path and cycle detection.
//
// Grounded on the design note to store edges as two hash maps keyed by
// canonicalized paths rather than shared node references — the same
// allocation-light shape internal/memory/confidence.go uses for its
// signal-aggregate maps, generalized here to file-to-file edges.
package depgraph

import "sort"

// ImportDetail is one raw import statement contributing an edge.
type ImportDetail struct {
	Module string
	Items  []string
	Type   string // "import" or "from_import"
	Line   int
}

// FileImport is a single file's extracted import list, the input to
// Build. Imports that Resolve cannot map to an in-project file are
// dropped silently per ("unresolved imports are silently
// discarded").
type FileImport struct {
	Path    string
	Imports []RawImport
}

// RawImport is an import as extracted by the code parser, before
// resolution to an in-project file path.
type RawImport struct {
	Module   string
	Items    []string
	Type     string
	Line     int
	Relative bool
}

// Graph is the forward/reverse import-edge map for one project.
type Graph struct {
	forward map[string]map[string]struct{}
	reverse map[string]map[string]struct{}
	details map[edgeKey][]ImportDetail
	files   map[string]struct{}
}

type edgeKey struct{ source, target string }

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		forward: make(map[string]map[string]struct{}),
		reverse: make(map[string]map[string]struct{}),
		details: make(map[edgeKey][]ImportDetail),
		files:   make(map[string]struct{}),
	}
}

// AddEdge records that source imports target, appending the raw import
// detail to the (source, target) pair's detail list. Multiple import
// statements between the same pair all accumulate.
func (g *Graph) AddEdge(source, target string, detail ImportDetail) {
	g.files[source] = struct{}{}
	g.files[target] = struct{}{}

	if g.forward[source] == nil {
		g.forward[source] = make(map[string]struct{})
	}
	g.forward[source][target] = struct{}{}

	if g.reverse[target] == nil {
		g.reverse[target] = make(map[string]struct{})
	}
	g.reverse[target][source] = struct{}{}

	key := edgeKey{source, target}
	g.details[key] = append(g.details[key], detail)
}

// AddFile registers a file with no outgoing edges yet so it still appears
// in Files()/exports even if nothing imports it and it imports nothing
// resolvable.
func (g *Graph) AddFile(path string) {
	g.files[path] = struct{}{}
}

// Files returns every file known to the graph, sorted for determinism.
func (g *Graph) Files() []string {
	out := make([]string, 0, len(g.files))
	for f := range g.files {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// GetDependencies returns a copy of the set of files file directly imports.
func (g *Graph) GetDependencies(file string) []string {
	return copySortedKeys(g.forward[file])
}

// GetDependents returns a copy of the set of files that directly import file.
func (g *Graph) GetDependents(file string) []string {
	return copySortedKeys(g.reverse[file])
}

// ImportDetails returns the accumulated raw import statements between
// source and target.
func (g *Graph) ImportDetails(source, target string) []ImportDetail {
	return g.details[edgeKey{source, target}]
}

func copySortedKeys(m map[string]struct{}) []string {
	if len(m) == 0 {
		return nil
	}
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// GetAllDependencies performs a depth-bounded BFS over the forward edges
// starting at file. maxDepth <= 0 means unbounded.
func (g *Graph) GetAllDependencies(file string, maxDepth int) []string {
	return g.bfsCollect(file, maxDepth, g.forward)
}

// GetAllDependents performs a depth-bounded BFS over the reverse edges
// starting at file. maxDepth <= 0 means unbounded.
func (g *Graph) GetAllDependents(file string, maxDepth int) []string {
	return g.bfsCollect(file, maxDepth, g.reverse)
}

func (g *Graph) bfsCollect(start string, maxDepth int, edges map[string]map[string]struct{}) []string {
	visited := map[string]struct{}{start: {}}
	type item struct {
		node  string
		depth int
	}
	queue := []item{{start, 0}}
	var out []string

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if maxDepth > 0 && cur.depth >= maxDepth {
			continue
		}
		for neighbor := range edges[cur.node] {
			if _, seen := visited[neighbor]; seen {
				continue
			}
			visited[neighbor] = struct{}{}
			out = append(out, neighbor)
			queue = append(queue, item{neighbor, cur.depth + 1})
		}
	}
	sort.Strings(out)
	return out
}

// FindPath returns the shortest import-chain from source to target,
// bounded by maxDepth edges, or nil if unreachable within that bound.
// source == target returns a single-element path.
func (g *Graph) FindPath(source, target string, maxDepth int) []string {
	if source == target {
		return []string{source}
	}
	type item struct {
		node string
		path []string
	}
	visited := map[string]struct{}{source: {}}
	queue := []item{{source, []string{source}}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if maxDepth > 0 && len(cur.path)-1 >= maxDepth {
			continue
		}
		neighbors := copySortedKeys(g.forward[cur.node])
		for _, n := range neighbors {
			if n == target {
				return append(append([]string{}, cur.path...), n)
			}
			if _, seen := visited[n]; seen {
				continue
			}
			visited[n] = struct{}{}
			queue = append(queue, item{n, append(append([]string{}, cur.path...), n)})
		}
	}
	return nil
}

// DetectCircularDependencies runs DFS with a recursion stack over every
// file and reports each cycle exactly once, rotation-normalized so the
// smallest file path is listed first.
func (g *Graph) DetectCircularDependencies() [][]string {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int)
	var stack []string
	seenCycles := make(map[string]struct{})
	var cycles [][]string

	var visit func(node string)
	visit = func(node string) {
		color[node] = gray
		stack = append(stack, node)

		for _, neighbor := range copySortedKeys(g.forward[node]) {
			switch color[neighbor] {
			case white:
				visit(neighbor)
			case gray:
				cycle := extractCycle(stack, neighbor)
				norm := normalizeRotation(cycle)
				key := cycleKey(norm)
				if _, dup := seenCycles[key]; !dup {
					seenCycles[key] = struct{}{}
					cycles = append(cycles, norm)
				}
			}
		}

		stack = stack[:len(stack)-1]
		color[node] = black
	}

	for _, f := range g.Files() {
		if color[f] == white {
			visit(f)
		}
	}
	return cycles
}

// extractCycle slices the recursion stack from the first occurrence of
// repeatNode to its end.
func extractCycle(stack []string, repeatNode string) []string {
	for i, n := range stack {
		if n == repeatNode {
			cycle := make([]string, len(stack)-i)
			copy(cycle, stack[i:])
			return cycle
		}
	}
	return nil
}

// normalizeRotation rotates cycle so its lexicographically smallest
// element comes first, giving every rotation of the same cycle an
// identical canonical form.
func normalizeRotation(cycle []string) []string {
	if len(cycle) == 0 {
		return cycle
	}
	minIdx := 0
	for i, n := range cycle {
		if n < cycle[minIdx] {
			minIdx = i
		}
	}
	out := make([]string, len(cycle))
	for i := range cycle {
		out[i] = cycle[(minIdx+i)%len(cycle)]
	}
	return out
}

func cycleKey(norm []string) string {
	key := ""
	for _, n := range norm {
		key += n + "\x00"
	}
	return key
}
