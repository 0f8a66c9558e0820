package depgraph

import (
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"
)

// ExportFormat selects the exporter's output shape.
type ExportFormat string

const (
	FormatDOT     ExportFormat = "dot"
	FormatJSON    ExportFormat = "json"
	FormatMermaid ExportFormat = "mermaid"
)

// ExportOptions filters the sub-graph the exporter renders.
type ExportOptions struct {
	FilePattern string // glob against file path, empty = no filter
	Language    string // matched against NodeMeta.Language, empty = no filter
	MaxDepth    int    // BFS depth from entry points; 0 = unbounded
}

// NodeMeta supplies the per-file metadata the JSON export surfaces
// (sourced from CodeUnit payloads: size = unit count, last_modified from
// file metadata).
type NodeMeta struct {
	Size         int
	Language     string
	LastModified string
}

// Exporter renders a Graph (or a filtered sub-graph of it) into DOT,
// JSON-node-link, or Mermaid form.
type Exporter struct {
	graph *Graph
	meta  map[string]NodeMeta
}

// NewExporter binds a Graph to per-file metadata used for JSON node
// fields and language filtering.
func NewExporter(g *Graph, meta map[string]NodeMeta) *Exporter {
	return &Exporter{graph: g, meta: meta}
}

// filteredFiles applies FilePattern/Language/MaxDepth and returns the
// sub-graph's file set.
func (e *Exporter) filteredFiles(opts ExportOptions) map[string]struct{} {
	all := e.graph.Files()
	matched := make(map[string]struct{})
	for _, f := range all {
		if opts.FilePattern != "" {
			if ok, _ := path.Match(opts.FilePattern, f); !ok {
				continue
			}
		}
		if opts.Language != "" && e.meta[f].Language != opts.Language {
			continue
		}
		matched[f] = struct{}{}
	}

	if opts.MaxDepth <= 0 {
		return matched
	}

	// Entry points are matched files with no outgoing edges within the
	// filtered set.
	var entryPoints []string
	for f := range matched {
		hasOutgoing := false
		for _, dep := range e.graph.GetDependencies(f) {
			if _, ok := matched[dep]; ok {
				hasOutgoing = true
				break
			}
		}
		if !hasOutgoing {
			entryPoints = append(entryPoints, f)
		}
	}

	reached := make(map[string]struct{})
	for _, ep := range entryPoints {
		reached[ep] = struct{}{}
		for _, dep := range e.graph.GetAllDependents(ep, opts.MaxDepth) {
			if _, ok := matched[dep]; ok {
				reached[ep] = struct{}{}
				reached[dep] = struct{}{}
			}
		}
	}
	if len(reached) == 0 {
		return matched
	}
	return reached
}

func (e *Exporter) filteredEdges(files map[string]struct{}) [][2]string {
	var edges [][2]string
	keys := make([]string, 0, len(files))
	for f := range files {
		keys = append(keys, f)
	}
	sort.Strings(keys)
	for _, source := range keys {
		for _, target := range e.graph.GetDependencies(source) {
			if _, ok := files[target]; ok {
				edges = append(edges, [2]string{source, target})
			}
		}
	}
	return edges
}

func cycleEdgeSet(cycles [][]string) map[[2]string]struct{} {
	set := make(map[[2]string]struct{})
	for _, cycle := range cycles {
		for i := range cycle {
			j := (i + 1) % len(cycle)
			set[[2]string{cycle[i], cycle[j]}] = struct{}{}
		}
	}
	return set
}

func cycleNodeSet(cycles [][]string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, cycle := range cycles {
		for _, n := range cycle {
			set[n] = struct{}{}
		}
	}
	return set
}

// Export renders the graph in the requested format.
func (e *Exporter) Export(format ExportFormat, opts ExportOptions) (string, error) {
	files := e.filteredFiles(opts)
	edges := e.filteredEdges(files)
	cycles := e.graph.DetectCircularDependencies()
	circEdges := cycleEdgeSet(cycles)
	circNodes := cycleNodeSet(cycles)

	switch format {
	case FormatDOT:
		return e.exportDOT(files, edges, circEdges, circNodes), nil
	case FormatJSON:
		return e.exportJSON(files, edges, circEdges, circNodes, cycles)
	case FormatMermaid:
		return e.exportMermaid(files, edges, circEdges, circNodes), nil
	default:
		return "", fmt.Errorf("unknown export format %q", format)
	}
}

func (e *Exporter) exportDOT(files map[string]struct{}, edges [][2]string, circEdges map[[2]string]struct{}, circNodes map[string]struct{}) string {
	var b strings.Builder
	b.WriteString("digraph {\n\trankdir=LR;\n")

	fileList := make([]string, 0, len(files))
	for f := range files {
		fileList = append(fileList, f)
	}
	sort.Strings(fileList)
	for _, f := range fileList {
		if _, circ := circNodes[f]; circ {
			fmt.Fprintf(&b, "\t%q [style=filled, fillcolor=\"#ff9999\"];\n", f)
		}
	}
	for _, e := range edges {
		if _, circ := circEdges[e]; circ {
			fmt.Fprintf(&b, "\t%q -> %q [color=red, penwidth=2];\n", e[0], e[1])
		} else {
			fmt.Fprintf(&b, "\t%q -> %q;\n", e[0], e[1])
		}
	}
	b.WriteString("}\n")
	return b.String()
}

type jsonNode struct {
	ID           string `json:"id"`
	Label        string `json:"label"`
	Size         int    `json:"size"`
	Language     string `json:"language"`
	LastModified string `json:"last_modified,omitempty"`
}

type jsonLink struct {
	Source   string `json:"source"`
	Target   string `json:"target"`
	Type     string `json:"type"`
	Circular bool   `json:"circular,omitempty"`
}

type jsonGraph struct {
	Nodes          []jsonNode   `json:"nodes"`
	Links          []jsonLink   `json:"links"`
	CircularGroups [][]string   `json:"circular_groups"`
}

func (e *Exporter) exportJSON(files map[string]struct{}, edges [][2]string, circEdges map[[2]string]struct{}, circNodes map[string]struct{}, cycles [][]string) (string, error) {
	g := jsonGraph{CircularGroups: cycles}
	if g.CircularGroups == nil {
		g.CircularGroups = [][]string{}
	}

	fileList := make([]string, 0, len(files))
	for f := range files {
		fileList = append(fileList, f)
	}
	sort.Strings(fileList)
	for _, f := range fileList {
		meta := e.meta[f]
		g.Nodes = append(g.Nodes, jsonNode{
			ID:           f,
			Label:        path.Base(f),
			Size:         meta.Size,
			Language:     meta.Language,
			LastModified: meta.LastModified,
		})
	}
	for _, edge := range edges {
		_, circ := circEdges[edge]
		g.Links = append(g.Links, jsonLink{Source: edge[0], Target: edge[1], Type: "import", Circular: circ})
	}
	if g.Links == nil {
		g.Links = []jsonLink{}
	}

	raw, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling dependency graph json: %w", err)
	}
	return string(raw), nil
}

func (e *Exporter) exportMermaid(files map[string]struct{}, edges [][2]string, circEdges map[[2]string]struct{}, circNodes map[string]struct{}) string {
	var b strings.Builder
	b.WriteString("graph LR\n")

	ids := nodeIDMap(files)
	for _, edge := range edges {
		arrow := "-->"
		if _, circ := circEdges[edge]; circ {
			arrow = "-.->"
		}
		fmt.Fprintf(&b, "\t%s%s%s[%q]\n", ids[edge[0]], arrow, ids[edge[1]], path.Base(edge[1]))
	}
	nodeList := make([]string, 0, len(files))
	for f := range files {
		nodeList = append(nodeList, f)
	}
	sort.Strings(nodeList)
	for _, f := range nodeList {
		if _, circ := circNodes[f]; circ {
			fmt.Fprintf(&b, "\tstyle %s fill:#ff9999\n", ids[f])
		}
	}
	return b.String()
}

// nodeIDMap assigns Mermaid-safe short identifiers (n0, n1, ...) to each
// file, since Mermaid node IDs cannot contain path separators.
func nodeIDMap(files map[string]struct{}) map[string]string {
	fileList := make([]string, 0, len(files))
	for f := range files {
		fileList = append(fileList, f)
	}
	sort.Strings(fileList)
	ids := make(map[string]string, len(fileList))
	for i, f := range fileList {
		ids[f] = fmt.Sprintf("n%d", i)
	}
	return ids
}
