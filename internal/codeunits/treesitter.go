package codeunits

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	tsc "github.com/smacker/go-tree-sitter/c"
	tscpp "github.com/smacker/go-tree-sitter/cpp"
	tsjava "github.com/smacker/go-tree-sitter/java"
	tsjs "github.com/smacker/go-tree-sitter/javascript"
	tsphp "github.com/smacker/go-tree-sitter/php"
	tspy "github.com/smacker/go-tree-sitter/python"
	tsruby "github.com/smacker/go-tree-sitter/ruby"
	tsrust "github.com/smacker/go-tree-sitter/rust"
	tsts "github.com/smacker/go-tree-sitter/typescript/typescript"
)

// nodeRule maps a grammar node type to the Unit it produces.
type nodeRule struct {
	nodeType string
	kind     UnitType
}

// treeSitterLanguage bundles a compiled grammar with the node types that
// mark unit and import boundaries for it.
type treeSitterLanguage struct {
	lang        *sitter.Language
	unitNodes   []nodeRule
	importNodes []string
}

// TreeSitterParser parses source with real per-language grammars for
// higher-fidelity unit boundaries and names than HeuristicParser's
// regex scan, used when available and falling back to the heuristic
// parser on unsupported languages or parse errors (the same
// default-plus-richer-option shape internal/extraction uses for
// decision mining: heuristic patterns first, LLM refinement layered on
// top when configured).
type TreeSitterParser struct {
	languages map[string]treeSitterLanguage
	fallback  Parser
}

// NewTreeSitterParser builds a tree-sitter-backed parser for the
// subset of the language table with available grammars (Go, Python,
// JavaScript, TypeScript, Java, Rust, Ruby, C, C++, PHP). Languages
// without a bundled grammar (C#, SQL) always defer to fallback.
func NewTreeSitterParser(fallback Parser) *TreeSitterParser {
	return &TreeSitterParser{
		languages: map[string]treeSitterLanguage{
			"python": {
				lang: tspy.GetLanguage(),
				unitNodes: []nodeRule{
					{"function_definition", UnitFunction},
					{"class_definition", UnitClass},
				},
				importNodes: []string{"import_statement", "import_from_statement"},
			},
			"javascript": {
				lang: tsjs.GetLanguage(),
				unitNodes: []nodeRule{
					{"function_declaration", UnitFunction},
					{"method_definition", UnitMethod},
					{"class_declaration", UnitClass},
				},
				importNodes: []string{"import_statement"},
			},
			"typescript": {
				lang: tsts.GetLanguage(),
				unitNodes: []nodeRule{
					{"function_declaration", UnitFunction},
					{"method_definition", UnitMethod},
					{"class_declaration", UnitClass},
					{"interface_declaration", UnitClass},
				},
				importNodes: []string{"import_statement"},
			},
			"java": {
				lang: tsjava.GetLanguage(),
				unitNodes: []nodeRule{
					{"method_declaration", UnitMethod},
					{"class_declaration", UnitClass},
					{"interface_declaration", UnitClass},
				},
				importNodes: []string{"import_declaration"},
			},
			"rust": {
				lang: tsrust.GetLanguage(),
				unitNodes: []nodeRule{
					{"function_item", UnitFunction},
					{"struct_item", UnitClass},
					{"impl_item", UnitClass},
					{"enum_item", UnitClass},
				},
				importNodes: []string{"use_declaration"},
			},
			"ruby": {
				lang: tsruby.GetLanguage(),
				unitNodes: []nodeRule{
					{"method", UnitMethod},
					{"class", UnitClass},
					{"module", UnitModule},
				},
				importNodes: nil,
			},
			"c": {
				lang: tsc.GetLanguage(),
				unitNodes: []nodeRule{
					{"function_definition", UnitFunction},
					{"struct_specifier", UnitClass},
				},
				importNodes: []string{"preproc_include"},
			},
			"cpp": {
				lang: tscpp.GetLanguage(),
				unitNodes: []nodeRule{
					{"function_definition", UnitFunction},
					{"class_specifier", UnitClass},
					{"struct_specifier", UnitClass},
				},
				importNodes: []string{"preproc_include"},
			},
			"php": {
				lang: tsphp.GetLanguage(),
				unitNodes: []nodeRule{
					{"function_definition", UnitFunction},
					{"method_declaration", UnitMethod},
					{"class_declaration", UnitClass},
				},
				importNodes: nil,
			},
		},
		fallback: fallback,
	}
}

func (p *TreeSitterParser) Supports(language string) bool {
	if _, ok := p.languages[language]; ok {
		return true
	}
	return p.fallback != nil && p.fallback.Supports(language)
}

func (p *TreeSitterParser) Parse(path, language string, source []byte) (ParseResult, error) {
	lang, ok := p.languages[language]
	if !ok {
		if p.fallback != nil {
			return p.fallback.Parse(path, language, source)
		}
		return ParseResult{}, fmt.Errorf("codeunits: no tree-sitter grammar for language %q", language)
	}

	parser := sitter.NewParser()
	parser.SetLanguage(lang.lang)
	tree, err := parser.ParseCtx(context.Background(), nil, source)
	if err != nil || tree == nil {
		if p.fallback != nil {
			return p.fallback.Parse(path, language, source)
		}
		return ParseResult{}, fmt.Errorf("codeunits: parsing %s: %w", path, err)
	}

	root := tree.RootNode()
	if root == nil {
		if p.fallback != nil {
			return p.fallback.Parse(path, language, source)
		}
		return ParseResult{}, fmt.Errorf("codeunits: %s produced no root node", path)
	}

	units := collectUnits(root, source, lang)
	if len(units) == 0 && p.fallback != nil {
		return p.fallback.Parse(path, language, source)
	}

	imports := collectImports(root, source, lang)
	assignImportsToUnits(units, imports)

	return ParseResult{Language: language, Units: units}, nil
}

func collectUnits(root *sitter.Node, source []byte, lang treeSitterLanguage) []Unit {
	var units []Unit
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n == nil {
			return
		}
		for _, rule := range lang.unitNodes {
			if n.Type() == rule.nodeType {
				units = append(units, Unit{
					Type:      rule.kind,
					Name:      unitName(n, source),
					Signature: firstLine(n, source),
					StartLine: int(n.StartPoint().Row) + 1,
					EndLine:   int(n.EndPoint().Row) + 1,
					Content:   n.Content(source),
				})
				break
			}
		}
		count := int(n.ChildCount())
		for i := 0; i < count; i++ {
			walk(n.Child(i))
		}
	}
	walk(root)
	return units
}

// unitName extracts an identifier name from the node's "name" field,
// falling back to the first identifier-like child when the grammar
// does not expose that field (e.g. Go's type_declaration wraps a
// type_spec child rather than naming itself directly).
func unitName(n *sitter.Node, source []byte) string {
	if named := n.ChildByFieldName("name"); named != nil {
		return named.Content(source)
	}
	count := int(n.ChildCount())
	for i := 0; i < count; i++ {
		child := n.Child(i)
		if child == nil {
			continue
		}
		switch child.Type() {
		case "identifier", "type_identifier", "field_identifier", "constant":
			return child.Content(source)
		}
		if named := child.ChildByFieldName("name"); named != nil {
			return named.Content(source)
		}
	}
	return ""
}

func firstLine(n *sitter.Node, source []byte) string {
	content := n.Content(source)
	for i, r := range content {
		if r == '\n' {
			return content[:i]
		}
	}
	return content
}

func collectImports(root *sitter.Node, source []byte, lang treeSitterLanguage) []ImportRef {
	if len(lang.importNodes) == 0 {
		return nil
	}
	importSet := make(map[string]bool, len(lang.importNodes))
	for _, t := range lang.importNodes {
		importSet[t] = true
	}

	var imports []ImportRef
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n == nil {
			return
		}
		if importSet[n.Type()] {
			module := importModule(n, source)
			if module != "" {
				imports = append(imports, ImportRef{
					Module:   module,
					Type:     "import",
					Line:     int(n.StartPoint().Row) + 1,
					Relative: len(module) > 0 && (module[0] == '.' || module[0] == '/'),
				})
			}
			return
		}
		count := int(n.ChildCount())
		for i := 0; i < count; i++ {
			walk(n.Child(i))
		}
	}
	walk(root)
	return imports
}

func importModule(n *sitter.Node, source []byte) string {
	if path := n.ChildByFieldName("path"); path != nil {
		return trimQuotes(path.Content(source))
	}
	if module := n.ChildByFieldName("module_name"); module != nil {
		return trimQuotes(module.Content(source))
	}
	return trimQuotes(n.Content(source))
}

func trimQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

func assignImportsToUnits(units []Unit, imports []ImportRef) {
	for _, imp := range imports {
		assigned := false
		for i := len(units) - 1; i >= 0; i-- {
			if units[i].StartLine <= imp.Line {
				units[i].Imports = append(units[i].Imports, imp)
				assigned = true
				break
			}
		}
		if !assigned && len(units) > 0 {
			units[0].Imports = append(units[0].Imports, imp)
		}
	}
}
