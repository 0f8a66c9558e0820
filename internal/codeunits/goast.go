package codeunits

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"strings"
)

// GoASTParser extracts Go code units using the standard library's own
// parser rather than a regex heuristic or a third-party grammar: Go's
// own go/parser + go/ast is the only implementation that can be trusted
// to agree with the compiler on what a valid Go function/type looks like,
// and none of the example repos import a third-party Go source parser —
// every one that needs Go-aware tooling (e.g. golang.org/x/tools-based
// analyzers) uses go/ast too. This is the one language-specific exception
// to the "always prefer the example pack's library" rule, and is recorded
// as such in the grounding ledger.
type GoASTParser struct{}

// NewGoASTParser returns a ready-to-use Go parser.
func NewGoASTParser() *GoASTParser { return &GoASTParser{} }

func (p *GoASTParser) Supports(language string) bool { return language == "go" }

func (p *GoASTParser) Parse(path, language string, source []byte) (ParseResult, error) {
	if language != "go" {
		return ParseResult{}, fmt.Errorf("codeunits: GoASTParser only supports go, got %q", language)
	}

	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, source, parser.ParseComments)
	if err != nil {
		return ParseResult{}, fmt.Errorf("parsing %s: %w", path, err)
	}

	lines := splitLines(source)
	var units []Unit
	var moduleImports []ImportRef

	for _, imp := range file.Imports {
		pos := fset.Position(imp.Pos())
		module := strings.Trim(imp.Path.Value, `"`)
		name := ""
		if imp.Name != nil {
			name = imp.Name.Name
		}
		ref := ImportRef{Module: module, Type: "import", Line: pos.Line}
		if name != "" {
			ref.Items = []string{name}
		}
		moduleImports = append(moduleImports, ref)
	}

	for _, decl := range file.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			units = append(units, funcDeclUnit(fset, d, lines))
		case *ast.GenDecl:
			if d.Tok != token.TYPE {
				continue
			}
			for _, spec := range d.Specs {
				ts, ok := spec.(*ast.TypeSpec)
				if !ok {
					continue
				}
				start := fset.Position(d.Pos())
				end := fset.Position(d.End())
				units = append(units, Unit{
					Type:      UnitClass,
					Name:      ts.Name.Name,
					Signature: strings.TrimSpace(safeLine(lines, start.Line-1)),
					StartLine: start.Line,
					EndLine:   end.Line,
					Content:   joinLines(lines, start.Line, end.Line),
				})
			}
		}
	}

	units = prependModuleImports(units, moduleImports, len(lines))

	return ParseResult{Language: "go", Units: units}, nil
}

// prependModuleImports attaches every file-level import to a synthetic
// module unit at the top, matching the "module-level imports attach to
// the module unit" convention — in Go, imports always precede every
// declaration, so there is no meaningful per-unit owner to pick instead.
func prependModuleImports(units []Unit, imports []ImportRef, totalLines int) []Unit {
	if len(imports) == 0 {
		return units
	}
	mod := Unit{Type: UnitModule, Name: "module", StartLine: 1, EndLine: totalLines, Imports: imports}
	return append([]Unit{mod}, units...)
}

func funcDeclUnit(fset *token.FileSet, d *ast.FuncDecl, lines []string) Unit {
	start := fset.Position(d.Pos())
	end := fset.Position(d.End())
	kind := UnitFunction
	if d.Recv != nil && len(d.Recv.List) > 0 {
		kind = UnitMethod
	}
	return Unit{
		Type:      kind,
		Name:      d.Name.Name,
		Signature: strings.TrimSpace(safeLine(lines, start.Line-1)),
		StartLine: start.Line,
		EndLine:   end.Line,
		Content:   joinLines(lines, start.Line, end.Line),
	}
}

func joinLines(lines []string, start, end int) string {
	if start < 1 {
		start = 1
	}
	if end > len(lines) {
		end = len(lines)
	}
	if start > end {
		return ""
	}
	return strings.Join(lines[start-1:end], "\n")
}

