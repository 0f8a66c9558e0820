package depgraph

import (
	"path"
	"strings"
)

// knownExtensions mirrors the language table indexes, tried in order
// when resolving an extensionless import to an in-project file.
var knownExtensions = []string{".py", ".js", ".jsx", ".ts", ".tsx", ".go", ".rs", ".rb", ".java", ".c", ".cc", ".cpp", ".h", ".hpp", ".cs", ".php"}

// indexNames are tried when a resolved import points at a directory
// rather than a file, mirroring Python's `__init__` and JS/TS's `index`
// package-entry conventions.
var indexNames = []string{"__init__", "index"}

// Build resolves every file's raw imports against the project's known
// file set and returns the populated Graph. Files with no resolvable
// imports are still added so they appear in traversals and exports.
func Build(files []FileImport, projectFiles map[string]struct{}) *Graph {
	g := New()
	for _, f := range files {
		g.AddFile(f.Path)
	}

	for _, f := range files {
		for _, imp := range f.Imports {
			target, ok := resolve(f.Path, imp, projectFiles)
			if !ok {
				continue // external package reference, discarded
			}
			g.AddEdge(f.Path, target, ImportDetail{
				Module: imp.Module,
				Items:  imp.Items,
				Type:   importDetailType(imp.Type),
				Line:   imp.Line,
			})
		}
	}
	return g
}

func importDetailType(t string) string {
	if t == "" {
		return "import"
	}
	return t
}

// resolve maps a raw import to an in-project file path. Leading dots walk
// up parent directories (Python-style relative import depth); the
// remainder of the module path is appended dotted-to-slashed, then tried
// against each known extension and, for directory-shaped results, each
// index-file convention.
func resolve(fromFile string, imp RawImport, projectFiles map[string]struct{}) (string, bool) {
	if !imp.Relative && !strings.HasPrefix(imp.Module, ".") {
		// Still worth trying an exact match (e.g. Go import paths that
		// happen to equal a project-relative path), but otherwise this is
		// an external package reference.
		if candidate, ok := tryExtensions(imp.Module, projectFiles); ok {
			return candidate, true
		}
		return "", false
	}

	dir := path.Dir(fromFile)
	module := imp.Module
	for strings.HasPrefix(module, ".") {
		module = strings.TrimPrefix(module, ".")
		if strings.HasPrefix(module, "/") {
			module = strings.TrimPrefix(module, "/")
		} else if module == "" {
			// A lone "." or leading dot with no following segment still
			// consumes one directory level for each dot already trimmed
			// from the original string below.
		}
		dir = path.Dir(dir)
	}
	// Python-style relative imports use repeated leading dots (".", "..",
	// "...") rather than slashes; re-derive the walked-up depth from the
	// original string's leading-dot run length.
	leadingDots := 0
	for leadingDots < len(imp.Module) && imp.Module[leadingDots] == '.' {
		leadingDots++
	}
	dir = path.Dir(fromFile)
	for i := 1; i < leadingDots; i++ {
		dir = path.Dir(dir)
	}
	rest := strings.TrimPrefix(imp.Module, strings.Repeat(".", leadingDots))
	rest = strings.ReplaceAll(rest, ".", "/")

	candidate := path.Join(dir, rest)
	if f, ok := tryExtensions(candidate, projectFiles); ok {
		return f, true
	}
	for _, idx := range indexNames {
		if f, ok := tryExtensions(path.Join(candidate, idx), projectFiles); ok {
			return f, true
		}
	}
	return "", false
}

func tryExtensions(candidate string, projectFiles map[string]struct{}) (string, bool) {
	if _, ok := projectFiles[candidate]; ok {
		return candidate, true
	}
	for _, ext := range knownExtensions {
		if _, ok := projectFiles[candidate+ext]; ok {
			return candidate + ext, true
		}
	}
	return "", false
}
