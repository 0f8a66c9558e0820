// Package codeunits implements the "external AST parser" contract 
// assumes (`parse_source_file(path, source) -> {language, units,
// imports_per_unit}`): a pluggable Parser interface with a regex-based
// heuristic default and an optional tree-sitter-backed implementation for
// higher-fidelity extraction, mirroring internal/extraction's
// heuristic/LLM pluggable-provider shape.
package codeunits

// ImportRef is one import statement found in a file, attached to the
// first unit that follows it (module-level imports attach to the
// synthetic "module" unit when a file has no top-level units).
type ImportRef struct {
	Module   string `json:"module"`
	Items    []string `json:"items,omitempty"`
	Type     string `json:"type"` // "import" or "from_import"
	Line     int    `json:"line"`
	Relative bool   `json:"relative"`
}

// UnitType classifies a CodeUnit.
type UnitType string

const (
	UnitFunction UnitType = "function"
	UnitClass    UnitType = "class"
	UnitMethod   UnitType = "method"
	UnitModule   UnitType = "module"
	UnitConstant UnitType = "constant"
)

// Unit is one extracted function/class/method/module/constant.
type Unit struct {
	Type      UnitType    `json:"unit_type"`
	Name      string      `json:"name"`
	Signature string      `json:"signature,omitempty"`
	StartLine int         `json:"start_line"`
	EndLine   int         `json:"end_line"`
	Content   string      `json:"content"`
	Imports   []ImportRef `json:"imports,omitempty"`
}

// ParseResult is what the external-parser contract returns for one file.
type ParseResult struct {
	Language string
	Units    []Unit
}

// Parser extracts code units and their imports from one file's source.
type Parser interface {
	// Supports reports whether this parser can handle the given language
	// identifier (as returned by LanguageForExtension).
	Supports(language string) bool
	// Parse extracts units from source. path is used only for
	// diagnostics; language-detection happens by extension before Parse
	// is called.
	Parse(path, language string, source []byte) (ParseResult, error)
}

// extensionLanguage is the language-extension table enumerates:
// Python, JS/TS, Java, Go, Rust, Ruby, C/C++/C#, PHP, SQL.
var extensionLanguage = map[string]string{
	".py":   "python",
	".js":   "javascript",
	".jsx":  "javascript",
	".mjs":  "javascript",
	".ts":   "typescript",
	".tsx":  "typescript",
	".java": "java",
	".go":   "go",
	".rs":   "rust",
	".rb":   "ruby",
	".c":    "c",
	".h":    "c",
	".cc":   "cpp",
	".cpp":  "cpp",
	".hpp":  "cpp",
	".cs":   "csharp",
	".php":  "php",
	".sql":  "sql",
}

// LanguageForExtension returns the language identifier for a file
// extension (including the leading dot), or "" if the extension is not
// one of the indexed languages.
func LanguageForExtension(ext string) string {
	return extensionLanguage[ext]
}

// SupportedExtensions returns every indexed extension, used by the
// incremental indexer's file-enumeration step.
func SupportedExtensions() []string {
	exts := make([]string, 0, len(extensionLanguage))
	for ext := range extensionLanguage {
		exts = append(exts, ext)
	}
	return exts
}
