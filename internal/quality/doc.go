// Package quality implements the Quality Analyzer: per-code-unit
// complexity, documentation, duplication, and maintainability scoring
// used to annotate and filter search_code results.
//
// Complexity and nesting are computed two ways depending on how the unit
// was extracted (codeunits.Parser): Go units get an exact cyclomatic
// complexity from walking the real go/ast branch nodes (internal/codeunits
// GoASTParser produced them from a real parse tree), while units from the
// heuristic or tree-sitter extractors fall back to counting
// branch-keyword occurrences and brace/indent depth in the unit's
// source text — the same "no AST, so approximate from text" trade-off
// internal/codeunits/heuristic.go itself makes for non-Go languages.
package quality
