package codeunits

import "fmt"

// Kind selects which Parser implementation backs extraction, mirroring
// extraction.ExtractionConfig's Provider/Providers selection knob.
type Kind string

const (
	KindHeuristic  Kind = "heuristic"
	KindTreeSitter Kind = "tree-sitter"
)

// Config selects the parser implementation for the indexer.
type Config struct {
	Kind Kind
}

// NewParser builds the configured Parser, defaulting to the heuristic
// implementation when Kind is empty or unrecognized. Go source always
// routes through GoASTParser (go/parser + go/ast) regardless of Kind,
// since that is the only implementation guaranteed to agree with the
// compiler on what valid Go looks like; Kind only selects between the
// heuristic and tree-sitter implementations for every other language.
func NewParser(cfg Config) Parser {
	heuristic := NewHeuristicParser()
	var rest Parser = heuristic
	switch cfg.Kind {
	case KindTreeSitter:
		rest = NewTreeSitterParser(heuristic)
	case KindHeuristic, "":
		rest = heuristic
	default:
		rest = heuristic
	}
	return newDispatchParser(NewGoASTParser(), rest)
}

// dispatchParser routes "go" to a dedicated parser and everything else to
// a fallback, without the fallback ever needing to know about Go.
type dispatchParser struct {
	goParser Parser
	rest     Parser
}

func newDispatchParser(goParser, rest Parser) *dispatchParser {
	return &dispatchParser{goParser: goParser, rest: rest}
}

func (d *dispatchParser) Supports(language string) bool {
	if language == "go" {
		return true
	}
	return d.rest.Supports(language)
}

func (d *dispatchParser) Parse(path, language string, source []byte) (ParseResult, error) {
	if language == "go" {
		return d.goParser.Parse(path, language, source)
	}
	return d.rest.Parse(path, language, source)
}

// ParseFile is the external-parser entry point: detect language from
// extension, then extract units and per-unit imports from source.
func ParseFile(p Parser, path, ext string, source []byte) (ParseResult, error) {
	language := LanguageForExtension(ext)
	if language == "" {
		return ParseResult{}, fmt.Errorf("codeunits: unindexed extension %q", ext)
	}
	if !p.Supports(language) {
		return ParseResult{}, fmt.Errorf("codeunits: parser does not support language %q", language)
	}
	return p.Parse(path, language, source)
}
