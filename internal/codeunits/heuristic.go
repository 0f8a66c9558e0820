package codeunits

import (
	"bufio"
	"bytes"
	"fmt"
	"regexp"
	"strings"
)

// compiledSignature is one per-language function/class/method pattern,
// mirroring extraction.compiledPattern's {name, regex, weight} shape —
// here the "weight" is replaced by the UnitType the match produces.
type compiledSignature struct {
	unit *regexp.Regexp
	kind UnitType
	// nameGroup is the regex submatch index holding the unit's name.
	nameGroup int
}

// importLine matches one import/from-import/require/include statement;
// captured groups are interpreted per-language by parseImportLine.
type languageRules struct {
	signatures  []compiledSignature
	importLines []*regexp.Regexp
	lineComment string
}

// HeuristicParser is the always-available default Parser: per-language
// regexes locate function/class/method headers and import statements
// without building a real AST, the same trade-off
// internal/extraction's HeuristicExtractor makes for decision mining.
type HeuristicParser struct {
	rules map[string]languageRules
}

// NewHeuristicParser compiles the built-in per-language signature and
// import patterns.
func NewHeuristicParser() *HeuristicParser {
	return &HeuristicParser{rules: buildRules()}
}

func (p *HeuristicParser) Supports(language string) bool {
	_, ok := p.rules[language]
	return ok
}

func (p *HeuristicParser) Parse(path, language string, source []byte) (ParseResult, error) {
	rules, ok := p.rules[language]
	if !ok {
		return ParseResult{}, fmt.Errorf("codeunits: no heuristic rules for language %q", language)
	}

	lines := splitLines(source)
	imports := parseImports(lines, rules)

	var units []Unit
	for i, line := range lines {
		for _, sig := range rules.signatures {
			m := sig.unit.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			name := ""
			if sig.nameGroup < len(m) {
				name = m[sig.nameGroup]
			}
			units = append(units, Unit{
				Type:      sig.kind,
				Name:      name,
				Signature: strings.TrimSpace(line),
				StartLine: i + 1,
			})
			break
		}
	}

	endLines(lines, units)
	attachImports(units, imports, len(lines))
	fillContent(lines, units)

	return ParseResult{Language: language, Units: units}, nil
}

// endLines assigns each unit's EndLine as the line before the next unit
// at or above its own nesting "column" (approximated here by the next
// unit's start, since the heuristic does not track brace/indent depth
// precisely). This gives a monotonic, non-overlapping span per unit,
// which is all the duplication-score and complexity metrics need.
func endLines(lines []string, units []Unit) {
	for i := range units {
		if i+1 < len(units) {
			units[i].EndLine = units[i+1].StartLine - 1
		} else {
			units[i].EndLine = len(lines)
		}
		if units[i].EndLine < units[i].StartLine {
			units[i].EndLine = units[i].StartLine
		}
	}
}

func fillContent(lines []string, units []Unit) {
	for i := range units {
		start := units[i].StartLine - 1
		end := units[i].EndLine
		if start < 0 {
			start = 0
		}
		if end > len(lines) {
			end = len(lines)
		}
		if start >= end {
			units[i].Content = strings.TrimSpace(safeLine(lines, start))
			continue
		}
		units[i].Content = strings.Join(lines[start:end], "\n")
	}
}

func safeLine(lines []string, idx int) string {
	if idx < 0 || idx >= len(lines) {
		return ""
	}
	return lines[idx]
}

// attachImports assigns each import to the last unit whose StartLine is
// at or before the import's line, or to a synthetic module unit
// prepended when no such unit exists (matching the "module-level
// imports attach to the module unit" rule).
func attachImports(units []Unit, imports []ImportRef, totalLines int) []Unit {
	if len(imports) == 0 {
		return units
	}
	var moduleImports []ImportRef
	for _, imp := range imports {
		assigned := false
		for i := len(units) - 1; i >= 0; i-- {
			if units[i].StartLine <= imp.Line {
				units[i].Imports = append(units[i].Imports, imp)
				assigned = true
				break
			}
		}
		if !assigned {
			moduleImports = append(moduleImports, imp)
		}
	}
	if len(moduleImports) == 0 {
		return units
	}
	mod := Unit{
		Type:      UnitModule,
		Name:      "module",
		StartLine: 1,
		EndLine:   totalLines,
		Imports:   moduleImports,
	}
	return append([]Unit{mod}, units...)
}

func splitLines(source []byte) []string {
	var lines []string
	scanner := bufio.NewScanner(bytes.NewReader(source))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines
}

func buildRules() map[string]languageRules {
	rules := map[string]languageRules{}

	rules["python"] = languageRules{
		signatures: []compiledSignature{
			{regexp.MustCompile(`^\s+def\s+([A-Za-z_][A-Za-z0-9_]*)\s*\(`), UnitMethod, 1},
			{regexp.MustCompile(`^def\s+([A-Za-z_][A-Za-z0-9_]*)\s*\(`), UnitFunction, 1},
			{regexp.MustCompile(`^class\s+([A-Za-z_][A-Za-z0-9_]*)`), UnitClass, 1},
		},
		importLines: []*regexp.Regexp{
			regexp.MustCompile(`^\s*import\s+([A-Za-z_.][A-Za-z0-9_.,\s]*)$`),
			regexp.MustCompile(`^\s*from\s+(\.*[A-Za-z0-9_.]*)\s+import\s+(.+)$`),
		},
		lineComment: "#",
	}

	jsSig := []compiledSignature{
		{regexp.MustCompile(`^\s*(?:export\s+)?(?:async\s+)?function\s*\*?\s+([A-Za-z_$][A-Za-z0-9_$]*)\s*\(`), UnitFunction, 1},
		{regexp.MustCompile(`^\s*(?:export\s+)?class\s+([A-Za-z_$][A-Za-z0-9_$]*)`), UnitClass, 1},
		{regexp.MustCompile(`^\s*(?:export\s+)?const\s+([A-Za-z_$][A-Za-z0-9_$]*)\s*=\s*(?:async\s*)?\(`), UnitFunction, 1},
		{regexp.MustCompile(`^\s{2,}(?:async\s+)?([A-Za-z_$][A-Za-z0-9_$]*)\s*\([^)]*\)\s*\{`), UnitMethod, 1},
	}
	jsImports := []*regexp.Regexp{
		regexp.MustCompile(`^\s*import\s+.*\sfrom\s+['"]([^'"]+)['"]`),
		regexp.MustCompile(`^\s*(?:const|let|var)\s+.*=\s*require\(['"]([^'"]+)['"]\)`),
	}
	rules["javascript"] = languageRules{signatures: jsSig, importLines: jsImports, lineComment: "//"}
	rules["typescript"] = languageRules{signatures: jsSig, importLines: jsImports, lineComment: "//"}

	rules["go"] = languageRules{
		signatures: []compiledSignature{
			{regexp.MustCompile(`^func\s+\(\s*\w+\s+\*?([A-Za-z_][A-Za-z0-9_]*)\s*\)\s*([A-Za-z_][A-Za-z0-9_]*)\s*\(`), UnitMethod, 2},
			{regexp.MustCompile(`^func\s+([A-Za-z_][A-Za-z0-9_]*)\s*\(`), UnitFunction, 1},
			{regexp.MustCompile(`^type\s+([A-Za-z_][A-Za-z0-9_]*)\s+struct\s*\{`), UnitClass, 1},
			{regexp.MustCompile(`^type\s+([A-Za-z_][A-Za-z0-9_]*)\s+interface\s*\{`), UnitClass, 1},
		},
		importLines: []*regexp.Regexp{
			regexp.MustCompile(`^\s*"([^"]+)"\s*$`),
			regexp.MustCompile(`^\s*[A-Za-z_][A-Za-z0-9_]*\s+"([^"]+)"\s*$`),
		},
		lineComment: "//",
	}

	rules["java"] = languageRules{
		signatures: []compiledSignature{
			{regexp.MustCompile(`^\s*(?:public|private|protected|static|final|\s)*class\s+([A-Za-z_][A-Za-z0-9_]*)`), UnitClass, 1},
			{regexp.MustCompile(`^\s*(?:public|private|protected|static|final|synchronized|\s)+[\w<>\[\]]+\s+([A-Za-z_][A-Za-z0-9_]*)\s*\([^;]*\)\s*\{?\s*$`), UnitMethod, 1},
		},
		importLines: []*regexp.Regexp{regexp.MustCompile(`^\s*import\s+(?:static\s+)?([A-Za-z0-9_.]+)\*?;`)},
		lineComment: "//",
	}

	rules["rust"] = languageRules{
		signatures: []compiledSignature{
			{regexp.MustCompile(`^\s*(?:pub\s+)?fn\s+([A-Za-z_][A-Za-z0-9_]*)`), UnitFunction, 1},
			{regexp.MustCompile(`^\s*(?:pub\s+)?struct\s+([A-Za-z_][A-Za-z0-9_]*)`), UnitClass, 1},
			{regexp.MustCompile(`^\s*(?:pub\s+)?enum\s+([A-Za-z_][A-Za-z0-9_]*)`), UnitClass, 1},
			{regexp.MustCompile(`^\s*impl\s+(?:[A-Za-z_][A-Za-z0-9_<>]*\s+for\s+)?([A-Za-z_][A-Za-z0-9_]*)`), UnitClass, 1},
		},
		importLines: []*regexp.Regexp{regexp.MustCompile(`^\s*use\s+([A-Za-z0-9_:{}, ]+);`)},
		lineComment: "//",
	}

	rules["ruby"] = languageRules{
		signatures: []compiledSignature{
			{regexp.MustCompile(`^\s*def\s+(?:self\.)?([A-Za-z_][A-Za-z0-9_?!=]*)`), UnitMethod, 1},
			{regexp.MustCompile(`^\s*class\s+([A-Za-z_][A-Za-z0-9_:]*)`), UnitClass, 1},
			{regexp.MustCompile(`^\s*module\s+([A-Za-z_][A-Za-z0-9_:]*)`), UnitModule, 1},
		},
		importLines: []*regexp.Regexp{regexp.MustCompile(`^\s*require(?:_relative)?\s+['"]([^'"]+)['"]`)},
		lineComment: "#",
	}

	cFamilySig := []compiledSignature{
		{regexp.MustCompile(`^\s*(?:[\w:<>\*&]+\s+)+([A-Za-z_~][A-Za-z0-9_]*)\s*\([^;{]*\)\s*\{?\s*$`), UnitFunction, 1},
		{regexp.MustCompile(`^\s*class\s+([A-Za-z_][A-Za-z0-9_]*)`), UnitClass, 1},
		{regexp.MustCompile(`^\s*struct\s+([A-Za-z_][A-Za-z0-9_]*)`), UnitClass, 1},
	}
	cImports := []*regexp.Regexp{regexp.MustCompile(`^\s*#include\s*[<"]([^>"]+)[>"]`)}
	rules["c"] = languageRules{signatures: cFamilySig, importLines: cImports, lineComment: "//"}
	rules["cpp"] = languageRules{signatures: cFamilySig, importLines: cImports, lineComment: "//"}

	rules["csharp"] = languageRules{
		signatures: []compiledSignature{
			{regexp.MustCompile(`^\s*(?:public|private|protected|internal|static|\s)*class\s+([A-Za-z_][A-Za-z0-9_]*)`), UnitClass, 1},
			{regexp.MustCompile(`^\s*(?:public|private|protected|internal|static|async|\s)+[\w<>\[\],\s]+\s([A-Za-z_][A-Za-z0-9_]*)\s*\([^;]*\)\s*\{?\s*$`), UnitMethod, 1},
		},
		importLines: []*regexp.Regexp{regexp.MustCompile(`^\s*using\s+([A-Za-z0-9_.]+);`)},
		lineComment: "//",
	}

	rules["php"] = languageRules{
		signatures: []compiledSignature{
			{regexp.MustCompile(`^\s*(?:public|private|protected|static|\s)*function\s+([A-Za-z_][A-Za-z0-9_]*)\s*\(`), UnitFunction, 1},
			{regexp.MustCompile(`^\s*class\s+([A-Za-z_][A-Za-z0-9_]*)`), UnitClass, 1},
		},
		importLines: []*regexp.Regexp{
			regexp.MustCompile(`^\s*use\s+([A-Za-z0-9_\\]+);`),
			regexp.MustCompile(`^\s*require(?:_once)?\s*\(?['"]([^'"]+)['"]\)?;`),
		},
		lineComment: "//",
	}

	rules["sql"] = languageRules{
		signatures: []compiledSignature{
			{regexp.MustCompile(`(?i)^\s*create\s+(?:or\s+replace\s+)?(?:table|view)\s+([A-Za-z_][A-Za-z0-9_."]*)`), UnitClass, 1},
			{regexp.MustCompile(`(?i)^\s*create\s+(?:or\s+replace\s+)?(?:function|procedure)\s+([A-Za-z_][A-Za-z0-9_."]*)`), UnitFunction, 1},
		},
		importLines: nil,
		lineComment: "--",
	}

	return rules
}

func parseImports(lines []string, rules languageRules) []ImportRef {
	var out []ImportRef
	for i, line := range lines {
		for _, re := range rules.importLines {
			m := re.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			ref := ImportRef{Line: i + 1, Type: "import"}
			if len(m) >= 3 {
				// from-style import: group1 = module, group2 = imported names
				ref.Module = strings.TrimSpace(m[1])
				ref.Type = "from_import"
				for _, item := range strings.Split(m[2], ",") {
					item = strings.TrimSpace(item)
					if item != "" {
						ref.Items = append(ref.Items, item)
					}
				}
			} else {
				ref.Module = strings.TrimSpace(m[1])
			}
			ref.Relative = strings.HasPrefix(ref.Module, ".")
			out = append(out, ref)
			break
		}
	}
	return out
}
