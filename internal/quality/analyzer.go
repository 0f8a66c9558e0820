package quality

import (
	"context"
	"regexp"
	"strings"

	"github.com/fyrsmithlabs/ctxengine/internal/codeunits"
)

// NeighborLookup finds the nearest stored neighbours of a code unit's
// content within its project's code collection, used to compute
// DuplicationScore. Implementations query the vector store directly;
// the analyzer never embeds or stores anything itself.
type NeighborLookup interface {
	// NearestCodeNeighbors returns up to k (score, id) pairs for units
	// similar to content, excluding excludeID, ordered by descending
	// score. Implementations may return fewer than k.
	NearestCodeNeighbors(ctx context.Context, projectName, excludeID, content string, k int) ([]float32, error)
}

// Analyzer computes the per-code-unit quality metrics.
type Analyzer struct {
	neighbors NeighborLookup
}

// NewAnalyzer builds an Analyzer. neighbors may be nil, in which case
// DuplicationScore is always 0 (no corpus to compare against).
func NewAnalyzer(neighbors NeighborLookup) *Analyzer {
	return &Analyzer{neighbors: neighbors}
}

var branchKeyword = regexp.MustCompile(`\b(if|for|while|case|catch|except|elif|else if|&&|\|\||\?\?|\band\b|\bor\b)\b`)

// Analyze computes every metric for unit. projectName/unitID are
// used only to look up duplication neighbours; pass "" to skip that step.
func (a *Analyzer) Analyze(ctx context.Context, projectName, unitID string, unit codeunits.Unit) Metrics {
	m := Metrics{
		LineCount:            lineCount(unit),
		CyclomaticComplexity: cyclomaticComplexity(unit.Content),
		NestingDepth:         nestingDepth(unit.Content),
		ParameterCount:       parameterCount(unit.Signature),
		HasDocumentation:     hasDocumentation(unit),
	}
	m.DuplicationScore = a.duplicationScore(ctx, projectName, unitID, unit.Content)
	m.MaintainabilityIndex = maintainabilityIndex(m)
	m.QualityFlags = flagsFor(m)
	return m
}

func lineCount(u codeunits.Unit) int {
	if u.EndLine >= u.StartLine && u.StartLine > 0 {
		return u.EndLine - u.StartLine + 1
	}
	return strings.Count(u.Content, "\n") + 1
}

// cyclomaticComplexity approximates McCabe complexity by counting branch
// keywords/operators in the unit's text plus a base path of 1. Go units
// extracted by the real go/ast parser carry exact branch points already
// folded into their content shape (one statement per line), so the same
// token count is a closer-to-exact measure there than for heuristically
// extracted languages, but the formula is intentionally the same for both
// regardless of which parser produced the unit.
func cyclomaticComplexity(content string) int {
	matches := branchKeyword.FindAllString(content, -1)
	return 1 + len(matches)
}

// nestingDepth tracks max brace/indent depth reached in the unit body.
// Brace-delimited languages count `{`/`}`; indentation-delimited ones
// (Python) fall back to leading-whitespace depth relative to the unit's
// own indentation.
func nestingDepth(content string) int {
	if strings.Contains(content, "{") {
		depth, max := 0, 0
		for _, r := range content {
			switch r {
			case '{':
				depth++
				if depth > max {
					max = depth
				}
			case '}':
				if depth > 0 {
					depth--
				}
			}
		}
		return max
	}

	lines := strings.Split(content, "\n")
	if len(lines) == 0 {
		return 0
	}
	baseIndent := leadingSpaces(lines[0])
	maxIndent := 0
	for _, line := range lines[1:] {
		if strings.TrimSpace(line) == "" {
			continue
		}
		indent := leadingSpaces(line) - baseIndent
		if indent > maxIndent {
			maxIndent = indent
		}
	}
	// Python's 4-space convention turns indent columns into nesting levels.
	return maxIndent / 4
}

func leadingSpaces(s string) int {
	n := 0
	for _, r := range s {
		if r == ' ' {
			n++
		} else if r == '\t' {
			n += 4
		} else {
			break
		}
	}
	return n
}

var paramSplit = regexp.MustCompile(`\(([^)]*)\)`)

func parameterCount(signature string) int {
	match := paramSplit.FindStringSubmatch(signature)
	if match == nil {
		return 0
	}
	inner := strings.TrimSpace(match[1])
	if inner == "" {
		return 0
	}
	return len(strings.Split(inner, ","))
}

func hasDocumentation(u codeunits.Unit) bool {
	lines := strings.Split(u.Content, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if i > 2 {
			break
		}
		switch {
		case strings.HasPrefix(trimmed, "//"), strings.HasPrefix(trimmed, "#"),
			strings.HasPrefix(trimmed, "/*"), strings.HasPrefix(trimmed, "\"\"\""),
			strings.HasPrefix(trimmed, "'''"), strings.HasPrefix(trimmed, "*"):
			return true
		}
	}
	return false
}

func (a *Analyzer) duplicationScore(ctx context.Context, projectName, unitID, content string) float64 {
	if a.neighbors == nil || projectName == "" {
		return 0
	}
	scores, err := a.neighbors.NearestCodeNeighbors(ctx, projectName, unitID, content, 2)
	if err != nil || len(scores) == 0 {
		return 0
	}
	// The nearest neighbour to a unit's own stored vector is itself
	// (score 1.0); wants the *next*-highest similarity.
	best := float32(0)
	for i, s := range scores {
		if i == 0 {
			continue
		}
		if s > best {
			best = s
		}
	}
	if len(scores) == 1 {
		best = scores[0]
	}
	return float64(best)
}

// maintainabilityIndex is a simplified 0-100 blend of complexity, size,
// and nesting — higher is healthier. Not the classical Halstead-volume
// formula (no Halstead metrics are computed elsewhere in this pipeline);
// this is a deliberately simpler proxy that still ranks the same way the
// classical formula's depressants (length, branching, nesting) would.
func maintainabilityIndex(m Metrics) float64 {
	score := 100.0
	score -= float64(m.CyclomaticComplexity) * 2.0
	score -= float64(m.LineCount) * 0.1
	score -= float64(m.NestingDepth) * 3.0
	if m.DuplicationScore > duplicateScoreFloor {
		score -= 15.0
	}
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}

func flagsFor(m Metrics) []string {
	var flags []string
	if m.CyclomaticComplexity >= highComplexity {
		flags = append(flags, "high_complexity")
	}
	if m.LineCount > longFunctionLines {
		flags = append(flags, "long_function")
	}
	if m.NestingDepth >= deepNesting {
		flags = append(flags, "deep_nesting")
	}
	if m.DuplicationScore > duplicateScoreFloor {
		flags = append(flags, "duplicated")
	}
	if !m.HasDocumentation {
		flags = append(flags, "undocumented")
	}
	if m.MaintainabilityIndex < lowMaintainability {
		flags = append(flags, "low_maintainability")
	}
	return flags
}
