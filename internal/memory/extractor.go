package memory

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// maxExtractLength bounds extractor input.
const maxExtractLength = 100000

// relationRule mines one relation shape out of a sentence. Groups 1 and
// 2 of the pattern are the subject and object; entity spans are bounded
// to keep the regexes linear on adversarial input.
type relationRule struct {
	pattern    *regexp.Regexp
	relation   string
	confidence float64
	// swap reverses subject and object, for phrasings like
	// "Y caused by X" where the grammatical order inverts the relation.
	swap bool
}

const entity = `([A-Za-z0-9_./-]{1,64}(?:\s+[A-Za-z0-9_./-]{1,64}){0,3})`

// relationRules covers the phrasings an engineering corpus actually
// produces: dependency statements, platform statements, migrations,
// causality, preference comparisons, and plain declaratives. Ordered
// most-specific first; one fact per sentence, first rule wins.
var relationRules = []relationRule{
	{regexp.MustCompile(`(?i)\b` + entity + `\s+(?:depends\s+on|relies\s+on)\s+` + entity), "depends-on", 0.9, false},
	{regexp.MustCompile(`(?i)\b` + entity + `\s+requires\s+` + entity), "requires", 0.9, false},
	{regexp.MustCompile(`(?i)\b` + entity + `\s+(?:runs|listens)\s+on\s+` + entity), "runs-on", 0.9, false},
	{regexp.MustCompile(`(?i)\b(?:migrat\w+|switch\w*|mov\w+)\s+(?:from\s+)` + entity + `\s+to\s+` + entity), "migrated-to", 0.85, false},
	{regexp.MustCompile(`(?i)\b` + entity + `\s+(?:was\s+)?caused\s+by\s+` + entity), "caused", 0.85, true},
	{regexp.MustCompile(`(?i)\b` + entity + `\s+caused\s+` + entity), "caused", 0.85, false},
	{regexp.MustCompile(`(?i)\bprefer\w*\s+` + entity + `\s+(?:over|to|instead\s+of)\s+` + entity), "preferred-over", 0.8, false},
	{regexp.MustCompile(`(?i)\b` + entity + `\s+uses\s+` + entity), "uses", 0.8, false},
	{regexp.MustCompile(`(?i)\b` + entity + `\s+(?:is|are)\s+(?:an?\s+)?` + entity), "is", 0.6, false},
}

// SimpleExtractor is the rule-based FactExtractor the session
// summarizer uses by default. It is deliberately shallow: high-precision
// phrasings only, no attempt at open-ended parsing, because a wrong
// fact in a distilled memory pollutes every later retrieval that
// surfaces it.
type SimpleExtractor struct {
	rules []relationRule
}

// NewSimpleExtractor builds the extractor with the built-in rules.
func NewSimpleExtractor() *SimpleExtractor {
	return &SimpleExtractor{rules: relationRules}
}

// Extract implements FactExtractor: one pass per sentence, first
// matching rule wins, relative time phrases shift ObservedAt.
func (e *SimpleExtractor) Extract(ctx context.Context, text string, referenceDate time.Time) ([]Fact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if text == "" {
		return nil, ErrEmptyFactText
	}
	if len(text) > maxExtractLength {
		return nil, fmt.Errorf("text exceeds maximum length of %d bytes", maxExtractLength)
	}

	var facts []Fact
	for i, sentence := range sentences(text) {
		if i%64 == 63 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		for _, rule := range e.rules {
			groups := rule.pattern.FindStringSubmatch(sentence)
			if groups == nil {
				continue
			}
			subject, object := strings.TrimSpace(groups[1]), strings.TrimSpace(groups[2])
			if rule.swap {
				subject, object = object, subject
			}
			fact := Fact{
				Subject:    subject,
				Relation:   rule.relation,
				Object:     object,
				Confidence: rule.confidence,
				Source:     sentence,
				ObservedAt: observedAt(sentence, referenceDate),
			}
			if fact.Validate() == nil {
				facts = append(facts, fact)
			}
			break
		}
	}
	return facts, nil
}

var sentenceBoundary = regexp.MustCompile(`[.!?\n]+`)

// sentences splits text on terminators and newlines, dropping empties.
func sentences(text string) []string {
	parts := sentenceBoundary.Split(text, -1)
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// appendedDate finds a "(Month D, YYYY)" stamp the temporal resolver
// appended.
var appendedDate = regexp.MustCompile(`\((?:January|February|March|April|May|June|July|August|September|October|November|December) \d{1,2}, \d{4}\)`)

// observedAt anchors a fact in time by running the sentence through the
// temporal resolver and reading the first absolute date it appends.
// A sentence with no relative time phrase observes at the reference
// date itself.
func observedAt(sentence string, referenceDate time.Time) time.Time {
	resolved := ResolveTemporalReferences(sentence, referenceDate)
	if m := appendedDate.FindString(resolved); m != "" {
		if t, err := time.Parse("(January 2, 2006)", m); err == nil {
			return t
		}
	}
	return referenceDate
}
