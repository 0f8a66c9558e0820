package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

// SessionSummary is the distilled record of one conversation session:
// what the client kept asking about, plus any structured facts the
// extractor pulled from the query stream. The caller turns it into a
// SESSION_STATE MemoryUnit.
type SessionSummary struct {
	Title   string
	Content string
	Tags    []string
	Facts   []Fact
}

// SessionSummarizer distills a flushed SessionBuffer into a summary.
type SessionSummarizer struct {
	extractor FactExtractor
	logger    *zap.Logger
}

// NewSessionSummarizer creates a summarizer. The extractor may be nil;
// summaries then carry no structured facts.
func NewSessionSummarizer(extractor FactExtractor, logger *zap.Logger) *SessionSummarizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionSummarizer{extractor: extractor, logger: logger}
}

// Summarize produces a SessionSummary from a flushed buffer. Returns nil
// with no error when the buffer is nil or empty.
func (s *SessionSummarizer) Summarize(ctx context.Context, buf *SessionBuffer) (*SessionSummary, error) {
	if buf == nil || len(buf.Turns) == 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	queries := make([]string, 0, len(buf.Turns))
	shown := make(map[string]struct{})
	for _, turn := range buf.Turns {
		if q := strings.TrimSpace(turn.Query); q != "" {
			queries = append(queries, q)
		}
		for _, id := range turn.ResultIDs {
			shown[id] = struct{}{}
		}
	}
	if len(queries) == 0 {
		return nil, nil
	}

	referenceDate := buf.StartedAt
	if referenceDate.IsZero() {
		referenceDate = time.Now()
	}

	var facts []Fact
	if s.extractor != nil {
		extracted, err := s.extractor.Extract(ctx, strings.Join(queries, ". "), referenceDate)
		if err != nil {
			s.logger.Warn("fact extraction failed, summarizing without facts",
				zap.String("session_id", buf.SessionID), zap.Error(err))
		} else {
			facts = extracted
		}
	}

	summary := &SessionSummary{
		Title:   fmt.Sprintf("Session %s (%d queries)", buf.SessionID, len(queries)),
		Content: buildSessionContent(queries, facts, len(shown)),
		Tags:    topQueryTerms(queries, 5),
		Facts:   facts,
	}

	s.logger.Debug("summarized session",
		zap.String("session_id", buf.SessionID),
		zap.Int("queries", len(queries)),
		zap.Int("facts", len(facts)))
	return summary, nil
}

// buildSessionContent renders the session as a readable note: the query
// stream, extracted facts, and how many distinct results were surfaced.
func buildSessionContent(queries []string, facts []Fact, shownCount int) string {
	var b strings.Builder
	b.WriteString("Queries this session:\n")
	for _, q := range queries {
		b.WriteString("- ")
		b.WriteString(q)
		b.WriteString("\n")
	}
	if len(facts) > 0 {
		b.WriteString("\nExtracted facts:\n")
		for _, f := range facts {
			fmt.Fprintf(&b, "- %s\n", f.String())
		}
	}
	fmt.Fprintf(&b, "\n%d distinct results were surfaced.", shownCount)
	return b.String()
}

// topQueryTerms returns the most frequent query tokens (≥3 chars) as
// tags, bounded by max.
func topQueryTerms(queries []string, max int) []string {
	counts := make(map[string]int)
	for _, q := range queries {
		for _, tok := range strings.Fields(strings.ToLower(q)) {
			tok = strings.Trim(tok, `.,;:!?"'()`)
			if len(tok) >= 3 {
				counts[tok]++
			}
		}
	}
	terms := make([]string, 0, len(counts))
	for t := range counts {
		terms = append(terms, t)
	}
	sort.Slice(terms, func(i, j int) bool {
		if counts[terms[i]] != counts[terms[j]] {
			return counts[terms[i]] > counts[terms[j]]
		}
		return terms[i] < terms[j]
	})
	if len(terms) > max {
		terms = terms[:max]
	}
	return terms
}
