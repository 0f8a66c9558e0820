// Package reranker is the optional final re-ranking stage after hybrid
// fusion. The default deployment runs without one (fusion plus the usage
// composite already orders results); the interface is the seam where a
// cross-encoder or other richer model can be plugged in later.
package reranker

import (
	"context"
	"errors"
	"sort"
	"strings"
)

// ErrNilContext is returned when a nil context is passed to Rerank.
var ErrNilContext = errors.New("context cannot be nil")

// Document is one fused search hit entering the re-ranking stage.
type Document struct {
	ID      string
	Content string
	Score   float32 // fused score from the hybrid stage
}

// ScoredDocument is a document with its re-ranked score.
type ScoredDocument struct {
	Document
	RerankerScore float32 // this stage's score, 0.0-1.0
	OriginalRank  int     // position before re-ranking, 0-indexed
}

// Reranker re-orders fused results by query relevance.
type Reranker interface {
	// Rerank returns docs sorted by descending relevance, at most topK.
	Rerank(ctx context.Context, query string, docs []Document, topK int) ([]ScoredDocument, error)

	// Close releases any model resources.
	Close() error
}

// TermOverlapReranker blends the fused score 50/50 with the fraction of
// query terms present in each document. It sharpens exact-identifier
// matches that dense retrieval under-ranks, at zero model cost.
type TermOverlapReranker struct{}

// NewTermOverlapReranker creates a TermOverlapReranker.
func NewTermOverlapReranker() *TermOverlapReranker {
	return &TermOverlapReranker{}
}

// Rerank implements Reranker.
func (r *TermOverlapReranker) Rerank(ctx context.Context, query string, docs []Document, topK int) ([]ScoredDocument, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if topK <= 0 {
		topK = len(docs)
	}
	if len(docs) == 0 {
		return []ScoredDocument{}, nil
	}

	queryTokens := tokenize(query)
	if len(queryTokens) == 0 {
		return rankByScore(docs, topK), nil
	}

	type scored struct {
		doc      ScoredDocument
		combined float32
	}
	out := make([]scored, len(docs))
	for i, doc := range docs {
		overlap := termOverlap(queryTokens, tokenize(doc.Content))
		out[i] = scored{
			doc: ScoredDocument{
				Document:      doc,
				RerankerScore: overlap,
				OriginalRank:  i,
			},
			combined: 0.5*doc.Score + 0.5*overlap,
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].combined > out[j].combined })

	if topK > len(out) {
		topK = len(out)
	}
	result := make([]ScoredDocument, topK)
	for i := 0; i < topK; i++ {
		result[i] = out[i].doc
	}
	return result, nil
}

// Close implements Reranker; nothing to release.
func (r *TermOverlapReranker) Close() error { return nil }

// tokenize lowercases and splits on non-alphanumeric runes, dropping
// stopwords and tokens shorter than 3 characters. Unlike the BM25 stage,
// stopwords ARE dropped here: overlap over function words would flatten
// every document toward the same score.
func tokenize(text string) []string {
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '_')
	})
	filtered := tokens[:0]
	for _, tok := range tokens {
		if len(tok) > 2 && !stopwords[tok] {
			filtered = append(filtered, tok)
		}
	}
	return filtered
}

var stopwords = map[string]bool{
	"the": true, "and": true, "but": true, "for": true, "with": true,
	"from": true, "was": true, "are": true, "been": true, "being": true,
	"have": true, "has": true, "had": true, "does": true, "did": true,
	"will": true, "would": true, "could": true, "should": true, "may": true,
	"might": true, "can": true, "this": true, "that": true, "these": true,
	"those": true, "what": true, "which": true, "who": true, "when": true,
	"where": true, "why": true, "how": true, "they": true, "she": true,
}

// termOverlap returns the fraction of distinct query tokens present in
// the document.
func termOverlap(queryTokens, docTokens []string) float32 {
	if len(queryTokens) == 0 {
		return 0
	}
	docSet := make(map[string]bool, len(docTokens))
	for _, tok := range docTokens {
		docSet[tok] = true
	}
	matched := make(map[string]bool)
	for _, tok := range queryTokens {
		if docSet[tok] {
			matched[tok] = true
		}
	}
	return float32(len(matched)) / float32(len(queryTokens))
}

// rankByScore is the fallback ordering when the query has no rankable
// tokens.
func rankByScore(docs []Document, topK int) []ScoredDocument {
	sorted := append([]Document(nil), docs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Score > sorted[j].Score })
	if topK > len(sorted) {
		topK = len(sorted)
	}
	out := make([]ScoredDocument, topK)
	for i := 0; i < topK; i++ {
		out[i] = ScoredDocument{Document: sorted[i], RerankerScore: sorted[i].Score, OriginalRank: i}
	}
	return out
}
