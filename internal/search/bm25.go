// Package search implements the hybrid retrieval layer: a per-query BM25
// index over the dense-retrieval candidate pool and the three fusion
// strategies that combine dense and lexical rankings.
//
// Grounded on internal/reranker/simple.go's term-overlap tokenizer and
// 50/50 blend-with-original-score shape, generalized from a flat overlap
// ratio into a real Okapi BM25 scorer with configurable k1/b, plus
// weighted/RRF/cascade fusion in place of the single fixed blend.
package search

import (
	"math"
	"strings"
)

// Doc is one member of the query-local candidate pool: a dense hit plus
// the text BM25 scores against.
type Doc struct {
	ID      string
	Content string
	Dense   float32
}

// BM25Params configures the BM25 scorer. Defaults match common practice
// (k1=1.2, b=0.75) and are overridden from config's bm25_k1/bm25_b.
type BM25Params struct {
	K1 float64
	B  float64
}

// DefaultBM25Params returns the conventional Okapi BM25 defaults.
func DefaultBM25Params() BM25Params {
	return BM25Params{K1: 1.2, B: 0.75}
}

// Index is a BM25 index built fresh for one query's candidate pool.
// Tokenization is whitespace + punctuation splitting, lowercased, with no
// stopword removal — stopwords are meaningful in code identifiers like
// `is_valid` or `for_each`.
type Index struct {
	params    BM25Params
	docs      []Doc
	docTokens [][]string
	docFreq   map[string]int // number of docs containing a term
	avgDocLen float64
}

// NewIndex tokenizes every doc in pool and builds term-document frequency
// statistics once, up front, so scoring a query against the pool is O(pool
// size) per term rather than re-tokenizing per call.
func NewIndex(pool []Doc, params BM25Params) *Index {
	idx := &Index{
		params:    params,
		docs:      pool,
		docTokens: make([][]string, len(pool)),
		docFreq:   make(map[string]int),
	}
	totalLen := 0
	for i, d := range pool {
		tokens := Tokenize(d.Content)
		idx.docTokens[i] = tokens
		totalLen += len(tokens)

		seen := make(map[string]struct{}, len(tokens))
		for _, tok := range tokens {
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			idx.docFreq[tok]++
		}
	}
	if len(pool) > 0 {
		idx.avgDocLen = float64(totalLen) / float64(len(pool))
	}
	return idx
}

// Tokenize lowercases and splits on whitespace/punctuation, keeping
// alphanumerics and underscores so identifiers like `http_client` survive
// as single tokens. No stopword list is applied.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '_')
	})
}

// Scores returns the BM25 score for every document in the pool against
// query, in the same order as the pool passed to NewIndex.
func (idx *Index) Scores(query string) []float64 {
	n := len(idx.docs)
	scores := make([]float64, n)
	if n == 0 {
		return scores
	}
	queryTokens := Tokenize(query)
	if len(queryTokens) == 0 {
		return scores
	}

	k1, b := idx.params.K1, idx.params.B
	if k1 == 0 && b == 0 {
		def := DefaultBM25Params()
		k1, b = def.K1, def.B
	}

	for i := range idx.docs {
		termFreq := make(map[string]int)
		for _, tok := range idx.docTokens[i] {
			termFreq[tok]++
		}
		docLen := float64(len(idx.docTokens[i]))

		var score float64
		for _, term := range queryTokens {
			df := idx.docFreq[term]
			if df == 0 {
				continue
			}
			idf := math.Log(1 + (float64(n)-float64(df)+0.5)/(float64(df)+0.5))
			tf := float64(termFreq[term])
			denom := tf + k1*(1-b+b*docLen/idx.avgDocLen)
			if denom == 0 {
				continue
			}
			score += idf * (tf * (k1 + 1) / denom)
		}
		scores[i] = score
	}
	return scores
}

// NormalizedScores rescales BM25 scores to [0,1] over the candidate pool,
// as the weighted fusion requires for `bm25_norm`. A pool with zero
// score range normalizes to all-zero rather than dividing by zero.
func (idx *Index) NormalizedScores(query string) []float64 {
	raw := idx.Scores(query)
	if len(raw) == 0 {
		return raw
	}
	min, max := raw[0], raw[0]
	for _, s := range raw {
		if s < min {
			min = s
		}
		if s > max {
			max = s
		}
	}
	norm := make([]float64, len(raw))
	rangeV := max - min
	for i, s := range raw {
		if rangeV == 0 {
			norm[i] = 0
			continue
		}
		norm[i] = (s - min) / rangeV
	}
	return norm
}

// MinPoolSize is the floor imposes on the candidate pool passed to
// NewIndex (3x requested limit, minimum 50).
func CandidatePoolSize(requestedLimit int) int {
	size := requestedLimit * 3
	if size < 50 {
		size = 50
	}
	return size
}
