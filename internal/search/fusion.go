package search

import "sort"

// Method selects one of the three fusion strategies.
type Method string

const (
	MethodWeighted Method = "weighted"
	MethodRRF      Method = "rrf"
	MethodCascade  Method = "cascade"
)

// Mode is the client-selectable search_mode.
type Mode string

const (
	ModeSemantic Mode = "semantic"
	ModeKeyword  Mode = "keyword"
	ModeHybrid   Mode = "hybrid"
)

// RRFConstant is the fixed k used by reciprocal rank fusion.
const RRFConstant = 60.0

// DefaultAlpha is the weighted-fusion blend used when none is configured.
const DefaultAlpha = 0.5

// FusionConfig carries the fusion tunables.
type FusionConfig struct {
	Method Method

	// Alpha is weighted fusion's dense-vs-lexical blend: 1.0 is
	// dense-only, 0.0 is lexical-only. Nil means DefaultAlpha; 0.0 is a
	// real value, not "unset".
	Alpha *float64

	BM25 BM25Params
}

// AlphaOf is a convenience for building a FusionConfig literal.
func AlphaOf(v float64) *float64 { return &v }

// Fused is one fusion result: the original doc plus its fused score.
type Fused struct {
	Doc   Doc
	Score float64
}

// Fuse combines dense and BM25 rankings over pool according to cfg.Method.
// A pool of size 0 returns an empty slice without error.
func Fuse(pool []Doc, query string, cfg FusionConfig) []Fused {
	if len(pool) == 0 {
		return nil
	}
	idx := NewIndex(pool, cfg.BM25)

	switch cfg.Method {
	case MethodRRF:
		return fuseRRF(pool, idx, query)
	case MethodCascade:
		return fuseCascade(pool, idx, query)
	default:
		return fuseWeighted(pool, idx, query, cfg.Alpha)
	}
}

func fuseWeighted(pool []Doc, idx *Index, query string, alphaCfg *float64) []Fused {
	alpha := DefaultAlpha
	if alphaCfg != nil {
		alpha = *alphaCfg
	}
	bm25Norm := idx.NormalizedScores(query)
	out := make([]Fused, len(pool))
	for i, d := range pool {
		out[i] = Fused{Doc: d, Score: alpha*float64(d.Dense) + (1-alpha)*bm25Norm[i]}
	}
	sortDesc(out)
	return out
}

func fuseRRF(pool []Doc, idx *Index, query string) []Fused {
	bm25Scores := idx.Scores(query)

	denseRank := rankOf(denseOrder(pool))
	bm25Rank := rankOf(bm25Order(bm25Scores))

	out := make([]Fused, len(pool))
	for i, d := range pool {
		score := 1/(RRFConstant+float64(denseRank[i])) + 1/(RRFConstant+float64(bm25Rank[i]))
		out[i] = Fused{Doc: d, Score: score}
	}
	sortDesc(out)
	return out
}

func fuseCascade(pool []Doc, idx *Index, query string) []Fused {
	order := denseOrder(pool)
	bm25Scores := idx.Scores(query)

	out := make([]Fused, len(pool))
	for rank, origIdx := range order {
		out[rank] = Fused{Doc: pool[origIdx], Score: bm25Scores[origIdx]}
	}
	sortDesc(out)
	return out
}

// denseOrder returns the indices of pool sorted by descending dense score.
func denseOrder(pool []Doc) []int {
	order := make([]int, len(pool))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return pool[order[a]].Dense > pool[order[b]].Dense
	})
	return order
}

func bm25Order(scores []float64) []int {
	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})
	return order
}

// rankOf inverts an order slice (index -> rank) so rank[i] is i's 1-based
// position when sorted by `order`.
func rankOf(order []int) []int {
	rank := make([]int, len(order))
	for pos, origIdx := range order {
		rank[origIdx] = pos + 1
	}
	return rank
}

func sortDesc(out []Fused) {
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
}

// ResolveMode downgrades hybrid to semantic when hybrid search is
// disabled by config, and maps an empty request to semantic. The return
// value is the mode that actually ran, which responses report back.
func ResolveMode(requested Mode, hybridEnabled bool) Mode {
	if requested == ModeHybrid && !hybridEnabled {
		return ModeSemantic
	}
	if requested == "" {
		return ModeSemantic
	}
	return requested
}
