package search

import "testing"

func TestFuse_EmptyPoolNoError(t *testing.T) {
	out := Fuse(nil, "anything", FusionConfig{Method: MethodWeighted})
	if len(out) != 0 {
		t.Fatalf("expected empty result for empty pool, got %d", len(out))
	}
}

func TestFuse_ExactTokenWinsWeighted(t *testing.T) {
	pool := []Doc{
		{ID: "a", Content: "type DatabasePool struct { conns []Conn }", Dense: 0.4},
		{ID: "b", Content: "a completely unrelated helper function", Dense: 0.5},
	}
	out := Fuse(pool, "DatabasePool connection", FusionConfig{Method: MethodWeighted, Alpha: AlphaOf(0.5)})
	if out[0].Doc.ID != "a" {
		t.Fatalf("expected exact-token doc to win hybrid fusion, got %s first", out[0].Doc.ID)
	}
}

func TestFuse_NilAlphaUsesDefault(t *testing.T) {
	pool := []Doc{
		{ID: "a", Content: "token match", Dense: 0.4},
		{ID: "b", Content: "nothing shared", Dense: 0.5},
	}
	withDefault := Fuse(pool, "token match", FusionConfig{Method: MethodWeighted})
	explicit := Fuse(pool, "token match", FusionConfig{Method: MethodWeighted, Alpha: AlphaOf(DefaultAlpha)})
	for i := range withDefault {
		if withDefault[i].Doc.ID != explicit[i].Doc.ID || withDefault[i].Score != explicit[i].Score {
			t.Fatalf("nil alpha must behave exactly like the default blend: %v vs %v", withDefault, explicit)
		}
	}
}

func TestFuse_AlphaZeroIsPureLexical(t *testing.T) {
	// Alpha=0.0 is keyword mode: the dense score must not contribute at
	// all, so the lexical match beats a dense-dominant doc.
	pool := []Doc{
		{ID: "dense-only", Content: "completely unrelated prose", Dense: 0.99},
		{ID: "lexical-only", Content: "DatabasePool DatabasePool", Dense: 0.01},
	}
	out := Fuse(pool, "DatabasePool", FusionConfig{Method: MethodWeighted, Alpha: AlphaOf(0.0)})
	if out[0].Doc.ID != "lexical-only" {
		t.Fatalf("alpha 0.0 must be pure lexical, got %s first", out[0].Doc.ID)
	}
	if out[1].Score != 0 {
		t.Fatalf("doc with no lexical overlap must score 0 at alpha 0.0, got %v", out[1].Score)
	}
}

func TestFuse_AlphaOneIsPureDense(t *testing.T) {
	pool := []Doc{
		{ID: "dense-only", Content: "completely unrelated prose", Dense: 0.99},
		{ID: "lexical-only", Content: "DatabasePool DatabasePool", Dense: 0.01},
	}
	out := Fuse(pool, "DatabasePool", FusionConfig{Method: MethodWeighted, Alpha: AlphaOf(1.0)})
	if out[0].Doc.ID != "dense-only" {
		t.Fatalf("alpha 1.0 must be pure dense, got %s first", out[0].Doc.ID)
	}
}

func TestFuse_RRFCombinesBothRankings(t *testing.T) {
	pool := []Doc{
		{ID: "dense-winner", Content: "irrelevant text here", Dense: 0.9},
		{ID: "lexical-winner", Content: "DatabasePool DatabasePool DatabasePool", Dense: 0.1},
	}
	out := Fuse(pool, "DatabasePool", FusionConfig{Method: MethodRRF})
	if len(out) != 2 {
		t.Fatalf("expected 2 results, got %d", len(out))
	}
	// Both docs must receive a positive RRF score.
	for _, f := range out {
		if f.Score <= 0 {
			t.Fatalf("expected positive RRF score for %s, got %v", f.Doc.ID, f.Score)
		}
	}
}

func TestFuse_Cascade_RespectsDenseOrderThenBM25(t *testing.T) {
	pool := []Doc{
		{ID: "a", Content: "token match token match", Dense: 0.9},
		{ID: "b", Content: "no overlap at all", Dense: 0.1},
	}
	out := Fuse(pool, "token match", FusionConfig{Method: MethodCascade})
	if out[0].Doc.ID != "a" {
		t.Fatalf("expected cascade to favor dense-ranked doc with matching terms, got %s", out[0].Doc.ID)
	}
}

func TestResolveMode_DowngradesWhenDisabled(t *testing.T) {
	if got := ResolveMode(ModeHybrid, false); got != ModeSemantic {
		t.Fatalf("expected downgrade to semantic, got %s", got)
	}
	if got := ResolveMode(ModeHybrid, true); got != ModeHybrid {
		t.Fatalf("expected hybrid to pass through when enabled, got %s", got)
	}
}

func TestBM25_IDFHigherForRareTerms(t *testing.T) {
	pool := []Doc{
		{ID: "1", Content: "common common common rare"},
		{ID: "2", Content: "common common common"},
		{ID: "3", Content: "common common common"},
	}
	idx := NewIndex(pool, DefaultBM25Params())
	scores := idx.Scores("rare")
	if scores[0] <= scores[1] {
		t.Fatalf("doc containing the rare term should score higher: %v", scores)
	}
}
