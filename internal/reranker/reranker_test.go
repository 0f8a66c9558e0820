package reranker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTermOverlapReranker_BoostsExactTokenMatch(t *testing.T) {
	r := NewTermOverlapReranker()

	docs := []Document{
		{ID: "vague", Content: "connection pooling strategies for databases", Score: 0.80},
		{ID: "exact", Content: "class DatabasePool manages connection reuse", Score: 0.78},
	}

	out, err := r.Rerank(context.Background(), "DatabasePool connection", docs, 2)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "exact", out[0].ID)
}

func TestTermOverlapReranker_TopKLimits(t *testing.T) {
	r := NewTermOverlapReranker()
	docs := []Document{
		{ID: "a", Content: "alpha", Score: 0.9},
		{ID: "b", Content: "beta", Score: 0.8},
		{ID: "c", Content: "gamma", Score: 0.7},
	}

	out, err := r.Rerank(context.Background(), "alpha", docs, 2)
	require.NoError(t, err)
	assert.Len(t, out, 2)
}

func TestTermOverlapReranker_EmptyDocs(t *testing.T) {
	r := NewTermOverlapReranker()
	out, err := r.Rerank(context.Background(), "query", nil, 5)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestTermOverlapReranker_StopwordOnlyQueryFallsBack(t *testing.T) {
	r := NewTermOverlapReranker()
	docs := []Document{
		{ID: "low", Content: "x", Score: 0.2},
		{ID: "high", Content: "y", Score: 0.9},
	}

	out, err := r.Rerank(context.Background(), "the and for", docs, 2)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "high", out[0].ID)
}

func TestTermOverlapReranker_NilContext(t *testing.T) {
	r := NewTermOverlapReranker()
	//nolint:staticcheck // passing nil ctx deliberately
	_, err := r.Rerank(nil, "q", []Document{{ID: "a"}}, 1)
	assert.ErrorIs(t, err, ErrNilContext)
}

func TestTermOverlap(t *testing.T) {
	q := tokenize("database pool connection")
	full := termOverlap(q, tokenize("the database pool holds each connection"))
	assert.InDelta(t, 1.0, full, 0.001)

	partial := termOverlap(q, tokenize("database things"))
	assert.InDelta(t, 1.0/3.0, partial, 0.001)

	none := termOverlap(q, tokenize("unrelated text"))
	assert.Zero(t, none)
}
