package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSessionSummarizer_EmptyBufferYieldsNil(t *testing.T) {
	s := NewSessionSummarizer(nil, zap.NewNop())

	summary, err := s.Summarize(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, summary)

	summary, err = s.Summarize(context.Background(), &SessionBuffer{SessionID: "s1"})
	require.NoError(t, err)
	assert.Nil(t, summary)
}

func TestSessionSummarizer_SummarizesQueries(t *testing.T) {
	s := NewSessionSummarizer(NewSimpleExtractor(), zap.NewNop())

	buf := &SessionBuffer{
		SessionID:   "s1",
		ProjectName: "proj",
		StartedAt:   time.Now(),
		Turns: []TurnEntry{
			{Query: "database connection pooling", ResultIDs: []string{"m1", "m2"}},
			{Query: "database retry backoff", ResultIDs: []string{"m2", "m3"}},
		},
	}

	summary, err := s.Summarize(context.Background(), buf)
	require.NoError(t, err)
	require.NotNil(t, summary)

	assert.Contains(t, summary.Title, "s1")
	assert.Contains(t, summary.Content, "database connection pooling")
	assert.Contains(t, summary.Content, "database retry backoff")
	// Three distinct result IDs were surfaced across the turns.
	assert.Contains(t, summary.Content, "3 distinct results")
	// "database" appears in both queries, so it leads the tag list.
	require.NotEmpty(t, summary.Tags)
	assert.Equal(t, "database", summary.Tags[0])
}

func TestSessionSummarizer_NilExtractorStillSummarizes(t *testing.T) {
	s := NewSessionSummarizer(nil, zap.NewNop())

	buf := &SessionBuffer{
		SessionID: "s2",
		Turns:     []TurnEntry{{Query: "anything at all"}},
	}
	summary, err := s.Summarize(context.Background(), buf)
	require.NoError(t, err)
	require.NotNil(t, summary)
	assert.Empty(t, summary.Facts)
}

func TestTopQueryTerms(t *testing.T) {
	terms := topQueryTerms([]string{"redis cache eviction", "redis cache ttl", "redis cluster"}, 2)
	require.Len(t, terms, 2)
	assert.Equal(t, "redis", terms[0])
	assert.Equal(t, "cache", terms[1])
}
