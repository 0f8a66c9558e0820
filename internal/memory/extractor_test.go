package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func extractOne(t *testing.T, text string) Fact {
	t.Helper()
	facts, err := NewSimpleExtractor().Extract(context.Background(), text, temporalSession)
	require.NoError(t, err)
	require.Len(t, facts, 1, "expected exactly one fact from %q", text)
	return facts[0]
}

func TestSimpleExtractor_RelationShapes(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		subject  string
		relation string
		object   string
	}{
		{"uses", "the ingest service uses kafka", "the ingest service", "uses", "kafka"},
		{"depends on", "search depends on qdrant", "search", "depends-on", "qdrant"},
		{"requires", "the exporter requires graphviz", "the exporter", "requires", "graphviz"},
		{"runs on", "the api runs on port 9090", "the api", "runs-on", "port 9090"},
		{"migration", "we migrated from chroma to qdrant", "chroma", "migrated-to", "qdrant"},
		{"preference", "the team prefers sqlite over postgres", "sqlite", "preferred-over", "postgres"},
		{"causality", "the outage caused data loss", "the outage", "caused", "data loss"},
		{"declarative", "the ledger is append-only", "the ledger", "is", "append-only"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := extractOne(t, tt.text)
			assert.Equal(t, tt.subject, f.Subject)
			assert.Equal(t, tt.relation, f.Relation)
			assert.Equal(t, tt.object, f.Object)
			assert.Equal(t, tt.text, f.Source)
		})
	}
}

func TestSimpleExtractor_CausedBySwapsOrder(t *testing.T) {
	f := extractOne(t, "the data loss was caused by the outage")
	assert.Equal(t, "the outage", f.Subject)
	assert.Equal(t, "caused", f.Relation)
	assert.Equal(t, "the data loss", f.Object)
}

func TestSimpleExtractor_OneFactPerSentence(t *testing.T) {
	facts, err := NewSimpleExtractor().Extract(context.Background(),
		"search depends on qdrant. the api uses redis.", temporalSession)
	require.NoError(t, err)
	assert.Len(t, facts, 2)
}

func TestSimpleExtractor_NoMatchNoFacts(t *testing.T) {
	facts, err := NewSimpleExtractor().Extract(context.Background(),
		"an unstructured remark about nothing in particular!", temporalSession)
	require.NoError(t, err)
	assert.Empty(t, facts)
}

func TestSimpleExtractor_TemporalAnchoring(t *testing.T) {
	f := extractOne(t, "the importer migrated from csv to parquet yesterday")
	assert.Equal(t, time.Date(2026, time.January, 29, 0, 0, 0, 0, time.UTC), f.ObservedAt)

	plain := extractOne(t, "search depends on qdrant")
	assert.Equal(t, temporalSession, plain.ObservedAt)
}

func TestSimpleExtractor_EmptyTextRejected(t *testing.T) {
	_, err := NewSimpleExtractor().Extract(context.Background(), "", temporalSession)
	assert.ErrorIs(t, err, ErrEmptyFactText)
}

func TestFact_Validate(t *testing.T) {
	valid := Fact{Subject: "a", Relation: "uses", Object: "b", Confidence: 0.8}
	assert.NoError(t, valid.Validate())

	missing := Fact{Subject: "a", Relation: "", Object: "b"}
	assert.ErrorIs(t, missing.Validate(), ErrIncompleteFact)

	outOfRange := valid
	outOfRange.Confidence = 1.5
	assert.Error(t, outOfRange.Validate())
}
