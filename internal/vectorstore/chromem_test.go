package vectorstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ctxengine/internal/vectorstore"
)

func newTestStore(t *testing.T) *vectorstore.ChromemStore {
	t.Helper()
	store, err := vectorstore.NewChromemStore(vectorstore.ChromemConfig{
		Path:              t.TempDir(),
		DefaultCollection: "org_memories",
		VectorSize:        8,
	}, &testEmbedder{VectorSize: 8}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func addDoc(t *testing.T, store *vectorstore.ChromemStore, collection, id, content string, meta map[string]interface{}) {
	t.Helper()
	_, err := store.AddDocuments(context.Background(), []vectorstore.Document{
		{ID: id, Content: content, Metadata: meta, Collection: collection},
	})
	require.NoError(t, err)
}

func TestChromemStore_AddAndSearch(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	addDoc(t, store, "proj_memories", "m1", "user prefers tabs over spaces", map[string]interface{}{
		"category": "preference",
	})
	addDoc(t, store, "proj_memories", "m2", "the deploy pipeline runs on fridays", map[string]interface{}{
		"category": "fact",
	})

	results, err := store.SearchInCollection(ctx, "proj_memories", "user prefers tabs over spaces", 5, nil)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "m1", results[0].ID)
	for _, r := range results {
		assert.GreaterOrEqual(t, r.Score, float32(0))
		assert.LessOrEqual(t, r.Score, float32(1))
	}
}

func TestChromemStore_UpsertSameIDReplaces(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	addDoc(t, store, "proj_memories", "m1", "original content", nil)
	addDoc(t, store, "proj_memories", "m1", "replacement content", nil)

	info, err := store.GetCollectionInfo(ctx, "proj_memories")
	require.NoError(t, err)
	assert.Equal(t, 1, info.PointCount)
}

func TestChromemStore_EqualityFilterPushdown(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	addDoc(t, store, "proj_memories", "m1", "a python style note", map[string]interface{}{"category": "preference"})
	addDoc(t, store, "proj_memories", "m2", "a python deploy event", map[string]interface{}{"category": "event"})

	results, err := store.SearchInCollection(ctx, "proj_memories", "python", 5, &vectorstore.Filter{Category: "preference"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "m1", results[0].ID)
}

func TestChromemStore_PostFilterConstraints(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	addDoc(t, store, "proj_memories", "low", "shared topic", map[string]interface{}{
		"importance": 0.2, "created_at": now.Unix(), "tags": []string{"a"},
	})
	addDoc(t, store, "proj_memories", "high", "shared topic too", map[string]interface{}{
		"importance": 0.9, "created_at": now.Unix(), "tags": []string{"b", "c"},
	})

	min := 0.5
	results, err := store.SearchInCollection(ctx, "proj_memories", "shared topic", 5, &vectorstore.Filter{MinImportance: &min})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "high", results[0].ID)

	results, err = store.SearchInCollection(ctx, "proj_memories", "shared topic", 5, &vectorstore.Filter{Tags: []string{"c", "zzz"}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "high", results[0].ID)

	results, err = store.SearchInCollection(ctx, "proj_memories", "shared topic", 5, &vectorstore.Filter{ExcludeIDs: []string{"high"}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "low", results[0].ID)
}

func TestChromemStore_InvalidFilterRejectedBeforeIO(t *testing.T) {
	store := newTestStore(t)

	_, err := store.SearchInCollection(context.Background(), "proj_memories", "q", 5, &vectorstore.Filter{Category: "nonsense"})
	assert.ErrorIs(t, err, vectorstore.ErrInvalidFilter)
}

func TestChromemStore_SearchMissingCollection(t *testing.T) {
	store := newTestStore(t)

	_, err := store.SearchInCollection(context.Background(), "absent_memories", "q", 5, nil)
	assert.ErrorIs(t, err, vectorstore.ErrCollectionNotFound)
}

func TestChromemStore_SearchEmptyCollectionReturnsNoError(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateCollection(ctx, "empty_memories", 8))
	results, err := store.SearchInCollection(ctx, "empty_memories", "anything", 5, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestChromemStore_DeleteDocuments(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	addDoc(t, store, "proj_memories", "m1", "to be deleted", nil)
	require.NoError(t, store.DeleteDocumentsFromCollection(ctx, "proj_memories", []string{"m1"}))

	info, err := store.GetCollectionInfo(ctx, "proj_memories")
	require.NoError(t, err)
	assert.Equal(t, 0, info.PointCount)
}

func TestChromemStore_CollectionLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateCollection(ctx, "proj_codeunits", 8))
	assert.ErrorIs(t, store.CreateCollection(ctx, "proj_codeunits", 8), vectorstore.ErrCollectionExists)

	exists, err := store.CollectionExists(ctx, "proj_codeunits")
	require.NoError(t, err)
	assert.True(t, exists)

	names, err := store.ListCollections(ctx)
	require.NoError(t, err)
	assert.Contains(t, names, "proj_codeunits")

	require.NoError(t, store.DeleteCollection(ctx, "proj_codeunits"))
	exists, err = store.CollectionExists(ctx, "proj_codeunits")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestChromemStore_VectorSizeMismatchRejected(t *testing.T) {
	store := newTestStore(t)

	err := store.CreateCollection(context.Background(), "bad_dim", 1536)
	assert.Error(t, err)
}

func TestChromemStore_MixedCollectionBatchRejected(t *testing.T) {
	store := newTestStore(t)

	_, err := store.AddDocuments(context.Background(), []vectorstore.Document{
		{ID: "a", Content: "x", Collection: "one_memories"},
		{ID: "b", Content: "y", Collection: "two_memories"},
	})
	assert.Error(t, err)
}

func TestChromemStore_EmptyBatchRejected(t *testing.T) {
	store := newTestStore(t)

	_, err := store.AddDocuments(context.Background(), nil)
	assert.ErrorIs(t, err, vectorstore.ErrEmptyDocuments)
}

func TestChromemStore_HealthCheck(t *testing.T) {
	store := newTestStore(t)
	assert.NoError(t, store.HealthCheck(context.Background()))
}

// countingEmbedder wraps testEmbedder and counts EmbedDocuments calls.
type countingEmbedder struct {
	testEmbedder
	documentCalls int
}

func (e *countingEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	e.documentCalls++
	return e.testEmbedder.EmbedDocuments(ctx, texts)
}

func TestChromemStore_CallerSuppliedVectorSkipsEmbedder(t *testing.T) {
	embedder := &countingEmbedder{testEmbedder: testEmbedder{VectorSize: 8}}
	store, err := vectorstore.NewChromemStore(vectorstore.ChromemConfig{
		Path:              t.TempDir(),
		DefaultCollection: "org_memories",
		VectorSize:        8,
	}, embedder, zap.NewNop())
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	vector := make([]float32, 8)
	vector[0] = 1
	_, err = store.AddDocuments(ctx, []vectorstore.Document{
		{ID: "m1", Content: "updated content, original vector", Vector: vector, Collection: "proj_memories"},
	})
	require.NoError(t, err)
	assert.Zero(t, embedder.documentCalls, "a caller-supplied vector must not reach the embedder")

	// A mixed batch only embeds the documents without vectors.
	_, err = store.AddDocuments(ctx, []vectorstore.Document{
		{ID: "m2", Content: "needs embedding", Collection: "proj_memories"},
		{ID: "m3", Content: "already has one", Vector: vector, Collection: "proj_memories"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, embedder.documentCalls)

	info, err := store.GetCollectionInfo(ctx, "proj_memories")
	require.NoError(t, err)
	assert.Equal(t, 3, info.PointCount)
}

func TestValidateCollectionName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid simple", "org_memories", false},
		{"valid with digits", "proj2_codeunits", false},
		{"empty", "", true},
		{"uppercase", "Org_Memories", true},
		{"path traversal", "../etc", true},
		{"spaces", "my collection", true},
		{"too long", string(make([]byte, 65)), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := vectorstore.ValidateCollectionName(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
