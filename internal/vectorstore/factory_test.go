package vectorstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ctxengine/internal/config"
)

// nopEmbedder satisfies Embedder for construction-only tests; search
// behavior is covered by the chromem tests.
type nopEmbedder struct{}

func (e *nopEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, 8)
	}
	return out, nil
}

func (e *nopEmbedder) EmbedQuery(_ context.Context, _ string) ([]float32, error) {
	return make([]float32, 8), nil
}

func TestNewStore_DefaultsToChromem(t *testing.T) {
	cfg := &config.Config{}
	cfg.VectorStore.Provider = ""
	cfg.VectorStore.Chromem.Path = t.TempDir()
	cfg.VectorStore.Chromem.VectorSize = 8

	store, err := NewStore(cfg, &nopEmbedder{}, zap.NewNop())
	require.NoError(t, err)
	defer store.Close()

	_, ok := store.(*ChromemStore)
	assert.True(t, ok)
}

func TestNewStore_UnknownProviderRejected(t *testing.T) {
	cfg := &config.Config{}
	cfg.VectorStore.Provider = "pinecone"

	_, err := NewStore(cfg, &nopEmbedder{}, zap.NewNop())
	assert.Error(t, err)
}
