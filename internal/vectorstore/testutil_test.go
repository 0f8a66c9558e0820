package vectorstore_test

import (
	"context"
	"hash/fnv"

	"github.com/fyrsmithlabs/ctxengine/internal/vectorstore"
)

// testEmbedder generates deterministic embeddings from the input text so
// tests are reproducible without a model.
type testEmbedder struct {
	VectorSize int
}

func (e *testEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i := range texts {
		embeddings[i] = e.makeEmbedding(texts[i])
	}
	return embeddings, nil
}

func (e *testEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return e.makeEmbedding(text), nil
}

// makeEmbedding hashes the text into a deterministic unit-ish vector;
// identical texts embed identically, similar prefixes diverge.
func (e *testEmbedder) makeEmbedding(text string) []float32 {
	v := make([]float32, e.VectorSize)
	h := fnv.New32a()
	for i := range v {
		h.Write([]byte(text))
		h.Write([]byte{byte(i)})
		v[i] = float32(h.Sum32()%1000)/1000.0 - 0.5
	}
	// Normalize so cosine scores land in a sane range.
	var norm float32
	for _, x := range v {
		norm += x * x
	}
	if norm > 0 {
		inv := 1.0 / sqrt32(norm)
		for i := range v {
			v[i] *= inv
		}
	}
	return v
}

func sqrt32(x float32) float32 {
	// Newton's method is plenty for test vectors.
	z := x
	for i := 0; i < 10; i++ {
		z = z - (z*z-x)/(2*z)
	}
	return z
}

var _ vectorstore.Embedder = (*testEmbedder)(nil)
