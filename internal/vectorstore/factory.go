package vectorstore

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ctxengine/internal/config"
	pkgembeddings "github.com/fyrsmithlabs/ctxengine/pkg/embeddings"
)

// NewStore builds the Store the configuration names.
//
// Providers:
//   - "chromem" (default): embedded chromem-go, no external processes.
//   - "qdrant": external Qdrant over gRPC.
//   - "qdrant-langchain": external Qdrant over HTTP via langchaingo, for
//     deployments reusing a TEI/OpenAI embeddings endpoint.
//
// A store that cannot reach its backend fails construction with an
// operator-actionable message rather than silently degrading to another
// backend; switching backends is an explicit configuration change.
func NewStore(cfg *config.Config, embedder Embedder, logger *zap.Logger) (Store, error) {
	switch cfg.VectorStore.Provider {
	case "chromem", "":
		return NewChromemStore(ChromemConfig{
			Path:              cfg.VectorStore.Chromem.Path,
			Compress:          cfg.VectorStore.Chromem.Compress,
			DefaultCollection: cfg.VectorStore.Chromem.DefaultCollection,
			VectorSize:        cfg.VectorStore.Chromem.VectorSize,
		}, embedder, logger)

	case "qdrant":
		return NewQdrantStore(QdrantConfig{
			Host:           cfg.Qdrant.Host,
			Port:           cfg.Qdrant.Port,
			CollectionName: cfg.Qdrant.CollectionName,
			VectorSize:     cfg.Qdrant.VectorSize,
		}, embedder)

	case "qdrant-langchain":
		return NewLangchainStore(LangchainConfig{
			QdrantURL:         fmt.Sprintf("http://%s:%d", cfg.Qdrant.Host, cfg.Qdrant.HTTPPort),
			DefaultCollection: cfg.Qdrant.CollectionName,
			VectorSize:        int(cfg.Qdrant.VectorSize),
			Embeddings: pkgembeddings.Config{
				BaseURL: cfg.Embeddings.BaseURL,
				Model:   cfg.Embeddings.Model,
			},
		})

	default:
		return nil, fmt.Errorf("unsupported vectorstore provider: %s (supported: chromem, qdrant, qdrant-langchain)", cfg.VectorStore.Provider)
	}
}
