package embeddings

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CacheKey is the (content hash, model) pair every cache lookup is keyed
// on: "keyed by (sha256(text), model_id)".
type CacheKey struct {
	Hash  string
	Model string
}

// Cache wraps a Provider with an LRU+SQLite-backed embedding cache. The
// orchestrator must always go through the cache for query embeddings;
// the provider is only called on a miss.
//
// Grounded on internal/consent.Registry's migrate-then-CRUD shape for the
// persistence half, and github.com/hashicorp/golang-lru/v2 (already a
// bound) for the in-memory layer.
type Cache struct {
	provider Provider
	db       *sql.DB
	mem      *lru.Cache[CacheKey, []float32]
}

// CacheConfig configures the cache's bounds.
type CacheConfig struct {
	// MaxEntries bounds the in-memory LRU layer. The SQLite layer is
	// unbounded; it is the cache's durable tier.
	MaxEntries int
}

func (c CacheConfig) withDefaults() CacheConfig {
	if c.MaxEntries <= 0 {
		c.MaxEntries = 10000
	}
	return c
}

// NewCache wraps provider with a persistent cache. db must already be
// open; NewCache migrates its own table.
func NewCache(provider Provider, db *sql.DB, cfg CacheConfig) (*Cache, error) {
	cfg = cfg.withDefaults()
	const schema = `
CREATE TABLE IF NOT EXISTS embedding_cache (
	content_hash TEXT NOT NULL,
	model        TEXT NOT NULL,
	vector       BLOB NOT NULL,
	created_at   TIMESTAMP NOT NULL,
	PRIMARY KEY (content_hash, model)
);`
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrating embedding_cache: %w", err)
	}

	mem, err := lru.New[CacheKey, []float32](cfg.MaxEntries)
	if err != nil {
		return nil, fmt.Errorf("creating embedding LRU: %w", err)
	}

	return &Cache{provider: provider, db: db, mem: mem}, nil
}

// HashContent returns the cache key's hash component for text.
func HashContent(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// EmbedQuery returns text's embedding, serving from cache when possible
// and otherwise calling the wrapped provider and populating both cache
// tiers.
func (c *Cache) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	key := CacheKey{Hash: HashContent(text), Model: c.modelID()}
	if vec, ok := c.lookup(ctx, key); ok {
		return vec, nil
	}

	vec, err := c.provider.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, vec)
	return vec, nil
}

// EmbedDocuments embeds texts, serving whichever are already cached and
// batching the remainder through the provider in one call.
func (c *Cache) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string
	keys := make([]CacheKey, len(texts))

	for i, text := range texts {
		key := CacheKey{Hash: HashContent(text), Model: c.modelID()}
		keys[i] = key
		if vec, ok := c.lookup(ctx, key); ok {
			out[i] = vec
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}

	if len(missTexts) == 0 {
		return out, nil
	}

	embedded, err := c.provider.EmbedDocuments(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(embedded) != len(missTexts) {
		return nil, fmt.Errorf("embeddings: provider returned %d vectors for %d texts", len(embedded), len(missTexts))
	}
	for j, idx := range missIdx {
		out[idx] = embedded[j]
		c.store(ctx, keys[idx], embedded[j])
	}
	return out, nil
}

// Dimension delegates to the wrapped provider.
func (c *Cache) Dimension() int { return c.provider.Dimension() }

// ModelID identifies the wrapped provider's model for callers that stamp
// MemoryUnit.EmbeddingModel; same value used as the cache key's model
// component.
func (c *Cache) ModelID() string { return c.modelID() }

// Close releases the wrapped provider. The cache does not own db.
func (c *Cache) Close() error { return c.provider.Close() }

func (c *Cache) modelID() string {
	type named interface{ ModelName() string }
	if n, ok := c.provider.(named); ok {
		return n.ModelName()
	}
	return fmt.Sprintf("dim%d", c.provider.Dimension())
}

func (c *Cache) lookup(ctx context.Context, key CacheKey) ([]float32, bool) {
	if vec, ok := c.mem.Get(key); ok {
		return vec, true
	}

	var blob []byte
	err := c.db.QueryRowContext(ctx,
		`SELECT vector FROM embedding_cache WHERE content_hash = ? AND model = ?`,
		key.Hash, key.Model).Scan(&blob)
	if err != nil {
		return nil, false
	}
	vec := decodeVector(blob)
	c.mem.Add(key, vec)
	return vec, true
}

func (c *Cache) store(ctx context.Context, key CacheKey, vec []float32) {
	c.mem.Add(key, vec)
	_, _ = c.db.ExecContext(ctx, `
INSERT INTO embedding_cache (content_hash, model, vector, created_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(content_hash, model) DO NOTHING`,
		key.Hash, key.Model, encodeVector(vec), time.Now())
}

func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, f := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec
}
