package vectorstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestQdrantConfig_Validate(t *testing.T) {
	valid := QdrantConfig{Host: "localhost", Port: 6334, CollectionName: "org_memories", VectorSize: 384}
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*QdrantConfig)
	}{
		{"missing host", func(c *QdrantConfig) { c.Host = "" }},
		{"zero port", func(c *QdrantConfig) { c.Port = 0 }},
		{"port out of range", func(c *QdrantConfig) { c.Port = 70000 }},
		{"missing collection", func(c *QdrantConfig) { c.CollectionName = "" }},
		{"zero vector size", func(c *QdrantConfig) { c.VectorSize = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestQdrantConfig_ApplyDefaults(t *testing.T) {
	cfg := QdrantConfig{}
	cfg.ApplyDefaults()

	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, time.Second, cfg.RetryBackoff)
	assert.Equal(t, 50*1024*1024, cfg.MaxMessageSize)
	assert.Equal(t, 5, cfg.CircuitBreakerThreshold)
}

func TestIsTransientError(t *testing.T) {
	assert.False(t, IsTransientError(nil))
	assert.True(t, IsTransientError(status.Error(codes.Unavailable, "down")))
	assert.True(t, IsTransientError(status.Error(codes.DeadlineExceeded, "slow")))
	assert.True(t, IsTransientError(status.Error(codes.ResourceExhausted, "busy")))
	assert.False(t, IsTransientError(status.Error(codes.NotFound, "gone")))
	assert.False(t, IsTransientError(status.Error(codes.InvalidArgument, "bad")))
	assert.False(t, IsTransientError(assert.AnError))
}

func TestBuildQdrantFilter_Nil(t *testing.T) {
	assert.Nil(t, buildQdrantFilter(nil))
	assert.Nil(t, buildQdrantFilter(&Filter{}))
}

func TestBuildQdrantFilter_Conditions(t *testing.T) {
	min, max := 0.3, 0.9
	from := time.Unix(1000, 0)
	f := &Filter{
		Category:      "code",
		ProjectName:   "proj",
		MinImportance: &min,
		MaxImportance: &max,
		DateFrom:      &from,
		Tags:          []string{"go", "infra"},
		ExcludeIDs:    []string{"shown-1"},
	}
	qf := buildQdrantFilter(f)
	require.NotNil(t, qf)

	// Two equality matches plus two range conditions.
	assert.Len(t, qf.Must, 4)
	// One Should per tag (ANY-match).
	assert.Len(t, qf.Should, 2)
	// One MustNot keywords condition for the exclusions.
	assert.Len(t, qf.MustNot, 1)
}

func TestQdrantStore_CircuitBreaker(t *testing.T) {
	s := &QdrantStore{config: QdrantConfig{CircuitBreakerThreshold: 2}}

	assert.False(t, s.isCircuitOpen())
	s.recordFailure()
	assert.False(t, s.isCircuitOpen())
	s.recordFailure()
	assert.True(t, s.isCircuitOpen())

	s.resetCircuitBreaker()
	assert.False(t, s.isCircuitOpen())

	// An open circuit half-opens after the cool-down window.
	s.recordFailure()
	s.recordFailure()
	s.circuitBreaker.lastFail = time.Now().Add(-time.Minute)
	assert.False(t, s.isCircuitOpen())
}

func TestScoredPointScoreClamped(t *testing.T) {
	// Clamping happens in scoredPointToResult via clampScore; cosine
	// scores from Qdrant can exceed 1 with float drift.
	assert.Equal(t, float32(1), clampScore(1.0000002))
}
