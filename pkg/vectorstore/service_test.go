package vectorstore

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Validate(t *testing.T) {
	valid := Config{URL: "http://localhost:6333", CollectionName: "myproj_memories"}
	assert.NoError(t, valid.Validate())

	missingURL := valid
	missingURL.URL = ""
	assert.ErrorIs(t, missingURL.Validate(), ErrInvalidConfig)

	missingCollection := valid
	missingCollection.CollectionName = ""
	assert.ErrorIs(t, missingCollection.Validate(), ErrInvalidConfig)
}

func TestConfigFromEnv(t *testing.T) {
	os.Unsetenv("QDRANT_URL")
	cfg := ConfigFromEnv("myproj_memories")
	assert.Equal(t, "http://localhost:6333", cfg.URL)
	assert.Equal(t, "myproj_memories", cfg.CollectionName)

	os.Setenv("QDRANT_URL", "http://qdrant.internal:6333")
	defer os.Unsetenv("QDRANT_URL")
	cfg = ConfigFromEnv("other_codeunits")
	assert.Equal(t, "http://qdrant.internal:6333", cfg.URL)
}

func TestNewService_RejectsInvalidConfig(t *testing.T) {
	_, err := NewService(Config{})
	assert.Error(t, err)

	_, err = NewService(Config{URL: "http://localhost:6333"})
	assert.Error(t, err)
}

func TestNewService_ConstructsWithoutDialing(t *testing.T) {
	// langchaingo's Qdrant binding only dials per call, so construction
	// succeeds with no server running.
	svc, err := NewService(Config{URL: "http://localhost:6333", CollectionName: "myproj_memories"})
	require.NoError(t, err)
	assert.NotNil(t, svc)
}

func TestAddDocuments_EmptyBatchRejected(t *testing.T) {
	svc, err := NewService(Config{URL: "http://localhost:6333", CollectionName: "myproj_memories"})
	require.NoError(t, err)

	err = svc.AddDocuments(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyDocuments)

	err = svc.AddDocuments(context.Background(), []Document{})
	assert.ErrorIs(t, err, ErrEmptyDocuments)
}
