package memory

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMemoryUnit_Defaults(t *testing.T) {
	m, err := NewMemoryUnit("user prefers tabs", CategoryPreference, LevelUserPreference, ScopeGlobal, "", "bge-small")
	require.NoError(t, err)

	assert.NotEmpty(t, m.ID)
	assert.Equal(t, StateActive, m.LifecycleState)
	assert.Equal(t, "bge-small", m.EmbeddingModel)
	assert.False(t, m.CreatedAt.IsZero())
	assert.InDelta(t, 0.5, m.Importance, 0.001)
}

func TestMemoryUnit_Validate(t *testing.T) {
	valid := func() *MemoryUnit {
		m, err := NewMemoryUnit("content", CategoryFact, LevelProjectContext, ScopeProject, "proj", "model")
		require.NoError(t, err)
		return m
	}

	tests := []struct {
		name    string
		mutate  func(*MemoryUnit)
		wantErr error
	}{
		{"valid", func(m *MemoryUnit) {}, nil},
		{"empty content", func(m *MemoryUnit) { m.Content = "" }, ErrEmptyContent},
		{"oversized content", func(m *MemoryUnit) { m.Content = strings.Repeat("x", 50001) }, ErrContentTooLong},
		{"unknown category", func(m *MemoryUnit) { m.Category = "musings" }, ErrInvalidCategory},
		{"unknown level", func(m *MemoryUnit) { m.ContextLevel = "OTHER" }, ErrInvalidLevel},
		{"unknown scope", func(m *MemoryUnit) { m.Scope = "universe" }, ErrInvalidScope},
		{"project scope without name", func(m *MemoryUnit) { m.ProjectName = "" }, ErrProjectNameNeeded},
		{"importance below range", func(m *MemoryUnit) { m.Importance = -0.1 }, ErrInvalidImportance},
		{"importance above range", func(m *MemoryUnit) { m.Importance = 1.1 }, ErrInvalidImportance},
		{"tag too long", func(m *MemoryUnit) { m.Tags = []string{strings.Repeat("t", 51)} }, ErrTagTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := valid()
			tt.mutate(m)
			err := m.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestNewMemoryUnit_RejectsInvalid(t *testing.T) {
	_, err := NewMemoryUnit("", CategoryFact, LevelProjectContext, ScopeProject, "proj", "model")
	assert.ErrorIs(t, err, ErrEmptyContent)

	_, err = NewMemoryUnit("ok", CategoryFact, LevelProjectContext, ScopeProject, "", "model")
	assert.ErrorIs(t, err, ErrProjectNameNeeded)
}

func TestIsCodeUnit(t *testing.T) {
	m, err := NewMemoryUnit("func a() {}", CategoryCode, LevelProjectContext, ScopeProject, "proj", "model")
	require.NoError(t, err)
	m.Tags = []string{"code"}
	assert.True(t, m.IsCodeUnit())

	plain, err := NewMemoryUnit("a note", CategoryFact, LevelProjectContext, ScopeProject, "proj", "model")
	require.NoError(t, err)
	assert.False(t, plain.IsCodeUnit())
}
