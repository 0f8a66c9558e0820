package collections

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCollection(t *testing.T) {
	assert.Equal(t, "org_memories", MemoryCollection(""))
	assert.Equal(t, "myproj_memories", MemoryCollection("myproj"))
	assert.Equal(t, "my_web_app_memories", MemoryCollection("My-Web App"))
}

func TestCodeCollection(t *testing.T) {
	assert.Equal(t, "myproj_codeunits", CodeCollection("myproj"))
	assert.Equal(t, "a_b_codeunits", CodeCollection("A/B"))
}

func TestSanitizeProject(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"simple", "simple"},
		{"Mixed-Case", "mixed_case"},
		{"dots.and/slashes", "dots_and_slashes"},
		{"--leading--", "leading"},
		{"", "project"},
		{"!!!", "project"},
		{"a  b", "a_b"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeProject(tt.in))
		})
	}
}

func TestSanitizeProject_LengthBounded(t *testing.T) {
	long := SanitizeProject(string(make([]byte, 0, 100)) + "abcdefghijklmnopqrstuvwxyzabcdefghijklmnopqrstuvwxyzabcdef")
	assert.LessOrEqual(t, len(long), 48)
	// The suffixed collection name still fits the 64-char limit.
	assert.LessOrEqual(t, len(long+"_"+KindCodeUnits), 64)
}

func TestParseCollectionName(t *testing.T) {
	project, kind, err := ParseCollectionName("myproj_memories")
	require.NoError(t, err)
	assert.Equal(t, "myproj", project)
	assert.Equal(t, KindMemories, kind)

	project, kind, err = ParseCollectionName("my_proj_codeunits")
	require.NoError(t, err)
	assert.Equal(t, "my_proj", project)
	assert.Equal(t, KindCodeUnits, kind)

	_, _, err = ParseCollectionName("")
	assert.ErrorIs(t, err, ErrInvalidCollectionName)
	_, _, err = ParseCollectionName("noseparator")
	assert.ErrorIs(t, err, ErrInvalidCollectionName)
	_, _, err = ParseCollectionName("proj_unknownkind")
	assert.ErrorIs(t, err, ErrInvalidCollectionName)
}
