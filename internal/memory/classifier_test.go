package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegexCategoryClassifier_Classify(t *testing.T) {
	c := NewRegexCategoryClassifier()

	tests := []struct {
		name    string
		content string
		want    Category
	}{
		{"preference", "the team prefers table-driven tests instead of assertion chains", CategoryPreference},
		{"workflow", "step 1: run the linter, step 2: run the unit tests", CategoryWorkflow},
		{"event", "we deployed the new ingest pipeline on friday", CategoryEvent},
		{"session context", "currently debugging the flaky watcher shutdown", CategoryContext},
		{"fact", "the search service depends on qdrant", CategoryFact},
		{"code", "func clamp(x float64) float64 {\n\treturn math.Min(x, 1)\n}", CategoryCode},
		{"fallback", "misc note without signal phrasing", CategoryContext},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, confidence := c.Classify("", tt.content, nil)
			assert.Equal(t, tt.want, got)
			assert.GreaterOrEqual(t, confidence, 0.0)
			assert.LessOrEqual(t, confidence, 1.0)
		})
	}
}

func TestRegexCategoryClassifier_TitleAndTagsParticipate(t *testing.T) {
	c := NewRegexCategoryClassifier()

	got, _ := c.Classify("release checklist", "short note", nil)
	assert.Equal(t, CategoryWorkflow, got)

	got, _ = c.Classify("", "short note", []string{"always use", "gofmt"})
	assert.Equal(t, CategoryPreference, got)
}

func TestRegexCategoryClassifier_CodeBeatsFactPhrasing(t *testing.T) {
	c := NewRegexCategoryClassifier()

	// Source text often contains "X is Y" phrasing; the code shape must
	// win over the declarative rule.
	got, _ := c.Classify("", "```go\n// the pool is a ring buffer\nfunc New() *Pool {}\n```", nil)
	assert.Equal(t, CategoryCode, got)
}

func TestClassifyContextLevel(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    ContextLevel
	}{
		{"preference cue", "user prefers Python for scripting", LevelUserPreference},
		{"always cue", "always run gofmt before committing", LevelUserPreference},
		{"session cue", "currently working on the session tracker", LevelSessionState},
		{"debugging cue", "debugging an off-by-one in the reaper", LevelSessionState},
		{"default", "the payment service owns the ledger table", LevelProjectContext},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyContextLevel(tt.content))
		})
	}
}

func TestClassifyContextLevel_PreferenceWinsOverSession(t *testing.T) {
	// Both cue sets can match one sentence; preference phrasing marks
	// the more durable knowledge and takes priority.
	got := ClassifyContextLevel("user prefers tabs, currently working on the formatter")
	assert.Equal(t, LevelUserPreference, got)
}
