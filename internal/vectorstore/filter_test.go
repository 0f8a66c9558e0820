package vectorstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f64(v float64) *float64 { return &v }

func TestFilter_Validate(t *testing.T) {
	tests := []struct {
		name    string
		filter  *Filter
		wantErr bool
	}{
		{"nil filter", nil, false},
		{"empty filter", &Filter{}, false},
		{"valid enums", &Filter{Category: "preference", ContextLevel: "SESSION_STATE", Scope: "project", LifecycleState: "ACTIVE"}, false},
		{"unknown category", &Filter{Category: "musings"}, true},
		{"unknown context level", &Filter{ContextLevel: "session_state"}, true},
		{"unknown scope", &Filter{Scope: "universe"}, true},
		{"unknown lifecycle", &Filter{LifecycleState: "DELETED"}, true},
		{"importance below range", &Filter{MinImportance: f64(-0.1)}, true},
		{"importance above range", &Filter{MaxImportance: f64(1.5)}, true},
		{"importance in range", &Filter{MinImportance: f64(0.2), MaxImportance: f64(0.9)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.filter.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidFilter)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestFilter_Equalities(t *testing.T) {
	f := &Filter{Category: "code", ProjectName: "proj", Language: "go", UnitType: "function"}
	eq := f.equalities()
	require.NotNil(t, eq)
	assert.Equal(t, "code", eq[PayloadCategory])
	assert.Equal(t, "proj", eq[PayloadProjectName])
	assert.Equal(t, "go", eq[PayloadLanguage])
	assert.Equal(t, "function", eq[PayloadUnitType])

	var nilFilter *Filter
	assert.Nil(t, nilFilter.equalities())
	assert.Nil(t, (&Filter{MinImportance: f64(0.5)}).equalities())
}

func TestFilter_MatchesImportanceRange(t *testing.T) {
	r := SearchResult{ID: "m", Metadata: map[string]interface{}{PayloadImportance: 0.7}}

	assert.True(t, (&Filter{MinImportance: f64(0.5)}).matches(r))
	assert.False(t, (&Filter{MinImportance: f64(0.8)}).matches(r))
	assert.True(t, (&Filter{MaxImportance: f64(0.7)}).matches(r))
	assert.False(t, (&Filter{MaxImportance: f64(0.6)}).matches(r))

	// chromem stringifies payload values; the range check must still work.
	str := SearchResult{ID: "m", Metadata: map[string]interface{}{PayloadImportance: "0.7"}}
	assert.True(t, (&Filter{MinImportance: f64(0.5)}).matches(str))

	// Missing importance fails a bounded filter rather than passing.
	missing := SearchResult{ID: "m", Metadata: map[string]interface{}{}}
	assert.False(t, (&Filter{MinImportance: f64(0.1)}).matches(missing))
}

func TestFilter_MatchesDates(t *testing.T) {
	created := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	r := SearchResult{ID: "m", Metadata: map[string]interface{}{PayloadCreatedAt: created.Unix()}}

	before := created.Add(-time.Hour)
	after := created.Add(time.Hour)

	assert.True(t, (&Filter{DateFrom: &before}).matches(r))
	assert.False(t, (&Filter{DateFrom: &after}).matches(r))
	assert.True(t, (&Filter{DateTo: &after}).matches(r))
	assert.False(t, (&Filter{DateTo: &before}).matches(r))
}

func TestFilter_MatchesTagsAny(t *testing.T) {
	native := SearchResult{ID: "m", Metadata: map[string]interface{}{PayloadTags: []string{"go", "infra"}}}
	joined := SearchResult{ID: "m", Metadata: map[string]interface{}{PayloadTags: "go,infra"}}
	fromQdrant := SearchResult{ID: "m", Metadata: map[string]interface{}{PayloadTags: []interface{}{"go", "infra"}}}

	for _, r := range []SearchResult{native, joined, fromQdrant} {
		assert.True(t, (&Filter{Tags: []string{"infra", "zzz"}}).matches(r))
		assert.False(t, (&Filter{Tags: []string{"zzz"}}).matches(r))
	}
}

func TestFilter_ExcludeIDs(t *testing.T) {
	f := &Filter{ExcludeIDs: []string{"shown-1", "shown-2"}}
	assert.False(t, f.matches(SearchResult{ID: "shown-1"}))
	assert.True(t, f.matches(SearchResult{ID: "fresh"}))
}

func TestFilter_MatchesAllChecksEqualities(t *testing.T) {
	f := &Filter{Category: "preference"}
	yes := SearchResult{ID: "m", Metadata: map[string]interface{}{PayloadCategory: "preference"}}
	no := SearchResult{ID: "m", Metadata: map[string]interface{}{PayloadCategory: "fact"}}
	missing := SearchResult{ID: "m", Metadata: map[string]interface{}{}}

	assert.True(t, f.matchesAll(yes))
	assert.False(t, f.matchesAll(no))
	assert.False(t, f.matchesAll(missing))
}

func TestFilter_NeedsPostFilter(t *testing.T) {
	assert.False(t, (*Filter)(nil).needsPostFilter())
	assert.False(t, (&Filter{Category: "fact"}).needsPostFilter())
	assert.True(t, (&Filter{Tags: []string{"a"}}).needsPostFilter())
	assert.True(t, (&Filter{ExcludeIDs: []string{"x"}}).needsPostFilter())
	assert.True(t, (&Filter{MinImportance: f64(0.5)}).needsPostFilter())
}

func TestClampScore(t *testing.T) {
	assert.Equal(t, float32(0), clampScore(-0.3))
	assert.Equal(t, float32(1), clampScore(1.7))
	assert.Equal(t, float32(0.42), clampScore(0.42))
}
