package feedback

import (
	"context"
	"testing"

	"github.com/fyrsmithlabs/ctxengine/internal/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := storage.OpenSQLite("")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	st, err := NewStore(db)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return st
}

func TestStore_SubmitAndAggregate(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	if _, err := st.Submit(ctx, "s1", "auth", []string{"m1", "m2"}, RatingHelpful, "", "proj"); err != nil {
		t.Fatal(err)
	}
	if _, err := st.Submit(ctx, "s2", "auth", []string{"m3"}, RatingNotHelpful, "meh", "proj"); err != nil {
		t.Fatal(err)
	}

	metrics, err := st.GetQualityMetrics(ctx, 24, "proj")
	if err != nil {
		t.Fatal(err)
	}
	if metrics.TotalSearches != 2 || metrics.HelpfulCount != 1 || metrics.NotHelpfulCount != 1 {
		t.Fatalf("unexpected metrics: %+v", metrics)
	}
	if metrics.HelpfulnessRate != 0.5 {
		t.Fatalf("expected helpfulness_rate 0.5, got %v", metrics.HelpfulnessRate)
	}
}

func TestStore_EmptyWindowHasZeroRate(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	metrics, err := st.GetQualityMetrics(ctx, 24, "")
	if err != nil {
		t.Fatal(err)
	}
	if metrics.TotalSearches != 0 || metrics.HelpfulnessRate != 0 {
		t.Fatalf("expected zeroed metrics, got %+v", metrics)
	}
}

func TestStore_RejectsInvalidRating(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	if _, err := st.Submit(ctx, "s1", "q", nil, "maybe", "", ""); err == nil {
		t.Fatalf("expected validation error for invalid rating")
	}
}
