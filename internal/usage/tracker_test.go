package usage

import (
	"context"
	"sync"
	"testing"
	"time"
)

type fakeStore struct {
	mu     sync.Mutex
	stats  map[string]Stats
	flushN int
}

func newFakeStore() *fakeStore { return &fakeStore{stats: make(map[string]Stats)} }

func (f *fakeStore) BatchUpdateUsage(ctx context.Context, batch []Stats) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushN++
	for _, s := range batch {
		f.stats[s.ItemID] = s
	}
	return nil
}

func (f *fakeStore) GetUsageStats(ctx context.Context, itemID string) (*Stats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.stats[itemID]; ok {
		return &s, nil
	}
	return nil, nil
}

func TestTracker_FlushesOnBatchSize(t *testing.T) {
	store := newFakeStore()
	tr := NewTracker(Config{BatchSize: 3, FlushInterval: time.Hour}, store, nil)
	defer tr.Close()

	tr.RecordUsage("a", 0.9)
	tr.RecordUsage("b", 0.8)
	tr.RecordUsage("c", 0.7)

	deadline := time.After(2 * time.Second)
	for {
		store.mu.Lock()
		n := len(store.stats)
		store.mu.Unlock()
		if n == 3 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("expected flush of 3 items, got %d", n)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestTracker_FinalFlushOnClose(t *testing.T) {
	store := newFakeStore()
	tr := NewTracker(Config{BatchSize: 100, FlushInterval: time.Hour}, store, nil)
	tr.RecordUsage("solo", 0.5)
	if err := tr.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, ok := store.stats["solo"]; !ok {
		t.Fatalf("expected final flush to persist pending record")
	}
}

func TestTracker_RecordBatchAccumulatesUseCount(t *testing.T) {
	store := newFakeStore()
	tr := NewTracker(Config{BatchSize: 100, FlushInterval: time.Hour}, store, nil)
	tr.RecordBatch([]string{"x", "x", "y"}, []float32{0.1, 0.2, 0.3})
	tr.Close()

	if store.stats["x"].UseCount != 2 {
		t.Fatalf("expected use_count 2 for x, got %d", store.stats["x"].UseCount)
	}
}

func TestComputeComposite_MonotonicAndClamped(t *testing.T) {
	cfg := Config{}
	now := time.Now()

	low := ComputeComposite(cfg, 0.1, now.Add(-30*24*time.Hour), now.Add(-30*24*time.Hour), 0)
	high := ComputeComposite(cfg, 0.9, now, now, 1000)
	if !(high > low) {
		t.Fatalf("expected composite to increase with sim/recency/usage: low=%v high=%v", low, high)
	}

	zeroWeights := Config{Weights: Weights{Similarity: 1, Recency: 0, Usage: 0}}
	stale := ComputeComposite(zeroWeights, 0.5, now.Add(-365*24*time.Hour), time.Time{}, 0)
	fresh := ComputeComposite(zeroWeights, 0.5, now, now, 0)
	if stale != fresh {
		t.Fatalf("zero recency weight should eliminate recency's effect: stale=%v fresh=%v", stale, fresh)
	}

	if v := ComputeComposite(cfg, 2.0, now, now, 1_000_000); v > 1 || v < 0 {
		t.Fatalf("composite must stay in [0,1], got %v", v)
	}
}

// purgingFakeStore additionally implements orphanPurger, exercising
// Tracker.PurgeOrphaned's type-assertion path.
type purgingFakeStore struct {
	*fakeStore
}

func (p *purgingFakeStore) PurgeOrphaned(ctx context.Context, liveIDs map[string]struct{}) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	removed := 0
	for id := range p.stats {
		if _, live := liveIDs[id]; !live {
			delete(p.stats, id)
			removed++
		}
	}
	return removed, nil
}

func TestTracker_PurgeOrphaned_DelegatesWhenSupported(t *testing.T) {
	store := &purgingFakeStore{newFakeStore()}
	tr := NewTracker(Config{BatchSize: 100, FlushInterval: time.Hour}, store, nil)

	tr.RecordUsage("live", 0.5)
	tr.RecordUsage("orphaned", 0.5)
	// Force a flush so both records land in the backing store before purge.
	tr.signalFlush()
	deadline := time.After(2 * time.Second)
	for {
		store.mu.Lock()
		n := len(store.stats)
		store.mu.Unlock()
		if n == 2 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("expected both records flushed before purge, got %d", n)
		case <-time.After(10 * time.Millisecond):
		}
	}
	defer tr.Close()

	n, err := tr.PurgeOrphaned(context.Background(), map[string]struct{}{"live": {}})
	if err != nil {
		t.Fatalf("PurgeOrphaned: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 purged row, got %d", n)
	}
	if _, ok := store.stats["orphaned"]; ok {
		t.Fatal("expected orphaned row to be removed")
	}
	if _, ok := store.stats["live"]; !ok {
		t.Fatal("expected live row to survive")
	}
}

func TestTracker_PurgeOrphaned_NoOpWhenUnsupported(t *testing.T) {
	store := newFakeStore()
	tr := NewTracker(Config{BatchSize: 100, FlushInterval: time.Hour}, store, nil)
	defer tr.Close()

	n, err := tr.PurgeOrphaned(context.Background(), map[string]struct{}{})
	if err != nil {
		t.Fatalf("PurgeOrphaned: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected no-op (0, nil) for a store without PurgeOrphaned, got %d", n)
	}
}

func TestTracker_CompositeDominance(t *testing.T) {
	// S6: identical similarity, M1 heavily used and recent, M2 old and unused.
	cfg := Config{}
	now := time.Now()
	m1 := ComputeComposite(cfg, 0.7, now.Add(-365*24*time.Hour), now, 1000)
	m2 := ComputeComposite(cfg, 0.7, now.Add(-30*24*time.Hour), now.Add(-30*24*time.Hour), 0)
	if !(m1 > m2) {
		t.Fatalf("expected heavily-used recent memory to outrank stale unused one: m1=%v m2=%v", m1, m2)
	}
}
