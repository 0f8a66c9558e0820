package usage

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// BackingStore persists flushed usage batches. SQLiteStore is the shipped
// implementation; tests use an in-memory fake.
type BackingStore interface {
	BatchUpdateUsage(ctx context.Context, batch []Stats) error
	GetUsageStats(ctx context.Context, itemID string) (*Stats, error)
}

// Tracker accumulates usage records in memory and flushes them to a
// BackingStore either when the pending map crosses BatchSize or when the
// flush interval elapses, whichever fires first.
type Tracker struct {
	cfg    Config
	store  BackingStore
	logger *zap.Logger

	mu      sync.Mutex
	pending map[string]*Stats

	flushCh chan struct{}
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewTracker constructs a Tracker and starts its background flush loop.
// Callers must call Close to guarantee the mandatory final flush on
// shutdown.
func NewTracker(cfg Config, store BackingStore, logger *zap.Logger) *Tracker {
	cfg.ApplyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Tracker{
		cfg:     cfg,
		store:   store,
		logger:  logger,
		pending: make(map[string]*Stats),
		flushCh: make(chan struct{}, 1),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
	go t.run()
	return t
}

// RecordUsage updates or inserts the pending entry for itemID and nudges
// the background flusher if the batch threshold is now met.
func (t *Tracker) RecordUsage(itemID string, score float32) {
	t.record(itemID, score)
}

// RecordBatch records usage for several items in one pending-map critical
// section, avoiding a lock/unlock per item.
func (t *Tracker) RecordBatch(ids []string, scores []float32) {
	now := time.Now()
	t.mu.Lock()
	for i, id := range ids {
		var score float32
		if i < len(scores) {
			score = scores[i]
		}
		t.touch(id, score, now)
	}
	shouldFlush := len(t.pending) >= t.cfg.BatchSize
	t.mu.Unlock()

	if shouldFlush {
		t.signalFlush()
	}
}

func (t *Tracker) record(itemID string, score float32) {
	now := time.Now()
	t.mu.Lock()
	t.touch(itemID, score, now)
	shouldFlush := len(t.pending) >= t.cfg.BatchSize
	t.mu.Unlock()

	if shouldFlush {
		t.signalFlush()
	}
}

// touch must be called with t.mu held.
func (t *Tracker) touch(itemID string, score float32, now time.Time) {
	s, ok := t.pending[itemID]
	if !ok {
		s = &Stats{ItemID: itemID, FirstSeen: now}
		t.pending[itemID] = s
	}
	s.LastUsed = now
	s.UseCount++
	s.LastSearchScore = score
}

// GetUsageStats returns the pending entry if present (most current),
// falling back to the backing store's last-flushed value.
func (t *Tracker) GetUsageStats(ctx context.Context, itemID string) (*Stats, error) {
	t.mu.Lock()
	if s, ok := t.pending[itemID]; ok {
		cp := *s
		t.mu.Unlock()
		return &cp, nil
	}
	t.mu.Unlock()

	if t.store == nil {
		return nil, nil
	}
	return t.store.GetUsageStats(ctx, itemID)
}

// PendingCount returns the number of items with an unflushed usage record.
func (t *Tracker) PendingCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// orphanPurger is implemented by BackingStores that can delete rows for
// items no longer present anywhere else in the system. Kept separate from
// BackingStore so existing fakes that only implement the two required
// methods keep compiling.
type orphanPurger interface {
	PurgeOrphaned(ctx context.Context, liveIDs map[string]struct{}) (int, error)
}

// PurgeOrphaned removes tracked usage rows for items not present in
// liveIDs, used by the scheduler's auto-prune job. Flushes pending
// writes first so a record touched moments ago isn't mistaken for
// orphaned. Returns (0, nil) if the backing store doesn't support purging.
func (t *Tracker) PurgeOrphaned(ctx context.Context, liveIDs map[string]struct{}) (int, error) {
	t.flush(ctx)
	purger, ok := t.store.(orphanPurger)
	if !ok {
		return 0, nil
	}
	return purger.PurgeOrphaned(ctx, liveIDs)
}

// CalculateCompositeScore is a thin convenience wrapper over ComputeComposite
// using this tracker's configured weights and half-life.
func (t *Tracker) CalculateCompositeScore(similarity float32, createdAt, lastUsed time.Time, useCount int64) float64 {
	return ComputeComposite(t.cfg, similarity, createdAt, lastUsed, useCount)
}

func (t *Tracker) signalFlush() {
	select {
	case t.flushCh <- struct{}{}:
	default:
	}
}

func (t *Tracker) run() {
	defer close(t.doneCh)
	ticker := time.NewTicker(t.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			t.flush(context.Background())
		case <-t.flushCh:
			t.flush(context.Background())
		case <-t.stopCh:
			// Drain any last-moment records, then perform the mandatory
			// final flush before exiting.
			t.flush(context.Background())
			return
		}
	}
}

func (t *Tracker) flush(ctx context.Context) {
	t.mu.Lock()
	if len(t.pending) == 0 {
		t.mu.Unlock()
		return
	}
	batch := make([]Stats, 0, len(t.pending))
	for _, s := range t.pending {
		batch = append(batch, *s)
	}
	t.pending = make(map[string]*Stats)
	t.mu.Unlock()

	if t.store == nil {
		return
	}
	if err := t.store.BatchUpdateUsage(ctx, batch); err != nil {
		t.logger.Error("usage tracker flush failed", zap.Error(err), zap.Int("batch_size", len(batch)))
	}
}

// Close stops the background flush loop and performs the mandatory final
// flush. Safe to call once; subsequent calls are no-ops.
func (t *Tracker) Close() error {
	select {
	case <-t.stopCh:
		// already closed
	default:
		close(t.stopCh)
	}
	<-t.doneCh
	return nil
}
