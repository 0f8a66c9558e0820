package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustSignal(t *testing.T, memoryID string, signalType SignalType, positive bool) *Signal {
	t.Helper()
	s, err := NewSignal(memoryID, "proj", signalType, positive, "")
	require.NoError(t, err)
	return s
}

func TestScoreSignals_UniformPriorWithNoSignals(t *testing.T) {
	assert.InDelta(t, 0.5, scoreSignals(nil, time.Now()), 0.001)
}

func TestScoreSignals_DirectionAndMonotonicity(t *testing.T) {
	now := time.Now()
	pos := *mustSignal(t, "m", SignalExplicit, true)
	neg := *mustSignal(t, "m", SignalExplicit, false)

	up := scoreSignals([]Signal{pos}, now)
	assert.Greater(t, up, 0.5)

	down := scoreSignals([]Signal{neg}, now)
	assert.Less(t, down, 0.5)

	// More positive evidence moves confidence further up.
	more := scoreSignals([]Signal{pos, pos, pos}, now)
	assert.Greater(t, more, up)
}

func TestScoreSignals_TypeWeights(t *testing.T) {
	now := time.Now()
	explicit := scoreSignals([]Signal{*mustSignal(t, "m", SignalExplicit, true)}, now)
	usage := scoreSignals([]Signal{*mustSignal(t, "m", SignalUsage, true)}, now)

	// An explicit rating outweighs a mere retrieval observation.
	assert.Greater(t, explicit, usage)
	assert.Greater(t, usage, 0.5)
}

func TestScoreSignals_OldSignalsDecay(t *testing.T) {
	now := time.Now()
	fresh := *mustSignal(t, "m", SignalExplicit, true)

	stale := *mustSignal(t, "m", SignalExplicit, true)
	stale.Timestamp = now.Add(-60 * 24 * time.Hour)

	assert.Greater(t, scoreSignals([]Signal{fresh}, now), scoreSignals([]Signal{stale}, now))
}

func TestConfidenceCalculator_RecordAndConfidence(t *testing.T) {
	calc := NewConfidenceCalculator(NewInMemorySignalStore())
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		require.NoError(t, calc.Record(ctx, mustSignal(t, "m1", SignalExplicit, true)))
	}

	conf, err := calc.Confidence(ctx, "m1")
	require.NoError(t, err)
	assert.Greater(t, conf, 0.5)

	blank, err := calc.Confidence(ctx, "unseen")
	require.NoError(t, err)
	assert.InDelta(t, 0.5, blank, 0.001)
}

func TestInMemorySignalStore_RecentWindow(t *testing.T) {
	store := NewInMemorySignalStore()
	ctx := context.Background()

	old := mustSignal(t, "m1", SignalUsage, true)
	old.Timestamp = time.Now().Add(-200 * 24 * time.Hour)
	require.NoError(t, store.Record(ctx, old))
	require.NoError(t, store.Record(ctx, mustSignal(t, "m1", SignalUsage, true)))

	recent, err := store.Recent(ctx, "m1", 90*24*time.Hour)
	require.NoError(t, err)
	assert.Len(t, recent, 1)
}

func TestInMemorySignalStore_PruneOlderThan(t *testing.T) {
	store := NewInMemorySignalStore()
	ctx := context.Background()

	old := mustSignal(t, "m1", SignalUsage, true)
	old.Timestamp = time.Now().Add(-400 * 24 * time.Hour)
	require.NoError(t, store.Record(ctx, old))
	require.NoError(t, store.Record(ctx, mustSignal(t, "m2", SignalExplicit, true)))

	pruned, err := store.PruneOlderThan(ctx, time.Now().Add(-180*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, pruned)

	// m1's only signal is gone; m2 is intact.
	gone, err := store.Recent(ctx, "m1", 365*24*time.Hour)
	require.NoError(t, err)
	assert.Empty(t, gone)
	kept, err := store.Recent(ctx, "m2", 365*24*time.Hour)
	require.NoError(t, err)
	assert.Len(t, kept, 1)
}

func TestNewSignal_Validation(t *testing.T) {
	_, err := NewSignal("", "proj", SignalExplicit, true, "")
	assert.ErrorIs(t, err, ErrEmptyMemoryID)
}

func TestSignalTypeWeight(t *testing.T) {
	assert.Greater(t, SignalExplicit.Weight(), SignalOutcome.Weight())
	assert.Greater(t, SignalOutcome.Weight(), SignalUsage.Weight())
	// Unknown types count like usage, the weakest evidence.
	assert.Equal(t, SignalUsage.Weight(), SignalType("mystery").Weight())
}
