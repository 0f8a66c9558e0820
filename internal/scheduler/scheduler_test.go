package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

func TestScheduler_RunPruneNowAndMetricsNow(t *testing.T) {
	var pruneCalls, metricsCalls int32
	s := New(
		func(ctx context.Context) (int, error) {
			atomic.AddInt32(&pruneCalls, 1)
			return 3, nil
		},
		func(ctx context.Context) error {
			atomic.AddInt32(&metricsCalls, 1)
			return nil
		},
		Config{},
		zaptest.NewLogger(t),
	)

	n, err := s.RunPruneNow(context.Background())
	if err != nil {
		t.Fatalf("RunPruneNow: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 deleted, got %d", n)
	}
	if err := s.RunMetricsNow(context.Background()); err != nil {
		t.Fatalf("RunMetricsNow: %v", err)
	}
	if atomic.LoadInt32(&pruneCalls) != 1 || atomic.LoadInt32(&metricsCalls) != 1 {
		t.Fatalf("expected both jobs to have run once, got prune=%d metrics=%d", pruneCalls, metricsCalls)
	}
}

func TestScheduler_StartStopIdempotent(t *testing.T) {
	s := New(
		func(ctx context.Context) (int, error) { return 0, nil },
		func(ctx context.Context) error { return nil },
		Config{PruneCheckInterval: 10 * time.Millisecond, MetricsInterval: 10 * time.Millisecond},
		zaptest.NewLogger(t),
	)

	ctx := context.Background()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Start(ctx); err == nil {
		t.Fatal("expected error starting an already-running scheduler")
	}
	s.Stop()
	s.Stop() // idempotent, must not block or panic
}

func TestScheduler_MetricsTickerFiresIndependentlyOfPrune(t *testing.T) {
	var metricsCalls int32
	s := New(
		nil, // prune disabled
		func(ctx context.Context) error {
			atomic.AddInt32(&metricsCalls, 1)
			return nil
		},
		Config{PruneCheckInterval: time.Hour, MetricsInterval: 5 * time.Millisecond},
		zaptest.NewLogger(t),
	)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop()

	deadline := time.After(time.Second)
	for atomic.LoadInt32(&metricsCalls) == 0 {
		select {
		case <-deadline:
			t.Fatal("metrics job never fired")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestScheduler_NilJobsAreNoOps(t *testing.T) {
	s := New(nil, nil, Config{}, nil)
	n, err := s.RunPruneNow(context.Background())
	if err != nil || n != 0 {
		t.Fatalf("expected (0, nil) for nil prune job, got (%d, %v)", n, err)
	}
	if err := s.RunMetricsNow(context.Background()); err != nil {
		t.Fatalf("expected nil error for nil metrics job, got %v", err)
	}
}
