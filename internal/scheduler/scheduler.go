// Package scheduler implements the clock-driven scheduler: a daily
// auto-prune job for expired SESSION_STATE memories and orphaned usage
// records, and an hourly metrics-rollup job.
//
// Grounded on internal/memory.ConsolidationScheduler's shape (interval,
// Start/Stop, mutex-guarded running flag, stopCh, panic-recovered run
// loop), generalized from "one consolidation job on one ticker" to "two
// independent jobs on two tickers" per the redesign note. Scheduler
// failures must never block foreground work: every run is
// panic-recovered and logs rather than propagates.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// PruneFunc deletes expired SESSION_STATE memories (and orphaned usage
// records) and reports how many memories were removed.
type PruneFunc func(ctx context.Context) (deleted int, err error)

// MetricsFunc snapshots retrieval/indexing/cache counters into the
// monitoring time-series table.
type MetricsFunc func(ctx context.Context) error

// Config configures both jobs' cadence.
type Config struct {
	// PruneHour is the hour-of-day (0-23, local time) the auto-prune job
	// targets, matching the "default 02:00 daily, cron-style".
	PruneHour int
	// PruneCheckInterval is how often the scheduler wakes to check
	// whether PruneHour has arrived; it does not need to be precise to
	// the minute, so a coarse interval (default 15m) is sufficient.
	PruneCheckInterval time.Duration
	// MetricsInterval is the metrics-rollup cadence (default 1h).
	MetricsInterval time.Duration
}

// ApplyDefaults fills unset fields with the defaults.
func (c *Config) ApplyDefaults() {
	if c.PruneCheckInterval <= 0 {
		c.PruneCheckInterval = 15 * time.Minute
	}
	if c.MetricsInterval <= 0 {
		c.MetricsInterval = time.Hour
	}
	if c.PruneHour == 0 {
		c.PruneHour = 2
	}
}

// Scheduler drives the prune and metrics jobs on independent tickers.
type Scheduler struct {
	cfg     Config
	prune   PruneFunc
	metrics MetricsFunc
	logger  *zap.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	lastPruneDate string // "2006-01-02" of the last day prune ran, dedupes within PruneHour's window
}

// New builds a Scheduler. Either job may be nil to disable it (useful for
// tests or deployments that only want one of the two jobs); a nil logger
// uses zap.NewNop().
func New(prune PruneFunc, metrics MetricsFunc, cfg Config, logger *zap.Logger) *Scheduler {
	cfg.ApplyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{cfg: cfg, prune: prune, metrics: metrics, logger: logger}
}

// Start begins both background tickers. Idempotent: calling Start twice
// without an intervening Stop returns an error.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("scheduler: already running")
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	go s.run(ctx)
	s.logger.Info("scheduler started",
		zap.Int("prune_hour", s.cfg.PruneHour),
		zap.Duration("metrics_interval", s.cfg.MetricsInterval))
	return nil
}

// Stop signals both tickers to stop and waits for the run loop to exit.
// Idempotent.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	done := s.doneCh
	s.mu.Unlock()
	<-done
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.doneCh)

	pruneTicker := time.NewTicker(s.cfg.PruneCheckInterval)
	defer pruneTicker.Stop()
	metricsTicker := time.NewTicker(s.cfg.MetricsInterval)
	defer metricsTicker.Stop()

	for {
		select {
		case <-pruneTicker.C:
			s.maybeRunPrune(ctx)
		case <-metricsTicker.C:
			s.safeRunMetrics(ctx)
		case <-s.stopCh:
			return
		}
	}
}

// maybeRunPrune fires the prune job at most once per calendar day, once
// the wall clock hour reaches PruneHour.
func (s *Scheduler) maybeRunPrune(ctx context.Context) {
	now := time.Now()
	if now.Hour() < s.cfg.PruneHour {
		return
	}
	today := now.Format("2006-01-02")
	if s.lastPruneDate == today {
		return
	}
	s.lastPruneDate = today
	s.safeRunPrune(ctx)
}

func (s *Scheduler) safeRunPrune(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("auto-prune job panicked, continuing scheduler", zap.Any("panic", r))
		}
	}()
	if s.prune == nil {
		return
	}
	n, err := s.prune(ctx)
	if err != nil {
		s.logger.Warn("auto-prune job failed", zap.Error(err))
		return
	}
	s.logger.Info("auto-prune job completed", zap.Int("deleted", n))
}

func (s *Scheduler) safeRunMetrics(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("metrics rollup job panicked, continuing scheduler", zap.Any("panic", r))
		}
	}()
	if s.metrics == nil {
		return
	}
	if err := s.metrics(ctx); err != nil {
		s.logger.Warn("metrics rollup job failed", zap.Error(err))
	}
}

// RunPruneNow runs the prune job immediately, bypassing the hour check.
// Used by tests and by operator tooling that wants an on-demand sweep.
func (s *Scheduler) RunPruneNow(ctx context.Context) (int, error) {
	if s.prune == nil {
		return 0, nil
	}
	return s.prune(ctx)
}

// RunMetricsNow runs the metrics job immediately. Used by tests and by
// operator tooling that wants an on-demand snapshot.
func (s *Scheduler) RunMetricsNow(ctx context.Context) error {
	if s.metrics == nil {
		return nil
	}
	return s.metrics(ctx)
}
