package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ConsolidationScheduler periodically consolidates each configured
// project's near-duplicate memories. One background goroutine, one
// ticker; a failed or panicking run is logged and the next tick still
// fires, so consolidation trouble never takes retrieval down with it.
type ConsolidationScheduler struct {
	consolidator Consolidator
	interval     time.Duration
	projects     []string
	opts         ConsolidationOptions
	logger       *zap.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
}

// SchedulerOption configures a ConsolidationScheduler.
type SchedulerOption func(*ConsolidationScheduler)

// WithInterval overrides the default daily cadence.
func WithInterval(interval time.Duration) SchedulerOption {
	return func(s *ConsolidationScheduler) {
		if interval > 0 {
			s.interval = interval
		}
	}
}

// WithProjectIDs names the projects each run consolidates. Without any,
// runs are no-ops.
func WithProjectIDs(projects []string) SchedulerOption {
	return func(s *ConsolidationScheduler) { s.projects = projects }
}

// WithConsolidationOptions overrides the per-run consolidation options.
func WithConsolidationOptions(opts ConsolidationOptions) SchedulerOption {
	return func(s *ConsolidationScheduler) { s.opts = opts }
}

// NewConsolidationScheduler builds a stopped scheduler; call Start to
// begin ticking.
func NewConsolidationScheduler(consolidator Consolidator, logger *zap.Logger, opts ...SchedulerOption) (*ConsolidationScheduler, error) {
	if consolidator == nil {
		return nil, fmt.Errorf("consolidator cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &ConsolidationScheduler{
		consolidator: consolidator,
		interval:     24 * time.Hour,
		opts:         ConsolidationOptions{Threshold: 0.8},
		logger:       logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Start launches the ticking goroutine. Idempotence guard: a second
// Start while running is an error rather than a second goroutine. The
// goroutine exits when ctx is canceled or Stop is called.
func (s *ConsolidationScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("consolidation scheduler already running")
	}
	s.stopCh = make(chan struct{})
	s.running = true

	s.logger.Info("consolidation scheduler started",
		zap.Duration("interval", s.interval),
		zap.Int("projects", len(s.projects)))

	go s.loop(ctx, s.stopCh)
	return nil
}

// Stop signals the goroutine to exit. Safe to call on a stopped
// scheduler.
func (s *ConsolidationScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	close(s.stopCh)
	s.logger.Info("consolidation scheduler stopped")
}

func (s *ConsolidationScheduler) loop(ctx context.Context, stopCh <-chan struct{}) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.runOnce(ctx)
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// runOnce consolidates every configured project. Per-project failures
// are logged and the remaining projects still run; a panic in the
// consolidator is contained here so the loop survives it.
func (s *ConsolidationScheduler) runOnce(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("consolidation run panicked",
				zap.Any("panic", r), zap.Stack("stack"))
		}
	}()

	if len(s.projects) == 0 {
		return
	}

	runCtx, cancel := context.WithTimeout(ctx, 10*time.Minute)
	defer cancel()

	var created, archived int
	for _, project := range s.projects {
		result, err := s.consolidator.Consolidate(runCtx, project, s.opts)
		if err != nil {
			s.logger.Error("consolidation failed",
				zap.String("project", project), zap.Error(err))
			continue
		}
		created += len(result.CreatedMemories)
		archived += len(result.ArchivedMemories)
	}

	s.logger.Info("scheduled consolidation completed",
		zap.Int("created", created), zap.Int("archived", archived))
}
