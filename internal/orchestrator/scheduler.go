package orchestrator

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ctxengine/internal/memory"
)

// PruneExpiredSessionState implements the auto-prune job: every
// SESSION_STATE memory older than ttl is deleted from both the vector
// store and the record store, and usage-tracker rows for memories that no
// longer exist anywhere are purged. Returns the number of memories
// deleted.
func (o *Orchestrator) PruneExpiredSessionState(ctx context.Context, ttl time.Duration) (int, error) {
	units, err := o.records.list(ctx, listFilter{
		ContextLevel:    string(memory.LevelSessionState),
		IncludeArchived: true,
		Limit:           100000,
	})
	if err != nil {
		return 0, fmt.Errorf("listing session-state memories: %w", err)
	}

	cutoff := time.Now().Add(-ttl)
	deleted := 0
	for _, m := range units {
		if m.CreatedAt.After(cutoff) {
			continue
		}
		if err := o.DeleteMemory(ctx, m.ID); err != nil {
			o.logger.Warn("auto-prune: failed to delete expired session-state memory",
				zap.Error(err), zap.String("id", m.ID))
			continue
		}
		deleted++
	}

	if o.usage != nil {
		liveIDs, err := o.records.listIDs(ctx)
		if err != nil {
			return deleted, fmt.Errorf("listing live ids for usage purge: %w", err)
		}
		if _, err := o.usage.PurgeOrphaned(ctx, liveIDs); err != nil {
			o.logger.Warn("auto-prune: failed to purge orphaned usage stats", zap.Error(err))
		}
	}

	// Confidence signals past the scoring window contribute nothing;
	// drop them so the signal store stays bounded.
	if o.signals != nil {
		if _, err := o.signals.PruneOlderThan(ctx, time.Now().Add(-180*24*time.Hour)); err != nil {
			o.logger.Warn("auto-prune: failed to prune confidence signals", zap.Error(err))
		}
	}

	return deleted, nil
}

// MetricsSnapshot is one row of the monitoring time-series table:
// a point-in-time count of system state, used for the hourly rollup job
// and surfaced back through get_status.
type MetricsSnapshot struct {
	TakenAt          time.Time
	TotalMemories    int
	SessionStateCount int
	ProjectContextCount int
	UserPreferenceCount int
	ArchivedCount    int
}

func newMetricsTable(db *sql.DB) error {
	const schema = `
CREATE TABLE IF NOT EXISTS monitoring_metrics (
	taken_at               TIMESTAMP NOT NULL,
	total_memories         INTEGER NOT NULL,
	session_state_count    INTEGER NOT NULL,
	project_context_count  INTEGER NOT NULL,
	user_preference_count  INTEGER NOT NULL,
	archived_count         INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_monitoring_metrics_taken_at ON monitoring_metrics(taken_at);
`
	_, err := db.Exec(schema)
	return err
}

// CollectMetricsSnapshot implements the hourly metrics-rollup job: it
// counts memories by context level and lifecycle state and appends one
// row to the monitoring_metrics table.
func (o *Orchestrator) CollectMetricsSnapshot(ctx context.Context) error {
	if o.db == nil {
		return fmt.Errorf("orchestrator: no database configured for metrics snapshot")
	}
	if err := newMetricsTable(o.db); err != nil {
		return fmt.Errorf("migrating monitoring_metrics: %w", err)
	}

	all, err := o.records.list(ctx, listFilter{IncludeArchived: true, Limit: 1000000})
	if err != nil {
		return fmt.Errorf("listing memories for metrics snapshot: %w", err)
	}

	snap := MetricsSnapshot{TakenAt: time.Now()}
	for _, m := range all {
		snap.TotalMemories++
		switch m.ContextLevel {
		case memory.LevelSessionState:
			snap.SessionStateCount++
		case memory.LevelProjectContext:
			snap.ProjectContextCount++
		case memory.LevelUserPreference:
			snap.UserPreferenceCount++
		}
		if m.LifecycleState == memory.StateArchived {
			snap.ArchivedCount++
		}
	}

	_, err = o.db.ExecContext(ctx, `
INSERT INTO monitoring_metrics (taken_at, total_memories, session_state_count, project_context_count, user_preference_count, archived_count)
VALUES (?, ?, ?, ?, ?, ?)`,
		snap.TakenAt, snap.TotalMemories, snap.SessionStateCount, snap.ProjectContextCount, snap.UserPreferenceCount, snap.ArchivedCount)
	if err != nil {
		return fmt.Errorf("inserting metrics snapshot: %w", err)
	}
	return nil
}

// LatestMetricsSnapshot returns the most recently recorded snapshot, used
// by get_status. Returns nil if no snapshot has been taken yet.
func (o *Orchestrator) LatestMetricsSnapshot(ctx context.Context) (*MetricsSnapshot, error) {
	if o.db == nil {
		return nil, nil
	}
	row := o.db.QueryRowContext(ctx, `
SELECT taken_at, total_memories, session_state_count, project_context_count, user_preference_count, archived_count
FROM monitoring_metrics ORDER BY taken_at DESC LIMIT 1`)
	var snap MetricsSnapshot
	err := row.Scan(&snap.TakenAt, &snap.TotalMemories, &snap.SessionStateCount, &snap.ProjectContextCount, &snap.UserPreferenceCount, &snap.ArchivedCount)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading latest metrics snapshot: %w", err)
	}
	return &snap, nil
}
