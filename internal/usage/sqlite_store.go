package usage

import (
	"context"
	"database/sql"
	"fmt"
)

// SQLiteStore is the relational BackingStore: an
// `usage_statistics` table keyed uniquely on (stat_type, item_key).
type SQLiteStore struct {
	db       *sql.DB
	statType string
}

// NewSQLiteStore wraps db, migrating the usage_statistics table if needed.
// statType distinguishes this tracker's rows from other stat kinds sharing
// the table (e.g. "memory" vs "code_unit").
func NewSQLiteStore(db *sql.DB, statType string) (*SQLiteStore, error) {
	const schema = `
CREATE TABLE IF NOT EXISTS usage_statistics (
	stat_type         TEXT NOT NULL,
	item_key          TEXT NOT NULL,
	first_seen        TIMESTAMP NOT NULL,
	last_used         TIMESTAMP NOT NULL,
	use_count         INTEGER NOT NULL DEFAULT 0,
	last_search_score REAL NOT NULL DEFAULT 0,
	PRIMARY KEY (stat_type, item_key)
);`
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrating usage_statistics: %w", err)
	}
	return &SQLiteStore{db: db, statType: statType}, nil
}

// BatchUpdateUsage upserts every record in batch, summing use_count and
// keeping the existing first_seen for items already on record.
func (s *SQLiteStore) BatchUpdateUsage(ctx context.Context, batch []Stats) error {
	if len(batch) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO usage_statistics (stat_type, item_key, first_seen, last_used, use_count, last_search_score)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(stat_type, item_key) DO UPDATE SET
	last_used = excluded.last_used,
	use_count = usage_statistics.use_count + excluded.use_count,
	last_search_score = excluded.last_search_score`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range batch {
		if _, err := stmt.ExecContext(ctx, s.statType, rec.ItemID, rec.FirstSeen, rec.LastUsed, rec.UseCount, rec.LastSearchScore); err != nil {
			return fmt.Errorf("upserting usage for %s: %w", rec.ItemID, err)
		}
	}
	return tx.Commit()
}

// GetUsageStats returns the flushed stats for itemID, or nil if absent.
func (s *SQLiteStore) GetUsageStats(ctx context.Context, itemID string) (*Stats, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT item_key, first_seen, last_used, use_count, last_search_score
FROM usage_statistics WHERE stat_type = ? AND item_key = ?`, s.statType, itemID)

	var st Stats
	if err := row.Scan(&st.ItemID, &st.FirstSeen, &st.LastUsed, &st.UseCount, &st.LastSearchScore); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scanning usage stats for %s: %w", itemID, err)
	}
	return &st, nil
}

// PurgeOrphaned deletes usage rows whose item_key is not present in
// liveIDs, used by the scheduler's auto-prune job to clean up
// tracking records for memories that no longer exist.
func (s *SQLiteStore) PurgeOrphaned(ctx context.Context, liveIDs map[string]struct{}) (int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT item_key FROM usage_statistics WHERE stat_type = ?`, s.statType)
	if err != nil {
		return 0, fmt.Errorf("listing usage keys: %w", err)
	}
	var stale []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			rows.Close()
			return 0, err
		}
		if _, live := liveIDs[key]; !live {
			stale = append(stale, key)
		}
	}
	rows.Close()

	for _, key := range stale {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM usage_statistics WHERE stat_type = ? AND item_key = ?`, s.statType, key); err != nil {
			return 0, fmt.Errorf("deleting orphaned usage row %s: %w", key, err)
		}
	}
	return len(stale), nil
}
