// Package feedback implements the feedback store: append-only
// per-search helpfulness ratings and the time-windowed quality metrics
// aggregated from them.
//
// Grounded on internal/memory/confidence.go's signal-to-confidence
// aggregation pattern, simplified here to a flat append-only log plus a
// windowed SQL aggregate per (a relational table with a
// timestamp index is explicitly called out as sufficient).
package feedback

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Rating is the client's helpfulness verdict for a search.
type Rating string

const (
	RatingHelpful    Rating = "helpful"
	RatingNotHelpful Rating = "not_helpful"
)

// Record is one append-only feedback entry.
type Record struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	SearchID    string    `json:"search_id"`
	Query       string    `json:"query"`
	ResultIDs   []string  `json:"result_ids"`
	Rating      Rating    `json:"rating"`
	Comment     string    `json:"comment,omitempty"`
	ProjectName string    `json:"project_name,omitempty"`
}

// QualityMetrics is the windowed aggregate returns.
type QualityMetrics struct {
	TotalSearches    int       `json:"total_searches"`
	HelpfulCount     int       `json:"helpful_count"`
	NotHelpfulCount  int       `json:"not_helpful_count"`
	HelpfulnessRate  float64   `json:"helpfulness_rate"`
	WindowStart      time.Time `json:"window_start"`
	WindowEnd        time.Time `json:"window_end"`
}

// Store is the feedback substrate.
type Store struct {
	db *sql.DB
}

// NewStore migrates the search_feedback table and returns a ready Store.
func NewStore(db *sql.DB) (*Store, error) {
	const schema = `
CREATE TABLE IF NOT EXISTS search_feedback (
	id           TEXT PRIMARY KEY,
	timestamp    TIMESTAMP NOT NULL,
	search_id    TEXT NOT NULL,
	query        TEXT NOT NULL,
	result_ids   TEXT NOT NULL,
	rating       TEXT NOT NULL,
	comment      TEXT,
	project_name TEXT
);
CREATE INDEX IF NOT EXISTS idx_search_feedback_timestamp ON search_feedback(timestamp);
CREATE INDEX IF NOT EXISTS idx_search_feedback_project ON search_feedback(project_name);`
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrating search_feedback: %w", err)
	}
	return &Store{db: db}, nil
}

// Submit appends a feedback record and returns its generated id.
func (s *Store) Submit(ctx context.Context, searchID, query string, resultIDs []string, rating Rating, comment, project string) (string, error) {
	if rating != RatingHelpful && rating != RatingNotHelpful {
		return "", fmt.Errorf("rating must be %q or %q, got %q", RatingHelpful, RatingNotHelpful, rating)
	}
	idsJSON, err := json.Marshal(resultIDs)
	if err != nil {
		return "", fmt.Errorf("marshaling result ids: %w", err)
	}

	id := uuid.New().String()
	_, err = s.db.ExecContext(ctx, `
INSERT INTO search_feedback (id, timestamp, search_id, query, result_ids, rating, comment, project_name)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, time.Now(), searchID, query, string(idsJSON), string(rating), comment, project)
	if err != nil {
		return "", fmt.Errorf("inserting feedback: %w", err)
	}
	return id, nil
}

// GetQualityMetrics aggregates feedback over the trailing timeRangeHours,
// optionally scoped to project. helpfulness_rate is 0 when total is 0.
func (s *Store) GetQualityMetrics(ctx context.Context, timeRangeHours float64, project string) (*QualityMetrics, error) {
	now := time.Now()
	windowStart := now.Add(-time.Duration(timeRangeHours * float64(time.Hour)))

	query := `SELECT rating, COUNT(*) FROM search_feedback WHERE timestamp >= ? AND timestamp <= ?`
	args := []interface{}{windowStart, now}
	if project != "" {
		query += ` AND project_name = ?`
		args = append(args, project)
	}
	query += ` GROUP BY rating`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("aggregating feedback: %w", err)
	}
	defer rows.Close()

	m := &QualityMetrics{WindowStart: windowStart, WindowEnd: now}
	for rows.Next() {
		var rating string
		var count int
		if err := rows.Scan(&rating, &count); err != nil {
			return nil, err
		}
		switch Rating(rating) {
		case RatingHelpful:
			m.HelpfulCount = count
		case RatingNotHelpful:
			m.NotHelpfulCount = count
		}
	}
	m.TotalSearches = m.HelpfulCount + m.NotHelpfulCount
	if m.TotalSearches > 0 {
		m.HelpfulnessRate = float64(m.HelpfulCount) / float64(m.TotalSearches)
	}
	return m, nil
}
