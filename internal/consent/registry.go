// Package consent implements the cross-project consent gate: a
// persistent per-project opt-in/opt-out registry that every cross-project
// search must consult before widening its project filter.
//
// Grounded on internal/memory/confidence.go's SignalStore persistence
// shape (small, single-key-lookup interface backed by a store the caller
// owns) and internal/config's validation style; this is new code since the
package consent

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Record is the persisted opt-in/opt-out state for one project.
type Record struct {
	ProjectName string     `json:"project_name"`
	OptedIn     bool       `json:"opted_in"`
	OptedInAt   *time.Time `json:"opted_in_at,omitempty"`
	OptedOutAt  *time.Time `json:"opted_out_at,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Registry is the contract: opt in/out and query the effective
// searchable-project set for cross-project search.
type Registry struct {
	db *sql.DB
}

// NewRegistry migrates the consent table and returns a ready Registry.
func NewRegistry(db *sql.DB) (*Registry, error) {
	const schema = `
CREATE TABLE IF NOT EXISTS consent_projects (
	project_name TEXT PRIMARY KEY,
	opted_in     INTEGER NOT NULL,
	opted_in_at  TIMESTAMP,
	opted_out_at TIMESTAMP,
	updated_at   TIMESTAMP NOT NULL
);`
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrating consent_projects: %w", err)
	}
	return &Registry{db: db}, nil
}

// OptIn marks project as explicitly opted in to cross-project search.
func (r *Registry) OptIn(ctx context.Context, project string) error {
	now := time.Now()
	_, err := r.db.ExecContext(ctx, `
INSERT INTO consent_projects (project_name, opted_in, opted_in_at, opted_out_at, updated_at)
VALUES (?, 1, ?, NULL, ?)
ON CONFLICT(project_name) DO UPDATE SET
	opted_in = 1, opted_in_at = excluded.opted_in_at, updated_at = excluded.updated_at`,
		project, now, now)
	if err != nil {
		return fmt.Errorf("opting in project %s: %w", project, err)
	}
	return nil
}

// OptOut marks project as explicitly opted out of cross-project search.
func (r *Registry) OptOut(ctx context.Context, project string) error {
	now := time.Now()
	_, err := r.db.ExecContext(ctx, `
INSERT INTO consent_projects (project_name, opted_in, opted_in_at, opted_out_at, updated_at)
VALUES (?, 0, NULL, ?, ?)
ON CONFLICT(project_name) DO UPDATE SET
	opted_in = 0, opted_out_at = excluded.opted_out_at, updated_at = excluded.updated_at`,
		project, now, now)
	if err != nil {
		return fmt.Errorf("opting out project %s: %w", project, err)
	}
	return nil
}

// IsOptedIn reports whether project is currently opted in. Absent entries
// default to true/.
func (r *Registry) IsOptedIn(ctx context.Context, project string) (bool, error) {
	var optedIn bool
	err := r.db.QueryRowContext(ctx, `SELECT opted_in FROM consent_projects WHERE project_name = ?`, project).Scan(&optedIn)
	if err == sql.ErrNoRows {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking consent for %s: %w", project, err)
	}
	return optedIn, nil
}

// Get returns the full record for project, or nil if no entry exists
// (meaning the default opted_in=true applies).
func (r *Registry) Get(ctx context.Context, project string) (*Record, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT project_name, opted_in, opted_in_at, opted_out_at, updated_at
FROM consent_projects WHERE project_name = ?`, project)

	var rec Record
	var optedIn int
	if err := row.Scan(&rec.ProjectName, &optedIn, &rec.OptedInAt, &rec.OptedOutAt, &rec.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("loading consent record for %s: %w", project, err)
	}
	rec.OptedIn = optedIn != 0
	return &rec, nil
}

// ListOptedIn returns every project with an explicit opted_in=true row.
// Projects with no row at all are NOT included even though they default
// to searchable within their own scope — the cross-project set is built
// only from explicit opt-ins.
func (r *Registry) ListOptedIn(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT project_name FROM consent_projects WHERE opted_in = 1 ORDER BY project_name`)
	if err != nil {
		return nil, fmt.Errorf("listing opted-in projects: %w", err)
	}
	defer rows.Close()

	var projects []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// GetSearchableProjects implements the selection rule for
// search_all_projects: when searchAll is true, every explicitly opted-in
// project; otherwise the same set minus current. The current project is
// always implicitly permitted by the caller regardless of this result.
func (r *Registry) GetSearchableProjects(ctx context.Context, current string, searchAll bool) (map[string]struct{}, error) {
	optedIn, err := r.ListOptedIn(ctx)
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(optedIn))
	for _, p := range optedIn {
		if !searchAll && p == current {
			continue
		}
		set[p] = struct{}{}
	}
	return set, nil
}
