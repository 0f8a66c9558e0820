package orchestrator

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/ctxengine/internal/memory"
)

// recordStore is the orchestrator's system-of-record for MemoryUnits: a
// SQLite table keyed by id, queryable by project/scope/level/category for
// list_memories and export_memories, independent of whatever the vector
// store's own collection layout looks like.
//
// Grounded on internal/consent.Registry and internal/githist.Store's
// migrate-then-CRUD shape; the full unit is kept as a JSON blob (same
// pattern internal/indexer.ManifestStore uses for FileRecord.UnitIDs)
// alongside indexed columns used for WHERE-clause filtering.
type recordStore struct {
	db *sql.DB
}

func newRecordStore(db *sql.DB) (*recordStore, error) {
	const schema = `
CREATE TABLE IF NOT EXISTS memory_units (
	id             TEXT PRIMARY KEY,
	project_name   TEXT NOT NULL DEFAULT '',
	scope          TEXT NOT NULL,
	context_level  TEXT NOT NULL,
	category       TEXT NOT NULL,
	lifecycle_state TEXT NOT NULL,
	collection     TEXT NOT NULL,
	body           TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_memory_units_project ON memory_units(project_name);
CREATE INDEX IF NOT EXISTS idx_memory_units_level ON memory_units(context_level);
CREATE INDEX IF NOT EXISTS idx_memory_units_state ON memory_units(lifecycle_state);
`
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrating memory_units: %w", err)
	}
	return &recordStore{db: db}, nil
}

func (s *recordStore) put(ctx context.Context, collection string, m *memory.MemoryUnit) error {
	body, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshaling memory %s: %w", m.ID, err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO memory_units (id, project_name, scope, context_level, category, lifecycle_state, collection, body)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	project_name = excluded.project_name,
	scope = excluded.scope,
	context_level = excluded.context_level,
	category = excluded.category,
	lifecycle_state = excluded.lifecycle_state,
	collection = excluded.collection,
	body = excluded.body`,
		m.ID, m.ProjectName, string(m.Scope), string(m.ContextLevel), string(m.Category), string(m.LifecycleState), collection, string(body))
	if err != nil {
		return fmt.Errorf("storing memory %s: %w", m.ID, err)
	}
	return nil
}

func (s *recordStore) get(ctx context.Context, id string) (*memory.MemoryUnit, string, error) {
	var body, collection string
	err := s.db.QueryRowContext(ctx, `SELECT body, collection FROM memory_units WHERE id = ?`, id).Scan(&body, &collection)
	if err == sql.ErrNoRows {
		return nil, "", memory.ErrMemoryNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting memory %s: %w", id, err)
	}
	var m memory.MemoryUnit
	if err := json.Unmarshal([]byte(body), &m); err != nil {
		return nil, "", fmt.Errorf("decoding memory %s: %w", id, err)
	}
	return &m, collection, nil
}

func (s *recordStore) delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM memory_units WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting memory %s: %w", id, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return memory.ErrMemoryNotFound
	}
	return nil
}

// listFilter narrows list/export queries. Empty fields are unfiltered.
type listFilter struct {
	ProjectName  string
	Scope        string
	ContextLevel string
	Category     string
	IncludeArchived bool
	Limit        int
}

func (s *recordStore) list(ctx context.Context, f listFilter) ([]*memory.MemoryUnit, error) {
	var clauses []string
	var args []interface{}
	if f.ProjectName != "" {
		clauses = append(clauses, "project_name = ?")
		args = append(args, f.ProjectName)
	}
	if f.Scope != "" {
		clauses = append(clauses, "scope = ?")
		args = append(args, f.Scope)
	}
	if f.ContextLevel != "" {
		clauses = append(clauses, "context_level = ?")
		args = append(args, f.ContextLevel)
	}
	if f.Category != "" {
		clauses = append(clauses, "category = ?")
		args = append(args, f.Category)
	}
	if !f.IncludeArchived {
		clauses = append(clauses, "lifecycle_state = 'ACTIVE'")
	}

	query := "SELECT body FROM memory_units"
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 500
	}
	query += " LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing memories: %w", err)
	}
	defer rows.Close()

	var out []*memory.MemoryUnit
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		var m memory.MemoryUnit
		if err := json.Unmarshal([]byte(body), &m); err != nil {
			return nil, err
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

// listIDs returns every memory id in the table regardless of lifecycle
// state, used by the scheduler's orphaned-usage-stats purge to build the
// live-id set.
func (s *recordStore) listIDs(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM memory_units`)
	if err != nil {
		return nil, fmt.Errorf("listing memory ids: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = struct{}{}
	}
	return ids, rows.Err()
}

// collectionOf returns the vector-store collection a stored memory lives
// in, used by update/delete to re-target the right collection.
func (s *recordStore) collectionOf(ctx context.Context, id string) (string, error) {
	var collection string
	err := s.db.QueryRowContext(ctx, `SELECT collection FROM memory_units WHERE id = ?`, id).Scan(&collection)
	if err == sql.ErrNoRows {
		return "", memory.ErrMemoryNotFound
	}
	return collection, err
}
