package indexer

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// ManifestStore persists the per-file content-hash manifest and the unit
// IDs each file currently owns, so a later run can diff against it and
// reap stale units when a file changes or disappears. Backed by the same
// modernc.org/sqlite connection internal/usage and internal/consent use.
type ManifestStore struct {
	db *sql.DB
}

// NewManifestStore prepares the indexer_files table on db.
func NewManifestStore(db *sql.DB) (*ManifestStore, error) {
	const schema = `
CREATE TABLE IF NOT EXISTS indexer_files (
	project_name TEXT NOT NULL,
	file_path    TEXT NOT NULL,
	content_hash TEXT NOT NULL,
	language     TEXT NOT NULL,
	modified_at  TIMESTAMP NOT NULL,
	unit_ids     TEXT NOT NULL,
	units        TEXT NOT NULL DEFAULT '[]',
	imports      TEXT NOT NULL DEFAULT '[]',
	PRIMARY KEY (project_name, file_path)
);`
	if _, err := db.ExecContext(context.Background(), schema); err != nil {
		return nil, fmt.Errorf("creating indexer_files table: %w", err)
	}
	// Older databases may predate the units/imports columns; add them if
	// missing rather than forcing a FullClear re-index.
	for _, col := range []string{
		`ALTER TABLE indexer_files ADD COLUMN units TEXT NOT NULL DEFAULT '[]'`,
		`ALTER TABLE indexer_files ADD COLUMN imports TEXT NOT NULL DEFAULT '[]'`,
	} {
		_, _ = db.ExecContext(context.Background(), col) // ignore "duplicate column" errors
	}
	return &ManifestStore{db: db}, nil
}

// Get returns the recorded manifest entry for a file, or (nil, nil) if
// the file has never been indexed.
func (m *ManifestStore) Get(ctx context.Context, projectName, filePath string) (*FileRecord, error) {
	row := m.db.QueryRowContext(ctx,
		`SELECT content_hash, language, modified_at, unit_ids, units, imports FROM indexer_files WHERE project_name = ? AND file_path = ?`,
		projectName, filePath)

	rec, err := scanFileRecord(row.Scan, projectName, filePath)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading manifest entry for %s: %w", filePath, err)
	}
	return rec, nil
}

// scanFileRecord decodes one indexer_files row via scan, shared by Get and
// ListRecords so both stay in lockstep with the column list.
func scanFileRecord(scan func(dest ...interface{}) error, projectName, filePath string) (*FileRecord, error) {
	var hash, language, unitIDsJSON, unitsJSON, importsJSON string
	var modifiedAt time.Time
	if err := scan(&hash, &language, &modifiedAt, &unitIDsJSON, &unitsJSON, &importsJSON); err != nil {
		return nil, err
	}

	var unitIDs []string
	if err := json.Unmarshal([]byte(unitIDsJSON), &unitIDs); err != nil {
		return nil, fmt.Errorf("decoding unit ids for %s: %w", filePath, err)
	}
	var units []UnitSummary
	if unitsJSON != "" {
		if err := json.Unmarshal([]byte(unitsJSON), &units); err != nil {
			return nil, fmt.Errorf("decoding units for %s: %w", filePath, err)
		}
	}
	var imports []ImportRecord
	if importsJSON != "" {
		if err := json.Unmarshal([]byte(importsJSON), &imports); err != nil {
			return nil, fmt.Errorf("decoding imports for %s: %w", filePath, err)
		}
	}

	return &FileRecord{
		ProjectName: projectName,
		FilePath:    filePath,
		ContentHash: hash,
		Language:    language,
		ModifiedAt:  modifiedAt,
		UnitIDs:     unitIDs,
		Units:       units,
		Imports:     imports,
	}, nil
}

// Put upserts a file's manifest entry.
func (m *ManifestStore) Put(ctx context.Context, rec FileRecord) error {
	unitIDsJSON, err := json.Marshal(rec.UnitIDs)
	if err != nil {
		return fmt.Errorf("encoding unit ids for %s: %w", rec.FilePath, err)
	}
	unitsJSON, err := json.Marshal(rec.Units)
	if err != nil {
		return fmt.Errorf("encoding units for %s: %w", rec.FilePath, err)
	}
	importsJSON, err := json.Marshal(rec.Imports)
	if err != nil {
		return fmt.Errorf("encoding imports for %s: %w", rec.FilePath, err)
	}
	_, err = m.db.ExecContext(ctx, `
INSERT INTO indexer_files (project_name, file_path, content_hash, language, modified_at, unit_ids, units, imports)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(project_name, file_path) DO UPDATE SET
	content_hash = excluded.content_hash,
	language     = excluded.language,
	modified_at  = excluded.modified_at,
	unit_ids     = excluded.unit_ids,
	units        = excluded.units,
	imports      = excluded.imports`,
		rec.ProjectName, rec.FilePath, rec.ContentHash, rec.Language, rec.ModifiedAt, string(unitIDsJSON), string(unitsJSON), string(importsJSON))
	if err != nil {
		return fmt.Errorf("writing manifest entry for %s: %w", rec.FilePath, err)
	}
	return nil
}

// Delete removes a file's manifest entry (used once its units are reaped).
func (m *ManifestStore) Delete(ctx context.Context, projectName, filePath string) error {
	_, err := m.db.ExecContext(ctx, `DELETE FROM indexer_files WHERE project_name = ? AND file_path = ?`, projectName, filePath)
	if err != nil {
		return fmt.Errorf("deleting manifest entry for %s: %w", filePath, err)
	}
	return nil
}

// ListFiles returns every file path recorded for a project, used to find
// files that were removed since the last run.
func (m *ManifestStore) ListFiles(ctx context.Context, projectName string) ([]string, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT file_path FROM indexer_files WHERE project_name = ?`, projectName)
	if err != nil {
		return nil, fmt.Errorf("listing indexed files for %s: %w", projectName, err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scanning indexed file row: %w", err)
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

// ListRecords returns every full manifest entry for a project (unlike
// ListFiles, which returns bare paths), the source of truth
// get_indexed_files, list_indexed_units and dependency-graph construction
// read from instead of attempting a vector-store scroll/list-all.
func (m *ManifestStore) ListRecords(ctx context.Context, projectName string) ([]FileRecord, error) {
	rows, err := m.db.QueryContext(ctx,
		`SELECT file_path, content_hash, language, modified_at, unit_ids, units, imports FROM indexer_files WHERE project_name = ?`,
		projectName)
	if err != nil {
		return nil, fmt.Errorf("listing manifest records for %s: %w", projectName, err)
	}
	defer rows.Close()

	var out []FileRecord
	for rows.Next() {
		var filePath string
		rec, err := scanFileRecord(func(dest ...interface{}) error {
			return rows.Scan(append([]interface{}{&filePath}, dest...)...)
		}, projectName, "")
		if err != nil {
			return nil, fmt.Errorf("scanning manifest record: %w", err)
		}
		rec.FilePath = filePath
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// ClearProject deletes every manifest entry for a project, the persisted
// half of the indexer's full-clear mode.
func (m *ManifestStore) ClearProject(ctx context.Context, projectName string) error {
	_, err := m.db.ExecContext(ctx, `DELETE FROM indexer_files WHERE project_name = ?`, projectName)
	if err != nil {
		return fmt.Errorf("clearing manifest for %s: %w", projectName, err)
	}
	return nil
}
