package githist

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Store is the commit/file-change contract, SQLite-backed.
type Store struct {
	db *sql.DB
}

// NewStore migrates the commit/file-change tables and returns a ready Store.
func NewStore(db *sql.DB) (*Store, error) {
	const schema = `
CREATE TABLE IF NOT EXISTS git_commits (
	hash          TEXT PRIMARY KEY,
	author_name   TEXT NOT NULL,
	author_email  TEXT NOT NULL,
	author_date   TIMESTAMP NOT NULL,
	message       TEXT NOT NULL,
	branch_names  TEXT,
	tags          TEXT,
	parent_hashes TEXT,
	files_changed INTEGER NOT NULL DEFAULT 0,
	lines_added   INTEGER NOT NULL DEFAULT 0,
	lines_deleted INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_git_commits_author_date ON git_commits(author_date);
CREATE INDEX IF NOT EXISTS idx_git_commits_author_email ON git_commits(author_email);

CREATE TABLE IF NOT EXISTS git_file_changes (
	id            TEXT PRIMARY KEY,
	commit_hash   TEXT NOT NULL,
	file_path     TEXT NOT NULL,
	change_type   TEXT NOT NULL,
	lines_added   INTEGER NOT NULL DEFAULT 0,
	lines_deleted INTEGER NOT NULL DEFAULT 0,
	diff_content  TEXT
);
CREATE INDEX IF NOT EXISTS idx_git_file_changes_path ON git_file_changes(file_path);
CREATE INDEX IF NOT EXISTS idx_git_file_changes_commit ON git_file_changes(commit_hash);
`
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrating git history tables: %w", err)
	}
	return &Store{db: db}, nil
}

// StoreCommits implements store_git_commits: upsert every commit in list.
func (s *Store) StoreCommits(ctx context.Context, commits []Commit) error {
	for _, c := range commits {
		branches, _ := json.Marshal(c.BranchNames)
		tags, _ := json.Marshal(c.Tags)
		parents, _ := json.Marshal(c.ParentHashes)
		_, err := s.db.ExecContext(ctx, `
INSERT INTO git_commits (hash, author_name, author_email, author_date, message, branch_names, tags, parent_hashes, files_changed, lines_added, lines_deleted)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(hash) DO UPDATE SET
	branch_names = excluded.branch_names,
	tags = excluded.tags,
	files_changed = excluded.files_changed,
	lines_added = excluded.lines_added,
	lines_deleted = excluded.lines_deleted`,
			c.Hash, c.AuthorName, c.AuthorEmail, c.AuthorDate, c.Message,
			string(branches), string(tags), string(parents),
			c.FilesChanged, c.LinesAdded, c.LinesDeleted)
		if err != nil {
			return fmt.Errorf("storing commit %s: %w", c.Hash, err)
		}
	}
	return nil
}

// StoreFileChanges implements store_git_file_changes: upsert every change.
// Changes with an empty ID are assigned a new uuid.
func (s *Store) StoreFileChanges(ctx context.Context, changes []FileChange) error {
	for _, fc := range changes {
		if fc.ID == "" {
			fc.ID = uuid.NewString()
		}
		_, err := s.db.ExecContext(ctx, `
INSERT INTO git_file_changes (id, commit_hash, file_path, change_type, lines_added, lines_deleted, diff_content)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	lines_added = excluded.lines_added,
	lines_deleted = excluded.lines_deleted,
	diff_content = excluded.diff_content`,
			fc.ID, fc.CommitHash, fc.FilePath, string(fc.ChangeType), fc.LinesAdded, fc.LinesDeleted, fc.DiffContent)
		if err != nil {
			return fmt.Errorf("storing file change for %s: %w", fc.FilePath, err)
		}
	}
	return nil
}

// SearchCommits implements search_git_commits: a text LIKE match over the
// commit message (callers wanting semantic ranking pass the query through
// the embedding-backed orchestrator search instead) combined with
// author/date filters.
func (s *Store) SearchCommits(ctx context.Context, q CommitQuery) ([]Commit, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}

	var clauses []string
	var args []interface{}
	if q.Query != "" {
		clauses = append(clauses, "message LIKE ?")
		args = append(args, "%"+q.Query+"%")
	}
	if q.Author != "" {
		clauses = append(clauses, "(author_name = ? OR author_email = ?)")
		args = append(args, q.Author, q.Author)
	}
	if q.Since != nil {
		clauses = append(clauses, "author_date >= ?")
		args = append(args, *q.Since)
	}
	if q.Until != nil {
		clauses = append(clauses, "author_date <= ?")
		args = append(args, *q.Until)
	}

	query := "SELECT hash, author_name, author_email, author_date, message, branch_names, tags, parent_hashes, files_changed, lines_added, lines_deleted FROM git_commits"
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY author_date DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("searching commits: %w", err)
	}
	defer rows.Close()
	return scanCommits(rows)
}

// GetCommitsByFile implements get_commits_by_file.
func (s *Store) GetCommitsByFile(ctx context.Context, path string, limit int) ([]Commit, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT c.hash, c.author_name, c.author_email, c.author_date, c.message, c.branch_names, c.tags, c.parent_hashes, c.files_changed, c.lines_added, c.lines_deleted
FROM git_commits c
JOIN git_file_changes fc ON fc.commit_hash = c.hash
WHERE fc.file_path = ?
ORDER BY c.author_date DESC
LIMIT ?`, path, limit)
	if err != nil {
		return nil, fmt.Errorf("getting commits for %s: %w", path, err)
	}
	defer rows.Close()
	return scanCommits(rows)
}

// GetFileChangesWithCommits returns path's stored file changes joined
// with their owning commit's author/message/date, newest first — the
// per-occurrence row blame_search and show_function_evolution scan.
func (s *Store) GetFileChangesWithCommits(ctx context.Context, path string, limit int) ([]FileChangeAtCommit, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT fc.id, fc.commit_hash, fc.file_path, fc.change_type, fc.lines_added, fc.lines_deleted, fc.diff_content,
       c.author_name, c.author_email, c.author_date, c.message
FROM git_file_changes fc
JOIN git_commits c ON c.hash = fc.commit_hash
WHERE fc.file_path = ?
ORDER BY c.author_date DESC
LIMIT ?`, path, limit)
	if err != nil {
		return nil, fmt.Errorf("getting file changes with commits for %s: %w", path, err)
	}
	defer rows.Close()

	var out []FileChangeAtCommit
	for rows.Next() {
		var row FileChangeAtCommit
		var diff sql.NullString
		if err := rows.Scan(&row.ID, &row.CommitHash, &row.FilePath, &row.ChangeType, &row.LinesAdded, &row.LinesDeleted, &diff,
			&row.CommitAuthorName, &row.CommitAuthorEmail, &row.CommitDate, &row.CommitMessage); err != nil {
			return nil, err
		}
		row.DiffContent = diff.String
		out = append(out, row)
	}
	return out, rows.Err()
}

// GetRecentChanges implements get_recent_changes: the most recent N file
// changes across the repository, newest first.
func (s *Store) GetRecentChanges(ctx context.Context, limit int) ([]FileChange, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT fc.id, fc.commit_hash, fc.file_path, fc.change_type, fc.lines_added, fc.lines_deleted, fc.diff_content
FROM git_file_changes fc
JOIN git_commits c ON c.hash = fc.commit_hash
ORDER BY c.author_date DESC
LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("getting recent changes: %w", err)
	}
	defer rows.Close()

	var out []FileChange
	for rows.Next() {
		var fc FileChange
		var diff sql.NullString
		if err := rows.Scan(&fc.ID, &fc.CommitHash, &fc.FilePath, &fc.ChangeType, &fc.LinesAdded, &fc.LinesDeleted, &diff); err != nil {
			return nil, err
		}
		fc.DiffContent = diff.String
		out = append(out, fc)
	}
	return out, rows.Err()
}

// GetChangeFrequency implements get_change_frequency/get_churn_hotspots:
// per-file change counts and churn within an optional window, most
// frequently changed first. since==nil means "all time".
func (s *Store) GetChangeFrequency(ctx context.Context, since *time.Time, limit int) ([]ChangeFrequency, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
SELECT fc.file_path,
       COUNT(*) AS change_count,
       COALESCE(SUM(fc.lines_added), 0),
       COALESCE(SUM(fc.lines_deleted), 0),
       MAX(c.author_date) AS last_changed
FROM git_file_changes fc
JOIN git_commits c ON c.hash = fc.commit_hash`
	var args []interface{}
	if since != nil {
		query += " WHERE c.author_date >= ?"
		args = append(args, *since)
	}
	query += " GROUP BY fc.file_path ORDER BY change_count DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("computing change frequency: %w", err)
	}
	defer rows.Close()

	var out []ChangeFrequency
	for rows.Next() {
		var cf ChangeFrequency
		if err := rows.Scan(&cf.FilePath, &cf.ChangeCount, &cf.LinesAdded, &cf.LinesDeleted, &cf.LastChanged); err != nil {
			return nil, err
		}
		out = append(out, cf)
	}
	return out, rows.Err()
}

// GetCodeAuthors implements get_code_authors: distinct committers for an
// optional file path (empty means repo-wide), ranked by commit count.
func (s *Store) GetCodeAuthors(ctx context.Context, filePath string, limit int) ([]Author, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
SELECT c.author_name, c.author_email, COUNT(*) AS commit_count
FROM git_commits c`
	var args []interface{}
	if filePath != "" {
		query += " JOIN git_file_changes fc ON fc.commit_hash = c.hash WHERE fc.file_path = ?"
		args = append(args, filePath)
	}
	query += " GROUP BY c.author_email ORDER BY commit_count DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing code authors: %w", err)
	}
	defer rows.Close()

	var out []Author
	for rows.Next() {
		var a Author
		if err := rows.Scan(&a.Name, &a.Email, &a.CommitCount); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanCommits(rows *sql.Rows) ([]Commit, error) {
	var out []Commit
	for rows.Next() {
		var c Commit
		var branches, tags, parents string
		if err := rows.Scan(&c.Hash, &c.AuthorName, &c.AuthorEmail, &c.AuthorDate, &c.Message,
			&branches, &tags, &parents, &c.FilesChanged, &c.LinesAdded, &c.LinesDeleted); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(branches), &c.BranchNames)
		_ = json.Unmarshal([]byte(tags), &c.Tags)
		_ = json.Unmarshal([]byte(parents), &c.ParentHashes)
		out = append(out, c)
	}
	return out, rows.Err()
}
