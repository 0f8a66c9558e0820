// Package githist implements the commit/file-change contract and the
// git-history operations the orchestrator exposes
// (search_git_history, index_git_history, show_function_evolution,
// get_change_frequency, get_churn_hotspots, get_recent_changes,
// blame_search, get_code_authors).
//
// Grounded on internal/repository/service.go's go-git usage
// (git.PlainOpen, plumbing references) for the walk, and
// internal/consent.Registry's migrate-then-CRUD shape for persistence.
package githist

import "time"

// ChangeType classifies a file's change within a commit.
type ChangeType string

const (
	ChangeAdded    ChangeType = "added"
	ChangeModified ChangeType = "modified"
	ChangeDeleted  ChangeType = "deleted"
	ChangeRenamed  ChangeType = "renamed"
)

// Commit is one stored commit record, the commit shape.
type Commit struct {
	Hash             string    `json:"hash"`
	AuthorName       string    `json:"author_name"`
	AuthorEmail      string    `json:"author_email"`
	AuthorDate       time.Time `json:"author_date"`
	Message          string    `json:"message"`
	BranchNames      []string  `json:"branch_names,omitempty"`
	Tags             []string  `json:"tags,omitempty"`
	ParentHashes     []string  `json:"parent_hashes,omitempty"`
	FilesChanged     int       `json:"stats_files_changed"`
	LinesAdded       int       `json:"stats_lines_added"`
	LinesDeleted     int       `json:"stats_lines_deleted"`
	MessageEmbedding []float32 `json:"-"`
}

// FileChange is one stored file-change record, the file-change shape.
type FileChange struct {
	ID           string     `json:"id"`
	CommitHash   string     `json:"commit_hash"`
	FilePath     string     `json:"file_path"`
	ChangeType   ChangeType `json:"change_type"`
	LinesAdded   int        `json:"lines_added"`
	LinesDeleted int        `json:"lines_deleted"`
	DiffContent  string     `json:"diff_content,omitempty"`
	DiffEmbedding []float32 `json:"-"`
}

// CommitQuery filters search_git_commits.
type CommitQuery struct {
	Query  string
	Author string
	Since  *time.Time
	Until  *time.Time
	Limit  int
}

// ChangeFrequency is one row of get_change_frequency/get_churn_hotspots.
type ChangeFrequency struct {
	FilePath     string `json:"file_path"`
	ChangeCount  int    `json:"change_count"`
	LinesAdded   int    `json:"lines_added"`
	LinesDeleted int    `json:"lines_deleted"`
	LastChanged  time.Time `json:"last_changed"`
}

// FileChangeAtCommit pairs a stored file change with the commit metadata
// it belongs to, the shape blame_search and show_function_evolution
// return per matching line/occurrence.
type FileChangeAtCommit struct {
	FileChange
	CommitAuthorName  string    `json:"commit_author_name"`
	CommitAuthorEmail string    `json:"commit_author_email"`
	CommitDate        time.Time `json:"commit_date"`
	CommitMessage     string    `json:"commit_message"`
}

// Author is one row of get_code_authors.
type Author struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	CommitCount  int    `json:"commit_count"`
	GitHubLogin  string `json:"github_login,omitempty"`
	GitHubAvatar string `json:"github_avatar_url,omitempty"`
}
