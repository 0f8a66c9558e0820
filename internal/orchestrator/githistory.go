package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fyrsmithlabs/ctxengine/internal/githist"
)

// IndexGitHistory implements index_git_history: walks a repository's
// commit log into the githist store.
func (o *Orchestrator) IndexGitHistory(ctx context.Context, repoPath string, maxCommits int) (githist.IndexResult, error) {
	if o.githistWalker == nil {
		return githist.IndexResult{}, fmt.Errorf("git history indexing is not configured")
	}
	return o.githistWalker.IndexRepository(ctx, repoPath, maxCommits)
}

// SearchGitHistory implements search_git_history/search_git_commits.
func (o *Orchestrator) SearchGitHistory(ctx context.Context, q githist.CommitQuery) ([]githist.Commit, error) {
	if o.githistStore == nil {
		return nil, fmt.Errorf("git history is not configured")
	}
	return o.githistStore.SearchCommits(ctx, q)
}

// GetCommitsByFile implements get_commits_by_file.
func (o *Orchestrator) GetCommitsByFile(ctx context.Context, path string, limit int) ([]githist.Commit, error) {
	if o.githistStore == nil {
		return nil, fmt.Errorf("git history is not configured")
	}
	return o.githistStore.GetCommitsByFile(ctx, path, limit)
}

// GetRecentChanges implements get_recent_changes.
func (o *Orchestrator) GetRecentChanges(ctx context.Context, limit int) ([]githist.FileChange, error) {
	if o.githistStore == nil {
		return nil, fmt.Errorf("git history is not configured")
	}
	return o.githistStore.GetRecentChanges(ctx, limit)
}

// GetChangeFrequency implements get_change_frequency.
func (o *Orchestrator) GetChangeFrequency(ctx context.Context, sinceHours float64, limit int) ([]githist.ChangeFrequency, error) {
	if o.githistStore == nil {
		return nil, fmt.Errorf("git history is not configured")
	}
	return o.githistStore.GetChangeFrequency(ctx, sinceTime(sinceHours), limit)
}

// GetChurnHotspots implements get_churn_hotspots: the same per-file
// change-frequency aggregate as get_change_frequency, re-ranked by total
// churn (lines added + deleted) instead of raw change count.
func (o *Orchestrator) GetChurnHotspots(ctx context.Context, sinceHours float64, limit int) ([]githist.ChangeFrequency, error) {
	if o.githistStore == nil {
		return nil, fmt.Errorf("git history is not configured")
	}
	// Over-fetch by change count, then re-sort by churn so hotspots
	// aren't missed when a file has few but huge commits.
	fetch := limit * 4
	if fetch <= 0 {
		fetch = 80
	}
	rows, err := o.githistStore.GetChangeFrequency(ctx, sinceTime(sinceHours), fetch)
	if err != nil {
		return nil, err
	}
	sortByChurn(rows)
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func sortByChurn(rows []githist.ChangeFrequency) {
	for i := 1; i < len(rows); i++ {
		for j := i; j > 0 && churn(rows[j]) > churn(rows[j-1]); j-- {
			rows[j], rows[j-1] = rows[j-1], rows[j]
		}
	}
}

func churn(cf githist.ChangeFrequency) int {
	return cf.LinesAdded + cf.LinesDeleted
}

// GetCodeAuthors implements get_code_authors, best-effort annotated with
// GitHub identity when an AuthorResolver and owner/repo are configured.
func (o *Orchestrator) GetCodeAuthors(ctx context.Context, filePath, githubOwner, githubRepo string, limit int) ([]githist.Author, error) {
	if o.githistStore == nil {
		return nil, fmt.Errorf("git history is not configured")
	}
	authors, err := o.githistStore.GetCodeAuthors(ctx, filePath, limit)
	if err != nil {
		return nil, err
	}
	if o.authorResolver != nil && githubOwner != "" && githubRepo != "" {
		authors = o.authorResolver.Resolve(ctx, githubOwner, githubRepo, authors)
	}
	return authors, nil
}

// FunctionEvolutionEntry is one row of show_function_evolution.
type FunctionEvolutionEntry struct {
	CommitHash    string
	CommitDate    string
	AuthorName    string
	AuthorEmail   string
	CommitMessage string
	ChangeType    githist.ChangeType
	DiffExcerpt   string
}

// ShowFunctionEvolution implements show_function_evolution: every stored
// change to path whose diff mentions symbolName, newest first. There is
// no tree-sitter-aware hunk boundary tracking here;
// this is the text-matching equivalent used when no
// structured diff is available.
func (o *Orchestrator) ShowFunctionEvolution(ctx context.Context, path, symbolName string, limit int) ([]FunctionEvolutionEntry, error) {
	if o.githistStore == nil {
		return nil, fmt.Errorf("git history is not configured")
	}
	changes, err := o.githistStore.GetFileChangesWithCommits(ctx, path, 0)
	if err != nil {
		return nil, err
	}

	var out []FunctionEvolutionEntry
	for _, c := range changes {
		if symbolName != "" && !strings.Contains(c.DiffContent, symbolName) {
			continue
		}
		out = append(out, FunctionEvolutionEntry{
			CommitHash:    c.CommitHash,
			CommitDate:    c.CommitDate.Format("2006-01-02T15:04:05Z07:00"),
			AuthorName:    c.CommitAuthorName,
			AuthorEmail:   c.CommitAuthorEmail,
			CommitMessage: c.CommitMessage,
			ChangeType:    c.ChangeType,
			DiffExcerpt:   excerptAround(c.DiffContent, symbolName),
		})
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// BlameSearchMatch is one row of blame_search.
type BlameSearchMatch struct {
	FilePath      string
	CommitHash    string
	CommitDate    string
	AuthorName    string
	AuthorEmail   string
	CommitMessage string
	Excerpt       string
}

// BlameSearch implements blame_search: finds the commits that introduced
// or touched lines matching pattern within path, newest first.
func (o *Orchestrator) BlameSearch(ctx context.Context, path, pattern string, limit int) ([]BlameSearchMatch, error) {
	if o.githistStore == nil {
		return nil, fmt.Errorf("git history is not configured")
	}
	changes, err := o.githistStore.GetFileChangesWithCommits(ctx, path, 0)
	if err != nil {
		return nil, err
	}

	var out []BlameSearchMatch
	for _, c := range changes {
		if pattern != "" && !strings.Contains(c.DiffContent, pattern) {
			continue
		}
		out = append(out, BlameSearchMatch{
			FilePath:      c.FilePath,
			CommitHash:    c.CommitHash,
			CommitDate:    c.CommitDate.Format("2006-01-02T15:04:05Z07:00"),
			AuthorName:    c.CommitAuthorName,
			AuthorEmail:   c.CommitAuthorEmail,
			CommitMessage: c.CommitMessage,
			Excerpt:       excerptAround(c.DiffContent, pattern),
		})
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// excerptAround returns a short window of text surrounding needle's first
// occurrence in haystack, or haystack's first line when needle is empty
// or absent.
func excerptAround(haystack, needle string) string {
	const window = 120
	if needle == "" {
		if i := strings.IndexByte(haystack, '\n'); i >= 0 {
			return haystack[:i]
		}
		return haystack
	}
	idx := strings.Index(haystack, needle)
	if idx < 0 {
		return ""
	}
	start := idx - window
	if start < 0 {
		start = 0
	}
	end := idx + len(needle) + window
	if end > len(haystack) {
		end = len(haystack)
	}
	return haystack[start:end]
}

// sinceTime converts an hours-ago window into an absolute cutoff, nil
// meaning "all time" when sinceHours is non-positive.
func sinceTime(sinceHours float64) *time.Time {
	if sinceHours <= 0 {
		return nil
	}
	t := time.Now().Add(-time.Duration(sinceHours * float64(time.Hour)))
	return &t
}
