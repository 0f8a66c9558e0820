package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/fyrsmithlabs/ctxengine/internal/githist"
)

type commitView struct {
	Hash         string   `json:"hash"`
	AuthorName   string   `json:"author_name"`
	AuthorEmail  string   `json:"author_email"`
	AuthorDate   string   `json:"author_date"`
	Message      string   `json:"message"`
	BranchNames  []string `json:"branch_names,omitempty"`
	Tags         []string `json:"tags,omitempty"`
	ParentHashes []string `json:"parent_hashes,omitempty"`
	FilesChanged int      `json:"files_changed"`
	LinesAdded   int      `json:"lines_added"`
	LinesDeleted int      `json:"lines_deleted"`
}

func commitViewOf(c githist.Commit) commitView {
	return commitView{
		Hash: c.Hash, AuthorName: c.AuthorName, AuthorEmail: c.AuthorEmail,
		AuthorDate: c.AuthorDate.Format("2006-01-02T15:04:05Z07:00"), Message: c.Message,
		BranchNames: c.BranchNames, Tags: c.Tags, ParentHashes: c.ParentHashes,
		FilesChanged: c.FilesChanged, LinesAdded: c.LinesAdded, LinesDeleted: c.LinesDeleted,
	}
}

type fileChangeView struct {
	ID           string `json:"id"`
	CommitHash   string `json:"commit_hash"`
	FilePath     string `json:"file_path"`
	ChangeType   string `json:"change_type"`
	LinesAdded   int    `json:"lines_added"`
	LinesDeleted int    `json:"lines_deleted"`
}

func fileChangeViewOf(c githist.FileChange) fileChangeView {
	return fileChangeView{
		ID: c.ID, CommitHash: c.CommitHash, FilePath: c.FilePath,
		ChangeType: string(c.ChangeType), LinesAdded: c.LinesAdded, LinesDeleted: c.LinesDeleted,
	}
}

type indexGitHistoryInput struct {
	RepoPath   string `json:"repo_path" jsonschema:"required"`
	MaxCommits int    `json:"max_commits,omitempty" jsonschema:"0 = no limit"`
}

type indexGitHistoryOutput struct {
	CommitsIndexed     int `json:"commits_indexed"`
	FileChangesIndexed int `json:"file_changes_indexed"`
}

type searchGitHistoryInput struct {
	Query      string `json:"query,omitempty"`
	Author     string `json:"author,omitempty"`
	SinceHours float64 `json:"since_hours,omitempty"`
	Limit      int    `json:"limit,omitempty"`
}

type commitsOutput struct {
	Commits []commitView `json:"commits"`
}

type commitsByFileInput struct {
	FilePath string `json:"file_path" jsonschema:"required"`
	Limit    int    `json:"limit,omitempty"`
}

type recentChangesInput struct {
	Limit int `json:"limit,omitempty"`
}

type fileChangesOutput struct {
	Changes []fileChangeView `json:"changes"`
}

type changeFrequencyInput struct {
	SinceHours float64 `json:"since_hours,omitempty" jsonschema:"Window size, default 720 (30 days)"`
	Limit      int     `json:"limit,omitempty"`
}

type changeFrequencyView struct {
	FilePath     string `json:"file_path"`
	ChangeCount  int    `json:"change_count"`
	LinesAdded   int    `json:"lines_added"`
	LinesDeleted int    `json:"lines_deleted"`
	LastChanged  string `json:"last_changed"`
}

type changeFrequencyOutput struct {
	Files []changeFrequencyView `json:"files"`
}

type codeAuthorsInput struct {
	FilePath    string `json:"file_path" jsonschema:"required"`
	GitHubOwner string `json:"github_owner,omitempty"`
	GitHubRepo  string `json:"github_repo,omitempty"`
	Limit       int    `json:"limit,omitempty"`
}

type authorView struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	CommitCount  int    `json:"commit_count"`
	GitHubLogin  string `json:"github_login,omitempty"`
	GitHubAvatar string `json:"github_avatar_url,omitempty"`
}

type authorsOutput struct {
	Authors []authorView `json:"authors"`
}

type functionEvolutionInput struct {
	FilePath   string `json:"file_path" jsonschema:"required"`
	SymbolName string `json:"symbol_name,omitempty"`
	Limit      int    `json:"limit,omitempty"`
}

type functionEvolutionEntryView struct {
	CommitHash    string `json:"commit_hash"`
	CommitDate    string `json:"commit_date"`
	AuthorName    string `json:"author_name"`
	AuthorEmail   string `json:"author_email"`
	CommitMessage string `json:"commit_message"`
	ChangeType    string `json:"change_type"`
	DiffExcerpt   string `json:"diff_excerpt,omitempty"`
}

type functionEvolutionOutput struct {
	Entries []functionEvolutionEntryView `json:"entries"`
}

type blameSearchInput struct {
	FilePath string `json:"file_path" jsonschema:"required"`
	Pattern  string `json:"pattern" jsonschema:"required"`
	Limit    int    `json:"limit,omitempty"`
}

type blameSearchMatchView struct {
	FilePath      string `json:"file_path"`
	CommitHash    string `json:"commit_hash"`
	CommitDate    string `json:"commit_date"`
	AuthorName    string `json:"author_name"`
	AuthorEmail   string `json:"author_email"`
	CommitMessage string `json:"commit_message"`
	Excerpt       string `json:"excerpt,omitempty"`
}

type blameSearchOutput struct {
	Matches []blameSearchMatchView `json:"matches"`
}

// registerGitHistoryTools registers the git-history search/analytics
// surface layered over the commit/file-change contract. None of
// these mutate indexed project code.
func (s *Server) registerGitHistoryTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "index_git_history",
		Description: "Walk a repository's commit log into the git-history store",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args indexGitHistoryInput) (*mcp.CallToolResult, indexGitHistoryOutput, error) {
		result, err := s.orch.IndexGitHistory(ctx, args.RepoPath, args.MaxCommits)
		if err != nil {
			return nil, indexGitHistoryOutput{}, fmt.Errorf("index_git_history: %w", err)
		}
		out := indexGitHistoryOutput{CommitsIndexed: result.CommitsIndexed, FileChangesIndexed: result.FileChangesIndexed}
		return &mcp.CallToolResult{Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("indexed %d commits", out.CommitsIndexed)},
		}}, out, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search_git_history",
		Description: "Search indexed commits by message, author, and/or time range",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args searchGitHistoryInput) (*mcp.CallToolResult, commitsOutput, error) {
		q := githist.CommitQuery{Query: args.Query, Author: args.Author, Limit: args.Limit}
		if args.SinceHours > 0 {
			since := time.Now().Add(-time.Duration(args.SinceHours * float64(time.Hour)))
			q.Since = &since
		}
		commits, err := s.orch.SearchGitHistory(ctx, q)
		if err != nil {
			return nil, commitsOutput{}, fmt.Errorf("search_git_history: %w", err)
		}
		out := commitsOutput{Commits: make([]commitView, len(commits))}
		for i, c := range commits {
			out.Commits[i] = commitViewOf(c)
		}
		return &mcp.CallToolResult{Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("%d matching commits", len(commits))},
		}}, out, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_commits_by_file",
		Description: "List commits that touched a given file, newest first",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args commitsByFileInput) (*mcp.CallToolResult, commitsOutput, error) {
		commits, err := s.orch.GetCommitsByFile(ctx, args.FilePath, args.Limit)
		if err != nil {
			return nil, commitsOutput{}, fmt.Errorf("get_commits_by_file: %w", err)
		}
		out := commitsOutput{Commits: make([]commitView, len(commits))}
		for i, c := range commits {
			out.Commits[i] = commitViewOf(c)
		}
		return &mcp.CallToolResult{Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("%d commits touched %s", len(commits), args.FilePath)},
		}}, out, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_recent_changes",
		Description: "List the most recent indexed file changes across the repository",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args recentChangesInput) (*mcp.CallToolResult, fileChangesOutput, error) {
		changes, err := s.orch.GetRecentChanges(ctx, args.Limit)
		if err != nil {
			return nil, fileChangesOutput{}, fmt.Errorf("get_recent_changes: %w", err)
		}
		out := fileChangesOutput{Changes: make([]fileChangeView, len(changes))}
		for i, c := range changes {
			out.Changes[i] = fileChangeViewOf(c)
		}
		return &mcp.CallToolResult{Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("%d recent changes", len(changes))},
		}}, out, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_change_frequency",
		Description: "Rank files by how often they changed within a trailing window",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args changeFrequencyInput) (*mcp.CallToolResult, changeFrequencyOutput, error) {
		since := args.SinceHours
		if since <= 0 {
			since = 720
		}
		rows, err := s.orch.GetChangeFrequency(ctx, since, args.Limit)
		if err != nil {
			return nil, changeFrequencyOutput{}, fmt.Errorf("get_change_frequency: %w", err)
		}
		return &mcp.CallToolResult{Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("%d files", len(rows))},
		}}, changeFrequencyOutputOf(rows), nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_churn_hotspots",
		Description: "Rank files by total churn (lines added + deleted) within a trailing window",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args changeFrequencyInput) (*mcp.CallToolResult, changeFrequencyOutput, error) {
		since := args.SinceHours
		if since <= 0 {
			since = 720
		}
		rows, err := s.orch.GetChurnHotspots(ctx, since, args.Limit)
		if err != nil {
			return nil, changeFrequencyOutput{}, fmt.Errorf("get_churn_hotspots: %w", err)
		}
		return &mcp.CallToolResult{Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("%d hotspots", len(rows))},
		}}, changeFrequencyOutputOf(rows), nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_code_authors",
		Description: "List the authors who have touched a file, optionally enriched with GitHub identity",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args codeAuthorsInput) (*mcp.CallToolResult, authorsOutput, error) {
		authors, err := s.orch.GetCodeAuthors(ctx, args.FilePath, args.GitHubOwner, args.GitHubRepo, args.Limit)
		if err != nil {
			return nil, authorsOutput{}, fmt.Errorf("get_code_authors: %w", err)
		}
		out := authorsOutput{Authors: make([]authorView, len(authors))}
		for i, a := range authors {
			out.Authors[i] = authorView{Name: a.Name, Email: a.Email, CommitCount: a.CommitCount, GitHubLogin: a.GitHubLogin, GitHubAvatar: a.GitHubAvatar}
		}
		return &mcp.CallToolResult{Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("%d authors", len(authors))},
		}}, out, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "show_function_evolution",
		Description: "Show the history of commits whose diff touches a given symbol within a file",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args functionEvolutionInput) (*mcp.CallToolResult, functionEvolutionOutput, error) {
		entries, err := s.orch.ShowFunctionEvolution(ctx, args.FilePath, args.SymbolName, args.Limit)
		if err != nil {
			return nil, functionEvolutionOutput{}, fmt.Errorf("show_function_evolution: %w", err)
		}
		out := functionEvolutionOutput{Entries: make([]functionEvolutionEntryView, len(entries))}
		for i, e := range entries {
			out.Entries[i] = functionEvolutionEntryView{
				CommitHash: e.CommitHash, CommitDate: e.CommitDate, AuthorName: e.AuthorName,
				AuthorEmail: e.AuthorEmail, CommitMessage: e.CommitMessage,
				ChangeType: string(e.ChangeType), DiffExcerpt: e.DiffExcerpt,
			}
		}
		return &mcp.CallToolResult{Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("%d matching commits", len(entries))},
		}}, out, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "blame_search",
		Description: "Find commits that introduced or touched lines matching a pattern within a file",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args blameSearchInput) (*mcp.CallToolResult, blameSearchOutput, error) {
		matches, err := s.orch.BlameSearch(ctx, args.FilePath, args.Pattern, args.Limit)
		if err != nil {
			return nil, blameSearchOutput{}, fmt.Errorf("blame_search: %w", err)
		}
		out := blameSearchOutput{Matches: make([]blameSearchMatchView, len(matches))}
		for i, m := range matches {
			out.Matches[i] = blameSearchMatchView{
				FilePath: m.FilePath, CommitHash: m.CommitHash, CommitDate: m.CommitDate,
				AuthorName: m.AuthorName, AuthorEmail: m.AuthorEmail, CommitMessage: m.CommitMessage,
				Excerpt: m.Excerpt,
			}
		}
		return &mcp.CallToolResult{Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("%d matches", len(matches))},
		}}, out, nil
	})
}

func changeFrequencyOutputOf(rows []githist.ChangeFrequency) changeFrequencyOutput {
	out := changeFrequencyOutput{Files: make([]changeFrequencyView, len(rows))}
	for i, r := range rows {
		out.Files[i] = changeFrequencyView{
			FilePath: r.FilePath, ChangeCount: r.ChangeCount, LinesAdded: r.LinesAdded,
			LinesDeleted: r.LinesDeleted, LastChanged: r.LastChanged.Format("2006-01-02T15:04:05Z07:00"),
		}
	}
	return out
}
