package githist

import (
	"context"
	"fmt"
	"io"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/format/diff"
	"github.com/go-git/go-git/v5/plumbing/object"

	pkggit "github.com/fyrsmithlabs/ctxengine/pkg/git"
)

// Embedder embeds commit messages and diff content for semantic
// search_git_history/blame_search matching. The orchestrator supplies its
// cached embedding provider; a nil Embedder skips embedding and the
// commit/file-change records are stored without vectors (LIKE-based
// search still works).
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

// Walker walks a repository's commit history into the commit/file-change
// store via go-git.
type Walker struct {
	store    *Store
	embedder Embedder
}

// NewWalker builds a Walker. embedder may be nil.
func NewWalker(store *Store, embedder Embedder) *Walker {
	return &Walker{store: store, embedder: embedder}
}

// IndexResult summarizes one index_git_history pass.
type IndexResult struct {
	CommitsIndexed     int
	FileChangesIndexed int
}

// IndexRepository implements index_git_history: walk every commit
// reachable from HEAD and persist its commit record plus one file-change
// record per modified file, up to maxCommits (0 means unbounded).
func (w *Walker) IndexRepository(ctx context.Context, repoPath string, maxCommits int) (IndexResult, error) {
	repo, err := git.PlainOpen(repoPath)
	if err != nil {
		return IndexResult{}, fmt.Errorf("opening repository %s: %w", repoPath, err)
	}

	head, err := repo.Head()
	if err != nil {
		return IndexResult{}, fmt.Errorf("resolving HEAD: %w", err)
	}

	// Commits walked from HEAD all belong to the checked-out branch;
	// record it so blame_search and get_recent_changes can filter by it.
	var branchNames []string
	if branch, err := pkggit.DetectBranch(repoPath); err == nil && branch != "" {
		branchNames = []string{branch}
	}

	commitIter, err := repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return IndexResult{}, fmt.Errorf("walking commit log: %w", err)
	}
	defer commitIter.Close()

	var result IndexResult
	var commits []Commit
	var changes []FileChange
	var messages []string

	err = commitIter.ForEach(func(c *object.Commit) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if maxCommits > 0 && result.CommitsIndexed >= maxCommits {
			return io.EOF
		}

		fileChanges, added, deleted, err := w.commitFileChanges(c)
		if err != nil {
			return fmt.Errorf("diffing commit %s: %w", c.Hash.String(), err)
		}

		var parents []string
		for _, p := range c.ParentHashes {
			parents = append(parents, p.String())
		}

		commits = append(commits, Commit{
			Hash:         c.Hash.String(),
			AuthorName:   c.Author.Name,
			AuthorEmail:  c.Author.Email,
			AuthorDate:   c.Author.When,
			Message:      c.Message,
			BranchNames:  branchNames,
			ParentHashes: parents,
			FilesChanged: len(fileChanges),
			LinesAdded:   added,
			LinesDeleted: deleted,
		})
		messages = append(messages, c.Message)
		changes = append(changes, fileChanges...)
		result.CommitsIndexed++
		result.FileChangesIndexed += len(fileChanges)
		return nil
	})
	if err != nil && err != io.EOF {
		return result, err
	}

	if w.embedder != nil && len(messages) > 0 {
		vectors, embedErr := w.embedder.EmbedDocuments(ctx, messages)
		if embedErr == nil && len(vectors) == len(commits) {
			for i := range commits {
				commits[i].MessageEmbedding = vectors[i]
			}
		}
	}

	if err := w.store.StoreCommits(ctx, commits); err != nil {
		return result, err
	}
	if err := w.store.StoreFileChanges(ctx, changes); err != nil {
		return result, err
	}
	return result, nil
}

func (w *Walker) commitFileChanges(c *object.Commit) ([]FileChange, int, int, error) {
	if c.NumParents() == 0 {
		return w.rootCommitChanges(c)
	}

	parent, err := c.Parent(0)
	if err != nil {
		return nil, 0, 0, err
	}
	patch, err := parent.Patch(c)
	if err != nil {
		return nil, 0, 0, err
	}

	var changes []FileChange
	added, deleted := 0, 0
	for _, fp := range patch.FilePatches() {
		from, to := fp.Files()
		changeType, path := classifyChange(from, to)

		fileAdded, fileDeleted := 0, 0
		for _, chunk := range fp.Chunks() {
			lines := len(splitChunkLines(chunk.Content()))
			switch chunk.Type() {
			case diff.Add:
				fileAdded += lines
			case diff.Delete:
				fileDeleted += lines
			}
		}
		added += fileAdded
		deleted += fileDeleted

		changes = append(changes, FileChange{
			CommitHash:   c.Hash.String(),
			FilePath:     path,
			ChangeType:   changeType,
			LinesAdded:   fileAdded,
			LinesDeleted: fileDeleted,
		})
	}
	return changes, added, deleted, nil
}

func (w *Walker) rootCommitChanges(c *object.Commit) ([]FileChange, int, int, error) {
	tree, err := c.Tree()
	if err != nil {
		return nil, 0, 0, err
	}
	var changes []FileChange
	added := 0
	err = tree.Files().ForEach(func(f *object.File) error {
		lines, lerr := f.Lines()
		if lerr == nil {
			added += len(lines)
		}
		changes = append(changes, FileChange{
			CommitHash: c.Hash.String(),
			FilePath:   f.Name,
			ChangeType: ChangeAdded,
			LinesAdded: len(lines),
		})
		return nil
	})
	return changes, added, 0, err
}

func classifyChange(from, to diff.File) (ChangeType, string) {
	switch {
	case from == nil && to != nil:
		return ChangeAdded, to.Path()
	case from != nil && to == nil:
		return ChangeDeleted, from.Path()
	case from != nil && to != nil && from.Path() != to.Path():
		return ChangeRenamed, to.Path()
	case to != nil:
		return ChangeModified, to.Path()
	default:
		return ChangeModified, ""
	}
}

func splitChunkLines(content string) []string {
	var lines []string
	start := 0
	for i, r := range content {
		if r == '\n' {
			lines = append(lines, content[start:i])
			start = i + 1
		}
	}
	if start < len(content) {
		lines = append(lines, content[start:])
	}
	return lines
}
