// Package indexer implements the incremental code indexer: it walks
// a project tree, diffs each file against its previously recorded content
// hash, re-parses and re-embeds only what changed, and reaps code units
// belonging to files that were modified or deleted.
package indexer

import "time"

// Options configures one IndexProject call.
type Options struct {
	// IncludePatterns/ExcludePatterns are glob patterns matched against
	// the file's path relative to the project root, same convention as
	// internal/repository's IndexOptions.
	IncludePatterns []string
	ExcludePatterns []string

	// MaxFileSize skips files larger than this many bytes. Zero means
	// the package default (1 MiB, matching internal/repository).
	MaxFileSize int64

	// Force bypasses the content-hash skip and re-parses/re-embeds every
	// matched file, the indexer's "cache-bypass mode".
	Force bool

	// FullClear deletes every previously indexed unit for the project
	// before indexing, the indexer's "full-clear mode" used when a
	// project's language table or chunking strategy changes.
	FullClear bool
}

// UnitSummary is the listing-friendly projection of a codeunits.Unit kept
// in the manifest so get_indexed_files/list_indexed_units and dependency
// graph construction never need a vector-store scroll/list-all call (no
// such method exists on vectorstore.Store, by design).
type UnitSummary struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Name      string `json:"name"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
	// Content is kept alongside the listing fields (not just in the
	// vector store) because vectorstore.Store has no get-by-id/scroll
	// method — find_similar_code and blame-style text matching need a
	// unit's source text addressable by id without a new search round.
	Content string `json:"content,omitempty"`
}

// ImportRecord is one import statement discovered in a file, the
// manifest's copy of codeunits.ImportRef flattened to the file level so
// internal/depgraph can build a project's dependency graph directly from
// the manifest instead of the vector store.
type ImportRecord struct {
	Module   string   `json:"module"`
	Items    []string `json:"items,omitempty"`
	Type     string   `json:"type"`
	Line     int      `json:"line"`
	Relative bool     `json:"relative"`
}

// FileRecord is the persisted content-hash manifest entry for one file,
// used to decide whether a file needs re-parsing on the next run.
type FileRecord struct {
	ProjectName string
	FilePath    string
	ContentHash string
	Language    string
	ModifiedAt  time.Time
	UnitIDs     []string
	Units       []UnitSummary
	Imports     []ImportRecord
}

// Stats summarizes one IndexProject run.
type Stats struct {
	FilesScanned int
	FilesChanged int
	FilesSkipped int
	FilesRemoved int
	UnitsAdded   int
	UnitsRemoved int
	Errors       []string
}
