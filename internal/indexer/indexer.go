package indexer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fyrsmithlabs/ctxengine/internal/codeunits"
	"github.com/fyrsmithlabs/ctxengine/internal/ignore"
	"github.com/fyrsmithlabs/ctxengine/internal/vectorstore"
	"github.com/fyrsmithlabs/ctxengine/pkg/collections"
	pkgsecrets "github.com/fyrsmithlabs/ctxengine/pkg/secrets"
)

// scrubUnits redacts committed secrets from unit content before it is
// embedded or stored, so leaked credentials never land in the vector
// store. Detection failures leave the unit untouched; a source file the
// detector chokes on is still worth indexing.
func scrubUnits(units []codeunits.Unit, projectPath string) {
	for i := range units {
		res, err := pkgsecrets.Redact(units[i].Content, pkgsecrets.RedactOptions{ProjectPath: projectPath})
		if err != nil || !res.Audit.HasRedactions() {
			continue
		}
		units[i].Content = res.Content
	}
}

// defaultSkipDirs mirrors internal/repository's walk-skip set; directories
// that never contain source worth indexing as code units.
var defaultSkipDirs = map[string]bool{
	".git":         true,
	".svn":         true,
	".hg":          true,
	"node_modules": true,
	"vendor":       true,
	".venv":        true,
	"venv":         true,
	"__pycache__":  true,
	".idea":        true,
	".vscode":      true,
	".cache":       true,
	"dist":         true,
	"build":        true,
	".next":        true,
	"target":       true,
}

const defaultMaxFileSize = 1024 * 1024

// Embedder is the subset of embeddings.Provider the indexer needs.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

// Indexer ties the file walker, ignore-pattern filter, code-unit parser,
// embedder, and vector store together into one incremental indexing pass.
type Indexer struct {
	parser     codeunits.Parser
	embedder   Embedder
	store      vectorstore.Store
	manifest   *ManifestStore
	ignoreCfg  *ignore.Parser
	collection func(projectName string) string
}

// New builds an Indexer. collectionFn names the vector-store collection a
// project's code units are written to; when nil it defaults to
// "<projectName>_codeunits".
func New(parser codeunits.Parser, embedder Embedder, store vectorstore.Store, manifest *ManifestStore, collectionFn func(string) string) *Indexer {
	if collectionFn == nil {
		collectionFn = collections.CodeCollection
	}
	return &Indexer{
		parser:     parser,
		embedder:   embedder,
		store:      store,
		manifest:   manifest,
		ignoreCfg:  ignore.NewParser([]string{".gitignore", ".ctxengineignore"}, nil),
		collection: collectionFn,
	}
}

// SetIgnoreRules replaces the default ignore-file set with the
// configured one (ignore-file names read per project root, plus glob
// patterns applied when a project carries no ignore files).
func (idx *Indexer) SetIgnoreRules(ignoreFiles, fallbackExcludes []string) {
	idx.ignoreCfg = ignore.NewParser(ignoreFiles, fallbackExcludes)
}

// Manifest exposes the indexer's manifest store so callers can list
// indexed files/units or build a dependency graph without a second
// storage layer.
func (idx *Indexer) Manifest() *ManifestStore {
	return idx.manifest
}

// IndexProject walks projectPath and incrementally updates the project's
// code-unit collection.
func (idx *Indexer) IndexProject(ctx context.Context, projectName, projectPath string, opts Options) (*Stats, error) {
	stats := &Stats{}
	collection := idx.collection(projectName)

	exists, err := idx.store.CollectionExists(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("checking collection %s: %w", collection, err)
	}
	if !exists {
		dim := 0
		if dp, ok := idx.embedder.(interface{ Dimension() int }); ok {
			dim = dp.Dimension()
		}
		if err := idx.store.CreateCollection(ctx, collection, dim); err != nil {
			return nil, fmt.Errorf("creating collection %s: %w", collection, err)
		}
	}

	if opts.FullClear {
		if err := idx.clearProject(ctx, projectName, collection); err != nil {
			return nil, err
		}
	}

	excludes, err := idx.ignoreCfg.ParseProject(projectPath)
	if err != nil {
		return nil, fmt.Errorf("parsing ignore patterns: %w", err)
	}
	maxSize := opts.MaxFileSize
	if maxSize <= 0 {
		maxSize = defaultMaxFileSize
	}

	seen := make(map[string]bool)

	err = filepath.Walk(projectPath, func(filePath string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if info.IsDir() {
			if defaultSkipDirs[filepath.Base(filePath)] {
				return filepath.SkipDir
			}
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		relPath, err := filepath.Rel(projectPath, filePath)
		if err != nil {
			return fmt.Errorf("computing relative path for %s: %w", filePath, err)
		}
		relPath = filepath.ToSlash(relPath)

		ext := filepath.Ext(relPath)
		language := codeunits.LanguageForExtension(ext)
		if language == "" {
			return nil
		}
		if !matchesFilters(relPath, opts.IncludePatterns, excludes) {
			return nil
		}
		if info.Size() > maxSize {
			return nil
		}

		stats.FilesScanned++
		seen[relPath] = true

		if err := idx.indexFile(ctx, projectName, collection, relPath, filePath, language, info.ModTime(), opts.Force, stats); err != nil {
			stats.Errors = append(stats.Errors, fmt.Sprintf("%s: %v", relPath, err))
		}
		return nil
	})
	if err != nil {
		return stats, fmt.Errorf("walking %s: %w", projectPath, err)
	}

	if err := idx.reapRemoved(ctx, projectName, collection, seen, stats); err != nil {
		return stats, err
	}

	return stats, nil
}

func (idx *Indexer) clearProject(ctx context.Context, projectName, collection string) error {
	paths, err := idx.manifest.ListFiles(ctx, projectName)
	if err != nil {
		return err
	}
	var allUnitIDs []string
	for _, p := range paths {
		rec, err := idx.manifest.Get(ctx, projectName, p)
		if err != nil {
			return err
		}
		if rec != nil {
			allUnitIDs = append(allUnitIDs, rec.UnitIDs...)
		}
	}
	if len(allUnitIDs) > 0 {
		if err := idx.store.DeleteDocumentsFromCollection(ctx, collection, allUnitIDs); err != nil {
			return fmt.Errorf("clearing collection %s: %w", collection, err)
		}
	}
	return idx.manifest.ClearProject(ctx, projectName)
}

func (idx *Indexer) indexFile(ctx context.Context, projectName, collection, relPath, absPath, language string, modTime time.Time, force bool, stats *Stats) error {
	source, err := os.ReadFile(absPath)
	if err != nil {
		return fmt.Errorf("reading file: %w", err)
	}
	hash := contentHash(source)

	prev, err := idx.manifest.Get(ctx, projectName, relPath)
	if err != nil {
		return err
	}
	if !force && prev != nil && prev.ContentHash == hash {
		stats.FilesSkipped++
		return nil
	}

	result, err := idx.parser.Parse(relPath, language, source)
	if err != nil {
		return fmt.Errorf("parsing: %w", err)
	}
	scrubUnits(result.Units, filepath.Dir(absPath))

	var texts []string
	var units []codeunits.Unit
	var unitIDs []string
	var unitSummaries []UnitSummary
	var imports []ImportRecord
	seenImport := make(map[string]bool)
	for _, u := range result.Units {
		id := unitID(projectName, relPath, u)
		unitIDs = append(unitIDs, id)
		units = append(units, u)
		texts = append(texts, unitEmbedText(u))
		unitSummaries = append(unitSummaries, UnitSummary{
			ID:        id,
			Type:      string(u.Type),
			Name:      u.Name,
			StartLine: u.StartLine,
			EndLine:   u.EndLine,
			Content:   u.Content,
		})
		for _, imp := range u.Imports {
			key := fmt.Sprintf("%s\x00%d", imp.Module, imp.Line)
			if seenImport[key] {
				continue
			}
			seenImport[key] = true
			imports = append(imports, ImportRecord{
				Module:   imp.Module,
				Items:    imp.Items,
				Type:     imp.Type,
				Line:     imp.Line,
				Relative: imp.Relative,
			})
		}
	}

	if prev != nil && len(prev.UnitIDs) > 0 {
		if err := idx.store.DeleteDocumentsFromCollection(ctx, collection, prev.UnitIDs); err != nil {
			return fmt.Errorf("reaping stale units: %w", err)
		}
		stats.UnitsRemoved += len(prev.UnitIDs)
	}

	if len(units) > 0 {
		vectors, err := idx.embedder.EmbedDocuments(ctx, texts)
		if err != nil {
			return fmt.Errorf("embedding units: %w", err)
		}
		docs := make([]vectorstore.Document, len(units))
		for i, u := range units {
			docs[i] = vectorstore.Document{
				ID:         unitIDs[i],
				Content:    u.Content,
				Vector:     vectors[i],
				Collection: collection,
				Metadata:   unitMetadata(projectName, relPath, language, u),
			}
		}
		if _, err := idx.store.AddDocuments(ctx, docs); err != nil {
			return fmt.Errorf("storing units: %w", err)
		}
		stats.UnitsAdded += len(units)
	}

	stats.FilesChanged++
	return idx.manifest.Put(ctx, FileRecord{
		ProjectName: projectName,
		FilePath:    relPath,
		ContentHash: hash,
		Language:    language,
		ModifiedAt:  modTime,
		UnitIDs:     unitIDs,
		Units:       unitSummaries,
		Imports:     imports,
	})
}

func (idx *Indexer) reapRemoved(ctx context.Context, projectName, collection string, seen map[string]bool, stats *Stats) error {
	known, err := idx.manifest.ListFiles(ctx, projectName)
	if err != nil {
		return err
	}
	for _, p := range known {
		if seen[p] {
			continue
		}
		rec, err := idx.manifest.Get(ctx, projectName, p)
		if err != nil {
			return err
		}
		if rec != nil && len(rec.UnitIDs) > 0 {
			if err := idx.store.DeleteDocumentsFromCollection(ctx, collection, rec.UnitIDs); err != nil {
				return fmt.Errorf("removing units for deleted file %s: %w", p, err)
			}
			stats.UnitsRemoved += len(rec.UnitIDs)
		}
		if err := idx.manifest.Delete(ctx, projectName, p); err != nil {
			return err
		}
		stats.FilesRemoved++
	}
	return nil
}

// unitID deterministically derives a CodeUnit id from its identity
// components, so re-indexing an unchanged unit reuses the same id
// instead of duplicating it in the vector store.
func unitID(projectName, filePath string, u codeunits.Unit) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00%s\x00%s\x00%d", projectName, filePath, u.Type, u.Name, u.StartLine)
	return hex.EncodeToString(h.Sum(nil))[:32]
}

func contentHash(source []byte) string {
	sum := sha256.Sum256(source)
	return hex.EncodeToString(sum[:])
}

func unitEmbedText(u codeunits.Unit) string {
	var b strings.Builder
	b.WriteString(string(u.Type))
	b.WriteString(" ")
	b.WriteString(u.Name)
	b.WriteString("\n")
	b.WriteString(u.Content)
	return b.String()
}

func unitMetadata(projectName, filePath, language string, u codeunits.Unit) map[string]interface{} {
	imports := make([]string, 0, len(u.Imports))
	for _, imp := range u.Imports {
		imports = append(imports, imp.Module)
	}
	return map[string]interface{}{
		"project_name": projectName,
		"file_path":    filePath,
		"language":     language,
		"unit_type":    string(u.Type),
		"unit_name":    u.Name,
		"signature":    u.Signature,
		"start_line":   u.StartLine,
		"end_line":     u.EndLine,
		"imports":      imports,
	}
}

func matchesFilters(relPath string, includes, excludes []string) bool {
	base := filepath.Base(relPath)
	for _, pattern := range excludes {
		if matched, _ := filepath.Match(pattern, base); matched {
			return false
		}
		if matched, _ := filepath.Match(pattern, relPath); matched {
			return false
		}
		if strings.Contains(relPath, pattern) {
			return false
		}
	}
	if len(includes) == 0 {
		return true
	}
	for _, pattern := range includes {
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
		if matched, _ := filepath.Match(pattern, relPath); matched {
			return true
		}
	}
	return false
}

// sortedCopy is used by tests asserting deterministic ordering of scan
// results.
func sortedCopy(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}
