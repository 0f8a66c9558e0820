package indexer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/fyrsmithlabs/ctxengine/internal/codeunits"
	"github.com/fyrsmithlabs/ctxengine/internal/storage"
	"github.com/fyrsmithlabs/ctxengine/internal/vectorstore"
)

// fakeStore is a minimal in-memory vectorstore.Store sufficient to drive
// the indexer: collections are just named buckets of documents.
type fakeStore struct {
	collections map[string]map[string]vectorstore.Document
}

func newFakeStore() *fakeStore {
	return &fakeStore{collections: make(map[string]map[string]vectorstore.Document)}
}

func (f *fakeStore) AddDocuments(_ context.Context, docs []vectorstore.Document) ([]string, error) {
	var ids []string
	for _, d := range docs {
		coll := f.collections[d.Collection]
		if coll == nil {
			coll = make(map[string]vectorstore.Document)
			f.collections[d.Collection] = coll
		}
		coll[d.ID] = d
		ids = append(ids, d.ID)
	}
	return ids, nil
}

func (f *fakeStore) SearchInCollection(ctx context.Context, collectionName, query string, k int, filter *vectorstore.Filter) ([]vectorstore.SearchResult, error) {
	return nil, nil
}
func (f *fakeStore) DeleteDocumentsFromCollection(_ context.Context, collectionName string, ids []string) error {
	coll := f.collections[collectionName]
	for _, id := range ids {
		delete(coll, id)
	}
	return nil
}
func (f *fakeStore) CreateCollection(_ context.Context, collectionName string, vectorSize int) error {
	if f.collections[collectionName] == nil {
		f.collections[collectionName] = make(map[string]vectorstore.Document)
	}
	return nil
}
func (f *fakeStore) DeleteCollection(_ context.Context, collectionName string) error {
	delete(f.collections, collectionName)
	return nil
}
func (f *fakeStore) CollectionExists(_ context.Context, collectionName string) (bool, error) {
	_, ok := f.collections[collectionName]
	return ok, nil
}
func (f *fakeStore) ListCollections(_ context.Context) ([]string, error) { return nil, nil }
func (f *fakeStore) GetCollectionInfo(_ context.Context, collectionName string) (*vectorstore.CollectionInfo, error) {
	return &vectorstore.CollectionInfo{Name: collectionName, PointCount: len(f.collections[collectionName])}, nil
}
func (f *fakeStore) HealthCheck(_ context.Context) error { return nil }
func (f *fakeStore) Close() error                        { return nil }

type fakeEmbedder struct{ calls int }

func (e *fakeEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	e.calls++
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2}
	}
	return out, nil
}

func newTestIndexer(t *testing.T) (*Indexer, *fakeStore, *fakeEmbedder) {
	t.Helper()
	db, err := storage.OpenSQLite("")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	manifest, err := NewManifestStore(db)
	if err != nil {
		t.Fatal(err)
	}
	store := newFakeStore()
	emb := &fakeEmbedder{}
	idx := New(codeunits.NewHeuristicParser(), emb, store, manifest, nil)
	return idx, store, emb
}

func writeProject(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		full := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

const pySource = `def greet():
    return "hi"

class Greeter:
    def hello(self):
        return greet()
`

func TestIndexer_FirstRunIndexesAllUnits(t *testing.T) {
	idx, store, emb := newTestIndexer(t)
	dir := writeProject(t, map[string]string{"main.py": pySource})

	stats, err := idx.IndexProject(context.Background(), "proj", dir, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if stats.FilesChanged != 1 {
		t.Fatalf("expected 1 file changed, got %d", stats.FilesChanged)
	}
	if stats.UnitsAdded == 0 {
		t.Fatal("expected units to be added")
	}
	if emb.calls != 1 {
		t.Fatalf("expected embedder called once, got %d", emb.calls)
	}
	if len(store.collections["proj_codeunits"]) != stats.UnitsAdded {
		t.Fatalf("store has %d docs, stats say %d added", len(store.collections["proj_codeunits"]), stats.UnitsAdded)
	}
}

func TestIndexer_SecondRunSkipsUnchangedFile(t *testing.T) {
	idx, _, emb := newTestIndexer(t)
	dir := writeProject(t, map[string]string{"main.py": pySource})
	ctx := context.Background()

	if _, err := idx.IndexProject(ctx, "proj", dir, Options{}); err != nil {
		t.Fatal(err)
	}
	callsAfterFirst := emb.calls

	stats, err := idx.IndexProject(ctx, "proj", dir, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if stats.FilesSkipped != 1 {
		t.Fatalf("expected the unchanged file to be skipped, got stats %+v", stats)
	}
	if emb.calls != callsAfterFirst {
		t.Fatalf("expected no new embedding calls on an unchanged run, had %d now %d", callsAfterFirst, emb.calls)
	}
}

func TestIndexer_ForceReindexesUnchangedFile(t *testing.T) {
	idx, _, emb := newTestIndexer(t)
	dir := writeProject(t, map[string]string{"main.py": pySource})
	ctx := context.Background()

	if _, err := idx.IndexProject(ctx, "proj", dir, Options{}); err != nil {
		t.Fatal(err)
	}
	callsAfterFirst := emb.calls

	stats, err := idx.IndexProject(ctx, "proj", dir, Options{Force: true})
	if err != nil {
		t.Fatal(err)
	}
	if stats.FilesChanged != 1 {
		t.Fatalf("expected force to re-index the file, got %+v", stats)
	}
	if emb.calls <= callsAfterFirst {
		t.Fatalf("expected force mode to re-embed, calls stayed at %d", emb.calls)
	}
}

func TestIndexer_RemovedFileReapsItsUnits(t *testing.T) {
	idx, store, _ := newTestIndexer(t)
	dir := writeProject(t, map[string]string{"main.py": pySource})
	ctx := context.Background()

	if _, err := idx.IndexProject(ctx, "proj", dir, Options{}); err != nil {
		t.Fatal(err)
	}
	if len(store.collections["proj_codeunits"]) == 0 {
		t.Fatal("expected units after first index")
	}

	if err := os.Remove(filepath.Join(dir, "main.py")); err != nil {
		t.Fatal(err)
	}

	stats, err := idx.IndexProject(ctx, "proj", dir, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if stats.FilesRemoved != 1 {
		t.Fatalf("expected 1 removed file, got %+v", stats)
	}
	if len(store.collections["proj_codeunits"]) != 0 {
		t.Fatalf("expected reaped units to leave the collection empty, got %d", len(store.collections["proj_codeunits"]))
	}
}

func TestIndexer_ChangedFileReplacesItsUnits(t *testing.T) {
	idx, store, _ := newTestIndexer(t)
	dir := writeProject(t, map[string]string{"main.py": pySource})
	ctx := context.Background()

	if _, err := idx.IndexProject(ctx, "proj", dir, Options{}); err != nil {
		t.Fatal(err)
	}
	firstCount := len(store.collections["proj_codeunits"])

	newSource := pySource + "\ndef extra():\n    return 1\n"
	if err := os.WriteFile(filepath.Join(dir, "main.py"), []byte(newSource), 0o644); err != nil {
		t.Fatal(err)
	}

	stats, err := idx.IndexProject(ctx, "proj", dir, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if stats.FilesChanged != 1 {
		t.Fatalf("expected the modified file to be re-indexed, got %+v", stats)
	}
	if len(store.collections["proj_codeunits"]) <= firstCount {
		t.Fatalf("expected more units after adding a function, had %d now %d", firstCount, len(store.collections["proj_codeunits"]))
	}
}

func TestIndexer_FullClearWipesProjectBeforeReindex(t *testing.T) {
	idx, store, _ := newTestIndexer(t)
	dir := writeProject(t, map[string]string{"main.py": pySource})
	ctx := context.Background()

	if _, err := idx.IndexProject(ctx, "proj", dir, Options{}); err != nil {
		t.Fatal(err)
	}

	stats, err := idx.IndexProject(ctx, "proj", dir, Options{FullClear: true})
	if err != nil {
		t.Fatal(err)
	}
	if stats.FilesChanged != 1 {
		t.Fatalf("expected full clear to force a full re-index, got %+v", stats)
	}
	if len(store.collections["proj_codeunits"]) == 0 {
		t.Fatal("expected units to be present again after full-clear reindex")
	}
}

func TestIndexer_SkipsUnindexedExtensions(t *testing.T) {
	idx, store, _ := newTestIndexer(t)
	dir := writeProject(t, map[string]string{"README.md": "# hi", "main.py": pySource})

	stats, err := idx.IndexProject(context.Background(), "proj", dir, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if stats.FilesScanned != 1 {
		t.Fatalf("expected only the .py file to be scanned, got %d", stats.FilesScanned)
	}
	if len(store.collections["proj_codeunits"]) == 0 {
		t.Fatal("expected python units to still be indexed")
	}
}
