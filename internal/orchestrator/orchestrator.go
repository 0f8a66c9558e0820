package orchestrator

import (
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ctxengine/internal/codeunits"
	"github.com/fyrsmithlabs/ctxengine/internal/consent"
	"github.com/fyrsmithlabs/ctxengine/internal/depgraph"
	"github.com/fyrsmithlabs/ctxengine/internal/embeddings"
	"github.com/fyrsmithlabs/ctxengine/internal/feedback"
	"github.com/fyrsmithlabs/ctxengine/internal/githist"
	"github.com/fyrsmithlabs/ctxengine/internal/indexer"
	"github.com/fyrsmithlabs/ctxengine/internal/memory"
	"github.com/fyrsmithlabs/ctxengine/internal/quality"
	"github.com/fyrsmithlabs/ctxengine/internal/reranker"
	"github.com/fyrsmithlabs/ctxengine/internal/search"
	"github.com/fyrsmithlabs/ctxengine/internal/session"
	"github.com/fyrsmithlabs/ctxengine/internal/usage"
	"github.com/fyrsmithlabs/ctxengine/internal/vectorstore"
	"github.com/fyrsmithlabs/ctxengine/pkg/collections"
)

// Orchestrator implements every operation. Construct one with
// New and call its methods directly; the MCP layer is a thin adapter over
// this type's method set.
type Orchestrator struct {
	db       *sql.DB
	store    vectorstore.Store
	embedder *embeddings.Cache
	records  *recordStore

	usage    *usage.Tracker
	sessions *session.Manager
	consent  *consent.Registry
	feedback *feedback.Store

	classifier memory.CategoryClassifier
	confidence *memory.ConfidenceCalculator
	signals    memory.SignalStore
	buffers    *memory.SessionBufferManager
	summarizer *memory.SessionSummarizer
	reranker   reranker.Reranker

	indexer  *indexer.Indexer
	parser   codeunits.Parser
	quality  *quality.Analyzer
	graphs   map[string]*depgraph.Graph // project -> dependency graph, rebuilt on index

	githistStore    *githist.Store
	githistWalker   *githist.Walker
	authorResolver  *githist.AuthorResolver

	fusion search.FusionConfig
	logger *zap.Logger
}

// Deps bundles every collaborator New needs. All fields except Logger are
// required; a nil AuthorResolver simply leaves get_code_authors'
// GitHub fields empty.
type Deps struct {
	DB       *sql.DB
	Store    vectorstore.Store
	Embedder *embeddings.Cache

	UsageTracker   *usage.Tracker
	Sessions       *session.Manager
	Consent        *consent.Registry
	Feedback       *feedback.Store
	Classifier     memory.CategoryClassifier

	// Signals backs the confidence calculator feedback feeds; nil uses
	// an in-memory store.
	Signals memory.SignalStore

	// Reranker is the optional post-fusion re-ranking stage; nil skips
	// the stage entirely.
	Reranker reranker.Reranker

	Indexer        *indexer.Indexer
	Parser         codeunits.Parser

	GithistStore   *githist.Store
	GithistWalker  *githist.Walker
	AuthorResolver *githist.AuthorResolver

	Fusion search.FusionConfig
	Logger *zap.Logger
}

// New builds an Orchestrator, migrating its own memory_units table on db.
func New(deps Deps) (*Orchestrator, error) {
	if deps.DB == nil || deps.Store == nil || deps.Embedder == nil {
		return nil, fmt.Errorf("orchestrator: db, store and embedder are required")
	}
	records, err := newRecordStore(deps.DB)
	if err != nil {
		return nil, err
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	classifier := deps.Classifier
	if classifier == nil {
		classifier = memory.NewRegexCategoryClassifier()
	}
	signals := deps.Signals
	if signals == nil {
		signals = memory.NewInMemorySignalStore()
	}
	o := &Orchestrator{
		db:             deps.DB,
		store:          deps.Store,
		embedder:       deps.Embedder,
		records:        records,
		usage:          deps.UsageTracker,
		sessions:       deps.Sessions,
		consent:        deps.Consent,
		feedback:       deps.Feedback,
		classifier:     classifier,
		signals:        signals,
		confidence:     memory.NewConfidenceCalculator(signals),
		buffers:        memory.NewSessionBufferManager(500),
		reranker:       deps.Reranker,
		indexer:        deps.Indexer,
		parser:         deps.Parser,
		graphs:         make(map[string]*depgraph.Graph),
		githistStore:   deps.GithistStore,
		githistWalker:  deps.GithistWalker,
		authorResolver: deps.AuthorResolver,
		fusion:         deps.Fusion,
		logger:         logger,
	}
	o.quality = quality.NewAnalyzer(&codeunitsNeighborLookup{o: o})
	o.summarizer = memory.NewSessionSummarizer(memory.NewSimpleExtractor(), logger)
	return o, nil
}

// memoryCollection names the vector-store collection a project's memories
// (as opposed to its code units) live in; global scope maps to the
// shared org collection.
func memoryCollection(projectName string, scope memory.Scope) string {
	if scope == memory.ScopeGlobal {
		return collections.MemoryCollection("")
	}
	return collections.MemoryCollection(projectName)
}

func codeCollection(projectName string) string {
	return collections.CodeCollection(projectName)
}

// usageComposite folds a tracked memory's usage stats into the 
// composite re-ranking score. A nil tracker (usage tracking disabled)
// falls back to the raw similarity score.
func usageComposite(tracker *usage.Tracker, similarity float32, createdAt time.Time, stats struct {
	LastUsed time.Time
	UseCount int64
}) float64 {
	if tracker == nil {
		return float64(similarity)
	}
	return tracker.CalculateCompositeScore(similarity, createdAt, stats.LastUsed, stats.UseCount)
}
