// Ctxengine is a context retrieval engine exposed to LLM agents over the
// Model Context Protocol's stdio transport.
//
// It wires together a vector store, an embedding cache, a BM25/hybrid
// fusion search layer, a usage tracker, a conversation-session manager,
// cross-project consent, code-quality analysis, dependency graphs, git
// history, and an optional auto-indexing file watcher, then exposes all
// of it as an MCP tool surface over stdin/stdout. A side HTTP server
// exposes /health and /metrics for operators.
//
// Configuration is loaded from environment variables. See internal/config
// for details.
//
// Usage:
//
//	# Start with defaults (embedded chromem store, embedded NATS)
//	ctxengine
//
//	# Point at an external Qdrant instance
//	CTXENGINE_VECTORSTORE_PROVIDER=qdrant QDRANT_HOST=localhost ctxengine
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/google/go-github/v57/github"

	"github.com/fyrsmithlabs/ctxengine/internal/autoindex"
	"github.com/fyrsmithlabs/ctxengine/internal/codeunits"
	"github.com/fyrsmithlabs/ctxengine/internal/config"
	"github.com/fyrsmithlabs/ctxengine/internal/consent"
	"github.com/fyrsmithlabs/ctxengine/internal/embeddings"
	"github.com/fyrsmithlabs/ctxengine/internal/feedback"
	"github.com/fyrsmithlabs/ctxengine/internal/githist"
	"github.com/fyrsmithlabs/ctxengine/internal/indexer"
	"github.com/fyrsmithlabs/ctxengine/internal/logging"
	"github.com/fyrsmithlabs/ctxengine/internal/mcp"
	"github.com/fyrsmithlabs/ctxengine/internal/memory"
	"github.com/fyrsmithlabs/ctxengine/internal/orchestrator"
	"github.com/fyrsmithlabs/ctxengine/internal/reranker"
	"github.com/fyrsmithlabs/ctxengine/internal/scheduler"
	"github.com/fyrsmithlabs/ctxengine/internal/search"
	"github.com/fyrsmithlabs/ctxengine/internal/secrets"
	"github.com/fyrsmithlabs/ctxengine/internal/session"
	"github.com/fyrsmithlabs/ctxengine/internal/storage"
	"github.com/fyrsmithlabs/ctxengine/internal/telemetry"
	"github.com/fyrsmithlabs/ctxengine/internal/usage"
	"github.com/fyrsmithlabs/ctxengine/internal/vectorstore"
	"github.com/fyrsmithlabs/ctxengine/pkg/server"
)

// Version information (set via ldflags during build).
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	flag.Parse()
	args := flag.Args()

	if len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  ctxengine           Start the ctxengine MCP server\n")
			fmt.Fprintf(os.Stderr, "  ctxengine version   Show version information\n")
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("received signal %v, shutting down gracefully...", sig)
		cancel()
	}()

	if err := run(ctx); err != nil {
		log.Fatalf("ctxengine: %v", err)
	}
	log.Println("ctxengine shutdown complete")
}

func printVersion() {
	fmt.Printf("ctxengine by Fyrsmith Labs\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run initializes every collaborator, starts the scheduler and (if
// enabled) the auto-indexing watcher, then blocks serving the MCP server
// on stdio until ctx is canceled.
func run(ctx context.Context) error {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	tel, err := initTelemetry(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		tel.Shutdown(shutdownCtx) //nolint:errcheck
	}()

	logger, err := initLogger(cfg, tel)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	logger.Info("starting ctxengine",
		zap.String("vectorstore_provider", cfg.VectorStore.Provider),
		zap.String("embeddings_provider", cfg.Embeddings.Provider))

	d, err := initDependencies(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing dependencies: %w", err)
	}
	defer d.Close()

	var rerank reranker.Reranker
	if cfg.Engine.RerankerEnabled {
		rerank = reranker.NewTermOverlapReranker()
	}

	orch, err := orchestrator.New(orchestrator.Deps{
		DB:             d.db,
		Store:          d.store,
		Embedder:       d.embedCache,
		Reranker:       rerank,
		UsageTracker:   d.usageTracker,
		Sessions:       d.sessions,
		Consent:        d.consentRegistry,
		Feedback:       d.feedbackStore,
		Indexer:        d.indexer,
		Parser:         d.parser,
		GithistStore:   d.githistStore,
		GithistWalker:  d.githistWalker,
		AuthorResolver: d.authorResolver,
		Fusion: search.FusionConfig{
			Method: search.MethodWeighted,
			Alpha:  search.AlphaOf(cfg.Engine.HybridAlpha),
			BM25:   search.BM25Params{K1: cfg.Engine.BM25K1, B: cfg.Engine.BM25B},
		},
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("building orchestrator: %w", err)
	}

	scrubber, err := secrets.New(nil)
	if err != nil {
		return fmt.Errorf("building secret scrubber: %w", err)
	}

	mcpServer, err := mcp.NewServer(&mcp.Config{Name: "ctxengine", Version: version, Logger: logger}, orch, scrubber)
	if err != nil {
		return fmt.Errorf("building MCP server: %w", err)
	}

	sched := scheduler.New(
		func(ctx context.Context) (int, error) {
			ttl := time.Duration(cfg.Engine.SessionStateTTLHours) * time.Hour
			return orch.PruneExpiredSessionState(ctx, ttl)
		},
		orch.CollectMetricsSnapshot,
		scheduler.Config{PruneHour: cfg.Engine.PruneHour},
		logger,
	)
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("starting scheduler: %w", err)
	}
	defer sched.Stop()

	if cfg.ConsolidationScheduler.Enabled {
		consolidation, err := memory.NewConsolidationScheduler(orch.Consolidator(), logger,
			memory.WithInterval(cfg.ConsolidationScheduler.Interval),
			memory.WithProjectIDs(cfg.ConsolidationScheduler.ProjectIDs),
			memory.WithConsolidationOptions(memory.ConsolidationOptions{
				Threshold: cfg.ConsolidationScheduler.SimilarityThreshold,
			}))
		if err != nil {
			return fmt.Errorf("building consolidation scheduler: %w", err)
		}
		if err := consolidation.Start(ctx); err != nil {
			return fmt.Errorf("starting consolidation scheduler: %w", err)
		}
		defer consolidation.Stop()
	}

	if cfg.Engine.AutoIndexEnabled {
		watcher, err := startAutoIndex(ctx, cfg, d, logger)
		if err != nil {
			logger.Warn("auto-indexing disabled: failed to start watcher", zap.Error(err))
		} else {
			defer watcher.Stop()
		}
	}

	httpServer := server.New(cfg)
	go func() {
		logger.Info("health/metrics server listening", zap.Int("port", cfg.Server.Port))
		if err := httpServer.Start(ctx); err != nil && err != http.ErrServerClosed {
			logger.Error("health server stopped unexpectedly", zap.Error(err))
		}
	}()

	logger.Info("serving MCP tools on stdio transport")
	return mcpServer.Run(ctx)
}

// initTelemetry builds the OTEL tracer/meter/log providers; disabled
// config yields a no-op instance so call sites never nil-check.
func initTelemetry(ctx context.Context, cfg *config.Config) (*telemetry.Telemetry, error) {
	tcfg := telemetry.NewDefaultConfig()
	tcfg.Enabled = cfg.Observability.EnableTelemetry
	if cfg.Observability.ServiceName != "" {
		tcfg.ServiceName = cfg.Observability.ServiceName
	}
	if cfg.Observability.OTLPEndpoint != "" {
		tcfg.Endpoint = cfg.Observability.OTLPEndpoint
	}
	tcfg.Insecure = cfg.Observability.OTLPInsecure
	return telemetry.New(ctx, tcfg)
}

// initLogger builds the structured logger: redacting JSON on stderr
// (stdout belongs to the MCP transport), teed into the OTEL log pipeline
// when telemetry is enabled.
func initLogger(cfg *config.Config, tel *telemetry.Telemetry) (*zap.Logger, error) {
	lcfg := logging.NewDefaultConfig()
	lcfg.Output.OTEL = tel.IsEnabled()
	l, err := logging.NewLogger(lcfg, tel.LoggerProvider())
	if err != nil {
		return nil, err
	}
	return l.Underlying(), nil
}

// dependencies bundles every collaborator initDependencies assembles.
type dependencies struct {
	db         *sql.DB
	natsConn   *nats.Conn
	natsServer *natsserver.Server

	embedProvider embeddings.Provider
	embedCache    *embeddings.Cache
	store         vectorstore.Store

	usageTracker    *usage.Tracker
	sessions        *session.Manager
	consentRegistry *consent.Registry
	feedbackStore   *feedback.Store

	parser   codeunits.Parser
	manifest *indexer.ManifestStore
	indexer  *indexer.Indexer

	githistStore   *githist.Store
	githistWalker  *githist.Walker
	authorResolver *githist.AuthorResolver

	logger *zap.Logger
}

// Close releases every infrastructure resource in reverse dependency
// order. Safe to call even if initDependencies failed partway through,
// since every field defaults to its zero value.
func (d *dependencies) Close() {
	if d.usageTracker != nil {
		d.usageTracker.Close()
	}
	if d.store != nil {
		d.store.Close()
	}
	if d.embedProvider != nil {
		d.embedProvider.Close()
	}
	if d.natsConn != nil {
		d.natsConn.Close()
	}
	if d.natsServer != nil {
		d.natsServer.Shutdown()
	}
	if d.db != nil {
		d.db.Close()
	}
}

// initDependencies builds the shared SQLite database, the NATS
// connection, the embedding/vector-store stack, the usage/session/
// consent/feedback substrates, the code-unit indexer, and the git history
// store/walker/author-resolver.
func initDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*dependencies, error) {
	d := &dependencies{logger: logger}

	db, err := storage.OpenSQLite(cfg.Engine.DatabasePath)
	if err != nil {
		return d, fmt.Errorf("opening database: %w", err)
	}
	d.db = db

	nc, srv, err := connectNATS(cfg, logger)
	if err != nil {
		logger.Warn("NATS unavailable, auto-indexing will run without the event bus", zap.Error(err))
	}
	d.natsConn, d.natsServer = nc, srv

	embedProvider, err := embeddings.NewProvider(embeddings.ProviderConfig{
		Provider: cfg.Embeddings.Provider,
		Model:    cfg.Embeddings.Model,
		BaseURL:  cfg.Embeddings.BaseURL,
		CacheDir: cfg.Embeddings.CacheDir,
	})
	if err != nil {
		return d, fmt.Errorf("building embedding provider: %w", err)
	}
	d.embedProvider = embedProvider

	embedCache, err := embeddings.NewCache(embedProvider, db, embeddings.CacheConfig{})
	if err != nil {
		return d, fmt.Errorf("building embedding cache: %w", err)
	}
	d.embedCache = embedCache

	store, err := vectorstore.NewStore(cfg, embedCache, logger)
	if err != nil {
		return d, fmt.Errorf("building vector store: %w", err)
	}
	d.store = store

	usageStore, err := usage.NewSQLiteStore(db, "memory")
	if err != nil {
		return d, fmt.Errorf("building usage store: %w", err)
	}
	d.usageTracker = usage.NewTracker(usage.Config{
		BatchSize:     cfg.Engine.UsageBatchSize,
		FlushInterval: cfg.Engine.UsageFlushInterval,
	}, usageStore, logger)

	d.sessions = session.NewManager()

	consentRegistry, err := consent.NewRegistry(db)
	if err != nil {
		return d, fmt.Errorf("building consent registry: %w", err)
	}
	d.consentRegistry = consentRegistry

	feedbackStore, err := feedback.NewStore(db)
	if err != nil {
		return d, fmt.Errorf("building feedback store: %w", err)
	}
	d.feedbackStore = feedbackStore

	d.parser = codeunits.NewParser(codeunits.Config{Kind: codeunits.KindHeuristic})

	manifest, err := indexer.NewManifestStore(db)
	if err != nil {
		return d, fmt.Errorf("building indexer manifest store: %w", err)
	}
	d.manifest = manifest
	d.indexer = indexer.New(d.parser, embedCache, store, manifest, nil)
	d.indexer.SetIgnoreRules(cfg.Repository.IgnoreFiles, cfg.Repository.FallbackExcludes)

	githistStore, err := githist.NewStore(db)
	if err != nil {
		return d, fmt.Errorf("building git history store: %w", err)
	}
	d.githistStore = githistStore
	d.githistWalker = githist.NewWalker(githistStore, embedCache)

	if cfg.Engine.GitHubToken != "" {
		d.authorResolver = githist.NewAuthorResolver(newGitHubClient(ctx, cfg.Engine.GitHubToken))
	}

	return d, nil
}

func newGitHubClient(ctx context.Context, token string) *github.Client {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	return github.NewClient(oauth2.NewClient(ctx, ts))
}

// connectNATS either dials an external NATS server (CTXENGINE_NATS_URL) or
// starts one in-process, for a single-binary deployment where operators
// don't want to run a separate NATS process just to decouple the
// auto-indexer from the indexer.
func connectNATS(cfg *config.Config, logger *zap.Logger) (*nats.Conn, *natsserver.Server, error) {
	if cfg.Engine.NATSURL != "" {
		nc, err := nats.Connect(cfg.Engine.NATSURL, nats.RetryOnFailedConnect(true), nats.MaxReconnects(5), nats.ReconnectWait(time.Second))
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to %s: %w", cfg.Engine.NATSURL, err)
		}
		return nc, nil, nil
	}
	if !cfg.Engine.NATSEmbedded {
		return nil, nil, fmt.Errorf("no NATS URL configured and embedded NATS disabled")
	}

	srv, err := natsserver.NewServer(&natsserver.Options{
		Host:           "127.0.0.1",
		Port:           -1,
		NoLog:          true,
		NoSigs:         true,
		MaxControlLine: 2048,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("starting embedded NATS server: %w", err)
	}
	go srv.Start()
	if !srv.ReadyForConnections(5 * time.Second) {
		return nil, nil, fmt.Errorf("embedded NATS server never became ready")
	}

	nc, err := nats.Connect(srv.ClientURL())
	if err != nil {
		srv.Shutdown()
		return nil, nil, fmt.Errorf("connecting to embedded NATS server: %w", err)
	}
	logger.Info("embedded NATS server ready", zap.String("url", srv.ClientURL()))
	return nc, srv, nil
}

// startAutoIndex wires the file watcher to both the direct
// synchronous reindex path and the NATS event bus, then registers every
// project listed in CTXENGINE_AUTO_INDEX_PROJECTS ("name=path" pairs).
func startAutoIndex(ctx context.Context, cfg *config.Config, d *dependencies, logger *zap.Logger) (*autoindex.Watcher, error) {
	w, err := autoindex.New(cfg.Engine.AutoIndexDebounce, func(ctx context.Context, projectName, projectPath string) {
		if _, err := d.indexer.IndexProject(ctx, projectName, projectPath, indexer.Options{}); err != nil {
			logger.Warn("auto-index: reindex failed", zap.String("project", projectName), zap.Error(err))
		}
	})
	if err != nil {
		return nil, err
	}
	if d.natsConn != nil {
		w.WithPublisher(autoindex.NewPublisher(d.natsConn, logger))
	}

	for _, entry := range cfg.Engine.AutoIndexProjects {
		name, path, ok := strings.Cut(entry, "=")
		if !ok {
			logger.Warn("auto-index: skipping malformed project entry", zap.String("entry", entry))
			continue
		}
		if err := w.WatchProject(name, path); err != nil {
			logger.Warn("auto-index: failed to watch project", zap.String("project", name), zap.Error(err))
			continue
		}
		logger.Info("auto-index: watching project", zap.String("project", name), zap.String("path", path))
	}

	go w.Start(ctx)
	return w, nil
}

