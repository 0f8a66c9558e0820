// Package config provides configuration loading for ctxengine v2.
//
// Configuration is loaded from environment variables with sensible defaults.
// This package supports server, observability, and application-specific settings.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Config holds the complete ctxengine v2 configuration.
type Config struct {
	Production             ProductionConfig
	Server                 ServerConfig
	Observability          ObservabilityConfig
	VectorStore            VectorStoreConfig
	Qdrant                 QdrantConfig
	Embeddings             EmbeddingsConfig
	Repository             RepositoryConfig
	ConsolidationScheduler ConsolidationSchedulerConfig
	Engine                 EngineConfig
}

// EngineConfig holds the retrieval-engine-specific tunables: hybrid
// fusion weighting, usage-tracker batching, the session-state TTL the
// scheduler's auto-prune job enforces, cross-project search, and the
// auto-indexing file watcher.
type EngineConfig struct {
	// DatabasePath is the SQLite file backing the consent registry,
	// feedback store, usage tracker and code-unit manifest. Empty uses a
	// private in-memory database (process-lifetime only).
	DatabasePath string `koanf:"database_path"`

	// HybridAlpha blends dense (vector) and lexical (BM25) scores in
	// weighted fusion; 1.0 is dense-only, 0.0 is lexical-only.
	HybridAlpha float64 `koanf:"hybrid_alpha"`
	BM25K1      float64 `koanf:"bm25_k1"`
	BM25B       float64 `koanf:"bm25_b"`

	UsageBatchSize    int           `koanf:"usage_batch_size"`
	UsageFlushInterval time.Duration `koanf:"usage_flush_interval"`

	// SessionStateTTLHours bounds how long a SESSION_STATE memory survives
	// before the scheduler's auto-prune job deletes it.
	SessionStateTTLHours int `koanf:"session_state_ttl_hours"`
	// PruneHour is the local hour-of-day the auto-prune job targets.
	PruneHour int `koanf:"prune_hour"`

	CrossProjectEnabled   bool    `koanf:"cross_project_enabled"`
	DedupFetchMultiplier  float64 `koanf:"dedup_fetch_multiplier"`

	// RerankerEnabled turns on the post-fusion term-overlap re-ranking
	// stage. Off by default; fusion plus the usage composite already
	// orders results.
	RerankerEnabled bool `koanf:"reranker_enabled"`

	// GitHubToken enables github.com lookups for get_code_authors; empty
	// disables the AuthorResolver entirely.
	GitHubToken string `koanf:"github_token"`

	// AutoIndexEnabled starts the filesystem watcher for every
	// project registered via AutoIndexProjects.
	AutoIndexEnabled  bool          `koanf:"auto_index_enabled"`
	AutoIndexDebounce time.Duration `koanf:"auto_index_debounce"`
	// AutoIndexProjects is a comma-separated list of name=path pairs.
	AutoIndexProjects []string `koanf:"auto_index_projects"`

	// NATSEmbedded starts an in-process NATS server instead of dialing an
	// external one, matching a single-binary CLI deployment.
	NATSEmbedded bool   `koanf:"nats_embedded"`
	NATSURL      string `koanf:"nats_url"`
}

// RepositoryConfig holds repository indexing configuration.
type RepositoryConfig struct {
	// IgnoreFiles is a list of ignore file names to parse from project root.
	// Patterns from these files are used as exclude patterns during indexing.
	// Default: [".gitignore", ".dockerignore", ".ctxengineignore"]
	IgnoreFiles []string `koanf:"ignore_files"`

	// FallbackExcludes are used when no ignore files are found in the project.
	// Default: [".git/**", "node_modules/**", "vendor/**", "__pycache__/**"]
	FallbackExcludes []string `koanf:"fallback_excludes"`
}

// VectorStoreConfig holds vectorstore provider configuration.
type VectorStoreConfig struct {
	Provider string        `koanf:"provider"` // "chromem", "qdrant", or "qdrant-langchain" (default: "chromem")
	Chromem  ChromemConfig `koanf:"chromem"`
}

// Validate validates VectorStoreConfig.
func (c *VectorStoreConfig) Validate() error {
	switch c.Provider {
	case "chromem":
		return c.Chromem.Validate()
	case "qdrant", "qdrant-langchain":
		// Qdrant validation happens at store construction
		return nil
	default:
		return fmt.Errorf("unsupported provider: %s (supported: chromem, qdrant, qdrant-langchain)", c.Provider)
	}
}

// ChromemConfig holds chromem-go embedded vector database configuration.
// chromem-go is a pure Go, embedded vector database with zero third-party dependencies.
type ChromemConfig struct {
	// Path is the directory for persistent storage.
	// Default: "~/.config/ctxengine/vectorstore"
	Path string `koanf:"path"`

	// Compress enables gzip compression for stored data.
	// Default: true
	Compress bool `koanf:"compress"`

	// DefaultCollection is the default collection name.
	// Default: "org_memories"
	DefaultCollection string `koanf:"default_collection"`

	// VectorSize is the expected embedding dimension.
	// Must match the embedder's output dimension.
	// Default: 384 (for FastEmbed bge-small-en-v1.5)
	VectorSize int `koanf:"vector_size"`
}

// Validate validates ChromemConfig.
func (c *ChromemConfig) Validate() error {
	if c.VectorSize <= 0 {
		return fmt.Errorf("vector_size must be positive, got %d", c.VectorSize)
	}
	return nil
}

// QdrantConfig holds Qdrant vector database configuration.
type QdrantConfig struct {
	Host           string `koanf:"host"`
	Port           int    `koanf:"port"`
	HTTPPort       int    `koanf:"http_port"`
	CollectionName string `koanf:"collection_name"`
	VectorSize     uint64 `koanf:"vector_size"`
	DataPath       string `koanf:"data_path"`
}

// EmbeddingsConfig holds embeddings service configuration.
type EmbeddingsConfig struct {
	Provider    string `koanf:"provider"` // "fastembed" or "tei"
	BaseURL     string `koanf:"base_url"` // TEI URL (if using TEI)
	Model       string `koanf:"model"`
	CacheDir    string `koanf:"cache_dir"`    // Model cache directory (for fastembed)
	ONNXVersion string `koanf:"onnx_version"` // Optional ONNX runtime version override
}

// ConsolidationSchedulerConfig holds automatic memory consolidation configuration.
type ConsolidationSchedulerConfig struct {
	Enabled             bool          `koanf:"enabled"`              // Enable automatic consolidation (default: false)
	Interval            time.Duration `koanf:"interval"`             // Time between consolidation runs (default: 24h)
	SimilarityThreshold float64       `koanf:"similarity_threshold"` // Similarity threshold for consolidation (default: 0.8)
	// ProjectIDs lists the projects each run consolidates; empty disables
	// the run even when Enabled.
	ProjectIDs []string `koanf:"project_ids"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            int           `koanf:"http_port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// ObservabilityConfig holds OpenTelemetry configuration.
type ObservabilityConfig struct {
	EnableTelemetry   bool   `koanf:"enable_telemetry"`
	ServiceName       string `koanf:"service_name"`
	OTLPEndpoint      string `koanf:"otlp_endpoint"`        // OTLP endpoint (default: localhost:4317)
	OTLPProtocol      string `koanf:"otlp_protocol"`        // "grpc" or "http/protobuf" (default: grpc)
	OTLPInsecure      bool   `koanf:"otlp_insecure"`        // Use insecure connection (default: true for localhost)
	OTLPTLSSkipVerify bool   `koanf:"otlp_tls_skip_verify"` // Skip TLS verification for internal CAs
}

// Load loads configuration from environment variables with defaults.
//
// Quick Start - Most commonly configured env vars:
//
//   - CTXENGINE_DATA_PATH: Base data path (default: /data)
//   - EMBEDDINGS_PROVIDER: fastembed (default, local) or tei (remote)
//   - EMBEDDINGS_CACHE_DIR: Model cache directory (default: ./local_cache)
//   - VECTORSTORE_PROVIDER: chromem (default, embedded) or qdrant (external)
//   - CTXENGINE_PRODUCTION_MODE: Enable production safety checks (default: false)
//
// All environment variables:
//
// Server:
//   - SERVER_PORT: HTTP server port (default: 9090)
//   - SERVER_SHUTDOWN_TIMEOUT: Graceful shutdown timeout (default: 10s)
//
// Qdrant:
//   - QDRANT_HOST: Qdrant host (default: localhost)
//   - QDRANT_PORT: Qdrant gRPC port (default: 6334)
//   - QDRANT_HTTP_PORT: Qdrant HTTP port (default: 6333)
//   - QDRANT_COLLECTION: Default collection name (default: org_memories)
//   - QDRANT_VECTOR_SIZE: Vector dimensions (default: 384 for FastEmbed)
//   - CTXENGINE_DATA_PATH: Base data path (default: /data)
//
// Embeddings:
//   - EMBEDDINGS_PROVIDER: Provider type: fastembed or tei (default: fastembed)
//   - EMBEDDINGS_MODEL: Embedding model (default: BAAI/bge-small-en-v1.5)
//   - EMBEDDING_BASE_URL: TEI URL if using TEI (default: http://localhost:8080)
//   - EMBEDDINGS_CACHE_DIR: Model cache directory for fastembed (default: ./local_cache)
//
// Consolidation Scheduler:
//   - CONSOLIDATION_SCHEDULER_ENABLED: Enable automatic consolidation (default: false)
//   - CONSOLIDATION_SCHEDULER_INTERVAL: Time between runs (default: 24h)
//   - CONSOLIDATION_SCHEDULER_SIMILARITY_THRESHOLD: Similarity threshold (default: 0.8)
//
// Telemetry:
//   - OTEL_ENABLE: Enable OpenTelemetry (default: false, requires OTEL collector)
//   - OTEL_SERVICE_NAME: Service name for traces (default: ctxengine)
//
// Example:
//
//	cfg := config.Load()
//	fmt.Println("Qdrant host:", cfg.Qdrant.Host)
func Load() *Config {
	cfg := &Config{
		Production: ProductionConfig{
			Enabled:               getEnvBool("CTXENGINE_PRODUCTION_MODE", false),
			LocalModeAcknowledged: getEnvBool("CTXENGINE_LOCAL_MODE", false),
			RequireAuthentication: getEnvBool("CTXENGINE_REQUIRE_AUTH", false),
			RequireTLS:            getEnvBool("CTXENGINE_REQUIRE_TLS", false),
		},
		Server: ServerConfig{
			Port:            getEnvInt("SERVER_PORT", 9090),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Observability: ObservabilityConfig{
			EnableTelemetry: getEnvBool("OTEL_ENABLE", false),
			ServiceName:     getEnvString("OTEL_SERVICE_NAME", "ctxengine"),
		},

	}

	// Consolidation Scheduler configuration
	cfg.ConsolidationScheduler = ConsolidationSchedulerConfig{
		Enabled:             getEnvBool("CONSOLIDATION_SCHEDULER_ENABLED", false),             // Default: disabled
		Interval:            getEnvDuration("CONSOLIDATION_SCHEDULER_INTERVAL", 24*time.Hour), // Default: 24h
		SimilarityThreshold: getEnvFloat("CONSOLIDATION_SCHEDULER_SIMILARITY_THRESHOLD", 0.8), // Default: 0.8
		ProjectIDs:          getEnvStringSlice("CONSOLIDATION_SCHEDULER_PROJECTS", nil),
	}

	// Qdrant configuration
	cfg.Qdrant = QdrantConfig{
		Host:           getEnvString("QDRANT_HOST", "localhost"),
		Port:           getEnvInt("QDRANT_PORT", 6334),
		HTTPPort:       getEnvInt("QDRANT_HTTP_PORT", 6333),
		CollectionName: getEnvString("QDRANT_COLLECTION", "org_memories"),
		VectorSize:     uint64(getEnvInt("QDRANT_VECTOR_SIZE", 384)), // FastEmbed default
		DataPath:       getEnvString("CTXENGINE_DATA_PATH", "/data"),
	}

	// Embeddings configuration
	cfg.Embeddings = EmbeddingsConfig{
		Provider:    getEnvString("EMBEDDINGS_PROVIDER", "fastembed"),
		BaseURL:     getEnvString("EMBEDDING_BASE_URL", "http://localhost:8080"),
		Model:       getEnvString("EMBEDDINGS_MODEL", "BAAI/bge-small-en-v1.5"),
		CacheDir:    getEnvString("EMBEDDINGS_CACHE_DIR", ""),
		ONNXVersion: getEnvString("EMBEDDINGS_ONNX_VERSION", ""),
	}

	// Repository indexing configuration
	cfg.Repository = RepositoryConfig{
		IgnoreFiles: getEnvStringSlice("REPOSITORY_IGNORE_FILES", []string{
			".gitignore",
			".dockerignore",
			".ctxengineignore",
		}),
		FallbackExcludes: getEnvStringSlice("REPOSITORY_FALLBACK_EXCLUDES", []string{
			".git/**",
			"node_modules/**",
			"vendor/**",
			"__pycache__/**",
		}),
	}

	// VectorStore configuration (chromem is default - embedded, no external deps)
	cfg.VectorStore = VectorStoreConfig{
		Provider: getEnvString("CTXENGINE_VECTORSTORE_PROVIDER", "chromem"),
		Chromem: ChromemConfig{
			Path:              getEnvString("CTXENGINE_VECTORSTORE_CHROMEM_PATH", "~/.config/ctxengine/vectorstore"),
			Compress:          getEnvBool("CTXENGINE_VECTORSTORE_CHROMEM_COMPRESS", false),
			DefaultCollection: getEnvString("CTXENGINE_VECTORSTORE_CHROMEM_COLLECTION", "org_memories"),
			VectorSize:        getEnvInt("CTXENGINE_VECTORSTORE_CHROMEM_VECTOR_SIZE", 384),
		},
	}

	// Engine configuration
	cfg.Engine = EngineConfig{
		DatabasePath:         getEnvString("CTXENGINE_DATABASE_PATH", ""),
		HybridAlpha:          getEnvFloat("CTXENGINE_HYBRID_ALPHA", 0.5),
		BM25K1:               getEnvFloat("CTXENGINE_BM25_K1", 1.2),
		BM25B:                getEnvFloat("CTXENGINE_BM25_B", 0.75),
		UsageBatchSize:       getEnvInt("CTXENGINE_USAGE_BATCH_SIZE", 50),
		UsageFlushInterval:   getEnvDuration("CTXENGINE_USAGE_FLUSH_INTERVAL", 30*time.Second),
		SessionStateTTLHours: getEnvInt("CTXENGINE_SESSION_STATE_TTL_HOURS", 24),
		PruneHour:            getEnvInt("CTXENGINE_PRUNE_HOUR", 2),
		CrossProjectEnabled:  getEnvBool("CTXENGINE_CROSS_PROJECT_ENABLED", false),
		RerankerEnabled:      getEnvBool("CTXENGINE_RERANKER_ENABLED", false),
		DedupFetchMultiplier: getEnvFloat("CTXENGINE_DEDUP_FETCH_MULTIPLIER", 2.0),
		GitHubToken:          getEnvString("CTXENGINE_GITHUB_TOKEN", ""),
		AutoIndexEnabled:     getEnvBool("CTXENGINE_AUTO_INDEX_ENABLED", false),
		AutoIndexDebounce:    getEnvDuration("CTXENGINE_AUTO_INDEX_DEBOUNCE", 2*time.Second),
		AutoIndexProjects:    getEnvStringSlice("CTXENGINE_AUTO_INDEX_PROJECTS", nil),
		NATSEmbedded:         getEnvBool("CTXENGINE_NATS_EMBEDDED", true),
		NATSURL:              getEnvString("CTXENGINE_NATS_URL", ""),
	}

	return cfg
}

// Validate validates the configuration.
//
// Returns an error if:
//   - Server port is not between 1 and 65535
//   - Shutdown timeout is not positive
//   - Service name is empty (when telemetry is enabled)
func (c *Config) Validate() error {
	// Validate server configuration
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}

	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive")
	}

	// Validate observability configuration
	if c.Observability.EnableTelemetry && c.Observability.ServiceName == "" {
		return errors.New("service name required when telemetry is enabled")
	}

	// Validate environment variable inputs
	if err := validateHostname(c.Qdrant.Host); err != nil {
		return fmt.Errorf("invalid QDRANT_HOST: %w", err)
	}

	if err := validatePath(c.Qdrant.DataPath); err != nil {
		return fmt.Errorf("invalid CTXENGINE_DATA_PATH: %w", err)
	}

	if err := validatePath(c.VectorStore.Chromem.Path); err != nil {
		return fmt.Errorf("invalid CTXENGINE_VECTORSTORE_CHROMEM_PATH: %w", err)
	}

	if c.Embeddings.CacheDir != "" {
		if err := validatePath(c.Embeddings.CacheDir); err != nil {
			return fmt.Errorf("invalid EMBEDDINGS_CACHE_DIR: %w", err)
		}
	}

	if c.Embeddings.BaseURL != "" {
		if err := validateURL(c.Embeddings.BaseURL); err != nil {
			return fmt.Errorf("invalid EMBEDDING_BASE_URL: %w", err)
		}
	}

	// Validate production configuration
	if err := c.Production.Validate(); err != nil {
		return fmt.Errorf("production config validation failed: %w", err)
	}

	return nil
}

// Helper functions for environment variable parsing

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		parsed, err := time.ParseDuration(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseFloat(value, 64)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		// Split by comma, trim whitespace
		parts := make([]string, 0)
		for _, part := range splitAndTrim(value, ",") {
			if part != "" {
				parts = append(parts, part)
			}
		}
		if len(parts) > 0 {
			return parts
		}
	}
	return defaultValue
}

func splitAndTrim(s, sep string) []string {
	var result []string
	for _, part := range strings.Split(s, sep) {
		trimmed := strings.TrimSpace(part)
		result = append(result, trimmed)
	}
	return result
}

// ProductionConfig holds production deployment configuration.
type ProductionConfig struct {
	// Enabled indicates whether production mode is active.
	// Set via CTXENGINE_PRODUCTION_MODE=1 environment variable.
	Enabled bool `koanf:"enabled"`

	// LocalModeAcknowledged allows development features in production mode.
	// Set via CTXENGINE_LOCAL_MODE=1 environment variable.
	// Use only for local development/testing.
	LocalModeAcknowledged bool `koanf:"local_mode_acknowledged"`

	// RequireAuthentication enforces authentication in production.
	RequireAuthentication bool `koanf:"require_authentication"`

	// AuthenticationConfigured indicates if auth is properly set up.
	AuthenticationConfigured bool `koanf:"authentication_configured"`

	// RequireTLS enforces TLS for external services (Qdrant, OTEL).
	RequireTLS bool `koanf:"require_tls"`
}

// IsProduction returns true if running in production mode.
func (c *ProductionConfig) IsProduction() bool {
	return c.Enabled
}

// IsLocal returns true if local mode is acknowledged.
func (c *ProductionConfig) IsLocal() bool {
	return c.LocalModeAcknowledged
}

// Validate checks production configuration for security issues.
func (c *ProductionConfig) Validate() error {
	if !c.Enabled {
		return nil // Not in production, skip validation
	}

	if c.RequireAuthentication && !c.AuthenticationConfigured {
		return fmt.Errorf("SECURITY: RequireAuthentication enabled but authentication not configured")
	}

	return nil
}

// validateHostname checks if a hostname is safe (no command injection attempts).
// Uses positive validation with net.ParseIP for IP addresses and regexp for hostnames.
func validateHostname(host string) error {
	// Empty hostname is allowed (config may use defaults)
	if host == "" {
		return nil
	}

	// Try parsing as IP first
	if net.ParseIP(host) != nil {
		return nil // Valid IP address
	}

	// Validate hostname format (RFC 1123)
	// Allow alphanumeric, dots, hyphens. Must not start/end with dash.
	hostnameRegex := regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(\.[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$`)
	if !hostnameRegex.MatchString(host) {
		return fmt.Errorf("invalid hostname format: %s", host)
	}

	// Additional blacklist check for shell metacharacters (defense in depth)
	invalidChars := []string{";", "\n", "\r", "$", "`", "|", "&", "<", ">", "(", ")"}
	for _, char := range invalidChars {
		if strings.Contains(host, char) {
			return fmt.Errorf("invalid hostname: contains forbidden character %q", char)
		}
	}
	return nil
}

// validatePath checks if a path is safe (no path traversal)
func validatePath(path string) error {
	// Check for path traversal sequences
	if strings.Contains(path, "..") {
		return fmt.Errorf("path contains traversal sequence: %s", path)
	}

	// For absolute paths, verify the cleaned path doesn't escape
	if filepath.IsAbs(path) {
		clean := filepath.Clean(path)
		// Count directory depth - compare original vs cleaned
		// If cleaned has fewer separators, upward traversal occurred
		origDepth := strings.Count(path, string(filepath.Separator))
		cleanDepth := strings.Count(clean, string(filepath.Separator))

		if cleanDepth < origDepth-1 {
			return fmt.Errorf("path traversal detected: %s (resolves to %s)", path, clean)
		}
	}

	return nil
}

// validateURL checks if a URL uses allowed schemes (http/https only)
func validateURL(urlStr string) error {
	// Only allow http and https schemes
	if !strings.HasPrefix(urlStr, "http://") && !strings.HasPrefix(urlStr, "https://") {
		return fmt.Errorf("URL must use http:// or https:// scheme, got: %s", urlStr)
	}
	return nil
}
