// Package mcp exposes the orchestrator's operations as an MCP tool
// surface, calling internal/orchestrator directly without any RPC layer
// in between.
//
// This implementation uses the MCP SDK (github.com/modelcontextprotocol/go-sdk/mcp)
// and registers tools for memory storage/retrieval, code search and
// indexing, dependency graph queries, conversation sessions, cross-project
// consent, search feedback, and git history. All memory content returned
// to clients is scrubbed for secrets first.
package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ctxengine/internal/orchestrator"
	"github.com/fyrsmithlabs/ctxengine/internal/secrets"
)

// Server wraps an *mcp.Server and dispatches its tool calls to an
// Orchestrator.
type Server struct {
	mcp      *mcp.Server
	orch     *orchestrator.Orchestrator
	scrubber secrets.Scrubber
	logger   *zap.Logger
}

// Config configures the MCP server.
type Config struct {
	// Name is the server implementation name (default: "ctxengine")
	Name string

	// Version is the server version (default: "2.0.0")
	Version string

	// Logger for structured logging
	Logger *zap.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Name:    "ctxengine",
		Version: "2.0.0",
		Logger:  zap.NewNop(),
	}
}

// NewServer creates a new MCP server over orch.
func NewServer(cfg *Config, orch *orchestrator.Orchestrator, scrubber secrets.Scrubber) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if orch == nil {
		return nil, fmt.Errorf("orchestrator is required")
	}
	if scrubber == nil {
		scrubber = secrets.MustNew(nil)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	mcpServer := mcp.NewServer(
		&mcp.Implementation{Name: cfg.Name, Version: cfg.Version},
		nil,
	)

	s := &Server{
		mcp:      mcpServer,
		orch:     orch,
		scrubber: scrubber,
		logger:   logger,
	}
	s.registerTools()
	return s, nil
}

// registerTools registers every tool group with the underlying MCP server.
func (s *Server) registerTools() {
	s.registerMemoryTools()
	s.registerConsolidationTools()
	s.registerCodeTools()
	s.registerGraphTools()
	s.registerSessionTools()
	s.registerCrossProjectTools()
	s.registerGitHistoryTools()
	s.registerStatusTools()
}

// Run starts the MCP server on the stdio transport.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting MCP server on stdio transport")
	transport := &mcp.StdioTransport{}
	if err := s.mcp.Run(ctx, transport); err != nil {
		return fmt.Errorf("server run failed: %w", err)
	}
	return nil
}

// scrub redacts secrets from a single string before it leaves the
// process, applying the same per-field scrub pattern
// summaries and memory content.
func (s *Server) scrub(content string) string {
	return s.scrubber.Scrub(content).Scrubbed
}
