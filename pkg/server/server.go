// Package server provides the operator-facing HTTP sidecar for ctxengine.
//
// The retrieval operations themselves only exist as MCP tools on stdio;
// this server exposes just /health and /metrics, with graceful
// context-aware shutdown. /metrics is guarded by owner authentication so
// another local user cannot scrape usage patterns.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fyrsmithlabs/ctxengine/internal/config"
	"github.com/fyrsmithlabs/ctxengine/pkg/auth"
)

// Server is the health/metrics HTTP sidecar.
type Server struct {
	config *config.Config
	echo   *echo.Echo
}

// HealthResponse is the JSON response for /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// New creates the sidecar with recovery and request-ID middleware,
// /health, and an owner-authenticated /metrics.
func New(cfg *config.Config) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())

	s := &Server{config: cfg, echo: e}

	e.GET("/health", s.handleHealth)
	metrics := e.Group("/metrics", auth.OwnerAuthMiddleware())
	metrics.GET("", echo.WrapHandler(promhttp.Handler()))

	return s
}

func (s *Server) handleHealth(c echo.Context) error {
	service := s.config.Observability.ServiceName
	if service == "" {
		service = "ctxengine"
	}
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok", Service: service})
}

// Start serves until ctx is canceled, then shuts down gracefully within
// the configured timeout. Returns http.ErrServerClosed on a clean stop.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.config.Server.Port)

	errCh := make(chan error, 1)
	go func() {
		if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("server start: %w", err)
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
		defer cancel()
		if err := s.echo.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return http.ErrServerClosed
	}
}

// Echo exposes the underlying router so the daemon can attach extra
// operator routes.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}
