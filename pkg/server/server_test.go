package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/ctxengine/internal/config"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Server.Port = 0
	cfg.Server.ShutdownTimeout = time.Second
	cfg.Observability.ServiceName = "ctxengine-test"
	return cfg
}

func TestHealthEndpoint(t *testing.T) {
	s := New(testConfig())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "ctxengine-test", body.Service)
}

func TestMetricsEndpointServed(t *testing.T) {
	s := New(testConfig())

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)

	// Owner auth derives from the test process's own user, so the
	// request authenticates and prometheus output is returned.
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestStartShutsDownOnCancel(t *testing.T) {
	s := New(testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, http.ErrServerClosed)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
