package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.False(t, cfg.Enabled, "telemetry must be opt-in")
	assert.Equal(t, "localhost:4317", cfg.Endpoint)
	assert.Equal(t, "ctxengine", cfg.ServiceName)
	assert.True(t, cfg.Insecure)
	assert.InDelta(t, 1.0, cfg.Sampling.Rate, 0.001)
	assert.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	enabled := func() *Config {
		cfg := NewDefaultConfig()
		cfg.Enabled = true
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"enabled defaults are valid", func(c *Config) {}, false},
		{"missing endpoint", func(c *Config) { c.Endpoint = "" }, true},
		{"missing service name", func(c *Config) { c.ServiceName = "" }, true},
		{"missing service version", func(c *Config) { c.ServiceVersion = "" }, true},
		{"insecure remote endpoint", func(c *Config) { c.Endpoint = "collector.example.com:4317" }, true},
		{"secure remote endpoint", func(c *Config) { c.Endpoint = "collector.example.com:4317"; c.Insecure = false }, false},
		{"sampling rate above 1", func(c *Config) { c.Sampling.Rate = 1.5 }, true},
		{"sampling rate below 0", func(c *Config) { c.Sampling.Rate = -0.1 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := enabled()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_DisabledSkipsValidation(t *testing.T) {
	cfg := &Config{Enabled: false}
	assert.NoError(t, cfg.Validate())
}

func TestNew_DisabledIsNoop(t *testing.T) {
	cfg := NewDefaultConfig()
	tel, err := New(context.Background(), cfg)
	require.NoError(t, err)

	assert.False(t, tel.IsEnabled())
	assert.True(t, tel.Health().Healthy)

	// Tracer/Meter must hand back usable no-op instruments.
	tracer := tel.Tracer("test")
	_, span := tracer.Start(context.Background(), "op")
	span.End()

	meter := tel.Meter("test")
	counter, err := meter.Int64Counter("test_counter")
	require.NoError(t, err)
	counter.Add(context.Background(), 1)

	assert.NoError(t, tel.Shutdown(context.Background()))
}

func TestNew_InvalidConfigRejected(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Enabled = true
	cfg.Endpoint = ""
	_, err := New(context.Background(), cfg)
	assert.Error(t, err)
}

func TestTestTelemetry_CapturesSpans(t *testing.T) {
	tt := NewTestTelemetry()

	tracer := tt.Tracer("test")
	_, span := tracer.Start(context.Background(), "indexing-pass")
	span.End()

	tt.AssertSpanExists(t, "indexing-pass")
	assert.Nil(t, tt.SpanByName("absent-span"))

	tt.Reset()
	assert.Empty(t, tt.Spans())
}

func TestShutdown_Timeout(t *testing.T) {
	tel, err := New(context.Background(), NewDefaultConfig())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	assert.NoError(t, tel.Shutdown(ctx))
}
