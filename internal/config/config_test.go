package config

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parley-ai/parley/internal/errs"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, "./data", cfg.StoragePath)
	assert.Equal(t, 10, cfg.MaxHistory)
	assert.Equal(t, 2000, cfg.MaxTokens)
	assert.InDelta(t, 0.7, cfg.Temperature, 1e-9)
	assert.Empty(t, cfg.NATSURL)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("STORAGE_PATH", "/tmp/parley-data")
	t.Setenv("MODEL_MAX_TOKENS", "512")
	t.Setenv("MODEL_TEMPERATURE", "1.5")
	t.Setenv("MODEL_TIMEOUT", "45s")
	t.Setenv("TRACING_ENABLED", "true")

	cfg := Load()
	assert.Equal(t, "9999", cfg.ServerPort)
	assert.Equal(t, "/tmp/parley-data", cfg.StoragePath)
	assert.Equal(t, 512, cfg.MaxTokens)
	assert.InDelta(t, 1.5, cfg.Temperature, 1e-9)
	assert.Equal(t, 45*time.Second, cfg.ModelTimeout)
	assert.True(t, cfg.TracingEnabled)
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("MODEL_MAX_TOKENS", "lots")
	t.Setenv("MODEL_TIMEOUT", "soon")

	cfg := Load()
	assert.Equal(t, 2000, cfg.MaxTokens)
	assert.Equal(t, 30*time.Second, cfg.ModelTimeout)
}

func TestValidate(t *testing.T) {
	cfg := Load()
	require.NoError(t, cfg.Validate())

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty storage path", func(c *Config) { c.StoragePath = "" }},
		{"negative history", func(c *Config) { c.MaxHistory = -1 }},
		{"temperature too high", func(c *Config) { c.Temperature = 2.5 }},
		{"zero max tokens", func(c *Config) { c.MaxTokens = 0 }},
		{"zero model timeout", func(c *Config) { c.ModelTimeout = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			bad := *Load()
			tc.mutate(&bad)
			err := bad.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, errs.ErrConfig))
		})
	}
}
