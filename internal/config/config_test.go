package config

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"PORT", "HOST", "DOCUMENTS_DIR", "OUTPUT_DIR", "ASSETS_DIR", "PREVIEW_FILE",
	"RENDERER", "WEASYPRINT_BIN", "CHROME_PATH", "RENDER_TIMEOUT", "EXPORT_DOCX",
	"SETTLE_WINDOW", "BUILD_ON_START", "WORKER_COUNT", "MAX_QUEUE_SIZE", "JOB_TTL",
	"API_KEY", "LOG_LEVEL",
}

// clearEnv unsets every variable Load reads and restores them after the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, "127.0.0.1", cfg.Host)
	assert.Equal(t, "documents", cfg.DocumentsDir)
	assert.Equal(t, "output", cfg.OutputDir)
	assert.Equal(t, "assets", cfg.AssetsDir)
	assert.Equal(t, "weasyprint", cfg.Renderer)
	assert.Equal(t, 60*time.Second, cfg.RenderTimeout)
	assert.Equal(t, 500*time.Millisecond, cfg.SettleWindow)
	assert.Equal(t, 2, cfg.WorkerCount)
	assert.Equal(t, 100, cfg.MaxQueueSize)
	assert.Equal(t, time.Hour, cfg.JobTTL)
	assert.False(t, cfg.BuildOnStart)
	assert.False(t, cfg.ExportDOCX)
	assert.Empty(t, cfg.APIKey)
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, "127.0.0.1:3000", cfg.Addr())
}

func TestLoadFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "8081")
	t.Setenv("DOCUMENTS_DIR", "/srv/docs")
	t.Setenv("RENDERER", "chrome")
	t.Setenv("SETTLE_WINDOW", "1s")
	t.Setenv("BUILD_ON_START", "true")
	t.Setenv("API_KEY", "secret")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8081, cfg.Port)
	assert.Equal(t, "/srv/docs", cfg.DocumentsDir)
	assert.Equal(t, "chrome", cfg.Renderer)
	assert.Equal(t, time.Second, cfg.SettleWindow)
	assert.True(t, cfg.BuildOnStart)
	assert.Equal(t, "secret", cfg.APIKey)
	require.NoError(t, cfg.Validate())

	lvl, err := cfg.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, lvl)
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("WORKER_COUNT", "many")
	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	clearEnv(t)
	base, err := Load()
	require.NoError(t, err)

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port zero", func(c *Config) { c.Port = 0 }},
		{"port too large", func(c *Config) { c.Port = 70000 }},
		{"unknown renderer", func(c *Config) { c.Renderer = "prince" }},
		{"no documents dir", func(c *Config) { c.DocumentsDir = "" }},
		{"no output dir", func(c *Config) { c.OutputDir = "" }},
		{"no workers", func(c *Config) { c.WorkerCount = 0 }},
		{"no queue", func(c *Config) { c.MaxQueueSize = 0 }},
		{"no render timeout", func(c *Config) { c.RenderTimeout = 0 }},
		{"negative settle", func(c *Config) { c.SettleWindow = -time.Second }},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
