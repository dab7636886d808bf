package app

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prajwal-br31/bks-backend/internal/accounting/mappings"
	_ "github.com/prajwal-br31/bks-backend/testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("ACCOUNT_RESOLUTION", "")
	t.Setenv("LOG_LEVEL", "")
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.AppAddr)
	assert.Equal(t, 10*time.Minute, cfg.ReportCacheTTL)
	assert.Equal(t, "0 2 * * *", cfg.IntegrityCron)
	policy, err := cfg.ResolutionPolicy()
	require.NoError(t, err)
	assert.Equal(t, mappings.PolicyMappedThenSearch, policy)
	assert.False(t, cfg.IsProduction())
	lvl, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, lvl)
}

func TestLoadConfigReadsEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("ACCOUNT_RESOLUTION=mapped\nREPORT_CACHE_TTL=90s\nAPP_ENV=production\n"), 0o600))
	// Process environment wins over the file.
	t.Setenv("REPORT_CACHE_TTL", "5m")
	t.Cleanup(func() {
		_ = os.Unsetenv("ACCOUNT_RESOLUTION")
		_ = os.Unsetenv("APP_ENV")
	})

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, cfg.ReportCacheTTL)
	assert.True(t, cfg.IsProduction())
	policy, err := cfg.ResolutionPolicy()
	require.NoError(t, err)
	assert.Equal(t, mappings.PolicyMapped, policy)
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	cases := map[string][2]string{
		"policy":     {"ACCOUNT_RESOLUTION", "guess"},
		"log level":  {"LOG_LEVEL", "chatty"},
		"rate limit": {"RATE_LIMIT_PER_MINUTE", "-1"},
		"duration":   {"REPORT_CACHE_TTL", "soon"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv(kv[0], kv[1])
			_, err := LoadConfig(filepath.Join(t.TempDir(), "none.env"))
			assert.Error(t, err)
		})
	}
}

func TestNewLoggerHonoursFormatAndLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&Config{LogFormat: "json", LogLevel: "warn"}, &buf)
	logger.Info("hidden")
	logger.Warn("shown", slog.String("invoice_id", "x"))
	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)
	assert.Contains(t, out, `"invoice_id":"x"`)
}

func TestInTestMode(t *testing.T) {
	RefreshTestMode()
	assert.True(t, InTestMode())
}
