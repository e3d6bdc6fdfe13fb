package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.AppAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "Asia/Manila", cfg.ReportTimezone)
	assert.Equal(t, 200000, cfg.ExportChunkRows)
	assert.False(t, cfg.ExportChunkingDisabled)
	assert.Equal(t, 3, cfg.FetchAttempts)
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("REPORT_TZ", "UTC")
	t.Setenv("EXPORT_CHUNK_ROWS", "500")
	t.Setenv("EXPORT_CHUNKING_DISABLED", "true")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "UTC", cfg.ReportTimezone)
	assert.Equal(t, 500, cfg.ExportChunkRows)
	assert.True(t, cfg.ExportChunkingDisabled)
}

func TestTestModeRefresh(t *testing.T) {
	t.Setenv(testModeEnv, "1")
	RefreshTestMode()
	assert.True(t, InTestMode())

	t.Setenv(testModeEnv, "")
	RefreshTestMode()
	assert.False(t, InTestMode())
}
