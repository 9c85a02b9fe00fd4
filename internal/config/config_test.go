package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "ws://localhost:8000/rpc", cfg.SurrealDBURL)
	assert.Equal(t, 78, cfg.FeatureWidth)
	assert.Equal(t, 2*time.Second, cfg.PollInterval)
	assert.Equal(t, 100, cfg.BatchSize)
	assert.Equal(t, 5, cfg.MaxAttempts)
	assert.Equal(t, 5000, cfg.MaxQueueDepth)
	assert.Equal(t, 30*time.Minute, cfg.IdempotencyWindow)
	assert.Equal(t, 10*time.Minute, cfg.DedupWindow)
	assert.Equal(t, 500, cfg.DriftWindowEvents)
	assert.Equal(t, 0.2, cfg.DriftAlertThreshold)
	assert.True(t, cfg.PipelineEnabled)
	assert.False(t, cfg.CanaryEnabled)
	assert.Equal(t, ":8080", cfg.ListenAddr)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("INGEST_MAX_QUEUE_DEPTH", "200")
	t.Setenv("INGEST_POLL_INTERVAL", "250ms")
	t.Setenv("INGEST_PIPELINE_ENABLED", "false")
	t.Setenv("DRIFT_ALERT_THRESHOLD", "0.35")
	t.Setenv("CENTERBACK_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 200, cfg.MaxQueueDepth)
	assert.Equal(t, 250*time.Millisecond, cfg.PollInterval)
	assert.False(t, cfg.PipelineEnabled)
	assert.Equal(t, 0.35, cfg.DriftAlertThreshold)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
}

func TestLoadYAMLOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"feature_width: 40\nbatch_size: 25\nwebhook_url: http://hooks.local/alerts\n",
	), 0o644))
	t.Setenv("CENTERBACK_CONFIG", path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 40, cfg.FeatureWidth)
	assert.Equal(t, 25, cfg.BatchSize)
	assert.Equal(t, "http://hooks.local/alerts", cfg.WebhookURL)
	// Unset keys keep their defaults.
	assert.Equal(t, 5000, cfg.MaxQueueDepth)
}

func TestLoadEnvWinsOverYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("batch_size: 25\n"), 0o644))
	t.Setenv("CENTERBACK_CONFIG", path)
	t.Setenv("INGEST_BATCH_SIZE", "60")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 60, cfg.BatchSize)
}

func TestLoadMissingConfigFile(t *testing.T) {
	t.Setenv("CENTERBACK_CONFIG", "/nonexistent/config.yaml")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config file")
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLogLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLogLevel("WARNING"))
	assert.Equal(t, slog.LevelError, parseLogLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLogLevel("garbage"))
}
