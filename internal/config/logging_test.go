package config

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupLoggerStderrOnly(t *testing.T) {
	logger, cleanup := SetupLogger("", slog.LevelWarn)
	require.NotNil(t, logger)
	require.NoError(t, cleanup())

	assert.False(t, logger.Enabled(context.Background(), slog.LevelDebug))
	assert.True(t, logger.Enabled(context.Background(), slog.LevelError))
}

func TestSetupLoggerWritesJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "backend.log")

	logger, cleanup := SetupLogger(path, slog.LevelInfo)
	logger.Info("queue depth checked", "depth", 3)
	require.NoError(t, cleanup())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"queue depth checked"`)
	assert.Contains(t, string(data), `"depth":3`)
}

func TestSetupLoggerBadPathFallsBack(t *testing.T) {
	logger, cleanup := SetupLogger(filepath.Join(t.TempDir(), "missing", "backend.log"), slog.LevelInfo)
	require.NotNil(t, logger)
	require.NoError(t, cleanup())
}
