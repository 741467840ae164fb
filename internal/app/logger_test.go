package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/longevity/pkg/logger"
)

func TestConfigureLogging(t *testing.T) {
	require.NoError(t, ConfigureLogging(LogConfig{Level: "debug"}))
	require.NoError(t, ConfigureLogging(LogConfig{}))
}

func TestConfigureLoggingWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "longevity.log")
	require.NoError(t, ConfigureLogging(LogConfig{Level: "info", File: path, MaxSizeMB: 1}))
	t.Cleanup(func() {
		_ = logger.Close()
		_ = logger.Init("info")
	})

	logger.WithModule("test").Info("hello")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), `"module":"test"`)
}
