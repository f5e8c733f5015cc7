package cmd

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigConstants(t *testing.T) {
	assert.Equal(t, "rads", configBaseName)
	assert.Equal(t, "rads.yaml", configFileName)
	assert.Equal(t, ".", configFolderPath)
	assert.Equal(t, "RADS", envPrefix)
	assert.Equal(t, "scan.parallel", parallelConfigKey)
	assert.Equal(t, "cache.disabled", noCacheConfigKey)
	assert.Equal(t, "scan.spill_dir", spillDirConfigKey)
	assert.Equal(t, ".rads-cache", defaultCacheDir)
	assert.Equal(t, "utf8", defaultCharset)
	assert.Equal(t, "indent", defaultPrefix)
	assert.Equal(t, "text", defaultOutputFormat)
}

func TestConfigVersionConstants(t *testing.T) {
	assert.Equal(t, "version", configVersionKey)
	assert.Equal(t, 1, currentConfigVersion)
}

func TestParseSlogLevel(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  slog.Level
	}{
		{"empty falls back", "", slog.LevelWarn},
		{"debug", "debug", slog.LevelDebug},
		{"info mixed case", " Info ", slog.LevelInfo},
		{"warning alias", "warning", slog.LevelWarn},
		{"error", "error", slog.LevelError},
		{"numeric", "-4", slog.LevelDebug},
		{"unknown falls back", "loud", slog.LevelWarn},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseSlogLevel(tt.value, slog.LevelWarn))
		})
	}
}

func TestLoadEnvFiles(t *testing.T) {
	dir := t.TempDir()
	local := filepath.Join(dir, ".env.local")
	shared := filepath.Join(dir, ".env")

	require.NoError(t, os.WriteFile(local, []byte("RADS_TEST_BUCKET=local\n"), 0o600))
	require.NoError(t, os.WriteFile(shared, []byte("RADS_TEST_BUCKET=shared\nRADS_TEST_ENDPOINT=minio:9000\n"), 0o600))

	t.Cleanup(func() {
		_ = os.Unsetenv("RADS_TEST_BUCKET")
		_ = os.Unsetenv("RADS_TEST_ENDPOINT")
	})

	loadEnvFiles(local, shared, filepath.Join(dir, "missing.env"))

	assert.Equal(t, "local", os.Getenv("RADS_TEST_BUCKET"))
	assert.Equal(t, "minio:9000", os.Getenv("RADS_TEST_ENDPOINT"))
}

func TestConfigureLogger_WritesToFile(t *testing.T) {
	original := slog.Default()
	t.Cleanup(func() { slog.SetDefault(original) })

	logPath := filepath.Join(t.TempDir(), "rads.log")

	configureLogger(logPath, true)
	slog.Debug("debug line", "key", "value")

	contents, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(contents), "debug line")
	assert.Contains(t, string(contents), "key=value")
}
