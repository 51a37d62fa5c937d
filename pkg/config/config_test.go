package config_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/vaultfs/pkg/config"
)

// writeConfigFile writes a temporary YAML config and returns its path.
func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfigFile(t, "")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, config.DefaultLogLevel, cfg.Logging.Level)
	assert.Equal(t, config.DefaultLogFormat, cfg.Logging.Format)
	assert.Equal(t, config.DefaultLogOutput, cfg.Logging.Output)
	assert.Equal(t, config.DefaultContentType, cfg.Content.Type)
	assert.Equal(t, config.DefaultDirectoryType, cfg.Directory.Type)
}

func TestLoadReadsYAML(t *testing.T) {
	path := writeConfigFile(t, `
logging:
  level: debug
  format: json
content:
  type: filesystem
  filesystem:
    path: /var/lib/vaultfs/chunks
directory:
  type: badger
  badger:
    path: /var/lib/vaultfs/directories
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "DEBUG", cfg.Logging.Level, "levels are normalized to uppercase")
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "filesystem", cfg.Content.Type)
	assert.Equal(t, "/var/lib/vaultfs/chunks", cfg.Content.Filesystem["path"])
	assert.Equal(t, "badger", cfg.Directory.Type)
}

func TestLoadEnvironmentOverridesFile(t *testing.T) {
	path := writeConfigFile(t, `
logging:
  level: info
`)

	t.Setenv("VAULTFS_LOGGING_LEVEL", "ERROR")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "ERROR", cfg.Logging.Level)
}

func TestLoadRejectsUnknownBackendType(t *testing.T) {
	path := writeConfigFile(t, `
content:
  type: carrier-pigeon
`)

	_, err := config.Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsFilesystemWithoutPath(t *testing.T) {
	path := writeConfigFile(t, `
content:
  type: filesystem
`)

	_, err := config.Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "path is required")
}

func TestCreateContentBackendMemory(t *testing.T) {
	backend, err := config.CreateContentBackend(context.Background(), &config.ContentConfig{Type: "memory"})
	require.NoError(t, err)
	assert.NotNil(t, backend)
}

func TestCreateContentBackendFilesystem(t *testing.T) {
	backend, err := config.CreateContentBackend(context.Background(), &config.ContentConfig{
		Type:       "filesystem",
		Filesystem: map[string]any{"path": t.TempDir()},
	})
	require.NoError(t, err)
	assert.NotNil(t, backend)
}

func TestCreateDirectoryBackendBadgerInMemory(t *testing.T) {
	backend, err := config.CreateDirectoryBackend(context.Background(), &config.DirectoryConfig{
		Type:   "badger",
		Badger: map[string]any{"in_memory": true},
	})
	require.NoError(t, err)
	require.NotNil(t, backend)

	type closer interface{ Close() error }
	c, ok := backend.(closer)
	require.True(t, ok, "badger backend must be closable")
	assert.NoError(t, c.Close())
}

func TestCreateDirectoryBackendBadgerRequiresPath(t *testing.T) {
	_, err := config.CreateDirectoryBackend(context.Background(), &config.DirectoryConfig{
		Type: "badger",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "path is required")
}
