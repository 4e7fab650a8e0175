package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	t.Parallel()

	cfg := Default()
	assert.Equal(t, "aotgraph.db", cfg.DB)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Zero(t, cfg.Workers)
	assert.False(t, cfg.Staging.KeepExtracted)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aotgraph.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
db: /var/lib/aotgraph/graph.db
staging:
  dir: /tmp/aot-staging
  keep_extracted: true
workers: 8
log:
  level: debug
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/aotgraph/graph.db", cfg.DB)
	assert.Equal(t, "/tmp/aot-staging", cfg.Staging.Dir)
	assert.True(t, cfg.Staging.KeepExtracted)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aotgraph.yaml")
	require.NoError(t, os.WriteFile(path, []byte("db: from-file.db\nworkers: 2\n"), 0o644))

	t.Setenv("AOTGRAPH_DB", "from-env.db")
	t.Setenv("AOTGRAPH_KEEP_EXTRACTED", "true")
	t.Setenv("AOTGRAPH_WORKERS", "16")
	t.Setenv("AOTGRAPH_LOG_LEVEL", "warn")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env.db", cfg.DB)
	assert.True(t, cfg.Staging.KeepExtracted)
	assert.Equal(t, 16, cfg.Workers)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoad_InvalidWorkersEnvIgnored(t *testing.T) {
	t.Setenv("AOTGRAPH_WORKERS", "lots")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Zero(t, cfg.Workers)
}
