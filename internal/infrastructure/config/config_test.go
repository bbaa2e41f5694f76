package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetDefaults(t *testing.T) {
	cfg := &Config{}
	SetDefaults(cfg)

	assert.Equal(t, "postgres", cfg.Database.Type)
	assert.Equal(t, 5432, cfg.Database.Port)

	assert.Equal(t, "redis://localhost:6379/0", cfg.Streams.URL)
	assert.Equal(t, "task_events", cfg.Streams.Stream)
	assert.Equal(t, "api", cfg.Streams.Group)
	assert.Equal(t, 5000, cfg.Streams.BlockMS)
	assert.Equal(t, 10, cfg.Streams.Count)
	assert.Equal(t, 60000, cfg.Streams.ReclaimIdleMS)

	assert.Equal(t, 0.02, cfg.Events.StatusDelta)
	assert.Equal(t, 3600, cfg.Events.ResultTTLSeconds)

	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 64, cfg.Server.SessionBuffer)

	assert.Equal(t, "compute_pi,document_analysis", cfg.Worker.Queues)
	assert.Equal(t, "workers", cfg.Worker.Group)
	assert.Equal(t, 1, cfg.Worker.Concurrency)
	assert.Equal(t, "/data/books", cfg.Worker.DownloadDir)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestSetDefaultsKeepsExplicitValues(t *testing.T) {
	cfg := &Config{}
	cfg.Server.Port = 9000
	cfg.Events.StatusDelta = 0.1
	SetDefaults(cfg)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 0.1, cfg.Events.StatusDelta)
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9090
events:
  status_delta: 0.05
streams:
  stream: custom_events
`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 0.05, cfg.Events.StatusDelta)
	assert.Equal(t, "custom_events", cfg.Streams.Stream)

	// Unset values still fall back to defaults.
	assert.Equal(t, "api", cfg.Streams.Group)
}

func TestFlatEnvOverridesFile(t *testing.T) {
	t.Setenv("REDIS_URL", "redis://cache:6379/2")
	t.Setenv("STATUS_DELTA", "0.10")
	t.Setenv("WORKER_QUEUES", "compute_pi")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
streams:
  url: redis://file:6379/0
`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "redis://cache:6379/2", cfg.Streams.URL)
	assert.Equal(t, 0.10, cfg.Events.StatusDelta)
	assert.Equal(t, "compute_pi", cfg.Worker.Queues)
}

func TestMissingExplicitConfigFileErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 99999
`), 0o644))

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestLoadConfigOrDefaultFallsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 99999
`), 0o644))

	cfg := LoadConfigOrDefault(path)
	assert.Equal(t, 8000, cfg.Server.Port)
}
