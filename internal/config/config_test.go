package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
server:
  port: 9090
  host: "127.0.0.1"

store:
  url: "mongodb://db:27017"
  database: "crm_test"

importer:
  batch_size: 250
  heartbeat_interval_s: 15

search:
  weekly_goal_per_finder: 25
`
	require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0644))

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, "mongodb://db:27017", cfg.Store.URL)
	assert.Equal(t, "crm_test", cfg.Store.Database)
	assert.Equal(t, 250, cfg.Importer.BatchSize)
	assert.Equal(t, 15*time.Second, cfg.Importer.HeartbeatInterval())
	assert.Equal(t, 25, cfg.Search.WeeklyGoalPerFinder)
}

func TestLoadDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("server:\n  port: 8081\n"), 0644))

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, 500, cfg.Importer.BatchSize)
	assert.Equal(t, 30*time.Second, cfg.Importer.HeartbeatInterval())
	assert.Equal(t, 300*time.Second, cfg.Importer.OrphanTimeout())
	assert.Equal(t, 300*time.Second, cfg.Importer.LockTTL())
	assert.Equal(t, 3, cfg.Importer.MaxAttempts)
	assert.Equal(t, 60*time.Second, cfg.Importer.Backoff(1))
	assert.Equal(t, 300*time.Second, cfg.Importer.Backoff(2))
	assert.Equal(t, 50, cfg.Search.WeeklyGoalPerFinder)
	assert.Equal(t, 150, cfg.Search.WeeklyGoalTotal)
	assert.Equal(t, 90, cfg.Retention.ConflictTTLDays)
}

func TestLoadFromEnvOverrides(t *testing.T) {
	t.Setenv("STORE_URL", "mongodb://envhost:27017")
	t.Setenv("STORE_DATABASE", "env_db")
	t.Setenv("SERVER_PORT", "7070")

	cfg, err := LoadFromEnv("")
	require.NoError(t, err)

	assert.Equal(t, "mongodb://envhost:27017", cfg.Store.URL)
	assert.Equal(t, "env_db", cfg.Store.Database)
	assert.Equal(t, 7070, cfg.Server.Port)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	assert.Error(t, err)
}
