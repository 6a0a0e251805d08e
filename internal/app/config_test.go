package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 8790, cfg.Server.Port)
	require.Equal(t, "info", cfg.Server.LogLevel)
	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Zero(t, cfg.Cache.MaxSizeGB)
	require.Zero(t, cfg.Cache.MaxCount)
	require.True(t, cfg.Maintenance.Enabled)
	require.Equal(t, "@hourly", cfg.Maintenance.ReconcileSchedule)
	require.True(t, cfg.Events.StreamEnabled)
	require.Equal(t, 500, cfg.Events.HistoryLimit)
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	content := []byte(`
server:
  port: 9000
  log_level: debug
cache:
  max_size_gb: 200
  max_count: 25
maintenance:
  enabled: false
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), content, 0o600))

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	require.Equal(t, 9000, cfg.Server.Port)
	require.Equal(t, "debug", cfg.Server.LogLevel)
	require.EqualValues(t, 200, cfg.Cache.MaxSizeGB)
	require.EqualValues(t, 25, cfg.Cache.MaxCount)
	require.False(t, cfg.Maintenance.Enabled)
}

func TestLoadConfigRejectsNegativeCeilings(t *testing.T) {
	dir := t.TempDir()
	content := []byte(`
cache:
  max_size_gb: -1
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), content, 0o600))

	_, err := LoadConfig(dir)
	require.Error(t, err)
}

func TestEngineConfigConversion(t *testing.T) {
	engine := CacheConfig{MaxSizeGB: 50, MaxCount: 10}.EngineConfig()
	require.EqualValues(t, 50, engine.MaxSizeGB)
	require.EqualValues(t, 10, engine.MaxCount)
}
