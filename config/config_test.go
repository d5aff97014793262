package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfigFile(t, `
monitor:
  user_addresses: ["0x0000000000000000000000000000000000000001"]
  proxy_wallet: "0x0000000000000000000000000000000000000002"
  too_old_seconds: 30
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, defaultFetchIntervalSec, cfg.Monitor.FetchIntervalSec)
	assert.Equal(t, defaultDedupCacheTTLSec, cfg.Monitor.DedupCacheTTLSec)
	assert.Equal(t, defaultDedupCacheMaxEntries, cfg.Monitor.DedupCacheMaxEntries)
	assert.Equal(t, 4, cfg.Workers.Count)
	assert.Equal(t, "https://data-api.polymarket.com", cfg.API.DataAPIBase)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadRejectsInvalidAddress(t *testing.T) {
	path := writeConfigFile(t, `
monitor:
  user_addresses: ["not-an-address"]
  proxy_wallet: "0x0000000000000000000000000000000000000002"
  too_old_seconds: 30
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid address")
}

func TestLoadRequiresAggregationWindowWhenEnabled(t *testing.T) {
	path := writeConfigFile(t, `
monitor:
  user_addresses: ["0x0000000000000000000000000000000000000001"]
  proxy_wallet: "0x0000000000000000000000000000000000000002"
  too_old_seconds: 30
aggregation:
  enabled: true
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TRADE_AGGREGATION_WINDOW_SECONDS")
}

func TestLoadEnvOverridesYAML(t *testing.T) {
	path := writeConfigFile(t, `
monitor:
  user_addresses: ["0x0000000000000000000000000000000000000001"]
  proxy_wallet: "0x0000000000000000000000000000000000000002"
  too_old_seconds: 30
  fetch_interval_seconds: 5
`)

	t.Setenv("FETCH_INTERVAL", "9")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.Monitor.FetchIntervalSec)
}
