package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	path := filepath.Join(t.TempDir(), "lens.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestInitConfig(t *testing.T) {
	path := writeConfig(t, `
source:
  table_endpoint: http://localhost:3000
  node_endpoint: http://localhost:1317
  chain_id: 8121
  bech32_prefix: manifest
  request_timeout: 15s
cache:
  dir: /tmp/lens-cache
  query_ttl: 10s
server:
  endpoint: localhost:8008
log:
  format: json
  level: debug
metrics:
  pull_endpoint: localhost:8009
`)

	cfg, err := InitConfig(path)
	require.NoError(t, err)
	require.Equal(t, "http://localhost:3000", cfg.Source.TableEndpoint)
	require.Equal(t, uint64(8121), cfg.Source.ChainID)
	require.Equal(t, "manifest", cfg.Source.Bech32Prefix)
	require.Equal(t, 15*time.Second, cfg.Source.RequestTimeout)
	require.Equal(t, 10*time.Second, cfg.Cache.QueryTTL)
	require.Equal(t, "localhost:8008", cfg.Server.Endpoint)
}

func TestInitConfigEnvOverride(t *testing.T) {
	path := writeConfig(t, `
source:
  table_endpoint: http://localhost:3000
  bech32_prefix: manifest
`)

	t.Setenv("LENS_SOURCE__TABLE_ENDPOINT", "http://override:3000")
	cfg, err := InitConfig(path)
	require.NoError(t, err)
	require.Equal(t, "http://override:3000", cfg.Source.TableEndpoint)
}

func TestInitConfigMissingSource(t *testing.T) {
	path := writeConfig(t, `
server:
  endpoint: localhost:8008
`)
	_, err := InitConfig(path)
	require.Error(t, err)
}

func TestValidateRejectsBadSections(t *testing.T) {
	cfg := &Config{Source: &SourceConfig{TableEndpoint: "http://x"}}
	require.Error(t, cfg.Validate()) // missing bech32 prefix

	cfg.Source.Bech32Prefix = "manifest"
	require.NoError(t, cfg.Validate())

	cfg.Cache = &CacheConfig{}
	require.Error(t, cfg.Validate()) // missing cache dir

	cfg.Cache = &CacheConfig{Dir: "/tmp/c", QueryTTL: -time.Second}
	require.Error(t, cfg.Validate()) // negative TTL

	cfg.Cache = &CacheConfig{Dir: "/tmp/c"}
	cfg.Log = &LogConfig{Format: "json", Level: "info"}
	cfg.Server = &ServerConfig{Endpoint: "localhost:8008"}
	cfg.Metrics = &MetricsConfig{PullEndpoint: "localhost:8009"}
	require.NoError(t, cfg.Validate())
}
