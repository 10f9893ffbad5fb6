// Package config enables config file parsing.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"

	"github.com/manifest-network/lens/log"
)

// Config contains the CLI configuration.
type Config struct {
	Source  *SourceConfig  `koanf:"source"`
	Cache   *CacheConfig   `koanf:"cache"`
	Server  *ServerConfig  `koanf:"server"`
	Log     *LogConfig     `koanf:"log"`
	Metrics *MetricsConfig `koanf:"metrics"`
}

// Validate performs config validation.
func (cfg *Config) Validate() error {
	if cfg.Source == nil {
		return fmt.Errorf("source not configured")
	}
	if err := cfg.Source.Validate(); err != nil {
		return fmt.Errorf("source: %w", err)
	}
	if cfg.Cache != nil {
		if err := cfg.Cache.Validate(); err != nil {
			return fmt.Errorf("cache: %w", err)
		}
	}
	if cfg.Server != nil {
		if err := cfg.Server.Validate(); err != nil {
			return fmt.Errorf("server: %w", err)
		}
	}
	if cfg.Log != nil {
		if err := cfg.Log.Validate(); err != nil {
			return fmt.Errorf("log: %w", err)
		}
	}
	if cfg.Metrics != nil {
		if err := cfg.Metrics.Validate(); err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
	}

	return nil
}

// SourceConfig describes the upstream endpoints lens reads from.
type SourceConfig struct {
	// TableEndpoint is the base URL of the PostgREST-style table service,
	// e.g. "http://localhost:3000". Tables are read as {TableEndpoint}/{table}
	// and server-side aggregate functions as {TableEndpoint}/rpc/{fn}.
	TableEndpoint string `koanf:"table_endpoint"`

	// NodeEndpoint is the base URL of a chain node's REST query interface.
	// Optional; used only for live IBC channel/client-state queries. When
	// empty, denom resolution degrades to the static and inferred tiers.
	NodeEndpoint string `koanf:"node_endpoint"`

	// ChainID is the EVM chain id expected in raw signed transactions.
	ChainID uint64 `koanf:"chain_id"`

	// Bech32Prefix is the account address prefix of the chain (e.g. "manifest").
	Bech32Prefix string `koanf:"bech32_prefix"`

	// RequestTimeout bounds individual upstream HTTP requests. Zero means
	// the transport default.
	RequestTimeout time.Duration `koanf:"request_timeout"`
}

// Validate validates the source configuration.
func (cfg *SourceConfig) Validate() error {
	if cfg.TableEndpoint == "" {
		return fmt.Errorf("table_endpoint must be specified")
	}
	if cfg.Bech32Prefix == "" {
		return fmt.Errorf("bech32_prefix must be specified")
	}
	return nil
}

// CacheConfig holds the configuration for the local caches.
type CacheConfig struct {
	// Dir is the directory for the persistent caches (resolved IBC denoms,
	// channel metadata).
	Dir string `koanf:"dir"`

	// QueryTTL is the expiry window for the in-memory read-through cache
	// on single-entity lookups. Defaults to 10s.
	QueryTTL time.Duration `koanf:"query_ttl"`
}

// Validate validates the cache configuration.
func (cfg *CacheConfig) Validate() error {
	if cfg.Dir == "" {
		return fmt.Errorf("dir must be specified")
	}
	if cfg.QueryTTL < 0 {
		return fmt.Errorf("query_ttl must not be negative")
	}
	return nil
}

// ServerConfig contains the API server configuration.
type ServerConfig struct {
	// Endpoint is the service endpoint from which to serve the API.
	Endpoint string `koanf:"endpoint"`
}

// Validate validates the server configuration.
func (cfg *ServerConfig) Validate() error {
	if cfg.Endpoint == "" {
		return fmt.Errorf("endpoint must be specified")
	}
	return nil
}

// LogConfig contains the logging configuration.
type LogConfig struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
	File   string `koanf:"file"`
}

// Validate validates the logging configuration.
func (cfg *LogConfig) Validate() error {
	var format log.Format
	if err := format.Set(cfg.Format); err != nil {
		return err
	}
	var level log.Level
	return level.Set(cfg.Level)
}

// MetricsConfig contains the metrics configuration.
type MetricsConfig struct {
	// PullEndpoint is the endpoint from which Prometheus scrapes metrics.
	PullEndpoint string `koanf:"pull_endpoint"`
}

// Validate validates the metrics configuration.
func (cfg *MetricsConfig) Validate() error {
	if cfg.PullEndpoint == "" {
		return fmt.Errorf("pull_endpoint must be specified")
	}
	return nil
}

// InitConfig initializes configuration from file.
func InitConfig(f string) (*Config, error) {
	var config Config
	k := koanf.New(".")

	// Load configuration from the yaml config.
	if err := k.Load(file.Provider(f), yaml.Parser()); err != nil {
		return nil, err
	}

	// Load environment variables and merge into the loaded config.
	// `LENS_SOURCE__TABLE_ENDPOINT=...` overrides `source.table_endpoint`.
	if err := k.Load(env.Provider("LENS_", ".", func(s string) string {
		// `__` is used as a hierarchy delimiter.
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, "LENS_")), "__", ".")
	}), nil); err != nil {
		return nil, err
	}

	// Unmarshal into config.
	if err := k.Unmarshal("", &config); err != nil {
		return nil, err
	}

	// Validate config.
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}
