package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full configuration for the copy-trading pipeline.
type Config struct {
	Monitor     MonitorConfig     `yaml:"monitor"`
	Aggregation AggregationConfig `yaml:"aggregation"`
	Paper       PaperConfig       `yaml:"paper"`
	Workers     WorkersConfig     `yaml:"workers"`
	API         APIConfig         `yaml:"api"`
	Log         LogConfig         `yaml:"log"`
}

// MonitorConfig controls the leader-activity poller (C4).
type MonitorConfig struct {
	UserAddresses        []string `yaml:"user_addresses"`
	ProxyWallet          string   `yaml:"proxy_wallet"`
	FetchIntervalSec     int      `yaml:"fetch_interval_seconds"`
	TooOldSeconds        int      `yaml:"too_old_seconds"`
	DedupCacheTTLSec     int      `yaml:"dedup_cache_ttl_seconds"`
	DedupCacheMaxEntries int      `yaml:"dedup_cache_max_entries"`
}

// AggregationConfig controls the sub-threshold aggregation buffer (C5).
type AggregationConfig struct {
	Enabled       bool    `yaml:"enabled"`
	WindowSeconds int     `yaml:"window_seconds"`
	CheckInterval int     `yaml:"check_interval_ms"`
	MinTotalUSD   float64 `yaml:"min_total_usd"`
}

// PaperConfig controls the paper-trading simulator (C7).
type PaperConfig struct {
	Enabled    bool    `yaml:"enabled"`
	BalanceUSD float64 `yaml:"balance_usd"`
}

// WorkersConfig controls the size of the executor pool (Tier B).
type WorkersConfig struct {
	Count      int `yaml:"count"`
	RetryLimit int `yaml:"retry_limit"`
}

// APIConfig contains the base URL used to poll Polymarket's data API.
type APIConfig struct {
	DataAPIBase string `yaml:"data_api_base"`
}

// LogConfig controls the format and level of logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

const (
	defaultDedupCacheTTLSec     = 60
	defaultDedupCacheMaxEntries = 5000
	defaultFetchIntervalSec     = 2
	defaultAggCheckIntervalMs   = 500
	// minTotalUSD is the exchange's minimum order size, tied to the
	// exchange rather than to operator preference.
	minTotalUSD = 1.00
)

// MinTotalUSDOrDefault returns the aggregation-candidate threshold:
// MinTotalUSD when positive, else the exchange minimum of 1.00.
func (c AggregationConfig) MinTotalUSDOrDefault() float64 {
	if c.MinTotalUSD > 0 {
		return c.MinTotalUSD
	}
	return minTotalUSD
}

// FetchInterval returns the monitor poll cadence as a time.Duration.
func (c MonitorConfig) FetchInterval() time.Duration {
	return time.Duration(c.FetchIntervalSec) * time.Second
}

// DedupTTL returns the dedup cache TTL as a time.Duration, floored at 1s.
func (c MonitorConfig) DedupTTL() time.Duration {
	sec := c.DedupCacheTTLSec
	if sec < 1 {
		sec = 1
	}
	return time.Duration(sec) * time.Second
}

// TooOld returns the activity max-age window as a time.Duration.
func (c MonitorConfig) TooOld() time.Duration {
	return time.Duration(c.TooOldSeconds) * time.Second
}

// Window returns the aggregation window as a time.Duration.
func (c AggregationConfig) Window() time.Duration {
	return time.Duration(c.WindowSeconds) * time.Second
}

// CheckIntervalDuration returns the flusher tick interval as a time.Duration.
func (c AggregationConfig) CheckIntervalDuration() time.Duration {
	ms := c.CheckInterval
	if ms <= 0 {
		ms = defaultAggCheckIntervalMs
	}
	return time.Duration(ms) * time.Millisecond
}

// Load reads the pipeline configuration from the YAML file at path,
// applies a .env file (if present) and environment-variable overrides,
// then validates the required fields.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	return &cfg, nil
}

// applyEnvOverrides overwrites YAML values with environment variables,
// following the keys recognised per the configuration table.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("USER_ADDRESSES"); v != "" {
		cfg.Monitor.UserAddresses = splitAddrs(v)
	}
	if v := os.Getenv("PROXY_WALLET"); v != "" {
		cfg.Monitor.ProxyWallet = v
	}
	if v := os.Getenv("FETCH_INTERVAL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Monitor.FetchIntervalSec = n
		}
	}
	if v := os.Getenv("TOO_OLD_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Monitor.TooOldSeconds = n
		}
	}
	if v := os.Getenv("DEDUP_CACHE_TTL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Monitor.DedupCacheTTLSec = n
		}
	}
	if v := os.Getenv("TRADE_AGGREGATION_ENABLED"); v != "" {
		cfg.Aggregation.Enabled = parseBool(v)
	}
	if v := os.Getenv("TRADE_AGGREGATION_WINDOW_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Aggregation.WindowSeconds = n
		}
	}
	if v := os.Getenv("PAPER_TRADING_ENABLED"); v != "" {
		cfg.Paper.Enabled = parseBool(v)
	}
	if v := os.Getenv("PAPER_TRADING_BALANCE_USD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Paper.BalanceUSD = f
		}
	}
	if v := os.Getenv("RETRY_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Workers.RetryLimit = n
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

// setDefaults fills in sensible defaults for anything left unset.
func setDefaults(cfg *Config) {
	if cfg.Monitor.FetchIntervalSec <= 0 {
		cfg.Monitor.FetchIntervalSec = defaultFetchIntervalSec
	}
	if cfg.Monitor.DedupCacheTTLSec <= 0 {
		cfg.Monitor.DedupCacheTTLSec = defaultDedupCacheTTLSec
	}
	if cfg.Monitor.DedupCacheMaxEntries <= 0 {
		cfg.Monitor.DedupCacheMaxEntries = defaultDedupCacheMaxEntries
	}
	if cfg.Workers.Count <= 0 {
		cfg.Workers.Count = 4
	}
	if cfg.API.DataAPIBase == "" {
		cfg.API.DataAPIBase = "https://data-api.polymarket.com"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

// validate checks the required fields and rejects malformed addresses up
// front — an address typo should fail fast at startup, not silently drop
// activities at runtime.
func validate(cfg *Config) error {
	if len(cfg.Monitor.UserAddresses) == 0 {
		return fmt.Errorf("USER_ADDRESSES is required")
	}
	if cfg.Monitor.ProxyWallet == "" {
		return fmt.Errorf("PROXY_WALLET is required")
	}
	if !common.IsHexAddress(cfg.Monitor.ProxyWallet) {
		return fmt.Errorf("PROXY_WALLET %q is not a valid address", cfg.Monitor.ProxyWallet)
	}
	for _, addr := range cfg.Monitor.UserAddresses {
		if !common.IsHexAddress(addr) {
			return fmt.Errorf("USER_ADDRESSES contains invalid address %q", addr)
		}
	}
	if cfg.Monitor.TooOldSeconds <= 0 {
		return fmt.Errorf("TOO_OLD_SECONDS is required")
	}
	if cfg.Aggregation.Enabled && cfg.Aggregation.WindowSeconds <= 0 {
		return fmt.Errorf("TRADE_AGGREGATION_WINDOW_SECONDS is required when aggregation is enabled")
	}
	if cfg.Paper.Enabled && cfg.Paper.BalanceUSD <= 0 {
		return fmt.Errorf("PAPER_TRADING_BALANCE_USD is required when paper trading is enabled")
	}
	return nil
}

func splitAddrs(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseBool(v string) bool {
	b, err := strconv.ParseBool(v)
	return err == nil && b
}
