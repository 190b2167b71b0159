// Package config defines the top-level configuration for the market scanner
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/quveo/marketscan/internal/domain"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by MARKETSCAN_* environment
// variables.
type Config struct {
	Scan     ScanConfig         `toml:"scan"`
	Dex      DexConfig          `toml:"dex"`
	Stream   StreamConfig       `toml:"stream"`
	Pool     PoolConfig         `toml:"pool"`
	Fees     map[string]float64 `toml:"fees"`
	Redis    RedisConfig        `toml:"redis"`
	Postgres PostgresConfig     `toml:"postgres"`
	Notify   NotifyConfig       `toml:"notify"`
	Mode     string             `toml:"mode"`
	LogLevel string             `toml:"log_level"`
}

// ScanConfig selects what to scan and how to rank results.
type ScanConfig struct {
	// Symbol in any common notation; normalized internally.
	Symbol string `toml:"symbol"`
	// Exchanges restricts the venue set; empty means all supported.
	Exchanges []string `toml:"exchanges"`
	// MinSpreadPct drops opportunities below this spread percentage.
	MinSpreadPct float64 `toml:"min_spread_pct"`
}

// DexConfig adds a KyberSwap aggregator leg to one-shot scans.
type DexConfig struct {
	Enabled bool   `toml:"enabled"`
	Chain   string `toml:"chain"`
	// BaseToken and QuoteToken name preset tokens on the chain (e.g. "WETH",
	// "USDT").
	BaseToken  string `toml:"base_token"`
	QuoteToken string `toml:"quote_token"`
	// QuoteAmount sizes the probe trade in quote-token units.
	QuoteAmount float64 `toml:"quote_amount"`
}

// StreamConfig bounds websocket reconnect behaviour for live scans.
type StreamConfig struct {
	// ReconnectAttempts is the number of attempts allowed after the first
	// failure; 0 means no reconnects.
	ReconnectAttempts int `toml:"reconnect_attempts"`
	// ReconnectDelayMs is the fixed delay between attempts; 0 means 1000.
	ReconnectDelayMs int `toml:"reconnect_delay_ms"`
}

// PoolConfig describes the on-chain pool watched in pool mode.
type PoolConfig struct {
	RPCURL  string `toml:"rpc_url"`
	Chain   string `toml:"chain"`
	Address string `toml:"address"`
	// Kind is "v2" (reserve pricing) or "v3" (sqrtPriceX96 pricing).
	Kind string `toml:"kind"`
	// Mode is "every_block" or "on_swap_event".
	Mode string `toml:"mode"`
	// Invert quotes token0-per-token1 instead of the canonical direction.
	Invert bool   `toml:"invert"`
	Symbol string `toml:"symbol"`
}

// RedisConfig holds Redis connection parameters for the live quote mirror.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
	// QuoteTTLSec expires markets that stop updating; 0 keeps them forever.
	QuoteTTLSec int `toml:"quote_ttl_sec"`
}

// PostgresConfig holds PostgreSQL connection parameters for opportunity
// persistence.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// NotifyConfig holds alert channel credentials and throttling.
type NotifyConfig struct {
	TelegramToken     string  `toml:"telegram_token"`
	TelegramChatID    string  `toml:"telegram_chat_id"`
	DiscordWebhookURL string  `toml:"discord_webhook_url"`
	MinSpreadPct      float64 `toml:"min_spread_pct"`
	CooldownSec       int     `toml:"cooldown_sec"`
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Scan: ScanConfig{
			Symbol:       "BTCUSDT",
			MinSpreadPct: 0,
		},
		Dex: DexConfig{
			Chain:       "ethereum",
			BaseToken:   "WETH",
			QuoteToken:  "USDT",
			QuoteAmount: 1000,
		},
		Stream: StreamConfig{
			ReconnectAttempts: 5,
			ReconnectDelayMs:  1000,
		},
		Pool: PoolConfig{
			Chain: "ethereum",
			Kind:  "v2",
			Mode:  "every_block",
		},
		Redis: RedisConfig{
			Addr:        "localhost:6379",
			PoolSize:    20,
			MaxRetries:  3,
			QuoteTTLSec: 300,
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "marketscan",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Notify: NotifyConfig{
			MinSpreadPct: 0.1,
			CooldownSec:  60,
		},
		Mode:     "scan",
		LogLevel: "info",
	}
}

// ReconnectDelay returns the stream delay as a duration.
func (c StreamConfig) ReconnectDelay() time.Duration {
	return time.Duration(c.ReconnectDelayMs) * time.Millisecond
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"scan": true,
	"live": true,
	"pool": true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	mode := strings.ToLower(c.Mode)
	if !validModes[mode] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: scan, live, pool)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if mode == "scan" || mode == "live" {
		if strings.TrimSpace(c.Scan.Symbol) == "" {
			errs = append(errs, "scan: symbol must not be empty")
		}
	}
	for _, name := range c.Scan.Exchanges {
		if _, err := domain.ParseExchange(name); err != nil {
			errs = append(errs, fmt.Sprintf("scan: unknown exchange %q", name))
		}
	}
	if c.Scan.MinSpreadPct < 0 {
		errs = append(errs, "scan: min_spread_pct must be >= 0")
	}

	for name, rate := range c.Fees {
		if _, err := domain.ParseExchange(name); err != nil {
			errs = append(errs, fmt.Sprintf("fees: unknown exchange %q", name))
		}
		if rate < 0 || rate >= 1 {
			errs = append(errs, fmt.Sprintf("fees: rate for %q must be in [0, 1), got %v", name, rate))
		}
	}

	if c.Dex.Enabled {
		if c.Dex.QuoteAmount <= 0 {
			errs = append(errs, "dex: quote_amount must be > 0")
		}
		if c.Dex.BaseToken == "" || c.Dex.QuoteToken == "" {
			errs = append(errs, "dex: base_token and quote_token must be set")
		}
	}

	if c.Stream.ReconnectAttempts < 0 {
		errs = append(errs, "stream: reconnect_attempts must be >= 0")
	}
	if c.Stream.ReconnectDelayMs < 0 {
		errs = append(errs, "stream: reconnect_delay_ms must be >= 0")
	}

	if mode == "pool" {
		if c.Pool.RPCURL == "" {
			errs = append(errs, "pool: rpc_url is required for pool mode")
		}
		if c.Pool.Address == "" {
			errs = append(errs, "pool: address is required for pool mode")
		}
		if c.Pool.Kind != "v2" && c.Pool.Kind != "v3" {
			errs = append(errs, fmt.Sprintf("pool: kind must be v2 or v3, got %q", c.Pool.Kind))
		}
	}

	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 {
			errs = append(errs, "postgres: pool_min_conns must be >= 0")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	if (c.Notify.TelegramToken != "") != (c.Notify.TelegramChatID != "") {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}
	if c.Notify.MinSpreadPct < 0 {
		errs = append(errs, "notify: min_spread_pct must be >= 0")
	}
	if c.Notify.CooldownSec < 0 {
		errs = append(errs, "notify: cooldown_sec must be >= 0")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ScanExchanges resolves the configured exchange names. An empty list means
// every supported centralized exchange.
func (c *Config) ScanExchanges() ([]domain.Exchange, error) {
	if len(c.Scan.Exchanges) == 0 {
		return domain.CexExchanges(), nil
	}
	out := make([]domain.Exchange, 0, len(c.Scan.Exchanges))
	for _, name := range c.Scan.Exchanges {
		e, err := domain.ParseExchange(name)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// FeeOverrides resolves the configured per-exchange fee overrides.
func (c *Config) FeeOverrides() (map[domain.Exchange]float64, error) {
	if len(c.Fees) == 0 {
		return nil, nil
	}
	out := make(map[domain.Exchange]float64, len(c.Fees))
	for name, rate := range c.Fees {
		e, err := domain.ParseExchange(name)
		if err != nil {
			return nil, err
		}
		out[e] = rate
	}
	return out, nil
}
