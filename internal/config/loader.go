package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies MARKETSCAN_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known MARKETSCAN_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Scan ──
	setStr(&cfg.Scan.Symbol, "MARKETSCAN_SCAN_SYMBOL")
	setStringSlice(&cfg.Scan.Exchanges, "MARKETSCAN_SCAN_EXCHANGES")
	setFloat64(&cfg.Scan.MinSpreadPct, "MARKETSCAN_SCAN_MIN_SPREAD_PCT")

	// ── Dex ──
	setBool(&cfg.Dex.Enabled, "MARKETSCAN_DEX_ENABLED")
	setStr(&cfg.Dex.Chain, "MARKETSCAN_DEX_CHAIN")
	setStr(&cfg.Dex.BaseToken, "MARKETSCAN_DEX_BASE_TOKEN")
	setStr(&cfg.Dex.QuoteToken, "MARKETSCAN_DEX_QUOTE_TOKEN")
	setFloat64(&cfg.Dex.QuoteAmount, "MARKETSCAN_DEX_QUOTE_AMOUNT")

	// ── Stream ──
	setInt(&cfg.Stream.ReconnectAttempts, "MARKETSCAN_STREAM_RECONNECT_ATTEMPTS")
	setInt(&cfg.Stream.ReconnectDelayMs, "MARKETSCAN_STREAM_RECONNECT_DELAY_MS")

	// ── Pool ──
	setStr(&cfg.Pool.RPCURL, "MARKETSCAN_POOL_RPC_URL")
	setStr(&cfg.Pool.Chain, "MARKETSCAN_POOL_CHAIN")
	setStr(&cfg.Pool.Address, "MARKETSCAN_POOL_ADDRESS")
	setStr(&cfg.Pool.Kind, "MARKETSCAN_POOL_KIND")
	setStr(&cfg.Pool.Mode, "MARKETSCAN_POOL_MODE")
	setBool(&cfg.Pool.Invert, "MARKETSCAN_POOL_INVERT")
	setStr(&cfg.Pool.Symbol, "MARKETSCAN_POOL_SYMBOL")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "MARKETSCAN_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "MARKETSCAN_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "MARKETSCAN_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "MARKETSCAN_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "MARKETSCAN_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "MARKETSCAN_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "MARKETSCAN_REDIS_TLS_ENABLED")
	setInt(&cfg.Redis.QuoteTTLSec, "MARKETSCAN_REDIS_QUOTE_TTL_SEC")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "MARKETSCAN_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "MARKETSCAN_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "MARKETSCAN_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "MARKETSCAN_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "MARKETSCAN_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "MARKETSCAN_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "MARKETSCAN_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "MARKETSCAN_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "MARKETSCAN_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "MARKETSCAN_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "MARKETSCAN_POSTGRES_RUN_MIGRATIONS")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "MARKETSCAN_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "MARKETSCAN_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "MARKETSCAN_NOTIFY_DISCORD_WEBHOOK_URL")
	setFloat64(&cfg.Notify.MinSpreadPct, "MARKETSCAN_NOTIFY_MIN_SPREAD_PCT")
	setInt(&cfg.Notify.CooldownSec, "MARKETSCAN_NOTIFY_COOLDOWN_SEC")

	// ── Top-level ──
	setStr(&cfg.Mode, "MARKETSCAN_MODE")
	setStr(&cfg.LogLevel, "MARKETSCAN_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
