package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{
			name:   "unknown mode",
			mutate: func(c *Config) { c.Mode = "turbo" },
			want:   "unknown mode",
		},
		{
			name:   "unknown exchange",
			mutate: func(c *Config) { c.Scan.Exchanges = []string{"nasdaq"} },
			want:   "unknown exchange",
		},
		{
			name:   "fee out of range",
			mutate: func(c *Config) { c.Fees = map[string]float64{"binance": 1.5} },
			want:   "fees: rate",
		},
		{
			name:   "pool mode without rpc",
			mutate: func(c *Config) { c.Mode = "pool" },
			want:   "rpc_url is required",
		},
		{
			name:   "telegram half configured",
			mutate: func(c *Config) { c.Notify.TelegramToken = "tok" },
			want:   "must be set together",
		},
		{
			name:   "negative reconnect attempts",
			mutate: func(c *Config) { c.Stream.ReconnectAttempts = -1 },
			want:   "reconnect_attempts",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestLoadAppliesFileAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := `
mode = "live"

[scan]
symbol = "eth-usdt"
exchanges = ["binance", "okx"]

[fees]
binance = 0.001

[redis]
enabled = true
addr = "redis:6379"
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("MARKETSCAN_SCAN_SYMBOL", "BTCUSDT")
	t.Setenv("MARKETSCAN_REDIS_PASSWORD", "hunter2")
	t.Setenv("MARKETSCAN_STREAM_RECONNECT_ATTEMPTS", "9")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Mode != "live" {
		t.Errorf("mode = %q, want live", cfg.Mode)
	}
	if cfg.Scan.Symbol != "BTCUSDT" {
		t.Errorf("env must override file symbol, got %q", cfg.Scan.Symbol)
	}
	if len(cfg.Scan.Exchanges) != 2 {
		t.Errorf("exchanges = %v", cfg.Scan.Exchanges)
	}
	if cfg.Fees["binance"] != 0.001 {
		t.Errorf("fees = %v", cfg.Fees)
	}
	if !cfg.Redis.Enabled || cfg.Redis.Addr != "redis:6379" {
		t.Errorf("redis = %+v", cfg.Redis)
	}
	if cfg.Redis.Password != "hunter2" {
		t.Error("env redis password not applied")
	}
	if cfg.Stream.ReconnectAttempts != 9 {
		t.Errorf("reconnect attempts = %d", cfg.Stream.ReconnectAttempts)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("loaded config must validate: %v", err)
	}
}

func TestScanExchangesDefaultsToAllCex(t *testing.T) {
	cfg := Defaults()
	all, err := cfg.ScanExchanges()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) < 10 {
		t.Errorf("expected full CEX set, got %d venues", len(all))
	}
}

func TestRedactedConfigHidesSecrets(t *testing.T) {
	cfg := Defaults()
	cfg.Postgres.Password = "pgpass"
	cfg.Redis.Password = "rpass"
	cfg.Notify.TelegramToken = "tok"
	cfg.Notify.DiscordWebhookURL = "https://discord.example/hook"
	cfg.Pool.RPCURL = "wss://mainnet.example/v2/apikey"

	red := RedactedConfig(&cfg)
	for name, got := range map[string]string{
		"postgres password": red.Postgres.Password,
		"redis password":    red.Redis.Password,
		"telegram token":    red.Notify.TelegramToken,
		"discord webhook":   red.Notify.DiscordWebhookURL,
		"pool rpc url":      red.Pool.RPCURL,
	} {
		if got != "***" {
			t.Errorf("%s not redacted: %q", name, got)
		}
	}
	if cfg.Notify.TelegramToken != "tok" {
		t.Error("original config must not be mutated")
	}
}
