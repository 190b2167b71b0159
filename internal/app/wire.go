package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/quveo/marketscan/internal/cache/redis"
	"github.com/quveo/marketscan/internal/config"
	"github.com/quveo/marketscan/internal/domain"
	"github.com/quveo/marketscan/internal/exchange"
	"github.com/quveo/marketscan/internal/fees"
	"github.com/quveo/marketscan/internal/notify"
	"github.com/quveo/marketscan/internal/scanner"
	"github.com/quveo/marketscan/internal/store/postgres"
	"github.com/quveo/marketscan/internal/token"
)

// Dependencies bundles everything the operating modes need. It is constructed
// by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// Adapters covers the configured centralized venues.
	Adapters []exchange.Adapter
	// Dex is the optional aggregator leg for one-shot scans; nil when
	// disabled.
	Dex *scanner.DexLeg
	// Fees resolves per-venue taker rates.
	Fees *fees.Table
	// Sink mirrors accepted live quotes; nil when Redis is disabled.
	Sink domain.QuoteSink
	// Opportunities persists detected opportunities; nil when Postgres is
	// disabled.
	Opportunities *postgres.OpportunityStore
	// Notifier pushes alerts; it is always non-nil but may have no senders.
	Notifier *notify.Notifier
}

// needsAdapters returns true for modes that quote centralized venues.
func needsAdapters(mode string) bool {
	return mode == "scan" || mode == "live"
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}
	mode := strings.ToLower(cfg.Mode)

	// --- Fee table ---
	overrides, err := cfg.FeeOverrides()
	if err != nil {
		return nil, nil, fmt.Errorf("wire: fees: %w", err)
	}
	deps.Fees = fees.NewTableWithOverrides(overrides)

	// --- Exchange adapters (only for modes that quote CEX venues) ---
	if needsAdapters(mode) {
		exchanges, err := cfg.ScanExchanges()
		if err != nil {
			return nil, nil, fmt.Errorf("wire: exchanges: %w", err)
		}
		for _, e := range exchanges {
			a, err := exchange.New(e, logger)
			if err != nil {
				return nil, nil, fmt.Errorf("wire: adapter %s: %w", e, err)
			}
			deps.Adapters = append(deps.Adapters, a)
		}
	}

	// --- DEX leg (one-shot scans only) ---
	if mode == "scan" && cfg.Dex.Enabled {
		leg, err := buildDexLeg(cfg, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("wire: dex: %w", err)
		}
		deps.Dex = leg
	}

	// --- Redis (live quote mirror) ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		ttl := time.Duration(cfg.Redis.QuoteTTLSec) * time.Second
		deps.Sink = redis.NewQuoteCache(redisClient, ttl)
	}

	// --- PostgreSQL (opportunity persistence) ---
	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}
		deps.Opportunities = postgres.NewOpportunityStore(pgClient.Pool())
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	cooldown := time.Duration(cfg.Notify.CooldownSec) * time.Second
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.MinSpreadPct, cooldown, logger)

	return deps, cleanup, nil
}

// buildDexLeg resolves the configured chain and token presets into a
// ready-to-quote aggregator leg.
func buildDexLeg(cfg *config.Config, logger *slog.Logger) (*scanner.DexLeg, error) {
	chain, err := token.ParseChain(cfg.Dex.Chain)
	if err != nil {
		return nil, err
	}
	base, ok := token.Preset(chain, cfg.Dex.BaseToken)
	if !ok {
		return nil, domain.NewConfigError("dex.base_token",
			fmt.Sprintf("no preset %q on chain %s", cfg.Dex.BaseToken, chain.Name()))
	}
	quote, ok := token.Preset(chain, cfg.Dex.QuoteToken)
	if !ok {
		return nil, domain.NewConfigError("dex.quote_token",
			fmt.Sprintf("no preset %q on chain %s", cfg.Dex.QuoteToken, chain.Name()))
	}
	return &scanner.DexLeg{
		Client:      exchange.NewKyberSwap(logger),
		Base:        base,
		Quote:       quote,
		QuoteAmount: cfg.Dex.QuoteAmount,
	}, nil
}
