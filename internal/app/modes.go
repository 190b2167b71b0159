package app

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/quveo/marketscan/internal/domain"
	"github.com/quveo/marketscan/internal/exchange"
	"github.com/quveo/marketscan/internal/pool"
	"github.com/quveo/marketscan/internal/scanner"
	"github.com/quveo/marketscan/internal/stream"
	"github.com/quveo/marketscan/internal/token"
)

// ScanMode performs one fee-aware scan across the configured venues, writes
// the ranked opportunities to stdout as JSON, and exits.
func (a *App) ScanMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting scan mode",
		slog.String("symbol", a.cfg.Scan.Symbol),
		slog.Int("venues", len(deps.Adapters)),
	)

	sc := scanner.NewWithAdapters(deps.Adapters, scanner.Options{
		Fees:         deps.Fees,
		MinSpreadPct: a.cfg.Scan.MinSpreadPct,
		Dex:          deps.Dex,
	}, a.logger)

	opps, err := sc.ScanOpportunities(ctx, a.cfg.Scan.Symbol)
	if err != nil {
		return err
	}

	a.recordOpportunities(ctx, deps, opps)
	if len(opps) > 0 {
		if err := deps.Notifier.NotifyOpportunity(ctx, opps[0]); err != nil {
			a.logger.WarnContext(ctx, "notify failed", slog.String("error", err.Error()))
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(opps)
}

// LiveMode streams quotes from every websocket-capable venue, recomputes the
// ranked opportunity list on each accepted quote, and emits every list as one
// JSON line. It blocks until all streams exhaust their reconnect budgets or
// the context is cancelled.
func (a *App) LiveMode(ctx context.Context, deps *Dependencies) error {
	symbol, err := exchange.NormalizeSymbol(a.cfg.Scan.Symbol)
	if err != nil {
		return err
	}
	a.logger.InfoContext(ctx, "starting live mode",
		slog.String("symbol", symbol),
	)

	policy := stream.Policy{
		Attempts: a.cfg.Stream.ReconnectAttempts,
		Delay:    a.cfg.Stream.ReconnectDelay(),
	}
	mux, err := scanner.NewMultiplexer(deps.Adapters, symbol, policy, scanner.Options{
		Fees:         deps.Fees,
		MinSpreadPct: a.cfg.Scan.MinSpreadPct,
	}, deps.Sink, a.logger)
	if err != nil {
		return err
	}

	start := time.Now().UTC()
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return mux.Run(ctx)
	})
	g.Go(func() error {
		enc := json.NewEncoder(os.Stdout)
		for opps := range mux.Out() {
			if len(opps) == 0 {
				continue
			}
			if err := enc.Encode(opps); err != nil {
				return err
			}
			a.recordOpportunities(ctx, deps, opps[:1])
			if err := deps.Notifier.NotifyOpportunity(ctx, opps[0]); err != nil {
				a.logger.WarnContext(ctx, "notify failed", slog.String("error", err.Error()))
			}
		}
		return nil
	})
	err = g.Wait()
	a.logSessionSummary(deps, symbol, start)
	return err
}

// logSessionSummary reports what a live session recorded. It runs after the
// session context ended, so it queries under its own short deadline.
func (a *App) logSessionSummary(deps *Dependencies, symbol string, since time.Time) {
	if deps.Opportunities == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	recorded, err := deps.Opportunities.ListBySymbolSince(ctx, symbol, since)
	if err != nil {
		a.logger.Warn("session summary query failed", slog.String("error", err.Error()))
		return
	}
	var best float64
	for _, o := range recorded {
		if o.SpreadPct > best {
			best = o.SpreadPct
		}
	}
	a.logger.Info("live session summary",
		slog.String("symbol", symbol),
		slog.Int("recorded", len(recorded)),
		slog.Float64("best_spread_pct", best),
	)
}

// PoolMode watches one on-chain AMM pool and prints a derived price per
// trigger as one JSON line.
func (a *App) PoolMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting pool mode",
		slog.String("pool", a.cfg.Pool.Address),
		slog.String("kind", a.cfg.Pool.Kind),
	)

	cfg, err := a.poolConfig()
	if err != nil {
		return err
	}
	listener, err := pool.NewListener(cfg, a.logger)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return listener.Run(ctx)
	})
	g.Go(func() error {
		enc := json.NewEncoder(os.Stdout)
		for pq := range listener.Out() {
			if err := enc.Encode(pq); err != nil {
				return err
			}
		}
		return nil
	})
	return g.Wait()
}

// poolConfig translates the TOML pool section into the listener config.
func (a *App) poolConfig() (pool.Config, error) {
	chain, err := token.ParseChain(a.cfg.Pool.Chain)
	if err != nil {
		return pool.Config{}, err
	}
	mode, err := pool.ParseListenMode(a.cfg.Pool.Mode)
	if err != nil {
		return pool.Config{}, err
	}
	kind := domain.PoolV2
	if a.cfg.Pool.Kind == "v3" {
		kind = domain.PoolV3
	}
	direction := domain.Token1PerToken0
	if a.cfg.Pool.Invert {
		direction = domain.Token0PerToken1
	}
	return pool.Config{
		RPCURL:      a.cfg.Pool.RPCURL,
		ChainID:     uint64(chain),
		PoolAddress: a.cfg.Pool.Address,
		Kind:        kind,
		Mode:        mode,
		Direction:   direction,
		Symbol:      a.cfg.Pool.Symbol,
		Reconnect: stream.Policy{
			Attempts: a.cfg.Stream.ReconnectAttempts,
			Delay:    a.cfg.Stream.ReconnectDelay(),
		},
	}, nil
}

// recordOpportunities persists opportunities when a store is configured.
// Persistence failures are logged, not fatal: a down database must not stop
// the scan output.
func (a *App) recordOpportunities(ctx context.Context, deps *Dependencies, opps []domain.Opportunity) {
	if deps.Opportunities == nil {
		return
	}
	for _, opp := range opps {
		if err := deps.Opportunities.Record(ctx, opp); err != nil {
			a.logger.WarnContext(ctx, "record opportunity failed",
				slog.String("symbol", opp.Symbol),
				slog.String("error", err.Error()),
			)
		}
	}
}
