package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/quveo/marketscan/internal/domain"
	"github.com/quveo/marketscan/internal/exchange"
	"github.com/quveo/marketscan/internal/fees"
	"github.com/quveo/marketscan/internal/token"
)

// DexLeg configures an optional decentralized price source included in
// one-shot scans alongside the centralized venues.
type DexLeg struct {
	Client      *exchange.KyberSwap
	Base        token.Token
	Quote       token.Token
	QuoteAmount float64
}

// Options configures a Scanner.
type Options struct {
	// Exchanges to query. Empty means every supported centralized exchange.
	Exchanges []domain.Exchange

	// Fees resolves taker rates; nil means compiled-in defaults.
	Fees *fees.Table

	// MinSpreadPct drops opportunities below this spread percentage.
	// Zero keeps every positive spread.
	MinSpreadPct float64

	// Dex, when set, adds an aggregator quote to one-shot scans.
	Dex *DexLeg
}

// Scanner fans price fetches out across venues and computes ranked
// opportunities from the results.
type Scanner struct {
	adapters     []exchange.Adapter
	dex          *DexLeg
	table        *fees.Table
	minSpreadPct float64
	logger       *slog.Logger
}

// New builds a Scanner with real adapters for the configured exchanges.
func New(opts Options, logger *slog.Logger) (*Scanner, error) {
	exchanges := opts.Exchanges
	if len(exchanges) == 0 {
		exchanges = domain.CexExchanges()
	}
	adapters := make([]exchange.Adapter, 0, len(exchanges))
	for _, e := range exchanges {
		a, err := exchange.New(e, logger)
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, a)
	}
	return NewWithAdapters(adapters, opts, logger), nil
}

// NewWithAdapters builds a Scanner around caller-supplied adapters.
func NewWithAdapters(adapters []exchange.Adapter, opts Options, logger *slog.Logger) *Scanner {
	table := opts.Fees
	if table == nil {
		table = fees.NewTable()
	}
	return &Scanner{
		adapters:     adapters,
		dex:          opts.Dex,
		table:        table,
		minSpreadPct: opts.MinSpreadPct,
		logger:       logger.With(slog.String("component", "scanner")),
	}
}

// GetPrice fetches the current quote for a symbol from one configured venue.
func (s *Scanner) GetPrice(ctx context.Context, e domain.Exchange, symbol string) (domain.Quote, error) {
	for _, a := range s.adapters {
		if a.Exchange() == e {
			return a.FetchPrice(ctx, symbol)
		}
	}
	return domain.Quote{}, fmt.Errorf("%w: %s not configured", domain.ErrUnsupportedExchange, e)
}

// FetchQuotes queries every configured venue concurrently and returns the
// quotes that arrived. Individual venue failures are logged and skipped; the
// scan only fails when the context is cancelled.
func (s *Scanner) FetchQuotes(ctx context.Context, symbol string) ([]domain.Quote, error) {
	var mu sync.Mutex
	quotes := make([]domain.Quote, 0, len(s.adapters)+1)

	g, gctx := errgroup.WithContext(ctx)
	for _, a := range s.adapters {
		g.Go(func() error {
			q, err := a.FetchPrice(gctx, symbol)
			if err != nil {
				s.logger.Warn("price fetch failed",
					slog.String("exchange", a.Exchange().String()),
					slog.String("symbol", symbol),
					slog.String("error", err.Error()),
				)
				return nil
			}
			mu.Lock()
			quotes = append(quotes, q)
			mu.Unlock()
			return nil
		})
	}
	if s.dex != nil {
		g.Go(func() error {
			q, err := s.dex.Client.FetchPrice(gctx, s.dex.Base, s.dex.Quote, s.dex.QuoteAmount)
			if err != nil {
				s.logger.Warn("dex quote failed",
					slog.String("exchange", domain.KyberSwap.String()),
					slog.String("error", err.Error()),
				)
				return nil
			}
			mu.Lock()
			quotes = append(quotes, q)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return quotes, nil
}

// ScanOpportunities performs one fetch-and-compute pass for a symbol.
func (s *Scanner) ScanOpportunities(ctx context.Context, symbol string) ([]domain.Opportunity, error) {
	canonical, err := exchange.NormalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}
	quotes, err := s.FetchQuotes(ctx, canonical)
	if err != nil {
		return nil, err
	}
	opps, err := Compute(canonical, quotes, s.table, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	return filterMinSpread(opps, s.minSpreadPct), nil
}
