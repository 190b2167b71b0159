// Package exchange implements one adapter per supported venue: a REST
// fetch for the current top-of-book quote and, where the venue offers a
// public websocket, a supervised stream of quote updates.
package exchange

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/quveo/marketscan/internal/domain"
	"github.com/quveo/marketscan/internal/stream"
)

// Adapter is one centralized exchange integration. Symbols are accepted in
// any common notation and normalized internally.
type Adapter interface {
	// Exchange identifies the venue this adapter talks to.
	Exchange() domain.Exchange

	// FetchPrice retrieves the current top-of-book quote for a symbol.
	FetchPrice(ctx context.Context, symbol string) (domain.Quote, error)

	// SupportsStreaming reports whether the venue has a usable public
	// websocket feed. When false, NewStream fails without connecting.
	SupportsStreaming() bool

	// NewStream builds an unstarted supervisor for one symbol's quote feed.
	// The caller drives it with Run and consumes Out. Returns
	// ErrStreamingUnsupported for fetch-only venues.
	NewStream(symbol string, policy stream.Policy) (*stream.Supervisor, error)
}

// New returns the adapter for a centralized exchange. Decentralized
// aggregators are not served here; KyberSwap quoting lives in its own client
// because it prices by token route, not by listed symbol.
func New(e domain.Exchange, logger *slog.Logger) (Adapter, error) {
	switch e {
	case domain.Binance:
		return NewBinance(logger), nil
	case domain.Bybit:
		return NewBybit(logger), nil
	case domain.MEXC:
		return NewMEXC(logger), nil
	case domain.OKX:
		return NewOKX(logger), nil
	case domain.Gateio:
		return NewGateio(logger), nil
	case domain.Kucoin:
		return NewKucoin(logger), nil
	case domain.Bitget:
		return NewBitget(logger), nil
	case domain.Btcturk:
		return NewBtcturk(logger), nil
	case domain.HTX:
		return NewHTX(logger), nil
	case domain.Coinbase:
		return NewCoinbase(logger), nil
	case domain.Kraken:
		return NewKraken(logger), nil
	case domain.Bitfinex:
		return NewBitfinex(logger), nil
	case domain.Upbit:
		return NewUpbit(logger), nil
	case domain.Cryptocom:
		return NewCryptocom(logger), nil
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedExchange, e)
}

// errNoStream is the uniform NewStream failure for fetch-only venues.
func errNoStream(e domain.Exchange) error {
	return fmt.Errorf("%s: %w", e, domain.ErrStreamingUnsupported)
}
