package exchange

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/quveo/marketscan/internal/domain"
	"github.com/quveo/marketscan/internal/stream"
)

// Btcturk serves one-shot quotes from the BTCTurk v2 ticker API. Fetch-only.
type Btcturk struct {
	rest   *restClient
	logger *slog.Logger
}

func NewBtcturk(logger *slog.Logger) *Btcturk {
	return &Btcturk{
		rest:   newRESTClient("https://api.btcturk.com"),
		logger: logger,
	}
}

func (b *Btcturk) Exchange() domain.Exchange { return domain.Btcturk }

func (b *Btcturk) SupportsStreaming() bool { return false }

func (b *Btcturk) NewStream(symbol string, policy stream.Policy) (*stream.Supervisor, error) {
	return nil, errNoStream(domain.Btcturk)
}

func (b *Btcturk) FetchPrice(ctx context.Context, symbol string) (domain.Quote, error) {
	pair, err := formatSymbol(domain.Btcturk, symbol)
	if err != nil {
		return domain.Quote{}, err
	}
	var resp struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
		Data    []struct {
			Pair string  `json:"pair"`
			Bid  float64 `json:"bid"`
			Ask  float64 `json:"ask"`
		} `json:"data"`
	}
	if err := b.rest.getJSON(ctx, "/api/v2/ticker?pairSymbol="+pair, &resp); err != nil {
		return domain.Quote{}, fmt.Errorf("btcturk: fetch %s: %w", pair, err)
	}
	if !resp.Success {
		return domain.Quote{}, fmt.Errorf("btcturk: fetch %s: %s", pair, resp.Message)
	}
	if len(resp.Data) == 0 {
		return domain.Quote{}, fmt.Errorf("btcturk: %w: %s", domain.ErrNotFound, pair)
	}
	canonical, err := NormalizeSymbol(symbol)
	if err != nil {
		return domain.Quote{}, err
	}
	t := resp.Data[0]
	return newQuote(domain.Btcturk, canonical, t.Bid, t.Ask, 0, 0), nil
}
