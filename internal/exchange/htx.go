package exchange

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/quveo/marketscan/internal/domain"
	"github.com/quveo/marketscan/internal/stream"
)

// HTX serves one-shot quotes from the HTX (formerly Huobi) merged ticker
// API. Its websocket feed is gzip-framed and is not wired here, so the
// adapter is fetch-only.
type HTX struct {
	rest   *restClient
	logger *slog.Logger
}

func NewHTX(logger *slog.Logger) *HTX {
	return &HTX{
		rest:   newRESTClient("https://api.huobi.pro"),
		logger: logger,
	}
}

func (h *HTX) Exchange() domain.Exchange { return domain.HTX }

func (h *HTX) SupportsStreaming() bool { return false }

func (h *HTX) NewStream(symbol string, policy stream.Policy) (*stream.Supervisor, error) {
	return nil, errNoStream(domain.HTX)
}

// FetchPrice reads the merged market detail; bid and ask arrive as
// [price, size] pairs.
func (h *HTX) FetchPrice(ctx context.Context, symbol string) (domain.Quote, error) {
	pair, err := formatSymbol(domain.HTX, symbol)
	if err != nil {
		return domain.Quote{}, err
	}
	var resp struct {
		Status string `json:"status"`
		ErrMsg string `json:"err-msg"`
		Tick   struct {
			Bid []float64 `json:"bid"`
			Ask []float64 `json:"ask"`
		} `json:"tick"`
	}
	if err := h.rest.getJSON(ctx, "/market/detail/merged?symbol="+pair, &resp); err != nil {
		return domain.Quote{}, fmt.Errorf("htx: fetch %s: %w", pair, err)
	}
	if resp.Status != "ok" {
		return domain.Quote{}, fmt.Errorf("htx: fetch %s: %s", pair, resp.ErrMsg)
	}
	if len(resp.Tick.Bid) < 1 || len(resp.Tick.Ask) < 1 {
		return domain.Quote{}, fmt.Errorf("htx: %w: %s", domain.ErrNotFound, pair)
	}
	canonical, err := NormalizeSymbol(symbol)
	if err != nil {
		return domain.Quote{}, err
	}
	var bidQty, askQty float64
	if len(resp.Tick.Bid) > 1 {
		bidQty = resp.Tick.Bid[1]
	}
	if len(resp.Tick.Ask) > 1 {
		askQty = resp.Tick.Ask[1]
	}
	return newQuote(domain.HTX, canonical, resp.Tick.Bid[0], resp.Tick.Ask[0], bidQty, askQty), nil
}
