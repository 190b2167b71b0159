package exchange

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/quveo/marketscan/internal/domain"
	"github.com/quveo/marketscan/internal/stream"
)

// OKX serves one-shot quotes from the OKX v5 market API. It is fetch-only:
// live scans exclude it rather than failing.
type OKX struct {
	rest   *restClient
	logger *slog.Logger
}

func NewOKX(logger *slog.Logger) *OKX {
	return &OKX{
		rest:   newRESTClient("https://www.okx.com"),
		logger: logger,
	}
}

func (o *OKX) Exchange() domain.Exchange { return domain.OKX }

func (o *OKX) SupportsStreaming() bool { return false }

func (o *OKX) NewStream(symbol string, policy stream.Policy) (*stream.Supervisor, error) {
	return nil, errNoStream(domain.OKX)
}

func (o *OKX) FetchPrice(ctx context.Context, symbol string) (domain.Quote, error) {
	pair, err := formatSymbol(domain.OKX, symbol)
	if err != nil {
		return domain.Quote{}, err
	}
	var resp struct {
		Code string `json:"code"`
		Msg  string `json:"msg"`
		Data []struct {
			BidPx string `json:"bidPx"`
			BidSz string `json:"bidSz"`
			AskPx string `json:"askPx"`
			AskSz string `json:"askSz"`
		} `json:"data"`
	}
	if err := o.rest.getJSON(ctx, "/api/v5/market/ticker?instId="+pair, &resp); err != nil {
		return domain.Quote{}, fmt.Errorf("okx: fetch %s: %w", pair, err)
	}
	if resp.Code != "0" {
		return domain.Quote{}, fmt.Errorf("okx: fetch %s: code %s: %s", pair, resp.Code, resp.Msg)
	}
	if len(resp.Data) == 0 {
		return domain.Quote{}, fmt.Errorf("okx: %w: %s", domain.ErrNotFound, pair)
	}
	t := resp.Data[0]
	return buildQuote(domain.OKX, symbol, t.BidPx, t.AskPx, t.BidSz, t.AskSz)
}
