package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/quveo/marketscan/internal/domain"
	"github.com/quveo/marketscan/internal/stream"
)

// Upbit serves quotes from the Upbit API. Upbit writes markets quote-first
// ("USDT-BTC") and quotes top of book through its orderbook endpoints.
type Upbit struct {
	rest   *restClient
	wsURL  string
	logger *slog.Logger
}

func NewUpbit(logger *slog.Logger) *Upbit {
	return &Upbit{
		rest:   newRESTClient("https://api.upbit.com"),
		wsURL:  "wss://api.upbit.com/websocket/v1",
		logger: logger,
	}
}

func (u *Upbit) Exchange() domain.Exchange { return domain.Upbit }

func (u *Upbit) SupportsStreaming() bool { return true }

type upbitOrderbook struct {
	Market string `json:"market"`
	Code   string `json:"code"`
	Units  []struct {
		AskPrice float64 `json:"ask_price"`
		BidPrice float64 `json:"bid_price"`
		AskSize  float64 `json:"ask_size"`
		BidSize  float64 `json:"bid_size"`
	} `json:"orderbook_units"`
}

func (o upbitOrderbook) toQuote(symbol string) (domain.Quote, error) {
	if len(o.Units) == 0 {
		return domain.Quote{}, fmt.Errorf("upbit: empty orderbook for %s", symbol)
	}
	canonical, err := NormalizeSymbol(symbol)
	if err != nil {
		return domain.Quote{}, err
	}
	top := o.Units[0]
	return newQuote(domain.Upbit, canonical, top.BidPrice, top.AskPrice, top.BidSize, top.AskSize), nil
}

func (u *Upbit) FetchPrice(ctx context.Context, symbol string) (domain.Quote, error) {
	market, err := formatSymbol(domain.Upbit, symbol)
	if err != nil {
		return domain.Quote{}, err
	}
	var resp []upbitOrderbook
	if err := u.rest.getJSON(ctx, "/v1/orderbook?markets="+market, &resp); err != nil {
		return domain.Quote{}, fmt.Errorf("upbit: fetch %s: %w", market, err)
	}
	if len(resp) == 0 {
		return domain.Quote{}, fmt.Errorf("upbit: %w: %s", domain.ErrNotFound, market)
	}
	return resp[0].toQuote(symbol)
}

func (u *Upbit) NewStream(symbol string, policy stream.Policy) (*stream.Supervisor, error) {
	market, err := formatSymbol(domain.Upbit, symbol)
	if err != nil {
		return nil, err
	}
	canonical, _ := NormalizeSymbol(symbol)

	connect := func(ctx context.Context) (stream.Conn, error) {
		// Upbit subscriptions are an array: a ticket frame then type frames.
		sub := []map[string]any{
			{"ticket": uuid.NewString()},
			{"type": "orderbook", "codes": []string{market}},
		}
		return dialWS(ctx, u.wsURL, sub)
	}
	parse := func(raw []byte) (domain.Quote, bool, error) {
		var msg upbitOrderbook
		if err := json.Unmarshal(raw, &msg); err != nil {
			return domain.Quote{}, false, err
		}
		if len(msg.Units) == 0 {
			// status and error frames carry no orderbook units.
			return domain.Quote{}, false, nil
		}
		q, err := msg.toQuote(canonical)
		if err != nil {
			return domain.Quote{}, false, err
		}
		return q, true, nil
	}
	return stream.NewSupervisor(domain.Upbit.String(), connect, parse, policy, u.logger), nil
}
