package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/quveo/marketscan/internal/domain"
	"github.com/quveo/marketscan/internal/stream"
)

// Binance serves quotes from the Binance spot API.
type Binance struct {
	rest   *restClient
	wsURL  string
	logger *slog.Logger
}

// NewBinance creates a Binance adapter against the public production
// endpoints.
func NewBinance(logger *slog.Logger) *Binance {
	return &Binance{
		rest:   newRESTClient("https://api.binance.com"),
		wsURL:  "wss://stream.binance.com:9443/ws",
		logger: logger,
	}
}

func (b *Binance) Exchange() domain.Exchange { return domain.Binance }

func (b *Binance) SupportsStreaming() bool { return true }

// FetchPrice reads /api/v3/ticker/bookTicker for the best bid and ask.
func (b *Binance) FetchPrice(ctx context.Context, symbol string) (domain.Quote, error) {
	pair, err := formatSymbol(domain.Binance, symbol)
	if err != nil {
		return domain.Quote{}, err
	}
	var resp struct {
		Symbol   string `json:"symbol"`
		BidPrice string `json:"bidPrice"`
		BidQty   string `json:"bidQty"`
		AskPrice string `json:"askPrice"`
		AskQty   string `json:"askQty"`
	}
	if err := b.rest.getJSON(ctx, "/api/v3/ticker/bookTicker?symbol="+pair, &resp); err != nil {
		return domain.Quote{}, fmt.Errorf("binance: fetch %s: %w", pair, err)
	}
	return buildQuote(domain.Binance, symbol, resp.BidPrice, resp.AskPrice, resp.BidQty, resp.AskQty)
}

// NewStream subscribes to the per-symbol bookTicker stream. The stream name
// is part of the URL, so no subscription frame is needed.
func (b *Binance) NewStream(symbol string, policy stream.Policy) (*stream.Supervisor, error) {
	pair, err := formatSymbol(domain.Binance, symbol)
	if err != nil {
		return nil, err
	}
	canonical, _ := NormalizeSymbol(symbol)
	url := fmt.Sprintf("%s/%s@bookTicker", b.wsURL, strings.ToLower(pair))

	connect := func(ctx context.Context) (stream.Conn, error) {
		return dialWS(ctx, url, nil)
	}
	parse := func(raw []byte) (domain.Quote, bool, error) {
		var msg struct {
			Bid    string `json:"b"`
			BidQty string `json:"B"`
			Ask    string `json:"a"`
			AskQty string `json:"A"`
		}
		if err := json.Unmarshal(raw, &msg); err != nil {
			return domain.Quote{}, false, err
		}
		if msg.Bid == "" || msg.Ask == "" {
			return domain.Quote{}, false, nil
		}
		q, err := buildQuote(domain.Binance, canonical, msg.Bid, msg.Ask, msg.BidQty, msg.AskQty)
		if err != nil {
			return domain.Quote{}, false, err
		}
		return q, true, nil
	}
	return stream.NewSupervisor(domain.Binance.String(), connect, parse, policy, b.logger), nil
}

// buildQuote parses the string price fields common to most venues.
func buildQuote(e domain.Exchange, symbol, bid, ask, bidQty, askQty string) (domain.Quote, error) {
	canonical, err := NormalizeSymbol(symbol)
	if err != nil {
		return domain.Quote{}, err
	}
	b, err := parseFloat(bid)
	if err != nil {
		return domain.Quote{}, err
	}
	a, err := parseFloat(ask)
	if err != nil {
		return domain.Quote{}, err
	}
	bq, err := parseFloat(bidQty)
	if err != nil {
		return domain.Quote{}, err
	}
	aq, err := parseFloat(askQty)
	if err != nil {
		return domain.Quote{}, err
	}
	return newQuote(e, canonical, b, a, bq, aq), nil
}
