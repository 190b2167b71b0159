package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/quveo/marketscan/internal/domain"
	"github.com/quveo/marketscan/internal/stream"
)

// Coinbase serves quotes from the Coinbase Exchange market data API.
type Coinbase struct {
	rest   *restClient
	wsURL  string
	logger *slog.Logger
}

func NewCoinbase(logger *slog.Logger) *Coinbase {
	return &Coinbase{
		rest:   newRESTClient("https://api.exchange.coinbase.com"),
		wsURL:  "wss://ws-feed.exchange.coinbase.com",
		logger: logger,
	}
}

func (c *Coinbase) Exchange() domain.Exchange { return domain.Coinbase }

func (c *Coinbase) SupportsStreaming() bool { return true }

func (c *Coinbase) FetchPrice(ctx context.Context, symbol string) (domain.Quote, error) {
	pair, err := formatSymbol(domain.Coinbase, symbol)
	if err != nil {
		return domain.Quote{}, err
	}
	var resp struct {
		Bid string `json:"bid"`
		Ask string `json:"ask"`
	}
	if err := c.rest.getJSON(ctx, "/products/"+pair+"/ticker", &resp); err != nil {
		return domain.Quote{}, fmt.Errorf("coinbase: fetch %s: %w", pair, err)
	}
	return buildQuote(domain.Coinbase, symbol, resp.Bid, resp.Ask, "", "")
}

func (c *Coinbase) NewStream(symbol string, policy stream.Policy) (*stream.Supervisor, error) {
	pair, err := formatSymbol(domain.Coinbase, symbol)
	if err != nil {
		return nil, err
	}
	canonical, _ := NormalizeSymbol(symbol)

	connect := func(ctx context.Context) (stream.Conn, error) {
		sub := map[string]any{
			"type":        "subscribe",
			"product_ids": []string{pair},
			"channels":    []string{"ticker"},
		}
		return dialWS(ctx, c.wsURL, sub)
	}
	parse := func(raw []byte) (domain.Quote, bool, error) {
		var msg struct {
			Type        string `json:"type"`
			BestBid     string `json:"best_bid"`
			BestBidSize string `json:"best_bid_size"`
			BestAsk     string `json:"best_ask"`
			BestAskSize string `json:"best_ask_size"`
		}
		if err := json.Unmarshal(raw, &msg); err != nil {
			return domain.Quote{}, false, err
		}
		if msg.Type != "ticker" || msg.BestBid == "" || msg.BestAsk == "" {
			return domain.Quote{}, false, nil
		}
		q, err := buildQuote(domain.Coinbase, canonical, msg.BestBid, msg.BestAsk, msg.BestBidSize, msg.BestAskSize)
		if err != nil {
			return domain.Quote{}, false, err
		}
		return q, true, nil
	}
	return stream.NewSupervisor(domain.Coinbase.String(), connect, parse, policy, c.logger), nil
}
