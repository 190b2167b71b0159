package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/quveo/marketscan/internal/domain"
	"github.com/quveo/marketscan/internal/stream"
)

// Gateio serves quotes from the Gate.io v4 spot API.
type Gateio struct {
	rest   *restClient
	wsURL  string
	logger *slog.Logger
}

func NewGateio(logger *slog.Logger) *Gateio {
	return &Gateio{
		rest:   newRESTClient("https://api.gateio.ws"),
		wsURL:  "wss://api.gateio.ws/ws/v4/",
		logger: logger,
	}
}

func (g *Gateio) Exchange() domain.Exchange { return domain.Gateio }

func (g *Gateio) SupportsStreaming() bool { return true }

// FetchPrice reads the spot ticker list filtered to one pair. The ticker
// endpoint exposes no depth, so quantities stay zero.
func (g *Gateio) FetchPrice(ctx context.Context, symbol string) (domain.Quote, error) {
	pair, err := formatSymbol(domain.Gateio, symbol)
	if err != nil {
		return domain.Quote{}, err
	}
	var resp []struct {
		CurrencyPair string `json:"currency_pair"`
		HighestBid   string `json:"highest_bid"`
		LowestAsk    string `json:"lowest_ask"`
	}
	if err := g.rest.getJSON(ctx, "/api/v4/spot/tickers?currency_pair="+pair, &resp); err != nil {
		return domain.Quote{}, fmt.Errorf("gateio: fetch %s: %w", pair, err)
	}
	if len(resp) == 0 {
		return domain.Quote{}, fmt.Errorf("gateio: %w: %s", domain.ErrNotFound, pair)
	}
	return buildQuote(domain.Gateio, symbol, resp[0].HighestBid, resp[0].LowestAsk, "", "")
}

func (g *Gateio) NewStream(symbol string, policy stream.Policy) (*stream.Supervisor, error) {
	pair, err := formatSymbol(domain.Gateio, symbol)
	if err != nil {
		return nil, err
	}
	canonical, _ := NormalizeSymbol(symbol)

	connect := func(ctx context.Context) (stream.Conn, error) {
		sub := map[string]any{
			"time":    time.Now().Unix(),
			"channel": "spot.book_ticker",
			"event":   "subscribe",
			"payload": []string{pair},
		}
		return dialWS(ctx, g.wsURL, sub)
	}
	parse := func(raw []byte) (domain.Quote, bool, error) {
		var msg struct {
			Channel string `json:"channel"`
			Event   string `json:"event"`
			Result  struct {
				Bid    string `json:"b"`
				BidQty string `json:"B"`
				Ask    string `json:"a"`
				AskQty string `json:"A"`
			} `json:"result"`
		}
		if err := json.Unmarshal(raw, &msg); err != nil {
			return domain.Quote{}, false, err
		}
		if msg.Event != "update" || msg.Result.Bid == "" || msg.Result.Ask == "" {
			return domain.Quote{}, false, nil
		}
		q, err := buildQuote(domain.Gateio, canonical, msg.Result.Bid, msg.Result.Ask, msg.Result.BidQty, msg.Result.AskQty)
		if err != nil {
			return domain.Quote{}, false, err
		}
		return q, true, nil
	}
	return stream.NewSupervisor(domain.Gateio.String(), connect, parse, policy, g.logger), nil
}
