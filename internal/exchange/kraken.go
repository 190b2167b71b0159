package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/quveo/marketscan/internal/domain"
	"github.com/quveo/marketscan/internal/stream"
)

// Kraken serves quotes from the Kraken public API. The REST API keys its
// result by Kraken's own asset-pair code, which rarely matches the requested
// pair verbatim, so the single result entry is taken regardless of key. The
// v2 websocket uses slash-separated symbols and standard asset names.
type Kraken struct {
	rest   *restClient
	wsURL  string
	logger *slog.Logger
}

func NewKraken(logger *slog.Logger) *Kraken {
	return &Kraken{
		rest:   newRESTClient("https://api.kraken.com"),
		wsURL:  "wss://ws.kraken.com/v2",
		logger: logger,
	}
}

func (k *Kraken) Exchange() domain.Exchange { return domain.Kraken }

func (k *Kraken) SupportsStreaming() bool { return true }

func (k *Kraken) FetchPrice(ctx context.Context, symbol string) (domain.Quote, error) {
	pair, err := formatSymbol(domain.Kraken, symbol)
	if err != nil {
		return domain.Quote{}, err
	}
	var resp struct {
		Error  []string `json:"error"`
		Result map[string]struct {
			Ask []string `json:"a"` // [price, whole lot volume, lot volume]
			Bid []string `json:"b"`
		} `json:"result"`
	}
	if err := k.rest.getJSON(ctx, "/0/public/Ticker?pair="+pair, &resp); err != nil {
		return domain.Quote{}, fmt.Errorf("kraken: fetch %s: %w", pair, err)
	}
	if len(resp.Error) > 0 {
		return domain.Quote{}, fmt.Errorf("kraken: fetch %s: %v", pair, resp.Error)
	}
	for _, t := range resp.Result {
		if len(t.Bid) < 1 || len(t.Ask) < 1 {
			break
		}
		var bidQty, askQty string
		if len(t.Bid) > 2 {
			bidQty = t.Bid[2]
		}
		if len(t.Ask) > 2 {
			askQty = t.Ask[2]
		}
		return buildQuote(domain.Kraken, symbol, t.Bid[0], t.Ask[0], bidQty, askQty)
	}
	return domain.Quote{}, fmt.Errorf("kraken: %w: %s", domain.ErrNotFound, pair)
}

func (k *Kraken) NewStream(symbol string, policy stream.Policy) (*stream.Supervisor, error) {
	base, quote, err := SplitSymbol(symbol)
	if err != nil {
		return nil, err
	}
	canonical, _ := NormalizeSymbol(symbol)
	wsSymbol := base + "/" + quote

	connect := func(ctx context.Context) (stream.Conn, error) {
		sub := map[string]any{
			"method": "subscribe",
			"params": map[string]any{
				"channel": "ticker",
				"symbol":  []string{wsSymbol},
			},
		}
		return dialWS(ctx, k.wsURL, sub)
	}
	parse := func(raw []byte) (domain.Quote, bool, error) {
		var msg struct {
			Channel string `json:"channel"`
			Data    []struct {
				Bid    float64 `json:"bid"`
				BidQty float64 `json:"bid_qty"`
				Ask    float64 `json:"ask"`
				AskQty float64 `json:"ask_qty"`
			} `json:"data"`
		}
		if err := json.Unmarshal(raw, &msg); err != nil {
			return domain.Quote{}, false, err
		}
		// status, heartbeat and method-ack frames are not ticker data.
		if msg.Channel != "ticker" || len(msg.Data) == 0 {
			return domain.Quote{}, false, nil
		}
		t := msg.Data[0]
		return newQuote(domain.Kraken, canonical, t.Bid, t.Ask, t.BidQty, t.AskQty), true, nil
	}
	return stream.NewSupervisor(domain.Kraken.String(), connect, parse, policy, k.logger), nil
}
