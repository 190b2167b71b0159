package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/quveo/marketscan/internal/domain"
	"github.com/quveo/marketscan/internal/stream"
)

// MEXC serves quotes from the MEXC spot API, which mirrors the Binance REST
// surface but uses its own websocket protocol.
type MEXC struct {
	rest   *restClient
	wsURL  string
	logger *slog.Logger
}

func NewMEXC(logger *slog.Logger) *MEXC {
	return &MEXC{
		rest:   newRESTClient("https://api.mexc.com"),
		wsURL:  "wss://wbs.mexc.com/ws",
		logger: logger,
	}
}

func (m *MEXC) Exchange() domain.Exchange { return domain.MEXC }

func (m *MEXC) SupportsStreaming() bool { return true }

func (m *MEXC) FetchPrice(ctx context.Context, symbol string) (domain.Quote, error) {
	pair, err := formatSymbol(domain.MEXC, symbol)
	if err != nil {
		return domain.Quote{}, err
	}
	var resp struct {
		BidPrice string `json:"bidPrice"`
		BidQty   string `json:"bidQty"`
		AskPrice string `json:"askPrice"`
		AskQty   string `json:"askQty"`
	}
	if err := m.rest.getJSON(ctx, "/api/v3/ticker/bookTicker?symbol="+pair, &resp); err != nil {
		return domain.Quote{}, fmt.Errorf("mexc: fetch %s: %w", pair, err)
	}
	return buildQuote(domain.MEXC, symbol, resp.BidPrice, resp.AskPrice, resp.BidQty, resp.AskQty)
}

func (m *MEXC) NewStream(symbol string, policy stream.Policy) (*stream.Supervisor, error) {
	pair, err := formatSymbol(domain.MEXC, symbol)
	if err != nil {
		return nil, err
	}
	canonical, _ := NormalizeSymbol(symbol)
	topic := "spot@public.bookTicker.v3.api@" + pair

	connect := func(ctx context.Context) (stream.Conn, error) {
		sub := map[string]any{
			"method": "SUBSCRIPTION",
			"params": []string{topic},
		}
		return dialWS(ctx, m.wsURL, sub)
	}
	parse := func(raw []byte) (domain.Quote, bool, error) {
		var msg struct {
			Channel string `json:"c"`
			Data    struct {
				Ask    string `json:"a"`
				AskQty string `json:"A"`
				Bid    string `json:"b"`
				BidQty string `json:"B"`
			} `json:"d"`
		}
		if err := json.Unmarshal(raw, &msg); err != nil {
			return domain.Quote{}, false, err
		}
		if msg.Channel == "" || msg.Data.Bid == "" || msg.Data.Ask == "" {
			// Subscription acks carry "id"/"code" instead of a channel.
			return domain.Quote{}, false, nil
		}
		q, err := buildQuote(domain.MEXC, canonical, msg.Data.Bid, msg.Data.Ask, msg.Data.BidQty, msg.Data.AskQty)
		if err != nil {
			return domain.Quote{}, false, err
		}
		return q, true, nil
	}
	return stream.NewSupervisor(domain.MEXC.String(), connect, parse, policy, m.logger), nil
}
