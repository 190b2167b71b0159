package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/quveo/marketscan/internal/domain"
	"github.com/quveo/marketscan/internal/stream"
)

// Bitget serves quotes from the Bitget v2 spot API.
type Bitget struct {
	rest   *restClient
	wsURL  string
	logger *slog.Logger
}

func NewBitget(logger *slog.Logger) *Bitget {
	return &Bitget{
		rest:   newRESTClient("https://api.bitget.com"),
		wsURL:  "wss://ws.bitget.com/v2/ws/public",
		logger: logger,
	}
}

func (b *Bitget) Exchange() domain.Exchange { return domain.Bitget }

func (b *Bitget) SupportsStreaming() bool { return true }

type bitgetTicker struct {
	BidPr string `json:"bidPr"`
	BidSz string `json:"bidSz"`
	AskPr string `json:"askPr"`
	AskSz string `json:"askSz"`
}

func (b *Bitget) FetchPrice(ctx context.Context, symbol string) (domain.Quote, error) {
	pair, err := formatSymbol(domain.Bitget, symbol)
	if err != nil {
		return domain.Quote{}, err
	}
	var resp struct {
		Code string         `json:"code"`
		Msg  string         `json:"msg"`
		Data []bitgetTicker `json:"data"`
	}
	if err := b.rest.getJSON(ctx, "/api/v2/spot/market/tickers?symbol="+pair, &resp); err != nil {
		return domain.Quote{}, fmt.Errorf("bitget: fetch %s: %w", pair, err)
	}
	if resp.Code != "00000" {
		return domain.Quote{}, fmt.Errorf("bitget: fetch %s: code %s: %s", pair, resp.Code, resp.Msg)
	}
	if len(resp.Data) == 0 {
		return domain.Quote{}, fmt.Errorf("bitget: %w: %s", domain.ErrNotFound, pair)
	}
	t := resp.Data[0]
	return buildQuote(domain.Bitget, symbol, t.BidPr, t.AskPr, t.BidSz, t.AskSz)
}

func (b *Bitget) NewStream(symbol string, policy stream.Policy) (*stream.Supervisor, error) {
	pair, err := formatSymbol(domain.Bitget, symbol)
	if err != nil {
		return nil, err
	}
	canonical, _ := NormalizeSymbol(symbol)

	connect := func(ctx context.Context) (stream.Conn, error) {
		sub := map[string]any{
			"op": "subscribe",
			"args": []map[string]string{{
				"instType": "SPOT",
				"channel":  "ticker",
				"instId":   pair,
			}},
		}
		return dialWS(ctx, b.wsURL, sub)
	}
	parse := func(raw []byte) (domain.Quote, bool, error) {
		// The server answers client pings with a plain "pong" text frame.
		if string(raw) == "pong" {
			return domain.Quote{}, false, nil
		}
		var msg struct {
			Event string         `json:"event"`
			Data  []bitgetTicker `json:"data"`
		}
		if err := json.Unmarshal(raw, &msg); err != nil {
			return domain.Quote{}, false, err
		}
		if msg.Event != "" || len(msg.Data) == 0 {
			return domain.Quote{}, false, nil
		}
		t := msg.Data[0]
		if t.BidPr == "" || t.AskPr == "" {
			return domain.Quote{}, false, nil
		}
		q, err := buildQuote(domain.Bitget, canonical, t.BidPr, t.AskPr, t.BidSz, t.AskSz)
		if err != nil {
			return domain.Quote{}, false, err
		}
		return q, true, nil
	}
	return stream.NewSupervisor(domain.Bitget.String(), connect, parse, policy, b.logger), nil
}
