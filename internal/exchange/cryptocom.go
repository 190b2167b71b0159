package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/quveo/marketscan/internal/domain"
	"github.com/quveo/marketscan/internal/stream"
)

// Cryptocom serves quotes from the Crypto.com Exchange v1 API. The websocket
// requires each public/heartbeat to be answered in-band or the server drops
// the session, so the connection wrapper answers them before the supervisor
// ever sees the frame.
type Cryptocom struct {
	rest   *restClient
	wsURL  string
	logger *slog.Logger
}

func NewCryptocom(logger *slog.Logger) *Cryptocom {
	return &Cryptocom{
		rest:   newRESTClient("https://api.crypto.com"),
		wsURL:  "wss://stream.crypto.com/exchange/v1/market",
		logger: logger,
	}
}

func (c *Cryptocom) Exchange() domain.Exchange { return domain.Cryptocom }

func (c *Cryptocom) SupportsStreaming() bool { return true }

type cryptocomTicker struct {
	Instrument string `json:"i"`
	Bid        string `json:"b"`
	Ask        string `json:"k"`
	BidSize    string `json:"bs"`
	AskSize    string `json:"ks"`
}

func (c *Cryptocom) FetchPrice(ctx context.Context, symbol string) (domain.Quote, error) {
	pair, err := formatSymbol(domain.Cryptocom, symbol)
	if err != nil {
		return domain.Quote{}, err
	}
	var resp struct {
		Code   int `json:"code"`
		Result struct {
			Data []cryptocomTicker `json:"data"`
		} `json:"result"`
	}
	if err := c.rest.getJSON(ctx, "/exchange/v1/public/get-tickers?instrument_name="+pair, &resp); err != nil {
		return domain.Quote{}, fmt.Errorf("cryptocom: fetch %s: %w", pair, err)
	}
	if resp.Code != 0 {
		return domain.Quote{}, fmt.Errorf("cryptocom: fetch %s: code %d", pair, resp.Code)
	}
	if len(resp.Result.Data) == 0 {
		return domain.Quote{}, fmt.Errorf("cryptocom: %w: %s", domain.ErrNotFound, pair)
	}
	t := resp.Result.Data[0]
	return buildQuote(domain.Cryptocom, symbol, t.Bid, t.Ask, t.BidSize, t.AskSize)
}

// heartbeatConn answers public/heartbeat frames transparently and passes
// everything else through.
type heartbeatConn struct {
	*wsConn
}

func (h *heartbeatConn) Next(ctx context.Context) ([]byte, error) {
	for {
		raw, err := h.wsConn.Next(ctx)
		if err != nil {
			return nil, err
		}
		var probe struct {
			ID     int64  `json:"id"`
			Method string `json:"method"`
		}
		if json.Unmarshal(raw, &probe) == nil && probe.Method == "public/heartbeat" {
			reply := map[string]any{"id": probe.ID, "method": "public/respond-heartbeat"}
			if err := h.WriteJSON(reply); err != nil {
				return nil, fmt.Errorf("respond heartbeat: %w", err)
			}
			continue
		}
		return raw, nil
	}
}

func (c *Cryptocom) NewStream(symbol string, policy stream.Policy) (*stream.Supervisor, error) {
	pair, err := formatSymbol(domain.Cryptocom, symbol)
	if err != nil {
		return nil, err
	}
	canonical, _ := NormalizeSymbol(symbol)

	connect := func(ctx context.Context) (stream.Conn, error) {
		sub := map[string]any{
			"id":     1,
			"method": "subscribe",
			"params": map[string]any{
				"channels": []string{"ticker." + pair},
			},
		}
		conn, err := dialWS(ctx, c.wsURL, sub)
		if err != nil {
			return nil, err
		}
		return &heartbeatConn{wsConn: conn}, nil
	}
	parse := func(raw []byte) (domain.Quote, bool, error) {
		var msg struct {
			Method string `json:"method"`
			Result struct {
				Channel string            `json:"channel"`
				Data    []cryptocomTicker `json:"data"`
			} `json:"result"`
		}
		if err := json.Unmarshal(raw, &msg); err != nil {
			return domain.Quote{}, false, err
		}
		if msg.Result.Channel != "ticker" || len(msg.Result.Data) == 0 {
			return domain.Quote{}, false, nil
		}
		t := msg.Result.Data[0]
		if t.Bid == "" || t.Ask == "" {
			return domain.Quote{}, false, nil
		}
		q, err := buildQuote(domain.Cryptocom, canonical, t.Bid, t.Ask, t.BidSize, t.AskSize)
		if err != nil {
			return domain.Quote{}, false, err
		}
		return q, true, nil
	}
	return stream.NewSupervisor(domain.Cryptocom.String(), connect, parse, policy, c.logger), nil
}
