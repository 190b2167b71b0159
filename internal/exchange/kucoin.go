package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/quveo/marketscan/internal/domain"
	"github.com/quveo/marketscan/internal/stream"
)

// Kucoin serves quotes from the KuCoin spot API. The websocket endpoint is
// not fixed: each connection first obtains a token and server address from
// the bullet-public handshake.
type Kucoin struct {
	rest   *restClient
	logger *slog.Logger
}

func NewKucoin(logger *slog.Logger) *Kucoin {
	return &Kucoin{
		rest:   newRESTClient("https://api.kucoin.com"),
		logger: logger,
	}
}

func (k *Kucoin) Exchange() domain.Exchange { return domain.Kucoin }

func (k *Kucoin) SupportsStreaming() bool { return true }

func (k *Kucoin) FetchPrice(ctx context.Context, symbol string) (domain.Quote, error) {
	pair, err := formatSymbol(domain.Kucoin, symbol)
	if err != nil {
		return domain.Quote{}, err
	}
	var resp struct {
		Code string `json:"code"`
		Data struct {
			BestBid     string `json:"bestBid"`
			BestBidSize string `json:"bestBidSize"`
			BestAsk     string `json:"bestAsk"`
			BestAskSize string `json:"bestAskSize"`
		} `json:"data"`
	}
	if err := k.rest.getJSON(ctx, "/api/v1/market/orderbook/level1?symbol="+pair, &resp); err != nil {
		return domain.Quote{}, fmt.Errorf("kucoin: fetch %s: %w", pair, err)
	}
	if resp.Code != "200000" {
		return domain.Quote{}, fmt.Errorf("kucoin: fetch %s: code %s", pair, resp.Code)
	}
	if resp.Data.BestBid == "" && resp.Data.BestAsk == "" {
		return domain.Quote{}, fmt.Errorf("kucoin: %w: %s", domain.ErrNotFound, pair)
	}
	return buildQuote(domain.Kucoin, symbol, resp.Data.BestBid, resp.Data.BestAsk, resp.Data.BestBidSize, resp.Data.BestAskSize)
}

// bulletEndpoint performs the bullet-public handshake and returns the
// websocket URL with the session token attached.
func (k *Kucoin) bulletEndpoint(ctx context.Context) (string, error) {
	var resp struct {
		Code string `json:"code"`
		Data struct {
			Token           string `json:"token"`
			InstanceServers []struct {
				Endpoint string `json:"endpoint"`
			} `json:"instanceServers"`
		} `json:"data"`
	}
	if err := k.rest.postJSON(ctx, "/api/v1/bullet-public", &resp); err != nil {
		return "", fmt.Errorf("bullet-public: %w", err)
	}
	if resp.Code != "200000" || len(resp.Data.InstanceServers) == 0 {
		return "", fmt.Errorf("bullet-public: code %s, %d servers", resp.Code, len(resp.Data.InstanceServers))
	}
	endpoint := strings.TrimRight(resp.Data.InstanceServers[0].Endpoint, "/")
	return endpoint + "?token=" + resp.Data.Token, nil
}

func (k *Kucoin) NewStream(symbol string, policy stream.Policy) (*stream.Supervisor, error) {
	pair, err := formatSymbol(domain.Kucoin, symbol)
	if err != nil {
		return nil, err
	}
	canonical, _ := NormalizeSymbol(symbol)

	connect := func(ctx context.Context) (stream.Conn, error) {
		url, err := k.bulletEndpoint(ctx)
		if err != nil {
			return nil, err
		}
		conn, err := dialWS(ctx, url, nil)
		if err != nil {
			return nil, err
		}
		sub := map[string]any{
			"id":       time.Now().UnixNano(),
			"type":     "subscribe",
			"topic":    "/market/ticker:" + pair,
			"response": true,
		}
		if err := conn.WriteJSON(sub); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("subscribe: %w", err)
		}
		return conn, nil
	}
	parse := func(raw []byte) (domain.Quote, bool, error) {
		var msg struct {
			Type string `json:"type"`
			Data struct {
				BestBid     string `json:"bestBid"`
				BestBidSize string `json:"bestBidSize"`
				BestAsk     string `json:"bestAsk"`
				BestAskSize string `json:"bestAskSize"`
			} `json:"data"`
		}
		if err := json.Unmarshal(raw, &msg); err != nil {
			return domain.Quote{}, false, err
		}
		// welcome, ack and pong frames are protocol chatter.
		if msg.Type != "message" || msg.Data.BestBid == "" || msg.Data.BestAsk == "" {
			return domain.Quote{}, false, nil
		}
		q, err := buildQuote(domain.Kucoin, canonical, msg.Data.BestBid, msg.Data.BestAsk, msg.Data.BestBidSize, msg.Data.BestAskSize)
		if err != nil {
			return domain.Quote{}, false, err
		}
		return q, true, nil
	}
	return stream.NewSupervisor(domain.Kucoin.String(), connect, parse, policy, k.logger), nil
}
