package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/quveo/marketscan/internal/domain"
	"github.com/quveo/marketscan/internal/stream"
)

// Bybit serves quotes from the Bybit v5 spot API.
type Bybit struct {
	rest   *restClient
	wsURL  string
	logger *slog.Logger
}

func NewBybit(logger *slog.Logger) *Bybit {
	return &Bybit{
		rest:   newRESTClient("https://api.bybit.com"),
		wsURL:  "wss://stream.bybit.com/v5/public/spot",
		logger: logger,
	}
}

func (b *Bybit) Exchange() domain.Exchange { return domain.Bybit }

func (b *Bybit) SupportsStreaming() bool { return true }

type bybitTicker struct {
	Symbol   string `json:"symbol"`
	Bid1     string `json:"bid1Price"`
	Bid1Size string `json:"bid1Size"`
	Ask1     string `json:"ask1Price"`
	Ask1Size string `json:"ask1Size"`
}

func (b *Bybit) FetchPrice(ctx context.Context, symbol string) (domain.Quote, error) {
	pair, err := formatSymbol(domain.Bybit, symbol)
	if err != nil {
		return domain.Quote{}, err
	}
	var resp struct {
		RetCode int    `json:"retCode"`
		RetMsg  string `json:"retMsg"`
		Result  struct {
			List []bybitTicker `json:"list"`
		} `json:"result"`
	}
	if err := b.rest.getJSON(ctx, "/v5/market/tickers?category=spot&symbol="+pair, &resp); err != nil {
		return domain.Quote{}, fmt.Errorf("bybit: fetch %s: %w", pair, err)
	}
	if resp.RetCode != 0 {
		return domain.Quote{}, fmt.Errorf("bybit: fetch %s: code %d: %s", pair, resp.RetCode, resp.RetMsg)
	}
	if len(resp.Result.List) == 0 {
		return domain.Quote{}, fmt.Errorf("bybit: %w: %s", domain.ErrNotFound, pair)
	}
	t := resp.Result.List[0]
	return buildQuote(domain.Bybit, symbol, t.Bid1, t.Ask1, t.Bid1Size, t.Ask1Size)
}

// NewStream subscribes to the tickers topic. Bybit sends a snapshot followed
// by deltas that may omit unchanged fields, so the parser keeps the last seen
// book and patches it per message.
func (b *Bybit) NewStream(symbol string, policy stream.Policy) (*stream.Supervisor, error) {
	pair, err := formatSymbol(domain.Bybit, symbol)
	if err != nil {
		return nil, err
	}
	canonical, _ := NormalizeSymbol(symbol)

	connect := func(ctx context.Context) (stream.Conn, error) {
		sub := map[string]any{
			"op":   "subscribe",
			"args": []string{"tickers." + pair},
		}
		return dialWS(ctx, b.wsURL, sub)
	}

	var last bybitTicker
	parse := func(raw []byte) (domain.Quote, bool, error) {
		var msg struct {
			Topic string          `json:"topic"`
			Data  json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(raw, &msg); err != nil {
			return domain.Quote{}, false, err
		}
		if msg.Topic == "" || len(msg.Data) == 0 {
			// Subscription acks and pongs carry no topic.
			return domain.Quote{}, false, nil
		}
		var t bybitTicker
		if err := json.Unmarshal(msg.Data, &t); err != nil {
			return domain.Quote{}, false, err
		}
		if t.Bid1 != "" {
			last.Bid1 = t.Bid1
		}
		if t.Bid1Size != "" {
			last.Bid1Size = t.Bid1Size
		}
		if t.Ask1 != "" {
			last.Ask1 = t.Ask1
		}
		if t.Ask1Size != "" {
			last.Ask1Size = t.Ask1Size
		}
		if last.Bid1 == "" || last.Ask1 == "" {
			return domain.Quote{}, false, nil
		}
		q, err := buildQuote(domain.Bybit, canonical, last.Bid1, last.Ask1, last.Bid1Size, last.Ask1Size)
		if err != nil {
			return domain.Quote{}, false, err
		}
		return q, true, nil
	}
	return stream.NewSupervisor(domain.Bybit.String(), connect, parse, policy, b.logger), nil
}
