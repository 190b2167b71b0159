package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/quveo/marketscan/internal/domain"
	"github.com/quveo/marketscan/internal/stream"
)

// Bitfinex serves quotes from the Bitfinex v2 public API, which returns
// positional number arrays instead of keyed objects.
type Bitfinex struct {
	rest   *restClient
	wsURL  string
	logger *slog.Logger
}

func NewBitfinex(logger *slog.Logger) *Bitfinex {
	return &Bitfinex{
		rest:   newRESTClient("https://api-pub.bitfinex.com"),
		wsURL:  "wss://api-pub.bitfinex.com/ws/2",
		logger: logger,
	}
}

func (b *Bitfinex) Exchange() domain.Exchange { return domain.Bitfinex }

func (b *Bitfinex) SupportsStreaming() bool { return true }

// tickerFromArray maps the v2 ticker layout
// [BID, BID_SIZE, ASK, ASK_SIZE, ...] to a quote.
func tickerFromArray(symbol string, fields []float64) (domain.Quote, error) {
	if len(fields) < 4 {
		return domain.Quote{}, fmt.Errorf("bitfinex: ticker array too short: %d fields", len(fields))
	}
	canonical, err := NormalizeSymbol(symbol)
	if err != nil {
		return domain.Quote{}, err
	}
	return newQuote(domain.Bitfinex, canonical, fields[0], fields[2], fields[1], fields[3]), nil
}

func (b *Bitfinex) FetchPrice(ctx context.Context, symbol string) (domain.Quote, error) {
	pair, err := formatSymbol(domain.Bitfinex, symbol)
	if err != nil {
		return domain.Quote{}, err
	}
	var fields []float64
	if err := b.rest.getJSON(ctx, "/v2/ticker/"+pair, &fields); err != nil {
		return domain.Quote{}, fmt.Errorf("bitfinex: fetch %s: %w", pair, err)
	}
	return tickerFromArray(symbol, fields)
}

func (b *Bitfinex) NewStream(symbol string, policy stream.Policy) (*stream.Supervisor, error) {
	pair, err := formatSymbol(domain.Bitfinex, symbol)
	if err != nil {
		return nil, err
	}
	canonical, _ := NormalizeSymbol(symbol)

	connect := func(ctx context.Context) (stream.Conn, error) {
		sub := map[string]any{
			"event":   "subscribe",
			"channel": "ticker",
			"symbol":  pair,
		}
		return dialWS(ctx, b.wsURL, sub)
	}
	parse := func(raw []byte) (domain.Quote, bool, error) {
		// Data frames are arrays: [CHANNEL_ID, [BID, BID_SIZE, ASK, ...]] or
		// [CHANNEL_ID, "hb"]. Event frames (info, subscribed) are objects.
		var frame []json.RawMessage
		if err := json.Unmarshal(raw, &frame); err != nil {
			return domain.Quote{}, false, nil
		}
		if len(frame) < 2 {
			return domain.Quote{}, false, nil
		}
		var fields []float64
		if err := json.Unmarshal(frame[1], &fields); err != nil {
			// "hb" heartbeat payload.
			return domain.Quote{}, false, nil
		}
		q, err := tickerFromArray(canonical, fields)
		if err != nil {
			return domain.Quote{}, false, err
		}
		return q, true, nil
	}
	return stream.NewSupervisor(domain.Bitfinex.String(), connect, parse, policy, b.logger), nil
}
