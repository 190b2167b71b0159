package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/quveo/marketscan/internal/domain"
)

// QuoteCache mirrors the latest quote per (exchange, symbol) into Redis so
// other processes can read live top-of-book state. Each quote is a hash at
// "quote:{exchange}:{symbol}" with bid/ask/mid, depth, and a Unix nanosecond
// timestamp.
type QuoteCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewQuoteCache creates a QuoteCache backed by the given Client. A non-zero
// ttl expires stale markets that stopped updating.
func NewQuoteCache(c *Client, ttl time.Duration) *QuoteCache {
	return &QuoteCache{rdb: c.rdb, ttl: ttl}
}

func quoteKey(e domain.Exchange, symbol string) string {
	return "quote:" + e.String() + ":" + symbol
}

// StoreQuote writes one quote, unconditionally replacing the previous value
// for its key.
func (qc *QuoteCache) StoreQuote(ctx context.Context, q domain.Quote) error {
	key := quoteKey(q.Exchange, q.Symbol)
	fields := map[string]interface{}{
		"bid":     strconv.FormatFloat(q.Bid, 'f', -1, 64),
		"ask":     strconv.FormatFloat(q.Ask, 'f', -1, 64),
		"mid":     strconv.FormatFloat(q.Mid, 'f', -1, 64),
		"bid_qty": strconv.FormatFloat(q.BidQty, 'f', -1, 64),
		"ask_qty": strconv.FormatFloat(q.AskQty, 'f', -1, 64),
		"ts":      strconv.FormatInt(q.Timestamp.UnixNano(), 10),
	}
	pipe := qc.rdb.Pipeline()
	pipe.HSet(ctx, key, fields)
	if qc.ttl > 0 {
		pipe.Expire(ctx, key, qc.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: store quote %s: %w", key, err)
	}
	return nil
}

// GetQuote reads the cached quote for one market. It returns
// domain.ErrNotFound when no quote has been stored or it has expired.
func (qc *QuoteCache) GetQuote(ctx context.Context, e domain.Exchange, symbol string) (domain.Quote, error) {
	key := quoteKey(e, symbol)
	vals, err := qc.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return domain.Quote{}, fmt.Errorf("redis: get quote %s: %w", key, err)
	}
	if len(vals) == 0 {
		return domain.Quote{}, domain.ErrNotFound
	}

	q := domain.Quote{Exchange: e, Symbol: symbol}
	if q.Bid, err = strconv.ParseFloat(vals["bid"], 64); err != nil {
		return domain.Quote{}, fmt.Errorf("redis: parse bid %s: %w", key, err)
	}
	if q.Ask, err = strconv.ParseFloat(vals["ask"], 64); err != nil {
		return domain.Quote{}, fmt.Errorf("redis: parse ask %s: %w", key, err)
	}
	if q.Mid, err = strconv.ParseFloat(vals["mid"], 64); err != nil {
		return domain.Quote{}, fmt.Errorf("redis: parse mid %s: %w", key, err)
	}
	if q.BidQty, err = strconv.ParseFloat(vals["bid_qty"], 64); err != nil {
		return domain.Quote{}, fmt.Errorf("redis: parse bid_qty %s: %w", key, err)
	}
	if q.AskQty, err = strconv.ParseFloat(vals["ask_qty"], 64); err != nil {
		return domain.Quote{}, fmt.Errorf("redis: parse ask_qty %s: %w", key, err)
	}
	tsNano, err := strconv.ParseInt(vals["ts"], 10, 64)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("redis: parse ts %s: %w", key, err)
	}
	q.Timestamp = time.Unix(0, tsNano).UTC()
	return q, nil
}

// Compile-time interface check.
var _ domain.QuoteSink = (*QuoteCache)(nil)
