package domain

import (
	"context"
	"math/big"
	"time"
)

// Quote is the normalized top-of-book price from one exchange for one symbol.
// Quotes are immutable once constructed; a newer quote for the same
// (exchange, symbol) key supersedes an older one, it never mutates it.
type Quote struct {
	Exchange  Exchange  `json:"exchange"`
	Symbol    string    `json:"symbol"`
	Bid       float64   `json:"bid_price"`
	Ask       float64   `json:"ask_price"`
	Mid       float64   `json:"mid_price"`
	BidQty    float64   `json:"bid_qty"`
	AskQty    float64   `json:"ask_qty"`
	Timestamp time.Time `json:"timestamp"`
}

// Valid reports whether the quote carries a usable two-sided market.
// Quotes failing this check are excluded from pair enumeration.
func (q Quote) Valid() bool {
	return q.Bid > 0 && q.Ask > 0 && q.Bid <= q.Ask
}

// MidPrice returns the midpoint of bid and ask.
func MidPrice(bid, ask float64) float64 {
	return (bid + ask) / 2
}

// QuoteSink receives every quote accepted by a live scan, in arrival order.
// Implementations must be safe for concurrent use.
type QuoteSink interface {
	StoreQuote(ctx context.Context, q Quote) error
}

// PoolKind selects the AMM design of an on-chain pool.
type PoolKind int

const (
	PoolV2 PoolKind = iota // reserve-ratio pricing
	PoolV3                 // sqrtPriceX96 pricing
)

// String returns the config identifier of the pool kind.
func (k PoolKind) String() string {
	switch k {
	case PoolV2:
		return "v2"
	case PoolV3:
		return "v3"
	}
	return "unknown"
}

// PriceDirection selects which unit a pool price is expressed in.
type PriceDirection int

const (
	// Token1PerToken0 quotes price as token1 per token0 (e.g. USDT per ETH).
	Token1PerToken0 PriceDirection = iota
	// Token0PerToken1 quotes the inverse.
	Token0PerToken1
)

// PoolQuote is one derived price observation from an on-chain pool. Exactly
// one of the reserve pair (V2) or SqrtPriceX96 (V3) is populated.
type PoolQuote struct {
	ChainID      uint64         `json:"chain_id"`
	PoolAddress  string         `json:"pool_address"`
	Kind         PoolKind       `json:"pool_kind"`
	Price        float64        `json:"price"`
	Direction    PriceDirection `json:"direction"`
	Reserve0     *float64       `json:"reserve0,omitempty"`
	Reserve1     *float64       `json:"reserve1,omitempty"`
	SqrtPriceX96 *big.Int       `json:"sqrt_price_x96,omitempty"`
	BlockNumber  uint64         `json:"block_number"`
	Timestamp    time.Time      `json:"timestamp"`
	Symbol       string         `json:"symbol,omitempty"`
}
