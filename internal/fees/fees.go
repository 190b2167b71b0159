// Package fees resolves per-exchange taker fee rates and computes
// fee-adjusted effective prices. Rates are decimal fractions: 0.001 = 0.10%.
package fees

import "github.com/quveo/marketscan/internal/domain"

// takerDefaults are the compiled-in spot taker rates, default tier, no
// VIP/volume discounts.
var takerDefaults = map[domain.Exchange]float64{
	domain.Binance:   0.001,  // 0.10%
	domain.Bybit:     0.001,  // 0.10%
	domain.MEXC:      0.0005, // 0.05%
	domain.OKX:       0.001,  // 0.10%
	domain.Gateio:    0.001,  // 0.10%
	domain.Kucoin:    0.001,  // 0.10%
	domain.Bitget:    0.001,  // 0.10%
	domain.Btcturk:   0.0012, // 0.12% base tier
	domain.HTX:       0.002,  // 0.20%
	domain.Coinbase:  0.005,  // 0.50% (between advanced/simple)
	domain.Kraken:    0.0026, // 0.26%
	domain.Bitfinex:  0.002,  // 0.20%
	domain.Upbit:     0.0025, // 0.25%
	domain.Cryptocom: 0.0004, // 0.04%

	// KyberSwap charges no platform fee on swaps. Pool/gas costs are not a
	// taker fee and are out of scope here.
	domain.KyberSwap: 0,
}

// TakerFeeRate returns the compiled-in default taker rate for a centralized
// exchange. Exchanges outside the known set resolve to 0; callers must not
// interpret that as "free" but as "unknown".
func TakerFeeRate(e domain.Exchange) float64 {
	return takerDefaults[e]
}

// FeeRate returns the default fee rate for any exchange, CEX or DEX.
func FeeRate(e domain.Exchange) float64 {
	return takerDefaults[e]
}

// Table resolves fee rates for one scan: caller overrides first, then
// compiled-in defaults, then 0. A Table is immutable after construction; the
// With* builders return copies.
type Table struct {
	overrides map[domain.Exchange]float64
}

// NewTable returns a Table with no overrides.
func NewTable() *Table {
	return &Table{}
}

// NewTableWithOverrides returns a Table seeded with the given override map.
func NewTableWithOverrides(overrides map[domain.Exchange]float64) *Table {
	t := &Table{}
	for e, r := range overrides {
		t = t.WithTakerFee(e, r)
	}
	return t
}

// WithTakerFee returns a copy of the table with the rate for one exchange
// overridden.
func (t *Table) WithTakerFee(e domain.Exchange, rate float64) *Table {
	next := &Table{overrides: make(map[domain.Exchange]float64, len(t.overrides)+1)}
	for k, v := range t.overrides {
		next.overrides[k] = v
	}
	next.overrides[e] = rate
	return next
}

// Rate resolves the taker rate for an exchange: override, else default,
// else 0.
func (t *Table) Rate(e domain.Exchange) float64 {
	if t != nil && t.overrides != nil {
		if r, ok := t.overrides[e]; ok {
			return r
		}
	}
	return takerDefaults[e]
}

// EffectiveAsk returns the buy-side price after fees: ask × (1 + rate).
func (t *Table) EffectiveAsk(e domain.Exchange, ask float64) float64 {
	return ask * (1 + t.Rate(e))
}

// EffectiveBid returns the sell-side price after fees: bid × (1 − rate).
func (t *Table) EffectiveBid(e domain.Exchange, bid float64) float64 {
	return bid * (1 - t.Rate(e))
}
