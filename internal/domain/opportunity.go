package domain

import (
	"context"
	"time"
)

// Opportunity is one fee-aware arbitrage candidate: buy on Source at its
// effective ask, sell on Destination at its effective bid. Only opportunities
// with Spread > 0 are ever surfaced.
type Opportunity struct {
	ID          string   `json:"id,omitempty"`
	Source      Exchange `json:"source_exchange"`
	Destination Exchange `json:"destination_exchange"`
	Symbol      string   `json:"symbol"`

	// Fee-adjusted prices: ask inflated by the source taker fee, bid
	// deflated by the destination taker fee.
	EffectiveAsk float64 `json:"effective_ask"`
	EffectiveBid float64 `json:"effective_bid"`

	// Spread is EffectiveBid − EffectiveAsk in quote-currency units;
	// SpreadPct is Spread / EffectiveAsk × 100.
	Spread    float64 `json:"spread"`
	SpreadPct float64 `json:"spread_percentage"`

	// ExecutableQty is min(source ask size, destination bid size) when the
	// venues report depth, or a nominal 1.0 when neither leg does. It is a
	// conservative bound, not an estimate of true tradable size.
	ExecutableQty float64 `json:"executable_quantity"`

	SourceFeePct      float64 `json:"source_commission_percent"`
	DestinationFeePct float64 `json:"destination_commission_percent"`

	Timestamp time.Time `json:"timestamp"`
}

// GrossProfit returns Spread × ExecutableQty in quote-currency units.
func (o Opportunity) GrossProfit() float64 {
	return o.Spread * o.ExecutableQty
}

// OpportunityRecorder persists surfaced opportunities for later inspection.
type OpportunityRecorder interface {
	Record(ctx context.Context, opp Opportunity) error
}
