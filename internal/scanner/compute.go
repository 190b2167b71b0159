// Package scanner turns per-exchange quotes into ranked arbitrage
// opportunities, either from a one-shot fetch across all venues or
// continuously from supervised websocket streams.
package scanner

import (
	"fmt"
	"sort"
	"time"

	"github.com/quveo/marketscan/internal/domain"
	"github.com/quveo/marketscan/internal/fees"
)

// Compute enumerates every ordered pair of valid quotes and returns the
// opportunities whose fee-adjusted spread is strictly positive, ranked by
// spread percentage, then absolute spread, then (source, destination) names.
//
// Compute is pure: identical inputs produce identical output. It assigns no
// IDs and reads no clocks; opportunities carry the caller's observation time.
func Compute(symbol string, quotes []domain.Quote, table *fees.Table, now time.Time) ([]domain.Opportunity, error) {
	valid := make([]domain.Quote, 0, len(quotes))
	for _, q := range quotes {
		if q.Valid() {
			valid = append(valid, q)
		}
	}
	if len(valid) < 2 {
		return nil, fmt.Errorf("%w: %d valid quotes for %s", domain.ErrInsufficientQuotes, len(valid), symbol)
	}

	// Input order must not influence output order.
	sort.Slice(valid, func(i, j int) bool {
		return valid[i].Exchange < valid[j].Exchange
	})

	opps := make([]domain.Opportunity, 0, len(valid)*(len(valid)-1)/2)
	for _, buy := range valid {
		for _, sell := range valid {
			if buy.Exchange == sell.Exchange {
				continue
			}
			srcRate := table.Rate(buy.Exchange)
			dstRate := table.Rate(sell.Exchange)
			effAsk := table.EffectiveAsk(buy.Exchange, buy.Ask)
			effBid := table.EffectiveBid(sell.Exchange, sell.Bid)
			spread := effBid - effAsk
			if spread <= 0 {
				continue
			}
			opps = append(opps, domain.Opportunity{
				Source:            buy.Exchange,
				Destination:       sell.Exchange,
				Symbol:            symbol,
				EffectiveAsk:      effAsk,
				EffectiveBid:      effBid,
				Spread:            spread,
				SpreadPct:         spread / effAsk * 100,
				ExecutableQty:     executableQty(buy, sell),
				SourceFeePct:      srcRate * 100,
				DestinationFeePct: dstRate * 100,
				Timestamp:         now,
			})
		}
	}

	sort.Slice(opps, func(i, j int) bool {
		a, b := opps[i], opps[j]
		if a.SpreadPct != b.SpreadPct {
			return a.SpreadPct > b.SpreadPct
		}
		if a.Spread != b.Spread {
			return a.Spread > b.Spread
		}
		if a.Source != b.Source {
			return a.Source.String() < b.Source.String()
		}
		return a.Destination.String() < b.Destination.String()
	})
	return opps, nil
}

// executableQty bounds the tradable size by the thinner reported leg. A
// venue that reports no depth does not constrain the size; when neither leg
// reports depth the quantity is a nominal 1.0 unit of the base asset.
func executableQty(buy, sell domain.Quote) float64 {
	switch {
	case buy.AskQty > 0 && sell.BidQty > 0:
		if buy.AskQty < sell.BidQty {
			return buy.AskQty
		}
		return sell.BidQty
	case buy.AskQty > 0:
		return buy.AskQty
	case sell.BidQty > 0:
		return sell.BidQty
	}
	return 1.0
}

// filterMinSpread drops opportunities below the configured spread-percentage
// floor. A zero floor keeps everything Compute surfaced.
func filterMinSpread(opps []domain.Opportunity, minSpreadPct float64) []domain.Opportunity {
	if minSpreadPct <= 0 {
		return opps
	}
	kept := opps[:0]
	for _, o := range opps {
		if o.SpreadPct >= minSpreadPct {
			kept = append(kept, o)
		}
	}
	return kept
}
