package scanner

import (
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/quveo/marketscan/internal/domain"
	"github.com/quveo/marketscan/internal/fees"
)

var computeNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func mkQuote(e domain.Exchange, bid, ask float64) domain.Quote {
	return domain.Quote{
		Exchange:  e,
		Symbol:    "BTCUSDT",
		Bid:       bid,
		Ask:       ask,
		Mid:       domain.MidPrice(bid, ask),
		Timestamp: computeNow,
	}
}

func zeroFees(exchanges ...domain.Exchange) *fees.Table {
	t := fees.NewTable()
	for _, e := range exchanges {
		t = t.WithTakerFee(e, 0)
	}
	return t
}

func TestComputeSingleOpportunityZeroFees(t *testing.T) {
	quotes := []domain.Quote{
		mkQuote(domain.Binance, 100.0, 100.1),
		mkQuote(domain.OKX, 100.5, 100.6),
	}
	table := zeroFees(domain.Binance, domain.OKX)

	opps, err := Compute("BTCUSDT", quotes, table, computeNow)
	if err != nil {
		t.Fatal(err)
	}
	if len(opps) != 1 {
		t.Fatalf("got %d opportunities, want 1: %+v", len(opps), opps)
	}
	o := opps[0]
	if o.Source != domain.Binance || o.Destination != domain.OKX {
		t.Errorf("direction = %s -> %s, want Binance -> OKX", o.Source, o.Destination)
	}
	if math.Abs(o.Spread-0.4) > 1e-9 {
		t.Errorf("spread = %v, want 0.4", o.Spread)
	}
	wantPct := 0.4 / 100.1 * 100
	if math.Abs(o.SpreadPct-wantPct) > 1e-9 {
		t.Errorf("spread pct = %v, want %v", o.SpreadPct, wantPct)
	}
	if o.ExecutableQty != 1.0 {
		t.Errorf("executable qty = %v, want nominal 1.0", o.ExecutableQty)
	}
	if o.Timestamp != computeNow {
		t.Errorf("timestamp = %v, want caller's", o.Timestamp)
	}
}

func TestComputeFeesEraseIdenticalQuotes(t *testing.T) {
	quotes := []domain.Quote{
		mkQuote(domain.Binance, 100.0, 100.1),
		mkQuote(domain.Bybit, 100.0, 100.1),
	}
	// Both venues default to 0.1%; identical books cannot beat the fees.
	opps, err := Compute("BTCUSDT", quotes, fees.NewTable(), computeNow)
	if err != nil {
		t.Fatal(err)
	}
	if len(opps) != 0 {
		t.Fatalf("got %d opportunities, want 0: %+v", len(opps), opps)
	}
}

func TestComputeFeeOverrideErasesOpportunity(t *testing.T) {
	quotes := []domain.Quote{
		mkQuote(domain.Binance, 100.0, 100.1),
		mkQuote(domain.OKX, 100.5, 100.6),
	}

	table := zeroFees(domain.Binance, domain.OKX)
	opps, err := Compute("BTCUSDT", quotes, table, computeNow)
	if err != nil {
		t.Fatal(err)
	}
	if len(opps) != 1 {
		t.Fatalf("setup: got %d opportunities, want 1", len(opps))
	}

	// A 1% buy-side fee inflates the effective ask past the sell side.
	penalized := table.WithTakerFee(domain.Binance, 0.01)
	opps, err = Compute("BTCUSDT", quotes, penalized, computeNow)
	if err != nil {
		t.Fatal(err)
	}
	if len(opps) != 0 {
		t.Fatalf("got %d opportunities after override, want 0: %+v", len(opps), opps)
	}
}

func TestComputeRaisingFeeNeverImprovesSpread(t *testing.T) {
	quotes := []domain.Quote{
		mkQuote(domain.Binance, 100.0, 100.1),
		mkQuote(domain.OKX, 100.5, 100.6),
	}
	table := zeroFees(domain.Binance, domain.OKX)
	prevSpread := math.Inf(1)
	for _, rate := range []float64{0, 0.0005, 0.001, 0.002, 0.003} {
		opps, err := Compute("BTCUSDT", quotes, table.WithTakerFee(domain.Binance, rate), computeNow)
		if err != nil {
			t.Fatal(err)
		}
		spread := 0.0
		if len(opps) > 0 {
			spread = opps[0].Spread
		}
		if spread > prevSpread {
			t.Fatalf("spread increased from %v to %v at rate %v", prevSpread, spread, rate)
		}
		prevSpread = spread
	}
}

func TestComputeInsufficientQuotes(t *testing.T) {
	_, err := Compute("BTCUSDT", nil, fees.NewTable(), computeNow)
	if !errors.Is(err, domain.ErrInsufficientQuotes) {
		t.Errorf("empty input error = %v, want ErrInsufficientQuotes", err)
	}

	_, err = Compute("BTCUSDT", []domain.Quote{mkQuote(domain.Binance, 100, 100.1)}, fees.NewTable(), computeNow)
	if !errors.Is(err, domain.ErrInsufficientQuotes) {
		t.Errorf("single quote error = %v, want ErrInsufficientQuotes", err)
	}

	// Invalid quotes do not count toward the minimum.
	quotes := []domain.Quote{
		mkQuote(domain.Binance, 100, 100.1),
		mkQuote(domain.OKX, 0, 100.6),      // no bid
		mkQuote(domain.Bybit, 100.2, 100.1), // crossed
	}
	_, err = Compute("BTCUSDT", quotes, fees.NewTable(), computeNow)
	if !errors.Is(err, domain.ErrInsufficientQuotes) {
		t.Errorf("invalid-quote error = %v, want ErrInsufficientQuotes", err)
	}
}

func TestComputeDeterministicAcrossInputOrder(t *testing.T) {
	forward := []domain.Quote{
		mkQuote(domain.Binance, 100.0, 100.1),
		mkQuote(domain.OKX, 100.5, 100.6),
		mkQuote(domain.Kraken, 100.3, 100.4),
	}
	reversed := []domain.Quote{forward[2], forward[1], forward[0]}
	table := zeroFees(domain.Binance, domain.OKX, domain.Kraken)

	a, err := Compute("BTCUSDT", forward, table, computeNow)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Compute("BTCUSDT", reversed, table, computeNow)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Errorf("output depends on input order:\n%+v\n%+v", a, b)
	}

	// And calling twice with the same input is byte-identical.
	c, err := Compute("BTCUSDT", forward, table, computeNow)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(a, c) {
		t.Error("repeated computation diverged")
	}
}

func TestComputeRankingOrder(t *testing.T) {
	quotes := []domain.Quote{
		mkQuote(domain.Binance, 100.0, 100.1),
		mkQuote(domain.OKX, 100.5, 100.6),
		mkQuote(domain.Kraken, 101.0, 101.1),
	}
	table := zeroFees(domain.Binance, domain.OKX, domain.Kraken)

	opps, err := Compute("BTCUSDT", quotes, table, computeNow)
	if err != nil {
		t.Fatal(err)
	}
	if len(opps) < 2 {
		t.Fatalf("got %d opportunities, want several", len(opps))
	}
	for i := 1; i < len(opps); i++ {
		prev, cur := opps[i-1], opps[i]
		if cur.SpreadPct > prev.SpreadPct {
			t.Fatalf("ranking violated at %d: %v%% after %v%%", i, cur.SpreadPct, prev.SpreadPct)
		}
	}
	// Best opportunity is buy cheapest, sell dearest.
	if opps[0].Source != domain.Binance || opps[0].Destination != domain.Kraken {
		t.Errorf("top = %s -> %s, want Binance -> Kraken", opps[0].Source, opps[0].Destination)
	}
}

func TestExecutableQty(t *testing.T) {
	buy := mkQuote(domain.Binance, 100.0, 100.1)
	sell := mkQuote(domain.OKX, 100.5, 100.6)

	if got := executableQty(buy, sell); got != 1.0 {
		t.Errorf("no depth: qty = %v, want 1.0", got)
	}

	buy.AskQty = 2.5
	if got := executableQty(buy, sell); got != 2.5 {
		t.Errorf("one-sided depth: qty = %v, want 2.5", got)
	}

	sell.BidQty = 1.5
	if got := executableQty(buy, sell); got != 1.5 {
		t.Errorf("two-sided depth: qty = %v, want min 1.5", got)
	}
}

func TestFilterMinSpread(t *testing.T) {
	opps := []domain.Opportunity{
		{SpreadPct: 0.5},
		{SpreadPct: 0.05},
		{SpreadPct: 0.2},
	}
	kept := filterMinSpread(opps, 0.1)
	if len(kept) != 2 {
		t.Fatalf("kept %d, want 2", len(kept))
	}
	for _, o := range kept {
		if o.SpreadPct < 0.1 {
			t.Errorf("kept opportunity below floor: %v", o.SpreadPct)
		}
	}

	all := []domain.Opportunity{{SpreadPct: 0.01}}
	if got := filterMinSpread(all, 0); len(got) != 1 {
		t.Error("zero floor must keep everything")
	}
}
