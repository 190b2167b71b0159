package fees

import (
	"math"
	"testing"

	"github.com/quveo/marketscan/internal/domain"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-12
}

func TestDefaultRates(t *testing.T) {
	cases := []struct {
		exchange domain.Exchange
		want     float64
	}{
		{domain.Binance, 0.001},
		{domain.MEXC, 0.0005},
		{domain.Btcturk, 0.0012},
		{domain.HTX, 0.002},
		{domain.Coinbase, 0.005},
		{domain.Kraken, 0.0026},
		{domain.Upbit, 0.0025},
		{domain.Cryptocom, 0.0004},
		{domain.KyberSwap, 0},
	}
	table := NewTable()
	for _, tc := range cases {
		if got := table.Rate(tc.exchange); !almostEqual(got, tc.want) {
			t.Errorf("Rate(%s) = %v, want %v", tc.exchange, got, tc.want)
		}
		if got := FeeRate(tc.exchange); !almostEqual(got, tc.want) {
			t.Errorf("FeeRate(%s) = %v, want %v", tc.exchange, got, tc.want)
		}
	}
}

func TestUnknownExchangeResolvesToZero(t *testing.T) {
	if got := NewTable().Rate(domain.ExchangeUnknown); got != 0 {
		t.Fatalf("Rate(unknown) = %v, want 0", got)
	}
}

func TestOverrides(t *testing.T) {
	base := NewTable()
	withOverride := base.WithTakerFee(domain.Binance, 0.01)

	if got := withOverride.Rate(domain.Binance); !almostEqual(got, 0.01) {
		t.Errorf("overridden Rate(Binance) = %v, want 0.01", got)
	}
	// Other exchanges keep their defaults.
	if got := withOverride.Rate(domain.OKX); !almostEqual(got, 0.001) {
		t.Errorf("Rate(OKX) = %v, want default 0.001", got)
	}
	// The original table is unchanged.
	if got := base.Rate(domain.Binance); !almostEqual(got, 0.001) {
		t.Errorf("base Rate(Binance) = %v, want 0.001", got)
	}
}

func TestEffectivePrices(t *testing.T) {
	table := NewTable().WithTakerFee(domain.Binance, 0.002)

	if got := table.EffectiveAsk(domain.Binance, 100); !almostEqual(got, 100.2) {
		t.Errorf("EffectiveAsk = %v, want 100.2", got)
	}
	if got := table.EffectiveBid(domain.Binance, 100); !almostEqual(got, 99.8) {
		t.Errorf("EffectiveBid = %v, want 99.8", got)
	}
}

func TestNewTableWithOverrides(t *testing.T) {
	table := NewTableWithOverrides(map[domain.Exchange]float64{
		domain.Binance: 0.002,
		domain.OKX:     0.0005,
	})
	if got := table.Rate(domain.Binance); !almostEqual(got, 0.002) {
		t.Errorf("Rate(Binance) = %v, want 0.002", got)
	}
	if got := table.Rate(domain.OKX); !almostEqual(got, 0.0005) {
		t.Errorf("Rate(OKX) = %v, want 0.0005", got)
	}
}
