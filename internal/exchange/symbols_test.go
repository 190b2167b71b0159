package exchange

import (
	"errors"
	"testing"

	"github.com/quveo/marketscan/internal/domain"
)

func TestNormalizeSymbol(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"BTCUSDT", "BTCUSDT"},
		{"btcusdt", "BTCUSDT"},
		{"BTC-USDT", "BTCUSDT"},
		{"btc_usdt", "BTCUSDT"},
		{"BTC/USDT", "BTCUSDT"},
		{" eth-usdt ", "ETHUSDT"},
	}
	for _, c := range cases {
		got, err := NormalizeSymbol(c.in)
		if err != nil {
			t.Fatalf("NormalizeSymbol(%q): %v", c.in, err)
		}
		if got != c.want {
			t.Errorf("NormalizeSymbol(%q) = %q, want %q", c.in, got, c.want)
		}
	}

	if _, err := NormalizeSymbol("  "); !errors.Is(err, domain.ErrInvalidSymbol) {
		t.Errorf("blank symbol error = %v, want ErrInvalidSymbol", err)
	}
}

func TestSplitSymbol(t *testing.T) {
	base, quote, err := SplitSymbol("BTCUSDT")
	if err != nil {
		t.Fatal(err)
	}
	if base != "BTC" || quote != "USDT" {
		t.Errorf("SplitSymbol(BTCUSDT) = %s/%s, want BTC/USDT", base, quote)
	}

	// USDT must win over the shorter USD suffix.
	base, quote, err = SplitSymbol("ETHUSD")
	if err != nil {
		t.Fatal(err)
	}
	if base != "ETH" || quote != "USD" {
		t.Errorf("SplitSymbol(ETHUSD) = %s/%s, want ETH/USD", base, quote)
	}

	if _, _, err := SplitSymbol("USDT"); !errors.Is(err, domain.ErrInvalidSymbol) {
		t.Errorf("bare quote asset error = %v, want ErrInvalidSymbol", err)
	}
	if _, _, err := SplitSymbol("BTCXYZ"); !errors.Is(err, domain.ErrInvalidSymbol) {
		t.Errorf("unknown quote error = %v, want ErrInvalidSymbol", err)
	}
}

func TestFormatSymbolPerVenue(t *testing.T) {
	cases := []struct {
		e      domain.Exchange
		symbol string
		want   string
	}{
		{domain.Binance, "BTC-USDT", "BTCUSDT"},
		{domain.MEXC, "BTCUSDT", "BTCUSDT"},
		{domain.HTX, "BTCUSDT", "btcusdt"},
		{domain.OKX, "BTCUSDT", "BTC-USDT"},
		{domain.Kucoin, "BTCUSDT", "BTC-USDT"},
		{domain.Coinbase, "BTCUSDT", "BTC-USDT"},
		{domain.Gateio, "BTCUSDT", "BTC_USDT"},
		{domain.Cryptocom, "BTCUSDT", "BTC_USDT"},
		{domain.Kraken, "BTCUSDT", "XBTUSDT"},
		{domain.Kraken, "ETHUSDT", "ETHUSDT"},
		{domain.Bitfinex, "BTCUSDT", "tBTCUST"},
		{domain.Bitfinex, "AVAXUSDT", "tAVAX:UST"},
		{domain.Bitfinex, "ETHUSD", "tETHUSD"},
		{domain.Upbit, "BTCUSDT", "USDT-BTC"},
	}
	for _, c := range cases {
		got, err := formatSymbol(c.e, c.symbol)
		if err != nil {
			t.Fatalf("formatSymbol(%s, %q): %v", c.e, c.symbol, err)
		}
		if got != c.want {
			t.Errorf("formatSymbol(%s, %q) = %q, want %q", c.e, c.symbol, got, c.want)
		}
	}
}
