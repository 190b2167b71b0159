package exchange

import (
	"fmt"
	"strings"

	"github.com/quveo/marketscan/internal/domain"
)

// quoteAssets are the quote currencies recognized when splitting a
// concatenated symbol, longest first so USDT wins over USD.
var quoteAssets = []string{"USDT", "USDC", "TUSD", "FDUSD", "BUSD", "TRY", "EUR", "KRW", "BTC", "ETH", "USD"}

// NormalizeSymbol upper-cases a symbol and strips separators, producing the
// canonical concatenated form used as a store key (e.g. "btc-usdt" → "BTCUSDT").
func NormalizeSymbol(symbol string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	s = strings.ReplaceAll(s, "-", "")
	s = strings.ReplaceAll(s, "_", "")
	s = strings.ReplaceAll(s, "/", "")
	if s == "" {
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidSymbol, symbol)
	}
	return s, nil
}

// SplitSymbol separates a canonical symbol into base and quote assets by
// matching known quote suffixes.
func SplitSymbol(symbol string) (base, quote string, err error) {
	s, err := NormalizeSymbol(symbol)
	if err != nil {
		return "", "", err
	}
	for _, q := range quoteAssets {
		if strings.HasSuffix(s, q) && len(s) > len(q) {
			return s[:len(s)-len(q)], q, nil
		}
	}
	return "", "", fmt.Errorf("%w: cannot split %q into base and quote", domain.ErrInvalidSymbol, symbol)
}

// formatSymbol renders a canonical symbol in the exchange's native pair
// notation. Kraken spells BTC as XBT on its REST API; Bitfinex abbreviates
// USDT to UST and prefixes pairs with "t", inserting a colon when the base
// is longer than three characters; Upbit writes the quote currency first.
func formatSymbol(e domain.Exchange, symbol string) (string, error) {
	base, quote, err := SplitSymbol(symbol)
	if err != nil {
		return "", err
	}

	switch e {
	case domain.Binance, domain.MEXC, domain.Bybit, domain.Bitget, domain.Btcturk:
		return base + quote, nil
	case domain.HTX:
		return strings.ToLower(base + quote), nil
	case domain.OKX, domain.Kucoin, domain.Coinbase:
		return base + "-" + quote, nil
	case domain.Gateio, domain.Cryptocom:
		return base + "_" + quote, nil
	case domain.Kraken:
		if base == "BTC" {
			base = "XBT"
		}
		return base + quote, nil
	case domain.Bitfinex:
		if quote == "USDT" {
			quote = "UST"
		}
		if len(base) > 3 {
			return "t" + base + ":" + quote, nil
		}
		return "t" + base + quote, nil
	case domain.Upbit:
		return quote + "-" + base, nil
	}
	return "", fmt.Errorf("%w: %s", domain.ErrUnsupportedExchange, e)
}
