// Package domain defines the core types shared across the scanner: the
// closed set of supported exchanges, quote and opportunity models, and the
// error taxonomy. It has no dependencies on transport or storage packages.
package domain

import (
	"fmt"
	"strings"
)

// Exchange identifies one supported price source. The set is closed: every
// adapter, fee default, and dispatch table is keyed by these values.
type Exchange int

const (
	ExchangeUnknown Exchange = iota

	// Centralized exchanges.
	Binance
	Bybit
	MEXC
	OKX
	Gateio
	Kucoin
	Bitget
	Btcturk
	HTX
	Coinbase
	Kraken
	Bitfinex
	Upbit
	Cryptocom

	// Decentralized aggregators.
	KyberSwap
)

// exchangeNames are the display names used in opportunities and logs.
var exchangeNames = map[Exchange]string{
	Binance:   "Binance",
	Bybit:     "Bybit",
	MEXC:      "MEXC",
	OKX:       "OKX",
	Gateio:    "Gateio",
	Kucoin:    "Kucoin",
	Bitget:    "Bitget",
	Btcturk:   "Btcturk",
	HTX:       "HTX",
	Coinbase:  "Coinbase",
	Kraken:    "Kraken",
	Bitfinex:  "Bitfinex",
	Upbit:     "Upbit",
	Cryptocom: "Crypto.com",
	KyberSwap: "KyberSwap",
}

// String returns the display name of the exchange.
func (e Exchange) String() string {
	if name, ok := exchangeNames[e]; ok {
		return name
	}
	return fmt.Sprintf("Exchange(%d)", int(e))
}

// IsDex reports whether the exchange is a decentralized aggregator.
func (e Exchange) IsDex() bool {
	return e == KyberSwap
}

// MarshalJSON encodes the exchange as its display name.
func (e Exchange) MarshalJSON() ([]byte, error) {
	return []byte(`"` + e.String() + `"`), nil
}

// UnmarshalJSON decodes an exchange from its display name or config ID.
func (e *Exchange) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	parsed, err := ParseExchange(s)
	if err != nil {
		return err
	}
	*e = parsed
	return nil
}

// ParseExchange resolves a case-insensitive exchange name (display name or
// config identifier such as "cryptocom") to its Exchange value.
func ParseExchange(s string) (Exchange, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.ReplaceAll(key, ".", "")
	key = strings.ReplaceAll(key, "-", "")
	key = strings.ReplaceAll(key, "_", "")
	for e, name := range exchangeNames {
		if strings.ToLower(strings.ReplaceAll(name, ".", "")) == key {
			return e, nil
		}
	}
	// Common aliases not covered by display names.
	switch key {
	case "gate", "gateio":
		return Gateio, nil
	case "huobi":
		return HTX, nil
	case "kucoin":
		return Kucoin, nil
	}
	return ExchangeUnknown, fmt.Errorf("%w: %q", ErrUnsupportedExchange, s)
}

// CexExchanges returns every supported centralized exchange in a stable order.
func CexExchanges() []Exchange {
	return []Exchange{
		Binance, Bybit, MEXC, OKX, Gateio, Kucoin, Bitget,
		Btcturk, HTX, Coinbase, Kraken, Bitfinex, Upbit, Cryptocom,
	}
}
