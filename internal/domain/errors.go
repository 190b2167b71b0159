package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientQuotes is returned when fewer than two valid quotes
	// exist for a symbol, so no pair can be enumerated.
	ErrInsufficientQuotes = errors.New("fewer than two valid quotes")

	// ErrStreamingUnsupported is returned when a stream is requested from an
	// exchange that only supports one-shot fetches. No connection is
	// attempted.
	ErrStreamingUnsupported = errors.New("exchange does not support streaming")

	// ErrUnsupportedExchange is returned for exchange names outside the
	// closed supported set.
	ErrUnsupportedExchange = errors.New("unsupported exchange")

	// ErrInvalidSymbol is returned for empty or malformed trading symbols.
	ErrInvalidSymbol = errors.New("invalid symbol")

	// ErrNotFound is returned by caches and stores for missing keys.
	ErrNotFound = errors.New("not found")
)

// ConfigError is a fatal configuration problem: invalid symbol sets,
// unsupported exchange/pool-kind combinations, missing required fields. It is
// surfaced immediately and never retried.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

// NewConfigError builds a ConfigError for the given field.
func NewConfigError(field, reason string) *ConfigError {
	return &ConfigError{Field: field, Reason: reason}
}
