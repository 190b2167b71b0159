// Package store holds the in-memory quote state shared between stream
// supervisors (writers) and the opportunity multiplexer (reader).
package store

import (
	"sort"
	"sync"

	"github.com/quveo/marketscan/internal/domain"
)

// QuoteKey identifies one tracked market: an exchange and its normalized
// symbol.
type QuoteKey struct {
	Exchange domain.Exchange
	Symbol   string
}

// Quotes maps (exchange, symbol) to the most recently observed quote. It is
// written concurrently by many supervisors and read concurrently by the
// multiplexer. No history is retained: the last network arrival wins,
// regardless of source timestamps. Every mutation is a single-key atomic
// replace; no lock is ever held across I/O.
type Quotes struct {
	mu sync.RWMutex
	m  map[QuoteKey]domain.Quote
}

// NewQuotes creates an empty quote store.
func NewQuotes() *Quotes {
	return &Quotes{m: make(map[QuoteKey]domain.Quote)}
}

// Upsert replaces the stored quote for the quote's key unconditionally.
func (s *Quotes) Upsert(q domain.Quote) {
	key := QuoteKey{Exchange: q.Exchange, Symbol: q.Symbol}
	s.mu.Lock()
	s.m[key] = q
	s.mu.Unlock()
}

// Get returns the stored quote for one key.
func (s *Quotes) Get(e domain.Exchange, symbol string) (domain.Quote, bool) {
	s.mu.RLock()
	q, ok := s.m[QuoteKey{Exchange: e, Symbol: symbol}]
	s.mu.RUnlock()
	return q, ok
}

// Snapshot returns a copy of all current quotes for one symbol across every
// tracked exchange, ordered by exchange for deterministic downstream
// processing. It is safe to call concurrently with ongoing upserts; a
// returned quote is never partially written.
func (s *Quotes) Snapshot(symbol string) []domain.Quote {
	s.mu.RLock()
	quotes := make([]domain.Quote, 0, len(s.m))
	for key, q := range s.m {
		if key.Symbol == symbol {
			quotes = append(quotes, q)
		}
	}
	s.mu.RUnlock()

	sort.Slice(quotes, func(i, j int) bool {
		return quotes[i].Exchange < quotes[j].Exchange
	})
	return quotes
}

// Len returns the number of tracked keys.
func (s *Quotes) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}
