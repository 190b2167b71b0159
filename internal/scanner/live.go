package scanner

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/quveo/marketscan/internal/domain"
	"github.com/quveo/marketscan/internal/exchange"
	"github.com/quveo/marketscan/internal/fees"
	"github.com/quveo/marketscan/internal/store"
	"github.com/quveo/marketscan/internal/stream"
)

// MuxState is the live scan lifecycle state.
type MuxState int32

const (
	MuxStarting MuxState = iota
	MuxStreaming
	MuxDraining
	MuxClosed
)

// String returns the lowercase state name.
func (s MuxState) String() string {
	switch s {
	case MuxStarting:
		return "starting"
	case MuxStreaming:
		return "streaming"
	case MuxDraining:
		return "draining"
	case MuxClosed:
		return "closed"
	}
	return "unknown"
}

// Multiplexer runs one supervised stream per streaming-capable venue and
// recomputes the full ranked opportunity list on every accepted quote. Each
// recomputation is emitted, including empty lists, so consumers always see
// the current state rather than only changes. Emission blocks: a slow
// consumer applies backpressure instead of causing drops.
type Multiplexer struct {
	symbol       string
	supervisors  []*stream.Supervisor
	quotes       *store.Quotes
	table        *fees.Table
	minSpreadPct float64
	sink         domain.QuoteSink
	logger       *slog.Logger

	out   chan []domain.Opportunity
	state atomic.Int32
}

// NewMultiplexer builds the live scan for one symbol. Venues without a
// websocket feed are skipped with a log line rather than failing the scan;
// if no configured venue can stream, construction fails.
func NewMultiplexer(adapters []exchange.Adapter, symbol string, policy stream.Policy, opts Options, sink domain.QuoteSink, logger *slog.Logger) (*Multiplexer, error) {
	canonical, err := exchange.NormalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}
	table := opts.Fees
	if table == nil {
		table = fees.NewTable()
	}
	logger = logger.With(slog.String("component", "live_scan"), slog.String("symbol", canonical))

	supervisors := make([]*stream.Supervisor, 0, len(adapters))
	for _, a := range adapters {
		if !a.SupportsStreaming() {
			logger.Info("venue excluded from live scan",
				slog.String("exchange", a.Exchange().String()),
				slog.String("reason", "no websocket feed"),
			)
			continue
		}
		sup, err := a.NewStream(canonical, policy)
		if err != nil {
			return nil, err
		}
		supervisors = append(supervisors, sup)
	}
	if len(supervisors) == 0 {
		return nil, domain.NewConfigError("exchanges", "no configured exchange supports streaming")
	}

	return &Multiplexer{
		symbol:       canonical,
		supervisors:  supervisors,
		quotes:       store.NewQuotes(),
		table:        table,
		minSpreadPct: opts.MinSpreadPct,
		sink:         sink,
		logger:       logger,
		out:          make(chan []domain.Opportunity),
	}, nil
}

// Out returns the channel of ranked opportunity lists. It closes when every
// stream has terminated and all pending quotes are processed.
func (m *Multiplexer) Out() <-chan []domain.Opportunity {
	return m.out
}

// State returns the current lifecycle state.
func (m *Multiplexer) State() MuxState {
	return MuxState(m.state.Load())
}

// Run starts every supervisor, fans their quotes into one processing loop,
// and blocks until all streams end or ctx is cancelled. The output channel is
// closed before Run returns.
func (m *Multiplexer) Run(ctx context.Context) error {
	defer m.state.Store(int32(MuxClosed))
	defer close(m.out)

	merged := make(chan domain.Quote)
	var wg sync.WaitGroup
	var live atomic.Int32
	live.Store(int32(len(m.supervisors)))

	for _, sup := range m.supervisors {
		wg.Add(1)
		go func(sup *stream.Supervisor) {
			defer wg.Done()
			go func() {
				if err := sup.Run(ctx); err != nil && ctx.Err() == nil {
					m.logger.Warn("stream terminated", slog.String("error", err.Error()))
				}
			}()
			for q := range sup.Out() {
				merged <- q
			}
			if live.Add(-1) == 0 {
				m.state.Store(int32(MuxDraining))
			}
		}(sup)
	}
	go func() {
		wg.Wait()
		close(merged)
	}()

	m.state.Store(int32(MuxStreaming))

	for q := range merged {
		m.accept(ctx, q)
	}
	return ctx.Err()
}

// accept folds one quote into the store, mirrors it to the sink, and emits a
// fresh ranked list.
func (m *Multiplexer) accept(ctx context.Context, q domain.Quote) {
	m.quotes.Upsert(q)
	if m.sink != nil {
		if err := m.sink.StoreQuote(ctx, q); err != nil {
			m.logger.Warn("quote sink write failed",
				slog.String("exchange", q.Exchange.String()),
				slog.String("error", err.Error()),
			)
		}
	}

	snapshot := m.quotes.Snapshot(m.symbol)
	opps, err := Compute(m.symbol, snapshot, m.table, time.Now().UTC())
	if err != nil {
		// A single live quote cannot pair with anything yet; the empty list
		// is still news to the consumer.
		opps = nil
	}
	opps = filterMinSpread(opps, m.minSpreadPct)
	if opps == nil {
		opps = []domain.Opportunity{}
	}

	select {
	case <-ctx.Done():
	case m.out <- opps:
	}
}
