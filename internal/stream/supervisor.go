// Package stream turns a flaky network connection into a supervised quote
// stream with bounded, fixed-delay reconnects. The supervisor is an explicit
// state machine (Connecting → Streaming → Backoff → Closed) so that attempt
// counting and delay normalization are testable without a real network.
package stream

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/quveo/marketscan/internal/domain"
)

// DefaultDelay replaces a zero reconnect delay before use.
const DefaultDelay = 1000 * time.Millisecond

// Policy bounds reconnect behaviour. Attempts is the number of additional
// connection attempts allowed after the first failure: 0 means a single
// attempt and no reconnect. A zero Delay is normalized to DefaultDelay.
type Policy struct {
	Attempts int
	Delay    time.Duration
}

// Normalized returns the policy with a zero delay replaced by DefaultDelay
// and a negative attempt count clamped to zero.
func (p Policy) Normalized() Policy {
	if p.Delay <= 0 {
		p.Delay = DefaultDelay
	}
	if p.Attempts < 0 {
		p.Attempts = 0
	}
	return p
}

// Conn is one live connection to a raw update feed.
type Conn interface {
	// Next blocks until the next raw message arrives or the connection
	// breaks. A returned error is connection-level and ends the session.
	Next(ctx context.Context) ([]byte, error)
	Close() error
}

// ConnectFunc opens one raw connection. Each invocation is one connection
// attempt against the reconnect budget.
type ConnectFunc func(ctx context.Context) (Conn, error)

// ParseFunc turns one raw message into a quote. ok=false with a nil error
// skips control messages silently; a non-nil error marks the message as
// malformed — it is dropped and does not count against the reconnect budget.
type ParseFunc func(raw []byte) (q domain.Quote, ok bool, err error)

// State is the supervisor lifecycle state.
type State int32

const (
	StateConnecting State = iota
	StateStreaming
	StateBackoff
	StateClosed
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	case StateBackoff:
		return "backoff"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Supervisor drives one source's connection lifecycle and forwards parsed
// quotes on its output channel. The channel closes exactly once: after the
// reconnect budget is exhausted or the context is cancelled. No quote is
// emitted after close.
type Supervisor struct {
	name    string
	connect ConnectFunc
	parse   ParseFunc
	policy  Policy
	logger  *slog.Logger

	out   chan domain.Quote
	state atomic.Int32
	err   atomic.Value // terminal error, set before out closes
}

// NewSupervisor creates a supervisor for one source. The name tags log lines
// and terminal errors; it is typically the exchange display name.
func NewSupervisor(name string, connect ConnectFunc, parse ParseFunc, policy Policy, logger *slog.Logger) *Supervisor {
	return &Supervisor{
		name:    name,
		connect: connect,
		parse:   parse,
		policy:  policy.Normalized(),
		logger:  logger.With(slog.String("component", "stream_supervisor"), slog.String("source", name)),
		out:     make(chan domain.Quote, 64),
	}
}

// Out returns the supervised quote channel. It is closed when the supervisor
// terminates; consumers detect end-of-stream via channel close.
func (s *Supervisor) Out() <-chan domain.Quote {
	return s.out
}

// State returns the current lifecycle state.
func (s *Supervisor) State() State {
	return State(s.state.Load())
}

// Err returns the terminal failure after Out has closed: the last transport
// error when the budget was exhausted, or the context error on cancellation.
func (s *Supervisor) Err() error {
	if v := s.err.Load(); v != nil {
		return v.(error)
	}
	return nil
}

// Run drives the state machine until the reconnect budget is exhausted or
// ctx is cancelled, then closes the output channel and returns the terminal
// error. The attempt budget is consumed monotonically across the whole
// lifetime: a successful reconnect does not refund attempts.
func (s *Supervisor) Run(ctx context.Context) error {
	var lastErr error

	defer func() {
		s.setState(StateClosed)
		if lastErr != nil {
			s.err.Store(lastErr)
		}
		close(s.out)
	}()

	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			if attempt > s.policy.Attempts {
				lastErr = fmt.Errorf("%s: reconnect budget exhausted after %d attempts: %w",
					s.name, attempt, lastErr)
				s.logger.Warn("reconnect budget exhausted",
					slog.Int("attempts", attempt),
					slog.String("error", lastErr.Error()),
				)
				return lastErr
			}
			s.setState(StateBackoff)
			select {
			case <-ctx.Done():
				lastErr = ctx.Err()
				return lastErr
			case <-time.After(s.policy.Delay):
			}
		}

		s.setState(StateConnecting)
		conn, err := s.connect(ctx)
		if ctx.Err() != nil {
			lastErr = ctx.Err()
			return lastErr
		}
		if err != nil {
			lastErr = err
			s.logger.Warn("connect failed",
				slog.Int("attempt", attempt+1),
				slog.String("error", err.Error()),
			)
			continue
		}

		s.setState(StateStreaming)
		s.logger.Debug("connected", slog.Int("attempt", attempt+1))
		err = s.pump(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			lastErr = ctx.Err()
			return lastErr
		}
		// A broken read is a connection-level failure like a failed dial: it
		// consumes one unit of the reconnect budget.
		lastErr = err
		s.logger.Warn("connection lost", slog.String("error", err.Error()))
	}
}

// pump reads and forwards messages from one connection until it breaks or
// ctx is cancelled. Malformed messages are dropped without ending the
// session.
func (s *Supervisor) pump(ctx context.Context, conn Conn) error {
	// Unblock a pending read when the context is cancelled.
	watch := make(chan struct{})
	defer close(watch)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-watch:
		}
	}()

	for {
		raw, err := conn.Next(ctx)
		if err != nil {
			return err
		}
		q, ok, perr := s.parse(raw)
		if perr != nil {
			s.logger.Debug("malformed message dropped", slog.String("error", perr.Error()))
			continue
		}
		if !ok {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case s.out <- q:
		}
	}
}

func (s *Supervisor) setState(st State) {
	s.state.Store(int32(st))
}
