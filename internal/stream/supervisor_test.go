package stream

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/quveo/marketscan/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeConn replays a fixed set of messages, then fails with errDone.
type fakeConn struct {
	messages [][]byte
	pos      int
	closed   atomic.Bool
}

var errDone = errors.New("connection reset")

func (c *fakeConn) Next(ctx context.Context) ([]byte, error) {
	if c.closed.Load() {
		return nil, errDone
	}
	if c.pos >= len(c.messages) {
		return nil, errDone
	}
	msg := c.messages[c.pos]
	c.pos++
	return msg, nil
}

func (c *fakeConn) Close() error {
	c.closed.Store(true)
	return nil
}

// blockingConn blocks in Next until closed.
type blockingConn struct {
	unblock chan struct{}
	once    atomic.Bool
}

func newBlockingConn() *blockingConn {
	return &blockingConn{unblock: make(chan struct{})}
}

func (c *blockingConn) Next(ctx context.Context) ([]byte, error) {
	<-c.unblock
	return nil, errDone
}

func (c *blockingConn) Close() error {
	if c.once.CompareAndSwap(false, true) {
		close(c.unblock)
	}
	return nil
}

func parseJSONQuote(raw []byte) (domain.Quote, bool, error) {
	var q domain.Quote
	if err := json.Unmarshal(raw, &q); err != nil {
		return domain.Quote{}, false, err
	}
	return q, true, nil
}

func quoteJSON(t *testing.T, bid, ask float64) []byte {
	t.Helper()
	data, err := json.Marshal(domain.Quote{
		Exchange: domain.Binance,
		Symbol:   "BTCUSDT",
		Bid:      bid,
		Ask:      ask,
		Mid:      domain.MidPrice(bid, ask),
	})
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestNormalizedDelay(t *testing.T) {
	p := Policy{Attempts: 3}.Normalized()
	if p.Delay != 1000*time.Millisecond {
		t.Fatalf("zero delay normalized to %v, want 1s", p.Delay)
	}
	p = Policy{Attempts: -1, Delay: 5 * time.Millisecond}.Normalized()
	if p.Attempts != 0 {
		t.Fatalf("negative attempts normalized to %d, want 0", p.Attempts)
	}
	if p.Delay != 5*time.Millisecond {
		t.Fatalf("non-zero delay changed to %v", p.Delay)
	}
}

func TestAttemptBudgetExhaustedAfterNPlusOneAttempts(t *testing.T) {
	const attempts = 3
	var dials atomic.Int32
	connect := func(ctx context.Context) (Conn, error) {
		dials.Add(1)
		return nil, errors.New("connection refused")
	}

	sup := NewSupervisor("test", connect, parseJSONQuote,
		Policy{Attempts: attempts, Delay: time.Millisecond}, testLogger())
	err := sup.Run(context.Background())

	if got := dials.Load(); got != attempts+1 {
		t.Errorf("total connection attempts = %d, want %d", got, attempts+1)
	}
	if err == nil {
		t.Error("expected terminal error after budget exhaustion")
	}
	if sup.Err() == nil {
		t.Error("Err() must report the terminal failure")
	}
	if sup.State() != StateClosed {
		t.Errorf("state = %v, want closed", sup.State())
	}
	// The channel must be observably closed with nothing pending.
	if _, open := <-sup.Out(); open {
		t.Error("output channel still open after terminal failure")
	}
}

func TestZeroAttemptsMeansSingleConnection(t *testing.T) {
	var dials atomic.Int32
	connect := func(ctx context.Context) (Conn, error) {
		dials.Add(1)
		return nil, errors.New("connection refused")
	}

	sup := NewSupervisor("test", connect, parseJSONQuote,
		Policy{Attempts: 0, Delay: time.Millisecond}, testLogger())
	_ = sup.Run(context.Background())

	if got := dials.Load(); got != 1 {
		t.Fatalf("total connection attempts = %d, want 1", got)
	}
}

func TestBudgetIsMonotonicAcrossSuccessfulPeriods(t *testing.T) {
	// Every dial succeeds but each connection dies after one message. With a
	// budget of 2 retries, exactly 3 connections are made in total even
	// though each one streamed successfully for a while.
	var dials atomic.Int32
	connect := func(ctx context.Context) (Conn, error) {
		dials.Add(1)
		return &fakeConn{messages: [][]byte{quoteJSON(t, 100, 100.1)}}, nil
	}

	sup := NewSupervisor("test", connect, parseJSONQuote,
		Policy{Attempts: 2, Delay: time.Millisecond}, testLogger())
	go func() { _ = sup.Run(context.Background()) }()

	var received int
	for range sup.Out() {
		received++
	}
	if received != 3 {
		t.Errorf("received %d quotes, want 3 (one per connection)", received)
	}
	if got := dials.Load(); got != 3 {
		t.Errorf("total connection attempts = %d, want 3", got)
	}
}

func TestMalformedMessagesSkippedWithoutConsumingBudget(t *testing.T) {
	var dials atomic.Int32
	connect := func(ctx context.Context) (Conn, error) {
		dials.Add(1)
		return &fakeConn{messages: [][]byte{
			[]byte("{not json"),
			quoteJSON(t, 100, 100.1),
			[]byte("also not json"),
			quoteJSON(t, 101, 101.1),
		}}, nil
	}

	sup := NewSupervisor("test", connect, parseJSONQuote,
		Policy{Attempts: 0, Delay: time.Millisecond}, testLogger())
	go func() { _ = sup.Run(context.Background()) }()

	var quotes []domain.Quote
	for q := range sup.Out() {
		quotes = append(quotes, q)
	}
	if len(quotes) != 2 {
		t.Fatalf("received %d quotes, want 2", len(quotes))
	}
	if quotes[0].Bid != 100 || quotes[1].Bid != 101 {
		t.Errorf("quotes delivered out of order: %+v", quotes)
	}
	if got := dials.Load(); got != 1 {
		t.Errorf("malformed messages consumed reconnect budget: %d dials", got)
	}
}

func TestControlMessagesSkippedSilently(t *testing.T) {
	parse := func(raw []byte) (domain.Quote, bool, error) {
		if string(raw) == "ping" {
			return domain.Quote{}, false, nil
		}
		return parseJSONQuote(raw)
	}
	connect := func(ctx context.Context) (Conn, error) {
		return &fakeConn{messages: [][]byte{
			[]byte("ping"),
			quoteJSON(t, 100, 100.1),
		}}, nil
	}

	sup := NewSupervisor("test", connect, parse,
		Policy{Attempts: 0, Delay: time.Millisecond}, testLogger())
	go func() { _ = sup.Run(context.Background()) }()

	var count int
	for range sup.Out() {
		count++
	}
	if count != 1 {
		t.Fatalf("received %d quotes, want 1", count)
	}
}

func TestCancellationForcesClosure(t *testing.T) {
	conn := newBlockingConn()
	connect := func(ctx context.Context) (Conn, error) {
		return conn, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	sup := NewSupervisor("test", connect, parseJSONQuote,
		Policy{Attempts: 100, Delay: time.Millisecond}, testLogger())

	done := make(chan error, 1)
	go func() { done <- sup.Run(ctx) }()

	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("terminal error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("supervisor did not terminate after cancellation")
	}
	if _, open := <-sup.Out(); open {
		t.Error("output channel still open after cancellation")
	}
}

func TestUpdatesDeliveredInArrivalOrder(t *testing.T) {
	const n = 50
	messages := make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		messages = append(messages, quoteJSON(t, 100+float64(i), 100.1+float64(i)))
	}
	connect := func(ctx context.Context) (Conn, error) {
		return &fakeConn{messages: messages}, nil
	}

	sup := NewSupervisor("test", connect, parseJSONQuote,
		Policy{Attempts: 0, Delay: time.Millisecond}, testLogger())
	go func() { _ = sup.Run(context.Background()) }()

	var prev float64 = -1
	for q := range sup.Out() {
		if q.Bid <= prev {
			t.Fatalf("out-of-order delivery: %v after %v", q.Bid, prev)
		}
		prev = q.Bid
	}
}
