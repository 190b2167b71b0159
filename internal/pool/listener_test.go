package pool

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/quveo/marketscan/internal/domain"
	"github.com/quveo/marketscan/internal/stream"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeSub struct {
	errs chan error
	once sync.Once
}

func newFakeSub() *fakeSub { return &fakeSub{errs: make(chan error, 1)} }

func (s *fakeSub) Err() <-chan error { return s.errs }

func (s *fakeSub) Unsubscribe() {
	s.once.Do(func() { close(s.errs) })
}

func (s *fakeSub) fail(err error) { s.errs <- err }

// fakeBackend serves canned contract state and lets the test drive head and
// log subscriptions.
type fakeBackend struct {
	token0    common.Address
	token1    common.Address
	decimals0 *big.Int
	decimals1 *big.Int
	reserves  []byte
	slot0     []byte

	mu    sync.Mutex
	heads chan<- *types.Header
	logs  chan<- types.Log
	sub   *fakeSub
}

func (b *fakeBackend) CallContract(ctx context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	switch {
	case bytes.Equal(msg.Data, selToken0):
		return abiWords(new(big.Int).SetBytes(b.token0.Bytes())), nil
	case bytes.Equal(msg.Data, selToken1):
		return abiWords(new(big.Int).SetBytes(b.token1.Bytes())), nil
	case bytes.Equal(msg.Data, selDecimals):
		if *msg.To == b.token0 {
			return abiWords(b.decimals0), nil
		}
		return abiWords(b.decimals1), nil
	case bytes.Equal(msg.Data, selGetReserves):
		return b.reserves, nil
	case bytes.Equal(msg.Data, selSlot0):
		return b.slot0, nil
	}
	return nil, errors.New("unexpected call")
}

func (b *fakeBackend) SubscribeNewHead(ctx context.Context, ch chan<- *types.Header) (ethereum.Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.heads = ch
	b.sub = newFakeSub()
	return b.sub, nil
}

func (b *fakeBackend) SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.logs = ch
	b.sub = newFakeSub()
	return b.sub, nil
}

func (b *fakeBackend) Close() {}

func (b *fakeBackend) sendHead(n int64) {
	b.mu.Lock()
	ch := b.heads
	b.mu.Unlock()
	ch <- &types.Header{Number: big.NewInt(n)}
}

func (b *fakeBackend) sendSwap(block uint64) {
	b.mu.Lock()
	ch := b.logs
	b.mu.Unlock()
	ch <- types.Log{BlockNumber: block}
}

func (b *fakeBackend) failSub(err error) {
	b.mu.Lock()
	sub := b.sub
	b.mu.Unlock()
	sub.fail(err)
}

func (b *fakeBackend) waitSubscribed(t *testing.T) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		b.mu.Lock()
		ready := b.heads != nil || b.logs != nil
		b.mu.Unlock()
		if ready {
			return
		}
		select {
		case <-deadline:
			t.Fatal("listener never subscribed")
		case <-time.After(time.Millisecond):
		}
	}
}

func v2Backend() *fakeBackend {
	r1, _ := new(big.Int).SetString("500000000000000000", 10)
	return &fakeBackend{
		token0:    common.HexToAddress("0x0000000000000000000000000000000000000aa0"),
		token1:    common.HexToAddress("0x0000000000000000000000000000000000000bb1"),
		decimals0: big.NewInt(6),
		decimals1: big.NewInt(18),
		reserves:  abiWords(big.NewInt(1_000_000_000), r1, big.NewInt(1700000000)),
	}
}

func listenerWith(t *testing.T, backend *fakeBackend, cfg Config) *Listener {
	t.Helper()
	l, err := NewListener(cfg, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	l.dial = func(ctx context.Context, url string) (ethBackend, error) {
		return backend, nil
	}
	return l
}

func baseConfig() Config {
	return Config{
		RPCURL:      "ws://localhost:8546",
		ChainID:     1,
		PoolAddress: "0x0d4a11d5EEaaC28EC3F61d100daF4d40471f1852",
		Kind:        domain.PoolV2,
		Mode:        EveryBlock,
		Symbol:      "ETHUSDT",
		Reconnect:   stream.Policy{Attempts: 0, Delay: time.Millisecond},
	}
}

func TestListenerValidation(t *testing.T) {
	var cfgErr *domain.ConfigError

	cfg := baseConfig()
	cfg.RPCURL = ""
	if _, err := NewListener(cfg, testLogger()); !errors.As(err, &cfgErr) {
		t.Errorf("missing rpc url error = %v, want ConfigError", err)
	}

	cfg = baseConfig()
	cfg.PoolAddress = "not-an-address"
	if _, err := NewListener(cfg, testLogger()); !errors.As(err, &cfgErr) {
		t.Errorf("bad address error = %v, want ConfigError", err)
	}
}

func TestListenerEveryBlockDedupes(t *testing.T) {
	backend := v2Backend()
	l := listenerWith(t, backend, baseConfig())

	done := make(chan error, 1)
	go func() { done <- l.Run(context.Background()) }()
	backend.waitSubscribed(t)

	backend.sendHead(100)
	backend.sendHead(100) // repeated head, must not re-emit
	backend.sendHead(99)  // out-of-order replay, must not re-emit either
	backend.sendHead(103) // gap from 100 is fine

	var quotes []domain.PoolQuote
	for len(quotes) < 2 {
		select {
		case q := <-l.Out():
			quotes = append(quotes, q)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out with %d quotes", len(quotes))
		}
	}

	backend.failSub(errors.New("subscription dropped"))
	if err := <-done; err == nil {
		t.Error("expected terminal error after budget exhaustion")
	}

	if quotes[0].BlockNumber != 100 || quotes[1].BlockNumber != 103 {
		t.Errorf("blocks = %d, %d, want 100, 103", quotes[0].BlockNumber, quotes[1].BlockNumber)
	}
	q := quotes[0]
	if q.Kind != domain.PoolV2 || q.ChainID != 1 || q.Symbol != "ETHUSDT" {
		t.Errorf("quote identity = %+v", q)
	}
	want := 0.5 / 1000.0
	if diff := q.Price - want; diff > 1e-12 || diff < -1e-12 {
		t.Errorf("price = %v, want %v", q.Price, want)
	}
	if q.Reserve0 == nil || q.Reserve1 == nil {
		t.Fatal("v2 quote must carry reserves")
	}
	if *q.Reserve0 != 1000 || *q.Reserve1 != 0.5 {
		t.Errorf("reserves = %v/%v, want 1000/0.5", *q.Reserve0, *q.Reserve1)
	}
}

func TestListenerSwapEventsV3(t *testing.T) {
	q96 := new(big.Int).Lsh(big.NewInt(1), 96)
	backend := v2Backend()
	backend.decimals0 = big.NewInt(18)
	backend.slot0 = abiWords(q96, big.NewInt(0), big.NewInt(0))

	cfg := baseConfig()
	cfg.Kind = domain.PoolV3
	cfg.Mode = OnSwapEvent
	l := listenerWith(t, backend, cfg)

	done := make(chan error, 1)
	go func() { done <- l.Run(context.Background()) }()
	backend.waitSubscribed(t)

	backend.sendSwap(200)

	select {
	case q := <-l.Out():
		if q.BlockNumber != 200 {
			t.Errorf("block = %d, want 200", q.BlockNumber)
		}
		if q.SqrtPriceX96 == nil || q.SqrtPriceX96.Cmp(q96) != 0 {
			t.Errorf("sqrtPriceX96 = %v", q.SqrtPriceX96)
		}
		if diff := q.Price - 1; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("price = %v, want 1", q.Price)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no quote after swap event")
	}

	backend.failSub(errors.New("subscription dropped"))
	<-done
}

func TestListenerCancellation(t *testing.T) {
	backend := v2Backend()
	cfg := baseConfig()
	cfg.Reconnect = stream.Policy{Attempts: 1000, Delay: time.Hour}
	l := listenerWith(t, backend, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()
	backend.waitSubscribed(t)

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("listener did not stop after cancellation")
	}
	if _, open := <-l.Out(); open {
		t.Error("output channel still open after cancellation")
	}
}
