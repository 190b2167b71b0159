package pool

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/quveo/marketscan/internal/domain"
	"github.com/quveo/marketscan/internal/stream"
)

// ListenMode selects what triggers a price refresh.
type ListenMode int

const (
	// EveryBlock refreshes on each new chain head.
	EveryBlock ListenMode = iota
	// OnSwapEvent refreshes only when the pool emits a Swap event.
	OnSwapEvent
)

// String returns the config identifier of the mode.
func (m ListenMode) String() string {
	switch m {
	case EveryBlock:
		return "every_block"
	case OnSwapEvent:
		return "on_swap_event"
	}
	return "unknown"
}

// ParseListenMode resolves a config string to its mode.
func ParseListenMode(s string) (ListenMode, error) {
	switch s {
	case "every_block", "block", "":
		return EveryBlock, nil
	case "on_swap_event", "swap":
		return OnSwapEvent, nil
	}
	return 0, domain.NewConfigError("pool.mode", fmt.Sprintf("unknown mode %q", s))
}

// Config describes one pool to watch.
type Config struct {
	RPCURL      string
	ChainID     uint64
	PoolAddress string
	Kind        domain.PoolKind
	Mode        ListenMode
	Direction   domain.PriceDirection
	Symbol      string
	Reconnect   stream.Policy
}

// Validate rejects configurations that could never produce a price.
func (c Config) Validate() error {
	if c.RPCURL == "" {
		return domain.NewConfigError("pool.rpc_url", "required")
	}
	if !common.IsHexAddress(c.PoolAddress) {
		return domain.NewConfigError("pool.address", fmt.Sprintf("%q is not a hex address", c.PoolAddress))
	}
	if c.Kind != domain.PoolV2 && c.Kind != domain.PoolV3 {
		return domain.NewConfigError("pool.kind", "must be v2 or v3")
	}
	return nil
}

// ethBackend is the slice of the RPC client the listener uses; ethclient
// satisfies it and tests substitute a fake.
type ethBackend interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	SubscribeNewHead(ctx context.Context, ch chan<- *types.Header) (ethereum.Subscription, error)
	SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error)
	Close()
}

// DialFunc opens one RPC connection; each call is one attempt against the
// reconnect budget.
type DialFunc func(ctx context.Context, url string) (ethBackend, error)

func dialEthclient(ctx context.Context, url string) (ethBackend, error) {
	return ethclient.DialContext(ctx, url)
}

// Listener watches one pool and emits a derived price per trigger. Its
// reconnect semantics match the exchange stream supervisor: a fixed delay
// and an attempt budget consumed monotonically across the whole lifetime.
type Listener struct {
	cfg    Config
	pool   common.Address
	dial   DialFunc
	logger *slog.Logger
	out    chan domain.PoolQuote

	// lastBlock survives reconnects so a replayed head is not re-emitted.
	lastBlock uint64
}

// NewListener validates the configuration and builds an unstarted listener.
func NewListener(cfg Config, logger *slog.Logger) (*Listener, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Reconnect = cfg.Reconnect.Normalized()
	return &Listener{
		cfg:  cfg,
		pool: common.HexToAddress(cfg.PoolAddress),
		dial: dialEthclient,
		logger: logger.With(
			slog.String("component", "pool_listener"),
			slog.String("pool", cfg.PoolAddress),
			slog.String("kind", cfg.Kind.String()),
		),
		out: make(chan domain.PoolQuote, 64),
	}, nil
}

// Out returns the pool quote channel; it closes when the listener terminates.
func (l *Listener) Out() <-chan domain.PoolQuote {
	return l.out
}

// Run drives the listener until the reconnect budget is exhausted or ctx is
// cancelled, then closes the output channel and returns the terminal error.
func (l *Listener) Run(ctx context.Context) error {
	defer close(l.out)

	var lastErr error
	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			if attempt > l.cfg.Reconnect.Attempts {
				lastErr = fmt.Errorf("pool %s: reconnect budget exhausted after %d attempts: %w",
					l.cfg.PoolAddress, attempt, lastErr)
				l.logger.Warn("reconnect budget exhausted", slog.String("error", lastErr.Error()))
				return lastErr
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(l.cfg.Reconnect.Delay):
			}
		}

		err := l.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		lastErr = err
		l.logger.Warn("session ended",
			slog.Int("attempt", attempt+1),
			slog.String("error", err.Error()),
		)
	}
}

// session runs one connection: dial, resolve token decimals, subscribe, and
// refresh prices until the subscription breaks.
func (l *Listener) session(ctx context.Context) error {
	client, err := l.dial(ctx, l.cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("dial rpc: %w", err)
	}
	defer client.Close()

	d0, d1, err := l.tokenDecimals(ctx, client)
	if err != nil {
		return err
	}
	l.logger.Debug("connected",
		slog.Int("decimals0", int(d0)),
		slog.Int("decimals1", int(d1)),
	)

	switch l.cfg.Mode {
	case OnSwapEvent:
		return l.watchSwaps(ctx, client, d0, d1)
	default:
		return l.watchHeads(ctx, client, d0, d1)
	}
}

// tokenDecimals resolves both pool tokens and their decimal scales.
func (l *Listener) tokenDecimals(ctx context.Context, client ethBackend) (d0, d1 uint8, err error) {
	t0Raw, err := client.CallContract(ctx, ethereum.CallMsg{To: &l.pool, Data: selToken0}, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("token0: %w", err)
	}
	t0, err := parseAddress(t0Raw)
	if err != nil {
		return 0, 0, fmt.Errorf("token0: %w", err)
	}
	t1Raw, err := client.CallContract(ctx, ethereum.CallMsg{To: &l.pool, Data: selToken1}, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("token1: %w", err)
	}
	t1, err := parseAddress(t1Raw)
	if err != nil {
		return 0, 0, fmt.Errorf("token1: %w", err)
	}

	d0, err = l.decimalsOf(ctx, client, t0)
	if err != nil {
		return 0, 0, err
	}
	d1, err = l.decimalsOf(ctx, client, t1)
	if err != nil {
		return 0, 0, err
	}
	return d0, d1, nil
}

func (l *Listener) decimalsOf(ctx context.Context, client ethBackend, token common.Address) (uint8, error) {
	raw, err := client.CallContract(ctx, ethereum.CallMsg{To: &token, Data: selDecimals}, nil)
	if err != nil {
		return 0, fmt.Errorf("decimals of %s: %w", token.Hex(), err)
	}
	d, err := parseUint8(raw)
	if err != nil {
		return 0, fmt.Errorf("decimals of %s: %w", token.Hex(), err)
	}
	return d, nil
}

// watchHeads refreshes the price on every new block. Providers may replay
// heads at or below the last seen number; those are skipped so each block
// emits at most once. Gaps in the sequence are normal under reconnects and
// load.
func (l *Listener) watchHeads(ctx context.Context, client ethBackend, d0, d1 uint8) error {
	heads := make(chan *types.Header, 16)
	sub, err := client.SubscribeNewHead(ctx, heads)
	if err != nil {
		return fmt.Errorf("subscribe heads: %w", err)
	}
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-sub.Err():
			return fmt.Errorf("head subscription: %w", err)
		case head, ok := <-heads:
			if !ok {
				return fmt.Errorf("head channel closed")
			}
			num := head.Number.Uint64()
			if num <= l.lastBlock {
				continue
			}
			l.lastBlock = num
			if err := l.refresh(ctx, client, d0, d1, num); err != nil {
				l.logger.Debug("refresh skipped", slog.Uint64("block", num), slog.String("error", err.Error()))
			}
		}
	}
}

// watchSwaps refreshes the price only when the pool trades.
func (l *Listener) watchSwaps(ctx context.Context, client ethBackend, d0, d1 uint8) error {
	topic := topicV2Swap
	if l.cfg.Kind == domain.PoolV3 {
		topic = topicV3Swap
	}
	logs := make(chan types.Log, 16)
	sub, err := client.SubscribeFilterLogs(ctx, ethereum.FilterQuery{
		Addresses: []common.Address{l.pool},
		Topics:    [][]common.Hash{{topic}},
	}, logs)
	if err != nil {
		return fmt.Errorf("subscribe logs: %w", err)
	}
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-sub.Err():
			return fmt.Errorf("log subscription: %w", err)
		case lg, ok := <-logs:
			if !ok {
				return fmt.Errorf("log channel closed")
			}
			if lg.Removed {
				continue
			}
			if err := l.refresh(ctx, client, d0, d1, lg.BlockNumber); err != nil {
				l.logger.Debug("refresh skipped", slog.Uint64("block", lg.BlockNumber), slog.String("error", err.Error()))
			}
		}
	}
}

// refresh reads the pool state, derives the price, and emits a quote.
func (l *Listener) refresh(ctx context.Context, client ethBackend, d0, d1 uint8, block uint64) error {
	quote := domain.PoolQuote{
		ChainID:     l.cfg.ChainID,
		PoolAddress: l.cfg.PoolAddress,
		Kind:        l.cfg.Kind,
		Direction:   l.cfg.Direction,
		BlockNumber: block,
		Timestamp:   time.Now().UTC(),
		Symbol:      l.cfg.Symbol,
	}

	switch l.cfg.Kind {
	case domain.PoolV2:
		raw, err := client.CallContract(ctx, ethereum.CallMsg{To: &l.pool, Data: selGetReserves}, nil)
		if err != nil {
			return fmt.Errorf("getReserves: %w", err)
		}
		r0, r1, err := parseReserves(raw)
		if err != nil {
			return err
		}
		price, err := v2Price(r0, r1, d0, d1)
		if err != nil {
			return err
		}
		res0, res1 := scaleDown(r0, d0), scaleDown(r1, d1)
		quote.Reserve0, quote.Reserve1 = &res0, &res1
		quote.Price, err = applyDirection(price, l.cfg.Direction)
		if err != nil {
			return err
		}
	case domain.PoolV3:
		raw, err := client.CallContract(ctx, ethereum.CallMsg{To: &l.pool, Data: selSlot0}, nil)
		if err != nil {
			return fmt.Errorf("slot0: %w", err)
		}
		sqrtPrice, err := parseSqrtPriceX96(raw)
		if err != nil {
			return err
		}
		price, err := v3Price(sqrtPrice, d0, d1)
		if err != nil {
			return err
		}
		quote.SqrtPriceX96 = sqrtPrice
		quote.Price, err = applyDirection(price, l.cfg.Direction)
		if err != nil {
			return err
		}
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case l.out <- quote:
	}
	return nil
}
