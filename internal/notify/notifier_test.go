package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/quveo/marketscan/internal/domain"
)

type captureSender struct {
	mu     sync.Mutex
	titles []string
	err    error
}

func (s *captureSender) Send(ctx context.Context, title, message string) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	s.titles = append(s.titles, title)
	s.mu.Unlock()
	return nil
}

func (s *captureSender) Name() string { return "capture" }

func (s *captureSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.titles)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func opp(spreadPct float64) domain.Opportunity {
	return domain.Opportunity{
		Source:      domain.Binance,
		Destination: domain.OKX,
		Symbol:      "BTCUSDT",
		EffectiveAsk: 100.1,
		EffectiveBid: 100.5,
		Spread:       0.4,
		SpreadPct:    spreadPct,
		ExecutableQty: 1,
		Timestamp:    time.Now(),
	}
}

func TestNotifyOpportunitySpreadFloor(t *testing.T) {
	s := &captureSender{}
	n := NewNotifier([]Sender{s}, 0.5, time.Minute, testLogger())

	if err := n.NotifyOpportunity(context.Background(), opp(0.1)); err != nil {
		t.Fatal(err)
	}
	if s.count() != 0 {
		t.Error("opportunity below floor must not alert")
	}

	if err := n.NotifyOpportunity(context.Background(), opp(0.8)); err != nil {
		t.Fatal(err)
	}
	if s.count() != 1 {
		t.Errorf("sent %d alerts, want 1", s.count())
	}
}

func TestNotifyOpportunityCooldownPerRoute(t *testing.T) {
	s := &captureSender{}
	n := NewNotifier([]Sender{s}, 0, time.Hour, testLogger())

	_ = n.NotifyOpportunity(context.Background(), opp(0.8))
	_ = n.NotifyOpportunity(context.Background(), opp(0.9)) // same route, in cooldown

	other := opp(0.7)
	other.Destination = domain.Kraken // different route alerts immediately
	_ = n.NotifyOpportunity(context.Background(), other)

	if s.count() != 2 {
		t.Errorf("sent %d alerts, want 2", s.count())
	}
}

func TestDispatchContinuesPastFailingSender(t *testing.T) {
	bad := &captureSender{err: errors.New("webhook down")}
	good := &captureSender{}
	n := NewNotifier([]Sender{bad, good}, 0, time.Minute, testLogger())

	err := n.NotifyAll(context.Background(), "title", "body")
	if err == nil {
		t.Fatal("expected aggregated error")
	}
	if good.count() != 1 {
		t.Error("healthy sender must still deliver")
	}
}

func TestFormatOpportunity(t *testing.T) {
	text := FormatOpportunity(opp(0.3996))
	for _, want := range []string{"Binance", "OKX", "BTCUSDT", "0.3996"} {
		if !strings.Contains(text, want) {
			t.Errorf("formatted alert missing %q:\n%s", want, text)
		}
	}
}
