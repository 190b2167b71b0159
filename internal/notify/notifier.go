// Package notify pushes opportunity alerts to operator channels (Telegram,
// Discord). Alerts are throttled by a spread floor and a per-route cooldown
// so a persistent spread does not flood the chat on every quote tick.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/quveo/marketscan/internal/domain"
)

// Sender is one delivery channel.
type Sender interface {
	// Send delivers a notification with the given title and message body.
	Send(ctx context.Context, title, message string) error
	// Name returns the channel identifier (e.g. "telegram").
	Name() string
}

// Notifier fans opportunity alerts out to every configured sender.
type Notifier struct {
	senders      []Sender
	minSpreadPct float64
	cooldown     time.Duration
	logger       *slog.Logger

	mu       sync.Mutex
	lastSent map[string]time.Time // route key -> last alert time
}

// NewNotifier creates a Notifier. Opportunities below minSpreadPct are
// ignored; repeated alerts for the same (source, destination, symbol) route
// within the cooldown are suppressed.
func NewNotifier(senders []Sender, minSpreadPct float64, cooldown time.Duration, logger *slog.Logger) *Notifier {
	return &Notifier{
		senders:      senders,
		minSpreadPct: minSpreadPct,
		cooldown:     cooldown,
		logger:       logger.With(slog.String("component", "notifier")),
		lastSent:     make(map[string]time.Time),
	}
}

// NotifyOpportunity alerts on one opportunity if it clears the spread floor
// and its route is not in cooldown.
func (n *Notifier) NotifyOpportunity(ctx context.Context, opp domain.Opportunity) error {
	if len(n.senders) == 0 {
		return nil
	}
	if opp.SpreadPct < n.minSpreadPct {
		return nil
	}
	if !n.claimRoute(opp) {
		return nil
	}
	title := fmt.Sprintf("Arbitrage: %s %.4f%%", opp.Symbol, opp.SpreadPct)
	return n.dispatch(ctx, title, FormatOpportunity(opp))
}

// NotifyAll sends a free-form notification to every sender, bypassing the
// spread floor and cooldown. Used for lifecycle events.
func (n *Notifier) NotifyAll(ctx context.Context, title, message string) error {
	return n.dispatch(ctx, title, message)
}

// claimRoute records an alert for the opportunity's route and reports
// whether it was eligible (outside the cooldown window).
func (n *Notifier) claimRoute(opp domain.Opportunity) bool {
	key := opp.Source.String() + ">" + opp.Destination.String() + ":" + opp.Symbol
	now := time.Now()
	n.mu.Lock()
	defer n.mu.Unlock()
	if last, ok := n.lastSent[key]; ok && now.Sub(last) < n.cooldown {
		return false
	}
	n.lastSent[key] = now
	return true
}

// dispatch delivers to every sender; one channel failing does not block the
// rest.
func (n *Notifier) dispatch(ctx context.Context, title, message string) error {
	var errs []string
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "notification sent",
			slog.String("sender", s.Name()),
			slog.String("title", title),
		)
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}

// FormatOpportunity renders an opportunity as a readable alert body.
func FormatOpportunity(opp domain.Opportunity) string {
	return fmt.Sprintf(
		"Buy %s @ %.8g on %s\nSell %s @ %.8g on %s\nSpread: %.8g (%.4f%%)\nSize: %.8g\nFees: %.3f%% / %.3f%%",
		opp.Symbol, opp.EffectiveAsk, opp.Source,
		opp.Symbol, opp.EffectiveBid, opp.Destination,
		opp.Spread, opp.SpreadPct,
		opp.ExecutableQty,
		opp.SourceFeePct, opp.DestinationFeePct,
	)
}
