// Package notify delivers profitable-opportunity alerts to operators over
// Telegram and Discord. Alerts are throttled per trade direction so a spread
// that persists across many scan passes does not flood the channel.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/avelez/dexscan/internal/domain"
)

// Sender is the interface that each notification channel must implement.
type Sender interface {
	// Send delivers a notification with the given title and message body.
	Send(ctx context.Context, title, message string) error
	// Name returns a human-readable identifier for the sender (e.g. "telegram").
	Name() string
}

// Alerter formats profitable scan records into operator alerts and dispatches
// them to all registered senders. A direction that alerted within the
// cooldown window is silently skipped.
type Alerter struct {
	senders  []Sender
	cooldown time.Duration
	logger   *slog.Logger

	mu       sync.Mutex
	lastSent map[string]time.Time // keyed by direction label
}

// NewAlerter creates an Alerter. A cooldown of zero disables throttling.
func NewAlerter(senders []Sender, cooldown time.Duration, logger *slog.Logger) *Alerter {
	return &Alerter{
		senders:  senders,
		cooldown: cooldown,
		logger:   logger.With(slog.String("component", "alerter")),
		lastSent: make(map[string]time.Time),
	}
}

// OpportunityDetected dispatches an alert for one profitable scan record.
// Sender failures are logged and collected; a single failing channel does not
// prevent delivery to the remaining ones.
func (a *Alerter) OpportunityDetected(ctx context.Context, rec domain.ScanRecord) error {
	if len(a.senders) == 0 {
		return nil
	}
	if !a.shouldSend(rec.Direction) {
		a.logger.Debug("alert suppressed by cooldown",
			slog.String("direction", rec.Direction),
		)
		return nil
	}

	title := fmt.Sprintf("Arbitrage opportunity: %s", rec.Pair)
	message := fmt.Sprintf(
		"%s\nbuy %s at %.6f, sell %s at %.6f\nspread %.4f%%, estimated profit %.4f (size %.4f)",
		rec.Direction,
		rec.ExchangeA, rec.BuyPrice,
		rec.ExchangeB, rec.SellPrice,
		rec.PriceDifferencePct, rec.EstimatedProfit, rec.TradeSize,
	)

	var errs []string
	for _, s := range a.senders {
		if err := s.Send(ctx, title, message); err != nil {
			a.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.Any("error", err),
			)
			errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
			continue
		}
		a.logger.DebugContext(ctx, "alert sent",
			slog.String("sender", s.Name()),
			slog.String("direction", rec.Direction),
		)
	}

	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}

// shouldSend reports whether the direction is outside its cooldown window
// and, if so, marks it as alerted now.
func (a *Alerter) shouldSend(direction string) bool {
	if a.cooldown <= 0 {
		return true
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	now := time.Now()
	if last, ok := a.lastSent[direction]; ok && now.Sub(last) < a.cooldown {
		return false
	}
	a.lastSent[direction] = now
	return true
}
