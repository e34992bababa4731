package scanner

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/google/uuid"

	"github.com/avelez/dexscan/internal/domain"
)

// Config holds the orchestrator's tunables.
type Config struct {
	Pair               string
	TradeSize          float64
	PollInterval       time.Duration
	PairDelay          time.Duration
	MaxConcurrentPairs int
}

// Alerter pushes profitable opportunities to operator channels. Implementations
// are expected to throttle themselves.
type Alerter interface {
	OpportunityDetected(ctx context.Context, rec domain.ScanRecord) error
}

// Scanner periodically sweeps every unordered exchange pair, simulating both
// trade directions for each, and persists every completed simulation. A
// failing pair never prevents the remaining pairs of the same pass from
// being evaluated.
type Scanner struct {
	cfg       Config
	exchanges []domain.Exchange
	sim       *Simulator
	scans     domain.ScanStore
	metrics   domain.MetricStore
	signals   domain.SignalBus
	alerts    Alerter
	inFlight  atomic.Bool
	logger    *slog.Logger
}

// New creates a Scanner. signals and alerts may be nil when no opportunity
// broadcasting or operator alerting is configured.
func New(cfg Config, exchanges []domain.Exchange, sim *Simulator, scans domain.ScanStore, metrics domain.MetricStore, signals domain.SignalBus, alerts Alerter, logger *slog.Logger) *Scanner {
	return &Scanner{
		cfg:       cfg,
		exchanges: exchanges,
		sim:       sim,
		scans:     scans,
		metrics:   metrics,
		signals:   signals,
		alerts:    alerts,
		logger:    logger.With(slog.String("component", "scanner")),
	}
}

// Run executes one pass immediately, then one per poll interval until the
// context is cancelled. Interval ticks are a trigger source like any other:
// a tick that arrives while a pass is still running is dropped, never queued.
func (s *Scanner) Run(ctx context.Context) error {
	s.logger.Info("scanner started",
		slog.String("pair", s.cfg.Pair),
		slog.Int("exchanges", len(s.exchanges)),
		slog.Duration("poll_interval", s.cfg.PollInterval))

	s.ScanOnce(ctx)

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scanner stopped")
			return ctx.Err()
		case <-ticker.C:
			s.ScanOnce(ctx)
		}
	}
}

// ScanOnce runs a single scan pass. At most one pass runs at a time; a
// trigger arriving mid-pass is dropped. Every error inside the pass is
// logged and contained here, so callers never observe a failure.
func (s *Scanner) ScanOnce(ctx context.Context) {
	if !s.inFlight.CompareAndSwap(false, true) {
		s.logger.Debug("scan pass already in flight, trigger dropped")
		return
	}
	defer s.inFlight.Store(false)

	start := time.Now()
	pairs := enumeratePairs(s.exchanges)

	if s.cfg.MaxConcurrentPairs > 1 {
		pool := pond.NewPool(s.cfg.MaxConcurrentPairs)
		group := pool.NewGroupContext(ctx)
		for _, p := range pairs {
			p := p
			group.Submit(func() {
				s.evaluatePair(ctx, p[0], p[1])
			})
		}
		if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Warn("scan pass worker group", slog.Any("error", err))
		}
		pool.StopAndWait()
	} else {
		for i, p := range pairs {
			if ctx.Err() != nil {
				break
			}
			s.evaluatePair(ctx, p[0], p[1])
			if i < len(pairs)-1 {
				s.sleep(ctx, s.cfg.PairDelay)
			}
		}
	}

	if ctx.Err() == nil {
		s.summarize(ctx)
	}

	s.logger.Info("scan pass complete",
		slog.Int("pairs", len(pairs)),
		slog.Duration("elapsed", time.Since(start)))
}

// evaluatePair simulates both directions for one unordered exchange pair.
// Each direction is independent: a failure in one is logged and does not
// suppress the other.
func (s *Scanner) evaluatePair(ctx context.Context, a, b domain.Exchange) {
	s.evaluateDirection(ctx, a, b)
	s.evaluateDirection(ctx, b, a)
}

func (s *Scanner) evaluateDirection(ctx context.Context, buy, sell domain.Exchange) {
	res, err := s.sim.Simulate(ctx, buy, sell, s.cfg.TradeSize)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return
		}
		s.logger.Warn("simulation failed",
			slog.String("buy", buy.ID),
			slog.String("sell", sell.ID),
			slog.Any("error", err))
		return
	}

	rec := domain.ScanRecord{
		ID:              uuid.NewString(),
		Timestamp:       time.Now().UTC(),
		ExchangeA:       res.BuyExchange,
		ExchangeB:       res.SellExchange,
		Pair:            s.cfg.Pair,
		TradeSize:       res.TradeSize,
		Direction:       domain.DirectionLabel(buy.Name, sell.Name),
		BuyPrice:        res.BuyPrice,
		SellPrice:       res.SellPrice,
		EstimatedProfit: res.NetProfit,
	}.WithDerived()

	if err := s.scans.Insert(ctx, rec); err != nil {
		s.logger.Warn("persist scan record",
			slog.String("id", rec.ID),
			slog.Any("error", err))
	}

	if res.Profitable {
		s.logger.Info("profitable opportunity",
			slog.String("direction", rec.Direction),
			slog.Float64("net_profit", res.NetProfit),
			slog.Float64("spread_pct", res.PriceSpreadPct))
		if s.signals != nil {
			if err := s.signals.PublishOpportunity(ctx, rec); err != nil {
				s.logger.Warn("publish opportunity", slog.Any("error", err))
			}
		}
		if s.alerts != nil {
			if err := s.alerts.OpportunityDetected(ctx, rec); err != nil {
				s.logger.Warn("send alert", slog.Any("error", err))
			}
		}
	}
}

// summarize rolls the just-finished pass into the daily metric row.
func (s *Scanner) summarize(ctx context.Context) {
	if s.metrics == nil {
		return
	}
	if err := s.metrics.RecomputeDay(ctx, time.Now().UTC()); err != nil {
		s.logger.Warn("recompute daily metrics", slog.Any("error", err))
	}
}

func (s *Scanner) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// enumeratePairs returns every unordered pair of exchanges, preserving the
// configured ordering.
func enumeratePairs(exchanges []domain.Exchange) [][2]domain.Exchange {
	var pairs [][2]domain.Exchange
	for i := 0; i < len(exchanges); i++ {
		for j := i + 1; j < len(exchanges); j++ {
			pairs = append(pairs, [2]domain.Exchange{exchanges[i], exchanges[j]})
		}
	}
	return pairs
}
