package exchange

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/avelez/dexscan/internal/amm"
	"github.com/avelez/dexscan/internal/domain"
)

// Reader fetches and normalizes pool state for configured exchanges. A
// successful read is additionally recorded as a price-feed observation and
// cached as the exchange's latest price; both side effects are best-effort
// and never fail the read itself.
type Reader struct {
	source domain.PoolStateSource
	feeds  domain.PriceFeedStore // optional
	prices domain.PriceCache     // optional
	base   amm.Asset
	quote  amm.Asset
	pair   string
	retry  RetryPolicy
	logger *slog.Logger
}

// NewReader creates a Reader. feeds and prices may be nil, in which case the
// corresponding side effects are skipped.
func NewReader(
	source domain.PoolStateSource,
	feeds domain.PriceFeedStore,
	prices domain.PriceCache,
	base, quote amm.Asset,
	pair string,
	retry RetryPolicy,
	logger *slog.Logger,
) *Reader {
	return &Reader{
		source: source,
		feeds:  feeds,
		prices: prices,
		base:   base,
		quote:  quote,
		pair:   pair,
		retry:  retry,
		logger: logger.With(slog.String("component", "reader")),
	}
}

// ReadPool fetches the current pool state for ex and normalizes it into a
// PoolReading. Transient source failures are retried per the configured
// policy; normalization failures indicate misconfiguration and propagate
// immediately. When the retry budget is exhausted, the returned error is a
// *domain.ReadError carrying the exchange id.
func (r *Reader) ReadPool(ctx context.Context, ex domain.Exchange) (domain.PoolReading, error) {
	var (
		reading domain.PoolReading
		state   domain.PoolState
	)

	err := r.retry.Do(ctx, func(ctx context.Context) error {
		var err error
		state, err = r.source.PoolState(ctx, ex.PairAddress)
		if err != nil {
			r.logger.WarnContext(ctx, "pool read attempt failed",
				slog.String("exchange", ex.ID),
				slog.String("error", err.Error()),
			)
			return err
		}

		reading, err = amm.Normalize(state, r.base, r.quote)
		if err != nil {
			// Wrong pair composition or corrupt reserves: retrying cannot
			// help.
			return Permanent(err)
		}
		reading.ExchangeID = ex.ID
		return nil
	})
	if err != nil {
		var nerr *domain.NormalizationError
		if errors.As(err, &nerr) {
			return domain.PoolReading{}, err
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return domain.PoolReading{}, err
		}
		return domain.PoolReading{}, &domain.ReadError{ExchangeID: ex.ID, Err: err}
	}

	r.recordObservation(ctx, ex, state, reading)
	return reading, nil
}

// recordObservation persists the reading as a price-feed row and refreshes
// the price cache. Persistence failures are logged and swallowed: losing an
// observation must not abort the read that produced it.
func (r *Reader) recordObservation(ctx context.Context, ex domain.Exchange, state domain.PoolState, reading domain.PoolReading) {
	now := time.Now().UTC()

	if r.feeds != nil {
		feed := domain.PriceFeed{
			Exchange:    ex.ID,
			Pair:        r.pair,
			Price:       reading.Price,
			Reserve0Raw: state.Reserve0,
			Reserve1Raw: state.Reserve1,
			ObservedAt:  now,
		}
		if err := r.feeds.Insert(ctx, feed); err != nil {
			r.logger.WarnContext(ctx, "failed to record price feed",
				slog.String("exchange", ex.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	if r.prices != nil {
		if err := r.prices.SetPrice(ctx, ex.ID, reading.Price, now); err != nil {
			r.logger.WarnContext(ctx, "failed to cache price",
				slog.String("exchange", ex.ID),
				slog.String("error", err.Error()),
			)
		}
	}
}
