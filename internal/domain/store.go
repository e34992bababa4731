package domain

import (
	"context"
	"io"
	"time"
)

// PoolStateSource reads the current raw state of a pool from the external
// on-chain data source. Implementations treat timeouts and malformed
// responses uniformly as plain errors; classification into ReadError happens
// in the exchange reader once the retry budget is exhausted.
type PoolStateSource interface {
	PoolState(ctx context.Context, pairAddress string) (PoolState, error)
}

// ScanStore is the append-only log of scan records.
type ScanStore interface {
	Insert(ctx context.Context, rec ScanRecord) error
	ListRecent(ctx context.Context, limit int) ([]ScanRecord, error)
	ListProfitable(ctx context.Context, limit int) ([]ScanRecord, error)
	ListBefore(ctx context.Context, before time.Time) ([]ScanRecord, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// PriceFeedStore persists per-exchange price observations.
type PriceFeedStore interface {
	Insert(ctx context.Context, feed PriceFeed) error
	ListRecent(ctx context.Context, exchangeID string, limit int) ([]PriceFeed, error)
}

// MetricStore persists daily rollups derived from scan records.
type MetricStore interface {
	// RecomputeDay rebuilds the metric row for the given calendar date from
	// the scan records currently on disk. The operation is an idempotent
	// upsert keyed by date.
	RecomputeDay(ctx context.Context, date time.Time) error
	ListDays(ctx context.Context, days int) ([]DailyMetric, error)
}

// PriceCache caches the latest normalized price per exchange.
type PriceCache interface {
	SetPrice(ctx context.Context, exchangeID string, price float64, ts time.Time) error
	GetPrice(ctx context.Context, exchangeID string) (float64, time.Time, error)
}

// SignalBus broadcasts profitable opportunities to interested consumers
// (currently the WebSocket hub).
type SignalBus interface {
	PublishOpportunity(ctx context.Context, rec ScanRecord) error
}

// BlobWriter writes an object to cold storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}
