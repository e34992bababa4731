package scanner

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avelez/dexscan/internal/domain"
)

type memScanStore struct {
	mu      sync.Mutex
	records []domain.ScanRecord
}

func (m *memScanStore) Insert(_ context.Context, rec domain.ScanRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

func (m *memScanStore) all() []domain.ScanRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.ScanRecord(nil), m.records...)
}

func (m *memScanStore) ListRecent(context.Context, int) ([]domain.ScanRecord, error) {
	return m.all(), nil
}

func (m *memScanStore) ListProfitable(context.Context, int) ([]domain.ScanRecord, error) {
	return nil, nil
}

func (m *memScanStore) ListBefore(context.Context, time.Time) ([]domain.ScanRecord, error) {
	return nil, nil
}

func (m *memScanStore) DeleteBefore(context.Context, time.Time) (int64, error) {
	return 0, nil
}

type memMetricStore struct {
	mu    sync.Mutex
	calls int
}

func (m *memMetricStore) RecomputeDay(context.Context, time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return nil
}

func (m *memMetricStore) ListDays(context.Context, int) ([]domain.DailyMetric, error) {
	return nil, nil
}

type memSignalBus struct {
	mu        sync.Mutex
	published []domain.ScanRecord
}

func (m *memSignalBus) PublishOpportunity(_ context.Context, rec domain.ScanRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, rec)
	return nil
}

func threeExchangeReadings() map[string]domain.PoolReading {
	r := spreadReadings()
	r["quickswap"] = domain.PoolReading{ExchangeID: "quickswap", BaseReserve: 2000, QuoteReserve: 201000, Price: 100.5}
	return r
}

type memAlerter struct {
	mu     sync.Mutex
	alerts []domain.ScanRecord
}

func (m *memAlerter) OpportunityDetected(_ context.Context, rec domain.ScanRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts = append(m.alerts, rec)
	return nil
}

func newTestScanner(cfg Config, reader PoolReader, scans domain.ScanStore, metrics domain.MetricStore, signals domain.SignalBus, exchanges ...domain.Exchange) *Scanner {
	sim := NewSimulator(reader, 0.05, 0.05, testLogger())
	return New(cfg, exchanges, sim, scans, metrics, signals, nil, testLogger())
}

func TestScanOncePersistsEveryDirection(t *testing.T) {
	reader := &fakeReader{readings: threeExchangeReadings()}
	scans := &memScanStore{}
	metrics := &memMetricStore{}
	cfg := Config{Pair: "WETH-USDC", TradeSize: 1, PollInterval: time.Minute}

	s := newTestScanner(cfg, reader, scans, metrics, nil, uniswap, sushiswap, quickswap)
	s.ScanOnce(context.Background())

	recs := scans.all()
	require.Len(t, recs, 6) // 3 unordered pairs, both directions each

	seen := make(map[string]bool)
	for _, rec := range recs {
		assert.NotEmpty(t, rec.ID)
		assert.Equal(t, "WETH-USDC", rec.Pair)
		assert.Equal(t, 1.0, rec.TradeSize)
		assert.False(t, rec.Timestamp.IsZero())
		assert.GreaterOrEqual(t, rec.PriceDifference, 0.0)
		seen[rec.Direction] = true
	}
	assert.True(t, seen["BuyUniswap_SellSushiswap"])
	assert.True(t, seen["BuySushiswap_SellUniswap"])

	assert.Equal(t, 1, metrics.calls)
}

func TestScanOncePairIsolation(t *testing.T) {
	reader := &fakeReader{
		readings: spreadReadings(),
		failing:  map[string]error{"quickswap": errors.New("rpc unreachable")},
	}
	scans := &memScanStore{}
	metrics := &memMetricStore{}
	cfg := Config{Pair: "WETH-USDC", TradeSize: 1, PollInterval: time.Minute}

	s := newTestScanner(cfg, reader, scans, metrics, nil, uniswap, sushiswap, quickswap)
	s.ScanOnce(context.Background())

	// Pairs touching the failing exchange produce nothing; the healthy pair
	// still yields both directions, and the pass still summarizes.
	recs := scans.all()
	require.Len(t, recs, 2)
	for _, rec := range recs {
		assert.NotContains(t, rec.Direction, "Quickswap")
	}
	assert.Equal(t, 1, metrics.calls)
}

func TestScanOncePublishesProfitableOnly(t *testing.T) {
	reader := &fakeReader{readings: spreadReadings()}
	scans := &memScanStore{}
	signals := &memSignalBus{}
	cfg := Config{Pair: "WETH-USDC", TradeSize: 1, PollInterval: time.Minute}

	s := newTestScanner(cfg, reader, scans, &memMetricStore{}, signals, uniswap, sushiswap)
	s.ScanOnce(context.Background())

	require.Len(t, scans.all(), 2)
	require.Len(t, signals.published, 1)
	assert.Equal(t, "BuyUniswap_SellSushiswap", signals.published[0].Direction)
}

func TestScanOnceAlertsOnProfitable(t *testing.T) {
	reader := &fakeReader{readings: spreadReadings()}
	scans := &memScanStore{}
	alerts := &memAlerter{}
	cfg := Config{Pair: "WETH-USDC", TradeSize: 1, PollInterval: time.Minute}

	sim := NewSimulator(reader, 0.05, 0.05, testLogger())
	s := New(cfg, []domain.Exchange{uniswap, sushiswap}, sim, scans, &memMetricStore{}, nil, alerts, testLogger())
	s.ScanOnce(context.Background())

	require.Len(t, alerts.alerts, 1)
	assert.Equal(t, "BuyUniswap_SellSushiswap", alerts.alerts[0].Direction)
}

func TestScanOnceConcurrentPairs(t *testing.T) {
	reader := &fakeReader{readings: threeExchangeReadings()}
	scans := &memScanStore{}
	cfg := Config{Pair: "WETH-USDC", TradeSize: 1, PollInterval: time.Minute, MaxConcurrentPairs: 3}

	s := newTestScanner(cfg, reader, scans, &memMetricStore{}, nil, uniswap, sushiswap, quickswap)
	s.ScanOnce(context.Background())

	assert.Len(t, scans.all(), 6)
}

func TestScanOnceDropsWhileInFlight(t *testing.T) {
	reader := &fakeReader{readings: spreadReadings()}
	scans := &memScanStore{}
	cfg := Config{Pair: "WETH-USDC", TradeSize: 1, PollInterval: time.Minute}

	s := newTestScanner(cfg, reader, scans, &memMetricStore{}, nil, uniswap, sushiswap)
	s.inFlight.Store(true)
	s.ScanOnce(context.Background())
	assert.Empty(t, scans.all())

	s.inFlight.Store(false)
	s.ScanOnce(context.Background())
	assert.Len(t, scans.all(), 2)
}

func TestRunStopsOnCancel(t *testing.T) {
	reader := &fakeReader{readings: spreadReadings()}
	scans := &memScanStore{}
	cfg := Config{Pair: "WETH-USDC", TradeSize: 1, PollInterval: time.Hour}

	s := newTestScanner(cfg, reader, scans, &memMetricStore{}, nil, uniswap, sushiswap)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	// The initial pass runs before the first tick.
	require.Eventually(t, func() bool { return len(scans.all()) == 2 }, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestEnumeratePairs(t *testing.T) {
	pairs := enumeratePairs([]domain.Exchange{uniswap, sushiswap, quickswap})
	require.Len(t, pairs, 3)
	assert.Equal(t, "uniswap", pairs[0][0].ID)
	assert.Equal(t, "sushiswap", pairs[0][1].ID)
	assert.Equal(t, "quickswap", pairs[2][1].ID)
}
