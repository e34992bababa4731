package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avelez/dexscan/internal/domain"
)

type stubScanHistory struct {
	recent     []domain.ScanRecord
	profitable []domain.ScanRecord
	lastLimit  int
	err        error
}

func (s *stubScanHistory) ListRecent(_ context.Context, limit int) ([]domain.ScanRecord, error) {
	s.lastLimit = limit
	return s.recent, s.err
}

func (s *stubScanHistory) ListProfitable(_ context.Context, limit int) ([]domain.ScanRecord, error) {
	s.lastLimit = limit
	return s.profitable, s.err
}

type stubMetricHistory struct {
	metrics  []domain.DailyMetric
	lastDays int
}

func (s *stubMetricHistory) ListDays(_ context.Context, days int) ([]domain.DailyMetric, error) {
	s.lastDays = days
	return s.metrics, nil
}

type stubPrices struct {
	prices map[string]float64
	err    error
}

func (s *stubPrices) GetPrices(context.Context, []string) (map[string]float64, error) {
	return s.prices, s.err
}

type stubPriceHistory struct {
	feeds     []domain.PriceFeed
	lastID    string
	lastLimit int
	err       error
}

func (s *stubPriceHistory) ListRecent(_ context.Context, exchangeID string, limit int) ([]domain.PriceFeed, error) {
	s.lastID = exchangeID
	s.lastLimit = limit
	return s.feeds, s.err
}

type stubLatestPrice struct {
	price float64
	ts    time.Time
	err   error
}

func (s *stubLatestPrice) GetPrice(context.Context, string) (float64, time.Time, error) {
	return s.price, s.ts, s.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body
}

func TestListOpportunitiesEnvelope(t *testing.T) {
	scans := &stubScanHistory{recent: []domain.ScanRecord{
		{ID: "a", Direction: "BuyUniswap_SellSushiswap", EstimatedProfit: 0.5},
		{ID: "b", Direction: "BuySushiswap_SellUniswap", EstimatedProfit: -0.2},
	}}
	h := NewOpportunityHandler(scans, testLogger())

	rr := httptest.NewRecorder()
	h.ListRecent(rr, httptest.NewRequest(http.MethodGet, "/api/opportunities", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json; charset=utf-8", rr.Header().Get("Content-Type"))

	body := decodeEnvelope(t, rr)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(2), body["count"])
	assert.Len(t, body["data"], 2)
	assert.Equal(t, 50, scans.lastLimit)
}

func TestListOpportunitiesEmptyIsArray(t *testing.T) {
	h := NewOpportunityHandler(&stubScanHistory{}, testLogger())

	rr := httptest.NewRecorder()
	h.ListRecent(rr, httptest.NewRequest(http.MethodGet, "/api/opportunities", nil))

	body := decodeEnvelope(t, rr)
	assert.Equal(t, float64(0), body["count"])
	data, ok := body["data"].([]any)
	require.True(t, ok, "data must be an array, got %T", body["data"])
	assert.Empty(t, data)
}

func TestListOpportunitiesLimitClamped(t *testing.T) {
	scans := &stubScanHistory{}
	h := NewOpportunityHandler(scans, testLogger())

	rr := httptest.NewRecorder()
	h.ListRecent(rr, httptest.NewRequest(http.MethodGet, "/api/opportunities?limit=9999", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 500, scans.lastLimit)
}

func TestListOpportunitiesStoreError(t *testing.T) {
	h := NewOpportunityHandler(&stubScanHistory{err: errors.New("pool closed")}, testLogger())

	rr := httptest.NewRecorder()
	h.ListProfitable(rr, httptest.NewRequest(http.MethodGet, "/api/opportunities/profitable", nil))

	require.Equal(t, http.StatusInternalServerError, rr.Code)
	body := decodeEnvelope(t, rr)
	assert.Equal(t, false, body["success"])
	assert.NotEmpty(t, body["error"])
}

func TestListDailySummary(t *testing.T) {
	metrics := &stubMetricHistory{metrics: []domain.DailyMetric{
		{Date: time.Date(2026, 8, 27, 0, 0, 0, 0, time.UTC), TotalScans: 12, ProfitableScans: 3},
	}}
	h := NewSummaryHandler(metrics, testLogger())

	rr := httptest.NewRecorder()
	h.ListDaily(rr, httptest.NewRequest(http.MethodGet, "/api/summary/daily?days=7", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 7, metrics.lastDays)
	body := decodeEnvelope(t, rr)
	assert.Equal(t, float64(1), body["count"])
}

func TestListExchangesWithCachedPrices(t *testing.T) {
	exchanges := []domain.Exchange{
		{ID: "uniswap", Name: "Uniswap", Fee: 0.003},
		{ID: "sushiswap", Name: "Sushiswap", Fee: 0.003},
	}
	prices := &stubPrices{prices: map[string]float64{"uniswap": 100.25}}
	h := NewExchangeHandler(exchanges, prices, testLogger())

	rr := httptest.NewRecorder()
	h.List(rr, httptest.NewRequest(http.MethodGet, "/api/exchanges", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	body := decodeEnvelope(t, rr)
	data := body["data"].([]any)
	require.Len(t, data, 2)

	first := data[0].(map[string]any)
	assert.Equal(t, "uniswap", first["id"])
	assert.Equal(t, 100.25, first["last_price"])

	second := data[1].(map[string]any)
	_, hasPrice := second["last_price"]
	assert.False(t, hasPrice)
}

func TestListExchangesCacheFailureDegrades(t *testing.T) {
	exchanges := []domain.Exchange{{ID: "uniswap", Name: "Uniswap", Fee: 0.003}}
	h := NewExchangeHandler(exchanges, &stubPrices{err: errors.New("redis down")}, testLogger())

	rr := httptest.NewRecorder()
	h.List(rr, httptest.NewRequest(http.MethodGet, "/api/exchanges", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	body := decodeEnvelope(t, rr)
	assert.Equal(t, float64(1), body["count"])
}

func TestPriceHistoryWithCachedLatest(t *testing.T) {
	exchanges := []domain.Exchange{{ID: "uniswap", Name: "Uniswap", Fee: 0.003}}
	feeds := &stubPriceHistory{feeds: []domain.PriceFeed{
		{ID: 2, Exchange: "uniswap", Pair: "WETH-USDC", Price: 100.3},
		{ID: 1, Exchange: "uniswap", Pair: "WETH-USDC", Price: 100.1},
	}}
	cachedAt := time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC)
	h := NewPriceHandler(exchanges, feeds, &stubLatestPrice{price: 100.3, ts: cachedAt}, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/exchanges/uniswap/prices?limit=2", nil)
	req.SetPathValue("id", "uniswap")
	rr := httptest.NewRecorder()
	h.History(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "uniswap", feeds.lastID)
	assert.Equal(t, 2, feeds.lastLimit)

	body := decodeEnvelope(t, rr)
	data := body["data"].(map[string]any)
	assert.Equal(t, "uniswap", data["exchange"].(map[string]any)["id"])
	assert.Len(t, data["feeds"], 2)
	latest := data["latest"].(map[string]any)
	assert.Equal(t, 100.3, latest["price"])
}

func TestPriceHistoryCacheMissOmitsLatest(t *testing.T) {
	exchanges := []domain.Exchange{{ID: "uniswap", Name: "Uniswap", Fee: 0.003}}
	h := NewPriceHandler(exchanges, &stubPriceHistory{}, &stubLatestPrice{err: domain.ErrNotFound}, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/exchanges/uniswap/prices", nil)
	req.SetPathValue("id", "uniswap")
	rr := httptest.NewRecorder()
	h.History(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	body := decodeEnvelope(t, rr)
	data := body["data"].(map[string]any)
	_, hasLatest := data["latest"]
	assert.False(t, hasLatest)
	feeds, ok := data["feeds"].([]any)
	require.True(t, ok, "feeds must be an array, got %T", data["feeds"])
	assert.Empty(t, feeds)
}

func TestPriceHistoryUnknownExchange(t *testing.T) {
	h := NewPriceHandler([]domain.Exchange{{ID: "uniswap"}}, &stubPriceHistory{}, nil, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/exchanges/pancake/prices", nil)
	req.SetPathValue("id", "pancake")
	rr := httptest.NewRecorder()
	h.History(rr, req)

	require.Equal(t, http.StatusNotFound, rr.Code)
	body := decodeEnvelope(t, rr)
	assert.Equal(t, false, body["success"])
}

func TestHealthCheckDegraded(t *testing.T) {
	deps := map[string]Pinger{
		"postgres": PingFunc(func(context.Context) error { return nil }),
		"redis":    PingFunc(func(context.Context) error { return errors.New("connection refused") }),
	}
	h := NewHealthHandler(deps, testLogger())

	rr := httptest.NewRecorder()
	h.HealthCheck(rr, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	body := decodeEnvelope(t, rr)
	assert.Equal(t, "degraded", body["status"])
	checks := body["checks"].(map[string]any)
	assert.Equal(t, "ok", checks["postgres"])
	assert.Equal(t, "unreachable", checks["redis"])
}

func TestHealthCheckOK(t *testing.T) {
	h := NewHealthHandler(map[string]Pinger{
		"postgres": PingFunc(func(context.Context) error { return nil }),
	}, testLogger())

	rr := httptest.NewRecorder()
	h.HealthCheck(rr, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	body := decodeEnvelope(t, rr)
	assert.Equal(t, "ok", body["status"])
}

func TestBanner(t *testing.T) {
	h := NewRootHandler("WETH-USDC", "full", time.Now().Add(-time.Minute))

	rr := httptest.NewRecorder()
	h.Banner(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	body := decodeEnvelope(t, rr)
	assert.Equal(t, "dexscan", body["service"])
	assert.Equal(t, "WETH-USDC", body["pair"])
	assert.NotEmpty(t, body["endpoints"])
}
