package scanner

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avelez/dexscan/internal/domain"
)

// fakeReader serves canned readings keyed by exchange ID and counts calls.
type fakeReader struct {
	mu       sync.Mutex
	readings map[string]domain.PoolReading
	failing  map[string]error
	calls    int
}

func (f *fakeReader) ReadPool(_ context.Context, ex domain.Exchange) (domain.PoolReading, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err, ok := f.failing[ex.ID]; ok {
		return domain.PoolReading{}, err
	}
	r, ok := f.readings[ex.ID]
	if !ok {
		return domain.PoolReading{}, errors.New("no reading configured")
	}
	return r, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

var (
	uniswap   = domain.Exchange{ID: "uniswap", Name: "Uniswap", PairAddress: "0x01", Fee: 0.003}
	sushiswap = domain.Exchange{ID: "sushiswap", Name: "Sushiswap", PairAddress: "0x02", Fee: 0.003}
	quickswap = domain.Exchange{ID: "quickswap", Name: "Quickswap", PairAddress: "0x03", Fee: 0.003}
)

// spreadReadings is a one-unit price spread: 100 quote/base on the buy side,
// 101 on the sell side.
func spreadReadings() map[string]domain.PoolReading {
	return map[string]domain.PoolReading{
		"uniswap":   {ExchangeID: "uniswap", BaseReserve: 1000, QuoteReserve: 100000, Price: 100},
		"sushiswap": {ExchangeID: "sushiswap", BaseReserve: 1000, QuoteReserve: 101000, Price: 101},
	}
}

func TestSimulateProfitableSpread(t *testing.T) {
	reader := &fakeReader{readings: spreadReadings()}
	sim := NewSimulator(reader, 0.05, 0.05, testLogger())

	res, err := sim.Simulate(context.Background(), uniswap, sushiswap, 1)
	require.NoError(t, err)

	// in = 100000·1/((1000−1)·0.997), out = 0.997·101000/(1000+0.997)
	assert.InDelta(t, 100.4013, res.QuoteCost, 1e-4)
	assert.InDelta(t, 100.5967, res.QuoteProceeds, 1e-4)
	assert.InDelta(t, res.QuoteProceeds-res.QuoteCost, res.GrossProfit, 1e-12)
	assert.InDelta(t, 0.1, res.GasEstimate, 1e-12)
	assert.InDelta(t, res.GrossProfit-0.1, res.NetProfit, 1e-12)
	assert.True(t, res.Profitable)
	assert.InDelta(t, 1.0, res.PriceSpreadPct, 1e-9)
	assert.Equal(t, "uniswap", res.BuyExchange)
	assert.Equal(t, "sushiswap", res.SellExchange)
}

func TestSimulateGasErasesEdge(t *testing.T) {
	reader := &fakeReader{readings: spreadReadings()}
	// Gross is ≈0.195; two legs at 0.15 each cost 0.30 and sink the trade.
	sim := NewSimulator(reader, 0.15, 0, testLogger())

	res, err := sim.Simulate(context.Background(), uniswap, sushiswap, 1)
	require.NoError(t, err)
	assert.Positive(t, res.GrossProfit)
	assert.Negative(t, res.NetProfit)
	assert.False(t, res.Profitable)
}

func TestSimulateReverseDirectionUnprofitable(t *testing.T) {
	reader := &fakeReader{readings: spreadReadings()}
	sim := NewSimulator(reader, 0.05, 0, testLogger())

	res, err := sim.Simulate(context.Background(), sushiswap, uniswap, 1)
	require.NoError(t, err)
	assert.Negative(t, res.NetProfit)
	assert.False(t, res.Profitable)
	assert.InDelta(t, (100.0-101.0)/101.0*100, res.PriceSpreadPct, 1e-9)
}

func TestSimulateReadFailure(t *testing.T) {
	readErr := &domain.ReadError{ExchangeID: "sushiswap", Err: errors.New("rpc timeout")}
	reader := &fakeReader{
		readings: spreadReadings(),
		failing:  map[string]error{"sushiswap": readErr},
	}
	sim := NewSimulator(reader, 0.05, 0, testLogger())

	_, err := sim.Simulate(context.Background(), uniswap, sushiswap, 1)
	require.Error(t, err)
	var re *domain.ReadError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "sushiswap", re.ExchangeID)
}

func TestSimulateTradeSizeExceedsReserve(t *testing.T) {
	reader := &fakeReader{readings: spreadReadings()}
	sim := NewSimulator(reader, 0.05, 0, testLogger())

	_, err := sim.Simulate(context.Background(), uniswap, sushiswap, 1000)
	require.Error(t, err)
}
