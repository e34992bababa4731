// Package scanner contains the arbitrage simulator and the periodic scan
// orchestrator.
package scanner

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/avelez/dexscan/internal/amm"
	"github.com/avelez/dexscan/internal/domain"
)

// PoolReader reads the current normalized pool state for one exchange.
type PoolReader interface {
	ReadPool(ctx context.Context, ex domain.Exchange) (domain.PoolReading, error)
}

// Simulator projects the outcome of a two-leg trade: buy the base asset on
// one exchange, sell it on another, net of swap fees and a fixed per-leg gas
// estimate.
type Simulator struct {
	reader       PoolReader
	gasPerLegUSD float64
	minProfit    float64
	logger       *slog.Logger
}

// NewSimulator creates a Simulator.
func NewSimulator(reader PoolReader, gasPerLegUSD, minProfit float64, logger *slog.Logger) *Simulator {
	return &Simulator{
		reader:       reader,
		gasPerLegUSD: gasPerLegUSD,
		minProfit:    minProfit,
		logger:       logger.With(slog.String("component", "simulator")),
	}
}

// Simulate evaluates buying tradeSize units of the base asset on buy and
// selling them on sell. Both pools are read concurrently; if either read
// fails no partial result is produced. Transient failures were already
// absorbed by the reader's retry budget, so a failure here is reported, not
// retried.
func (s *Simulator) Simulate(ctx context.Context, buy, sell domain.Exchange, tradeSize float64) (domain.SimulationResult, error) {
	var buyPool, sellPool domain.PoolReading

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		buyPool, err = s.reader.ReadPool(gctx, buy)
		return err
	})
	g.Go(func() error {
		var err error
		sellPool, err = s.reader.ReadPool(gctx, sell)
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.SimulationResult{}, fmt.Errorf("simulate %s -> %s: %w", buy.ID, sell.ID, err)
	}

	// Quote units needed to acquire tradeSize base on the buy side.
	quoteCost, err := amm.SwapIn(tradeSize, buyPool.QuoteReserve, buyPool.BaseReserve, buy.Fee)
	if err != nil {
		return domain.SimulationResult{}, fmt.Errorf("simulate %s -> %s: buy leg: %w", buy.ID, sell.ID, err)
	}

	// Quote units received for disposing of tradeSize base on the sell side.
	quoteProceeds, err := amm.SwapOut(tradeSize, sellPool.BaseReserve, sellPool.QuoteReserve, sell.Fee)
	if err != nil {
		return domain.SimulationResult{}, fmt.Errorf("simulate %s -> %s: sell leg: %w", buy.ID, sell.ID, err)
	}

	grossProfit := quoteProceeds - quoteCost
	gasEstimate := 2 * s.gasPerLegUSD // one transaction per leg
	netProfit := grossProfit - gasEstimate

	return domain.SimulationResult{
		BuyExchange:    buy.ID,
		SellExchange:   sell.ID,
		BuyPrice:       buyPool.Price,
		SellPrice:      sellPool.Price,
		TradeSize:      tradeSize,
		QuoteCost:      quoteCost,
		QuoteProceeds:  quoteProceeds,
		GrossProfit:    grossProfit,
		GasEstimate:    gasEstimate,
		NetProfit:      netProfit,
		Profitable:     netProfit > s.minProfit,
		PriceSpreadPct: (sellPool.Price - buyPool.Price) / buyPool.Price * 100,
	}, nil
}
