// Package domain defines the core data model of the arbitrage scanner and
// the store interfaces implemented by the persistence and cache layers.
package domain

import (
	"fmt"
	"time"
)

// Exchange describes one constant-product venue that the scanner samples.
// Descriptors are loaded from configuration at startup and are immutable for
// the lifetime of the process.
type Exchange struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	PairAddress string  `json:"pair_address"`
	Fee         float64 `json:"fee"` // proportional swap fee, e.g. 0.003
}

// PoolState is a raw point-in-time snapshot of a pool as reported by the
// on-chain data source: token identities by slot plus unscaled reserves.
type PoolState struct {
	Token0   string
	Token1   string
	Reserve0 float64
	Reserve1 float64
}

// PoolReading is a normalized pool snapshot. Reserves are in human units
// (fixed-point scale removed) and Price is quote per base. Both reserves are
// strictly positive; a reading violating that is never produced.
type PoolReading struct {
	ExchangeID   string
	BaseReserve  float64
	QuoteReserve float64
	Price        float64
}

// SimulationResult is the outcome of one simulated two-leg trade: buy
// TradeSize units of the base asset on BuyExchange, sell them on
// SellExchange, net of swap fees and a fixed per-leg gas estimate.
type SimulationResult struct {
	BuyExchange    string  `json:"buy_exchange"`
	SellExchange   string  `json:"sell_exchange"`
	BuyPrice       float64 `json:"buy_price"`
	SellPrice      float64 `json:"sell_price"`
	TradeSize      float64 `json:"trade_size"`
	QuoteCost      float64 `json:"quote_cost"`
	QuoteProceeds  float64 `json:"quote_proceeds"`
	GrossProfit    float64 `json:"gross_profit"`
	GasEstimate    float64 `json:"gas_estimate"`
	NetProfit      float64 `json:"net_profit"`
	Profitable     bool    `json:"profitable"`
	PriceSpreadPct float64 `json:"price_spread_pct"`
}

// ScanRecord is the persisted form of one simulated direction within a scan
// pass. Records are append-only and never mutated after insert.
type ScanRecord struct {
	ID                 string    `json:"id"`
	Timestamp          time.Time `json:"timestamp"`
	ExchangeA          string    `json:"exchange_a"` // buy side
	ExchangeB          string    `json:"exchange_b"` // sell side
	Pair               string    `json:"pair"`
	TradeSize          float64   `json:"trade_size"`
	Direction          string    `json:"direction"`
	BuyPrice           float64   `json:"buy_price"`
	SellPrice          float64   `json:"sell_price"`
	PriceDifference    float64   `json:"price_difference"`
	PriceDifferencePct float64   `json:"price_difference_pct"`
	EstimatedProfit    float64   `json:"estimated_profit"`
}

// WithDerived returns a copy of the record with PriceDifference and
// PriceDifferencePct recomputed from the buy and sell prices. The percentage
// uses the buy price as denominator regardless of direction, matching how
// the stored history has always been interpreted.
func (r ScanRecord) WithDerived() ScanRecord {
	diff := r.SellPrice - r.BuyPrice
	if diff < 0 {
		diff = -diff
	}
	r.PriceDifference = diff
	if r.BuyPrice != 0 {
		r.PriceDifferencePct = diff / r.BuyPrice * 100
	}
	return r
}

// DirectionLabel builds the canonical direction string for a buy/sell pair,
// e.g. "BuyUniswap_SellSushiswap".
func DirectionLabel(buyExchange, sellExchange string) string {
	return fmt.Sprintf("Buy%s_Sell%s", buyExchange, sellExchange)
}

// PriceFeed is one observed normalized price for an exchange, recorded as a
// side effect of every successful pool read.
type PriceFeed struct {
	ID          int64     `json:"id"`
	Exchange    string    `json:"exchange"`
	Pair        string    `json:"pair"`
	Price       float64   `json:"price"`
	Reserve0Raw float64   `json:"reserve0_raw"`
	Reserve1Raw float64   `json:"reserve1_raw"`
	ObservedAt  time.Time `json:"observed_at"`
}

// DailyMetric is the per-calendar-date rollup of scan records. It is derived
// data: recomputing it for a date with unchanged scan records yields an
// identical row.
type DailyMetric struct {
	Date            time.Time `json:"date"`
	TotalScans      int64     `json:"total_scans"`
	ProfitableScans int64     `json:"profitable_scans"`
	TotalProfit     float64   `json:"total_profit"`
	AvgProfit       float64   `json:"avg_profit"`
	MaxProfit       float64   `json:"max_profit"`
}
