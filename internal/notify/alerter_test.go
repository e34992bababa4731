package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avelez/dexscan/internal/domain"
)

type fakeSender struct {
	mu   sync.Mutex
	name string
	sent []string
	fail bool
}

func (f *fakeSender) Send(_ context.Context, title, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("webhook 500")
	}
	f.sent = append(f.sent, title)
	return nil
}

func (f *fakeSender) Name() string { return f.name }

func testRecord(direction string) domain.ScanRecord {
	return domain.ScanRecord{
		ID:              "rec-1",
		Pair:            "WETH/USDC",
		ExchangeA:       "Uniswap",
		ExchangeB:       "Sushiswap",
		Direction:       direction,
		BuyPrice:        100,
		SellPrice:       101,
		TradeSize:       1,
		EstimatedProfit: 0.42,
	}
}

func TestAlerterDispatchesToAllSenders(t *testing.T) {
	tg := &fakeSender{name: "telegram"}
	dc := &fakeSender{name: "discord"}
	a := NewAlerter([]Sender{tg, dc}, 0, slog.New(slog.DiscardHandler))

	err := a.OpportunityDetected(context.Background(), testRecord("BuyUniswap_SellSushiswap"))
	require.NoError(t, err)
	assert.Len(t, tg.sent, 1)
	assert.Len(t, dc.sent, 1)
	assert.Contains(t, tg.sent[0], "WETH/USDC")
}

func TestAlerterCooldownPerDirection(t *testing.T) {
	s := &fakeSender{name: "telegram"}
	a := NewAlerter([]Sender{s}, time.Minute, slog.New(slog.DiscardHandler))

	ctx := context.Background()
	require.NoError(t, a.OpportunityDetected(ctx, testRecord("BuyUniswap_SellSushiswap")))
	require.NoError(t, a.OpportunityDetected(ctx, testRecord("BuyUniswap_SellSushiswap")))
	// A different direction is not throttled.
	require.NoError(t, a.OpportunityDetected(ctx, testRecord("BuySushiswap_SellUniswap")))

	assert.Len(t, s.sent, 2)
}

func TestAlerterPartialFailure(t *testing.T) {
	bad := &fakeSender{name: "telegram", fail: true}
	good := &fakeSender{name: "discord"}
	a := NewAlerter([]Sender{bad, good}, 0, slog.New(slog.DiscardHandler))

	err := a.OpportunityDetected(context.Background(), testRecord("BuyUniswap_SellSushiswap"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "telegram")
	// The healthy sender still delivered.
	assert.Len(t, good.sent, 1)
}

func TestAlerterNoSenders(t *testing.T) {
	a := NewAlerter(nil, time.Minute, slog.New(slog.DiscardHandler))
	assert.NoError(t, a.OpportunityDetected(context.Background(), testRecord("BuyUniswap_SellSushiswap")))
}
