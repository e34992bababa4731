package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/avelez/dexscan/internal/domain"
)

// priceTTL bounds how long a cached price outlives its last refresh. A
// scanner that stops updating an exchange should not leave a stale price
// behind indefinitely.
const priceTTL = time.Hour

// PriceCache implements domain.PriceCache. Each exchange's latest normalized
// price lives in the hash "price:{exchangeID}" with fields "price" and "ts"
// (Unix nanoseconds).
type PriceCache struct {
	rdb *redis.Client
}

func NewPriceCache(c *Client) *PriceCache {
	return &PriceCache{rdb: c.rdb}
}

func priceKey(exchangeID string) string {
	return "price:" + exchangeID
}

// SetPrice records the latest observed price for an exchange and refreshes
// the key's TTL.
func (pc *PriceCache) SetPrice(ctx context.Context, exchangeID string, price float64, ts time.Time) error {
	key := priceKey(exchangeID)
	pipe := pc.rdb.Pipeline()
	pipe.HSet(ctx, key, map[string]interface{}{
		"price": strconv.FormatFloat(price, 'f', -1, 64),
		"ts":    strconv.FormatInt(ts.UnixNano(), 10),
	})
	pipe.Expire(ctx, key, priceTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set price %s: %w", exchangeID, err)
	}
	return nil
}

// GetPrice returns the latest cached price and its observation time, or
// domain.ErrNotFound when nothing has been cached for the exchange.
func (pc *PriceCache) GetPrice(ctx context.Context, exchangeID string) (float64, time.Time, error) {
	vals, err := pc.rdb.HGetAll(ctx, priceKey(exchangeID)).Result()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis: get price %s: %w", exchangeID, err)
	}
	price, ts, err := parsePriceEntry(vals)
	if err != nil {
		return 0, time.Time{}, err
	}
	return price, ts, nil
}

// GetPrices fetches cached prices for several exchanges in one pipelined
// round trip. Exchanges with no cached entry are simply absent from the
// result.
func (pc *PriceCache) GetPrices(ctx context.Context, exchangeIDs []string) (map[string]float64, error) {
	result := make(map[string]float64, len(exchangeIDs))
	if len(exchangeIDs) == 0 {
		return result, nil
	}

	pipe := pc.rdb.Pipeline()
	cmds := make(map[string]*redis.MapStringStringCmd, len(exchangeIDs))
	for _, id := range exchangeIDs {
		cmds[id] = pipe.HGetAll(ctx, priceKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis: get prices pipeline: %w", err)
	}

	for id, cmd := range cmds {
		vals, err := cmd.Result()
		if err != nil {
			continue
		}
		if price, _, err := parsePriceEntry(vals); err == nil {
			result[id] = price
		}
	}
	return result, nil
}

// parsePriceEntry decodes one price hash. An empty or partial hash maps to
// domain.ErrNotFound.
func parsePriceEntry(vals map[string]string) (float64, time.Time, error) {
	priceStr, okP := vals["price"]
	tsStr, okT := vals["ts"]
	if !okP || !okT {
		return 0, time.Time{}, domain.ErrNotFound
	}
	price, err := strconv.ParseFloat(priceStr, 64)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis: parse price: %w", err)
	}
	tsNano, err := strconv.ParseInt(tsStr, 10, 64)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis: parse ts: %w", err)
	}
	return price, time.Unix(0, tsNano), nil
}

var _ domain.PriceCache = (*PriceCache)(nil)
