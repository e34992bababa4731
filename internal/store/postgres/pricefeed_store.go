package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/avelez/dexscan/internal/domain"
)

// PriceFeedStore implements domain.PriceFeedStore using PostgreSQL.
type PriceFeedStore struct {
	pool *pgxpool.Pool
}

// NewPriceFeedStore creates a PriceFeedStore backed by the given connection pool.
func NewPriceFeedStore(pool *pgxpool.Pool) *PriceFeedStore {
	return &PriceFeedStore{pool: pool}
}

// Insert records one price observation. The row ID is assigned by the
// database.
func (s *PriceFeedStore) Insert(ctx context.Context, feed domain.PriceFeed) error {
	const query = `
		INSERT INTO price_feeds (
			exchange, pair, price, reserve0_raw, reserve1_raw, observed_at
		) VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := s.pool.Exec(ctx, query,
		feed.Exchange, feed.Pair, feed.Price,
		feed.Reserve0Raw, feed.Reserve1Raw, feed.ObservedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert price feed %s: %w", feed.Exchange, err)
	}
	return nil
}

// ListRecent returns the most recent observations for one exchange, newest
// first.
func (s *PriceFeedStore) ListRecent(ctx context.Context, exchangeID string, limit int) ([]domain.PriceFeed, error) {
	query := `
		SELECT id, exchange, pair, price, reserve0_raw, reserve1_raw, observed_at
		FROM price_feeds
		WHERE exchange = $1
		ORDER BY observed_at DESC`
	args := []any{exchangeID}

	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list price feeds: %w", err)
	}
	defer rows.Close()

	var feeds []domain.PriceFeed
	for rows.Next() {
		var feed domain.PriceFeed
		if err := rows.Scan(
			&feed.ID, &feed.Exchange, &feed.Pair, &feed.Price,
			&feed.Reserve0Raw, &feed.Reserve1Raw, &feed.ObservedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan price feed row: %w", err)
		}
		feeds = append(feeds, feed)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list price feeds rows: %w", err)
	}
	return feeds, nil
}
