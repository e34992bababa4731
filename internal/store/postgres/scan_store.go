package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/avelez/dexscan/internal/domain"
)

// ScanStore implements domain.ScanStore using PostgreSQL.
type ScanStore struct {
	pool *pgxpool.Pool
}

// NewScanStore creates a ScanStore backed by the given connection pool.
func NewScanStore(pool *pgxpool.Pool) *ScanStore {
	return &ScanStore{pool: pool}
}

const scanSelectCols = `id, ts, exchange_a, exchange_b, pair, trade_size,
	direction, buy_price, sell_price,
	price_difference, price_difference_pct, estimated_profit`

// Insert appends a scan record. Records are immutable after insert.
func (s *ScanStore) Insert(ctx context.Context, rec domain.ScanRecord) error {
	const query = `
		INSERT INTO arbitrage_scans (
			id, ts, exchange_a, exchange_b, pair, trade_size,
			direction, buy_price, sell_price,
			price_difference, price_difference_pct, estimated_profit
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9,
			$10, $11, $12
		)`

	_, err := s.pool.Exec(ctx, query,
		rec.ID, rec.Timestamp, rec.ExchangeA, rec.ExchangeB, rec.Pair, rec.TradeSize,
		rec.Direction, rec.BuyPrice, rec.SellPrice,
		rec.PriceDifference, rec.PriceDifferencePct, rec.EstimatedProfit,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert scan %s: %w", rec.ID, err)
	}
	return nil
}

// ListRecent returns the most recent scan records, newest first.
func (s *ScanStore) ListRecent(ctx context.Context, limit int) ([]domain.ScanRecord, error) {
	query := `SELECT ` + scanSelectCols + ` FROM arbitrage_scans ORDER BY ts DESC`
	args := []any{}

	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	return s.list(ctx, query, args...)
}

// ListProfitable returns the most recent records with a positive estimated
// profit, newest first.
func (s *ScanStore) ListProfitable(ctx context.Context, limit int) ([]domain.ScanRecord, error) {
	query := `SELECT ` + scanSelectCols + `
		FROM arbitrage_scans
		WHERE estimated_profit > 0
		ORDER BY ts DESC`
	args := []any{}

	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	return s.list(ctx, query, args...)
}

// ListBefore returns every record strictly older than the cutoff, oldest
// first, for archival.
func (s *ScanStore) ListBefore(ctx context.Context, before time.Time) ([]domain.ScanRecord, error) {
	query := `SELECT ` + scanSelectCols + `
		FROM arbitrage_scans
		WHERE ts < $1
		ORDER BY ts ASC`
	return s.list(ctx, query, before)
}

// DeleteBefore removes every record strictly older than the cutoff and
// reports how many rows were deleted.
func (s *ScanStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM arbitrage_scans WHERE ts < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete scans before %s: %w", before.Format(time.RFC3339), err)
	}
	return tag.RowsAffected(), nil
}

func (s *ScanStore) list(ctx context.Context, query string, args ...any) ([]domain.ScanRecord, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list scans: %w", err)
	}
	defer rows.Close()

	var recs []domain.ScanRecord
	for rows.Next() {
		var rec domain.ScanRecord
		if err := rows.Scan(
			&rec.ID, &rec.Timestamp, &rec.ExchangeA, &rec.ExchangeB, &rec.Pair, &rec.TradeSize,
			&rec.Direction, &rec.BuyPrice, &rec.SellPrice,
			&rec.PriceDifference, &rec.PriceDifferencePct, &rec.EstimatedProfit,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan record row: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list scans rows: %w", err)
	}
	return recs, nil
}
