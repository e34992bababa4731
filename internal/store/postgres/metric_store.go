package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/avelez/dexscan/internal/domain"
)

// MetricStore implements domain.MetricStore using PostgreSQL.
type MetricStore struct {
	pool *pgxpool.Pool
}

// NewMetricStore creates a MetricStore backed by the given connection pool.
func NewMetricStore(pool *pgxpool.Pool) *MetricStore {
	return &MetricStore{pool: pool}
}

// RecomputeDay rebuilds the metric row for the given UTC calendar date from
// the scan records currently stored. The upsert is keyed by date, so
// repeated recomputation over unchanged records is a no-op. Day bounds are
// passed as explicit UTC timestamps; a bare ::date comparison would move
// the boundary with the server's session timezone.
func (s *MetricStore) RecomputeDay(ctx context.Context, date time.Time) error {
	const query = `
		INSERT INTO daily_metrics (
			date, total_scans, profitable_scans, total_profit, avg_profit, max_profit
		)
		SELECT
			$1::date,
			COUNT(*),
			COUNT(*) FILTER (WHERE estimated_profit > 0),
			COALESCE(SUM(estimated_profit), 0),
			COALESCE(AVG(estimated_profit), 0),
			COALESCE(MAX(estimated_profit), 0)
		FROM arbitrage_scans
		WHERE ts >= $2 AND ts < $3
		ON CONFLICT (date) DO UPDATE SET
			total_scans      = EXCLUDED.total_scans,
			profitable_scans = EXCLUDED.profitable_scans,
			total_profit     = EXCLUDED.total_profit,
			avg_profit       = EXCLUDED.avg_profit,
			max_profit       = EXCLUDED.max_profit`

	d := date.UTC()
	start := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	day := start.Format("2006-01-02")
	if _, err := s.pool.Exec(ctx, query, day, start, end); err != nil {
		return fmt.Errorf("postgres: recompute metrics for %s: %w", day, err)
	}
	return nil
}

// ListDays returns the most recent daily rollups, newest first.
func (s *MetricStore) ListDays(ctx context.Context, days int) ([]domain.DailyMetric, error) {
	query := `
		SELECT date, total_scans, profitable_scans, total_profit, avg_profit, max_profit
		FROM daily_metrics
		ORDER BY date DESC`
	args := []any{}

	if days > 0 {
		query += " LIMIT $1"
		args = append(args, days)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list daily metrics: %w", err)
	}
	defer rows.Close()

	var metrics []domain.DailyMetric
	for rows.Next() {
		var m domain.DailyMetric
		if err := rows.Scan(
			&m.Date, &m.TotalScans, &m.ProfitableScans,
			&m.TotalProfit, &m.AvgProfit, &m.MaxProfit,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan daily metric row: %w", err)
		}
		metrics = append(metrics, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list daily metrics rows: %w", err)
	}
	return metrics, nil
}
