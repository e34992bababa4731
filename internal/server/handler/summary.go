package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/avelez/dexscan/internal/domain"
)

// MetricHistory is the slice of the metric store the summary endpoint needs.
type MetricHistory interface {
	ListDays(ctx context.Context, days int) ([]domain.DailyMetric, error)
}

// SummaryHandler serves the daily rollup endpoint.
type SummaryHandler struct {
	metrics MetricHistory
	logger  *slog.Logger
}

// NewSummaryHandler creates a SummaryHandler.
func NewSummaryHandler(metrics MetricHistory, logger *slog.Logger) *SummaryHandler {
	return &SummaryHandler{metrics: metrics, logger: logger}
}

// ListDaily returns the most recent daily metric rollups.
// GET /api/summary/daily?days=N
func (h *SummaryHandler) ListDaily(w http.ResponseWriter, r *http.Request) {
	days := 30
	if v := r.URL.Query().Get("days"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			days = n
		}
	}
	if days > 365 {
		days = 365
	}

	metrics, err := h.metrics.ListDays(r.Context(), days)
	if err != nil {
		h.logger.Error("list daily summary", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "failed to list daily summary")
		return
	}

	writeData(w, metrics)
}
