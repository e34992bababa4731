package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/avelez/dexscan/internal/domain"
)

// PriceHistory lists the persisted price observations for one exchange,
// newest first.
type PriceHistory interface {
	ListRecent(ctx context.Context, exchangeID string, limit int) ([]domain.PriceFeed, error)
}

// LatestPrice reads the last cached price for one exchange.
type LatestPrice interface {
	GetPrice(ctx context.Context, exchangeID string) (float64, time.Time, error)
}

// cachedPrice is the latest cached quote for an exchange.
type cachedPrice struct {
	Price    float64   `json:"price"`
	CachedAt time.Time `json:"cached_at"`
}

// priceHistoryView is the response body for a single exchange's price
// history.
type priceHistoryView struct {
	Exchange domain.Exchange    `json:"exchange"`
	Latest   *cachedPrice       `json:"latest,omitempty"`
	Feeds    []domain.PriceFeed `json:"feeds"`
}

// PriceHandler serves per-exchange price history.
type PriceHandler struct {
	exchanges []domain.Exchange
	feeds     PriceHistory
	latest    LatestPrice // optional; nil when no cache is configured
	logger    *slog.Logger
}

// NewPriceHandler creates a PriceHandler.
func NewPriceHandler(exchanges []domain.Exchange, feeds PriceHistory, latest LatestPrice, logger *slog.Logger) *PriceHandler {
	return &PriceHandler{exchanges: exchanges, feeds: feeds, latest: latest, logger: logger}
}

// History returns the recent price observations for one configured exchange,
// together with the latest cached price when the cache holds one. An unknown
// exchange id is a 404; an expired or missing cache entry just leaves the
// latest field out.
// GET /api/exchanges/{id}/prices
func (h *PriceHandler) History(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var found *domain.Exchange
	for i := range h.exchanges {
		if h.exchanges[i].ID == id {
			found = &h.exchanges[i]
			break
		}
	}
	if found == nil {
		writeError(w, http.StatusNotFound, "unknown exchange: "+id)
		return
	}

	limit := parseLimit(r, 50)
	feeds, err := h.feeds.ListRecent(r.Context(), id, limit)
	if err != nil {
		h.logger.Error("list price feeds", slog.String("exchange", id), slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "could not list price feeds")
		return
	}
	if feeds == nil {
		feeds = []domain.PriceFeed{}
	}

	view := priceHistoryView{Exchange: *found, Feeds: feeds}
	if h.latest != nil {
		price, ts, err := h.latest.GetPrice(r.Context(), id)
		switch {
		case err == nil:
			view.Latest = &cachedPrice{Price: price, CachedAt: ts}
		case errors.Is(err, domain.ErrNotFound):
			// Cache entry expired; history alone is still useful.
		default:
			h.logger.Warn("read cached price", slog.String("exchange", id), slog.Any("error", err))
		}
	}

	writeData(w, view)
}
