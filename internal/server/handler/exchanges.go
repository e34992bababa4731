package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/avelez/dexscan/internal/domain"
)

// CachedPrices reads the latest cached price per exchange.
type CachedPrices interface {
	GetPrices(ctx context.Context, exchangeIDs []string) (map[string]float64, error)
}

// exchangeView is an exchange descriptor enriched with its latest cached
// price, when one is available.
type exchangeView struct {
	domain.Exchange
	LastPrice *float64 `json:"last_price,omitempty"`
}

// ExchangeHandler serves the configured exchange descriptors.
type ExchangeHandler struct {
	exchanges []domain.Exchange
	prices    CachedPrices // optional; nil when no cache is configured
	logger    *slog.Logger
}

// NewExchangeHandler creates an ExchangeHandler.
func NewExchangeHandler(exchanges []domain.Exchange, prices CachedPrices, logger *slog.Logger) *ExchangeHandler {
	return &ExchangeHandler{exchanges: exchanges, prices: prices, logger: logger}
}

// List returns the configured exchanges, enriched with the latest cached
// price per exchange when a price cache is wired in. A cache failure
// degrades to descriptors without prices.
// GET /api/exchanges
func (h *ExchangeHandler) List(w http.ResponseWriter, r *http.Request) {
	views := make([]exchangeView, len(h.exchanges))
	for i, ex := range h.exchanges {
		views[i] = exchangeView{Exchange: ex}
	}

	if h.prices != nil {
		ids := make([]string, len(h.exchanges))
		for i, ex := range h.exchanges {
			ids[i] = ex.ID
		}
		cached, err := h.prices.GetPrices(r.Context(), ids)
		if err != nil {
			h.logger.Warn("read cached prices", slog.Any("error", err))
		} else {
			for i := range views {
				if p, ok := cached[views[i].ID]; ok {
					price := p
					views[i].LastPrice = &price
				}
			}
		}
	}

	writeData(w, views)
}
