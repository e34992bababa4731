package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/avelez/dexscan/internal/domain"
)

// ScanHistory is the slice of the scan store the opportunity endpoints need.
type ScanHistory interface {
	ListRecent(ctx context.Context, limit int) ([]domain.ScanRecord, error)
	ListProfitable(ctx context.Context, limit int) ([]domain.ScanRecord, error)
}

// OpportunityHandler serves the scan-history endpoints.
type OpportunityHandler struct {
	scans  ScanHistory
	logger *slog.Logger
}

// NewOpportunityHandler creates an OpportunityHandler.
func NewOpportunityHandler(scans ScanHistory, logger *slog.Logger) *OpportunityHandler {
	return &OpportunityHandler{scans: scans, logger: logger}
}

// ListRecent returns the most recent scan records.
// GET /api/opportunities?limit=N
func (h *OpportunityHandler) ListRecent(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 50)

	recs, err := h.scans.ListRecent(r.Context(), limit)
	if err != nil {
		h.logger.Error("list opportunities", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "failed to list opportunities")
		return
	}

	writeData(w, recs)
}

// ListProfitable returns the most recent profitable scan records.
// GET /api/opportunities/profitable?limit=N
func (h *OpportunityHandler) ListProfitable(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 50)

	recs, err := h.scans.ListProfitable(r.Context(), limit)
	if err != nil {
		h.logger.Error("list profitable opportunities", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "failed to list profitable opportunities")
		return
	}

	writeData(w, recs)
}
