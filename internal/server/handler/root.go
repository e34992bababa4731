package handler

import (
	"net/http"
	"time"
)

// RootHandler serves the service banner at the API root.
type RootHandler struct {
	pair      string
	mode      string
	startedAt time.Time
}

// NewRootHandler creates a RootHandler.
func NewRootHandler(pair, mode string, startedAt time.Time) *RootHandler {
	return &RootHandler{pair: pair, mode: mode, startedAt: startedAt}
}

// Banner describes the service and its endpoints.
// GET /
func (h *RootHandler) Banner(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service": "dexscan",
		"pair":    h.pair,
		"mode":    h.mode,
		"uptime":  time.Since(h.startedAt).Round(time.Second).String(),
		"endpoints": []string{
			"GET /api/health",
			"GET /api/opportunities",
			"GET /api/opportunities/profitable",
			"GET /api/summary/daily",
			"GET /api/exchanges",
			"GET /api/exchanges/{id}/prices",
			"GET /ws",
		},
	})
}
