// Package server exposes the read-only HTTP and WebSocket API over the scan
// history.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/avelez/dexscan/internal/server/handler"
	"github.com/avelez/dexscan/internal/server/middleware"
	"github.com/avelez/dexscan/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // empty disables authentication
}

// Handlers aggregates the HTTP handlers the server registers.
type Handlers struct {
	Root          *handler.RootHandler
	Health        *handler.HealthHandler
	Opportunities *handler.OpportunityHandler
	Summary       *handler.SummaryHandler
	Exchanges     *handler.ExchangeHandler
	Prices        *handler.PriceHandler
}

// Server serves the read-only API. wsHub may be nil when no signal bus is
// configured, in which case /ws is not registered.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer registers all routes and wraps the mux in the middleware chain
// (innermost first): auth, request logging, CORS.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, logger *slog.Logger) *Server {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", handlers.Root.Banner)
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	mux.HandleFunc("GET /api/opportunities", handlers.Opportunities.ListRecent)
	mux.HandleFunc("GET /api/opportunities/profitable", handlers.Opportunities.ListProfitable)
	mux.HandleFunc("GET /api/summary/daily", handlers.Summary.ListDaily)
	mux.HandleFunc("GET /api/exchanges", handlers.Exchanges.List)
	mux.HandleFunc("GET /api/exchanges/{id}/prices", handlers.Prices.History)
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	var h http.Handler = mux
	for _, wrap := range []func(http.Handler) http.Handler{
		middleware.Auth(cfg.APIKey),
		middleware.Logging(logger),
		cors(cfg.CORSOrigins),
	} {
		h = wrap(h)
	}

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      h,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}
}

// Start listens and blocks until Shutdown is called or the listener fails.
func (s *Server) Start() error {
	s.logger.Info("server: starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}

// cors sets CORS headers for allowed origins and answers preflight requests.
// An empty origin list allows every origin; the API is read-only.
func cors(allowed []string) func(http.Handler) http.Handler {
	permitted := func(origin string) bool {
		if len(allowed) == 0 {
			return true
		}
		for _, o := range allowed {
			if o == "*" || strings.EqualFold(o, origin) {
				return true
			}
		}
		return false
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if origin := r.Header.Get("Origin"); origin != "" && permitted(origin) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key")
				w.Header().Set("Access-Control-Max-Age", "86400")
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
