package app

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/avelez/dexscan/internal/amm"
	s3blob "github.com/avelez/dexscan/internal/blob/s3"
	"github.com/avelez/dexscan/internal/domain"
	"github.com/avelez/dexscan/internal/exchange"
	"github.com/avelez/dexscan/internal/notify"
	"github.com/avelez/dexscan/internal/scanner"
	"github.com/avelez/dexscan/internal/server"
	"github.com/avelez/dexscan/internal/server/handler"
	"github.com/avelez/dexscan/internal/server/ws"
)

// ScanMode runs the periodic scan loop (and the archiver when object storage
// is configured) without the HTTP API.
func (a *App) ScanMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "running in scan mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startScanner(ctx, g, deps)
	return g.Wait()
}

// APIMode serves the read-only HTTP and WebSocket API without scanning.
func (a *App) APIMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "running in api mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps)
	return g.Wait()
}

// FullMode runs the scan loop and the API server in one process.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "running in full mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startScanner(ctx, g, deps)
	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps)
	}
	return g.Wait()
}

// startScanner adds the scan loop (and, when configured, the archiver) to
// the given errgroup.
func (a *App) startScanner(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	base := amm.Asset{
		Symbol:   a.cfg.Market.BaseAsset.Symbol,
		Address:  a.cfg.Market.BaseAsset.Address,
		Decimals: a.cfg.Market.BaseAsset.Decimals,
	}
	quote := amm.Asset{
		Symbol:   a.cfg.Market.QuoteAsset.Symbol,
		Address:  a.cfg.Market.QuoteAsset.Address,
		Decimals: a.cfg.Market.QuoteAsset.Decimals,
	}

	// Avoid a typed-nil interface when the optional cache is absent.
	var prices domain.PriceCache
	if deps.PriceCache != nil {
		prices = deps.PriceCache
	}
	var signals domain.SignalBus
	if deps.SignalBus != nil {
		signals = deps.SignalBus
	}

	reader := exchange.NewReader(
		deps.Chain,
		deps.FeedStore,
		prices,
		base, quote,
		a.cfg.Market.Pair(),
		exchange.RetryPolicy{
			MaxAttempts: a.cfg.Scanner.RetryAttempts,
			Backoff:     exchange.LinearBackoff(a.cfg.Scanner.RetryBackoff.Duration),
		},
		a.logger,
	)

	sim := scanner.NewSimulator(
		reader,
		a.cfg.Scanner.GasUSDEstimate,
		a.cfg.Scanner.MinProfitThreshold,
		a.logger,
	)

	var senders []notify.Sender
	if a.cfg.Notify.TelegramToken != "" && a.cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(a.cfg.Notify.TelegramToken, a.cfg.Notify.TelegramChatID))
	}
	if a.cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(a.cfg.Notify.DiscordWebhookURL))
	}
	var alerts scanner.Alerter
	if len(senders) > 0 {
		alerts = notify.NewAlerter(senders, a.cfg.Notify.Cooldown.Duration, a.logger)
	}

	sc := scanner.New(
		scanner.Config{
			Pair:               a.cfg.Market.Pair(),
			TradeSize:          a.cfg.Scanner.TradeSize,
			PollInterval:       a.cfg.Scanner.PollInterval.Duration,
			PairDelay:          a.cfg.Scanner.PairDelay.Duration,
			MaxConcurrentPairs: a.cfg.Scanner.MaxConcurrentPairs,
		},
		deps.Exchanges,
		sim,
		deps.ScanStore,
		deps.MetricStore,
		signals,
		alerts,
		a.logger,
	)

	g.Go(func() error {
		return sc.Run(ctx)
	})

	if deps.BlobWriter != nil && a.cfg.Scanner.RetentionDays > 0 {
		arch := s3blob.NewArchiver(
			deps.BlobWriter,
			deps.ScanStore,
			time.Duration(a.cfg.Scanner.RetentionDays)*24*time.Hour,
			a.cfg.Scanner.ArchiveInterval.Duration,
			a.logger,
		)
		g.Go(func() error {
			return arch.Run(ctx)
		})
	}
}

// startHTTPServer adds the HTTP server (and the WebSocket hub when the
// signal bus is available) to the given errgroup. The server is shut down
// gracefully when the context is cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	var hub *ws.Hub
	if deps.SignalBus != nil {
		hub = ws.NewHub(deps.SignalBus, a.cfg.Market.Pair(), a.logger)
		g.Go(func() error {
			return hub.Run(ctx)
		})
	}

	health := map[string]handler.Pinger{
		"postgres": handler.PingFunc(func(ctx context.Context) error {
			return deps.Postgres.Pool().Ping(ctx)
		}),
	}
	if deps.Redis != nil {
		health["redis"] = deps.Redis
	}
	if deps.Blob != nil {
		health["s3"] = handler.PingFunc(deps.Blob.Health)
	}

	var cached handler.CachedPrices
	var latest handler.LatestPrice
	if deps.PriceCache != nil {
		cached = deps.PriceCache
		latest = deps.PriceCache
	}

	handlers := server.Handlers{
		Root:          handler.NewRootHandler(a.cfg.Market.Pair(), a.cfg.Mode, time.Now().UTC()),
		Health:        handler.NewHealthHandler(health, a.logger),
		Opportunities: handler.NewOpportunityHandler(deps.ScanStore, a.logger),
		Summary:       handler.NewSummaryHandler(deps.MetricStore, a.logger),
		Exchanges:     handler.NewExchangeHandler(deps.Exchanges, cached, a.logger),
		Prices:        handler.NewPriceHandler(deps.Exchanges, deps.FeedStore, latest, a.logger),
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
	}, handlers, hub, a.logger)

	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("server shutdown", slog.Any("error", err))
		}
		return ctx.Err()
	})
}
