// Package app wires the scanner's dependencies and runs the configured
// operating mode.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/avelez/dexscan/internal/config"
)

// App owns the configuration, logger and teardown of everything Wire built.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	cleanup func()
}

func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run wires dependencies and blocks in the selected mode until the context
// is cancelled or a component fails.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("mode", a.cfg.Mode),
		slog.String("pair", a.cfg.Market.Pair()),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.cleanup = cleanup

	switch strings.ToLower(a.cfg.Mode) {
	case "scan":
		return a.ScanMode(ctx, deps)
	case "api":
		return a.APIMode(ctx, deps)
	case "full":
		return a.FullMode(ctx, deps)
	default:
		return fmt.Errorf("app: unsupported mode %q", a.cfg.Mode)
	}
}

// Close releases everything Wire built. Safe to call when Run never wired.
func (a *App) Close() {
	if a.cleanup == nil {
		return
	}
	a.logger.Info("shutting down application")
	a.cleanup()
	a.cleanup = nil
}
