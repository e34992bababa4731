package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	s3blob "github.com/avelez/dexscan/internal/blob/s3"
	"github.com/avelez/dexscan/internal/cache/redis"
	"github.com/avelez/dexscan/internal/chain"
	"github.com/avelez/dexscan/internal/config"
	"github.com/avelez/dexscan/internal/domain"
	"github.com/avelez/dexscan/internal/store/postgres"
)

// Dependencies bundles every dependency that the application modes need to
// operate. It is constructed by Wire and torn down by the returned cleanup
// function. Optional members (cache, signal bus, blob writer, chain client)
// are nil when the corresponding backend is not configured or not required
// by the mode.
type Dependencies struct {
	// Stores
	ScanStore   domain.ScanStore
	FeedStore   domain.PriceFeedStore
	MetricStore domain.MetricStore

	// Cache (nil when Redis is disabled)
	Redis      *redis.Client
	PriceCache *redis.PriceCache
	SignalBus  *redis.SignalBus

	// Blob storage (nil when no bucket is configured)
	Blob       *s3blob.Client
	BlobWriter domain.BlobWriter

	// On-chain source (nil in api mode)
	Chain *chain.Client

	// Postgres client, kept for health checks.
	Postgres *postgres.Client

	// Exchanges with pair addresses resolved.
	Exchanges []domain.Exchange
}

// needsChain returns true for modes that read pool state from the chain.
func needsChain(mode string) bool {
	switch mode {
	case "scan", "full":
		return true
	default:
		return false
	}
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}
	mode := strings.ToLower(cfg.Mode)

	// --- PostgreSQL (every mode persists or serves scan history) ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.Postgres = pgClient
	deps.ScanStore = postgres.NewScanStore(pool)
	deps.FeedStore = postgres.NewPriceFeedStore(pool)
	deps.MetricStore = postgres.NewMetricStore(pool)

	// --- Redis (optional) ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.Redis = redisClient
		deps.PriceCache = redis.NewPriceCache(redisClient)
		deps.SignalBus = redis.NewSignalBus(redisClient)
	}

	// --- S3 blob storage (optional, scanning modes only) ---
	if needsChain(mode) && cfg.S3.Bucket != "" {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		deps.Blob = s3Client
		deps.BlobWriter = s3blob.NewWriter(s3Client)
	}

	// --- Chain client (scanning modes only) ---
	if needsChain(mode) {
		chainClient, err := chain.New(ctx, cfg.Chain.RPCURL, cfg.Chain.RequestTimeout.Duration)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: chain: %w", err)
		}
		closers = append(closers, chainClient.Close)
		deps.Chain = chainClient
	}

	deps.Exchanges, err = buildExchanges(cfg)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	logger.InfoContext(ctx, "dependencies wired",
		slog.String("mode", mode),
		slog.Bool("redis", deps.Redis != nil),
		slog.Bool("s3", deps.BlobWriter != nil),
		slog.Int("exchanges", len(deps.Exchanges)),
	)

	return deps, cleanup, nil
}

// buildExchanges converts configured exchanges into domain descriptors,
// deriving the pair address from factory and init code hash when it is not
// given explicitly.
func buildExchanges(cfg *config.Config) ([]domain.Exchange, error) {
	exchanges := make([]domain.Exchange, 0, len(cfg.Exchanges))
	for _, ec := range cfg.Exchanges {
		addr := ec.PairAddress
		if addr == "" {
			derived, err := chain.PairAddress(
				ec.Factory,
				cfg.Market.BaseAsset.Address,
				cfg.Market.QuoteAsset.Address,
				ec.InitCodeHash,
			)
			if err != nil {
				return nil, fmt.Errorf("wire: derive pair address for %s: %w", ec.ID, err)
			}
			addr = derived
		}
		exchanges = append(exchanges, domain.Exchange{
			ID:          ec.ID,
			Name:        ec.Name,
			PairAddress: addr,
			Fee:         ec.Fee,
		})
	}
	return exchanges, nil
}
