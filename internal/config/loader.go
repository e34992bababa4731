package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies DEXSCAN_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known DEXSCAN_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Chain ──
	setStr(&cfg.Chain.RPCURL, "DEXSCAN_RPC_URL")
	setDuration(&cfg.Chain.RequestTimeout, "DEXSCAN_RPC_REQUEST_TIMEOUT")

	// ── Scanner ──
	setDuration(&cfg.Scanner.PollInterval, "DEXSCAN_POLL_INTERVAL")
	setDuration(&cfg.Scanner.PairDelay, "DEXSCAN_PAIR_DELAY")
	setFloat64(&cfg.Scanner.TradeSize, "DEXSCAN_TRADE_SIZE")
	setFloat64(&cfg.Scanner.GasUSDEstimate, "DEXSCAN_GAS_USD_ESTIMATE")
	setFloat64(&cfg.Scanner.MinProfitThreshold, "DEXSCAN_MIN_PROFIT_THRESHOLD")
	setInt(&cfg.Scanner.MaxConcurrentPairs, "DEXSCAN_MAX_CONCURRENT_PAIRS")
	setInt(&cfg.Scanner.RetryAttempts, "DEXSCAN_RETRY_ATTEMPTS")
	setDuration(&cfg.Scanner.RetryBackoff, "DEXSCAN_RETRY_BACKOFF")
	setInt(&cfg.Scanner.RetentionDays, "DEXSCAN_RETENTION_DAYS")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "DEXSCAN_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "DEXSCAN_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "DEXSCAN_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "DEXSCAN_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "DEXSCAN_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "DEXSCAN_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "DEXSCAN_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "DEXSCAN_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "DEXSCAN_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "DEXSCAN_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "DEXSCAN_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "DEXSCAN_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "DEXSCAN_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "DEXSCAN_REDIS_DB")
	setBool(&cfg.Redis.TLSEnabled, "DEXSCAN_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "DEXSCAN_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "DEXSCAN_S3_REGION")
	setStr(&cfg.S3.Bucket, "DEXSCAN_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "DEXSCAN_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "DEXSCAN_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "DEXSCAN_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "DEXSCAN_S3_FORCE_PATH_STYLE")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "DEXSCAN_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "DEXSCAN_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "DEXSCAN_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "DEXSCAN_SERVER_API_KEY")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "DEXSCAN_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "DEXSCAN_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "DEXSCAN_DISCORD_WEBHOOK_URL")
	setDuration(&cfg.Notify.Cooldown, "DEXSCAN_NOTIFY_COOLDOWN")

	// ── Top-level ──
	setStr(&cfg.Mode, "DEXSCAN_MODE")
	setStr(&cfg.LogLevel, "DEXSCAN_LOG_LEVEL")
}

// Typed env-var setters. A setter mutates its target only when the variable
// is present, non-empty, and parses; a malformed value leaves the TOML/default
// value in place.

func setParsed[T any](dst *T, key string, parse func(string) (T, error)) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	if parsed, err := parse(v); err == nil {
		*dst = parsed
	}
}

func setStr(dst *string, key string) {
	setParsed(dst, key, func(s string) (string, error) { return s, nil })
}

func setInt(dst *int, key string) {
	setParsed(dst, key, strconv.Atoi)
}

func setFloat64(dst *float64, key string) {
	setParsed(dst, key, func(s string) (float64, error) { return strconv.ParseFloat(s, 64) })
}

func setBool(dst *bool, key string) {
	setParsed(dst, key, strconv.ParseBool)
}

func setDuration(dst *duration, key string) {
	setParsed(dst, key, func(s string) (duration, error) {
		d, err := time.ParseDuration(s)
		return duration{d}, err
	})
}

func setStringSlice(dst *[]string, key string) {
	setParsed(dst, key, func(s string) ([]string, error) {
		var out []string
		for _, p := range strings.Split(s, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		if len(out) == 0 {
			return nil, errors.New("empty list")
		}
		return out, nil
	})
}
