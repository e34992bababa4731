// Package config defines the top-level configuration for the arbitrage
// scanner and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by DEXSCAN_* environment
// variables.
type Config struct {
	Chain     ChainConfig      `toml:"chain"`
	Market    MarketConfig     `toml:"market"`
	Scanner   ScannerConfig    `toml:"scanner"`
	Postgres  PostgresConfig   `toml:"postgres"`
	Redis     RedisConfig      `toml:"redis"`
	S3        S3Config         `toml:"s3"`
	Server    ServerConfig     `toml:"server"`
	Notify    NotifyConfig     `toml:"notify"`
	Exchanges []ExchangeConfig `toml:"exchanges"`
	Mode      string           `toml:"mode"`
	LogLevel  string           `toml:"log_level"`
}

// ChainConfig holds the JSON-RPC endpoint parameters.
type ChainConfig struct {
	RPCURL         string   `toml:"rpc_url"`
	RequestTimeout duration `toml:"request_timeout"`
}

// AssetConfig identifies one side of the monitored pair.
type AssetConfig struct {
	Symbol   string `toml:"symbol"`
	Address  string `toml:"address"`
	Decimals int    `toml:"decimals"`
}

// MarketConfig describes the traded pair: the base asset being arbitraged
// and the quote asset it is priced in.
type MarketConfig struct {
	BaseAsset  AssetConfig `toml:"base_asset"`
	QuoteAsset AssetConfig `toml:"quote_asset"`
}

// Pair returns the display name of the monitored pair, e.g. "WETH/USDC".
func (m MarketConfig) Pair() string {
	return m.BaseAsset.Symbol + "/" + m.QuoteAsset.Symbol
}

// ScannerConfig holds the scan loop parameters.
type ScannerConfig struct {
	PollInterval       duration `toml:"poll_interval"`
	PairDelay          duration `toml:"pair_delay"`
	TradeSize          float64  `toml:"trade_size"`
	GasUSDEstimate     float64  `toml:"gas_usd_estimate"` // per leg
	MinProfitThreshold float64  `toml:"min_profit_threshold"`
	MaxConcurrentPairs int      `toml:"max_concurrent_pairs"`
	RetryAttempts      int      `toml:"retry_attempts"`
	RetryBackoff       duration `toml:"retry_backoff"`
	RetentionDays      int      `toml:"retention_days"`
	ArchiveInterval    duration `toml:"archive_interval"`
}

// ExchangeConfig describes one constant-product venue. When pair_address is
// empty the address is derived from factory + init_code_hash and the
// configured asset addresses.
type ExchangeConfig struct {
	ID           string  `toml:"id"`
	Name         string  `toml:"name"`
	PairAddress  string  `toml:"pair_address"`
	Fee          float64 `toml:"fee"`
	Factory      string  `toml:"factory"`
	InitCodeHash string  `toml:"init_code_hash"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for the cold
// archive. Archival is disabled when the bucket is empty.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
}

// NotifyConfig holds operator alert channels. A channel is active when its
// credentials are set; with no channels configured, alerting is disabled.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Cooldown          duration `toml:"cooldown"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5s", "500ms").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings.
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

var validModes = map[string]bool{
	"scan": true,
	"api":  true,
	"full": true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Defaults returns a Config populated with reasonable default values. These
// match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Chain: ChainConfig{
			RPCURL:         "https://polygon-rpc.com",
			RequestTimeout: duration{10 * time.Second},
		},
		Market: MarketConfig{
			BaseAsset: AssetConfig{
				Symbol:   "WETH",
				Address:  "0x7ceB23fD6bC0adD59E62ac25578270cFf1b9f619",
				Decimals: 18,
			},
			QuoteAsset: AssetConfig{
				Symbol:   "USDC",
				Address:  "0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174",
				Decimals: 6,
			},
		},
		Scanner: ScannerConfig{
			PollInterval:       duration{5 * time.Second},
			PairDelay:          duration{500 * time.Millisecond},
			TradeSize:          1.0,
			GasUSDEstimate:     2.0,
			MinProfitThreshold: 1.0,
			MaxConcurrentPairs: 1,
			RetryAttempts:      3,
			RetryBackoff:       duration{time.Second},
			RetentionDays:      30,
			ArchiveInterval:    duration{24 * time.Hour},
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "dexscan",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Enabled:    true,
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Server: ServerConfig{
			Enabled: true,
			Port:    3000,
		},
		Notify: NotifyConfig{
			Cooldown: duration{5 * time.Minute},
		},
		Exchanges: []ExchangeConfig{
			{
				ID:          "Uniswap",
				Name:        "Uniswap",
				PairAddress: "0xdE32C9ebdd5f587E0F677d5AdCac593ecFfFD91A",
				Fee:         0.003,
			},
			{
				ID:          "Sushiswap",
				Name:        "Sushiswap",
				PairAddress: "0x34965ba0ac2451A34a0471F04CCa3F990b8dea27",
				Fee:         0.003,
			},
			{
				ID:          "Quickswap",
				Name:        "Quickswap",
				PairAddress: "0x853Ee4b2A13f8a742d64C8F088bE7bA2131f670d",
				Fee:         0.003,
			},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// isHexAddress reports whether s looks like a 20-byte hex address.
func isHexAddress(s string) bool {
	if !strings.HasPrefix(s, "0x") || len(s) != 42 {
		return false
	}
	for _, c := range s[2:] {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

// Validate checks the configuration for inconsistencies and returns a single
// error describing all problems found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: scan, api, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	needsChain := c.Mode == "scan" || c.Mode == "full"
	if needsChain && c.Chain.RPCURL == "" {
		errs = append(errs, "chain: rpc_url must not be empty for mode "+c.Mode)
	}

	if !isHexAddress(c.Market.BaseAsset.Address) {
		errs = append(errs, fmt.Sprintf("market: base_asset address %q is not a hex address", c.Market.BaseAsset.Address))
	}
	if !isHexAddress(c.Market.QuoteAsset.Address) {
		errs = append(errs, fmt.Sprintf("market: quote_asset address %q is not a hex address", c.Market.QuoteAsset.Address))
	}
	if c.Market.BaseAsset.Decimals < 0 || c.Market.QuoteAsset.Decimals < 0 {
		errs = append(errs, "market: asset decimals must not be negative")
	}

	if c.Scanner.TradeSize <= 0 {
		errs = append(errs, fmt.Sprintf("scanner: trade_size must be positive, got %v", c.Scanner.TradeSize))
	}
	if c.Scanner.GasUSDEstimate < 0 {
		errs = append(errs, "scanner: gas_usd_estimate must not be negative")
	}
	if c.Scanner.PollInterval.Duration <= 0 {
		errs = append(errs, "scanner: poll_interval must be positive")
	}
	if c.Scanner.RetryAttempts < 1 {
		errs = append(errs, "scanner: retry_attempts must be >= 1")
	}

	if needsChain && len(c.Exchanges) < 2 {
		errs = append(errs, fmt.Sprintf("exchanges: at least two exchanges are required to scan, got %d", len(c.Exchanges)))
	}
	seen := map[string]bool{}
	for i, ex := range c.Exchanges {
		if ex.ID == "" {
			errs = append(errs, fmt.Sprintf("exchanges[%d]: id must not be empty", i))
			continue
		}
		if seen[ex.ID] {
			errs = append(errs, fmt.Sprintf("exchanges[%d]: duplicate id %q", i, ex.ID))
		}
		seen[ex.ID] = true
		if ex.Fee < 0 || ex.Fee >= 1 {
			errs = append(errs, fmt.Sprintf("exchanges[%d] %s: fee must be in [0, 1), got %v", i, ex.ID, ex.Fee))
		}
		if ex.PairAddress == "" {
			if !isHexAddress(ex.Factory) {
				errs = append(errs, fmt.Sprintf("exchanges[%d] %s: pair_address is empty and factory %q is not a hex address", i, ex.ID, ex.Factory))
			}
			if ex.InitCodeHash == "" {
				errs = append(errs, fmt.Sprintf("exchanges[%d] %s: init_code_hash is required to derive the pair address", i, ex.ID))
			}
		} else if !isHexAddress(ex.PairAddress) {
			errs = append(errs, fmt.Sprintf("exchanges[%d] %s: pair_address %q is not a hex address", i, ex.ID, ex.PairAddress))
		}
	}

	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}

	if c.Notify.TelegramToken != "" && c.Notify.TelegramChatID == "" {
		errs = append(errs, "notify: telegram_chat_id is required when telegram_token is set")
	}
	if c.Notify.Cooldown.Duration < 0 {
		errs = append(errs, "notify: cooldown must not be negative")
	}

	if c.Server.Enabled && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}
