package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown mode", func(c *Config) { c.Mode = "turbo" }},
		{"unknown log level", func(c *Config) { c.LogLevel = "verbose" }},
		{"zero trade size", func(c *Config) { c.Scanner.TradeSize = 0 }},
		{"fee out of range", func(c *Config) { c.Exchanges[0].Fee = 1.0 }},
		{"negative fee", func(c *Config) { c.Exchanges[0].Fee = -0.01 }},
		{"single exchange", func(c *Config) { c.Exchanges = c.Exchanges[:1] }},
		{"duplicate exchange id", func(c *Config) { c.Exchanges[1].ID = c.Exchanges[0].ID }},
		{"bad pair address", func(c *Config) { c.Exchanges[0].PairAddress = "nonsense" }},
		{"missing rpc url", func(c *Config) { c.Chain.RPCURL = "" }},
		{"no retry budget", func(c *Config) { c.Scanner.RetryAttempts = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Defaults()
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	data := `
mode = "scan"
log_level = "debug"

[scanner]
poll_interval = "10s"
trade_size = 2.5
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "scan", cfg.Mode)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 10*time.Second, cfg.Scanner.PollInterval.Duration)
	assert.Equal(t, 2.5, cfg.Scanner.TradeSize)
	// Untouched fields keep their defaults.
	assert.Equal(t, 2.0, cfg.Scanner.GasUSDEstimate)
	assert.Len(t, cfg.Exchanges, 3)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("DEXSCAN_MODE", "api")
	t.Setenv("DEXSCAN_TRADE_SIZE", "0.5")
	t.Setenv("DEXSCAN_POLL_INTERVAL", "30s")
	t.Setenv("DEXSCAN_POSTGRES_PASSWORD", "hunter2")

	cfg := Defaults()
	applyEnvOverrides(&cfg)

	assert.Equal(t, "api", cfg.Mode)
	assert.Equal(t, 0.5, cfg.Scanner.TradeSize)
	assert.Equal(t, 30*time.Second, cfg.Scanner.PollInterval.Duration)
	assert.Equal(t, "hunter2", cfg.Postgres.Password)
}
