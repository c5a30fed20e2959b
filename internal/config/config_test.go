package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yml"), []byte(body), 0o600))
	return dir
}

func TestLoadConfig(t *testing.T) {
	t.Run("Defaults without file", func(t *testing.T) {
		cfg, err := LoadConfig(t.TempDir())

		require.NoError(t, err)
		assert.Equal(t, 8081, cfg.Server.Port)
		assert.Equal(t, "mock", cfg.Quote.Provider)
		assert.Equal(t, "100000", cfg.Ledger.StartingCash)
		assert.Equal(t, 1, cfg.Database.MaxOpenConns)
		assert.Equal(t, time.Minute, cfg.Quote.SymbolPeriod)
		assert.False(t, cfg.Cache.Enabled)
	})

	t.Run("File values", func(t *testing.T) {
		dir := writeConfig(t, `
server:
  port: 9090
quote:
  provider: alphavantage
  apiKey: demo
  symbol_calls: 2
cache:
  enabled: true
  ttl: 30s
ledger:
  starting_cash: "50000.50"
`)
		cfg, err := LoadConfig(dir)

		require.NoError(t, err)
		assert.Equal(t, 9090, cfg.Server.Port)
		assert.Equal(t, "alphavantage", cfg.Quote.Provider)
		assert.Equal(t, "demo", cfg.Quote.ApiKey)
		assert.Equal(t, 2, cfg.Quote.SymbolCalls)
		assert.True(t, cfg.Cache.Enabled)
		assert.Equal(t, 30*time.Second, cfg.Cache.TTL)
		assert.Equal(t, "50000.50", cfg.Ledger.StartingCash)
	})

	t.Run("Environment overrides file", func(t *testing.T) {
		dir := writeConfig(t, "database:\n  dsn: from-file.db\n")
		t.Setenv("DATABASE_DSN", "from-env.db")

		cfg, err := LoadConfig(dir)

		require.NoError(t, err)
		assert.Equal(t, "from-env.db", cfg.Database.DSN)
	})

	t.Run("Unknown provider", func(t *testing.T) {
		dir := writeConfig(t, "quote:\n  provider: yahoo\n")

		_, err := LoadConfig(dir)

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "unknown quote provider")
	})

	t.Run("Environment only", func(t *testing.T) {
		t.Setenv("QUOTE_PROVIDER", "alphavantage")
		t.Setenv("QUOTE_APIKEY", "env-key")
		t.Setenv("CACHE_PASSWORD", "secret")
		t.Setenv("CACHE_DB", "3")

		cfg, err := LoadConfig(t.TempDir())

		require.NoError(t, err)
		assert.Equal(t, "env-key", cfg.Quote.ApiKey)
		assert.Equal(t, "secret", cfg.Cache.Password)
		assert.Equal(t, 3, cfg.Cache.DB)
	})

	t.Run("Negative starting cash", func(t *testing.T) {
		dir := writeConfig(t, "ledger:\n  starting_cash: \"-5\"\n")

		_, err := LoadConfig(dir)

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "cannot be negative")
	})

	t.Run("Malformed starting cash", func(t *testing.T) {
		dir := writeConfig(t, "ledger:\n  starting_cash: lots\n")

		_, err := LoadConfig(dir)

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "invalid ledger.starting_cash")
	})

	t.Run("Alphavantage without key", func(t *testing.T) {
		dir := writeConfig(t, "quote:\n  provider: alphavantage\n")

		_, err := LoadConfig(dir)

		assert.Error(t, err)
	})
}
