package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Server   Server   `mapstructure:"server"`
	Database Database `mapstructure:"database"`
	Quote    Quote    `mapstructure:"quote"`
	Cache    Cache    `mapstructure:"cache"`
	Events   Events   `mapstructure:"events"`
	Ledger   Ledger   `mapstructure:"ledger"`
	Logger   Logger   `mapstructure:"logger"`
}

// Server holds the configuration for the HTTP API.
type Server struct {
	Name            string        `mapstructure:"name"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Database holds the configuration for the database.
type Database struct {
	DSN          string `mapstructure:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	LogLevel     string `mapstructure:"log_level"`
}

// Quote holds the configuration for the market data provider.
type Quote struct {
	// Provider is either "mock" or "alphavantage".
	Provider       string        `mapstructure:"provider"`
	BaseURL        string        `mapstructure:"base_url"`
	ApiKey         string        `mapstructure:"apiKey"`
	Timeout        time.Duration `mapstructure:"timeout"`
	RateLimit      float64       `mapstructure:"rate_limit"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst"`
	// SymbolCalls caps calls per symbol within SymbolPeriod.
	SymbolCalls  int           `mapstructure:"symbol_calls"`
	SymbolPeriod time.Duration `mapstructure:"symbol_period"`
}

// Cache holds the configuration for the Redis quote cache.
type Cache struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// Events holds the configuration for trade event publishing.
type Events struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// Ledger holds the configuration for account provisioning.
type Ledger struct {
	// StartingCash is kept as a string so it parses exactly into a decimal.
	StartingCash string `mapstructure:"starting_cash"`
}

// Cash parses StartingCash. It must be a non-negative decimal.
func (l Ledger) Cash() (decimal.Decimal, error) {
	cash, err := decimal.NewFromString(l.StartingCash)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid ledger.starting_cash %q: %w", l.StartingCash, err)
	}
	if cash.IsNegative() {
		return decimal.Zero, fmt.Errorf("ledger.starting_cash cannot be negative: %s", l.StartingCash)
	}
	return cash, nil
}

// Logger holds the configuration for the logger.
type Logger struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// LoadConfig reads configuration from file or environment variables.
// A missing config file is not an error; defaults and environment still apply.
func LoadConfig(path string) (Config, error) {
	// .env is optional; real environment variables win over it.
	_ = godotenv.Load()

	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config") // name of config file (without extension)
	v.SetConfigType("yml")

	// Allow environment variables to override config file
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	var cfg Config
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return cfg, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.name", "papertrade")
	v.SetDefault("server.port", 8081)
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("database.dsn", "papertrade.db")
	v.SetDefault("database.max_open_conns", 1)
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("quote.provider", "mock")
	v.SetDefault("quote.base_url", "https://www.alphavantage.co")
	// Keys without a default are invisible to AutomaticEnv on Unmarshal.
	v.SetDefault("quote.apiKey", "")
	v.SetDefault("quote.timeout", 10*time.Second)
	v.SetDefault("quote.rate_limit", 5)       // requests per second
	v.SetDefault("quote.rate_limit_burst", 5) // burst size
	v.SetDefault("quote.symbol_calls", 5)
	v.SetDefault("quote.symbol_period", time.Minute)

	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.addr", "localhost:6379")
	v.SetDefault("cache.password", "")
	v.SetDefault("cache.db", 0)
	v.SetDefault("cache.ttl", time.Minute)

	v.SetDefault("events.enabled", false)
	v.SetDefault("events.brokers", []string{"localhost:9092"})
	v.SetDefault("events.topic", "paper-trades")

	v.SetDefault("ledger.starting_cash", "100000")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
}

// Validate checks the settings that would otherwise fail late at runtime.
func (c Config) Validate() error {
	switch c.Quote.Provider {
	case "mock", "alphavantage":
	default:
		return fmt.Errorf("unknown quote provider %q", c.Quote.Provider)
	}
	if c.Quote.Provider == "alphavantage" && c.Quote.ApiKey == "" {
		return errors.New("quote.apiKey is required for the alphavantage provider")
	}
	if c.Events.Enabled && len(c.Events.Brokers) == 0 {
		return errors.New("events.brokers cannot be empty when events are enabled")
	}
	if c.Database.DSN == "" {
		return errors.New("database.dsn cannot be empty")
	}
	if _, err := c.Ledger.Cash(); err != nil {
		return err
	}
	return nil
}
