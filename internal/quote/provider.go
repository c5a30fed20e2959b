package quote

import (
	"context"
	"fmt"
	"time"

	"papertrade-go/internal/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NewGateway builds the configured provider and, when enabled, wraps it in the
// Redis cache. The returned cleanup func closes whatever was opened.
func NewGateway(ctx context.Context, cfg config.Config, logger *zap.Logger) (Gateway, func(), error) {
	var gw Gateway
	switch cfg.Quote.Provider {
	case "mock":
		gw = NewMockGateway()
	case "alphavantage":
		gw = NewAlphaVantageClient(&cfg.Quote, logger)
	default:
		return nil, nil, fmt.Errorf("unknown quote provider %q", cfg.Quote.Provider)
	}
	logger.Info("Quote provider selected", zap.String("provider", cfg.Quote.Provider))

	if !cfg.Cache.Enabled {
		return gw, func() {}, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Cache.Addr,
		Password: cfg.Cache.Password,
		DB:       cfg.Cache.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Cache.Addr, err)
	}
	logger.Info("Quote cache enabled", zap.String("addr", cfg.Cache.Addr), zap.Duration("ttl", cfg.Cache.TTL))

	cleanup := func() {
		if err := rdb.Close(); err != nil {
			logger.Warn("Failed to close redis client", zap.Error(err))
		}
	}
	return NewCachedGateway(gw, rdb, cfg.Cache.TTL, logger), cleanup, nil
}
