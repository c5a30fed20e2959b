package quote

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const cacheKeyPrefix = "quote:"

var _ Gateway = (*CachedGateway)(nil)

// CachedGateway keeps successful provider answers in Redis for a short TTL.
// Redis failures are logged and the provider is asked directly. Errors are
// never cached.
type CachedGateway struct {
	next   Gateway
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewCachedGateway(next Gateway, client *redis.Client, ttl time.Duration, logger *zap.Logger) *CachedGateway {
	return &CachedGateway{
		next:   next,
		client: client,
		ttl:    ttl,
		logger: logger.Named("quote_cache"),
	}
}

func (g *CachedGateway) GetQuote(ctx context.Context, symbol string) (*Quote, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	return cached(ctx, g, "global:"+symbol, func() (*Quote, error) {
		return g.next.GetQuote(ctx, symbol)
	})
}

func (g *CachedGateway) GetDailySeries(ctx context.Context, symbol string) ([]DailyBar, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	return cached(ctx, g, "daily:"+symbol, func() ([]DailyBar, error) {
		return g.next.GetDailySeries(ctx, symbol)
	})
}

func (g *CachedGateway) SearchSymbols(ctx context.Context, keyword string) ([]SymbolMatch, error) {
	key := "search:" + strings.ToLower(strings.TrimSpace(keyword))
	return cached(ctx, g, key, func() ([]SymbolMatch, error) {
		return g.next.SearchSymbols(ctx, keyword)
	})
}

func cached[T any](ctx context.Context, g *CachedGateway, key string, load func() (T, error)) (T, error) {
	key = cacheKeyPrefix + key

	payload, err := g.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var v T
		if err := json.Unmarshal(payload, &v); err == nil {
			return v, nil
		}
		g.logger.Warn("Discarding undecodable cache entry", zap.String("key", key))
	case !errors.Is(err, redis.Nil):
		g.logger.Warn("Cache read failed", zap.String("key", key), zap.Error(err))
	}

	v, err := load()
	if err != nil {
		return v, err
	}

	if payload, err := json.Marshal(v); err == nil {
		if err := g.client.Set(ctx, key, payload, g.ttl).Err(); err != nil {
			g.logger.Warn("Cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return v, nil
}
