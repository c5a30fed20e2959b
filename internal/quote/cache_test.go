package quote

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// countingGateway counts provider calls and can be switched to fail.
type countingGateway struct {
	Gateway
	quotes  int
	daily   int
	searchs int
	fail    error
}

func (c *countingGateway) GetQuote(ctx context.Context, symbol string) (*Quote, error) {
	c.quotes++
	if c.fail != nil {
		return nil, c.fail
	}
	return c.Gateway.GetQuote(ctx, symbol)
}

func (c *countingGateway) GetDailySeries(ctx context.Context, symbol string) ([]DailyBar, error) {
	c.daily++
	return c.Gateway.GetDailySeries(ctx, symbol)
}

func (c *countingGateway) SearchSymbols(ctx context.Context, keyword string) ([]SymbolMatch, error) {
	c.searchs++
	return c.Gateway.SearchSymbols(ctx, keyword)
}

func setupCache(t *testing.T) (*CachedGateway, *countingGateway, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	inner := &countingGateway{Gateway: NewMockGateway()}
	return NewCachedGateway(inner, rdb, time.Minute, zap.NewNop()), inner, mr
}

func TestCachedGateway_GetQuote(t *testing.T) {
	ctx := context.Background()

	t.Run("Second call is served from cache", func(t *testing.T) {
		g, inner, mr := setupCache(t)

		first, err := g.GetQuote(ctx, "aapl")
		require.NoError(t, err)
		second, err := g.GetQuote(ctx, "AAPL")
		require.NoError(t, err)

		assert.Equal(t, 1, inner.quotes)
		assert.True(t, first.Price.Equal(second.Price))
		assert.True(t, mr.Exists("quote:global:AAPL"))
	})

	t.Run("Entry expires after the TTL", func(t *testing.T) {
		g, inner, mr := setupCache(t)

		_, err := g.GetQuote(ctx, "MSFT")
		require.NoError(t, err)
		mr.FastForward(2 * time.Minute)
		_, err = g.GetQuote(ctx, "MSFT")
		require.NoError(t, err)

		assert.Equal(t, 2, inner.quotes)
	})

	t.Run("Errors are not cached", func(t *testing.T) {
		g, inner, mr := setupCache(t)
		inner.fail = ErrGatewayUnavailable

		_, err := g.GetQuote(ctx, "TSLA")
		assert.ErrorIs(t, err, ErrGatewayUnavailable)
		assert.False(t, mr.Exists("quote:global:TSLA"))

		inner.fail = nil
		q, err := g.GetQuote(ctx, "TSLA")
		require.NoError(t, err)
		assert.Equal(t, "TSLA", q.Symbol)
	})

	t.Run("Redis down falls through to provider", func(t *testing.T) {
		g, inner, mr := setupCache(t)
		mr.Close()

		q, err := g.GetQuote(ctx, "NVDA")
		require.NoError(t, err)
		assert.Equal(t, "NVDA", q.Symbol)
		assert.Equal(t, 1, inner.quotes)
	})

	t.Run("Corrupt entry is replaced", func(t *testing.T) {
		g, inner, mr := setupCache(t)
		require.NoError(t, mr.Set("quote:global:META", "not json"))

		q, err := g.GetQuote(ctx, "META")
		require.NoError(t, err)
		assert.Equal(t, "META", q.Symbol)
		assert.Equal(t, 1, inner.quotes)
	})
}

func TestCachedGateway_SeriesAndSearch(t *testing.T) {
	ctx := context.Background()
	g, inner, _ := setupCache(t)

	for i := 0; i < 2; i++ {
		bars, err := g.GetDailySeries(ctx, "GOOGL")
		require.NoError(t, err)
		assert.Len(t, bars, 30)

		matches, err := g.SearchSymbols(ctx, "apple")
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, "AAPL", matches[0].Symbol)
	}

	assert.Equal(t, 1, inner.daily)
	assert.Equal(t, 1, inner.searchs)
}

func TestCachedGateway_KeepsErrorKind(t *testing.T) {
	g, inner, _ := setupCache(t)
	inner.fail = ErrSymbolNotFound

	_, err := g.GetQuote(context.Background(), "X")
	assert.True(t, errors.Is(err, ErrSymbolNotFound))
}
