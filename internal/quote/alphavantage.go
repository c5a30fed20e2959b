package quote

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"papertrade-go/internal/config"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	functionGlobalQuote  = "GLOBAL_QUOTE"
	functionDailySeries  = "TIME_SERIES_DAILY"
	functionSymbolSearch = "SYMBOL_SEARCH"
	maxRetries           = 3
)

// AlphaVantageClient is a Gateway backed by the Alpha Vantage query API.
type AlphaVantageClient struct {
	client  *resty.Client
	apiKey  string
	logger  *zap.Logger
	limiter *rate.Limiter
	symbols *symbolLimiter
	backoff func(attempt int) time.Duration
}

// ensure AlphaVantageClient implements the interface
var _ Gateway = (*AlphaVantageClient)(nil)

// NewAlphaVantageClient creates a new market data client.
func NewAlphaVantageClient(cfg *config.Quote, logger *zap.Logger) *AlphaVantageClient {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout)

	// rate.Limit is requests per second.
	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimitBurst)

	return &AlphaVantageClient{
		client:  client,
		apiKey:  cfg.ApiKey,
		logger:  logger.Named("alphavantage"),
		limiter: limiter,
		symbols: newSymbolLimiter(cfg.SymbolCalls, cfg.SymbolPeriod),
		backoff: exponentialBackoff,
	}
}

// Exponential backoff: 1s, 2s, 4s
func exponentialBackoff(attempt int) time.Duration {
	return time.Duration(math.Pow(2, float64(attempt))) * time.Second
}

// apiEnvelope holds the fields Alpha Vantage uses to report problems with a 200 status.
type apiEnvelope struct {
	ErrorMessage string `json:"Error Message"`
	Note         string `json:"Note"`
	Information  string `json:"Information"`
}

func (e apiEnvelope) check() error {
	switch {
	case e.ErrorMessage != "":
		return fmt.Errorf("%w: %s", ErrSymbolNotFound, e.ErrorMessage)
	case e.Note != "":
		return fmt.Errorf("%w: %s", ErrGatewayUnavailable, e.Note)
	case e.Information != "":
		return fmt.Errorf("%w: %s", ErrGatewayUnavailable, e.Information)
	}
	return nil
}

type globalQuoteResponse struct {
	apiEnvelope
	GlobalQuote map[string]string `json:"Global Quote"`
}

type dailySeriesResponse struct {
	apiEnvelope
	TimeSeries map[string]map[string]string `json:"Time Series (Daily)"`
}

type symbolSearchResponse struct {
	apiEnvelope
	BestMatches []map[string]string `json:"bestMatches"`
}

// doRequest handles the actual request execution with rate limiting and retry logic.
func (c *AlphaVantageClient) doRequest(ctx context.Context, params map[string]string, result any) error {
	var lastErr error

	for i := 0; i < maxRetries; i++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: rate limiter wait failed: %v", ErrGatewayUnavailable, err)
		}

		req := c.client.R().
			SetContext(ctx).
			SetQueryParams(params).
			SetQueryParam("apikey", c.apiKey).
			SetResult(result)

		c.logger.Debug("Executing request", zap.String("function", params["function"]))
		resp, err := req.Get("/query")

		if err == nil && !resp.IsError() {
			return nil
		}

		// Analyze error and decide whether to retry
		shouldRetry := false
		var retryAfter time.Duration

		if resp != nil && err == nil {
			statusCode := resp.StatusCode()
			if statusCode == http.StatusTooManyRequests {
				shouldRetry = true
				if seconds, convErr := strconv.Atoi(resp.Header().Get("Retry-After")); convErr == nil {
					retryAfter = time.Duration(seconds) * time.Second
				}
			} else if statusCode >= 500 {
				shouldRetry = true
			}
			lastErr = fmt.Errorf("request failed with status %s", resp.Status())
		} else {
			if ctx.Err() != nil {
				return fmt.Errorf("%w: %v", ErrGatewayUnavailable, ctx.Err())
			}
			// Network or other client-side errors
			shouldRetry = true
			lastErr = err
		}

		if !shouldRetry {
			return fmt.Errorf("%w: %v", ErrGatewayUnavailable, lastErr)
		}

		if retryAfter == 0 {
			retryAfter = c.backoff(i)
		}

		c.logger.Warn("Request failed, retrying...",
			zap.Int("attempt", i+1),
			zap.Duration("retry_after", retryAfter),
			zap.Error(lastErr),
		)

		select {
		case <-time.After(retryAfter):
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrGatewayUnavailable, ctx.Err())
		}
	}

	return fmt.Errorf("%w: request failed after %d attempts: %v", ErrGatewayUnavailable, maxRetries, lastErr)
}

// GetQuote fetches the latest quote for a symbol.
func (c *AlphaVantageClient) GetQuote(ctx context.Context, symbol string) (*Quote, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if err := c.symbols.allow(symbol); err != nil {
		return nil, err
	}

	var result globalQuoteResponse
	params := map[string]string{"function": functionGlobalQuote, "symbol": symbol}
	if err := c.doRequest(ctx, params, &result); err != nil {
		c.logger.Error("Failed to get quote", zap.String("symbol", symbol), zap.Error(err))
		return nil, fmt.Errorf("failed to get quote for %s: %w", symbol, err)
	}
	if err := result.check(); err != nil {
		return nil, fmt.Errorf("failed to get quote for %s: %w", symbol, err)
	}
	if len(result.GlobalQuote) == 0 {
		return nil, fmt.Errorf("no quote for %s: %w", symbol, ErrSymbolNotFound)
	}

	q, err := parseGlobalQuote(result.GlobalQuote)
	if err != nil {
		return nil, fmt.Errorf("failed to parse quote for %s: %w", symbol, err)
	}
	if q.Symbol == "" {
		q.Symbol = symbol
	}
	return q, nil
}

// GetDailySeries fetches the compact daily series, oldest bar first.
func (c *AlphaVantageClient) GetDailySeries(ctx context.Context, symbol string) ([]DailyBar, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if err := c.symbols.allow(symbol); err != nil {
		return nil, err
	}

	var result dailySeriesResponse
	params := map[string]string{"function": functionDailySeries, "symbol": symbol, "outputsize": "compact"}
	if err := c.doRequest(ctx, params, &result); err != nil {
		return nil, fmt.Errorf("failed to get daily series for %s: %w", symbol, err)
	}
	if err := result.check(); err != nil {
		return nil, fmt.Errorf("failed to get daily series for %s: %w", symbol, err)
	}

	bars := make([]DailyBar, 0, len(result.TimeSeries))
	for day, fields := range result.TimeSeries {
		date, err := time.Parse(time.DateOnly, day)
		if err != nil {
			c.logger.Warn("Skipping bar with invalid date", zap.String("symbol", symbol), zap.String("date", day))
			continue
		}
		bar, err := parseDailyBar(fields)
		if err != nil {
			c.logger.Warn("Skipping unparseable bar", zap.String("symbol", symbol), zap.String("date", day), zap.Error(err))
			continue
		}
		bar.Date = date
		bars = append(bars, bar)
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	return bars, nil
}

// SearchSymbols looks up symbols matching a keyword.
func (c *AlphaVantageClient) SearchSymbols(ctx context.Context, keyword string) ([]SymbolMatch, error) {
	var result symbolSearchResponse
	params := map[string]string{"function": functionSymbolSearch, "keywords": keyword}
	if err := c.doRequest(ctx, params, &result); err != nil {
		return nil, fmt.Errorf("failed to search symbols for %q: %w", keyword, err)
	}
	if err := result.check(); err != nil {
		return nil, fmt.Errorf("failed to search symbols for %q: %w", keyword, err)
	}

	matches := make([]SymbolMatch, 0, len(result.BestMatches))
	for _, m := range result.BestMatches {
		matches = append(matches, SymbolMatch{
			Symbol:   m["1. symbol"],
			Name:     m["2. name"],
			Type:     m["3. type"],
			Region:   m["4. region"],
			Currency: m["8. currency"],
		})
	}
	return matches, nil
}

func parseGlobalQuote(fields map[string]string) (*Quote, error) {
	p := fieldParser{fields: fields}
	q := &Quote{
		Symbol:           fields["01. symbol"],
		Open:             p.decimal("02. open"),
		High:             p.decimal("03. high"),
		Low:              p.decimal("04. low"),
		Price:            p.decimal("05. price"),
		Volume:           p.int("06. volume"),
		LatestTradingDay: fields["07. latest trading day"],
		PreviousClose:    p.decimal("08. previous close"),
		Change:           p.decimal("09. change"),
		ChangePercent:    p.decimal("10. change percent"),
	}
	if p.err != nil {
		return nil, p.err
	}
	return q, nil
}

func parseDailyBar(fields map[string]string) (DailyBar, error) {
	p := fieldParser{fields: fields}
	bar := DailyBar{
		Open:   p.decimal("1. open"),
		High:   p.decimal("2. high"),
		Low:    p.decimal("3. low"),
		Close:  p.decimal("4. close"),
		Volume: p.int("5. volume"),
	}
	return bar, p.err
}

// fieldParser keeps the first parse error so callers check once.
type fieldParser struct {
	fields map[string]string
	err    error
}

func (p *fieldParser) decimal(key string) decimal.Decimal {
	raw := strings.TrimSuffix(strings.TrimSpace(p.fields[key]), "%")
	d, err := decimal.NewFromString(raw)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("field %q: %w", key, err)
	}
	return d
}

func (p *fieldParser) int(key string) int64 {
	raw := strings.TrimSpace(p.fields[key])
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("field %q: %w", key, err)
	}
	return n
}

// IsUnavailable reports whether err means the data is unknown rather than absent.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrGatewayUnavailable)
}
