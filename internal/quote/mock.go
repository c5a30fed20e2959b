package quote

import (
	"context"
	"hash/fnv"
	"math/rand"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// MockGateway serves fixed demo data. It never fails.
type MockGateway struct {
	now func() time.Time
}

var _ Gateway = (*MockGateway)(nil)

// NewMockGateway creates a MockGateway.
func NewMockGateway() *MockGateway {
	return &MockGateway{now: time.Now}
}

type mockListing struct {
	name  string
	quote [8]string // open, high, low, price, previous close, change, change percent, volume
	base  float64   // starting point of the daily series
}

// Demo figures, all as of the same trading day.
const mockTradingDay = "2025-04-20"

var mockListings = map[string]mockListing{
	"AAPL":  {"Apple Inc.", [8]string{"175.50", "178.25", "174.75", "177.85", "176.20", "1.65", "0.94", "65432100"}, 175},
	"MSFT":  {"Microsoft Corporation", [8]string{"410.25", "415.75", "408.50", "413.80", "409.90", "3.90", "0.95", "23456700"}, 410},
	"GOOGL": {"Alphabet Inc.", [8]string{"175.30", "177.80", "174.20", "176.75", "174.90", "1.85", "1.06", "18765400"}, 175},
	"AMZN":  {"Amazon.com Inc.", [8]string{"182.50", "185.25", "181.75", "184.60", "183.10", "1.50", "0.82", "32145600"}, 180},
	"TSLA":  {"Tesla Inc.", [8]string{"215.75", "220.50", "214.25", "218.90", "216.30", "2.60", "1.20", "54321000"}, 215},
	"META":  {"Meta Platforms Inc.", [8]string{"485.25", "490.75", "483.50", "488.90", "484.60", "4.30", "0.89", "12345600"}, 485},
	"NVDA":  {"NVIDIA Corporation", [8]string{"925.50", "935.25", "920.75", "930.80", "924.30", "6.50", "0.70", "28765400"}, 925},
	"JPM":   {"JPMorgan Chase & Co.", [8]string{"195.25", "198.50", "194.75", "197.85", "196.40", "1.45", "0.74", "10987600"}, 195},
}

// mockOrder keeps search results stable.
var mockOrder = []string{"AAPL", "MSFT", "GOOGL", "AMZN", "TSLA", "META", "NVDA", "JPM"}

var defaultListing = mockListing{
	quote: [8]string{"100.00", "102.50", "99.25", "101.75", "100.50", "1.25", "1.24", "5000000"},
	base:  100,
}

func (g *MockGateway) GetQuote(_ context.Context, symbol string) (*Quote, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	l, ok := mockListings[symbol]
	if !ok {
		l = defaultListing
	}
	q := l.quote
	volume := decimal.RequireFromString(q[7]).IntPart()
	return &Quote{
		Symbol:           symbol,
		Open:             decimal.RequireFromString(q[0]),
		High:             decimal.RequireFromString(q[1]),
		Low:              decimal.RequireFromString(q[2]),
		Price:            decimal.RequireFromString(q[3]),
		PreviousClose:    decimal.RequireFromString(q[4]),
		Change:           decimal.RequireFromString(q[5]),
		ChangePercent:    decimal.RequireFromString(q[6]),
		Volume:           volume,
		LatestTradingDay: mockTradingDay,
	}, nil
}

// GetDailySeries returns 30 days ending yesterday. The walk is seeded by the
// symbol so repeated calls on the same day agree.
func (g *MockGateway) GetDailySeries(_ context.Context, symbol string) ([]DailyBar, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	l, ok := mockListings[symbol]
	if !ok {
		l = defaultListing
	}

	h := fnv.New64a()
	h.Write([]byte(symbol))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	today := g.now().UTC().Truncate(24 * time.Hour)
	price := l.base
	bars := make([]DailyBar, 0, 30)
	for i := 30; i > 0; i-- {
		open := price * (1 + (rng.Float64()*0.04 - 0.02))
		high := open * (1 + rng.Float64()*0.015)
		low := open * (1 - rng.Float64()*0.015)
		closePrice := low + rng.Float64()*(high-low)
		volume := 1_000_000 + rng.Int63n(9_000_000)
		price = closePrice

		bars = append(bars, DailyBar{
			Date:   today.AddDate(0, 0, -i),
			Open:   decimal.NewFromFloat(open).Round(2),
			High:   decimal.NewFromFloat(high).Round(2),
			Low:    decimal.NewFromFloat(low).Round(2),
			Close:  decimal.NewFromFloat(closePrice).Round(2),
			Volume: volume,
		})
	}
	return bars, nil
}

// SearchSymbols matches the keyword against symbols and names. An empty
// keyword lists everything.
func (g *MockGateway) SearchSymbols(_ context.Context, keyword string) ([]SymbolMatch, error) {
	keyword = strings.ToUpper(strings.TrimSpace(keyword))
	matches := []SymbolMatch{}
	for _, symbol := range mockOrder {
		l := mockListings[symbol]
		if keyword != "" && !strings.Contains(symbol, keyword) && !strings.Contains(strings.ToUpper(l.name), keyword) {
			continue
		}
		matches = append(matches, SymbolMatch{
			Symbol:   symbol,
			Name:     l.name,
			Type:     "Equity",
			Region:   "United States",
			Currency: "USD",
		})
	}
	return matches, nil
}
