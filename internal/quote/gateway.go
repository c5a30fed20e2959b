// Package quote reads market data from an external provider.
package quote

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrGatewayUnavailable means the provider could not answer right now.
	// Callers treat the data as unknown, never as zero.
	ErrGatewayUnavailable = errors.New("quote gateway unavailable")
	ErrSymbolNotFound     = errors.New("symbol not found")
)

// Quote is the latest price snapshot for a symbol.
type Quote struct {
	Symbol           string          `json:"symbol"`
	Price            decimal.Decimal `json:"price"`
	Change           decimal.Decimal `json:"change"`
	ChangePercent    decimal.Decimal `json:"change_percent"`
	PreviousClose    decimal.Decimal `json:"previous_close"`
	Open             decimal.Decimal `json:"open"`
	High             decimal.Decimal `json:"high"`
	Low              decimal.Decimal `json:"low"`
	Volume           int64           `json:"volume"`
	LatestTradingDay string          `json:"latest_trading_day"`
}

// DailyBar is one day of a price series.
type DailyBar struct {
	Date   time.Time       `json:"date"`
	Open   decimal.Decimal `json:"open"`
	High   decimal.Decimal `json:"high"`
	Low    decimal.Decimal `json:"low"`
	Close  decimal.Decimal `json:"close"`
	Volume int64           `json:"volume"`
}

// SymbolMatch is a search hit.
type SymbolMatch struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Region   string `json:"region"`
	Currency string `json:"currency"`
}

// Gateway is the market data interface consumed by the ledger and the API.
type Gateway interface {
	GetQuote(ctx context.Context, symbol string) (*Quote, error)
	// GetDailySeries returns bars ordered oldest first.
	GetDailySeries(ctx context.Context, symbol string) ([]DailyBar, error)
	SearchSymbols(ctx context.Context, keyword string) ([]SymbolMatch, error)
}
