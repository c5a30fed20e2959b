package ledger

import (
	"fmt"
	"regexp"
	"strings"

	"papertrade-go/internal/models"

	"github.com/shopspring/decimal"
)

const (
	// PriceScale is the number of decimal places an execution price may carry.
	PriceScale = 4
	// MaxOrderQuantity bounds a single order so position math stays in int64.
	MaxOrderQuantity = 1_000_000_000
	// avgPriceScale is the precision kept for the average cost basis.
	avgPriceScale = 8
)

var symbolPattern = regexp.MustCompile(`^[A-Z][A-Z0-9.\-]{0,9}$`)

// Order is a request to buy or sell shares. A null Price makes it a market
// order priced from the quote gateway.
type Order struct {
	Symbol   string
	Quantity int64
	Price    decimal.NullDecimal
	Side     models.Side
}

// NormalizeSymbol trims and upper-cases a ticker and checks its shape.
func NormalizeSymbol(raw string) (string, error) {
	symbol := strings.ToUpper(strings.TrimSpace(raw))
	if !symbolPattern.MatchString(symbol) {
		return "", fmt.Errorf("%w: invalid symbol %q", ErrInvalidOrder, raw)
	}
	return symbol, nil
}

// ParseSide accepts "buy" or "sell" in any case.
func ParseSide(raw string) (models.Side, error) {
	switch models.Side(strings.ToLower(strings.TrimSpace(raw))) {
	case models.SideBuy:
		return models.SideBuy, nil
	case models.SideSell:
		return models.SideSell, nil
	}
	return "", fmt.Errorf("%w: side must be buy or sell, got %q", ErrInvalidOrder, raw)
}

// normalize returns a validated copy of the order.
func (o Order) normalize() (Order, error) {
	symbol, err := NormalizeSymbol(o.Symbol)
	if err != nil {
		return o, err
	}
	o.Symbol = symbol

	side, err := ParseSide(string(o.Side))
	if err != nil {
		return o, err
	}
	o.Side = side

	if o.Quantity <= 0 {
		return o, fmt.Errorf("%w: quantity must be a positive integer, got %d", ErrInvalidOrder, o.Quantity)
	}
	if o.Quantity > MaxOrderQuantity {
		return o, fmt.Errorf("%w: quantity %d exceeds the limit of %d", ErrInvalidOrder, o.Quantity, MaxOrderQuantity)
	}

	if o.Price.Valid {
		if err := validatePrice(o.Price.Decimal); err != nil {
			return o, err
		}
	}
	return o, nil
}

func validatePrice(price decimal.Decimal) error {
	if !price.IsPositive() {
		return fmt.Errorf("%w: price must be positive, got %s", ErrInvalidOrder, price)
	}
	if !price.Equal(price.Truncate(PriceScale)) {
		return fmt.Errorf("%w: price %s has more than %d decimal places", ErrInvalidOrder, price, PriceScale)
	}
	return nil
}
