package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Holding is a user's current position in one symbol.
// A row only exists while Quantity > 0.
type Holding struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	UserID    string          `gorm:"size:128;not null;uniqueIndex:idx_holding_user_symbol" json:"user_id"`
	Symbol    string          `gorm:"size:16;not null;uniqueIndex:idx_holding_user_symbol" json:"symbol"`
	Quantity  int64           `gorm:"not null" json:"quantity"`
	AvgPrice  decimal.Decimal `gorm:"type:varchar(32);not null" json:"avg_price"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// CostBasis returns quantity × avg_price.
func (h Holding) CostBasis() decimal.Decimal {
	return h.AvgPrice.Mul(decimal.NewFromInt(h.Quantity))
}
