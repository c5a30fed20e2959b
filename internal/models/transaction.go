package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of an executed order.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Transaction is an executed order. Rows are append-only.
type Transaction struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	UserID    string          `gorm:"size:128;not null;index:idx_transaction_user_created" json:"user_id"`
	Symbol    string          `gorm:"size:16;not null" json:"symbol"`
	Quantity  int64           `gorm:"not null" json:"quantity"`
	Price     decimal.Decimal `gorm:"type:varchar(32);not null" json:"price"`
	Side      Side            `gorm:"size:4;not null" json:"type"`
	Total     decimal.Decimal `gorm:"type:varchar(32);not null" json:"total"`
	CreatedAt time.Time       `gorm:"index:idx_transaction_user_created" json:"created_at"`
}
