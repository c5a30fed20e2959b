package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account is a user's cash account. ID is the identity supplied by the auth collaborator.
//
// Money columns are text so SQLite keeps the exact decimal instead of a REAL.
type Account struct {
	ID                string          `gorm:"primaryKey;size:128" json:"id"`
	Email             string          `gorm:"size:320" json:"email"`
	CashBalance       decimal.Decimal `gorm:"type:varchar(32);not null" json:"cash_balance"`
	InitialInvestment decimal.Decimal `gorm:"type:varchar(32);not null" json:"initial_investment"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}
