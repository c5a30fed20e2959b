// Package store persists accounts, holdings and the transaction log.
package store

import (
	"context"
	"errors"

	"papertrade-go/internal/models"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound      = errors.New("record not found")
	ErrAlreadyExists = errors.New("record already exists")
)

// Reader is the side-effect-free part of the store.
type Reader interface {
	GetAccount(ctx context.Context, userID string) (*models.Account, error)
	GetHolding(ctx context.Context, userID, symbol string) (*models.Holding, error)
	ListHoldings(ctx context.Context, userID string) ([]models.Holding, error)
	ListTransactions(ctx context.Context, userID string, limit int) ([]models.Transaction, error)
}

// Store is the keyed store behind the ledger.
// Mutations are expected to run inside Atomic.
type Store interface {
	Reader

	CreateAccount(ctx context.Context, account *models.Account) error
	// LockAccount reads the account and takes a row lock on it for the rest of
	// the surrounding transaction where the database supports it.
	LockAccount(ctx context.Context, userID string) (*models.Account, error)
	UpdateCashBalance(ctx context.Context, userID string, cash decimal.Decimal) error
	SaveHolding(ctx context.Context, holding *models.Holding) error
	DeleteHolding(ctx context.Context, holding *models.Holding) error
	AppendTransaction(ctx context.Context, tx *models.Transaction) error

	// Atomic runs fn in a single database transaction. Any error returned by fn
	// rolls back every write made through the Store passed to fn.
	Atomic(ctx context.Context, fn func(tx Store) error) error
}
