package store

import (
	"context"
	"errors"
	"fmt"

	"papertrade-go/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore implements Store on top of gorm.
type GormStore struct {
	db *gorm.DB
}

// ensure GormStore implements the interface
var _ Store = (*GormStore)(nil)

// New creates a GormStore.
func New(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) GetAccount(ctx context.Context, userID string) (*models.Account, error) {
	var account models.Account
	if err := s.db.WithContext(ctx).Where("id = ?", userID).First(&account).Error; err != nil {
		return nil, wrapNotFound(err, "account %s", userID)
	}
	return &account, nil
}

func (s *GormStore) LockAccount(ctx context.Context, userID string) (*models.Account, error) {
	var account models.Account
	err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", userID).
		First(&account).Error
	if err != nil {
		return nil, wrapNotFound(err, "account %s", userID)
	}
	return &account, nil
}

func (s *GormStore) CreateAccount(ctx context.Context, account *models.Account) error {
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(account)
	if res.Error != nil {
		return fmt.Errorf("failed to create account %s: %w", account.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("account %s: %w", account.ID, ErrAlreadyExists)
	}
	return nil
}

func (s *GormStore) UpdateCashBalance(ctx context.Context, userID string, cash decimal.Decimal) error {
	res := s.db.WithContext(ctx).Model(&models.Account{}).Where("id = ?", userID).Update("cash_balance", cash)
	if res.Error != nil {
		return fmt.Errorf("failed to update cash balance for %s: %w", userID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("account %s: %w", userID, ErrNotFound)
	}
	return nil
}

func (s *GormStore) GetHolding(ctx context.Context, userID, symbol string) (*models.Holding, error) {
	var holding models.Holding
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND symbol = ?", userID, symbol).
		First(&holding).Error
	if err != nil {
		return nil, wrapNotFound(err, "holding %s/%s", userID, symbol)
	}
	return &holding, nil
}

func (s *GormStore) ListHoldings(ctx context.Context, userID string) ([]models.Holding, error) {
	var holdings []models.Holding
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND quantity > 0", userID).
		Order("symbol asc").
		Find(&holdings).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list holdings for %s: %w", userID, err)
	}
	return holdings, nil
}

func (s *GormStore) SaveHolding(ctx context.Context, holding *models.Holding) error {
	db := s.db.WithContext(ctx)
	var err error
	if holding.ID == 0 {
		err = db.Create(holding).Error
	} else {
		err = db.Save(holding).Error
	}
	if err != nil {
		return fmt.Errorf("failed to save holding %s/%s: %w", holding.UserID, holding.Symbol, err)
	}
	return nil
}

func (s *GormStore) DeleteHolding(ctx context.Context, holding *models.Holding) error {
	if err := s.db.WithContext(ctx).Delete(&models.Holding{}, holding.ID).Error; err != nil {
		return fmt.Errorf("failed to delete holding %s/%s: %w", holding.UserID, holding.Symbol, err)
	}
	return nil
}

func (s *GormStore) AppendTransaction(ctx context.Context, tx *models.Transaction) error {
	if tx.ID != 0 {
		return errors.New("transaction log is append-only")
	}
	if err := s.db.WithContext(ctx).Create(tx).Error; err != nil {
		return fmt.Errorf("failed to append transaction for %s: %w", tx.UserID, err)
	}
	return nil
}

// ListTransactions returns the newest transactions first. limit <= 0 means all.
func (s *GormStore) ListTransactions(ctx context.Context, userID string, limit int) ([]models.Transaction, error) {
	var txs []models.Transaction
	q := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Order("id desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&txs).Error; err != nil {
		return nil, fmt.Errorf("failed to list transactions for %s: %w", userID, err)
	}
	return txs, nil
}

func (s *GormStore) Atomic(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

func wrapNotFound(err error, format string, args ...any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf(format+": %w", append(args, ErrNotFound)...)
	}
	return fmt.Errorf("failed to load "+format+": %w", append(args, err)...)
}
