// Package ledger executes paper trades and keeps cash, holdings and the
// transaction log consistent with each other.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"papertrade-go/internal/events"
	"papertrade-go/internal/models"
	"papertrade-go/internal/quote"
	"papertrade-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const publishTimeout = 5 * time.Second

// Engine is the only writer of accounts, holdings and transactions.
type Engine struct {
	logger       *zap.Logger
	store        store.Store
	quotes       quote.Gateway
	publisher    events.Publisher
	locks        *userLocks
	startingCash decimal.Decimal
	now          func() time.Time
}

// OrderResult is the state left behind by one executed order. Holding has a
// zero quantity when a sell closed the position.
type OrderResult struct {
	Account      models.Account     `json:"account"`
	Holding      models.Holding     `json:"holding"`
	Transaction  models.Transaction `json:"transaction"`
	RealizedGain decimal.Decimal    `json:"realized_gain"`
}

// NewEngine creates a new ledger engine. quotes prices market orders and may be
// nil, in which case every order must carry a price.
func NewEngine(logger *zap.Logger, st store.Store, quotes quote.Gateway, publisher events.Publisher, startingCash decimal.Decimal) *Engine {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Engine{
		logger:       logger.Named("ledger"),
		store:        st,
		quotes:       quotes,
		publisher:    publisher,
		locks:        newUserLocks(),
		startingCash: startingCash,
		now:          time.Now,
	}
}

// ExecuteOrder validates the order, then applies the cash, holding and log
// updates in one transaction. Orders for the same user never interleave.
func (e *Engine) ExecuteOrder(ctx context.Context, userID string, order Order) (*OrderResult, error) {
	if err := checkUser(userID); err != nil {
		return nil, err
	}
	order, err := order.normalize()
	if err != nil {
		return nil, err
	}

	// Market orders cost a quote call; unknown accounts are turned away first.
	if !order.Price.Valid {
		if _, err := e.GetAccount(ctx, userID); err != nil {
			return nil, err
		}
	}
	price, err := e.executionPrice(ctx, order)
	if err != nil {
		return nil, err
	}

	release, err := e.locks.acquire(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("order for %s not started: %w", userID, err)
	}
	defer release()

	var result OrderResult
	err = e.store.Atomic(ctx, func(tx store.Store) error {
		return e.apply(ctx, tx, userID, order, price, &result)
	})
	if err != nil {
		if !isRejection(err) {
			err = fmt.Errorf("%w: %w", ErrPersistence, err)
		}
		e.logger.Info("Order rejected",
			zap.String("user_id", userID),
			zap.String("symbol", order.Symbol),
			zap.String("side", string(order.Side)),
			zap.Int64("quantity", order.Quantity),
			zap.Error(err),
		)
		return nil, err
	}

	e.logger.Info("Order executed",
		zap.String("user_id", userID),
		zap.String("symbol", order.Symbol),
		zap.String("side", string(order.Side)),
		zap.Int64("quantity", order.Quantity),
		zap.String("price", price.String()),
		zap.String("cash_balance", result.Account.CashBalance.String()),
	)
	e.publish(ctx, &result)
	return &result, nil
}

// apply runs inside the store transaction. Store errors are wrapped as
// persistence failures so the caller can tell them from rejections.
func (e *Engine) apply(ctx context.Context, tx store.Store, userID string, order Order, price decimal.Decimal, result *OrderResult) error {
	account, err := tx.LockAccount(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, userID)
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	holding, err := tx.GetHolding(ctx, userID, order.Symbol)
	switch {
	case errors.Is(err, store.ErrNotFound):
		holding = &models.Holding{UserID: userID, Symbol: order.Symbol}
	case err != nil:
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	total := price.Mul(decimal.NewFromInt(order.Quantity))
	cash := account.CashBalance
	realized := decimal.Zero

	switch order.Side {
	case models.SideBuy:
		if total.GreaterThan(cash) {
			return fmt.Errorf("%w: order costs %s but only %s is available", ErrInsufficientFunds, total.StringFixed(2), cash.StringFixed(2))
		}
		holding.Quantity, holding.AvgPrice = applyBuy(holding.Quantity, holding.AvgPrice, order.Quantity, price)
		if err := tx.SaveHolding(ctx, holding); err != nil {
			return fmt.Errorf("%w: %w", ErrPersistence, err)
		}
		cash = cash.Sub(total)

	case models.SideSell:
		if holding.Quantity < order.Quantity {
			return fmt.Errorf("%w: selling %d %s but only %d held", ErrInsufficientShares, order.Quantity, order.Symbol, holding.Quantity)
		}
		holding.Quantity, realized = applySell(holding.Quantity, holding.AvgPrice, order.Quantity, price)
		if holding.Quantity == 0 {
			if err := tx.DeleteHolding(ctx, holding); err != nil {
				return fmt.Errorf("%w: %w", ErrPersistence, err)
			}
			holding.AvgPrice = decimal.Zero
		} else if err := tx.SaveHolding(ctx, holding); err != nil {
			return fmt.Errorf("%w: %w", ErrPersistence, err)
		}
		cash = cash.Add(total)
	}

	if err := tx.UpdateCashBalance(ctx, userID, cash); err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	account.CashBalance = cash

	entry := &models.Transaction{
		UserID:    userID,
		Symbol:    order.Symbol,
		Quantity:  order.Quantity,
		Price:     price,
		Side:      order.Side,
		Total:     total,
		CreatedAt: e.now().UTC(),
	}
	if err := tx.AppendTransaction(ctx, entry); err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	result.Account = *account
	result.Holding = *holding
	result.Transaction = *entry
	result.RealizedGain = realized
	return nil
}

// executionPrice is the order's own price, or the current quote for market orders.
func (e *Engine) executionPrice(ctx context.Context, order Order) (decimal.Decimal, error) {
	if order.Price.Valid {
		return order.Price.Decimal, nil
	}
	if e.quotes == nil {
		return decimal.Zero, fmt.Errorf("%w: price is required", ErrInvalidOrder)
	}

	q, err := e.quotes.GetQuote(ctx, order.Symbol)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to price market order for %s: %w", order.Symbol, err)
	}
	price := q.Price.Round(PriceScale)
	if !price.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: no usable price for %s", quote.ErrGatewayUnavailable, order.Symbol)
	}
	return price, nil
}

func (e *Engine) publish(ctx context.Context, result *OrderResult) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	tx := result.Transaction
	ev := events.TradeEvent{
		EventID:       uuid.NewString(),
		TransactionID: tx.ID,
		UserID:        tx.UserID,
		Symbol:        tx.Symbol,
		Side:          string(tx.Side),
		Quantity:      tx.Quantity,
		Price:         tx.Price,
		Total:         tx.Total,
		CashBalance:   result.Account.CashBalance,
		ExecutedAt:    tx.CreatedAt,
	}
	if err := e.publisher.PublishTrade(ctx, ev); err != nil {
		e.logger.Warn("Failed to publish trade event", zap.Uint("transaction_id", tx.ID), zap.Error(err))
	}
}

// EnsureAccount returns the user's account, creating it with the starting
// cash on first use. Existing accounts are never modified.
func (e *Engine) EnsureAccount(ctx context.Context, userID, email string) (*models.Account, bool, error) {
	if err := checkUser(userID); err != nil {
		return nil, false, err
	}

	release, err := e.locks.acquire(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	defer release()

	account, err := e.store.GetAccount(ctx, userID)
	if err == nil {
		return account, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, false, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	account = &models.Account{
		ID:                userID,
		Email:             strings.TrimSpace(email),
		CashBalance:       e.startingCash,
		InitialInvestment: e.startingCash,
	}
	err = e.store.CreateAccount(ctx, account)
	if errors.Is(err, store.ErrAlreadyExists) {
		// Created by another process between the read and the insert.
		existing, getErr := e.store.GetAccount(ctx, userID)
		if getErr != nil {
			return nil, false, fmt.Errorf("%w: %w", ErrPersistence, getErr)
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	e.logger.Info("Account provisioned", zap.String("user_id", userID), zap.String("starting_cash", e.startingCash.String()))
	return account, true, nil
}

// GetAccount returns the user's account.
func (e *Engine) GetAccount(ctx context.Context, userID string) (*models.Account, error) {
	if err := checkUser(userID); err != nil {
		return nil, err
	}
	account, err := e.store.GetAccount(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return account, nil
}

// ListHoldings returns the user's open positions ordered by symbol.
func (e *Engine) ListHoldings(ctx context.Context, userID string) ([]models.Holding, error) {
	if _, err := e.GetAccount(ctx, userID); err != nil {
		return nil, err
	}
	holdings, err := e.store.ListHoldings(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return holdings, nil
}

// ListTransactions returns the user's history newest first. limit <= 0 means all.
func (e *Engine) ListTransactions(ctx context.Context, userID string, limit int) ([]models.Transaction, error) {
	if _, err := e.GetAccount(ctx, userID); err != nil {
		return nil, err
	}
	txs, err := e.store.ListTransactions(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return txs, nil
}

// Statistics summarizes the user's trading activity.
func (e *Engine) Statistics(ctx context.Context, userID string) (*Statistics, error) {
	txs, err := e.ListTransactions(ctx, userID, 0)
	if err != nil {
		return nil, err
	}
	stats := summarize(txs, e.now().Add(-24*time.Hour))
	return &stats, nil
}

func checkUser(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidUser)
	}
	return nil
}
