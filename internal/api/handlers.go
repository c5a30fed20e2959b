package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"papertrade-go/internal/ledger"
	"papertrade-go/internal/models"
	"papertrade-go/internal/portfolio"
	"papertrade-go/internal/quote"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const maxTransactionsLimit = 500

// Ledger is the part of the ledger engine the API calls.
type Ledger interface {
	ExecuteOrder(ctx context.Context, userID string, order ledger.Order) (*ledger.OrderResult, error)
	EnsureAccount(ctx context.Context, userID, email string) (*models.Account, bool, error)
	GetAccount(ctx context.Context, userID string) (*models.Account, error)
	ListHoldings(ctx context.Context, userID string) ([]models.Holding, error)
	ListTransactions(ctx context.Context, userID string, limit int) ([]models.Transaction, error)
	Statistics(ctx context.Context, userID string) (*ledger.Statistics, error)
}

// Valuator values a user's portfolio.
type Valuator interface {
	Value(ctx context.Context, userID string) (*portfolio.Valuation, error)
}

var (
	_ Ledger   = (*ledger.Engine)(nil)
	_ Valuator = (*portfolio.Valuator)(nil)
)

// Handler holds dependencies for the API endpoints.
type Handler struct {
	log      *zap.Logger
	ledger   Ledger
	valuator Valuator
	quotes   quote.Gateway
}

// NewHandler creates a new Handler.
func NewHandler(log *zap.Logger, l Ledger, v Valuator, quotes quote.Gateway) *Handler {
	return &Handler{log: log, ledger: l, valuator: v, quotes: quotes}
}

// orderRequest is the JSON body for POST /api/user/transactions.
type orderRequest struct {
	Symbol   string              `json:"symbol"`
	Quantity int64               `json:"quantity"`
	Price    decimal.NullDecimal `json:"price"`
	Type     string              `json:"type"`
}

type balanceResponse struct {
	UserID            string          `json:"user_id"`
	Email             string          `json:"email"`
	CashBalance       decimal.Decimal `json:"cash_balance"`
	InitialInvestment decimal.Decimal `json:"initial_investment"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

type accountResponse struct {
	Account *models.Account `json:"account"`
	Created bool            `json:"created"`
}

// Search handles GET /api/market/search.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	keywords := r.URL.Query().Get("keywords")
	if keywords == "" {
		WriteError(w, http.StatusBadRequest, "invalid_request", "keywords query parameter is required")
		return
	}
	matches, err := h.quotes.SearchSymbols(r.Context(), keywords)
	if err != nil {
		h.log.Warn("Symbol search failed", zap.String("keywords", keywords), zap.Error(err))
		writeDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"matches": matches})
}

// Quote handles GET /api/market/quote/{symbol}.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	symbol, err := ledger.NormalizeSymbol(chi.URLParam(r, "symbol"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_symbol", err.Error())
		return
	}
	q, err := h.quotes.GetQuote(r.Context(), symbol)
	if err != nil {
		h.log.Warn("Quote lookup failed", zap.String("symbol", symbol), zap.Error(err))
		writeDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, q)
}

// DailySeries handles GET /api/market/daily/{symbol}.
func (h *Handler) DailySeries(w http.ResponseWriter, r *http.Request) {
	symbol, err := ledger.NormalizeSymbol(chi.URLParam(r, "symbol"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_symbol", err.Error())
		return
	}
	bars, err := h.quotes.GetDailySeries(r.Context(), symbol)
	if err != nil {
		h.log.Warn("Daily series lookup failed", zap.String("symbol", symbol), zap.Error(err))
		writeDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"symbol": symbol, "bars": bars})
}

// ProvisionAccount handles POST /api/user/account.
func (h *Handler) ProvisionAccount(w http.ResponseWriter, r *http.Request) {
	id := userFrom(r)
	account, created, err := h.ledger.EnsureAccount(r.Context(), id.userID, id.email)
	if err != nil {
		h.log.Error("Failed to provision account", zap.String("user_id", id.userID), zap.Error(err))
		writeDomainError(w, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	WriteJSON(w, status, accountResponse{Account: account, Created: created})
}

// Balance handles GET /api/user/balance.
func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	account, err := h.ledger.GetAccount(r.Context(), userFrom(r).userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, balanceResponse{
		UserID:            account.ID,
		Email:             account.Email,
		CashBalance:       account.CashBalance,
		InitialInvestment: account.InitialInvestment,
		UpdatedAt:         account.UpdatedAt,
	})
}

// Portfolio handles GET /api/user/portfolio.
func (h *Handler) Portfolio(w http.ResponseWriter, r *http.Request) {
	holdings, err := h.ledger.ListHoldings(r.Context(), userFrom(r).userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"holdings": holdings})
}

// Valuation handles GET /api/user/valuation.
func (h *Handler) Valuation(w http.ResponseWriter, r *http.Request) {
	val, err := h.valuator.Value(r.Context(), userFrom(r).userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, val)
}

// Transactions handles GET /api/user/transactions, newest first.
func (h *Handler) Transactions(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxTransactionsLimit {
			WriteError(w, http.StatusBadRequest, "invalid_request", "limit must be between 1 and 500")
			return
		}
		limit = n
	}
	txs, err := h.ledger.ListTransactions(r.Context(), userFrom(r).userID, limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"transactions": txs})
}

// Statistics handles GET /api/user/statistics.
func (h *Handler) Statistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.ledger.Statistics(r.Context(), userFrom(r).userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, stats)
}

// PlaceOrder handles POST /api/user/transactions.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	side, err := ledger.ParseSide(req.Type)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	result, err := h.ledger.ExecuteOrder(r.Context(), userFrom(r).userID, ledger.Order{
		Symbol:   req.Symbol,
		Quantity: req.Quantity,
		Price:    req.Price,
		Side:     side,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, result)
}
