// Package portfolio values a user's holdings against current quotes.
package portfolio

import (
	"context"
	"sync"

	"papertrade-go/internal/models"
	"papertrade-go/internal/quote"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const defaultConcurrency = 4

var hundred = decimal.NewFromInt(100)

// Source supplies the state being valued. The ledger engine satisfies it.
type Source interface {
	GetAccount(ctx context.Context, userID string) (*models.Account, error)
	ListHoldings(ctx context.Context, userID string) ([]models.Holding, error)
}

// Position is one valued holding. When PriceAvailable is false the current
// price fell back to the average cost.
type Position struct {
	Symbol          string          `json:"symbol"`
	Quantity        int64           `json:"quantity"`
	AvgPrice        decimal.Decimal `json:"avg_price"`
	CurrentPrice    decimal.Decimal `json:"current_price"`
	CostBasis       decimal.Decimal `json:"cost_basis"`
	CurrentValue    decimal.Decimal `json:"current_value"`
	GainLoss        decimal.Decimal `json:"gain_loss"`
	GainLossPercent decimal.Decimal `json:"gain_loss_percent"`
	PriceAvailable  bool            `json:"price_available"`
}

// Valuation is the display-only summary of an account.
type Valuation struct {
	UserID              string          `json:"user_id"`
	CashBalance         decimal.Decimal `json:"cash_balance"`
	InitialInvestment   decimal.Decimal `json:"initial_investment"`
	Positions           []Position      `json:"positions"`
	TotalPortfolioValue decimal.Decimal `json:"total_portfolio_value"`
	TotalAccountValue   decimal.Decimal `json:"total_account_value"`
	TotalGainLoss       decimal.Decimal `json:"total_gain_loss"`
	// Degraded is set when at least one position used its average cost.
	Degraded bool `json:"degraded"`
}

// Valuator computes valuations. It never writes.
type Valuator struct {
	source      Source
	quotes      quote.Gateway
	logger      *zap.Logger
	concurrency int
}

func NewValuator(source Source, quotes quote.Gateway, logger *zap.Logger) *Valuator {
	return &Valuator{
		source:      source,
		quotes:      quotes,
		logger:      logger.Named("valuation"),
		concurrency: defaultConcurrency,
	}
}

// Value looks up a price for every holding in parallel and builds the valuation.
// A failed lookup degrades that position instead of failing the whole call.
func (v *Valuator) Value(ctx context.Context, userID string) (*Valuation, error) {
	account, err := v.source.GetAccount(ctx, userID)
	if err != nil {
		return nil, err
	}
	holdings, err := v.source.ListHoldings(ctx, userID)
	if err != nil {
		return nil, err
	}

	prices := v.fetchPrices(ctx, holdings)
	valuation := Compute(account, holdings, prices)
	if valuation.Degraded {
		v.logger.Warn("Valuation degraded, some prices unavailable",
			zap.String("user_id", userID),
			zap.Int("holdings", len(holdings)),
			zap.Int("priced", len(prices)),
		)
	}
	return valuation, nil
}

func (v *Valuator) fetchPrices(ctx context.Context, holdings []models.Holding) map[string]decimal.Decimal {
	var (
		mu     sync.Mutex
		prices = make(map[string]decimal.Decimal, len(holdings))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(v.concurrency)
	for _, h := range holdings {
		symbol := h.Symbol
		g.Go(func() error {
			q, err := v.quotes.GetQuote(gctx, symbol)
			if err != nil {
				v.logger.Warn("Price lookup failed, using average cost", zap.String("symbol", symbol), zap.Error(err))
				return nil
			}
			if !q.Price.IsPositive() {
				v.logger.Warn("Ignoring non-positive price", zap.String("symbol", symbol), zap.String("price", q.Price.String()))
				return nil
			}
			mu.Lock()
			prices[symbol] = q.Price
			mu.Unlock()
			return nil
		})
	}
	// Lookups never return errors; failures only degrade the result.
	_ = g.Wait()
	return prices
}

// Compute values holdings with the given prices. Symbols missing from prices
// are valued at their average cost.
func Compute(account *models.Account, holdings []models.Holding, prices map[string]decimal.Decimal) *Valuation {
	val := &Valuation{
		UserID:              account.ID,
		CashBalance:         account.CashBalance,
		InitialInvestment:   account.InitialInvestment,
		Positions:           make([]Position, 0, len(holdings)),
		TotalPortfolioValue: decimal.Zero,
	}

	for _, h := range holdings {
		if h.Quantity <= 0 {
			continue
		}
		qty := decimal.NewFromInt(h.Quantity)
		price, ok := prices[h.Symbol]
		if !ok {
			price = h.AvgPrice
			val.Degraded = true
		}

		p := Position{
			Symbol:         h.Symbol,
			Quantity:       h.Quantity,
			AvgPrice:       h.AvgPrice,
			CurrentPrice:   price,
			CostBasis:      h.CostBasis(),
			CurrentValue:   price.Mul(qty),
			PriceAvailable: ok,
		}
		p.GainLoss = p.CurrentValue.Sub(p.CostBasis)
		p.GainLossPercent = percent(p.GainLoss, p.CostBasis)

		val.Positions = append(val.Positions, p)
		val.TotalPortfolioValue = val.TotalPortfolioValue.Add(p.CurrentValue)
	}

	val.TotalAccountValue = val.TotalPortfolioValue.Add(account.CashBalance)
	val.TotalGainLoss = val.TotalAccountValue.Sub(account.InitialInvestment)
	return val
}

// percent is part/whole×100 rounded to two places, or 0 when whole is not positive.
func percent(part, whole decimal.Decimal) decimal.Decimal {
	if !whole.IsPositive() {
		return decimal.Zero
	}
	return part.Div(whole).Mul(hundred).Round(2)
}
