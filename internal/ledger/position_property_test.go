package ledger

import (
	"context"
	"testing"

	"papertrade-go/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"pgregory.net/rapid"
)

// genPrice draws a positive price with at most four decimal places.
func genPrice() *rapid.Generator[decimal.Decimal] {
	return rapid.Custom(func(t *rapid.T) decimal.Decimal {
		units := rapid.Int64Range(1, 50_000_000).Draw(t, "price_units")
		return decimal.New(units, -PriceScale)
	})
}

func TestApplyBuy_Properties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		heldQty := rapid.Int64Range(0, 1_000_000).Draw(t, "held")
		avg := genPrice().Draw(t, "avg")
		qty := rapid.Int64Range(1, 1_000_000).Draw(t, "qty")
		price := genPrice().Draw(t, "price")

		newQty, newAvg := applyBuy(heldQty, avg, qty, price)

		if newQty != heldQty+qty {
			t.Fatalf("quantity: want %d, got %d", heldQty+qty, newQty)
		}
		if heldQty == 0 && !newAvg.Equal(price) {
			t.Fatalf("first buy must set avg to price %s, got %s", price, newAvg)
		}
		lo, hi := decimal.Min(avg, price), decimal.Max(avg, price)
		if heldQty > 0 && (newAvg.LessThan(lo) || newAvg.GreaterThan(hi)) {
			t.Fatalf("avg %s outside [%s, %s]", newAvg, lo, hi)
		}
	})
}

func TestApplySell_Properties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		heldQty := rapid.Int64Range(1, 1_000_000).Draw(t, "held")
		qty := rapid.Int64Range(1, heldQty).Draw(t, "qty")
		avg := genPrice().Draw(t, "avg")
		price := genPrice().Draw(t, "price")

		left, realized := applySell(heldQty, avg, qty, price)

		if left != heldQty-qty {
			t.Fatalf("quantity: want %d, got %d", heldQty-qty, left)
		}
		want := price.Mul(decimal.NewFromInt(qty)).Sub(avg.Mul(decimal.NewFromInt(qty)))
		if !realized.Equal(want) {
			t.Fatalf("realized: want %s, got %s", want, realized)
		}
	})
}

func TestWeightedAverageExample(t *testing.T) {
	qty, avg := applyBuy(10, decimal.NewFromInt(100), 10, decimal.NewFromInt(200))
	assert.Equal(t, int64(20), qty)
	assert.True(t, decimal.NewFromInt(150).Equal(avg))
}

// TestExecuteOrder_CashConservation replays random order sequences and checks
// that cash and holdings always match the sum of what was accepted.
func TestExecuteOrder_CashConservation(t *testing.T) {
	st := newTestStore(t)
	e := NewEngine(zap.NewNop(), st, nil, nil, decimal.NewFromInt(100000))
	symbols := []string{"AAPL", "MSFT", "TSLA"}

	rapid.Check(t, func(t *rapid.T) {
		ctx := context.Background()
		userID := uuid.NewString()
		if _, _, err := e.EnsureAccount(ctx, userID, ""); err != nil {
			t.Fatalf("ensure account: %v", err)
		}

		cash := decimal.NewFromInt(100000)
		held := map[string]int64{}
		avg := map[string]decimal.Decimal{}

		steps := rapid.IntRange(1, 15).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			symbol := rapid.SampledFrom(symbols).Draw(t, "symbol")
			side := rapid.SampledFrom([]models.Side{models.SideBuy, models.SideSell}).Draw(t, "side")
			qty := rapid.Int64Range(1, 50).Draw(t, "qty")
			price := decimal.New(rapid.Int64Range(1, 5_000_000).Draw(t, "price_units"), -PriceScale)
			total := price.Mul(decimal.NewFromInt(qty))

			before, err := e.GetAccount(ctx, userID)
			if err != nil {
				t.Fatalf("get account: %v", err)
			}

			res, err := e.ExecuteOrder(ctx, userID, Order{Symbol: symbol, Side: side, Quantity: qty, Price: decimal.NewNullDecimal(price)})
			switch {
			case side == models.SideBuy && total.GreaterThan(cash):
				if err == nil {
					t.Fatalf("buy of %s with %s cash should fail", total, cash)
				}
			case side == models.SideSell && held[symbol] < qty:
				if err == nil {
					t.Fatalf("sell of %d with %d held should fail", qty, held[symbol])
				}
			case err != nil:
				t.Fatalf("unexpected error: %v", err)
			case side == models.SideBuy:
				cash = cash.Sub(total)
				held[symbol] += qty
				if !res.Account.CashBalance.Equal(before.CashBalance.Sub(total)) {
					t.Fatalf("buy cash: want %s, got %s", before.CashBalance.Sub(total), res.Account.CashBalance)
				}
				avg[symbol] = res.Holding.AvgPrice
			default:
				cash = cash.Add(total)
				held[symbol] -= qty
				if !res.Account.CashBalance.Equal(before.CashBalance.Add(total)) {
					t.Fatalf("sell cash: want %s, got %s", before.CashBalance.Add(total), res.Account.CashBalance)
				}
				if held[symbol] > 0 && !res.Holding.AvgPrice.Equal(avg[symbol]) {
					t.Fatalf("sell changed avg price from %s to %s", avg[symbol], res.Holding.AvgPrice)
				}
			}
		}

		acct, err := e.GetAccount(ctx, userID)
		if err != nil {
			t.Fatalf("get account: %v", err)
		}
		if !acct.CashBalance.Equal(cash) {
			t.Fatalf("final cash: want %s, got %s", cash, acct.CashBalance)
		}
		if acct.CashBalance.IsNegative() {
			t.Fatalf("negative cash %s", acct.CashBalance)
		}
		holdings, err := e.ListHoldings(ctx, userID)
		if err != nil {
			t.Fatalf("list holdings: %v", err)
		}
		for _, h := range holdings {
			if h.Quantity != held[h.Symbol] {
				t.Fatalf("%s quantity: want %d, got %d", h.Symbol, held[h.Symbol], h.Quantity)
			}
		}
	})
}
