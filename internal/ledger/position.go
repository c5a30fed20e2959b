package ledger

import "github.com/shopspring/decimal"

// applyBuy returns the position after buying qty shares at price. The new
// average is the cost-weighted mean of the old position and the purchase.
func applyBuy(heldQty int64, avgPrice decimal.Decimal, qty int64, price decimal.Decimal) (int64, decimal.Decimal) {
	newQty := heldQty + qty
	if heldQty == 0 {
		return newQty, price
	}
	cost := avgPrice.Mul(decimal.NewFromInt(heldQty)).Add(price.Mul(decimal.NewFromInt(qty)))
	return newQty, cost.DivRound(decimal.NewFromInt(newQty), avgPriceScale)
}

// applySell returns the remaining quantity and the gain realized on the sold
// shares. The average cost of what is left does not change.
func applySell(heldQty int64, avgPrice decimal.Decimal, qty int64, price decimal.Decimal) (int64, decimal.Decimal) {
	realized := price.Sub(avgPrice).Mul(decimal.NewFromInt(qty))
	return heldQty - qty, realized
}
