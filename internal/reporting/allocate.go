package reporting

import "github.com/shopspring/decimal"

// Allocate spreads discount across prices in proportion to each price and
// returns the net amount per price, never below zero.
func Allocate(prices []decimal.Decimal, discount decimal.Decimal) []decimal.Decimal {
	out := make([]decimal.Decimal, len(prices))
	if discount.IsNegative() {
		discount = decimal.Zero
	}

	sum := decimal.Zero
	for _, p := range prices {
		sum = sum.Add(p)
	}

	for i, p := range prices {
		deduction := decimal.Zero
		if sum.IsPositive() {
			deduction = discount.Mul(p).Div(sum)
		}
		net := p.Sub(deduction)
		if net.IsNegative() {
			net = decimal.Zero
		}
		out[i] = net
	}
	return out
}
