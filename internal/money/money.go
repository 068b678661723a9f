// Package money provides exact decimal arithmetic for cost estimates
// using github.com/shopspring/decimal — float64 accumulation across
// many fuel stops would drift; decimal does not.
package money

import "github.com/shopspring/decimal"

// FuelCost computes the exact cost of gallonsNeeded at pricePerGallon.
func FuelCost(gallonsNeeded, pricePerGallon float64) float64 {
	g := decimal.NewFromFloat(gallonsNeeded)
	p := decimal.NewFromFloat(pricePerGallon)
	total, _ := g.Mul(p).Round(2).Float64()
	return total
}

// Sum adds a set of cost estimates with exact rounding, used when
// accumulating a plan's total_cost_estimate across fuel segments.
func Sum(values ...float64) float64 {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(decimal.NewFromFloat(v))
	}
	f, _ := total.Round(2).Float64()
	return f
}
