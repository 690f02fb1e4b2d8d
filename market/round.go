package market

import (
	"math"

	"github.com/shopspring/decimal"
)

// RoundDownToStep floors |x| to a multiple of step and keeps the sign of x.
// Magnitudes below one step become 0. A non-positive step returns x unchanged.
//
// The division runs in decimal so that 0.3/0.1 floors to 3 steps, not 2.
func RoundDownToStep(x, step float64) float64 {
	if !(step > 0) {
		return x
	}
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0
	}
	ax := math.Abs(x)
	if ax < step {
		return 0
	}

	ds := decimal.NewFromFloat(step)
	n := decimal.NewFromFloat(ax).Div(ds).Floor()
	v, _ := n.Mul(ds).Float64()
	if x < 0 {
		return -v
	}
	return v
}

// RoundTo rounds x half away from zero to the given number of decimals.
func RoundTo(x float64, digits int) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return x
	}
	v, _ := decimal.NewFromFloat(x).Round(int32(digits)).Float64()
	return v
}
