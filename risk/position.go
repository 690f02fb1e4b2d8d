package risk

// A positive client net drives a negative target: the hedge takes the other side.

import (
	"math"

	"github.com/rustyeddy/fxmirror/market"
)

type Inputs struct {
	CurrentNet      float64 // consolidated client exposure, lots
	CurrentPosition float64 // live terminal position, lots
	Multiplier      float64
	MinLot          float64
}

type Result struct {
	Target float64
	Delta  float64
}

// Size computes the mirror target and the delta needed to reach it, floored
// to the min lot step with its sign preserved. The raw delta is rounded to
// 8dp first so float noise (0.3-0.1) does not lose a whole step.
func Size(in Inputs) Result {
	target := -in.CurrentNet * in.Multiplier
	raw := market.RoundTo(target-in.CurrentPosition, 8)
	return Result{
		Target: target,
		Delta:  market.RoundDownToStep(raw, in.MinLot),
	}
}

// ExceedsMax reports whether applying delta would leave the position above
// maxSize in absolute value. Such a delta is rejected whole, never trimmed.
func ExceedsMax(currentPosition, delta, maxSize float64) bool {
	return math.Abs(currentPosition+delta) > maxSize
}

// Multiplier picks the sizing multiplier from the two configured values.
func Multiplier(useFixed bool, fixed, tradeSize float64) float64 {
	if useFixed {
		return fixed
	}
	return tradeSize
}
