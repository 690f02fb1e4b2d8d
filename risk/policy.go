package risk

import "github.com/rustyeddy/fxmirror/indicators"

type Policy struct {
	// Position limits
	MaxPositionSize float64 // lots, absolute

	// Trend gating
	AllowNeutral  bool
	AllowOpposite bool

	// Circuit breaker
	DailyLossLimit float64 // negative, account currency
	AutoClose      bool
}

// Intent is one symbol's proposed adjustment for the cycle.
type Intent struct {
	Symbol          string
	Trend           indicators.Trend
	Target          float64
	CurrentPosition float64
	Delta           float64
	MinLot          float64
}

// PnLSnapshot carries the realized and floating P/L for the current day.
type PnLSnapshot struct {
	DayRealized float64
	Unrealized  float64
}
