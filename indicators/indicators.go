// Package indicators computes the trend metrics used to gate hedge orders:
// a short/long SMA spread, a simple-mean RSI and a MACD histogram.
package indicators

import "fmt"

// Trend is the directional bias derived from the SMA spread.
type Trend string

const (
	TrendUp      Trend = "up"
	TrendDown    Trend = "down"
	TrendNeutral Trend = "neutral"
)

// TrendParams are the indicator periods and the neutral dead-band.
type TrendParams struct {
	ShortPeriod int
	LongPeriod  int
	NeutralEps  float64
	RSIPeriod   int
	MACDFast    int
	MACDSlow    int
	MACDSignal  int
}

// DefaultTrendParams returns the stock periods (10/50 SMA, RSI 14, MACD 12/26/9).
func DefaultTrendParams() TrendParams {
	return TrendParams{
		ShortPeriod: 10,
		LongPeriod:  50,
		NeutralEps:  0.0001,
		RSIPeriod:   14,
		MACDFast:    12,
		MACDSlow:    26,
		MACDSignal:  9,
	}
}

func (p TrendParams) Validate() error {
	if p.ShortPeriod <= 0 || p.LongPeriod <= 0 {
		return fmt.Errorf("sma periods must be positive")
	}
	if p.RSIPeriod <= 0 {
		return fmt.Errorf("rsi period must be positive")
	}
	if p.MACDFast <= 0 || p.MACDSlow <= 0 || p.MACDSignal <= 0 {
		return fmt.Errorf("macd spans must be positive")
	}
	if p.NeutralEps < 0 {
		return fmt.Errorf("neutral threshold must not be negative")
	}
	return nil
}

// TrendMetrics is the per-symbol signal. RSI and MACD are nil when there is
// not enough history to define them.
type TrendMetrics struct {
	Trend    Trend
	Strength float64
	RSI      *float64
	MACD     *float64
}
