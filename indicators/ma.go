package indicators

import (
	"fmt"

	"github.com/markcheno/go-talib"
)

// SMA returns the latest simple moving average over period closes.
func SMA(closes []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, fmt.Errorf("period must be positive, got %d", period)
	}
	if len(closes) < period {
		return 0, fmt.Errorf("not enough closes: need %d, got %d", period, len(closes))
	}
	if period == 1 {
		return closes[len(closes)-1], nil
	}

	series := talib.Sma(closes, period)
	return series[len(series)-1], nil
}

// EMASeries returns the exponential moving average at every index. The first
// value seeds the average, so the series is defined from index 0.
func EMASeries(values []float64, span int) []float64 {
	out := make([]float64, 0, len(values))
	ema := NewEMA(span)
	for _, v := range values {
		ema.Update(v)
		out = append(out, ema.Value())
	}
	return out
}
