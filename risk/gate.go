package risk

import "github.com/rustyeddy/fxmirror/indicators"

// Gate decides whether a sizing decision may execute given the trend.
type Gate struct {
	AllowNeutral  bool
	AllowOpposite bool
}

// Allowed blocks neutral trends unless AllowNeutral, and moves against the
// trend (buying into "down", selling into "up") unless AllowOpposite.
func (g Gate) Allowed(trend indicators.Trend, target, currentPosition float64) bool {
	switch trend {
	case indicators.TrendNeutral:
		return g.AllowNeutral
	case indicators.TrendDown:
		if target > currentPosition && !g.AllowOpposite {
			return false
		}
	case indicators.TrendUp:
		if target < currentPosition && !g.AllowOpposite {
			return false
		}
	}
	return true
}
