package indicators

// ComputeTrend derives the trend metrics from a close-price history, oldest
// first. Short histories yield a neutral trend with no oscillators.
func ComputeTrend(closes []float64, p TrendParams) TrendMetrics {
	neutral := TrendMetrics{Trend: TrendNeutral}
	if len(closes) == 0 || len(closes) < max(p.ShortPeriod, p.LongPeriod) {
		return neutral
	}

	short, err := SMA(closes, p.ShortPeriod)
	if err != nil {
		return neutral
	}
	long, err := SMA(closes, p.LongPeriod)
	if err != nil {
		return neutral
	}

	m := TrendMetrics{Strength: short - long}
	switch {
	case m.Strength > p.NeutralEps:
		m.Trend = TrendUp
	case m.Strength < -p.NeutralEps:
		m.Trend = TrendDown
	default:
		m.Trend = TrendNeutral
	}

	if v, ok := RSI(closes, p.RSIPeriod); ok {
		m.RSI = &v
	}
	if v, ok := MACDHistogram(closes, p.MACDFast, p.MACDSlow, p.MACDSignal); ok {
		m.MACD = &v
	}
	return m
}
