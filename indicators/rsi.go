package indicators

// RSI returns the relative strength index of the last period price changes,
// using plain means of gains and losses. ok is false when fewer than
// max(5, period) closes exist, when the window has fewer than period changes,
// or when the mean loss is zero.
func RSI(closes []float64, period int) (value float64, ok bool) {
	if period <= 0 || len(closes) < max(5, period) || len(closes)-1 < period {
		return 0, false
	}

	var gains, losses float64
	for i := len(closes) - period; i < len(closes); i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			gains += d
		} else {
			losses -= d
		}
	}
	up := gains / float64(period)
	down := losses / float64(period)
	if down == 0 {
		return 0, false
	}

	rs := up / down
	return 100 - 100/(1+rs), true
}
