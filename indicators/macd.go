package indicators

// MACDHistogram returns the last value of MACD line minus its signal line.
// ok is false until max(fast, slow, signal)+2 closes exist.
func MACDHistogram(closes []float64, fast, slow, signal int) (hist float64, ok bool) {
	if fast <= 0 || slow <= 0 || signal <= 0 {
		return 0, false
	}
	if len(closes) < max(fast, slow, signal)+2 {
		return 0, false
	}

	emaFast := EMASeries(closes, fast)
	emaSlow := EMASeries(closes, slow)
	line := make([]float64, len(closes))
	for i := range closes {
		line[i] = emaFast[i] - emaSlow[i]
	}
	sig := EMASeries(line, signal)

	last := len(closes) - 1
	return line[last] - sig[last], true
}
