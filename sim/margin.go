package sim

// TradeMargin is the account-currency margin of a position at the given
// leverage. Margin uses the mid price.
func TradeMargin(volume, contractSize, mid, quoteToAccount, leverage float64) float64 {
	if leverage <= 0 {
		leverage = 1
	}
	notionalQuote := abs(volume) * contractSize * mid
	return notionalQuote * quoteToAccount / leverage
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
