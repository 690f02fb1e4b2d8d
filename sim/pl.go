package sim

// UnrealizedPL values a trade at currentPrice in account currency.
func UnrealizedPL(t Trade, currentPrice, contractSize, quoteToAccount float64) float64 {
	plQuote := t.sign() * t.Volume * contractSize * (currentPrice - t.EntryPrice)
	return plQuote * quoteToAccount
}
