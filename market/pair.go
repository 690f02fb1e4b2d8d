package market

import "strings"

// AccountCurrency is the anchor every exposure is re-denominated into.
const AccountCurrency = "USD"

// SplitPair splits a six-letter alphabetic currency pair ("EURJPY") into its
// base and quote codes. Any other shape (crypto tickers, indices, symbols with
// digits or suffixes) is an opaque non-forex instrument and reports ok=false.
func SplitPair(symbol string) (base, quote string, ok bool) {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if len(s) != 6 {
		return "", "", false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < 'A' || s[i] > 'Z' {
			return "", "", false
		}
	}
	return s[:3], s[3:], true
}

// IsForexPair reports whether symbol can take part in currency accumulation.
func IsForexPair(symbol string) bool {
	_, _, ok := SplitPair(symbol)
	return ok
}

// IsUSDBase reports whether a USD pair is quoted USD/C (USDJPY) rather than C/USD.
func IsUSDBase(pair string) bool {
	return strings.HasPrefix(strings.ToUpper(pair), AccountCurrency)
}
