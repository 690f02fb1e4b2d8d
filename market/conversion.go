package market

import (
	"fmt"
)

// MidSource answers mid prices by symbol.
type MidSource interface {
	Mid(symbol string) (float64, bool)
}

// QuoteToAccountRate returns the factor that converts an amount in the
// symbol's quote currency into the account currency.
func QuoteToAccountRate(symbol, account string, prices MidSource) (float64, error) {
	base, quote, ok := SplitPair(symbol)
	if !ok {
		return 0, fmt.Errorf("not a currency pair: %s", symbol)
	}

	// EURUSD in a USD account
	if quote == account {
		return 1.0, nil
	}

	// USDJPY: mid is JPY per USD
	if base == account {
		mid, ok := prices.Mid(symbol)
		if !ok || mid <= 0 {
			return 0, fmt.Errorf("no price for %s", symbol)
		}
		return 1.0 / mid, nil
	}

	// Crosses go through whichever account pair carries the quote currency.
	if mid, ok := prices.Mid(account + quote); ok && mid > 0 {
		return 1.0 / mid, nil
	}
	if mid, ok := prices.Mid(quote + account); ok && mid > 0 {
		return mid, nil
	}
	return 0, fmt.Errorf("no conversion path for %s -> %s", quote, account)
}
