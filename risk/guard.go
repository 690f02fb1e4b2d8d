package risk

// Guard is the daily realized-loss circuit breaker. It keeps no state: a
// recovery above the limit on a later cycle resumes trading.
type Guard struct {
	Limit float64
}

// Check reports whether realized P/L for today is at or above the limit.
func (g Guard) Check(realizedToday float64) bool {
	return realizedToday >= g.Limit
}
