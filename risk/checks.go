package risk

import (
	"fmt"
	"math"
)

const (
	CodeDeltaTooSmall = "DELTA_TOO_SMALL"
	CodeTrendBlocked  = "TREND_BLOCKED"
	CodeMaxPosition   = "MAX_POSITION_SIZE"
	CodeDailyLoss     = "DAILY_LOSS_LIMIT"
)

type Violation struct {
	Code string
	Msg  string
}

type Decision struct {
	Allowed    bool
	Violations []Violation
}

func (d *Decision) add(code, msg string) {
	d.Violations = append(d.Violations, Violation{Code: code, Msg: msg})
	d.Allowed = false
}

// Reason is the message of the first violation, or "" when allowed.
func (d Decision) Reason() string {
	if len(d.Violations) == 0 {
		return ""
	}
	return d.Violations[0].Msg
}

// Code is the code of the first violation, or "" when allowed.
func (d Decision) Code() string {
	if len(d.Violations) == 0 {
		return ""
	}
	return d.Violations[0].Code
}

// Audited reports whether the rejection belongs in the rejected-trade log.
// Deltas below one lot step are routine and are not logged.
func (d Decision) Audited() bool {
	return !d.Allowed && d.Code() != CodeDeltaTooSmall
}

// Evaluate applies the per-symbol checks in order and stops at the first
// failure: lot step, trend gate, then the max position clamp.
func Evaluate(p Policy, in Intent) Decision {
	d := Decision{Allowed: true}

	if math.Abs(in.Delta) < in.MinLot || in.Delta == 0 {
		d.add(CodeDeltaTooSmall, fmt.Sprintf("Delta too small: %.2f", in.Delta))
		return d
	}

	gate := Gate{AllowNeutral: p.AllowNeutral, AllowOpposite: p.AllowOpposite}
	if !gate.Allowed(in.Trend, in.Target, in.CurrentPosition) {
		d.add(CodeTrendBlocked, "Trade conditions not met")
		return d
	}

	if ExceedsMax(in.CurrentPosition, in.Delta, p.MaxPositionSize) {
		d.add(CodeMaxPosition, "Exceeds max position size")
		return d
	}

	return d
}

// EvaluateDaily checks the daily loss breaker.
func EvaluateDaily(p Policy, pnl PnLSnapshot) Decision {
	d := Decision{Allowed: true}
	if !(Guard{Limit: p.DailyLossLimit}).Check(pnl.DayRealized) {
		d.add(CodeDailyLoss, fmt.Sprintf("day realized %.2f < limit %.2f", pnl.DayRealized, p.DailyLossLimit))
	}
	return d
}
