package broker

import (
	"context"
	"time"

	"github.com/rustyeddy/fxmirror/market"
)

// MidPrice returns (bid+ask)/2, falling back to the last close when the
// terminal has no tick. ok is false when neither is available.
func MidPrice(ctx context.Context, t Terminal, symbol string) (float64, bool) {
	tick, err := t.Tick(ctx, symbol)
	if err == nil && tick.Bid > 0 && tick.Ask > 0 {
		return tick.Mid(), true
	}

	closes, err := t.Closes(ctx, symbol, 1)
	if err != nil || len(closes) == 0 {
		return 0, false
	}
	last := closes[len(closes)-1]
	if last <= 0 {
		return 0, false
	}
	return last, true
}

// NetVolume is buy volume minus sell volume, rounded to two decimals.
func NetVolume(positions []Position) float64 {
	net := 0.0
	for _, p := range positions {
		if p.Type == PositionBuy {
			net += p.Volume
		} else {
			net -= p.Volume
		}
	}
	return market.RoundTo(net, 2)
}

// TotalProfit sums the floating profit of positions.
func TotalProfit(positions []Position) float64 {
	sum := 0.0
	for _, p := range positions {
		sum += p.Profit
	}
	return sum
}

// RealizedSince sums deal profit since the given time.
func RealizedSince(ctx context.Context, t Terminal, since time.Time) (float64, error) {
	deals, err := t.DealsSince(ctx, since)
	if err != nil {
		return 0, err
	}
	sum := 0.0
	for _, d := range deals {
		sum += d.Profit
	}
	return sum, nil
}

// StartOfDay returns local midnight for now.
func StartOfDay(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, now.Location())
}
