package sim

import (
	"time"

	"github.com/rustyeddy/fxmirror/broker"
)

// Trade is one paper position. Positions are hedged: every opening deal
// creates its own ticket, as on a hedging account.
type Trade struct {
	ID         string
	Symbol     string
	Type       broker.PositionType
	Volume     float64 // lots
	EntryPrice float64
	OpenTime   time.Time

	// Realized
	ClosePrice float64
	CloseTime  time.Time
	RealizedPL float64 // account currency
	Open       bool
}

// sign is +1 for longs and -1 for shorts.
func (t *Trade) sign() float64 {
	if t.Type == broker.PositionSell {
		return -1
	}
	return 1
}

// markPrice is the side a position would close on: bid for longs, ask for shorts.
func (t *Trade) markPrice(p broker.Tick) float64 {
	if t.Type == broker.PositionSell {
		return p.Ask
	}
	return p.Bid
}

// Pending is a resting limit order.
type Pending struct {
	ID     string
	Symbol string
	Type   broker.OrderType
	Volume float64
	Price  float64
	Placed time.Time
}
