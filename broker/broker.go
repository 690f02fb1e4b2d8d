package broker

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNoTick        = errors.New("no tick")
	ErrUnknownSymbol = errors.New("unknown symbol")
)

// Terminal is the capability set the decision engine needs from an execution
// venue. Symbols are terminal symbols (after any manager->terminal mapping).
type Terminal interface {
	Tick(ctx context.Context, symbol string) (Tick, error)
	SymbolInfo(ctx context.Context, symbol string) (SymbolInfo, error)
	// Positions returns open positions for symbol, or all of them for "".
	Positions(ctx context.Context, symbol string) ([]Position, error)
	SendOrder(ctx context.Context, req OrderRequest) (OrderResult, error)
	Account(ctx context.Context) (Account, error)
	DealsSince(ctx context.Context, since time.Time) ([]Deal, error)
	// Closes returns up to bars closing prices, oldest first.
	Closes(ctx context.Context, symbol string, bars int) ([]float64, error)
}

type Tick struct {
	Symbol string
	Bid    float64
	Ask    float64
	Time   time.Time
}

func (t Tick) Mid() float64 {
	return (t.Bid + t.Ask) / 2
}

func (t Tick) Spread() float64 {
	return t.Ask - t.Bid
}

type SymbolInfo struct {
	Symbol     string
	VolumeMin  float64
	VolumeStep float64
	Point      float64
	Digits     int
}

type Action int

const (
	ActionDeal    Action = iota // immediate market execution
	ActionPending               // resting order
)

func (a Action) String() string {
	if a == ActionPending {
		return "PENDING"
	}
	return "DEAL"
}

type OrderType int

const (
	OrderBuy OrderType = iota
	OrderSell
	OrderBuyLimit
	OrderSellLimit
)

func (o OrderType) String() string {
	switch o {
	case OrderBuy:
		return "BUY"
	case OrderSell:
		return "SELL"
	case OrderBuyLimit:
		return "BUY_LIMIT"
	case OrderSellLimit:
		return "SELL_LIMIT"
	}
	return "UNKNOWN"
}

// IsBuy reports whether the order adds long exposure.
func (o OrderType) IsBuy() bool {
	return o == OrderBuy || o == OrderBuyLimit
}

// Trade server return codes.
const (
	RetcodeRejected      = 10006
	RetcodePlaced        = 10008
	RetcodeDone          = 10009
	RetcodeInvalid       = 10013
	RetcodeInvalidVolume = 10014
	RetcodeNoMoney       = 10019
	RetcodeNoPrices      = 10021
)

type OrderRequest struct {
	Action    Action
	Symbol    string
	Volume    float64 // lots
	Type      OrderType
	Price     float64
	Deviation int
	Magic     int
	Position  string // ticket of the position being closed, if any
	Comment   string
}

type OrderResult struct {
	Retcode int
	Comment string
	OrderID string
	Volume  float64
	Price   float64
}

// Accepted reports whether the venue filled or placed the order.
func (r OrderResult) Accepted() bool {
	return r.Retcode == RetcodeDone || r.Retcode == RetcodePlaced
}

type PositionType int

const (
	PositionBuy PositionType = iota
	PositionSell
)

type Position struct {
	Ticket    string
	Symbol    string
	Type      PositionType
	Volume    float64 // lots, positive
	PriceOpen float64
	Profit    float64 // floating, account currency
	Time      time.Time
}

type Account struct {
	ID          string
	Currency    string
	Balance     float64
	Equity      float64
	Margin      float64
	FreeMargin  float64
	MarginLevel float64
	Profit      float64 // floating P/L of open positions
}

// Deal is a realized fill in the account history.
type Deal struct {
	ID     string
	Symbol string
	Volume float64
	Price  float64
	Profit float64
	Time   time.Time
}
