package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/rustyeddy/fxmirror/broker"
	"github.com/rustyeddy/fxmirror/journal"
	"github.com/rustyeddy/fxmirror/market"
	"github.com/rustyeddy/fxmirror/metrics"
)

const (
	Magic          = 123456
	Deviation      = 10
	CloseDeviation = 20
)

// ExecConfig controls how a hedge order is placed.
type ExecConfig struct {
	UseLimitOrders     bool
	EnablePartialLimit bool
	MarketPct          float64 // share of volume sent at market when splitting
	LimitOffsetPoints  float64
	SymbolMap          map[string]string // manager symbol -> terminal symbol
}

// TerminalSymbol maps a manager symbol to the terminal's name for it.
func (c ExecConfig) TerminalSymbol(symbol string) string {
	if t, ok := c.SymbolMap[symbol]; ok && t != "" {
		return t
	}
	return symbol
}

// Leg is one order sent for an execution.
type Leg struct {
	Request broker.OrderRequest
	Result  broker.OrderResult
	Err     error
}

// Execution is the outcome of one hedge order. Rejected holds a record for
// every leg the terminal did not accept.
type Execution struct {
	Success     bool
	MarketPrice float64
	Legs        []Leg
	Rejected    []journal.RejectedRecord
}

// OrderID is the id of the first accepted leg.
func (x Execution) OrderID() string {
	for _, l := range x.Legs {
		if l.Err == nil && l.Result.Accepted() {
			return l.Result.OrderID
		}
	}
	return ""
}

// Filled sums the volume of accepted legs.
func (x Execution) Filled() float64 {
	v := 0.0
	for _, l := range x.Legs {
		if l.Err == nil && l.Result.Accepted() {
			v += l.Request.Volume
		}
	}
	return market.RoundTo(v, 8)
}

type Executor struct {
	term broker.Terminal
	cfg  ExecConfig
	log  *zap.Logger
	now  func() time.Time
}

func NewExecutor(term broker.Terminal, cfg ExecConfig, log *zap.Logger) *Executor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Executor{term: term, cfg: cfg, log: log, now: time.Now}
}

// Execute sends volume lots for symbol, split into a market and a limit leg
// when partial limits are enabled. Success means at least one leg was
// accepted.
func (x *Executor) Execute(ctx context.Context, symbol string, buy bool, volume float64) Execution {
	tsym := x.cfg.TerminalSymbol(symbol)
	var out Execution

	info, err := x.term.SymbolInfo(ctx, tsym)
	if err != nil {
		x.log.Warn("symbol info unavailable", zap.String("symbol", tsym), zap.Error(err))
		return out
	}
	tick, err := x.term.Tick(ctx, tsym)
	if err != nil {
		x.log.Warn("tick unavailable", zap.String("symbol", tsym), zap.Error(err))
		return out
	}

	out.MarketPrice = tick.Ask
	mktType := broker.OrderBuy
	if !buy {
		out.MarketPrice = tick.Bid
		mktType = broker.OrderSell
	}

	var reqs []broker.OrderRequest
	if x.cfg.UseLimitOrders && x.cfg.EnablePartialLimit {
		mkt := market.RoundDownToStep(volume*x.cfg.MarketPct, info.VolumeStep)
		lim := market.RoundDownToStep(market.RoundTo(volume-mkt, 8), info.VolumeStep)

		if mkt >= info.VolumeMin {
			reqs = append(reqs, broker.OrderRequest{
				Action:    broker.ActionDeal,
				Symbol:    tsym,
				Volume:    mkt,
				Type:      mktType,
				Price:     out.MarketPrice,
				Deviation: Deviation,
				Magic:     Magic,
			})
		}
		if lim >= info.VolumeMin {
			offset := x.cfg.LimitOffsetPoints * info.Point
			price, typ := tick.Bid-offset, broker.OrderBuyLimit
			if !buy {
				price, typ = tick.Ask+offset, broker.OrderSellLimit
			}
			reqs = append(reqs, broker.OrderRequest{
				Action:    broker.ActionPending,
				Symbol:    tsym,
				Volume:    lim,
				Type:      typ,
				Price:     market.RoundTo(price, info.Digits),
				Deviation: Deviation,
				Magic:     Magic,
			})
		}
	} else {
		reqs = append(reqs, broker.OrderRequest{
			Action:    broker.ActionDeal,
			Symbol:    tsym,
			Volume:    volume,
			Type:      mktType,
			Price:     out.MarketPrice,
			Deviation: Deviation,
			Magic:     Magic,
		})
	}

	for _, req := range reqs {
		res, err := x.term.SendOrder(ctx, req)
		leg := Leg{Request: req, Result: res, Err: err}
		out.Legs = append(out.Legs, leg)

		if err == nil && res.Accepted() {
			out.Success = true
			metrics.OrdersTotal.WithLabelValues(req.Type.String(), "accepted").Inc()
			x.log.Info("order accepted",
				zap.String("symbol", tsym),
				zap.String("type", req.Type.String()),
				zap.Float64("volume", req.Volume),
				zap.Float64("price", req.Price),
				zap.String("order_id", res.OrderID),
			)
			continue
		}

		comment := res.Comment
		if err != nil {
			comment = err.Error()
		}
		if comment == "" {
			comment = fmt.Sprintf("retcode %d", res.Retcode)
		}
		metrics.OrdersTotal.WithLabelValues(req.Type.String(), "failed").Inc()
		x.log.Warn("order failed",
			zap.String("symbol", tsym),
			zap.String("type", req.Type.String()),
			zap.Float64("volume", req.Volume),
			zap.Int("retcode", res.Retcode),
			zap.String("comment", comment),
		)

		delta := req.Volume
		if !buy {
			delta = -delta
		}
		out.Rejected = append(out.Rejected, journal.RejectedRecord{
			Symbol:        symbol,
			Reason:        "order_send failed: " + comment,
			DeltaPosition: delta,
			Timestamp:     x.now(),
		})
	}
	return out
}

// CloseAll flattens every open position with an opposite market order that
// references its ticket. It returns how many closes the terminal confirmed.
func (x *Executor) CloseAll(ctx context.Context) (int, error) {
	positions, err := x.term.Positions(ctx, "")
	if err != nil {
		return 0, fmt.Errorf("close all: %w", err)
	}

	closed := 0
	var errs error
	for _, p := range positions {
		tick, err := x.term.Tick(ctx, p.Symbol)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("close %s: %w", p.Ticket, err))
			continue
		}

		req := broker.OrderRequest{
			Action:    broker.ActionDeal,
			Symbol:    p.Symbol,
			Volume:    p.Volume,
			Type:      broker.OrderSell,
			Price:     tick.Bid,
			Deviation: CloseDeviation,
			Magic:     Magic,
			Position:  p.Ticket,
		}
		if p.Type == broker.PositionSell {
			req.Type = broker.OrderBuy
			req.Price = tick.Ask
		}

		res, err := x.term.SendOrder(ctx, req)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("close %s: %w", p.Ticket, err))
			continue
		}
		if res.Retcode == broker.RetcodeDone {
			closed++
			continue
		}
		x.log.Warn("close rejected",
			zap.String("ticket", p.Ticket),
			zap.String("symbol", p.Symbol),
			zap.Int("retcode", res.Retcode),
			zap.String("comment", res.Comment),
		)
	}
	return closed, errs
}
