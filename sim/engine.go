package sim

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rustyeddy/fxmirror/broker"
	"github.com/rustyeddy/fxmirror/internal/id"
	"github.com/rustyeddy/fxmirror/market"
)

const maxHistory = 5000

// Engine is an in-memory paper terminal. It fills market deals at the touch,
// rests limit orders until the price crosses, and keeps a deal history for
// realized P/L.
type Engine struct {
	mu       sync.Mutex
	acct     broker.Account
	prices   *PriceStore
	infos    map[string]broker.SymbolInfo
	history  map[string][]float64
	trades   map[string]*Trade
	pending  map[string]*Pending
	deals    []broker.Deal
	leverage float64
	sizes    map[string]float64
	reject   func(req broker.OrderRequest) string
	now      func() time.Time
}

func NewEngine(acct broker.Account) *Engine {
	if acct.Currency == "" {
		acct.Currency = market.AccountCurrency
	}
	acct.Equity = acct.Balance
	acct.FreeMargin = acct.Balance
	return &Engine{
		acct:     acct,
		prices:   NewPriceStore(),
		infos:    make(map[string]broker.SymbolInfo),
		history:  make(map[string][]float64),
		trades:   make(map[string]*Trade),
		pending:  make(map[string]*Pending),
		leverage: 100,
		sizes:    make(map[string]float64),
		now:      time.Now,
	}
}

func (e *Engine) Prices() *PriceStore { return e.prices }

// SetLeverage sets the account leverage used for margin.
func (e *Engine) SetLeverage(l float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.leverage = l
}

// SetContractSize overrides the 100000 default for a symbol.
func (e *Engine) SetContractSize(symbol string, size float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sizes[symbol] = size
}

// SetSymbol registers trading constraints for a symbol.
func (e *Engine) SetSymbol(info broker.SymbolInfo) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.infos[info.Symbol] = info
}

// SetHistory replaces the close history for a symbol, oldest first.
func (e *Engine) SetHistory(symbol string, closes []float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.history[symbol] = append([]float64(nil), closes...)
}

// SetRejector installs a hook that can refuse orders. A non-empty return is
// the rejection comment.
func (e *Engine) SetRejector(fn func(req broker.OrderRequest) string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reject = fn
}

// SetClock replaces time.Now for fills and deal stamps.
func (e *Engine) SetClock(now func() time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.now = now
}

// UpdatePrice stores a tick, appends its mid to the close history and fills
// any limit orders the new price reaches.
func (e *Engine) UpdatePrice(t broker.Tick) error {
	if t.Bid <= 0 || t.Ask <= 0 || t.Ask < t.Bid {
		return fmt.Errorf("update price: invalid tick for %s: bid=%v ask=%v", t.Symbol, t.Bid, t.Ask)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if t.Time.IsZero() {
		t.Time = e.now()
	}
	e.prices.Set(t)

	h := append(e.history[t.Symbol], t.Mid())
	if len(h) > maxHistory {
		h = h[len(h)-maxHistory:]
	}
	e.history[t.Symbol] = h

	for _, p := range e.sortedPendingLocked() {
		if p.Symbol != t.Symbol {
			continue
		}
		hit := (p.Type == broker.OrderBuyLimit && t.Ask <= p.Price) ||
			(p.Type == broker.OrderSellLimit && t.Bid >= p.Price)
		if !hit {
			continue
		}
		delete(e.pending, p.ID)
		e.openLocked(p.ID, p.Symbol, p.Type.IsBuy(), p.Volume, p.Price, t.Time)
	}
	return nil
}

// Mid implements market.MidSource for P/L conversion.
func (e *Engine) Mid(symbol string) (float64, bool) {
	t, ok := e.prices.Lookup(symbol)
	if !ok {
		return 0, false
	}
	return t.Mid(), true
}

func (e *Engine) Tick(ctx context.Context, symbol string) (broker.Tick, error) {
	return e.prices.Get(symbol)
}

func (e *Engine) SymbolInfo(ctx context.Context, symbol string) (broker.SymbolInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.symbolInfoLocked(symbol)
}

func (e *Engine) symbolInfoLocked(symbol string) (broker.SymbolInfo, error) {
	if info, ok := e.infos[symbol]; ok {
		return info, nil
	}
	if _, err := e.prices.Get(symbol); err != nil {
		return broker.SymbolInfo{}, fmt.Errorf("%w: %s", broker.ErrUnknownSymbol, symbol)
	}

	// Priced but unregistered: five-digit quotes, three for JPY.
	info := broker.SymbolInfo{
		Symbol:     symbol,
		VolumeMin:  0.01,
		VolumeStep: 0.01,
		Point:      0.00001,
		Digits:     5,
	}
	if _, quote, ok := market.SplitPair(canonical(symbol)); ok && quote == "JPY" {
		info.Point = 0.001
		info.Digits = 3
	}
	return info, nil
}

func (e *Engine) Positions(ctx context.Context, symbol string) ([]broker.Position, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []broker.Position
	for _, t := range e.sortedTradesLocked() {
		if !t.Open || (symbol != "" && t.Symbol != symbol) {
			continue
		}
		profit := 0.0
		if p, err := e.prices.Get(t.Symbol); err == nil {
			profit, _ = e.unrealizedLocked(t, p)
		}
		out = append(out, broker.Position{
			Ticket:    t.ID,
			Symbol:    t.Symbol,
			Type:      t.Type,
			Volume:    t.Volume,
			PriceOpen: t.EntryPrice,
			Profit:    profit,
			Time:      t.OpenTime,
		})
	}
	return out, nil
}

func (e *Engine) SendOrder(ctx context.Context, req broker.OrderRequest) (broker.OrderResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	res := broker.OrderResult{Volume: req.Volume, Price: req.Price}

	p, err := e.prices.Get(req.Symbol)
	if err != nil {
		res.Retcode = broker.RetcodeNoPrices
		res.Comment = "no prices"
		return res, nil
	}
	info, err := e.symbolInfoLocked(req.Symbol)
	if err != nil {
		res.Retcode = broker.RetcodeInvalid
		res.Comment = "unknown symbol"
		return res, nil
	}
	if !validVolume(req.Volume, info) {
		res.Retcode = broker.RetcodeInvalidVolume
		res.Comment = "invalid volume"
		return res, nil
	}
	if e.reject != nil {
		if msg := e.reject(req); msg != "" {
			res.Retcode = broker.RetcodeRejected
			res.Comment = msg
			return res, nil
		}
	}

	now := p.Time
	if now.IsZero() {
		now = e.now()
	}
	orderID := id.NewAt(now)
	res.OrderID = orderID

	if req.Action == broker.ActionPending {
		if req.Type != broker.OrderBuyLimit && req.Type != broker.OrderSellLimit {
			res.Retcode = broker.RetcodeInvalid
			res.Comment = "unsupported pending type"
			return res, nil
		}
		e.pending[orderID] = &Pending{
			ID:     orderID,
			Symbol: req.Symbol,
			Type:   req.Type,
			Volume: req.Volume,
			Price:  req.Price,
			Placed: now,
		}
		res.Retcode = broker.RetcodePlaced
		res.Comment = "placed"
		return res, nil
	}

	fill := p.Ask
	if !req.Type.IsBuy() {
		fill = p.Bid
	}
	res.Price = fill

	if req.Position != "" {
		t, ok := e.trades[req.Position]
		if !ok || !t.Open || t.Symbol != req.Symbol {
			res.Retcode = broker.RetcodeInvalid
			res.Comment = "position not found"
			return res, nil
		}
		if req.Type.IsBuy() == (t.Type == broker.PositionBuy) {
			res.Retcode = broker.RetcodeInvalid
			res.Comment = "close must be opposite side"
			return res, nil
		}
		if err := e.closeLocked(t, req.Volume, fill, now); err != nil {
			res.Retcode = broker.RetcodeInvalid
			res.Comment = err.Error()
			return res, nil
		}
		res.Retcode = broker.RetcodeDone
		res.Comment = "done"
		return res, nil
	}

	e.openLocked(orderID, req.Symbol, req.Type.IsBuy(), req.Volume, fill, now)
	res.Retcode = broker.RetcodeDone
	res.Comment = "done"
	return res, nil
}

func (e *Engine) Account(ctx context.Context) (broker.Account, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.revalueLocked(); err != nil {
		return broker.Account{}, err
	}
	return e.acct, nil
}

func (e *Engine) DealsSince(ctx context.Context, since time.Time) ([]broker.Deal, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []broker.Deal
	for _, d := range e.deals {
		if !d.Time.Before(since) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (e *Engine) Closes(ctx context.Context, symbol string, bars int) ([]float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	h := e.history[symbol]
	if bars > 0 && len(h) > bars {
		h = h[len(h)-bars:]
	}
	return append([]float64(nil), h...), nil
}

// PendingOrders returns resting limit orders in placement order.
func (e *Engine) PendingOrders() []Pending {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []Pending
	for _, p := range e.sortedPendingLocked() {
		out = append(out, *p)
	}
	return out
}

func (e *Engine) openLocked(ticket, symbol string, buy bool, volume, price float64, at time.Time) {
	typ := broker.PositionBuy
	if !buy {
		typ = broker.PositionSell
	}
	e.trades[ticket] = &Trade{
		ID:         ticket,
		Symbol:     symbol,
		Type:       typ,
		Volume:     volume,
		EntryPrice: price,
		OpenTime:   at,
		Open:       true,
	}
	e.deals = append(e.deals, broker.Deal{
		ID:     id.NewAt(at),
		Symbol: symbol,
		Volume: volume,
		Price:  price,
		Time:   at,
	})
}

// closeLocked closes volume lots of t at price. A partial close leaves the
// remainder open under the same ticket.
func (e *Engine) closeLocked(t *Trade, volume, price float64, at time.Time) error {
	if volume > t.Volume+1e-9 {
		return fmt.Errorf("close volume %.2f exceeds position %.2f", volume, t.Volume)
	}

	rate, err := market.QuoteToAccountRate(canonical(t.Symbol), e.acct.Currency, e)
	if err != nil {
		return err
	}
	part := *t
	part.Volume = volume
	pl := UnrealizedPL(part, price, e.contractSizeLocked(t.Symbol), rate)

	e.acct.Balance += pl
	t.RealizedPL += pl
	t.Volume = market.RoundTo(t.Volume-volume, 8)
	if t.Volume <= 0 {
		t.Open = false
		t.ClosePrice = price
		t.CloseTime = at
	}

	e.deals = append(e.deals, broker.Deal{
		ID:     id.NewAt(at),
		Symbol: t.Symbol,
		Volume: volume,
		Price:  price,
		Profit: pl,
		Time:   at,
	})
	return e.revalueLocked()
}

func (e *Engine) unrealizedLocked(t *Trade, p broker.Tick) (float64, error) {
	rate, err := market.QuoteToAccountRate(canonical(t.Symbol), e.acct.Currency, e)
	if err != nil {
		return 0, err
	}
	return UnrealizedPL(*t, t.markPrice(p), e.contractSizeLocked(t.Symbol), rate), nil
}

func (e *Engine) revalueLocked() error {
	equity := e.acct.Balance
	var used float64

	for _, t := range e.trades {
		if !t.Open {
			continue
		}
		p, err := e.prices.Get(t.Symbol)
		if err != nil {
			return err
		}
		rate, err := market.QuoteToAccountRate(canonical(t.Symbol), e.acct.Currency, e)
		if err != nil {
			return err
		}
		cs := e.contractSizeLocked(t.Symbol)
		equity += UnrealizedPL(*t, t.markPrice(p), cs, rate)
		used += TradeMargin(t.Volume, cs, p.Mid(), rate, e.leverage)
	}

	e.acct.Equity = equity
	e.acct.Profit = equity - e.acct.Balance
	e.acct.Margin = used
	e.acct.FreeMargin = equity - used
	if used > 0 {
		e.acct.MarginLevel = equity / used * 100
	} else {
		e.acct.MarginLevel = 0
	}
	return nil
}

func (e *Engine) contractSizeLocked(symbol string) float64 {
	if cs, ok := e.sizes[symbol]; ok && cs > 0 {
		return cs
	}
	return market.DefaultContractSize
}

// ULID tickets sort by creation time.
func (e *Engine) sortedTradesLocked() []*Trade {
	out := make([]*Trade, 0, len(e.trades))
	for _, t := range e.trades {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (e *Engine) sortedPendingLocked() []*Pending {
	out := make([]*Pending, 0, len(e.pending))
	for _, p := range e.pending {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func validVolume(v float64, info broker.SymbolInfo) bool {
	if v <= 0 || math.IsNaN(v) {
		return false
	}
	if info.VolumeMin > 0 && v < info.VolumeMin-1e-9 {
		return false
	}
	if info.VolumeStep > 0 {
		n := v / info.VolumeStep
		if math.Abs(n-math.Round(n)) > 1e-6 {
			return false
		}
	}
	return true
}

var _ broker.Terminal = (*Engine)(nil)
var _ market.MidSource = (*Engine)(nil)

// String summarises the account for logs.
func (e *Engine) String() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	open := 0
	for _, t := range e.trades {
		if t.Open {
			open++
		}
	}
	return strings.TrimSpace(fmt.Sprintf("paper %s balance=%.2f equity=%.2f open=%d pending=%d",
		e.acct.ID, e.acct.Balance, e.acct.Equity, open, len(e.pending)))
}
