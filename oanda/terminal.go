package oanda

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/rustyeddy/fxmirror/broker"
)

type priceLevel struct {
	Price float64 `json:"price,string"`
}

type pricingResponse struct {
	Prices []struct {
		Instrument string       `json:"instrument"`
		Time       time.Time    `json:"time"`
		Bids       []priceLevel `json:"bids"`
		Asks       []priceLevel `json:"asks"`
	} `json:"prices"`
}

type instrument struct {
	Name                string  `json:"name"`
	Type                string  `json:"type"`
	DisplayPrecision    int     `json:"displayPrecision"`
	PipLocation         int     `json:"pipLocation"`
	MinimumTradeSize    float64 `json:"minimumTradeSize,string"`
	TradeUnitsPrecision int     `json:"tradeUnitsPrecision"`
}

type apiTrade struct {
	ID                string    `json:"id"`
	Instrument        string    `json:"instrument"`
	Price             float64   `json:"price,string"`
	OpenTime          time.Time `json:"openTime"`
	CurrentUnits      float64   `json:"currentUnits,string"`
	InitialUnits      float64   `json:"initialUnits,string"`
	UnrealizedPL      float64   `json:"unrealizedPL,string"`
	RealizedPL        float64   `json:"realizedPL,string"`
	AverageClosePrice float64   `json:"averageClosePrice,string"`
	CloseTime         time.Time `json:"closeTime"`
}

type tradesResponse struct {
	Trades []apiTrade `json:"trades"`
}

type transaction struct {
	ID     string  `json:"id"`
	Price  float64 `json:"price,string"`
	Units  float64 `json:"units,string"`
	Reason string  `json:"reason"`
}

type orderResponse struct {
	OrderCreateTransaction *transaction `json:"orderCreateTransaction"`
	OrderFillTransaction   *transaction `json:"orderFillTransaction"`
	OrderCancelTransaction *transaction `json:"orderCancelTransaction"`
}

type accountResponse struct {
	Account struct {
		ID              string  `json:"id"`
		Currency        string  `json:"currency"`
		Balance         float64 `json:"balance,string"`
		NAV             float64 `json:"NAV,string"`
		MarginUsed      float64 `json:"marginUsed,string"`
		MarginAvailable float64 `json:"marginAvailable,string"`
		UnrealizedPL    float64 `json:"unrealizedPL,string"`
	} `json:"account"`
}

func (c *Client) Tick(ctx context.Context, symbol string) (broker.Tick, error) {
	inst := Instrument(symbol)
	var resp pricingResponse
	q := url.Values{"instruments": {inst}}
	if err := c.do(ctx, http.MethodGet, c.accountPath("/pricing"), q, nil, &resp); err != nil {
		return broker.Tick{}, fmt.Errorf("pricing %s: %w", inst, err)
	}
	for _, p := range resp.Prices {
		if p.Instrument != inst || len(p.Bids) == 0 || len(p.Asks) == 0 {
			continue
		}
		return broker.Tick{Symbol: symbol, Bid: p.Bids[0].Price, Ask: p.Asks[0].Price, Time: p.Time}, nil
	}
	return broker.Tick{}, fmt.Errorf("%w: %s", broker.ErrNoTick, symbol)
}

func (c *Client) instrument(ctx context.Context, inst string) (instrument, error) {
	c.mu.Lock()
	in, ok := c.instruments[inst]
	c.mu.Unlock()
	if ok {
		return in, nil
	}

	var resp struct {
		Instruments []instrument `json:"instruments"`
	}
	q := url.Values{"instruments": {inst}}
	if err := c.do(ctx, http.MethodGet, c.accountPath("/instruments"), q, nil, &resp); err != nil {
		return instrument{}, fmt.Errorf("instruments %s: %w", inst, err)
	}
	for _, in := range resp.Instruments {
		if in.Name == inst {
			c.mu.Lock()
			c.instruments[inst] = in
			c.mu.Unlock()
			return in, nil
		}
	}
	return instrument{}, fmt.Errorf("%w: %s", broker.ErrUnknownSymbol, inst)
}

// SymbolInfo expresses OANDA's unit-based constraints in lots: the minimum
// trade size is divided by the contract size and floored at 0.01 lots.
func (c *Client) SymbolInfo(ctx context.Context, symbol string) (broker.SymbolInfo, error) {
	inst := Instrument(symbol)
	in, err := c.instrument(ctx, inst)
	if err != nil {
		return broker.SymbolInfo{}, err
	}
	return broker.SymbolInfo{
		Symbol:     symbol,
		VolumeMin:  math.Max(in.MinimumTradeSize/c.contractSize(inst), 0.01),
		VolumeStep: 0.01,
		Point:      math.Pow10(-in.DisplayPrecision),
		Digits:     in.DisplayPrecision,
	}, nil
}

func (c *Client) Positions(ctx context.Context, symbol string) ([]broker.Position, error) {
	var resp tradesResponse
	if err := c.do(ctx, http.MethodGet, c.accountPath("/openTrades"), nil, nil, &resp); err != nil {
		return nil, fmt.Errorf("open trades: %w", err)
	}

	want := ""
	if symbol != "" {
		want = Instrument(symbol)
	}
	var out []broker.Position
	for _, t := range resp.Trades {
		if want != "" && t.Instrument != want {
			continue
		}
		name := symbol
		if name == "" {
			name = Compact(t.Instrument)
		}
		typ := broker.PositionBuy
		if t.CurrentUnits < 0 {
			typ = broker.PositionSell
		}
		out = append(out, broker.Position{
			Ticket:    t.ID,
			Symbol:    name,
			Type:      typ,
			Volume:    math.Abs(t.CurrentUnits) / c.contractSize(t.Instrument),
			PriceOpen: t.Price,
			Profit:    t.UnrealizedPL,
			Time:      t.OpenTime,
		})
	}
	return out, nil
}

// SendOrder maps a deal to a FOK market order, a pending request to a GTC
// limit order and a request with a Position ticket to a trade close.
// Business rejections come back as a result; only transport and server
// faults are errors.
func (c *Client) SendOrder(ctx context.Context, req broker.OrderRequest) (broker.OrderResult, error) {
	inst := Instrument(req.Symbol)
	units := math.Round(req.Volume * c.contractSize(inst))
	res := broker.OrderResult{Volume: req.Volume, Price: req.Price}
	if units <= 0 {
		res.Retcode = broker.RetcodeInvalidVolume
		res.Comment = "invalid volume"
		return res, nil
	}

	var (
		resp orderResponse
		err  error
	)
	switch {
	case req.Position != "":
		body := map[string]string{"units": strconv.FormatFloat(units, 'f', 0, 64)}
		path := c.accountPath("/trades/" + url.PathEscape(req.Position) + "/close")
		err = c.do(ctx, http.MethodPut, path, nil, body, &resp)

	case req.Action == broker.ActionPending:
		if req.Type != broker.OrderBuyLimit && req.Type != broker.OrderSellLimit {
			res.Retcode = broker.RetcodeInvalid
			res.Comment = "unsupported pending type"
			return res, nil
		}
		err = c.do(ctx, http.MethodPost, c.accountPath("/orders"), nil, orderBody("LIMIT", inst, req, units), &resp)

	default:
		err = c.do(ctx, http.MethodPost, c.accountPath("/orders"), nil, orderBody("MARKET", inst, req, units), &resp)
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500 {
		res.Retcode = broker.RetcodeRejected
		res.Comment = apiErr.Message
		return res, nil
	}
	if err != nil {
		return res, fmt.Errorf("send order %s: %w", inst, err)
	}

	switch {
	case resp.OrderFillTransaction != nil:
		res.Retcode = broker.RetcodeDone
		res.Comment = "done"
		res.OrderID = resp.OrderFillTransaction.ID
		if resp.OrderCreateTransaction != nil {
			res.OrderID = resp.OrderCreateTransaction.ID
		}
		if resp.OrderFillTransaction.Price > 0 {
			res.Price = resp.OrderFillTransaction.Price
		}
	case resp.OrderCancelTransaction != nil:
		res.Retcode = broker.RetcodeRejected
		res.Comment = resp.OrderCancelTransaction.Reason
	case resp.OrderCreateTransaction != nil:
		res.Retcode = broker.RetcodePlaced
		res.Comment = "placed"
		res.OrderID = resp.OrderCreateTransaction.ID
	default:
		res.Retcode = broker.RetcodeRejected
		res.Comment = "empty order response"
	}

	c.log.Debug("oanda order",
		zap.String("instrument", inst),
		zap.String("type", req.Type.String()),
		zap.Float64("units", units),
		zap.Int("retcode", res.Retcode),
		zap.String("order_id", res.OrderID),
	)
	return res, nil
}

func orderBody(kind, inst string, req broker.OrderRequest, units float64) map[string]any {
	if !req.Type.IsBuy() {
		units = -units
	}
	o := map[string]any{
		"type":         kind,
		"instrument":   inst,
		"units":        strconv.FormatFloat(units, 'f', 0, 64),
		"positionFill": "DEFAULT",
	}
	if kind == "LIMIT" {
		o["price"] = strconv.FormatFloat(req.Price, 'f', -1, 64)
		o["timeInForce"] = "GTC"
	} else {
		o["timeInForce"] = "FOK"
	}
	if req.Comment != "" {
		o["clientExtensions"] = map[string]string{"comment": req.Comment}
	}
	return map[string]any{"order": o}
}

func (c *Client) Account(ctx context.Context) (broker.Account, error) {
	var resp accountResponse
	if err := c.do(ctx, http.MethodGet, c.accountPath("/summary"), nil, nil, &resp); err != nil {
		return broker.Account{}, fmt.Errorf("account summary: %w", err)
	}
	a := resp.Account
	acct := broker.Account{
		ID:         a.ID,
		Currency:   a.Currency,
		Balance:    a.Balance,
		Equity:     a.NAV,
		Margin:     a.MarginUsed,
		FreeMargin: a.MarginAvailable,
		Profit:     a.UnrealizedPL,
	}
	if a.MarginUsed > 0 {
		acct.MarginLevel = a.NAV / a.MarginUsed * 100
	}
	return acct, nil
}

// DealsSince reports trades closed at or after since, one deal per trade.
func (c *Client) DealsSince(ctx context.Context, since time.Time) ([]broker.Deal, error) {
	var resp tradesResponse
	q := url.Values{"state": {"CLOSED"}, "count": {"500"}}
	if err := c.do(ctx, http.MethodGet, c.accountPath("/trades"), q, nil, &resp); err != nil {
		return nil, fmt.Errorf("closed trades: %w", err)
	}

	var out []broker.Deal
	for _, t := range resp.Trades {
		if t.CloseTime.Before(since) {
			continue
		}
		out = append(out, broker.Deal{
			ID:     t.ID,
			Symbol: Compact(t.Instrument),
			Volume: math.Abs(t.InitialUnits) / c.contractSize(t.Instrument),
			Price:  t.AverageClosePrice,
			Profit: t.RealizedPL,
			Time:   t.CloseTime,
		})
	}
	return out, nil
}

func (c *Client) Closes(ctx context.Context, symbol string, bars int) ([]float64, error) {
	if bars <= 0 {
		return nil, nil
	}
	if bars > 5000 {
		bars = 5000
	}
	candles, err := c.GetCandles(ctx, CandlesRequest{
		Instrument:  Instrument(symbol),
		Granularity: c.Granularity,
		Count:       bars,
	})
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(candles))
	for i, cd := range candles {
		out[i] = cd.Close
	}
	return out, nil
}

var _ broker.Terminal = (*Client)(nil)
