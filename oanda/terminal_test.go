package oanda

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/fxmirror/broker"
)

const acctPath = "/v3/accounts/001-001-1-001"

// fakeAPI serves canned bodies per "METHOD path" and records request bodies.
type fakeAPI struct {
	t      *testing.T
	routes map[string]string
	status map[string]int
	bodies map[string]map[string]any
}

func newFakeAPI(t *testing.T) (*fakeAPI, *Client) {
	f := &fakeAPI{
		t:      t,
		routes: map[string]string{},
		status: map[string]int{},
		bodies: map[string]map[string]any{},
	}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return f, testClient(srv.URL)
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := r.Method + " " + r.URL.Path
	if b, _ := io.ReadAll(r.Body); len(b) > 0 {
		var m map[string]any
		require.NoError(f.t, json.Unmarshal(b, &m))
		f.bodies[key] = m
	}
	body, ok := f.routes[key]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"errorMessage":"no route"}`))
		return
	}
	if s := f.status[key]; s != 0 {
		w.WriteHeader(s)
	}
	w.Write([]byte(body))
}

func TestTick(t *testing.T) {
	f, c := newFakeAPI(t)
	f.routes["GET "+acctPath+"/pricing"] = `{"prices":[{"instrument":"EUR_USD","time":"2024-01-01T10:00:00.000000000Z",
		"bids":[{"price":"1.10000"}],"asks":[{"price":"1.10020"}]}]}`

	tick, err := c.Tick(context.Background(), "EURUSD.ecn")
	require.NoError(t, err)
	assert.Equal(t, "EURUSD.ecn", tick.Symbol)
	assert.Equal(t, 1.1, tick.Bid)
	assert.Equal(t, 1.1002, tick.Ask)
	assert.Equal(t, time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC), tick.Time.UTC())

	_, err = c.Tick(context.Background(), "GBPUSD")
	assert.ErrorIs(t, err, broker.ErrNoTick)
}

func TestSymbolInfo(t *testing.T) {
	f, c := newFakeAPI(t)
	f.routes["GET "+acctPath+"/instruments"] = `{"instruments":[
		{"name":"USD_JPY","type":"CURRENCY","displayPrecision":3,"pipLocation":-2,"minimumTradeSize":"1","tradeUnitsPrecision":0}]}`

	info, err := c.SymbolInfo(context.Background(), "USDJPY")
	require.NoError(t, err)
	assert.Equal(t, 0.01, info.VolumeMin)
	assert.Equal(t, 0.01, info.VolumeStep)
	assert.Equal(t, 3, info.Digits)
	assert.InDelta(t, 0.001, info.Point, 1e-12)

	// cached: the route can go away
	delete(f.routes, "GET "+acctPath+"/instruments")
	_, err = c.SymbolInfo(context.Background(), "USDJPY")
	require.NoError(t, err)

	_, err = c.SymbolInfo(context.Background(), "EURUSD")
	assert.Error(t, err)
}

func TestPositions(t *testing.T) {
	f, c := newFakeAPI(t)
	f.routes["GET "+acctPath+"/openTrades"] = `{"trades":[
		{"id":"11","instrument":"EUR_USD","price":"1.1","openTime":"2024-01-01T09:00:00Z","currentUnits":"20000","unrealizedPL":"4.5"},
		{"id":"12","instrument":"XAU_USD","price":"2400","openTime":"2024-01-01T09:01:00Z","currentUnits":"-50000","unrealizedPL":"-2"}]}`

	all, err := c.Positions(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "EURUSD", all[0].Symbol)
	assert.Equal(t, broker.PositionBuy, all[0].Type)
	assert.InDelta(t, 0.2, all[0].Volume, 1e-12)
	assert.Equal(t, broker.PositionSell, all[1].Type)
	assert.InDelta(t, 0.5, all[1].Volume, 1e-12)
	assert.Equal(t, 2.5, broker.TotalProfit(all))

	eur, err := c.Positions(context.Background(), "EURUSD.ecn")
	require.NoError(t, err)
	require.Len(t, eur, 1)
	assert.Equal(t, "11", eur[0].Ticket)
	assert.Equal(t, "EURUSD.ecn", eur[0].Symbol)
}

func TestSendMarketOrder(t *testing.T) {
	f, c := newFakeAPI(t)
	key := "POST " + acctPath + "/orders"
	f.routes[key] = `{"orderCreateTransaction":{"id":"21"},"orderFillTransaction":{"id":"22","price":"1.10021","units":"-25000"}}`
	f.status[key] = http.StatusCreated

	res, err := c.SendOrder(context.Background(), broker.OrderRequest{
		Action: broker.ActionDeal, Symbol: "EURUSD", Volume: 0.25, Type: broker.OrderSell, Price: 1.1,
	})
	require.NoError(t, err)
	assert.Equal(t, broker.RetcodeDone, res.Retcode)
	assert.Equal(t, "21", res.OrderID)
	assert.Equal(t, 1.10021, res.Price)

	order := f.bodies[key]["order"].(map[string]any)
	assert.Equal(t, "MARKET", order["type"])
	assert.Equal(t, "EUR_USD", order["instrument"])
	assert.Equal(t, "-25000", order["units"])
	assert.Equal(t, "FOK", order["timeInForce"])
}

func TestSendLimitOrder(t *testing.T) {
	f, c := newFakeAPI(t)
	key := "POST " + acctPath + "/orders"
	f.routes[key] = `{"orderCreateTransaction":{"id":"31"}}`
	f.status[key] = http.StatusCreated

	res, err := c.SendOrder(context.Background(), broker.OrderRequest{
		Action: broker.ActionPending, Symbol: "EURUSD", Volume: 0.2, Type: broker.OrderBuyLimit, Price: 1.0999,
	})
	require.NoError(t, err)
	assert.Equal(t, broker.RetcodePlaced, res.Retcode)
	assert.True(t, res.Accepted())

	order := f.bodies[key]["order"].(map[string]any)
	assert.Equal(t, "LIMIT", order["type"])
	assert.Equal(t, "20000", order["units"])
	assert.Equal(t, "1.0999", order["price"])
	assert.Equal(t, "GTC", order["timeInForce"])
}

func TestSendOrderRejections(t *testing.T) {
	t.Run("cancelled", func(t *testing.T) {
		f, c := newFakeAPI(t)
		f.routes["POST "+acctPath+"/orders"] = `{"orderCreateTransaction":{"id":"41"},"orderCancelTransaction":{"id":"42","reason":"INSUFFICIENT_MARGIN"}}`

		res, err := c.SendOrder(context.Background(), broker.OrderRequest{Symbol: "EURUSD", Volume: 1, Type: broker.OrderBuy})
		require.NoError(t, err)
		assert.Equal(t, broker.RetcodeRejected, res.Retcode)
		assert.Equal(t, "INSUFFICIENT_MARGIN", res.Comment)
	})

	t.Run("bad request", func(t *testing.T) {
		f, c := newFakeAPI(t)
		key := "POST " + acctPath + "/orders"
		f.routes[key] = `{"errorMessage":"Invalid value specified for 'order.units'"}`
		f.status[key] = http.StatusBadRequest

		res, err := c.SendOrder(context.Background(), broker.OrderRequest{Symbol: "EURUSD", Volume: 1, Type: broker.OrderBuy})
		require.NoError(t, err)
		assert.Equal(t, broker.RetcodeRejected, res.Retcode)
		assert.Contains(t, res.Comment, "order.units")
	})

	t.Run("server error", func(t *testing.T) {
		f, c := newFakeAPI(t)
		key := "POST " + acctPath + "/orders"
		f.routes[key] = `oops`
		f.status[key] = http.StatusBadGateway

		_, err := c.SendOrder(context.Background(), broker.OrderRequest{Symbol: "EURUSD", Volume: 1, Type: broker.OrderBuy})
		assert.Error(t, err)
	})

	t.Run("zero volume", func(t *testing.T) {
		_, c := newFakeAPI(t)
		res, err := c.SendOrder(context.Background(), broker.OrderRequest{Symbol: "EURUSD", Volume: 0, Type: broker.OrderBuy})
		require.NoError(t, err)
		assert.Equal(t, broker.RetcodeInvalidVolume, res.Retcode)
	})
}

func TestCloseTrade(t *testing.T) {
	f, c := newFakeAPI(t)
	key := "PUT " + acctPath + "/trades/11/close"
	f.routes[key] = `{"orderCreateTransaction":{"id":"51"},"orderFillTransaction":{"id":"52","price":"1.1001"}}`

	res, err := c.SendOrder(context.Background(), broker.OrderRequest{
		Symbol: "EURUSD", Volume: 0.2, Type: broker.OrderSell, Position: "11", Deviation: 20,
	})
	require.NoError(t, err)
	assert.Equal(t, broker.RetcodeDone, res.Retcode)
	assert.Equal(t, "20000", f.bodies[key]["units"])
}

func TestAccount(t *testing.T) {
	f, c := newFakeAPI(t)
	f.routes["GET "+acctPath+"/summary"] = `{"account":{"id":"001-001-1-001","currency":"USD","balance":"10000.0",
		"NAV":"10050.0","marginUsed":"500.0","marginAvailable":"9550.0","unrealizedPL":"50.0"}}`

	a, err := c.Account(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "USD", a.Currency)
	assert.Equal(t, 10000.0, a.Balance)
	assert.Equal(t, 10050.0, a.Equity)
	assert.Equal(t, 500.0, a.Margin)
	assert.Equal(t, 9550.0, a.FreeMargin)
	assert.Equal(t, 50.0, a.Profit)
	assert.InDelta(t, 2010.0, a.MarginLevel, 1e-9)
}

func TestDealsSince(t *testing.T) {
	f, c := newFakeAPI(t)
	f.routes["GET "+acctPath+"/trades"] = `{"trades":[
		{"id":"1","instrument":"EUR_USD","price":"1.1","initialUnits":"10000","realizedPL":"-12.5","averageClosePrice":"1.0988","closeTime":"2024-01-01T08:00:00Z"},
		{"id":"2","instrument":"EUR_USD","price":"1.1","initialUnits":"-10000","realizedPL":"3","averageClosePrice":"1.0997","closeTime":"2023-12-31T22:00:00Z"}]}`

	deals, err := c.DealsSince(context.Background(), time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, deals, 1)
	assert.Equal(t, "EURUSD", deals[0].Symbol)
	assert.Equal(t, -12.5, deals[0].Profit)
	assert.InDelta(t, 0.1, deals[0].Volume, 1e-12)

	realized, err := broker.RealizedSince(context.Background(), c, time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, -9.5, realized)
}

func TestClosesAndMidFallback(t *testing.T) {
	f, c := newFakeAPI(t)
	f.routes["GET /v3/instruments/EUR_USD/candles"] = `{"candles":[
		{"complete":true,"volume":1,"time":"2024-01-01T10:00:00Z","mid":{"o":"1","h":"1","l":"1","c":"1.0850"}},
		{"complete":true,"volume":1,"time":"2024-01-01T10:05:00Z","mid":{"o":"1","h":"1","l":"1","c":"1.0860"}}]}`
	f.routes["GET "+acctPath+"/pricing"] = `{"prices":[]}`

	closes, err := c.Closes(context.Background(), "EURUSD", 300)
	require.NoError(t, err)
	assert.Equal(t, []float64{1.0850, 1.0860}, closes)

	mid, ok := broker.MidPrice(context.Background(), c, "EURUSD")
	require.True(t, ok)
	assert.Equal(t, 1.0860, mid)
}
