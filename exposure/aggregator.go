// Package exposure nets manager-reported pair exposure into per-currency
// units and re-expresses each currency as a single USD pair position.
package exposure

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rustyeddy/fxmirror/market"
)

const (
	FormulaNonForex = "N/A (non-forex)"
	FormulaNoMid    = "N/A (no mid price)"
	FormulaNoUSD    = "N/A (no USD pair)"
	FormulaAnchor   = "N/A (anchor)"
)

// PriceSource returns the mid for a manager-side symbol. ok is false when
// neither a tick nor a recent close is available.
type PriceSource interface {
	MidPrice(ctx context.Context, symbol string) (float64, bool)
}

// PriceFunc adapts a function to PriceSource.
type PriceFunc func(ctx context.Context, symbol string) (float64, bool)

func (f PriceFunc) MidPrice(ctx context.Context, symbol string) (float64, bool) {
	return f(ctx, symbol)
}

// Step is one line of the consolidation audit trail. Pair steps carry the
// base/quote units they added; currency steps carry the currency, its
// aggregated units and the converted lots.
type Step struct {
	Symbol             string  `json:"symbol"`
	Currency           string  `json:"currency,omitempty"`
	NetVolume          float64 `json:"net_volume"`
	BaseExposure       float64 `json:"base_exposure"`
	QuoteExposure      float64 `json:"quote_exposure"`
	AggregatedNetUnits float64 `json:"aggregated_net_units"`
	CurrentNet         float64 `json:"current_net"`
	Formula            string  `json:"formula"`
}

// Aggregator is stateless between calls. Aggregate on the same rows and
// prices always returns the same result.
type Aggregator struct {
	Prices       PriceSource
	Metadata     map[string]market.SymbolMeta
	Tradable     map[string]bool
	CurrencyPair map[string]string // currency -> USD pair, e.g. JPY -> USDJPY
	Now          func() time.Time
}

// NewAggregator builds an aggregator over a universe of tradable symbols.
func NewAggregator(prices PriceSource, universe []string, meta map[string]market.SymbolMeta, c2u map[string]string) *Aggregator {
	tradable := make(map[string]bool, len(universe))
	for _, s := range universe {
		tradable[strings.ToUpper(s)] = true
	}
	return &Aggregator{
		Prices:       prices,
		Metadata:     meta,
		Tradable:     tradable,
		CurrencyPair: c2u,
		Now:          time.Now,
	}
}

// ContractSize returns the configured contract size for symbol, or 100000.
func (a *Aggregator) ContractSize(symbol string) float64 {
	if m, ok := a.Metadata[symbol]; ok && m.ContractSize > 0 {
		return m.ContractSize
	}
	return market.DefaultContractSize
}

// Aggregate consolidates rows into tradable USD pair rows and the audit
// steps explaining them.
func (a *Aggregator) Aggregate(ctx context.Context, rows []market.ExposureRow) ([]market.ExposureRow, []Step) {
	units := make(map[string]float64)
	var order []string
	var steps []Step
	var out []market.ExposureRow

	add := func(ccy string, v float64) {
		if _, seen := units[ccy]; !seen {
			order = append(order, ccy)
		}
		units[ccy] += v
	}

	for _, r := range rows {
		sym := strings.ToUpper(strings.TrimSpace(r.Symbol))
		step := Step{Symbol: sym, NetVolume: r.NetVolume}

		base, quote, ok := market.SplitPair(sym)
		if !ok {
			step.Formula = FormulaNonForex
			steps = append(steps, step)
			if a.Tradable[sym] {
				out = append(out, r)
			}
			continue
		}

		mid, ok := a.mid(ctx, sym)
		if !ok {
			step.Formula = FormulaNoMid
			steps = append(steps, step)
			continue
		}

		cs := a.ContractSize(sym)
		step.BaseExposure = r.NetVolume * cs
		step.QuoteExposure = -r.NetVolume * cs * mid
		add(base, step.BaseExposure)
		add(quote, step.QuoteExposure)
		steps = append(steps, step)
	}

	now := time.Now()
	if a.Now != nil {
		now = a.Now()
	}

	for _, ccy := range order {
		net := units[ccy]
		if ccy == market.AccountCurrency {
			steps = append(steps, Step{Currency: ccy, AggregatedNetUnits: net, Formula: FormulaAnchor})
			continue
		}
		pair, ok := a.CurrencyPair[ccy]
		if !ok || pair == "" {
			steps = append(steps, Step{Currency: ccy, AggregatedNetUnits: net, Formula: FormulaNoUSD})
			continue
		}
		if net == 0 {
			continue
		}

		mid, ok := a.mid(ctx, pair)
		if !ok {
			steps = append(steps, Step{Symbol: pair, Currency: ccy, AggregatedNetUnits: net, Formula: FormulaNoMid})
			continue
		}

		cs := a.ContractSize(pair)
		var current float64
		var formula string
		if market.IsUSDBase(pair) {
			current = -net / (cs * mid)
			formula = fmt.Sprintf("-net_units (%s) / (contract_size (%s) * mid_price (%s))", num(net), num(cs), num(mid))
		} else {
			current = net / cs
			formula = fmt.Sprintf("net_units (%s) / contract_size (%s)", num(net), num(cs))
		}

		steps = append(steps, Step{
			Symbol:             pair,
			Currency:           ccy,
			AggregatedNetUnits: net,
			CurrentNet:         current,
			Formula:            formula,
		})

		if a.Tradable[pair] {
			out = append(out, market.ExposureRow{
				Symbol:    pair,
				NetVolume: current,
				Timestamp: now,
			})
		}
	}
	return out, steps
}

func (a *Aggregator) mid(ctx context.Context, symbol string) (float64, bool) {
	if a.Prices == nil {
		return 0, false
	}
	mid, ok := a.Prices.MidPrice(ctx, symbol)
	if !ok || mid <= 0 {
		return 0, false
	}
	return mid, true
}

func num(x float64) string {
	return strconv.FormatFloat(x, 'f', -1, 64)
}
