package engine

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rustyeddy/fxmirror/indicators"
	"github.com/rustyeddy/fxmirror/journal"
	"github.com/rustyeddy/fxmirror/market"
)

// Decision is the full per-symbol outcome of a cycle.
type Decision struct {
	Symbol          string           `json:"symbol"`
	CurrentNet      float64          `json:"current_net"`
	CurrentPosition float64          `json:"current_position"`
	Target          float64          `json:"target"`
	Delta           float64          `json:"delta"`
	Trend           indicators.Trend `json:"trend"`
	TrendStrength   float64          `json:"trend_strength"`
	RSI             *float64         `json:"rsi"`
	MACD            *float64         `json:"macd"`
	Allowed         bool             `json:"allowed"`
	Executed        bool             `json:"executed"`
	Reason          string           `json:"reason"`
	PnL             float64          `json:"pnl"`
}

// USDRow is the display form of a decision.
type USDRow struct {
	Symbol         string   `json:"Symbol"`
	NetUSDPosition string   `json:"Net USD Position"`
	TradePosition  string   `json:"Trade Position"`
	TargetPosition string   `json:"Target Position"`
	TradeDelta     string   `json:"Trade Delta"`
	Trend          string   `json:"Trend"`
	TrendStrength  float64  `json:"Trend Strength"`
	RSI            *float64 `json:"RSI"`
	MACD           *float64 `json:"MACD"`
	Reason         string   `json:"Reason"`
	PNL            float64  `json:"PNL"`
}

var USDHeader = []string{
	"Symbol", "Net USD Position", "Trade Position", "Target Position", "Trade Delta",
	"Trend", "Trend Strength", "RSI", "MACD", "Reason", "PNL",
}

func (d Decision) Row() USDRow {
	return USDRow{
		Symbol:         d.Symbol,
		NetUSDPosition: fmt.Sprintf("%.2f", d.CurrentNet),
		TradePosition:  fmt.Sprintf("%.2f", d.CurrentPosition),
		TargetPosition: fmt.Sprintf("%.2f", d.Target),
		TradeDelta:     fmt.Sprintf("%.2f", d.Delta),
		Trend:          capitalize(string(d.Trend)),
		TrendStrength:  d.TrendStrength,
		RSI:            roundPtr(d.RSI, 2),
		MACD:           roundPtr(d.MACD, 4),
		Reason:         d.Reason,
		PNL:            market.RoundTo(d.PnL, 2),
	}
}

func (r USDRow) Strings() []string {
	return []string{
		r.Symbol,
		r.NetUSDPosition,
		r.TradePosition,
		r.TargetPosition,
		r.TradeDelta,
		r.Trend,
		strconv.FormatFloat(r.TrendStrength, 'f', -1, 64),
		optional(r.RSI),
		optional(r.MACD),
		r.Reason,
		strconv.FormatFloat(r.PNL, 'f', 2, 64),
	}
}

// PairRow is the manager's own view of a symbol, before consolidation.
type PairRow struct {
	Symbol      string  `json:"Symbol"`
	Trades      int     `json:"Trades"`
	Long        float64 `json:"Long"`
	Short       float64 `json:"Short"`
	NetPosition float64 `json:"Net Position"`
}

var PairHeader = []string{"Symbol", "Trades", "Long", "Short", "Net Position"}

func PairRowFrom(r market.ExposureRow) PairRow {
	return PairRow{
		Symbol:      r.Symbol,
		Trades:      r.Positions,
		Long:        r.BuyVolume,
		Short:       r.SellVolume,
		NetPosition: r.NetVolume,
	}
}

func (r PairRow) Strings() []string {
	return []string{
		r.Symbol,
		strconv.Itoa(r.Trades),
		strconv.FormatFloat(r.Long, 'f', -1, 64),
		strconv.FormatFloat(r.Short, 'f', -1, 64),
		strconv.FormatFloat(r.NetPosition, 'f', -1, 64),
	}
}

// Result is what one cycle returns to its caller.
type Result struct {
	CycleID        string           `json:"cycle_id"`
	USDRows        []USDRow         `json:"usd_rows"`
	PairRows       []PairRow        `json:"pair_rows"`
	TradesExecuted int              `json:"trades_executed"`
	Status         string           `json:"status,omitempty"`
	Decisions      []Decision       `json:"decisions"`
	Effects        []journal.Effect `json:"-"`
}

// Tables renders the result's rows for CSV export.
func (r Result) Tables() (usd, pairs [][]string) {
	for _, u := range r.USDRows {
		usd = append(usd, u.Strings())
	}
	for _, p := range r.PairRows {
		pairs = append(pairs, p.Strings())
	}
	return usd, pairs
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}

func roundPtr(x *float64, digits int) *float64 {
	if x == nil {
		return nil
	}
	v := market.RoundTo(*x, digits)
	return &v
}

func optional(x *float64) string {
	if x == nil {
		return ""
	}
	return strconv.FormatFloat(*x, 'f', -1, 64)
}
