// Package journal holds the append-only audit trail of each cycle: executed
// and rejected trades, account snapshots, the daily summary and the exposure
// tables.
package journal

import (
	"time"

	"go.uber.org/multierr"

	"github.com/rustyeddy/fxmirror/exposure"
	"github.com/rustyeddy/fxmirror/market"
)

// TimeLayout is used for timestamps in every CSV file.
const TimeLayout = "2006-01-02 15:04:05"

type TradeRecord struct {
	CycleID         string
	Symbol          string
	TerminalSymbol  string
	TradeType       string // BUY | SELL
	RequestedVolume float64
	ExecutedVolume  float64
	RequestedPrice  float64
	ExecutedPrice   float64
	SlippagePoints  float64
	CurrentNet      float64
	TargetPosition  float64
	CurrentPosition float64
	DeltaPosition   float64
	TrendSignal     string
	TrendStrength   float64
	RSI             *float64
	MACD            *float64
	Reason          string
	Timestamp       time.Time
	OrderID         string
}

type RejectedRecord struct {
	CycleID         string
	Symbol          string
	Reason          string
	DeltaPosition   float64
	CurrentPosition float64
	CurrentNet      float64
	TrendSignal     string
	TrendStrength   float64
	RSI             *float64
	MACD            *float64
	Timestamp       time.Time
}

type AccountMetrics struct {
	Timestamp        time.Time
	Balance          float64
	Equity           float64
	Margin           float64
	FreeMargin       float64
	MarginLevel      float64
	RealizedPnLToday float64
	UnrealizedPnL    float64
}

// DailySummary is rewritten every cycle; the last write of the day wins.
type DailySummary struct {
	Date              string // YYYY-MM-DD
	TotalTrades       int
	AvgSlippagePoints float64
	BuyTrades         int
	SellTrades        int
	WinTrades         int
	LossTrades        int
	AvgProfit         float64
	AvgLoss           float64
	UnrealizedPnL     float64
	RealizedPnL       float64
}

// Sink receives the durable writes of a cycle.
type Sink interface {
	RecordTrade(TradeRecord) error
	RecordRejected(RejectedRecord) error
	RecordAccountMetrics(AccountMetrics) error
	WriteDailySummary(DailySummary) error
	// WriteExposureTable replaces the current and previous net position tables.
	WriteExposureTable([]market.ExposureRow) error
	// WriteExposureAudit replaces the consolidation audit for the cycle.
	WriteExposureAudit([]exposure.Step) error
	Close() error
}

// Effect is one deferred write. The engine collects effects while deciding
// and applies them once the cycle's decisions are final.
type Effect interface {
	Apply(Sink) error
}

func (r TradeRecord) Apply(s Sink) error    { return s.RecordTrade(r) }
func (r RejectedRecord) Apply(s Sink) error { return s.RecordRejected(r) }
func (m AccountMetrics) Apply(s Sink) error { return s.RecordAccountMetrics(m) }
func (d DailySummary) Apply(s Sink) error   { return s.WriteDailySummary(d) }

// ExposureTable is the set of rows the cycle traded on.
type ExposureTable []market.ExposureRow

func (t ExposureTable) Apply(s Sink) error { return s.WriteExposureTable(t) }

// ExposureAudit is the consolidation trail of the cycle.
type ExposureAudit []exposure.Step

func (a ExposureAudit) Apply(s Sink) error { return s.WriteExposureAudit(a) }

// ApplyAll applies every effect in order. It does not stop at the first
// failure; all errors are combined.
func ApplyAll(s Sink, effects []Effect) error {
	var err error
	for _, e := range effects {
		err = multierr.Append(err, e.Apply(s))
	}
	return err
}

// Tee fans every write out to all sinks.
type Tee []Sink

func (t Tee) each(fn func(Sink) error) error {
	var err error
	for _, s := range t {
		err = multierr.Append(err, fn(s))
	}
	return err
}

func (t Tee) RecordTrade(r TradeRecord) error {
	return t.each(func(s Sink) error { return s.RecordTrade(r) })
}

func (t Tee) RecordRejected(r RejectedRecord) error {
	return t.each(func(s Sink) error { return s.RecordRejected(r) })
}

func (t Tee) RecordAccountMetrics(m AccountMetrics) error {
	return t.each(func(s Sink) error { return s.RecordAccountMetrics(m) })
}

func (t Tee) WriteDailySummary(d DailySummary) error {
	return t.each(func(s Sink) error { return s.WriteDailySummary(d) })
}

func (t Tee) WriteExposureTable(rows []market.ExposureRow) error {
	return t.each(func(s Sink) error { return s.WriteExposureTable(rows) })
}

func (t Tee) WriteExposureAudit(steps []exposure.Step) error {
	return t.each(func(s Sink) error { return s.WriteExposureAudit(steps) })
}

func (t Tee) Close() error {
	return t.each(func(s Sink) error { return s.Close() })
}

// Discard accepts every write and keeps nothing.
type Discard struct{}

func (Discard) RecordTrade(TradeRecord) error { return nil }
func (Discard) RecordRejected(RejectedRecord) error { return nil }
func (Discard) RecordAccountMetrics(AccountMetrics) error { return nil }
func (Discard) WriteDailySummary(DailySummary) error { return nil }
func (Discard) WriteExposureTable([]market.ExposureRow) error { return nil }
func (Discard) WriteExposureAudit([]exposure.Step) error { return nil }
func (Discard) Close() error { return nil }

var (
	_ Sink = Tee(nil)
	_ Sink = Discard{}
)
