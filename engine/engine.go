// Package engine runs the hedge decision cycle: read client exposure,
// consolidate it into USD pairs, size the mirror position for each symbol,
// gate it on trend and risk, and send the orders.
package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rustyeddy/fxmirror/broker"
	"github.com/rustyeddy/fxmirror/exposure"
	"github.com/rustyeddy/fxmirror/indicators"
	"github.com/rustyeddy/fxmirror/internal/id"
	"github.com/rustyeddy/fxmirror/journal"
	"github.com/rustyeddy/fxmirror/manager"
	"github.com/rustyeddy/fxmirror/market"
	"github.com/rustyeddy/fxmirror/metrics"
	"github.com/rustyeddy/fxmirror/risk"
)

// StatusRiskBreach is reported when the daily loss guard stops trading.
const StatusRiskBreach = "RISK GUARD: daily loss breached"

var ErrCycleInProgress = errors.New("cycle already in progress")

// Config is the engine's slice of the application config.
type Config struct {
	Policy           risk.Policy
	Multiplier       float64
	Trend            indicators.TrendParams
	HistoryBars      int
	ConsolidateToUSD bool
	Universe         []string
	Metadata         map[string]market.SymbolMeta
	CurrencyPair     map[string]string
	Exec             ExecConfig
}

// Alerter is notified when the risk guard trips.
type Alerter interface {
	Alert(ctx context.Context, msg string) error
}

type Engine struct {
	mu sync.Mutex

	cfg   Config
	feed  manager.Feed
	term  broker.Terminal
	exec  *Executor
	agg   *exposure.Aggregator
	sink  journal.Sink
	alert Alerter
	log   *zap.Logger
	now   func() time.Time
}

func New(cfg Config, feed manager.Feed, term broker.Terminal, sink journal.Sink, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	if sink == nil {
		sink = journal.Discard{}
	}
	if cfg.HistoryBars <= 0 {
		cfg.HistoryBars = 300
	}
	e := &Engine{
		cfg:  cfg,
		feed: feed,
		term: term,
		exec: NewExecutor(term, cfg.Exec, log.Named("exec")),
		sink: sink,
		log:  log,
		now:  time.Now,
	}
	e.agg = exposure.NewAggregator(
		exposure.PriceFunc(e.midPrice),
		cfg.Universe,
		cfg.Metadata,
		cfg.CurrencyPair,
	)
	return e
}

// SetAlerter installs a breach notifier.
func (e *Engine) SetAlerter(a Alerter) { e.alert = a }

// SetClock replaces time.Now for timestamps and the trading day boundary.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
	e.exec.now = now
	e.agg.Now = now
}

// Cycle runs one decision pass. Concurrent calls fail fast with
// ErrCycleInProgress. Feed and account errors abort the cycle; per-symbol
// errors are reported in that symbol's reason.
func (e *Engine) Cycle(ctx context.Context) (Result, error) {
	if !e.mu.TryLock() {
		return Result{}, ErrCycleInProgress
	}
	defer e.mu.Unlock()

	start := time.Now()
	res, err := e.cycle(ctx)
	metrics.CycleSeconds.Observe(time.Since(start).Seconds())

	switch {
	case err != nil:
		metrics.CyclesTotal.WithLabelValues("error").Inc()
		return res, err
	case res.Status != "":
		metrics.CyclesTotal.WithLabelValues("breach").Inc()
	default:
		metrics.CyclesTotal.WithLabelValues("ok").Inc()
	}

	if err := journal.ApplyAll(e.sink, res.Effects); err != nil {
		e.log.Error("journal write failed", zap.String("cycle_id", res.CycleID), zap.Error(err))
	}
	return res, nil
}

func (e *Engine) cycle(ctx context.Context) (Result, error) {
	now := e.now()
	res := Result{
		CycleID:  id.NewAt(now),
		USDRows:  []USDRow{},
		PairRows: []PairRow{},
	}
	log := e.log.With(zap.String("cycle_id", res.CycleID))

	rows, err := e.feed.FetchNetPositions(ctx)
	if err != nil {
		return res, fmt.Errorf("fetch net positions: %w", err)
	}
	if len(rows) == 0 {
		log.Info("no manager exposure")
		return res, nil
	}

	for _, r := range rows {
		res.PairRows = append(res.PairRows, PairRowFrom(r))
	}

	trading := rows
	if e.cfg.ConsolidateToUSD {
		var steps []exposure.Step
		trading, steps = e.agg.Aggregate(ctx, rows)
		res.Effects = append(res.Effects, journal.ExposureAudit(steps))
	}

	realized, err := broker.RealizedSince(ctx, e.term, broker.StartOfDay(now))
	if err != nil {
		return res, fmt.Errorf("realized pnl: %w", err)
	}
	acct, err := e.term.Account(ctx)
	if err != nil {
		return res, fmt.Errorf("account: %w", err)
	}
	metrics.RealizedToday.Set(realized)
	metrics.Equity.Set(acct.Equity)

	pnl := risk.PnLSnapshot{DayRealized: realized, Unrealized: acct.Profit}
	if daily := risk.EvaluateDaily(e.cfg.Policy, pnl); !daily.Allowed {
		log.Warn("risk guard breached",
			zap.Float64("realized", realized),
			zap.Float64("limit", e.cfg.Policy.DailyLossLimit),
		)
		metrics.DecisionsTotal.WithLabelValues(daily.Code()).Inc()

		if e.cfg.Policy.AutoClose {
			closed, err := e.exec.CloseAll(ctx)
			if err != nil {
				log.Error("close all", zap.Error(err))
			}
			log.Warn("positions flattened", zap.Int("closed", closed))
			if a, err := e.term.Account(ctx); err == nil {
				acct = a
			}
		}
		if e.alert != nil {
			msg := fmt.Sprintf("%s: realized %.2f below limit %.2f", StatusRiskBreach, realized, e.cfg.Policy.DailyLossLimit)
			if err := e.alert.Alert(ctx, msg); err != nil {
				log.Warn("alert failed", zap.Error(err))
			}
		}

		res.Status = StatusRiskBreach
		res.Effects = append(res.Effects,
			accountMetrics(now, acct, realized, pnl.Unrealized),
			dailySummary(now, nil, realized, pnl.Unrealized),
			journal.ExposureTable(trading),
		)
		return res, nil
	}

	for _, row := range trading {
		d, effects := e.decide(ctx, res.CycleID, row, now)
		res.Decisions = append(res.Decisions, d)
		res.USDRows = append(res.USDRows, d.Row())
		res.Effects = append(res.Effects, effects...)
		if d.Executed {
			res.TradesExecuted++
		}
	}

	// Realized P/L and account state after this cycle's orders.
	if r, err := broker.RealizedSince(ctx, e.term, broker.StartOfDay(now)); err == nil {
		realized = r
	} else {
		log.Warn("realized pnl after trades", zap.Error(err))
	}
	if a, err := e.term.Account(ctx); err == nil {
		acct = a
	} else {
		log.Warn("account after trades", zap.Error(err))
	}

	deals, err := e.term.DealsSince(ctx, broker.StartOfDay(now))
	if err != nil {
		log.Warn("deals", zap.Error(err))
	}
	summary := dailySummary(now, deals, realized, acct.Profit)
	summary.TotalTrades = res.TradesExecuted
	for _, d := range res.Decisions {
		if !d.Executed {
			continue
		}
		if d.Delta > 0 {
			summary.BuyTrades++
		} else {
			summary.SellTrades++
		}
	}

	res.Effects = append(res.Effects,
		journal.ExposureTable(trading),
		accountMetrics(now, acct, realized, acct.Profit),
		summary,
	)

	log.Info("cycle decided",
		zap.Int("symbols", len(res.Decisions)),
		zap.Int("trades", res.TradesExecuted),
	)
	return res, nil
}

// decide sizes, gates and, when allowed, executes one symbol.
func (e *Engine) decide(ctx context.Context, cycleID string, row market.ExposureRow, now time.Time) (Decision, []journal.Effect) {
	sym := row.Symbol
	tsym := e.cfg.Exec.TerminalSymbol(sym)
	d := Decision{Symbol: sym, CurrentNet: row.NetVolume, Trend: indicators.TrendNeutral}
	log := e.log.With(zap.String("cycle_id", cycleID), zap.String("symbol", sym))

	positions, err := e.term.Positions(ctx, tsym)
	if err != nil {
		log.Error("positions", zap.Error(err))
		d.Reason = "Error: " + err.Error()
		metrics.DecisionsTotal.WithLabelValues("ERROR").Inc()
		return d, nil
	}
	d.CurrentPosition = broker.NetVolume(positions)
	d.PnL = market.RoundTo(broker.TotalProfit(positions), 2)
	metrics.NetExposure.WithLabelValues(sym).Set(row.NetVolume)
	metrics.HedgePosition.WithLabelValues(sym).Set(d.CurrentPosition)

	minLot := e.minLot(ctx, sym, tsym)
	size := risk.Size(risk.Inputs{
		CurrentNet:      row.NetVolume,
		CurrentPosition: d.CurrentPosition,
		Multiplier:      e.cfg.Multiplier,
		MinLot:          minLot,
	})
	d.Target, d.Delta = size.Target, size.Delta

	closes, err := e.term.Closes(ctx, tsym, e.cfg.HistoryBars)
	if err != nil {
		log.Warn("close history unavailable", zap.Error(err))
	}
	tm := indicators.ComputeTrend(closes, e.cfg.Trend)
	d.Trend, d.TrendStrength, d.RSI, d.MACD = tm.Trend, tm.Strength, tm.RSI, tm.MACD

	verdict := risk.Evaluate(e.cfg.Policy, risk.Intent{
		Symbol:          sym,
		Trend:           tm.Trend,
		Target:          d.Target,
		CurrentPosition: d.CurrentPosition,
		Delta:           d.Delta,
		MinLot:          minLot,
	})

	var effects []journal.Effect
	if !verdict.Allowed {
		d.Reason = verdict.Reason()
		metrics.DecisionsTotal.WithLabelValues(verdict.Code()).Inc()
		if verdict.Audited() {
			effects = append(effects, journal.RejectedRecord{
				CycleID:         cycleID,
				Symbol:          sym,
				Reason:          d.Reason,
				DeltaPosition:   d.Delta,
				CurrentPosition: d.CurrentPosition,
				CurrentNet:      d.CurrentNet,
				TrendSignal:     string(tm.Trend),
				TrendStrength:   tm.Strength,
				RSI:             tm.RSI,
				MACD:            tm.MACD,
				Timestamp:       now,
			})
		}
		log.Debug("not traded", zap.String("reason", d.Reason), zap.Float64("delta", d.Delta))
		return d, effects
	}
	d.Allowed = true

	buy := d.Delta > 0
	x := e.exec.Execute(ctx, sym, buy, math.Abs(d.Delta))
	for _, rej := range x.Rejected {
		rej.CycleID = cycleID
		rej.CurrentPosition = d.CurrentPosition
		effects = append(effects, rej)
	}

	if !x.Success {
		d.Reason = "Trade failed"
		metrics.DecisionsTotal.WithLabelValues("FAILED").Inc()
		log.Warn("trade failed", zap.Float64("delta", d.Delta))
		return d, effects
	}

	d.Executed = true
	d.Reason = "Trade executed"
	metrics.DecisionsTotal.WithLabelValues("EXECUTED").Inc()
	side := "BUY"
	if !buy {
		side = "SELL"
	}
	effects = append(effects, journal.TradeRecord{
		CycleID:         cycleID,
		Symbol:          sym,
		TerminalSymbol:  tsym,
		TradeType:       side,
		RequestedVolume: math.Abs(d.Delta),
		ExecutedVolume:  x.Filled(),
		RequestedPrice:  x.MarketPrice,
		ExecutedPrice:   x.MarketPrice,
		CurrentNet:      d.CurrentNet,
		TargetPosition:  d.Target,
		CurrentPosition: d.CurrentPosition,
		DeltaPosition:   d.Delta,
		TrendSignal:     string(tm.Trend),
		TrendStrength:   tm.Strength,
		RSI:             tm.RSI,
		MACD:            tm.MACD,
		Reason:          d.Reason,
		Timestamp:       now,
		OrderID:         x.OrderID(),
	})
	log.Info("trade executed",
		zap.String("side", side),
		zap.Float64("delta", d.Delta),
		zap.Float64("target", d.Target),
		zap.String("order_id", x.OrderID()),
	)
	return d, effects
}

// minLot prefers the terminal's volume_min, then configured metadata.
func (e *Engine) minLot(ctx context.Context, sym, tsym string) float64 {
	if info, err := e.term.SymbolInfo(ctx, tsym); err == nil && info.VolumeMin > 0 {
		return info.VolumeMin
	}
	if m, ok := e.cfg.Metadata[sym]; ok && m.MinLot > 0 {
		return m.MinLot
	}
	return market.DefaultMinLot
}

func (e *Engine) midPrice(ctx context.Context, symbol string) (float64, bool) {
	return broker.MidPrice(ctx, e.term, e.cfg.Exec.TerminalSymbol(symbol))
}

func accountMetrics(now time.Time, a broker.Account, realized, unrealized float64) journal.AccountMetrics {
	m := journal.AccountMetrics{
		Timestamp:        now,
		Balance:          market.RoundTo(a.Balance, 2),
		Equity:           market.RoundTo(a.Equity, 2),
		Margin:           market.RoundTo(a.Margin, 2),
		FreeMargin:       market.RoundTo(a.Equity-a.Margin, 2),
		RealizedPnLToday: realized,
		UnrealizedPnL:    unrealized,
	}
	if a.Margin > 0 {
		m.MarginLevel = market.RoundTo(a.MarginLevel, 2)
	}
	return m
}

// dailySummary fills the win/loss columns from today's closing deals.
func dailySummary(now time.Time, deals []broker.Deal, realized, unrealized float64) journal.DailySummary {
	s := journal.DailySummary{
		Date:          now.Format("2006-01-02"),
		UnrealizedPnL: unrealized,
		RealizedPnL:   realized,
	}
	var won, lost float64
	for _, d := range deals {
		switch {
		case d.Profit > 0:
			s.WinTrades++
			won += d.Profit
		case d.Profit < 0:
			s.LossTrades++
			lost += d.Profit
		}
	}
	if s.WinTrades > 0 {
		s.AvgProfit = won / float64(s.WinTrades)
	}
	if s.LossTrades > 0 {
		s.AvgLoss = lost / float64(s.LossTrades)
	}
	return s
}
