package journal

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/rustyeddy/fxmirror/exposure"
	"github.com/rustyeddy/fxmirror/market"
)

const (
	tradeLogPrefix    = "trade_log"
	rejectedLogPrefix = "rejected_trade_log"
	accountPrefix     = "account_metrics"
	summaryPrefix     = "daily_summary"

	ExposureFile         = "exposure_net_positions.csv"
	PreviousExposureFile = "previous_net_positions.csv"
	ExposureAuditFile    = "currency_exposure_calculations.csv"
)

var (
	tradeHeader = []string{
		"symbol", "terminal_symbol", "trade_type", "requested_volume", "executed_volume",
		"requested_price", "executed_price", "slippage_points", "current_net", "target_position",
		"current_position", "delta_position", "trend_signal", "trend_strength", "rsi", "macd",
		"reason", "timestamp", "order_id", "cycle_id",
	}
	rejectedHeader = []string{
		"symbol", "reason", "delta_position", "current_position", "current_net",
		"trend_signal", "trend_strength", "rsi", "macd", "timestamp", "cycle_id",
	}
	accountHeader = []string{
		"timestamp", "balance", "equity", "margin", "free_margin", "margin_level",
		"realized_pnl_today", "unrealized_pnl",
	}
	summaryHeader = []string{
		"date", "total_trades", "avg_slippage_points", "buy_trades", "sell_trades",
		"win_trades", "loss_trades", "avg_profit", "avg_loss", "unrealized_pnl", "realized_pnl",
	}
	exposureHeader = []string{"symbol", "net_volume", "positions", "buy_volume", "sell_volume", "timestamp"}
	auditHeader    = []string{
		"symbol", "currency", "net_volume", "base_exposure", "quote_exposure",
		"aggregated_net_units", "current_net", "formula",
	}
)

// CSVJournal writes into a YYYY-MM-DD folder under its root, one folder per
// day. Logs are appended; tables are replaced.
type CSVJournal struct {
	mu   sync.Mutex
	root string
	now  func() time.Time
}

func NewCSV(root string) (*CSVJournal, error) {
	if root == "" {
		root = "."
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("journal dir: %w", err)
	}
	return &CSVJournal{root: root, now: time.Now}, nil
}

// SetClock replaces time.Now for folder and file dates.
func (j *CSVJournal) SetClock(now func() time.Time) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.now = now
}

// Folder returns today's folder, creating it if needed.
func (j *CSVJournal) Folder() (string, error) {
	dir := filepath.Join(j.root, j.now().Format("2006-01-02"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

func (j *CSVJournal) dated(prefix string) (string, error) {
	dir, err := j.Folder()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, fmt.Sprintf("%s_%s.csv", prefix, j.now().Format("2006-01-02"))), nil
}

func (j *CSVJournal) RecordTrade(t TradeRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	path, err := j.dated(tradeLogPrefix)
	if err != nil {
		return err
	}
	return appendRow(path, tradeHeader, []string{
		t.Symbol,
		t.TerminalSymbol,
		t.TradeType,
		f(t.RequestedVolume),
		f(t.ExecutedVolume),
		f(t.RequestedPrice),
		f(t.ExecutedPrice),
		f(t.SlippagePoints),
		f(t.CurrentNet),
		f(t.TargetPosition),
		f(t.CurrentPosition),
		f(t.DeltaPosition),
		t.TrendSignal,
		f(t.TrendStrength),
		fp(t.RSI),
		fp(t.MACD),
		t.Reason,
		ts(t.Timestamp),
		t.OrderID,
		t.CycleID,
	})
}

func (j *CSVJournal) RecordRejected(r RejectedRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	path, err := j.dated(rejectedLogPrefix)
	if err != nil {
		return err
	}
	return appendRow(path, rejectedHeader, []string{
		r.Symbol,
		r.Reason,
		f(r.DeltaPosition),
		f(r.CurrentPosition),
		f(r.CurrentNet),
		r.TrendSignal,
		f(r.TrendStrength),
		fp(r.RSI),
		fp(r.MACD),
		ts(r.Timestamp),
		r.CycleID,
	})
}

func (j *CSVJournal) RecordAccountMetrics(m AccountMetrics) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	path, err := j.dated(accountPrefix)
	if err != nil {
		return err
	}
	return appendRow(path, accountHeader, []string{
		ts(m.Timestamp),
		f2(m.Balance),
		f2(m.Equity),
		f2(m.Margin),
		f2(m.FreeMargin),
		f2(m.MarginLevel),
		f2(m.RealizedPnLToday),
		f2(m.UnrealizedPnL),
	})
}

func (j *CSVJournal) WriteDailySummary(d DailySummary) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	path, err := j.dated(summaryPrefix)
	if err != nil {
		return err
	}
	return writeTable(path, summaryHeader, [][]string{{
		d.Date,
		strconv.Itoa(d.TotalTrades),
		f(d.AvgSlippagePoints),
		strconv.Itoa(d.BuyTrades),
		strconv.Itoa(d.SellTrades),
		strconv.Itoa(d.WinTrades),
		strconv.Itoa(d.LossTrades),
		f(d.AvgProfit),
		f(d.AvgLoss),
		f2(d.UnrealizedPnL),
		f2(d.RealizedPnL),
	}})
}

func (j *CSVJournal) WriteExposureTable(rows []market.ExposureRow) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	dir, err := j.Folder()
	if err != nil {
		return err
	}
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, []string{
			r.Symbol,
			f(r.NetVolume),
			strconv.Itoa(r.Positions),
			f(r.BuyVolume),
			f(r.SellVolume),
			ts(r.Timestamp),
		})
	}
	if err := writeTable(filepath.Join(dir, ExposureFile), exposureHeader, out); err != nil {
		return err
	}
	return writeTable(filepath.Join(dir, PreviousExposureFile), exposureHeader, out)
}

func (j *CSVJournal) WriteExposureAudit(steps []exposure.Step) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	dir, err := j.Folder()
	if err != nil {
		return err
	}
	out := make([][]string, 0, len(steps))
	for _, s := range steps {
		out = append(out, []string{
			s.Symbol,
			s.Currency,
			f(s.NetVolume),
			f(s.BaseExposure),
			f(s.QuoteExposure),
			f(s.AggregatedNetUnits),
			f(s.CurrentNet),
			s.Formula,
		})
	}
	return writeTable(filepath.Join(dir, ExposureAuditFile), auditHeader, out)
}

// Export writes a one-off table named <prefix>_<YYYY-MM-DD_HH-MM>.csv into
// today's folder and returns its path.
func (j *CSVJournal) Export(prefix string, header []string, rows [][]string) (string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	dir, err := j.Folder()
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, fmt.Sprintf("%s_%s.csv", prefix, j.now().Format("2006-01-02_15-04")))
	if err := writeTable(path, header, rows); err != nil {
		return "", err
	}
	return path, nil
}

// Close is a no-op; every write opens and closes its own file.
func (j *CSVJournal) Close() error { return nil }

func appendRow(path string, header, row []string) error {
	_, statErr := os.Stat(path)
	fresh := errors.Is(statErr, os.ErrNotExist)

	fh, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	w := csv.NewWriter(fh)
	if fresh {
		if err := w.Write(header); err != nil {
			fh.Close()
			return err
		}
	}
	if err := w.Write(row); err != nil {
		fh.Close()
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		fh.Close()
		return err
	}
	return fh.Close()
}

func writeTable(path string, header []string, rows [][]string) error {
	fh, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(fh)
	if err := w.Write(header); err != nil {
		fh.Close()
		return err
	}
	if err := w.WriteAll(rows); err != nil {
		fh.Close()
		return err
	}
	return fh.Close()
}

func f(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}

func f2(x float64) string {
	return strconv.FormatFloat(x, 'f', 2, 64)
}

// fp renders an optional indicator; missing values are empty cells.
func fp(x *float64) string {
	if x == nil {
		return ""
	}
	return f(*x)
}

func ts(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(TimeLayout)
}

var _ Sink = (*CSVJournal)(nil)
