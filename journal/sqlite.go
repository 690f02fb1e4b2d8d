package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/rustyeddy/fxmirror/exposure"
	"github.com/rustyeddy/fxmirror/market"
)

type SQLiteJournal struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLite(path string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal schema: %w", err)
	}

	return &SQLiteJournal{db: db, now: time.Now}, nil
}

func (j *SQLiteJournal) RecordTrade(t TradeRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO trades
		(cycle_id, symbol, terminal_symbol, trade_type, requested_volume, executed_volume,
		 requested_price, executed_price, slippage_points, current_net, target_position,
		 current_position, delta_position, trend_signal, trend_strength, rsi, macd,
		 reason, timestamp, order_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.CycleID, t.Symbol, t.TerminalSymbol, t.TradeType, t.RequestedVolume, t.ExecutedVolume,
		t.RequestedPrice, t.ExecutedPrice, t.SlippagePoints, t.CurrentNet, t.TargetPosition,
		t.CurrentPosition, t.DeltaPosition, t.TrendSignal, t.TrendStrength, t.RSI, t.MACD,
		t.Reason, t.Timestamp, t.OrderID,
	)
	return err
}

func (j *SQLiteJournal) RecordRejected(r RejectedRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO rejected
		(cycle_id, symbol, reason, delta_position, current_position, current_net,
		 trend_signal, trend_strength, rsi, macd, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.CycleID, r.Symbol, r.Reason, r.DeltaPosition, r.CurrentPosition, r.CurrentNet,
		r.TrendSignal, r.TrendStrength, r.RSI, r.MACD, r.Timestamp,
	)
	return err
}

func (j *SQLiteJournal) RecordAccountMetrics(m AccountMetrics) error {
	_, err := j.db.Exec(`
		INSERT INTO account_metrics
		(timestamp, balance, equity, margin, free_margin, margin_level, realized_pnl_today, unrealized_pnl)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.Timestamp, m.Balance, m.Equity, m.Margin, m.FreeMargin, m.MarginLevel,
		m.RealizedPnLToday, m.UnrealizedPnL,
	)
	return err
}

func (j *SQLiteJournal) WriteDailySummary(d DailySummary) error {
	_, err := j.db.Exec(`
		INSERT OR REPLACE INTO daily_summary
		(date, total_trades, avg_slippage_points, buy_trades, sell_trades, win_trades,
		 loss_trades, avg_profit, avg_loss, unrealized_pnl, realized_pnl)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.Date, d.TotalTrades, d.AvgSlippagePoints, d.BuyTrades, d.SellTrades, d.WinTrades,
		d.LossTrades, d.AvgProfit, d.AvgLoss, d.UnrealizedPnL, d.RealizedPnL,
	)
	return err
}

func (j *SQLiteJournal) WriteExposureTable(rows []market.ExposureRow) error {
	return j.replace("exposure", func(tx *sql.Tx) error {
		for _, r := range rows {
			if _, err := tx.Exec(`
				INSERT INTO exposure (symbol, net_volume, positions, buy_volume, sell_volume, timestamp)
				VALUES (?, ?, ?, ?, ?, ?)`,
				r.Symbol, r.NetVolume, r.Positions, r.BuyVolume, r.SellVolume, r.Timestamp,
			); err != nil {
				return err
			}
		}
		return nil
	})
}

func (j *SQLiteJournal) WriteExposureAudit(steps []exposure.Step) error {
	at := j.now()
	return j.replace("exposure_audit", func(tx *sql.Tx) error {
		for _, s := range steps {
			if _, err := tx.Exec(`
				INSERT INTO exposure_audit
				(written_at, symbol, currency, net_volume, base_exposure, quote_exposure,
				 aggregated_net_units, current_net, formula)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				at, s.Symbol, s.Currency, s.NetVolume, s.BaseExposure, s.QuoteExposure,
				s.AggregatedNetUnits, s.CurrentNet, s.Formula,
			); err != nil {
				return err
			}
		}
		return nil
	})
}

// replace clears table and refills it inside one transaction.
func (j *SQLiteJournal) replace(table string, fill func(*sql.Tx) error) error {
	tx, err := j.db.Begin()
	if err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM " + table); err != nil {
		tx.Rollback()
		return err
	}
	if err := fill(tx); err != nil {
		tx.Rollback()
		return fmt.Errorf("%s: %w", table, err)
	}
	return tx.Commit()
}

func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}

// ListTrades returns trades recorded at or after since, oldest first.
func (j *SQLiteJournal) ListTrades(ctx context.Context, since time.Time) ([]TradeRecord, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT cycle_id, symbol, terminal_symbol, trade_type, requested_volume, executed_volume,
		       requested_price, executed_price, slippage_points, current_net, target_position,
		       current_position, delta_position, trend_signal, trend_strength, rsi, macd,
		       reason, timestamp, order_id
		FROM trades
		WHERE timestamp >= ?
		ORDER BY timestamp ASC, id ASC`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TradeRecord
	for rows.Next() {
		var rec TradeRecord
		var rsi, macd sql.NullFloat64
		if err := rows.Scan(
			&rec.CycleID,
			&rec.Symbol,
			&rec.TerminalSymbol,
			&rec.TradeType,
			&rec.RequestedVolume,
			&rec.ExecutedVolume,
			&rec.RequestedPrice,
			&rec.ExecutedPrice,
			&rec.SlippagePoints,
			&rec.CurrentNet,
			&rec.TargetPosition,
			&rec.CurrentPosition,
			&rec.DeltaPosition,
			&rec.TrendSignal,
			&rec.TrendStrength,
			&rsi,
			&macd,
			&rec.Reason,
			&rec.Timestamp,
			&rec.OrderID,
		); err != nil {
			return nil, err
		}
		rec.RSI = nullable(rsi)
		rec.MACD = nullable(macd)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListRejected returns rejections recorded at or after since, oldest first.
func (j *SQLiteJournal) ListRejected(ctx context.Context, since time.Time) ([]RejectedRecord, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT cycle_id, symbol, reason, delta_position, current_position, current_net,
		       trend_signal, trend_strength, rsi, macd, timestamp
		FROM rejected
		WHERE timestamp >= ?
		ORDER BY timestamp ASC, id ASC`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RejectedRecord
	for rows.Next() {
		var rec RejectedRecord
		var rsi, macd sql.NullFloat64
		if err := rows.Scan(
			&rec.CycleID,
			&rec.Symbol,
			&rec.Reason,
			&rec.DeltaPosition,
			&rec.CurrentPosition,
			&rec.CurrentNet,
			&rec.TrendSignal,
			&rec.TrendStrength,
			&rsi,
			&macd,
			&rec.Timestamp,
		); err != nil {
			return nil, err
		}
		rec.RSI = nullable(rsi)
		rec.MACD = nullable(macd)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// DailySummary returns the summary stored for date (YYYY-MM-DD).
func (j *SQLiteJournal) DailySummary(ctx context.Context, date string) (DailySummary, error) {
	var d DailySummary
	err := j.db.QueryRowContext(ctx, `
		SELECT date, total_trades, avg_slippage_points, buy_trades, sell_trades, win_trades,
		       loss_trades, avg_profit, avg_loss, unrealized_pnl, realized_pnl
		FROM daily_summary
		WHERE date = ?`, date).Scan(
		&d.Date,
		&d.TotalTrades,
		&d.AvgSlippagePoints,
		&d.BuyTrades,
		&d.SellTrades,
		&d.WinTrades,
		&d.LossTrades,
		&d.AvgProfit,
		&d.AvgLoss,
		&d.UnrealizedPnL,
		&d.RealizedPnL,
	)
	if err == sql.ErrNoRows {
		return DailySummary{}, fmt.Errorf("daily summary %q not found", date)
	}
	return d, err
}

// ExposureTable returns the last written exposure table.
func (j *SQLiteJournal) ExposureTable(ctx context.Context) ([]market.ExposureRow, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT symbol, net_volume, positions, buy_volume, sell_volume, timestamp
		FROM exposure ORDER BY rowid ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []market.ExposureRow
	for rows.Next() {
		var r market.ExposureRow
		if err := rows.Scan(&r.Symbol, &r.NetVolume, &r.Positions, &r.BuyVolume, &r.SellVolume, &r.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func nullable(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	x := v.Float64
	return &x
}

var _ Sink = (*SQLiteJournal)(nil)
