// journal/schema.go
package journal

const Schema = `
CREATE TABLE IF NOT EXISTS trades (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	cycle_id TEXT NOT NULL,
	symbol TEXT NOT NULL,
	terminal_symbol TEXT NOT NULL,
	trade_type TEXT NOT NULL,
	requested_volume REAL NOT NULL,
	executed_volume REAL NOT NULL,
	requested_price REAL NOT NULL,
	executed_price REAL NOT NULL,
	slippage_points REAL NOT NULL,
	current_net REAL NOT NULL,
	target_position REAL NOT NULL,
	current_position REAL NOT NULL,
	delta_position REAL NOT NULL,
	trend_signal TEXT NOT NULL,
	trend_strength REAL NOT NULL,
	rsi REAL,
	macd REAL,
	reason TEXT NOT NULL,
	timestamp DATETIME NOT NULL,
	order_id TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS rejected (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	cycle_id TEXT NOT NULL,
	symbol TEXT NOT NULL,
	reason TEXT NOT NULL,
	delta_position REAL NOT NULL,
	current_position REAL NOT NULL,
	current_net REAL NOT NULL,
	trend_signal TEXT NOT NULL,
	trend_strength REAL NOT NULL,
	rsi REAL,
	macd REAL,
	timestamp DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS account_metrics (
	timestamp DATETIME NOT NULL,
	balance REAL NOT NULL,
	equity REAL NOT NULL,
	margin REAL NOT NULL,
	free_margin REAL NOT NULL,
	margin_level REAL NOT NULL,
	realized_pnl_today REAL NOT NULL,
	unrealized_pnl REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS daily_summary (
	date TEXT PRIMARY KEY,
	total_trades INTEGER NOT NULL,
	avg_slippage_points REAL NOT NULL,
	buy_trades INTEGER NOT NULL,
	sell_trades INTEGER NOT NULL,
	win_trades INTEGER NOT NULL,
	loss_trades INTEGER NOT NULL,
	avg_profit REAL NOT NULL,
	avg_loss REAL NOT NULL,
	unrealized_pnl REAL NOT NULL,
	realized_pnl REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS exposure (
	symbol TEXT NOT NULL,
	net_volume REAL NOT NULL,
	positions INTEGER NOT NULL,
	buy_volume REAL NOT NULL,
	sell_volume REAL NOT NULL,
	timestamp DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS exposure_audit (
	written_at DATETIME NOT NULL,
	symbol TEXT NOT NULL,
	currency TEXT NOT NULL DEFAULT '',
	net_volume REAL NOT NULL,
	base_exposure REAL NOT NULL,
	quote_exposure REAL NOT NULL,
	aggregated_net_units REAL NOT NULL,
	current_net REAL NOT NULL,
	formula TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_time ON trades(timestamp);
CREATE INDEX IF NOT EXISTS idx_rejected_time ON rejected(timestamp);
CREATE INDEX IF NOT EXISTS idx_metrics_time ON account_metrics(timestamp);
`
