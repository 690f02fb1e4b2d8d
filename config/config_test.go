package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NotNil(t, cfg)
	assert.NoError(t, cfg.Validate())

	assert.Len(t, cfg.Symbols.Universe, 47)
	assert.Len(t, cfg.Symbols.CurrencyToUSDPair, 16)
	assert.Equal(t, "EURUSD.ecn", cfg.Symbols.Mapping["EURUSD"])
	assert.Equal(t, 0.01, cfg.Symbols.Metadata["USDJPY"].PipSize)
	assert.Equal(t, 0.0001, cfg.Symbols.Metadata["EURUSD"].PipSize)
	assert.Equal(t, 100000.0, cfg.Symbols.Metadata["EURUSD"].ContractSize)

	assert.Equal(t, 120*time.Second, cfg.Runtime.Interval())
	assert.Equal(t, 300.0, cfg.TradeManagement.MaxPositionSize)
	assert.Equal(t, -5000.0, cfg.RiskManagement.DailyLossLimit)
	assert.Equal(t, 1.0, cfg.Multiplier())
}

func TestMultiplier(t *testing.T) {
	cfg := Default()
	cfg.TradeManagement.UseFixedMultiplier = true
	assert.Equal(t, 0.10, cfg.Multiplier())
}

func TestEngineConfig(t *testing.T) {
	cfg := Default()
	cfg.RiskManagement.AutoCloseOnDailyLossLimit = true
	cfg.LimitOrders.UseLimitOrders = true

	ec := cfg.Engine()
	assert.Equal(t, 300.0, ec.Policy.MaxPositionSize)
	assert.Equal(t, -5000.0, ec.Policy.DailyLossLimit)
	assert.True(t, ec.Policy.AutoClose)
	assert.True(t, ec.Policy.AllowNeutral)
	assert.True(t, ec.ConsolidateToUSD)
	assert.Equal(t, 300, ec.HistoryBars)
	assert.Equal(t, 10, ec.Trend.ShortPeriod)
	assert.Equal(t, 50, ec.Trend.LongPeriod)
	assert.True(t, ec.Exec.UseLimitOrders)
	assert.Equal(t, 0.8, ec.Exec.MarketPct)
	assert.Equal(t, "USDJPY.ecn", ec.Exec.TerminalSymbol("USDJPY"))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		errMsg string
	}{
		{"valid config", func(c *Config) {}, ""},
		{"zero cycle", func(c *Config) { c.Runtime.CycleSeconds = 0 }, "runtime.cycle_seconds must be positive"},
		{"unknown terminal", func(c *Config) { c.Runtime.Terminal = "mt5" }, "runtime.terminal must be"},
		{"paper without seed", func(c *Config) { c.Runtime.PaperFile = "" }, "runtime.paper_file required"},
		{"oanda terminal", func(c *Config) { c.Runtime.Terminal = "oanda" }, ""},
		{"http feed without url", func(c *Config) { c.Runtime.Feed = "http" }, "connection.manager_url required"},
		{"unknown feed", func(c *Config) { c.Runtime.Feed = "kafka" }, "runtime.feed must be"},
		{"max position", func(c *Config) { c.TradeManagement.MaxPositionSize = 0 }, "max_position_size must be positive"},
		{"zero multiplier", func(c *Config) { c.TradeManagement.TradeSizeMultiplier = 0 }, "multiplier must be positive"},
		{"positive loss limit", func(c *Config) { c.RiskManagement.DailyLossLimit = 100 }, "daily_loss_limit must be zero or negative"},
		{"bad sma", func(c *Config) { c.Indicators.LongSMAPeriod = 0 }, "indicators: sma periods must be positive"},
		{"market pct", func(c *Config) { c.LimitOrders.MarketOrderPercentage = 1.5 }, "market_order_percentage must be between 0 and 1"},
		{"negative offset", func(c *Config) { c.LimitOrders.LimitOffsetPoints = -1 }, "limit_offset_points must not be negative"},
		{"empty universe", func(c *Config) { c.Symbols.Universe = nil }, "symbols.universe is required"},
		{"non-usd pair", func(c *Config) { c.Symbols.CurrencyToUSDPair["EUR"] = "EURGBP" }, "is not a USD pair"},
		{"wrong currency", func(c *Config) { c.Symbols.CurrencyToUSDPair["EUR"] = "GBPUSD" }, "is not a USD pair"},
		{"journal type", func(c *Config) { c.Journal.Type = "parquet" }, "journal.type must be"},
		{"sqlite without path", func(c *Config) { c.Journal.Type = "sqlite"; c.Journal.DBPath = "" }, "db_path required"},
		{"both without dir", func(c *Config) { c.Journal.Type = "both"; c.Journal.Dir = "" }, "dir and db_path required"},
		{"server without addr", func(c *Config) { c.Server.Enabled = true; c.Server.Addr = "" }, "server.addr required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()

	for _, ext := range []string{".json", ".yaml", ".yml"} {
		t.Run(ext, func(t *testing.T) {
			cfg := Default()
			cfg.Runtime.CycleSeconds = 30
			cfg.Symbols.Universe = []string{"EURUSD", "USDJPY"}
			path := filepath.Join(tmpDir, "test"+ext)

			require.NoError(t, cfg.SaveToFile(path))
			_, err := os.Stat(path)
			require.NoError(t, err)

			loaded, err := LoadFromFile(path)
			require.NoError(t, err)
			assert.Equal(t, cfg, loaded)
		})
	}
}

func TestLoadYAMLSubset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fxmirror.yaml")
	doc := `
runtime:
  cycle_seconds: 60
  terminal: oanda
  feed: http
connection:
  manager_url: http://bridge:8000/net
trade_management:
  max_position_size: 50
  trade_size_multiplier: 0.05
indicators:
  short_sma_period: 5
  long_sma_period: 20
  rsi_period: 14
  macd_fast: 12
  macd_slow: 26
  macd_signal: 9
symbols:
  universe: [EURUSD, GBPUSD]
  currency_to_usd_pair:
    EUR: EURUSD
    GBP: GBPUSD
journal:
  type: sqlite
  db_path: /tmp/fx.db
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 0.05, cfg.Multiplier())
	assert.Equal(t, "http://bridge:8000/net", cfg.Connection.ManagerURL)
	assert.Equal(t, []string{"EURUSD", "GBPUSD"}, cfg.Symbols.Universe)
	assert.Empty(t, cfg.Symbols.Mapping)
}

func TestLoadInvalidFile(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/path.yaml")
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("runtime: [unterminated"), 0644))
	_, err = LoadFromFile(path)
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvOandaToken:    "oanda-secret",
		EnvOandaAccount:  "001-002",
		EnvManagerToken:  "",
		EnvTelegramToken: "tg",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := Default()
	cfg.Connection.ManagerToken = "from-file"
	out := cfg.ApplyEnv(lookup)

	assert.Equal(t, "oanda-secret", out.Connection.OandaToken)
	assert.Equal(t, "001-002", out.Connection.OandaAccountID)
	assert.Equal(t, "from-file", out.Connection.ManagerToken, "empty env keeps file value")
	assert.Equal(t, "tg", out.Notify.TelegramToken)
	assert.Empty(t, cfg.Connection.OandaToken, "receiver is untouched")
}
