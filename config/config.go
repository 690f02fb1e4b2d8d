package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/fxmirror/engine"
	"github.com/rustyeddy/fxmirror/indicators"
	"github.com/rustyeddy/fxmirror/market"
	"github.com/rustyeddy/fxmirror/risk"
)

// Config is the complete process configuration. It is read once at startup
// and never mutated afterwards.
type Config struct {
	Connection      ConnectionConfig      `json:"connection" yaml:"connection"`
	Runtime         RuntimeConfig         `json:"runtime" yaml:"runtime"`
	TradeManagement TradeManagementConfig `json:"trade_management" yaml:"trade_management"`
	RiskManagement  RiskManagementConfig  `json:"risk_management" yaml:"risk_management"`
	Indicators      IndicatorsConfig      `json:"indicators" yaml:"indicators"`
	LimitOrders     LimitOrdersConfig     `json:"limit_orders" yaml:"limit_orders"`
	Routing         RoutingConfig         `json:"routing" yaml:"routing"`
	Symbols         SymbolsConfig         `json:"symbols" yaml:"symbols"`
	Journal         JournalConfig         `json:"journal" yaml:"journal"`
	Server          ServerConfig          `json:"server" yaml:"server"`
	Notify          NotifyConfig          `json:"notify" yaml:"notify"`
	Log             LogConfig             `json:"log" yaml:"log"`
}

// ConnectionConfig holds venue endpoints. Tokens normally come from the
// environment, see ApplyEnv.
type ConnectionConfig struct {
	ManagerURL     string `json:"manager_url" yaml:"manager_url"`
	ManagerToken   string `json:"manager_token,omitempty" yaml:"manager_token,omitempty"`
	OandaAccountID string `json:"oanda_account_id,omitempty" yaml:"oanda_account_id,omitempty"`
	OandaToken     string `json:"oanda_token,omitempty" yaml:"oanda_token,omitempty"`
	OandaPractice  bool   `json:"oanda_practice" yaml:"oanda_practice"`
}

type RuntimeConfig struct {
	CycleSeconds int    `json:"cycle_seconds" yaml:"cycle_seconds"`
	HistoryBars  int    `json:"history_bars" yaml:"history_bars"`
	Terminal     string `json:"terminal" yaml:"terminal"` // "paper" or "oanda"
	Feed         string `json:"feed" yaml:"feed"`         // "file" or "http"
	FeedFile     string `json:"feed_file,omitempty" yaml:"feed_file,omitempty"`
	PaperFile    string `json:"paper_file,omitempty" yaml:"paper_file,omitempty"`
}

// Interval is the pause between headless cycles.
func (r RuntimeConfig) Interval() time.Duration {
	return time.Duration(r.CycleSeconds) * time.Second
}

type TradeManagementConfig struct {
	MaxPositionSize            float64 `json:"max_position_size" yaml:"max_position_size"`
	UseFixedMultiplier         bool    `json:"use_fixed_multiplier" yaml:"use_fixed_multiplier"`
	FixedMultiplier            float64 `json:"fixed_multiplier" yaml:"fixed_multiplier"`
	TradeSizeMultiplier        float64 `json:"trade_size_multiplier" yaml:"trade_size_multiplier"`
	AllowTradesOnNeutralTrend  bool    `json:"allow_trades_on_neutral_trend" yaml:"allow_trades_on_neutral_trend"`
	AllowTradesOnOppositeTrend bool    `json:"allow_trades_on_opposite_trend" yaml:"allow_trades_on_opposite_trend"`
}

type RiskManagementConfig struct {
	DailyLossLimit            float64 `json:"daily_loss_limit" yaml:"daily_loss_limit"`
	AutoCloseOnDailyLossLimit bool    `json:"auto_close_on_daily_loss_limit" yaml:"auto_close_on_daily_loss_limit"`
}

type IndicatorsConfig struct {
	ShortSMAPeriod        int     `json:"short_sma_period" yaml:"short_sma_period"`
	LongSMAPeriod         int     `json:"long_sma_period" yaml:"long_sma_period"`
	NeutralTrendThreshold float64 `json:"neutral_trend_threshold" yaml:"neutral_trend_threshold"`
	RSIPeriod             int     `json:"rsi_period" yaml:"rsi_period"`
	MACDFast              int     `json:"macd_fast" yaml:"macd_fast"`
	MACDSlow              int     `json:"macd_slow" yaml:"macd_slow"`
	MACDSignal            int     `json:"macd_signal" yaml:"macd_signal"`
}

type LimitOrdersConfig struct {
	UseLimitOrders        bool    `json:"use_limit_orders" yaml:"use_limit_orders"`
	EnablePartialLimit    bool    `json:"enable_partial_limit" yaml:"enable_partial_limit"`
	MarketOrderPercentage float64 `json:"market_order_percentage" yaml:"market_order_percentage"`
	LimitOffsetPoints     float64 `json:"limit_offset_points" yaml:"limit_offset_points"`
}

type RoutingConfig struct {
	ConsolidateToUSD bool `json:"consolidate_to_usd" yaml:"consolidate_to_usd"`
}

type SymbolsConfig struct {
	Universe          []string                     `json:"universe" yaml:"universe"`
	Mapping           map[string]string            `json:"mapping,omitempty" yaml:"mapping,omitempty"`
	Metadata          map[string]market.SymbolMeta `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	CurrencyToUSDPair map[string]string            `json:"currency_to_usd_pair" yaml:"currency_to_usd_pair"`
}

type JournalConfig struct {
	Type   string `json:"type" yaml:"type"` // "csv", "sqlite" or "both"
	Dir    string `json:"dir,omitempty" yaml:"dir,omitempty"`
	DBPath string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
}

type ServerConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr" yaml:"addr"`
}

type NotifyConfig struct {
	TelegramToken  string `json:"telegram_token,omitempty" yaml:"telegram_token,omitempty"`
	TelegramChatID int64  `json:"telegram_chat_id,omitempty" yaml:"telegram_chat_id,omitempty"`
}

type LogConfig struct {
	Level string `json:"level" yaml:"level"`
}

// LoadFromFile loads configuration from a file, trying YAML then JSON, and
// validates it.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		cfg = &Config{}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SaveToFile writes YAML for .yaml/.yml paths and indented JSON otherwise.
func (c *Config) SaveToFile(path string) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	default:
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Environment variables that override secrets.
const (
	EnvManagerToken  = "FXMIRROR_MANAGER_TOKEN"
	EnvOandaToken    = "FXMIRROR_OANDA_TOKEN"
	EnvOandaAccount  = "FXMIRROR_OANDA_ACCOUNT"
	EnvTelegramToken = "FXMIRROR_TELEGRAM_TOKEN"
)

// ApplyEnv returns a copy of c with secrets taken from the environment where
// set. lookup is os.LookupEnv outside tests.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) *Config {
	out := *c
	set := func(dst *string, key string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	set(&out.Connection.ManagerToken, EnvManagerToken)
	set(&out.Connection.OandaToken, EnvOandaToken)
	set(&out.Connection.OandaAccountID, EnvOandaAccount)
	set(&out.Notify.TelegramToken, EnvTelegramToken)
	return &out
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Runtime.CycleSeconds <= 0 {
		return fmt.Errorf("runtime.cycle_seconds must be positive")
	}
	switch c.Runtime.Terminal {
	case "paper":
		if c.Runtime.PaperFile == "" {
			return fmt.Errorf("runtime.paper_file required for paper terminal")
		}
	case "oanda":
	default:
		return fmt.Errorf("runtime.terminal must be 'paper' or 'oanda'")
	}
	switch c.Runtime.Feed {
	case "file":
		if c.Runtime.FeedFile == "" {
			return fmt.Errorf("runtime.feed_file required for file feed")
		}
	case "http":
		if c.Connection.ManagerURL == "" {
			return fmt.Errorf("connection.manager_url required for http feed")
		}
	default:
		return fmt.Errorf("runtime.feed must be 'file' or 'http'")
	}

	if c.TradeManagement.MaxPositionSize <= 0 {
		return fmt.Errorf("trade_management.max_position_size must be positive")
	}
	if c.Multiplier() <= 0 {
		return fmt.Errorf("trade_management multiplier must be positive")
	}
	if c.RiskManagement.DailyLossLimit > 0 {
		return fmt.Errorf("risk_management.daily_loss_limit must be zero or negative")
	}
	if err := c.TrendParams().Validate(); err != nil {
		return fmt.Errorf("indicators: %w", err)
	}
	if p := c.LimitOrders.MarketOrderPercentage; p < 0 || p > 1 {
		return fmt.Errorf("limit_orders.market_order_percentage must be between 0 and 1")
	}
	if c.LimitOrders.LimitOffsetPoints < 0 {
		return fmt.Errorf("limit_orders.limit_offset_points must not be negative")
	}

	if len(c.Symbols.Universe) == 0 {
		return fmt.Errorf("symbols.universe is required")
	}
	for ccy, pair := range c.Symbols.CurrencyToUSDPair {
		base, quote, ok := market.SplitPair(pair)
		if !ok || (base != ccy && quote != ccy) || (base != market.AccountCurrency && quote != market.AccountCurrency) {
			return fmt.Errorf("symbols.currency_to_usd_pair: %s -> %s is not a USD pair for %s", ccy, pair, ccy)
		}
	}

	switch c.Journal.Type {
	case "csv":
		if c.Journal.Dir == "" {
			return fmt.Errorf("journal dir required for CSV type")
		}
	case "sqlite":
		if c.Journal.DBPath == "" {
			return fmt.Errorf("journal db_path required for SQLite type")
		}
	case "both":
		if c.Journal.Dir == "" || c.Journal.DBPath == "" {
			return fmt.Errorf("journal dir and db_path required for both type")
		}
	default:
		return fmt.Errorf("journal.type must be 'csv', 'sqlite' or 'both'")
	}

	if c.Server.Enabled && c.Server.Addr == "" {
		return fmt.Errorf("server.addr required when server is enabled")
	}
	return nil
}

// Multiplier is the sizing multiplier in effect.
func (c *Config) Multiplier() float64 {
	tm := c.TradeManagement
	return risk.Multiplier(tm.UseFixedMultiplier, tm.FixedMultiplier, tm.TradeSizeMultiplier)
}

func (c *Config) TrendParams() indicators.TrendParams {
	in := c.Indicators
	return indicators.TrendParams{
		ShortPeriod: in.ShortSMAPeriod,
		LongPeriod:  in.LongSMAPeriod,
		NeutralEps:  in.NeutralTrendThreshold,
		RSIPeriod:   in.RSIPeriod,
		MACDFast:    in.MACDFast,
		MACDSlow:    in.MACDSlow,
		MACDSignal:  in.MACDSignal,
	}
}

// Engine builds the decision engine's configuration.
func (c *Config) Engine() engine.Config {
	return engine.Config{
		Policy: risk.Policy{
			MaxPositionSize: c.TradeManagement.MaxPositionSize,
			AllowNeutral:    c.TradeManagement.AllowTradesOnNeutralTrend,
			AllowOpposite:   c.TradeManagement.AllowTradesOnOppositeTrend,
			DailyLossLimit:  c.RiskManagement.DailyLossLimit,
			AutoClose:       c.RiskManagement.AutoCloseOnDailyLossLimit,
		},
		Multiplier:       c.Multiplier(),
		Trend:            c.TrendParams(),
		HistoryBars:      c.Runtime.HistoryBars,
		ConsolidateToUSD: c.Routing.ConsolidateToUSD,
		Universe:         c.Symbols.Universe,
		Metadata:         c.Symbols.Metadata,
		CurrencyPair:     c.Symbols.CurrencyToUSDPair,
		Exec: engine.ExecConfig{
			UseLimitOrders:     c.LimitOrders.UseLimitOrders,
			EnablePartialLimit: c.LimitOrders.EnablePartialLimit,
			MarketPct:          c.LimitOrders.MarketOrderPercentage,
			LimitOffsetPoints:  c.LimitOrders.LimitOffsetPoints,
			SymbolMap:          c.Symbols.Mapping,
		},
	}
}

var (
	universe = []string{
		"AUDCAD", "AUDJPY", "AUDNZD", "AUDSGD", "AUDCHF", "AUDUSD",
		"CADJPY", "CADCHF",
		"EURAUD", "EURCAD", "EURDKK", "EURGBP", "EURHUF", "EURJPY", "EURNZD", "EURNOK", "EURPLN", "EURSEK", "EURCHF", "EURUSD",
		"GBPAUD", "GBPCAD", "GBPJPY", "GBPNZD", "GBPCHF", "GBPUSD",
		"NZDCAD", "NZDJPY", "NZDCHF", "NZDUSD",
		"CHFDKK", "CHFSGD", "CHFJPY",
		"USDCAD", "USDCNH", "USDCZK", "USDDKK", "USDHKD", "USDHUF", "USDJPY", "USDMXN", "USDNOK", "USDPLN", "USDSGD", "USDZAR", "USDSEK", "USDCHF",
	}

	currencyToUSD = map[string]string{
		"AUD": "AUDUSD",
		"CAD": "USDCAD",
		"CHF": "USDCHF",
		"EUR": "EURUSD",
		"GBP": "GBPUSD",
		"JPY": "USDJPY",
		"CZK": "USDCZK",
		"DKK": "USDDKK",
		"HKD": "USDHKD",
		"HUF": "USDHUF",
		"MXN": "USDMXN",
		"NOK": "USDNOK",
		"PLN": "USDPLN",
		"SGD": "USDSGD",
		"ZAR": "USDZAR",
		"SEK": "USDSEK",
	}
)

// Default returns the production defaults: the FX universe routed to ".ecn"
// terminal symbols, a paper terminal and a file feed.
func Default() *Config {
	mapping := make(map[string]string, len(universe))
	meta := make(map[string]market.SymbolMeta, len(universe))
	for _, s := range universe {
		mapping[s] = s + ".ecn"
		pip := 0.0001
		if _, quote, _ := market.SplitPair(s); quote == "JPY" {
			pip = 0.01
		}
		meta[s] = market.SymbolMeta{
			ContractSize: market.DefaultContractSize,
			MinLot:       market.DefaultMinLot,
			PipSize:      pip,
		}
	}
	c2u := make(map[string]string, len(currencyToUSD))
	for k, v := range currencyToUSD {
		c2u[k] = v
	}

	return &Config{
		Connection: ConnectionConfig{
			OandaPractice: true,
		},
		Runtime: RuntimeConfig{
			CycleSeconds: 120,
			HistoryBars:  300,
			Terminal:     "paper",
			Feed:         "file",
			FeedFile:     "./data/feed.yaml",
			PaperFile:    "./data/paper.yaml",
		},
		TradeManagement: TradeManagementConfig{
			MaxPositionSize:            300,
			UseFixedMultiplier:         false,
			FixedMultiplier:            0.10,
			TradeSizeMultiplier:        1,
			AllowTradesOnNeutralTrend:  true,
			AllowTradesOnOppositeTrend: true,
		},
		RiskManagement: RiskManagementConfig{
			DailyLossLimit:            -5000,
			AutoCloseOnDailyLossLimit: false,
		},
		Indicators: IndicatorsConfig{
			ShortSMAPeriod:        10,
			LongSMAPeriod:         50,
			NeutralTrendThreshold: 0.0001,
			RSIPeriod:             14,
			MACDFast:              12,
			MACDSlow:              26,
			MACDSignal:            9,
		},
		LimitOrders: LimitOrdersConfig{
			UseLimitOrders:        false,
			EnablePartialLimit:    true,
			MarketOrderPercentage: 0.8,
			LimitOffsetPoints:     10,
		},
		Routing: RoutingConfig{ConsolidateToUSD: true},
		Symbols: SymbolsConfig{
			Universe:          append([]string(nil), universe...),
			Mapping:           mapping,
			Metadata:          meta,
			CurrencyToUSDPair: c2u,
		},
		Journal: JournalConfig{
			Type:   "csv",
			Dir:    "./journal",
			DBPath: "./journal/fxmirror.db",
		},
		Server: ServerConfig{Addr: ":8080"},
		Log:    LogConfig{Level: "info"},
	}
}
