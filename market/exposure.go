package market

import "time"

// ExposureRow is one manager-reported symbol's aggregate client exposure for a
// cycle. Volumes are in lots; NetVolume > 0 means clients are net long.
type ExposureRow struct {
	Symbol     string    `json:"symbol" yaml:"symbol"`
	NetVolume  float64   `json:"net_volume" yaml:"net_volume"`
	Positions  int       `json:"positions" yaml:"positions"`
	BuyVolume  float64   `json:"buy_volume" yaml:"buy_volume"`
	SellVolume float64   `json:"sell_volume" yaml:"sell_volume"`
	Timestamp  time.Time `json:"timestamp" yaml:"timestamp"`
}

// SymbolMeta holds configured fallbacks used when the terminal cannot describe
// a symbol.
type SymbolMeta struct {
	ContractSize float64 `json:"contract_size" yaml:"contract_size"`
	MinLot       float64 `json:"min_lot" yaml:"min_lot"`
	PipSize      float64 `json:"pip_size" yaml:"pip_size"`
}

const (
	DefaultContractSize = 100000.0
	DefaultMinLot       = 0.01
)
