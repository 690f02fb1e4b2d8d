package sim

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/fxmirror/broker"
)

// Seed is the YAML description of a paper account: starting balance, the
// symbols it quotes and any positions already open.
type Seed struct {
	Account   SeedAccount    `yaml:"account"`
	Symbols   []SeedSymbol   `yaml:"symbols"`
	Positions []SeedPosition `yaml:"positions"`
}

type SeedAccount struct {
	ID       string  `yaml:"id"`
	Currency string  `yaml:"currency"`
	Balance  float64 `yaml:"balance"`
	Leverage float64 `yaml:"leverage"`
}

type SeedSymbol struct {
	Symbol       string    `yaml:"symbol"`
	Bid          float64   `yaml:"bid"`
	Ask          float64   `yaml:"ask"`
	VolumeMin    float64   `yaml:"volume_min"`
	VolumeStep   float64   `yaml:"volume_step"`
	Point        float64   `yaml:"point"`
	Digits       int       `yaml:"digits"`
	ContractSize float64   `yaml:"contract_size"`
	Closes       []float64 `yaml:"closes"`
}

type SeedPosition struct {
	Symbol string  `yaml:"symbol"`
	Side   string  `yaml:"side"` // buy | sell
	Volume float64 `yaml:"volume"`
}

// LoadSeed reads a paper seed file.
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed: %w", err)
	}
	var s Seed
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}
	return &s, nil
}

// Build creates an engine from the seed and opens its starting positions.
func (s *Seed) Build(ctx context.Context) (*Engine, error) {
	e := NewEngine(broker.Account{
		ID:       s.Account.ID,
		Currency: s.Account.Currency,
		Balance:  s.Account.Balance,
	})
	if s.Account.Leverage > 0 {
		e.SetLeverage(s.Account.Leverage)
	}

	for _, sym := range s.Symbols {
		if sym.Symbol == "" {
			return nil, fmt.Errorf("seed: symbol with empty name")
		}
		if len(sym.Closes) > 0 {
			e.SetHistory(sym.Symbol, sym.Closes)
		}
		if sym.VolumeMin > 0 || sym.VolumeStep > 0 || sym.Digits > 0 {
			e.SetSymbol(broker.SymbolInfo{
				Symbol:     sym.Symbol,
				VolumeMin:  sym.VolumeMin,
				VolumeStep: sym.VolumeStep,
				Point:      sym.Point,
				Digits:     sym.Digits,
			})
		}
		if sym.ContractSize > 0 {
			e.SetContractSize(sym.Symbol, sym.ContractSize)
		}
		if sym.Bid > 0 && sym.Ask > 0 {
			if err := e.UpdatePrice(broker.Tick{Symbol: sym.Symbol, Bid: sym.Bid, Ask: sym.Ask}); err != nil {
				return nil, fmt.Errorf("seed: %w", err)
			}
		}
	}

	for _, p := range s.Positions {
		typ := broker.OrderBuy
		switch strings.ToLower(p.Side) {
		case "buy", "long":
		case "sell", "short":
			typ = broker.OrderSell
		default:
			return nil, fmt.Errorf("seed: %s: unknown side %q", p.Symbol, p.Side)
		}
		res, err := e.SendOrder(ctx, broker.OrderRequest{
			Action: broker.ActionDeal,
			Symbol: p.Symbol,
			Volume: p.Volume,
			Type:   typ,
		})
		if err != nil {
			return nil, err
		}
		if !res.Accepted() {
			return nil, fmt.Errorf("seed: open %s %.2f: %s", p.Symbol, p.Volume, res.Comment)
		}
	}
	return e, nil
}
