// Package manager reads per-symbol client exposure from the dealing-desk
// manager.
package manager

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/fxmirror/market"
)

// Feed returns the current net client exposure, one row per configured
// symbol the manager reported.
type Feed interface {
	FetchNetPositions(ctx context.Context) ([]market.ExposureRow, error)
}

// Summary is one symbol's raw manager summary. VolumeNet is already in lots;
// client buy/sell volumes are in manager units of 1/10000 lot.
type Summary struct {
	Symbol            string  `yaml:"symbol" json:"Symbol"`
	VolumeNet         float64 `yaml:"volume_net" json:"VolumeNet"`
	VolumeBuyClients  float64 `yaml:"volume_buy_clients" json:"VolumeBuyClients"`
	VolumeSellClients float64 `yaml:"volume_sell_clients" json:"VolumeSellClients"`
	PositionClients   int     `yaml:"position_clients" json:"PositionClients"`
}

// Row converts a summary into an exposure row.
func (s Summary) Row(now time.Time) market.ExposureRow {
	r := market.ExposureRow{
		Symbol:    strings.ToUpper(s.Symbol),
		NetVolume: market.RoundTo(s.VolumeNet, 2),
		Positions: s.PositionClients,
		Timestamp: now,
	}
	if s.VolumeBuyClients > 0 {
		r.BuyVolume = market.RoundTo(s.VolumeBuyClients/10000, 2)
	}
	if s.VolumeSellClients > 0 {
		r.SellVolume = market.RoundTo(s.VolumeSellClients/10000, 2)
	}
	return r
}

// Rows orders summaries by the configured universe, dropping symbols the
// universe does not list.
func Rows(universe []string, summaries []Summary, now time.Time) []market.ExposureRow {
	bySymbol := make(map[string]Summary, len(summaries))
	for _, s := range summaries {
		bySymbol[strings.ToUpper(s.Symbol)] = s
	}
	var out []market.ExposureRow
	for _, sym := range universe {
		s, ok := bySymbol[strings.ToUpper(sym)]
		if !ok {
			continue
		}
		out = append(out, s.Row(now))
	}
	return out
}

// FileFeed reads a YAML snapshot of manager summaries on every fetch, so the
// file can be edited between paper cycles.
type FileFeed struct {
	Path     string
	Universe []string
	Now      func() time.Time
}

type snapshot struct {
	Summaries []Summary `yaml:"summaries"`
}

func (f *FileFeed) FetchNetPositions(ctx context.Context) ([]market.ExposureRow, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("manager snapshot: %w", err)
	}
	var snap snapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("manager snapshot %s: %w", f.Path, err)
	}
	now := time.Now()
	if f.Now != nil {
		now = f.Now()
	}
	return Rows(f.Universe, snap.Summaries, now), nil
}
