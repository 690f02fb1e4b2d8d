package sim

import (
	"strings"
	"sync"

	"github.com/rustyeddy/fxmirror/broker"
)

// PriceStore holds the latest tick per symbol.
type PriceStore struct {
	mu    sync.RWMutex
	ticks map[string]broker.Tick
}

func NewPriceStore() *PriceStore {
	return &PriceStore{ticks: make(map[string]broker.Tick)}
}

func (ps *PriceStore) Set(t broker.Tick) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.ticks[t.Symbol] = t
}

func (ps *PriceStore) Get(symbol string) (broker.Tick, error) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	t, ok := ps.ticks[symbol]
	if !ok {
		return broker.Tick{}, broker.ErrNoTick
	}
	return t, nil
}

// Lookup finds a tick by canonical pair name, ignoring any venue suffix, so
// "USDJPY" matches "USDJPY.ecn".
func (ps *PriceStore) Lookup(pair string) (broker.Tick, bool) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	if t, ok := ps.ticks[pair]; ok {
		return t, true
	}
	for sym, t := range ps.ticks {
		if canonical(sym) == canonical(pair) {
			return t, true
		}
	}
	return broker.Tick{}, false
}

func canonical(symbol string) string {
	s := strings.ToUpper(symbol)
	if i := strings.IndexByte(s, '.'); i >= 0 {
		s = s[:i]
	}
	return s
}
