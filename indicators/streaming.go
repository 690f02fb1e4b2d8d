package indicators

import "fmt"

// ExponentialMA is a streaming EMA with alpha = 2/(span+1), seeded with the
// first observation rather than an SMA warmup.
type ExponentialMA struct {
	span       int
	multiplier float64
	ema        float64
	count      int
}

// NewEMA creates a streaming EMA for the given span.
func NewEMA(span int) *ExponentialMA {
	return &ExponentialMA{
		span:       span,
		multiplier: 2.0 / float64(span+1),
	}
}

func (e *ExponentialMA) Name() string {
	return fmt.Sprintf("EMA(%d)", e.span)
}

func (e *ExponentialMA) Reset() {
	e.ema = 0
	e.count = 0
}

func (e *ExponentialMA) Update(v float64) {
	if e.count == 0 {
		e.ema = v
	} else {
		e.ema = (v-e.ema)*e.multiplier + e.ema
	}
	e.count++
}

func (e *ExponentialMA) Ready() bool {
	return e.count > 0
}

func (e *ExponentialMA) Value() float64 {
	return e.ema
}
