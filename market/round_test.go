package market

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoundDownToStep(t *testing.T) {
	tests := []struct {
		name string
		x    float64
		step float64
		want float64
	}{
		{"exact multiple", 0.30, 0.10, 0.30},
		{"floors positive", 0.27, 0.10, 0.20},
		{"floors negative toward zero", -0.27, 0.10, -0.20},
		{"below one step", 0.009, 0.01, 0},
		{"below one step negative", -0.009, 0.01, 0},
		{"min lot grid", 1.23456, 0.01, 1.23},
		{"zero", 0, 0.01, 0},
		{"zero step passthrough", 1.2345, 0, 1.2345},
		{"negative step passthrough", -1.2345, -0.01, -1.2345},
		{"large", 299.999, 0.01, 299.99},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, RoundDownToStep(tt.x, tt.step), 1e-12)
		})
	}
}

func TestRoundDownToStepProperties(t *testing.T) {
	steps := []float64{0.01, 0.1, 0.05, 1}
	xs := []float64{-12.345, -1, -0.5, -0.011, 0.011, 0.2, 0.7, 3.14159, 250.005}

	for _, step := range steps {
		for _, x := range xs {
			got := RoundDownToStep(x, step)
			if got != 0 {
				assert.Equal(t, math.Signbit(x), math.Signbit(got), "sign x=%v step=%v", x, step)
			}
			assert.LessOrEqual(t, math.Abs(got), math.Abs(x)+1e-12)

			n := got / step
			assert.InDelta(t, math.Round(n), n, 1e-9, "multiple x=%v step=%v", x, step)
		}
	}
}

func TestRoundDownToStepNonFinite(t *testing.T) {
	assert.Equal(t, 0.0, RoundDownToStep(math.NaN(), 0.01))
	assert.Equal(t, 0.0, RoundDownToStep(math.Inf(1), 0.01))
	assert.Equal(t, 1.5, RoundDownToStep(1.5, math.NaN()))
}

func TestRoundTo(t *testing.T) {
	assert.Equal(t, 1.23, RoundTo(1.2345, 2))
	assert.Equal(t, 1.0999, RoundTo(1.09985, 4))
	assert.Equal(t, 149.9, RoundTo(149.8996, 3))
	assert.Equal(t, -0.13, RoundTo(-0.125, 2))
}
