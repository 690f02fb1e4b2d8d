package risk

import (
	"testing"

	"github.com/rustyeddy/fxmirror/indicators"
	"github.com/stretchr/testify/assert"
)

func permissive() Policy {
	return Policy{
		MaxPositionSize: 300,
		AllowNeutral:    true,
		AllowOpposite:   true,
		DailyLossLimit:  -5000,
	}
}

func TestGateAllowed(t *testing.T) {
	t.Parallel()

	strict := Gate{}
	open := Gate{AllowNeutral: true, AllowOpposite: true}

	tests := []struct {
		name    string
		gate    Gate
		trend   indicators.Trend
		target  float64
		current float64
		want    bool
	}{
		{"neutral blocked", strict, indicators.TrendNeutral, 1, 0, false},
		{"neutral allowed", Gate{AllowNeutral: true}, indicators.TrendNeutral, 1, 0, true},
		{"buy into down blocked", strict, indicators.TrendDown, 1, 0, false},
		{"sell into down allowed", strict, indicators.TrendDown, -1, 0, true},
		{"sell into up blocked", strict, indicators.TrendUp, -1, 0, false},
		{"buy into up allowed", strict, indicators.TrendUp, 1, 0, true},
		{"opposite allowed when configured", Gate{AllowOpposite: true}, indicators.TrendUp, -1, 0, true},
		{"flat target passes", strict, indicators.TrendUp, 0, 0, true},
		{"permissive default", open, indicators.TrendDown, 5, 0, true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.gate.Allowed(tt.trend, tt.target, tt.current))
		})
	}
}

func TestGuardCheck(t *testing.T) {
	t.Parallel()

	g := Guard{Limit: -5000}
	assert.True(t, g.Check(0))
	assert.True(t, g.Check(-5000))
	assert.False(t, g.Check(-6000))
	assert.True(t, g.Check(-4999.99), "recovery resumes trading")
}

func TestEvaluate(t *testing.T) {
	t.Parallel()

	t.Run("delta too small", func(t *testing.T) {
		d := Evaluate(permissive(), Intent{Trend: indicators.TrendUp, Target: 0.005, Delta: 0, MinLot: 0.01})
		assert.False(t, d.Allowed)
		assert.Equal(t, CodeDeltaTooSmall, d.Code())
		assert.Equal(t, "Delta too small: 0.00", d.Reason())
		assert.False(t, d.Audited())
	})

	t.Run("trend blocked", func(t *testing.T) {
		p := permissive()
		p.AllowOpposite = false
		d := Evaluate(p, Intent{Trend: indicators.TrendUp, Target: -1, Delta: -1, MinLot: 0.01})
		assert.False(t, d.Allowed)
		assert.Equal(t, "Trade conditions not met", d.Reason())
		assert.True(t, d.Audited())
	})

	t.Run("max position", func(t *testing.T) {
		p := permissive()
		p.MaxPositionSize = 1
		d := Evaluate(p, Intent{Trend: indicators.TrendUp, Target: 2, CurrentPosition: 0.5, Delta: 1.5, MinLot: 0.01})
		assert.False(t, d.Allowed)
		assert.Equal(t, CodeMaxPosition, d.Code())
		assert.Equal(t, "Exceeds max position size", d.Reason())
		assert.True(t, d.Audited())
	})

	t.Run("allowed", func(t *testing.T) {
		d := Evaluate(permissive(), Intent{Trend: indicators.TrendUp, Target: 0.2, Delta: 0.2, MinLot: 0.01})
		assert.True(t, d.Allowed)
		assert.Empty(t, d.Reason())
		assert.False(t, d.Audited())
	})
}

func TestEvaluateDaily(t *testing.T) {
	t.Parallel()

	d := EvaluateDaily(permissive(), PnLSnapshot{DayRealized: -6000})
	assert.False(t, d.Allowed)
	assert.Equal(t, CodeDailyLoss, d.Code())

	d = EvaluateDaily(permissive(), PnLSnapshot{DayRealized: 120})
	assert.True(t, d.Allowed)
}
