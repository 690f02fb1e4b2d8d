// Package metrics exposes prometheus collectors for the decision cycle.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	CyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "fxmirror_cycles_total", Help: "Decision cycles by outcome"},
		[]string{"outcome"},
	)
	CycleSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fxmirror_cycle_seconds",
			Help:    "Wall time of a decision cycle",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
	)
	OrdersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "fxmirror_orders_total", Help: "Orders sent to the terminal"},
		[]string{"type", "result"},
	)
	DecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "fxmirror_decisions_total", Help: "Per-symbol decisions by reason code"},
		[]string{"code"},
	)
	NetExposure = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "fxmirror_net_exposure_lots", Help: "Client net exposure the cycle traded on"},
		[]string{"symbol"},
	)
	HedgePosition = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "fxmirror_hedge_position_lots", Help: "Terminal net position before the cycle traded"},
		[]string{"symbol"},
	)
	RealizedToday = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "fxmirror_realized_pnl_today", Help: "Realized P/L since local midnight"},
	)
	Equity = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "fxmirror_equity", Help: "Account equity"},
	)
)

func init() {
	prometheus.MustRegister(
		CyclesTotal,
		CycleSeconds,
		OrdersTotal,
		DecisionsTotal,
		NetExposure,
		HedgePosition,
		RealizedToday,
		Equity,
	)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
