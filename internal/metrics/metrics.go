// Package metrics exposes Prometheus metrics for the trading engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aitrader_cycles_total",
			Help: "Total number of completed trading cycles by outcome",
		},
		[]string{"outcome"},
	)

	cycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "aitrader_cycle_duration_seconds",
			Help:    "Trading cycle duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
	)

	ordersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aitrader_orders_total",
			Help: "Total number of orders submitted to the broker",
		},
		[]string{"symbol", "side", "status"},
	)

	realizedPnL = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "aitrader_realized_pnl_total",
			Help: "Cumulative realized profit and loss",
		},
	)

	equityGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "aitrader_equity",
			Help: "Current portfolio equity (cash plus marked positions)",
		},
	)

	breakerActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "aitrader_breaker_active",
			Help: "Whether a circuit breaker is active (1) or armed (0)",
		},
		[]string{"breaker"},
	)
)

// RecordCycle counts one finished cycle with its outcome and duration.
func RecordCycle(outcome string, elapsed time.Duration) {
	cyclesTotal.WithLabelValues(outcome).Inc()
	cycleDuration.Observe(elapsed.Seconds())
}

// RecordOrder counts one order submission attempt.
func RecordOrder(symbol, side, status string) {
	ordersTotal.WithLabelValues(symbol, side, status).Inc()
}

// AddRealizedPnL accumulates realized P&L from a closing trade.
// Prometheus counters cannot go down, so losses are recorded as zero deltas
// here and remain visible through the equity gauge.
func AddRealizedPnL(pnl float64) {
	if pnl > 0 {
		realizedPnL.Add(pnl)
	}
}

// SetEquity publishes the current portfolio equity.
func SetEquity(equity float64) {
	equityGauge.Set(equity)
}

// SetBreaker publishes one breaker's state.
func SetBreaker(name string, active bool) {
	v := 0.0
	if active {
		v = 1
	}
	breakerActive.WithLabelValues(name).Set(v)
}
