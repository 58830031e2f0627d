// Package metrics exposes the bot's counters and gauges as Prometheus
// collectors, scraped via the dashboard server's /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersPlaced = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "maker_orders_placed_total",
		Help: "Total orders placed by the quoting engine.",
	}, []string{"symbol"})

	OrdersCancelled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "maker_orders_cancelled_total",
		Help: "Total orders cancelled.",
	}, []string{"symbol"})

	Rebalances = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "maker_rebalances_total",
		Help: "Total cross-interleaved ladder rebalances executed.",
	}, []string{"symbol"})

	Fills = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "maker_fills_total",
		Help: "Total fills observed during reconciliation.",
	}, []string{"symbol"})

	Liquidations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "maker_liquidations_total",
		Help: "Total reducing market orders issued to flatten a fill.",
	}, []string{"symbol"})

	KillAllTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "maker_kill_all_total",
		Help: "Total KILL_ALL activations, labeled by reason.",
	}, []string{"symbol", "reason"})

	SafetyGate = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "maker_safety_gate",
		Help: "Current safety gate state (0=OK, 1=PAUSE_NEW, 2=KILL_ALL).",
	}, []string{"symbol"})

	MarkPrice = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "maker_mark_price",
		Help: "Latest mark price observed per symbol.",
	}, []string{"symbol"})

	DashboardClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "maker_dashboard_clients",
		Help: "Currently connected dashboard websocket clients.",
	})
)
