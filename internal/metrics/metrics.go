// Package metrics exposes Prometheus counters for the trading hotpath.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TicksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "traiding_ticks_total", Help: "Market trade ticks ingested"},
		[]string{"symbol"},
	)
	CyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "traiding_cycles_total", Help: "Decision cycles executed"},
	)
	OrdersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "traiding_orders_total", Help: "Orders submitted to the exchange"},
		[]string{"symbol", "side", "type"},
	)
	OrderFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "traiding_order_failures_total", Help: "Order submissions rejected or failed"},
		[]string{"symbol", "stage"},
	)
	RiskDenialsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "traiding_risk_denials_total", Help: "Decision cycles denied by the risk gate"},
	)
	TrailingUpgradesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "traiding_trailing_upgrades_total", Help: "Fixed stop to trailing stop upgrades"},
	)
	EventsDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "traiding_events_dropped_total", Help: "Events dropped because the loop inbox was full"},
		[]string{"type"},
	)
)

func init() {
	prometheus.MustRegister(
		TicksTotal, CyclesTotal, OrdersTotal, OrderFailuresTotal,
		RiskDenialsTotal, TrailingUpgradesTotal, EventsDroppedTotal,
	)
}

// Serve starts the /metrics endpoint on addr and returns the server.
func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
