package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TicksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "ticks_total", Help: "Count of 24h ticker updates ingested from the stream"},
		[]string{"symbol"},
	)
	CyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "cycles_total", Help: "Decision cycles by outcome"},
		[]string{"strategy", "outcome"},
	)
	SignalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "signals_total", Help: "Trading signals produced"},
		[]string{"symbol", "action"},
	)
	OrdersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "orders_total", Help: "Orders submitted to a venue"},
		[]string{"venue", "symbol", "side", "result"},
	)
	ExternalErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "external_errors_total", Help: "Failed calls to external data sources"},
		[]string{"source"},
	)
	CycleDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "cycle_duration_seconds", Help: "Wall time of one decision cycle", Buckets: prometheus.DefBuckets},
		[]string{"strategy"},
	)
	RunningBots = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "running_bots", Help: "Bots currently scheduled"},
	)
)

// Cycle outcomes.
const (
	OutcomeNoSignal = "no_signal"
	OutcomeSignal   = "signal"
	OutcomeOrdered  = "ordered"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
	// OutcomeCanceled is returned, never counted, for cycles cut short by Stop.
	OutcomeCanceled = "canceled"
)

func init() {
	prometheus.MustRegister(TicksTotal, CyclesTotal, SignalsTotal, OrdersTotal, ExternalErrorsTotal, CycleDuration, RunningBots)
}

func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
