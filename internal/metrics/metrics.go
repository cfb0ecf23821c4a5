package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	SessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "mapstream_sessions_active",
			Help: "Number of connected websocket sessions",
		},
	)

	PollersActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "mapstream_pollers_active",
			Help: "Number of running data source pollers across all sessions",
		},
	)

	PollCyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mapstream_poll_cycles_total",
			Help: "Total completed poll cycles",
		},
	)

	PollFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mapstream_poll_failures_total",
			Help: "Total poll cycles that ended in a fetch or decode failure",
		},
	)

	BroadcastsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mapstream_broadcasts_total",
			Help: "Total catalog-change broadcasts by event name",
		},
		[]string{"event"},
	)
)

// Register adds all collectors to the given registry.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		SessionsActive,
		PollersActive,
		PollCyclesTotal,
		PollFailuresTotal,
		BroadcastsTotal,
	)
}
