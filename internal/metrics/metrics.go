// Package metrics exposes the service's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	RefreshCycles   prometheus.Counter
	FetchErrors     prometheus.Counter
	StaleDiscards   prometheus.Counter
	PressureScore   prometheus.Gauge
	RefreshDuration prometheus.Histogram
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RefreshCycles: factory.NewCounter(prometheus.CounterOpts{
			Name: "gexboard_refresh_cycles_total",
			Help: "Completed live refresh cycles.",
		}),
		FetchErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "gexboard_fetch_errors_total",
			Help: "Upstream snapshot fetches that failed.",
		}),
		StaleDiscards: factory.NewCounter(prometheus.CounterOpts{
			Name: "gexboard_stale_discards_total",
			Help: "Late snapshot responses discarded after a symbol switch.",
		}),
		PressureScore: factory.NewGauge(prometheus.GaugeOpts{
			Name: "gexboard_pressure_score",
			Help: "Latest pressure score for the active symbol.",
		}),
		RefreshDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "gexboard_refresh_duration_seconds",
			Help:    "Fetch-plus-compute time of one refresh cycle.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
