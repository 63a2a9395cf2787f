package collector

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	updateCycles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dcm_update_cycles_total",
			Help: "Total number of completed update cycles",
		},
		[]string{"mode"},
	)

	updateFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dcm_update_failures_total",
		Help: "Total number of update cycles that could not enumerate containers",
	})

	cycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dcm_update_cycle_duration_seconds",
		Help:    "Wall-clock duration of one update cycle",
		Buckets: prometheus.DefBuckets,
	})

	containersTracked = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dcm_containers_tracked",
		Help: "Number of containers in the current snapshot",
	})

	emitErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dcm_emit_errors_total",
		Help: "Total number of failed snapshot pushes to the stream sink",
	})
)
