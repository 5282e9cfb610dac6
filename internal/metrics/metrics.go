// Package metrics instruments the engine with Prometheus counters and
// gauges, grounded on the donor's internal/metrics/nvr_health.go
// (promauto gauge/counter-vec pattern), retargeted from per-channel health
// checks onto this engine's poll/reconcile/alert/tick concerns.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	NVRsEnabled = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "nvrmonitor_nvrs_enabled",
		Help: "Number of NVRs considered for polling on the last tick",
	})

	CamerasOffline = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "nvrmonitor_cameras_offline",
		Help: "Number of cameras with status Offline, sampled when the last hourly summary ran",
	})

	PollsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nvrmonitor_nvr_polls_total",
		Help: "Total NVR polls by outcome",
	}, []string{"result"})

	AlertsSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nvrmonitor_alerts_sent_total",
		Help: "Total alert/recovery lines dispatched by sink and kind",
	}, []string{"sink", "kind"})

	TickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "nvrmonitor_tick_duration_seconds",
		Help:    "Wall-clock duration of one engine tick",
		Buckets: prometheus.DefBuckets,
	})

	TickErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nvrmonitor_tick_errors_total",
		Help: "Total ticks aborted by an unhandled error",
	})
)
