// Package jobmetrics instruments the scheduled lead sync.
package jobmetrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the sync collectors.
type Metrics struct {
	runs        *prometheus.CounterVec
	duration    prometheus.Histogram
	lastSuccess prometheus.Gauge
	now         func() time.Time
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// NewMetrics registers the collectors on registerer, or once on the default
// registerer when it is nil.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		defaultOnce.Do(func() {
			defaultMetrics = buildMetrics(prometheus.DefaultRegisterer)
		})
		return defaultMetrics
	}
	return buildMetrics(registerer)
}

// Run instruments one execution of the sync.
type Run struct {
	metrics *Metrics
	reason  string
	start   time.Time
}

// Start begins a run. reason is the task trigger ("cron", "startup").
func (m *Metrics) Start(reason string) *Run {
	if reason == "" {
		reason = "unknown"
	}
	return &Run{metrics: m, reason: reason, start: time.Now()}
}

// Finish records the outcome and returns err unchanged.
func (r *Run) Finish(err error) error {
	if r == nil || r.metrics == nil {
		return err
	}
	m := r.metrics
	status := "success"
	if err != nil {
		status = "failure"
	} else {
		m.lastSuccess.Set(float64(m.now().Unix()))
	}
	m.runs.WithLabelValues(r.reason, status).Inc()
	m.duration.Observe(time.Since(r.start).Seconds())
	return err
}

func buildMetrics(registerer prometheus.Registerer) *Metrics {
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "leadboard_sync_runs_total",
		Help: "Scheduled lead sync runs by trigger and status.",
	}, []string{"reason", "status"})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "leadboard_sync_duration_seconds",
		Help:    "Duration of scheduled lead sync runs.",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	})
	lastSuccess := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "leadboard_sync_last_success_timestamp_seconds",
		Help: "Unix time of the last successful lead sync.",
	})
	registerer.MustRegister(runs, duration, lastSuccess)
	return &Metrics{runs: runs, duration: duration, lastSuccess: lastSuccess, now: time.Now}
}
