package server

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics are the server's Prometheus collectors, on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	loads          *prometheus.CounterVec
	recomputes     *prometheus.CounterVec
	recomputeTime  *prometheus.HistogramVec
	activeSessions prometheus.Gauge
}

// NewMetrics registers the lens collectors plus the Go runtime and process
// collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		loads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lens",
			Name:      "table_loads_total",
			Help:      "Tables loaded into dashboard sessions, by variant and outcome.",
		}, []string{"variant", "outcome"}),
		recomputes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lens",
			Name:      "recomputes_total",
			Help:      "Dashboard recomputations, by variant and outcome.",
		}, []string{"variant", "outcome"}),
		recomputeTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "lens",
			Name:      "recompute_duration_seconds",
			Help:      "Time spent filtering and aggregating one dashboard.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		}, []string{"variant"}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "lens",
			Name:      "active_sessions",
			Help:      "Dashboard sessions currently held in memory.",
		}),
	}
	m.registry.MustRegister(
		m.loads,
		m.recomputes,
		m.recomputeTime,
		m.activeSessions,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) observeLoad(variant string, err error) {
	m.loads.WithLabelValues(variant, outcome(err)).Inc()
}

func (m *Metrics) observeRecompute(variant string, start time.Time, err error) {
	m.recomputes.WithLabelValues(variant, outcome(err)).Inc()
	m.recomputeTime.WithLabelValues(variant).Observe(time.Since(start).Seconds())
}

func (m *Metrics) setSessions(n int) {
	m.activeSessions.Set(float64(n))
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
