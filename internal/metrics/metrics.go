package metrics

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all watcher metrics
type Metrics struct {
	// Cycle counters
	Cycles         atomic.Uint64
	FramesCaptured atomic.Uint64
	FramesSkipped  atomic.Uint64 // reused previous result (similarity gate)
	Detections     atomic.Uint64 // raw match results before dedup
	Evictions      atomic.Uint64

	// Error counters
	CaptureErrors atomic.Uint64
	FailedBatches atomic.Uint64

	// Current state
	ActiveItems  atomic.Uint64
	CycleLatency atomic.Uint64 // last cycle, microseconds

	cycleDuration prometheus.Histogram
	registry      *prometheus.Registry
}

// New creates a new Metrics instance with Prometheus collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "itemwatch_cycle_duration_seconds",
			Help:    "Time from capture to display for one cycle",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
	}

	m.registerPrometheusMetrics()

	return m
}

func (m *Metrics) counter(name, help string, v *atomic.Uint64) {
	m.registry.MustRegister(prometheus.NewCounterFunc(
		prometheus.CounterOpts{Name: name, Help: help},
		func() float64 { return float64(v.Load()) },
	))
}

// registerPrometheusMetrics registers all metrics with Prometheus
func (m *Metrics) registerPrometheusMetrics() {
	m.counter("itemwatch_cycles_total", "Total detection cycles completed", &m.Cycles)
	m.counter("itemwatch_frames_captured_total", "Total frames captured", &m.FramesCaptured)
	m.counter("itemwatch_frames_skipped_total", "Frames whose matching was skipped as unchanged", &m.FramesSkipped)
	m.counter("itemwatch_detections_total", "Total template matches above threshold", &m.Detections)
	m.counter("itemwatch_evictions_total", "Total ids removed after their TTL", &m.Evictions)
	m.counter("itemwatch_capture_errors_total", "Total frame source errors", &m.CaptureErrors)
	m.counter("itemwatch_failed_batches_total", "Total worker batches that failed", &m.FailedBatches)

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "itemwatch_active_items",
			Help: "Ids currently displayed",
		},
		func() float64 { return float64(m.ActiveItems.Load()) },
	))

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "itemwatch_last_cycle_seconds",
			Help: "Duration of the most recent cycle",
		},
		func() float64 { return float64(m.CycleLatency.Load()) / 1e6 },
	))

	m.registry.MustRegister(m.cycleDuration)
}

// ObserveCycle records one cycle's duration.
func (m *Metrics) ObserveCycle(d time.Duration) {
	m.Cycles.Add(1)
	m.CycleLatency.Store(uint64(d.Microseconds()))
	m.cycleDuration.Observe(d.Seconds())
}

// Handler returns an HTTP handler for the /metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
