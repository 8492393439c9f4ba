package metrics

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the pipeline counters
type Metrics struct {
	// Detection loop
	FramesRead         atomic.Uint64
	FramesMissed       atomic.Uint64
	FramesDiscarded    atomic.Uint64 // processed after the session went idle
	InferenceErrors    atomic.Uint64 // timeouts and transport failures
	ContractViolations atomic.Uint64 // malformed detector payloads
	InferenceLatencyMs atomic.Uint64

	// Counting
	NewlySeen       atomic.Uint64
	SessionsStarted atomic.Uint64
	Reconciliations atomic.Uint64
	ItemsRejected   atomic.Uint64
	PersistFailures atomic.Uint64

	// Display
	ViewsRendered atomic.Uint64
	ViewClients   atomic.Int64
	ViewsDropped  atomic.Uint64

	counting atomic.Bool

	registry *prometheus.Registry
}

// New creates a Metrics instance with its own registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
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

func (m *Metrics) registerPrometheusMetrics() {
	m.counter("counter_frames_read_total", "Frames acquired from the camera", &m.FramesRead)
	m.counter("counter_frames_missed_total", "Frame acquisitions that returned nothing", &m.FramesMissed)
	m.counter("counter_frames_discarded_total", "Frames whose detections arrived after the session stopped", &m.FramesDiscarded)
	m.counter("counter_inference_errors_total", "Inference timeouts and transport failures", &m.InferenceErrors)
	m.counter("counter_contract_violations_total", "Malformed detector responses", &m.ContractViolations)
	m.counter("counter_newly_seen_total", "Tracked instances counted as newly seen", &m.NewlySeen)
	m.counter("counter_sessions_started_total", "Counting sessions started", &m.SessionsStarted)
	m.counter("counter_reconciliations_total", "Sessions reconciled against the ledger", &m.Reconciliations)
	m.counter("counter_items_rejected_total", "Items rejected at check-out for insufficient stock", &m.ItemsRejected)
	m.counter("counter_persist_failures_total", "Ledger saves that failed", &m.PersistFailures)
	m.counter("counter_views_rendered_total", "Display ticks rendered", &m.ViewsRendered)
	m.counter("counter_views_dropped_total", "Views skipped for slow display clients", &m.ViewsDropped)

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "counter_inference_latency_ms",
			Help: "Latency of the last inference call in milliseconds",
		},
		func() float64 { return float64(m.InferenceLatencyMs.Load()) },
	))

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "counter_view_clients",
			Help: "Connected display clients",
		},
		func() float64 { return float64(m.ViewClients.Load()) },
	))

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "counter_session_active",
			Help: "Counting session active (0=idle, 1=counting)",
		},
		func() float64 {
			if m.counting.Load() {
				return 1
			}
			return 0
		},
	))
}

// UpdateInferenceLatency records how long the last inference call took
func (m *Metrics) UpdateInferenceLatency(d time.Duration) {
	m.InferenceLatencyMs.Store(uint64(d.Milliseconds()))
}

// SetCounting records whether a session is active
func (m *Metrics) SetCounting(active bool) {
	m.counting.Store(active)
}

// Handler returns the Prometheus HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
