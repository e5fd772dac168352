package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics holds the collectors of one process. Each instance owns its
// registry so tests can create as many as they need. A nil *Metrics is a
// valid no-op recorder.
type Metrics struct {
	registry *prometheus.Registry

	requestCount    *prometheus.CounterVec
	errorCount      *prometheus.CounterVec
	cacheFetches    *prometheus.CounterVec
	mutations       *prometheus.CounterVec
	backendDuration *prometheus.HistogramVec
	breakerState    prometheus.Gauge
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "talent_http_requests_total",
			Help: "HTTP requests served by path, method and status",
		}, []string{"path", "method", "status"}),
		errorCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "talent_http_errors_total",
			Help: "HTTP errors by path, method and error code",
		}, []string{"path", "method", "code"}),
		cacheFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "talent_cache_fetch_total",
			Help: "Resource cache fetches by resource, kind and outcome",
		}, []string{"resource", "kind", "outcome"}),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "talent_mutation_total",
			Help: "Mutations by operation and outcome",
		}, []string{"operation", "outcome"}),
		backendDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "talent_backend_request_duration_seconds",
			Help:    "Backend request latency by method and status",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"method", "status"}),
		breakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "talent_backend_breaker_state",
			Help: "Backend circuit breaker state (0=closed, 1=half-open, 2=open)",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		m.requestCount,
		m.errorCount,
		m.cacheFetches,
		m.mutations,
		m.backendDuration,
		m.breakerState,
	)
	return m
}

// Registry exposes the registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return prometheus.NewRegistry()
	}
	return m.registry
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, _ time.Duration) {
	if m == nil {
		return
	}
	m.requestCount.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.errorCount.WithLabelValues(path, method, code).Inc()
}

// RecordCacheFetch counts a resolved cache fetch.
func (m *Metrics) RecordCacheFetch(resource, kind, outcome string) {
	if m == nil {
		return
	}
	m.cacheFetches.WithLabelValues(resource, kind, outcome).Inc()
}

// RecordMutation counts a resolved mutation.
func (m *Metrics) RecordMutation(operation, outcome string) {
	if m == nil {
		return
	}
	m.mutations.WithLabelValues(operation, outcome).Inc()
}

// ObserveBackend records the latency of a backend round trip. Status 0 means
// the request never produced a response.
func (m *Metrics) ObserveBackend(method string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.backendDuration.WithLabelValues(method, strconv.Itoa(status)).Observe(d.Seconds())
}

// SetBreakerState publishes the circuit breaker state.
func (m *Metrics) SetBreakerState(state float64) {
	if m == nil {
		return
	}
	m.breakerState.Set(state)
}
