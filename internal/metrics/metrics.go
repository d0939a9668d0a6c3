// Package metrics provides Prometheus metrics for enrichment runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Outcomes of a source request.
const (
	OutcomeMatch   = "match"
	OutcomeNoMatch = "no_match"
	OutcomeError   = "error"
	OutcomeTimeout = "timeout"
)

// Metrics holds the enrichment collectors. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	sourceRequestsTotal   *prometheus.CounterVec
	sourceRequestDuration *prometheus.HistogramVec
	entriesTotal          *prometheus.CounterVec
}

// NewRegistry returns a private registry with the Go runtime and process
// collectors installed.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// New creates and registers the enrichment metrics.
func New(registry *prometheus.Registry) (*Metrics, error) {
	m := &Metrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) initMetrics() {
	m.sourceRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bibfix_source_requests_total",
			Help: "Total number of metadata source queries",
		},
		[]string{"source", "outcome"}, // outcome: match, no_match, error, timeout
	)

	m.sourceRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "bibfix_source_request_duration_seconds",
			Help: "Time taken by a metadata source query, including retries",
			// 50ms to ~50s; arXiv throttling alone can add several seconds
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 11),
		},
		[]string{"source"},
	)

	m.entriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bibfix_entries_total",
			Help: "Total number of entries processed",
		},
		[]string{"status"}, // status: enriched, unchanged, failed
	)
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Describe implements the Collector interface
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.sourceRequestsTotal.Describe(ch)
	m.sourceRequestDuration.Describe(ch)
	m.entriesTotal.Describe(ch)
}

// Collect implements the Collector interface
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.sourceRequestsTotal.Collect(ch)
	m.sourceRequestDuration.Collect(ch)
	m.entriesTotal.Collect(ch)
}

// RecordSourceRequest records one source query and how long it took.
func (m *Metrics) RecordSourceRequest(source, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.sourceRequestsTotal.WithLabelValues(source, outcome).Inc()
	m.sourceRequestDuration.WithLabelValues(source).Observe(d.Seconds())
}

// RecordEntry records the final status of one entry.
func (m *Metrics) RecordEntry(status string) {
	if m == nil {
		return
	}
	m.entriesTotal.WithLabelValues(status).Inc()
}
