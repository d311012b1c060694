// Package metrics provides Prometheus metrics for hl7gest.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the service. Every method is a
// no-op on a nil *Metrics, so components can run without instrumentation.
type Metrics struct {
	registry *prometheus.Registry

	// Parsing
	MessagesParsedTotal *prometheus.CounterVec
	ParseDuration       prometheus.Histogram
	MessageBytes        prometheus.Histogram

	// Queries
	QueriesTotal *prometheus.CounterVec

	// HTTP
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Batch jobs
	JobsTotal   *prometheus.CounterVec
	JobsRunning prometheus.Gauge
}

// New creates the metrics on a private registry that also carries the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		MessagesParsedTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hl7gest_messages_parsed_total",
				Help: "Total number of messages parsed",
			},
			[]string{"status"},
		),
		ParseDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "hl7gest_parse_duration_seconds",
				Help:    "Duration of message parses in seconds",
				Buckets: []float64{.00005, .0001, .00025, .0005, .001, .0025, .005, .01, .025, .05, .1},
			},
		),
		MessageBytes: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "hl7gest_message_bytes",
				Help:    "Size of parsed messages in bytes",
				Buckets: prometheus.ExponentialBuckets(256, 4, 8),
			},
		),
		QueriesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hl7gest_queries_total",
				Help: "Total number of path queries by result",
			},
			[]string{"result"},
		),
		HTTPRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hl7gest_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "status"},
		),
		HTTPRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hl7gest_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		JobsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hl7gest_jobs_total",
				Help: "Total number of batch jobs by final status",
			},
			[]string{"status"},
		),
		JobsRunning: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "hl7gest_jobs_running",
				Help: "Number of batch jobs currently being processed",
			},
		),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordParse records one parse attempt.
func (m *Metrics) RecordParse(size int, duration time.Duration, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.MessagesParsedTotal.WithLabelValues("error").Inc()
		return
	}
	m.MessagesParsedTotal.WithLabelValues("ok").Inc()
	m.ParseDuration.Observe(duration.Seconds())
	m.MessageBytes.Observe(float64(size))
}

// RecordQuery records a query outcome: "found", "missing" or "invalid".
func (m *Metrics) RecordQuery(result string) {
	if m == nil {
		return
	}
	m.QueriesTotal.WithLabelValues(result).Inc()
}

// RecordHTTPRequest records a served request.
func (m *Metrics) RecordHTTPRequest(method, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// JobStarted marks a batch job as running.
func (m *Metrics) JobStarted() {
	if m == nil {
		return
	}
	m.JobsRunning.Inc()
}

// JobFinished records the final status of a batch job.
func (m *Metrics) JobFinished(status string) {
	if m == nil {
		return
	}
	m.JobsRunning.Dec()
	m.JobsTotal.WithLabelValues(status).Inc()
}
