package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusRecorder exports record counters through a Prometheus registry.
type PrometheusRecorder struct {
	registry     *prometheus.Registry
	records      *prometheus.CounterVec
	conflicts    *prometheus.CounterVec
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// NewPrometheus registers the record collectors, plus the Go and process
// collectors, on a fresh registry.
func NewPrometheus() *PrometheusRecorder {
	reg := prometheus.NewRegistry()

	p := &PrometheusRecorder{
		registry: reg,
		records: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orgdir_records_total",
				Help: "Records written, by resource and operation.",
			},
			[]string{"resource", "op"},
		),
		conflicts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orgdir_conflicts_total",
				Help: "Uniqueness conflicts rejected, by resource.",
			},
			[]string{"resource"},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests.",
			},
			[]string{"method", "route", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latencies in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
	}

	reg.MustRegister(
		p.records,
		p.conflicts,
		p.httpRequests,
		p.httpDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return p
}

// Handler serves the registry in Prometheus exposition format.
func (p *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// IncRecordCreated increments the created counter for resource.
func (p *PrometheusRecorder) IncRecordCreated(resource string) {
	p.records.WithLabelValues(resource, "create").Inc()
}

// IncRecordUpdated increments the updated counter for resource.
func (p *PrometheusRecorder) IncRecordUpdated(resource string) {
	p.records.WithLabelValues(resource, "update").Inc()
}

// IncRecordDeleted increments the deleted counter for resource.
func (p *PrometheusRecorder) IncRecordDeleted(resource string) {
	p.records.WithLabelValues(resource, "delete").Inc()
}

// IncConflict increments the conflict counter for resource.
func (p *PrometheusRecorder) IncConflict(resource string) {
	p.conflicts.WithLabelValues(resource).Inc()
}

// ObserveRequest records one served HTTP request. route is the router pattern,
// not the raw path, to keep label cardinality bounded.
func (p *PrometheusRecorder) ObserveRequest(method, route string, status int, duration time.Duration) {
	code := strconv.Itoa(status)
	p.httpRequests.WithLabelValues(method, route, code).Inc()
	p.httpDuration.WithLabelValues(method, route, code).Observe(duration.Seconds())
}
