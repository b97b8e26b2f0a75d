// Package metrics holds the Prometheus collectors for the API on a private
// registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	SourceJSON   = "json"
	SourceUpload = "upload"

	ReasonEventDelete = "event_delete"
	ReasonReplaced    = "replaced"
	ReasonSweep       = "sweep"
)

// Metrics is safe for concurrent use. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	eventsCreated        *prometheus.CounterVec
	registrationsCreated prometheus.Counter
	gpxParseFailures     prometheus.Counter
	routeFilesDeleted    *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
	m.httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Time taken for HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
	m.eventsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_created_total",
			Help: "Events created, by how the route was supplied",
		},
		[]string{"source"},
	)
	m.registrationsCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "registrations_created_total",
		Help: "Registrations stored with a start number",
	})
	m.gpxParseFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gpx_parse_failures_total",
		Help: "Uploaded route files that could not be parsed and were stored with zero statistics",
	})
	m.routeFilesDeleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "route_files_deleted_total",
			Help: "Route files removed from object storage",
		},
		[]string{"reason"},
	)

	m.registry.MustRegister(
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.eventsCreated,
		m.registrationsCreated,
		m.gpxParseFailures,
		m.routeFilesDeleted,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveRequest(method, path string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method, path).Observe(elapsed.Seconds())
}

func (m *Metrics) EventCreated(source string) {
	if m == nil {
		return
	}
	m.eventsCreated.WithLabelValues(source).Inc()
}

func (m *Metrics) RegistrationCreated() {
	if m == nil {
		return
	}
	m.registrationsCreated.Inc()
}

func (m *Metrics) GPXParseFailed() {
	if m == nil {
		return
	}
	m.gpxParseFailures.Inc()
}

func (m *Metrics) RouteFileDeleted(reason string) {
	if m == nil {
		return
	}
	m.routeFilesDeleted.WithLabelValues(reason).Inc()
}
