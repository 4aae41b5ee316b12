package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the server's Prometheus collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	mutations       *prometheus.CounterVec
	importRows      *prometheus.CounterVec
	records         prometheus.GaugeFunc
	rateLimitHits   prometheus.CounterFunc
}

// NewMetrics registers the collectors. recordCount and rateLimitHits are
// sampled on scrape; either may be nil.
func NewMetrics(recordCount func() float64, rateLimitHits func() float64) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "evcharge",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"route", "method", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "evcharge",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "evcharge",
			Name:      "record_mutations_total",
			Help:      "Record mutations by operation and outcome.",
		}, []string{"operation", "outcome"}),
		importRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "evcharge",
			Name:      "import_rows_total",
			Help:      "Imported CSV rows by result.",
		}, []string{"result"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests, m.requestDuration, m.mutations, m.importRows,
	)

	if recordCount != nil {
		m.records = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "evcharge",
			Name:      "records",
			Help:      "Charging records currently in the session.",
		}, recordCount)
		m.registry.MustRegister(m.records)
	}
	if rateLimitHits != nil {
		m.rateLimitHits = prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "evcharge",
			Name:      "rate_limit_hits_total",
			Help:      "Requests rejected by the rate limiter.",
		}, rateLimitHits)
		m.registry.MustRegister(m.rateLimitHits)
	}
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveRequest records one finished request. The route is the matched
// mux pattern so path parameters do not explode label cardinality.
func (m *Metrics) ObserveRequest(r *http.Request, status int, elapsed time.Duration) {
	route := r.Pattern
	if route == "" {
		route = "unmatched"
	}
	m.requests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(route, r.Method).Observe(elapsed.Seconds())
}

// ObserveMutation counts a mutation attempt.
func (m *Metrics) ObserveMutation(operation string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.mutations.WithLabelValues(operation, outcome).Inc()
}

// ObserveImport counts imported and rejected rows.
func (m *Metrics) ObserveImport(imported, rejected int) {
	m.importRows.WithLabelValues("imported").Add(float64(imported))
	m.importRows.WithLabelValues("rejected").Add(float64(rejected))
}
