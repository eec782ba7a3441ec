package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aluiziolira/go-scrape-listings/cache"
)

// Metrics bundles Prometheus collectors for the scraper. It also observes the
// cache store and the browser manager.
type Metrics struct {
	Registry           *prometheus.Registry
	RequestsTotal      *prometheus.CounterVec
	RequestDuration    *prometheus.HistogramVec
	RecordsTotal       prometheus.Counter
	RetriesTotal       prometheus.Counter
	ErrorsTotal        *prometheus.CounterVec
	CacheLookupsTotal  *prometheus.CounterVec
	BrowserLaunches    *prometheus.CounterVec
	BrowserDisconnects prometheus.Counter
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listings_requests_total",
			Help: "Total navigations and in-page requests issued by the scraper.",
		},
		[]string{"phase"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "listings_request_duration_seconds",
			Help:    "Latency of scraper navigations and in-page requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"phase"},
	)
	records := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "listings_records_normalized_total",
			Help: "Total number of listing records normalized.",
		},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "listings_retries_total",
			Help: "Total number of retry attempts scheduled.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listings_errors_total",
			Help: "Total number of scraper errors by type.",
		},
		[]string{"error_type"},
	)
	cacheLookups := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listings_cache_lookups_total",
			Help: "Cache lookups by namespace and result.",
		},
		[]string{"namespace", "result"},
	)
	launches := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listings_browser_launches_total",
			Help: "Browser launches by outcome.",
		},
		[]string{"outcome"},
	)
	disconnects := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "listings_browser_disconnects_total",
			Help: "Browser sessions lost after launch.",
		},
	)

	registry.MustRegister(requests, requestDuration, records, retries, errorsTotal, cacheLookups, launches, disconnects)

	return &Metrics{
		Registry:           registry,
		RequestsTotal:      requests,
		RequestDuration:    requestDuration,
		RecordsTotal:       records,
		RetriesTotal:       retries,
		ErrorsTotal:        errorsTotal,
		CacheLookupsTotal:  cacheLookups,
		BrowserLaunches:    launches,
		BrowserDisconnects: disconnects,
	}
}

// IncRequest increments the requests total counter.
func (m *Metrics) IncRequest(phase string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(phase).Inc()
}

// ObserveDuration records a request duration.
func (m *Metrics) ObserveDuration(phase string, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.WithLabelValues(phase).Observe(d.Seconds())
}

// AddRecords increments the normalized records counter.
func (m *Metrics) AddRecords(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.RecordsTotal.Add(float64(n))
}

// IncRetries increments the retries counter.
func (m *Metrics) IncRetries() {
	if m == nil {
		return
	}
	m.RetriesTotal.Inc()
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

// ObserveCacheLookup implements cache.Observer.
func (m *Metrics) ObserveCacheLookup(ns cache.Namespace, result string) {
	if m == nil {
		return
	}
	m.CacheLookupsTotal.WithLabelValues(string(ns), result).Inc()
}

// ObserveLaunch implements browser.Observer.
func (m *Metrics) ObserveLaunch(err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.BrowserLaunches.WithLabelValues(outcome).Inc()
}

// ObserveDisconnect implements browser.Observer.
func (m *Metrics) ObserveDisconnect() {
	if m == nil {
		return
	}
	m.BrowserDisconnects.Inc()
}
