package service

import (
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService owns a private Prometheus registry with HTTP and catalog
// domain collectors.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	conflictsTotal  *prometheus.CounterVec
	bulkOpsTotal    *prometheus.CounterVec
	exportsTotal    *prometheus.CounterVec
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
}

// NewMetricsService registers the core collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	conflictsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_conflicts_total",
		Help: "Uniqueness conflicts rejected, by kind",
	}, []string{"kind"})

	bulkOpsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bulk_operations_total",
		Help: "Bulk operations processed, by entity and action",
	}, []string{"entity", "action"})

	exportsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "roster_exports_total",
		Help: "Roster exports rendered, by format",
	}, []string{"format"})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stats_cache_hits_total",
		Help: "Filter statistics cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stats_cache_misses_total",
		Help: "Filter statistics cache misses",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, conflictsTotal, bulkOpsTotal, exportsTotal, cacheHits, cacheMisses, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		conflictsTotal:  conflictsTotal,
		bulkOpsTotal:    bulkOpsTotal,
		exportsTotal:    exportsTotal,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
	}
}

// Handler exposes the Prometheus scrape endpoint.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records one request.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordConflict counts a rejected uniqueness conflict.
func (m *MetricsService) RecordConflict(kind string) {
	if m == nil {
		return
	}
	m.conflictsTotal.WithLabelValues(kind).Inc()
}

// RecordBulkOperation counts a processed bulk operation.
func (m *MetricsService) RecordBulkOperation(entity, action string) {
	if m == nil {
		return
	}
	m.bulkOpsTotal.WithLabelValues(entity, action).Inc()
}

// RecordExport counts a rendered roster export.
func (m *MetricsService) RecordExport(format string) {
	if m == nil {
		return
	}
	m.exportsTotal.WithLabelValues(format).Inc()
}

// RecordCacheLookup counts a stats cache hit or miss.
func (m *MetricsService) RecordCacheLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}
