package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService owns the Prometheus registry for the API and the generator.
type MetricsService struct {
	registry           *prometheus.Registry
	handler            http.Handler
	requestDuration    *prometheus.HistogramVec
	requestTotal       *prometheus.CounterVec
	cacheLatency       prometheus.Histogram
	cacheWrite         prometheus.Histogram
	cacheLookups       *prometheus.CounterVec
	dbQueryDuration    *prometheus.HistogramVec
	generationDuration *prometheus.HistogramVec
	generationStudents prometheus.Histogram
	unplacedStudents   prometheus.Counter
	fallbackPlacements prometheus.Counter
	unseededPairs      prometheus.Counter
	manualMoves        prometheus.Counter
	exportJobs         *prometheus.CounterVec
}

// NewMetricsService registers the collectors on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	m := &MetricsService{
		registry: registry,
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		cacheLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cache_latency_seconds",
			Help:    "Latency for cache lookups",
			Buckets: prometheus.DefBuckets,
		}),
		cacheWrite: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cache_write_seconds",
			Help:    "Latency for cache set operations",
			Buckets: prometheus.DefBuckets,
		}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cache_lookups_total",
			Help: "Cache lookups by result",
		}, []string{"result"}),
		dbQueryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Duration of database operations",
			Buckets: prometheus.DefBuckets,
		}, []string{"query"}),
		generationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "class_builder_generation_duration_seconds",
			Help:    "Time spent partitioning and balancing one roster",
			Buckets: []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"outcome"}),
		generationStudents: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "class_builder_generation_students",
			Help:    "Roster size per generation",
			Buckets: prometheus.ExponentialBuckets(10, 2, 9),
		}),
		unplacedStudents: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "class_builder_unplaced_students_total",
			Help: "Students left without a class because every class was full",
		}),
		fallbackPlacements: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "class_builder_fallback_placements_total",
			Help: "Placements that ignored a separation request",
		}),
		unseededPairs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "class_builder_unseeded_pairs_total",
			Help: "Pair requests that could not be seeded together",
		}),
		manualMoves: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "class_builder_manual_moves_total",
			Help: "Students moved by hand between classes",
		}),
		exportJobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "class_builder_export_jobs_total",
			Help: "Export jobs by format and final status",
		}, []string{"format", "status"}),
	}

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(
		m.requestDuration, m.requestTotal, m.cacheLatency, m.cacheWrite,
		m.cacheLookups, m.dbQueryDuration, m.generationDuration, m.generationStudents, m.unplacedStudents,
		m.fallbackPlacements, m.unseededPairs, m.manualMoves, m.exportJobs, goroutines,
	)
	m.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records a cache lookup.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// ObserveDBQuery records database operation timing.
func (m *MetricsService) ObserveDBQuery(label string, duration time.Duration) {
	if m == nil {
		return
	}
	m.dbQueryDuration.WithLabelValues(label).Observe(duration.Seconds())
}

// GenerationOutcome summarises one generation for instrumentation.
type GenerationOutcome struct {
	Students      int
	Unplaced      int
	Fallbacks     int
	UnseededPairs int
	Degenerate    bool
	Duration      time.Duration
}

// ObserveGeneration records the cost and quality of a generation run.
func (m *MetricsService) ObserveGeneration(o GenerationOutcome) {
	if m == nil {
		return
	}
	outcome := "ok"
	switch {
	case o.Degenerate:
		outcome = "degenerate"
	case o.Unplaced > 0:
		outcome = "partial"
	}
	m.generationDuration.WithLabelValues(outcome).Observe(o.Duration.Seconds())
	m.generationStudents.Observe(float64(o.Students))
	m.unplacedStudents.Add(float64(o.Unplaced))
	m.fallbackPlacements.Add(float64(o.Fallbacks))
	m.unseededPairs.Add(float64(o.UnseededPairs))
}

// RecordMove counts a manual reassignment.
func (m *MetricsService) RecordMove() {
	if m == nil {
		return
	}
	m.manualMoves.Inc()
}

// RecordExport counts an export job reaching a final status.
func (m *MetricsService) RecordExport(format, status string) {
	if m == nil {
		return
	}
	m.exportJobs.WithLabelValues(format, status).Inc()
}
