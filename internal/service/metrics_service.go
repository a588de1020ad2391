package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService owns the Prometheus registry for HTTP, cache, storage and
// planner instrumentation.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHitRatio   prometheus.Gauge
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	dbQueryDuration *prometheus.HistogramVec

	plansGenerated     *prometheus.CounterVec
	enrichmentFallback *prometheus.CounterVec
	enrichmentDuration prometheus.Observer
	planSessions       prometheus.Observer
	normalizerIssues   *prometheus.CounterVec
	historyWrites      *prometheus.CounterVec

	cacheHitCount  uint64
	cacheMissCount uint64
}

// NewMetricsService registers collectors on a private registry.
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

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache lookups",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cache_hit_ratio",
		Help: "Ratio of cache hits to total cache lookups",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	dbQueryDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "db_query_duration_seconds",
		Help:    "Duration of database queries",
		Buckets: prometheus.DefBuckets,
	}, []string{"query"})

	plansGenerated := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "study_plan_generated_total",
		Help: "Weekly plans returned to callers by source",
	}, []string{"source"})

	enrichmentFallback := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "study_plan_enrichment_fallback_total",
		Help: "Enrichment attempts that fell back to the deterministic plan",
	}, []string{"reason"})

	enrichmentDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "study_plan_enrichment_duration_seconds",
		Help:    "Wall time of enrichment attempts",
		Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30},
	})

	planSessions := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "study_plan_sessions",
		Help:    "Number of study sessions in generated plans",
		Buckets: prometheus.LinearBuckets(0, 4, 10),
	})

	normalizerIssues := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "study_plan_input_issues_total",
		Help: "Busy periods excluded during normalisation",
	}, []string{"period"})

	historyWrites := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "study_plan_history_writes_total",
		Help: "Asynchronous plan history writes by outcome",
	}, []string{"outcome"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(
		requestDuration, requestTotal,
		cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses,
		dbQueryDuration,
		plansGenerated, enrichmentFallback, enrichmentDuration, planSessions, normalizerIssues, historyWrites,
		goroutines,
	)

	return &MetricsService{
		registry:           registry,
		handler:            promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:    requestDuration,
		requestTotal:       requestTotal,
		cacheLatency:       cacheLatency,
		cacheWrite:         cacheWrite,
		cacheHitRatio:      cacheHitRatio,
		cacheHits:          cacheHits,
		cacheMisses:        cacheMisses,
		dbQueryDuration:    dbQueryDuration,
		plansGenerated:     plansGenerated,
		enrichmentFallback: enrichmentFallback,
		enrichmentDuration: enrichmentDuration,
		planSessions:       planSessions,
		normalizerIssues:   normalizerIssues,
		historyWrites:      historyWrites,
	}
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

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	total := hits + atomic.LoadUint64(&m.cacheMissCount)
	if total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// ObserveDBQuery records database query timing.
func (m *MetricsService) ObserveDBQuery(label string, duration time.Duration) {
	if m == nil {
		return
	}
	m.dbQueryDuration.WithLabelValues(label).Observe(duration.Seconds())
}

// RecordPlanGenerated counts a delivered plan and its session volume.
func (m *MetricsService) RecordPlanGenerated(source string, sessions int) {
	if m == nil {
		return
	}
	m.plansGenerated.WithLabelValues(source).Inc()
	m.planSessions.Observe(float64(sessions))
}

// RecordEnrichment observes an enrichment attempt. reason is empty when the
// enriched plan was accepted.
func (m *MetricsService) RecordEnrichment(duration time.Duration, reason string) {
	if m == nil {
		return
	}
	m.enrichmentDuration.Observe(duration.Seconds())
	if reason != "" {
		m.enrichmentFallback.WithLabelValues(reason).Inc()
	}
}

// RecordInputIssue counts a busy period excluded by the normaliser.
func (m *MetricsService) RecordInputIssue(period string) {
	if m == nil {
		return
	}
	m.normalizerIssues.WithLabelValues(period).Inc()
}

// RecordHistoryWrite counts a plan history write outcome.
func (m *MetricsService) RecordHistoryWrite(outcome string) {
	if m == nil {
		return
	}
	m.historyWrites.WithLabelValues(outcome).Inc()
}
