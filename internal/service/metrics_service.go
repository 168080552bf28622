package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the
// progression engine: HTTP traffic plus the domain counters the registrar
// dashboards watch.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec

	enrollmentAttempts *prometheus.CounterVec
	autoEnrollRuns     *prometheus.CounterVec
	gradeTransitions   *prometheus.CounterVec
	incExpirations     prometheus.Counter
	archiveRuns        *prometheus.CounterVec
	cacheHits          prometheus.Counter
	cacheMisses        prometheus.Counter
}

// NewMetricsService registers core Prometheus collectors.
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

	enrollmentAttempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "enrollment_attempts_total",
		Help: "Enrollment attempts by outcome",
	}, []string{"outcome"})

	autoEnrollRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "auto_enroll_runs_total",
		Help: "Auto-enrollment runs by outcome",
	}, []string{"outcome"})

	gradeTransitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "grade_transitions_total",
		Help: "Grade postings by resulting enrollment status",
	}, []string{"status"})

	incExpirations := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "inc_expirations_total",
		Help: "Incomplete grades expired by the sweep",
	})

	archiveRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "archive_runs_total",
		Help: "Archival runs by kind",
	}, []string{"kind"})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, enrollmentAttempts, autoEnrollRuns,
		gradeTransitions, incExpirations, archiveRuns, cacheHits, cacheMisses, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:           registry,
		handler:            handler,
		requestDuration:    requestDuration,
		requestTotal:       requestTotal,
		enrollmentAttempts: enrollmentAttempts,
		autoEnrollRuns:     autoEnrollRuns,
		gradeTransitions:   gradeTransitions,
		incExpirations:     incExpirations,
		archiveRuns:        archiveRuns,
		cacheHits:          cacheHits,
		cacheMisses:        cacheMisses,
	}
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

// RecordEnrollmentAttempt counts one enrollment attempt. outcome is
// "success" or the failure cause code.
func (m *MetricsService) RecordEnrollmentAttempt(outcome string) {
	if m == nil {
		return
	}
	m.enrollmentAttempts.WithLabelValues(outcome).Inc()
}

// RecordAutoEnrollRun counts one auto-enrollment run by outcome.
func (m *MetricsService) RecordAutoEnrollRun(outcome string) {
	if m == nil {
		return
	}
	m.autoEnrollRuns.WithLabelValues(outcome).Inc()
}

// RecordGradeTransition counts one grade posting by resulting status.
func (m *MetricsService) RecordGradeTransition(status string) {
	if m == nil {
		return
	}
	m.gradeTransitions.WithLabelValues(status).Inc()
}

// RecordIncExpirations adds the number of incompletes expired by a sweep.
func (m *MetricsService) RecordIncExpirations(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.incExpirations.Add(float64(count))
}

// RecordArchiveRun counts one archival run. kind is "term_closure" or
// "graduation".
func (m *MetricsService) RecordArchiveRun(kind string) {
	if m == nil {
		return
	}
	m.archiveRuns.WithLabelValues(kind).Inc()
}

// RecordCacheOperation counts a cache lookup.
func (m *MetricsService) RecordCacheOperation(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}
