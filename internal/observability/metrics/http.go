package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTPServerMetrics exposes the generic HTTP-server surface (request rate,
// latency, in-flight gauge) plus the query-pipeline's own stage-level
// instrumentation, all registered on a private registry served by Handler.
type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	stageDuration        *prometheus.HistogramVec
	rrfCandidatesTotal    *prometheus.CounterVec
	cacheHitsTotal        *prometheus.CounterVec
	cacheMissesTotal      *prometheus.CounterVec
	backendUnavailable    *prometheus.CounterVec
	emptyDocSetTotal      prometheus.Counter
	routeDecisionsTotal   *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "qa",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "qa",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "qa",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	stageDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "qa",
			Subsystem: "stage",
			Name:      "duration_seconds",
			Help:      "Duration of each query-pipeline stage in seconds.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"service", "stage"},
	)
	rrfCandidatesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "qa",
			Subsystem: "rrf",
			Name:      "candidates_total",
			Help:      "Total candidates fed into reciprocal-rank-fusion, by ranking source.",
		},
		[]string{"service", "ranking"},
	)
	cacheHitsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "qa",
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Total cache hits by cache name.",
		},
		[]string{"service", "cache"},
	)
	cacheMissesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "qa",
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Total cache misses by cache name.",
		},
		[]string{"service", "cache"},
	)
	backendUnavailable := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "qa",
			Subsystem: "backend",
			Name:      "unavailable_total",
			Help:      "Total calls to an external backend that returned a degraded/unavailable error.",
		},
		[]string{"service", "backend"},
	)
	emptyDocSetTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "qa",
			Subsystem: "retrieval",
			Name:      "empty_doc_set_total",
			Help:      "Total queries where finding retrieval produced no candidate documents.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	routeDecisionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "qa",
			Subsystem: "router",
			Name:      "decisions_total",
			Help:      "Total routing decisions by resolved route.",
		},
		[]string{"service", "route"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		stageDuration,
		rrfCandidatesTotal,
		cacheHitsTotal,
		cacheMissesTotal,
		backendUnavailable,
		emptyDocSetTotal,
		routeDecisionsTotal,
	)

	return &HTTPServerMetrics{
		registry:            registry,
		requestTotal:        requestTotal,
		requestDuration:     requestDuration,
		requestInFlight:     requestInFlight,
		stageDuration:       stageDuration,
		rrfCandidatesTotal:  rrfCandidatesTotal,
		cacheHitsTotal:      cacheHitsTotal,
		cacheMissesTotal:    cacheMissesTotal,
		backendUnavailable:  backendUnavailable,
		emptyDocSetTotal:    emptyDocSetTotal,
		routeDecisionsTotal: routeDecisionsTotal,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/query"):
		return "/v1/query"
	default:
		return path
	}
}

// RecordStageDuration times one query-pipeline stage, labelled by the name
// the pipeline passes (normalize, classify_intent, extract_slots, expand,
// route, compose_explanation, retrieve_findings, retrieve_chunks,
// promote_blocks, pack_context, compose).
func (m *HTTPServerMetrics) RecordStageDuration(service, stage string, d time.Duration) {
	m.stageDuration.WithLabelValues(service, stage).Observe(d.Seconds())
}

// RecordRRFCandidates counts how many hits a ranking source (lexical/vector)
// contributed before fusion.
func (m *HTTPServerMetrics) RecordRRFCandidates(service, ranking string, n int) {
	if n <= 0 {
		return
	}
	m.rrfCandidatesTotal.WithLabelValues(service, ranking).Add(float64(n))
}

func (m *HTTPServerMetrics) RecordCacheHit(service, cache string) {
	m.cacheHitsTotal.WithLabelValues(service, cache).Inc()
}

func (m *HTTPServerMetrics) RecordCacheMiss(service, cache string) {
	m.cacheMissesTotal.WithLabelValues(service, cache).Inc()
}

// RecordBackendUnavailable counts a degraded call to an external backend
// (lexical store, vector store, LLM) so dashboards can distinguish recovered
// degradation from outright query failure.
func (m *HTTPServerMetrics) RecordBackendUnavailable(service, backend string) {
	m.backendUnavailable.WithLabelValues(service, backend).Inc()
}

func (m *HTTPServerMetrics) RecordEmptyDocSet() {
	m.emptyDocSetTotal.Inc()
}

func (m *HTTPServerMetrics) RecordRouteDecision(service, route string) {
	if route == "" {
		route = "unknown"
	}
	m.routeDecisionsTotal.WithLabelValues(service, route).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
