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

const maxCategoryLabelLen = 32

type HTTPServerMetrics struct {
	service  string
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	notesProcessedTotal *prometheus.CounterVec
	notesDuration       *prometheus.HistogramVec
	trafficRejectTotal  *prometheus.CounterVec
	breakerState        *prometheus.GaugeVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "notes",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "notes",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "notes",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	notesProcessedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "notes",
			Subsystem: "pipeline",
			Name:      "processed_total",
			Help:      "Total processed note images by provider, status and category.",
		},
		[]string{"service", "provider", "status", "category"},
	)
	notesDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "notes",
			Subsystem: "pipeline",
			Name:      "duration_seconds",
			Help:      "End-to-end note processing duration in seconds.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 45, 60, 90},
		},
		[]string{"service", "provider", "status"},
	)
	trafficRejectTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "notes",
			Subsystem: "http",
			Name:      "traffic_rejected_total",
			Help:      "Requests rejected by rate limiting or backpressure.",
		},
		[]string{"service", "reason"},
	)

	breakerState := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "notes",
			Subsystem: "resilience",
			Name:      "breaker_state",
			Help:      "Circuit breaker state per operation (0 closed, 1 half-open, 2 open).",
		},
		[]string{"service", "operation"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		notesProcessedTotal,
		notesDuration,
		trafficRejectTotal,
		breakerState,
	)

	return &HTTPServerMetrics{
		service:             service,
		registry:            registry,
		requestTotal:        requestTotal,
		requestDuration:     requestDuration,
		requestInFlight:     requestInFlight,
		notesProcessedTotal: notesProcessedTotal,
		notesDuration:       notesDuration,
		trafficRejectTotal:  trafficRejectTotal,
		breakerState:        breakerState,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(next http.Handler) http.Handler {
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
			m.service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(m.service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/mcp"):
		return "/mcp"
	default:
		return path
	}
}

// ObserveProcessing records one pipeline run.
func (m *HTTPServerMetrics) ObserveProcessing(provider, status, category string, duration time.Duration) {
	if provider == "" {
		provider = "unknown"
	}
	if status == "" {
		status = "unknown"
	}
	m.notesProcessedTotal.WithLabelValues(m.service, provider, status, categoryLabel(category)).Inc()
	m.notesDuration.WithLabelValues(m.service, provider, status).Observe(duration.Seconds())
}

func (m *HTTPServerMetrics) RecordTrafficReject(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	m.trafficRejectTotal.WithLabelValues(m.service, reason).Inc()
}

// RecordBreakerState matches resilience.StateObserver.
func (m *HTTPServerMetrics) RecordBreakerState(operation, _, to string) {
	value := 0.0
	switch to {
	case "half-open":
		value = 1
	case "open":
		value = 2
	}
	m.breakerState.WithLabelValues(m.service, operation).Set(value)
}

// categoryLabel bounds label cardinality; categories come from model output.
func categoryLabel(category string) string {
	category = strings.ToLower(strings.TrimSpace(category))
	switch {
	case category == "":
		return "none"
	case len(category) > maxCategoryLabelLen:
		return "other"
	default:
		return category
	}
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
