package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WorkerMetrics struct {
	service  string
	registry *prometheus.Registry

	eventsTotal     *prometheus.CounterVec
	storeDuration   *prometheus.HistogramVec
	storeInFlight   prometheus.Gauge
	eventLag        *prometheus.HistogramVec
	processedByCode *prometheus.CounterVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	eventsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "notes",
			Subsystem: "worker",
			Name:      "events_stored_total",
			Help:      "Total consumed processing events by store status.",
		},
		[]string{"service", "status"},
	)
	storeDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "notes",
			Subsystem: "worker",
			Name:      "event_store_duration_seconds",
			Help:      "Processing event store duration in seconds by status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "status"},
	)
	storeInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "notes",
			Subsystem: "worker",
			Name:      "event_store_in_flight",
			Help:      "Number of in-flight event store operations.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	eventLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "notes",
			Subsystem: "worker",
			Name:      "event_lag_seconds",
			Help:      "Delay between note processing and event consumption.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"service"},
	)
	processedByCode := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "notes",
			Subsystem: "worker",
			Name:      "pipeline_outcomes_total",
			Help:      "Pipeline outcomes seen in consumed events by status and error code.",
		},
		[]string{"service", "status", "code"},
	)

	registry.MustRegister(eventsTotal, storeDuration, storeInFlight, eventLag, processedByCode)

	return &WorkerMetrics{
		service:         service,
		registry:        registry,
		eventsTotal:     eventsTotal,
		storeDuration:   storeDuration,
		storeInFlight:   storeInFlight,
		eventLag:        eventLag,
		processedByCode: processedByCode,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartEvent() {
	m.storeInFlight.Inc()
}

func (m *WorkerMetrics) FinishEvent(duration time.Duration, err error) {
	m.storeInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}

	m.eventsTotal.WithLabelValues(m.service, status).Inc()
	m.storeDuration.WithLabelValues(m.service, status).Observe(duration.Seconds())
}

func (m *WorkerMetrics) ObserveOutcome(status, code string) {
	if code == "" {
		code = "none"
	}
	m.processedByCode.WithLabelValues(m.service, status, code).Inc()
}

func (m *WorkerMetrics) ObserveEventLag(lag time.Duration) {
	if lag < 0 {
		return
	}
	m.eventLag.WithLabelValues(m.service).Observe(lag.Seconds())
}
