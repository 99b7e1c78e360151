package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WorkerMetrics struct {
	*IndexMetrics

	registry *prometheus.Registry

	updateTotal    *prometheus.CounterVec
	updateDuration *prometheus.HistogramVec
	updateInFlight prometheus.Gauge
	indexSize      prometheus.Gauge
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	updateTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "knowledge_update_total",
			Help:      "Total knowledge base rebuilds by status.",
		},
		[]string{"service", "status"},
	)
	updateDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "knowledge_update_duration_seconds",
			Help:      "Knowledge base rebuild duration in seconds by status.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service", "status"},
	)
	updateInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "knowledge_update_in_flight",
			Help:      "Number of running knowledge base rebuilds.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	indexSize := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "index",
			Name:      "documents",
			Help:      "Documents in the vector index after the last rebuild.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)

	index := newIndexMetrics(service)
	registry.MustRegister(updateTotal, updateDuration, updateInFlight, indexSize)
	registry.MustRegister(index.collectors()...)

	return &WorkerMetrics{
		IndexMetrics:   index,
		registry:       registry,
		updateTotal:    updateTotal,
		updateDuration: updateDuration,
		updateInFlight: updateInFlight,
		indexSize:      indexSize,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartUpdate() {
	m.updateInFlight.Inc()
}

func (m *WorkerMetrics) FinishUpdate(service string, duration time.Duration, documents int, err error) {
	m.updateInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}

	m.updateTotal.WithLabelValues(service, status).Inc()
	m.updateDuration.WithLabelValues(service, status).Observe(duration.Seconds())
	if err == nil {
		m.indexSize.Set(float64(documents))
	}
}
