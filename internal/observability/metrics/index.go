package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "alpine"

// IndexMetrics covers index population, provider circuit breakers and the query embedding cache.
// Both the API and the worker register it next to their own collectors.
type IndexMetrics struct {
	service string

	populateBatches   *prometheus.CounterVec
	populateDocuments prometheus.Counter
	populateDuration  *prometheus.HistogramVec
	breakerState      *prometheus.GaugeVec
	embedCacheTotal   *prometheus.CounterVec
}

func newIndexMetrics(service string) *IndexMetrics {
	constLabels := prometheus.Labels{"service": service}

	return &IndexMetrics{
		service: service,
		populateBatches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Subsystem:   "index",
				Name:        "populate_batches_total",
				Help:        "Total index population batches by status.",
				ConstLabels: constLabels,
			},
			[]string{"status"},
		),
		populateDocuments: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Subsystem:   "index",
				Name:        "populated_documents_total",
				Help:        "Total documents written to the vector index.",
				ConstLabels: constLabels,
			},
		),
		populateDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   namespace,
				Subsystem:   "index",
				Name:        "populate_batch_duration_seconds",
				Help:        "Duration of one embed-and-insert batch in seconds.",
				Buckets:     []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
				ConstLabels: constLabels,
			},
			[]string{"status"},
		),
		breakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   namespace,
				Subsystem:   "provider",
				Name:        "circuit_breaker_state",
				Help:        "Provider circuit breaker state (0 closed, 1 half-open, 2 open).",
				ConstLabels: constLabels,
			},
			[]string{"operation"},
		),
		embedCacheTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Subsystem:   "embedding",
				Name:        "cache_requests_total",
				Help:        "Query embedding cache lookups by result.",
				ConstLabels: constLabels,
			},
			[]string{"result"},
		),
	}
}

func (m *IndexMetrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.populateBatches,
		m.populateDocuments,
		m.populateDuration,
		m.breakerState,
		m.embedCacheTotal,
	}
}

func (m *IndexMetrics) ObservePopulateBatch(documents int, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.populateBatches.WithLabelValues(status).Inc()
	m.populateDuration.WithLabelValues(status).Observe(duration.Seconds())
	if err == nil && documents > 0 {
		m.populateDocuments.Add(float64(documents))
	}
}

func (m *IndexMetrics) ObserveBreakerState(operation string, state string) {
	value := 0.0
	switch state {
	case "half-open":
		value = 1
	case "open":
		value = 2
	}
	m.breakerState.WithLabelValues(operation).Set(value)
}

// EmbeddingCacheTotal is handed to the caching embedder, which labels lookups hit or miss.
func (m *IndexMetrics) EmbeddingCacheTotal() *prometheus.CounterVec {
	return m.embedCacheTotal
}
