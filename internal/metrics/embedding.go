package metrics

import "github.com/prometheus/client_golang/prometheus"

// Embedding backend, cache and normalization metrics.
var (
	EmbeddingRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vecsnap",
			Name:      "embedding_requests_total",
			Help:      "Image embedding backend calls by result",
		},
		[]string{"provider", "model", "result"}, // success / error
	)

	EmbeddingRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "vecsnap",
			Name:      "embedding_request_duration_seconds",
			Help:      "Successful image embedding call duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}, // CPU image encoders can take seconds
		},
		[]string{"provider", "model"},
	)

	EmbeddingErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vecsnap",
			Name:      "embedding_errors_total",
			Help:      "Failed image embedding calls by reason",
		},
		[]string{"provider", "model", "reason"},
	)

	EmbeddingCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vecsnap",
			Name:      "embedding_cache_total",
			Help:      "Embedding cache lookups by result",
		},
		[]string{"result"}, // hit / miss / stale
	)

	EmbeddingDegenerateTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "vecsnap",
			Name:      "embedding_zero_norm_total",
			Help:      "Embeddings returned unnormalized because their L2 norm was zero",
		},
	)
)

var embMetricsRegistered bool

// RegisterEmbeddingMetrics registers Prometheus embedding metrics. Must be called once from main.
func RegisterEmbeddingMetrics() {
	if embMetricsRegistered {
		return
	}
	prometheus.MustRegister(EmbeddingRequestsTotal)
	prometheus.MustRegister(EmbeddingRequestDuration)
	prometheus.MustRegister(EmbeddingErrorsTotal)
	prometheus.MustRegister(EmbeddingCacheTotal)
	prometheus.MustRegister(EmbeddingDegenerateTotal)
	embMetricsRegistered = true
}
