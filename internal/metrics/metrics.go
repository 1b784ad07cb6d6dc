package metrics

import "github.com/prometheus/client_golang/prometheus"

// Pipeline Prometheus metrics.
var (
	EmbeddingRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shopdex",
			Name:      "embedding_requests_total",
			Help:      "Total number of embedding provider requests",
		},
		[]string{"kind", "status"}, // kind: text / image / describe / classify
	)

	EmbeddingRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "shopdex",
			Name:      "embedding_request_duration_seconds",
			Help:      "Embedding provider request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"kind"},
	)

	SearchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shopdex",
			Name:      "search_requests_total",
			Help:      "Total search requests by resolved tool and tier",
		},
		[]string{"tool", "tier"}, // tier: vector / keyword / fallback
	)

	IntentResolutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shopdex",
			Name:      "intent_resolutions_total",
			Help:      "Intent resolutions by path taken",
		},
		[]string{"path"}, // fast / classifier / rules / degraded
	)

	ReindexItemsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shopdex",
			Name:      "reindex_items_total",
			Help:      "Reindexed catalog items by outcome",
		},
		[]string{"outcome"}, // indexed / failed
	)
)

var registered bool

// Register registers pipeline metrics. Must be called once from main (no init()).
func Register() {
	if registered {
		return
	}
	prometheus.MustRegister(EmbeddingRequestsTotal)
	prometheus.MustRegister(EmbeddingRequestDuration)
	prometheus.MustRegister(SearchRequestsTotal)
	prometheus.MustRegister(IntentResolutionsTotal)
	prometheus.MustRegister(ReindexItemsTotal)
	registered = true
}
