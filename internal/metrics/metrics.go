package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the refresher.
type Metrics struct {
	// --- Liveness ---
	LastProcessedBlock prometheus.Gauge
	BlocksTotal        *prometheus.CounterVec
	FeedErrorsTotal    prometheus.Counter

	// --- Fetch path ---
	InFlight      prometheus.Gauge
	FetchDuration prometheus.Histogram
	Candidates    prometheus.Histogram

	// --- Cache state ---
	PairsTracked prometheus.Gauge
	PairUpdates  *prometheus.CounterVec
}

// New registers the collectors with reg. A nil reg yields unregistered
// collectors, which is what tests want.
func New(reg prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		LastProcessedBlock: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_processed_block",
			Help:      "Height of the last block handed to the refresher.",
		}),
		BlocksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blocks_total",
			Help:      "Blocks by classification (true_negative, needed, unnecessary, error, malformed).",
		}, []string{"outcome"}),
		FeedErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_errors_total",
			Help:      "Errors reported by the block feed side channel.",
		}),
		InFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipelines_in_flight",
			Help:      "Block pipelines submitted but not yet reconciled.",
		}),
		FetchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Duration of batched reserve fetches.",
			Buckets:   prometheus.DefBuckets,
		}),
		Candidates: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "candidates_per_call",
			Help:      "Number of candidate pairs per batched fetch.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
		PairsTracked: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pairs_tracked",
			Help:      "Number of pairs in the reserve cache.",
		}),
		PairUpdates: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pair_results_total",
			Help:      "Per-pair reconciliation results (applied, unchanged, stale, absent).",
		}, []string{"result"}),
	}
}
