// Package metrics provides Prometheus metrics for the oracle node.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// FetchTotal counts offchain fetch attempts by result.
	FetchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oracle_fetch_total",
			Help: "Offchain price fetch attempts by result",
		},
		[]string{"result"},
	)

	// SubmissionsTotal counts signed submissions handed to the pool.
	SubmissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oracle_submissions_total",
			Help: "Signed price submissions handed to the transaction pool by result",
		},
		[]string{"result"},
	)

	// DispatchTotal counts applied transactions by result.
	DispatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oracle_dispatch_total",
			Help: "Transactions applied during block production by result",
		},
		[]string{"result"},
	)

	// PipelineDuration observes a full offchain traversal.
	PipelineDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "oracle_pipeline_duration_seconds",
			Help:    "Duration of one offchain worker traversal",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"state"},
	)

	// BlockHeight is the latest finalized height.
	BlockHeight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "oracle_block_height",
		Help: "Latest finalized block height",
	})

	// SampleCount is the number of samples in state.
	SampleCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "oracle_sample_count",
		Help: "Number of price samples held in state",
	})

	// AveragePrice is the current on-chain average in cents.
	AveragePrice = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "oracle_average_price_cents",
		Help: "Current average of stored price samples in cents",
	})
)

var registerOnce sync.Once

// Init registers all metrics with the default registry. Safe to call more
// than once.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			FetchTotal,
			SubmissionsTotal,
			DispatchTotal,
			PipelineDuration,
			BlockHeight,
			SampleCount,
			AveragePrice,
		)
	})
}

// RecordFetch records a fetch outcome.
func RecordFetch(result string) {
	FetchTotal.WithLabelValues(result).Inc()
}

// RecordSubmission records a pool handoff outcome.
func RecordSubmission(result string) {
	SubmissionsTotal.WithLabelValues(result).Inc()
}

// RecordDispatch records the result of applying a transaction.
func RecordDispatch(result string) {
	DispatchTotal.WithLabelValues(result).Inc()
}

// RecordPipeline records the terminal state and duration of a traversal.
func RecordPipeline(state string, d time.Duration) {
	PipelineDuration.WithLabelValues(state).Observe(d.Seconds())
}

// RecordBlock updates the chain gauges after finalization.
func RecordBlock(height uint64, samples int, average uint32, hasAverage bool) {
	BlockHeight.Set(float64(height))
	SampleCount.Set(float64(samples))
	if hasAverage {
		AveragePrice.Set(float64(average))
	}
}
