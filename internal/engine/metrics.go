package engine

import "github.com/prometheus/client_golang/prometheus"

var (
	metricInferencesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rkllmd",
			Subsystem: "engine",
			Name:      "inferences_total",
			Help:      "Total executions by outcome",
		},
		[]string{"outcome"},
	)

	metricTokensGenerated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "rkllmd",
			Subsystem: "engine",
			Name:      "tokens_generated_total",
			Help:      "Total completion tokens generated",
		},
	)

	metricInferenceDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "rkllmd",
			Subsystem: "engine",
			Name:      "inference_duration_seconds",
			Help:      "Wall-clock duration of executions in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	metricActiveInferences = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "rkllmd",
			Subsystem: "engine",
			Name:      "active_inferences",
			Help:      "Executions currently in flight",
		},
	)

	metricBatchItems = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rkllmd",
			Subsystem: "engine",
			Name:      "batch_items_total",
			Help:      "Batch items processed by outcome",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		metricInferencesTotal,
		metricTokensGenerated,
		metricInferenceDuration,
		metricActiveInferences,
		metricBatchItems,
	)
}
