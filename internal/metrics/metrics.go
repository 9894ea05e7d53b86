// Package metrics exposes Prometheus instrumentation for the serving
// adapters. The core pipeline stays metrics-free; adapters record what
// they observe at the boundary.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	predictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "email_classifier",
			Name:      "predictions_total",
			Help:      "Total number of predictions by label",
		},
		[]string{"label"},
	)

	predictionFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "email_classifier",
			Name:      "prediction_failures_total",
			Help:      "Total number of failed classification requests by failure kind",
		},
		[]string{"kind"},
	)

	cacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "email_classifier",
			Name:      "prediction_cache_hits_total",
			Help:      "Total number of prediction cache hits",
		},
	)
)

func init() {
	prometheus.MustRegister(predictionsTotal)
	prometheus.MustRegister(predictionFailures)
	prometheus.MustRegister(cacheHits)
}

// RecordPrediction counts a successful prediction.
func RecordPrediction(label string) {
	predictionsTotal.WithLabelValues(label).Inc()
}

// RecordFailure counts a failed classification request.
func RecordFailure(kind string) {
	predictionFailures.WithLabelValues(kind).Inc()
}

// RecordCacheHit counts a prediction served from cache.
func RecordCacheHit() {
	cacheHits.Inc()
}
