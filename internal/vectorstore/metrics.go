// Prometheus metrics for the vector storage layer, exposed via the
// daemon's /metrics endpoint.
package vectorstore

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// searchesTotal counts ANN searches by backend and outcome.
	searchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ctxengine",
			Subsystem: "vectorstore",
			Name:      "searches_total",
			Help:      "Total ANN searches by backend and result",
		},
		[]string{"backend", "result"},
	)

	// documentsAddedTotal counts upserted documents by backend.
	documentsAddedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ctxengine",
			Subsystem: "vectorstore",
			Name:      "documents_added_total",
			Help:      "Total documents upserted by backend",
		},
		[]string{"backend"},
	)

	// searchDuration tracks search latency by backend.
	searchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ctxengine",
			Subsystem: "vectorstore",
			Name:      "search_duration_seconds",
			Help:      "ANN search latency by backend",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"backend"},
	)
)

func observeSearch(backend string, seconds float64, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	searchesTotal.WithLabelValues(backend, result).Inc()
	if err == nil {
		searchDuration.WithLabelValues(backend).Observe(seconds)
	}
}
