package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	requests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "docchat_http_requests_total",
		Help: "HTTP requests by route and status code",
	}, []string{"route", "code"})

	intents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "docchat_chat_intents_total",
		Help: "Chat messages by classified intent",
	}, []string{"intent"})

	backendLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "docchat_backend_latency_ms",
		Help:    "Latency of external backend calls in milliseconds",
		Buckets: []float64{50, 100, 250, 500, 1000, 2000, 4000, 8000, 15000},
	}, []string{"backend", "outcome"})

	extractionFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "docchat_extraction_failures_total",
		Help: "Document extractions that degraded to empty text",
	}, []string{"kind"})

	documents = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "docchat_documents",
		Help: "Documents currently held by the document store",
	})
)

func ensureRegistered() {
	once.Do(func() {
		prometheus.MustRegister(requests, intents, backendLatency, extractionFailures, documents)
	})
}

// ObserveRequest counts one handled HTTP request.
func ObserveRequest(route, code string) {
	ensureRegistered()
	requests.WithLabelValues(route, code).Inc()
}

// ObserveIntent counts one routed chat message.
func ObserveIntent(intent string) {
	ensureRegistered()
	intents.WithLabelValues(intent).Inc()
}

// ObserveBackend records an external call; outcome is "ok", "empty" or "error".
func ObserveBackend(backend, outcome string, d time.Duration) {
	ensureRegistered()
	backendLatency.WithLabelValues(backend, outcome).Observe(float64(d.Milliseconds()))
}

// ObserveExtractionFailure counts a degraded extraction.
func ObserveExtractionFailure(kind string) {
	ensureRegistered()
	extractionFailures.WithLabelValues(kind).Inc()
}

// SetDocuments reports the size of the document store.
func SetDocuments(n int) {
	ensureRegistered()
	documents.Set(float64(n))
}
