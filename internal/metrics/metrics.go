package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	DocumentsIndexed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "elasticindex_documents_indexed_total",
			Help: "Documents written, by collection",
		},
		[]string{"collection"},
	)

	BackendErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "elasticindex_backend_errors_total",
			Help: "Backend failures routed to the error handler, by class",
		},
		[]string{"class"},
	)

	DecodeSkips = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "elasticindex_decode_skips_total",
			Help: "Action payloads left as hex because they failed to decode",
		},
	)

	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "elasticindex_queue_depth",
			Help: "Ingress queue depth at last enqueue, by queue",
		},
		[]string{"queue"},
	)

	BackpressureSleeps = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "elasticindex_backpressure_sleeps_total",
			Help: "Producer sleeps caused by oversized queues",
		},
	)

	AbiCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "elasticindex_abi_cache_hits_total",
			Help: "ABI cache lookups served from memory",
		},
	)

	AbiCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "elasticindex_abi_cache_misses_total",
			Help: "ABI cache lookups that went to the backend",
		},
	)

	AbiCacheEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "elasticindex_abi_cache_evictions_total",
			Help: "ABI cache entries evicted to make room",
		},
	)
)

// Serve exposes /metrics on addr. Returns the server so the caller can
// shut it down.
func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: addr, Handler: mux}
	go srv.ListenAndServe()
	return srv
}
