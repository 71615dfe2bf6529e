package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(storeRequestsTotal) }

var storeRequestsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "transcribe_store_requests_total",
		Help: "Job store lookups by backend and result.",
	},
	[]string{"store", "result"}, // e.g., store="redis", result="hit"
)

func IncStoreRequest(store, result string) {
	storeRequestsTotal.WithLabelValues(norm(store), norm(result)).Inc()
}
