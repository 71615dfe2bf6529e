package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(pollsTotal, pollLatencyMs) }

var (
	pollsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transcribe_polls_total",
			Help: "Status checks by observed status (processing, completed, failed, error).",
		},
		[]string{"status"},
	)

	pollLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "transcribe_poll_latency_ms",
			Help:    "Status check latency distribution in milliseconds.",
			Buckets: []float64{10, 25, 50, 100, 200, 400, 800, 1600, 3000, 5000},
		},
		[]string{"success"},
	)
)

func ObservePoll(status string, latencyMs int, success bool) {
	pollsTotal.WithLabelValues(norm(status)).Inc()
	pollLatencyMs.WithLabelValues(strconv.FormatBool(success)).Observe(float64(latencyMs))
}
