package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(watchTicksTotal, watchTasksTotal, watchPendingJobs) }

var (
	watchTicksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "transcribe_watch_ticks_total",
			Help: "Watcher sweeps over the pending job set.",
		},
	)

	watchTasksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transcribe_watch_tasks_total",
			Help: "Watcher poll tasks by outcome.",
		},
		[]string{"outcome"}, // processing | completed | failed | locked | error | dropped
	)

	watchPendingJobs = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "transcribe_watch_pending_jobs",
			Help: "Pending jobs seen by the last watcher sweep.",
		},
	)
)

func IncWatchTick(pending int) {
	watchTicksTotal.Inc()
	watchPendingJobs.Set(float64(pending))
}

func IncWatchTask(outcome string) {
	watchTasksTotal.WithLabelValues(norm(outcome)).Inc()
}
