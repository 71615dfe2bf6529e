package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(jobSubmissionsTotal, jobsFinishedTotal, jobsAbortedTotal) }

var (
	jobSubmissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transcribe_job_submissions_total",
			Help: "Job submissions by result (ok, or the failing stage).",
		},
		[]string{"result"}, // ok | upload | create
	)

	jobsFinishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transcribe_jobs_finished_total",
			Help: "Jobs observed reaching a terminal state, labeled by status.",
		},
		[]string{"status"}, // completed | failed
	)

	jobsAbortedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transcribe_waits_aborted_total",
			Help: "Waits abandoned before a terminal state, labeled by reason.",
		},
		[]string{"reason"}, // poll_error | timeout | cancelled
	)
)

func IncSubmission(result string) {
	jobSubmissionsTotal.WithLabelValues(norm(result)).Inc()
}

func IncJobFinished(status string) {
	jobsFinishedTotal.WithLabelValues(norm(status)).Inc()
}

func IncWaitAborted(reason string) {
	jobsAbortedTotal.WithLabelValues(norm(reason)).Inc()
}
