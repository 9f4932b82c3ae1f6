package worker

import "github.com/prometheus/client_golang/prometheus"

// Metrics mirroring pkg/server's, but from the worker's vantage point:
// how many jobs this process executed and how long they took, labeled by
// function name so a worker running several job types doesn't blend them
// together.
var (
	jobsExecutedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gearhulk_worker",
		Name:      "jobs_executed_total",
		Help:      "Jobs this worker executed, labeled by function name and outcome.",
	}, []string{"function", "outcome"})

	jobDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "gearhulk_worker",
		Name:      "job_duration_seconds",
		Help:      "Wall-clock time spent inside a job function, labeled by function name.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"function"})
)

func init() {
	prometheus.MustRegister(jobsExecutedTotal, jobDurationSeconds)
}
