package server

import "github.com/prometheus/client_golang/prometheus"

// Metrics exported on the web interface's /metrics endpoint (spec's
// DOMAIN STACK: the teacher's go.mod pulls in prometheus/client_golang
// for exactly this). Registered against the default registry so
// promhttp.Handler() in web.go picks them up without extra wiring.
var (
	connectionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "gearhulk",
		Name:      "connections_total",
		Help:      "Total number of accepted client/worker connections.",
	})

	activeConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "gearhulk",
		Name:      "active_connections",
		Help:      "Currently open client/worker connections.",
	})

	jobsSubmittedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gearhulk",
		Name:      "jobs_submitted_total",
		Help:      "Total jobs submitted, labeled by function name.",
	}, []string{"function"})

	jobsRunning = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "gearhulk",
		Name:      "jobs_running",
		Help:      "Jobs currently assigned to a worker, labeled by function name.",
	}, []string{"function"})

	queueDepth = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "gearhulk",
		Name:      "queue_depth",
		Help:      "Jobs waiting to be assigned, labeled by function name.",
	}, []string{"function"})

	registeredWorkers = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "gearhulk",
		Name:      "registered_workers",
		Help:      "Workers currently registered for a function.",
	}, []string{"function"})

	commandsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gearhulk",
		Name:      "commands_total",
		Help:      "Protocol commands dispatched, labeled by command name.",
	}, []string{"command"})

	jobLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "gearhulk",
		Name:      "job_latency_seconds",
		Help:      "Time from SUBMIT_JOB to a terminal WORK_* frame, labeled by function name.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"function"})
)

func init() {
	prometheus.MustRegister(connectionsTotal, activeConnections, jobsSubmittedTotal,
		jobsRunning, queueDepth, registeredWorkers, commandsTotal, jobLatencySeconds)
}
