package tasks

import "github.com/prometheus/client_golang/prometheus"

var (
	queueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "assistd",
		Subsystem: "tasks",
		Name:      "queue_depth",
		Help:      "Number of queued background tasks not yet started",
	})

	tasksSubmittedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "assistd",
		Subsystem: "tasks",
		Name:      "submitted_total",
		Help:      "Total background tasks submitted",
	})

	tasksCompletedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "assistd",
		Subsystem: "tasks",
		Name:      "completed_total",
		Help:      "Total background tasks completed successfully",
	})

	tasksFailedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "assistd",
		Subsystem: "tasks",
		Name:      "failed_total",
		Help:      "Total background tasks that failed",
	})
)

func init() {
	prometheus.MustRegister(queueDepth, tasksSubmittedTotal, tasksCompletedTotal, tasksFailedTotal)
}
