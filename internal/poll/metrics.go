package poll

import "github.com/prometheus/client_golang/prometheus"

var (
	pollRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "launcherd",
			Subsystem: "poll",
			Name:      "runs_total",
			Help:      "Total executions of polling tasks",
		},
		[]string{"key", "result"},
	)

	pollSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "launcherd",
			Subsystem: "poll",
			Name:      "skipped_total",
			Help:      "Ticks skipped because the previous run was still in flight",
		},
		[]string{"key"},
	)

	pollStopped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "launcherd",
			Subsystem: "poll",
			Name:      "stopped_total",
			Help:      "Tasks stopped after exhausting their retry budget",
		},
		[]string{"key"},
	)
)

func init() {
	prometheus.MustRegister(pollRuns, pollSkipped, pollStopped)
}
