package worker

import "github.com/prometheus/client_golang/prometheus"

var (
	delivered = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reminderd_worker_deliveries_total",
		Help: "Reminders delivered successfully",
	})
	retries = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reminderd_worker_retries_total",
		Help: "Delivery attempts rescheduled with backoff",
	})
	failures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reminderd_worker_failures_total",
		Help: "Reminders failed terminally",
	})
	jobsSkipped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reminderd_worker_jobs_skipped_total",
		Help: "Jobs skipped because the reminder was no longer claimed",
	})
)

func init() {
	prometheus.MustRegister(delivered, retries, failures, jobsSkipped)
}
