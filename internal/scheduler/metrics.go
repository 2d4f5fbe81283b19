package scheduler

import "github.com/prometheus/client_golang/prometheus"

var (
	remindersEnqueued = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reminderd_scheduler_enqueued_total",
		Help: "Dispatch jobs enqueued by the due scanner",
	})
	claimConflicts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reminderd_scheduler_claim_conflicts_total",
		Help: "Claims lost to a concurrent scanner",
	})
	scanFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reminderd_scheduler_scan_failures_total",
		Help: "Scan cycles aborted by store errors",
	})
	remindersExpired = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reminderd_scheduler_expired_total",
		Help: "Reminders marked expired by the sweep",
	})
	claimsReclaimed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reminderd_scheduler_claims_reclaimed_total",
		Help: "Stale dispatching claims released back to pending",
	})
)

func init() {
	prometheus.MustRegister(remindersEnqueued, claimConflicts, scanFailures, remindersExpired, claimsReclaimed)
}
