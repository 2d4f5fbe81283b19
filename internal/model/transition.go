package model

import "time"

// AttemptResult is the three-way outcome the notifier contract promises.
type AttemptResult int

const (
	AttemptDelivered AttemptResult = iota
	AttemptRetryable
	AttemptPermanent
)

// RetryPolicy bounds redelivery of a single due instance.
type RetryPolicy struct {
	MaxAttempts int
	BackoffBase time.Duration
	BackoffCap  time.Duration
}

// Backoff returns the delay before the given attempt (1-based) is retried.
// Exponential doubling from BackoffBase, capped at BackoffCap.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	d := p.BackoffBase
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= p.BackoffCap {
			return p.BackoffCap
		}
	}
	if d > p.BackoffCap {
		return p.BackoffCap
	}
	return d
}

// Transition is the store update a dispatch attempt resolves to.
type Transition struct {
	Status       Status
	DueAt        time.Time
	AttemptCount int
	LastError    *string
}

// NextTransition applies the delivery state machine to a claimed reminder.
// Delivered one-shots terminate; delivered recurring reminders advance due_at
// by the interval even if the result is still in the past (missed cycles catch
// up on the next scan instead of being dropped). Retryable failures back off
// until the policy cap, then fail terminally.
func NextTransition(r *Reminder, result AttemptResult, sendErr error, now time.Time, policy RetryPolicy) Transition {
	switch result {
	case AttemptDelivered:
		if r.Recurring() {
			return Transition{
				Status:       StatusPending,
				DueAt:        r.DueAt.Add(r.RecurEvery),
				AttemptCount: 0,
			}
		}
		return Transition{
			Status:       StatusFired,
			DueAt:        r.DueAt,
			AttemptCount: r.AttemptCount,
		}
	case AttemptRetryable:
		attempts := r.AttemptCount + 1
		if attempts >= policy.MaxAttempts {
			return Transition{
				Status:       StatusFailed,
				DueAt:        r.DueAt,
				AttemptCount: attempts,
				LastError:    errText(sendErr),
			}
		}
		return Transition{
			Status:       StatusPending,
			DueAt:        now.Add(policy.Backoff(attempts)),
			AttemptCount: attempts,
			LastError:    errText(sendErr),
		}
	default: // AttemptPermanent
		return Transition{
			Status:       StatusFailed,
			DueAt:        r.DueAt,
			AttemptCount: r.AttemptCount + 1,
			LastError:    errText(sendErr),
		}
	}
}

func errText(err error) *string {
	if err == nil {
		return nil
	}
	s := err.Error()
	return &s
}
