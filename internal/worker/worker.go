package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/wb-go/wbf/zlog"
	"golang.org/x/sync/errgroup"

	"reminderd/internal/clock"
	"reminderd/internal/model"
	"reminderd/internal/ports"
)

// Worker consumes dispatch jobs and drives each claimed reminder through the
// delivery state machine. A job is acked only after the store update commits;
// anything redelivered after a crash is caught by the status re-check, which
// also makes cancellation effective for jobs already in flight.
const defaultRequeueDelay = time.Second

type Worker struct {
	store        ports.ReminderStore
	notifier     ports.Notifier
	clk          clock.Clock
	policy       model.RetryPolicy
	concurrency  int
	requeueDelay time.Duration
}

func New(store ports.ReminderStore, notifier ports.Notifier, clk clock.Clock, policy model.RetryPolicy, concurrency int) *Worker {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Worker{
		store:        store,
		notifier:     notifier,
		clk:          clk,
		policy:       policy,
		concurrency:  concurrency,
		requeueDelay: defaultRequeueDelay,
	}
}

// Run drains the delivery channel with a bounded pool until the channel
// closes or the context is cancelled.
func (w *Worker) Run(ctx context.Context, deliveries <-chan amqp091.Delivery) error {
	group, ctx := errgroup.WithContext(ctx)

	for i := 0; i < w.concurrency; i++ {
		group.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case delivery, ok := <-deliveries:
					if !ok {
						return nil
					}
					w.handle(ctx, delivery)
				}
			}
		})
	}
	return group.Wait()
}

func (w *Worker) handle(ctx context.Context, delivery amqp091.Delivery) {
	requeue, err := w.Process(ctx, delivery.Body)
	if err != nil {
		zlog.Logger.Error().Err(err).Bool("requeue", requeue).Msg("dispatch job failed")
		if requeue {
			// the broker redelivers a requeued job immediately; pausing here
			// keeps a store outage from spinning jobs at full speed
			w.pause(ctx)
		}
		if nackErr := delivery.Nack(false, requeue); nackErr != nil {
			zlog.Logger.Error().Err(nackErr).Msg("nack failed")
		}
		return
	}
	if ackErr := delivery.Ack(false); ackErr != nil {
		zlog.Logger.Error().Err(ackErr).Msg("ack failed")
	}
}

func (w *Worker) pause(ctx context.Context) {
	t := time.NewTimer(w.requeueDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// Process handles one dispatch job payload. The returned bool says whether a
// failed job should be requeued: malformed payloads must not loop forever,
// while store outages should come back for another try.
func (w *Worker) Process(ctx context.Context, payload []byte) (bool, error) {
	var job model.DispatchJob
	if err := json.Unmarshal(payload, &job); err != nil {
		return false, fmt.Errorf("bad dispatch job payload: %w", err)
	}

	rem, err := w.store.GetReminder(ctx, job.ReminderID)
	if errors.Is(err, model.ErrNotFound) {
		// record vanished, nothing to deliver
		zlog.Logger.Warn().Stringer("id", job.ReminderID).Msg("dispatch job for unknown reminder")
		return false, nil
	}
	if err != nil {
		return true, fmt.Errorf("load reminder %s: %w", job.ReminderID, err)
	}

	if rem.Status != model.StatusDispatching {
		// cancelled after enqueue, or a duplicate redelivery of an already
		// resolved job; either way no send happens
		jobsSkipped.Inc()
		zlog.Logger.Info().
			Stringer("id", rem.ID).
			Str("status", rem.Status.String()).
			Msg("skipping job, reminder no longer claimed")
		return false, nil
	}

	result, sendErr := w.notifier.Send(ctx, rem)
	if sendErr != nil {
		zlog.Logger.Warn().Err(sendErr).Stringer("id", rem.ID).Msg("delivery attempt failed")
	}

	now := w.clk.Now().UTC()
	tr := model.NextTransition(rem, result, sendErr, now, w.policy)

	applied, err := w.store.ApplyAttempt(ctx, rem.ID, tr)
	if err != nil {
		// the broker redelivers the job; the status re-check keeps the retry safe
		return true, fmt.Errorf("apply attempt for %s: %w", rem.ID, err)
	}
	if !applied {
		zlog.Logger.Info().Stringer("id", rem.ID).Msg("attempt outcome discarded, claim was lost")
		return false, nil
	}

	w.observe(rem, tr, result)

	if tr.Status == model.StatusFailed {
		w.notifier.NotifyFailure(ctx, rem)
	}
	return false, nil
}

func (w *Worker) observe(rem *model.Reminder, tr model.Transition, result model.AttemptResult) {
	switch {
	case result == model.AttemptDelivered && rem.Recurring():
		delivered.Inc()
		zlog.Logger.Info().
			Stringer("id", rem.ID).
			Time("next_due_at", tr.DueAt).
			Msg("recurring reminder fired and rescheduled")
	case result == model.AttemptDelivered:
		delivered.Inc()
		zlog.Logger.Info().Stringer("id", rem.ID).Msg("reminder fired")
	case tr.Status == model.StatusFailed:
		failures.Inc()
		zlog.Logger.Error().
			Stringer("id", rem.ID).
			Int("attempts", tr.AttemptCount).
			Msg("reminder failed terminally")
	default:
		retries.Inc()
		zlog.Logger.Info().
			Stringer("id", rem.ID).
			Int("attempts", tr.AttemptCount).
			Time("retry_at", tr.DueAt).
			Msg("delivery retry scheduled")
	}
}
