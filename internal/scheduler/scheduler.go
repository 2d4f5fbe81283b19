package scheduler

import (
	"context"
	"time"

	"github.com/wb-go/wbf/zlog"

	"reminderd/internal/clock"
	"reminderd/internal/model"
	"reminderd/internal/ports"
)

// Scheduler is the due-scanner: on every tick it claims reminders whose due
// time has passed and hands them to the dispatch queue. Claim is the sole
// gate, so running the loop twice over unchanged state enqueues nothing new.
type Scheduler struct {
	store      ports.ReminderStore
	queue      ports.JobPublisher
	clk        clock.Clock
	interval   time.Duration
	batchLimit int
	staleAfter time.Duration
}

func New(store ports.ReminderStore, queue ports.JobPublisher, clk clock.Clock, interval time.Duration, batchLimit int, staleAfter time.Duration) *Scheduler {
	return &Scheduler{
		store:      store,
		queue:      queue,
		clk:        clk,
		interval:   interval,
		batchLimit: batchLimit,
		staleAfter: staleAfter,
	}
}

func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	now := s.clk.Now().UTC()

	expired, err := s.store.MarkExpired(ctx, now)
	if err != nil {
		zlog.Logger.Error().Err(err).Msg("expiry sweep failed")
	} else if expired > 0 {
		remindersExpired.Add(float64(expired))
		zlog.Logger.Info().Int64("count", expired).Msg("expired reminders swept")
	}

	// claims stranded by a crash or a failed release go back to pending so
	// the scan below can redispatch them
	reclaimed, err := s.store.ReleaseStale(ctx, now.Add(-s.staleAfter))
	if err != nil {
		zlog.Logger.Error().Err(err).Msg("stale claim sweep failed")
	} else if reclaimed > 0 {
		claimsReclaimed.Add(float64(reclaimed))
		zlog.Logger.Warn().Int64("count", reclaimed).Msg("stale claims released")
	}

	enqueued, err := s.ScanOnce(ctx)
	if err != nil {
		// store unavailable: wait for the next tick instead of crashing
		scanFailures.Inc()
		zlog.Logger.Error().Err(err).Msg("due scan failed")
		return
	}
	if enqueued > 0 {
		zlog.Logger.Info().Int("enqueued", enqueued).Msg("dispatch jobs enqueued")
	}
}

// ScanOnce runs a single scan cycle and returns how many jobs were enqueued.
func (s *Scheduler) ScanOnce(ctx context.Context) (int, error) {
	now := s.clk.Now().UTC()

	due, err := s.store.ListDue(ctx, now, s.batchLimit)
	if err != nil {
		return 0, err
	}

	enqueued := 0
	for _, rem := range due {
		claimed, err := s.store.Claim(ctx, rem.ID, model.StatusPending)
		if err != nil {
			// one bad reminder never aborts the batch
			zlog.Logger.Error().Err(err).Stringer("id", rem.ID).Msg("claim failed")
			continue
		}
		if !claimed {
			// lost the race to a concurrent scanner, expected
			claimConflicts.Inc()
			continue
		}

		job := model.DispatchJob{ReminderID: rem.ID}
		if err := s.queue.PublishDispatch(ctx, job); err != nil {
			zlog.Logger.Error().Err(err).Stringer("id", rem.ID).Msg("enqueue failed, releasing claim")
			if relErr := s.store.Release(ctx, rem.ID); relErr != nil {
				// the stale-claim sweep picks the row up once staleAfter
				// passes, so the claim is never stranded for good
				zlog.Logger.Error().Err(relErr).Stringer("id", rem.ID).Msg("release after enqueue failure failed")
			}
			continue
		}

		remindersEnqueued.Inc()
		enqueued++
	}
	return enqueued, nil
}
