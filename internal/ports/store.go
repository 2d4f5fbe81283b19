package ports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"reminderd/internal/model"
)

type ReminderStore interface {
	CreateReminder(ctx context.Context, r *model.Reminder) error
	GetReminder(ctx context.Context, id uuid.UUID) (*model.Reminder, error)
	ListDue(ctx context.Context, now time.Time, limit int) ([]*model.Reminder, error)
	// Claim atomically moves a reminder from expected to dispatching.
	// A false return means another claimant won the race.
	Claim(ctx context.Context, id uuid.UUID, expected model.Status) (bool, error)
	// Release reverts a claim that could not be enqueued.
	Release(ctx context.Context, id uuid.UUID) error
	// ApplyAttempt commits a delivery outcome. It only touches rows still in
	// dispatching; false means the claim was lost (e.g. cancelled meanwhile).
	ApplyAttempt(ctx context.Context, id uuid.UUID, tr model.Transition) (bool, error)
	// ReleaseStale reverts dispatching rows untouched since olderThan back to
	// pending, recovering claims stranded by a crash or a failed release.
	ReleaseStale(ctx context.Context, olderThan time.Time) (int64, error)
	CancelReminder(ctx context.Context, id uuid.UUID, ownerID string) (bool, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*model.Reminder, error)
	MarkExpired(ctx context.Context, now time.Time) (int64, error)
}

type ReminderCache interface {
	SaveReminder(ctx context.Context, r *model.Reminder) error
	GetReminder(ctx context.Context, id uuid.UUID) (*model.Reminder, error)
	DeleteReminder(ctx context.Context, id uuid.UUID) error
}
