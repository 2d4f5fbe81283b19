package ports

import (
	"context"

	"reminderd/internal/model"
)

// Notifier is the outward delivery channel. The engine only depends on the
// three-way result contract; duplicate sends after a worker crash must be
// tolerated by the implementation.
type Notifier interface {
	Send(ctx context.Context, r *model.Reminder) (model.AttemptResult, error)
	// NotifyFailure tells the owner a reminder was given up on. Best effort:
	// errors are logged by the implementation, never propagated.
	NotifyFailure(ctx context.Context, r *model.Reminder)
}
