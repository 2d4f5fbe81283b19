package notifier

import (
	"context"
	"fmt"

	"reminderd/internal/model"
)

// ConsoleNotifier prints deliveries to stdout. Used for local runs and as the
// default channel when no bot token is configured.
type ConsoleNotifier struct{}

func NewConsoleNotifier() *ConsoleNotifier {
	return &ConsoleNotifier{}
}

func (n *ConsoleNotifier) Send(ctx context.Context, rem *model.Reminder) (model.AttemptResult, error) {
	fmt.Printf(
		"Reminder %s for owner=%s: %s\n",
		rem.ID,
		rem.OwnerID,
		renderText(rem),
	)
	return model.AttemptDelivered, nil
}

func (n *ConsoleNotifier) NotifyFailure(ctx context.Context, rem *model.Reminder) {
	fmt.Printf(
		"Reminder %s for owner=%s could not be delivered, giving up\n",
		rem.ID,
		rem.OwnerID,
	)
}

func renderText(rem *model.Reminder) string {
	if rem.Title != "" {
		return rem.Title + ": " + rem.Message
	}
	return rem.Message
}
