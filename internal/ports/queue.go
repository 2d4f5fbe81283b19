package ports

import (
	"context"

	"reminderd/internal/model"
)

type JobPublisher interface {
	PublishDispatch(ctx context.Context, job model.DispatchJob) error
}
