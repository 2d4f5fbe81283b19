package model

import "github.com/google/uuid"

// DispatchJob is the queue payload linking a claimed reminder to a worker.
// It carries only the id: the worker re-reads the record so that a
// cancellation racing the queue is observed before any send.
type DispatchJob struct {
	ReminderID uuid.UUID `json:"reminder_id"`
}
