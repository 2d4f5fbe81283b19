package model

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending     Status = "pending"
	StatusDispatching Status = "dispatching"
	StatusFired       Status = "fired"
	StatusFailed      Status = "failed"
	StatusCancelled   Status = "cancelled"
	StatusExpired     Status = "expired"
)

func (s Status) String() string {
	return string(s)
}

// Terminal reports whether the status can never change again.
func (s Status) Terminal() bool {
	switch s {
	case StatusFired, StatusFailed, StatusCancelled, StatusExpired:
		return true
	}
	return false
}

var (
	ErrNotFound          = errors.New("reminder not found")
	ErrBadSchedule       = errors.New("invalid schedule")
	ErrDueInPast         = errors.New("due time is in the past")
	ErrEmptyMessage      = errors.New("message must not be empty")
	ErrMessageTooLong    = errors.New("message exceeds size limit")
	ErrInvalidRecurrence = errors.New("recurrence interval is too short")
	ErrExpiryBeforeDue   = errors.New("expiry must be after due time")
)

type Reminder struct {
	ID           uuid.UUID     `json:"id"`
	OwnerID      string        `json:"owner_id"`
	Title        string        `json:"title,omitempty"`
	Message      string        `json:"message"`
	DueAt        time.Time     `json:"due_at"`
	RecurEvery   time.Duration `json:"recur_every,omitempty"` // 0 = one-shot
	ExpiresAt    *time.Time    `json:"expires_at,omitempty"`
	Status       Status        `json:"status"`
	AttemptCount int           `json:"attempt_count"`
	LastError    *string       `json:"last_error,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

func (r *Reminder) Recurring() bool {
	return r.RecurEvery > 0
}
