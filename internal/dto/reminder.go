package dto

import (
	"time"

	"reminderd/internal/model"
)

type CreateReminderRequest struct {
	OwnerID   string `json:"owner_id" binding:"required"`
	Title     string `json:"title"`
	Message   string `json:"message" binding:"required"`
	In        string `json:"in"`
	At        string `json:"at"`
	Every     string `json:"every"`
	ExpiresAt string `json:"expires_at"`
}

type ReminderResponse struct {
	ID           string     `json:"id"`
	OwnerID      string     `json:"owner_id"`
	Title        string     `json:"title,omitempty"`
	Message      string     `json:"message"`
	DueAt        time.Time  `json:"due_at"`
	Every        string     `json:"every,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	Status       string     `json:"status"`
	AttemptCount int        `json:"attempt_count"`
	LastError    *string    `json:"last_error,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func FromModel(rem *model.Reminder) ReminderResponse {
	resp := ReminderResponse{
		ID:           rem.ID.String(),
		OwnerID:      rem.OwnerID,
		Title:        rem.Title,
		Message:      rem.Message,
		DueAt:        rem.DueAt,
		ExpiresAt:    rem.ExpiresAt,
		Status:       rem.Status.String(),
		AttemptCount: rem.AttemptCount,
		LastError:    rem.LastError,
		CreatedAt:    rem.CreatedAt,
		UpdatedAt:    rem.UpdatedAt,
	}
	if rem.Recurring() {
		resp.Every = rem.RecurEvery.String()
	}
	return resp
}

func FromModels(rems []*model.Reminder) []ReminderResponse {
	out := make([]ReminderResponse, 0, len(rems))
	for _, rem := range rems {
		out = append(out, FromModel(rem))
	}
	return out
}
