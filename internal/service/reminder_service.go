package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/zlog"

	"reminderd/internal/clock"
	"reminderd/internal/model"
	"reminderd/internal/ports"
)

const (
	// creations slightly behind the wall clock are accepted; they fire on
	// the next scan tick
	pastGrace = time.Minute

	maxMessageBytes = 4096 // Telegram hard limit
	minRecurrence   = time.Minute
)

// CreateInput is the inbound create_reminder request. Exactly one of In
// (duration shorthand like "15m") or At (RFC3339, fixed-offset zones ok)
// selects the due time.
type CreateInput struct {
	OwnerID   string
	Title     string
	Message   string
	In        string
	At        string
	Every     string
	ExpiresAt string
}

type ReminderService struct {
	store ports.ReminderStore
	cache ports.ReminderCache
	clk   clock.Clock
}

func NewReminderService(store ports.ReminderStore, cache ports.ReminderCache, clk clock.Clock) *ReminderService {
	return &ReminderService{
		store: store,
		cache: cache,
		clk:   clk,
	}
}

func (s *ReminderService) Create(ctx context.Context, in CreateInput) (*model.Reminder, error) {
	now := s.clk.Now().UTC()

	rem, err := s.buildReminder(in, now)
	if err != nil {
		return nil, err
	}

	if err := s.store.CreateReminder(ctx, rem); err != nil {
		return nil, fmt.Errorf("reminder storage failed to create: %w", err)
	}

	s.trySaveInCache(ctx, rem)

	zlog.Logger.Info().
		Stringer("id", rem.ID).
		Str("owner", rem.OwnerID).
		Time("due_at", rem.DueAt).
		Msg("reminder created")
	return rem, nil
}

func (s *ReminderService) buildReminder(in CreateInput, now time.Time) (*model.Reminder, error) {
	if in.Message == "" {
		return nil, model.ErrEmptyMessage
	}
	if len(in.Message) > maxMessageBytes {
		return nil, model.ErrMessageTooLong
	}

	dueAt, err := resolveDue(in, now)
	if err != nil {
		return nil, err
	}
	if dueAt.Before(now.Add(-pastGrace)) {
		return nil, model.ErrDueInPast
	}

	var every time.Duration
	if in.Every != "" {
		every, err = time.ParseDuration(in.Every)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", model.ErrInvalidRecurrence, err)
		}
		if every < minRecurrence {
			return nil, model.ErrInvalidRecurrence
		}
	}

	var expiresAt *time.Time
	if in.ExpiresAt != "" {
		t, err := time.Parse(time.RFC3339, in.ExpiresAt)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid expires_at %q", model.ErrBadSchedule, in.ExpiresAt)
		}
		utc := t.UTC()
		if !utc.After(dueAt) {
			return nil, model.ErrExpiryBeforeDue
		}
		expiresAt = &utc
	}

	return &model.Reminder{
		ID:         uuid.New(),
		OwnerID:    in.OwnerID,
		Title:      in.Title,
		Message:    in.Message,
		DueAt:      dueAt,
		RecurEvery: every,
		ExpiresAt:  expiresAt,
		Status:     model.StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

func resolveDue(in CreateInput, now time.Time) (time.Time, error) {
	switch {
	case in.In != "" && in.At != "":
		return time.Time{}, fmt.Errorf("%w: only one of 'in' and 'at' may be set", model.ErrBadSchedule)
	case in.In != "":
		d, err := time.ParseDuration(in.In)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: invalid duration %q", model.ErrBadSchedule, in.In)
		}
		return now.Add(d), nil
	case in.At != "":
		t, err := time.Parse(time.RFC3339, in.At)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: invalid time %q", model.ErrBadSchedule, in.At)
		}
		return t.UTC(), nil
	default:
		return time.Time{}, fmt.Errorf("%w: one of 'in' or 'at' is required", model.ErrBadSchedule)
	}
}

func (s *ReminderService) Get(ctx context.Context, id uuid.UUID) (*model.Reminder, error) {
	if rem, err := s.cache.GetReminder(ctx, id); err == nil {
		return rem, nil
	}

	rem, err := s.store.GetReminder(ctx, id)
	if err != nil {
		return nil, err
	}
	s.trySaveInCache(ctx, rem)
	return rem, nil
}

func (s *ReminderService) ListByOwner(ctx context.Context, ownerID string) ([]*model.Reminder, error) {
	return s.store.ListByOwner(ctx, ownerID)
}

// Cancel moves an owned pending or dispatching reminder to cancelled. A false
// return covers unknown ids, foreign owners and already-terminal records
// alike, so the caller learns nothing about other people's reminders.
func (s *ReminderService) Cancel(ctx context.Context, ownerID string, id uuid.UUID) (bool, error) {
	cancelled, err := s.store.CancelReminder(ctx, id, ownerID)
	if err != nil {
		return false, fmt.Errorf("cancel reminder: %w", err)
	}
	if !cancelled {
		return false, nil
	}

	if err := s.cache.DeleteReminder(ctx, id); err != nil {
		zlog.Logger.Error().Err(err).Stringer("id", id).Msg("failed to drop cancelled reminder from cache")
	}

	zlog.Logger.Info().Stringer("id", id).Str("owner", ownerID).Msg("reminder cancelled")
	return true, nil
}

func (s *ReminderService) trySaveInCache(ctx context.Context, rem *model.Reminder) {
	go func() {
		if err := s.cache.SaveReminder(ctx, rem); err != nil {
			zlog.Logger.Error().Err(err).Stringer("id", rem.ID).Msg("error saving reminder in cache")
		}
	}()
}
