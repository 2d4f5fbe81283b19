package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/retry"

	"reminderd/internal/model"
)

const reminderColumns = `id, owner_id, title, message, due_at, recur_every_seconds, expires_at, status, attempt_count, last_error, created_at, updated_at`

type ReminderRepository struct {
	db       *dbpg.DB
	strategy retry.Strategy
}

func NewReminderRepository(db *dbpg.DB, strategy retry.Strategy) *ReminderRepository {
	return &ReminderRepository{
		db:       db,
		strategy: strategy,
	}
}

func (r *ReminderRepository) CreateReminder(ctx context.Context, rem *model.Reminder) error {
	query := `INSERT INTO reminders (` + reminderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := r.db.ExecWithRetry(
		ctx,
		r.strategy,
		query,
		rem.ID.String(),
		rem.OwnerID,
		rem.Title,
		rem.Message,
		rem.DueAt.UTC(),
		int64(rem.RecurEvery/time.Second),
		rem.ExpiresAt,
		rem.Status.String(),
		rem.AttemptCount,
		rem.LastError,
		rem.CreatedAt.UTC(),
		rem.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert reminder: %w", err)
	}
	return nil
}

func (r *ReminderRepository) GetReminder(ctx context.Context, id uuid.UUID) (*model.Reminder, error) {
	query := `SELECT ` + reminderColumns + ` FROM reminders WHERE id = $1`

	row, err := r.db.QueryRowWithRetry(ctx, r.strategy, query, id.String())
	if err != nil {
		return nil, fmt.Errorf("select reminder by id: %w", err)
	}

	rem, err := scanReminder(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rem, nil
}

func (r *ReminderRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]*model.Reminder, error) {
	query := `SELECT ` + reminderColumns + `
		FROM reminders
		WHERE status = 'pending'
		  AND due_at <= $1
		  AND (expires_at IS NULL OR expires_at > $1)
		ORDER BY due_at ASC, id ASC
		LIMIT $2`

	rows, err := r.db.QueryWithRetry(ctx, r.strategy, query, now.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("select due reminders: %w", err)
	}
	defer rows.Close()

	result := []*model.Reminder{}
	for rows.Next() {
		rem, err := scanReminder(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, rem)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate due reminders: %w", err)
	}
	return result, nil
}

// Claim is the compare-and-set that prevents double dispatch: the status guard
// in the WHERE clause makes concurrent claimants serialize on the row, and the
// affected-rows count tells the loser it lost.
func (r *ReminderRepository) Claim(ctx context.Context, id uuid.UUID, expected model.Status) (bool, error) {
	query := `UPDATE reminders
		SET status = 'dispatching', updated_at = NOW()
		WHERE id = $1 AND status = $2`

	res, err := r.db.ExecWithRetry(ctx, r.strategy, query, id.String(), expected.String())
	if err != nil {
		return false, fmt.Errorf("claim reminder: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func (r *ReminderRepository) Release(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE reminders
		SET status = 'pending', updated_at = NOW()
		WHERE id = $1 AND status = 'dispatching'`

	_, err := r.db.ExecWithRetry(ctx, r.strategy, query, id.String())
	if err != nil {
		return fmt.Errorf("release claim: %w", err)
	}
	return nil
}

// ReleaseStale sweeps claims whose holder never came back: a scheduler that
// crashed between claim and publish, or a release that failed after an
// enqueue error. The updated_at guard keeps claims still in flight untouched.
func (r *ReminderRepository) ReleaseStale(ctx context.Context, olderThan time.Time) (int64, error) {
	query := `UPDATE reminders
		SET status = 'pending', updated_at = NOW()
		WHERE status = 'dispatching' AND updated_at <= $1`

	res, err := r.db.ExecWithRetry(ctx, r.strategy, query, olderThan.UTC())
	if err != nil {
		return 0, fmt.Errorf("release stale claims: %w", err)
	}
	return res.RowsAffected()
}

func (r *ReminderRepository) ApplyAttempt(ctx context.Context, id uuid.UUID, tr model.Transition) (bool, error) {
	query := `UPDATE reminders
		SET status = $2, due_at = $3, attempt_count = $4, last_error = $5, updated_at = NOW()
		WHERE id = $1 AND status = 'dispatching'`

	res, err := r.db.ExecWithRetry(
		ctx,
		r.strategy,
		query,
		id.String(),
		tr.Status.String(),
		tr.DueAt.UTC(),
		tr.AttemptCount,
		tr.LastError,
	)
	if err != nil {
		return false, fmt.Errorf("apply attempt: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func (r *ReminderRepository) CancelReminder(ctx context.Context, id uuid.UUID, ownerID string) (bool, error) {
	query := `UPDATE reminders
		SET status = 'cancelled', updated_at = NOW()
		WHERE id = $1 AND owner_id = $2 AND status IN ('pending', 'dispatching')`

	res, err := r.db.ExecWithRetry(ctx, r.strategy, query, id.String(), ownerID)
	if err != nil {
		return false, fmt.Errorf("cancel reminder: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func (r *ReminderRepository) ListByOwner(ctx context.Context, ownerID string) ([]*model.Reminder, error) {
	query := `SELECT ` + reminderColumns + `
		FROM reminders
		WHERE owner_id = $1
		ORDER BY due_at ASC, id ASC`

	rows, err := r.db.QueryWithRetry(ctx, r.strategy, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("select reminders by owner: %w", err)
	}
	defer rows.Close()

	result := []*model.Reminder{}
	for rows.Next() {
		rem, err := scanReminder(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, rem)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate owner reminders: %w", err)
	}
	return result, nil
}

func (r *ReminderRepository) MarkExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `UPDATE reminders
		SET status = 'expired', updated_at = NOW()
		WHERE status = 'pending' AND expires_at IS NOT NULL AND expires_at <= $1`

	res, err := r.db.ExecWithRetry(ctx, r.strategy, query, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("mark expired: %w", err)
	}
	return res.RowsAffected()
}

func scanReminder(scan func(dest ...any) error) (*model.Reminder, error) {
	var (
		id           string
		ownerID      string
		title        string
		message      string
		dueAt        time.Time
		recurSeconds int64
		expiresAt    *time.Time
		status       string
		attemptCount int
		lastError    *string
		createdAt    time.Time
		updatedAt    time.Time
	)

	if err := scan(
		&id,
		&ownerID,
		&title,
		&message,
		&dueAt,
		&recurSeconds,
		&expiresAt,
		&status,
		&attemptCount,
		&lastError,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}

	parsedID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid reminder id in postgres: %w", err)
	}

	return &model.Reminder{
		ID:           parsedID,
		OwnerID:      ownerID,
		Title:        title,
		Message:      message,
		DueAt:        dueAt,
		RecurEvery:   time.Duration(recurSeconds) * time.Second,
		ExpiresAt:    expiresAt,
		Status:       model.Status(status),
		AttemptCount: attemptCount,
		LastError:    lastError,
		CreatedAt:    createdAt,
		UpdatedAt:    updatedAt,
	}, nil
}
