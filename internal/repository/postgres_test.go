package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/retry"

	"reminderd/internal/model"
)

func newMockRepo(t *testing.T) (*ReminderRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	repo := NewReminderRepository(&dbpg.DB{Master: db}, retry.Strategy{Attempts: 1})
	return repo, mock
}

func reminderRow(rows *sqlmock.Rows, id uuid.UUID, dueAt time.Time) *sqlmock.Rows {
	return rows.AddRow(
		id.String(), "42", "", "drink water", dueAt, int64(0), nil,
		"pending", 0, nil, dueAt, dueAt,
	)
}

func TestListDue_OrderAndLimit(t *testing.T) {
	repo, mock := newMockRepo(t)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	first := uuid.New()
	second := uuid.New()
	third := uuid.New()

	rows := sqlmock.NewRows([]string{
		"id", "owner_id", "title", "message", "due_at", "recur_every_seconds",
		"expires_at", "status", "attempt_count", "last_error", "created_at", "updated_at",
	})
	rows = reminderRow(rows, first, now.Add(-3*time.Minute))
	rows = reminderRow(rows, second, now.Add(-2*time.Minute))
	rows = reminderRow(rows, third, now.Add(-time.Minute))

	// the due scan must stay ordered oldest-first with an id tie-break and a
	// bounded batch; a query regression here silently breaks scan fairness
	mock.ExpectQuery(`ORDER BY due_at ASC, id ASC\s+LIMIT \$2`).
		WithArgs(now, 3).
		WillReturnRows(rows)

	due, err := repo.ListDue(context.Background(), now, 3)
	if err != nil {
		t.Fatalf("ListDue: %v", err)
	}
	if len(due) != 3 {
		t.Fatalf("got %d reminders, want 3", len(due))
	}
	for i, want := range []uuid.UUID{first, second, third} {
		if due[i].ID != want {
			t.Fatalf("position %d = %s, want %s", i, due[i].ID, want)
		}
	}
	for i := 1; i < len(due); i++ {
		if due[i].DueAt.Before(due[i-1].DueAt) {
			t.Fatalf("due_at out of order at %d: %v after %v", i, due[i].DueAt, due[i-1].DueAt)
		}
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestClaim_RowsAffectedGate(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.New()

	mock.ExpectExec(`UPDATE reminders`).
		WithArgs(id.String(), "pending").
		WillReturnResult(sqlmock.NewResult(0, 1))
	claimed, err := repo.Claim(context.Background(), id, model.StatusPending)
	if err != nil || !claimed {
		t.Fatalf("Claim = (%v, %v), want (true, nil)", claimed, err)
	}

	// concurrent claimant already flipped the row: zero rows affected
	mock.ExpectExec(`UPDATE reminders`).
		WithArgs(id.String(), "pending").
		WillReturnResult(sqlmock.NewResult(0, 0))
	claimed, err = repo.Claim(context.Background(), id, model.StatusPending)
	if err != nil || claimed {
		t.Fatalf("Claim = (%v, %v), want (false, nil) when the race is lost", claimed, err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestReleaseStale_ThresholdPassedThrough(t *testing.T) {
	repo, mock := newMockRepo(t)
	olderThan := time.Date(2025, 6, 1, 11, 55, 0, 0, time.UTC)

	mock.ExpectExec(`status = 'dispatching' AND updated_at <= \$1`).
		WithArgs(olderThan).
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := repo.ReleaseStale(context.Background(), olderThan)
	if err != nil {
		t.Fatalf("ReleaseStale: %v", err)
	}
	if n != 2 {
		t.Fatalf("released = %d, want 2", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}
