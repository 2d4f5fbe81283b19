package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"reminderd/internal/model"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

type fakeStore struct {
	mu          sync.Mutex
	reminders   map[uuid.UUID]*model.Reminder
	listErr     error
	claimDenied bool
	releaseErr  error
	released    []uuid.UUID
}

func newFakeStore(rems ...*model.Reminder) *fakeStore {
	s := &fakeStore{reminders: map[uuid.UUID]*model.Reminder{}}
	for _, r := range rems {
		s.reminders[r.ID] = r
	}
	return s
}

func (s *fakeStore) CreateReminder(ctx context.Context, r *model.Reminder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reminders[r.ID] = r
	return nil
}

func (s *fakeStore) GetReminder(ctx context.Context, id uuid.UUID) (*model.Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reminders[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return r, nil
}

func (s *fakeStore) ListDue(ctx context.Context, now time.Time, limit int) ([]*model.Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	var due []*model.Reminder
	for _, r := range s.reminders {
		if r.Status == model.StatusPending && !r.DueAt.After(now) {
			if r.ExpiresAt != nil && !r.ExpiresAt.After(now) {
				continue
			}
			due = append(due, r)
			if len(due) == limit {
				break
			}
		}
	}
	return due, nil
}

func (s *fakeStore) Claim(ctx context.Context, id uuid.UUID, expected model.Status) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reminders[id]
	if s.claimDenied || !ok || r.Status != expected {
		return false, nil
	}
	r.Status = model.StatusDispatching
	return true, nil
}

func (s *fakeStore) Release(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.releaseErr != nil {
		return s.releaseErr
	}
	if r, ok := s.reminders[id]; ok && r.Status == model.StatusDispatching {
		r.Status = model.StatusPending
		s.released = append(s.released, id)
	}
	return nil
}

func (s *fakeStore) ReleaseStale(ctx context.Context, olderThan time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, r := range s.reminders {
		if r.Status == model.StatusDispatching && !r.UpdatedAt.After(olderThan) {
			r.Status = model.StatusPending
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) ApplyAttempt(ctx context.Context, id uuid.UUID, tr model.Transition) (bool, error) {
	return false, nil
}

func (s *fakeStore) CancelReminder(ctx context.Context, id uuid.UUID, ownerID string) (bool, error) {
	return false, nil
}

func (s *fakeStore) ListByOwner(ctx context.Context, ownerID string) ([]*model.Reminder, error) {
	return nil, nil
}

func (s *fakeStore) MarkExpired(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, r := range s.reminders {
		if r.Status == model.StatusPending && r.ExpiresAt != nil && !r.ExpiresAt.After(now) {
			r.Status = model.StatusExpired
			n++
		}
	}
	return n, nil
}

type fakeQueue struct {
	mu         sync.Mutex
	jobs       []model.DispatchJob
	publishErr error
}

func (q *fakeQueue) PublishDispatch(ctx context.Context, job model.DispatchJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.publishErr != nil {
		return q.publishErr
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func pending(due time.Time) *model.Reminder {
	return &model.Reminder{
		ID:      uuid.New(),
		OwnerID: "42",
		Message: "stretch",
		DueAt:   due,
		Status:  model.StatusPending,
	}
}

func TestScanOnce_EnqueuesDueReminders(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	dueRem := pending(now.Add(-time.Minute))
	futureRem := pending(now.Add(time.Hour))
	store := newFakeStore(dueRem, futureRem)
	q := &fakeQueue{}

	s := New(store, q, &fakeClock{now: now}, time.Second, 100, 5*time.Minute)

	enqueued, err := s.ScanOnce(context.Background())
	if err != nil {
		t.Fatalf("ScanOnce: %v", err)
	}
	if enqueued != 1 {
		t.Fatalf("enqueued = %d, want 1", enqueued)
	}
	if len(q.jobs) != 1 || q.jobs[0].ReminderID != dueRem.ID {
		t.Fatalf("jobs = %+v, want single job for %s", q.jobs, dueRem.ID)
	}
	if dueRem.Status != model.StatusDispatching {
		t.Fatalf("due reminder status = %s, want dispatching", dueRem.Status)
	}
	if futureRem.Status != model.StatusPending {
		t.Fatalf("future reminder must never be dispatched before due_at, status = %s", futureRem.Status)
	}
}

func TestScanOnce_IdempotentPerTick(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rem := pending(now.Add(-time.Second))
	store := newFakeStore(rem)
	q := &fakeQueue{}

	s := New(store, q, &fakeClock{now: now}, time.Second, 100, 5*time.Minute)

	if _, err := s.ScanOnce(context.Background()); err != nil {
		t.Fatalf("first scan: %v", err)
	}
	// second scan over unchanged state: claim is the sole gate, no new jobs
	if _, err := s.ScanOnce(context.Background()); err != nil {
		t.Fatalf("second scan: %v", err)
	}
	if len(q.jobs) != 1 {
		t.Fatalf("jobs = %d, want exactly 1 after re-running the scan", len(q.jobs))
	}
}

func TestScanOnce_LostClaimIsSkippedSilently(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rem := pending(now.Add(-time.Second))
	store := newFakeStore(rem)
	// a concurrent scanner wins the claim between list and claim
	store.claimDenied = true
	q := &fakeQueue{}

	s := New(store, q, &fakeClock{now: now}, time.Second, 100, 5*time.Minute)

	enqueued, err := s.ScanOnce(context.Background())
	if err != nil {
		t.Fatalf("ScanOnce: %v", err)
	}
	if enqueued != 0 || len(q.jobs) != 0 {
		t.Fatalf("lost claim must not enqueue, got %d jobs", len(q.jobs))
	}
}

func TestScanOnce_EnqueueFailureReleasesClaim(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rem := pending(now.Add(-time.Second))
	store := newFakeStore(rem)
	q := &fakeQueue{publishErr: errors.New("broker down")}

	s := New(store, q, &fakeClock{now: now}, time.Second, 100, 5*time.Minute)

	enqueued, err := s.ScanOnce(context.Background())
	if err != nil {
		t.Fatalf("ScanOnce: %v", err)
	}
	if enqueued != 0 {
		t.Fatalf("enqueued = %d, want 0", enqueued)
	}
	if rem.Status != model.StatusPending {
		t.Fatalf("status = %s, want pending restored by compensation", rem.Status)
	}
	if len(store.released) != 1 || store.released[0] != rem.ID {
		t.Fatalf("released = %v, want [%s]", store.released, rem.ID)
	}

	// broker back up: next tick picks the reminder again
	q.publishErr = nil
	enqueued, err = s.ScanOnce(context.Background())
	if err != nil || enqueued != 1 {
		t.Fatalf("retry scan = (%d, %v), want (1, nil)", enqueued, err)
	}
}

func TestScanOnce_StoreUnavailable(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := newFakeStore(pending(now.Add(-time.Second)))
	store.listErr = errors.New("connection refused")
	q := &fakeQueue{}

	s := New(store, q, &fakeClock{now: now}, time.Second, 100, 5*time.Minute)

	if _, err := s.ScanOnce(context.Background()); err == nil {
		t.Fatal("expected error when the store is unavailable")
	}
	if len(q.jobs) != 0 {
		t.Fatalf("no jobs may be enqueued on a failed scan, got %d", len(q.jobs))
	}
}

func TestTick_SweepsExpired(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	expired := pending(now.Add(-2 * time.Hour))
	expiry := now.Add(-time.Hour)
	expired.ExpiresAt = &expiry
	store := newFakeStore(expired)
	q := &fakeQueue{}

	s := New(store, q, &fakeClock{now: now}, time.Second, 100, 5*time.Minute)
	s.tick(context.Background())

	if expired.Status != model.StatusExpired {
		t.Fatalf("status = %s, want expired", expired.Status)
	}
	if len(q.jobs) != 0 {
		t.Fatalf("expired reminder must not be dispatched, got %d jobs", len(q.jobs))
	}
}

func TestTick_StaleClaimRecovered(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rem := pending(now.Add(-time.Second))
	rem.UpdatedAt = now
	store := newFakeStore(rem)
	store.releaseErr = errors.New("connection refused")
	q := &fakeQueue{publishErr: errors.New("broker down")}
	clk := &fakeClock{now: now}

	s := New(store, q, clk, time.Second, 100, 5*time.Minute)

	// enqueue and the compensating release both fail: the claim is stranded
	s.tick(context.Background())
	if rem.Status != model.StatusDispatching {
		t.Fatalf("status = %s, want dispatching after failed release", rem.Status)
	}

	// dependencies recover, but the claim is too fresh for the sweep
	store.releaseErr = nil
	q.publishErr = nil
	s.tick(context.Background())
	if len(q.jobs) != 0 {
		t.Fatalf("fresh claim must not be swept, got %d jobs", len(q.jobs))
	}

	// past the threshold the sweep releases the claim and the scan redispatches
	clk.now = now.Add(6 * time.Minute)
	s.tick(context.Background())
	if len(q.jobs) != 1 || q.jobs[0].ReminderID != rem.ID {
		t.Fatalf("jobs = %+v, want the stranded reminder redispatched", q.jobs)
	}
	if rem.Status != model.StatusDispatching {
		t.Fatalf("status = %s, want dispatching after redispatch", rem.Status)
	}
}

func TestScanOnce_CancelledNeverListed(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rem := pending(now.Add(-time.Minute))
	rem.Status = model.StatusCancelled
	store := newFakeStore(rem)
	q := &fakeQueue{}

	s := New(store, q, &fakeClock{now: now}, time.Second, 100, 5*time.Minute)

	enqueued, err := s.ScanOnce(context.Background())
	if err != nil {
		t.Fatalf("ScanOnce: %v", err)
	}
	if enqueued != 0 || len(q.jobs) != 0 {
		t.Fatalf("cancelled reminder must never be scanned, got %d jobs", len(q.jobs))
	}
}
