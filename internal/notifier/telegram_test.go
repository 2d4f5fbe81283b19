package notifier

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"reminderd/internal/model"
)

func testTelegram(t *testing.T, status int) *TelegramNotifier {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bottoken/sendMessage" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)

	n := NewTelegramNotifier("token")
	n.apiBase = srv.URL
	return n
}

func sampleReminder() *model.Reminder {
	return &model.Reminder{
		ID:      uuid.New(),
		OwnerID: "1001",
		Title:   "Water",
		Message: "drink up",
	}
}

func TestTelegramSend_OutcomeMapping(t *testing.T) {
	cases := []struct {
		status int
		want   model.AttemptResult
	}{
		{http.StatusOK, model.AttemptDelivered},
		{http.StatusTooManyRequests, model.AttemptRetryable},
		{http.StatusBadGateway, model.AttemptRetryable},
		{http.StatusForbidden, model.AttemptPermanent},
		{http.StatusBadRequest, model.AttemptPermanent},
	}

	for _, tc := range cases {
		n := testTelegram(t, tc.status)
		got, err := n.Send(context.Background(), sampleReminder())
		if got != tc.want {
			t.Errorf("status %d: result = %v, want %v", tc.status, got, tc.want)
		}
		if tc.status == http.StatusOK && err != nil {
			t.Errorf("status 200: err = %v", err)
		}
		if tc.status != http.StatusOK && err == nil {
			t.Errorf("status %d: expected an error", tc.status)
		}
	}
}

func TestTelegramSend_NetworkErrorIsRetryable(t *testing.T) {
	n := NewTelegramNotifier("token")
	n.apiBase = "http://127.0.0.1:1" // nothing listens here

	got, err := n.Send(context.Background(), sampleReminder())
	if got != model.AttemptRetryable {
		t.Fatalf("result = %v, want retryable on network failure", got)
	}
	if err == nil {
		t.Fatal("expected an error")
	}
}
