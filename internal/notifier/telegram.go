package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/wb-go/wbf/zlog"

	"reminderd/internal/model"
)

const defaultAPIBase = "https://api.telegram.org"

// TelegramNotifier delivers reminders through the Telegram Bot API. The owner
// id is the chat id. Sends are not idempotent: a worker crash between send and
// store commit can duplicate a message, which is acceptable for reminders.
type TelegramNotifier struct {
	token   string
	apiBase string
	client  *http.Client
}

func NewTelegramNotifier(token string) *TelegramNotifier {
	return &TelegramNotifier{
		token:   token,
		apiBase: defaultAPIBase,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type sendMessageRequest struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

func (n *TelegramNotifier) Send(ctx context.Context, rem *model.Reminder) (model.AttemptResult, error) {
	return n.sendText(ctx, rem.OwnerID, "🔔 "+renderText(rem))
}

func (n *TelegramNotifier) NotifyFailure(ctx context.Context, rem *model.Reminder) {
	text := fmt.Sprintf("⚠️ Could not deliver your reminder %q, giving up.", renderText(rem))
	if _, err := n.sendText(ctx, rem.OwnerID, text); err != nil {
		zlog.Logger.Error().
			Err(err).
			Stringer("id", rem.ID).
			Msg("failed to send failure notice")
	}
}

func (n *TelegramNotifier) sendText(ctx context.Context, chatID, text string) (model.AttemptResult, error) {
	body, err := json.Marshal(sendMessageRequest{ChatID: chatID, Text: text})
	if err != nil {
		return model.AttemptPermanent, fmt.Errorf("marshal sendMessage: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.apiBase, n.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return model.AttemptPermanent, fmt.Errorf("build sendMessage request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		// network trouble, broker will see a retryable failure
		return model.AttemptRetryable, fmt.Errorf("telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		return model.AttemptDelivered, nil
	}

	payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	err = fmt.Errorf("telegram responded %d: %s", resp.StatusCode, payload)

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return model.AttemptRetryable, err
	}
	// 400/403 and friends: bad chat id, bot blocked by the user
	return model.AttemptPermanent, err
}
