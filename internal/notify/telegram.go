package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"mstock-trader/internal/config"
	"mstock-trader/pkg/utils"
)

const telegramAPI = "https://api.telegram.org"

// Telegram delivers notifications through a Telegram bot. Sends retry with
// backoff: alerts are the bot's only channel to a human, dropping one on a
// transient failure is worse than a short delay.
type Telegram struct {
	botToken string
	chatID   string
	client   *http.Client
	retry    utils.RetryConfig
}

// NewTelegram creates a Telegram channel from config.
func NewTelegram(cfg config.TelegramConfig) *Telegram {
	return &Telegram{
		botToken: cfg.BotToken,
		chatID:   cfg.ChatID,
		client:   &http.Client{Timeout: 10 * time.Second},
		retry: utils.RetryConfig{
			MaxAttempts:   3,
			InitialDelay:  500 * time.Millisecond,
			MaxDelay:      5 * time.Second,
			BackoffFactor: 2.0,
		},
	}
}

func (t *Telegram) Name() string { return "telegram" }

// Send posts the notification as one message.
func (t *Telegram) Send(ctx context.Context, n Notification) error {
	if t.botToken == "" || t.chatID == "" {
		return fmt.Errorf("telegram channel not configured")
	}

	payload, err := json.Marshal(map[string]string{
		"chat_id": t.chatID,
		"text":    fmt.Sprintf("%s\n%s", n.Title, n.Message),
	})
	if err != nil {
		return fmt.Errorf("encoding telegram payload: %w", err)
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", telegramAPI, t.botToken)
	return utils.Retry(ctx, t.retry, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := t.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("telegram returned %d", resp.StatusCode)
		}
		return nil
	})
}
