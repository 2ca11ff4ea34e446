// Package notify delivers trade and authentication alerts.
package notify

import (
	"context"
	"fmt"
	"time"

	"mstock-trader/internal/models"
	"mstock-trader/pkg/utils"
)

// Notification represents one outbound message.
type Notification struct {
	Type      NotificationType
	Title     string
	Message   string
	Timestamp time.Time
}

// NotificationType classifies a notification.
type NotificationType string

const (
	NotificationTrade NotificationType = "trade"
	NotificationAuth  NotificationType = "auth"
	NotificationError NotificationType = "error"
	NotificationInfo  NotificationType = "info"
)

// Notifier defines a delivery channel.
type Notifier interface {
	Name() string
	Send(ctx context.Context, n Notification) error
}

// Multi fans a notification out to every channel. Channel failures are
// independent; the first error is returned after all channels were tried.
type Multi struct {
	channels []Notifier
}

// NewMulti creates a fan-out notifier.
func NewMulti(channels ...Notifier) *Multi {
	return &Multi{channels: channels}
}

func (m *Multi) Name() string { return "multi" }

// Send delivers to all channels.
func (m *Multi) Send(ctx context.Context, n Notification) error {
	var firstErr error
	for _, ch := range m.channels {
		if err := ch.Send(ctx, n); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("%s: %w", ch.Name(), err)
		}
	}
	return firstErr
}

// TradeAlert builds the notification for a placed order.
func TradeAlert(a models.Attempt) Notification {
	title := fmt.Sprintf("%s %s %d @ %s", a.Side, a.Symbol, a.Qty, utils.FormatIndianCurrency(a.Price))
	return Notification{
		Type:  NotificationTrade,
		Title: title,
		Message: fmt.Sprintf("%s on %s (RSI %.1f, reason %s, order %s)",
			a.Side, a.Exchange, a.RSI, a.Reason, a.OrderID),
		Timestamp: a.Timestamp,
	}
}

// AuthAlert builds the notification for an expired session that could not
// be refreshed, the one condition that needs a human.
func AuthAlert(err error) Notification {
	return Notification{
		Type:      NotificationAuth,
		Title:     "Broker session expired",
		Message:   fmt.Sprintf("Automatic token refresh failed: %v. Re-authenticate with the auth command.", err),
		Timestamp: time.Now(),
	}
}

// StopLossAlert builds the alert-only stop loss breach notification.
func StopLossAlert(symbol string, price, wap float64) Notification {
	return Notification{
		Type:  NotificationError,
		Title: fmt.Sprintf("Stop loss breached: %s", symbol),
		Message: fmt.Sprintf("Price %s is below stop level (entry %s). Auto-execute is off; no order was placed.",
			utils.FormatIndianCurrency(price), utils.FormatIndianCurrency(wap)),
		Timestamp: time.Now(),
	}
}
