package notify

import (
	"context"

	"github.com/rs/zerolog"
)

// Terminal writes notifications through the structured logger, so they land
// in the console and the rotated log file alongside everything else.
type Terminal struct {
	logger zerolog.Logger
}

// NewTerminal creates a terminal channel.
func NewTerminal(logger zerolog.Logger) *Terminal {
	return &Terminal{logger: logger}
}

func (t *Terminal) Name() string { return "terminal" }

// Send logs the notification at a level matching its type.
func (t *Terminal) Send(_ context.Context, n Notification) error {
	event := t.logger.Info()
	if n.Type == NotificationError || n.Type == NotificationAuth {
		event = t.logger.Error()
	}
	event.
		Str("notification", string(n.Type)).
		Str("title", n.Title).
		Msg(n.Message)
	return nil
}
