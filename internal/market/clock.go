// Package market provides IST market-hours logic and the connectivity
// monitor.
package market

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"mstock-trader/internal/models"
	"mstock-trader/pkg/utils"
)

// Clock abstracts the current time so market-hours logic is testable.
type Clock interface {
	Now() time.Time
}

// RealClock reads the system clock.
type RealClock struct{}

// Now returns the current time.
func (RealClock) Now() time.Time { return time.Now() }

const (
	openMinute  = 9*60 + 15  // 09:15 IST
	closeMinute = 15*60 + 30 // 15:30 IST
	preOpenMin  = 9 * 60     // 09:00 IST
)

// StatusAt returns the market status at t.
func StatusAt(t time.Time) models.MarketStatus {
	now := t.In(utils.IndiaLocation)
	if now.Weekday() == time.Saturday || now.Weekday() == time.Sunday {
		return models.MarketClosed
	}

	minute := now.Hour()*60 + now.Minute()
	switch {
	case minute >= preOpenMin && minute < openMinute:
		return models.MarketPreOpen
	// The session interval is inclusive on both ends; 15:30 is a trading
	// minute, matching the history session filter.
	case minute >= openMinute && minute <= closeMinute:
		return models.MarketOpen
	default:
		return models.MarketClosed
	}
}

// IsOpenAt reports whether the equity session is open at t. The session is
// Monday to Friday, 09:15 to 15:30 IST. Exchange holidays are not tracked;
// a holiday behaves like an open day with no fills.
func IsOpenAt(t time.Time) bool {
	return StatusAt(t) == models.MarketOpen
}

// NextOpenAfter returns the next session open strictly after t.
func NextOpenAfter(t time.Time) time.Time {
	now := t.In(utils.IndiaLocation)
	next := time.Date(now.Year(), now.Month(), now.Day(), 9, 15, 0, 0, utils.IndiaLocation)
	if !now.Before(next) {
		next = next.AddDate(0, 0, 1)
	}
	for next.Weekday() == time.Saturday || next.Weekday() == time.Sunday {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// WaitUntilOpen blocks until the market opens or ctx is cancelled. It
// polls with short ticks so cancellation is prompt, and logs the wait once
// rather than every tick.
func WaitUntilOpen(ctx context.Context, clock Clock, logger zerolog.Logger) error {
	if IsOpenAt(clock.Now()) {
		return nil
	}

	next := NextOpenAfter(clock.Now())
	logger.Info().
		Time("next_open", next).
		Msg("Market closed, waiting for next session")

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if IsOpenAt(clock.Now()) {
				logger.Info().Msg("Market open")
				return nil
			}
		}
	}
}
