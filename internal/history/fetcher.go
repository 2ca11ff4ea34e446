// Package history fetches and prepares candle series for indicator input.
package history

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"mstock-trader/internal/broker"
	apperrors "mstock-trader/internal/errors"
	"mstock-trader/internal/models"
	"mstock-trader/pkg/utils"
)

// Getter is the slice of the broker the fetcher needs.
type Getter interface {
	GetHistorical(ctx context.Context, req broker.HistoricalRequest) ([]models.Candle, error)
}

const (
	// defaultIntradayDays is the lookback for intraday timeframes, wide
	// enough to seed a 14-period RSI across weekends and holidays.
	defaultIntradayDays = 15
	// defaultDailyDays is the lookback for daily candles, covering the
	// 200-session trend window.
	defaultDailyDays = 365
)

// Fetcher fetches candles and applies the session filter.
type Fetcher struct {
	getter Getter
	now    func() time.Time
	logger zerolog.Logger
}

// NewFetcher creates a candle fetcher.
func NewFetcher(getter Getter, logger zerolog.Logger) *Fetcher {
	return &Fetcher{getter: getter, now: utils.NowIST, logger: logger}
}

// NewFetcherAt creates a fetcher with an injected clock for tests.
func NewFetcherAt(getter Getter, now func() time.Time, logger zerolog.Logger) *Fetcher {
	return &Fetcher{getter: getter, now: now, logger: logger}
}

// Fetch returns session-filtered candles for the entry's timeframe, erring
// with ErrInsufficientHistory when fewer than minBars survive the filter.
func (f *Fetcher) Fetch(ctx context.Context, entry models.WatchlistEntry, token string, minBars int) ([]models.Candle, error) {
	days := defaultIntradayDays
	if !entry.Timeframe.IsIntraday() {
		days = defaultDailyDays
	}

	from, to := Window(f.now(), entry.Timeframe, days)
	candles, err := f.getter.GetHistorical(ctx, broker.HistoricalRequest{
		Symbol:          entry.Symbol,
		Exchange:        entry.Exchange,
		InstrumentToken: token,
		Timeframe:       entry.Timeframe,
		From:            from,
		To:              to,
	})
	if err != nil {
		return nil, err
	}

	if entry.Timeframe.IsIntraday() {
		candles = FilterSession(candles)
	}

	if len(candles) < minBars {
		return nil, apperrors.Wrapf(apperrors.ErrInsufficientHistory,
			"%s %s: %d bars, need %d", entry.Symbol, entry.Timeframe, len(candles), minBars)
	}
	return candles, nil
}

// FetchDaily returns daily candles for the trend filter.
func (f *Fetcher) FetchDaily(ctx context.Context, symbol string, exchange models.Exchange, token string) ([]models.Candle, error) {
	from, to := Window(f.now(), models.Timeframe1d, defaultDailyDays)
	return f.getter.GetHistorical(ctx, broker.HistoricalRequest{
		Symbol:          symbol,
		Exchange:        exchange,
		InstrumentToken: token,
		Timeframe:       models.Timeframe1d,
		From:            from,
		To:              to,
	})
}

// Window computes the fetch window in IST: from is the session open `days`
// back, to is now floored to the last completed frame so a forming bar is
// never requested twice under different closes.
func Window(now time.Time, tf models.Timeframe, days int) (from, to time.Time) {
	now = now.In(utils.IndiaLocation)
	base := now.AddDate(0, 0, -days)
	from = time.Date(base.Year(), base.Month(), base.Day(), 9, 15, 0, 0, utils.IndiaLocation)
	to = FloorToFrame(now, tf.Minutes())
	return from, to
}

// FloorToFrame truncates t to the start of its frame.
func FloorToFrame(t time.Time, minutes int) time.Time {
	if minutes <= 0 {
		minutes = 60
	}
	discard := time.Duration((t.Minute()%minutes)*60+t.Second())*time.Second +
		time.Duration(t.Nanosecond())
	return t.Add(-discard)
}

// FilterSession keeps candles inside the NSE session, 09:15 to 15:30 IST
// inclusive. Exchange feeds occasionally emit pre-open or post-close bars
// that would skew the RSI.
func FilterSession(candles []models.Candle) []models.Candle {
	out := candles[:0:0]
	for _, c := range candles {
		t := c.Timestamp.In(utils.IndiaLocation)
		minute := t.Hour()*60 + t.Minute()
		if minute >= 9*60+15 && minute <= 15*60+30 {
			out = append(out, c)
		}
	}
	return out
}
