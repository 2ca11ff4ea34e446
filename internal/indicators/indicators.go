// Package indicators implements the technical indicators the strategy
// consumes.
package indicators

import (
	"errors"

	"mstock-trader/internal/models"
)

var (
	// ErrInsufficientData is returned when there's not enough data for calculation.
	ErrInsufficientData = errors.New("insufficient data for calculation")
	// ErrInvalidPeriod is returned when the period is invalid.
	ErrInvalidPeriod = errors.New("invalid period")
)

func closePrices(candles []models.Candle) []float64 {
	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}
	return closes
}

func sum(values []float64) float64 {
	var total float64
	for _, v := range values {
		total += v
	}
	return total
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return sum(values) / float64(len(values))
}

// OverwriteLastClose returns a copy of candles with the forming bar's close
// replaced by price. Used to fold the live quote into an intraday RSI; the
// caller decides whether the timeframe warrants it.
func OverwriteLastClose(candles []models.Candle, price float64) []models.Candle {
	if len(candles) == 0 {
		return candles
	}
	out := make([]models.Candle, len(candles))
	copy(out, candles)
	out[len(out)-1].Close = price
	return out
}
