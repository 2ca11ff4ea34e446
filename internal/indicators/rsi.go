package indicators

import (
	"fmt"

	"mstock-trader/internal/models"
)

// RSI calculates the Relative Strength Index with Wilder smoothing. The
// first average is a simple mean of the first period changes; later
// averages use the recursive form, matching charting-platform values.
type RSI struct {
	period int
}

// NewRSI creates a new RSI indicator.
func NewRSI(period int) *RSI {
	return &RSI{period: period}
}

func (r *RSI) Name() string {
	return fmt.Sprintf("RSI_%d", r.period)
}

func (r *RSI) Period() int {
	return r.period
}

// Calculate returns the RSI series. Indices before the warmup window are
// zero. At least period+1 candles are required to seed the first average.
func (r *RSI) Calculate(candles []models.Candle) ([]float64, error) {
	if r.period <= 0 {
		return nil, ErrInvalidPeriod
	}
	if len(candles) < r.period+1 {
		return nil, ErrInsufficientData
	}

	n := len(candles)
	closes := closePrices(candles)
	result := make([]float64, n)

	gains := make([]float64, n)
	losses := make([]float64, n)
	for i := 1; i < n; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			gains[i] = change
		} else {
			losses[i] = -change
		}
	}

	// First average using SMA
	avgGain := mean(gains[1 : r.period+1])
	avgLoss := mean(losses[1 : r.period+1])
	result[r.period] = rsiValue(avgGain, avgLoss)

	// Subsequent values using Wilder smoothing
	for i := r.period + 1; i < n; i++ {
		avgGain = (avgGain*float64(r.period-1) + gains[i]) / float64(r.period)
		avgLoss = (avgLoss*float64(r.period-1) + losses[i]) / float64(r.period)
		result[i] = rsiValue(avgGain, avgLoss)
	}

	return result, nil
}

// Last returns the most recent RSI value.
func (r *RSI) Last(candles []models.Candle) (float64, error) {
	series, err := r.Calculate(candles)
	if err != nil {
		return 0, err
	}
	return series[len(series)-1], nil
}

// rsiValue applies the boundary rules in order: no losses pins to 100, but
// no gains pins to 0 and takes precedence, so a flat series reads 0.
func rsiValue(avgGain, avgLoss float64) float64 {
	if avgGain == 0 {
		return 0
	}
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}
