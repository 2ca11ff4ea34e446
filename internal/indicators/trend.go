package indicators

import (
	"fmt"

	"mstock-trader/internal/models"
)

// SMA calculates Simple Moving Average.
type SMA struct {
	period int
}

// NewSMA creates a new SMA indicator.
func NewSMA(period int) *SMA {
	return &SMA{period: period}
}

func (s *SMA) Name() string {
	return fmt.Sprintf("SMA_%d", s.period)
}

func (s *SMA) Period() int {
	return s.period
}

// Calculate returns the SMA series. Indices before the warmup window are
// zero.
func (s *SMA) Calculate(candles []models.Candle) ([]float64, error) {
	if s.period <= 0 {
		return nil, ErrInvalidPeriod
	}
	if len(candles) < s.period {
		return nil, ErrInsufficientData
	}

	closes := closePrices(candles)
	result := make([]float64, len(closes))

	windowSum := sum(closes[:s.period])
	result[s.period-1] = windowSum / float64(s.period)
	for i := s.period; i < len(closes); i++ {
		windowSum += closes[i] - closes[i-s.period]
		result[i] = windowSum / float64(s.period)
	}
	return result, nil
}

// Last returns the most recent SMA value.
func (s *SMA) Last(candles []models.Candle) (float64, error) {
	series, err := s.Calculate(candles)
	if err != nil {
		return 0, err
	}
	return series[len(series)-1], nil
}
