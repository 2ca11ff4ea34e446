package indicators

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"mstock-trader/internal/models"
)

// closesGen generates a series of positive closes long enough to seed the
// indicator.
func closesGen(minLen, maxLen int) gopter.Gen {
	return gen.SliceOfN(maxLen, gen.Float64Range(1.0, 10000.0)).Map(func(closes []float64) []models.Candle {
		if len(closes) < minLen {
			for len(closes) < minLen {
				closes = append(closes, 100.0)
			}
		}
		base := time.Date(2024, 1, 1, 9, 15, 0, 0, time.UTC)
		candles := make([]models.Candle, len(closes))
		for i, c := range closes {
			candles[i] = models.Candle{
				Timestamp: base.Add(time.Duration(i) * 15 * time.Minute),
				Open:      c,
				High:      c,
				Low:       c,
				Close:     c,
				Volume:    1000,
			}
		}
		return candles
	})
}

func TestProperty_RSIWithinBounds(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("RSI values are within [0, 100]", prop.ForAll(
		func(candles []models.Candle) bool {
			rsi := NewRSI(14)
			values, err := rsi.Calculate(candles)
			if err != nil {
				return true
			}
			for i := rsi.Period(); i < len(values); i++ {
				if values[i] < 0 || values[i] > 100 {
					return false
				}
			}
			return true
		},
		closesGen(20, 100),
	))

	properties.TestingRun(t)
}

func TestProperty_RSIScaleInvariant(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	// RSI is a ratio of average gains to losses, so scaling every price by
	// a positive constant must not change it beyond float noise.
	properties.Property("RSI is invariant under price scaling", prop.ForAll(
		func(candles []models.Candle) bool {
			rsi := NewRSI(14)
			base, err := rsi.Last(candles)
			if err != nil {
				return true
			}

			scaled := make([]models.Candle, len(candles))
			copy(scaled, candles)
			for i := range scaled {
				scaled[i].Close *= 3
			}
			other, err := rsi.Last(scaled)
			if err != nil {
				return false
			}
			diff := base - other
			if diff < 0 {
				diff = -diff
			}
			return diff < 1e-6
		},
		closesGen(20, 100),
	))

	properties.TestingRun(t)
}
