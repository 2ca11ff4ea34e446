package guardrails

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/rs/zerolog"

	"mstock-trader/internal/config"
	"mstock-trader/internal/models"
)

func quote(price float64, avgVol int64) *models.Quote {
	return &models.Quote{
		Symbol:       "INFY",
		Exchange:     models.NSE,
		LastPrice:    price,
		AvgVolume30D: avgVol,
	}
}

func dailyCandles(n int, close float64) []models.Candle {
	base := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	candles := make([]models.Candle, n)
	for i := range candles {
		candles[i] = models.Candle{
			Timestamp: base.AddDate(0, 0, i),
			Open:      close, High: close, Low: close, Close: close,
			Volume: 100000,
		}
	}
	return candles
}

func baseInputs() Inputs {
	return Inputs{
		Entry:    models.WatchlistEntry{Symbol: "INFY", Exchange: models.NSE},
		Decision: models.Buy(10, models.ReasonRSIOversold),
		Quote:    quote(100, 1_000_000),
		Capital: config.CapitalConfig{
			AllocatedLimit:      100000,
			VolumeFilterEnabled: true,
			MinVolumeShares:     10000,
			MinVolumeValue:      500000,
		},
		Risk: config.RiskConfig{NeverSellAtLoss: true},
	}
}

func TestApply_Liquidity(t *testing.T) {
	g := New(zerolog.Nop())

	t.Run("share floor vetoes", func(t *testing.T) {
		in := baseInputs()
		in.Quote = quote(100, 5000)
		got := g.Apply(in)
		if got.Action != models.ActionHold || got.Reason != models.ReasonLowLiquidity {
			t.Errorf("got %+v, want Hold(LOW_LIQUIDITY)", got)
		}
	})

	t.Run("turnover floor vetoes", func(t *testing.T) {
		in := baseInputs()
		in.Quote = quote(10, 20000) // 2 lakh turnover, below the 5 lakh floor
		got := g.Apply(in)
		if got.Action != models.ActionHold || got.Reason != models.ReasonLowLiquidity {
			t.Errorf("got %+v, want Hold(LOW_LIQUIDITY)", got)
		}
	})

	t.Run("order capped at volume share", func(t *testing.T) {
		in := baseInputs()
		in.Quote = quote(100, 100000)
		in.Decision = models.Buy(8000, models.ReasonRSIOversold)
		in.Capital.AllocatedLimit = 10_000_000
		got := g.Apply(in)
		if got.Action != models.ActionBuy || got.Qty != 5000 {
			t.Errorf("got %+v, want Buy qty 5000 (5%% of avg volume)", got)
		}
	})

	t.Run("filter disabled passes illiquid name", func(t *testing.T) {
		in := baseInputs()
		in.Quote = quote(100, 100)
		in.Capital.VolumeFilterEnabled = false
		got := g.Apply(in)
		if got.Action != models.ActionBuy {
			t.Errorf("got %+v, want Buy", got)
		}
	})
}

func TestApply_Trend(t *testing.T) {
	g := New(zerolog.Nop())

	t.Run("price below 200-session average vetoes", func(t *testing.T) {
		in := baseInputs()
		in.Risk.TrendFilterEnabled = true
		in.DailyCandles = dailyCandles(200, 150)
		got := g.Apply(in)
		if got.Action != models.ActionHold || got.Reason != models.ReasonBelow200DMA {
			t.Errorf("got %+v, want Hold(BELOW_200DMA)", got)
		}
	})

	t.Run("short history fails open", func(t *testing.T) {
		in := baseInputs()
		in.Risk.TrendFilterEnabled = true
		in.DailyCandles = dailyCandles(50, 150)
		got := g.Apply(in)
		if got.Action != models.ActionBuy {
			t.Errorf("got %+v, want Buy despite short history", got)
		}
	})

	t.Run("price above average passes", func(t *testing.T) {
		in := baseInputs()
		in.Risk.TrendFilterEnabled = true
		in.DailyCandles = dailyCandles(200, 80)
		got := g.Apply(in)
		if got.Action != models.ActionBuy {
			t.Errorf("got %+v, want Buy", got)
		}
	})
}

func TestApply_Capital(t *testing.T) {
	g := New(zerolog.Nop())

	t.Run("order within both bounds passes", func(t *testing.T) {
		in := baseInputs()
		in.Capital.MaxPerStockFixedAmount = 1500
		got := g.Apply(in)
		if got.Action != models.ActionBuy || got.Qty != 10 {
			t.Errorf("got %+v, want Buy qty 10", got)
		}
	})

	t.Run("order over the per-stock cap is rejected", func(t *testing.T) {
		in := baseInputs()
		in.Capital.MaxPerStockFixedAmount = 500
		got := g.Apply(in)
		if got.Action != models.ActionHold || got.Reason != models.ReasonCapitalLimit {
			t.Errorf("got %+v, want Hold(CAPITAL_LIMIT)", got)
		}
	})

	t.Run("order over the remaining allocation is rejected", func(t *testing.T) {
		in := baseInputs()
		in.CapitalUsed = 99_650 // 350 left, the order costs 1000
		got := g.Apply(in)
		if got.Action != models.ActionHold || got.Reason != models.ReasonCapitalLimit {
			t.Errorf("got %+v, want Hold(CAPITAL_LIMIT)", got)
		}
	})

	t.Run("exhausted limit vetoes", func(t *testing.T) {
		in := baseInputs()
		in.CapitalUsed = 100_000
		got := g.Apply(in)
		if got.Action != models.ActionHold || got.Reason != models.ReasonCapitalLimit {
			t.Errorf("got %+v, want Hold(CAPITAL_LIMIT)", got)
		}
	})

	t.Run("near-exhausted limit vetoes", func(t *testing.T) {
		in := baseInputs()
		in.CapitalUsed = 99_950
		got := g.Apply(in)
		if got.Action != models.ActionHold || got.Reason != models.ReasonCapitalLimit {
			t.Errorf("got %+v, want Hold(CAPITAL_LIMIT)", got)
		}
	})
}

func TestApply_NeverSellAtLoss(t *testing.T) {
	g := New(zerolog.Nop())

	sellInputs := func(price, wap float64, reason string) Inputs {
		in := baseInputs()
		in.Decision = models.Sell(10, reason)
		in.Quote = quote(price, 1_000_000)
		in.Position = models.NetPosition{NetQty: 10, WAPEntry: wap}
		return in
	}

	t.Run("sell at a loss vetoed", func(t *testing.T) {
		got := g.Apply(sellInputs(95, 100, models.ReasonRSIOverbought))
		if got.Action != models.ActionHold || got.Reason != models.ReasonNeverSellAtLoss {
			t.Errorf("got %+v, want Hold(NEVER_SELL_AT_LOSS)", got)
		}
	})

	t.Run("sell at entry price vetoed", func(t *testing.T) {
		got := g.Apply(sellInputs(100, 100, models.ReasonRSIOverbought))
		if got.Action != models.ActionHold {
			t.Errorf("got %+v, want Hold", got)
		}
	})

	t.Run("profitable sell passes", func(t *testing.T) {
		got := g.Apply(sellInputs(110, 100, models.ReasonProfitTarget))
		if got.Action != models.ActionSell || got.Qty != 10 {
			t.Errorf("got %+v, want Sell qty 10", got)
		}
	})

	t.Run("stop loss sell at a loss is vetoed too", func(t *testing.T) {
		got := g.Apply(sellInputs(90, 100, models.ReasonStopLoss))
		if got.Action != models.ActionHold || got.Reason != models.ReasonNeverSellAtLoss {
			t.Errorf("got %+v, want Hold(NEVER_SELL_AT_LOSS)", got)
		}
	})

	t.Run("rule disabled lets a stop loss sell at a loss", func(t *testing.T) {
		in := sellInputs(90, 100, models.ReasonStopLoss)
		in.Risk.NeverSellAtLoss = false
		got := g.Apply(in)
		if got.Action != models.ActionSell {
			t.Errorf("got %+v, want Sell", got)
		}
	})
}

func TestProperty_ApplyNeverGrowsQty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)
	g := New(zerolog.Nop())

	properties.Property("surviving buy quantity never exceeds the proposal", prop.ForAll(
		func(qty int, price float64, avgVol int64, used float64) bool {
			in := baseInputs()
			in.Decision = models.Buy(qty, models.ReasonRSIOversold)
			in.Quote = quote(price, avgVol)
			in.CapitalUsed = used

			got := g.Apply(in)
			if got.Action == models.ActionHold {
				return true
			}
			return got.Qty > 0 && got.Qty <= qty
		},
		gen.IntRange(1, 10000),
		gen.Float64Range(1, 5000),
		gen.Int64Range(0, 10_000_000),
		gen.Float64Range(0, 200000),
	))

	properties.TestingRun(t)
}
