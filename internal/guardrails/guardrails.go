// Package guardrails filters and resizes strategy proposals before they
// reach the order gate.
package guardrails

import (
	"math"

	"github.com/rs/zerolog"

	"mstock-trader/internal/config"
	"mstock-trader/internal/indicators"
	"mstock-trader/internal/models"
)

// trendPeriod is the daily SMA window for the trend filter.
const trendPeriod = 200

// maxVolumeShare caps an order at this fraction of the 30-day average
// volume so the bot never becomes the market in an illiquid name.
const maxVolumeShare = 0.05

// Inputs carries the context one guardrail pass needs.
type Inputs struct {
	Entry        models.WatchlistEntry
	Decision     models.Decision
	Quote        *models.Quote
	Position     models.NetPosition
	DailyCandles []models.Candle // for the 200-session trend filter
	CapitalUsed  float64         // cost basis of all open positions
	Capital      config.CapitalConfig
	Risk         config.RiskConfig
}

// Guardrails applies the risk filters in a fixed order: liquidity, trend,
// capital, never-sell-at-loss. Each filter can veto or shrink the
// proposal, never grow it.
type Guardrails struct {
	logger zerolog.Logger
}

// New creates the guardrail chain.
func New(logger zerolog.Logger) *Guardrails {
	return &Guardrails{logger: logger}
}

// Apply runs the chain over a proposed decision and returns the decision
// that survives. Vetoes come back as Hold with the vetoing reason.
func (g *Guardrails) Apply(in Inputs) models.Decision {
	d := in.Decision
	if d.IsHold() {
		return d
	}

	switch d.Action {
	case models.ActionBuy:
		d = g.liquidity(in, d)
		if d.IsHold() {
			return d
		}
		d = g.trend(in, d)
		if d.IsHold() {
			return d
		}
		return g.capital(in, d)
	case models.ActionSell:
		return g.neverSellAtLoss(in, d)
	default:
		return d
	}
}

// liquidity blocks buys in names trading below the volume floors and caps
// the order at a small share of average volume.
func (g *Guardrails) liquidity(in Inputs, d models.Decision) models.Decision {
	if !in.Capital.VolumeFilterEnabled {
		return d
	}

	avgVol := in.Quote.AvgVolume30D
	price := in.Quote.LastPrice
	logger := g.symbolLogger(in)

	if avgVol < in.Capital.MinVolumeShares {
		logger.Info().
			Int64("avg_volume", avgVol).
			Int64("min_shares", in.Capital.MinVolumeShares).
			Msg("Liquidity veto: average volume below floor")
		return models.Hold(models.ReasonLowLiquidity)
	}
	if float64(avgVol)*price < in.Capital.MinVolumeValue {
		logger.Info().
			Float64("turnover", float64(avgVol)*price).
			Float64("min_value", in.Capital.MinVolumeValue).
			Msg("Liquidity veto: turnover below floor")
		return models.Hold(models.ReasonLowLiquidity)
	}

	volumeCap := int(math.Floor(float64(avgVol) * maxVolumeShare))
	if d.Qty > volumeCap {
		logger.Info().
			Int("qty", d.Qty).
			Int("volume_cap", volumeCap).
			Msg("Capping order at volume share limit")
		return models.Buy(volumeCap, d.Reason)
	}
	return d
}

// trend blocks buys below the 200-session daily SMA. With fewer than 200
// sessions of history the filter fails open: a newly listed name is not a
// downtrending one.
func (g *Guardrails) trend(in Inputs, d models.Decision) models.Decision {
	if !in.Risk.TrendFilterEnabled {
		return d
	}

	logger := g.symbolLogger(in)
	if len(in.DailyCandles) < trendPeriod {
		logger.Warn().
			Int("daily_bars", len(in.DailyCandles)).
			Msg("Trend filter has insufficient history, allowing buy")
		return d
	}

	sma, err := indicators.NewSMA(trendPeriod).Last(in.DailyCandles)
	if err != nil {
		logger.Warn().Err(err).Msg("Trend filter calculation failed, allowing buy")
		return d
	}
	if in.Quote.LastPrice < sma {
		logger.Info().
			Float64("price", in.Quote.LastPrice).
			Float64("sma_200", sma).
			Msg("Trend veto: price below 200-session average")
		return models.Hold(models.ReasonBelow200DMA)
	}
	return d
}

// capital rejects a buy whose cost exceeds the per-stock cap or the
// allocated limit net of open positions. Orders are not resized to fit; an
// over-budget proposal is a hold.
func (g *Guardrails) capital(in Inputs, d models.Decision) models.Decision {
	price := in.Quote.LastPrice
	if price <= 0 {
		return models.Hold(models.ReasonBadQuote)
	}

	cost := float64(d.Qty) * price
	logger := g.symbolLogger(in)

	if perStock := in.Capital.MaxPerStockFixedAmount; perStock > 0 && cost > perStock {
		logger.Info().
			Float64("cost", cost).
			Float64("per_stock_cap", perStock).
			Msg("Capital veto: order exceeds per-stock cap")
		return models.Hold(models.ReasonCapitalLimit)
	}

	remaining := in.Capital.AllocatedLimit - in.CapitalUsed
	if cost > remaining {
		logger.Info().
			Float64("cost", cost).
			Float64("remaining", remaining).
			Float64("capital_used", in.CapitalUsed).
			Msg("Capital veto: order exceeds remaining allocation")
		return models.Hold(models.ReasonCapitalLimit)
	}
	return d
}

// neverSellAtLoss vetoes any sell at or below the entry price, whatever
// signal proposed it. A stop-loss sell is held too; the breach still
// reaches the operator through the alert channel.
func (g *Guardrails) neverSellAtLoss(in Inputs, d models.Decision) models.Decision {
	if !in.Risk.NeverSellAtLoss {
		return d
	}

	wap := in.Position.WAPEntry
	if wap > 0 && in.Quote.LastPrice <= wap {
		logger := g.symbolLogger(in)
		logger.Info().
			Float64("price", in.Quote.LastPrice).
			Float64("wap", wap).
			Str("signal", d.Reason).
			Msg("Sell veto: price at or below entry")
		return models.Hold(models.ReasonNeverSellAtLoss)
	}
	return d
}

func (g *Guardrails) symbolLogger(in Inputs) zerolog.Logger {
	return g.logger.With().
		Str("symbol", in.Entry.Symbol).
		Str("exchange", string(in.Entry.Exchange)).
		Logger()
}
