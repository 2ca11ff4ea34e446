// Package strategy implements the RSI mean-reversion decision logic. It is
// pure: no I/O, no clock, every input arrives as an argument.
package strategy

import (
	"math"

	"mstock-trader/internal/config"
	"mstock-trader/internal/models"
)

// Inputs carries everything one decision needs.
type Inputs struct {
	Entry    models.WatchlistEntry
	RSI      float64
	Price    float64
	Position models.NetPosition
	Risk     config.RiskConfig
	Capital  config.CapitalConfig
}

// Decide applies the exit and entry rules in fixed precedence: profit
// target, stop loss, RSI overbought exit, RSI oversold entry, hold.
// Exits always size to the full available quantity; partial exits are not
// taken. Entries are proposed only when nothing is available to sell, so a
// free position never pyramids; a fully broker-reserved one may still be
// topped up.
func Decide(in Inputs) models.Decision {
	available := in.Position.AvailableQty()
	wap := in.Position.WAPEntry

	if available > 0 && wap > 0 {
		if pct := targetPct(in.Entry.ProfitTargetPct, in.Risk.ProfitTargetPct); pct > 0 {
			if in.Price >= wap*(1+pct/100) {
				return models.Sell(available, models.ReasonProfitTarget)
			}
		}

		if pct := targetPct(in.Entry.StopLossPct, in.Risk.StopLossPct); pct > 0 {
			if in.Price <= wap*(1-pct/100) {
				if in.Risk.AutoExecuteStopLoss {
					return models.Sell(available, models.ReasonStopLoss)
				}
				// Alert-only mode: surface the breach without selling.
				return models.Hold(models.ReasonStopLoss)
			}
		}

		// Overbought exit must also be profitable; selling a loser on an
		// RSI signal is what the never-sell-at-loss rule exists to stop.
		if in.RSI >= in.Entry.SellRSI && in.Price > wap {
			return models.Sell(available, models.ReasonRSIOverbought)
		}
	}

	if in.RSI <= in.Entry.BuyRSI && available == 0 {
		return models.Buy(BuyQty(in.Entry, in.Price, in.Capital), models.ReasonRSIOversold)
	}

	return models.Hold("")
}

// BuyQty sizes a buy from the entry's quantity mode. Zero means the entry
// cannot buy at this price; callers collapse that to Hold.
func BuyQty(entry models.WatchlistEntry, price float64, capital config.CapitalConfig) int {
	if price <= 0 {
		return 0
	}
	switch entry.QtyMode {
	case models.QtyModeFixedQty:
		return int(entry.QtyValue)
	case models.QtyModeFixedAmount:
		return int(math.Floor(entry.QtyValue / price))
	case models.QtyModePctOfCapital:
		budget := entry.QtyValue / 100 * capital.AllocatedLimit
		return int(math.Floor(budget / price))
	default:
		return 0
	}
}

// targetPct prefers the per-entry override, falling back to the global
// setting when the watchlist leaves it zero.
func targetPct(entryPct, globalPct float64) float64 {
	if entryPct > 0 {
		return entryPct
	}
	return globalPct
}
