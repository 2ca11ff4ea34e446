// Package positions reconciles broker holdings with today's executed
// orders into net positions.
package positions

import (
	"time"

	"github.com/rs/zerolog"

	"mstock-trader/internal/models"
	"mstock-trader/pkg/utils"
)

// Reconciler merges the holdings snapshot with today's fills. Holdings
// settle T+1, so a buy executed today appears only in the order book; a
// sell executed today still shows in holdings. Both views are needed for a
// truthful net position.
type Reconciler struct {
	logger zerolog.Logger
}

// NewReconciler creates a reconciler.
func NewReconciler(logger zerolog.Logger) *Reconciler {
	return &Reconciler{logger: logger}
}

type accumulator struct {
	buyQty  int
	buyCost float64
	sellQty int
	usedQty int
}

// Reconcile builds net positions keyed by (symbol, exchange). The result
// is a pure function of the inputs: orders contribute through sums, so
// feeding them in any order, or twice through a retried snapshot merge,
// yields the same positions. Orders without a timestamp are assumed to be
// today's; the broker omits it on some order-book rows.
func (r *Reconciler) Reconcile(holdings []models.Holding, orders []models.Order, today time.Time) map[models.PositionKey]models.NetPosition {
	acc := make(map[models.PositionKey]*accumulator)

	get := func(key models.PositionKey) *accumulator {
		a, ok := acc[key]
		if !ok {
			a = &accumulator{}
			acc[key] = a
		}
		return a
	}

	for _, h := range holdings {
		a := get(models.PositionKey{Symbol: h.Symbol, Exchange: h.Exchange})
		a.buyQty += h.Quantity
		a.buyCost += float64(h.Quantity) * h.AveragePrice
		a.usedQty += h.UsedQuantity
	}

	for _, o := range orders {
		if !o.IsExecuted() || !isToday(o.PlacedAt, today) {
			continue
		}
		a := get(models.PositionKey{Symbol: o.Symbol, Exchange: o.Exchange})
		switch o.Side {
		case models.OrderSideBuy:
			a.buyQty += o.Quantity
			a.buyCost += float64(o.Quantity) * fillPrice(o)
		case models.OrderSideSell:
			a.sellQty += o.Quantity
		}
	}

	positions := make(map[models.PositionKey]models.NetPosition, len(acc))
	for key, a := range acc {
		netQty := a.buyQty - a.sellQty
		if netQty < 0 {
			r.logger.Warn().
				Str("symbol", key.Symbol).
				Str("exchange", string(key.Exchange)).
				Int("net_qty", netQty).
				Msg("Negative net position from order book, clamping to zero")
			netQty = 0
		}

		var wap float64
		if a.buyQty > 0 {
			wap = a.buyCost / float64(a.buyQty)
		}

		positions[key] = models.NetPosition{
			Symbol:   key.Symbol,
			Exchange: key.Exchange,
			NetQty:   netQty,
			WAPEntry: wap,
			UsedQty:  a.usedQty,
		}
	}
	return positions
}

// TotalCostBasis sums the cost basis of all open positions, the figure the
// capital guardrail compares against the allocated limit.
func TotalCostBasis(positions map[models.PositionKey]models.NetPosition) float64 {
	var total float64
	for _, p := range positions {
		total += p.CostBasis()
	}
	return total
}

// fillPrice prefers the broker-reported average fill price, falling back
// to the order's limit price for rows where the average is missing.
func fillPrice(o models.Order) float64 {
	if o.AveragePrice > 0 {
		return o.AveragePrice
	}
	return o.Price
}

// isToday treats a zero timestamp as today: the day order book only ever
// contains today's orders.
func isToday(t, today time.Time) bool {
	if t.IsZero() {
		return true
	}
	a := t.In(utils.IndiaLocation)
	b := today.In(utils.IndiaLocation)
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}
