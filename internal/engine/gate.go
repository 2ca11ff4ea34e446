package engine

import (
	"time"

	"github.com/rs/zerolog"

	"mstock-trader/internal/broker"
	"mstock-trader/internal/market"
	"mstock-trader/internal/models"
)

// Gate is the final check before an order leaves the process: market
// hours, the offline latch, and the day's order book all get a veto.
type Gate struct {
	latch  *broker.OfflineLatch
	logger zerolog.Logger
}

// NewGate creates the order gate.
func NewGate(latch *broker.OfflineLatch, logger zerolog.Logger) *Gate {
	return &Gate{latch: latch, logger: logger}
}

// Check returns ok when the decision may be placed now. When blocked, the
// returned reason names the veto.
func (g *Gate) Check(decision models.Decision, entry models.WatchlistEntry, orders []models.Order, now time.Time) (string, bool) {
	if g.latch.Active() {
		return models.ReasonOffline, false
	}
	if !market.IsOpenAt(now) {
		return models.ReasonMarketClosed, false
	}

	if dup := g.duplicate(decision, entry, orders); dup {
		return models.ReasonDuplicateOpenOrder, false
	}
	return "", true
}

// duplicate suppresses a decision when a blocking order on the same side
// already exists for the instrument. One exception: a buy is allowed past
// a blocking buy when a blocking sell of equal total quantity also exists.
// That pairing is a churn in flight, an exit and re-entry crossing in the
// book, not a duplicate.
func (g *Gate) duplicate(decision models.Decision, entry models.WatchlistEntry, orders []models.Order) bool {
	var buyQty, sellQty int
	var haveBuy, haveSell bool

	for _, o := range orders {
		if o.Symbol != entry.Symbol || o.Exchange != entry.Exchange || !o.IsBlocking() {
			continue
		}
		switch o.Side {
		case models.OrderSideBuy:
			haveBuy = true
			buyQty += o.Quantity
		case models.OrderSideSell:
			haveSell = true
			sellQty += o.Quantity
		}
	}

	switch decision.Action {
	case models.ActionBuy:
		if !haveBuy {
			return false
		}
		if haveSell && buyQty == sellQty {
			g.logger.Info().
				Str("symbol", entry.Symbol).
				Int("qty", buyQty).
				Msg("Matched buy and sell in flight, allowing buy through")
			return false
		}
		return true
	case models.ActionSell:
		return haveSell
	default:
		return false
	}
}
