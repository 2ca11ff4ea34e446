package engine

import (
	"context"

	"github.com/rs/zerolog"

	"mstock-trader/internal/broker"
	"mstock-trader/internal/models"
)

// Placer translates an allowed decision into a broker order. All orders
// are market CNC day orders; the strategy trades closes, not ticks, so
// limit precision buys nothing.
type Placer struct {
	broker broker.Broker
	logger zerolog.Logger
}

// NewPlacer creates an order placer.
func NewPlacer(b broker.Broker, logger zerolog.Logger) *Placer {
	return &Placer{broker: b, logger: logger}
}

// Place submits the order and returns the broker's order ID. Session
// refresh on an expired token happens inside the broker client; an
// ErrAuthExpired surfacing here means the refresh itself failed.
func (p *Placer) Place(ctx context.Context, entry models.WatchlistEntry, decision models.Decision, quote *models.Quote) (string, error) {
	side := models.OrderSideBuy
	if decision.Action == models.ActionSell {
		side = models.OrderSideSell
	}

	return p.broker.PlaceOrder(ctx, broker.OrderRequest{
		Symbol:          entry.Symbol,
		Exchange:        entry.Exchange,
		Side:            side,
		Quantity:        decision.Qty,
		Price:           0,
		InstrumentToken: quote.InstrumentToken,
	})
}
