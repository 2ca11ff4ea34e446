package engine

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"mstock-trader/internal/broker"
	"mstock-trader/internal/models"
	"mstock-trader/pkg/utils"
)

var openTime = time.Date(2024, 6, 3, 10, 30, 0, 0, utils.IndiaLocation) // a Monday

func blockingOrder(symbol string, side models.OrderSide, qty int) models.Order {
	return models.Order{
		Symbol:   symbol,
		Exchange: models.NSE,
		Side:     side,
		Quantity: qty,
		Status:   "OPEN",
	}
}

func testEntry(symbol string) models.WatchlistEntry {
	return models.WatchlistEntry{Symbol: symbol, Exchange: models.NSE}
}

func TestGate_OfflineLatchBlocks(t *testing.T) {
	latch := broker.NewOfflineLatch()
	latch.Set()
	gate := NewGate(latch, zerolog.Nop())

	reason, ok := gate.Check(models.Buy(10, models.ReasonRSIOversold), testEntry("INFY"), nil, openTime)
	if ok || reason != models.ReasonOffline {
		t.Errorf("got (%q, %v), want (OFFLINE, false)", reason, ok)
	}
}

func TestGate_MarketClosedBlocks(t *testing.T) {
	gate := NewGate(&broker.OfflineLatch{}, zerolog.Nop())
	evening := time.Date(2024, 6, 3, 16, 0, 0, 0, utils.IndiaLocation)

	reason, ok := gate.Check(models.Buy(10, models.ReasonRSIOversold), testEntry("INFY"), nil, evening)
	if ok || reason != models.ReasonMarketClosed {
		t.Errorf("got (%q, %v), want (MARKET_CLOSED, false)", reason, ok)
	}
}

func TestGate_Duplicates(t *testing.T) {
	gate := NewGate(&broker.OfflineLatch{}, zerolog.Nop())

	tests := []struct {
		name     string
		decision models.Decision
		orders   []models.Order
		wantOK   bool
	}{
		{
			name:     "no open orders passes",
			decision: models.Buy(10, models.ReasonRSIOversold),
			wantOK:   true,
		},
		{
			name:     "open buy blocks another buy",
			decision: models.Buy(10, models.ReasonRSIOversold),
			orders:   []models.Order{blockingOrder("INFY", models.OrderSideBuy, 10)},
			wantOK:   false,
		},
		{
			name:     "open sell blocks another sell",
			decision: models.Sell(10, models.ReasonProfitTarget),
			orders:   []models.Order{blockingOrder("INFY", models.OrderSideSell, 10)},
			wantOK:   false,
		},
		{
			name:     "matched buy and sell pair lets a buy through",
			decision: models.Buy(10, models.ReasonRSIOversold),
			orders: []models.Order{
				blockingOrder("INFY", models.OrderSideBuy, 10),
				blockingOrder("INFY", models.OrderSideSell, 10),
			},
			wantOK: true,
		},
		{
			name:     "unmatched quantities still block the buy",
			decision: models.Buy(10, models.ReasonRSIOversold),
			orders: []models.Order{
				blockingOrder("INFY", models.OrderSideBuy, 10),
				blockingOrder("INFY", models.OrderSideSell, 5),
			},
			wantOK: false,
		},
		{
			name:     "executed order does not block",
			decision: models.Buy(10, models.ReasonRSIOversold),
			orders: []models.Order{
				{Symbol: "INFY", Exchange: models.NSE, Side: models.OrderSideBuy, Quantity: 10, Status: "COMPLETE"},
			},
			wantOK: true,
		},
		{
			name:     "another symbol does not block",
			decision: models.Buy(10, models.ReasonRSIOversold),
			orders:   []models.Order{blockingOrder("TCS", models.OrderSideBuy, 10)},
			wantOK:   true,
		},
		{
			name:     "open buy does not block a sell",
			decision: models.Sell(10, models.ReasonProfitTarget),
			orders:   []models.Order{blockingOrder("INFY", models.OrderSideBuy, 10)},
			wantOK:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reason, ok := gate.Check(tt.decision, testEntry("INFY"), tt.orders, openTime)
			if ok != tt.wantOK {
				t.Errorf("ok = %v (reason %q), want %v", ok, reason, tt.wantOK)
			}
			if !ok && !tt.wantOK && reason != models.ReasonDuplicateOpenOrder && len(tt.orders) > 0 {
				t.Errorf("reason = %q, want DUPLICATE_OPEN_ORDER", reason)
			}
		})
	}
}
