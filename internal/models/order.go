package models

import "time"

// Order represents a broker order, either one we are placing or one read
// back from the day's order book.
type Order struct {
	ID              string
	Symbol          string
	Exchange        Exchange
	Side            OrderSide
	Type            OrderType
	Product         ProductType
	Quantity        int
	Price           float64
	AveragePrice    float64
	Validity        string // DAY
	Status          string
	InstrumentToken string
	PlacedAt        time.Time
}

// Executed order statuses: only these count toward today's position deltas.
var executedStatuses = map[string]bool{
	"COMPLETE": true,
	"EXECUTED": true,
	"FILLED":   true,
}

// IsExecuted reports whether the order status represents a fill.
func (o *Order) IsExecuted() bool {
	return executedStatuses[o.Status]
}

// Blocking order statuses: a same-side order in one of these states
// suppresses a new order for the symbol.
var blockingStatuses = map[string]bool{
	"OPEN":      true,
	"PENDING":   true,
	"TRIGGERED": true,
	"TRADED":    true,
}

// IsBlocking reports whether the order status blocks a duplicate.
func (o *Order) IsBlocking() bool {
	return blockingStatuses[o.Status]
}

// Holding represents a delivery holding reported by the broker.
type Holding struct {
	Symbol       string
	Exchange     Exchange
	Quantity     int
	UsedQuantity int
	AveragePrice float64
	LastPrice    float64
	PnL          float64
}

// PositionKey identifies a position by symbol and exchange.
type PositionKey struct {
	Symbol   string
	Exchange Exchange
}

// NetPosition is the reconciled view of one instrument: broker holdings
// merged with today's executed orders.
type NetPosition struct {
	Symbol   string
	Exchange Exchange
	NetQty   int
	WAPEntry float64 // weighted average buy price
	UsedQty  int     // broker-reserved (pledged or locked in orders)
}

// AvailableQty returns the quantity free to sell, never negative.
func (p NetPosition) AvailableQty() int {
	avail := p.NetQty - p.UsedQty
	if avail < 0 {
		return 0
	}
	return avail
}

// CostBasis returns the rupee cost of the open position.
func (p NetPosition) CostBasis() float64 {
	return float64(p.NetQty) * p.WAPEntry
}
