// Package broker provides the mStock Type A REST client and the process
// offline latch.
package broker

import (
	"context"
	"time"

	"mstock-trader/internal/models"
)

// Broker defines the broker operations the engine depends on. The mStock
// client implements it; tests substitute fakes.
type Broker interface {
	// Authentication
	RefreshSession(ctx context.Context) error
	IsAuthenticated() bool

	// Market data
	GetQuote(ctx context.Context, symbol string, exchange models.Exchange) (*models.Quote, error)
	GetHistorical(ctx context.Context, req HistoricalRequest) ([]models.Candle, error)

	// Portfolio
	GetHoldings(ctx context.Context) ([]models.Holding, error)
	GetOrders(ctx context.Context) ([]models.Order, error)
	GetFundSummary(ctx context.Context) (*FundSummary, error)

	// Orders
	PlaceOrder(ctx context.Context, req OrderRequest) (string, error)
	CancelOrder(ctx context.Context, orderID string) error
	CancelAllOrders(ctx context.Context) (int, error)
}

// HistoricalRequest describes a candle fetch.
type HistoricalRequest struct {
	Symbol          string
	Exchange        models.Exchange
	InstrumentToken string
	Timeframe       models.Timeframe
	From            time.Time
	To              time.Time
}

// OrderRequest describes an order to place. Price 0 means market order.
type OrderRequest struct {
	Symbol          string
	Exchange        models.Exchange
	Side            models.OrderSide
	Quantity        int
	Price           float64
	InstrumentToken string
}

// FundSummary holds the account cash summary.
type FundSummary struct {
	AvailableBalance float64
	UsedMargin       float64
	Collateral       float64
}
