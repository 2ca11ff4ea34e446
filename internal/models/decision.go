package models

import "time"

// Action is the outcome of the strategy for one symbol in one cycle.
type Action string

const (
	ActionHold Action = "HOLD"
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
)

// Decision reasons. Every non-Hold decision and every skip carries one.
const (
	ReasonRSIOversold        = "RSI_OVERSOLD"
	ReasonRSIOverbought      = "RSI_OVERBOUGHT"
	ReasonProfitTarget       = "PROFIT_TARGET"
	ReasonStopLoss           = "STOP_LOSS"
	ReasonMarketClosed       = "MARKET_CLOSED"
	ReasonOffline            = "OFFLINE"
	ReasonDuplicateOpenOrder = "DUPLICATE_OPEN_ORDER"
	ReasonBelow200DMA        = "BELOW_200DMA"
	ReasonLowLiquidity       = "LOW_LIQUIDITY"
	ReasonCapitalLimit       = "CAPITAL_LIMIT"
	ReasonNeverSellAtLoss    = "NEVER_SELL_AT_LOSS"
	ReasonBadQuote           = "BAD_QUOTE"
	ReasonNoHistory          = "INSUFFICIENT_HISTORY"
	ReasonZeroQty            = "ZERO_QTY"
)

// Decision is the strategy's verdict for one (symbol, exchange) in one
// cycle. Qty is positive for Buy and Sell, zero for Hold.
type Decision struct {
	Action Action
	Qty    int
	Reason string
}

// Hold builds a Hold decision with the given reason.
func Hold(reason string) Decision {
	return Decision{Action: ActionHold, Reason: reason}
}

// Buy builds a Buy decision. A non-positive quantity collapses to Hold.
func Buy(qty int, reason string) Decision {
	if qty <= 0 {
		return Decision{Action: ActionHold, Reason: ReasonZeroQty}
	}
	return Decision{Action: ActionBuy, Qty: qty, Reason: reason}
}

// Sell builds a Sell decision. A non-positive quantity collapses to Hold.
func Sell(qty int, reason string) Decision {
	if qty <= 0 {
		return Decision{Action: ActionHold, Reason: ReasonZeroQty}
	}
	return Decision{Action: ActionSell, Qty: qty, Reason: reason}
}

// IsHold reports whether the decision takes no action.
func (d Decision) IsHold() bool {
	return d.Action == ActionHold || d.Qty <= 0
}

// Attempt statuses for the observability record.
const (
	AttemptSuccess = "SUCCESS"
	AttemptFailed  = "FAILED"
	AttemptSkipped = "SKIPPED"
)

// Attempt is the per-symbol, per-cycle observability record. All attempts
// are recorded, including skips.
type Attempt struct {
	Timestamp    time.Time
	Symbol       string
	Exchange     Exchange
	Side         Action
	Qty          int
	Price        float64
	Status       string // SUCCESS, FAILED, SKIPPED
	Reason       string
	RSI          float64
	BuyRSI       float64
	SellRSI      float64
	CapitalUsed  float64
	CapitalLimit float64
	OrderID      string
	Error        string
}
