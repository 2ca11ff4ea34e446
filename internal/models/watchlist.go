package models

// QtyMode selects how the buy quantity for a watchlist entry is sized.
type QtyMode string

const (
	QtyModeFixedQty     QtyMode = "fixed_qty"
	QtyModeFixedAmount  QtyMode = "fixed_amount"
	QtyModePctOfCapital QtyMode = "pct_of_capital"
)

// ParseQtyMode normalizes a quantity mode string, defaulting to fixed_qty.
func ParseQtyMode(s string) QtyMode {
	switch QtyMode(s) {
	case QtyModeFixedAmount:
		return QtyModeFixedAmount
	case QtyModePctOfCapital:
		return QtyModePctOfCapital
	default:
		return QtyModeFixedQty
	}
}

// WatchlistEntry is one configured instrument. Entries are immutable for the
// duration of a cycle; (Symbol, Exchange) is the primary key.
type WatchlistEntry struct {
	Symbol          string    `csv:"Symbol"`
	Exchange        Exchange  `csv:"Exchange"`
	Timeframe       Timeframe `csv:"Timeframe"`
	BuyRSI          float64   `csv:"Buy RSI"`
	SellRSI         float64   `csv:"Sell RSI"`
	ProfitTargetPct float64   `csv:"Profit Target %"`
	StopLossPct     float64   `csv:"Stop Loss %"`
	QtyMode         QtyMode   `csv:"Qty Mode"`
	QtyValue        float64   `csv:"Qty Value"`
	Enabled         bool      `csv:"Enabled"`
}

// Key returns the entry's position key.
func (e WatchlistEntry) Key() PositionKey {
	return PositionKey{Symbol: e.Symbol, Exchange: e.Exchange}
}
