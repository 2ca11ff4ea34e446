// Package models provides domain models for the trading bot.
package models

import (
	"math"
	"time"
)

// Exchange represents a stock exchange.
type Exchange string

const (
	NSE Exchange = "NSE"
	BSE Exchange = "BSE"
)

// ParseExchange normalizes an exchange string, defaulting to NSE.
func ParseExchange(s string) Exchange {
	if Exchange(s) == BSE {
		return BSE
	}
	return NSE
}

// OrderSide represents the side of an order.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// OrderType represents the type of an order.
type OrderType string

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
)

// ProductType represents the product type of an order.
type ProductType string

// ProductCNC is equity delivery; the bot never trades intraday products.
const ProductCNC ProductType = "CNC"

// MarketStatus represents the current market status.
type MarketStatus string

const (
	MarketOpen    MarketStatus = "OPEN"
	MarketPreOpen MarketStatus = "PRE_OPEN"
	MarketClosed  MarketStatus = "CLOSED"
)

// Timeframe is a candle interval supported by the broker's historical API.
type Timeframe string

const (
	Timeframe1m  Timeframe = "1m"
	Timeframe3m  Timeframe = "3m"
	Timeframe5m  Timeframe = "5m"
	Timeframe10m Timeframe = "10m"
	Timeframe15m Timeframe = "15m"
	Timeframe30m Timeframe = "30m"
	Timeframe60m Timeframe = "60m"
	Timeframe1d  Timeframe = "1d"
)

// timeframeMinutes maps intraday timeframes to their bar length.
var timeframeMinutes = map[Timeframe]int{
	Timeframe1m:  1,
	Timeframe3m:  3,
	Timeframe5m:  5,
	Timeframe10m: 10,
	Timeframe15m: 15,
	Timeframe30m: 30,
	Timeframe60m: 60,
	Timeframe1d:  1440,
}

// ParseTimeframe normalizes a timeframe string. Unknown values fall back
// to 15m, the watchlist default.
func ParseTimeframe(s string) Timeframe {
	tf := Timeframe(s)
	if _, ok := timeframeMinutes[tf]; ok {
		return tf
	}
	return Timeframe15m
}

// Minutes returns the bar length in minutes.
func (tf Timeframe) Minutes() int {
	if m, ok := timeframeMinutes[tf]; ok {
		return m
	}
	return 15
}

// IsIntraday reports whether the timeframe is shorter than a day.
func (tf Timeframe) IsIntraday() bool {
	return tf != Timeframe1d
}

// APIInterval returns the interval name the broker's historical endpoint
// expects ("15minute", "day", ...).
func (tf Timeframe) APIInterval() string {
	switch tf {
	case Timeframe1m:
		return "1minute"
	case Timeframe3m:
		return "3minute"
	case Timeframe5m:
		return "5minute"
	case Timeframe10m:
		return "10minute"
	case Timeframe15m:
		return "15minute"
	case Timeframe30m:
		return "30minute"
	case Timeframe60m:
		return "60minute"
	case Timeframe1d:
		return "day"
	default:
		return "15minute"
	}
}

// Candle represents OHLC data for one bar, timestamped in exchange-local time.
type Candle struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    int64
}

// Quote represents a live market quote.
type Quote struct {
	Symbol          string
	Exchange        Exchange
	LastPrice       float64
	Volume          int64
	AvgVolume30D    int64
	InstrumentToken string
	Open            float64
	High            float64
	Low             float64
	PrevClose       float64
	FetchedAt       time.Time
}

// HasPrice reports whether the quote carries a usable last price.
// A quote without a finite, positive last price is treated as absent.
func (q *Quote) HasPrice() bool {
	return q != nil && !math.IsNaN(q.LastPrice) && !math.IsInf(q.LastPrice, 0) && q.LastPrice > 0
}

// QuoteKey builds the "EXCHANGE:SYMBOL" key used by the quote cache and the
// broker's quote endpoint.
func QuoteKey(symbol string, exchange Exchange) string {
	return string(exchange) + ":" + symbol
}
