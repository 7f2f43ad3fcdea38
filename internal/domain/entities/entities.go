package entities

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// TradeSide identifies the direction of an executed trade
type TradeSide string

const (
	TradeSideBuy  TradeSide = "buy"
	TradeSideSell TradeSide = "sell"
)

// OrderStateFilled is the only terminal order state that yields trades
const OrderStateFilled = "filled"

// Trade is one normalized execution pulled from the brokerage. An order with
// multiple execution sub-records produces one Trade per execution. Trades are
// immutable once created; identity is ID.
type Trade struct {
	ID         string          `json:"id" db:"id"`
	Symbol     string          `json:"symbol" db:"ticker"`
	Name       string          `json:"name" db:"name"`
	Side       TradeSide       `json:"side" db:"side"`
	Quantity   decimal.Decimal `json:"quantity" db:"quantity"`
	Price      decimal.Decimal `json:"price" db:"price"`
	ExecutedAt time.Time       `json:"executed_at" db:"executed_at"`
	State      string          `json:"state" db:"state"`
}

// Amount is quantity*price, the cash moved by this trade
func (t Trade) Amount() decimal.Decimal {
	return t.Quantity.Mul(t.Price)
}

// TradePage is a paginated, newest-first slice of the trade ledger
type TradePage struct {
	Items []Trade `json:"items"`
	Total int     `json:"total"`
}

// PositionSummary is a point-in-time view of one held instrument, derived
// entirely from current upstream holdings.
type PositionSummary struct {
	Ticker             string          `json:"ticker"`
	Name               string          `json:"name"`
	Quantity           decimal.Decimal `json:"quantity"`
	AvgBuyPrice        decimal.Decimal `json:"avg_buy_price"`
	CurrentPrice       decimal.Decimal `json:"current_price"`
	MarketValue        decimal.Decimal `json:"market_value"`
	UnrealizedGainLoss decimal.Decimal `json:"unrealized_gain_loss"`
	PercentChange      decimal.Decimal `json:"percent_change"`
}

// PortfolioValuePoint is one tick of the replayed portfolio-value curve.
// Baseline repeats the starting cash across every point so the curve can be
// charted against its opening capital.
type PortfolioValuePoint struct {
	Timestamp   time.Time       `json:"timestamp"`
	MarketValue decimal.Decimal `json:"market_value"`
	Baseline    decimal.Decimal `json:"baseline"`
}

// PerformanceQuery identifies one performance computation; its fields form
// the cache key.
type PerformanceQuery struct {
	Span         string
	Interval     string
	Bounds       string
	StartingCash *decimal.Decimal
	MaxPoints    int
}

// CacheKey renders the composite cache key for this query
func (q PerformanceQuery) CacheKey() string {
	cash := "derived"
	if q.StartingCash != nil {
		cash = q.StartingCash.String()
	}
	return q.Span + "|" + q.Interval + "|" + q.Bounds + "|" + cash + "|" + strconv.Itoa(q.MaxPoints)
}

// ErrorResponse is the standard error payload for the HTTP surface
type ErrorResponse struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}
