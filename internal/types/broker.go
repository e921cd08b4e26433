package types

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrNotFound is returned by brokers for unknown symbols and orders.
var ErrNotFound = errors.New("not found")

type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

type OrderType string

const (
	OrderMarket       OrderType = "market"
	OrderLimit        OrderType = "limit"
	OrderStop         OrderType = "stop"
	OrderStopLimit    OrderType = "stop_limit"
	OrderTrailingStop OrderType = "trailing_stop"
)

type OrderClass string

const (
	ClassSimple  OrderClass = "simple"
	ClassBracket OrderClass = "bracket"
	ClassOTO     OrderClass = "oto"
	ClassOCO     OrderClass = "oco"
)

type TimeInForce string

const (
	TIFDay TimeInForce = "day"
	TIFGTC TimeInForce = "gtc"
)

// StatusClass collapses brokerage order statuses into the three cases the
// reconciler cares about.
type StatusClass int

const (
	StatusLive StatusClass = iota
	StatusSettling
	StatusTerminal
)

func (c StatusClass) String() string {
	switch c {
	case StatusLive:
		return "LIVE"
	case StatusSettling:
		return "SETTLING"
	default:
		return "TERMINAL"
	}
}

// ClassifyStatus maps a raw brokerage status string onto a StatusClass.
// Unknown statuses are LIVE so that an unrecognised reservation still
// blocks new sell-side placements.
func ClassifyStatus(status string) StatusClass {
	s := strings.ToLower(strings.TrimSpace(status))
	switch s {
	case "filled", "canceled", "cancelled", "expired", "replaced", "rejected", "done_for_day":
		return StatusTerminal
	}
	if strings.HasPrefix(s, "pending") {
		return StatusSettling
	}
	return StatusLive
}

type Account struct {
	Status      string
	Cash        decimal.Decimal
	Equity      decimal.Decimal
	BuyingPower decimal.Decimal
}

type Position struct {
	Symbol        string
	Qty           decimal.Decimal
	AvgEntryPrice decimal.Decimal
	CurrentPrice  decimal.Decimal
	MarketValue   decimal.Decimal
}

type Asset struct {
	Symbol   string
	Tradable bool
}

// Order is a brokerage order as seen by the executor. Status keeps the raw
// brokerage string for display; StatusClass is what logic branches on.
type Order struct {
	ID            string
	ClientOrderID string
	Symbol        string
	Side          Side
	Type          OrderType
	Class         OrderClass
	Status        string
	StatusClass   StatusClass
	Qty           decimal.Decimal
	LimitPrice    *decimal.Decimal
	StopPrice     *decimal.Decimal
}

// IsBracketLeg reports whether the order shares its reservation with a
// sibling leg through one-cancels-other semantics.
func (o Order) IsBracketLeg() bool {
	return o.Class == ClassBracket || o.Class == ClassOCO
}

// StatusLabel is the status as shown to humans; held legs read "OCO-held".
func (o Order) StatusLabel() string {
	if strings.EqualFold(o.Status, "held") {
		return "OCO-held"
	}
	return o.Status
}

// PriceLabel renders the order's price the way the transcript shows it.
func (o Order) PriceLabel() string {
	switch {
	case o.LimitPrice != nil:
		return "@ $" + o.LimitPrice.StringFixed(2)
	case o.StopPrice != nil:
		return "Stop @ $" + o.StopPrice.StringFixed(2)
	default:
		return "MARKET"
	}
}

func (o Order) String() string {
	return fmt.Sprintf("%s: %s %s %s shares %s (%s)",
		o.Symbol, strings.ToUpper(string(o.Type)), strings.ToUpper(string(o.Side)),
		o.Qty.String(), o.PriceLabel(), o.StatusLabel())
}

// OrderScope selects which orders ListOrders returns.
type OrderScope string

const (
	ScopeOpen OrderScope = "open"
	// ScopeAll includes held bracket legs that an open query omits.
	ScopeAll OrderScope = "all"
)

type OrderQuery struct {
	Scope   OrderScope
	Symbols []string
	Limit   int
}

// OrderRequest describes a new order. StopLoss and TakeProfit turn a parent
// order into an OTO or bracket group depending on Class.
type OrderRequest struct {
	Symbol      string
	Side        Side
	Type        OrderType
	Qty         decimal.Decimal
	TimeInForce TimeInForce
	Class       OrderClass
	LimitPrice  *decimal.Decimal
	StopPrice   *decimal.Decimal
	StopLoss    *decimal.Decimal
	TakeProfit  *decimal.Decimal
}

// ActivityFill is the account activity type for order executions.
const ActivityFill = "FILL"

// ActivityQuery selects account activities, newest first.
type ActivityQuery struct {
	Types []string
	Limit int
}

// Activity is one entry of the brokerage account activity feed.
type Activity struct {
	ID     string
	Type   string
	Symbol string
	Side   Side
	Qty    decimal.Decimal
	Price  decimal.Decimal
	Time   time.Time
}

func (a Activity) String() string {
	return fmt.Sprintf("%s %s %s %s @ %s", a.Type, a.Side, a.Qty.String(), a.Symbol, a.Price.StringFixed(2))
}
