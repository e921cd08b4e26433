package types

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Action is the kind of a trade instruction.
type Action string

const (
	ActionBuy      Action = "BUY"
	ActionSell     Action = "SELL"
	ActionHold     Action = "HOLD"
	ActionCancel   Action = "CANCEL"
	ActionNoTrades Action = "NO_TRADES"
)

// ParseAction maps a cleaned token onto a known action.
func ParseAction(s string) (Action, bool) {
	switch a := Action(strings.ToUpper(strings.TrimSpace(s))); a {
	case ActionBuy, ActionSell, ActionHold, ActionCancel, ActionNoTrades:
		return a, true
	}
	return "", false
}

// Quantity is either a positive share count or the ALL sentinel.
type Quantity struct {
	Shares int64 `json:"shares,omitempty"`
	All    bool  `json:"all,omitempty"`
}

func Shares(n int64) Quantity { return Quantity{Shares: n} }

func AllShares() Quantity { return Quantity{All: true} }

func (q Quantity) IsZero() bool { return !q.All && q.Shares == 0 }

func (q Quantity) Decimal() decimal.Decimal { return decimal.NewFromInt(q.Shares) }

func (q Quantity) String() string {
	switch {
	case q.All:
		return "ALL"
	case q.Shares == 0:
		return "-"
	default:
		return fmt.Sprintf("%d", q.Shares)
	}
}

// TradeInstruction is one validated row of an instruction sheet.
// It is built once by the validator and never mutated afterwards.
type TradeInstruction struct {
	Row        int              `json:"row"`
	Action     Action           `json:"action"`
	Ticker     string           `json:"ticker,omitempty"`
	Qty        Quantity         `json:"qty"`
	OrderType  string           `json:"order_type,omitempty"`
	LimitPrice *decimal.Decimal `json:"limit_price,omitempty"`
	StopPrice  *decimal.Decimal `json:"stop_price,omitempty"`
	TakeProfit *decimal.Decimal `json:"take_profit,omitempty"`
	Reason     string           `json:"reason,omitempty"`
}

func (ti TradeInstruction) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", ti.Action, ti.Ticker)
	if !ti.Qty.IsZero() {
		fmt.Fprintf(&b, " qty=%s", ti.Qty)
	}
	if ti.LimitPrice != nil {
		fmt.Fprintf(&b, " limit=%s", ti.LimitPrice.StringFixed(2))
	}
	if ti.StopPrice != nil {
		fmt.Fprintf(&b, " stop=%s", ti.StopPrice.StringFixed(2))
	}
	if ti.TakeProfit != nil {
		fmt.Fprintf(&b, " tp=%s", ti.TakeProfit.StringFixed(2))
	}
	return b.String()
}

// State is where an instruction ended up in the router.
type State string

const (
	StateReceived   State = "RECEIVED"
	StatePrechecked State = "PRECHECKED"
	StateSubmitted  State = "SUBMITTED"
	StateSkipped    State = "SKIPPED"
	StateFailed     State = "FAILED"
)

// ProtectionState is the protective-order state for a held ticker, derived
// from the brokerage order book on every reconciliation.
type ProtectionState string

const (
	ProtectionNone           ProtectionState = "NONE"
	ProtectionMatched        ProtectionState = "MATCHED"
	ProtectionStale          ProtectionState = "STALE"
	ProtectionPendingReplace ProtectionState = "PENDING_REPLACE"
	ProtectionBlocked        ProtectionState = "BLOCKED_BY_CONFLICT"
)

// Outcome is the terminal result of one instruction.
type Outcome struct {
	Row        int             `json:"row"`
	Action     Action          `json:"action"`
	Ticker     string          `json:"ticker"`
	State      State           `json:"state"`
	Protection ProtectionState `json:"protection,omitempty"`
	DryRun     bool            `json:"dry_run,omitempty"`
	Message    string          `json:"message"`
	OrderIDs   []string        `json:"order_ids,omitempty"`
}

func (o Outcome) String() string {
	s := fmt.Sprintf("[%s] %s %s: %s", o.State, o.Action, o.Ticker, o.Message)
	if o.Protection != "" {
		s += fmt.Sprintf(" (protection=%s)", o.Protection)
	}
	return s
}
