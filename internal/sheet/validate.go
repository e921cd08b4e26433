package sheet

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"ai-trading-challenge/internal/types"

	"github.com/shopspring/decimal"
)

// Rejection is a row the validator dropped, with the reason shown to the
// operator. Rejections never abort the rest of the sheet.
type Rejection struct {
	Row    int          `json:"row"`
	Action string       `json:"action,omitempty"`
	Ticker string       `json:"ticker,omitempty"`
	Reason string       `json:"reason"`
	Values CanonicalRow `json:"-"`
}

func (r Rejection) String() string {
	return fmt.Sprintf("row %d (%s %s): %s", r.Row, r.Action, r.Ticker, r.Reason)
}

// errDropped marks rows that are removed silently (NO_TRADES).
var errDropped = errors.New("dropped")

// Validate turns one normalized row into a TradeInstruction. ok=false with a
// nil rejection means the row is intentionally dropped (NO_TRADES).
func Validate(row CanonicalRow, rowNum int) (ins types.TradeInstruction, ok bool, rej *Rejection) {
	ins, err := validate(row, rowNum)
	switch {
	case errors.Is(err, errDropped):
		return types.TradeInstruction{}, false, nil
	case err != nil:
		return types.TradeInstruction{}, false, &Rejection{
			Row:    rowNum,
			Action: row[KeyAction],
			Ticker: row[KeyTicker],
			Reason: err.Error(),
			Values: row,
		}
	}
	return ins, true, nil
}

func validate(row CanonicalRow, rowNum int) (types.TradeInstruction, error) {
	rawAction, present := row[KeyAction]
	if !present {
		return types.TradeInstruction{}, errors.New("missing action")
	}
	if isNoTrades(rawAction) {
		return types.TradeInstruction{}, errDropped
	}
	action, known := types.ParseAction(rawAction)
	if !known {
		return types.TradeInstruction{}, fmt.Errorf("unrecognized action %q", rawAction)
	}
	if action == types.ActionNoTrades {
		return types.TradeInstruction{}, errDropped
	}

	ticker := row[KeyTicker]
	if ticker == "" {
		return types.TradeInstruction{}, fmt.Errorf("%s requires a ticker", action)
	}

	ins := types.TradeInstruction{
		Row:       rowNum,
		Action:    action,
		Ticker:    ticker,
		OrderType: row[KeyType],
		Reason:    row[KeyReason],
	}

	switch action {
	case types.ActionBuy:
		return validateBuy(ins, row)
	case types.ActionSell:
		qty, err := sellQuantity(row[KeyQty])
		if err != nil {
			return types.TradeInstruction{}, err
		}
		ins.Qty = qty
	case types.ActionHold:
		// A HOLD whose stop is missing or unparseable carries no protective target.
		if stop, err := positivePrice(row[KeyStopLoss]); err == nil && stop != nil {
			ins.StopPrice = stop
		}
	case types.ActionCancel:
	}
	return ins, nil
}

func validateBuy(ins types.TradeInstruction, row CanonicalRow) (types.TradeInstruction, error) {
	n, err := positiveInt(row[KeyQty])
	if err != nil {
		return types.TradeInstruction{}, fmt.Errorf("BUY quantity: %w", err)
	}
	ins.Qty = types.Shares(n)

	limit, err := positivePrice(row[KeyLimitPrice])
	if err != nil {
		return types.TradeInstruction{}, fmt.Errorf("BUY limit price: %w", err)
	}
	if limit == nil {
		return types.TradeInstruction{}, errors.New("BUY requires a limit price")
	}
	ins.LimitPrice = limit

	if ins.StopPrice, err = positivePrice(row[KeyStopLoss]); err != nil {
		return types.TradeInstruction{}, fmt.Errorf("BUY stop loss: %w", err)
	}
	if ins.TakeProfit, err = positivePrice(row[KeyTakeProfit]); err != nil {
		return types.TradeInstruction{}, fmt.Errorf("BUY take profit: %w", err)
	}

	if ins.StopPrice != nil && ins.StopPrice.GreaterThanOrEqual(*limit) {
		return types.TradeInstruction{}, fmt.Errorf("stop loss %s must be below limit price %s",
			ins.StopPrice.StringFixed(2), limit.StringFixed(2))
	}
	return ins, nil
}

// sellQuantity reads a SELL quantity. Absent and any token mentioning ALL
// mean the whole position.
func sellQuantity(tok string) (types.Quantity, error) {
	if tok == "" || strings.Contains(tok, "ALL") {
		return types.AllShares(), nil
	}
	n, err := positiveInt(tok)
	if err != nil {
		return types.Quantity{}, fmt.Errorf("SELL quantity: %w", err)
	}
	return types.Shares(n), nil
}

func positiveInt(tok string) (int64, error) {
	if tok == "" {
		return 0, errors.New("missing")
	}
	n, err := strconv.ParseInt(tok, 10, 64)
	if err != nil {
		// Tolerate "10.0" but not "10.5".
		d, derr := decimal.NewFromString(tok)
		if derr != nil || !d.Equal(d.Truncate(0)) {
			return 0, fmt.Errorf("%q is not a whole number", tok)
		}
		if !d.BigInt().IsInt64() {
			return 0, fmt.Errorf("%q is out of range", tok)
		}
		n = d.IntPart()
	}
	if n <= 0 {
		return 0, fmt.Errorf("%q must be positive", tok)
	}
	return n, nil
}

// positivePrice parses an optional price. Absent yields nil, nil.
func positivePrice(tok string) (*decimal.Decimal, error) {
	if tok == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(tok)
	if err != nil {
		return nil, fmt.Errorf("%q is not a number", tok)
	}
	if !d.IsPositive() {
		return nil, fmt.Errorf("%q must be positive", tok)
	}
	return &d, nil
}
