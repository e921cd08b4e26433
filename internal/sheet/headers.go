package sheet

import "strings"

// Key is a canonical column of the instruction schema.
type Key string

const (
	KeyAction     Key = "ACTION"
	KeyTicker     Key = "TICKER"
	KeyQty        Key = "QTY"
	KeyType       Key = "TYPE"
	KeyLimitPrice Key = "LIMIT_PRICE"
	KeyStopLoss   Key = "STOP_LOSS"
	KeyTakeProfit Key = "TAKE_PROFIT"
	KeyReason     Key = "REASON"
)

// Keys lists the canonical schema in column order.
var Keys = []Key{KeyAction, KeyTicker, KeyQty, KeyType, KeyLimitPrice, KeyStopLoss, KeyTakeProfit, KeyReason}

// RawRow maps upstream header text to the cell under it.
type RawRow map[string]string

// CanonicalRow maps canonical keys to cell values. A missing key is absent.
type CanonicalRow map[Key]string

type alias struct {
	key     Key
	headers []string
}

// aliases is ordered: within a key, earlier spellings win over later ones.
var aliases = []alias{
	{KeyAction, []string{"ACTION", "ACT"}},
	{KeyTicker, []string{"TICKER", "TICK", "SYMBOL"}},
	{KeyQty, []string{"QTY", "QUANTITY", "AMOUNT", "SIZE"}},
	{KeyType, []string{"TYPE", "ORDER TYPE"}},
	{KeyLimitPrice, []string{"LIMIT_PRICE", "LIMIT PRICE", "LIMIT", "PRICE"}},
	{KeyStopLoss, []string{"STOP_LOSS", "STOP LOSS", "STOP", "SL"}},
	{KeyTakeProfit, []string{"TAKE_PROFIT", "TAKE PROFIT", "TP", "TARGET"}},
	{KeyReason, []string{"REASON", "WHY", "RATIONALE"}},
}

// MapHeaders resolves upstream headers to canonical keys. The result maps
// each resolved key to the header it came from. Matching is exact after
// trimming and uppercasing; unknown headers are ignored.
func MapHeaders(headers []string) map[Key]string {
	norm := make(map[string]string, len(headers))
	order := make([]string, 0, len(headers))
	for _, h := range headers {
		n := strings.ToUpper(strings.TrimSpace(h))
		if _, seen := norm[n]; seen {
			continue
		}
		norm[n] = h
		order = append(order, n)
	}

	out := make(map[Key]string, len(aliases))
	for _, a := range aliases {
		for _, spelling := range a.headers {
			if h, ok := norm[spelling]; ok {
				out[a.key] = h
				break
			}
		}
	}
	return out
}

// Canonicalize projects a raw row onto the canonical schema. Rows produced
// by the pattern strategy already use canonical keys and pass through.
func Canonicalize(raw RawRow) CanonicalRow {
	headers := make([]string, 0, len(raw))
	for h := range raw {
		headers = append(headers, h)
	}
	mapping := MapHeaders(headers)

	row := make(CanonicalRow, len(mapping))
	for key, header := range mapping {
		row[key] = raw[header]
	}
	return row
}
