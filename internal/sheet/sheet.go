// Package sheet turns a free-form, model-written trade sheet into validated
// trade instructions.
//
// The pipeline is Extract → Canonicalize → Normalize → Validate. Every stage
// degrades to diagnostics: nothing in this package returns an error for
// malformed sheet text.
package sheet

import "ai-trading-challenge/internal/types"

// Result is a parsed sheet.
type Result struct {
	Mode         Mode                     `json:"mode"`
	Diagnostic   string                   `json:"diagnostic"`
	Instructions []types.TradeInstruction `json:"instructions"`
	Rejections   []Rejection              `json:"rejections,omitempty"`
}

// Parse runs the whole pipeline over text. Rows are numbered from 1 in
// extraction order.
func Parse(text string) Result {
	ex := Extract(text)
	res := Result{Mode: ex.Mode, Diagnostic: ex.Diagnostic}
	for i, raw := range ex.Rows {
		row := Normalize(Canonicalize(raw))
		ins, ok, rej := Validate(row, i+1)
		if rej != nil {
			res.Rejections = append(res.Rejections, *rej)
			continue
		}
		if ok {
			res.Instructions = append(res.Instructions, ins)
		}
	}
	return res
}
