package sheet

import "strings"

// absentTokens are cell values that mean "no value".
var absentTokens = map[string]struct{}{
	"N/A":  {},
	"NONE": {},
	"":     {},
	"-":    {},
}

// Clean normalizes one cell: trim, uppercase, strip "$" and ",", trim again.
// ok is false when the cell is one of the absent sentinels.
//
// Clean is idempotent: Clean(Clean(x)) == Clean(x).
func Clean(raw string) (string, bool) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	s = strings.NewReplacer("$", "", ",", "").Replace(s)
	s = strings.TrimSpace(s)
	if _, absent := absentTokens[s]; absent {
		return "", false
	}
	return s, true
}

// Normalize maps every canonical value of a row through Clean, dropping
// absent values.
func Normalize(row CanonicalRow) CanonicalRow {
	out := make(CanonicalRow, len(row))
	for k, v := range row {
		if cleaned, ok := Clean(v); ok {
			out[k] = cleaned
		}
	}
	return out
}
