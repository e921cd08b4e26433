package sheet

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// Mode names the strategy that produced an extraction.
type Mode string

const (
	ModeDelimited Mode = "delimited"
	ModePipe      Mode = "pipe"
	ModeNoTrades  Mode = "no_trades"
	ModePattern   Mode = "pattern"
	ModeNone      Mode = "none"
)

// Strategy turns sheet text into raw rows. ok is false when the strategy
// found nothing it recognises.
type Strategy interface {
	Name() Mode
	Extract(text string) (rows []RawRow, ok bool)
}

// Extraction is the extractor's result: rows in source order plus a
// human-readable diagnostic. Malformed input yields no rows, never an error.
type Extraction struct {
	Mode       Mode
	Rows       []RawRow
	Diagnostic string
}

// DefaultStrategies is the priority order used by Extract.
func DefaultStrategies() []Strategy {
	return []Strategy{
		delimitedStrategy{},
		pipeStrategy{},
		noTradesStrategy{},
		patternStrategy{},
	}
}

// Extract runs the default strategies in order; the first non-empty wins.
func Extract(text string) Extraction {
	return ExtractWith(text, DefaultStrategies()...)
}

func ExtractWith(text string, strategies ...Strategy) Extraction {
	for _, s := range strategies {
		rows, ok := s.Extract(text)
		if !ok || len(rows) == 0 {
			continue
		}
		return Extraction{Mode: s.Name(), Rows: rows, Diagnostic: describe(s.Name(), len(rows))}
	}
	return Extraction{Mode: ModeNone, Diagnostic: "no valid trade data found in sheet"}
}

func describe(mode Mode, n int) string {
	switch mode {
	case ModeNoTrades:
		return "sheet declares NO TRADES"
	case ModePattern:
		return plural(n, "trade") + " found (pattern fallback)"
	case ModePipe:
		return plural(n, "trade") + " found (pipe table)"
	default:
		return plural(n, "trade") + " found (" + string(mode) + ")"
	}
}

func plural(n int, word string) string {
	if n == 1 {
		return "1 " + word
	}
	return fmt.Sprintf("%d %ss", n, word)
}

var (
	actionWord   = regexp.MustCompile(`(?i)\bACTION\b`)
	tickerWord   = regexp.MustCompile(`(?i)\bTICKER\b`)
	noTradesWord = regexp.MustCompile(`(?i)\bNO[_ ]TRADES?\b`)
	separatorRow = regexp.MustCompile(`^[\s:|-]+$`)
)

func isHeaderLine(line string) bool {
	return strings.Contains(line, ",") && actionWord.MatchString(line) && tickerWord.MatchString(line)
}

func nonBlankLines(text string) []string {
	var out []string
	for _, l := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

// parseTable finds the header line and reads everything after it as
// comma-delimited records keyed by that header.
func parseTable(lines []string) []RawRow {
	start := -1
	for i, l := range lines {
		if isHeaderLine(l) {
			start = i
			break
		}
	}
	if start < 0 {
		return nil
	}

	r := csv.NewReader(strings.NewReader(strings.Join(lines[start:], "\n")))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil
	}
	header = dedupeHeaders(header)
	mapping := MapHeaders(nonEmpty(header))

	var rows []RawRow
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// A malformed record ends the table; rows read so far stand.
			break
		}
		raw := make(RawRow, len(header))
		for i, h := range header {
			if h == "" || i >= len(rec) {
				continue
			}
			raw[h] = strings.TrimSpace(rec[i])
		}
		if keep(raw, mapping) {
			rows = append(rows, raw)
		}
	}
	return rows
}

// dedupeHeaders blanks out repeated headers (case-insensitive) so only the
// first column with a given name feeds a row.
func dedupeHeaders(header []string) []string {
	seen := make(map[string]bool, len(header))
	out := make([]string, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		n := strings.ToUpper(h)
		if h == "" || seen[n] {
			continue
		}
		seen[n] = true
		out[i] = h
	}
	return out
}

func nonEmpty(ss []string) []string {
	out := make([]string, 0, len(ss))
	for _, s := range ss {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// keep drops blank rows and in-table NO_TRADES rows. Rows missing an ACTION
// or TICKER go on to the validator so the operator sees them rejected.
func keep(raw RawRow, mapping map[Key]string) bool {
	if action, ok := Clean(raw[mapping[KeyAction]]); ok && isNoTrades(action) {
		return false
	}
	for _, v := range raw {
		if _, ok := Clean(v); ok {
			return true
		}
	}
	return false
}

func isNoTrades(action string) bool {
	return noTradesWord.MatchString(strings.TrimSpace(action))
}

type delimitedStrategy struct{}

func (delimitedStrategy) Name() Mode { return ModeDelimited }

func (delimitedStrategy) Extract(text string) ([]RawRow, bool) {
	rows := parseTable(nonBlankLines(text))
	return rows, len(rows) > 0
}

type pipeStrategy struct{}

func (pipeStrategy) Name() Mode { return ModePipe }

// Extract rewrites pipe-table lines as comma-delimited records. Inner empty
// cells are kept so columns stay aligned; Markdown separator rows are skipped.
func (pipeStrategy) Extract(text string) ([]RawRow, bool) {
	var lines []string
	for _, l := range nonBlankLines(text) {
		if !strings.Contains(l, "|") || separatorRow.MatchString(l) {
			continue
		}
		lines = append(lines, pipeToCSV(l))
	}
	rows := parseTable(lines)
	return rows, len(rows) > 0
}

func pipeToCSV(line string) string {
	cells := strings.Split(line, "|")
	if len(cells) > 0 && strings.TrimSpace(cells[0]) == "" {
		cells = cells[1:]
	}
	if n := len(cells); n > 0 && strings.TrimSpace(cells[n-1]) == "" {
		cells = cells[:n-1]
	}
	for i := range cells {
		cells[i] = strings.TrimSpace(cells[i])
	}

	var b strings.Builder
	w := csv.NewWriter(&b)
	_ = w.Write(cells)
	w.Flush()
	return strings.TrimRight(b.String(), "\n")
}

type noTradesStrategy struct{}

func (noTradesStrategy) Name() Mode { return ModeNoTrades }

// Extract short-circuits a sheet whose verdict is NO TRADES to one synthetic
// row. It only runs after both table strategies came up empty.
func (noTradesStrategy) Extract(text string) ([]RawRow, bool) {
	if !noTradesWord.MatchString(text) {
		return nil, false
	}
	return []RawRow{{string(KeyAction): "NO_TRADES"}}, true
}

type patternStrategy struct{}

func (patternStrategy) Name() Mode { return ModePattern }

const (
	sep = `(?:[ \t]*[,|][ \t]*|[ \t]+)`
	// Grouped prices need a "$" or a decimal part so "5.00,4.50" still splits.
	priceToken = `(\$\d{1,3}(?:,\d{3})+(?:\.\d+)?|\d{1,3}(?:,\d{3})+\.\d+|\$?\d+(?:\.\d+)?|N/A|NA|NONE|-)`
)

// rowPattern matches ACTION TICKER QTY TYPE LIMIT STOP [TAKE_PROFIT] on one line.
var rowPattern = regexp.MustCompile(`(?im)(?:^|[,|\s])[ \t]*(BUY|SELL|HOLD|CANCEL)` +
	sep + `([A-Z][A-Z.]*)` +
	sep + `(ALL|\d+|N/A|NA|-)` +
	sep + `([A-Z]+(?:[ \t](?:LIMIT|MARKET|LOSS|ORDER))?)` +
	sep + priceToken +
	sep + priceToken +
	`(?:` + sep + priceToken + `)?`)

// Extract matches rows positionally, so its keys are already canonical.
func (patternStrategy) Extract(text string) ([]RawRow, bool) {
	var rows []RawRow
	for _, m := range rowPattern.FindAllStringSubmatch(text, -1) {
		row := RawRow{
			string(KeyAction):     strings.ToUpper(m[1]),
			string(KeyTicker):     strings.ToUpper(m[2]),
			string(KeyQty):        m[3],
			string(KeyType):       strings.ToUpper(m[4]),
			string(KeyLimitPrice): m[5],
			string(KeyStopLoss):   m[6],
		}
		if m[7] != "" {
			row[string(KeyTakeProfit)] = m[7]
		}
		rows = append(rows, row)
	}
	return rows, len(rows) > 0
}
