// Package eod aggregates a day's instruction outcomes into a CSV summary.
package eod

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"ai-trading-challenge/internal/tradelog"
	"ai-trading-challenge/internal/types"
)

type eodSummarizer struct {
	dir string
	now func() time.Time
}

type aggRow struct {
	Action    types.Action
	Submitted int
	Skipped   int
	Failed    int
	DryRun    int
	Protected int
	Tickers   map[string]struct{}
}

func (r *aggRow) total() int { return r.Submitted + r.Skipped + r.Failed }

// SummaryPath is <dir>/summary/<date>.csv.
func SummaryPath(dir string, t time.Time) string {
	return filepath.Join(dir, "summary", t.Format("2006-01-02")+".csv")
}

// SummarizeDay reads the day's outcome lines and writes one CSV row per
// action plus a TOTAL row. It returns "" with no error when there is
// nothing to summarize. Unparseable lines are skipped.
func (s *eodSummarizer) SummarizeDay(t time.Time) (string, error) {
	inPath := tradelog.OutcomesPath(s.dir, t)
	f, err := os.Open(inPath)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	defer f.Close()

	aggs := map[types.Action]*aggRow{}
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		var e tradelog.Entry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil || e.Action == "" {
			continue
		}
		row := aggs[e.Action]
		if row == nil {
			row = &aggRow{Action: e.Action, Tickers: map[string]struct{}{}}
			aggs[e.Action] = row
		}
		switch e.State {
		case types.StateSubmitted:
			row.Submitted++
		case types.StateFailed:
			row.Failed++
		default:
			row.Skipped++
		}
		if e.DryRun {
			row.DryRun++
		}
		if e.Protection == types.ProtectionMatched {
			row.Protected++
		}
		if e.Ticker != "" {
			row.Tickers[e.Ticker] = struct{}{}
		}
	}
	if err := sc.Err(); err != nil {
		return "", err
	}
	if len(aggs) == 0 {
		return "", nil
	}

	keys := make([]string, 0, len(aggs))
	for k := range aggs {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)

	outPath := SummaryPath(s.dir, t)
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return "", err
	}
	out, err := os.Create(outPath)
	if err != nil {
		return "", err
	}
	defer out.Close()

	w := csv.NewWriter(out)
	headers := []string{"action", "submitted", "skipped", "failed", "dry_run", "protected", "tickers", "total"}
	if err := w.Write(headers); err != nil {
		return "", err
	}
	var sum aggRow
	for _, k := range keys {
		r := aggs[types.Action(k)]
		rec := []string{k, strconv.Itoa(r.Submitted), strconv.Itoa(r.Skipped), strconv.Itoa(r.Failed),
			strconv.Itoa(r.DryRun), strconv.Itoa(r.Protected), strconv.Itoa(len(r.Tickers)), strconv.Itoa(r.total())}
		if err := w.Write(rec); err != nil {
			return "", err
		}
		sum.Submitted += r.Submitted
		sum.Skipped += r.Skipped
		sum.Failed += r.Failed
		sum.DryRun += r.DryRun
		sum.Protected += r.Protected
	}
	if err := w.Write([]string{"TOTAL", strconv.Itoa(sum.Submitted), strconv.Itoa(sum.Skipped), strconv.Itoa(sum.Failed),
		strconv.Itoa(sum.DryRun), strconv.Itoa(sum.Protected), "", strconv.Itoa(sum.total())}); err != nil {
		return "", err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return outPath, nil
}

func (s *eodSummarizer) SummarizeToday() (string, error) { return s.SummarizeDay(s.now()) }
