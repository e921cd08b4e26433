package eod

import (
	"encoding/csv"
	"os"
	"testing"
	"time"

	"ai-trading-challenge/internal/tradelog"
	"ai-trading-challenge/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarizeDayAggregatesByAction(t *testing.T) {
	dir := t.TempDir()
	entries := []types.Outcome{
		{Row: 1, Action: types.ActionBuy, Ticker: "ABC", State: types.StateSubmitted},
		{Row: 2, Action: types.ActionBuy, Ticker: "DEF", State: types.StateSkipped},
		{Row: 3, Action: types.ActionHold, Ticker: "XYZ", State: types.StateSubmitted, Protection: types.ProtectionMatched},
		{Row: 4, Action: types.ActionSell, Ticker: "QRS", State: types.StateFailed},
		{Row: 5, Action: types.ActionCancel, Ticker: "ABC", State: types.StateSkipped, DryRun: true},
	}
	for _, o := range entries {
		require.NoError(t, tradelog.Append(dir, tradelog.Entry{RunID: "R1", Model: "Claude", Outcome: o}))
	}
	// Garbage lines are ignored.
	f, err := os.OpenFile(tradelog.OutcomesPath(dir, time.Now()), os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, _ = f.WriteString("not json\n")
	require.NoError(t, f.Close())

	s := NewSummarizer(dir)
	p, err := s.SummarizeToday()
	require.NoError(t, err)
	assert.Equal(t, SummaryPath(dir, time.Now()), p)

	in, err := os.Open(p)
	require.NoError(t, err)
	defer in.Close()
	recs, err := csv.NewReader(in).ReadAll()
	require.NoError(t, err)

	require.Len(t, recs, 6)
	assert.Equal(t, []string{"action", "submitted", "skipped", "failed", "dry_run", "protected", "tickers", "total"}, recs[0])
	assert.Equal(t, []string{"BUY", "1", "1", "0", "0", "0", "2", "2"}, recs[1])
	assert.Equal(t, []string{"CANCEL", "0", "1", "0", "1", "0", "1", "1"}, recs[2])
	assert.Equal(t, []string{"HOLD", "1", "0", "0", "0", "1", "1", "1"}, recs[3])
	assert.Equal(t, []string{"SELL", "0", "0", "1", "0", "0", "1", "1"}, recs[4])
	assert.Equal(t, []string{"TOTAL", "2", "2", "1", "1", "1", "", "5"}, recs[5])
}

func TestSummarizeDayWithoutOutcomes(t *testing.T) {
	p, err := NewSummarizer(t.TempDir()).SummarizeDay(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Empty(t, p)
}
