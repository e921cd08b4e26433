package journal

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"ai-trading-challenge/internal/types"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLite(t *testing.T) (*SQLite, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := NewSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })

	return j, path
}

func TestSQLiteSchemaCreated(t *testing.T) {
	t.Parallel()

	j, path := newTestSQLite(t)
	require.NoError(t, j.Close())

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	rows, err := db.Query(`SELECT name FROM sqlite_master WHERE type='table' AND name IN ('runs','outcomes')`)
	require.NoError(t, err)
	defer rows.Close()

	found := map[string]bool{}
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		found[name] = true
	}
	require.NoError(t, rows.Err())

	assert.True(t, found["runs"])
	assert.True(t, found["outcomes"])
}

func TestSQLiteRecordAndQuery(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	ctx := context.Background()
	base := time.Date(2025, 1, 2, 15, 0, 0, 0, time.UTC)
	tick := 0
	j.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	require.NoError(t, j.RecordRun(ctx, Run{
		RunID: "01RUN", Model: "Gemini", Mode: "LIVE", ParseMode: "delimited",
		StartedAt: base, Instructions: 2,
	}))
	require.NoError(t, j.RecordOutcome(ctx, "01RUN", types.Outcome{
		Row: 1, Action: types.ActionBuy, Ticker: "ABC", State: types.StateSubmitted,
		Message: "buy order placed", OrderIDs: []string{"ord-1", "ord-2"},
	}))
	require.NoError(t, j.RecordOutcome(ctx, "01RUN", types.Outcome{
		Row: 2, Action: types.ActionHold, Ticker: "XYZ", State: types.StateSkipped,
		Protection: types.ProtectionMatched, Message: "already protected",
	}))

	recent, err := j.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "XYZ", recent[0].Ticker)
	assert.Equal(t, types.ProtectionMatched, recent[0].Protection)
	assert.Equal(t, "Gemini", recent[1].Model)
	assert.Equal(t, []string{"ord-1", "ord-2"}, recent[1].OrderIDs)

	abc, err := j.ByTicker(ctx, "abc", 10)
	require.NoError(t, err)
	require.Len(t, abc, 1)
	assert.Equal(t, types.StateSubmitted, abc[0].State)
}

func TestSQLiteRecordOutcomeIsIdempotentPerRow(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	ctx := context.Background()
	o := types.Outcome{Row: 1, Action: types.ActionCancel, Ticker: "ABC", State: types.StateSkipped, DryRun: true}

	require.NoError(t, j.RecordOutcome(ctx, "R1", o))
	require.NoError(t, j.RecordOutcome(ctx, "R1", o))

	recent, err := j.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.True(t, recent[0].DryRun)
	assert.Empty(t, recent[0].Model)
}
