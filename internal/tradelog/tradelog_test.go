package tradelog

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"ai-trading-challenge/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranscriptSave(t *testing.T) {
	var echo bytes.Buffer
	tr := NewTranscript(&echo)
	tr.Printf("Parsing sheet...")
	tr.Printf("[%s] %s", "SKIPPED", "BUY ABC: position exists")

	dir := t.TempDir()
	day := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	p, err := tr.Save(dir, "Perplexity", day)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "trades", "2026-03-04", "perplexity.md"), p)

	b, err := os.ReadFile(p)
	require.NoError(t, err)
	content := string(b)
	assert.Contains(t, content, "# Trade Execution Log")
	assert.Contains(t, content, "**Model:** Perplexity")
	assert.Contains(t, content, "**Date:** 2026-03-04")
	assert.Contains(t, content, "Parsing sheet...\n[SKIPPED] BUY ABC: position exists\n```")

	assert.Equal(t, "Parsing sheet...\n[SKIPPED] BUY ABC: position exists\n", echo.String())
}

func TestEmptyTranscriptNotSaved(t *testing.T) {
	p, err := NewTranscript(nil).Save(t.TempDir(), "Claude", time.Now())
	require.NoError(t, err)
	assert.Empty(t, p)
}

func TestAppendOutcome(t *testing.T) {
	dir := t.TempDir()
	o := types.Outcome{Row: 1, Action: types.ActionSell, Ticker: "QRS", State: types.StateSkipped, Message: "already closed"}
	require.NoError(t, Append(dir, Entry{RunID: "r1", Model: "Claude", Outcome: o}))
	require.NoError(t, Append(dir, Entry{RunID: "r1", Model: "Claude", Outcome: o}))

	f, err := os.Open(OutcomesPath(dir, time.Now()))
	require.NoError(t, err)
	defer f.Close()

	var got []Entry
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e Entry
		require.NoError(t, json.Unmarshal(sc.Bytes(), &e))
		got = append(got, e)
	}
	require.Len(t, got, 2)
	assert.Equal(t, "QRS", got[0].Ticker)
	assert.Equal(t, types.StateSkipped, got[0].State)
	assert.NotEmpty(t, got[0].Time)
}

func TestCompressOlder(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "trades", "2020-01-01", "claude.md")
	fresh := filepath.Join(dir, "trades", "2026-01-01", "claude.md")
	for _, p := range []string{old, fresh} {
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte("log"), 0o644))
	}
	past := time.Now().AddDate(0, 0, -30)
	require.NoError(t, os.Chtimes(old, past, past))

	require.NoError(t, CompressOlder(dir, 7))

	assert.NoFileExists(t, old)
	assert.FileExists(t, old+".gz")
	assert.FileExists(t, fresh)
}
