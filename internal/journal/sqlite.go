package journal

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"ai-trading-challenge/internal/types"

	_ "github.com/mattn/go-sqlite3"
)

type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

var _ Journal = (*SQLite)(nil)

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal schema: %w", err)
	}

	return &SQLite{db: db, now: time.Now}, nil
}

func (j *SQLite) RecordRun(ctx context.Context, r Run) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO runs
		(run_id, model, mode, parse_mode, started_at, instructions, rejections)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Model, r.Mode, r.ParseMode, r.StartedAt.UTC(), r.Instructions, r.Rejections,
	)
	return err
}

// RecordOutcome upserts by (run, row) so a retried write never duplicates.
func (j *SQLite) RecordOutcome(ctx context.Context, runID string, o types.Outcome) error {
	dry := 0
	if o.DryRun {
		dry = 1
	}
	_, err := j.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO outcomes
		(run_id, row_num, action, ticker, state, protection, dry_run, message, order_ids, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, o.Row, string(o.Action), o.Ticker, string(o.State), string(o.Protection),
		dry, o.Message, strings.Join(o.OrderIDs, ","), j.now().UTC(),
	)
	return err
}

const selectRecords = `
	SELECT o.run_id, COALESCE(r.model, ''), o.recorded_at, o.row_num, o.action, o.ticker,
	       o.state, o.protection, o.dry_run, o.message, o.order_ids
	FROM outcomes o LEFT JOIN runs r ON r.run_id = o.run_id`

// Recent returns the newest outcomes first.
func (j *SQLite) Recent(ctx context.Context, limit int) ([]Record, error) {
	return j.query(ctx, selectRecords+` ORDER BY o.recorded_at DESC, o.row_num DESC LIMIT ?`, limit)
}

func (j *SQLite) ByTicker(ctx context.Context, ticker string, limit int) ([]Record, error) {
	return j.query(ctx, selectRecords+` WHERE o.ticker = ? ORDER BY o.recorded_at DESC, o.row_num DESC LIMIT ?`,
		strings.ToUpper(ticker), limit)
}

func (j *SQLite) query(ctx context.Context, q string, args ...any) ([]Record, error) {
	rows, err := j.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			r          Record
			action     string
			state      string
			protection string
			dry        int
			ids        string
		)
		if err := rows.Scan(&r.RunID, &r.Model, &r.RecordedAt, &r.Row, &action, &r.Ticker,
			&state, &protection, &dry, &r.Message, &ids); err != nil {
			return nil, err
		}
		r.Action = types.Action(action)
		r.State = types.State(state)
		r.Protection = types.ProtectionState(protection)
		r.DryRun = dry == 1
		if ids != "" {
			r.OrderIDs = strings.Split(ids, ",")
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
