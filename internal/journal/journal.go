// Package journal persists run and outcome records so repeated runs of the
// same sheet can be audited for duplicate submissions.
package journal

import (
	"context"
	"time"

	"ai-trading-challenge/internal/types"
)

type Run struct {
	RunID        string
	Model        string
	Mode         string
	ParseMode    string
	StartedAt    time.Time
	Instructions int
	Rejections   int
}

// Record is one journaled instruction outcome.
type Record struct {
	RunID      string
	Model      string
	RecordedAt time.Time
	types.Outcome
}

type Journal interface {
	RecordRun(ctx context.Context, r Run) error
	RecordOutcome(ctx context.Context, runID string, o types.Outcome) error
	Recent(ctx context.Context, limit int) ([]Record, error)
	ByTicker(ctx context.Context, ticker string, limit int) ([]Record, error)
	Close() error
}
