package interfaces

import (
	"context"

	"ai-trading-challenge/internal/types"
)

type Engine interface {
	// Preflight reads and reports account state. An error here is fatal to
	// the run since every precondition depends on the account.
	Preflight(ctx context.Context) (types.Account, error)
	Execute(ctx context.Context, ins types.TradeInstruction) types.Outcome
}
