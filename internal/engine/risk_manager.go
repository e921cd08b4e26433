package engine

import (
	"context"

	"ai-trading-challenge/internal/logger"
	"ai-trading-challenge/internal/types"

	"github.com/shopspring/decimal"
)

// riskManager checks an order's estimated cost against live buying power.
type riskManager struct {
	e *Engine
}

func newRiskManager(e *Engine) *riskManager {
	return &riskManager{e: e}
}

// estimatedCost is qty × limit.
func estimatedCost(ins types.TradeInstruction) decimal.Decimal {
	if ins.LimitPrice == nil {
		return decimal.Zero
	}
	return ins.Qty.Decimal().Mul(*ins.LimitPrice)
}

// checkBuyingPower re-reads the account and reports whether cost fits.
//
// Returns:
//   - ok: cost ≤ buying power
//   - bp: the buying power read
//   - err: account read failure
func (rm *riskManager) checkBuyingPower(ctx context.Context, symbol string, cost decimal.Decimal) (ok bool, bp decimal.Decimal, err error) {
	acct, err := rm.e.brk.GetAccount(ctx)
	if err != nil {
		return false, decimal.Zero, err
	}
	bp = acct.BuyingPower
	if cost.GreaterThan(bp) {
		logger.Risk(ctx, symbol, "INSUFFICIENT_BUYING_POWER",
			"estimated_cost", cost.String(),
			"buying_power", bp.String(),
			"dry_run", rm.e.cfg.DryRun,
		)
		return false, bp, nil
	}
	return true, bp, nil
}
