package engine

import (
	"context"
	"fmt"

	"ai-trading-challenge/internal/logger"
	"ai-trading-challenge/internal/types"

	"github.com/shopspring/decimal"
)

// positionManager runs the SELL and CANCEL paths: clearing a ticker's open
// orders, waiting for the cancels to settle, and closing positions.
type positionManager struct {
	e *Engine
}

func newPositionManager(e *Engine) *positionManager {
	return &positionManager{e: e}
}

func (e *Engine) executeSell(ctx context.Context, ins types.TradeInstruction) types.Outcome {
	return e.positions.sell(ctx, ins)
}

func (e *Engine) executeCancel(ctx context.Context, ins types.TradeInstruction) types.Outcome {
	return e.positions.cancelAll(ctx, ins.Ticker)
}

func (pm *positionManager) openOrders(ctx context.Context, symbol string) ([]types.Order, error) {
	orders, err := pm.e.brk.ListOrders(ctx, types.OrderQuery{Scope: types.ScopeOpen, Symbols: []string{symbol}})
	if err != nil {
		return nil, err
	}
	return liveOrders(orders), nil
}

// sell checks the position before touching any order, so a ticker that is
// already flat produces no mutations.
func (pm *positionManager) sell(ctx context.Context, ins types.TradeInstruction) types.Outcome {
	e := pm.e
	symbol := ins.Ticker

	pos, held, err := e.brk.GetPosition(ctx, symbol)
	if err != nil {
		logger.ErrorWithErr(ctx, "Position check failed", err, "symbol", symbol)
		return skipped("could not check position for %s: %v", symbol, err)
	}
	if !held {
		msg := fmt.Sprintf("position already closed or doesn't exist for %s", symbol)
		if open, err := pm.openOrders(ctx, symbol); err == nil && len(open) > 0 {
			msg += fmt.Sprintf("; %d open order(s) left untouched", len(open))
		}
		return skipped("%s", msg)
	}

	open, err := pm.openOrders(ctx, symbol)
	if err != nil {
		logger.ErrorWithErr(ctx, "Open order check failed", err, "symbol", symbol)
		return skipped("could not list open orders for %s: %v", symbol, err)
	}
	logger.Debug(ctx, "Instruction prechecked", "row", ins.Row, "state", types.StatePrechecked, "symbol", symbol)

	if e.cfg.DryRun {
		for _, o := range open {
			e.rec.Printf("   [DRY RUN] would cancel order %s (%s)", o.ID, o)
		}
		if ins.Qty.All {
			return dryRun("close entire position in %s (%s shares)", symbol, pos.Qty.String())
		}
		return dryRun("submit MARKET sell %d %s", ins.Qty.Shares, symbol)
	}

	if len(open) > 0 {
		e.rec.Printf("   Clearing %d open order(s) for %s before selling.", len(open), symbol)
		pm.cancelOrders(ctx, open)
		if left := pm.waitForClear(ctx, symbol); left != 0 {
			e.rec.Printf("   WARNING: orders for %s did not clear in time. Sell might fail.", symbol)
		}
	}

	if ins.Qty.All {
		order, err := e.brk.ClosePosition(ctx, symbol)
		if err != nil {
			logger.ErrorWithErr(ctx, "Failed to close position", err, "symbol", symbol)
			return failed("SELL failed: %v", err)
		}
		logger.Trade(ctx, symbol, string(types.SideSell), pos.Qty.String(), order.ID, "close", true)
		return submitted([]string{order.ID}, "position close submitted for %s (%s shares)", symbol, pos.Qty.String())
	}

	req := types.OrderRequest{
		Symbol:      symbol,
		Side:        types.SideSell,
		Type:        types.OrderMarket,
		Qty:         decimal.NewFromInt(ins.Qty.Shares),
		TimeInForce: types.TIFDay,
		Class:       types.ClassSimple,
	}
	order, err := e.brk.SubmitOrder(ctx, req)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to place SELL order", err, "symbol", symbol, "qty", ins.Qty.Shares)
		return failed("SELL failed: %v", err)
	}
	logger.Trade(ctx, symbol, string(types.SideSell), ins.Qty.String(), order.ID)
	return submitted([]string{order.ID}, "market sell of %d %s submitted", ins.Qty.Shares, symbol)
}

func (pm *positionManager) cancelAll(ctx context.Context, symbol string) types.Outcome {
	e := pm.e
	open, err := pm.openOrders(ctx, symbol)
	if err != nil {
		logger.ErrorWithErr(ctx, "Open order check failed", err, "symbol", symbol)
		return skipped("could not list open orders for %s: %v", symbol, err)
	}
	if len(open) == 0 {
		return skipped("no open orders found for %s, nothing to cancel", symbol)
	}

	if e.cfg.DryRun {
		for _, o := range open {
			e.rec.Printf("   [DRY RUN] would cancel %s %s order %s", o.Side, o.Type, o.PriceLabel())
		}
		return dryRun("cancel %d open order(s) for %s", len(open), symbol)
	}

	e.rec.Printf("   Cancelling %d open order(s) for %s...", len(open), symbol)
	ids, failures := pm.cancelOrders(ctx, open)
	if len(ids) == 0 {
		return failed("CANCEL failed for %s: %d cancel request(s) rejected", symbol, failures)
	}

	left := pm.waitForClear(ctx, symbol)
	switch {
	case left < 0:
		return submitted(ids, "cancelled %d order(s) for %s; warning: could not confirm they cleared", len(ids), symbol)
	case left > 0:
		return submitted(ids, "cancelled %d order(s) for %s; warning: %d still pending cancellation", len(ids), symbol, left)
	case failures > 0:
		return submitted(ids, "cancelled %d order(s) for %s; %d cancel request(s) rejected", len(ids), symbol, failures)
	}
	return submitted(ids, "all orders for %s successfully cancelled", symbol)
}

// cancelOrders requests cancellation of each order. A rejected cancel is
// logged and does not stop the rest.
func (pm *positionManager) cancelOrders(ctx context.Context, orders []types.Order) (cancelled []string, failures int) {
	for _, o := range orders {
		if err := pm.e.brk.CancelOrder(ctx, o.ID); err != nil {
			logger.ErrorWithErr(ctx, "Cancel failed", err, "symbol", o.Symbol, "order_id", o.ID)
			pm.e.rec.Printf("   Cancel of order %s failed: %v", o.ID, err)
			failures++
			continue
		}
		pm.e.rec.Printf("   Cancelled order %s", o.ID)
		cancelled = append(cancelled, o.ID)
	}
	return cancelled, failures
}

// waitForClear polls the ticker's open orders until none remain or the
// attempt budget runs out. It returns how many were still open, or -1 when
// no poll succeeded.
func (pm *positionManager) waitForClear(ctx context.Context, symbol string) int {
	e := pm.e
	left := -1
	for attempt := 1; attempt <= e.cfg.CancelPollAttempts; attempt++ {
		if err := e.sleep(ctx, e.cfg.CancelPollInterval); err != nil {
			return left
		}
		open, err := pm.openOrders(ctx, symbol)
		if err != nil {
			logger.ErrorWithErr(ctx, "Open order poll failed", err, "symbol", symbol, "attempt", attempt)
			continue
		}
		left = len(open)
		if left == 0 {
			return 0
		}
		e.rec.Printf("   Waiting for orders to clear (%d/%d)...", attempt, e.cfg.CancelPollAttempts)
	}
	return left
}
