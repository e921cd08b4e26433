package engine

import (
	"context"
	"fmt"

	"ai-trading-challenge/internal/logger"
	"ai-trading-challenge/internal/types"

	"github.com/shopspring/decimal"
)

// stopManager brings the live protective stop for a held position into
// agreement with a target stop price. The protection state is derived from
// the brokerage order book on every call; nothing is cached between calls.
type stopManager struct {
	e *Engine
}

func newStopManager(e *Engine) *stopManager {
	return &stopManager{e: e}
}

// partitionSells splits live orders into protective stop-sells and sells
// that reserve shares on their own. Bracket and OCO legs share the stop's
// reservation and are neither.
func partitionSells(orders []types.Order) (stops, conflicts []types.Order) {
	for _, o := range orders {
		if o.Side != types.SideSell {
			continue
		}
		switch {
		case o.Type == types.OrderStop:
			stops = append(stops, o)
		case !o.IsBracketLeg():
			conflicts = append(conflicts, o)
		}
	}
	return stops, conflicts
}

func (sm *stopManager) matches(o types.Order, target decimal.Decimal) bool {
	return o.StopPrice != nil && o.StopPrice.Sub(target).Abs().LessThan(sm.e.cfg.StopTolerance)
}

func withProtection(o types.Outcome, p types.ProtectionState) types.Outcome {
	o.Protection = p
	return o
}

// reconcile runs the protective-order state machine for one ticker.
func (sm *stopManager) reconcile(ctx context.Context, symbol string, target decimal.Decimal) types.Outcome {
	e := sm.e

	pos, held, err := e.brk.GetPosition(ctx, symbol)
	if err != nil {
		logger.ErrorWithErr(ctx, "Position check failed", err, "symbol", symbol)
		return skipped("could not check position for %s: %v", symbol, err)
	}
	if !held || !pos.Qty.IsPositive() {
		return withProtection(skipped("no open position found for %s to protect", symbol), types.ProtectionNone)
	}

	e.rec.Printf("   Syncing protection: %s (target stop %s)", symbol, money(target))

	// Held bracket legs only show up in an all-status query.
	all, err := e.brk.ListOrders(ctx, types.OrderQuery{Scope: types.ScopeAll, Symbols: []string{symbol}})
	if err != nil {
		logger.ErrorWithErr(ctx, "Order listing failed", err, "symbol", symbol)
		return skipped("could not list orders for %s: %v", symbol, err)
	}
	stops, conflicts := partitionSells(liveOrders(all))

	if len(conflicts) > 0 {
		for _, o := range conflicts {
			e.rec.Printf("   Conflict: open standalone SELL order for %s: %s %s (%s)",
				symbol, o.Type, o.PriceLabel(), o.StatusLabel())
		}
		logger.Risk(ctx, symbol, "RESERVATION_CONFLICT", "conflicting_orders", len(conflicts))
		return withProtection(
			skipped("stop placement blocked: %d standalone SELL order(s) reserve shares of %s", len(conflicts), symbol),
			types.ProtectionBlocked)
	}

	for _, o := range stops {
		if o.StatusClass == types.StatusSettling {
			return withProtection(
				skipped("stop order update already pending for %s (%s)", symbol, o.Status),
				types.ProtectionPendingReplace)
		}
	}
	for _, o := range stops {
		if sm.matches(o, target) {
			return withProtection(
				skipped("already protected: existing stop for %s matches %s (%s)", symbol, money(*o.StopPrice), o.StatusLabel()),
				types.ProtectionMatched)
		}
	}

	logger.Debug(ctx, "Protection prechecked", "symbol", symbol, "stops", len(stops), "state", types.StatePrechecked)

	if len(stops) > 0 {
		out, done := sm.replace(ctx, symbol, stops, target)
		if done {
			return out
		}
	} else {
		e.rec.Printf("   Missing protection: no stop-loss found for %s", symbol)
	}

	return sm.place(ctx, symbol, pos.Qty, target)
}

// replace moves the first stale stop to target and cancels any surplus
// stops, so one stop covers the position. done is false when the replace
// was rejected and the stale stop was cancelled, so the caller should place
// a fresh stop.
func (sm *stopManager) replace(ctx context.Context, symbol string, stops []types.Order, target decimal.Decimal) (types.Outcome, bool) {
	e := sm.e
	cur, surplus := stops[0], stops[1:]
	e.rec.Printf("   Updating: found stop @ %s (%s). Replacing with %s", priceOrNA(cur.StopPrice), cur.StatusLabel(), money(target))

	if e.cfg.DryRun {
		for _, o := range surplus {
			e.rec.Printf("   [DRY RUN] would cancel surplus stop %s @ %s", o.ID, priceOrNA(o.StopPrice))
		}
		return withProtection(dryRun("replace stop-loss %s for %s to %s", cur.ID, symbol, money(target)), types.ProtectionStale), true
	}

	replaced, err := e.brk.ReplaceOrder(ctx, cur.ID, target)
	if err == nil {
		logger.Trade(ctx, symbol, string(types.SideSell), cur.Qty.String(), replaced.ID, "replaces", cur.ID, "stop", target.String())
		ids := []string{replaced.ID}
		msg := fmt.Sprintf("stop-loss update requested for %s: %s -> %s", symbol, priceOrNA(cur.StopPrice), money(target))
		if len(surplus) > 0 {
			e.rec.Printf("   Cancelling %d surplus stop order(s) for %s", len(surplus), symbol)
			cancelled, failures := e.positions.cancelOrders(ctx, surplus)
			ids = append(ids, cancelled...)
			msg += fmt.Sprintf("; cancelled %d surplus stop(s)", len(cancelled))
			if failures > 0 {
				msg += fmt.Sprintf(", %d cancel request(s) rejected", failures)
			}
		}
		return withProtection(submitted(ids, "%s", msg), types.ProtectionMatched), true
	}

	logger.ErrorWithErr(ctx, "Replace failed", err, "symbol", symbol, "order_id", cur.ID)
	e.rec.Printf("   Replace failed: %v. Falling back to cancel/re-submit.", err)

	if err := e.brk.CancelOrder(ctx, cur.ID); err != nil {
		logger.ErrorWithErr(ctx, "Cancel of stale stop failed", err, "symbol", symbol, "order_id", cur.ID)
		return withProtection(failed("cancel of stale stop %s failed: %v", cur.ID, err), types.ProtectionStale), true
	}
	if err := e.sleep(ctx, e.cfg.ReplaceSettleDelay); err != nil {
		return withProtection(failed("interrupted waiting for cancel of %s to settle: %v", cur.ID, err), types.ProtectionNone), true
	}
	return types.Outcome{}, false
}

// place submits a GTC stop-sell for the full held quantity.
func (sm *stopManager) place(ctx context.Context, symbol string, qty, target decimal.Decimal) types.Outcome {
	e := sm.e
	if e.cfg.DryRun {
		return withProtection(dryRun("place stop-loss for %s shares of %s @ %s", qty.String(), symbol, money(target)), types.ProtectionNone)
	}

	stop := target
	order, err := e.brk.SubmitOrder(ctx, types.OrderRequest{
		Symbol:      symbol,
		Side:        types.SideSell,
		Type:        types.OrderStop,
		Qty:         qty,
		TimeInForce: types.TIFGTC,
		Class:       types.ClassSimple,
		StopPrice:   &stop,
	})
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to place stop-loss", err, "symbol", symbol)
		return withProtection(failed("failed to place stop-loss: %v", err), types.ProtectionNone)
	}
	logger.Trade(ctx, symbol, string(types.SideSell), qty.String(), order.ID, "stop", target.String())
	return withProtection(
		submitted([]string{order.ID}, "new stop-loss placed for %s @ %s", symbol, money(target)),
		types.ProtectionMatched)
}
