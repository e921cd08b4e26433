package engine

import (
	"context"
	"fmt"

	"ai-trading-challenge/internal/logger"
	"ai-trading-challenge/internal/types"
)

// orderExecutor runs BUY instructions: idempotency guards, budget check,
// order shaping and submission.
type orderExecutor struct {
	e *Engine
}

func newOrderExecutor(e *Engine) *orderExecutor {
	return &orderExecutor{e: e}
}

func (e *Engine) executeBuy(ctx context.Context, ins types.TradeInstruction) types.Outcome {
	return e.orders.buy(ctx, ins)
}

func (oe *orderExecutor) buy(ctx context.Context, ins types.TradeInstruction) types.Outcome {
	e := oe.e
	symbol := ins.Ticker

	asset, err := e.brk.GetAsset(ctx, symbol)
	if err != nil {
		logger.ErrorWithErr(ctx, "Asset lookup failed", err, "symbol", symbol)
		return skipped("invalid ticker: could not find %s (%v)", symbol, err)
	}
	if !asset.Tradable {
		return skipped("invalid ticker: %s is not tradable", symbol)
	}

	pos, held, err := e.brk.GetPosition(ctx, symbol)
	if err != nil {
		logger.ErrorWithErr(ctx, "Position check failed", err, "symbol", symbol)
		return skipped("could not check position for %s: %v", symbol, err)
	}
	if held {
		return skipped("already owned: holding %s shares of %s", pos.Qty.String(), symbol)
	}

	open, err := e.brk.ListOrders(ctx, types.OrderQuery{Scope: types.ScopeOpen, Symbols: []string{symbol}})
	if err != nil {
		logger.ErrorWithErr(ctx, "Open order check failed", err, "symbol", symbol)
		return skipped("could not check open orders for %s: %v", symbol, err)
	}
	for _, o := range liveOrders(open) {
		if o.Side == types.SideBuy {
			return skipped("pending order: open BUY order %s already exists for %s", o.ID, symbol)
		}
	}

	logger.Debug(ctx, "Instruction prechecked", "row", ins.Row, "state", types.StatePrechecked, "symbol", symbol)

	cost := estimatedCost(ins)
	e.rec.Printf("   Order: BUY %s %s @ %s (SL: %s, TP: %s) (Est. Cost: %s)",
		ins.Qty, symbol, priceOrNA(ins.LimitPrice), priceOrNA(ins.StopPrice), priceOrNA(ins.TakeProfit), money(cost))

	fits, bp, err := e.risk.checkBuyingPower(ctx, symbol, cost)
	if err != nil {
		logger.ErrorWithErr(ctx, "Account read failed", err, "symbol", symbol)
		return skipped("could not read buying power: %v", err)
	}
	if !fits {
		msg := fmt.Sprintf("insufficient buying power (need %s, have %s)", money(cost), money(bp))
		if !e.cfg.DryRun {
			return skipped("%s", msg)
		}
		e.rec.Printf("   WARNING: %s", msg)
	}

	req := buyRequest(ins)
	if ins.TakeProfit != nil && ins.StopPrice == nil {
		e.rec.Printf("   Note: take profit %s ignored without a stop loss", priceOrNA(ins.TakeProfit))
	}
	if e.cfg.DryRun {
		return dryRun("place %s", describeRequest(req))
	}

	order, err := e.brk.SubmitOrder(ctx, req)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to place BUY order", err, "symbol", symbol, "qty", ins.Qty.String())
		return failed("BUY order rejected: %v", err)
	}
	logger.Trade(ctx, symbol, string(types.SideBuy), ins.Qty.String(), order.ID, "class", string(req.Class))
	return submitted([]string{order.ID}, "buy order placed: %s", describeRequest(req))
}

// buyRequest shapes a BUY: bracket with stop and take-profit, OTO with only
// a stop, otherwise a simple limit. Always GTC.
func buyRequest(ins types.TradeInstruction) types.OrderRequest {
	req := types.OrderRequest{
		Symbol:      ins.Ticker,
		Side:        types.SideBuy,
		Type:        types.OrderLimit,
		Qty:         ins.Qty.Decimal(),
		TimeInForce: types.TIFGTC,
		Class:       types.ClassSimple,
		LimitPrice:  ins.LimitPrice,
	}
	switch {
	case ins.StopPrice != nil && ins.TakeProfit != nil:
		req.Class = types.ClassBracket
		req.StopLoss = ins.StopPrice
		req.TakeProfit = ins.TakeProfit
	case ins.StopPrice != nil:
		req.Class = types.ClassOTO
		req.StopLoss = ins.StopPrice
	}
	return req
}

func describeRequest(req types.OrderRequest) string {
	s := fmt.Sprintf("%s %s %s %s %s", req.Class, req.Type, req.Side, req.Qty.String(), req.Symbol)
	if req.LimitPrice != nil {
		s += " @ " + money(*req.LimitPrice)
	}
	if req.StopPrice != nil {
		s += " stop " + money(*req.StopPrice)
	}
	if req.StopLoss != nil {
		s += " SL " + money(*req.StopLoss)
	}
	if req.TakeProfit != nil {
		s += " TP " + money(*req.TakeProfit)
	}
	return s + " " + string(req.TimeInForce)
}
