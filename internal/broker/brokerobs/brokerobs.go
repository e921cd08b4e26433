package brokerobs

import (
	"context"

	"ai-trading-challenge/internal/interfaces"
	"ai-trading-challenge/internal/logger"
	"ai-trading-challenge/internal/trace"
	"ai-trading-challenge/internal/types"

	"github.com/shopspring/decimal"
)

// observableBroker wraps a Broker with observability (logging & tracing)
type observableBroker struct {
	broker interfaces.Broker
}

// Compile-time interface check
var _ interfaces.Broker = (*observableBroker)(nil)

// Wrap wraps a broker with observability middleware
func Wrap(broker interfaces.Broker) interfaces.Broker {
	return &observableBroker{
		broker: broker,
	}
}

func (ob *observableBroker) GetAccount(ctx context.Context) (types.Account, error) {
	ctx, span := trace.StartSpan(ctx, "broker.GetAccount")
	defer span.End()

	acct, err := ob.broker.GetAccount(ctx)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch account", err)
		return types.Account{}, err
	}

	logger.DebugSkip(ctx, 1, "Account fetched",
		"status", acct.Status,
		"equity", acct.Equity.String(),
		"buying_power", acct.BuyingPower.String(),
	)
	return acct, nil
}

func (ob *observableBroker) ListPositions(ctx context.Context) ([]types.Position, error) {
	ctx, span := trace.StartSpan(ctx, "broker.ListPositions")
	defer span.End()

	positions, err := ob.broker.ListPositions(ctx)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to list positions", err)
		return nil, err
	}

	logger.DebugSkip(ctx, 1, "Positions listed", "count", len(positions))
	return positions, nil
}

func (ob *observableBroker) GetPosition(ctx context.Context, symbol string) (types.Position, bool, error) {
	ctx, span := trace.StartSpan(ctx, "broker.GetPosition")
	defer span.End()

	pos, ok, err := ob.broker.GetPosition(ctx, symbol)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch position", err, "symbol", symbol)
		return types.Position{}, false, err
	}

	logger.DebugSkip(ctx, 1, "Position fetched", "symbol", symbol, "held", ok, "qty", pos.Qty.String())
	return pos, ok, nil
}

func (ob *observableBroker) ListOrders(ctx context.Context, q types.OrderQuery) ([]types.Order, error) {
	ctx, span := trace.StartSpan(ctx, "broker.ListOrders")
	defer span.End()

	orders, err := ob.broker.ListOrders(ctx, q)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to list orders", err, "scope", q.Scope, "symbols", q.Symbols)
		return nil, err
	}

	logger.DebugSkip(ctx, 1, "Orders listed", "scope", q.Scope, "symbols", q.Symbols, "count", len(orders))
	return orders, nil
}

func (ob *observableBroker) GetAsset(ctx context.Context, symbol string) (types.Asset, error) {
	ctx, span := trace.StartSpan(ctx, "broker.GetAsset")
	defer span.End()

	asset, err := ob.broker.GetAsset(ctx, symbol)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch asset", err, "symbol", symbol)
		return types.Asset{}, err
	}

	logger.DebugSkip(ctx, 1, "Asset fetched", "symbol", symbol, "tradable", asset.Tradable)
	return asset, nil
}

// SubmitOrder places an order with observability
func (ob *observableBroker) SubmitOrder(ctx context.Context, req types.OrderRequest) (types.Order, error) {
	ctx, span := trace.StartSpan(ctx, "broker.SubmitOrder")
	defer span.End()

	logger.InfoSkip(ctx, 1, "Placing order",
		"symbol", req.Symbol,
		"side", req.Side,
		"type", req.Type,
		"class", req.Class,
		"qty", req.Qty.String(),
		"tif", req.TimeInForce,
	)

	order, err := ob.broker.SubmitOrder(ctx, req)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to place order", err,
			"symbol", req.Symbol,
			"side", req.Side,
			"qty", req.Qty.String(),
		)
		return types.Order{}, err
	}

	logger.InfoSkip(ctx, 1, "Order placed successfully",
		"symbol", req.Symbol,
		"order_id", order.ID,
		"status", order.Status,
	)
	return order, nil
}

func (ob *observableBroker) ReplaceOrder(ctx context.Context, orderID string, stopPrice decimal.Decimal) (types.Order, error) {
	ctx, span := trace.StartSpan(ctx, "broker.ReplaceOrder")
	defer span.End()

	logger.InfoSkip(ctx, 1, "Replacing order", "order_id", orderID, "stop_price", stopPrice.String())

	order, err := ob.broker.ReplaceOrder(ctx, orderID, stopPrice)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to replace order", err, "order_id", orderID)
		return types.Order{}, err
	}

	logger.InfoSkip(ctx, 1, "Order replaced", "order_id", orderID, "new_order_id", order.ID, "status", order.Status)
	return order, nil
}

func (ob *observableBroker) CancelOrder(ctx context.Context, orderID string) error {
	ctx, span := trace.StartSpan(ctx, "broker.CancelOrder")
	defer span.End()

	logger.InfoSkip(ctx, 1, "Cancelling order", "order_id", orderID)

	if err := ob.broker.CancelOrder(ctx, orderID); err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to cancel order", err, "order_id", orderID)
		return err
	}

	logger.InfoSkip(ctx, 1, "Cancel requested", "order_id", orderID)
	return nil
}

func (ob *observableBroker) ClosePosition(ctx context.Context, symbol string) (types.Order, error) {
	ctx, span := trace.StartSpan(ctx, "broker.ClosePosition")
	defer span.End()

	logger.InfoSkip(ctx, 1, "Closing position", "symbol", symbol)

	order, err := ob.broker.ClosePosition(ctx, symbol)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to close position", err, "symbol", symbol)
		return types.Order{}, err
	}

	logger.InfoSkip(ctx, 1, "Position close submitted", "symbol", symbol, "order_id", order.ID)
	return order, nil
}

func (ob *observableBroker) ListActivities(ctx context.Context, q types.ActivityQuery) ([]types.Activity, error) {
	ctx, span := trace.StartSpan(ctx, "broker.ListActivities")
	defer span.End()

	activities, err := ob.broker.ListActivities(ctx, q)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to list activities", err, "types", q.Types)
		return nil, err
	}

	logger.DebugSkip(ctx, 1, "Activities listed", "types", q.Types, "count", len(activities))
	return activities, nil
}
