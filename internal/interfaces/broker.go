package interfaces

import (
	"context"

	"ai-trading-challenge/internal/types"

	"github.com/shopspring/decimal"
)

// Broker is the brokerage execution service the executor reconciles against.
// Every call is a synchronous remote round trip.
type Broker interface {
	GetAccount(ctx context.Context) (types.Account, error)
	ListPositions(ctx context.Context) ([]types.Position, error)
	// GetPosition reports ok=false when the account holds no position in
	// symbol; that is a normal outcome, not an error.
	GetPosition(ctx context.Context, symbol string) (pos types.Position, ok bool, err error)
	ListOrders(ctx context.Context, q types.OrderQuery) ([]types.Order, error)
	GetAsset(ctx context.Context, symbol string) (types.Asset, error)
	SubmitOrder(ctx context.Context, req types.OrderRequest) (types.Order, error)
	ReplaceOrder(ctx context.Context, orderID string, stopPrice decimal.Decimal) (types.Order, error)
	CancelOrder(ctx context.Context, orderID string) error
	ClosePosition(ctx context.Context, symbol string) (types.Order, error)
	// ListActivities reads the account activity feed, newest first.
	ListActivities(ctx context.Context, q types.ActivityQuery) ([]types.Activity, error)
}
