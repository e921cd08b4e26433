// Package alpaca adapts the Alpaca trading REST API to interfaces.Broker.
//
// The SDK calls are synchronous and take no context; ctx is checked before
// each round trip so a cancelled run stops issuing requests.
package alpaca

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"ai-trading-challenge/internal/interfaces"
	"ai-trading-challenge/internal/types"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// api is the subset of *alpaca.Client the adapter uses.
type api interface {
	GetAccount() (*alpaca.Account, error)
	GetPositions() ([]alpaca.Position, error)
	GetPosition(symbol string) (*alpaca.Position, error)
	GetOrders(req alpaca.GetOrdersRequest) ([]alpaca.Order, error)
	GetAsset(symbol string) (*alpaca.Asset, error)
	PlaceOrder(req alpaca.PlaceOrderRequest) (*alpaca.Order, error)
	ReplaceOrder(orderID string, req alpaca.ReplaceOrderRequest) (*alpaca.Order, error)
	CancelOrder(orderID string) error
	ClosePosition(symbol string, req alpaca.ClosePositionRequest) (*alpaca.Order, error)
	GetAccountActivities(req alpaca.GetAccountActivitiesRequest) ([]alpaca.AccountActivity, error)
}

type Config struct {
	APIKey    string
	APISecret string
	BaseURL   string
	// ClientOrderPrefix is prepended to generated client order ids so orders
	// placed by different model accounts are distinguishable.
	ClientOrderPrefix string
}

type Client struct {
	api    api
	prefix string
	log    *zap.Logger
}

var _ interfaces.Broker = (*Client)(nil)

func New(cfg Config, log *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, errors.New("alpaca: API key and secret are required")
	}
	c := alpaca.NewClient(alpaca.ClientOpts{
		APIKey:    cfg.APIKey,
		APISecret: cfg.APISecret,
		BaseURL:   cfg.BaseURL,
	})
	return newClient(c, cfg.ClientOrderPrefix, log), nil
}

func newClient(a api, prefix string, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{api: a, prefix: prefix, log: log}
}

func (c *Client) GetAccount(ctx context.Context) (types.Account, error) {
	if err := ctx.Err(); err != nil {
		return types.Account{}, err
	}
	acct, err := c.api.GetAccount()
	if err != nil {
		return types.Account{}, fmt.Errorf("get account: %w", mapErr(err))
	}
	c.log.Debug("account", zap.String("status", acct.Status), zap.String("equity", acct.Equity.String()))
	return types.Account{
		Status:      acct.Status,
		Cash:        acct.Cash,
		Equity:      acct.Equity,
		BuyingPower: acct.BuyingPower,
	}, nil
}

func (c *Client) ListPositions(ctx context.Context) ([]types.Position, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ps, err := c.api.GetPositions()
	if err != nil {
		return nil, fmt.Errorf("get positions: %w", mapErr(err))
	}
	out := make([]types.Position, 0, len(ps))
	for _, p := range ps {
		out = append(out, toPosition(p))
	}
	c.log.Debug("positions", zap.Int("count", len(out)))
	return out, nil
}

func (c *Client) GetPosition(ctx context.Context, symbol string) (types.Position, bool, error) {
	if err := ctx.Err(); err != nil {
		return types.Position{}, false, err
	}
	p, err := c.api.GetPosition(symbol)
	if err != nil {
		if errors.Is(mapErr(err), types.ErrNotFound) {
			return types.Position{}, false, nil
		}
		return types.Position{}, false, fmt.Errorf("get position %s: %w", symbol, mapErr(err))
	}
	pos := toPosition(*p)
	if pos.Qty.IsZero() {
		return types.Position{}, false, nil
	}
	return pos, true, nil
}

// ListOrders returns orders with bracket legs flattened into the list, so
// held legs appear next to their parents.
func (c *Client) ListOrders(ctx context.Context, q types.OrderQuery) ([]types.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	status := string(q.Scope)
	if status == "" {
		status = string(types.ScopeOpen)
	}
	raw, err := c.api.GetOrders(alpaca.GetOrdersRequest{
		Status:  status,
		Limit:   q.Limit,
		Symbols: q.Symbols,
		Nested:  true,
	})
	if err != nil {
		return nil, fmt.Errorf("get orders: %w", mapErr(err))
	}
	var out []types.Order
	for _, o := range raw {
		out = append(out, toOrder(o))
		for _, leg := range o.Legs {
			out = append(out, toOrder(leg))
		}
	}
	c.log.Debug("orders", zap.String("status", status), zap.Strings("symbols", q.Symbols), zap.Int("count", len(out)))
	return out, nil
}

func (c *Client) GetAsset(ctx context.Context, symbol string) (types.Asset, error) {
	if err := ctx.Err(); err != nil {
		return types.Asset{}, err
	}
	a, err := c.api.GetAsset(symbol)
	if err != nil {
		return types.Asset{}, fmt.Errorf("get asset %s: %w", symbol, mapErr(err))
	}
	return types.Asset{Symbol: a.Symbol, Tradable: a.Tradable}, nil
}

func (c *Client) SubmitOrder(ctx context.Context, req types.OrderRequest) (types.Order, error) {
	if err := ctx.Err(); err != nil {
		return types.Order{}, err
	}
	r := c.placeRequest(req)
	c.log.Debug("place order",
		zap.String("symbol", r.Symbol),
		zap.String("side", string(r.Side)),
		zap.String("type", string(r.Type)),
		zap.String("class", string(r.OrderClass)),
		zap.String("client_order_id", r.ClientOrderID),
	)
	o, err := c.api.PlaceOrder(r)
	if err != nil {
		return types.Order{}, fmt.Errorf("place order %s: %w", req.Symbol, mapErr(err))
	}
	return toOrder(*o), nil
}

func (c *Client) placeRequest(req types.OrderRequest) alpaca.PlaceOrderRequest {
	qty := req.Qty
	r := alpaca.PlaceOrderRequest{
		Symbol:        req.Symbol,
		Qty:           &qty,
		Side:          alpaca.Side(req.Side),
		Type:          alpaca.OrderType(req.Type),
		TimeInForce:   alpaca.TimeInForce(req.TimeInForce),
		LimitPrice:    roundPtr(req.LimitPrice),
		StopPrice:     roundPtr(req.StopPrice),
		ClientOrderID: c.clientOrderID(),
	}
	if req.Class != "" && req.Class != types.ClassSimple {
		r.OrderClass = alpaca.OrderClass(req.Class)
	}
	if req.StopLoss != nil {
		r.StopLoss = &alpaca.StopLoss{StopPrice: roundPtr(req.StopLoss)}
	}
	if req.TakeProfit != nil {
		r.TakeProfit = &alpaca.TakeProfit{LimitPrice: roundPtr(req.TakeProfit)}
	}
	return r
}

func (c *Client) clientOrderID() string {
	id := uuid.NewString()
	if c.prefix == "" {
		return id
	}
	return strings.ToLower(c.prefix) + "-" + id
}

func (c *Client) ReplaceOrder(ctx context.Context, orderID string, stopPrice decimal.Decimal) (types.Order, error) {
	if err := ctx.Err(); err != nil {
		return types.Order{}, err
	}
	stop := stopPrice.Round(2)
	o, err := c.api.ReplaceOrder(orderID, alpaca.ReplaceOrderRequest{StopPrice: &stop})
	if err != nil {
		return types.Order{}, fmt.Errorf("replace order %s: %w", orderID, mapErr(err))
	}
	c.log.Debug("replaced order", zap.String("order_id", orderID), zap.String("new_order_id", o.ID))
	return toOrder(*o), nil
}

func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.api.CancelOrder(orderID); err != nil {
		return fmt.Errorf("cancel order %s: %w", orderID, mapErr(err))
	}
	return nil
}

func (c *Client) ClosePosition(ctx context.Context, symbol string) (types.Order, error) {
	if err := ctx.Err(); err != nil {
		return types.Order{}, err
	}
	o, err := c.api.ClosePosition(symbol, alpaca.ClosePositionRequest{})
	if err != nil {
		return types.Order{}, fmt.Errorf("close position %s: %w", symbol, mapErr(err))
	}
	return toOrder(*o), nil
}

// ListActivities reads the activity feed newest first. Without a limit the
// brokerage default page size applies.
func (c *Client) ListActivities(ctx context.Context, q types.ActivityQuery) ([]types.Activity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := c.api.GetAccountActivities(alpaca.GetAccountActivitiesRequest{
		ActivityTypes: q.Types,
		Direction:     "desc",
		PageSize:      q.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("get account activities: %w", mapErr(err))
	}
	out := make([]types.Activity, 0, len(raw))
	for _, a := range raw {
		out = append(out, types.Activity{
			ID:     a.ID,
			Type:   a.ActivityType,
			Symbol: a.Symbol,
			Side:   types.Side(a.Side),
			Qty:    a.Qty,
			Price:  a.Price,
			Time:   a.TransactionTime,
		})
	}
	c.log.Debug("activities", zap.Strings("types", q.Types), zap.Int("count", len(out)))
	return out, nil
}

// mapErr turns a 404 from the API into types.ErrNotFound and leaves every
// other error as is.
func mapErr(err error) error {
	var apiErr *alpaca.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", types.ErrNotFound, apiErr.Message)
	}
	return err
}

func toPosition(p alpaca.Position) types.Position {
	return types.Position{
		Symbol:        p.Symbol,
		Qty:           p.Qty,
		AvgEntryPrice: p.AvgEntryPrice,
		CurrentPrice:  deref(p.CurrentPrice),
		MarketValue:   deref(p.MarketValue),
	}
}

func toOrder(o alpaca.Order) types.Order {
	out := types.Order{
		ID:            o.ID,
		ClientOrderID: o.ClientOrderID,
		Symbol:        o.Symbol,
		Side:          types.Side(o.Side),
		Type:          types.OrderType(o.Type),
		Class:         types.OrderClass(o.OrderClass),
		Status:        o.Status,
		StatusClass:   types.ClassifyStatus(o.Status),
		LimitPrice:    o.LimitPrice,
		StopPrice:     o.StopPrice,
	}
	if out.Class == "" {
		out.Class = types.ClassSimple
	}
	if o.Qty != nil {
		out.Qty = *o.Qty
	}
	return out
}

func deref(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}

func roundPtr(d *decimal.Decimal) *decimal.Decimal {
	if d == nil {
		return nil
	}
	r := d.Round(2)
	return &r
}
