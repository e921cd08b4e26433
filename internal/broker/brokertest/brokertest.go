// Package brokertest provides an in-memory interfaces.Broker for tests. It
// records every call and can inject per-method errors and cancel lag.
package brokertest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"ai-trading-challenge/internal/interfaces"
	"ai-trading-challenge/internal/types"

	"github.com/shopspring/decimal"
)

// Call is one recorded broker invocation.
type Call struct {
	Method string
	Symbol string
	Arg    string
}

var mutating = map[string]bool{
	"SubmitOrder":   true,
	"ReplaceOrder":  true,
	"CancelOrder":   true,
	"ClosePosition": true,
}

type Broker struct {
	mu sync.Mutex

	Account types.Account

	// NonTradable lists symbols whose asset is not tradable.
	NonTradable map[string]bool

	// UnknownAssets lists symbols GetAsset reports as not found.
	UnknownAssets map[string]bool

	// CancelLag is how many ListOrders calls a cancelled order stays in
	// pending_cancel before it settles. Negative means it never settles.
	CancelLag int

	positions  map[string]types.Position
	orders     []*types.Order
	activities []types.Activity
	errs       map[string]error
	lag        map[string]int
	calls      []Call
	nextID     int
}

var _ interfaces.Broker = (*Broker)(nil)

func New() *Broker {
	return &Broker{
		Account: types.Account{
			Status:      "ACTIVE",
			Cash:        decimal.NewFromInt(100000),
			Equity:      decimal.NewFromInt(100000),
			BuyingPower: decimal.NewFromInt(100000),
		},
		positions:     map[string]types.Position{},
		NonTradable:   map[string]bool{},
		UnknownAssets: map[string]bool{},
		errs:          map[string]error{},
		lag:           map[string]int{},
	}
}

// Fail makes every later call to method return err. A nil err clears it.
func (b *Broker) Fail(method string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		delete(b.errs, method)
		return
	}
	b.errs[method] = err
}

func (b *Broker) AddPosition(symbol string, qty int64, avg float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	price := decimal.NewFromFloat(avg)
	q := decimal.NewFromInt(qty)
	b.positions[symbol] = types.Position{
		Symbol:        symbol,
		Qty:           q,
		AvgEntryPrice: price,
		CurrentPrice:  price,
		MarketValue:   price.Mul(q),
	}
}

// AddActivity seeds an account activity.
func (b *Broker) AddActivity(a types.Activity) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.activities = append(b.activities, a)
}

// AddOrder seeds an order. Missing ID, Status and Class are filled in.
func (b *Broker) AddOrder(o types.Order) types.Order {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.add(o)
}

func (b *Broker) add(o types.Order) types.Order {
	if o.ID == "" {
		b.nextID++
		o.ID = fmt.Sprintf("ord-%d", b.nextID)
	}
	if o.Status == "" {
		o.Status = "new"
	}
	if o.Class == "" {
		o.Class = types.ClassSimple
	}
	o.StatusClass = types.ClassifyStatus(o.Status)
	b.orders = append(b.orders, &o)
	return o
}

// Order returns the current state of an order by id.
func (b *Broker) Order(id string) (types.Order, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if o := b.find(id); o != nil {
		return *o, true
	}
	return types.Order{}, false
}

func (b *Broker) Calls() []Call {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Call(nil), b.calls...)
}

// Mutations returns only the calls that change brokerage state.
func (b *Broker) Mutations() []Call {
	var out []Call
	for _, c := range b.Calls() {
		if mutating[c.Method] {
			out = append(out, c)
		}
	}
	return out
}

func (b *Broker) ResetCalls() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = nil
}

func (b *Broker) record(method, symbol, arg string) error {
	b.calls = append(b.calls, Call{Method: method, Symbol: symbol, Arg: arg})
	return b.errs[method]
}

func (b *Broker) find(id string) *types.Order {
	for _, o := range b.orders {
		if o.ID == id {
			return o
		}
	}
	return nil
}

func (b *Broker) setStatus(o *types.Order, status string) {
	o.Status = status
	o.StatusClass = types.ClassifyStatus(status)
}

func (b *Broker) GetAccount(ctx context.Context) (types.Account, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record("GetAccount", "", ""); err != nil {
		return types.Account{}, err
	}
	return b.Account, nil
}

func (b *Broker) ListPositions(ctx context.Context) ([]types.Position, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record("ListPositions", "", ""); err != nil {
		return nil, err
	}
	out := make([]types.Position, 0, len(b.positions))
	for _, p := range b.positions {
		out = append(out, p)
	}
	return out, nil
}

func (b *Broker) GetPosition(ctx context.Context, symbol string) (types.Position, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record("GetPosition", symbol, ""); err != nil {
		return types.Position{}, false, err
	}
	p, ok := b.positions[symbol]
	return p, ok, nil
}

// ListOrders applies cancel lag, then filters. Open scope omits held legs,
// as the real brokerage does.
func (b *Broker) ListOrders(ctx context.Context, q types.OrderQuery) ([]types.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record("ListOrders", strings.Join(q.Symbols, ","), string(q.Scope)); err != nil {
		return nil, err
	}

	for id, n := range b.lag {
		if n < 0 {
			continue
		}
		if n == 0 {
			if o := b.find(id); o != nil {
				b.setStatus(o, "canceled")
			}
			delete(b.lag, id)
			continue
		}
		b.lag[id] = n - 1
	}

	want := map[string]bool{}
	for _, s := range q.Symbols {
		want[s] = true
	}
	var out []types.Order
	for _, o := range b.orders {
		if len(want) > 0 && !want[o.Symbol] {
			continue
		}
		if q.Scope != types.ScopeAll && (o.StatusClass == types.StatusTerminal || o.Status == "held") {
			continue
		}
		out = append(out, *o)
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out, nil
}

func (b *Broker) GetAsset(ctx context.Context, symbol string) (types.Asset, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record("GetAsset", symbol, ""); err != nil {
		return types.Asset{}, err
	}
	if b.UnknownAssets[symbol] {
		return types.Asset{}, fmt.Errorf("asset %s: %w", symbol, types.ErrNotFound)
	}
	return types.Asset{Symbol: symbol, Tradable: !b.NonTradable[symbol]}, nil
}

// SubmitOrder accepts the order. Bracket and OTO parents get held sell legs.
func (b *Broker) SubmitOrder(ctx context.Context, req types.OrderRequest) (types.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record("SubmitOrder", req.Symbol, fmt.Sprintf("%s %s %s %s", req.Side, req.Type, req.Class, req.Qty)); err != nil {
		return types.Order{}, err
	}

	class := req.Class
	if class == "" {
		class = types.ClassSimple
	}
	parent := b.add(types.Order{
		Symbol:     req.Symbol,
		Side:       req.Side,
		Type:       req.Type,
		Class:      class,
		Status:     "accepted",
		Qty:        req.Qty,
		LimitPrice: req.LimitPrice,
		StopPrice:  req.StopPrice,
	})
	if req.StopLoss != nil {
		b.add(types.Order{Symbol: req.Symbol, Side: types.SideSell, Type: types.OrderStop, Class: class, Status: "held", Qty: req.Qty, StopPrice: req.StopLoss})
	}
	if req.TakeProfit != nil {
		b.add(types.Order{Symbol: req.Symbol, Side: types.SideSell, Type: types.OrderLimit, Class: class, Status: "held", Qty: req.Qty, LimitPrice: req.TakeProfit})
	}
	return parent, nil
}

func (b *Broker) ReplaceOrder(ctx context.Context, orderID string, stopPrice decimal.Decimal) (types.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	o := b.find(orderID)
	symbol := ""
	if o != nil {
		symbol = o.Symbol
	}
	if err := b.record("ReplaceOrder", symbol, orderID+" "+stopPrice.String()); err != nil {
		return types.Order{}, err
	}
	if o == nil {
		return types.Order{}, fmt.Errorf("order %s: %w", orderID, types.ErrNotFound)
	}
	if o.StatusClass != types.StatusLive {
		return types.Order{}, fmt.Errorf("order %s is %s and cannot be replaced", orderID, o.Status)
	}

	b.setStatus(o, "replaced")
	next := *o
	next.ID = ""
	next.Status = "new"
	sp := stopPrice
	next.StopPrice = &sp
	return b.add(next), nil
}

func (b *Broker) CancelOrder(ctx context.Context, orderID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	o := b.find(orderID)
	symbol := ""
	if o != nil {
		symbol = o.Symbol
	}
	if err := b.record("CancelOrder", symbol, orderID); err != nil {
		return err
	}
	if o == nil {
		return fmt.Errorf("order %s: %w", orderID, types.ErrNotFound)
	}
	if o.StatusClass == types.StatusTerminal {
		return fmt.Errorf("order %s is already %s", orderID, o.Status)
	}
	if b.CancelLag == 0 {
		b.setStatus(o, "canceled")
		return nil
	}
	b.setStatus(o, "pending_cancel")
	b.lag[o.ID] = b.CancelLag
	return nil
}

func (b *Broker) ClosePosition(ctx context.Context, symbol string) (types.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record("ClosePosition", symbol, ""); err != nil {
		return types.Order{}, err
	}
	p, ok := b.positions[symbol]
	if !ok {
		return types.Order{}, fmt.Errorf("position %s: %w", symbol, types.ErrNotFound)
	}
	delete(b.positions, symbol)
	return b.add(types.Order{Symbol: symbol, Side: types.SideSell, Type: types.OrderMarket, Status: "accepted", Qty: p.Qty}), nil
}

// ListActivities returns seeded activities of the requested types, newest
// first.
func (b *Broker) ListActivities(ctx context.Context, q types.ActivityQuery) ([]types.Activity, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record("ListActivities", "", strings.Join(q.Types, ",")); err != nil {
		return nil, err
	}
	want := map[string]bool{}
	for _, t := range q.Types {
		want[t] = true
	}
	var out []types.Activity
	for _, a := range b.activities {
		if len(want) == 0 || want[a.Type] {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.After(out[j].Time) })
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}
