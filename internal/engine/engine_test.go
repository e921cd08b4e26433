package engine

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"ai-trading-challenge/internal/broker/brokertest"
	"ai-trading-challenge/internal/sheet"
	"ai-trading-challenge/internal/tradelog"
	"ai-trading-challenge/internal/types"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noSleep(context.Context, time.Duration) error { return nil }

func newTestEngine(t *testing.T, b *brokertest.Broker, dryRun bool) (*Engine, *tradelog.Transcript) {
	t.Helper()
	rec := tradelog.NewTranscript(nil)
	cfg := Config{Label: "Test", DryRun: dryRun, CancelPollAttempts: 10, StopTolerance: decimal.NewFromFloat(0.01)}
	return newEngine(cfg, b, rec, WithSleeper(noSleep)), rec
}

func price(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func buy(ticker string, qty int64, limit, stop, tp string) types.TradeInstruction {
	ins := types.TradeInstruction{Row: 1, Action: types.ActionBuy, Ticker: ticker, Qty: types.Shares(qty), OrderType: "LIMIT", LimitPrice: price(limit)}
	if stop != "" {
		ins.StopPrice = price(stop)
	}
	if tp != "" {
		ins.TakeProfit = price(tp)
	}
	return ins
}

func transcriptContains(rec *tradelog.Transcript, sub string) bool {
	for _, l := range rec.Lines() {
		if strings.Contains(l, sub) {
			return true
		}
	}
	return false
}

func TestBuyOrderShapes(t *testing.T) {
	tests := []struct {
		name  string
		ins   types.TradeInstruction
		class types.OrderClass
		legs  int
	}{
		{name: "bracket", ins: buy("ABC", 10, "5.00", "4.50", "6.00"), class: types.ClassBracket, legs: 2},
		{name: "oto", ins: buy("ABC", 10, "5.00", "4.50", ""), class: types.ClassOTO, legs: 1},
		{name: "simple", ins: buy("ABC", 10, "5.00", "", ""), class: types.ClassSimple, legs: 0},
		{name: "take profit without stop", ins: buy("ABC", 10, "5.00", "", "6.00"), class: types.ClassSimple, legs: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := brokertest.New()
			e, _ := newTestEngine(t, b, false)

			out := e.Execute(context.Background(), tt.ins)
			require.Equal(t, types.StateSubmitted, out.State, out.Message)
			require.Len(t, out.OrderIDs, 1)

			o, ok := b.Order(out.OrderIDs[0])
			require.True(t, ok)
			assert.Equal(t, tt.class, o.Class)
			assert.Equal(t, types.OrderLimit, o.Type)
			assert.Equal(t, "5", o.LimitPrice.String())

			all, err := b.ListOrders(context.Background(), types.OrderQuery{Scope: types.ScopeAll, Symbols: []string{"ABC"}})
			require.NoError(t, err)
			assert.Len(t, all, 1+tt.legs)
		})
	}
}

func TestBuyRequestIsGTC(t *testing.T) {
	req := buyRequest(buy("ABC", 3, "5.00", "4.50", ""))
	assert.Equal(t, types.TIFGTC, req.TimeInForce)
	assert.Equal(t, types.ClassOTO, req.Class)
	assert.Nil(t, req.TakeProfit)
	assert.Equal(t, "3", req.Qty.String())
}

func TestBuyTakeProfitWithoutStopIsNoted(t *testing.T) {
	b := brokertest.New()
	e, rec := newTestEngine(t, b, false)
	e.Execute(context.Background(), buy("ABC", 10, "5.00", "", "6.00"))
	assert.True(t, transcriptContains(rec, "take profit $6.00 ignored"))
}

func TestBuyGuards(t *testing.T) {
	tests := []struct {
		name  string
		setup func(b *brokertest.Broker)
		want  string
	}{
		{
			name:  "unknown ticker",
			setup: func(b *brokertest.Broker) { b.UnknownAssets["ABC"] = true },
			want:  "invalid ticker",
		},
		{
			name:  "not tradable",
			setup: func(b *brokertest.Broker) { b.NonTradable["ABC"] = true },
			want:  "not tradable",
		},
		{
			name:  "already owned",
			setup: func(b *brokertest.Broker) { b.AddPosition("ABC", 5, 4.8) },
			want:  "already owned",
		},
		{
			name: "pending buy",
			setup: func(b *brokertest.Broker) {
				b.AddOrder(types.Order{Symbol: "ABC", Side: types.SideBuy, Type: types.OrderLimit, Qty: decimal.NewFromInt(10), LimitPrice: price("5.00")})
			},
			want: "pending order",
		},
		{
			name:  "insufficient buying power",
			setup: func(b *brokertest.Broker) { b.Account.BuyingPower = decimal.NewFromInt(10) },
			want:  "insufficient buying power (need $50.00, have $10.00)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := brokertest.New()
			tt.setup(b)
			e, _ := newTestEngine(t, b, false)

			out := e.Execute(context.Background(), buy("ABC", 10, "5.00", "4.50", "6.00"))
			assert.Equal(t, types.StateSkipped, out.State)
			assert.Contains(t, out.Message, tt.want)
			assert.Empty(t, b.Mutations())
		})
	}
}

func TestBuyRejectedByBrokerFails(t *testing.T) {
	b := brokertest.New()
	b.Fail("SubmitOrder", errors.New("insufficient qty"))
	e, _ := newTestEngine(t, b, false)

	out := e.Execute(context.Background(), buy("ABC", 10, "5.00", "4.50", "6.00"))
	assert.Equal(t, types.StateFailed, out.State)
	assert.Contains(t, out.Message, "insufficient qty")
}

func TestDryRunBuyWarnsOnBudgetButStillReports(t *testing.T) {
	b := brokertest.New()
	b.Account.BuyingPower = decimal.NewFromInt(10)
	e, rec := newTestEngine(t, b, true)

	out := e.Execute(context.Background(), buy("ABC", 10, "5.00", "4.50", "6.00"))
	assert.Equal(t, types.StateSkipped, out.State)
	assert.True(t, out.DryRun)
	assert.Contains(t, out.Message, "[DRY RUN] would place bracket limit buy 10 ABC")
	assert.True(t, transcriptContains(rec, "WARNING: insufficient buying power"))
	assert.Empty(t, b.Mutations())
}

func TestSecondRunOfSameSheetSkipsBuys(t *testing.T) {
	text := "ACTION,TICKER,QTY,TYPE,LIMIT_PRICE,STOP_LOSS,TAKE_PROFIT\n" +
		"BUY,ABC,10,LIMIT,5.00,4.50,6.00\n" +
		"BUY,DEF,3,LIMIT,20.00,18.00,\n"
	res := sheet.Parse(text)
	require.Len(t, res.Instructions, 2)

	b := brokertest.New()
	e, _ := newTestEngine(t, b, false)
	ctx := context.Background()

	first, err := Run(ctx, e, res.Instructions)
	require.NoError(t, err)
	for _, o := range first {
		assert.Equal(t, types.StateSubmitted, o.State, o.Message)
	}

	b.ResetCalls()
	second, err := Run(ctx, e, res.Instructions)
	require.NoError(t, err)
	require.Len(t, second, 2)
	for _, o := range second {
		assert.Equal(t, types.StateSkipped, o.State)
		assert.Contains(t, o.Message, "pending order")
	}
	assert.Empty(t, b.Mutations())
}

func TestSellAllWithoutPositionIsNoop(t *testing.T) {
	b := brokertest.New()
	e, _ := newTestEngine(t, b, false)

	out := e.Execute(context.Background(), types.TradeInstruction{Row: 4, Action: types.ActionSell, Ticker: "QRS", Qty: types.AllShares()})
	assert.Equal(t, types.StateSkipped, out.State)
	assert.Contains(t, out.Message, "already closed")
	assert.Equal(t, 4, out.Row)
	assert.Empty(t, b.Mutations())
}

func TestSellClearsOrdersFirst(t *testing.T) {
	b := brokertest.New()
	b.CancelLag = 2
	b.AddPosition("ABC", 10, 5)
	stop := b.AddOrder(types.Order{Symbol: "ABC", Side: types.SideSell, Type: types.OrderStop, Qty: decimal.NewFromInt(10), StopPrice: price("4.50")})
	e, _ := newTestEngine(t, b, false)

	out := e.Execute(context.Background(), types.TradeInstruction{Action: types.ActionSell, Ticker: "ABC", Qty: types.Shares(4)})
	require.Equal(t, types.StateSubmitted, out.State, out.Message)

	muts := b.Mutations()
	require.Len(t, muts, 2)
	assert.Equal(t, "CancelOrder", muts[0].Method)
	assert.Equal(t, stop.ID, muts[0].Arg)
	assert.Equal(t, "SubmitOrder", muts[1].Method)
	assert.Equal(t, "sell market simple 4", muts[1].Arg)

	o, _ := b.Order(stop.ID)
	assert.Equal(t, "canceled", o.Status)
}

func TestSellAllClosesPosition(t *testing.T) {
	b := brokertest.New()
	b.AddPosition("ABC", 10, 5)
	e, _ := newTestEngine(t, b, false)

	out := e.Execute(context.Background(), types.TradeInstruction{Action: types.ActionSell, Ticker: "ABC", Qty: types.AllShares()})
	require.Equal(t, types.StateSubmitted, out.State)
	muts := b.Mutations()
	require.Len(t, muts, 1)
	assert.Equal(t, "ClosePosition", muts[0].Method)
}

func TestSellWarnsWhenOrdersDoNotClear(t *testing.T) {
	b := brokertest.New()
	b.CancelLag = -1
	b.AddPosition("ABC", 10, 5)
	b.AddOrder(types.Order{Symbol: "ABC", Side: types.SideSell, Type: types.OrderStop, Qty: decimal.NewFromInt(10), StopPrice: price("4.50")})
	e, rec := newTestEngine(t, b, false)

	out := e.Execute(context.Background(), types.TradeInstruction{Action: types.ActionSell, Ticker: "ABC", Qty: types.AllShares()})
	assert.Equal(t, types.StateSubmitted, out.State)
	assert.True(t, transcriptContains(rec, "did not clear in time"))
}

func TestCancel(t *testing.T) {
	t.Run("nothing open", func(t *testing.T) {
		b := brokertest.New()
		e, _ := newTestEngine(t, b, false)
		out := e.Execute(context.Background(), types.TradeInstruction{Action: types.ActionCancel, Ticker: "ABC"})
		assert.Equal(t, types.StateSkipped, out.State)
		assert.Contains(t, out.Message, "nothing to cancel")
		assert.Empty(t, b.Mutations())
	})

	t.Run("cancels and waits", func(t *testing.T) {
		b := brokertest.New()
		b.CancelLag = 3
		b.AddOrder(types.Order{Symbol: "ABC", Side: types.SideBuy, Type: types.OrderLimit, Qty: decimal.NewFromInt(1), LimitPrice: price("5")})
		b.AddOrder(types.Order{Symbol: "ABC", Side: types.SideSell, Type: types.OrderStop, Qty: decimal.NewFromInt(1), StopPrice: price("4")})
		b.AddOrder(types.Order{Symbol: "DEF", Side: types.SideBuy, Type: types.OrderLimit, Qty: decimal.NewFromInt(1), LimitPrice: price("5")})
		e, _ := newTestEngine(t, b, false)

		out := e.Execute(context.Background(), types.TradeInstruction{Action: types.ActionCancel, Ticker: "ABC"})
		require.Equal(t, types.StateSubmitted, out.State)
		assert.Len(t, out.OrderIDs, 2)
		assert.Contains(t, out.Message, "successfully cancelled")
		assert.Len(t, b.Mutations(), 2)
	})

	t.Run("still pending", func(t *testing.T) {
		b := brokertest.New()
		b.CancelLag = -1
		b.AddOrder(types.Order{Symbol: "ABC", Side: types.SideBuy, Type: types.OrderLimit, Qty: decimal.NewFromInt(1), LimitPrice: price("5")})
		e, _ := newTestEngine(t, b, false)

		out := e.Execute(context.Background(), types.TradeInstruction{Action: types.ActionCancel, Ticker: "ABC"})
		assert.Equal(t, types.StateSubmitted, out.State)
		assert.Contains(t, out.Message, "1 still pending cancellation")
	})

	t.Run("all rejected", func(t *testing.T) {
		b := brokertest.New()
		b.AddOrder(types.Order{Symbol: "ABC", Side: types.SideBuy, Type: types.OrderLimit, Qty: decimal.NewFromInt(1), LimitPrice: price("5")})
		b.Fail("CancelOrder", errors.New("order not cancelable"))
		e, _ := newTestEngine(t, b, false)

		out := e.Execute(context.Background(), types.TradeInstruction{Action: types.ActionCancel, Ticker: "ABC"})
		assert.Equal(t, types.StateFailed, out.State)
	})
}

func TestDryRunIssuesNoMutations(t *testing.T) {
	b := brokertest.New()
	b.AddPosition("XYZ", 10, 9.8)
	b.AddPosition("QRS", 5, 12)
	b.AddOrder(types.Order{Symbol: "XYZ", Side: types.SideSell, Type: types.OrderStop, Qty: decimal.NewFromInt(10), StopPrice: price("9.00")})
	b.AddOrder(types.Order{Symbol: "DEF", Side: types.SideBuy, Type: types.OrderLimit, Qty: decimal.NewFromInt(1), LimitPrice: price("5")})
	e, _ := newTestEngine(t, b, true)

	instructions := []types.TradeInstruction{
		buy("ABC", 10, "5.00", "4.50", "6.00"),
		{Row: 2, Action: types.ActionHold, Ticker: "XYZ", StopPrice: price("9.50")},
		{Row: 3, Action: types.ActionSell, Ticker: "QRS", Qty: types.AllShares()},
		{Row: 4, Action: types.ActionCancel, Ticker: "DEF"},
	}
	outs, err := Run(context.Background(), e, instructions)
	require.NoError(t, err)
	require.Len(t, outs, 4)
	for _, o := range outs {
		assert.Equal(t, types.StateSkipped, o.State)
		assert.True(t, o.DryRun, o.Message)
		assert.True(t, strings.HasPrefix(o.Message, "[DRY RUN] would "), o.Message)
	}
	assert.Equal(t, types.ProtectionStale, outs[1].Protection)
	assert.Empty(t, b.Mutations())
}

func TestPreflight(t *testing.T) {
	b := brokertest.New()
	b.Account.Equity = decimal.Zero
	b.Account.BuyingPower = decimal.RequireFromString("1234.5")
	b.AddPosition("ABC", 10, 5)
	b.AddOrder(types.Order{Symbol: "ABC", Side: types.SideSell, Type: types.OrderStop, Class: types.ClassBracket, Status: "held", Qty: decimal.NewFromInt(10), StopPrice: price("4.50")})
	b.AddOrder(types.Order{Symbol: "OLD", Side: types.SideBuy, Type: types.OrderLimit, Status: "filled", Qty: decimal.NewFromInt(1), LimitPrice: price("1")})
	e, rec := newTestEngine(t, b, false)

	acct, err := e.Preflight(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1234.5", acct.BuyingPower.String())

	assert.True(t, transcriptContains(rec, "Equity: no data"))
	assert.True(t, transcriptContains(rec, "Buying Power: $1,234.50"))
	assert.True(t, transcriptContains(rec, "ABC: 10 shares @ $5.00"))
	assert.True(t, transcriptContains(rec, "ABC: STOP SELL 10 shares Stop @ $4.50 (OCO-held)"))
	assert.False(t, transcriptContains(rec, "OLD"))
}

func TestPreflightAccountFailureAbortsRun(t *testing.T) {
	b := brokertest.New()
	b.Fail("GetAccount", errors.New("unauthorized"))
	e, _ := newTestEngine(t, b, false)

	outs, err := Run(context.Background(), e, []types.TradeInstruction{buy("ABC", 1, "5", "", "")})
	assert.ErrorIs(t, err, ErrAccountUnavailable)
	assert.Empty(t, outs)
	assert.Empty(t, b.Mutations())
}

func TestMoney(t *testing.T) {
	assert.Equal(t, "$1,234.50", money(decimal.RequireFromString("1234.5")))
	assert.Equal(t, "$999.00", money(decimal.NewFromInt(999)))
	assert.Equal(t, "-$1,000,000.00", money(decimal.NewFromInt(-1000000)))
	assert.Equal(t, "$1,000.00", money(decimal.RequireFromString("999.999")))
	assert.Equal(t, "$0.00", money(decimal.RequireFromString("-0.001")))
	assert.Equal(t, "$12,345,678.90", money(decimal.RequireFromString("12345678.9")))
	assert.Equal(t, "N/A", priceOrNA(nil))
}

func TestBrokerReadFailureSkipsWithoutMutations(t *testing.T) {
	sell := types.TradeInstruction{Row: 1, Action: types.ActionSell, Ticker: "ABC", Qty: types.AllShares()}
	cancel := types.TradeInstruction{Row: 1, Action: types.ActionCancel, Ticker: "ABC"}

	tests := []struct {
		name   string
		ins    types.TradeInstruction
		method string
	}{
		{name: "buy asset", ins: buy("DEF", 10, "5.00", "4.50", "6.00"), method: "GetAsset"},
		{name: "buy position", ins: buy("DEF", 10, "5.00", "4.50", "6.00"), method: "GetPosition"},
		{name: "buy open orders", ins: buy("DEF", 10, "5.00", "4.50", "6.00"), method: "ListOrders"},
		{name: "buy account", ins: buy("DEF", 10, "5.00", "4.50", "6.00"), method: "GetAccount"},
		{name: "sell position", ins: sell, method: "GetPosition"},
		{name: "sell open orders", ins: sell, method: "ListOrders"},
		{name: "cancel open orders", ins: cancel, method: "ListOrders"},
		{name: "hold position", ins: hold("ABC", "4.75"), method: "GetPosition"},
		{name: "hold orders", ins: hold("ABC", "4.75"), method: "ListOrders"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := brokertest.New()
			b.AddPosition("ABC", 10, 5)
			b.AddOrder(stopSell("ABC", "4.50", "new"))
			b.Fail(tt.method, errors.New("connection reset"))
			e, _ := newTestEngine(t, b, false)

			out := e.Execute(context.Background(), tt.ins)
			assert.Equal(t, types.StateSkipped, out.State, out.Message)
			assert.Contains(t, out.Message, "connection reset")
			assert.Empty(t, b.Mutations())
		})
	}
}

func TestCancelWarnsWhenClearCannotBeConfirmed(t *testing.T) {
	b := brokertest.New()
	b.CancelLag = -1
	b.AddOrder(types.Order{Symbol: "ABC", Side: types.SideBuy, Type: types.OrderLimit, Qty: decimal.NewFromInt(1), LimitPrice: price("5")})

	// Every poll after the cancels fails.
	failPolls := func(context.Context, time.Duration) error {
		b.Fail("ListOrders", errors.New("connection reset"))
		return nil
	}
	rec := tradelog.NewTranscript(nil)
	cfg := Config{Label: "Test", CancelPollAttempts: 3, StopTolerance: decimal.NewFromFloat(0.01)}
	e := newEngine(cfg, b, rec, WithSleeper(failPolls))

	out := e.Execute(context.Background(), types.TradeInstruction{Action: types.ActionCancel, Ticker: "ABC"})
	assert.Equal(t, types.StateSubmitted, out.State)
	assert.Len(t, out.OrderIDs, 1)
	assert.Contains(t, out.Message, "could not confirm they cleared")
	assert.Len(t, b.Mutations(), 1)
}
