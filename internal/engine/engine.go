package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"ai-trading-challenge/internal/interfaces"
	"ai-trading-challenge/internal/logger"
	"ai-trading-challenge/internal/store"
	"ai-trading-challenge/internal/tradelog"
	"ai-trading-challenge/internal/types"

	"github.com/shopspring/decimal"
)

// ErrAccountUnavailable is returned by Preflight when the account cannot be
// read. It is the only error that aborts a run.
var ErrAccountUnavailable = errors.New("account unavailable")

type Config struct {
	// Label names the account in the preflight banner (the model name).
	Label               string
	DryRun              bool
	CancelPollAttempts  int
	CancelPollInterval  time.Duration
	ReplaceSettleDelay  time.Duration
	StopTolerance       decimal.Decimal
	PreflightOrderLimit int
}

// ConfigFrom maps the yaml execution settings onto an engine Config.
func ConfigFrom(c *store.Config, label string) Config {
	return Config{
		Label:               label,
		DryRun:              c.DryRun(),
		CancelPollAttempts:  c.Execution.CancelPollAttempts,
		CancelPollInterval:  c.Execution.CancelPollInterval,
		ReplaceSettleDelay:  c.Execution.ReplaceSettleDelay,
		StopTolerance:       decimal.NewFromFloat(c.Execution.StopTolerance),
		PreflightOrderLimit: c.Execution.PreflightOrderLimit,
	}
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

type Option func(*Engine)

// WithSleeper replaces the real clock used for settle delays and polling.
func WithSleeper(s Sleeper) Option {
	return func(e *Engine) { e.sleep = s }
}

// Engine routes validated instructions to the brokerage, one at a time, in
// sheet order. It keeps no account state between instructions.
type Engine struct {
	cfg   Config
	brk   interfaces.Broker
	rec   *tradelog.Transcript
	sleep Sleeper

	orders    *orderExecutor
	positions *positionManager
	risk      *riskManager
	stops     *stopManager
}

var _ interfaces.Engine = (*Engine)(nil)

func newEngine(cfg Config, brk interfaces.Broker, rec *tradelog.Transcript, opts ...Option) *Engine {
	if cfg.CancelPollAttempts < 1 {
		cfg.CancelPollAttempts = 1
	}
	if !cfg.StopTolerance.IsPositive() {
		cfg.StopTolerance = decimal.NewFromFloat(0.01)
	}
	if cfg.PreflightOrderLimit <= 0 {
		cfg.PreflightOrderLimit = 50
	}
	if rec == nil {
		rec = tradelog.NewTranscript(nil)
	}

	e := &Engine{cfg: cfg, brk: brk, rec: rec, sleep: sleepContext}
	for _, opt := range opts {
		opt(e)
	}
	e.orders = newOrderExecutor(e)
	e.positions = newPositionManager(e)
	e.risk = newRiskManager(e)
	e.stops = newStopManager(e)
	return e
}

// Preflight prints the account banner: equity, buying power, positions and
// live orders including held bracket legs.
func (e *Engine) Preflight(ctx context.Context) (types.Account, error) {
	acct, err := e.brk.GetAccount(ctx)
	if err != nil {
		logger.ErrorWithErr(ctx, "Could not read account", err)
		e.rec.Printf("Could not fetch account status: %v", err)
		return types.Account{}, fmt.Errorf("%w: %v", ErrAccountUnavailable, err)
	}

	e.rec.Printf("%s", banner)
	if e.cfg.Label != "" {
		e.rec.Printf("ALPACA PRE-FLIGHT STATUS (%s)", e.cfg.Label)
	} else {
		e.rec.Printf("ALPACA PRE-FLIGHT STATUS")
	}
	if e.cfg.DryRun {
		e.rec.Printf("Mode: DRY RUN (no orders will be sent)")
	}
	e.rec.Printf("%s", banner)
	e.rec.Printf("Equity: %s", moneyOrNoData(acct.Equity))
	e.rec.Printf("Buying Power: %s", money(acct.BuyingPower))

	e.rec.Printf("")
	e.rec.Printf("Current Positions:")
	positions, err := e.brk.ListPositions(ctx)
	switch {
	case err != nil:
		logger.ErrorWithErr(ctx, "Could not list positions", err)
		e.rec.Printf("   (could not list positions: %v)", err)
	case len(positions) == 0:
		e.rec.Printf("   (No open positions)")
	default:
		sort.Slice(positions, func(i, j int) bool { return positions[i].Symbol < positions[j].Symbol })
		for _, p := range positions {
			e.rec.Printf("   - %s: %s shares @ %s (Current: %s)",
				p.Symbol, p.Qty.String(), money(p.AvgEntryPrice), money(p.CurrentPrice))
		}
	}

	e.rec.Printf("")
	e.rec.Printf("Open Orders:")
	orders, err := e.brk.ListOrders(ctx, types.OrderQuery{Scope: types.ScopeAll, Limit: e.cfg.PreflightOrderLimit})
	if err != nil {
		logger.ErrorWithErr(ctx, "Could not list orders", err)
		e.rec.Printf("   (could not list orders: %v)", err)
	} else {
		live := liveOrders(orders)
		if len(live) == 0 {
			e.rec.Printf("   (No open orders)")
		}
		for _, o := range live {
			e.rec.Printf("   - %s", o)
		}
	}
	e.rec.Printf("%s", banner)

	logger.Info(ctx, "Preflight complete",
		"equity", acct.Equity.String(),
		"buying_power", acct.BuyingPower.String(),
		"dry_run", e.cfg.DryRun,
	)
	return acct, nil
}

const banner = "=================================================="

// Execute routes one instruction and returns its terminal outcome. Remote
// failures never escape as errors; they become SKIPPED or FAILED outcomes.
func (e *Engine) Execute(ctx context.Context, ins types.TradeInstruction) types.Outcome {
	logger.Debug(ctx, "Instruction received", "row", ins.Row, "state", types.StateReceived, "instruction", ins.String())
	e.rec.Printf("")
	e.rec.Printf("PROCESSING %s %s", ins.Action, ins.Ticker)

	var out types.Outcome
	switch ins.Action {
	case types.ActionBuy:
		out = e.executeBuy(ctx, ins)
	case types.ActionSell:
		out = e.executeSell(ctx, ins)
	case types.ActionHold:
		out = e.executeHold(ctx, ins)
	case types.ActionCancel:
		out = e.executeCancel(ctx, ins)
	case types.ActionNoTrades:
		out = skipped("NO_TRADES row ignored")
	default:
		out = failed("unknown action %q", ins.Action)
	}

	out.Row = ins.Row
	out.Action = ins.Action
	out.Ticker = ins.Ticker
	if out.State == "" {
		out.State = types.StateSkipped
	}

	e.rec.Printf("   %s", out)
	logger.Decision(ctx, out.Ticker, string(out.Action), string(out.State), out.Message,
		"row", out.Row,
		"protection", string(out.Protection),
		"dry_run", out.DryRun,
	)
	return out
}

func (e *Engine) executeHold(ctx context.Context, ins types.TradeInstruction) types.Outcome {
	if ins.StopPrice == nil {
		return skipped("holding %s (no stop-loss specified)", ins.Ticker)
	}
	return e.stops.reconcile(ctx, ins.Ticker, *ins.StopPrice)
}

// Run executes a parsed sheet: preflight first, then every instruction in
// order. Only a preflight failure returns an error.
func Run(ctx context.Context, eng interfaces.Engine, instructions []types.TradeInstruction) ([]types.Outcome, error) {
	if _, err := eng.Preflight(ctx); err != nil {
		return nil, err
	}
	outcomes := make([]types.Outcome, 0, len(instructions))
	for _, ins := range instructions {
		if err := ctx.Err(); err != nil {
			return outcomes, err
		}
		outcomes = append(outcomes, eng.Execute(ctx, ins))
	}
	return outcomes, nil
}

// outcome constructors

func skipped(format string, args ...any) types.Outcome {
	return types.Outcome{State: types.StateSkipped, Message: fmt.Sprintf(format, args...)}
}

func failed(format string, args ...any) types.Outcome {
	return types.Outcome{State: types.StateFailed, Message: fmt.Sprintf(format, args...)}
}

func submitted(ids []string, format string, args ...any) types.Outcome {
	return types.Outcome{State: types.StateSubmitted, Message: fmt.Sprintf(format, args...), OrderIDs: ids}
}

func dryRun(format string, args ...any) types.Outcome {
	return types.Outcome{State: types.StateSkipped, DryRun: true, Message: "[DRY RUN] would " + fmt.Sprintf(format, args...)}
}
