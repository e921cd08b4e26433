package engineobs

import (
	"context"
	"time"

	"ai-trading-challenge/internal/interfaces"
	"ai-trading-challenge/internal/logger"
	"ai-trading-challenge/internal/trace"
	"ai-trading-challenge/internal/types"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type observableEngine struct {
	engine interfaces.Engine
}

var _ interfaces.Engine = (*observableEngine)(nil)

func Wrap(eng interfaces.Engine) interfaces.Engine {
	return &observableEngine{
		engine: eng,
	}
}

func (oe *observableEngine) Preflight(ctx context.Context) (types.Account, error) {
	ctx, span := trace.StartSpan(ctx, "engine.Preflight")
	defer span.End()

	start := time.Now()
	acct, err := oe.engine.Preflight(ctx)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		logger.ErrorWithErrSkip(ctx, 1, "Preflight failed", err,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return acct, err
	}

	logger.DebugSkip(ctx, 1, "Preflight completed",
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return acct, nil
}

func (oe *observableEngine) Execute(ctx context.Context, ins types.TradeInstruction) types.Outcome {
	ctx, span := trace.StartSpan(ctx, "engine.Execute")
	defer span.End()
	span.SetAttributes(
		attribute.Int("row", ins.Row),
		attribute.String("action", string(ins.Action)),
		attribute.String("ticker", ins.Ticker),
	)

	start := time.Now()

	logger.InfoSkip(ctx, 1, "Executing instruction",
		"row", ins.Row,
		"instruction", ins.String(),
	)

	out := oe.engine.Execute(ctx, ins)

	span.SetAttributes(
		attribute.String("state", string(out.State)),
		attribute.String("protection", string(out.Protection)),
	)
	if out.State == types.StateFailed {
		span.SetStatus(codes.Error, out.Message)
	}

	logger.InfoSkip(ctx, 1, "Instruction completed",
		"row", ins.Row,
		"action", string(out.Action),
		"ticker", out.Ticker,
		"state", string(out.State),
		"dry_run", out.DryRun,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return out
}
