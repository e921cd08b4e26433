package eodobs

import (
	"context"
	"time"

	"ai-trading-challenge/internal/interfaces"
	"ai-trading-challenge/internal/logger"
	"ai-trading-challenge/internal/trace"

	"go.opentelemetry.io/otel/attribute"
)

type observableEodSummarizer struct {
	summarizer interfaces.EodSummarizer
}

var _ interfaces.EodSummarizer = (*observableEodSummarizer)(nil)

func Wrap(summarizer interfaces.EodSummarizer) interfaces.EodSummarizer {
	return &observableEodSummarizer{
		summarizer: summarizer,
	}
}

func (oes *observableEodSummarizer) SummarizeDay(t time.Time) (string, error) {
	return oes.observe("summary.SummarizeDay", t.Format("2006-01-02"), func() (string, error) {
		return oes.summarizer.SummarizeDay(t)
	})
}

func (oes *observableEodSummarizer) SummarizeToday() (string, error) {
	return oes.observe("summary.SummarizeToday", time.Now().Format("2006-01-02"), oes.summarizer.SummarizeToday)
}

func (oes *observableEodSummarizer) observe(span, date string, fn func() (string, error)) (string, error) {
	ctx, sp := trace.StartSpan(context.Background(), span)
	defer sp.End()
	sp.SetAttributes(attribute.String("date", date))

	start := time.Now()
	p, err := fn()
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 2, "Outcome summary failed", err, "date", date)
		return "", err
	}
	if p == "" {
		logger.DebugSkip(ctx, 2, "No outcomes to summarize", "date", date)
		return "", nil
	}

	sp.SetAttributes(attribute.String("summary_path", p))
	logger.InfoSkip(ctx, 2, "Outcome summary written",
		"date", date,
		"summary_path", p,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return p, nil
}
