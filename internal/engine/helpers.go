package engine

import (
	"context"
	"strings"
	"time"

	"ai-trading-challenge/internal/types"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// liveOrders drops terminal orders.
func liveOrders(orders []types.Order) []types.Order {
	out := make([]types.Order, 0, len(orders))
	for _, o := range orders {
		if o.StatusClass != types.StatusTerminal {
			out = append(out, o)
		}
	}
	return out
}

var moneyPrinter = message.NewPrinter(language.English)

// money renders $1,234.50.
func money(d decimal.Decimal) string {
	abs := d.Abs().Round(2)
	_, cents, _ := strings.Cut(abs.StringFixed(2), ".")
	sign := ""
	if d.IsNegative() && !abs.IsZero() {
		sign = "-"
	}
	return moneyPrinter.Sprintf("%s$%d.%s", sign, abs.IntPart(), cents)
}

// moneyOrNoData treats a non-positive balance as a missing reading.
func moneyOrNoData(d decimal.Decimal) string {
	if !d.IsPositive() {
		return "no data"
	}
	return money(d)
}

func priceOrNA(d *decimal.Decimal) string {
	if d == nil {
		return "N/A"
	}
	return money(*d)
}
