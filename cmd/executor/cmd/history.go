package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"ai-trading-challenge/internal/interfaces"
	"ai-trading-challenge/internal/journal"
	"ai-trading-challenge/internal/types"

	"github.com/spf13/cobra"
)

var (
	historyLimit  int
	historyTicker string
	historyBroker bool
)

// recentOrderCount is how many orders of any status --broker lists.
const recentOrderCount = 10

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent instruction outcomes from the journal",
	Long: `History lists journaled outcomes, newest first, so repeated runs of a
sheet can be checked for duplicate submissions.

With --broker, the brokerage account is read instead: recent fills from the
activity feed and the last orders of any status.

Examples:
  executor history
  executor history --ticker ABC --limit 5
  executor history --broker --model gemini`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of outcomes to show")
	historyCmd.Flags().StringVarP(&historyTicker, "ticker", "t", "", "only show outcomes for this ticker")
	historyCmd.Flags().BoolVar(&historyBroker, "broker", false, "show fills and recent orders from the brokerage instead of the journal")
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, m, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	if historyBroker {
		brk, err := initializeBroker(ctx, cfg, m)
		if err != nil {
			return fmt.Errorf("initialize broker: %w", err)
		}
		return printBrokerHistory(ctx, cmd.OutOrStdout(), brk, historyLimit)
	}

	j, err := openJournal(cfg)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer j.Close()

	var recs []journal.Record
	if historyTicker != "" {
		recs, err = j.ByTicker(ctx, historyTicker, historyLimit)
	} else {
		recs, err = j.Recent(ctx, historyLimit)
	}
	if err != nil {
		return fmt.Errorf("query journal: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(recs) == 0 {
		fmt.Fprintln(out, "No outcomes recorded.")
		return nil
	}
	for _, r := range recs {
		ids := ""
		if len(r.OrderIDs) > 0 {
			ids = " [" + strings.Join(r.OrderIDs, ",") + "]"
		}
		fmt.Fprintf(out, "%s  %-10s %-8s row %-3d %s%s\n",
			r.RecordedAt.Local().Format("2006-01-02 15:04:05"), r.Model, shortID(r.RunID), r.Row, r.Outcome, ids)
	}
	return nil
}

// printBrokerHistory lists the newest fills and the most recent orders of
// any status, as the brokerage reports them.
func printBrokerHistory(ctx context.Context, out io.Writer, brk interfaces.Broker, limit int) error {
	fills, err := brk.ListActivities(ctx, types.ActivityQuery{Types: []string{types.ActivityFill}, Limit: limit})
	if err != nil {
		return fmt.Errorf("list fills: %w", err)
	}
	orders, err := brk.ListOrders(ctx, types.OrderQuery{Scope: types.ScopeAll, Limit: recentOrderCount})
	if err != nil {
		return fmt.Errorf("list orders: %w", err)
	}

	fmt.Fprintln(out, "Fills:")
	if len(fills) == 0 {
		fmt.Fprintln(out, "  (none)")
	}
	for _, a := range fills {
		fmt.Fprintf(out, "  %s  %s\n", a.Time.Local().Format("2006-01-02 15:04:05"), a)
	}

	fmt.Fprintln(out, "Recent orders:")
	if len(orders) == 0 {
		fmt.Fprintln(out, "  (none)")
	}
	if len(orders) > recentOrderCount {
		orders = orders[:recentOrderCount]
	}
	for _, o := range orders {
		fmt.Fprintf(out, "  %s\n", o)
	}
	return nil
}

// shortID is the tail of a ULID, which is the random part and enough to tell
// runs apart on one screen.
func shortID(id string) string {
	if len(id) <= 6 {
		return id
	}
	return id[len(id)-6:]
}
