package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"ai-trading-challenge/internal/engine"
	"ai-trading-challenge/internal/interfaces"
	"ai-trading-challenge/internal/journal"
	"ai-trading-challenge/internal/logger"
	"ai-trading-challenge/internal/sheet"
	"ai-trading-challenge/internal/store"
	"ai-trading-challenge/internal/tradelog"
	"ai-trading-challenge/internal/types"

	"github.com/oklog/ulid/v2"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run [sheet-file|-]",
	Short: "Execute a trade sheet against the model's account",
	Long: `Run parses a trade sheet (from a file, or stdin when no file is given),
prints the account pre-flight report and executes every instruction in
order. The transcript is saved to <logs>/trades/<date>/<model>.md and each
outcome is appended to the daily outcome log and the sqlite journal.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, m, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	text, err := readSheet(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}
	if isBlank(text) {
		return fmt.Errorf("trade sheet is empty")
	}

	runID := ulid.Make().String()
	started := time.Now()
	rec := tradelog.NewTranscript(cmd.OutOrStdout())
	defer saveTranscript(ctx, rec, cfg, m, started)

	recordSheet(rec, text)
	res := sheet.Parse(text)
	rec.Printf("Parser: %s", res.Diagnostic)
	for _, r := range res.Rejections {
		rec.Printf("   Skipping %s", r)
	}
	logger.Info(ctx, "Sheet parsed",
		"run_id", runID,
		"model", m.Name,
		"mode", string(res.Mode),
		"instructions", len(res.Instructions),
		"rejections", len(res.Rejections),
	)

	j, err := openJournal(cfg)
	if err != nil {
		logger.ErrorWithErr(ctx, "Journal unavailable, continuing without it", err)
	} else {
		defer j.Close()
		if err := j.RecordRun(ctx, journal.Run{
			RunID:        runID,
			Model:        m.Name,
			Mode:         cfg.Mode,
			ParseMode:    string(res.Mode),
			StartedAt:    started,
			Instructions: len(res.Instructions),
			Rejections:   len(res.Rejections),
		}); err != nil {
			logger.Warn(ctx, "Failed to journal run", "error", err)
		}
	}

	brk, err := initializeBroker(ctx, cfg, m)
	if err != nil {
		return err
	}
	eng := initializeEngine(cfg, m, brk, rec)

	if len(res.Instructions) == 0 {
		rec.Printf("No trade instructions found. Nothing to execute.")
		_, err := eng.Preflight(ctx)
		return err
	}

	outcomes, err := execute(ctx, eng, res.Instructions, func(o types.Outcome) {
		recordOutcome(ctx, cfg, j, runID, m, o)
	})
	if err != nil {
		return err
	}

	printSummary(rec, outcomes)
	writeSummary(ctx, rec, initializeSummarizer(cfg))
	compressOldLogs(ctx, cfg)
	return nil
}

// recordSheet copies the sheet as received into the transcript, so a saved
// transcript shows what the parser was given.
func recordSheet(rec *tradelog.Transcript, text string) {
	rec.Printf("Trade sheet:")
	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		rec.Printf("   %s", strings.TrimRight(line, "\r"))
	}
}

// writeSummary refreshes today's outcome summary. A failure is logged and
// does not fail the run.
func writeSummary(ctx context.Context, rec *tradelog.Transcript, s interfaces.EodSummarizer) {
	p, err := s.SummarizeToday()
	if err != nil {
		logger.Warn(ctx, "Failed to write outcome summary", "error", err)
		rec.Printf("Outcome summary not written: %v", err)
		return
	}
	if p != "" {
		rec.Printf("Outcome summary written: %s", p)
	}
}

// execute runs preflight and then each instruction, handing every outcome
// to record as soon as it is known.
func execute(ctx context.Context, eng interfaces.Engine, instructions []types.TradeInstruction, record func(types.Outcome)) ([]types.Outcome, error) {
	wrapped := &recordingEngine{Engine: eng, record: record}
	return engine.Run(ctx, wrapped, instructions)
}

type recordingEngine struct {
	interfaces.Engine
	record func(types.Outcome)
}

func (r *recordingEngine) Execute(ctx context.Context, ins types.TradeInstruction) types.Outcome {
	o := r.Engine.Execute(ctx, ins)
	r.record(o)
	return o
}

func recordOutcome(ctx context.Context, cfg *store.Config, j *journal.SQLite, runID string, m store.Model, o types.Outcome) {
	if err := tradelog.Append(cfg.Logs.Dir, tradelog.Entry{RunID: runID, Model: m.Name, Outcome: o}); err != nil {
		logger.Warn(ctx, "Failed to append outcome", "error", err, "row", o.Row)
	}
	if j == nil {
		return
	}
	if err := j.RecordOutcome(ctx, runID, o); err != nil {
		logger.Warn(ctx, "Failed to journal outcome", "error", err, "row", o.Row)
	}
}

func printSummary(rec *tradelog.Transcript, outcomes []types.Outcome) {
	counts := map[types.State]int{}
	for _, o := range outcomes {
		counts[o.State]++
	}
	rec.Printf("")
	rec.Printf("Done: %d submitted, %d skipped, %d failed.",
		counts[types.StateSubmitted], counts[types.StateSkipped], counts[types.StateFailed])
}

func saveTranscript(ctx context.Context, rec *tradelog.Transcript, cfg *store.Config, m store.Model, day time.Time) {
	p, err := rec.Save(cfg.Logs.Dir, m.Name, day)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to save transcript", err)
		fmt.Fprintf(os.Stderr, "Failed to save transcript: %v\n", err)
		return
	}
	if p != "" {
		fmt.Fprintf(os.Stderr, "Transcript saved to %s\n", p)
	}
}
