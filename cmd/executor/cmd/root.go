package cmd

import (
	"context"
	"fmt"
	"os"

	"ai-trading-challenge/internal/logger"
	"ai-trading-challenge/internal/trace"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	configPath string
	modelName  string
	dryRunFlag bool
)

var rootCmd = &cobra.Command{
	Use:   "executor",
	Short: "Execute AI-written trade sheets against an Alpaca account",
	Long: `Executor reads a trade sheet written by an AI model, turns it into
validated instructions and reconciles each one against the model's Alpaca
account: BUY places limit orders with optional bracket legs, SELL clears
open orders and exits, HOLD brings the protective stop in line, CANCEL
clears a ticker's open orders.

Examples:
  executor run --model Gemini sheet.csv
  pbpaste | executor run --model Claude --dry-run
  executor status --model ChatGPT
  executor parse --json sheet.md`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initializeSystem()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if err := trace.Shutdown(context.Background()); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to flush traces: %v\n", err)
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the yaml config")
	rootCmd.PersistentFlags().StringVarP(&modelName, "model", "m", "", "model account to trade (default: config default_model)")
	rootCmd.PersistentFlags().BoolVar(&dryRunFlag, "dry-run", false, "print intended orders instead of sending them")
}

// initializeSystem loads .env and starts the logger and tracer.
func initializeSystem() error {
	_ = godotenv.Load()

	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if err := trace.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize tracer: %v\n", err)
	}
	return nil
}
