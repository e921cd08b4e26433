package cmd

import (
	"ai-trading-challenge/internal/tradelog"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the account pre-flight report",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, m, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	brk, err := initializeBroker(ctx, cfg, m)
	if err != nil {
		return err
	}
	eng := initializeEngine(cfg, m, brk, tradelog.NewTranscript(cmd.OutOrStdout()))
	_, err = eng.Preflight(ctx)
	return err
}
