package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"ai-trading-challenge/internal/broker/alpaca"
	"ai-trading-challenge/internal/broker/brokerobs"
	"ai-trading-challenge/internal/engine"
	"ai-trading-challenge/internal/engine/engineobs"
	"ai-trading-challenge/internal/eod"
	"ai-trading-challenge/internal/eod/eodobs"
	"ai-trading-challenge/internal/interfaces"
	"ai-trading-challenge/internal/journal"
	"ai-trading-challenge/internal/logger"
	"ai-trading-challenge/internal/store"
	"ai-trading-challenge/internal/tradelog"

	"go.uber.org/zap"
)

// loadConfig reads the yaml config and applies the command-line overrides.
func loadConfig(ctx context.Context) (*store.Config, store.Model, error) {
	cfg, err := store.LoadConfig(configPath)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to load config", err, "path", configPath)
		return nil, store.Model{}, err
	}
	if dryRunFlag {
		cfg.Mode = store.ModeDryRun
	}

	name := modelName
	if name == "" {
		name = cfg.DefaultModel
	}
	m, err := cfg.Model(name)
	if err != nil {
		return nil, store.Model{}, err
	}
	return cfg, m, nil
}

// initializeBroker builds the Alpaca client for the model's account and
// wraps it with observability.
func initializeBroker(ctx context.Context, cfg *store.Config, m store.Model) (interfaces.Broker, error) {
	creds, err := store.CredentialsFor(m)
	if err != nil {
		return nil, err
	}
	if creds.Shared {
		logger.Warn(ctx, "Model-specific keys not found, using shared ALPACA_KEY", "model", m.Name, "prefix", m.EnvPrefix)
	}

	zl := zap.NewNop()
	if logger.IsDebugEnabled() {
		zl = zap.Must(zap.NewDevelopment())
	}

	brk, err := alpaca.New(alpaca.Config{
		APIKey:            creds.Key,
		APISecret:         creds.Secret,
		BaseURL:           cfg.BaseURL,
		ClientOrderPrefix: m.EnvPrefix,
	}, zl.With(zap.String("model", m.Name)))
	if err != nil {
		return nil, err
	}

	if cfg.DryRun() {
		logger.Warn(ctx, "Running in DRY_RUN mode - orders will be printed, not sent")
	}
	logger.Info(ctx, "Broker initialized", "model", m.Name, "base_url", cfg.BaseURL)

	return brokerobs.Wrap(brk), nil
}

func initializeEngine(cfg *store.Config, m store.Model, brk interfaces.Broker, rec *tradelog.Transcript) interfaces.Engine {
	eng := engine.New(engine.ConfigFrom(cfg, m.Name), brk, rec)
	return engineobs.Wrap(eng)
}

func initializeSummarizer(cfg *store.Config) interfaces.EodSummarizer {
	return eodobs.Wrap(eod.NewSummarizer(cfg.Logs.Dir))
}

// openJournal opens the sqlite outcome journal. An empty journal_path puts
// it at <logs>/journal.sqlite.
func openJournal(cfg *store.Config) (*journal.SQLite, error) {
	p := cfg.Logs.JournalPath
	if p == "" {
		p = filepath.Join(cfg.Logs.Dir, "journal.sqlite")
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return nil, err
	}
	return journal.NewSQLite(p)
}

func compressOldLogs(ctx context.Context, cfg *store.Config) {
	if cfg.Logs.RetentionDays <= 0 {
		return
	}
	if err := tradelog.CompressOlder(cfg.Logs.Dir, cfg.Logs.RetentionDays); err != nil {
		logger.Warn(ctx, "Failed to compress old logs", "error", err)
	}
}

// readSheet reads the sheet from the file named by args, or from stdin when
// there is no argument or it is "-".
func readSheet(in io.Reader, args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		b, err := io.ReadAll(in)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(b), nil
	}
	b, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("read sheet: %w", err)
	}
	return string(b), nil
}

func isBlank(s string) bool { return strings.TrimSpace(s) == "" }
