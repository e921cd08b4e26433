package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("TRADER_LOG_DIR", "")
	t.Setenv("TRADER_LOG_RETENTION_DAYS", "")

	c, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ModeLive, c.Mode)
	assert.Equal(t, PaperBaseURL, c.BaseURL)
	assert.Equal(t, "ChatGPT", c.DefaultModel)
	assert.Len(t, c.Models, 4)
	assert.Equal(t, 10, c.Execution.CancelPollAttempts)
	assert.Equal(t, time.Second, c.Execution.CancelPollInterval)
	assert.Equal(t, time.Second, c.Execution.ReplaceSettleDelay)
	assert.InDelta(t, 0.01, c.Execution.StopTolerance, 1e-9)
	assert.Equal(t, "logs", c.Logs.Dir)
	assert.False(t, c.DryRun())
}

func TestLoadConfigFromYAML(t *testing.T) {
	t.Setenv("TRADER_LOG_DIR", "")
	t.Setenv("TRADER_LOG_RETENTION_DAYS", "14")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
mode: dry_run
default_model: claude
models:
  - name: Claude
    env_prefix: CLAUDE
  - name: Gemini
    env_prefix: GEMINI
execution:
  cancel_poll_attempts: 3
  cancel_poll_interval: 250ms
  replace_settle_delay: 2s
logs:
  dir: /tmp/exec-logs
`), 0o644))

	c, err := LoadConfig(path)
	require.NoError(t, err)
	assert.True(t, c.DryRun())
	assert.Equal(t, 3, c.Execution.CancelPollAttempts)
	assert.Equal(t, 250*time.Millisecond, c.Execution.CancelPollInterval)
	assert.Equal(t, 2*time.Second, c.Execution.ReplaceSettleDelay)
	assert.Equal(t, "/tmp/exec-logs", c.Logs.Dir)
	assert.Equal(t, 14, c.Logs.RetentionDays)

	m, err := c.Model("CLAUDE")
	require.NoError(t, err)
	assert.Equal(t, "Claude", m.Name)
}

func TestValidateRejectsBadConfig(t *testing.T) {
	c := Default()
	c.Mode = "PAPER"
	assert.ErrorContains(t, c.Validate(), "invalid mode")

	c = Default()
	c.DefaultModel = "Grok"
	assert.ErrorContains(t, c.Validate(), "unknown model")

	c = Default()
	c.Models = append(c.Models, Model{Name: "chatgpt", EnvPrefix: "X"})
	assert.ErrorContains(t, c.Validate(), "duplicate model")
}

func TestCredentialsFallback(t *testing.T) {
	env := map[string]string{
		"GEMINI_ALPACA_KEY":    "gk",
		"GEMINI_ALPACA_SECRET": "gs",
		"ALPACA_KEY":           "dk",
		"ALPACA_SECRET":        "ds",
	}
	getenv := func(k string) string { return env[k] }

	creds, err := credentialsFrom(Model{Name: "Gemini", EnvPrefix: "GEMINI"}, getenv)
	require.NoError(t, err)
	assert.Equal(t, Credentials{Key: "gk", Secret: "gs"}, creds)

	creds, err = credentialsFrom(Model{Name: "Claude", EnvPrefix: "CLAUDE"}, getenv)
	require.NoError(t, err)
	assert.True(t, creds.Shared)
	assert.Equal(t, "dk", creds.Key)

	_, err = credentialsFrom(Model{Name: "Claude", EnvPrefix: "CLAUDE"}, func(string) string { return "" })
	assert.ErrorContains(t, err, "CLAUDE")
}
