package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	ModeDryRun = "DRY_RUN"
	ModeLive   = "LIVE"

	PaperBaseURL = "https://paper-api.alpaca.markets"
)

// Model is one AI model whose sheets are executed against its own account.
type Model struct {
	Name      string `yaml:"name"`
	EnvPrefix string `yaml:"env_prefix"`
}

type Config struct {
	Mode         string  `yaml:"mode"`
	BaseURL      string  `yaml:"base_url"`
	DefaultModel string  `yaml:"default_model"`
	Models       []Model `yaml:"models"`
	Execution    struct {
		CancelPollAttempts  int           `yaml:"cancel_poll_attempts"`
		CancelPollInterval  time.Duration `yaml:"cancel_poll_interval"`
		ReplaceSettleDelay  time.Duration `yaml:"replace_settle_delay"`
		StopTolerance       float64       `yaml:"stop_tolerance"`
		PreflightOrderLimit int           `yaml:"preflight_order_limit"`
	} `yaml:"execution"`
	Logs struct {
		Dir           string `yaml:"dir"`
		JournalPath   string `yaml:"journal_path"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"logs"`
}

// DefaultModels mirrors the four accounts the experiment runs.
func DefaultModels() []Model {
	return []Model{
		{Name: "ChatGPT", EnvPrefix: "CHATGPT"},
		{Name: "Gemini", EnvPrefix: "GEMINI"},
		{Name: "Claude", EnvPrefix: "CLAUDE"},
		{Name: "Perplexity", EnvPrefix: "PERPLEXITY"},
	}
}

// Default returns a config with every field populated.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	if c.Mode == "" {
		c.Mode = ModeLive
	}
	c.Mode = strings.ToUpper(c.Mode)
	if c.BaseURL == "" {
		c.BaseURL = PaperBaseURL
	}
	if len(c.Models) == 0 {
		c.Models = DefaultModels()
	}
	if c.DefaultModel == "" {
		c.DefaultModel = c.Models[0].Name
	}
	if c.Execution.CancelPollAttempts == 0 {
		c.Execution.CancelPollAttempts = 10
	}
	if c.Execution.CancelPollInterval == 0 {
		c.Execution.CancelPollInterval = time.Second
	}
	if c.Execution.ReplaceSettleDelay == 0 {
		c.Execution.ReplaceSettleDelay = time.Second
	}
	if c.Execution.StopTolerance == 0 {
		c.Execution.StopTolerance = 0.01
	}
	if c.Execution.PreflightOrderLimit == 0 {
		c.Execution.PreflightOrderLimit = 50
	}
	if c.Logs.Dir == "" {
		c.Logs.Dir = "logs"
	}
}

func (c *Config) Validate() error {
	if c.Mode != ModeDryRun && c.Mode != ModeLive {
		return fmt.Errorf("invalid mode '%s': must be 'DRY_RUN' or 'LIVE'", c.Mode)
	}
	if c.Execution.CancelPollAttempts < 1 {
		return fmt.Errorf("execution.cancel_poll_attempts must be at least 1, got %d", c.Execution.CancelPollAttempts)
	}
	if c.Execution.CancelPollInterval < 0 || c.Execution.ReplaceSettleDelay < 0 {
		return errors.New("execution delays cannot be negative")
	}
	if c.Execution.StopTolerance <= 0 {
		return fmt.Errorf("execution.stop_tolerance must be positive, got %.4f", c.Execution.StopTolerance)
	}
	seen := map[string]bool{}
	for _, m := range c.Models {
		if m.Name == "" || m.EnvPrefix == "" {
			return errors.New("models need both name and env_prefix")
		}
		key := strings.ToLower(m.Name)
		if seen[key] {
			return fmt.Errorf("duplicate model '%s'", m.Name)
		}
		seen[key] = true
	}
	if _, err := c.Model(c.DefaultModel); err != nil {
		return fmt.Errorf("default_model: %w", err)
	}
	return nil
}

// DryRun reports whether mutations should be printed instead of issued.
func (c *Config) DryRun() bool {
	return c.Mode == ModeDryRun
}

// Model looks a model up by name, case-insensitively.
func (c *Config) Model(name string) (Model, error) {
	for _, m := range c.Models {
		if strings.EqualFold(m.Name, name) {
			return m, nil
		}
	}
	names := make([]string, 0, len(c.Models))
	for _, m := range c.Models {
		names = append(names, m.Name)
	}
	return Model{}, fmt.Errorf("unknown model '%s' (known: %s)", name, strings.Join(names, ", "))
}

// LoadConfig reads a yaml config. A missing file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	var c Config
	b, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, err
		}
	}

	c.applyDefaults()
	if v := os.Getenv("TRADER_LOG_DIR"); v != "" {
		c.Logs.Dir = v
	}
	if v := os.Getenv("TRADER_LOG_RETENTION_DAYS"); v != "" {
		if days, err := strconv.Atoi(v); err == nil {
			c.Logs.RetentionDays = days
		}
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &c, nil
}
