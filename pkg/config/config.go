package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all jarvisd configuration. One instance is loaded at startup
// and injected into the components that need it; there is no ambient state.
type Config struct {
	DBPath     string                   `yaml:"db_path"`
	EventsPath string                   `yaml:"events_path"`
	Fast       BackendConfig            `yaml:"fast"`
	Premium    BackendConfig            `yaml:"premium"`
	Router     RouterConfig             `yaml:"router"`
	RateLimits map[string]RateLimit     `yaml:"rate_limits"`
	Budget     BudgetConfig             `yaml:"budget"`
	Breakers   map[string]BreakerConfig `yaml:"breakers"`
	Queue      QueueConfig              `yaml:"queue"`
	Events     EventsConfig             `yaml:"events"`
}

// BackendConfig identifies an LLM backend tier.
type BackendConfig struct {
	Model  string `yaml:"model"`
	APIKey string `yaml:"api_key"`
}

// RouterConfig controls the intent classifier.
type RouterConfig struct {
	Enabled              bool `yaml:"enabled"`
	SimpleWordThreshold  int  `yaml:"simple_word_threshold"`
	ComplexWordThreshold int  `yaml:"complex_word_threshold"`
}

// RateLimit is a per-source sliding window limit.
type RateLimit struct {
	Max    int           `yaml:"max"`
	Window time.Duration `yaml:"window"`
}

// BudgetConfig sets USD spend ceilings for the premium backend.
type BudgetConfig struct {
	DailyUSD      float64 `yaml:"daily_usd"`
	MonthlyUSD    float64 `yaml:"monthly_usd"`
	WarnThreshold float64 `yaml:"warn_threshold"`
}

// BreakerConfig tunes one circuit breaker.
type BreakerConfig struct {
	FailureThreshold int           `yaml:"failure_threshold"`
	Cooldown         time.Duration `yaml:"cooldown"`
}

// QueueConfig controls the text input overflow queue.
type QueueConfig struct {
	Capacity int `yaml:"capacity"`
}

// EventsConfig controls the persistent event log.
type EventsConfig struct {
	Enabled       bool `yaml:"enabled"`
	RetentionDays int  `yaml:"retention_days"`
}

// Default returns a Config with documented defaults.
func Default() *Config {
	return &Config{
		DBPath:     "jarvis_costs.db",
		EventsPath: "jarvis_events.db",
		Fast: BackendConfig{
			Model: "llama3.1:8b",
		},
		Premium: BackendConfig{
			Model:  "claude-sonnet-4-5-20250929",
			APIKey: os.Getenv("ANTHROPIC_API_KEY"),
		},
		Router: RouterConfig{
			Enabled:              true,
			SimpleWordThreshold:  15,
			ComplexWordThreshold: 80,
		},
		RateLimits: map[string]RateLimit{
			"voice":    {Max: 5, Window: time.Minute},
			"text":     {Max: 15, Window: time.Minute},
			"telegram": {Max: 10, Window: time.Minute},
		},
		Budget: BudgetConfig{
			DailyUSD:      5.00,
			MonthlyUSD:    50.00,
			WarnThreshold: 0.80,
		},
		Breakers: map[string]BreakerConfig{
			"fast":    {FailureThreshold: 3, Cooldown: 60 * time.Second},
			"premium": {FailureThreshold: 3, Cooldown: 30 * time.Second},
		},
		Queue: QueueConfig{Capacity: 5},
		Events: EventsConfig{
			Enabled:       true,
			RetentionDays: 30,
		},
	}
}

// Load reads a YAML config file over the defaults and expands environment
// variables in its contents.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values that would make enforcement meaningless.
func (c *Config) Validate() error {
	if c.Budget.DailyUSD < 0 || c.Budget.MonthlyUSD < 0 {
		return fmt.Errorf("config: budget ceilings must be non-negative")
	}
	if c.Budget.WarnThreshold < 0 || c.Budget.WarnThreshold > 1 {
		return fmt.Errorf("config: warn_threshold must be in [0,1]")
	}
	if c.Queue.Capacity < 1 {
		return fmt.Errorf("config: queue capacity must be at least 1")
	}
	for name, b := range c.Breakers {
		if b.FailureThreshold < 1 {
			return fmt.Errorf("config: breaker %q failure_threshold must be at least 1", name)
		}
		if b.Cooldown <= 0 {
			return fmt.Errorf("config: breaker %q cooldown must be positive", name)
		}
	}
	for source, rl := range c.RateLimits {
		if rl.Max < 1 {
			return fmt.Errorf("config: rate limit for %q must be at least 1", source)
		}
		if rl.Window <= 0 {
			return fmt.Errorf("config: rate window for %q must be positive", source)
		}
	}
	return nil
}
