package escalation

import (
	"time"

	"github.com/smallbiznis/tirta/internal/alert/rules"
	"github.com/smallbiznis/tirta/internal/config"
)

// Config controls the sweeper interval and which jobs run.
type Config struct {
	Enabled        bool
	RunInterval    time.Duration
	JobTimeout     time.Duration
	EnabledJobs    []string
	ReadingDueDays int
}

func DefaultConfig() Config {
	return Config{
		Enabled:        true,
		RunInterval:    15 * time.Minute,
		JobTimeout:     30 * time.Second,
		ReadingDueDays: rules.DefaultReadingDueDays,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	if c.ReadingDueDays <= 0 {
		c.ReadingDueDays = defaults.ReadingDueDays
	}
	return c
}

func ProvideConfig(cfg config.Config) Config {
	return Config{
		Enabled:     cfg.SweepEnabled,
		RunInterval: cfg.SweepInterval,
		EnabledJobs: cfg.SweepJobs,
	}.withDefaults()
}
