package config

import "time"

// Default values applied by LoadWithDefaults.
const (
	DefaultEnvironment = EnvDemo
	DefaultAPITimeout  = 30 * time.Second
	DefaultRunDuration = 10 * time.Second
	DefaultHorizon     = 7 * 24 * time.Hour
)

// DefaultKeywords are the title substrings matched when none are configured.
var DefaultKeywords = []string{"packers", "green bay"}

func (c *Config) applyDefaults() {
	if c.API.Environment == "" {
		c.API.Environment = DefaultEnvironment
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPITimeout
	}
	if c.Run.Duration == 0 {
		c.Run.Duration = DefaultRunDuration
	}
	if c.Filter.Horizon == 0 {
		c.Filter.Horizon = DefaultHorizon
	}
	if len(c.Filter.Keywords) == 0 {
		c.Filter.Keywords = append([]string(nil), DefaultKeywords...)
	}
}
