package config

import "fmt"

// Validate checks the configuration for missing or inconsistent values.
func (c *Config) Validate() error {
	if _, err := c.API.Environment.Endpoints(); err != nil {
		return fmt.Errorf("api.environment must be %q or %q, got %q", EnvDemo, EnvProd, c.API.Environment)
	}
	if c.API.KeyID == "" {
		return fmt.Errorf("api.key_id is required")
	}
	if c.API.PrivateKeyPath == "" {
		return fmt.Errorf("api.private_key_path is required")
	}
	if c.API.Timeout < 0 {
		return fmt.Errorf("api.timeout cannot be negative")
	}
	if c.Run.Duration <= 0 {
		return fmt.Errorf("run.duration must be positive")
	}
	if c.Filter.Horizon <= 0 {
		return fmt.Errorf("filter.horizon must be positive")
	}
	if len(c.Filter.Keywords) == 0 {
		return fmt.Errorf("filter.keywords must contain at least one keyword")
	}
	return nil
}
