package config

import (
	"fmt"
	"time"
)

// Environment selects one of the two fixed Kalshi environments.
type Environment string

const (
	EnvDemo Environment = "demo"
	EnvProd Environment = "prod"
)

// Endpoints is the (REST, WebSocket) base URL pair bound to an environment.
type Endpoints struct {
	RestURL string
	WSURL   string
}

// Endpoints returns the base URLs for the environment.
func (e Environment) Endpoints() (Endpoints, error) {
	switch e {
	case EnvDemo:
		return Endpoints{
			RestURL: "https://demo-api.kalshi.co",
			WSURL:   "wss://demo-api.kalshi.co",
		}, nil
	case EnvProd:
		return Endpoints{
			RestURL: "https://api.elections.kalshi.com",
			WSURL:   "wss://api.elections.kalshi.com",
		}, nil
	default:
		return Endpoints{}, fmt.Errorf("unknown environment %q", string(e))
	}
}

// Config is the root configuration for a marketwatch run.
type Config struct {
	API    APIConfig    `yaml:"api"`
	Run    RunConfig    `yaml:"run"`
	Filter FilterConfig `yaml:"filter"`
}

// APIConfig holds Kalshi API settings.
type APIConfig struct {
	Environment    Environment   `yaml:"environment"`      // "demo" or "prod"
	KeyID          string        `yaml:"key_id"`           // API key ID (for KALSHI-ACCESS-KEY header)
	PrivateKeyPath string        `yaml:"private_key_path"` // Path to RSA private key PEM file
	Timeout        time.Duration `yaml:"timeout"`          // Per-request HTTP timeout
}

// RunConfig bounds the streaming session.
type RunConfig struct {
	Duration time.Duration `yaml:"duration"` // Wall-clock deadline for the whole run
}

// FilterConfig holds title/time-window filter settings.
type FilterConfig struct {
	Keywords []string      `yaml:"keywords"` // Case-insensitive title substrings
	Horizon  time.Duration `yaml:"horizon"`  // Forward window for market end times
}
