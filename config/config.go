// Package config loads and validates deployment configuration for chatmesh
// from YAML. Constructors still accept functional options; this package
// covers file-driven deployments where agents, thresholds and timeouts come
// from operations rather than code.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/chatmesh/core"
)

// Duration wraps time.Duration so YAML documents can use human-readable
// values ("30s", "5m") as well as plain integer nanoseconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("parse duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}
	var n int64
	if err := value.Decode(&n); err != nil {
		return fmt.Errorf("parse duration: %s", value.Value)
	}
	*d = Duration(n)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// OrchestratorConfig tunes agent selection and pipeline execution.
type OrchestratorConfig struct {
	DefaultAgentID       string            `yaml:"default_agent_id"`
	CriticalCapabilities []core.Capability `yaml:"critical_capabilities"`
	FallbackEnabled      bool              `yaml:"fallback_enabled"`
	StepTimeout          Duration          `yaml:"step_timeout"`
	MaxAttempts          int               `yaml:"max_attempts"`
	Backoff              Duration          `yaml:"backoff"`
}

// SessionConfig tunes session lifecycle and rate limiting.
type SessionConfig struct {
	TTL             Duration `yaml:"ttl"`
	Grace           Duration `yaml:"grace"`
	SweepInterval   Duration `yaml:"sweep_interval"`
	MaxPerUser      int      `yaml:"max_per_user"`
	RateWindow      Duration `yaml:"rate_window"`
	RateLimit       int      `yaml:"rate_limit"`
	HistoryCapacity int      `yaml:"history_capacity"`
}

// BreakerConfig tunes the intent-capability circuit breaker.
type BreakerConfig struct {
	FailureThreshold int      `yaml:"failure_threshold"`
	ResetTimeout     Duration `yaml:"reset_timeout"`
}

// ClientConfig tunes capability HTTP calls.
type ClientConfig struct {
	Timeout     Duration `yaml:"timeout"`
	MaxAttempts int      `yaml:"max_attempts"`
}

// StoreConfig selects the durable store backend.
type StoreConfig struct {
	Driver string `yaml:"driver"` // "sqlite" or empty for none
	Path   string `yaml:"path"`
}

// Config is the root configuration document.
type Config struct {
	Agents       []core.AgentConfig `yaml:"agents"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	Session      SessionConfig      `yaml:"session"`
	Breaker      BreakerConfig      `yaml:"breaker"`
	Client       ClientConfig       `yaml:"client"`
	Store        StoreConfig        `yaml:"store"`
}

// Default returns a configuration with production-safe defaults and no agents.
func Default() Config {
	return Config{
		Orchestrator: OrchestratorConfig{
			CriticalCapabilities: []core.Capability{core.CapabilityAccountInquiry},
			FallbackEnabled:      true,
			StepTimeout:          Duration(5 * time.Second),
			MaxAttempts:          3,
			Backoff:              Duration(200 * time.Millisecond),
		},
		Session: SessionConfig{
			TTL:             Duration(30 * time.Minute),
			Grace:           Duration(time.Minute),
			SweepInterval:   Duration(time.Minute),
			MaxPerUser:      3,
			RateWindow:      Duration(time.Minute),
			RateLimit:       20,
			HistoryCapacity: 50,
		},
		Breaker: BreakerConfig{
			FailureThreshold: 5,
			ResetTimeout:     Duration(30 * time.Second),
		},
		Client: ClientConfig{
			Timeout:     Duration(10 * time.Second),
			MaxAttempts: 3,
		},
	}
}

// Load reads and validates a YAML configuration file, merging it over the
// defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks internal consistency.
func (c Config) Validate() error {
	seen := make(map[string]bool, len(c.Agents))
	for _, a := range c.Agents {
		if a.ID == "" {
			return fmt.Errorf("agent with empty id")
		}
		if seen[a.ID] {
			return fmt.Errorf("duplicate agent id %q", a.ID)
		}
		seen[a.ID] = true
		if a.MaxConcurrent < 0 {
			return fmt.Errorf("agent %q: max_concurrent must not be negative", a.ID)
		}
	}
	if c.Orchestrator.DefaultAgentID != "" && !seen[c.Orchestrator.DefaultAgentID] {
		return fmt.Errorf("default agent %q not declared in agents", c.Orchestrator.DefaultAgentID)
	}
	if c.Orchestrator.MaxAttempts < 1 {
		return fmt.Errorf("orchestrator max_attempts must be at least 1")
	}
	if c.Session.MaxPerUser < 1 {
		return fmt.Errorf("session max_per_user must be at least 1")
	}
	if c.Session.RateLimit < 1 {
		return fmt.Errorf("session rate_limit must be at least 1")
	}
	if c.Breaker.FailureThreshold < 1 {
		return fmt.Errorf("breaker failure_threshold must be at least 1")
	}
	if c.Store.Driver != "" && c.Store.Driver != "sqlite" {
		return fmt.Errorf("unsupported store driver %q", c.Store.Driver)
	}
	if c.Store.Driver == "sqlite" && c.Store.Path == "" {
		return fmt.Errorf("sqlite store requires a path")
	}
	return nil
}
