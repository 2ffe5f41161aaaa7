package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/chatmesh/core"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chatmesh.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_MergesOverDefaults(t *testing.T) {
	path := writeConfig(t, `
agents:
  - id: intent-agent
    name: Intent Understanding
    type: nlu
    capabilities: [intent-detection]
    priority: 1
    max_concurrent: 4
    endpoint: http://localhost:8081/invoke
  - id: banking-agent
    capabilities: [account-inquiry]
    max_concurrent: 2
orchestrator:
  default_agent_id: intent-agent
  fallback_enabled: false
  step_timeout: 2s
session:
  ttl: 10m
  rate_limit: 5
breaker:
  failure_threshold: 7
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Len(t, cfg.Agents, 2)
	assert.Equal(t, "intent-agent", cfg.Agents[0].ID)
	assert.True(t, cfg.Agents[0].HasCapability(core.CapabilityIntentDetection))
	assert.Equal(t, 4, cfg.Agents[0].MaxConcurrent)

	assert.Equal(t, "intent-agent", cfg.Orchestrator.DefaultAgentID)
	assert.False(t, cfg.Orchestrator.FallbackEnabled)
	assert.Equal(t, 2*time.Second, cfg.Orchestrator.StepTimeout.Std())
	assert.Equal(t, 3, cfg.Orchestrator.MaxAttempts, "unset fields keep defaults")

	assert.Equal(t, 10*time.Minute, cfg.Session.TTL.Std())
	assert.Equal(t, 5, cfg.Session.RateLimit)
	assert.Equal(t, 3, cfg.Session.MaxPerUser, "unset fields keep defaults")

	assert.Equal(t, 7, cfg.Breaker.FailureThreshold)
	assert.Equal(t, 30*time.Second, cfg.Breaker.ResetTimeout.Std())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "agents: [unclosed")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := Default()

	t.Run("defaults are valid", func(t *testing.T) {
		assert.NoError(t, base.Validate())
	})

	t.Run("duplicate agent id", func(t *testing.T) {
		cfg := Default()
		cfg.Agents = []core.AgentConfig{{ID: "a"}, {ID: "a"}}
		assert.Error(t, cfg.Validate())
	})

	t.Run("empty agent id", func(t *testing.T) {
		cfg := Default()
		cfg.Agents = []core.AgentConfig{{}}
		assert.Error(t, cfg.Validate())
	})

	t.Run("unknown default agent", func(t *testing.T) {
		cfg := Default()
		cfg.Orchestrator.DefaultAgentID = "ghost"
		assert.Error(t, cfg.Validate())
	})

	t.Run("sqlite store requires path", func(t *testing.T) {
		cfg := Default()
		cfg.Store.Driver = "sqlite"
		assert.Error(t, cfg.Validate())
		cfg.Store.Path = "/tmp/chatmesh.db"
		assert.NoError(t, cfg.Validate())
	})

	t.Run("unsupported store driver", func(t *testing.T) {
		cfg := Default()
		cfg.Store.Driver = "postgres"
		assert.Error(t, cfg.Validate())
	})

	t.Run("bounds", func(t *testing.T) {
		cfg := Default()
		cfg.Orchestrator.MaxAttempts = 0
		assert.Error(t, cfg.Validate())

		cfg = Default()
		cfg.Session.RateLimit = 0
		assert.Error(t, cfg.Validate())

		cfg = Default()
		cfg.Breaker.FailureThreshold = 0
		assert.Error(t, cfg.Validate())
	})
}

func TestDefault_CriticalCapabilities(t *testing.T) {
	cfg := Default()
	assert.Equal(t, []core.Capability{core.CapabilityAccountInquiry}, cfg.Orchestrator.CriticalCapabilities)
	assert.True(t, cfg.Orchestrator.FallbackEnabled)
}
