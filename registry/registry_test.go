package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hupe1980/chatmesh/core"
)

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := New()
	_, err := r.Register(core.AgentConfig{ID: "intent-agent", Capabilities: []core.Capability{core.CapabilityIntentDetection}})
	assert.NoError(t, err)

	_, err = r.Register(core.AgentConfig{ID: "intent-agent"})
	assert.Error(t, err, "duplicate id must be rejected")

	_, err = r.Register(core.AgentConfig{})
	assert.Error(t, err, "empty id must be rejected")

	a, ok := r.Get("intent-agent")
	assert.True(t, ok)
	assert.Equal(t, 1, a.Config.MaxConcurrent, "max concurrent should default to 1")
}

func TestRegistry_FindAvailableByCapability(t *testing.T) {
	r := New()
	_, err := r.Register(core.AgentConfig{
		ID: "primary", Priority: 1, MaxConcurrent: 2,
		Capabilities: []core.Capability{core.CapabilityIntentDetection},
	})
	assert.NoError(t, err)
	_, err = r.Register(core.AgentConfig{
		ID: "secondary", Priority: 5, MaxConcurrent: 2,
		Capabilities: []core.Capability{core.CapabilityIntentDetection},
	})
	assert.NoError(t, err)

	a, ok := r.FindAvailable(string(core.CapabilityIntentDetection))
	assert.True(t, ok)
	assert.Equal(t, "primary", a.ID(), "lower priority value wins")

	// Saturate the preferred agent; selection falls through to the next.
	assert.NoError(t, r.Reserve("primary"))
	assert.NoError(t, r.Reserve("primary"))
	a, ok = r.FindAvailable(string(core.CapabilityIntentDetection))
	assert.True(t, ok)
	assert.Equal(t, "secondary", a.ID())
}

func TestRegistry_FindAvailableByID(t *testing.T) {
	r := New()
	_, err := r.Register(core.AgentConfig{ID: "banking-agent", MaxConcurrent: 1,
		Capabilities: []core.Capability{core.CapabilityAccountInquiry}})
	assert.NoError(t, err)

	a, ok := r.FindAvailable("banking-agent")
	assert.True(t, ok)
	assert.Equal(t, "banking-agent", a.ID())

	_, ok = r.FindAvailable("nope")
	assert.False(t, ok)
}

func TestRegistry_ReserveFailsClosed(t *testing.T) {
	r := New()
	_, err := r.Register(core.AgentConfig{ID: "a1", MaxConcurrent: 1})
	assert.NoError(t, err)

	assert.NoError(t, r.Reserve("a1"))

	err = r.Reserve("a1")
	assert.True(t, core.IsKind(err, core.KindAgentUnavailable), "at capacity")

	err = r.Reserve("missing")
	assert.True(t, core.IsKind(err, core.KindAgentUnavailable), "not registered")

	r.SetHealthy("a1", false)
	r.Release("a1")
	err = r.Reserve("a1")
	assert.True(t, core.IsKind(err, core.KindAgentUnavailable), "unhealthy")
}

func TestRegistry_ReleaseFloorsAtZero(t *testing.T) {
	r := New()
	a, err := r.Register(core.AgentConfig{ID: "a1", MaxConcurrent: 1})
	assert.NoError(t, err)

	r.Release("a1")
	r.Release("a1")
	assert.Equal(t, 0, a.Load())

	assert.NoError(t, r.Reserve("a1"))
	assert.Equal(t, 1, a.Load())
	r.Release("a1")
	assert.Equal(t, 0, a.Load())
}

func TestRegistry_Snapshot(t *testing.T) {
	r := New()
	_, err := r.Register(core.AgentConfig{ID: "b", MaxConcurrent: 1})
	assert.NoError(t, err)
	_, err = r.Register(core.AgentConfig{ID: "a", MaxConcurrent: 1})
	assert.NoError(t, err)

	assert.NoError(t, r.Reserve("b"))
	r.RecordResult("b", true)
	r.RecordResult("b", false)

	snap := r.Snapshot()
	assert.Len(t, snap, 2)
	assert.Equal(t, "a", snap[0].ID, "snapshot sorted by id")
	assert.Equal(t, "b", snap[1].ID)
	assert.Equal(t, 1, snap[1].CurrentLoad)
	assert.Equal(t, uint64(1), snap[1].Successes)
	assert.Equal(t, uint64(1), snap[1].Failures)
}
