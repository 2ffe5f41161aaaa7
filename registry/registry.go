package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/hupe1980/chatmesh/core"
)

// Agent is the runtime record for one registered capability. Counters are
// mutated only through Registry methods.
type Agent struct {
	Config core.AgentConfig

	mu            sync.Mutex
	currentLoad   int
	totalRequests uint64
	successes     uint64
	failures      uint64
	active        bool
	healthy       bool
}

// ID returns the agent identifier.
func (a *Agent) ID() string { return a.Config.ID }

// Available reports whether the agent is active, healthy and below its
// concurrency ceiling.
func (a *Agent) Available() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.active && a.healthy && a.currentLoad < a.Config.MaxConcurrent
}

// Load returns the current reservation count.
func (a *Agent) Load() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.currentLoad
}

// Status is a point-in-time snapshot of one agent for health reporting.
type Status struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	Capabilities  []core.Capability `json:"capabilities"`
	CurrentLoad   int               `json:"current_load"`
	MaxConcurrent int               `json:"max_concurrent"`
	TotalRequests uint64            `json:"total_requests"`
	Successes     uint64            `json:"successes"`
	Failures      uint64            `json:"failures"`
	Active        bool              `json:"active"`
	Healthy       bool              `json:"healthy"`
}

// Registry is a concurrency-safe catalog of agents keyed by id and indexed by
// capability tag.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]*Agent
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{agents: make(map[string]*Agent)}
}

// Register adds an agent with zero load. Registering a duplicate id is an error.
func (r *Registry) Register(cfg core.AgentConfig) (*Agent, error) {
	if cfg.ID == "" {
		return nil, fmt.Errorf("agent id must not be empty")
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.agents[cfg.ID]; exists {
		return nil, fmt.Errorf("agent %q already registered", cfg.ID)
	}
	a := &Agent{Config: cfg, active: true, healthy: true}
	r.agents[cfg.ID] = a
	return a, nil
}

// Get returns the agent with the given id.
func (r *Registry) Get(id string) (*Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[id]
	return a, ok
}

// FindAvailable returns an agent matched by id or by capability tag that is
// active, healthy and below its concurrency ceiling. Capability matches are
// ordered by priority (lower preferred), ties broken by lower current load.
func (r *Registry) FindAvailable(identifier string) (*Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if a, ok := r.agents[identifier]; ok {
		if a.Available() {
			return a, true
		}
		return nil, false
	}

	var candidates []*Agent
	for _, a := range r.agents {
		if a.Config.HasCapability(core.Capability(identifier)) && a.Available() {
			candidates = append(candidates, a)
		}
	}
	if len(candidates) == 0 {
		return nil, false
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Config.Priority != candidates[j].Config.Priority {
			return candidates[i].Config.Priority < candidates[j].Config.Priority
		}
		return candidates[i].Load() < candidates[j].Load()
	})
	return candidates[0], true
}

// Reserve increments the agent's load and total-request counters. It fails
// closed when the agent is missing, inactive, unhealthy or at capacity.
func (r *Registry) Reserve(agentID string) error {
	r.mu.RLock()
	a, ok := r.agents[agentID]
	r.mu.RUnlock()
	if !ok {
		return core.NewError(core.KindAgentUnavailable, fmt.Sprintf("agent %q not registered", agentID))
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.active || !a.healthy {
		return core.NewError(core.KindAgentUnavailable, fmt.Sprintf("agent %q not healthy", agentID))
	}
	if a.currentLoad >= a.Config.MaxConcurrent {
		return core.NewError(core.KindAgentUnavailable, fmt.Sprintf("agent %q at capacity (%d)", agentID, a.Config.MaxConcurrent))
	}
	a.currentLoad++
	a.totalRequests++
	return nil
}

// Release decrements the agent's load counter. Every successful Reserve must
// be matched by exactly one Release, including on timeout and error paths.
func (r *Registry) Release(agentID string) {
	r.mu.RLock()
	a, ok := r.agents[agentID]
	r.mu.RUnlock()
	if !ok {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.currentLoad > 0 {
		a.currentLoad--
	}
}

// RecordResult updates the agent's cumulative success/failure counters.
func (r *Registry) RecordResult(agentID string, success bool) {
	r.mu.RLock()
	a, ok := r.agents[agentID]
	r.mu.RUnlock()
	if !ok {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if success {
		a.successes++
	} else {
		a.failures++
	}
}

// SetHealthy updates the agent's health flag.
func (r *Registry) SetHealthy(agentID string, healthy bool) {
	r.mu.RLock()
	a, ok := r.agents[agentID]
	r.mu.RUnlock()
	if !ok {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.healthy = healthy
}

// SetActive updates the agent's active flag.
func (r *Registry) SetActive(agentID string, active bool) {
	r.mu.RLock()
	a, ok := r.agents[agentID]
	r.mu.RUnlock()
	if !ok {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.active = active
}

// Snapshot returns a status snapshot for all registered agents, sorted by id.
func (r *Registry) Snapshot() []Status {
	r.mu.RLock()
	agents := make([]*Agent, 0, len(r.agents))
	for _, a := range r.agents {
		agents = append(agents, a)
	}
	r.mu.RUnlock()

	out := make([]Status, 0, len(agents))
	for _, a := range agents {
		a.mu.Lock()
		out = append(out, Status{
			ID:            a.Config.ID,
			Name:          a.Config.Name,
			Capabilities:  a.Config.Capabilities,
			CurrentLoad:   a.currentLoad,
			MaxConcurrent: a.Config.MaxConcurrent,
			TotalRequests: a.totalRequests,
			Successes:     a.successes,
			Failures:      a.failures,
			Active:        a.active,
			Healthy:       a.healthy,
		})
		a.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
