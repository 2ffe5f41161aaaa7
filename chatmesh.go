// Package chatmesh provides a high-level façade over the orchestration core
// and service abstractions (sessions, capability clients, persistence &
// logging) enabling rapid construction of conversational agent systems. Most
// applications interact with this package by:
//  1. Creating a ChatMesh via New() (optionally from a config.Config)
//  2. Registering agents and binding capability invokers
//  3. Creating sessions and processing messages (ProcessMessage)
//
// The façade delegates pipeline execution to orchestrator.Orchestrator while
// keeping setup and usage ergonomics concise. All defaults are safe for local
// development and testing; production deployments typically supply a durable
// store, a Prometheus recorder and a structured logger.
package chatmesh

import (
	"context"
	"time"

	"github.com/hupe1980/chatmesh/capability"
	"github.com/hupe1980/chatmesh/config"
	"github.com/hupe1980/chatmesh/core"
	"github.com/hupe1980/chatmesh/logging"
	"github.com/hupe1980/chatmesh/metrics"
	"github.com/hupe1980/chatmesh/orchestrator"
	"github.com/hupe1980/chatmesh/registry"
	"github.com/hupe1980/chatmesh/session"
	"github.com/hupe1980/chatmesh/store"
)

// Options configures the ChatMesh instance.
type Options struct {
	// Config supplies agents and tuning knobs; defaults to config.Default().
	Config config.Config

	// Store is the durable session/message store. Optional; when nil sessions
	// live only in memory and resume-from-cold is unavailable.
	Store store.Store

	// Invokers binds capability implementations to agent ids, overriding the
	// HTTP invoker derived from the agent's endpoint. Used for LLM provider
	// adapters and tests.
	Invokers map[string]core.Invoker

	// Metrics defaults to NopRecorder.
	Metrics metrics.Recorder

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// ChatMesh is the high-level façade aggregating the orchestrator and services.
type ChatMesh struct {
	opts     Options
	bus      *core.Bus
	registry *registry.Registry
	sessions *session.Manager
	orch     *orchestrator.Orchestrator
	consumer *store.Consumer

	// resilient clients by agent id, kept for breaker state reporting
	clients map[string]*capability.ResilientClient
}

// New creates a new ChatMesh instance with optional overrides. Agents from
// the config are registered and, when they carry an endpoint or an explicit
// invoker, wrapped in a resilient client (retry, timeout, circuit breaker,
// local fallback).
func New(optFns ...func(o *Options)) (*ChatMesh, error) {
	opts := Options{
		Config:  config.Default(),
		Metrics: metrics.NopRecorder{},
		Logger:  logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	bus := core.NewBus()
	reg := registry.New()

	sessions := session.NewManager(func(o *session.Options) {
		o.TTL = opts.Config.Session.TTL.Std()
		o.Grace = opts.Config.Session.Grace.Std()
		o.SweepInterval = opts.Config.Session.SweepInterval.Std()
		o.MaxPerUser = opts.Config.Session.MaxPerUser
		o.RateWindow = opts.Config.Session.RateWindow.Std()
		o.RateLimit = opts.Config.Session.RateLimit
		o.HistoryCapacity = opts.Config.Session.HistoryCapacity
		o.Store = opts.Store
		o.Bus = bus
		o.Logger = opts.Logger
		o.Metrics = opts.Metrics
	})

	orch := orchestrator.New(reg, func(o *orchestrator.Options) {
		o.DefaultAgentID = opts.Config.Orchestrator.DefaultAgentID
		o.CriticalCapabilities = opts.Config.Orchestrator.CriticalCapabilities
		o.FallbackEnabled = opts.Config.Orchestrator.FallbackEnabled
		o.StepTimeout = opts.Config.Orchestrator.StepTimeout.Std()
		o.MaxAttempts = opts.Config.Orchestrator.MaxAttempts
		o.Backoff = opts.Config.Orchestrator.Backoff.Std()
		o.Logger = opts.Logger
		o.Metrics = opts.Metrics
		o.Bus = bus
	})

	m := &ChatMesh{
		opts:     opts,
		bus:      bus,
		registry: reg,
		sessions: sessions,
		orch:     orch,
		clients:  make(map[string]*capability.ResilientClient),
	}
	if opts.Store != nil {
		m.consumer = store.NewConsumer(opts.Store, opts.Logger)
	}

	for _, agentCfg := range opts.Config.Agents {
		invoker := opts.Invokers[agentCfg.ID]
		if invoker == nil && agentCfg.Endpoint != "" {
			invoker = capability.NewHTTPInvoker(agentCfg.Endpoint, func(o *capability.HTTPOptions) {
				o.Timeout = opts.Config.Client.Timeout.Std()
			})
		}
		if err := m.RegisterAgent(agentCfg, invoker); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// RegisterAgent adds an agent to the registry and binds its invoker to the
// pipeline. The intent-understanding agent is the one external dependency
// guarded by a circuit breaker, so only its invoker is wrapped in a resilient
// client; every other agent's failures flow to the orchestrator's own
// retry and critical-step policy.
func (m *ChatMesh) RegisterAgent(cfg core.AgentConfig, invoker core.Invoker) error {
	if _, err := m.registry.Register(cfg); err != nil {
		return err
	}
	if invoker == nil {
		return nil
	}
	if !cfg.HasCapability(core.CapabilityIntentDetection) {
		m.orch.Bind(cfg.ID, invoker)
		return nil
	}
	client := capability.NewResilientClient(invoker, func(o *capability.ResilientOptions) {
		o.MaxAttempts = m.opts.Config.Client.MaxAttempts
		o.Timeout = m.opts.Config.Orchestrator.StepTimeout.Std()
		o.Backoff = m.opts.Config.Orchestrator.Backoff.Std()
		o.Breaker = capability.BreakerConfig{
			FailureThreshold: m.opts.Config.Breaker.FailureThreshold,
			ResetTimeout:     m.opts.Config.Breaker.ResetTimeout.Std(),
		}
		o.Logger = m.opts.Logger
	})
	m.clients[cfg.ID] = client
	m.orch.Bind(cfg.ID, client)
	return nil
}

// Start launches the background session sweep and, when a store is present,
// the event consumer persisting sessions and messages.
func (m *ChatMesh) Start(ctx context.Context) {
	m.sessions.Start()
	if m.consumer != nil {
		m.consumer.Start(ctx, m.bus)
	}
}

// Close stops background work and releases resources. The store, when owned
// by the caller, is not closed here.
func (m *ChatMesh) Close() {
	m.sessions.Close()
	if m.consumer != nil {
		m.consumer.Stop()
	}
	m.bus.Close()
}

// CreateSession begins a new conversation for userID.
func (m *ChatMesh) CreateSession(userID string, metadata map[string]string) (*core.Session, error) {
	sess, err := m.sessions.Create(userID, metadata)
	if err != nil {
		return nil, err
	}
	m.opts.Metrics.SetActiveSessions(m.sessions.ActiveCount())
	return sess, nil
}

// GetSession returns the resident session for id.
func (m *ChatMesh) GetSession(id string) (*core.Session, error) {
	return m.sessions.Get(id)
}

// EndSession ends the session with the given reason.
func (m *ChatMesh) EndSession(id, reason string) error {
	if err := m.sessions.End(id, reason); err != nil {
		return err
	}
	m.opts.Metrics.SetActiveSessions(m.sessions.ActiveCount())
	return nil
}

// Authenticate marks the session authenticated.
func (m *ChatMesh) Authenticate(id string) error {
	return m.sessions.Authenticate(id)
}

// UpdateSession merges a partial update into the session.
func (m *ChatMesh) UpdateSession(id string, update session.Update) error {
	return m.sessions.ApplyUpdate(id, update)
}

// History returns the session's message history, oldest first.
func (m *ChatMesh) History(ctx context.Context, id string) ([]core.Message, error) {
	return m.sessions.History(ctx, id)
}

// ProcessMessage runs the full pipeline for one user message: rate limiting,
// history bookkeeping, capability selection and execution, context folding
// and response synthesis. Concurrent messages for the same session are
// serialized; different sessions proceed independently.
//
// The returned response is always usable. A non-nil error carries the
// taxonomy kind (rate limit, expiry, abort) for callers that surface faults
// distinctly.
func (m *ChatMesh) ProcessMessage(ctx context.Context, sessionID, content string) (*core.Response, error) {
	if _, err := m.sessions.Resume(ctx, sessionID); err != nil {
		return nil, err
	}

	if err := m.sessions.AllowMessage(sessionID); err != nil {
		m.opts.Metrics.IncRateLimited()
		return nil, err
	}

	var resp *core.Response
	var execErr error
	err := m.sessions.WithSession(sessionID, func(sess *core.Session) error {
		incoming := core.NewIncomingMessage(sessionID, content)
		incoming, appendErr := m.sessions.AppendMessage(sessionID, incoming)
		if appendErr != nil {
			return appendErr
		}

		var result *core.PipelineResult
		result, execErr = m.orch.Execute(ctx, orchestrator.ExecuteRequest{
			SessionID: sessionID,
			UserID:    sess.UserID,
			Message:   incoming,
			Context:   sess.ContextSnapshot(),
		})
		resp = result.Response

		sess.UpdateContext(func(c *core.ConversationContext) {
			if resp.Intent != "" {
				c.SetIntent(resp.Intent)
			}
			c.MergeEntities(resp.Entities)
			if resp.Sentiment != "" {
				c.Sentiment = resp.Sentiment
			}
			if toolStep, ok := result.StepFor(core.CapabilityToolCalling); ok {
				c.ToolRequested = toolStep.Succeeded()
			}
		})

		outgoing := core.NewOutgoingMessage(sessionID, resp.Text, resp.SourceAgentID, resp.Confidence)
		if _, appendErr := m.sessions.AppendMessage(sessionID, outgoing); appendErr != nil {
			return appendErr
		}

		sess.RecordExchange(result.AgentsUsed(), resp.Intent, execErr != nil || result.Aborted)
		sess.Touch(m.opts.Config.Session.TTL.Std())
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.updateBreakerMetrics()
	return resp, execErr
}

func (m *ChatMesh) updateBreakerMetrics() {
	for id, client := range m.clients {
		m.opts.Metrics.SetBreakerState(id, int(client.BreakerState()))
	}
}

// BreakerStates returns the circuit state per agent id.
func (m *ChatMesh) BreakerStates() map[string]capability.State {
	out := make(map[string]capability.State, len(m.clients))
	for id, client := range m.clients {
		out[id] = client.BreakerState()
	}
	return out
}

// Health is a point-in-time operational snapshot.
type Health struct {
	Agents         []registry.Status `json:"agents"`
	Breakers       map[string]string `json:"breakers"`
	ActiveSessions int               `json:"active_sessions"`
	DroppedEvents  uint64            `json:"dropped_events"`
	Timestamp      time.Time         `json:"timestamp"`
}

// Health reports agent availability, breaker states and session counts.
func (m *ChatMesh) Health() Health {
	breakers := make(map[string]string, len(m.clients))
	for id, client := range m.clients {
		breakers[id] = client.BreakerState().String()
	}
	return Health{
		Agents:         m.registry.Snapshot(),
		Breakers:       breakers,
		ActiveSessions: m.sessions.ActiveCount(),
		DroppedEvents:  m.bus.Dropped(),
		Timestamp:      time.Now().UTC(),
	}
}
