package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/chatmesh/capability"
	"github.com/hupe1980/chatmesh/core"
	"github.com/hupe1980/chatmesh/logging"
	"github.com/hupe1980/chatmesh/metrics"
	"github.com/hupe1980/chatmesh/registry"
)

// Options configure an Orchestrator.
type Options struct {
	// DefaultAgentID handles messages no specialized step could answer.
	DefaultAgentID string
	// CriticalCapabilities abort the pipeline on failure unless fallback is
	// enabled. Defaults to account-inquiry.
	CriticalCapabilities []core.Capability
	// FallbackEnabled substitutes a local degraded result for failed critical
	// steps instead of aborting.
	FallbackEnabled bool
	// StepTimeout bounds each call attempt.
	StepTimeout time.Duration
	// MaxAttempts bounds attempts per step (including the first).
	MaxAttempts int
	// Backoff is the base delay between attempts; attempt n waits (n-1)*Backoff.
	Backoff time.Duration
	// Logger defaults to NoOpLogger.
	Logger logging.Logger
	// Metrics defaults to NopRecorder.
	Metrics metrics.Recorder
	// Bus receives pipeline.completed events when set.
	Bus *core.Bus
}

// Orchestrator executes one pipeline per inbound message: capability
// selection, agent reservation, sequential step execution with retry, and
// response synthesis.
type Orchestrator struct {
	registry *registry.Registry
	invokers map[string]core.Invoker
	fallback *capability.FallbackClassifier
	opts     Options
}

// New creates an orchestrator over the given registry.
func New(reg *registry.Registry, optFns ...func(o *Options)) *Orchestrator {
	opts := Options{
		CriticalCapabilities: []core.Capability{core.CapabilityAccountInquiry},
		FallbackEnabled:      true,
		StepTimeout:          5 * time.Second,
		MaxAttempts:          3,
		Backoff:              200 * time.Millisecond,
		Logger:               logging.NoOpLogger{},
		Metrics:              metrics.NopRecorder{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	return &Orchestrator{
		registry: reg,
		invokers: make(map[string]core.Invoker),
		fallback: capability.NewFallbackClassifier(),
		opts:     opts,
	}
}

// Bind associates an invoker with a registered agent id. Steps routed to an
// agent without an invoker are skipped.
func (o *Orchestrator) Bind(agentID string, invoker core.Invoker) {
	o.invokers[agentID] = invoker
}

// ExecuteRequest carries one message plus the session state the pipeline
// needs. Context is a snapshot; the caller folds step results back into the
// live session afterwards.
type ExecuteRequest struct {
	SessionID string
	UserID    string
	Message   core.Message
	Context   core.ConversationContext
}

// Execute runs the full pipeline for one message. The returned result always
// carries a synthesized response, even on abort; the error is non-nil only
// when the pipeline aborted on a critical step.
func (o *Orchestrator) Execute(ctx context.Context, req ExecuteRequest) (*core.PipelineResult, error) {
	start := time.Now()
	sel := Select(req.Message.Content, req.Message.Type, req.Context)

	result := &core.PipelineResult{
		ID:        core.NewID(),
		SessionID: req.SessionID,
		StartedAt: start,
	}

	var abortErr error
	for i, cap := range sel.Capabilities {
		if abortErr != nil {
			result.Steps = append(result.Steps, core.StepResult{
				Capability: cap,
				State:      core.StepSkipped,
				Error:      "pipeline aborted",
			})
			continue
		}

		step := o.runStep(ctx, cap, req, result.Steps)
		result.Steps = append(result.Steps, step)

		o.opts.Metrics.ObserveStep(step.AgentID, string(cap), step.State.String(), step.Duration)

		if step.Succeeded() {
			if step.Output.Provenance == "fallback" {
				result.FellBack = true
			}
			continue
		}
		if o.isCritical(cap) {
			if o.opts.FallbackEnabled {
				fb := o.fallback.Classify(req.Message.Content)
				result.Steps[i].Output = fb
				result.Steps[i].State = core.StepSucceeded
				result.FellBack = true
				o.opts.Logger.Warn("critical step degraded to fallback",
					"capability", string(cap), "error", step.Error)
				continue
			}
			result.Aborted = true
			abortErr = core.NewError(core.KindPipelineAborted,
				fmt.Sprintf("critical capability %s failed: %s", cap, step.Error))
		}
	}

	result.Response = o.synthesize(result)
	result.Duration = time.Since(start)

	status := "ok"
	switch {
	case result.Aborted:
		status = "aborted"
	case result.FellBack:
		status = "degraded"
	}
	o.opts.Metrics.ObservePipeline(status, len(result.Steps), result.Duration)
	o.opts.Logger.Info("pipeline completed",
		"pipeline_id", result.ID,
		"session_id", req.SessionID,
		"steps", len(result.Steps),
		"status", status,
		"duration", result.Duration)
	if o.opts.Bus != nil {
		o.opts.Bus.Publish(core.NewEvent(core.EventPipelineCompleted, req.SessionID, req.UserID, result))
	}
	return result, abortErr
}

func (o *Orchestrator) isCritical(cap core.Capability) bool {
	for _, c := range o.opts.CriticalCapabilities {
		if c == cap {
			return true
		}
	}
	return false
}

// runStep reserves an agent for the capability, executes the call with retry
// and per-attempt timeout, and always releases the reservation.
func (o *Orchestrator) runStep(ctx context.Context, cap core.Capability, req ExecuteRequest, prior []core.StepResult) core.StepResult {
	step := core.StepResult{Capability: cap, State: core.StepIdle}
	start := time.Now()

	agent, ok := o.registry.FindAvailable(string(cap))
	if !ok {
		step.State = core.StepSkipped
		step.Error = fmt.Sprintf("no available agent for capability %s", cap)
		step.Duration = time.Since(start)
		return step
	}
	step.AgentID = agent.ID()

	if err := o.registry.Reserve(agent.ID()); err != nil {
		step.State = core.StepSkipped
		step.Error = err.Error()
		step.Duration = time.Since(start)
		return step
	}
	step.State = core.StepReserved
	defer func() {
		o.registry.Release(agent.ID())
		o.opts.Logger.Debug("step reservation released",
			"agent_id", agent.ID(), "state", core.StepReleased.String())
	}()

	invoker, ok := o.invokers[agent.ID()]
	if !ok {
		step.State = core.StepSkipped
		step.Error = fmt.Sprintf("no invoker bound for agent %s", agent.ID())
		step.Duration = time.Since(start)
		return step
	}

	capReq := core.CapabilityRequest{
		Message:      req.Message.Content,
		Context:      req.Context,
		PriorResults: prior,
		SessionID:    req.SessionID,
		UserID:       req.UserID,
		Timestamp:    time.Now().UTC(),
	}

	step.State = core.StepCalling
	var lastErr error
	for attempt := 1; attempt <= o.opts.MaxAttempts; attempt++ {
		step.Attempts = attempt
		if attempt > 1 {
			if err := waitBackoff(ctx, time.Duration(attempt-1)*o.opts.Backoff); err != nil {
				lastErr = err
				break
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, o.opts.StepTimeout)
		output, err := invoker.Invoke(attemptCtx, capReq)
		cancel()

		attemptDur := time.Since(start)
		degraded := output != nil &&
			(core.IsKind(err, core.KindCircuitOpen) || core.IsKind(err, core.KindAgentCallFailed))
		if degraded && o.isCritical(cap) && !o.opts.FallbackEnabled {
			// A critical step may not silently degrade when fallback mode is
			// off; the failure has to surface as an abort.
			degraded = false
		}
		if err == nil || degraded {
			// A fallback result behind an open breaker or exhausted resilient
			// client counts as a degraded success; synthesis reads provenance
			// off the output. The registry still records the live outcome.
			step.State = core.StepSucceeded
			step.Output = output
			step.Duration = attemptDur
			o.registry.RecordResult(agent.ID(), err == nil)
			o.opts.Logger.Debug("step succeeded",
				"agent_id", agent.ID(), "capability", string(cap),
				"attempt", attempt, "duration", attemptDur, "degraded", degraded)
			return step
		}

		lastErr = err
		o.opts.Logger.Warn("step attempt failed",
			"agent_id", agent.ID(), "capability", string(cap),
			"attempt", attempt, "error", err)
		if errors.Is(err, context.Canceled) {
			break
		}
	}

	step.State = core.StepFailed
	if errors.Is(lastErr, context.DeadlineExceeded) || core.IsKind(lastErr, core.KindAgentTimeout) {
		lastErr = core.WrapError(core.KindAgentTimeout, fmt.Sprintf("agent %s timed out", agent.ID()), lastErr)
	}
	if lastErr != nil {
		step.Error = lastErr.Error()
	}
	step.Duration = time.Since(start)
	o.registry.RecordResult(agent.ID(), false)
	return step
}

func waitBackoff(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
