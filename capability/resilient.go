package capability

import (
	"context"
	"errors"
	"time"

	"github.com/hupe1980/chatmesh/core"
	"github.com/hupe1980/chatmesh/logging"
)

// ResilientOptions configure a ResilientClient.
type ResilientOptions struct {
	// MaxAttempts bounds live call attempts per Invoke (including the first).
	MaxAttempts int
	// Timeout bounds each individual attempt.
	Timeout time.Duration
	// Backoff is the base delay between attempts; attempt n waits n*Backoff.
	Backoff time.Duration
	// Breaker overrides the default breaker configuration.
	Breaker BreakerConfig
	// Logger defaults to NoOpLogger.
	Logger logging.Logger
}

// ResilientClient wraps exactly one external capability (the
// intent/understanding service) with retry, per-attempt timeout and a circuit
// breaker. When the breaker is open, or all attempts are exhausted, it
// short-circuits to the local fallback classifier so callers always receive a
// result; degraded answers carry provenance "fallback".
type ResilientClient struct {
	invoker  core.Invoker
	breaker  *Breaker
	fallback *FallbackClassifier

	maxAttempts int
	timeout     time.Duration
	backoff     time.Duration
	logger      logging.Logger
}

// NewResilientClient wraps the given invoker.
func NewResilientClient(invoker core.Invoker, optFns ...func(o *ResilientOptions)) *ResilientClient {
	opts := ResilientOptions{
		MaxAttempts: 3,
		Timeout:     5 * time.Second,
		Backoff:     200 * time.Millisecond,
		Breaker:     DefaultBreakerConfig,
		Logger:      logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	return &ResilientClient{
		invoker:     invoker,
		breaker:     NewBreaker(opts.Breaker),
		fallback:    NewFallbackClassifier(),
		maxAttempts: opts.MaxAttempts,
		timeout:     opts.Timeout,
		backoff:     opts.Backoff,
		logger:      opts.Logger,
	}
}

// BreakerState exposes the current circuit state for health reporting.
func (c *ResilientClient) BreakerState() State { return c.breaker.State() }

// Invoke implements core.Invoker. It never returns a hard failure: when the
// live path is unavailable the fallback result is returned together with a
// CircuitOpen or AgentCallFailed taxonomy error callers may inspect but need
// not treat as fatal.
func (c *ResilientClient) Invoke(ctx context.Context, req core.CapabilityRequest) (*core.CapabilityResult, error) {
	if !c.breaker.Allow() {
		c.logger.Debug("circuit open, using fallback classifier", "session_id", req.SessionID)
		return c.fallback.Classify(req.Message), core.NewError(core.KindCircuitOpen, "circuit breaker open")
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				c.breaker.Record(false)
				return c.fallback.Classify(req.Message), core.WrapError(core.KindAgentCallFailed, "capability attempts exhausted", ctx.Err())
			case <-time.After(time.Duration(attempt-1) * c.backoff):
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
		result, err := c.invoker.Invoke(attemptCtx, req)
		cancel()

		if err == nil {
			c.breaker.Record(true)
			return result, nil
		}
		lastErr = err
		c.logger.Warn("capability attempt failed", "attempt", attempt, "error", err)
		if errors.Is(err, context.Canceled) {
			break
		}
	}

	c.breaker.Record(false)
	return c.fallback.Classify(req.Message), core.WrapError(core.KindAgentCallFailed, "capability attempts exhausted", lastErr)
}
