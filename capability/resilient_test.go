package capability

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/hupe1980/chatmesh/core"
)

// countingInvoker fails a configured number of times before succeeding.
type countingInvoker struct {
	mu        sync.Mutex
	calls     int
	failFirst int
	result    *core.CapabilityResult
}

func (c *countingInvoker) Invoke(_ context.Context, _ core.CapabilityRequest) (*core.CapabilityResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.calls <= c.failFirst {
		return nil, errors.New("upstream unavailable")
	}
	return c.result, nil
}

func (c *countingInvoker) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func fastOptions(o *ResilientOptions) {
	o.MaxAttempts = 3
	o.Timeout = 100 * time.Millisecond
	o.Backoff = time.Millisecond
}

func TestResilientClient_RetriesUntilSuccess(t *testing.T) {
	inv := &countingInvoker{failFirst: 2, result: &core.CapabilityResult{Response: "ok", Provenance: "live"}}
	c := NewResilientClient(inv, fastOptions)

	res, err := c.Invoke(context.Background(), core.CapabilityRequest{Message: "hi"})
	assert.NoError(t, err)
	assert.Equal(t, "ok", res.Response)
	assert.Equal(t, 3, inv.Calls())
	assert.Equal(t, Closed, c.BreakerState())
}

func TestResilientClient_ExhaustedAttemptsFallBack(t *testing.T) {
	inv := &countingInvoker{failFirst: 100}
	c := NewResilientClient(inv, fastOptions)

	res, err := c.Invoke(context.Background(), core.CapabilityRequest{Message: "what's my balance?"})
	assert.True(t, core.IsKind(err, core.KindAgentCallFailed))
	assert.NotNil(t, res, "fallback result is always returned")
	assert.Equal(t, "fallback", res.Provenance)
	assert.Equal(t, "banking.balance.check", res.Intent)
	assert.Equal(t, 3, inv.Calls())
}

func TestResilientClient_OpenBreakerShortCircuits(t *testing.T) {
	inv := &countingInvoker{failFirst: 100}
	c := NewResilientClient(inv, func(o *ResilientOptions) {
		fastOptions(o)
		o.Breaker = BreakerConfig{FailureThreshold: 2, ResetTimeout: time.Minute}
	})

	ctx := context.Background()
	req := core.CapabilityRequest{Message: "transfer money"}

	// Two exhausted invocations record two breaker failures and open it.
	_, _ = c.Invoke(ctx, req)
	_, _ = c.Invoke(ctx, req)
	assert.Equal(t, Open, c.BreakerState())
	callsBefore := inv.Calls()

	res, err := c.Invoke(ctx, req)
	assert.True(t, core.IsKind(err, core.KindCircuitOpen))
	assert.Equal(t, "fallback", res.Provenance)
	assert.Equal(t, callsBefore, inv.Calls(), "open breaker must not touch the upstream")
}

func TestResilientClient_HalfOpenProbeRecovers(t *testing.T) {
	inv := &countingInvoker{failFirst: 3, result: &core.CapabilityResult{Response: "recovered", Provenance: "live"}}
	c := NewResilientClient(inv, func(o *ResilientOptions) {
		o.MaxAttempts = 1
		o.Timeout = 100 * time.Millisecond
		o.Backoff = time.Millisecond
		o.Breaker = BreakerConfig{FailureThreshold: 3, ResetTimeout: 10 * time.Millisecond}
	})

	ctx := context.Background()
	req := core.CapabilityRequest{Message: "hi"}
	for i := 0; i < 3; i++ {
		_, _ = c.Invoke(ctx, req)
	}
	assert.Equal(t, Open, c.BreakerState())

	time.Sleep(20 * time.Millisecond)

	res, err := c.Invoke(ctx, req)
	assert.NoError(t, err)
	assert.Equal(t, "recovered", res.Response)
	assert.Equal(t, Closed, c.BreakerState())
}

func TestResilientClient_PerAttemptTimeout(t *testing.T) {
	slow := core.InvokerFunc(func(ctx context.Context, _ core.CapabilityRequest) (*core.CapabilityResult, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	c := NewResilientClient(slow, func(o *ResilientOptions) {
		o.MaxAttempts = 2
		o.Timeout = 5 * time.Millisecond
		o.Backoff = time.Millisecond
	})

	start := time.Now()
	res, err := c.Invoke(context.Background(), core.CapabilityRequest{Message: "hi"})
	assert.True(t, core.IsKind(err, core.KindAgentCallFailed))
	assert.Equal(t, "fallback", res.Provenance)
	assert.Less(t, time.Since(start), time.Second, "timeouts must be per attempt, not unbounded")
}
