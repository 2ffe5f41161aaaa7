package testutil

import (
	"context"
	"sync"

	"github.com/hupe1980/chatmesh/core"
)

// StubInvoker is a scriptable core.Invoker for tests. It returns the
// configured results in order (repeating the last one) and counts calls.
type StubInvoker struct {
	mu      sync.Mutex
	results []*core.CapabilityResult
	errs    []error
	calls   int
	lastReq core.CapabilityRequest
}

// NewStubInvoker creates a stub that always succeeds with the given result.
func NewStubInvoker(result *core.CapabilityResult) *StubInvoker {
	return &StubInvoker{results: []*core.CapabilityResult{result}, errs: []error{nil}}
}

// NewFailingInvoker creates a stub that always returns err.
func NewFailingInvoker(err error) *StubInvoker {
	return &StubInvoker{results: []*core.CapabilityResult{nil}, errs: []error{err}}
}

// Script appends an outcome for the next unscripted call (chainable).
func (s *StubInvoker) Script(result *core.CapabilityResult, err error) *StubInvoker {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, result)
	s.errs = append(s.errs, err)
	return s
}

// Invoke implements core.Invoker.
func (s *StubInvoker) Invoke(_ context.Context, req core.CapabilityRequest) (*core.CapabilityResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.calls
	if idx >= len(s.results) {
		idx = len(s.results) - 1
	}
	s.calls++
	s.lastReq = req
	return s.results[idx], s.errs[idx]
}

// Calls returns the number of Invoke calls observed.
func (s *StubInvoker) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// LastRequest returns the most recent request received.
func (s *StubInvoker) LastRequest() core.CapabilityRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastReq
}

// AgentConfig returns a minimal agent config for tests.
func AgentConfig(id string, caps ...core.Capability) core.AgentConfig {
	return core.AgentConfig{
		ID:            id,
		Name:          id,
		Type:          "test",
		Capabilities:  caps,
		MaxConcurrent: 2,
	}
}
