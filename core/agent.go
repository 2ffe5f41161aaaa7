package core

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Capability tags classify what an agent can do. Selection and response
// synthesis key off these tags rather than agent identifiers so deployments
// can swap implementations freely.
type Capability string

const (
	// CapabilityLanguageAnalysis covers sentiment and entity extraction.
	CapabilityLanguageAnalysis Capability = "language-analysis"
	// CapabilityIntentDetection covers intent understanding / NLU.
	CapabilityIntentDetection Capability = "intent-detection"
	// CapabilityAccountInquiry covers the banking domain assistant.
	CapabilityAccountInquiry Capability = "account-inquiry"
	// CapabilityToolCalling covers external lookups and tool execution.
	CapabilityToolCalling Capability = "tool-calling"
	// CapabilityEscalation covers handover to a human agent.
	CapabilityEscalation Capability = "escalation"
)

// AgentConfig declares a callable capability registered with the orchestrator.
// Endpoint is empty for local or human agents.
type AgentConfig struct {
	ID            string       `json:"id" yaml:"id"`
	Name          string       `json:"name" yaml:"name"`
	Type          string       `json:"type" yaml:"type"`
	Capabilities  []Capability `json:"capabilities" yaml:"capabilities"`
	Priority      int          `json:"priority" yaml:"priority"` // lower = preferred
	MaxConcurrent int          `json:"max_concurrent" yaml:"max_concurrent"`
	Endpoint      string       `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
}

// HasCapability reports whether the agent carries the given capability tag.
func (c AgentConfig) HasCapability(cap Capability) bool {
	for _, have := range c.Capabilities {
		if have == cap {
			return true
		}
	}
	return false
}

// CapabilityRequest is the wire contract sent to an agent's remote endpoint.
type CapabilityRequest struct {
	Message      string              `json:"message"`
	Context      ConversationContext `json:"conversationContext"`
	PriorResults []StepResult        `json:"priorPipelineResults,omitempty"`
	SessionID    string              `json:"sessionId"`
	UserID       string              `json:"userId"`
	Timestamp    time.Time           `json:"timestamp"`
}

// CapabilityResult is the normalized payload returned by a capability call.
// Provenance distinguishes degraded answers ("fallback") from live ones.
type CapabilityResult struct {
	Response         string            `json:"response"`
	Confidence       float64           `json:"confidence,omitempty"`
	Intent           string            `json:"intent,omitempty"`
	Entities         map[string]string `json:"entities,omitempty"`
	Sentiment        string            `json:"sentiment,omitempty"`
	SuggestedActions []string          `json:"suggestedActions,omitempty"`
	QuickReplies     []string          `json:"quickReplies,omitempty"`
	ToolsUsed        []string          `json:"toolsUsed,omitempty"`
	Provenance       string            `json:"provenance,omitempty"`
}

// Invoker executes one capability call. Implementations normalize connection
// failures, non-2xx statuses and timeouts into a single error so retry and
// breaker logic can treat them uniformly.
type Invoker interface {
	Invoke(ctx context.Context, req CapabilityRequest) (*CapabilityResult, error)
}

// InvokerFunc adapts a plain function to the Invoker interface.
type InvokerFunc func(ctx context.Context, req CapabilityRequest) (*CapabilityResult, error)

// Invoke implements Invoker.
func (f InvokerFunc) Invoke(ctx context.Context, req CapabilityRequest) (*CapabilityResult, error) {
	return f(ctx, req)
}

// NewID generates a new unique identifier for sessions, messages and pipelines.
func NewID() string { return uuid.NewString() }
