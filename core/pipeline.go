package core

import "time"

// StepState tracks a pipeline step through its lifecycle:
// Idle -> Reserved -> Calling -> (Succeeded | Failed | Skipped) -> Released.
type StepState int

const (
	// StepIdle is the initial state before reservation.
	StepIdle StepState = iota
	// StepReserved means agent capacity has been reserved.
	StepReserved
	// StepCalling means the capability call is in flight.
	StepCalling
	// StepSucceeded means the call returned a usable result.
	StepSucceeded
	// StepFailed means all attempts were exhausted.
	StepFailed
	// StepSkipped means no agent capacity or health was available.
	StepSkipped
	// StepReleased means reserved capacity has been returned.
	StepReleased
)

// String returns the state name.
func (s StepState) String() string {
	switch s {
	case StepIdle:
		return "idle"
	case StepReserved:
		return "reserved"
	case StepCalling:
		return "calling"
	case StepSucceeded:
		return "succeeded"
	case StepFailed:
		return "failed"
	case StepSkipped:
		return "skipped"
	case StepReleased:
		return "released"
	default:
		return "unknown"
	}
}

// StepResult records the outcome of one agent step within a pipeline.
type StepResult struct {
	AgentID    string            `json:"agentId"`
	Capability Capability        `json:"capability"`
	State      StepState         `json:"state"`
	Attempts   int               `json:"attempts"`
	Output     *CapabilityResult `json:"output,omitempty"`
	Error      string            `json:"error,omitempty"`
	Duration   time.Duration     `json:"duration"`
}

// Succeeded reports whether the step produced a usable output.
func (r StepResult) Succeeded() bool {
	return r.State == StepSucceeded && r.Output != nil
}

// Response is the final synthesized answer for one inbound message.
type Response struct {
	Text               string            `json:"text"`
	Confidence         float64           `json:"confidence"`
	SourceAgentID      string            `json:"sourceAgentId,omitempty"`
	Provenance         string            `json:"provenance,omitempty"`
	Intent             string            `json:"intent,omitempty"`
	Entities           map[string]string `json:"entities,omitempty"`
	Sentiment          string            `json:"sentiment,omitempty"`
	QuickReplies       []string          `json:"quickReplies,omitempty"`
	SuggestedActions   []string          `json:"suggestedActions,omitempty"`
	EscalationRequired bool              `json:"escalationRequired,omitempty"`
}

// PipelineResult is the ephemeral record of one message's processing. It
// exists only for the duration of the exchange and is not persisted beyond
// logging and lifecycle events.
type PipelineResult struct {
	ID        string        `json:"id"`
	SessionID string        `json:"sessionId"`
	Steps     []StepResult  `json:"steps"`
	Response  *Response     `json:"response,omitempty"`
	StartedAt time.Time     `json:"startedAt"`
	Duration  time.Duration `json:"duration"`
	FellBack  bool          `json:"fellBack"`
	Aborted   bool          `json:"aborted"`
}

// AgentsUsed returns the ids of agents whose steps succeeded, in step order.
func (p *PipelineResult) AgentsUsed() []string {
	var ids []string
	for _, step := range p.Steps {
		if step.Succeeded() {
			ids = append(ids, step.AgentID)
		}
	}
	return ids
}

// StepFor returns the first step result for the given capability.
func (p *PipelineResult) StepFor(cap Capability) (StepResult, bool) {
	for _, step := range p.Steps {
		if step.Capability == cap {
			return step, true
		}
	}
	return StepResult{}, false
}
