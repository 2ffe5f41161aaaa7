package core

import "time"

// EventType labels a lifecycle notification published on the Bus.
type EventType string

const (
	// EventSessionCreated is published when a session is created.
	EventSessionCreated EventType = "session.created"
	// EventSessionEnded is published when a session ends or expires.
	EventSessionEnded EventType = "session.ended"
	// EventMessageSaved is published after a message enters session history.
	EventMessageSaved EventType = "message.saved"
	// EventPipelineCompleted is published after each pipeline run.
	EventPipelineCompleted EventType = "pipeline.completed"
)

// Event is an immutable lifecycle notification consumed by decoupled
// collaborators (persistence, metrics, audit). Payload holds the typed record
// for the event type: *Session, Message or *PipelineResult.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	SessionID string      `json:"session_id"`
	UserID    string      `json:"user_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// SessionEndedPayload accompanies EventSessionEnded.
type SessionEndedPayload struct {
	Session  *Session      `json:"session"`
	Reason   string        `json:"reason"`
	Duration time.Duration `json:"duration"`
}

// NewEvent creates a lifecycle event stamped with a fresh id and UTC time.
func NewEvent(t EventType, sessionID, userID string, payload interface{}) Event {
	return Event{
		ID:        NewID(),
		Type:      t,
		SessionID: sessionID,
		UserID:    userID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}
