package core

import "time"

// Direction indicates whether a message flows into or out of the system.
type Direction string

const (
	// DirectionIncoming marks a user-authored message.
	DirectionIncoming Direction = "incoming"
	// DirectionOutgoing marks a system-authored response.
	DirectionOutgoing Direction = "outgoing"
)

// Message is one sequenced record in a conversation. Sequence numbers are
// strictly increasing per session and gap-free within the in-memory window.
type Message struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"session_id"`
	Direction  Direction `json:"direction"`
	Content    string    `json:"content"`
	Type       string    `json:"type"`
	Timestamp  time.Time `json:"timestamp"`
	Sequence   int64     `json:"sequence"`
	Processed  bool      `json:"processed"`
	AgentID    string    `json:"agent_id,omitempty"`   // outgoing only
	Confidence float64   `json:"confidence,omitempty"` // outgoing only
}

// NewIncomingMessage builds an unsequenced user message; the session manager
// assigns the sequence number when the message is appended to history.
func NewIncomingMessage(sessionID, content string) Message {
	return Message{
		ID:        NewID(),
		SessionID: sessionID,
		Direction: DirectionIncoming,
		Content:   content,
		Type:      "text",
		Timestamp: time.Now().UTC(),
	}
}

// NewOutgoingMessage builds an unsequenced response message attributed to the
// agent that produced it.
func NewOutgoingMessage(sessionID, content, agentID string, confidence float64) Message {
	return Message{
		ID:         NewID(),
		SessionID:  sessionID,
		Direction:  DirectionOutgoing,
		Content:    content,
		Type:       "text",
		Timestamp:  time.Now().UTC(),
		AgentID:    agentID,
		Confidence: confidence,
	}
}
