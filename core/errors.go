package core

import (
	"errors"
	"fmt"
)

// ErrorKind classifies every failure the core surfaces to callers. Transport
// layers map these to their own status codes; nothing else escapes the
// boundary.
type ErrorKind int

const (
	// KindUnknown covers unclassified internal faults.
	KindUnknown ErrorKind = iota
	// KindSessionNotFound means no session exists for the given id.
	KindSessionNotFound
	// KindSessionExpired means the session's TTL has passed.
	KindSessionExpired
	// KindRateLimitExceeded means the per-session inbound ceiling was hit.
	KindRateLimitExceeded
	// KindAgentUnavailable means no agent had capacity or health for a step.
	KindAgentUnavailable
	// KindAgentTimeout means a capability call exceeded its per-step timeout.
	KindAgentTimeout
	// KindAgentCallFailed means all attempts for a step were exhausted.
	KindAgentCallFailed
	// KindPipelineAborted means a critical agent failed with fallback disabled.
	KindPipelineAborted
	// KindCircuitOpen means the breaker rejected the call and the fallback
	// path was used. Not a hard failure.
	KindCircuitOpen
)

// String returns the canonical name for the kind.
func (k ErrorKind) String() string {
	switch k {
	case KindSessionNotFound:
		return "SessionNotFound"
	case KindSessionExpired:
		return "SessionExpired"
	case KindRateLimitExceeded:
		return "RateLimitExceeded"
	case KindAgentUnavailable:
		return "AgentUnavailable"
	case KindAgentTimeout:
		return "AgentTimeout"
	case KindAgentCallFailed:
		return "AgentCallFailed"
	case KindPipelineAborted:
		return "PipelineAborted"
	case KindCircuitOpen:
		return "CircuitOpen"
	default:
		return "Unknown"
	}
}

// Error is the taxonomy error type carried across package boundaries.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message == "" && e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the wrapped cause for errors.Is / errors.As.
func (e *Error) Unwrap() error { return e.Err }

// NewError creates a taxonomy error without a cause.
func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// WrapError creates a taxonomy error wrapping an underlying cause.
func WrapError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the taxonomy kind from err, or KindUnknown if err is not a
// taxonomy error.
func KindOf(err error) ErrorKind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given taxonomy kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}
