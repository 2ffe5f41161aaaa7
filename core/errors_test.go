package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestError_KindSurvivesWrapping(t *testing.T) {
	inner := NewError(KindAgentTimeout, "agent slow")
	wrapped := fmt.Errorf("processing message: %w", inner)

	if !IsKind(wrapped, KindAgentTimeout) {
		t.Error("expected AgentTimeout kind through fmt wrapping")
	}
	if KindOf(wrapped) != KindAgentTimeout {
		t.Errorf("expected AgentTimeout, got %s", KindOf(wrapped))
	}
}

func TestError_UnwrapExposesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := WrapError(KindAgentCallFailed, "call agent", cause)

	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to reach the cause")
	}
	want := "AgentCallFailed: call agent: connection refused"
	if err.Error() != want {
		t.Errorf("expected %q, got %q", want, err.Error())
	}
}

func TestKindOf_NonTaxonomyError(t *testing.T) {
	if KindOf(errors.New("plain")) != KindUnknown {
		t.Error("plain errors should map to KindUnknown")
	}
	if KindOf(nil) != KindUnknown {
		t.Error("nil should map to KindUnknown")
	}
}

func TestErrorKind_Names(t *testing.T) {
	cases := map[ErrorKind]string{
		KindSessionNotFound:   "SessionNotFound",
		KindSessionExpired:    "SessionExpired",
		KindRateLimitExceeded: "RateLimitExceeded",
		KindAgentUnavailable:  "AgentUnavailable",
		KindAgentTimeout:      "AgentTimeout",
		KindAgentCallFailed:   "AgentCallFailed",
		KindPipelineAborted:   "PipelineAborted",
		KindCircuitOpen:       "CircuitOpen",
		KindUnknown:           "Unknown",
	}
	for kind, want := range cases {
		if kind.String() != want {
			t.Errorf("expected %q, got %q", want, kind.String())
		}
	}
}
