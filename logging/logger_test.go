package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func newBufferLogger(level LogLevel) (*ChatLogger, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{
		Level:       level,
		Format:      "json",
		Output:      &buf,
		Component:   "orchestrator",
		CustomAttrs: map[string]interface{}{},
	})
	return logger, &buf
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	line := strings.TrimSpace(buf.String())
	var entry map[string]any
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("log output is not one JSON object: %v\n%s", err, line)
	}
	return entry
}

func TestChatLogger_KeyValueArgs(t *testing.T) {
	logger, buf := newBufferLogger(LogLevelInfo)

	logger.Info("pipeline completed", "session_id", "s1", "steps", 3)

	entry := decodeLine(t, buf)
	if entry["msg"] != "pipeline completed" {
		t.Errorf("msg = %v", entry["msg"])
	}
	if entry["session_id"] != "s1" {
		t.Errorf("session_id = %v", entry["session_id"])
	}
	if entry["steps"] != float64(3) {
		t.Errorf("steps = %v", entry["steps"])
	}
	if entry["component"] != "orchestrator" {
		t.Errorf("component = %v", entry["component"])
	}
}

func TestChatLogger_LevelGating(t *testing.T) {
	logger, buf := newBufferLogger(LogLevelWarn)

	logger.Debug("noise")
	logger.Info("noise")
	if buf.Len() != 0 {
		t.Fatalf("below-level messages were emitted: %s", buf.String())
	}

	logger.Warn("kept")
	if !strings.Contains(buf.String(), "kept") {
		t.Errorf("warn message missing: %s", buf.String())
	}
}

func TestChatLogger_WithSessionClones(t *testing.T) {
	base, buf := newBufferLogger(LogLevelInfo)

	scoped := base.WithSession("s1", "u1").WithContext("channel", "web")
	scoped.Info("hello")

	entry := decodeLine(t, buf)
	if entry["session_id"] != "s1" || entry["user_id"] != "u1" {
		t.Errorf("session attrs missing: %v", entry)
	}
	if entry["channel"] != "web" {
		t.Errorf("context attr missing: %v", entry)
	}

	buf.Reset()
	base.Info("plain")
	entry = decodeLine(t, buf)
	if _, ok := entry["session_id"]; ok {
		t.Errorf("clone leaked into base logger: %v", entry)
	}
}

func TestChatLogger_LogAgentCall(t *testing.T) {
	logger, buf := newBufferLogger(LogLevelInfo)

	logger.LogAgentCall("banking-agent", 2, 40*time.Millisecond, false, errors.New("boom"))

	entry := decodeLine(t, buf)
	if entry["level"] != "WARN" {
		t.Errorf("failed call should log at warn, got %v", entry["level"])
	}
	if entry["agent_id"] != "banking-agent" {
		t.Errorf("agent_id = %v", entry["agent_id"])
	}
	if entry["attempt"] != float64(2) {
		t.Errorf("attempt = %v", entry["attempt"])
	}
	if entry["error"] != "boom" {
		t.Errorf("error = %v", entry["error"])
	}
}

func TestChatLogger_LogSessionLifecycle(t *testing.T) {
	logger, buf := newBufferLogger(LogLevelInfo)

	logger.LogSessionLifecycle("s1", "ended", "user_requested", 90*time.Second)

	out := buf.String()
	for _, want := range []string{"Session lifecycle", "s1", "ended", "user_requested"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q: %s", want, out)
		}
	}
}

func TestChatLogger_StartTimer(t *testing.T) {
	logger, buf := newBufferLogger(LogLevelInfo)

	done := logger.StartTimer("resume")
	done()

	entry := decodeLine(t, buf)
	if entry["operation"] != "resume" {
		t.Errorf("operation = %v", entry["operation"])
	}
	if _, ok := entry["duration"]; !ok {
		t.Errorf("duration attr missing: %v", entry)
	}
}

func TestSlogAdapter_ImplementsLogger(t *testing.T) {
	var _ Logger = &SlogAdapter{}
	var _ Logger = &ChatLogger{}
	var _ Logger = NoOpLogger{}
}
