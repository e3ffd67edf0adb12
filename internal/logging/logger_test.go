package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func captureLogger(buf *bytes.Buffer) *Logger {
	l := New(&Config{Level: "DEBUG", Output: "stdout", JSONFormat: true, Component: "test"})
	l.output = buf
	return l
}

func lastEntry(t *testing.T, buf *bytes.Buffer) LogEntry {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	var entry LogEntry
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &entry); err != nil {
		t.Fatalf("Failed to parse log line %q: %v", lines[len(lines)-1], err)
	}
	return entry
}

// ============================================================================
// TEST: Key-value fields
// ============================================================================

func TestLogger_KeyValuePairsBecomeFields(t *testing.T) {
	var buf bytes.Buffer
	l := captureLogger(&buf)

	l.Info("Subscription activated", "user_id", "user-1", "days", 30)

	entry := lastEntry(t, &buf)
	if entry.Message != "Subscription activated" {
		t.Errorf("Expected literal message, got %q", entry.Message)
	}
	if entry.Fields["user_id"] != "user-1" {
		t.Errorf("Expected user_id field, got %v", entry.Fields)
	}
	if entry.Fields["days"] != float64(30) {
		t.Errorf("Expected days field 30, got %v", entry.Fields["days"])
	}
}

func TestLogger_MessageNeverFormatted(t *testing.T) {
	// Percent verbs in the message stay literal; the args go to fields
	var buf bytes.Buffer
	l := captureLogger(&buf)

	l.Warn("Rate limit hit for %s", "key", "10.0.0.1")

	entry := lastEntry(t, &buf)
	if entry.Message != "Rate limit hit for %s" {
		t.Errorf("Message must not be printf-formatted, got %q", entry.Message)
	}
	if entry.Fields["key"] != "10.0.0.1" {
		t.Errorf("Expected key field, got %v", entry.Fields)
	}
}

func TestLogger_UnkeyedArgsKept(t *testing.T) {
	var buf bytes.Buffer
	l := captureLogger(&buf)

	l.Error("Unexpected state", "orphan")

	entry := lastEntry(t, &buf)
	if _, ok := entry.Fields["args"]; !ok {
		t.Errorf("Expected unkeyed args preserved, got %v", entry.Fields)
	}
}

func TestLogger_ErrorValuesSerializeAsStrings(t *testing.T) {
	var buf bytes.Buffer
	l := captureLogger(&buf)

	l.Error("Sweep failed", "error", errors.New("connection refused"))

	entry := lastEntry(t, &buf)
	if entry.Fields["error"] != "connection refused" {
		t.Errorf("Expected error string, got %v", entry.Fields["error"])
	}
}

// ============================================================================
// TEST: Level gate and derived loggers
// ============================================================================

func TestLogger_LevelGate(t *testing.T) {
	var buf bytes.Buffer
	l := New(&Config{Level: "WARN", Output: "stdout", JSONFormat: true})
	l.output = &buf

	l.Info("Below the gate")
	if buf.Len() != 0 {
		t.Errorf("INFO must not pass a WARN gate, got %q", buf.String())
	}

	l.Warn("At the gate")
	if buf.Len() == 0 {
		t.Error("WARN must pass a WARN gate")
	}
}

func TestLogger_WithComponentAndFields(t *testing.T) {
	var buf bytes.Buffer
	l := captureLogger(&buf).WithComponent("sweeper").WithField("run_id", "r1")

	l.Info("Sweep complete", "expired", 2)

	entry := lastEntry(t, &buf)
	if entry.Component != "sweeper" {
		t.Errorf("Expected component sweeper, got %q", entry.Component)
	}
	if entry.Fields["run_id"] != "r1" {
		t.Errorf("Expected inherited run_id field, got %v", entry.Fields)
	}
	if entry.Fields["expired"] != float64(2) {
		t.Errorf("Expected expired field, got %v", entry.Fields)
	}
}
