package logging

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	logger := New()
	logger.SetOutput(&buf)
	logger.SetLevel(LevelInfo)

	// Debug should be filtered
	logger.Debug("debug message")
	if buf.Len() > 0 {
		t.Error("debug message should be filtered at INFO level")
	}

	logger.Info("info message")
	if buf.Len() == 0 {
		t.Error("info message should be logged")
	}

	output := buf.String()
	if !strings.Contains(output, "INFO") {
		t.Error("log should contain INFO level")
	}
	if !strings.Contains(output, "info message") {
		t.Error("log should contain the message")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
		ok   bool
	}{
		{"debug", LevelDebug, true},
		{" WARN ", LevelWarn, true},
		{"Error", LevelError, true},
		{"verbose", LevelInfo, false},
		{"", LevelInfo, false},
	}
	for _, tt := range tests {
		got, ok := ParseLevel(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseLevel(%q) = %v,%v want %v,%v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestLogger_WithComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New()
	logger.SetOutput(&buf)

	logger.WithComponent("feed").Info("test message")

	output := buf.String()
	if !strings.Contains(output, "[feed]") {
		t.Errorf("expected component 'feed' in log, got: %s", output)
	}
}

func TestLogger_WithTraceID(t *testing.T) {
	var buf bytes.Buffer
	logger := New()
	logger.SetOutput(&buf)

	logger.WithTraceID("req-123").Info("test message")

	output := buf.String()
	if !strings.Contains(output, "trace=req-123") {
		t.Errorf("expected trace id, got: %s", output)
	}
}

func TestLogger_FieldsSorted(t *testing.T) {
	var buf bytes.Buffer
	logger := New()
	logger.SetOutput(&buf)

	logger.Info("reading", map[string]interface{}{
		"temp": 24.5,
		"co2":  640,
	})

	output := buf.String()
	if !strings.Contains(output, "co2=640 temp=24.5") {
		t.Errorf("expected sorted fields, got: %s", output)
	}
}

func TestLogger_Format(t *testing.T) {
	var buf bytes.Buffer
	logger := New()
	logger.SetOutput(&buf)

	logger.WithComponent("test").Info("hello world", map[string]interface{}{"key": "value"})

	output := buf.String()
	// Format: LEVEL TIMESTAMP [component] message key=value
	// Example: INFO  2026-02-05T04:00:00.000Z [test] hello world key=value
	if !strings.HasPrefix(output, "INFO ") {
		t.Errorf("expected line to start with 'INFO ', got: %s", output)
	}
	if !strings.Contains(output, "[test] hello world key=value") {
		t.Errorf("unexpected layout: %s", output)
	}
}

func TestLogger_SensorTransition(t *testing.T) {
	var buf bytes.Buffer
	logger := New()
	logger.SetOutput(&buf)

	logger.SensorTransition("ammonia", false, 15*time.Second)
	logger.SensorTransition("ammonia", true, 0)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[0], "WARN") || !strings.Contains(lines[0], "sensor_offline") {
		t.Errorf("offline should be WARN: %s", lines[0])
	}
	if !strings.Contains(lines[0], "silence=15s") {
		t.Errorf("offline should carry silence: %s", lines[0])
	}
	if !strings.HasPrefix(lines[1], "INFO") || strings.Contains(lines[1], "silence") {
		t.Errorf("online line unexpected: %s", lines[1])
	}
}

func TestLogger_CommandResult(t *testing.T) {
	var buf bytes.Buffer
	logger := New()
	logger.SetOutput(&buf)

	logger.CommandResult("reboot", 3*time.Millisecond, nil)
	logger.CommandResult("reboot", 3*time.Millisecond, errors.New("nats: timeout"))

	output := buf.String()
	if !strings.Contains(output, "command_sent") {
		t.Error("expected command_sent")
	}
	if !strings.Contains(output, "ERROR") || !strings.Contains(output, "error=nats: timeout") {
		t.Errorf("expected error line, got: %s", output)
	}
}

func TestLogger_FeedDroppedIsWarn(t *testing.T) {
	var buf bytes.Buffer
	logger := New()
	logger.SetOutput(&buf)
	logger.SetLevel(LevelWarn)

	logger.FeedMessage("iot_system", 4)
	logger.FeedDropped("iot_system", errors.New("unexpected EOF"))

	output := buf.String()
	if strings.Contains(output, "feed_message") {
		t.Error("feed_message is debug and should be filtered")
	}
	if !strings.Contains(output, "feed_dropped") {
		t.Error("feed_dropped should be logged at WARN")
	}
}

func TestNop(t *testing.T) {
	// Must not panic and must not write anywhere visible.
	Nop().WithComponent("x").Error("discarded")
}
