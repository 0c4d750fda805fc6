// Package logging provides leveled console output for the dashboard service.
// Lines are human-readable and grep-friendly; the live view on the wire is
// the record of what operators saw.
package logging

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// Level represents log severity.
type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// levelPriority maps levels to numeric priority for filtering.
var levelPriority = map[Level]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
}

// ParseLevel accepts a level name in any case. Unknown names yield INFO
// and false.
func ParseLevel(s string) (Level, bool) {
	l := Level(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := levelPriority[l]; ok {
		return l, true
	}
	return LevelInfo, false
}

// Logger writes structured lines to an io.Writer.
// Derived loggers share the parent's writer lock.
type Logger struct {
	mu        *sync.Mutex
	output    io.Writer
	minLevel  Level
	component string
	traceID   string
}

// New creates a new Logger writing INFO and above to stdout.
func New() *Logger {
	return &Logger{
		mu:       &sync.Mutex{},
		output:   os.Stdout,
		minLevel: LevelInfo,
	}
}

// Nop returns a logger that discards everything. Handy in tests.
func Nop() *Logger {
	l := New()
	l.output = io.Discard
	return l
}

// WithComponent returns a new logger with the given component name.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		mu:        l.mu,
		output:    l.output,
		minLevel:  l.minLevel,
		component: component,
		traceID:   l.traceID,
	}
}

// WithTraceID returns a new logger that tags every line with trace=<id>.
func (l *Logger) WithTraceID(traceID string) *Logger {
	return &Logger{
		mu:        l.mu,
		output:    l.output,
		minLevel:  l.minLevel,
		component: l.component,
		traceID:   traceID,
	}
}

// SetLevel sets the minimum log level.
func (l *Logger) SetLevel(level Level) {
	l.minLevel = level
}

// SetOutput sets the output writer (default: stdout).
func (l *Logger) SetOutput(w io.Writer) {
	l.output = w
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, fields ...map[string]interface{}) {
	l.log(LevelDebug, msg, fields...)
}

// Info logs an info message.
func (l *Logger) Info(msg string, fields ...map[string]interface{}) {
	l.log(LevelInfo, msg, fields...)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, fields ...map[string]interface{}) {
	l.log(LevelWarn, msg, fields...)
}

// Error logs an error message.
func (l *Logger) Error(msg string, fields ...map[string]interface{}) {
	l.log(LevelError, msg, fields...)
}

// formatFields formats fields as key=value pairs in key order.
func formatFields(fields map[string]interface{}) string {
	if len(fields) == 0 {
		return ""
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, fields[k]))
	}
	return " " + strings.Join(parts, " ")
}

// log writes a log entry in traditional format: LEVEL TIMESTAMP [component] message key=value ...
func (l *Logger) log(level Level, msg string, fields ...map[string]interface{}) {
	if levelPriority[level] < levelPriority[l.minLevel] {
		return
	}

	timestamp := time.Now().UTC().Format("2006-01-02T15:04:05.000Z")

	var fieldStr string
	if len(fields) > 0 && fields[0] != nil {
		fieldStr = formatFields(fields[0])
	}
	if l.traceID != "" {
		fieldStr += " trace=" + l.traceID
	}

	var line string
	if l.component != "" {
		line = fmt.Sprintf("%-5s %s [%s] %s%s\n", level, timestamp, l.component, msg, fieldStr)
	} else {
		line = fmt.Sprintf("%-5s %s %s%s\n", level, timestamp, msg, fieldStr)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.output.Write([]byte(line))
}

// --- Domain event helpers ---

// FeedMessage logs receipt of a telemetry update.
func (l *Logger) FeedMessage(key string, fields int) {
	l.Debug("feed_message", map[string]interface{}{
		"key":    key,
		"fields": fields,
	})
}

// FeedDropped logs a payload that could not be decoded.
func (l *Logger) FeedDropped(key string, err error) {
	l.Warn("feed_dropped", map[string]interface{}{
		"key":   key,
		"error": err.Error(),
	})
}

// FeedError logs a subscription failure.
func (l *Logger) FeedError(err error) {
	l.Error("feed_error", map[string]interface{}{
		"error": err.Error(),
	})
}

// SensorTransition logs a sensor crossing between online and offline.
func (l *Logger) SensorTransition(sensor string, online bool, silence time.Duration) {
	fields := map[string]interface{}{
		"sensor": sensor,
		"online": online,
	}
	if silence > 0 {
		fields["silence"] = silence.Round(time.Millisecond).String()
	}
	if online {
		l.Info("sensor_online", fields)
	} else {
		l.Warn("sensor_offline", fields)
	}
}

// CommandResult logs the outcome of an outbound control command.
func (l *Logger) CommandResult(command string, duration time.Duration, err error) {
	fields := map[string]interface{}{
		"command":  command,
		"duration": duration.String(),
	}
	if err != nil {
		fields["error"] = err.Error()
		l.Error("command_failed", fields)
	} else {
		l.Info("command_sent", fields)
	}
}

// SafetyAlert logs a gas or climate reading entering a warning or danger band.
func (l *Logger) SafetyAlert(metric, level string, value float64) {
	l.Warn("safety_alert", map[string]interface{}{
		"metric": metric,
		"level":  level,
		"value":  value,
	})
}
