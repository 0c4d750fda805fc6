// Package telemetry provides tracing and the operational event journal.
//
// Events are the few things an operator wants a record of after the fact:
// sensors dropping offline or coming back, readings entering a warning or
// critical band, and control commands. They can be appended to a JSONL
// file or posted in batches to a webhook.
package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"
)

// Exporter is the interface for event exporters.
type Exporter interface {
	// LogEvent records an event with the given name and data.
	LogEvent(name string, data map[string]interface{})
	// Flush sends any buffered data.
	Flush() error
	// Close flushes and releases the exporter.
	Close() error
}

// Event represents one journal entry.
type Event struct {
	Name      string                 `json:"name"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// NewExporter creates a new exporter based on protocol.
func NewExporter(protocol, endpoint string) (Exporter, error) {
	switch protocol {
	case "http":
		if endpoint == "" {
			return nil, fmt.Errorf("http event exporter needs an endpoint")
		}
		return NewHTTPExporter(endpoint, HTTPExporterConfig{}), nil
	case "file":
		exp, err := NewFileExporter(endpoint)
		if err != nil {
			return nil, err
		}
		return exp, nil
	case "noop", "":
		return NewNoopExporter(), nil
	default:
		return nil, fmt.Errorf("unknown event protocol: %s", protocol)
	}
}

// --- HTTP Exporter ---

// HTTPExporterConfig tunes batching for the webhook exporter.
type HTTPExporterConfig struct {
	// BatchSize triggers a flush when reached. Default: 20
	BatchSize int
	// FlushInterval flushes whatever is buffered. Default: 10s
	FlushInterval time.Duration
	// Timeout bounds each POST. Default: 10s
	Timeout time.Duration
}

// HTTPExporter posts batches of events as a JSON array to a webhook.
type HTTPExporter struct {
	endpoint string
	client   *http.Client
	cfg      HTTPExporterConfig

	mu     sync.Mutex
	buffer []Event

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// NewHTTPExporter creates a webhook exporter and starts its flush loop.
func NewHTTPExporter(endpoint string, cfg HTTPExporterConfig) *HTTPExporter {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 20
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 10 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	e := &HTTPExporter{
		endpoint: endpoint,
		client:   &http.Client{Timeout: cfg.Timeout},
		cfg:      cfg,
		buffer:   make([]Event, 0, cfg.BatchSize),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go e.loop()
	return e
}

func (e *HTTPExporter) loop() {
	defer close(e.done)
	ticker := time.NewTicker(e.cfg.FlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-e.stop:
			return
		case <-ticker.C:
			e.Flush()
		}
	}
}

// LogEvent buffers an event. A full batch is sent in the background.
func (e *HTTPExporter) LogEvent(name string, data map[string]interface{}) {
	e.mu.Lock()
	e.buffer = append(e.buffer, Event{
		Name:      name,
		Timestamp: time.Now(),
		Data:      data,
	})
	full := len(e.buffer) >= e.cfg.BatchSize
	e.mu.Unlock()

	if full {
		go e.Flush()
	}
}

// Flush posts the buffered events. On failure they are kept for the next
// attempt.
func (e *HTTPExporter) Flush() error {
	e.mu.Lock()
	if len(e.buffer) == 0 {
		e.mu.Unlock()
		return nil
	}
	batch := e.buffer
	e.buffer = make([]Event, 0, e.cfg.BatchSize)
	e.mu.Unlock()

	if err := e.post(batch); err != nil {
		e.mu.Lock()
		e.buffer = append(batch, e.buffer...)
		e.mu.Unlock()
		return err
	}
	return nil
}

func (e *HTTPExporter) post(batch []Event) error {
	data, err := json.Marshal(batch)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("event endpoint returned %d", resp.StatusCode)
	}
	return nil
}

// Close stops the flush loop and sends what is left.
func (e *HTTPExporter) Close() error {
	e.once.Do(func() {
		close(e.stop)
		<-e.done
	})
	return e.Flush()
}

// --- File Exporter ---

// FileExporter appends events to a JSONL file.
type FileExporter struct {
	file *os.File
	mu   sync.Mutex
}

// NewFileExporter creates a new file exporter.
func NewFileExporter(path string) (*FileExporter, error) {
	if path == "" {
		return nil, fmt.Errorf("file event exporter needs a path")
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open event file: %w", err)
	}
	return &FileExporter{file: file}, nil
}

func (e *FileExporter) LogEvent(name string, data map[string]interface{}) {
	line, err := json.Marshal(Event{
		Name:      name,
		Timestamp: time.Now(),
		Data:      data,
	})
	if err != nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.file.Write(append(line, '\n'))
}

func (e *FileExporter) Flush() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.file.Sync()
}

func (e *FileExporter) Close() error {
	flushErr := e.Flush()
	if err := e.file.Close(); err != nil {
		return err
	}
	return flushErr
}

// --- Noop Exporter ---

// NoopExporter discards all events.
type NoopExporter struct{}

// NewNoopExporter creates a new noop exporter.
func NewNoopExporter() *NoopExporter {
	return &NoopExporter{}
}

func (e *NoopExporter) LogEvent(name string, data map[string]interface{}) {}
func (e *NoopExporter) Flush() error                                      { return nil }
func (e *NoopExporter) Close() error                                      { return nil }
