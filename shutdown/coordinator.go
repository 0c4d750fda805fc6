package shutdown

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/vinayprograms/solanirad/logging"
)

// Common errors.
var (
	// ErrTimeout indicates shutdown did not complete within the timeout.
	ErrTimeout = errors.New("shutdown timeout exceeded")

	// ErrHandlerFailed indicates one or more handlers failed during shutdown.
	ErrHandlerFailed = errors.New("one or more handlers failed")
)

// Phase orders handlers. Lower phases stop first.
type Phase int

const (
	// PhaseIngress stops everything that accepts outside requests.
	PhaseIngress Phase = 10
	// PhaseEngine stops the components that produce state.
	PhaseEngine Phase = 20
	// PhaseStorage releases stores, connections and exporters.
	PhaseStorage Phase = 30
)

// Handler is implemented by components that need graceful shutdown.
type Handler interface {
	// OnShutdown releases the component. ctx expires at the deadline.
	OnShutdown(ctx context.Context) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context) error

// OnShutdown implements Handler.
func (f HandlerFunc) OnShutdown(ctx context.Context) error {
	return f(ctx)
}

// HandlerResult is the outcome of one handler.
type HandlerResult struct {
	Name     string
	Phase    Phase
	Duration time.Duration
	Err      error
}

// Result is the outcome of a shutdown.
type Result struct {
	TotalDuration time.Duration
	Results       []HandlerResult
	Err           error
}

// FailedHandlers returns the names of handlers that failed.
func (r *Result) FailedHandlers() []string {
	var failed []string
	for _, hr := range r.Results {
		if hr.Err != nil {
			failed = append(failed, hr.Name)
		}
	}
	return failed
}

// Config configures the coordinator.
type Config struct {
	// Timeout bounds a signal-triggered shutdown.
	// Default: 15 seconds
	Timeout time.Duration

	// ContinueOnError runs later phases after a handler fails.
	// Default: true
	ContinueOnError bool
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:         15 * time.Second,
		ContinueOnError: true,
	}
}

type registration struct {
	name    string
	phase   Phase
	handler Handler
}

// Coordinator runs registered handlers phase by phase.
type Coordinator struct {
	config Config
	logger *logging.Logger

	mu       sync.Mutex
	handlers []registration
	once     sync.Once
	done     chan struct{}
	result   *Result
	signals  chan os.Signal
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(c *Coordinator) {
		c.logger = l
	}
}

// NewCoordinator creates a coordinator.
func NewCoordinator(config Config, opts ...Option) *Coordinator {
	if config.Timeout <= 0 {
		config.Timeout = DefaultConfig().Timeout
	}
	c := &Coordinator{
		config:  config,
		logger:  logging.New().WithComponent("shutdown"),
		done:    make(chan struct{}),
		signals: make(chan os.Signal, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Register adds a handler to phase.
func (c *Coordinator) Register(name string, phase Phase, handler Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = append(c.handlers, registration{name: name, phase: phase, handler: handler})
}

// RegisterFunc adds a function handler to phase.
func (c *Coordinator) RegisterFunc(name string, phase Phase, fn func(ctx context.Context) error) {
	c.Register(name, phase, HandlerFunc(fn))
}

// HandleSignals starts shutdown on SIGTERM or SIGINT. cancel, if not nil,
// is called first so long-running loops observe the signal through their
// context.
func (c *Coordinator) HandleSignals(cancel context.CancelFunc) {
	signal.Notify(c.signals, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		select {
		case sig := <-c.signals:
			c.logger.Info("signal_received", map[string]interface{}{"signal": sig.String()})
			if cancel != nil {
				cancel()
			}
			c.ShutdownWithTimeout(c.config.Timeout)
		case <-c.done:
		}
		signal.Stop(c.signals)
	}()
}

// Trigger behaves as if SIGTERM arrived. HandleSignals must be active.
func (c *Coordinator) Trigger() {
	select {
	case c.signals <- syscall.SIGTERM:
	default:
	}
}

// Shutdown runs every phase. Only the first call does any work; later
// calls wait for it and return its error.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.once.Do(func() {
		c.result = c.run(ctx)
		close(c.done)
	})
	<-c.done
	return c.result.Err
}

// ShutdownWithTimeout runs Shutdown with a deadline. Zero uses the
// configured timeout.
func (c *Coordinator) ShutdownWithTimeout(timeout time.Duration) error {
	if timeout <= 0 {
		timeout = c.config.Timeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return c.Shutdown(ctx)
}

// Done is closed when shutdown is complete.
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

// Err returns the shutdown error, or nil before Done is closed.
func (c *Coordinator) Err() error {
	if r := c.Result(); r != nil {
		return r.Err
	}
	return nil
}

// Result returns the detailed outcome, or nil before Done is closed.
func (c *Coordinator) Result() *Result {
	select {
	case <-c.done:
		return c.result
	default:
		return nil
	}
}

func (c *Coordinator) run(ctx context.Context) *Result {
	start := time.Now()

	c.mu.Lock()
	handlers := make([]registration, len(c.handlers))
	copy(handlers, c.handlers)
	c.mu.Unlock()

	sort.SliceStable(handlers, func(i, j int) bool {
		return handlers[i].phase < handlers[j].phase
	})

	c.logger.Info("shutdown_started", map[string]interface{}{"handlers": len(handlers)})

	result := &Result{Results: make([]HandlerResult, 0, len(handlers))}
	for _, group := range groupByPhase(handlers) {
		if ctx.Err() != nil {
			result.Err = ErrTimeout
			break
		}

		results := c.runPhase(ctx, group)
		result.Results = append(result.Results, results...)

		failed := false
		for _, hr := range results {
			if hr.Err != nil {
				failed = true
			}
		}
		if failed {
			result.Err = ErrHandlerFailed
			if !c.config.ContinueOnError {
				break
			}
		}
	}
	result.TotalDuration = time.Since(start)

	fields := map[string]interface{}{"duration": result.TotalDuration.String()}
	if result.Err != nil {
		fields["error"] = result.Err.Error()
		c.logger.Error("shutdown_finished", fields)
	} else {
		c.logger.Info("shutdown_finished", fields)
	}
	return result
}

// runPhase runs the handlers of one phase concurrently.
func (c *Coordinator) runPhase(ctx context.Context, group []registration) []HandlerResult {
	results := make([]HandlerResult, len(group))
	var wg sync.WaitGroup

	for i, reg := range group {
		wg.Add(1)
		go func(idx int, r registration) {
			defer wg.Done()

			started := time.Now()
			err := r.handler.OnShutdown(ctx)
			results[idx] = HandlerResult{
				Name:     r.name,
				Phase:    r.phase,
				Duration: time.Since(started),
				Err:      err,
			}

			fields := map[string]interface{}{
				"handler":  r.name,
				"phase":    int(r.phase),
				"duration": results[idx].Duration.String(),
			}
			if err != nil {
				fields["error"] = err.Error()
				c.logger.Warn("shutdown_handler_failed", fields)
			} else {
				c.logger.Debug("shutdown_handler_done", fields)
			}
		}(i, reg)
	}

	wg.Wait()
	return results
}

// groupByPhase splits handlers, already sorted by phase, into runs of
// equal phase.
func groupByPhase(handlers []registration) [][]registration {
	var groups [][]registration
	for i := 0; i < len(handlers); {
		j := i
		for j < len(handlers) && handlers[j].phase == handlers[i].phase {
			j++
		}
		groups = append(groups, handlers[i:j])
		i = j
	}
	return groups
}
