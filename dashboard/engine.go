package dashboard

import (
	"context"
	"math"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vinayprograms/solanirad/errors"
	"github.com/vinayprograms/solanirad/feed"
	"github.com/vinayprograms/solanirad/heartbeat"
	"github.com/vinayprograms/solanirad/logging"
	"github.com/vinayprograms/solanirad/metrics"
	"github.com/vinayprograms/solanirad/ratelimit"
	"github.com/vinayprograms/solanirad/safety"
	"github.com/vinayprograms/solanirad/sensor"
	"github.com/vinayprograms/solanirad/state"
	"github.com/vinayprograms/solanirad/telemetry"
)

// Config configures the engine.
type Config struct {
	// Heartbeat holds the liveness timeout and refresh interval.
	Heartbeat heartbeat.Config

	// HistorySize bounds the reading history. Default: 20
	HistorySize int

	// Thresholds is the safety table. Default: safety.DefaultThresholds()
	Thresholds []safety.Threshold

	// FeedKey is the node the subscriber watches. Used for logs and spans.
	// Default: "iot_system"
	FeedKey string

	// ControlKey receives the reboot flag.
	// Default: "iot_system.control.reboot"
	ControlKey string

	// CommandTimeout bounds one command write. Default: 5s
	CommandTimeout time.Duration

	// ResubscribeDelay is the wait before resubscribing after the feed
	// closes. Default: 5s
	ResubscribeDelay time.Duration

	// RebootLimit caps reboot commands per RebootWindow. Zero disables
	// the cap.
	RebootLimit  int
	RebootWindow time.Duration
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Heartbeat:        heartbeat.DefaultConfig(),
		HistorySize:      DefaultHistorySize,
		Thresholds:       safety.DefaultThresholds(),
		FeedKey:          "iot_system",
		ControlKey:       "iot_system.control.reboot",
		CommandTimeout:   5 * time.Second,
		ResubscribeDelay: 5 * time.Second,
	}
}

func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.Heartbeat.Timeout <= 0 {
		c.Heartbeat.Timeout = def.Heartbeat.Timeout
	}
	if c.Heartbeat.RefreshInterval <= 0 {
		c.Heartbeat.RefreshInterval = def.Heartbeat.RefreshInterval
	}
	if c.HistorySize <= 0 {
		c.HistorySize = def.HistorySize
	}
	if len(c.Thresholds) == 0 {
		c.Thresholds = def.Thresholds
	}
	if c.FeedKey == "" {
		c.FeedKey = def.FeedKey
	}
	if c.ControlKey == "" {
		c.ControlKey = def.ControlKey
	}
	if c.CommandTimeout <= 0 {
		c.CommandTimeout = def.CommandTimeout
	}
	if c.ResubscribeDelay <= 0 {
		c.ResubscribeDelay = def.ResubscribeDelay
	}
	if c.RebootLimit > 0 && c.RebootWindow <= 0 {
		c.RebootWindow = time.Minute
	}
}

// Publisher receives every rendered View and Notification.
type Publisher interface {
	Publish(event string, v any)
}

// Published event names.
const (
	EventView         = "view"
	EventNotification = "notification"
)

// Engine is the coordinating actor. All Model mutation happens on the
// goroutine running Run.
type Engine struct {
	cfg   Config
	eval  heartbeat.Evaluator
	sub   feed.Subscriber
	store state.Writer

	logger    *logging.Logger
	metrics   *metrics.Metrics
	journal   telemetry.Exporter
	tracer    *telemetry.Tracer
	publisher Publisher
	limiter   *ratelimit.Limiter
	now       func() time.Time

	monitor *heartbeat.Monitor
	alerts  map[safety.Field]safety.Level
	events  chan Event
	running atomic.Bool

	mu    sync.RWMutex
	view  View
	beats heartbeat.Map
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithJournal sets the event journal for transitions, alerts and commands.
func WithJournal(j telemetry.Exporter) Option {
	return func(e *Engine) {
		e.journal = j
	}
}

// WithTracer sets the tracer. Default: telemetry.GetTracer()
func WithTracer(t *telemetry.Tracer) Option {
	return func(e *Engine) {
		e.tracer = t
	}
}

// WithPublisher sets the live push target.
func WithPublisher(p Publisher) Option {
	return func(e *Engine) {
		e.publisher = p
	}
}

// WithLimiter sets the command throttle. The engine installs the reboot
// limit from Config on it.
func WithLimiter(l *ratelimit.Limiter) Option {
	return func(e *Engine) {
		e.limiter = l
	}
}

// WithClock overrides the wall clock. Tests use this.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// New creates an engine reading from sub and writing commands to store.
func New(cfg Config, sub feed.Subscriber, store state.Writer, opts ...Option) *Engine {
	cfg.applyDefaults()
	e := &Engine{
		cfg:     cfg,
		eval:    heartbeat.NewEvaluator(cfg.Heartbeat),
		sub:     sub,
		store:   store,
		logger:  logging.New().WithComponent("dashboard"),
		journal: telemetry.NewNoopExporter(),
		now:     time.Now,
		monitor: heartbeat.NewMonitor(),
		alerts:  make(map[safety.Field]safety.Level),
		events:  make(chan Event, 16),
		beats:   heartbeat.New(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.tracer == nil {
		e.tracer = telemetry.GetTracer()
	}
	e.monitor.OnOnline(e.transition)
	e.monitor.OnOffline(e.transition)
	if cfg.RebootLimit > 0 {
		if e.limiter == nil {
			e.limiter = ratelimit.New(ratelimit.WithClock(e.now))
		}
		e.limiter.SetLimit(CommandReboot, cfg.RebootLimit, cfg.RebootWindow)
	}

	model := NewModel(cfg.HistorySize)
	model.Now = e.now()
	e.view = Render(model, e.eval, cfg.Thresholds)
	return e
}

// Config returns the effective configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// View returns the most recent rendering.
func (e *Engine) View() View {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.view
}

// RebootCapacity reports the remaining reboot budget, or nil when reboots
// are not limited.
func (e *Engine) RebootCapacity() *ratelimit.Capacity {
	return e.limiter.Capacity(CommandReboot)
}

// Running reports whether Run is active.
func (e *Engine) Running() bool {
	return e.running.Load()
}

// Run processes events until ctx is done. The subscription and ticker are
// released on return.
func (e *Engine) Run(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return errors.Internal("engine already running", errors.WithComponent("dashboard"))
	}
	defer e.running.Store(false)

	model := NewModel(e.cfg.HistorySize)
	model.Now = e.now()

	ticker := time.NewTicker(e.cfg.Heartbeat.RefreshInterval)
	defer ticker.Stop()

	sub := &subscription{sub: e.sub}
	defer sub.close()

	var retry <-chan time.Time
	updates, err := sub.open(ctx)
	if err != nil {
		e.apply(ctx, model, FeedError{Err: err, At: e.now()})
		retry = time.After(e.cfg.ResubscribeDelay)
	}

	e.logger.Info("engine_started", map[string]interface{}{
		"feed_key": e.cfg.FeedKey,
		"timeout":  e.eval.Timeout().String(),
	})
	e.publish(model)

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("engine_stopped", nil)
			return nil

		case u, ok := <-updates:
			if !ok {
				updates = nil
				retry = time.After(e.cfg.ResubscribeDelay)
				continue
			}
			e.apply(ctx, model, EventFromUpdate(u))

		case <-ticker.C:
			e.apply(ctx, model, Tick{Now: e.now()})

		case ev := <-e.events:
			e.apply(ctx, model, ev)

		case <-retry:
			retry = nil
			updates, err = sub.open(ctx)
			if err != nil {
				e.apply(ctx, model, FeedError{Err: err, At: e.now()})
				retry = time.After(e.cfg.ResubscribeDelay)
				continue
			}
			e.logger.Info("feed_resubscribed", map[string]interface{}{"key": e.cfg.FeedKey})
		}
	}
}

// subscription owns the context of the live feed subscription.
type subscription struct {
	sub    feed.Subscriber
	cancel context.CancelFunc
}

// open releases any previous subscription and starts a new one.
func (s *subscription) open(ctx context.Context) (<-chan feed.Update, error) {
	s.close()
	subCtx, cancel := context.WithCancel(ctx)
	updates, err := s.sub.Subscribe(subCtx)
	if err != nil {
		cancel()
		return nil, err
	}
	s.cancel = cancel
	return updates, nil
}

func (s *subscription) close() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// apply runs one event through the model and publishes the result.
func (e *Engine) apply(ctx context.Context, model *Model, ev Event) {
	msg, isMsg := ev.(FeedMessage)
	if !isMsg {
		outcome := model.Apply(ev)
		if fe, ok := ev.(FeedError); ok {
			e.feedError(fe.Err, outcome)
		}
		e.publish(model)
		return
	}

	_, span := e.tracer.StartFeedSpan(ctx)
	outcome := model.Apply(msg)
	e.tracer.EndFeedSpan(span, telemetry.FeedSpanOptions{
		Key:      e.cfg.FeedKey,
		Revision: msg.Revision,
		Sensors:  len(msg.Payload.Present.IDs()),
		Outcome:  outcome.String(),
	}, nil)

	e.metrics.FeedMessage()
	if outcome == OutcomeEmpty {
		e.metrics.FeedDropped("empty")
		e.logger.Info("feed_empty", map[string]interface{}{"key": e.cfg.FeedKey})
		return
	}
	e.logger.FeedMessage(e.cfg.FeedKey, len(msg.Payload.Present.IDs()))
	e.recordReading(model.Reading)
	e.publish(model)
}

func (e *Engine) feedError(err error, outcome Outcome) {
	if outcome == OutcomeInvalid {
		e.metrics.FeedDropped("invalid")
		e.logger.FeedDropped(e.cfg.FeedKey, err)
		return
	}
	e.metrics.FeedError()
	e.logger.FeedError(err)
}

func (e *Engine) recordReading(r Reading) {
	for _, name := range SeriesNames() {
		v, _ := r.Series(name)
		e.metrics.SetReading(name, v)
	}
}

// publish renders the model, stores the View and reports what changed.
func (e *Engine) publish(model *Model) {
	view := Render(model, e.eval, e.cfg.Thresholds)

	e.mu.Lock()
	e.view = view
	e.beats = model.Beats
	e.mu.Unlock()

	e.monitor.Check(view.Liveness, model.Beats, model.Now)
	e.metrics.SetConnected(view.Connected)
	for _, id := range sensor.All() {
		e.metrics.SetSensorOnline(id.String(), view.Liveness.Online(id))
	}
	if model.HasReading {
		e.checkSafety(view.Safety)
	}

	if e.publisher != nil {
		e.publisher.Publish(EventView, view)
	}
}

func (e *Engine) transition(tr heartbeat.Transition) {
	name := tr.Sensor.String()
	e.logger.SensorTransition(name, tr.Online, tr.Silence)
	e.metrics.Transition(name, tr.Online)

	event := "sensor_online"
	if !tr.Online {
		event = "sensor_offline"
	}
	e.journal.LogEvent(event, map[string]interface{}{
		"sensor":     name,
		"at":         tr.At,
		"silence_ms": tr.Silence.Milliseconds(),
	})
}

// checkSafety logs and journals fields whose level rose above Safe.
func (e *Engine) checkSafety(statuses []safety.Status) {
	for _, s := range statuses {
		e.metrics.SetSafetyLevel(string(s.Field), int(s.Level))
		prev := e.alerts[s.Field]
		e.alerts[s.Field] = s.Level
		if s.Level <= prev {
			continue
		}
		e.logger.SafetyAlert(string(s.Field), s.Level.String(), s.Value)
		e.journal.LogEvent("safety_alert", map[string]interface{}{
			"field": string(s.Field),
			"level": s.Level.String(),
			"value": s.Value,
		})
	}
}

// RetryAfterKey is the error metadata key carrying whole seconds until a
// throttled command may be retried.
const RetryAfterKey = "retry_after"

// Reboot asks the device to restart by writing true to the control key.
// It is refused with CONTROLLER_OFFLINE while the controller heartbeat is
// stale and with RATE_LIMITED once the reboot limit is spent. A failed write returns COMMAND_FAILED. Either way the outcome is
// not retried.
func (e *Engine) Reboot(ctx context.Context) (Notification, error) {
	e.mu.RLock()
	beats := e.beats
	e.mu.RUnlock()

	if !e.eval.ControllerOnline(beats, e.now()) {
		e.metrics.CommandRefused(CommandReboot)
		e.logger.Warn("command_refused", map[string]interface{}{
			"command": CommandReboot,
			"reason":  "controller offline",
		})
		return Notification{}, errors.ControllerOffline(
			errors.WithComponent("dashboard"),
			errors.WithKey(e.cfg.ControlKey),
		)
	}

	if !e.limiter.Allow(CommandReboot) {
		wait := e.limiter.RetryAfter(CommandReboot)
		e.metrics.CommandRefused(CommandReboot)
		e.logger.Warn("command_refused", map[string]interface{}{
			"command":     CommandReboot,
			"reason":      "rate limited",
			"retry_after": wait.String(),
		})
		return Notification{}, errors.New(errors.ErrCodeRateLimited, "reboot rate limit reached",
			errors.WithComponent("dashboard"),
			errors.WithMetadata(RetryAfterKey, strconv.Itoa(int(math.Ceil(wait.Seconds())))),
		)
	}

	ctx, span := e.tracer.StartCommandSpan(ctx, CommandReboot, e.cfg.ControlKey)
	cctx, cancel := context.WithTimeout(ctx, e.cfg.CommandTimeout)
	defer cancel()

	start := time.Now()
	err := e.store.Put(cctx, e.cfg.ControlKey, []byte("true"), 0)
	elapsed := time.Since(start)

	e.tracer.EndCommandSpan(span, err)
	e.logger.CommandResult(CommandReboot, elapsed, err)
	e.metrics.Command(CommandReboot, elapsed, err)
	e.journal.LogEvent("command", map[string]interface{}{
		"command": CommandReboot,
		"ok":      err == nil,
	})

	n := newNotification(CommandReboot, NotifySuccess, rebootSentMessage, e.now())
	if err != nil {
		n = newNotification(CommandReboot, NotifyError, rebootFailedMessage, e.now())
	}
	e.notify(n)

	if err != nil {
		return n, errors.WrapWithCode(err, errors.ErrCodeCommandFailed, "sending reboot signal",
			errors.WithComponent("dashboard"),
			errors.WithKey(e.cfg.ControlKey),
		)
	}
	return n, nil
}

// notify broadcasts n and hands it to the loop for the next View.
func (e *Engine) notify(n Notification) {
	if e.publisher != nil {
		e.publisher.Publish(EventNotification, n)
	}
	select {
	case e.events <- notified{Notification: n}:
	default:
		e.logger.Warn("notification_dropped", map[string]interface{}{"id": n.ID})
	}
}
