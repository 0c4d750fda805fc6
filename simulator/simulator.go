// Package simulator is a stand-in device. It writes drifting telemetry to
// the feed key on an interval and honours reboot requests on the control
// key by going quiet for a while and clearing the flag.
package simulator

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vinayprograms/solanirad/logging"
	"github.com/vinayprograms/solanirad/state"
)

// Common errors.
var (
	ErrAlreadyStarted = errors.New("simulator already started")
	ErrNotStarted     = errors.New("simulator not started")
)

// Config configures the simulator.
type Config struct {
	// Interval between writes. Default: 2s
	Interval time.Duration

	// FeedKey receives the telemetry. Default: "iot_system"
	FeedKey string

	// ControlKey is watched for reboot requests.
	// Default: "iot_system.control.reboot"
	ControlKey string

	// RebootPause is how long the device stays silent after a reboot.
	// Default: 5s
	RebootPause time.Duration

	// Seed fixes the random sequence. Zero seeds from the clock.
	Seed int64
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval:    2 * time.Second,
		FeedKey:     "iot_system",
		ControlKey:  "iot_system.control.reboot",
		RebootPause: 5 * time.Second,
	}
}

// Reading is the simulated sensor state.
type Reading struct {
	NH3         float64
	CO2         float64
	VOC         float64
	Temperature float64
	Humidity    float64
	Weight      float64
	Battery     float64
}

// Baseline is the state a freshly booted device reports.
func Baseline() Reading {
	return Reading{
		NH3:         25,
		CO2:         400,
		VOC:         50,
		Temperature: 24,
		Humidity:    45,
		Weight:      120,
		Battery:     100,
	}
}

// Simulator writes drifting readings into a state store.
type Simulator struct {
	store  state.StateStore
	config Config
	logger *logging.Logger
	now    func() time.Time

	mu          sync.Mutex
	rng         *rand.Rand
	reading     Reading
	pausedUntil time.Time
	writes      int

	running atomic.Bool
	cancel  context.CancelFunc
	doneCh  chan struct{}
}

// Option configures a Simulator.
type Option func(*Simulator)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Simulator) {
		s.logger = l
	}
}

// WithClock overrides the wall clock. Tests use this.
func WithClock(now func() time.Time) Option {
	return func(s *Simulator) {
		s.now = now
	}
}

// New creates a simulator.
func New(store state.StateStore, cfg Config, opts ...Option) *Simulator {
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.FeedKey == "" {
		cfg.FeedKey = def.FeedKey
	}
	if cfg.ControlKey == "" {
		cfg.ControlKey = def.ControlKey
	}
	if cfg.RebootPause <= 0 {
		cfg.RebootPause = def.RebootPause
	}
	seed := uint64(cfg.Seed)
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	s := &Simulator{
		store:   store,
		config:  cfg,
		logger:  logging.New().WithComponent("simulator"),
		now:     time.Now,
		rng:     rand.New(rand.NewPCG(seed, seed>>1|1)),
		reading: Baseline(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins writing at the configured interval.
func (s *Simulator) Start(ctx context.Context) error {
	if s.running.Swap(true) {
		return ErrAlreadyStarted
	}

	ctx, cancel := context.WithCancel(ctx)
	control, err := s.store.Watch(ctx, s.config.ControlKey)
	if err != nil {
		cancel()
		s.running.Store(false)
		return err
	}

	s.cancel = cancel
	s.doneCh = make(chan struct{})
	go s.run(ctx, control)

	s.logger.Info("simulator_started", map[string]interface{}{
		"key":      s.config.FeedKey,
		"interval": s.config.Interval.String(),
	})
	return nil
}

// Stop stops writing and waits for the loop to exit.
func (s *Simulator) Stop() error {
	if !s.running.Swap(false) {
		return ErrNotStarted
	}
	s.cancel()
	<-s.doneCh
	s.logger.Info("simulator_stopped", nil)
	return nil
}

// run is the main write loop.
func (s *Simulator) run(ctx context.Context, control <-chan *state.KeyValue) {
	defer close(s.doneCh)

	// Write an initial reading immediately
	s.write(ctx)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case kv, ok := <-control:
			if !ok {
				control = nil
				continue
			}
			s.handleControl(ctx, kv)
		case <-ticker.C:
			s.write(ctx)
		}
	}
}

func (s *Simulator) write(ctx context.Context) {
	if err := s.Step(ctx); err != nil {
		s.logger.Warn("simulator_write_failed", map[string]interface{}{"error": err.Error()})
	}
}

// Step drifts the reading and writes one payload, unless the device is
// rebooting.
func (s *Simulator) Step(ctx context.Context) error {
	now := s.now()

	s.mu.Lock()
	if now.Before(s.pausedUntil) {
		s.mu.Unlock()
		return nil
	}
	s.reading = s.drift(s.reading)
	data, err := json.Marshal(payload(s.reading, now))
	s.writes++
	s.mu.Unlock()
	if err != nil {
		return err
	}

	return s.store.Put(ctx, s.config.FeedKey, data, 0)
}

// Writes returns how many payloads have been produced.
func (s *Simulator) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// Reading returns the current simulated state.
func (s *Simulator) Reading() Reading {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reading
}

// handleControl reacts to a reboot request: the device goes quiet, comes
// back at baseline and clears the flag.
func (s *Simulator) handleControl(ctx context.Context, kv *state.KeyValue) {
	if kv.Operation != state.OpPut {
		return
	}
	var requested bool
	if err := json.Unmarshal(kv.Value, &requested); err != nil || !requested {
		return
	}

	s.mu.Lock()
	s.pausedUntil = s.now().Add(s.config.RebootPause)
	s.reading = Baseline()
	s.mu.Unlock()

	s.logger.Info("reboot_requested", map[string]interface{}{
		"pause": s.config.RebootPause.String(),
	})
	if err := s.store.Put(ctx, s.config.ControlKey, []byte("false"), 0); err != nil {
		s.logger.Warn("reboot_reset_failed", map[string]interface{}{"error": err.Error()})
	}
}

// drift moves every field by a small random step within its clamps.
func (s *Simulator) drift(r Reading) Reading {
	r.NH3 = math.Max(0, r.NH3+s.between(-2, 2.5))
	r.CO2 = math.Max(300, r.CO2+s.between(-10, 15))
	r.VOC = math.Max(0, r.VOC+s.between(-5, 5))
	r.Temperature = clamp(r.Temperature+s.between(-0.2, 0.2), 15, 40)
	r.Humidity = clamp(r.Humidity+s.between(-1, 1), 20, 90)
	r.Weight = 120 + s.between(-0.1, 0.1)
	r.Battery = clamp(r.Battery-s.between(0, 0.05), 0, 100)
	return r
}

func (s *Simulator) between(lo, hi float64) float64 {
	return lo + s.rng.Float64()*(hi-lo)
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}

type environment struct {
	CO2         float64 `json:"co2"`
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
}

type node struct {
	Status     bool        `json:"esp32_status"`
	LastUpdate int64       `json:"esp32_last_update"`
	MQ137      float64     `json:"mq137"`
	MQ135      float64     `json:"mq135"`
	SCD41      environment `json:"scd41"`
	LoadCell   float64     `json:"loadcell"`
	Servo      bool        `json:"servo"`
	UVC        bool        `json:"uvc"`
	Battery    float64     `json:"battery"`
}

// payload renders r in the node format the device firmware writes.
func payload(r Reading, at time.Time) node {
	return node{
		Status:     true,
		LastUpdate: at.Unix(),
		MQ137:      round(r.NH3, 2),
		MQ135:      round(r.VOC, 2),
		SCD41: environment{
			CO2:         round(r.CO2, 1),
			Temperature: round(r.Temperature, 2),
			Humidity:    round(r.Humidity, 2),
		},
		LoadCell: round(r.Weight, 2),
		Servo:    true,
		Battery:  round(r.Battery, 1),
	}
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
