// Package config loads service configuration.
//
// Values are layered: built-in defaults, then an optional TOML file, then
// command-line flags that were explicitly set, then SOLANIRAD_* environment
// variables. The result is validated once, after all layers apply.
package config

import (
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/vinayprograms/solanirad/dashboard"
	"github.com/vinayprograms/solanirad/errors"
	"github.com/vinayprograms/solanirad/heartbeat"
	"github.com/vinayprograms/solanirad/logging"
	"github.com/vinayprograms/solanirad/safety"
	"github.com/vinayprograms/solanirad/state"
	"github.com/vinayprograms/solanirad/telemetry"
)

// Duration is a time.Duration that decodes from strings such as "15s".
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the complete service configuration.
type Config struct {
	Feed       FeedConfig         `toml:"feed"`
	Store      StoreConfig        `toml:"store"`
	HTTP       HTTPConfig         `toml:"http"`
	Log        LogConfig          `toml:"log"`
	Telemetry  TelemetryConfig    `toml:"telemetry"`
	Events     EventsConfig       `toml:"events"`
	Simulator  SimulatorConfig    `toml:"simulator"`
	Thresholds []safety.Threshold `toml:"thresholds"`
}

// FeedConfig covers the node, the control key and liveness timing.
type FeedConfig struct {
	Key              string   `toml:"key"`
	ControlKey       string   `toml:"control_key"`
	Timeout          Duration `toml:"timeout"`
	Refresh          Duration `toml:"refresh"`
	HistorySize      int      `toml:"history_size"`
	CommandTimeout   Duration `toml:"command_timeout"`
	ResubscribeDelay Duration `toml:"resubscribe_delay"`
	RebootLimit      int      `toml:"reboot_limit"`
	RebootWindow     Duration `toml:"reboot_window"`
}

// Store backends.
const (
	BackendMemory = "memory"
	BackendNATS   = "nats"
)

// StoreConfig selects the state store.
type StoreConfig struct {
	Backend   string   `toml:"backend"`
	NATSURL   string   `toml:"nats_url"`
	Bucket    string   `toml:"bucket"`
	OpTimeout Duration `toml:"op_timeout"`
}

// HTTPConfig configures the API server.
type HTTPConfig struct {
	Addr              string   `toml:"addr"`
	CORSOrigins       []string `toml:"cors_origins"`
	ReadHeaderTimeout Duration `toml:"read_header_timeout"`
	ShutdownTimeout   Duration `toml:"shutdown_timeout"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `toml:"level"`
}

// TelemetryConfig configures OTLP tracing. An empty endpoint with no
// OTEL_EXPORTER_OTLP_ENDPOINT disables tracing.
type TelemetryConfig struct {
	Endpoint    string  `toml:"endpoint"`
	Protocol    string  `toml:"protocol"`
	Insecure    bool    `toml:"insecure"`
	SampleRatio float64 `toml:"sample_ratio"`
	ServiceName string  `toml:"service_name"`
}

// EventsConfig configures the event journal.
type EventsConfig struct {
	Protocol string `toml:"protocol"` // http, file, noop
	Endpoint string `toml:"endpoint"` // URL or file path
}

// SimulatorConfig configures the built-in demo device.
type SimulatorConfig struct {
	Enabled  bool     `toml:"enabled"`
	Interval Duration `toml:"interval"`
	Seed     int64    `toml:"seed"`
}

// Default returns the built-in configuration.
func Default() *Config {
	eng := dashboard.DefaultConfig()
	return &Config{
		Feed: FeedConfig{
			Key:              eng.FeedKey,
			ControlKey:       eng.ControlKey,
			Timeout:          Duration(eng.Heartbeat.Timeout),
			Refresh:          Duration(eng.Heartbeat.RefreshInterval),
			HistorySize:      eng.HistorySize,
			CommandTimeout:   Duration(eng.CommandTimeout),
			ResubscribeDelay: Duration(eng.ResubscribeDelay),
		},
		Store: StoreConfig{
			Backend:   BackendMemory,
			NATSURL:   "nats://127.0.0.1:4222",
			Bucket:    "solanirad",
			OpTimeout: Duration(5 * time.Second),
		},
		HTTP: HTTPConfig{
			Addr:              ":8080",
			CORSOrigins:       []string{"*"},
			ReadHeaderTimeout: Duration(10 * time.Second),
			ShutdownTimeout:   Duration(10 * time.Second),
		},
		Log:       LogConfig{Level: string(logging.LevelInfo)},
		Telemetry: TelemetryConfig{Protocol: "grpc", ServiceName: "solanirad"},
		Events:    EventsConfig{Protocol: "noop"},
		Simulator: SimulatorConfig{Interval: Duration(2 * time.Second)},
		Thresholds: safety.DefaultThresholds(),
	}
}

// Load builds the configuration from args (without the program name) and
// the environment lookup getenv.
func Load(args []string, getenv func(string) string) (*Config, error) {
	fs := flag.NewFlagSet("solanirad", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		path      = fs.String("config", "", "path to a TOML configuration file")
		addr      = fs.String("addr", "", "HTTP listen address")
		backend   = fs.String("store", "", "state store backend: memory or nats")
		natsURL   = fs.String("nats-url", "", "NATS server URL")
		feedKey   = fs.String("feed-key", "", "state store key of the device node")
		logLevel  = fs.String("log-level", "", "log level: debug, info, warn, error")
		simulate  = fs.Bool("simulate", false, "run the built-in device simulator")
		timeout   = fs.Duration("timeout", 0, "heartbeat timeout")
		eventsURL = fs.String("events", "", "event journal endpoint (http URL or file path)")
	)
	if err := fs.Parse(args); err != nil {
		return nil, errors.InvalidConfig("parsing flags", errors.WithCause(err))
	}

	if *path == "" {
		*path = getenv("SOLANIRAD_CONFIG")
	}

	cfg := Default()
	if *path != "" {
		if _, err := toml.DecodeFile(*path, cfg); err != nil {
			return nil, errors.InvalidConfig("reading config file",
				errors.WithCause(err), errors.WithMetadata("path", *path))
		}
	}

	// Flags override the file only when given.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "addr":
			cfg.HTTP.Addr = *addr
		case "store":
			cfg.Store.Backend = *backend
		case "nats-url":
			cfg.Store.NATSURL = *natsURL
		case "feed-key":
			cfg.Feed.Key = *feedKey
		case "log-level":
			cfg.Log.Level = *logLevel
		case "simulate":
			cfg.Simulator.Enabled = *simulate
		case "timeout":
			cfg.Feed.Timeout = Duration(*timeout)
		case "events":
			cfg.Events.Endpoint = *eventsURL
			cfg.Events.Protocol = eventsProtocol(*eventsURL)
		}
	})

	if err := cfg.applyEnv(getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv applies SOLANIRAD_* overrides.
func (c *Config) applyEnv(getenv func(string) string) error {
	str := map[string]*string{
		"SOLANIRAD_ADDR":        &c.HTTP.Addr,
		"SOLANIRAD_STORE":       &c.Store.Backend,
		"SOLANIRAD_NATS_URL":    &c.Store.NATSURL,
		"SOLANIRAD_BUCKET":      &c.Store.Bucket,
		"SOLANIRAD_FEED_KEY":    &c.Feed.Key,
		"SOLANIRAD_CONTROL_KEY": &c.Feed.ControlKey,
		"SOLANIRAD_LOG_LEVEL":   &c.Log.Level,
	}
	for name, dst := range str {
		if v := getenv(name); v != "" {
			*dst = v
		}
	}

	if v := getenv("SOLANIRAD_CORS_ORIGINS"); v != "" {
		c.HTTP.CORSOrigins = splitList(v)
	}
	if v := getenv("SOLANIRAD_EVENTS"); v != "" {
		c.Events.Endpoint = v
		c.Events.Protocol = eventsProtocol(v)
	}
	if v := getenv("SOLANIRAD_SIMULATE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.InvalidConfig("SOLANIRAD_SIMULATE must be a boolean", errors.WithCause(err))
		}
		c.Simulator.Enabled = b
	}
	if v := getenv("SOLANIRAD_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return errors.InvalidConfig("SOLANIRAD_TIMEOUT must be a duration", errors.WithCause(err))
		}
		c.Feed.Timeout = Duration(d)
	}
	return nil
}

func eventsProtocol(endpoint string) string {
	switch {
	case endpoint == "":
		return "noop"
	case strings.HasPrefix(endpoint, "http://"), strings.HasPrefix(endpoint, "https://"):
		return "http"
	default:
		return "file"
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	var problems []string
	add := func(format string, args ...interface{}) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if err := state.ValidateKey(c.Feed.Key); err != nil {
		add("feed.key %q: %v", c.Feed.Key, err)
	}
	if err := state.ValidateKey(c.Feed.ControlKey); err != nil {
		add("feed.control_key %q: %v", c.Feed.ControlKey, err)
	}
	if c.Feed.Key == c.Feed.ControlKey {
		add("feed.key and feed.control_key must differ")
	}
	if c.Feed.Timeout <= 0 {
		add("feed.timeout must be positive")
	}
	if c.Feed.Refresh <= 0 {
		add("feed.refresh must be positive")
	}
	if c.Feed.HistorySize <= 0 {
		add("feed.history_size must be positive")
	}
	if c.Feed.RebootLimit < 0 || c.Feed.RebootWindow < 0 {
		add("feed.reboot_limit and feed.reboot_window must not be negative")
	}
	switch c.Store.Backend {
	case BackendMemory:
	case BackendNATS:
		if c.Store.NATSURL == "" {
			add("store.nats_url is required for the nats backend")
		}
	default:
		add("store.backend %q: use memory or nats", c.Store.Backend)
	}
	if c.HTTP.Addr == "" {
		add("http.addr is required")
	}
	if _, ok := logging.ParseLevel(c.Log.Level); !ok {
		add("log.level %q: use debug, info, warn or error", c.Log.Level)
	}
	switch c.Telemetry.Protocol {
	case "", "grpc", "http":
	default:
		add("telemetry.protocol %q: use grpc or http", c.Telemetry.Protocol)
	}
	switch c.Events.Protocol {
	case "", "noop":
	case "http", "file":
		if c.Events.Endpoint == "" {
			add("events.endpoint is required for protocol %s", c.Events.Protocol)
		}
	default:
		add("events.protocol %q: use http, file or noop", c.Events.Protocol)
	}
	if c.Simulator.Enabled && c.Simulator.Interval <= 0 {
		add("simulator.interval must be positive")
	}
	for _, th := range c.Thresholds {
		if th.Field == "" {
			add("thresholds: entry without field")
		} else if th.Critical < th.Warn {
			add("thresholds.%s: critical %v below warn %v", th.Field, th.Critical, th.Warn)
		}
	}

	if len(problems) > 0 {
		return errors.InvalidConfig(strings.Join(problems, "; "))
	}
	return nil
}

// LogLevel returns the parsed log level.
func (c *Config) LogLevel() logging.Level {
	level, _ := logging.ParseLevel(c.Log.Level)
	return level
}

// Engine returns the dashboard engine configuration.
func (c *Config) Engine() dashboard.Config {
	return dashboard.Config{
		Heartbeat: heartbeat.Config{
			Timeout:         c.Feed.Timeout.Std(),
			RefreshInterval: c.Feed.Refresh.Std(),
		},
		HistorySize:      c.Feed.HistorySize,
		Thresholds:       c.Thresholds,
		FeedKey:          c.Feed.Key,
		ControlKey:       c.Feed.ControlKey,
		CommandTimeout:   c.Feed.CommandTimeout.Std(),
		ResubscribeDelay: c.Feed.ResubscribeDelay.Std(),
		RebootLimit:      c.Feed.RebootLimit,
		RebootWindow:     c.Feed.RebootWindow.Std(),
	}
}

// Provider returns the tracing provider configuration.
func (c *Config) Provider(version string) telemetry.ProviderConfig {
	return telemetry.ProviderConfig{
		ServiceName:    c.Telemetry.ServiceName,
		ServiceVersion: version,
		Endpoint:       c.Telemetry.Endpoint,
		Protocol:       c.Telemetry.Protocol,
		Insecure:       c.Telemetry.Insecure,
		SampleRatio:    c.Telemetry.SampleRatio,
		Attributes: map[string]string{
			"solanirad.feed_key":      c.Feed.Key,
			"solanirad.store_backend": c.Store.Backend,
		},
	}
}

// TracingEnabled reports whether an OTLP endpoint is configured.
func (c *Config) TracingEnabled() bool {
	return c.Provider("").ResolveEndpoint() != ""
}
