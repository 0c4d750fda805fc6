package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/vinayprograms/solanirad/errors"
	"github.com/vinayprograms/solanirad/logging"
)

func env(vars map[string]string) func(string) string {
	return func(k string) string { return vars[k] }
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "solanirad.toml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(nil, env(nil))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Feed.Key != "iot_system" || cfg.Feed.ControlKey != "iot_system.control.reboot" {
		t.Errorf("feed keys = %q, %q", cfg.Feed.Key, cfg.Feed.ControlKey)
	}
	if cfg.Feed.Timeout.Std() != 15*time.Second || cfg.Feed.Refresh.Std() != time.Second {
		t.Errorf("timing = %v, %v", cfg.Feed.Timeout.Std(), cfg.Feed.Refresh.Std())
	}
	if cfg.Feed.HistorySize != 20 || len(cfg.Thresholds) != 5 {
		t.Errorf("history=%d thresholds=%d", cfg.Feed.HistorySize, len(cfg.Thresholds))
	}
	if cfg.Store.Backend != BackendMemory || cfg.HTTP.Addr != ":8080" {
		t.Errorf("store=%s addr=%s", cfg.Store.Backend, cfg.HTTP.Addr)
	}
	if cfg.LogLevel() != logging.LevelInfo {
		t.Errorf("LogLevel() = %s", cfg.LogLevel())
	}
}

func TestLoad_File(t *testing.T) {
	path := writeFile(t, `
[feed]
key = "greenhouse"
timeout = "20s"
history_size = 50
reboot_limit = 3
reboot_window = "2m"

[store]
backend = "nats"
nats_url = "nats://broker:4222"

[http]
addr = ":9099"
cors_origins = ["http://localhost:5173"]

[[thresholds]]
field = "nh3"
label = "NH3"
unit = "ppm"
warn = 25
critical = 40
`)

	cfg, err := Load([]string{"-config", path}, env(nil))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Feed.Key != "greenhouse" || cfg.Feed.Timeout.Std() != 20*time.Second || cfg.Feed.HistorySize != 50 {
		t.Errorf("feed = %+v", cfg.Feed)
	}
	if cfg.Feed.RebootLimit != 3 || cfg.Feed.RebootWindow.Std() != 2*time.Minute {
		t.Errorf("reboot limit = %d per %v", cfg.Feed.RebootLimit, cfg.Feed.RebootWindow.Std())
	}
	if cfg.Feed.ControlKey != "iot_system.control.reboot" {
		t.Errorf("unset key lost its default: %q", cfg.Feed.ControlKey)
	}
	if cfg.Store.Backend != BackendNATS || cfg.Store.NATSURL != "nats://broker:4222" {
		t.Errorf("store = %+v", cfg.Store)
	}
	if len(cfg.HTTP.CORSOrigins) != 1 || cfg.HTTP.CORSOrigins[0] != "http://localhost:5173" {
		t.Errorf("cors = %v", cfg.HTTP.CORSOrigins)
	}
	if len(cfg.Thresholds) != 1 || cfg.Thresholds[0].Warn != 25 {
		t.Errorf("thresholds = %+v", cfg.Thresholds)
	}
}

func TestLoad_Precedence(t *testing.T) {
	path := writeFile(t, `
[http]
addr = ":1000"

[log]
level = "warn"
`)

	tests := []struct {
		name     string
		args     []string
		env      map[string]string
		wantAddr string
	}{
		{"file", []string{"-config", path}, nil, ":1000"},
		{"flag over file", []string{"-config", path, "-addr", ":2000"}, nil, ":2000"},
		{"env over flag", []string{"-config", path, "-addr", ":2000"}, map[string]string{"SOLANIRAD_ADDR": ":3000"}, ":3000"},
		{"config from env", nil, map[string]string{"SOLANIRAD_CONFIG": path}, ":1000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(tt.args, env(tt.env))
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if cfg.HTTP.Addr != tt.wantAddr {
				t.Errorf("addr = %s, want %s", cfg.HTTP.Addr, tt.wantAddr)
			}
			if cfg.LogLevel() != logging.LevelWarn {
				t.Errorf("log level = %s", cfg.LogLevel())
			}
		})
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	cfg, err := Load(nil, env(map[string]string{
		"SOLANIRAD_SIMULATE":     "true",
		"SOLANIRAD_TIMEOUT":      "30s",
		"SOLANIRAD_CORS_ORIGINS": "http://a.example, http://b.example",
		"SOLANIRAD_EVENTS":       "https://hooks.example/solanirad",
	}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !cfg.Simulator.Enabled || cfg.Feed.Timeout.Std() != 30*time.Second {
		t.Errorf("simulator=%v timeout=%v", cfg.Simulator.Enabled, cfg.Feed.Timeout.Std())
	}
	if len(cfg.HTTP.CORSOrigins) != 2 || cfg.HTTP.CORSOrigins[1] != "http://b.example" {
		t.Errorf("cors = %v", cfg.HTTP.CORSOrigins)
	}
	if cfg.Events.Protocol != "http" {
		t.Errorf("events protocol = %s", cfg.Events.Protocol)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
		env  map[string]string
		want string
	}{
		{"bad flag", []string{"-nope"}, nil, "parsing flags"},
		{"bad backend", []string{"-store", "redis"}, nil, "store.backend"},
		{"bad level", []string{"-log-level", "loud"}, nil, "log.level"},
		{"same keys", []string{"-feed-key", "iot_system.control.reboot"}, nil, "must differ"},
		{"zero timeout", []string{"-timeout", "0s"}, nil, "feed.timeout"},
		{"bad simulate", nil, map[string]string{"SOLANIRAD_SIMULATE": "maybe"}, "SOLANIRAD_SIMULATE"},
		{"missing file", []string{"-config", "/nonexistent/solanirad.toml"}, nil, "reading config file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.args, env(tt.env))
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, errors.ErrCodeInvalidConfig) {
				t.Errorf("code = %s", errors.Code(err))
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestValidate_NegativeRebootLimit(t *testing.T) {
	cfg := Default()
	cfg.Feed.RebootLimit = -1
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "reboot_limit") {
		t.Errorf("Validate() = %v", err)
	}
}

func TestValidate_Thresholds(t *testing.T) {
	cfg := Default()
	cfg.Thresholds[0].Critical = cfg.Thresholds[0].Warn - 1
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "critical") {
		t.Errorf("Validate() = %v", err)
	}
}

func TestEngine(t *testing.T) {
	cfg := Default()
	cfg.Feed.Timeout = Duration(20 * time.Second)

	cfg.Feed.RebootLimit = 4

	eng := cfg.Engine()
	if eng.Heartbeat.Timeout != 20*time.Second || eng.FeedKey != cfg.Feed.Key || eng.HistorySize != 20 {
		t.Errorf("Engine() = %+v", eng)
	}
	if eng.RebootLimit != 4 {
		t.Errorf("RebootLimit = %d, want 4", eng.RebootLimit)
	}
}
