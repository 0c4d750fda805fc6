package api

import (
	"time"

	"github.com/vinayprograms/solanirad/dashboard"
	"github.com/vinayprograms/solanirad/ratelimit"
	"github.com/vinayprograms/solanirad/safety"
)

// ApiResponse is the envelope of every JSON response.
type ApiResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Error   *ErrorBody  `json:"error,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// ErrorBody describes a failed request.
type ErrorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// SensorsResponse is the liveness summary.
type SensorsResponse struct {
	Connected bool                   `json:"connected"`
	Online    int                    `json:"online"`
	Total     int                    `json:"total"`
	Sensors   []dashboard.SensorView `json:"sensors"`
	KPIs      dashboard.KPIs         `json:"kpis"`
}

// HistoryResponse is the reading history or one series of it.
type HistoryResponse struct {
	Field    string                  `json:"field,omitempty"`
	Capacity int                     `json:"capacity"`
	Readings []dashboard.Reading     `json:"readings,omitempty"`
	Series   []dashboard.SeriesPoint `json:"series,omitempty"`
}

// SafetyResponse is the classification list with its worst level.
type SafetyResponse struct {
	Worst    safety.Level    `json:"worst"`
	Statuses []safety.Status `json:"statuses"`
}

// RebootResponse acknowledges a reboot request.
type RebootResponse struct {
	Notification dashboard.Notification `json:"notification"`
}

// HealthResponse reports service health.
type HealthResponse struct {
	Status        string              `json:"status"`
	Timestamp     time.Time           `json:"timestamp"`
	Version       string              `json:"version"`
	Uptime        string              `json:"uptime"`
	EngineRunning bool                `json:"engine_running"`
	FeedConnected bool                `json:"feed_connected"`
	Live          bool                `json:"live"`
	StreamClients int                 `json:"stream_clients"`
	RebootLimit   *ratelimit.Capacity `json:"reboot_limit,omitempty"`
}
