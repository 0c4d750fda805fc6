// Package api exposes the dashboard over HTTP.
//
// Every JSON response uses the ApiResponse envelope. Live updates are
// served as Server-Sent Events on /api/v1/events and over WebSocket on
// /api/v1/ws; Prometheus metrics are on /metrics.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/vinayprograms/solanirad/dashboard"
	"github.com/vinayprograms/solanirad/logging"
	"github.com/vinayprograms/solanirad/metrics"
	"github.com/vinayprograms/solanirad/ratelimit"
	"github.com/vinayprograms/solanirad/telemetry"
)

// Dashboard is the engine as seen by the handlers.
type Dashboard interface {
	View() dashboard.View
	Reboot(ctx context.Context) (dashboard.Notification, error)
	RebootCapacity() *ratelimit.Capacity
	Running() bool
}

// Streams serves live pushes.
type Streams interface {
	HandleSSE(w http.ResponseWriter, r *http.Request)
	HandleWebSocket(w http.ResponseWriter, r *http.Request)
	Clients() int
}

// Config configures the server.
type Config struct {
	// CORSOrigins lists allowed origins. ["*"] allows any.
	CORSOrigins []string

	// HistoryCapacity is reported by /history.
	HistoryCapacity int

	// Version is reported by /system/health.
	Version string
}

// Server holds the handler dependencies.
type Server struct {
	config    Config
	dashboard Dashboard
	streams   Streams
	metrics   *metrics.Metrics
	logger    *logging.Logger
	tracer    *telemetry.Tracer
	startTime time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithMetrics sets the metrics sink and enables /metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithTracer sets the tracer. Default: telemetry.GetTracer()
func WithTracer(t *telemetry.Tracer) Option {
	return func(s *Server) {
		s.tracer = t
	}
}

// NewServer creates a server.
func NewServer(cfg Config, d Dashboard, streams Streams, opts ...Option) *Server {
	if cfg.HistoryCapacity <= 0 {
		cfg.HistoryCapacity = dashboard.DefaultHistorySize
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	s := &Server{
		config:    cfg,
		dashboard: d,
		streams:   streams,
		logger:    logging.New().WithComponent("api"),
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tracer == nil {
		s.tracer = telemetry.GetTracer()
	}
	return s
}

// Handler builds the gin engine with middleware and routes.
func (s *Server) Handler() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(s.corsMiddleware())
	r.Use(requestID())
	r.Use(s.observe())
	s.SetupRoutes(r)
	return r
}

func (s *Server) corsMiddleware() gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Length", "Content-Type", "Authorization", RequestIDHeader},
		ExposeHeaders: []string{"Content-Length", RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(s.config.CORSOrigins) == 0 || (len(s.config.CORSOrigins) == 1 && s.config.CORSOrigins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = s.config.CORSOrigins
		cfg.AllowCredentials = true
	}
	return cors.New(cfg)
}

// SetupRoutes registers the API routes on r.
func (s *Server) SetupRoutes(r *gin.Engine) {
	v1 := r.Group("/api/v1")
	{
		v1.GET("/dashboard", s.handleDashboard)
		v1.GET("/status", s.handleStatus)
		v1.GET("/safety", s.handleSafety)
		v1.GET("/history", s.handleHistory)

		sensors := v1.Group("/sensors")
		{
			sensors.GET("", s.handleSensors)
			sensors.GET("/:sensor", s.handleSensor)
		}

		control := v1.Group("/control")
		{
			control.POST("/reboot", s.handleReboot)
		}

		system := v1.Group("/system")
		{
			system.GET("/health", s.handleHealth)
		}

		if s.streams != nil {
			v1.GET("/events", gin.WrapF(s.streams.HandleSSE))
			v1.GET("/ws", gin.WrapF(s.streams.HandleWebSocket))
		}
	}

	if s.metrics != nil {
		r.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}
}
