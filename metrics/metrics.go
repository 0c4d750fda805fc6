// Package metrics exposes service counters and gauges to Prometheus.
//
// All methods are safe on a nil *Metrics, so components can take an
// optional collector without guarding every call.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "solanirad"

// Metrics holds every collector the service reports.
type Metrics struct {
	registry *prometheus.Registry

	feedMessages   prometheus.Counter
	feedDropped    *prometheus.CounterVec
	feedErrors     prometheus.Counter
	feedConnected  prometheus.Gauge
	sensorOnline   *prometheus.GaugeVec
	transitions    *prometheus.CounterVec
	readingValue   *prometheus.GaugeVec
	safetyLevel    *prometheus.GaugeVec
	commands       *prometheus.CounterVec
	commandLatency prometheus.Histogram
	streamClients  *prometheus.GaugeVec
	httpRequests   *prometheus.CounterVec
	httpLatency    *prometheus.HistogramVec
}

// New creates collectors on a private registry, with Go and process
// collectors included.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		feedMessages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_messages_total",
			Help:      "Telemetry payloads applied to the dashboard state.",
		}),
		feedDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_dropped_total",
			Help:      "Telemetry payloads ignored, by reason.",
		}, []string{"reason"}),
		feedErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_errors_total",
			Help:      "Feed subscription failures.",
		}),
		feedConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "feed_connected",
			Help:      "1 while the feed subscription is healthy.",
		}),
		sensorOnline: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sensor_online",
			Help:      "1 while the sensor heartbeat is within the timeout.",
		}, []string{"sensor"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sensor_transitions_total",
			Help:      "Sensor online/offline transitions.",
		}, []string{"sensor", "state"}),
		readingValue: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reading_value",
			Help:      "Latest derived reading per field.",
		}, []string{"field"}),
		safetyLevel: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "safety_level",
			Help:      "Safety classification per field (0 safe, 1 warning, 2 critical).",
		}, []string{"field"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Control commands by outcome.",
		}, []string{"command", "result"}),
		commandLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "command_duration_seconds",
			Help:      "Time to write a control command to the store.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		streamClients: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stream_clients",
			Help:      "Connected live-stream clients by transport.",
		}, []string{"transport"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.feedMessages, m.feedDropped, m.feedErrors, m.feedConnected,
		m.sensorOnline, m.transitions, m.readingValue, m.safetyLevel,
		m.commands, m.commandLatency, m.streamClients,
		m.httpRequests, m.httpLatency,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// FeedMessage counts an applied payload.
func (m *Metrics) FeedMessage() {
	if m == nil {
		return
	}
	m.feedMessages.Inc()
}

// FeedDropped counts an ignored payload.
func (m *Metrics) FeedDropped(reason string) {
	if m == nil {
		return
	}
	m.feedDropped.WithLabelValues(reason).Inc()
}

// FeedError counts a subscription failure.
func (m *Metrics) FeedError() {
	if m == nil {
		return
	}
	m.feedErrors.Inc()
}

// SetConnected records the feed connection flag.
func (m *Metrics) SetConnected(ok bool) {
	if m == nil {
		return
	}
	m.feedConnected.Set(boolValue(ok))
}

// SetSensorOnline records one sensor's liveness.
func (m *Metrics) SetSensorOnline(sensor string, online bool) {
	if m == nil {
		return
	}
	m.sensorOnline.WithLabelValues(sensor).Set(boolValue(online))
}

// Transition counts a sensor changing state.
func (m *Metrics) Transition(sensor string, online bool) {
	if m == nil {
		return
	}
	st := "offline"
	if online {
		st = "online"
	}
	m.transitions.WithLabelValues(sensor, st).Inc()
}

// SetReading records the latest value of a field.
func (m *Metrics) SetReading(field string, v float64) {
	if m == nil {
		return
	}
	m.readingValue.WithLabelValues(field).Set(v)
}

// SetSafetyLevel records a field's classification.
func (m *Metrics) SetSafetyLevel(field string, level int) {
	if m == nil {
		return
	}
	m.safetyLevel.WithLabelValues(field).Set(float64(level))
}

// Command records a control command outcome and its duration.
func (m *Metrics) Command(command string, d time.Duration, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.commands.WithLabelValues(command, result).Inc()
	m.commandLatency.Observe(d.Seconds())
}

// CommandRefused counts a command rejected before it was sent.
func (m *Metrics) CommandRefused(command string) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(command, "refused").Inc()
}

// StreamClients sets the number of connected clients for a transport.
func (m *Metrics) StreamClients(transport string, n int) {
	if m == nil {
		return
	}
	m.streamClients.WithLabelValues(transport).Set(float64(n))
}

// HTTPRequest records one served request.
func (m *Metrics) HTTPRequest(method, route, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, status).Inc()
	m.httpLatency.WithLabelValues(method, route).Observe(d.Seconds())
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
