package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vinayprograms/solanirad/dashboard"
	"github.com/vinayprograms/solanirad/errors"
	"github.com/vinayprograms/solanirad/safety"
	"github.com/vinayprograms/solanirad/sensor"
)

func success(c *gin.Context, status int, data interface{}) {
	c.JSON(status, ApiResponse{Status: "success", Data: data})
}

func fail(c *gin.Context, err error) {
	code := errors.Code(err)
	msg := err.Error()
	if coded := errors.As(err); coded != nil {
		msg = coded.Message()
		if wait, ok := coded.Metadata()[dashboard.RetryAfterKey]; ok {
			c.Header("Retry-After", wait)
		}
	}
	c.JSON(statusFor(code), ApiResponse{
		Status: "error",
		Error: &ErrorBody{
			Code:      code.String(),
			Message:   msg,
			Retryable: errors.IsRetryable(err),
		},
	})
}

func statusFor(code errors.ErrorCode) int {
	switch code {
	case errors.ErrCodeInvalidInput:
		return http.StatusBadRequest
	case errors.ErrCodeNotFound:
		return http.StatusNotFound
	case errors.ErrCodeControllerOffline, errors.ErrCodeUnavailable, errors.ErrCodeFeedLost:
		return http.StatusServiceUnavailable
	case errors.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case errors.ErrCodeCommandFailed:
		return http.StatusBadGateway
	case errors.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// GET /api/v1/dashboard
func (s *Server) handleDashboard(c *gin.Context) {
	success(c, http.StatusOK, s.dashboard.View())
}

// GET /api/v1/status
func (s *Server) handleStatus(c *gin.Context) {
	success(c, http.StatusOK, s.dashboard.View().Grid)
}

// GET /api/v1/safety
func (s *Server) handleSafety(c *gin.Context) {
	v := s.dashboard.View()
	success(c, http.StatusOK, SafetyResponse{
		Worst:    safety.Worst(v.Safety),
		Statuses: v.Safety,
	})
}

// GET /api/v1/history?field=co2
func (s *Server) handleHistory(c *gin.Context) {
	v := s.dashboard.View()
	resp := HistoryResponse{Capacity: s.config.HistoryCapacity}

	field := c.Query("field")
	if field == "" {
		resp.Readings = v.History
		success(c, http.StatusOK, resp)
		return
	}

	series, ok := dashboard.SeriesOf(v.History, field)
	if !ok {
		fail(c, errors.InvalidInput("unknown series: "+field,
			errors.WithMetadata("valid", strings.Join(dashboard.SeriesNames(), ","))))
		return
	}
	resp.Field = field
	resp.Series = series
	success(c, http.StatusOK, resp)
}

// GET /api/v1/sensors
func (s *Server) handleSensors(c *gin.Context) {
	v := s.dashboard.View()
	success(c, http.StatusOK, SensorsResponse{
		Connected: v.Connected,
		Online:    v.Liveness.Count(),
		Total:     int(sensor.Count),
		Sensors:   v.Sensors,
		KPIs:      v.KPIs,
	})
}

// GET /api/v1/sensors/:sensor
func (s *Server) handleSensor(c *gin.Context) {
	id, ok := sensor.Parse(c.Param("sensor"))
	if !ok {
		fail(c, errors.New(errors.ErrCodeNotFound, "unknown sensor: "+c.Param("sensor")))
		return
	}
	for _, sv := range s.dashboard.View().Sensors {
		if sv.Sensor == id {
			success(c, http.StatusOK, sv)
			return
		}
	}
	fail(c, errors.New(errors.ErrCodeNotFound, "sensor not tracked: "+id.String()))
}

// POST /api/v1/control/reboot
func (s *Server) handleReboot(c *gin.Context) {
	n, err := s.dashboard.Reboot(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, ApiResponse{
		Status:  "success",
		Message: n.Message,
		Data:    RebootResponse{Notification: n},
	})
}

// GET /api/v1/system/health
func (s *Server) handleHealth(c *gin.Context) {
	v := s.dashboard.View()
	running := s.dashboard.Running()

	resp := HealthResponse{
		Status:        "healthy",
		Timestamp:     time.Now(),
		Version:       s.config.Version,
		Uptime:        time.Since(s.startTime).Round(time.Second).String(),
		EngineRunning: running,
		FeedConnected: v.Connected,
		Live:          v.Live,
		RebootLimit:   s.dashboard.RebootCapacity(),
	}
	if s.streams != nil {
		resp.StreamClients = s.streams.Clients()
	}

	if !running {
		resp.Status = "unhealthy"
		c.JSON(http.StatusServiceUnavailable, ApiResponse{Status: "error", Data: resp})
		return
	}
	if !v.Connected {
		resp.Status = "degraded"
	}
	success(c, http.StatusOK, resp)
}
