package dashboard

import (
	"math"

	"github.com/vinayprograms/solanirad/feed"
	"github.com/vinayprograms/solanirad/heartbeat"
	"github.com/vinayprograms/solanirad/sensor"
)

// Card is one tile of the status grid.
type Card struct {
	Sensor  sensor.ID `json:"sensor"`
	Label   string    `json:"label"`
	On      bool      `json:"on"`
	Subtext string    `json:"subtext"`
}

// Battery describes the controller's battery gauge.
type Battery struct {
	Level    heartbeat.Value `json:"level"`
	Status   string          `json:"status"`
	Band     string          `json:"band"`
	Segments int             `json:"segments"`
	Pulse    bool            `json:"pulse"`
}

// UVCPanel describes the UV-C sterilization panel.
type UVCPanel struct {
	Online bool   `json:"online"`
	Active bool   `json:"active"`
	Status string `json:"status"`
	Busy   bool   `json:"busy"`
	Ready  bool   `json:"ready"`
}

// Grid is the system status grid.
type Grid struct {
	Cards           []Card   `json:"cards"`
	Battery         Battery  `json:"battery"`
	UVC             UVCPanel `json:"uvc"`
	RebootAvailable bool     `json:"reboot_available"`
}

// gridOrder is the card order. UV-C has its own panel.
var gridOrder = []sensor.ID{
	sensor.Controller,
	sensor.Ammonia,
	sensor.VOC,
	sensor.Environment,
	sensor.Servo,
	sensor.LoadCell,
}

var onlineSubtext = map[sensor.ID]string{
	sensor.Controller:  "Heartbeat: Active",
	sensor.Ammonia:     "Data Streaming",
	sensor.VOC:         "Data Streaming",
	sensor.Environment: "Env Monitoring",
	sensor.Servo:       "Position Lock",
	sensor.LoadCell:    "Calibrated",
}

func offlineSubtext(id sensor.ID) string {
	if id == sensor.Controller {
		return "Signal Lost"
	}
	return "No Signal"
}

// BuildGrid derives the status grid from liveness and the last state.
func BuildGrid(l heartbeat.Liveness, st feed.SystemState) Grid {
	g := Grid{
		Cards:           make([]Card, 0, len(gridOrder)),
		RebootAvailable: l.Controller(),
	}
	for _, id := range gridOrder {
		online := l.Online(id)
		c := Card{Sensor: id, Label: id.Label(), On: online, Subtext: offlineSubtext(id)}
		if online {
			c.Subtext = onlineSubtext[id]
		}
		if id == sensor.Servo {
			c.On = online && st.Servo
		}
		g.Cards = append(g.Cards, c)
	}

	if l.Controller() {
		g.Battery = NewBattery(st.Battery)
	} else {
		g.Battery = Battery{
			Level:  heartbeat.Disconnected(),
			Status: "DISCONNECTED",
			Band:   BatteryBand(0),
		}
	}

	g.UVC = UVCPanel{Online: l.Online(sensor.UVC), Status: "OFFLINE"}
	if g.UVC.Online {
		g.UVC.Active = st.UVC
		g.UVC.Busy = st.UVC
		g.UVC.Ready = !st.UVC
		g.UVC.Status = "STANDBY"
		if st.UVC {
			g.UVC.Status = "SEQUENCE ACTIVE"
		}
	}
	return g
}

// NewBattery builds a live gauge for percentage b.
func NewBattery(b float64) Battery {
	return Battery{
		Level:    heartbeat.Number(b),
		Status:   BatteryStatus(b),
		Band:     BatteryBand(b),
		Segments: BatterySegments(b),
		Pulse:    b < 20,
	}
}

// BatteryStatus returns the gauge caption for percentage b.
func BatteryStatus(b float64) string {
	switch {
	case b >= 98:
		return "FULL CHG"
	case b >= 80:
		return "NOMINAL"
	case b >= 50:
		return "GOOD"
	case b >= 30:
		return "LOW PWR"
	case b >= 20:
		return "WARNING"
	default:
		return "CRITICAL"
	}
}

// BatteryBand returns the gauge colour for percentage b.
func BatteryBand(b float64) string {
	switch {
	case b >= 80:
		return "emerald"
	case b >= 50:
		return "yellow"
	case b >= 30:
		return "amber"
	case b >= 20:
		return "orange"
	default:
		return "red"
	}
}

// BatterySegments returns how many of the ten gauge segments are lit.
func BatterySegments(b float64) int {
	n := int(math.Ceil(b / 10))
	if n < 0 {
		return 0
	}
	if n > 10 {
		return 10
	}
	return n
}
