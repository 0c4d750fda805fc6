package dashboard

import (
	"time"

	"github.com/google/uuid"
)

// NotificationKind is the outcome class of a command.
type NotificationKind string

const (
	NotifySuccess NotificationKind = "success"
	NotifyError   NotificationKind = "error"
)

// Command names.
const (
	CommandReboot = "reboot"
)

const (
	rebootSentMessage   = "Reboot Signal Sent. The ESP32 will restart and reset the signal."
	rebootFailedMessage = "Error sending reboot signal. Check connection."
)

// Notification is a one-shot, user-visible command outcome.
type Notification struct {
	ID      string           `json:"id"`
	Kind    NotificationKind `json:"kind"`
	Command string           `json:"command"`
	Message string           `json:"message"`
	At      time.Time        `json:"at"`
}

func newNotification(command string, kind NotificationKind, message string, at time.Time) Notification {
	return Notification{
		ID:      uuid.New().String(),
		Kind:    kind,
		Command: command,
		Message: message,
		At:      at,
	}
}
