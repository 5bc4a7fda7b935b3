package models

import "time"

// Event types written to the device log.
const (
	EventPowerOn        = "POWER_ON"
	EventPowerOff       = "POWER_OFF"
	EventModeChange     = "MODE_CHANGE"
	EventFanSpeedChange = "FAN_SPEED_CHANGE"
	EventSetpointChange = "SETPOINT_CHANGE"
	EventError          = "ERROR"
	EventErrorCleared   = "ERROR_CLEARED"
)

var eventTypes = []string{
	EventPowerOn,
	EventPowerOff,
	EventModeChange,
	EventFanSpeedChange,
	EventSetpointChange,
	EventError,
	EventErrorCleared,
}

// EventTypes lists every event type in a stable order.
func EventTypes() []string {
	return append([]string(nil), eventTypes...)
}

func IsEventType(s string) bool {
	for _, t := range eventTypes {
		if t == s {
			return true
		}
	}
	return false
}

// DeviceEvent is a single log entry.
type DeviceEvent struct {
	EventID     string    `json:"event_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Type        string    `json:"type"`
	Description string    `json:"description"`
	Metadata    any       `json:"metadata,omitempty"`
}
