package models

// Field names used in diffs, events and MQTT topics.
const (
	FieldPowerOn          = "power_on"
	FieldMode             = "mode"
	FieldFanSpeed         = "fan_speed"
	FieldHumiditySetpoint = "humidity_setpoint"
	FieldCurrentHumidity  = "current_humidity"
	FieldErrorCode        = "error_code"
)

// FieldChange is one field that differs between two snapshots.
type FieldChange struct {
	Field string `json:"field"`
	From  any    `json:"from"`
	To    any    `json:"to"`
}

// Diff lists the fields of s that differ from prev, in declaration order.
func (s DeviceState) Diff(prev DeviceState) []FieldChange {
	var out []FieldChange
	if s.PowerOn != prev.PowerOn {
		out = append(out, FieldChange{FieldPowerOn, prev.PowerOn, s.PowerOn})
	}
	if s.Mode != prev.Mode {
		out = append(out, FieldChange{FieldMode, prev.Mode, s.Mode})
	}
	if s.FanSpeed != prev.FanSpeed {
		out = append(out, FieldChange{FieldFanSpeed, prev.FanSpeed, s.FanSpeed})
	}
	if s.HumiditySetpoint != prev.HumiditySetpoint {
		out = append(out, FieldChange{FieldHumiditySetpoint, prev.HumiditySetpoint, s.HumiditySetpoint})
	}
	if s.CurrentHumidity != prev.CurrentHumidity {
		out = append(out, FieldChange{FieldCurrentHumidity, prev.CurrentHumidity, s.CurrentHumidity})
	}
	if s.ErrorCode != prev.ErrorCode {
		out = append(out, FieldChange{FieldErrorCode, prev.ErrorCode, s.ErrorCode})
	}
	return out
}
