package models

import "time"

// Humidity bounds in percent relative humidity.
const (
	MinHumidity = 0
	MaxHumidity = 100
)

// DeviceState is one status snapshot of the dehumidifier.
// It is a value type: copy it, compare it with ==, never share a pointer
// between the producer and the consumer.
type DeviceState struct {
	PowerOn          bool             `json:"power_on"`
	Mode             DehumidifierMode `json:"mode"`
	FanSpeed         FanSpeed         `json:"fan_speed"`
	HumiditySetpoint uint8            `json:"humidity_setpoint"` // %RH, used in SETPOINT mode
	CurrentHumidity  uint8            `json:"current_humidity"`  // %RH, last sensor reading
	ErrorCode        uint8            `json:"error_code"`        // opaque, 0 = no error
}

// NewDeviceState builds a validated record.
// Humidity values are taken as int so that out-of-range input is rejected
// instead of being truncated.
func NewDeviceState(powerOn bool, mode DehumidifierMode, fan FanSpeed, setpoint, current int, errorCode uint8) (DeviceState, error) {
	if !mode.IsValid() {
		return DeviceState{}, invalidEnum("mode", int(mode))
	}
	if !fan.IsValid() {
		return DeviceState{}, invalidEnum("fan_speed", int(fan))
	}
	if err := checkHumidity("humidity_setpoint", setpoint); err != nil {
		return DeviceState{}, err
	}
	if err := checkHumidity("current_humidity", current); err != nil {
		return DeviceState{}, err
	}
	return DeviceState{
		PowerOn:          powerOn,
		Mode:             mode,
		FanSpeed:         fan,
		HumiditySetpoint: uint8(setpoint),
		CurrentHumidity:  uint8(current),
		ErrorCode:        errorCode,
	}, nil
}

// Validate checks a record that may have been built as a literal.
func (s DeviceState) Validate() error {
	_, err := NewDeviceState(s.PowerOn, s.Mode, s.FanSpeed, int(s.HumiditySetpoint), int(s.CurrentHumidity), s.ErrorCode)
	return err
}

// HasError reports a nonzero device fault code.
func (s DeviceState) HasError() bool {
	return s.ErrorCode != 0
}

func (s DeviceState) Equal(other DeviceState) bool {
	return s == other
}

func checkHumidity(field string, v int) error {
	if v < MinHumidity || v > MaxHumidity {
		return outOfRange(field, v)
	}
	return nil
}

// RawDeviceState carries untrusted integer values as read from a device
// or received from a push producer.
type RawDeviceState struct {
	PowerOn          bool `json:"power_on"`
	Mode             int  `json:"mode"`
	FanSpeed         int  `json:"fan_speed"`
	HumiditySetpoint int  `json:"humidity_setpoint"`
	CurrentHumidity  int  `json:"current_humidity"`
	ErrorCode        int  `json:"error_code"`
}

// ToState coerces the raw values into a validated DeviceState.
func (r RawDeviceState) ToState() (DeviceState, error) {
	mode, err := ParseMode(r.Mode)
	if err != nil {
		return DeviceState{}, err
	}
	fan, err := ParseFanSpeed(r.FanSpeed)
	if err != nil {
		return DeviceState{}, err
	}
	if r.ErrorCode < 0 || r.ErrorCode > 0xff {
		return DeviceState{}, outOfRange("error_code", r.ErrorCode)
	}
	return NewDeviceState(r.PowerOn, mode, fan, r.HumiditySetpoint, r.CurrentHumidity, uint8(r.ErrorCode))
}

// Raw returns the device sentinels for s.
func (s DeviceState) Raw() RawDeviceState {
	return RawDeviceState{
		PowerOn:          s.PowerOn,
		Mode:             int(s.Mode),
		FanSpeed:         int(s.FanSpeed),
		HumiditySetpoint: int(s.HumiditySetpoint),
		CurrentHumidity:  int(s.CurrentHumidity),
		ErrorCode:        int(s.ErrorCode),
	}
}

// Snapshot sources.
const (
	SourceModbus    = "modbus"
	SourcePush      = "push"
	SourceSimulator = "simulator"
	SourceControl   = "control"
)

// DeviceSnapshot is a DeviceState stamped with where and when it was observed.
type DeviceSnapshot struct {
	DeviceState
	Source     string    `json:"source,omitempty"`
	ObservedAt time.Time `json:"observed_at"`
}
