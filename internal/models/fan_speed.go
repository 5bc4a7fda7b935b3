package models

import (
	"fmt"
	"strings"
)

// FanSpeed is the discrete fan level reported by the unit.
// The underlying values are the device's own sentinels.
type FanSpeed uint8

const (
	FanSpeedLow    FanSpeed = 40
	FanSpeedMedium FanSpeed = 60
	FanSpeedHigh   FanSpeed = 80
)

// ParseFanSpeed converts a raw device value into a FanSpeed.
func ParseFanSpeed(v int) (FanSpeed, error) {
	f := FanSpeed(v)
	if v < 0 || v > 0xff || !f.IsValid() {
		return 0, invalidEnum("fan_speed", v)
	}
	return f, nil
}

// FanSpeedFromString accepts LOW, MEDIUM or HIGH in any case.
func FanSpeedFromString(s string) (FanSpeed, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "LOW":
		return FanSpeedLow, nil
	case "MEDIUM":
		return FanSpeedMedium, nil
	case "HIGH":
		return FanSpeedHigh, nil
	default:
		return 0, fmt.Errorf("fan_speed %q: %w", s, ErrInvalidEnumValue)
	}
}

func (f FanSpeed) IsValid() bool {
	switch f {
	case FanSpeedLow, FanSpeedMedium, FanSpeedHigh:
		return true
	}
	return false
}

func (f FanSpeed) String() string {
	switch f {
	case FanSpeedLow:
		return "LOW"
	case FanSpeedMedium:
		return "MEDIUM"
	case FanSpeedHigh:
		return "HIGH"
	default:
		return fmt.Sprintf("FanSpeed(%d)", uint8(f))
	}
}

func (f FanSpeed) MarshalText() ([]byte, error) {
	if !f.IsValid() {
		return nil, invalidEnum("fan_speed", int(f))
	}
	return []byte(f.String()), nil
}

func (f *FanSpeed) UnmarshalText(b []byte) error {
	v, err := FanSpeedFromString(string(b))
	if err != nil {
		return err
	}
	*f = v
	return nil
}
