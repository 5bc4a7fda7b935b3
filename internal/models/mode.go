package models

import (
	"fmt"
	"strings"
)

// DehumidifierMode is the operating mode of the unit.
type DehumidifierMode uint8

const (
	// ModeSetpoint targets HumiditySetpoint.
	ModeSetpoint DehumidifierMode = 1
	// ModeContinuous runs without a humidity target.
	ModeContinuous DehumidifierMode = 2
	// ModeSmart lets the unit pick its own target.
	ModeSmart DehumidifierMode = 3
	// ModeClothesDrying is the laundry assist mode.
	ModeClothesDrying DehumidifierMode = 4
)

var modeNames = map[DehumidifierMode]string{
	ModeSetpoint:      "SETPOINT",
	ModeContinuous:    "CONTINUOUS",
	ModeSmart:         "SMART",
	ModeClothesDrying: "CLOTHES_DRYING",
}

// ParseMode converts a raw device value into a DehumidifierMode.
func ParseMode(v int) (DehumidifierMode, error) {
	m := DehumidifierMode(v)
	if v < 0 || v > 0xff || !m.IsValid() {
		return 0, invalidEnum("mode", v)
	}
	return m, nil
}

// ModeFromString accepts the names returned by String, case-insensitive.
func ModeFromString(s string) (DehumidifierMode, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	for m, n := range modeNames {
		if n == name {
			return m, nil
		}
	}
	return 0, fmt.Errorf("mode %q: %w", s, ErrInvalidEnumValue)
}

func (m DehumidifierMode) IsValid() bool {
	_, ok := modeNames[m]
	return ok
}

func (m DehumidifierMode) String() string {
	if n, ok := modeNames[m]; ok {
		return n
	}
	return fmt.Sprintf("DehumidifierMode(%d)", uint8(m))
}

func (m DehumidifierMode) MarshalText() ([]byte, error) {
	if !m.IsValid() {
		return nil, invalidEnum("mode", int(m))
	}
	return []byte(m.String()), nil
}

func (m *DehumidifierMode) UnmarshalText(b []byte) error {
	v, err := ModeFromString(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}
