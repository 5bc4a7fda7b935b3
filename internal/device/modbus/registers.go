package modbus

import (
	"errors"
	"fmt"

	"controlling_dehumidifier/internal/models"
)

// Holding register layout, relative to the configured base address.
const (
	RegPower = iota
	RegMode
	RegFanSpeed
	RegSetpoint
	RegCurrentHumidity
	RegErrorCode

	// RegisterCount registers are read per poll.
	RegisterCount
)

// WritableCount is the number of leading registers a command may write.
// Current humidity and error code are owned by the device.
const WritableCount = RegSetpoint + 1

var errShortBlock = errors.New("modbus: short register block")

// EncodeState lays st out as RegisterCount registers.
func EncodeState(st models.DeviceState) []uint16 {
	regs := make([]uint16, RegisterCount)
	if st.PowerOn {
		regs[RegPower] = 1
	}
	regs[RegMode] = uint16(st.Mode)
	regs[RegFanSpeed] = uint16(st.FanSpeed)
	regs[RegSetpoint] = uint16(st.HumiditySetpoint)
	regs[RegCurrentHumidity] = uint16(st.CurrentHumidity)
	regs[RegErrorCode] = uint16(st.ErrorCode)
	return regs
}

// DecodeState validates a register block read from the device.
func DecodeState(regs []uint16) (models.DeviceState, error) {
	if len(regs) < RegisterCount {
		return models.DeviceState{}, fmt.Errorf("%w: got %d, want %d", errShortBlock, len(regs), RegisterCount)
	}
	if regs[RegPower] > 1 {
		return models.DeviceState{}, &models.FieldError{
			Field: models.FieldPowerOn,
			Value: int(regs[RegPower]),
			Err:   models.ErrInvalidEnumValue,
		}
	}
	raw := models.RawDeviceState{
		PowerOn:          regs[RegPower] == 1,
		Mode:             int(regs[RegMode]),
		FanSpeed:         int(regs[RegFanSpeed]),
		HumiditySetpoint: int(regs[RegSetpoint]),
		CurrentHumidity:  int(regs[RegCurrentHumidity]),
		ErrorCode:        int(regs[RegErrorCode]),
	}
	return raw.ToState()
}

func packRegisters(regs []uint16) []byte {
	out := make([]byte, len(regs)*2)
	for i, r := range regs {
		out[2*i] = byte(r >> 8)
		out[2*i+1] = byte(r)
	}
	return out
}

func unpackRegisters(data []byte) []uint16 {
	n := len(data) / 2
	out := make([]uint16, n)
	for i := 0; i < n; i++ {
		out[i] = uint16(data[2*i])<<8 | uint16(data[2*i+1])
	}
	return out
}
