package service

import (
	"context"
	"errors"
	"fmt"

	"controlling_dehumidifier/internal/models"
)

// Command preconditions.
var (
	ErrPoweredOff       = errors.New("dehumidifier is powered off, power it on first")
	ErrSetpointRequired = errors.New("humidity_setpoint is required for SETPOINT mode")
)

// ControlService turns commands into new device states. Each command is
// written to the device (when a writer is configured) before it is stored.
type ControlService struct {
	ingest *IngestionService
	writer DeviceWriter
}

func NewControlService(ingest *IngestionService, writer DeviceWriter) *ControlService {
	return &ControlService{ingest: ingest, writer: writer}
}

func (s *ControlService) PowerOn(ctx context.Context) error {
	return s.apply(ctx, func(st *models.DeviceState) error {
		st.PowerOn = true
		return nil
	})
}

func (s *ControlService) PowerOff(ctx context.Context) error {
	return s.apply(ctx, func(st *models.DeviceState) error {
		st.PowerOn = false
		return nil
	})
}

// SetMode switches the operating mode. SETPOINT needs a setpoint; other
// modes keep the stored one unless a new value is supplied.
func (s *ControlService) SetMode(ctx context.Context, p ModeParams) error {
	if !p.Mode.IsValid() {
		return &models.FieldError{Field: models.FieldMode, Value: int(p.Mode), Err: models.ErrInvalidEnumValue}
	}
	if p.Mode == models.ModeSetpoint && p.HumiditySetpoint == nil {
		return ErrSetpointRequired
	}

	return s.apply(ctx, func(st *models.DeviceState) error {
		if !st.PowerOn {
			return ErrPoweredOff
		}
		setpoint := int(st.HumiditySetpoint)
		if p.HumiditySetpoint != nil {
			setpoint = *p.HumiditySetpoint
		}
		next, err := models.NewDeviceState(st.PowerOn, p.Mode, st.FanSpeed, setpoint, int(st.CurrentHumidity), st.ErrorCode)
		if err != nil {
			return err
		}
		*st = next
		return nil
	})
}

func (s *ControlService) SetFanSpeed(ctx context.Context, fan models.FanSpeed) error {
	if !fan.IsValid() {
		return &models.FieldError{Field: models.FieldFanSpeed, Value: int(fan), Err: models.ErrInvalidEnumValue}
	}
	return s.apply(ctx, func(st *models.DeviceState) error {
		if !st.PowerOn {
			return ErrPoweredOff
		}
		st.FanSpeed = fan
		return nil
	})
}

func (s *ControlService) apply(ctx context.Context, mutate func(st *models.DeviceState) error) error {
	_, err := s.ingest.update(ctx, models.SourceControl, func(prev models.DeviceSnapshot) (models.DeviceState, error) {
		next := prev.DeviceState
		if err := mutate(&next); err != nil {
			return models.DeviceState{}, err
		}
		if next == prev.DeviceState {
			return models.DeviceState{}, errUnchanged
		}
		if s.writer != nil {
			if err := s.writer.WriteState(ctx, next); err != nil {
				return models.DeviceState{}, fmt.Errorf("write to device: %w", err)
			}
		}
		return next, nil
	})
	return err
}
