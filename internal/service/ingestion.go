package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"controlling_dehumidifier/internal/logger"
	"controlling_dehumidifier/internal/models"
	"controlling_dehumidifier/internal/repository"

	"github.com/google/uuid"
)

// errUnchanged lets an update function skip the write.
var errUnchanged = errors.New("state unchanged")

// IngestionService serialises every write of the device snapshot, turns
// diffs into log events and fans the stored snapshot out to publishers.
type IngestionService struct {
	mu         sync.Mutex
	stateRepo  repository.StateRepo
	eventRepo  repository.EventRepo
	publishers []StatePublisher
	log        *logger.Logger
}

func NewIngestionService(stateRepo repository.StateRepo, eventRepo repository.EventRepo, log *logger.Logger, publishers ...StatePublisher) *IngestionService {
	if log == nil {
		log = logger.Nop()
	}
	return &IngestionService{
		stateRepo:  stateRepo,
		eventRepo:  eventRepo,
		publishers: publishers,
		log:        log,
	}
}

// Ingest replaces the stored snapshot with st.
func (s *IngestionService) Ingest(ctx context.Context, st models.DeviceState, source string) (models.DeviceSnapshot, error) {
	if err := st.Validate(); err != nil {
		return models.DeviceSnapshot{}, err
	}
	return s.update(ctx, source, func(models.DeviceSnapshot) (models.DeviceState, error) {
		return st, nil
	})
}

// update runs a read-modify-write cycle under the ingestion lock. When no
// snapshot is stored yet fn sees the baseline state.
func (s *IngestionService) update(ctx context.Context, source string, fn func(prev models.DeviceSnapshot) (models.DeviceState, error)) (models.DeviceSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, err := s.stateRepo.Load(ctx)
	if err != nil {
		return models.DeviceSnapshot{}, fmt.Errorf("load state: %w", err)
	}
	if prev.ObservedAt.IsZero() {
		prev = baselineSnapshot()
	}

	next, err := fn(prev)
	if errors.Is(err, errUnchanged) {
		return prev, nil
	}
	if err != nil {
		return models.DeviceSnapshot{}, err
	}
	if err := next.Validate(); err != nil {
		return models.DeviceSnapshot{}, err
	}

	now := time.Now().UTC()
	snap := models.DeviceSnapshot{DeviceState: next, Source: source, ObservedAt: now}
	if err := s.stateRepo.Save(ctx, snap); err != nil {
		return models.DeviceSnapshot{}, fmt.Errorf("save state: %w", err)
	}

	// The saved snapshot is the commit point. A failed event append is
	// logged and the remaining events and publishers still run.
	for _, ev := range eventsFor(prev.DeviceState, next, source, now) {
		if err := s.eventRepo.Append(ctx, ev); err != nil {
			s.log.Errorw("event_append_failed", "err", err, "type", ev.Type, "event_id", ev.EventID, "source", source)
		}
	}

	s.publish(ctx, snap)
	return snap, nil
}

// publish is best effort: a broken publisher never fails ingestion.
func (s *IngestionService) publish(ctx context.Context, snap models.DeviceSnapshot) {
	for _, p := range s.publishers {
		if err := p.PublishState(ctx, snap); err != nil {
			s.log.Warnw("publish_state_failed", "err", err, "source", snap.Source)
		}
	}
}

// eventsFor maps field changes to log events. Humidity readings are not events.
func eventsFor(prev, next models.DeviceState, source string, at time.Time) []models.DeviceEvent {
	var out []models.DeviceEvent
	add := func(typ, desc string, meta map[string]any) {
		meta["source"] = source
		out = append(out, models.DeviceEvent{
			EventID:     uuid.NewString(),
			OccurredAt:  at,
			Type:        typ,
			Description: desc,
			Metadata:    meta,
		})
	}

	for _, ch := range next.Diff(prev) {
		switch ch.Field {
		case models.FieldPowerOn:
			if next.PowerOn {
				add(models.EventPowerOn, "Dehumidifier powered on", map[string]any{})
			} else {
				add(models.EventPowerOff, "Dehumidifier powered off", map[string]any{})
			}
		case models.FieldMode:
			add(models.EventModeChange, "Mode changed to "+next.Mode.String(),
				map[string]any{"from": prev.Mode.String(), "to": next.Mode.String()})
		case models.FieldFanSpeed:
			add(models.EventFanSpeedChange, "Fan speed changed to "+next.FanSpeed.String(),
				map[string]any{"from": prev.FanSpeed.String(), "to": next.FanSpeed.String()})
		case models.FieldHumiditySetpoint:
			add(models.EventSetpointChange, fmt.Sprintf("Humidity setpoint changed to %d%%", next.HumiditySetpoint),
				map[string]any{"from": prev.HumiditySetpoint, "to": next.HumiditySetpoint})
		case models.FieldErrorCode:
			if next.HasError() {
				add(models.EventError, fmt.Sprintf("Device reported error code %d", next.ErrorCode),
					map[string]any{"error_code": next.ErrorCode, "previous_error_code": prev.ErrorCode})
			} else {
				add(models.EventErrorCleared, "Device error cleared",
					map[string]any{"previous_error_code": prev.ErrorCode})
			}
		}
	}
	return out
}

// Values reported before the unit has ever been observed.
const (
	defaultHumiditySetpoint = 50
	defaultCurrentHumidity  = 50
)

func baselineState() models.DeviceState {
	return models.DeviceState{
		PowerOn:          false,
		Mode:             models.ModeSetpoint,
		FanSpeed:         models.FanSpeedMedium,
		HumiditySetpoint: defaultHumiditySetpoint,
		CurrentHumidity:  defaultCurrentHumidity,
		ErrorCode:        0,
	}
}

func baselineSnapshot() models.DeviceSnapshot {
	return models.DeviceSnapshot{DeviceState: baselineState()}
}
