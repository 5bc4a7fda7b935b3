package service

import (
	"context"
	"time"

	"controlling_dehumidifier/internal/models"
	"controlling_dehumidifier/internal/repository"
)

type MonitoringService struct {
	stateRepo repository.StateRepo
}

func NewMonitoringService(stateRepo repository.StateRepo) *MonitoringService {
	return &MonitoringService{stateRepo: stateRepo}
}

// GetState returns the latest stored snapshot, or the baseline snapshot
// stamped with the current time when the unit has not been observed yet.
func (s *MonitoringService) GetState(ctx context.Context) (models.DeviceSnapshot, error) {
	snap, err := s.stateRepo.Load(ctx)
	if err != nil {
		return models.DeviceSnapshot{}, err
	}
	if snap.ObservedAt.IsZero() {
		base := baselineSnapshot()
		base.ObservedAt = time.Now().UTC()
		return base, nil
	}
	snap.ObservedAt = snap.ObservedAt.UTC()
	return snap, nil
}
