package service

import (
	"context"
	"math"
	"time"

	"controlling_dehumidifier/internal/logger"
	"controlling_dehumidifier/internal/models"
)

// Simulation constants, in %RH and %RH per second.
const (
	AmbientHumidity      = 65.0
	ContinuousFloor      = 30.0 // continuous mode dries until this level
	SmartTarget          = 50.0
	ClothesDryingFloor   = 35.0
	DryRatePerSec        = 0.05 // at medium fan speed
	RiseRatePerSec       = 0.02 // moisture creeping back toward ambient
	clothesDryingBoost   = 1.5
	referenceFanSpeedPct = float64(models.FanSpeedMedium)
)

// SimulatorService plays the part of a physical unit: it evolves the
// humidity reading from the stored command state and feeds the result
// through ingestion.
type SimulatorService struct {
	ingest *IngestionService
	log    *logger.Logger

	level    float64 // fractional humidity carried between ticks
	lastTick time.Time
}

func NewSimulatorService(ingest *IngestionService, log *logger.Logger) *SimulatorService {
	if log == nil {
		log = logger.Nop()
	}
	return &SimulatorService{ingest: ingest, log: log, level: math.NaN()}
}

// Run ticks at the given interval until ctx is cancelled.
func (s *SimulatorService) Run(ctx context.Context, tick time.Duration) {
	t := time.NewTicker(tick)
	defer t.Stop()
	s.lastTick = time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			elapsed := now.Sub(s.lastTick).Seconds()
			s.lastTick = now
			if err := s.step(ctx, elapsed); err != nil {
				s.log.Warnw("simulator_step_failed", "err", err)
			}
		}
	}
}

// step advances the simulated reading by elapsed seconds.
func (s *SimulatorService) step(ctx context.Context, elapsed float64) error {
	_, err := s.ingest.update(ctx, models.SourceSimulator, func(prev models.DeviceSnapshot) (models.DeviceState, error) {
		// resync after an external producer changed the reading
		if math.IsNaN(s.level) || math.Round(s.level) != float64(prev.CurrentHumidity) {
			s.level = float64(prev.CurrentHumidity)
		}
		s.level = nextHumidity(s.level, prev.DeviceState, elapsed)

		next := prev.DeviceState
		next.CurrentHumidity = uint8(math.Round(s.level))
		if next == prev.DeviceState {
			return models.DeviceState{}, errUnchanged
		}
		return next, nil
	})
	return err
}

// targetHumidity is the level the unit dries toward in its current mode.
func targetHumidity(st models.DeviceState) float64 {
	switch st.Mode {
	case models.ModeSetpoint:
		return float64(st.HumiditySetpoint)
	case models.ModeContinuous:
		return ContinuousFloor
	case models.ModeSmart:
		return SmartTarget
	case models.ModeClothesDrying:
		return ClothesDryingFloor
	default:
		return AmbientHumidity
	}
}

// dryRate scales the drying rate with the fan level.
func dryRate(st models.DeviceState) float64 {
	rate := DryRatePerSec * float64(st.FanSpeed) / referenceFanSpeedPct
	if st.Mode == models.ModeClothesDrying {
		rate *= clothesDryingBoost
	}
	return rate
}

// nextHumidity moves level toward the active target. A unit that is off,
// or already below its target, lets humidity creep back toward ambient.
func nextHumidity(level float64, st models.DeviceState, elapsed float64) float64 {
	if elapsed <= 0 {
		return level
	}
	target := targetHumidity(st)
	if st.PowerOn && level > target {
		return math.Max(level-dryRate(st)*elapsed, target)
	}

	ceiling := AmbientHumidity
	if st.PowerOn {
		ceiling = math.Min(target, AmbientHumidity)
	}
	if level < ceiling {
		return math.Min(level+RiseRatePerSec*elapsed, ceiling)
	}
	if !st.PowerOn && level > AmbientHumidity {
		return math.Max(level-RiseRatePerSec*elapsed, AmbientHumidity)
	}
	return clampHumidity(level)
}

func clampHumidity(v float64) float64 {
	return math.Min(math.Max(v, models.MinHumidity), models.MaxHumidity)
}
