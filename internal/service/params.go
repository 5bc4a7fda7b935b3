package service

import (
	"time"

	"controlling_dehumidifier/internal/models"
)

type ModeParams struct {
	Mode models.DehumidifierMode
	// HumiditySetpoint is required for SETPOINT mode and optional otherwise.
	HumiditySetpoint *int
}

// LogFilter filters the event log by time range and type.
type LogFilter struct {
	From time.Time // inclusive; zero means no lower bound
	To   time.Time // inclusive; zero means no upper bound
	Type string
	// Limit keeps only the newest Limit events; zero means all.
	Limit int
}
