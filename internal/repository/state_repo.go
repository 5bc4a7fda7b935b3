package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"controlling_dehumidifier/internal/models"
)

type StateSQLite struct {
	db *sql.DB
}

func NewStateSQLite(db *sql.DB) *StateSQLite {
	return &StateSQLite{db: db}
}

const (
	stateRowID = 1

	upsertStateSQL = `
		INSERT INTO dehumidifier_state (id, power_on, mode, fan_speed, humidity_setpoint, current_humidity, error_code, source, observed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			power_on=excluded.power_on,
			mode=excluded.mode,
			fan_speed=excluded.fan_speed,
			humidity_setpoint=excluded.humidity_setpoint,
			current_humidity=excluded.current_humidity,
			error_code=excluded.error_code,
			source=excluded.source,
			observed_at=excluded.observed_at
	`

	selectStateSQL = `
		SELECT power_on, mode, fan_speed, humidity_setpoint, current_humidity, error_code, source, observed_at
		FROM dehumidifier_state WHERE id=?
	`
)

// Save replaces the stored snapshot wholesale. Enum fields are stored as
// the device sentinels (mode 1..4, fan 40/60/80).
func (r *StateSQLite) Save(ctx context.Context, s models.DeviceSnapshot) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("save state: %w", err)
	}

	observed := s.ObservedAt
	if observed.IsZero() {
		observed = time.Now().UTC()
	} else {
		observed = observed.UTC()
	}

	_, err := r.db.ExecContext(ctx, upsertStateSQL,
		stateRowID,
		s.PowerOn,
		int(s.Mode),
		int(s.FanSpeed),
		int(s.HumiditySetpoint),
		int(s.CurrentHumidity),
		int(s.ErrorCode),
		s.Source,
		observed,
	)
	return err
}

// Load fetches the single stored snapshot. Rows that no longer satisfy the
// record invariants are reported as errors rather than returned.
func (r *StateSQLite) Load(ctx context.Context) (models.DeviceSnapshot, error) {
	row := r.db.QueryRowContext(ctx, selectStateSQL, stateRowID)

	var (
		raw      models.RawDeviceState
		source   sql.NullString
		observed time.Time
	)
	if err := row.Scan(
		&raw.PowerOn,
		&raw.Mode,
		&raw.FanSpeed,
		&raw.HumiditySetpoint,
		&raw.CurrentHumidity,
		&raw.ErrorCode,
		&source,
		&observed,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.DeviceSnapshot{}, nil
		}
		return models.DeviceSnapshot{}, err
	}

	st, err := raw.ToState()
	if err != nil {
		return models.DeviceSnapshot{}, fmt.Errorf("stored state is invalid: %w", err)
	}

	return models.DeviceSnapshot{
		DeviceState: st,
		Source:      source.String,
		ObservedAt:  observed.UTC(),
	}, nil
}
