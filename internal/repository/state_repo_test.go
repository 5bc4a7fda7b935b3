package repository_test

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"controlling_dehumidifier/internal/models"
	"controlling_dehumidifier/internal/repository"
	"controlling_dehumidifier/internal/repository/db"

	"github.com/DATA-DOG/go-sqlmock"
)

var stateCols = []string{"power_on", "mode", "fan_speed", "humidity_setpoint", "current_humidity", "error_code", "source", "observed_at"}

const selectStateFragment = "SELECT power_on, mode, fan_speed, humidity_setpoint, current_humidity, error_code, source, observed_at"

func sampleSnapshot() models.DeviceSnapshot {
	return models.DeviceSnapshot{
		DeviceState: models.DeviceState{
			PowerOn:          true,
			Mode:             models.ModeSetpoint,
			FanSpeed:         models.FanSpeedMedium,
			HumiditySetpoint: 55,
			CurrentHumidity:  62,
		},
		Source: models.SourcePush,
	}
}

func TestStateSQLite_Save_StoresSentinelsAndUTCNow_WhenTimeZero(t *testing.T) {
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer conn.Close()

	repo := repository.NewStateSQLite(conn)
	snap := sampleSnapshot()

	isUTCRecent := sqlmockArgumentFunc(func(v driver.Value) bool {
		tm, ok := v.(time.Time)
		if !ok || tm.Location() != time.UTC {
			return false
		}
		now := time.Now().UTC()
		return !tm.Before(now.Add(-5*time.Second)) && !tm.After(now.Add(5*time.Second))
	})

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO dehumidifier_state")).
		WithArgs(1, true, 1, 60, 55, 62, 0, models.SourcePush, isUTCRecent).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.Save(context.Background(), snap); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestStateSQLite_Save_ConvertsGivenTimeToUTC(t *testing.T) {
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer conn.Close()

	repo := repository.NewStateSQLite(conn)

	original := time.Date(2023, 10, 5, 12, 34, 56, 0, time.FixedZone("JST", 9*3600))
	snap := sampleSnapshot()
	snap.ObservedAt = original
	snap.ErrorCode = 17

	isExactUTC := sqlmockArgumentFunc(func(v driver.Value) bool {
		tm, ok := v.(time.Time)
		return ok && tm.Equal(original) && tm.Location() == time.UTC
	})

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO dehumidifier_state")).
		WithArgs(1, true, 1, 60, 55, 62, 17, models.SourcePush, isExactUTC).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.Save(context.Background(), snap); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestStateSQLite_Save_RejectsInvalidRecordWithoutTouchingDB(t *testing.T) {
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer conn.Close()

	repo := repository.NewStateSQLite(conn)
	snap := sampleSnapshot()
	snap.FanSpeed = models.FanSpeed(99)

	err = repo.Save(context.Background(), snap)
	if !errors.Is(err, models.ErrInvalidEnumValue) {
		t.Fatalf("Save() error = %v, want ErrInvalidEnumValue", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unexpected db calls: %v", err)
	}
}

func TestStateSQLite_Save_ExecErrorIsPropagated(t *testing.T) {
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer conn.Close()

	repo := repository.NewStateSQLite(conn)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO dehumidifier_state")).
		WillReturnError(errors.New("db down"))

	if err := repo.Save(context.Background(), sampleSnapshot()); err == nil {
		t.Fatalf("Save() expected error, got nil")
	}
}

func TestStateSQLite_Load_NoRowsReturnsZeroValue(t *testing.T) {
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer conn.Close()

	repo := repository.NewStateSQLite(conn)

	mock.ExpectQuery(regexp.QuoteMeta(selectStateFragment)).
		WithArgs(1).
		WillReturnError(sql.ErrNoRows)

	got, err := repo.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if got != (models.DeviceSnapshot{}) {
		t.Fatalf("Load() expected zero snapshot, got %+v", got)
	}
}

func TestStateSQLite_Load_DecodesSentinelsAndUTC(t *testing.T) {
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer conn.Close()

	repo := repository.NewStateSQLite(conn)

	nonUTC := time.Date(2024, 2, 1, 8, 30, 0, 0, time.FixedZone("EST", -5*3600))
	rows := sqlmock.NewRows(stateCols).
		AddRow(true, 4, 80, 40, 71, 3, models.SourceModbus, nonUTC)

	mock.ExpectQuery(regexp.QuoteMeta(selectStateFragment)).
		WithArgs(1).
		WillReturnRows(rows)

	got, err := repo.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}

	want := models.DeviceState{
		PowerOn:          true,
		Mode:             models.ModeClothesDrying,
		FanSpeed:         models.FanSpeedHigh,
		HumiditySetpoint: 40,
		CurrentHumidity:  71,
		ErrorCode:        3,
	}
	if got.DeviceState != want {
		t.Fatalf("Load() state = %+v, want %+v", got.DeviceState, want)
	}
	if got.Source != models.SourceModbus {
		t.Fatalf("Load() source = %q", got.Source)
	}
	if got.ObservedAt.Location() != time.UTC || !got.ObservedAt.Equal(nonUTC) {
		t.Fatalf("Load() ObservedAt = %v", got.ObservedAt)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestStateSQLite_Load_InvalidStoredEnumReturnsError(t *testing.T) {
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer conn.Close()

	repo := repository.NewStateSQLite(conn)

	rows := sqlmock.NewRows(stateCols).
		AddRow(false, 9, 60, 50, 50, 0, nil, time.Now())

	mock.ExpectQuery(regexp.QuoteMeta(selectStateFragment)).
		WithArgs(1).
		WillReturnRows(rows)

	_, err = repo.Load(context.Background())
	if !errors.Is(err, models.ErrInvalidEnumValue) {
		t.Fatalf("Load() error = %v, want ErrInvalidEnumValue", err)
	}
}

func TestStateSQLite_SaveLoad_SQLiteRoundTrip(t *testing.T) {
	conn, err := db.InitDB(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("InitDB() error = %v", err)
	}
	defer conn.Close()

	repo := repository.NewStateSQLite(conn)
	ctx := context.Background()

	empty, err := repo.Load(ctx)
	if err != nil || !empty.ObservedAt.IsZero() {
		t.Fatalf("expected empty state, got %+v err=%v", empty, err)
	}

	first := sampleSnapshot()
	first.ObservedAt = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	if err := repo.Save(ctx, first); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	second := first
	second.Mode = models.ModeSmart
	second.CurrentHumidity = 48
	second.ObservedAt = first.ObservedAt.Add(time.Minute)
	if err := repo.Save(ctx, second); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := repo.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.DeviceState != second.DeviceState || !got.ObservedAt.Equal(second.ObservedAt) {
		t.Fatalf("Load() = %+v, want %+v", got, second)
	}
}

type sqlmockArgumentFunc func(v driver.Value) bool

func (f sqlmockArgumentFunc) Match(v driver.Value) bool {
	return f(v)
}
