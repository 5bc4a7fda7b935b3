package service

import (
	"context"
	"time"

	"controlling_dehumidifier/internal/logger"
	"controlling_dehumidifier/internal/models"
	"controlling_dehumidifier/internal/repository"
)

type Authorization interface {
	SignUp(ctx context.Context, username, password string) (int, error)
	GenerateToken(ctx context.Context, username, password string) (string, error)
	ParseToken(accessToken string) (int, error)
}

// Control issues commands to the unit: power, mode and fan speed.
type Control interface {
	PowerOn(ctx context.Context) error
	PowerOff(ctx context.Context) error
	SetMode(ctx context.Context, p ModeParams) error
	SetFanSpeed(ctx context.Context, fan models.FanSpeed) error
}

// Monitoring exposes the latest snapshot.
type Monitoring interface {
	GetState(ctx context.Context) (models.DeviceSnapshot, error)
}

// Ingestion is the single entry point for fresh device status.
type Ingestion interface {
	Ingest(ctx context.Context, st models.DeviceState, source string) (models.DeviceSnapshot, error)
}

// EventLog exposes the append-only device log with filtering.
type EventLog interface {
	List(ctx context.Context, f LogFilter) ([]models.DeviceEvent, error)
}

// Retention keeps the event log bounded.
type Retention interface {
	RunRetention(ctx context.Context, maxAge, interval time.Duration)
}

// Simulator stands in for a physical unit. Stop it by cancelling ctx.
type Simulator interface {
	Run(ctx context.Context, tick time.Duration)
}

// StatePublisher receives every stored snapshot by value.
type StatePublisher interface {
	PublishState(ctx context.Context, snap models.DeviceSnapshot) error
}

// DeviceWriter pushes a commanded state to the physical unit.
type DeviceWriter interface {
	WriteState(ctx context.Context, st models.DeviceState) error
}

type Service struct {
	Control
	Monitoring
	Ingestion
	EventLog
	Simulator
	Authorization

	Retention Retention
}

// Deps carries the optional collaborators of the service layer.
type Deps struct {
	Log        *logger.Logger
	Writer     DeviceWriter // nil: commands are only persisted
	Publishers []StatePublisher
	Auth       AuthSettings
}

func NewService(repos *repository.Repository, deps Deps) *Service {
	log := deps.Log
	if log == nil {
		log = logger.Nop()
	}
	ingest := NewIngestionService(repos.StateRepo, repos.EventRepo, log.Named("ingest"), deps.Publishers...)
	eventLog := NewEventLogService(repos.EventRepo, log.Named("eventlog"))
	return &Service{
		Control:       NewControlService(ingest, deps.Writer),
		Monitoring:    NewMonitoringService(repos.StateRepo),
		Ingestion:     ingest,
		EventLog:      eventLog,
		Simulator:     NewSimulatorService(ingest, log.Named("simulator")),
		Authorization: NewAuthService(repos.Auth, deps.Auth),
		Retention:     eventLog,
	}
}
