package repository

import (
	"context"
	"database/sql"
	"time"

	"controlling_dehumidifier/internal/models"
)

type Authorization interface {
	Create(ctx context.Context, username, hash string) (int, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
}

// StateRepo keeps the latest device snapshot. Load returns a zero
// snapshot (ObservedAt.IsZero()) when nothing has been stored yet.
type StateRepo interface {
	Save(ctx context.Context, s models.DeviceSnapshot) error
	Load(ctx context.Context) (models.DeviceSnapshot, error)
}

// EventRepo is the append-only device log. Prune drops events that
// occurred strictly before the cutoff and reports how many went.
type EventRepo interface {
	Append(ctx context.Context, e models.DeviceEvent) error
	List(ctx context.Context, from, to time.Time, typ string) ([]models.DeviceEvent, error)
	Prune(ctx context.Context, before time.Time) (int64, error)
}

type Repository struct {
	StateRepo StateRepo
	EventRepo EventRepo
	Auth      Authorization
}

// Option overrides a default sqlite-backed repository.
type Option func(*Repository)

// WithBolt moves the device snapshot and event log into a bbolt store.
// Users stay in sqlite.
func WithBolt(store *BoltStore) Option {
	return func(r *Repository) {
		r.StateRepo = store
		r.EventRepo = store
	}
}

func NewRepository(db *sql.DB, opts ...Option) *Repository {
	r := &Repository{
		StateRepo: NewStateSQLite(db),
		EventRepo: NewEventSQLite(db),
		Auth:      NewUserRepository(db),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}
