package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"controlling_dehumidifier/internal/logger"
	"controlling_dehumidifier/internal/models"
	"controlling_dehumidifier/internal/repository"
)

var (
	ErrInvalidTimeRange = errors.New("invalid time range: from must be <= to")
	ErrUnknownEventType = errors.New("unknown event type")
	ErrInvalidLimit     = errors.New("limit must not be negative")
)

// MaxLogLimit caps how many events a single query may return.
const MaxLogLimit = 1000

// EventLogService answers read queries against the device event log and
// enforces its retention window.
type EventLogService struct {
	eventRepo repository.EventRepo
	log       *logger.Logger
	now       func() time.Time
}

func NewEventLogService(eventRepo repository.EventRepo, log *logger.Logger) *EventLogService {
	if log == nil {
		log = logger.Nop()
	}
	return &EventLogService{eventRepo: eventRepo, log: log, now: time.Now}
}

// List returns matching events oldest first.
func (s *EventLogService) List(ctx context.Context, f LogFilter) ([]models.DeviceEvent, error) {
	f, err := f.normalize()
	if err != nil {
		return nil, err
	}
	events, err := s.eventRepo.List(ctx, f.From, f.To, f.Type)
	if err != nil {
		return nil, err
	}
	return tail(events, f.Limit), nil
}

// PruneOlderThan drops events older than maxAge. A non-positive maxAge
// keeps everything.
func (s *EventLogService) PruneOlderThan(ctx context.Context, maxAge time.Duration) (int64, error) {
	if maxAge <= 0 {
		return 0, nil
	}
	return s.eventRepo.Prune(ctx, s.now().UTC().Add(-maxAge))
}

// RunRetention prunes once immediately and then every interval until ctx
// is cancelled.
func (s *EventLogService) RunRetention(ctx context.Context, maxAge, interval time.Duration) {
	if maxAge <= 0 || interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		s.pruneAndLog(ctx, maxAge)
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

func (s *EventLogService) pruneAndLog(ctx context.Context, maxAge time.Duration) {
	n, err := s.PruneOlderThan(ctx, maxAge)
	if err != nil {
		s.log.Warnw("event_prune_failed", "err", err)
		return
	}
	if n > 0 {
		s.log.Infow("events_pruned", "count", n, "max_age", maxAge.String())
	}
}

// normalize converts bounds to UTC, canonicalises the type name and
// rejects filters the repository cannot answer meaningfully.
func (f LogFilter) normalize() (LogFilter, error) {
	out := LogFilter{
		From:  utcOrZero(f.From),
		To:    utcOrZero(f.To),
		Type:  strings.ToUpper(strings.TrimSpace(f.Type)),
		Limit: f.Limit,
	}
	if !out.From.IsZero() && !out.To.IsZero() && out.From.After(out.To) {
		return LogFilter{}, ErrInvalidTimeRange
	}
	if out.Type != "" && !models.IsEventType(out.Type) {
		return LogFilter{}, fmt.Errorf("%w: %q", ErrUnknownEventType, out.Type)
	}
	if out.Limit < 0 {
		return LogFilter{}, ErrInvalidLimit
	}
	if out.Limit > MaxLogLimit {
		out.Limit = MaxLogLimit
	}
	return out, nil
}

func utcOrZero(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}

// tail keeps the newest n events of an oldest-first slice.
func tail(events []models.DeviceEvent, n int) []models.DeviceEvent {
	if n <= 0 || len(events) <= n {
		return events
	}
	return events[len(events)-n:]
}
