package modbus

import (
	"context"
	"errors"
	"time"

	"controlling_dehumidifier/internal/logger"
	"controlling_dehumidifier/internal/models"
)

// StateReader reads the current record from the device.
type StateReader interface {
	ReadState(ctx context.Context) (models.DeviceState, error)
}

// Sink receives every successfully decoded record.
type Sink interface {
	Ingest(ctx context.Context, st models.DeviceState, source string) (models.DeviceSnapshot, error)
}

// Poller is a clock-driven reader. One cycle per tick, no overlap, no retries.
type Poller struct {
	reader   StateReader
	sink     Sink
	interval time.Duration
	log      *logger.Logger
}

func NewPoller(reader StateReader, sink Sink, interval time.Duration, log *logger.Logger) (*Poller, error) {
	if interval <= 0 {
		return nil, errors.New("poller: interval must be > 0")
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Poller{reader: reader, sink: sink, interval: interval, log: log}, nil
}

// PollOnce performs exactly one read and hands the result to the sink.
func (p *Poller) PollOnce(ctx context.Context) error {
	st, err := p.reader.ReadState(ctx)
	if err != nil {
		return err
	}
	_, err = p.sink.Ingest(ctx, st, models.SourceModbus)
	return err
}

// Run polls until ctx is cancelled. Failed cycles are logged and skipped.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.PollOnce(ctx); err != nil && ctx.Err() == nil {
				p.log.Warnw("modbus_poll_failed", "err", err)
			}
		}
	}
}
