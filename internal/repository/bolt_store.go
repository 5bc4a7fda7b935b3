package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"controlling_dehumidifier/internal/models"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"
)

const (
	stateBucket  = "state"
	eventsBucket = "events"

	currentStateKey = "current"
	eventKeyTimeLen = 20
)

// BoltStore keeps the device snapshot and event log in a bbolt file.
// Event keys are the zero-padded UnixNano timestamp followed by the event
// ID, so a cursor walks them oldest first.
type BoltStore struct {
	db *bbolt.DB
}

var (
	_ StateRepo = (*BoltStore)(nil)
	_ EventRepo = (*BoltStore)(nil)
)

// OpenBoltStore creates the file and buckets if they do not exist.
func OpenBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt database: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{stateBucket, eventsBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("create %s bucket: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

// boltSnapshot stores enum fields as their device sentinels.
type boltSnapshot struct {
	models.RawDeviceState
	Source     string    `json:"source"`
	ObservedAt time.Time `json:"observed_at"`
}

func (s *BoltStore) Save(_ context.Context, snap models.DeviceSnapshot) error {
	if err := snap.Validate(); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	observed := snap.ObservedAt.UTC()
	if snap.ObservedAt.IsZero() {
		observed = time.Now().UTC()
	}
	data, err := json.Marshal(boltSnapshot{
		RawDeviceState: snap.DeviceState.Raw(),
		Source:         snap.Source,
		ObservedAt:     observed,
	})
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(stateBucket)).Put([]byte(currentStateKey), data)
	})
}

func (s *BoltStore) Load(_ context.Context) (models.DeviceSnapshot, error) {
	var rec *boltSnapshot
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(stateBucket)).Get([]byte(currentStateKey))
		if data == nil {
			return nil
		}
		rec = &boltSnapshot{}
		return json.Unmarshal(data, rec)
	})
	if err != nil {
		return models.DeviceSnapshot{}, fmt.Errorf("load state: %w", err)
	}
	if rec == nil {
		return models.DeviceSnapshot{}, nil
	}
	st, err := rec.ToState()
	if err != nil {
		return models.DeviceSnapshot{}, fmt.Errorf("stored state is invalid: %w", err)
	}
	return models.DeviceSnapshot{DeviceState: st, Source: rec.Source, ObservedAt: rec.ObservedAt.UTC()}, nil
}

func eventKey(at time.Time, id string) []byte {
	return []byte(fmt.Sprintf("%0*d/%s", eventKeyTimeLen, at.UnixNano(), id))
}

func timeKeyPrefix(at time.Time) []byte {
	return []byte(fmt.Sprintf("%0*d", eventKeyTimeLen, at.UnixNano()))
}

func (s *BoltStore) Append(_ context.Context, e models.DeviceEvent) error {
	if e.EventID == "" {
		e.EventID = uuid.NewString()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	} else {
		e.OccurredAt = e.OccurredAt.UTC()
	}
	e.Type = strings.ToUpper(strings.TrimSpace(e.Type))

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(eventsBucket)).Put(eventKey(e.OccurredAt, e.EventID), data)
	})
}

// Prune deletes events that occurred before the cutoff. Keys are collected
// first; bbolt cursors can skip entries when deleting mid-walk.
func (s *BoltStore) Prune(_ context.Context, before time.Time) (int64, error) {
	cutoff := timeKeyPrefix(before)
	var n int64
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(eventsBucket))
		var stale [][]byte
		c := b.Cursor()
		for k, _ := c.First(); k != nil && bytes.Compare(k[:eventKeyTimeLen], cutoff) < 0; k, _ = c.Next() {
			stale = append(stale, append([]byte(nil), k...))
		}
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return fmt.Errorf("delete event %s: %w", k, err)
			}
		}
		n = int64(len(stale))
		return nil
	})
	return n, err
}

// List returns events in [from, to] (inclusive) and/or of typ, oldest first.
func (s *BoltStore) List(_ context.Context, from, to time.Time, typ string) ([]models.DeviceEvent, error) {
	typ = strings.ToUpper(strings.TrimSpace(typ))
	out := make([]models.DeviceEvent, 0, 64)

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(eventsBucket)).Cursor()

		var k, v []byte
		if from.IsZero() {
			k, v = c.First()
		} else {
			k, v = c.Seek(timeKeyPrefix(from))
		}

		var upper []byte
		if !to.IsZero() {
			upper = timeKeyPrefix(to)
		}

		for ; k != nil; k, v = c.Next() {
			if upper != nil && bytes.Compare(k[:eventKeyTimeLen], upper) > 0 {
				break
			}
			var ev models.DeviceEvent
			if err := json.Unmarshal(v, &ev); err != nil {
				return fmt.Errorf("decode event %s: %w", k, err)
			}
			if typ != "" && ev.Type != typ {
				continue
			}
			ev.OccurredAt = ev.OccurredAt.UTC()
			out = append(out, ev)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
