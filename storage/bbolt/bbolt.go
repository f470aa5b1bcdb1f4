// Package bbolt provides a BBolt-backed audit event store.
package bbolt

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/jmcleod/keyrelay/storage"
)

var bucketAuditEvents = []byte("audit_events")

// Store implements storage.AuditStore backed by a BBolt database.
type Store struct {
	db *bbolt.DB
}

var _ storage.AuditStore = (*Store)(nil)

// NewStore returns a Store backed by the given BBolt database.
func NewStore(db *bbolt.DB) (*Store, error) {
	err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketAuditEvents)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("creating audit bucket: %w", err)
	}
	return &Store{db: db}, nil
}

// NewStoreFromFile opens a BBolt database at the given path and returns
// a new Store.
func NewStoreFromFile(path string, options *bbolt.Options) (*Store, error) {
	db, err := bbolt.Open(path, 0600, options)
	if err != nil {
		return nil, fmt.Errorf("opening bbolt db: %w", err)
	}
	return NewStore(db)
}

// Close closes the underlying BBolt database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Append(event storage.AuditEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling audit event: %w", err)
	}
	// Keys sort chronologically; the event ID breaks ties for events
	// recorded in the same nanosecond.
	key := event.CreatedAt.UTC().Format(time.RFC3339Nano) + ":" + event.ID
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketAuditEvents).Put([]byte(key), data)
	})
}

func (s *Store) List() ([]storage.AuditEvent, error) {
	var events []storage.AuditEvent
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketAuditEvents).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var event storage.AuditEvent
			if err := json.Unmarshal(v, &event); err != nil {
				return fmt.Errorf("unmarshaling audit event %s: %w", k, err)
			}
			events = append(events, event)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}
