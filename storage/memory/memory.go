// Package memory provides a thread-safe in-memory implementation of
// storage.AuditStore. Suitable for testing and single-process demos.
package memory

import (
	"sync"

	"github.com/jmcleod/keyrelay/storage"
)

// Store is a thread-safe in-memory audit event store.
type Store struct {
	mu     sync.RWMutex
	events []storage.AuditEvent
}

var _ storage.AuditStore = (*Store)(nil)

// NewStore creates a new empty in-memory Store.
func NewStore() *Store {
	return &Store{}
}

func (s *Store) Append(event storage.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *Store) List() ([]storage.AuditEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	// Newest first.
	out := make([]storage.AuditEvent, 0, len(s.events))
	for i := len(s.events) - 1; i >= 0; i-- {
		out = append(out, s.events[i])
	}
	return out, nil
}

func (s *Store) Close() error {
	return nil
}
