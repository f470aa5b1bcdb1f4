// Package storage provides persistence for security audit events.
// Sessions themselves are never stored server-side — they live entirely
// in the browser's cookies — so the audit trail is the only durable
// state this service keeps.
package storage

import "time"

// AuditEvent is one recorded security-relevant action. It carries only
// non-secret metadata; credential material never reaches this layer.
type AuditEvent struct {
	ID         string    `json:"id"`
	Event      string    `json:"event"`
	RemoteAddr string    `json:"remote_addr"`
	Detail     string    `json:"detail,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// AuditStore defines the interface for audit event persistence.
type AuditStore interface {
	// Append records one event.
	Append(event AuditEvent) error
	// List returns all events, newest first.
	List() ([]AuditEvent, error)
	// Close releases the underlying resources.
	Close() error
}
