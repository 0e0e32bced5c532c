package store

import (
	"time"
)

// Journal is the persistence interface for the event audit trail.
// Defined at the consumer side per Go conventions; the hub depends on a
// narrower view of it.
type Journal interface {
	Record(e *EventRecord) error
	Recent(f EventFilter) ([]EventRecord, error)
	Cleanup(retention time.Duration) error
	Close() error
}

// EventRecord is a persisted copy of one published event.
type EventRecord struct {
	ID        string
	Kind      string
	TaskID    string
	UserID    string
	SessionID string
	Data      string // JSON-encoded payload
	CreatedAt time.Time
}

// EventFilter specifies criteria for listing journal entries.
type EventFilter struct {
	Kind   string
	TaskID string
	Limit  int
	Since  time.Time
}
