package hub

import (
	"context"
	"time"
)

// Transport is the write side of one live client session. Implementations
// must support concurrent Send calls; Close must be safe to call more than
// once. Defined at the consumer side per Go conventions.
type Transport interface {
	Send(ctx context.Context, data []byte) error
	Close() error
}

// Connection is one registered client session. It is created by
// Manager.Connect and owned by the Manager for its whole lifetime; the
// mutable fields below are guarded by the Manager's mutex.
type Connection struct {
	ID          string
	UserID      string
	SessionID   string
	ConnectedAt time.Time

	transport Transport

	// Guarded by Manager.mu.
	lastHeartbeat time.Time
	tasks         map[string]struct{}
	active        bool
}

// ConnectionInfo is a read-consistent copy of a connection's metadata.
type ConnectionInfo struct {
	ID              string    `json:"connection_id"`
	UserID          string    `json:"user_id,omitempty"`
	SessionID       string    `json:"session_id,omitempty"`
	ConnectedAt     time.Time `json:"connected_at"`
	LastHeartbeat   time.Time `json:"last_heartbeat"`
	SubscribedTasks []string  `json:"subscribed_tasks"`
	Active          bool      `json:"active"`
}

// info builds a snapshot. Caller must hold at least a read lock on the
// owning Manager.
func (c *Connection) info() ConnectionInfo {
	tasks := make([]string, 0, len(c.tasks))
	for t := range c.tasks {
		tasks = append(tasks, t)
	}
	return ConnectionInfo{
		ID:              c.ID,
		UserID:          c.UserID,
		SessionID:       c.SessionID,
		ConnectedAt:     c.ConnectedAt,
		LastHeartbeat:   c.lastHeartbeat,
		SubscribedTasks: tasks,
		Active:          c.active,
	}
}
