package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kolapsis/bytebot/internal/event"
)

// Journal records published events for audit purposes. Recording is
// best-effort and must never influence delivery.
type Journal interface {
	Record(e event.Event) error
}

// Options configures a Manager. Zero values fall back to defaults.
type Options struct {
	HeartbeatInterval time.Duration // server heartbeat broadcast period
	CleanupInterval   time.Duration // stale-connection scan period
	StaleAfter        time.Duration // max heartbeat age before forced disconnect
	SendTimeout       time.Duration // per-connection write deadline
	Journal           Journal       // optional event audit journal
}

func (o Options) withDefaults() Options {
	if o.HeartbeatInterval <= 0 {
		o.HeartbeatInterval = 30 * time.Second
	}
	if o.CleanupInterval <= 0 {
		o.CleanupInterval = 60 * time.Second
	}
	if o.StaleAfter <= 0 {
		o.StaleAfter = 5 * time.Minute
	}
	if o.SendTimeout <= 0 {
		o.SendTimeout = 10 * time.Second
	}
	return o
}

// Manager owns the connection registry and both subscription indices, and is
// the only actor allowed to mutate them. All index mutations happen under a
// single mutex so the indices can never drift from the per-connection state.
type Manager struct {
	opts Options

	mu        sync.RWMutex
	conns     map[string]*Connection          // connection id → connection
	userConns map[string]map[string]struct{}  // user id → connection ids
	taskSubs  map[string]map[string]struct{}  // task id → connection ids

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager creates a Manager. Call Start to run the background loops.
func NewManager(opts Options) *Manager {
	return &Manager{
		opts:      opts.withDefaults(),
		conns:     make(map[string]*Connection),
		userConns: make(map[string]map[string]struct{}),
		taskSubs:  make(map[string]map[string]struct{}),
	}
}

// Connect registers an accepted transport as a new connection and sends the
// connected confirmation event to it. The transport handshake is the
// caller's responsibility; registration itself cannot fail.
func (m *Manager) Connect(t Transport, userID, sessionID string) *Connection {
	now := time.Now().UTC()
	c := &Connection{
		ID:            uuid.NewString(),
		UserID:        userID,
		SessionID:     sessionID,
		ConnectedAt:   now,
		transport:     t,
		lastHeartbeat: now,
		tasks:         make(map[string]struct{}),
		active:        true,
	}

	m.mu.Lock()
	m.conns[c.ID] = c
	if userID != "" {
		if m.userConns[userID] == nil {
			m.userConns[userID] = make(map[string]struct{})
		}
		m.userConns[userID][c.ID] = struct{}{}
	}
	m.mu.Unlock()

	slog.Info("connection established", "connection_id", c.ID, "user_id", userID)

	welcome := event.NewSystemEvent(event.KindConnect, map[string]any{
		"connection_id": c.ID,
		"timestamp":     now.Format(time.RFC3339),
	})
	welcome.UserID = userID
	welcome.SessionID = sessionID
	if err := m.sendEvent(c, welcome); err != nil {
		slog.Warn("failed to send connect event", "connection_id", c.ID, "error", err)
	}

	return c
}

// Disconnect removes the connection from the registry and both indices and
// closes its transport. Unknown ids are a no-op, so it is safe to call from
// multiple cleanup paths.
func (m *Manager) Disconnect(connID string) {
	m.mu.Lock()
	c, ok := m.conns[connID]
	if !ok {
		m.mu.Unlock()
		return
	}

	if c.UserID != "" {
		if set, ok := m.userConns[c.UserID]; ok {
			delete(set, connID)
			if len(set) == 0 {
				delete(m.userConns, c.UserID)
			}
		}
	}
	for taskID := range c.tasks {
		if set, ok := m.taskSubs[taskID]; ok {
			delete(set, connID)
			if len(set) == 0 {
				delete(m.taskSubs, taskID)
			}
		}
	}
	c.active = false
	delete(m.conns, connID)
	m.mu.Unlock()

	// The transport may be half-dead; its close error must not affect
	// registry consistency.
	if err := c.transport.Close(); err != nil {
		slog.Warn("error closing transport", "connection_id", connID, "error", err)
	}

	slog.Info("connection disconnected", "connection_id", connID, "user_id", c.UserID)
}

// SubscribeTask adds the connection to the task's subscriber set.
// Subscribing twice is a no-op.
func (m *Manager) SubscribeTask(connID, taskID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.conns[connID]
	if !ok {
		return false
	}
	c.tasks[taskID] = struct{}{}
	if m.taskSubs[taskID] == nil {
		m.taskSubs[taskID] = make(map[string]struct{})
	}
	m.taskSubs[taskID][connID] = struct{}{}

	slog.Debug("task subscription added", "connection_id", connID, "task_id", taskID)
	return true
}

// UnsubscribeTask removes the connection from the task's subscriber set.
// Unsubscribing from a task never subscribed is a no-op. Empty subscriber
// sets are pruned so the index stays bounded.
func (m *Manager) UnsubscribeTask(connID, taskID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.conns[connID]
	if !ok {
		return false
	}
	delete(c.tasks, taskID)
	if set, ok := m.taskSubs[taskID]; ok {
		delete(set, connID)
		if len(set) == 0 {
			delete(m.taskSubs, taskID)
		}
	}

	slog.Debug("task subscription removed", "connection_id", connID, "task_id", taskID)
	return true
}

// HandleMessage parses and dispatches one inbound client message. Any valid
// message bumps the connection's heartbeat. Errors are reported back as an
// error Response; the connection is never dropped for a bad message.
func (m *Manager) HandleMessage(connID string, raw []byte) event.Response {
	m.mu.RLock()
	c, ok := m.conns[connID]
	m.mu.RUnlock()
	if !ok {
		return event.Fail("error", "connection not found", "")
	}

	msg, err := event.ParseMessage(raw)
	if err != nil {
		slog.Debug("invalid message", "connection_id", connID, "error", err)
		return event.Fail("error", "invalid message format", msg.RequestID)
	}

	m.mu.Lock()
	c.lastHeartbeat = time.Now().UTC()
	m.mu.Unlock()

	return m.dispatch(c, msg)
}

// Broadcast delivers the event to every interested connection: the task's
// subscribers, the user's connections, and everyone when the event is a
// system kind or carries no scoping at all. Delivery is best-effort; the
// caller never observes per-connection failures.
func (m *Manager) Broadcast(e event.Event) {
	m.record(e)

	m.mu.RLock()
	targets := make(map[string]*Connection)
	if e.TaskID != "" {
		for id := range m.taskSubs[e.TaskID] {
			targets[id] = m.conns[id]
		}
	}
	if e.UserID != "" {
		for id := range m.userConns[e.UserID] {
			targets[id] = m.conns[id]
		}
	}
	if e.Kind.System() || !e.Scoped() {
		for id, c := range m.conns {
			targets[id] = c
		}
	}
	list := make([]*Connection, 0, len(targets))
	for _, c := range targets {
		if c != nil && c.active {
			list = append(list, c)
		}
	}
	m.mu.RUnlock()

	m.deliver(list, e)
}

// SendToUser delivers the event to every connection owned by userID.
func (m *Manager) SendToUser(userID string, e event.Event) {
	m.record(e)

	m.mu.RLock()
	list := make([]*Connection, 0, len(m.userConns[userID]))
	for id := range m.userConns[userID] {
		if c := m.conns[id]; c != nil && c.active {
			list = append(list, c)
		}
	}
	m.mu.RUnlock()

	m.deliver(list, e)
}

// SendToTaskSubscribers delivers the event to every subscriber of taskID.
func (m *Manager) SendToTaskSubscribers(taskID string, e event.Event) {
	m.record(e)

	m.mu.RLock()
	list := make([]*Connection, 0, len(m.taskSubs[taskID]))
	for id := range m.taskSubs[taskID] {
		if c := m.conns[id]; c != nil && c.active {
			list = append(list, c)
		}
	}
	m.mu.RUnlock()

	m.deliver(list, e)
}

// deliver sends one serialized event to each target concurrently so a slow
// consumer cannot stall the others. Targets whose send fails or times out
// are disconnected.
func (m *Manager) deliver(targets []*Connection, e event.Event) {
	if len(targets) == 0 {
		return
	}

	payload, err := json.Marshal(e)
	if err != nil {
		slog.Error("failed to encode event", "kind", e.Kind, "error", err)
		return
	}

	var wg sync.WaitGroup
	failed := make(chan string, len(targets))
	for _, c := range targets {
		wg.Add(1)
		go func(c *Connection) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), m.opts.SendTimeout)
			defer cancel()
			if err := c.transport.Send(ctx, payload); err != nil {
				slog.Warn("event send failed",
					"connection_id", c.ID,
					"kind", e.Kind,
					"error", err)
				failed <- c.ID
			}
		}(c)
	}
	wg.Wait()
	close(failed)

	for id := range failed {
		m.Disconnect(id)
	}

	slog.Debug("event delivered", "kind", e.Kind, "targets", len(targets))
}

// Reply sends a Response to one connection. A failed write disconnects it.
func (m *Manager) Reply(connID string, resp event.Response) {
	m.mu.RLock()
	c, ok := m.conns[connID]
	m.mu.RUnlock()
	if !ok {
		return
	}

	payload, err := json.Marshal(resp)
	if err != nil {
		slog.Error("failed to encode response", "type", resp.Type, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.opts.SendTimeout)
	defer cancel()
	if err := c.transport.Send(ctx, payload); err != nil {
		slog.Warn("response send failed", "connection_id", connID, "error", err)
		m.Disconnect(connID)
	}
}

// sendEvent writes one event to a single connection with the send timeout.
func (m *Manager) sendEvent(c *Connection, e event.Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), m.opts.SendTimeout)
	defer cancel()
	return c.transport.Send(ctx, payload)
}

// record hands the event to the journal without blocking delivery.
func (m *Manager) record(e event.Event) {
	if m.opts.Journal == nil {
		return
	}
	go func() {
		if err := m.opts.Journal.Record(e); err != nil {
			slog.Warn("event journal write failed", "kind", e.Kind, "error", err)
		}
	}()
}

// Stats is a point-in-time view of the registry for observability.
type Stats struct {
	TotalConnections     int            `json:"total_connections"`
	ActiveConnections    int            `json:"active_connections"`
	UsersConnected       int            `json:"users_connected"`
	TasksWithSubscribers int            `json:"tasks_with_subscribers"`
	ConnectionsPerUser   map[string]int `json:"connections_per_user"`
}

// Stats returns a snapshot of connection counts and index sizes.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	active := 0
	for _, c := range m.conns {
		if c.active {
			active++
		}
	}
	perUser := make(map[string]int, len(m.userConns))
	for userID, set := range m.userConns {
		perUser[userID] = len(set)
	}
	return Stats{
		TotalConnections:     len(m.conns),
		ActiveConnections:    active,
		UsersConnected:       len(m.userConns),
		TasksWithSubscribers: len(m.taskSubs),
		ConnectionsPerUser:   perUser,
	}
}

// Info returns a snapshot of one connection's metadata.
func (m *Manager) Info(connID string) (ConnectionInfo, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.conns[connID]
	if !ok {
		return ConnectionInfo{}, false
	}
	return c.info(), true
}

// ConnectionCount returns the number of registered connections.
func (m *Manager) ConnectionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.conns)
}
