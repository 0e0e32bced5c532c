package hub

import (
	"context"
	"log/slog"
	"time"

	"github.com/kolapsis/bytebot/internal/event"
)

// Start launches the heartbeat and cleanup loops. They run until Stop is
// called or ctx is cancelled.
func (m *Manager) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)

	slog.Info("starting hub",
		"heartbeat_interval", m.opts.HeartbeatInterval,
		"cleanup_interval", m.opts.CleanupInterval,
		"stale_after", m.opts.StaleAfter)

	m.wg.Add(2)
	go m.heartbeatLoop(ctx)
	go m.cleanupLoop(ctx)
}

// Stop cancels the background loops, waits for them, and disconnects every
// remaining connection.
func (m *Manager) Stop() {
	slog.Info("stopping hub")

	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()

	m.mu.RLock()
	ids := make([]string, 0, len(m.conns))
	for id := range m.conns {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	for _, id := range ids {
		m.Disconnect(id)
	}
}

// heartbeatLoop periodically broadcasts a heartbeat event so clients can
// detect a dead server path and so failing writes prune half-open
// connections.
func (m *Manager) heartbeatLoop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.opts.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.runTick("heartbeat", func() {
				if m.ConnectionCount() > 0 {
					m.Broadcast(event.NewHeartbeatEvent())
				}
			})
		}
	}
}

// cleanupLoop periodically disconnects connections whose last heartbeat is
// older than the staleness threshold. This is the only reclamation path for
// clients that neither close nor produce a failing write.
func (m *Manager) cleanupLoop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.opts.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.runTick("cleanup", m.reapStale)
		}
	}
}

// reapStale disconnects every connection whose heartbeat has gone stale.
func (m *Manager) reapStale() {
	cutoff := time.Now().UTC().Add(-m.opts.StaleAfter)

	m.mu.RLock()
	var stale []string
	for id, c := range m.conns {
		if c.lastHeartbeat.Before(cutoff) {
			stale = append(stale, id)
		}
	}
	m.mu.RUnlock()

	for _, id := range stale {
		slog.Info("reaping stale connection", "connection_id", id)
		m.Disconnect(id)
	}
}

// runTick executes one loop iteration, recovering from panics so a single
// bad iteration cannot kill the loop.
func (m *Manager) runTick(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("hub loop iteration panicked", "loop", name, "panic", r)
		}
	}()
	fn()
}
