package hub

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kolapsis/bytebot/internal/event"
)

// dispatch routes a parsed client message to its handler. The message type
// set is closed; anything else is answered with an error Response.
func (m *Manager) dispatch(c *Connection, msg event.Message) event.Response {
	switch msg.Type {
	case event.MsgSubscribeTask:
		return m.handleSubscribe(c, msg)
	case event.MsgUnsubscribeTask:
		return m.handleUnsubscribe(c, msg)
	case event.MsgHeartbeat:
		return event.OK(msg.Type, map[string]any{
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		}, msg.RequestID)
	case event.MsgGetStatus:
		return m.handleGetStatus(c, msg)
	default:
		return event.Fail(msg.Type, fmt.Sprintf("unknown message type: %s", msg.Type), msg.RequestID)
	}
}

func (m *Manager) handleSubscribe(c *Connection, msg event.Message) event.Response {
	taskID, err := taskIDFrom(msg)
	if err != nil {
		return event.Fail(msg.Type, err.Error(), msg.RequestID)
	}
	m.SubscribeTask(c.ID, taskID)
	return event.OK(msg.Type, map[string]any{
		"task_id":    taskID,
		"subscribed": true,
	}, msg.RequestID)
}

func (m *Manager) handleUnsubscribe(c *Connection, msg event.Message) event.Response {
	taskID, err := taskIDFrom(msg)
	if err != nil {
		return event.Fail(msg.Type, err.Error(), msg.RequestID)
	}
	m.UnsubscribeTask(c.ID, taskID)
	return event.OK(msg.Type, map[string]any{
		"task_id":    taskID,
		"subscribed": false,
	}, msg.RequestID)
}

func (m *Manager) handleGetStatus(c *Connection, msg event.Message) event.Response {
	m.mu.RLock()
	info := c.info()
	total := len(m.conns)
	m.mu.RUnlock()

	return event.OK(msg.Type, map[string]any{
		"connection_id":     info.ID,
		"user_id":           info.UserID,
		"session_id":        info.SessionID,
		"connected_at":      info.ConnectedAt.Format(time.RFC3339),
		"subscribed_tasks":  info.SubscribedTasks,
		"total_connections": total,
	}, msg.RequestID)
}

// taskIDFrom extracts and validates the task_id field of a subscribe or
// unsubscribe message.
func taskIDFrom(msg event.Message) (string, error) {
	raw, _ := msg.Data["task_id"].(string)
	if raw == "" {
		return "", fmt.Errorf("task_id is required")
	}
	if _, err := uuid.Parse(raw); err != nil {
		return "", fmt.Errorf("invalid task_id format")
	}
	return raw, nil
}
