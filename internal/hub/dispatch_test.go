package hub

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kolapsis/bytebot/internal/event"
)

func subscribeMsg(taskID, requestID string) []byte {
	raw, _ := json.Marshal(map[string]any{
		"type":       event.MsgSubscribeTask,
		"data":       map[string]any{"task_id": taskID},
		"request_id": requestID,
	})
	return raw
}

func TestHandleMessage_UnknownConnection(t *testing.T) {
	t.Parallel()

	m := newTestManager()
	resp := m.HandleMessage("no-such-id", []byte(`{"type":"heartbeat"}`))

	assert.False(t, resp.Success)
	assert.Equal(t, "error", resp.Type)
	assert.Contains(t, resp.Error, "connection not found")
}

func TestHandleMessage_MalformedJSON(t *testing.T) {
	t.Parallel()

	m := newTestManager()
	c := m.Connect(&mockTransport{}, "", "")

	resp := m.HandleMessage(c.ID, []byte(`{not json`))

	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "invalid message format")
	assert.Equal(t, 1, m.ConnectionCount(), "bad message must not drop the connection")
}

func TestHandleMessage_MissingType_EchoesRequestID(t *testing.T) {
	t.Parallel()

	m := newTestManager()
	c := m.Connect(&mockTransport{}, "", "")

	resp := m.HandleMessage(c.ID, []byte(`{"data":{},"request_id":"req-42"}`))

	assert.False(t, resp.Success)
	assert.Equal(t, "req-42", resp.RequestID)
}

func TestHandleMessage_UnknownType(t *testing.T) {
	t.Parallel()

	m := newTestManager()
	c := m.Connect(&mockTransport{}, "", "")

	resp := m.HandleMessage(c.ID, []byte(`{"type":"teleport","request_id":"r1"}`))

	assert.False(t, resp.Success)
	assert.Equal(t, "teleport", resp.Type)
	assert.Contains(t, resp.Error, "unknown message type")
	assert.Equal(t, "r1", resp.RequestID)
	assert.Equal(t, 1, m.ConnectionCount())
}

func TestHandleMessage_SubscribeTask(t *testing.T) {
	t.Parallel()

	m := newTestManager()
	c := m.Connect(&mockTransport{}, "", "")
	taskID := uuid.NewString()

	resp := m.HandleMessage(c.ID, subscribeMsg(taskID, "req-1"))

	require.True(t, resp.Success)
	assert.Equal(t, event.MsgSubscribeTask, resp.Type)
	assert.Equal(t, taskID, resp.Data["task_id"])
	assert.Equal(t, true, resp.Data["subscribed"])
	assert.Equal(t, "req-1", resp.RequestID)

	info, ok := m.Info(c.ID)
	require.True(t, ok)
	assert.Contains(t, info.SubscribedTasks, taskID)
}

func TestHandleMessage_SubscribeTask_MissingTaskID(t *testing.T) {
	t.Parallel()

	m := newTestManager()
	c := m.Connect(&mockTransport{}, "", "")

	resp := m.HandleMessage(c.ID, []byte(`{"type":"subscribe_task","data":{}}`))

	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "task_id is required")
}

func TestHandleMessage_SubscribeTask_InvalidTaskID(t *testing.T) {
	t.Parallel()

	m := newTestManager()
	c := m.Connect(&mockTransport{}, "", "")

	resp := m.HandleMessage(c.ID, subscribeMsg("not-a-uuid", ""))

	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "invalid task_id format")
}

func TestHandleMessage_UnsubscribeTask(t *testing.T) {
	t.Parallel()

	m := newTestManager()
	c := m.Connect(&mockTransport{}, "", "")
	taskID := uuid.NewString()
	require.True(t, m.SubscribeTask(c.ID, taskID))

	raw := fmt.Appendf(nil, `{"type":"unsubscribe_task","data":{"task_id":%q}}`, taskID)
	resp := m.HandleMessage(c.ID, raw)

	require.True(t, resp.Success)
	assert.Equal(t, false, resp.Data["subscribed"])

	info, _ := m.Info(c.ID)
	assert.Empty(t, info.SubscribedTasks)
}

func TestHandleMessage_Heartbeat_BumpsTimestamp(t *testing.T) {
	t.Parallel()

	m := newTestManager()
	c := m.Connect(&mockTransport{}, "", "")

	m.mu.Lock()
	m.conns[c.ID].lastHeartbeat = time.Now().UTC().Add(-time.Hour)
	m.mu.Unlock()

	resp := m.HandleMessage(c.ID, []byte(`{"type":"heartbeat","request_id":"hb-1"}`))

	require.True(t, resp.Success)
	assert.Equal(t, "hb-1", resp.RequestID)
	assert.NotEmpty(t, resp.Data["timestamp"])

	info, _ := m.Info(c.ID)
	assert.WithinDuration(t, time.Now().UTC(), info.LastHeartbeat, time.Minute)
}

func TestHandleMessage_AnyValidMessage_BumpsHeartbeat(t *testing.T) {
	t.Parallel()

	m := newTestManager()
	c := m.Connect(&mockTransport{}, "", "")

	m.mu.Lock()
	m.conns[c.ID].lastHeartbeat = time.Now().UTC().Add(-time.Hour)
	m.mu.Unlock()

	// Even an unknown type counts as liveness once it parsed.
	m.HandleMessage(c.ID, []byte(`{"type":"bogus"}`))

	info, _ := m.Info(c.ID)
	assert.WithinDuration(t, time.Now().UTC(), info.LastHeartbeat, time.Minute)
}

func TestHandleMessage_GetStatus(t *testing.T) {
	t.Parallel()

	m := newTestManager()
	c := m.Connect(&mockTransport{}, "u1", "sess9")
	m.Connect(&mockTransport{}, "u2", "")
	taskID := uuid.NewString()
	require.True(t, m.SubscribeTask(c.ID, taskID))

	resp := m.HandleMessage(c.ID, []byte(`{"type":"get_status","request_id":"st-1"}`))

	require.True(t, resp.Success)
	assert.Equal(t, c.ID, resp.Data["connection_id"])
	assert.Equal(t, "u1", resp.Data["user_id"])
	assert.Equal(t, "sess9", resp.Data["session_id"])
	assert.Equal(t, 2, resp.Data["total_connections"])
	assert.Equal(t, []string{taskID}, resp.Data["subscribed_tasks"])
	assert.Equal(t, "st-1", resp.RequestID)
}
