package notify

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kolapsis/bytebot/internal/event"
)

// mockBroadcaster records which publishing path each event took.
type mockBroadcaster struct {
	mu        sync.Mutex
	broadcast []event.Event
	toUser    []event.Event
	toTask    []event.Event
}

func (m *mockBroadcaster) Broadcast(e event.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.broadcast = append(m.broadcast, e)
}

func (m *mockBroadcaster) SendToUser(_ string, e event.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.toUser = append(m.toUser, e)
}

func (m *mockBroadcaster) SendToTaskSubscribers(_ string, e event.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.toTask = append(m.toTask, e)
}

func TestService_TaskCreated_Broadcasts(t *testing.T) {
	t.Parallel()

	b := &mockBroadcaster{}
	s := NewService(b)
	taskID := uuid.NewString()

	s.TaskCreated(taskID, map[string]any{"prompt": "organize files"}, "u1")

	require.Len(t, b.broadcast, 1)
	assert.Equal(t, event.KindTaskCreated, b.broadcast[0].Kind)
	assert.Equal(t, taskID, b.broadcast[0].TaskID)
	assert.Equal(t, "u1", b.broadcast[0].UserID)
}

func TestService_TaskStatusChanged_MapsKinds(t *testing.T) {
	t.Parallel()

	cases := map[string]event.Kind{
		"running":   event.KindTaskStarted,
		"completed": event.KindTaskCompleted,
		"failed":    event.KindTaskFailed,
		"cancelled": event.KindTaskCancelled,
		"weird":     event.KindTaskUpdated,
	}

	for status, want := range cases {
		b := &mockBroadcaster{}
		s := NewService(b)

		s.TaskStatusChanged(uuid.NewString(), status, nil, "")

		require.Len(t, b.toTask, 1, "status %s", status)
		assert.Equal(t, want, b.toTask[0].Kind, "status %s", status)
		assert.Equal(t, status, b.toTask[0].Data["status"])
	}
}

func TestService_MessageCreated_TargetsTaskSubscribers(t *testing.T) {
	t.Parallel()

	b := &mockBroadcaster{}
	s := NewService(b)

	s.MessageCreated("msg-1", uuid.NewString(), nil, "")

	require.Len(t, b.toTask, 1)
	assert.Equal(t, event.KindMessageCreated, b.toTask[0].Kind)
	assert.Equal(t, "msg-1", b.toTask[0].Data["message_id"])
	assert.Empty(t, b.broadcast)
}

func TestService_DesktopAction_ScopingDecidesPath(t *testing.T) {
	t.Parallel()

	b := &mockBroadcaster{}
	s := NewService(b)

	s.DesktopAction(map[string]any{"action": "click"}, uuid.NewString(), "")
	require.Len(t, b.toTask, 1)
	assert.Empty(t, b.broadcast)

	s.DesktopAction(map[string]any{"action": "screenshot"}, "", "")
	assert.Len(t, b.broadcast, 1)
}

func TestService_SystemStatus_Broadcasts(t *testing.T) {
	t.Parallel()

	b := &mockBroadcaster{}
	s := NewService(b)

	s.SystemStatus(map[string]any{"healthy": true})

	require.Len(t, b.broadcast, 1)
	assert.Equal(t, event.KindSystemStatus, b.broadcast[0].Kind)
}

func TestService_Error_ScopingDecidesPath(t *testing.T) {
	t.Parallel()

	b := &mockBroadcaster{}
	s := NewService(b)

	s.Error("agent crashed", "E_CRASH", uuid.NewString(), "")
	require.Len(t, b.toTask, 1)
	assert.Equal(t, event.KindError, b.toTask[0].Kind)

	s.Error("disk full", "", "", "")
	require.Len(t, b.broadcast, 1)
	assert.NotContains(t, b.broadcast[0].Data, "code")
}
