package event

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKind_System(t *testing.T) {
	t.Parallel()

	assert.True(t, KindHeartbeat.System())
	assert.True(t, KindError.System())
	assert.True(t, KindSystemStatus.System())

	assert.False(t, KindTaskCompleted.System())
	assert.False(t, KindAIResponse.System())
	assert.False(t, KindDesktopAction.System())
}

func TestKind_Valid(t *testing.T) {
	t.Parallel()

	assert.True(t, KindTaskCreated.Valid())
	assert.True(t, KindDesktopScreenshot.Valid())
	assert.False(t, Kind("task_exploded").Valid())
	assert.False(t, Kind("").Valid())
}

func TestNewTaskEvent_ScopesToTask(t *testing.T) {
	t.Parallel()

	taskID := uuid.NewString()
	e := NewTaskEvent(KindTaskStarted, taskID, map[string]any{"status": "running"}, "u1")

	assert.NotEqual(t, uuid.Nil, e.ID)
	assert.Equal(t, KindTaskStarted, e.Kind)
	assert.Equal(t, taskID, e.TaskID)
	assert.Equal(t, "u1", e.UserID)
	assert.True(t, e.Scoped())
	assert.False(t, e.Timestamp.IsZero())
}

func TestNewMessageEvent_CarriesMessageID(t *testing.T) {
	t.Parallel()

	e := NewMessageEvent(KindMessageCreated, "msg-1", uuid.NewString(), nil, "")

	assert.Equal(t, "msg-1", e.Data["message_id"])
}

func TestNewSummaryEvent_CarriesSummaryID(t *testing.T) {
	t.Parallel()

	e := NewSummaryEvent(KindSummaryApproved, "sum-1", uuid.NewString(), nil, "")

	assert.Equal(t, "sum-1", e.Data["summary_id"])
}

func TestNewSystemEvent_IsUnscoped(t *testing.T) {
	t.Parallel()

	e := NewSystemEvent(KindSystemStatus, map[string]any{"load": 0.5})

	assert.Empty(t, e.TaskID)
	assert.Empty(t, e.UserID)
	assert.False(t, e.Scoped())
}

func TestNewErrorEvent_OptionalCode(t *testing.T) {
	t.Parallel()

	withCode := NewErrorEvent("boom", "E_BOOM", "", "")
	assert.Equal(t, "boom", withCode.Data["message"])
	assert.Equal(t, "E_BOOM", withCode.Data["code"])

	withoutCode := NewErrorEvent("boom", "", "", "")
	assert.NotContains(t, withoutCode.Data, "code")
}

func TestNewHeartbeatEvent(t *testing.T) {
	t.Parallel()

	e := NewHeartbeatEvent()

	assert.Equal(t, KindHeartbeat, e.Kind)
	assert.False(t, e.Scoped())
	assert.NotEmpty(t, e.Data["timestamp"])
}

func TestEvent_JSONShape(t *testing.T) {
	t.Parallel()

	taskID := uuid.NewString()
	e := NewTaskEvent(KindTaskCompleted, taskID, map[string]any{"status": "completed"}, "u1")

	raw, err := json.Marshal(e)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "task_completed", decoded["type"])
	assert.Equal(t, taskID, decoded["task_id"])
	assert.Equal(t, "u1", decoded["user_id"])
	assert.NotContains(t, decoded, "session_id", "empty scoping fields are omitted")
}

func TestParseMessage(t *testing.T) {
	t.Parallel()

	msg, err := ParseMessage([]byte(`{"type":"subscribe_task","data":{"task_id":"x"},"request_id":"r1"}`))
	require.NoError(t, err)
	assert.Equal(t, MsgSubscribeTask, msg.Type)
	assert.Equal(t, "x", msg.Data["task_id"])
	assert.Equal(t, "r1", msg.RequestID)
}

func TestParseMessage_DefaultsData(t *testing.T) {
	t.Parallel()

	msg, err := ParseMessage([]byte(`{"type":"heartbeat"}`))
	require.NoError(t, err)
	assert.NotNil(t, msg.Data)
}

func TestParseMessage_RejectsBadInput(t *testing.T) {
	t.Parallel()

	_, err := ParseMessage([]byte(`{broken`))
	require.Error(t, err)

	msg, err := ParseMessage([]byte(`{"data":{},"request_id":"r9"}`))
	require.Error(t, err)
	assert.Equal(t, "r9", msg.RequestID, "partial decode keeps the correlation id")
}

func TestResponses(t *testing.T) {
	t.Parallel()

	ok := OK("heartbeat", map[string]any{"timestamp": "now"}, "r1")
	assert.True(t, ok.Success)
	assert.Empty(t, ok.Error)
	assert.Equal(t, "r1", ok.RequestID)

	fail := Fail("subscribe_task", "task_id is required", "r2")
	assert.False(t, fail.Success)
	assert.Equal(t, "task_id is required", fail.Error)
	assert.NotNil(t, fail.Data)
}
