package event

import (
	"time"

	"github.com/google/uuid"
)

// Kind identifies the category of an event pushed through the hub.
type Kind string

const (
	// Connection events
	KindConnect    Kind = "connect"
	KindDisconnect Kind = "disconnect"

	// Task lifecycle events
	KindTaskCreated   Kind = "task_created"
	KindTaskUpdated   Kind = "task_updated"
	KindTaskStarted   Kind = "task_started"
	KindTaskPaused    Kind = "task_paused"
	KindTaskResumed   Kind = "task_resumed"
	KindTaskCompleted Kind = "task_completed"
	KindTaskFailed    Kind = "task_failed"
	KindTaskCancelled Kind = "task_cancelled"
	KindTaskProgress  Kind = "task_progress"

	// Message events
	KindMessageCreated   Kind = "message_created"
	KindMessageUpdated   Kind = "message_updated"
	KindMessageProcessed Kind = "message_processed"
	KindMessageFailed    Kind = "message_failed"

	// Summary events
	KindSummaryCreated  Kind = "summary_created"
	KindSummaryUpdated  Kind = "summary_updated"
	KindSummaryApproved Kind = "summary_approved"
	KindSummaryArchived Kind = "summary_archived"

	// AI streaming events
	KindAIThinking   Kind = "ai_thinking"
	KindAIToolUse    Kind = "ai_tool_use"
	KindAIToolResult Kind = "ai_tool_result"
	KindAIResponse   Kind = "ai_response"

	// Desktop automation events
	KindDesktopAction     Kind = "desktop_action"
	KindDesktopScreenshot Kind = "desktop_screenshot"
	KindDesktopStatus     Kind = "desktop_status"

	// System events
	KindSystemStatus Kind = "system_status"
	KindError        Kind = "error"
	KindHeartbeat    Kind = "heartbeat"
)

// System reports whether the kind is always delivered to every connection,
// regardless of task/user scoping carried by the event.
func (k Kind) System() bool {
	switch k {
	case KindSystemStatus, KindError, KindHeartbeat:
		return true
	}
	return false
}

// Valid reports whether k is one of the declared event kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindConnect, KindDisconnect,
		KindTaskCreated, KindTaskUpdated, KindTaskStarted, KindTaskPaused,
		KindTaskResumed, KindTaskCompleted, KindTaskFailed, KindTaskCancelled,
		KindTaskProgress,
		KindMessageCreated, KindMessageUpdated, KindMessageProcessed, KindMessageFailed,
		KindSummaryCreated, KindSummaryUpdated, KindSummaryApproved, KindSummaryArchived,
		KindAIThinking, KindAIToolUse, KindAIToolResult, KindAIResponse,
		KindDesktopAction, KindDesktopScreenshot, KindDesktopStatus,
		KindSystemStatus, KindError, KindHeartbeat:
		return true
	}
	return false
}

// Event is an immutable, typed notification published into the hub.
// TaskID and UserID scope delivery: a task-scoped event reaches the task's
// subscribers, a user-scoped event reaches that user's connections, and an
// event with neither (or a system kind) reaches every connection.
type Event struct {
	ID        uuid.UUID      `json:"id"`
	Kind      Kind           `json:"type"`
	Data      map[string]any `json:"data"`
	Timestamp time.Time      `json:"timestamp"`
	TaskID    string         `json:"task_id,omitempty"`
	UserID    string         `json:"user_id,omitempty"`
	SessionID string         `json:"session_id,omitempty"`
}

// Scoped reports whether the event carries task or user scoping.
func (e Event) Scoped() bool {
	return e.TaskID != "" || e.UserID != ""
}

func newEvent(kind Kind, data map[string]any) Event {
	if data == nil {
		data = map[string]any{}
	}
	return Event{
		ID:        uuid.New(),
		Kind:      kind,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
}

// NewTaskEvent creates a task lifecycle event scoped to taskID.
func NewTaskEvent(kind Kind, taskID string, data map[string]any, userID string) Event {
	e := newEvent(kind, data)
	e.TaskID = taskID
	e.UserID = userID
	return e
}

// NewMessageEvent creates a message event scoped to the task carrying the message.
func NewMessageEvent(kind Kind, messageID, taskID string, data map[string]any, userID string) Event {
	e := newEvent(kind, data)
	e.Data["message_id"] = messageID
	e.TaskID = taskID
	e.UserID = userID
	return e
}

// NewSummaryEvent creates a summary event scoped to the summarized task.
func NewSummaryEvent(kind Kind, summaryID, taskID string, data map[string]any, userID string) Event {
	e := newEvent(kind, data)
	e.Data["summary_id"] = summaryID
	e.TaskID = taskID
	e.UserID = userID
	return e
}

// NewAIEvent creates an AI streaming event scoped to the task being worked on.
func NewAIEvent(kind Kind, taskID string, data map[string]any, userID string) Event {
	e := newEvent(kind, data)
	e.TaskID = taskID
	e.UserID = userID
	return e
}

// NewDesktopEvent creates a desktop automation event. taskID may be empty,
// in which case the event is delivered system-wide.
func NewDesktopEvent(kind Kind, data map[string]any, taskID, userID string) Event {
	e := newEvent(kind, data)
	e.TaskID = taskID
	e.UserID = userID
	return e
}

// NewSystemEvent creates an unscoped event delivered to every connection.
func NewSystemEvent(kind Kind, data map[string]any) Event {
	return newEvent(kind, data)
}

// NewErrorEvent creates an error event with a human-readable message and an
// optional machine-readable code.
func NewErrorEvent(message, code string, taskID, userID string) Event {
	data := map[string]any{"message": message}
	if code != "" {
		data["code"] = code
	}
	e := newEvent(KindError, data)
	e.TaskID = taskID
	e.UserID = userID
	return e
}

// NewHeartbeatEvent creates a system-wide heartbeat event.
func NewHeartbeatEvent() Event {
	return newEvent(KindHeartbeat, map[string]any{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
