package notify

import (
	"github.com/kolapsis/bytebot/internal/event"
)

// Broadcaster is the slice of the hub that producers publish through.
// Defined at the consumer side per Go conventions.
type Broadcaster interface {
	Broadcast(e event.Event)
	SendToUser(userID string, e event.Event)
	SendToTaskSubscribers(taskID string, e event.Event)
}

// Service is the typed publishing surface for backend producers (task
// service, AI service, desktop automation, system health). Producers never
// see which connections exist or whether a delivery succeeded.
type Service struct {
	hub Broadcaster
}

// NewService creates a notification Service publishing through hub.
func NewService(hub Broadcaster) *Service {
	return &Service{hub: hub}
}

// TaskCreated announces a new task to everyone interested in the owner.
func (s *Service) TaskCreated(taskID string, data map[string]any, userID string) {
	s.hub.Broadcast(event.NewTaskEvent(event.KindTaskCreated, taskID, data, userID))
}

// TaskUpdated pushes a task change to the task's subscribers.
func (s *Service) TaskUpdated(taskID string, data map[string]any, userID string) {
	s.hub.SendToTaskSubscribers(taskID, event.NewTaskEvent(event.KindTaskUpdated, taskID, data, userID))
}

// statusKinds maps a task status to its lifecycle event kind.
var statusKinds = map[string]event.Kind{
	"running":   event.KindTaskStarted,
	"paused":    event.KindTaskPaused,
	"resumed":   event.KindTaskResumed,
	"completed": event.KindTaskCompleted,
	"failed":    event.KindTaskFailed,
	"cancelled": event.KindTaskCancelled,
}

// TaskStatusChanged pushes a lifecycle transition to the task's subscribers.
// Unrecognized statuses fall back to a plain task_updated event.
func (s *Service) TaskStatusChanged(taskID, status string, data map[string]any, userID string) {
	kind, ok := statusKinds[status]
	if !ok {
		kind = event.KindTaskUpdated
	}
	if data == nil {
		data = map[string]any{}
	}
	data["status"] = status
	s.hub.SendToTaskSubscribers(taskID, event.NewTaskEvent(kind, taskID, data, userID))
}

// TaskProgress pushes an incremental progress update to the task's subscribers.
func (s *Service) TaskProgress(taskID string, data map[string]any, userID string) {
	s.hub.SendToTaskSubscribers(taskID, event.NewTaskEvent(event.KindTaskProgress, taskID, data, userID))
}

// MessageCreated pushes a new conversation message to the task's subscribers.
func (s *Service) MessageCreated(messageID, taskID string, data map[string]any, userID string) {
	s.hub.SendToTaskSubscribers(taskID, event.NewMessageEvent(event.KindMessageCreated, messageID, taskID, data, userID))
}

// MessageUpdated pushes a message edit to the task's subscribers.
func (s *Service) MessageUpdated(messageID, taskID string, data map[string]any, userID string) {
	s.hub.SendToTaskSubscribers(taskID, event.NewMessageEvent(event.KindMessageUpdated, messageID, taskID, data, userID))
}

// AIThinking streams the model's intermediate reasoning to the task's subscribers.
func (s *Service) AIThinking(taskID string, data map[string]any, userID string) {
	s.hub.SendToTaskSubscribers(taskID, event.NewAIEvent(event.KindAIThinking, taskID, data, userID))
}

// AIResponse streams a model response to the task's subscribers.
func (s *Service) AIResponse(taskID string, data map[string]any, userID string) {
	s.hub.SendToTaskSubscribers(taskID, event.NewAIEvent(event.KindAIResponse, taskID, data, userID))
}

// DesktopAction reports an automation step. Task-scoped actions go to the
// task's subscribers; unscoped ones are visible to everyone.
func (s *Service) DesktopAction(data map[string]any, taskID, userID string) {
	e := event.NewDesktopEvent(event.KindDesktopAction, data, taskID, userID)
	if taskID != "" {
		s.hub.SendToTaskSubscribers(taskID, e)
		return
	}
	s.hub.Broadcast(e)
}

// SystemStatus broadcasts a health report to every connection.
func (s *Service) SystemStatus(data map[string]any) {
	s.hub.Broadcast(event.NewSystemEvent(event.KindSystemStatus, data))
}

// Error reports a failure. Task-scoped errors go to the task's subscribers;
// unscoped ones are broadcast.
func (s *Service) Error(message, code, taskID, userID string) {
	e := event.NewErrorEvent(message, code, taskID, userID)
	if taskID != "" {
		s.hub.SendToTaskSubscribers(taskID, e)
		return
	}
	s.hub.Broadcast(e)
}
