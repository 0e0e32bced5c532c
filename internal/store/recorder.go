package store

import (
	"encoding/json"
	"fmt"

	"github.com/kolapsis/bytebot/internal/event"
)

// EventRecorder adapts a Journal to the hub's Record(event.Event) hook.
type EventRecorder struct {
	journal Journal
}

// NewEventRecorder wraps the given journal.
func NewEventRecorder(j Journal) *EventRecorder {
	return &EventRecorder{journal: j}
}

// Record persists one published event.
func (r *EventRecorder) Record(e event.Event) error {
	data, err := json.Marshal(e.Data)
	if err != nil {
		return fmt.Errorf("encoding event payload: %w", err)
	}
	return r.journal.Record(&EventRecord{
		ID:        e.ID.String(),
		Kind:      string(e.Kind),
		TaskID:    e.TaskID,
		UserID:    e.UserID,
		SessionID: e.SessionID,
		Data:      string(data),
		CreatedAt: e.Timestamp,
	})
}
