package event

import (
	"encoding/json"
	"fmt"
)

// Message is a control message sent by a client over its connection.
// RequestID is an optional client-supplied correlation id echoed back
// verbatim in the Response.
type Message struct {
	Type      string         `json:"type"`
	Data      map[string]any `json:"data"`
	RequestID string         `json:"request_id,omitempty"`
}

// Client message types understood by the hub.
const (
	MsgSubscribeTask   = "subscribe_task"
	MsgUnsubscribeTask = "unsubscribe_task"
	MsgHeartbeat       = "heartbeat"
	MsgGetStatus       = "get_status"
)

// ParseMessage decodes a raw client message.
func ParseMessage(raw []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(raw, &m); err != nil {
		return Message{}, fmt.Errorf("decoding message: %w", err)
	}
	if m.Type == "" {
		// Return the partial decode so the caller can still echo request_id.
		return m, fmt.Errorf("message is missing a type")
	}
	if m.Data == nil {
		m.Data = map[string]any{}
	}
	return m, nil
}

// Response is the hub's reply to a client Message.
type Response struct {
	Type      string         `json:"type"`
	Data      map[string]any `json:"data"`
	Success   bool           `json:"success"`
	Error     string         `json:"error,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
}

// OK builds a success Response for the given message type.
func OK(msgType string, data map[string]any, requestID string) Response {
	if data == nil {
		data = map[string]any{}
	}
	return Response{
		Type:      msgType,
		Data:      data,
		Success:   true,
		RequestID: requestID,
	}
}

// Fail builds an error Response for the given message type.
func Fail(msgType, errMsg, requestID string) Response {
	return Response{
		Type:      msgType,
		Data:      map[string]any{},
		Success:   false,
		Error:     errMsg,
		RequestID: requestID,
	}
}
