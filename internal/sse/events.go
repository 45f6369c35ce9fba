// Package sse delivers notifications to connected clients over Server-Sent
// Events. Clients connect with their registered channel token and receive
// every message addressed to it.
package sse

import (
	"time"

	"github.com/google/uuid"
)

// EventType names an SSE event.
type EventType string

const (
	EventConnected EventType = "connected"
	EventHeartbeat EventType = "heartbeat"
	// EventNotification is a visible notification.
	EventNotification EventType = "notification"
	// EventSilent carries data only; clients refresh state without showing
	// anything.
	EventSilent EventType = "silent"
)

// Event is one message written to a client stream. MessageID lets clients
// drop duplicates of a retried send.
type Event struct {
	MessageID string            `json:"message_id"`
	Type      EventType         `json:"type"`
	Title     string            `json:"title,omitempty"`
	Body      string            `json:"body,omitempty"`
	Data      map[string]string `json:"data,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

func newEvent(t EventType, title, body string, data map[string]string) Event {
	return Event{
		MessageID: uuid.NewString(),
		Type:      t,
		Title:     title,
		Body:      body,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
}
