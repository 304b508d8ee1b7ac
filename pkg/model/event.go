package model

import "time"

// EventType is the closed set of ephemeral notification types.
type EventType string

const (
	EventMsgNew           EventType = "msg.new"
	EventThreadNew        EventType = "thread.new"
	EventThreadState      EventType = "thread.state"
	EventThreadClosed     EventType = "thread.closed"
	EventThreadArchived   EventType = "thread.archived"
	EventThreadUnarchived EventType = "thread.unarchived"
	EventThreadDeleted    EventType = "thread.deleted"
	EventAgentOnline      EventType = "agent.online"
	EventAgentOffline     EventType = "agent.offline"
	EventAgentTyping      EventType = "agent.typing"
)

// Event is an in-memory notification of a state change. Events are not
// persisted; disconnected subscribers reconcile through the log.
type Event struct {
	Type      EventType      `json:"type"`
	Payload   map[string]any `json:"payload"`
	CreatedAt time.Time      `json:"-"`
}

// NewEvent stamps a payload with a type and creation time.
func NewEvent(t EventType, payload map[string]any) *Event {
	return &Event{Type: t, Payload: payload, CreatedAt: time.Now().UTC()}
}

// ThreadID extracts the thread id from the payload, if present.
func (e *Event) ThreadID() string {
	if e.Payload == nil {
		return ""
	}
	id, _ := e.Payload["thread_id"].(string)
	return id
}
