// Package model defines the entities shared by the store, the event bus
// and the API surfaces: threads, messages, agents, events and the
// available-agent catalog.
package model

import (
	"encoding/json"
	"time"
)

// ThreadStatus is the closed set of thread states.
type ThreadStatus string

const (
	StatusDiscuss   ThreadStatus = "discuss"
	StatusImplement ThreadStatus = "implement"
	StatusReview    ThreadStatus = "review"
	StatusDone      ThreadStatus = "done"
	StatusClosed    ThreadStatus = "closed"
	StatusArchived  ThreadStatus = "archived"
)

// Valid reports whether s is a known thread status.
func (s ThreadStatus) Valid() bool {
	switch s {
	case StatusDiscuss, StatusImplement, StatusReview, StatusDone, StatusClosed, StatusArchived:
		return true
	}
	return false
}

// Terminal reports whether the status ends the normal state machine.
func (s ThreadStatus) Terminal() bool {
	return s == StatusClosed || s == StatusArchived
}

// Role is the closed set of message roles.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant || r == RoleSystem
}

// Thread is a conversation context with an ordered message log.
type Thread struct {
	ID        string            `json:"id"`
	Topic     string            `json:"topic"`
	Status    ThreadStatus      `json:"status"`
	// PrevStatus holds the pre-archive status so unarchive can restore it.
	PrevStatus ThreadStatus     `json:"prev_status,omitempty"`
	Summary   string            `json:"summary,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// Archived reports whether the thread is hidden from default listings.
func (t *Thread) Archived() bool {
	return t.Status == StatusArchived
}

// Message is one immutable entry in a thread's log.
type Message struct {
	ID         string            `json:"id"`
	ThreadID   string            `json:"thread_id"`
	Seq        int64             `json:"seq"`
	AuthorID   string            `json:"author_id,omitempty"`
	AuthorName string            `json:"author_name"`
	Role       Role              `json:"role"`
	Content    string            `json:"content"`
	Mentions   []string          `json:"mentions,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

// ImageRef is an uploaded image attached to a message via metadata.
type ImageRef struct {
	URL  string `json:"url"`
	Name string `json:"name"`
}

// Agent is a registered bus participant.
type Agent struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	IDE              string    `json:"ide,omitempty"`
	Model            string    `json:"model,omitempty"`
	Capabilities     string    `json:"capabilities,omitempty"`
	Token            string    `json:"-"`
	LastHeartbeatAt  time.Time `json:"last_heartbeat_at"`
	LastActivityAt   time.Time `json:"last_activity_at"`
	LastActivityKind string    `json:"last_activity_kind,omitempty"`
	RegisteredAt     time.Time `json:"registered_at"`
}

// AgentState is the presentation-level liveness classification.
type AgentState string

const (
	AgentActive  AgentState = "Active"
	AgentWaiting AgentState = "Waiting"
	AgentIdle    AgentState = "Idle"
	AgentOffline AgentState = "Offline"
)

// Online reports heartbeat freshness against the given timeout.
func (a *Agent) Online(now time.Time, heartbeatTimeout time.Duration) bool {
	return now.Sub(a.LastHeartbeatAt) <= heartbeatTimeout
}

// State derives the presentation state from the heartbeat and activity
// timestamps. It is never stored.
func (a *Agent) State(now time.Time, heartbeatTimeout time.Duration) AgentState {
	if !a.Online(now, heartbeatTimeout) {
		return AgentOffline
	}
	sinceActivity := now.Sub(a.LastActivityAt)
	if a.LastActivityKind == ActivityWait && sinceActivity <= 60*time.Second {
		return AgentWaiting
	}
	if sinceActivity <= 30*time.Second {
		return AgentActive
	}
	return AgentIdle
}

// Activity kinds recorded on agent rows.
const (
	ActivityRegister = "register"
	ActivityPost     = "msg_post"
	ActivityWait     = "msg_wait"
	ActivityTyping   = "set_typing"
)

// CatalogEntry describes how to spawn a named CLI agent. Entries come
// from operator configuration and are immutable at runtime.
type CatalogEntry struct {
	Name           string `json:"name"`
	DisplayName    string `json:"display_name,omitempty"`
	Description    string `json:"description,omitempty"`
	InvokeCommand  string `json:"invoke_command"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty"`
	Enabled        bool   `json:"enabled"`
}

// InviteResult reports the outcome of a catalog invocation.
type InviteResult struct {
	OK              bool   `json:"ok"`
	AgentName       string `json:"agent_name"`
	CommandExecuted string `json:"command_executed,omitempty"`
	Reason          string `json:"reason,omitempty"`
}

// EncodeMetadata renders a metadata map as JSON for storage. Nil maps
// encode as the empty string.
func EncodeMetadata(m map[string]string) string {
	if len(m) == 0 {
		return ""
	}
	b, err := json.Marshal(m)
	if err != nil {
		return ""
	}
	return string(b)
}

// DecodeMetadata parses stored metadata JSON. Empty input yields nil.
func DecodeMetadata(s string) map[string]string {
	if s == "" {
		return nil
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil
	}
	return m
}
