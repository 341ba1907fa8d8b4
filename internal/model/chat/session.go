package chat

import "time"

// Status is the request lifecycle state of a session.
type Status string

const (
	StatusIdle             Status = "idle"
	StatusAwaitingResponse Status = "awaiting_response"
)

// Snapshot is a point-in-time copy of an assistant session.
type Snapshot struct {
	ID         string    `json:"id"`
	PersonaID  string    `json:"personaId"`
	Status     Status    `json:"status"`
	Input      string    `json:"input"`
	Transcript []Message `json:"transcript"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Last returns the most recent transcript message.
func (s Snapshot) Last() (Message, bool) {
	if len(s.Transcript) == 0 {
		return Message{}, false
	}
	return s.Transcript[len(s.Transcript)-1], true
}

// EventType 区分会话推送给订阅者的事件类型。
type EventType string

const (
	EventMessage EventType = "message"
	EventStatus  EventType = "status"
)

// Event is published to subscribers whenever the transcript grows or the
// status flips. UI layers re-render and scroll on EventMessage.
type Event struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"sessionId"`
	Message   *Message  `json:"message,omitempty"`
	Status    Status    `json:"status"`
}
