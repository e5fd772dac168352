package events

import (
	"time"

	"github.com/spec-kit/talent-client/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventSessionEstablished   EventType = "session_established"
	EventSessionCleared       EventType = "session_cleared"
	EventSessionExpired       EventType = "session_expired"
	EventApplicationSubmitted EventType = "application_submitted"
	EventApplicationFailed    EventType = "application_failed"
	EventMessageSent          EventType = "message_sent"
	EventMessageFailed        EventType = "message_failed"
)

// Event represents something the client core observed.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Key       string      `json:"key,omitempty"`
	Epoch     uint64      `json:"epoch"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// SessionPayload accompanies session lifecycle events.
type SessionPayload struct {
	UserID string      `json:"user_id,omitempty"`
	Role   domain.Role `json:"role,omitempty"`
	Reason string      `json:"reason,omitempty"`
}

// ApplicationPayload accompanies application events.
type ApplicationPayload struct {
	JobID         string `json:"job_id"`
	StudentID     string `json:"student_id"`
	ApplicationID string `json:"application_id,omitempty"`
	Error         string `json:"error,omitempty"`
	Retryable     bool   `json:"retryable,omitempty"`
}

// MessagePayload accompanies message events.
type MessagePayload struct {
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id,omitempty"`
	Error          string `json:"error,omitempty"`
	Retryable      bool   `json:"retryable,omitempty"`
}
