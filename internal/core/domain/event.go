package domain

import "time"

// EventType distinguishes entries in the session event log.
type EventType string

// Event types.
const (
	// EventPhaseChange records a state machine transition.
	EventPhaseChange EventType = "phase_change"
	// EventNotice records a user-visible notification.
	EventNotice EventType = "notice"
)

// SessionEvent is one persisted entry of the session history.
type SessionEvent struct {
	// ID is the unique identifier (UUID).
	ID string `json:"id"`
	// SessionID groups the events of one supervisor run.
	SessionID string `json:"session_id"`
	// Type is the kind of event.
	Type EventType `json:"type"`

	// FromPhase and ToPhase are set for phase changes.
	FromPhase Phase `json:"from_phase,omitempty"`
	ToPhase   Phase `json:"to_phase,omitempty"`
	// Terminal is set when ToPhase is PhaseTerminated.
	Terminal TerminalReason `json:"terminal,omitempty"`

	// Notice is set for notices.
	Notice NoticeKind `json:"notice,omitempty"`
	// Message is a human-readable summary (notice text or error).
	Message string `json:"message,omitempty"`

	// CreatedAt is when the event happened.
	CreatedAt time.Time `json:"created_at"`
}

// Summary returns a one-line description of the event.
func (e SessionEvent) Summary() string {
	switch e.Type {
	case EventPhaseChange:
		s := string(e.FromPhase) + " -> " + string(e.ToPhase)
		if e.Terminal != TerminalNone {
			s += " (" + string(e.Terminal) + ")"
		}
		return s
	case EventNotice:
		if e.Message != "" {
			return string(e.Notice) + ": " + e.Message
		}
		return string(e.Notice)
	default:
		return string(e.Type)
	}
}
